// Package batcher accumulates encoded requests and hands them out in frames
// that never split a request and never exceed the frame cap.
package batcher

import (
	"fmt"
	"strings"

	"itpsession/internal/itp"
)

const (
	DefaultSoftLimit = 3800
	// DefaultHardCap stays below the smallest pipe buffer we expect (4096).
	DefaultHardCap = 4080
)

// OversizedError reports a request that could not fit in a single frame. The
// queued bytes are discarded.
type OversizedError struct {
	Dropped int
	HardCap int
}

func (e *OversizedError) Error() string {
	return fmt.Sprintf("batcher: no complete request within %d bytes, dropped %d bytes", e.HardCap, e.Dropped)
}

type Options struct {
	SoftLimit int
	HardCap   int
}

// Batcher is not safe for concurrent use.
type Batcher struct {
	softLimit int
	hardCap   int
	queue     strings.Builder
}

func New(opts Options) *Batcher {
	soft := opts.SoftLimit
	if soft <= 0 {
		soft = DefaultSoftLimit
	}
	hard := opts.HardCap
	if hard <= len(itp.Delimiter) {
		hard = DefaultHardCap
	}
	if soft > hard {
		soft = hard
	}
	return &Batcher{softLimit: soft, hardCap: hard}
}

// Enqueue appends one encoded request and its delimiter. It reports whether
// the queue grew past the soft limit and should be flushed now.
func (b *Batcher) Enqueue(encoded string) bool {
	b.queue.WriteString(encoded)
	b.queue.WriteString(itp.Delimiter)
	return b.queue.Len() > b.softLimit
}

// Flush removes and returns the longest queued prefix that ends on a
// delimiter and fits within the hard cap. An empty queue returns "".
func (b *Batcher) Flush() (string, error) {
	pending := b.queue.String()
	if pending == "" {
		return "", nil
	}
	window := pending[:min(len(pending), b.hardCap)]
	cut := strings.LastIndex(window, itp.Delimiter)
	if cut < 0 {
		b.queue.Reset()
		return "", &OversizedError{Dropped: len(pending), HardCap: b.hardCap}
	}
	cut += len(itp.Delimiter)

	frame, rest := pending[:cut], pending[cut:]
	b.queue.Reset()
	b.queue.WriteString(rest)
	return frame, nil
}

// Len returns the number of queued bytes, delimiters included.
func (b *Batcher) Len() int {
	return b.queue.Len()
}

func (b *Batcher) Pending() bool {
	return b.queue.Len() > 0
}

func (b *Batcher) Reset() {
	b.queue.Reset()
}

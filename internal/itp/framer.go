package itp

import (
	"fmt"
	"iter"
	"strings"
)

// Delimiter terminates every unit on the wire, in both directions.
const Delimiter = ">>>>"

// Framer splits the prover output stream into delimiter-terminated units.
// It keeps the trailing incomplete fragment between pushes.
type Framer struct {
	pending string
}

func NewFramer() *Framer {
	return &Framer{}
}

// Push appends chunk to the pending fragment and yields every complete unit,
// delimiter stripped. Units not consumed by the caller stay buffered and are
// yielded by the next Push.
func (f *Framer) Push(chunk string) iter.Seq[string] {
	f.pending += chunk
	return func(yield func(string) bool) {
		for {
			idx := strings.Index(f.pending, Delimiter)
			if idx < 0 {
				return
			}
			unit := f.pending[:idx]
			f.pending = f.pending[idx+len(Delimiter):]
			if !yield(unit) {
				return
			}
		}
	}
}

func (f *Framer) Pending() int {
	return len(f.pending)
}

func (f *Framer) Reset() {
	f.pending = ""
}

// FrameError reports a unit with no JSON object in it.
type FrameError struct {
	Unit string
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("itp: no json object in frame %q", preview(e.Unit, 80))
}

// ExtractJSON drops everything before the first '{' of unit. Diagnostic text
// printed by the server on stderr lands in front of the payload.
func ExtractJSON(unit string) (string, error) {
	i := strings.IndexByte(unit, '{')
	if i < 0 {
		return "", &FrameError{Unit: unit}
	}
	return unit[i:], nil
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

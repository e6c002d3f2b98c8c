// Package taskbuf holds the proof task of the focused goal and mirrors it
// to a file, so any editor can follow the current task.
package taskbuf

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	ErrReadOnly = errors.New("taskbuf: buffer is read-only")
	ErrClosed   = errors.New("taskbuf: buffer is closed")
)

type Buffer struct {
	path string
	echo io.Writer

	mu       sync.Mutex
	text     strings.Builder
	readOnly bool
	closed   bool
}

// New returns a writable buffer. An empty path disables saving; a nil echo
// disables printing the task when the view scrolls to it.
func New(path string, echo io.Writer) *Buffer {
	return &Buffer{path: strings.TrimSpace(path), echo: echo}
}

func (b *Buffer) Path() string {
	return b.path
}

func (b *Buffer) SetReadOnly(readOnly bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readOnly = readOnly
}

func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readOnly || b.closed {
		return
	}
	b.text.Reset()
}

func (b *Buffer) Insert(text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if b.readOnly {
		return ErrReadOnly
	}
	b.text.WriteString(text)
	return nil
}

func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text.String()
}

// Save writes the buffer through a temporary file so readers never see a
// partial task.
func (b *Buffer) Save() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if b.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return err
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.text.String()), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, b.path)
}

func (b *Buffer) ScrollToEnd() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.echo == nil || b.closed {
		return
	}
	text := b.text.String()
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, _ = io.WriteString(b.echo, text)
}

func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

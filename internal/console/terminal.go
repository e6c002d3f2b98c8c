// Package console implements the session console on a terminal. Lines typed
// by the user are commands, except while a yes/no question is pending.
package console

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"itpsession/internal/session"
)

var (
	ErrClosed      = errors.New("console: closed")
	ErrInputClosed = errors.New("console: input closed")
)

const promptSuffix = "\n> "

type Options struct {
	In     io.Reader
	Out    io.Writer
	Color  bool
	Logger *slog.Logger
}

type Terminal struct {
	in     io.Reader
	out    io.Writer
	logger *slog.Logger

	errStyle      lipgloss.Style
	questionStyle lipgloss.Style
	color         bool

	mu        sync.Mutex
	waiter    chan string
	inputDone bool
	closed    bool
	closeCh   chan struct{}
}

func New(opts Options) *Terminal {
	t := &Terminal{
		in:      opts.In,
		out:     opts.Out,
		logger:  opts.Logger,
		color:   opts.Color,
		closeCh: make(chan struct{}),
	}
	if t.in == nil {
		t.in = strings.NewReader("")
	}
	if t.out == nil {
		t.out = io.Discard
	}
	if t.logger == nil {
		t.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if t.color {
		r := lipgloss.NewRenderer(t.out)
		t.errStyle = r.NewStyle().Foreground(lipgloss.Color("9"))
		t.questionStyle = r.NewStyle().Bold(true)
	}
	return t
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (t *Terminal) Write(text string, mode session.Mode, prompt bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if t.color && mode == session.ModeError && text != "" {
		text = t.errStyle.Render(text)
	}
	if prompt {
		text += promptSuffix
	} else {
		text += "\n"
	}
	_, err := io.WriteString(t.out, text)
	return err
}

// Confirm asks a yes/no question and waits for the next input line.
func (t *Terminal) Confirm(ctx context.Context, question string) (bool, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false, ErrClosed
	}
	if t.inputDone {
		t.mu.Unlock()
		return false, ErrInputClosed
	}
	if t.color {
		question = t.questionStyle.Render(question)
	}
	if _, err := io.WriteString(t.out, question+" [y/n] "); err != nil {
		t.mu.Unlock()
		return false, err
	}
	answer := make(chan string, 1)
	t.waiter = answer
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		if t.waiter == answer {
			t.waiter = nil
		}
		t.mu.Unlock()
	}()

	select {
	case line, ok := <-answer:
		if !ok {
			return false, ErrInputClosed
		}
		return isYes(line), nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-t.closeCh:
		return false, ErrClosed
	}
}

func isYes(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// Serve reads input lines until EOF or ctx ends. A line answers the pending
// question if there is one and is passed to submit otherwise.
func (t *Terminal) Serve(ctx context.Context, submit func(line string)) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		sc := bufio.NewScanner(t.in)
		sc.Buffer(make([]byte, 1024), 1024*1024)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-stop:
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.closeCh:
			return nil
		case err := <-readErr:
			t.endInput()
			return err
		case line := <-lines:
			if !t.answer(line) && submit != nil {
				submit(line)
			}
		}
	}
}

func (t *Terminal) answer(line string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.waiter == nil {
		return false
	}
	t.waiter <- line
	t.waiter = nil
	return true
}

func (t *Terminal) endInput() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputDone = true
	if t.waiter != nil {
		close(t.waiter)
		t.waiter = nil
	}
	t.logger.Debug("console input closed")
}

func (t *Terminal) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.closeCh)
	return nil
}

// Package prover runs the proof server as a child process. Its stdout and
// stderr share one pipe, so diagnostics arrive interleaved with
// notifications, exactly as the server writes them.
package prover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

var ErrClosed = errors.New("prover: process closed")

const defaultReadSize = 32 * 1024

type Options struct {
	Program  string
	Args     []string
	Dir      string
	Env      []string
	ReadSize int
	Logger   *slog.Logger
}

type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *os.File
	logger *slog.Logger

	output chan string
	done   chan error
	stop   chan struct{}

	writeMu  sync.Mutex
	stopOnce sync.Once
	killErr  error
}

// Start launches the server. The output channel is closed once the pipe
// reaches EOF or the process is killed; Done then delivers the exit result.
func Start(ctx context.Context, opts Options) (*Process, error) {
	program := strings.TrimSpace(opts.Program)
	if program == "" {
		return nil, errors.New("prover: program is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	readSize := opts.ReadSize
	if readSize <= 0 {
		readSize = defaultReadSize
	}

	cmd := exec.CommandContext(ctx, program, opts.Args...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	reader, writer, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		return nil, err
	}
	cmd.Stdout = writer
	cmd.Stderr = writer
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = reader.Close()
		_ = writer.Close()
		return nil, fmt.Errorf("prover: start %s: %w", program, err)
	}
	// The child holds its own copy of the write end.
	_ = writer.Close()

	p := &Process{
		cmd:    cmd,
		stdin:  stdin,
		reader: reader,
		logger: logger.With("pid", cmd.Process.Pid),
		output: make(chan string, 64),
		done:   make(chan error, 1),
		stop:   make(chan struct{}),
	}

	var g errgroup.Group
	g.Go(func() error {
		return p.readLoop(readSize)
	})
	var waitErr error
	g.Go(func() error {
		waitErr = cmd.Wait()
		return nil
	})
	go func() {
		readErr := g.Wait()
		_ = p.reader.Close()
		if readErr != nil {
			p.logger.Warn("read proof server output failed", "err", readErr)
		}
		p.logger.Debug("proof server exited", "err", waitErr)
		p.done <- waitErr
		close(p.done)
	}()

	p.logger.Info("proof server started", "program", program, "args", opts.Args)
	return p, nil
}

func (p *Process) readLoop(size int) error {
	defer close(p.output)
	buf := make([]byte, size)
	for {
		n, err := p.reader.Read(buf)
		if n > 0 {
			select {
			case p.output <- string(buf[:n]):
			case <-p.stop:
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || p.stopped() {
				return nil
			}
			return err
		}
	}
}

func (p *Process) stopped() bool {
	select {
	case <-p.stop:
		return true
	default:
		return false
	}
}

func (p *Process) Output() <-chan string {
	return p.output
}

func (p *Process) Done() <-chan error {
	return p.done
}

// Send writes one frame followed by a line feed; the server reads its
// input line by line.
func (p *Process) Send(data string) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if p.stopped() {
		return ErrClosed
	}
	_, err := io.WriteString(p.stdin, data+"\n")
	return err
}

// Kill stops the server and unblocks the output reader. It is safe to call
// more than once.
func (p *Process) Kill() error {
	p.stopOnce.Do(func() {
		close(p.stop)
		p.writeMu.Lock()
		_ = p.stdin.Close()
		p.writeMu.Unlock()
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.killErr = err
		}
		_ = p.reader.Close()
	})
	return p.killErr
}

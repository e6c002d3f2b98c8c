// Package session drives one interactive proof session: it reads
// notifications from the proof server, keeps the proof tree in sync and
// batches requests back to the server. All state is owned by the goroutine
// running Run; other goroutines talk to it through the action methods.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"itpsession/internal/batcher"
	"itpsession/internal/itp"
	"itpsession/internal/metrics"
	"itpsession/internal/prooftree"
)

const DefaultFlushInterval = 300 * time.Millisecond

var (
	ErrProtocolFatal  = errors.New("proof server reported a fatal error")
	ErrServerExited   = errors.New("proof server exited")
	ErrAlreadyStarted = errors.New("session already started")
)

type State int32

const (
	StateStarting State = iota
	StateRunning
	StateAwaitingSaveAck
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateAwaitingSaveAck:
		return "awaiting_save_ack"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type Outcome string

const (
	OutcomeSaved  Outcome = "saved"
	OutcomeKilled Outcome = "killed"
	OutcomeDead   Outcome = "dead"
	OutcomeExited Outcome = "exited"
)

// ReleaseError reports a resource that failed to close during teardown.
type ReleaseError struct {
	Resource string
	Err      error
}

func (e *ReleaseError) Error() string {
	return fmt.Sprintf("release %s: %v", e.Resource, e.Err)
}

func (e *ReleaseError) Unwrap() error {
	return e.Err
}

type Options struct {
	ID            string
	SourceFile    string
	Command       string
	Process       Process
	Console       Console
	Task          TaskDisplay
	Tree          TreeView
	Recorder      Recorder
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
	FlushInterval time.Duration
	SoftLimit     int
	HardCap       int
	Now           func() time.Time
}

type Session struct {
	id            string
	sourceFile    string
	command       string
	proc          Process
	console       Console
	task          TaskDisplay
	view          TreeView
	recorder      Recorder
	metrics       *metrics.Metrics
	logger        *slog.Logger
	flushInterval time.Duration
	now           func() time.Time

	tree     *prooftree.Store
	framer   *itp.Framer
	batcher  *batcher.Batcher
	checking bool
	overflow bool
	exiting  bool

	state   atomic.Int32
	outcome Outcome
	result  error
	final   []prooftree.Row
	actions chan func(context.Context)
	done    chan struct{}
}

func New(opts Options) (*Session, error) {
	if opts.Process == nil {
		return nil, errors.New("session: process is required")
	}
	s := &Session{
		id:            opts.ID,
		sourceFile:    opts.SourceFile,
		command:       opts.Command,
		proc:          opts.Process,
		console:       opts.Console,
		task:          opts.Task,
		view:          opts.Tree,
		recorder:      opts.Recorder,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
		flushInterval: opts.FlushInterval,
		now:           opts.Now,
		tree:          prooftree.NewStore(),
		framer:        itp.NewFramer(),
		batcher:       batcher.New(batcher.Options{SoftLimit: opts.SoftLimit, HardCap: opts.HardCap}),
		actions:       make(chan func(context.Context), 64),
		done:          make(chan struct{}),
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.console == nil {
		s.console = nopConsole{}
	}
	if s.task == nil {
		s.task = nopTask{}
	}
	if s.view == nil {
		s.view = nopView{}
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.flushInterval <= 0 {
		s.flushInterval = DefaultFlushInterval
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.logger = s.logger.With("session_id", s.id)
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(next State) {
	prev := State(s.state.Swap(int32(next)))
	if prev != next {
		s.logger.Debug("session state", "from", prev.String(), "to", next.String())
	}
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Outcome is valid once Done is closed.
func (s *Session) Outcome() Outcome {
	<-s.done
	return s.outcome
}

// Run owns the session until it terminates. It returns the reason the
// session ended abnormally joined with any teardown failures.
func (s *Session) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		return ErrAlreadyStarted
	}
	defer close(s.done)
	s.begin(ctx)

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	output := s.proc.Output()
	exited := s.proc.Done()
	for s.State() != StateTerminated {
		select {
		case <-ctx.Done():
			s.terminate(context.WithoutCancel(ctx), OutcomeKilled, nil)
		case chunk, ok := <-output:
			if !ok {
				output = nil
				continue
			}
			s.consume(ctx, chunk)
		case err := <-exited:
			exited = nil
			s.drain(ctx, output)
			if s.State() != StateTerminated {
				s.logger.Warn("proof server exited unexpectedly", "err", err)
				s.terminate(ctx, OutcomeExited, errors.Join(ErrServerExited, err))
			}
		case <-ticker.C:
			s.flush("tick")
		case act := <-s.actions:
			act(ctx)
		}
	}
	return s.result
}

func (s *Session) begin(ctx context.Context) {
	s.task.SetReadOnly(true)
	if s.recorder != nil {
		info := Info{ID: s.id, SourceFile: s.sourceFile, Command: s.command, StartedAt: s.now()}
		if err := s.recorder.Begin(ctx, info); err != nil {
			s.logger.Warn("record session start failed", "err", err)
		}
	}
	s.logger.Info("session started", "source_file", s.sourceFile)
}

// drain processes the output that was still buffered when the server exited.
func (s *Session) drain(ctx context.Context, output <-chan string) {
	if output == nil {
		return
	}
	for chunk := range output {
		if s.State() == StateTerminated {
			return
		}
		s.consume(ctx, chunk)
	}
}

// consume frames a chunk of server output and dispatches every complete
// notification in it.
func (s *Session) consume(ctx context.Context, chunk string) {
	for unit := range s.framer.Push(chunk) {
		s.handleUnit(ctx, unit)
		if s.State() == StateTerminated {
			return
		}
	}
}

func (s *Session) handleUnit(ctx context.Context, unit string) {
	raw, err := itp.ExtractJSON(unit)
	if err != nil {
		s.metrics.FrameError()
		s.logger.Warn("drop unit without json", "err", err)
		return
	}
	n, err := itp.Decode([]byte(raw))
	if err != nil {
		kind := "unknown"
		var decodeErr *itp.DecodeError
		if errors.As(err, &decodeErr) {
			kind = decodeErr.Kind.String()
		}
		s.metrics.DecodeError(kind)
		s.logger.Warn("drop undecodable notification", "err", err)
		return
	}
	s.dispatch(ctx, n)
}

// dispatch handles one notification with the flush guard held. Requests
// queued by the handler go out after those queued before it.
func (s *Session) dispatch(ctx context.Context, n itp.Notification) {
	s.checking = true
	s.metrics.Notification(n.Kind())
	s.handle(ctx, n)
	s.checking = false

	if s.overflow && s.State() != StateTerminated {
		s.flush("soft_limit")
	}
}

func (s *Session) enqueue(req itp.Request) {
	s.metrics.Request(req.Name())
	if s.batcher.Enqueue(itp.Encode(req)) {
		s.overflow = true
		s.flush("soft_limit")
	}
}

func (s *Session) flush(reason string) {
	if s.checking || !s.batcher.Pending() || s.State() == StateTerminated {
		return
	}
	s.overflow = false
	frame, err := s.batcher.Flush()
	if err != nil {
		s.metrics.Oversized()
		s.logger.Error("drop request queue", "reason", reason, "err", err)
		return
	}
	if err := s.proc.Send(frame); err != nil {
		s.metrics.SendError()
		s.logger.Warn("send to proof server failed", "reason", reason, "bytes", len(frame), "err", err)
		return
	}
	s.metrics.FrameSent(len(frame))
	s.logger.Debug("frame sent", "reason", reason, "bytes", len(frame))
}

// terminate releases every resource, records the session and moves to
// Terminated. Release failures are logged and joined into the result.
func (s *Session) terminate(ctx context.Context, outcome Outcome, cause error) {
	if s.State() == StateTerminated {
		return
	}
	s.setState(StateTerminated)

	var errs []error
	release := func(resource string, fn func() error) {
		if err := fn(); err != nil {
			s.logger.Warn("release failed", "resource", resource, "err", err)
			errs = append(errs, &ReleaseError{Resource: resource, Err: err})
		}
	}
	release("console", s.console.Close)
	release("task display", s.task.Close)
	release("tree view", s.view.Close)
	release("process", s.proc.Kill)

	if n := s.batcher.Len(); n > 0 {
		s.logger.Debug("discard unsent requests", "bytes", n)
	}
	s.batcher.Reset()
	s.framer.Reset()

	s.final = s.tree.Snapshot()
	if s.recorder != nil {
		if err := s.recorder.Finish(ctx, s.id, outcome, s.final); err != nil {
			s.logger.Warn("record session finish failed", "err", err)
		}
	}
	s.metrics.SessionFinished(string(outcome))
	s.outcome = outcome
	s.result = errors.Join(cause, errors.Join(errs...))
	s.logger.Info("session terminated", "outcome", string(outcome), "nodes", len(s.final))
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"itpsession/internal/command"
	"itpsession/internal/config"
	"itpsession/internal/console"
	"itpsession/internal/db"
	"itpsession/internal/global"
	"itpsession/internal/historydb"
	"itpsession/internal/lifecycle"
	"itpsession/internal/logging"
	"itpsession/internal/metrics"
	"itpsession/internal/prover"
	"itpsession/internal/session"
	"itpsession/internal/taskbuf"
	"itpsession/internal/treefeed"
)

var version = "dev"

type stdio struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
	// Color enables styled console output; main turns it on for a TTY.
	Color bool
}

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	app := command.BuildApp(command.Deps{
		LoadConfig: loadConfig,
		RunSession: func(ctx context.Context, cfg config.Config, req command.RunRequest) error {
			return runSession(ctx, cfg, req, stdio{In: os.Stdin, Out: os.Stdout, Err: os.Stderr, Color: console.IsTerminal(os.Stdout)}, interrupts(os.Interrupt))
		},
		OpenHistory:  openHistory,
		RunMigrateUp: runMigrateUp,
	})
	app.Version = version

	if err := app.RunContext(rootCtx, os.Args); err != nil {
		logging.NewLogger(logging.Options{Level: "error", Writer: os.Stderr, Component: logging.DefaultComponent}).Error("itpsession failed", "err", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	dir, err := global.DefaultConfigDir()
	if err != nil {
		return config.Config{}, err
	}
	store := global.NewConfigStore(dir)
	file, err := store.LoadOrInit()
	if err != nil {
		return config.Config{}, fmt.Errorf("load %s: %w", dir, err)
	}
	return store.Resolve(file), nil
}

func newRuntimeLogger(writer io.Writer, level string) *slog.Logger {
	return logging.NewLogger(logging.Options{
		Level:     level,
		Writer:    writer,
		Component: "itpsession",
	})
}

// interrupts returns a source of interrupt notifications for one session.
func interrupts(sig ...os.Signal) func() (<-chan os.Signal, func()) {
	return func() (<-chan os.Signal, func()) {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, sig...)
		return ch, func() { signal.Stop(ch) }
	}
}

func runSession(ctx context.Context, cfg config.Config, req command.RunRequest, std stdio, notify func() (<-chan os.Signal, func())) error {
	logger := newRuntimeLogger(std.Err, cfg.LogLevel)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	gdb, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	history, err := historydb.NewStore(gdb)
	if err != nil {
		_ = db.Close(gdb)
		return err
	}

	source, err := filepath.Abs(req.SourceFile)
	if err != nil {
		source = req.SourceFile
	}
	proc, err := prover.Start(ctx, prover.Options{
		Program: req.ServerArgv[0],
		Args:    req.ServerArgv[1:],
		Dir:     filepath.Dir(source),
		Logger:  logger.With("module", "prover"),
	})
	if err != nil {
		_ = db.Close(gdb)
		return err
	}

	term := console.New(console.Options{In: std.In, Out: std.Out, Color: std.Color, Logger: logger.With("module", "console")})
	opts := session.Options{
		SourceFile:    source,
		Command:       strings.Join(req.ServerArgv, " "),
		Process:       proc,
		Console:       term,
		Task:          taskbuf.New(cfg.TaskFile, std.Out),
		Recorder:      &historyRecorder{store: history},
		Metrics:       m,
		Logger:        logger.With("module", "session"),
		FlushInterval: cfg.FlushInterval,
		SoftLimit:     cfg.SoftLimit,
		HardCap:       cfg.HardCap,
	}
	var hub *treefeed.Hub
	if cfg.FeedEnabled {
		hub = treefeed.NewHub(m, logger)
		opts.Tree = hub
	}
	sess, err := session.New(opts)
	if err != nil {
		_ = proc.Kill()
		_ = db.Close(gdb)
		return err
	}

	mgr := lifecycle.NewManager()
	mgr.AddPrimary("session", sess.Run)
	mgr.AddRun("console", func(runCtx context.Context) error {
		return term.Serve(runCtx, func(line string) { sess.SubmitCommand(line) })
	})
	mgr.AddRun("interrupts", func(runCtx context.Context) error {
		sigs, stopSigs := notify()
		defer stopSigs()
		return watchInterrupts(runCtx, sigs, sess, term, logger)
	})
	if hub != nil {
		hub.Bind(sess)
		srv := treefeed.NewServer(treefeed.ServerOptions{
			Addr:     fmt.Sprintf("%s:%d", cfg.FeedHost, cfg.FeedPort),
			Hub:      hub,
			Gatherer: reg,
			Logger:   logger.With("module", "treefeed"),
		})
		ln, err := srv.Listen()
		if err != nil {
			_ = proc.Kill()
			_ = db.Close(gdb)
			return fmt.Errorf("tree feed: %w", err)
		}
		_, _ = fmt.Fprintf(std.Err, "itpsession tree feed at ws://%s/ws (session=%s version=%s)\n", ln.Addr(), sess.ID(), version)
		mgr.AddRun("tree-feed", func(runCtx context.Context) error {
			return srv.Serve(runCtx, ln)
		})
	}
	mgr.AddShutdown("close-history-db", func(context.Context) error {
		return db.Close(gdb)
	})
	return mgr.StartAndWait(ctx)
}

// watchInterrupts offers to save on the first interrupt and kills the
// session on the next one. The save prompt holds the session loop, so the
// console is closed first to release it.
func watchInterrupts(ctx context.Context, sigs <-chan os.Signal, sess *session.Session, prompt io.Closer, logger *slog.Logger) error {
	asked := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sess.Done():
			return nil
		case sig := <-sigs:
			if asked {
				logger.Warn("second interrupt, killing session", "signal", sig.String())
				_ = prompt.Close()
				sess.Kill()
				return nil
			}
			asked = true
			sess.RequestExit()
		}
	}
}

func openHistory(_ context.Context, cfg config.Config) (command.HistoryReader, func() error, error) {
	gdb, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	store, err := historydb.NewStore(gdb)
	if err != nil {
		_ = db.Close(gdb)
		return nil, nil, err
	}
	return store, func() error { return db.Close(gdb) }, nil
}

func runMigrateUp(_ context.Context, cfg config.Config) error {
	gdb, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	return errors.Join(db.MigrateUp(gdb), db.Close(gdb))
}

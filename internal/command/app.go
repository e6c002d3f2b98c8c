package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"itpsession/internal/config"
	"itpsession/internal/historydb"
	"itpsession/internal/prooftree"
)

// FilePlaceholder in a server argument is replaced by the source file.
// Without one the file is appended as the last argument.
const FilePlaceholder = "{file}"

type RunRequest struct {
	SourceFile string
	ServerArgv []string
}

type HistoryReader interface {
	List(ctx context.Context, limit int) ([]historydb.Entry, error)
	Get(ctx context.Context, id string) (historydb.Entry, error)
	Nodes(ctx context.Context, id string) ([]prooftree.Row, error)
}

type Deps struct {
	LoadConfig   func() (config.Config, error)
	RunSession   func(context.Context, config.Config, RunRequest) error
	OpenHistory  func(context.Context, config.Config) (HistoryReader, func() error, error)
	RunMigrateUp func(context.Context, config.Config) error
}

func BuildApp(deps Deps) *cli.App {
	runFlags := []cli.Flag{
		&cli.StringFlag{Name: "server", Usage: "proof server command line"},
		&cli.StringSliceFlag{Name: "server-arg", Usage: "extra proof server argument (repeatable)"},
		&cli.BoolFlag{Name: "feed", Usage: "serve the tree feed"},
		&cli.BoolFlag{Name: "no-feed", Usage: "do not serve the tree feed"},
		&cli.IntFlag{Name: "feed-port", Usage: "tree feed port (0 picks a free port)"},
	}
	return &cli.App{
		Name:      "itpsession",
		Usage:     "interactive proof session client",
		ArgsUsage: "FILE",
		Flags:     runFlags,
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() == 0 {
				return cli.ShowAppHelp(ctx)
			}
			return runSession(ctx, deps)
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "start a proof session on FILE",
				ArgsUsage: "FILE",
				Flags:     runFlags,
				Action: func(ctx *cli.Context) error {
					return runSession(ctx, deps)
				},
			},
			{
				Name:  "history",
				Usage: "inspect recorded sessions",
				Subcommands: []*cli.Command{
					{
						Name:  "list",
						Usage: "list recent sessions",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "limit", Usage: "number of sessions to show"},
						},
						Action: func(ctx *cli.Context) error {
							return listHistory(ctx, deps)
						},
					},
					{
						Name:      "show",
						Usage:     "show a session and its final proof tree",
						ArgsUsage: "ID",
						Action: func(ctx *cli.Context) error {
							return showHistory(ctx, deps)
						},
					},
				},
			},
			{
				Name:  "migrate",
				Usage: "run database migration",
				Subcommands: []*cli.Command{
					{
						Name:  "up",
						Usage: "apply pending migrations",
						Action: func(ctx *cli.Context) error {
							cfg, err := loadConfig(deps)
							if err != nil {
								return err
							}
							if deps.RunMigrateUp == nil {
								return errors.New("migrate up runner is not configured")
							}
							return deps.RunMigrateUp(ctx.Context, cfg)
						},
					},
				},
			},
		},
	}
}

func loadConfig(deps Deps) (config.Config, error) {
	if deps.LoadConfig != nil {
		return deps.LoadConfig()
	}
	return config.LoadConfig(), nil
}

func runSession(ctx *cli.Context, deps Deps) error {
	if ctx.NArg() != 1 {
		return errors.New("exactly one source FILE is required")
	}
	if deps.RunSession == nil {
		return errors.New("session runner is not configured")
	}
	cfg, err := loadConfig(deps)
	if err != nil {
		return err
	}
	if ctx.IsSet("server") {
		cfg.ServerCommand = ctx.String("server")
	}
	if ctx.IsSet("feed") {
		cfg.FeedEnabled = ctx.Bool("feed")
	}
	if ctx.Bool("no-feed") {
		cfg.FeedEnabled = false
	}
	if ctx.IsSet("feed-port") {
		cfg.FeedPort = ctx.Int("feed-port")
	}
	file := ctx.Args().First()
	argv, err := ServerArgv(cfg.ServerCommand, ctx.StringSlice("server-arg"), file)
	if err != nil {
		return err
	}
	return deps.RunSession(ctx.Context, cfg, RunRequest{SourceFile: file, ServerArgv: argv})
}

// ServerArgv builds the proof server argv for file.
func ServerArgv(command string, extra []string, file string) ([]string, error) {
	argv := append(strings.Fields(command), extra...)
	if len(argv) == 0 {
		return nil, errors.New("proof server command is empty")
	}
	placed := false
	for i, arg := range argv {
		if strings.Contains(arg, FilePlaceholder) {
			argv[i] = strings.ReplaceAll(arg, FilePlaceholder, file)
			placed = true
		}
	}
	if !placed {
		argv = append(argv, file)
	}
	return argv, nil
}

func openHistory(ctx *cli.Context, deps Deps) (HistoryReader, config.Config, func() error, error) {
	cfg, err := loadConfig(deps)
	if err != nil {
		return nil, cfg, nil, err
	}
	if deps.OpenHistory == nil {
		return nil, cfg, nil, errors.New("history store is not configured")
	}
	reader, closeFn, err := deps.OpenHistory(ctx.Context, cfg)
	if err != nil {
		return nil, cfg, nil, err
	}
	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	return reader, cfg, closeFn, nil
}

func listHistory(ctx *cli.Context, deps Deps) (err error) {
	reader, cfg, closeFn, err := openHistory(ctx, deps)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeFn()) }()

	limit := cfg.HistoryLimit
	if ctx.IsSet("limit") {
		limit = ctx.Int("limit")
	}
	entries, err := reader.List(ctx.Context, limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tOUTCOME\tNODES\tPROVED ROOTS\tFILE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n", e.ID, e.StartedAt.Format(time.DateTime), outcomeLabel(e), e.NodeCount, e.ProvedRoots, e.SourceFile)
	}
	return w.Flush()
}

func showHistory(ctx *cli.Context, deps Deps) (err error) {
	if ctx.NArg() != 1 {
		return errors.New("exactly one session ID is required")
	}
	id := ctx.Args().First()
	reader, _, closeFn, err := openHistory(ctx, deps)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeFn()) }()

	entry, err := reader.Get(ctx.Context, id)
	if err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}
	rows, err := reader.Nodes(ctx.Context, id)
	if err != nil {
		return err
	}
	out := ctx.App.Writer
	fmt.Fprintf(out, "session:  %s\n", entry.ID)
	fmt.Fprintf(out, "file:     %s\n", entry.SourceFile)
	fmt.Fprintf(out, "command:  %s\n", entry.Command)
	fmt.Fprintf(out, "started:  %s\n", entry.StartedAt.Format(time.DateTime))
	fmt.Fprintf(out, "outcome:  %s\n", outcomeLabel(entry))
	if !entry.Active() {
		fmt.Fprintf(out, "duration: %s\n", entry.EndedAt.Sub(entry.StartedAt))
	}
	if len(rows) > 0 {
		fmt.Fprintln(out)
		writeTree(out, rows)
	}
	return nil
}

// writeTree prints pre-order rows indented under their display parent.
func writeTree(out io.Writer, rows []prooftree.Row) {
	depth := make(map[int]int, len(rows))
	for _, row := range rows {
		d := 0
		if parent, ok := depth[row.DisplayParent]; ok {
			d = parent + 1
		}
		depth[row.ID] = d
		fmt.Fprintf(out, "%s%s [%s] %s\n", strings.Repeat("  ", d), row.Name, row.NodeType, row.Status)
	}
}

func outcomeLabel(e historydb.Entry) string {
	if e.Active() {
		return "active"
	}
	return e.Outcome
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/sowilo/internal"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/output"
	"github.com/starford/sowilo/internal/search"
	pkgconfig "github.com/starford/sowilo/pkg/config"
)

// withApp loads the configuration, opens the application and runs fn.
func withApp(cmd *cli.Command, fn func(*internal.App, *output.Writer) error) error {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if vault := cmd.String("vault"); vault != "" {
		cfg.Vault.Path = vault
	}

	app, err := internal.New(internal.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("app init error: %w", err)
	}
	defer app.Close()

	return fn(app, output.New(os.Stdout))
}

func noteType(cmd *cli.Command) models.NoteType {
	if s := cmd.String("type"); s != "" {
		return models.ParseNoteType(s)
	}
	return ""
}

func indexCmd(ctx context.Context, cmd *cli.Command) error {
	return withApp(cmd, func(app *internal.App, w *output.Writer) error {
		progress := output.New(os.Stderr)
		is, ds, err := app.Reindex(ctx, progress.Progress)
		if err != nil {
			return fmt.Errorf("reindex: %w", err)
		}
		if cmd.Bool("json") {
			return w.JSON(map[string]any{"index": is, "derived": ds})
		}
		w.IndexStats(is)
		w.DerivedStats(ds)
		return nil
	})
}

func deriveCmd(ctx context.Context, cmd *cli.Command) error {
	return withApp(cmd, func(app *internal.App, w *output.Writer) error {
		ds, err := app.Derive(ctx)
		if err != nil {
			return fmt.Errorf("derive: %w", err)
		}
		if cmd.Bool("json") {
			return w.JSON(ds)
		}
		w.DerivedStats(ds)
		return nil
	})
}

func searchCmd(ctx context.Context, cmd *cli.Command) error {
	mode, err := search.ParseMode(cmd.String("mode"))
	if err != nil {
		return err
	}
	q := search.Query{
		Text:          strings.Join(cmd.Args().Slice(), " "),
		Type:          noteType(cmd),
		PathPrefix:    cmd.String("prefix"),
		Expansion:     search.NewExpansion(mode, int(cmd.Int("hops")), int(cmd.Int("days")), int(cmd.Int("min-shared"))),
		Limit:         int(cmd.Int("limit")),
		TemporalBoost: cmd.Bool("boost"),
	}
	return withApp(cmd, func(app *internal.App, w *output.Writer) error {
		results, err := app.Search(ctx, q)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		if cmd.Bool("json") {
			if results == nil {
				results = []search.Result{}
			}
			return w.JSON(results)
		}
		w.Results(results)
		return nil
	})
}

func backlinksCmd(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("backlinks: a note path is required")
	}
	return withApp(cmd, func(app *internal.App, w *output.Writer) error {
		target, links, err := app.Backlinks(ctx, path)
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return w.JSON(links)
		}
		w.Backlinks(target.Path, links)
		return nil
	})
}

func orphansCmd(ctx context.Context, cmd *cli.Command) error {
	return withApp(cmd, func(app *internal.App, w *output.Writer) error {
		paths, err := app.Orphans(ctx, noteType(cmd))
		if err != nil {
			return fmt.Errorf("orphans: %w", err)
		}
		if cmd.Bool("json") {
			return w.JSON(paths)
		}
		w.Paths(paths, "No orphans.")
		return nil
	})
}

func statsCmd(ctx context.Context, cmd *cli.Command) error {
	return withApp(cmd, func(app *internal.App, w *output.Writer) error {
		if cmd.Bool("broken") {
			broken, err := app.BrokenLinks(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			if cmd.Bool("json") {
				return w.JSON(broken)
			}
			w.Paths(broken, "No broken links.")
			return nil
		}
		stats, err := app.Stats(ctx)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		if cmd.Bool("json") {
			return w.JSON(stats)
		}
		w.StoreStats(stats)
		return nil
	})
}

func mcpCmd(ctx context.Context, cmd *cli.Command) error {
	return withApp(cmd, func(app *internal.App, _ *output.Writer) error {
		return app.ServeMCP(ctx, os.Stdin, os.Stdout, cmd.Bool("reindex"))
	})
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "Print JSON instead of text"}
}

func main() {
	cmd := &cli.Command{
		Name:  "sowilo",
		Usage: "Index a Markdown vault and search it through links, daily notes and co-occurrence",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "sowilo.yaml",
				Value:       "sowilo.yaml",
				Sources:     cli.EnvVars("SOWILO_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "vault",
				Usage:   "Vault root, overrides vault.path",
				Sources: cli.EnvVars("SOWILO_VAULT"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "index",
				Usage:  "Rebuild the index and the derived activity tables",
				Flags:  []cli.Flag{jsonFlag()},
				Action: indexCmd,
			},
			{
				Name:   "derive",
				Usage:  "Recompute activity, staleness and co-occurrence from the current index",
				Flags:  []cli.Flag{jsonFlag()},
				Action: deriveCmd,
			},
			{
				Name:      "search",
				Usage:     "Search notes by title or path",
				ArgsUsage: "[query]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: search.ModeDirect.String(),
						Usage: "Expansion mode: " + strings.Join(search.ModeNames(), ", ")},
					&cli.IntFlag{Name: "hops", Value: search.DefaultHops, Usage: "Link distance for neighbourhood mode"},
					&cli.IntFlag{Name: "days", Value: search.DefaultDays, Usage: "Lookback window for temporal mode"},
					&cli.IntFlag{Name: "min-shared", Value: search.DefaultMinShared, Usage: "Minimum shared daily notes for cooccurrence mode"},
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Only return notes of this type"},
					&cli.StringFlag{Name: "prefix", Aliases: []string{"p"}, Usage: "Only match paths with this prefix"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum number of results (default from config)"},
					&cli.BoolFlag{Name: "boost", Usage: "Boost recently active notes"},
					jsonFlag(),
				},
				Action: searchCmd,
			},
			{
				Name:      "backlinks",
				Usage:     "List notes linking to a note",
				ArgsUsage: "<path>",
				Flags:     []cli.Flag{jsonFlag()},
				Action:    backlinksCmd,
			},
			{
				Name:  "orphans",
				Usage: "List notes nothing links to",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Only list notes of this type"},
					jsonFlag(),
				},
				Action: orphansCmd,
			},
			{
				Name:  "stats",
				Usage: "Show index counts",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "broken", Usage: "List unresolved links instead"},
					jsonFlag(),
				},
				Action: statsCmd,
			},
			{
				Name:  "mcp",
				Usage: "Serve MCP tools over stdio",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "reindex", Usage: "Rebuild the index before serving"},
				},
				Action: mcpCmd,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

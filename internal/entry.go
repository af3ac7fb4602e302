// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/sowilo/internal/derived"
	"github.com/starford/sowilo/internal/index"
	"github.com/starford/sowilo/internal/indexer"
	"github.com/starford/sowilo/internal/mcpserver"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/parser"
	"github.com/starford/sowilo/internal/search"
	"github.com/starford/sowilo/internal/storage"
)

// App owns the opened index and the services built on it.
type App struct {
	config  *Config
	logger  *slog.Logger
	db      *index.DB
	builder *indexer.Builder
	derived *derived.Builder
	engine  *search.Engine
}

// New opens the index described by the configuration and wires the
// builders and the search engine to it.
func New(opts ...Option) (*App, error) {
	a := &application{logOut: os.Stderr}
	for _, opt := range opts {
		opt(a)
	}
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := a.config

	logger := newLogger(cfg.App, a.logOut)
	logger.Debug("app: configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.DatabasePath()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	src, err := storage.NewFS(cfg.Vault.Path, cfg.Vault.Extensions, cfg.Vault.Ignore)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	var db *index.DB
	if cfg.SQLite.Path == "" {
		db, err = index.OpenAt(cfg.Vault.Path, cfg.SQLite.BusyTimeout)
	} else {
		db, err = index.Open(cfg.SQLite.Path, cfg.SQLite.BusyTimeout)
	}
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	engine, err := search.New(db, logger,
		search.WithCooccurrenceFanout(cfg.Search.CooccurrenceFanout),
		search.WithCacheSize(cfg.Search.NoteCacheSize),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init search: %w", err)
	}

	return &App{
		config:  cfg,
		logger:  logger,
		db:      db,
		builder: indexer.New(db, src, parser.New(), logger, indexer.WithWorkers(cfg.Index.Workers)),
		derived: derived.New(db, logger),
		engine:  engine,
	}, nil
}

func newLogger(cfg ApplicationConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == LogFormatText {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Close releases the index.
func (a *App) Close() error {
	return a.db.Close()
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Reindex rebuilds the index from the vault, then the derived tables.
func (a *App) Reindex(ctx context.Context, progress indexer.ProgressFunc) (*models.IndexStats, *models.DerivedStats, error) {
	is, err := a.builder.FullReindex(ctx, progress)
	if err != nil {
		return nil, nil, err
	}
	a.engine.Invalidate()
	ds, err := a.Derive(ctx)
	if err != nil {
		return is, nil, err
	}
	return is, ds, nil
}

// Derive recomputes temporal activity, staleness and co-occurrence.
func (a *App) Derive(ctx context.Context) (*models.DerivedStats, error) {
	return a.derived.ComputeAll(ctx)
}

// Search runs q, applying the configured default limit when q has none.
func (a *App) Search(ctx context.Context, q search.Query) ([]search.Result, error) {
	if q.Limit == 0 {
		q.Limit = a.config.Search.DefaultLimit
	}
	return a.engine.Search(ctx, q)
}

// ErrNoteNotFound is returned when a path names no indexed note.
var ErrNoteNotFound = errors.New("note not found")

// Backlinks returns the incoming links of the note at path. The path may
// omit the ".md" extension.
func (a *App) Backlinks(ctx context.Context, path string) (*models.Note, []models.Backlink, error) {
	n, err := index.FindNote(ctx, a.db, path)
	if err != nil {
		return nil, nil, err
	}
	if n == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoteNotFound, path)
	}
	links, err := index.Backlinks(ctx, a.db, n.ID)
	if err != nil {
		return nil, nil, err
	}
	return n, links, nil
}

// Orphans returns the paths of notes nothing links to, optionally only
// those of type typ.
func (a *App) Orphans(ctx context.Context, typ models.NoteType) ([]string, error) {
	notes, err := a.db.FindOrphans(ctx)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(notes))
	for _, n := range notes {
		if typ != "" && n.Type != typ {
			continue
		}
		paths = append(paths, n.Path)
	}
	return paths, nil
}

// Stats returns index counts.
func (a *App) Stats(ctx context.Context) (*models.StoreStats, error) {
	return a.db.GetStats(ctx)
}

// BrokenLinks lists links whose target is not in the index, as
// "source: target" pairs.
func (a *App) BrokenLinks(ctx context.Context) ([]string, error) {
	links, err := a.db.ListLinks(ctx)
	if err != nil {
		return nil, err
	}
	paths := make(map[int64]string)
	var out []string
	for _, l := range links {
		if l.Resolved() {
			continue
		}
		src, ok := paths[l.SourceID]
		if !ok {
			n, err := a.db.GetNoteByID(ctx, l.SourceID)
			if err != nil {
				return nil, err
			}
			if n != nil {
				src = n.Path
			}
			paths[l.SourceID] = src
		}
		out = append(out, fmt.Sprintf("%s: %s", src, l.TargetPath))
	}
	return out, nil
}

// ServeMCP serves the MCP tools over in and out until ctx is done. With
// reindexFirst the index is rebuilt before serving.
func (a *App) ServeMCP(ctx context.Context, in io.Reader, out io.Writer, reindexFirst bool) error {
	reindex := func(ctx context.Context) (*models.IndexStats, *models.DerivedStats, error) {
		return a.Reindex(ctx, nil)
	}
	if reindexFirst {
		if _, _, err := reindex(ctx); err != nil {
			return fmt.Errorf("initial reindex: %w", err)
		}
	}
	srv := mcpserver.New(a.engine, a.db, reindex, a.logger,
		mcpserver.WithDefaultLimit(a.config.Search.DefaultLimit))
	err := srv.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		a.logger.Info("mcp: stopped")
		return nil
	}
	return err
}

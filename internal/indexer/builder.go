// Package indexer rebuilds the primary note index from the files of a vault.
package indexer

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/sowilo/internal/checksum"
	"github.com/starford/sowilo/internal/index"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/parser"
	"github.com/starford/sowilo/internal/storage"
)

// Extractor turns file content into structured facts.
type Extractor interface {
	Extract(content []byte, relPath string) (*parser.Result, error)
}

// ProgressFunc is called before each file is written, with its 0-based
// position in walk order.
type ProgressFunc func(index, total int, relPath string)

// Builder performs full reindex passes.
type Builder struct {
	db      *index.DB
	src     storage.Provider
	ext     Extractor
	logger  *slog.Logger
	workers int
	hash    func([]byte) string
}

// Option configures a Builder.
type Option func(*Builder)

// WithWorkers bounds how many files are read and extracted concurrently.
// Non-positive values select runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// New creates a Builder writing to db.
func New(db *index.DB, src storage.Provider, ext Extractor, logger *slog.Logger, opts ...Option) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Builder{
		db:      db,
		src:     src,
		ext:     ext,
		logger:  logger,
		workers: runtime.NumCPU(),
		hash:    checksum.Sum,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// prepared is the per-file work done off the write path.
type prepared struct {
	entry models.FileEntry
	hash  string
	res   *parser.Result
	err   error
}

// FullReindex wipes the primary index and rebuilds it from the vault. Only a
// failed walk or a storage error aborts the pass; files that cannot be read
// or extracted are logged and counted in NotesSkipped. The whole pass runs
// in one transaction, so an aborted pass leaves the previous index intact.
func (b *Builder) FullReindex(ctx context.Context, progress ProgressFunc) (*models.IndexStats, error) {
	start := time.Now()

	files, err := b.src.Walk(ctx)
	if err != nil {
		return nil, err
	}
	stats := &models.IndexStats{FilesFound: len(files)}
	b.logger.Info("indexer: walk complete", slog.Int("files", len(files)))

	work, err := b.prepare(ctx, files)
	if err != nil {
		return nil, err
	}

	err = b.db.InTx(ctx, func(tx *index.DB) error {
		ids, err := tx.NoteIDsByPath(ctx)
		if err != nil {
			return err
		}
		if err := tx.ClearAll(ctx); err != nil {
			return err
		}

		for i, p := range work {
			if err := ctx.Err(); err != nil {
				return err
			}
			if progress != nil {
				progress(i, len(work), p.entry.RelPath)
			}
			if p.err != nil {
				stats.NotesSkipped++
				b.logger.Warn("indexer: skipped",
					slog.String("path", p.entry.RelPath),
					slog.String("error", p.err.Error()),
				)
				continue
			}
			n, err := b.write(ctx, tx, ids[p.entry.RelPath], p)
			if err != nil {
				return err
			}
			stats.NotesIndexed++
			stats.LinksIndexed += n
			b.logger.Debug("indexer: indexed", slog.String("path", p.entry.RelPath), slog.Int("links", n))
		}

		resolved, err := tx.ResolveLinkTargets(ctx)
		if err != nil {
			return err
		}
		b.logger.Debug("indexer: links resolved", slog.Int("resolved", resolved))

		stats.BrokenLinks, err = tx.CountBrokenLinks(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	stats.DurationMS = models.Since(start)
	b.logger.Info("indexer: reindex complete",
		slog.Int("indexed", stats.NotesIndexed),
		slog.Int("skipped", stats.NotesSkipped),
		slog.Int("links", stats.LinksIndexed),
		slog.Int("broken", stats.BrokenLinks),
		slog.Int64("duration_ms", stats.DurationMS),
	)
	return stats, nil
}

// prepare reads, hashes and extracts every file with a bounded worker pool.
// Per-file failures are recorded in the slot rather than returned.
func (b *Builder) prepare(ctx context.Context, files []models.FileEntry) ([]prepared, error) {
	work := make([]prepared, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p := prepared{entry: f}
			data, err := b.src.Read(f.RelPath)
			if err != nil {
				p.err = err
				work[i] = p
				return nil
			}
			p.hash = b.hash(data)
			p.res, p.err = b.ext.Extract(data, f.RelPath)
			work[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return work, nil
}

// write stores one note and its links, returning the number of links.
func (b *Builder) write(ctx context.Context, tx *index.DB, prevID int64, p prepared) (int, error) {
	id, err := tx.UpsertNote(ctx, models.Note{
		ID:              prevID,
		Path:            p.entry.RelPath,
		Type:            p.res.Type,
		Title:           p.res.Title,
		Created:         p.res.Created,
		Modified:        p.entry.Modified,
		FrontmatterJSON: p.res.FrontmatterJSON,
		ContentHash:     p.hash,
	})
	if err != nil {
		return 0, err
	}
	if _, err := tx.DeleteLinksFrom(ctx, id); err != nil {
		return 0, err
	}
	for _, l := range p.res.Links {
		if _, err := tx.InsertLink(ctx, models.Link{
			SourceID:   id,
			TargetPath: l.Target,
			LinkText:   l.Text,
			Type:       l.Type,
			Context:    l.Context,
			LineNumber: l.LineNumber,
		}); err != nil {
			return 0, err
		}
	}
	return len(p.res.Links), nil
}

// Package search answers note queries with direct matching plus optional
// link-graph, temporal and co-occurrence expansion, ranked by score.
package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/index"
	"github.com/starford/sowilo/internal/models"
)

// Scores assigned to each kind of match.
const (
	directScore        = 1.0
	neighbourhoodScore = 0.5
	temporalScore      = 0.4
	cooccurrenceScore  = 0.3
)

const (
	defaultFanout    = 10
	defaultCacheSize = 1024
)

// Engine runs searches against an index. It is safe for concurrent use.
type Engine struct {
	store     index.Reader
	logger    *slog.Logger
	fanout    int
	cacheSize int
	notes     *lru.Cache[int64, models.Note]
}

// Option configures an Engine.
type Option func(*Engine)

// WithCooccurrenceFanout bounds how many co-occurring notes are fetched
// per seed.
func WithCooccurrenceFanout(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.fanout = n
		}
	}
}

// WithCacheSize sets how many notes are kept in the lookup cache.
func WithCacheSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.cacheSize = n
		}
	}
}

// New creates an Engine reading from store.
func New(store index.Reader, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, apperr.Invalid("search: new engine", "nil store")
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		store:     store,
		logger:    logger,
		fanout:    defaultFanout,
		cacheSize: defaultCacheSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	cache, err := lru.New[int64, models.Note](e.cacheSize)
	if err != nil {
		return nil, err
	}
	e.notes = cache
	return e, nil
}

// Invalidate drops cached notes. Call it after the index was rebuilt.
func (e *Engine) Invalidate() {
	e.notes.Purge()
}

// Search runs q. Any storage failure aborts the whole search.
func (e *Engine) Search(ctx context.Context, q Query) ([]Result, error) {
	if err := q.Validate(); err != nil {
		return nil, apperr.Invalid("search: validate query", "%w", err)
	}

	seeds, err := e.direct(ctx, q)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(seeds))
	for _, n := range seeds {
		results = append(results, Result{Note: n, Score: directScore, Source: MatchSource{Kind: SourceDirect}})
	}

	expanded, err := e.expand(ctx, seeds, q)
	if err != nil {
		return nil, err
	}
	results = append(results, expanded...)

	if err := e.applyStaleness(ctx, results, q.TemporalBoost); err != nil {
		return nil, err
	}

	results = dedupe(results)
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}

	e.logger.Debug("search: done",
		slog.String("text", q.Text),
		slog.String("mode", q.Expansion.Mode.String()),
		slog.Int("seeds", len(seeds)),
		slog.Int("results", len(results)),
	)
	return results, nil
}

// direct returns notes passing the filters whose title or path contains
// the query text.
func (e *Engine) direct(ctx context.Context, q Query) ([]models.Note, error) {
	notes, err := e.store.QueryNotes(ctx, models.NoteFilter{Type: q.Type, PathPrefix: q.PathPrefix})
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(q.Text)
	out := notes[:0]
	for _, n := range notes {
		if needle != "" &&
			!strings.Contains(strings.ToLower(n.Title), needle) &&
			!strings.Contains(strings.ToLower(n.Path), needle) {
			continue
		}
		e.notes.Add(n.ID, n)
		out = append(out, n)
	}
	return out, nil
}

func (e *Engine) expand(ctx context.Context, seeds []models.Note, q Query) ([]Result, error) {
	var (
		out []Result
		err error
	)
	run := func(fn func() ([]Result, error)) {
		if err != nil {
			return
		}
		var r []Result
		r, err = fn()
		out = append(out, r...)
	}

	switch x := q.Expansion; x.Mode {
	case ModeNeighbourhood:
		run(func() ([]Result, error) { return e.neighbourhood(ctx, seeds, x.Hops, q.Type) })
	case ModeTemporal:
		run(func() ([]Result, error) { return e.temporal(ctx, seeds, q.Type) })
	case ModeCooccurrence:
		run(func() ([]Result, error) { return e.cooccurrence(ctx, seeds, x.MinShared, q.Type) })
	case ModeFull:
		run(func() ([]Result, error) { return e.neighbourhood(ctx, seeds, DefaultHops, q.Type) })
		run(func() ([]Result, error) { return e.temporal(ctx, seeds, q.Type) })
		run(func() ([]Result, error) { return e.cooccurrence(ctx, seeds, DefaultMinShared, q.Type) })
	}
	return out, err
}

// note returns the note with id, consulting the cache first.
func (e *Engine) note(ctx context.Context, id int64) (*models.Note, error) {
	if n, ok := e.notes.Get(id); ok {
		return &n, nil
	}
	n, err := e.store.GetNoteByID(ctx, id)
	if err != nil || n == nil {
		return nil, err
	}
	e.notes.Add(id, *n)
	return n, nil
}

func (e *Engine) applyStaleness(ctx context.Context, results []Result, boost bool) error {
	for i := range results {
		s, err := e.store.GetActivitySummary(ctx, results[i].Note.ID)
		if err != nil {
			return err
		}
		if s == nil {
			continue
		}
		staleness := s.StalenessScore
		results[i].Staleness = &staleness
		if boost {
			results[i].Score *= 1 + (1-staleness)*0.5
		}
	}
	return nil
}

// dedupe keeps one result per note: the first one seen unless a later one
// scores strictly higher.
func dedupe(results []Result) []Result {
	pos := make(map[int64]int, len(results))
	out := results[:0]
	for _, r := range results {
		i, seen := pos[r.Note.ID]
		if !seen {
			pos[r.Note.ID] = len(out)
			out = append(out, r)
			continue
		}
		if r.Score > out[i].Score {
			out[i] = r
		}
	}
	return out
}

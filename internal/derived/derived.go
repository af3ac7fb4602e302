// Package derived computes activity analytics on top of the primary index:
// temporal activity from daily notes, per-note staleness and co-occurrence.
package derived

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"regexp"
	"time"

	"github.com/starford/sowilo/internal/index"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/parser"
)

var pathDateRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// Builder recomputes every derived table from scratch.
type Builder struct {
	db     *index.DB
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates a Builder over db.
func New(db *index.DB, logger *slog.Logger, opts ...Option) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Builder{db: db, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ComputeAll clears and rebuilds temporal activity, activity summaries and
// co-occurrence pairs in one transaction. It must run after the primary
// index is current.
func (b *Builder) ComputeAll(ctx context.Context) (*models.DerivedStats, error) {
	start := time.Now()
	today := b.now()
	stats := &models.DerivedStats{}

	err := b.db.InTx(ctx, func(tx *index.DB) error {
		if err := tx.ClearDerivedTables(ctx); err != nil {
			return err
		}
		if err := b.temporalActivity(ctx, tx, today, stats); err != nil {
			return err
		}
		if err := b.summaries(ctx, tx, today, stats); err != nil {
			return err
		}
		return b.cooccurrence(ctx, tx, stats)
	})
	if err != nil {
		return nil, err
	}

	stats.DurationMS = models.Since(start)
	b.logger.Info("derived: compute complete",
		slog.Int("dailies", stats.DailiesProcessed),
		slog.Int("activity", stats.ActivityRecords),
		slog.Int("summaries", stats.SummariesComputed),
		slog.Int("pairs", stats.CooccurrencePairs),
		slog.Int64("duration_ms", stats.DurationMS),
	)
	return stats, nil
}

func (b *Builder) temporalActivity(ctx context.Context, tx *index.DB, today time.Time, stats *models.DerivedStats) error {
	dailies, err := tx.GetNotesByType(ctx, models.NoteTypeDaily)
	if err != nil {
		return err
	}
	for _, d := range dailies {
		if err := ctx.Err(); err != nil {
			return err
		}
		date := ActivityDate(d, today.Location())
		links, err := tx.GetOutgoingLinks(ctx, d.ID)
		if err != nil {
			return err
		}
		for _, l := range links {
			if !l.Resolved() || *l.TargetID == d.ID {
				continue
			}
			added, err := tx.InsertTemporalActivity(ctx, *l.TargetID, d.ID, date, l.Context)
			if err != nil {
				return err
			}
			if added {
				stats.ActivityRecords++
			}
		}
		stats.DailiesProcessed++
		b.logger.Debug("derived: daily processed", slog.String("path", d.Path), slog.String("date", date))
	}
	return nil
}

func (b *Builder) summaries(ctx context.Context, tx *index.DB, today time.Time, stats *models.DerivedStats) error {
	cutoff30 := today.AddDate(0, 0, -30).Format(models.DateLayout)
	cutoff90 := today.AddDate(0, 0, -90).Format(models.DateLayout)

	aggs, err := tx.AggregateActivity(ctx, cutoff30, cutoff90)
	if err != nil {
		return err
	}
	for _, a := range aggs {
		var lastSeen *time.Time
		if t, err := time.ParseInLocation(models.DateLayout, a.LastSeen, today.Location()); err == nil {
			lastSeen = &t
		}
		if err := tx.UpsertActivitySummary(ctx, models.ActivitySummary{
			NoteID:         a.NoteID,
			LastSeenDate:   a.LastSeen,
			AccessCount30d: a.Count30d,
			AccessCount90d: a.Count90d,
			StalenessScore: StalenessScore(lastSeen, a.Count30d, a.Count90d, today),
		}); err != nil {
			return err
		}
		stats.SummariesComputed++
	}
	return nil
}

func (b *Builder) cooccurrence(ctx context.Context, tx *index.DB, stats *models.DerivedStats) error {
	pairs, err := tx.ComputeCooccurrencePairs(ctx)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		if err := tx.UpsertCooccurrence(ctx, p); err != nil {
			return err
		}
	}
	stats.CooccurrencePairs = len(pairs)
	return nil
}

// ActivityDate picks the date a daily note stands for: its front-matter
// "date", else the first valid YYYY-MM-DD in its path, else its modified
// day in loc.
func ActivityDate(n models.Note, loc *time.Location) string {
	var fm map[string]any
	if err := json.Unmarshal([]byte(n.FrontmatterJSON), &fm); err == nil {
		if s, ok := fm["date"].(string); ok {
			if t, ok := parser.ParseDate(s); ok {
				return t.Format(models.DateLayout)
			}
		}
	}
	for _, m := range pathDateRe.FindAllString(n.Path, -1) {
		if _, err := time.Parse(models.DateLayout, m); err == nil {
			return m
		}
	}
	return n.Modified.In(loc).Format(models.DateLayout)
}

// StalenessScore rates how inactive a note is, from 0 (fresh) to 1. A note
// never seen scores 0.84.
func StalenessScore(lastSeen *time.Time, count30d, count90d int, today time.Time) float64 {
	days := 365.0
	if lastSeen != nil {
		days = float64(civilDays(*lastSeen, today))
	}
	recency := math.Max(0, math.Min(days/90.0, 1.0))

	var activity float64
	switch {
	case count30d > 0:
		activity = 0.0
	case count90d > 0:
		activity = 0.3
	default:
		activity = 0.6
	}
	// Explicit conversions keep the compiler from fusing into an FMA.
	score := float64(recency*0.6) + float64(activity*0.4)
	return math.Max(0, math.Min(score, 1.0))
}

// civilDays counts calendar days from a to b, ignoring time of day.
func civilDays(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

package index

import (
	"context"
	"strings"

	"github.com/starford/sowilo/internal/models"
)

// Reader is the read-only view of the index used by search and the tool
// surface. Consumers should depend on it rather than on *DB so tests can
// substitute a fake.
type Reader interface {
	GetNoteByID(ctx context.Context, id int64) (*models.Note, error)
	GetNoteByPath(ctx context.Context, path string) (*models.Note, error)
	QueryNotes(ctx context.Context, f models.NoteFilter) ([]models.Note, error)
	GetOutgoingLinks(ctx context.Context, sourceID int64) ([]models.Link, error)
	GetBacklinks(ctx context.Context, targetID int64) ([]models.Link, error)
	GetCooccurrentNotes(ctx context.Context, noteID int64, limit int) ([]models.CooccurrentNote, error)
	GetActivitySummary(ctx context.Context, noteID int64) (*models.ActivitySummary, error)
	FindOrphans(ctx context.Context) ([]models.Note, error)
	GetStats(ctx context.Context) (*models.StoreStats, error)
}

// Verify *DB satisfies Reader at compile time.
var _ Reader = (*DB)(nil)

// FindNote looks a user-supplied path up with the same equivalences link
// resolution uses: exact, with ".md" appended, or with ".md" stripped.
// It returns nil when nothing matches.
func FindNote(ctx context.Context, r Reader, path string) (*models.Note, error) {
	candidates := []string{path, path + ".md"}
	if trimmed, ok := strings.CutSuffix(path, ".md"); ok && trimmed != "" {
		candidates = append(candidates, trimmed)
	}
	for _, p := range candidates {
		n, err := r.GetNoteByPath(ctx, p)
		if err != nil || n != nil {
			return n, err
		}
	}
	return nil, nil
}

// Backlinks returns the incoming links of noteID with their source paths.
func Backlinks(ctx context.Context, r Reader, noteID int64) ([]models.Backlink, error) {
	links, err := r.GetBacklinks(ctx, noteID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Backlink, 0, len(links))
	for _, l := range links {
		src, err := r.GetNoteByID(ctx, l.SourceID)
		if err != nil {
			return nil, err
		}
		if src == nil {
			continue
		}
		out = append(out, models.Backlink{Source: src.Path, Line: l.LineNumber, Text: l.LinkText, Context: l.Context})
	}
	return out, nil
}

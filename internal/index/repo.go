package index

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/models"
)

// timeLayout is fixed-width so that text comparison orders timestamps.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const noteColumns = `id, path, note_type, title, created, modified, frontmatter_json, content_hash`

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanNote reads the noteColumns of a row followed by any extra columns.
func scanNote(s rowScanner, extra ...any) (*models.Note, error) {
	var (
		n        models.Note
		typ      string
		created  sql.NullString
		modified string
	)
	dest := append([]any{&n.ID, &n.Path, &typ, &n.Title, &created, &modified, &n.FrontmatterJSON, &n.ContentHash}, extra...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	n.Type = models.NoteType(typ)
	t, err := parseTime(modified)
	if err != nil {
		return nil, err
	}
	n.Modified = t
	if created.Valid {
		if c, err := parseTime(created.String); err == nil {
			n.Created = &c
		}
	}
	return &n, nil
}

func (db *DB) queryNotes(ctx context.Context, op, query string, args ...any) ([]models.Note, error) {
	rows, err := db.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	defer rows.Close()

	var out []models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, apperr.Storage(op, err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage(op, err)
	}
	return out, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func noteDefaults(n *models.Note) {
	if n.Type == "" {
		n.Type = models.NoteTypeNone
	}
	if n.FrontmatterJSON == "" {
		n.FrontmatterJSON = "{}"
	}
}

// UpsertNote inserts or updates a note keyed by path and returns its id.
// The id of an existing path never changes. On insert a non-zero n.ID is
// used as the row id, which lets a full rebuild keep ids stable.
func (db *DB) UpsertNote(ctx context.Context, n models.Note) (int64, error) {
	if n.Path == "" {
		return 0, apperr.Invalid("index: upsert note", "note path is empty")
	}
	noteDefaults(&n)

	var id int64
	err := db.q.QueryRowContext(ctx, `
		INSERT INTO notes (id, path, note_type, title, created, modified, frontmatter_json, content_hash)
		VALUES (NULLIF(?, 0), ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			note_type        = excluded.note_type,
			title            = excluded.title,
			created          = excluded.created,
			modified         = excluded.modified,
			frontmatter_json = excluded.frontmatter_json,
			content_hash     = excluded.content_hash
		RETURNING id
	`, n.ID, n.Path, string(n.Type), n.Title, nullTime(n.Created), formatTime(n.Modified),
		n.FrontmatterJSON, n.ContentHash).Scan(&id)
	if err != nil {
		return 0, apperr.Storage("index: upsert note", err)
	}
	return id, nil
}

// UpdateNote overwrites every column of the note identified by n.ID.
func (db *DB) UpdateNote(ctx context.Context, n models.Note) error {
	if n.ID == 0 {
		return apperr.Invalid("index: update note", "note %q has no id", n.Path)
	}
	if n.Path == "" {
		return apperr.Invalid("index: update note", "note %d has an empty path", n.ID)
	}
	noteDefaults(&n)

	res, err := db.q.ExecContext(ctx, `
		UPDATE notes SET
			path = ?, note_type = ?, title = ?, created = ?, modified = ?,
			frontmatter_json = ?, content_hash = ?
		WHERE id = ?
	`, n.Path, string(n.Type), n.Title, nullTime(n.Created), formatTime(n.Modified),
		n.FrontmatterJSON, n.ContentHash, n.ID)
	if err != nil {
		return apperr.Storage("index: update note", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperr.Storage("index: update note", err)
	}
	if affected == 0 {
		return apperr.NotFound("index: update note", "no note with id %d", n.ID)
	}
	return nil
}

// GetNoteByPath returns the note at path, or nil if there is none.
func (db *DB) GetNoteByPath(ctx context.Context, path string) (*models.Note, error) {
	row := db.q.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE path = ?`, path)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage("index: get note by path", err)
	}
	return n, nil
}

// GetNoteByID returns the note with id, or nil if there is none.
func (db *DB) GetNoteByID(ctx context.Context, id int64) (*models.Note, error) {
	row := db.q.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage("index: get note by id", err)
	}
	return n, nil
}

// QueryNotes returns notes matching f, most recently modified first.
func (db *DB) QueryNotes(ctx context.Context, f models.NoteFilter) ([]models.Note, error) {
	var (
		where []string
		args  []any
	)
	if f.Type != "" {
		where = append(where, "note_type = ?")
		args = append(args, string(f.Type))
	}
	if f.PathPrefix != "" {
		// substr avoids LIKE wildcard escaping for prefixes containing % or _.
		where = append(where, "substr(path, 1, length(?)) = ?")
		args = append(args, f.PathPrefix, f.PathPrefix)
	}
	if !f.ModifiedAfter.IsZero() {
		where = append(where, "modified >= ?")
		args = append(args, formatTime(f.ModifiedAfter))
	}
	if !f.ModifiedBefore.IsZero() {
		where = append(where, "modified <= ?")
		args = append(args, formatTime(f.ModifiedBefore))
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + noteColumns + ` FROM notes`)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY modified DESC, id DESC")
	if f.Limit > 0 || f.Offset > 0 {
		limit := f.Limit
		if limit <= 0 {
			limit = -1
		}
		sb.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, limit, f.Offset)
	}
	return db.queryNotes(ctx, "index: query notes", sb.String(), args...)
}

// GetNotesByType returns every note of type t ordered by path.
func (db *DB) GetNotesByType(ctx context.Context, t models.NoteType) ([]models.Note, error) {
	return db.queryNotes(ctx, "index: notes by type",
		`SELECT `+noteColumns+` FROM notes WHERE note_type = ? ORDER BY path`, string(t))
}

// DeleteNote removes the note at path together with its outgoing links.
// It reports whether a note was removed.
func (db *DB) DeleteNote(ctx context.Context, path string) (bool, error) {
	res, err := db.q.ExecContext(ctx, `DELETE FROM notes WHERE path = ?`, path)
	if err != nil {
		return false, apperr.Storage("index: delete note", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Storage("index: delete note", err)
	}
	return affected > 0, nil
}

// NoteIDsByPath returns the current path → id mapping.
func (db *DB) NoteIDsByPath(ctx context.Context) (map[string]int64, error) {
	rows, err := db.q.QueryContext(ctx, `SELECT path, id FROM notes`)
	if err != nil {
		return nil, apperr.Storage("index: note ids", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			p  string
			id int64
		)
		if err := rows.Scan(&p, &id); err != nil {
			return nil, apperr.Storage("index: note ids", err)
		}
		out[p] = id
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("index: note ids", err)
	}
	return out, nil
}

// ClearAll wipes notes, links and every derived table.
func (db *DB) ClearAll(ctx context.Context) error {
	if err := db.ClearDerivedTables(ctx); err != nil {
		return err
	}
	for _, stmt := range []string{`DELETE FROM links`, `DELETE FROM notes`} {
		if _, err := db.q.ExecContext(ctx, stmt); err != nil {
			return apperr.Storage("index: clear", err)
		}
	}
	return nil
}

// CountNotes returns the number of indexed notes.
func (db *DB) CountNotes(ctx context.Context) (int, error) {
	return db.count(ctx, "index: count notes", `SELECT count(*) FROM notes`)
}

// CountByType returns note counts grouped by type.
func (db *DB) CountByType(ctx context.Context) (map[models.NoteType]int, error) {
	rows, err := db.q.QueryContext(ctx, `SELECT note_type, count(*) FROM notes GROUP BY note_type`)
	if err != nil {
		return nil, apperr.Storage("index: count by type", err)
	}
	defer rows.Close()

	out := make(map[models.NoteType]int)
	for rows.Next() {
		var (
			t string
			n int
		)
		if err := rows.Scan(&t, &n); err != nil {
			return nil, apperr.Storage("index: count by type", err)
		}
		out[models.NoteType(t)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("index: count by type", err)
	}
	return out, nil
}

func (db *DB) count(ctx context.Context, op, query string, args ...any) (int, error) {
	var n int
	if err := db.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, apperr.Storage(op, err)
	}
	return n, nil
}

// GetStats returns table sizes for reporting.
func (db *DB) GetStats(ctx context.Context) (*models.StoreStats, error) {
	var (
		s   models.StoreStats
		err error
	)
	if s.Notes, err = db.CountNotes(ctx); err != nil {
		return nil, err
	}
	if s.Links, err = db.CountLinks(ctx); err != nil {
		return nil, err
	}
	if s.BrokenLinks, err = db.CountBrokenLinks(ctx); err != nil {
		return nil, err
	}
	if s.ByType, err = db.CountByType(ctx); err != nil {
		return nil, err
	}
	if s.TemporalActivity, err = db.CountTemporalActivity(ctx); err != nil {
		return nil, err
	}
	return &s, nil
}

package index

import (
	"context"
	"database/sql"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/models"
)

const linkColumns = `id, source_id, target_id, target_path, link_text, link_type, context, line_number`

// pathMatch is true when note n is the target of links.target_path under
// one of the three equivalences: exact, with ".md" appended, or with a
// trailing ".md" stripped.
const pathMatch = `(
	n.path = links.target_path
	OR n.path = links.target_path || '.md'
	OR (substr(links.target_path, -3) = '.md'
		AND n.path = substr(links.target_path, 1, length(links.target_path) - 3))
)`

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(i int) any {
	if i == 0 {
		return nil
	}
	return i
}

func scanLink(s rowScanner) (*models.Link, error) {
	var (
		l        models.Link
		target   sql.NullInt64
		text     sql.NullString
		linkType string
		snippet  sql.NullString
		line     sql.NullInt64
	)
	if err := s.Scan(&l.ID, &l.SourceID, &target, &l.TargetPath, &text, &linkType, &snippet, &line); err != nil {
		return nil, err
	}
	if target.Valid {
		id := target.Int64
		l.TargetID = &id
	}
	l.LinkText = text.String
	l.Type = models.LinkType(linkType)
	l.Context = snippet.String
	l.LineNumber = int(line.Int64)
	return &l, nil
}

func (db *DB) queryLinks(ctx context.Context, op, query string, args ...any) ([]models.Link, error) {
	rows, err := db.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	defer rows.Close()

	var out []models.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, apperr.Storage(op, err)
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage(op, err)
	}
	return out, nil
}

// InsertLink stores l as an unresolved link and returns its id. l.TargetID
// is ignored: only ResolveLinkTargets sets targets.
func (db *DB) InsertLink(ctx context.Context, l models.Link) (int64, error) {
	if l.SourceID == 0 {
		return 0, apperr.Invalid("index: insert link", "link to %q has no source id", l.TargetPath)
	}
	if l.TargetPath == "" {
		return 0, apperr.Invalid("index: insert link", "link from note %d has an empty target", l.SourceID)
	}
	if l.Type == "" {
		l.Type = models.LinkTypeWiki
	}
	res, err := db.q.ExecContext(ctx, `
		INSERT INTO links (source_id, target_id, target_path, link_text, link_type, context, line_number)
		VALUES (?, NULL, ?, ?, ?, ?, ?)
	`, l.SourceID, l.TargetPath, nullString(l.LinkText), string(l.Type), nullString(l.Context), nullInt(l.LineNumber))
	if err != nil {
		return 0, apperr.Storage("index: insert link", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Storage("index: insert link", err)
	}
	return id, nil
}

// DeleteLinksFrom removes every outgoing link of sourceID and returns how many were removed.
func (db *DB) DeleteLinksFrom(ctx context.Context, sourceID int64) (int, error) {
	res, err := db.q.ExecContext(ctx, `DELETE FROM links WHERE source_id = ?`, sourceID)
	if err != nil {
		return 0, apperr.Storage("index: delete links", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Storage("index: delete links", err)
	}
	return int(n), nil
}

// GetOutgoingLinks returns the links written in note sourceID, in insertion order.
func (db *DB) GetOutgoingLinks(ctx context.Context, sourceID int64) ([]models.Link, error) {
	return db.queryLinks(ctx, "index: outgoing links",
		`SELECT `+linkColumns+` FROM links WHERE source_id = ? ORDER BY id`, sourceID)
}

// GetBacklinks returns the resolved links that point at targetID.
func (db *DB) GetBacklinks(ctx context.Context, targetID int64) ([]models.Link, error) {
	return db.queryLinks(ctx, "index: backlinks",
		`SELECT `+linkColumns+` FROM links WHERE target_id = ? ORDER BY id`, targetID)
}

// ResolveLinkTargets fills target_id for every unresolved link whose
// target_path names an existing note and returns how many links it resolved.
// Links that are already resolved are not re-checked. Candidates are tried
// in order: exact path, path with ".md" appended, path with ".md" stripped.
func (db *DB) ResolveLinkTargets(ctx context.Context) (int, error) {
	res, err := db.q.ExecContext(ctx, `
		UPDATE links
		SET target_id = COALESCE(
			(SELECT n.id FROM notes n WHERE n.path = links.target_path),
			(SELECT n.id FROM notes n WHERE n.path = links.target_path || '.md'),
			(SELECT n.id FROM notes n
			 WHERE substr(links.target_path, -3) = '.md'
			   AND n.path = substr(links.target_path, 1, length(links.target_path) - 3))
		)
		WHERE target_id IS NULL
		  AND EXISTS (SELECT 1 FROM notes n WHERE `+pathMatch+`)
	`)
	if err != nil {
		return 0, apperr.Storage("index: resolve links", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Storage("index: resolve links", err)
	}
	return int(n), nil
}

// CountLinks returns the number of stored links.
func (db *DB) CountLinks(ctx context.Context) (int, error) {
	return db.count(ctx, "index: count links", `SELECT count(*) FROM links`)
}

// CountBrokenLinks returns the number of links without a resolved target.
func (db *DB) CountBrokenLinks(ctx context.Context) (int, error) {
	return db.count(ctx, "index: count broken links", `SELECT count(*) FROM links WHERE target_id IS NULL`)
}

// FindOrphans returns notes that no resolved link points at, ordered by path.
func (db *DB) FindOrphans(ctx context.Context) ([]models.Note, error) {
	return db.queryNotes(ctx, "index: find orphans", `
		SELECT `+noteColumns+` FROM notes n
		WHERE NOT EXISTS (SELECT 1 FROM links l WHERE l.target_id = n.id)
		ORDER BY path
	`)
}

// ListLinks returns every stored link in insertion order.
func (db *DB) ListLinks(ctx context.Context) ([]models.Link, error) {
	return db.queryLinks(ctx, "index: list links", `SELECT `+linkColumns+` FROM links ORDER BY id`)
}

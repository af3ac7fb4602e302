package index

import (
	"context"
	"database/sql"
	"errors"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/models"
)

// ClearDerivedTables empties temporal_activity, activity_summary and cooccurrence.
func (db *DB) ClearDerivedTables(ctx context.Context) error {
	for _, stmt := range []string{
		`DELETE FROM cooccurrence`,
		`DELETE FROM activity_summary`,
		`DELETE FROM temporal_activity`,
	} {
		if _, err := db.q.ExecContext(ctx, stmt); err != nil {
			return apperr.Storage("index: clear derived", err)
		}
	}
	return nil
}

// InsertTemporalActivity records that dailyID referenced targetID on date
// (YYYY-MM-DD). Repeated references on the same day collapse into one row;
// the return value reports whether a new row was written.
func (db *DB) InsertTemporalActivity(ctx context.Context, targetID, dailyID int64, date, snippet string) (bool, error) {
	res, err := db.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO temporal_activity (target_note_id, daily_note_id, activity_date, context)
		VALUES (?, ?, ?, ?)
	`, targetID, dailyID, date, nullString(snippet))
	if err != nil {
		return false, apperr.Storage("index: insert temporal activity", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Storage("index: insert temporal activity", err)
	}
	return n > 0, nil
}

// CountTemporalActivity returns the number of temporal activity rows.
func (db *DB) CountTemporalActivity(ctx context.Context) (int, error) {
	return db.count(ctx, "index: count temporal activity", `SELECT count(*) FROM temporal_activity`)
}

// AggregateActivity tallies, for every referenced note, the number of
// distinct reference dates on or after each cutoff and the latest date.
// Cutoffs are YYYY-MM-DD strings.
func (db *DB) AggregateActivity(ctx context.Context, cutoff30d, cutoff90d string) ([]models.ActivityAggregate, error) {
	rows, err := db.q.QueryContext(ctx, `
		SELECT target_note_id,
		       MAX(activity_date),
		       COUNT(DISTINCT CASE WHEN activity_date >= ? THEN activity_date END),
		       COUNT(DISTINCT CASE WHEN activity_date >= ? THEN activity_date END)
		FROM temporal_activity
		GROUP BY target_note_id
		ORDER BY target_note_id
	`, cutoff30d, cutoff90d)
	if err != nil {
		return nil, apperr.Storage("index: aggregate activity", err)
	}
	defer rows.Close()

	var out []models.ActivityAggregate
	for rows.Next() {
		var (
			a        models.ActivityAggregate
			lastSeen sql.NullString
		)
		if err := rows.Scan(&a.NoteID, &lastSeen, &a.Count30d, &a.Count90d); err != nil {
			return nil, apperr.Storage("index: aggregate activity", err)
		}
		a.LastSeen = lastSeen.String
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("index: aggregate activity", err)
	}
	return out, nil
}

// UpsertActivitySummary writes the summary for s.NoteID.
func (db *DB) UpsertActivitySummary(ctx context.Context, s models.ActivitySummary) error {
	if s.StalenessScore < 0 || s.StalenessScore > 1 {
		return apperr.Invalid("index: upsert activity summary",
			"staleness %v for note %d is outside [0,1]", s.StalenessScore, s.NoteID)
	}
	_, err := db.q.ExecContext(ctx, `
		INSERT INTO activity_summary (note_id, last_seen_date, access_count_30d, access_count_90d, staleness_score)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(note_id) DO UPDATE SET
			last_seen_date   = excluded.last_seen_date,
			access_count_30d = excluded.access_count_30d,
			access_count_90d = excluded.access_count_90d,
			staleness_score  = excluded.staleness_score
	`, s.NoteID, nullString(s.LastSeenDate), s.AccessCount30d, s.AccessCount90d, s.StalenessScore)
	if err != nil {
		return apperr.Storage("index: upsert activity summary", err)
	}
	return nil
}

// GetActivitySummary returns the summary for noteID, or nil if none was computed.
func (db *DB) GetActivitySummary(ctx context.Context, noteID int64) (*models.ActivitySummary, error) {
	var (
		s        models.ActivitySummary
		lastSeen sql.NullString
	)
	err := db.q.QueryRowContext(ctx, `
		SELECT note_id, last_seen_date, access_count_30d, access_count_90d, staleness_score
		FROM activity_summary WHERE note_id = ?
	`, noteID).Scan(&s.NoteID, &lastSeen, &s.AccessCount30d, &s.AccessCount90d, &s.StalenessScore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage("index: get activity summary", err)
	}
	s.LastSeenDate = lastSeen.String
	return &s, nil
}

// ComputeCooccurrencePairs derives note pairs referenced by the same daily
// note on the same date. Pairs are canonical: NoteAID < NoteBID.
func (db *DB) ComputeCooccurrencePairs(ctx context.Context) ([]models.Cooccurrence, error) {
	rows, err := db.q.QueryContext(ctx, `
		SELECT a.target_note_id, b.target_note_id, COUNT(*), MAX(a.activity_date)
		FROM temporal_activity a
		JOIN temporal_activity b
		  ON a.daily_note_id = b.daily_note_id
		 AND a.activity_date = b.activity_date
		 AND a.target_note_id < b.target_note_id
		GROUP BY a.target_note_id, b.target_note_id
		ORDER BY a.target_note_id, b.target_note_id
	`)
	if err != nil {
		return nil, apperr.Storage("index: compute cooccurrence", err)
	}
	defer rows.Close()

	var out []models.Cooccurrence
	for rows.Next() {
		var (
			c      models.Cooccurrence
			recent sql.NullString
		)
		if err := rows.Scan(&c.NoteAID, &c.NoteBID, &c.SharedCount, &recent); err != nil {
			return nil, apperr.Storage("index: compute cooccurrence", err)
		}
		c.MostRecentDate = recent.String
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("index: compute cooccurrence", err)
	}
	return out, nil
}

// UpsertCooccurrence stores c, swapping the ids into canonical order if needed.
func (db *DB) UpsertCooccurrence(ctx context.Context, c models.Cooccurrence) error {
	if c.NoteAID == c.NoteBID {
		return apperr.Invalid("index: upsert cooccurrence", "note %d cannot co-occur with itself", c.NoteAID)
	}
	if c.NoteAID > c.NoteBID {
		c.NoteAID, c.NoteBID = c.NoteBID, c.NoteAID
	}
	_, err := db.q.ExecContext(ctx, `
		INSERT INTO cooccurrence (note_a_id, note_b_id, shared_count, most_recent_date)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(note_a_id, note_b_id) DO UPDATE SET
			shared_count     = excluded.shared_count,
			most_recent_date = excluded.most_recent_date
	`, c.NoteAID, c.NoteBID, c.SharedCount, nullString(c.MostRecentDate))
	if err != nil {
		return apperr.Storage("index: upsert cooccurrence", err)
	}
	return nil
}

// GetCooccurrentNotes returns up to limit notes that co-occur with noteID,
// strongest first.
func (db *DB) GetCooccurrentNotes(ctx context.Context, noteID int64, limit int) ([]models.CooccurrentNote, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.q.QueryContext(ctx, `
		SELECT n.id, n.path, n.note_type, n.title, n.created, n.modified, n.frontmatter_json, n.content_hash,
		       c.shared_count
		FROM cooccurrence c
		JOIN notes n ON n.id = CASE WHEN c.note_a_id = ? THEN c.note_b_id ELSE c.note_a_id END
		WHERE c.note_a_id = ? OR c.note_b_id = ?
		ORDER BY c.shared_count DESC, c.most_recent_date DESC, n.id
		LIMIT ?
	`, noteID, noteID, noteID, limit)
	if err != nil {
		return nil, apperr.Storage("index: cooccurrent notes", err)
	}
	defer rows.Close()

	var out []models.CooccurrentNote
	for rows.Next() {
		var shared int
		n, err := scanNote(rows, &shared)
		if err != nil {
			return nil, apperr.Storage("index: cooccurrent notes", err)
		}
		cn := models.CooccurrentNote{Note: *n, SharedCount: shared}
		out = append(out, cn)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("index: cooccurrent notes", err)
	}
	return out, nil
}

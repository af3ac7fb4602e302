package models

import "time"

// DateLayout is the canonical on-disk format of calendar dates.
const DateLayout = "2006-01-02"

// ActivityAggregate is the raw per-note reference tally used to derive
// an ActivitySummary.
type ActivityAggregate struct {
	NoteID   int64
	LastSeen string
	Count30d int
	Count90d int
}

// ActivitySummary is the derived per-note activity snapshot.
type ActivitySummary struct {
	NoteID         int64   `json:"note_id"`
	LastSeenDate   string  `json:"last_seen_date,omitempty"`
	AccessCount30d int     `json:"access_count_30d"`
	AccessCount90d int     `json:"access_count_90d"`
	StalenessScore float64 `json:"staleness_score"`
}

// Cooccurrence is a pair of notes referenced by the same daily note on the
// same date. NoteAID is always smaller than NoteBID.
type Cooccurrence struct {
	NoteAID        int64  `json:"note_a_id"`
	NoteBID        int64  `json:"note_b_id"`
	SharedCount    int    `json:"shared_count"`
	MostRecentDate string `json:"most_recent_date,omitempty"`
}

// CooccurrentNote is a note together with how often it co-occurred with
// the note it was looked up for.
type CooccurrentNote struct {
	Note        Note `json:"note"`
	SharedCount int  `json:"shared_count"`
}

// IndexStats summarises a full reindex.
type IndexStats struct {
	FilesFound   int   `json:"files_found"`
	NotesIndexed int   `json:"notes_indexed"`
	NotesSkipped int   `json:"notes_skipped"`
	LinksIndexed int   `json:"links_indexed"`
	BrokenLinks  int   `json:"broken_links"`
	DurationMS   int64 `json:"duration_ms"`
}

// DerivedStats summarises a derived-index pass.
type DerivedStats struct {
	DailiesProcessed  int   `json:"dailies_processed"`
	ActivityRecords   int   `json:"activity_records"`
	SummariesComputed int   `json:"summaries_computed"`
	CooccurrencePairs int   `json:"cooccurrence_pairs"`
	DurationMS        int64 `json:"duration_ms"`
}

// StoreStats is a snapshot of table sizes.
type StoreStats struct {
	Notes            int              `json:"notes"`
	Links            int              `json:"links"`
	BrokenLinks      int              `json:"broken_links"`
	ByType           map[NoteType]int `json:"by_type"`
	TemporalActivity int              `json:"temporal_activity"`
}

// Since returns whole milliseconds elapsed since start.
func Since(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

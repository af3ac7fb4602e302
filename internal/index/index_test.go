package index

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func addNote(t *testing.T, db *DB, path string, typ models.NoteType) int64 {
	t.Helper()
	id, err := db.UpsertNote(context.Background(), models.Note{
		Path:     path,
		Type:     typ,
		Title:    path,
		Modified: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return id
}

func addLink(t *testing.T, db *DB, source int64, target string) int64 {
	t.Helper()
	id, err := db.InsertLink(context.Background(), models.Link{SourceID: source, TargetPath: target})
	require.NoError(t, err)
	return id
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"notes", "links", "temporal_activity", "activity_summary", "cooccurrence"} {
		var n int
		require.NoError(t, db.conn.QueryRow(`SELECT count(*) FROM `+table).Scan(&n), table)
	}
	// Applying the schema again is harmless.
	require.NoError(t, db.migrate(context.Background()))

	var version int
	require.NoError(t, db.conn.QueryRow(`PRAGMA user_version`).Scan(&version))
	assert.Equal(t, schemaVersion, version)
}

func TestOpenAt(t *testing.T) {
	vault := t.TempDir()
	db, err := OpenAt(vault, time.Second)
	require.NoError(t, err)
	addNote(t, db, "a.md", models.NoteTypeNone)
	require.NoError(t, db.Close())

	_, err = os.Stat(filepath.Join(vault, DirName, FileName))
	require.NoError(t, err)

	db, err = OpenAt(vault, 0)
	require.NoError(t, err)
	defer db.Close()
	n, err := db.CountNotes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = raw.Exec(`PRAGMA user_version = 99`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	_, err = Open(path, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrSchema)
}

func TestOpenPathWithURIDelimiters(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vault? #1 100%")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, FileName)

	db, err := Open(path, 1500*time.Millisecond)
	require.NoError(t, err)
	addNote(t, db, "a.md", models.NoteTypeNone)

	var timeout int
	require.NoError(t, db.conn.QueryRow(`PRAGMA busy_timeout`).Scan(&timeout))
	assert.Equal(t, 1500, timeout)
	var mode string
	require.NoError(t, db.conn.QueryRow(`PRAGMA journal_mode`).Scan(&mode))
	assert.Equal(t, "wal", mode)
	require.NoError(t, db.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)
	entries, err := os.ReadDir(filepath.Dir(dir))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no stray file created next to the vault dir")
}

func TestUpsertNoteKeepsID(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	id1, err := db.UpsertNote(ctx, models.Note{Path: "a.md", Title: "First", ContentHash: "h1", Modified: time.Now()})
	require.NoError(t, err)
	id2, err := db.UpsertNote(ctx, models.Note{Path: "a.md", Title: "Second", ContentHash: "h2", Modified: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	n, err := db.GetNoteByPath(ctx, "a.md")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "Second", n.Title)
	assert.Equal(t, "h2", n.ContentHash)
	assert.Equal(t, models.NoteTypeNone, n.Type)
	assert.Equal(t, "{}", n.FrontmatterJSON)
}

func TestUpsertNoteExplicitID(t *testing.T) {
	db := testDB(t)
	id, err := db.UpsertNote(context.Background(), models.Note{ID: 42, Path: "a.md", Modified: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestUpsertNoteEmptyPath(t *testing.T) {
	db := testDB(t)
	_, err := db.UpsertNote(context.Background(), models.Note{})
	assert.ErrorIs(t, err, apperr.ErrInvalidData)
}

func TestNoteRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	created := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	modified := time.Date(2026, 2, 1, 10, 0, 0, 123, time.UTC)

	id, err := db.UpsertNote(ctx, models.Note{
		Path:            "projects/x.md",
		Type:            models.NoteTypeProject,
		Title:           "X",
		Created:         &created,
		Modified:        modified,
		FrontmatterJSON: `{"type":"project"}`,
		ContentHash:     "abc",
	})
	require.NoError(t, err)

	n, err := db.GetNoteByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "projects/x.md", n.Path)
	assert.Equal(t, models.NoteTypeProject, n.Type)
	require.NotNil(t, n.Created)
	assert.True(t, created.Equal(*n.Created))
	assert.True(t, modified.Equal(n.Modified))
	assert.Equal(t, `{"type":"project"}`, n.FrontmatterJSON)
}

func TestLookupAbsentIsNotAnError(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	n, err := db.GetNoteByPath(ctx, "nope.md")
	require.NoError(t, err)
	assert.Nil(t, n)

	n, err = db.GetNoteByID(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, n)

	s, err := db.GetActivitySummary(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestUpdateNote(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	err := db.UpdateNote(ctx, models.Note{Path: "a.md"})
	assert.ErrorIs(t, err, apperr.ErrInvalidData)

	err = db.UpdateNote(ctx, models.Note{ID: 7, Path: "a.md", Modified: time.Now()})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	id := addNote(t, db, "a.md", models.NoteTypeNone)
	require.NoError(t, db.UpdateNote(ctx, models.Note{ID: id, Path: "b.md", Title: "B", Modified: time.Now()}))

	n, err := db.GetNoteByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "b.md", n.Path)
	assert.Equal(t, "B", n.Title)
}

func TestQueryNotes(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, n := range []models.Note{
		{Path: "daily/2026-05-01.md", Type: models.NoteTypeDaily},
		{Path: "daily/2026-05-02.md", Type: models.NoteTypeDaily},
		{Path: "projects/p.md", Type: models.NoteTypeProject},
		{Path: "100%_done.md", Type: models.NoteTypeNone},
	} {
		n.Modified = base.Add(time.Duration(i) * time.Hour)
		_, err := db.UpsertNote(ctx, n)
		require.NoError(t, err)
	}

	all, err := db.QueryNotes(ctx, models.NoteFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "100%_done.md", all[0].Path, "newest first")
	assert.Equal(t, "daily/2026-05-01.md", all[3].Path)

	dailies, err := db.QueryNotes(ctx, models.NoteFilter{Type: models.NoteTypeDaily})
	require.NoError(t, err)
	require.Len(t, dailies, 2)
	assert.Equal(t, "daily/2026-05-02.md", dailies[0].Path)

	prefixed, err := db.QueryNotes(ctx, models.NoteFilter{PathPrefix: "100%"})
	require.NoError(t, err)
	require.Len(t, prefixed, 1)

	bounded, err := db.QueryNotes(ctx, models.NoteFilter{
		ModifiedAfter:  base.Add(time.Hour),
		ModifiedBefore: base.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, bounded, 2)
	assert.Equal(t, "projects/p.md", bounded[0].Path)

	page, err := db.QueryNotes(ctx, models.NoteFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "projects/p.md", page[0].Path)

	tail, err := db.QueryNotes(ctx, models.NoteFilter{Offset: 3})
	require.NoError(t, err)
	require.Len(t, tail, 1)
}

func TestDeleteNoteCascadesLinks(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	a := addNote(t, db, "a.md", models.NoteTypeNone)
	addNote(t, db, "b.md", models.NoteTypeNone)
	addLink(t, db, a, "b")

	deleted, err := db.DeleteNote(ctx, "a.md")
	require.NoError(t, err)
	assert.True(t, deleted)

	n, err := db.CountLinks(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	deleted, err = db.DeleteNote(ctx, "a.md")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDeleteTargetUnresolvesLink(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	a := addNote(t, db, "a.md", models.NoteTypeNone)
	addNote(t, db, "b.md", models.NoteTypeNone)
	addLink(t, db, a, "b")
	_, err := db.ResolveLinkTargets(ctx)
	require.NoError(t, err)

	_, err = db.DeleteNote(ctx, "b.md")
	require.NoError(t, err)

	links, err := db.GetOutgoingLinks(ctx, a)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.False(t, links[0].Resolved())
}

func TestInsertLinkValidation(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := db.InsertLink(ctx, models.Link{TargetPath: "x"})
	assert.ErrorIs(t, err, apperr.ErrInvalidData)

	a := addNote(t, db, "a.md", models.NoteTypeNone)
	_, err = db.InsertLink(ctx, models.Link{SourceID: a})
	assert.ErrorIs(t, err, apperr.ErrInvalidData)

	// Source must exist.
	_, err = db.InsertLink(ctx, models.Link{SourceID: a + 100, TargetPath: "x"})
	assert.ErrorIs(t, err, apperr.ErrStorage)
}

func TestInsertLinkIgnoresTargetID(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	a := addNote(t, db, "a.md", models.NoteTypeNone)

	_, err := db.InsertLink(ctx, models.Link{
		SourceID:   a,
		TargetID:   &a,
		TargetPath: "a",
		LinkText:   "self",
		Type:       models.LinkTypeMarkdown,
		Context:    "see [self](a.md)",
		LineNumber: 3,
	})
	require.NoError(t, err)

	links, err := db.GetOutgoingLinks(ctx, a)
	require.NoError(t, err)
	require.Len(t, links, 1)
	l := links[0]
	assert.Nil(t, l.TargetID)
	assert.Equal(t, "self", l.LinkText)
	assert.Equal(t, models.LinkTypeMarkdown, l.Type)
	assert.Equal(t, "see [self](a.md)", l.Context)
	assert.Equal(t, 3, l.LineNumber)
}

func TestDeleteLinksFrom(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	a := addNote(t, db, "a.md", models.NoteTypeNone)
	b := addNote(t, db, "b.md", models.NoteTypeNone)
	addLink(t, db, a, "x")
	addLink(t, db, a, "y")
	addLink(t, db, b, "x")

	n, err := db.DeleteLinksFrom(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := db.ListLinks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, b, all[0].SourceID)
}

func TestResolveLinkTargetsEquivalences(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	src := addNote(t, db, "src.md", models.NoteTypeNone)
	withExt := addNote(t, db, "note.md", models.NoteTypeNone)
	bare := addNote(t, db, "plain", models.NoteTypeNone)

	exact := addLink(t, db, src, "note.md")
	appended := addLink(t, db, src, "note")
	stripped := addLink(t, db, src, "plain.md")
	addLink(t, db, src, "missing")

	n, err := db.ResolveLinkTargets(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	want := map[int64]int64{exact: withExt, appended: withExt, stripped: bare}
	links, err := db.GetOutgoingLinks(ctx, src)
	require.NoError(t, err)
	for _, l := range links {
		target, ok := want[l.ID]
		if !ok {
			assert.False(t, l.Resolved(), l.TargetPath)
			continue
		}
		require.True(t, l.Resolved(), l.TargetPath)
		assert.Equal(t, target, *l.TargetID, l.TargetPath)
	}

	broken, err := db.CountBrokenLinks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, broken)
}

func TestResolveLinkTargetsIdempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	src := addNote(t, db, "src.md", models.NoteTypeNone)
	addNote(t, db, "a.md", models.NoteTypeNone)
	addLink(t, db, src, "a")
	addLink(t, db, src, "gone")

	first, err := db.ResolveLinkTargets(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first)
	before, err := db.ListLinks(ctx)
	require.NoError(t, err)

	second, err := db.ResolveLinkTargets(ctx)
	require.NoError(t, err)
	assert.Zero(t, second)
	after, err := db.ListLinks(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestResolvePrefersExactPath(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	src := addNote(t, db, "src.md", models.NoteTypeNone)
	addNote(t, db, "x.md", models.NoteTypeNone)
	exact := addNote(t, db, "x", models.NoteTypeNone)
	addLink(t, db, src, "x")

	_, err := db.ResolveLinkTargets(ctx)
	require.NoError(t, err)

	back, err := db.GetBacklinks(ctx, exact)
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, src, back[0].SourceID)
}

func TestResolvePrefersAppendedOverStripped(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	src := addNote(t, db, "src.md", models.NoteTypeNone)
	appended := addNote(t, db, "z.md.md", models.NoteTypeNone)
	addNote(t, db, "z", models.NoteTypeNone)
	link := addLink(t, db, src, "z.md")

	n, err := db.ResolveLinkTargets(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	links, err := db.GetOutgoingLinks(ctx, src)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, link, links[0].ID)
	require.True(t, links[0].Resolved())
	assert.Equal(t, appended, *links[0].TargetID)
}

func TestFindOrphans(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	a := addNote(t, db, "a.md", models.NoteTypeNone)
	addNote(t, db, "b.md", models.NoteTypeNone)
	addNote(t, db, "c.md", models.NoteTypeNone)
	addLink(t, db, a, "b")
	addLink(t, db, a, "nowhere")

	orphans, err := db.FindOrphans(ctx)
	require.NoError(t, err)
	assert.Len(t, orphans, 3, "unresolved links do not count")

	_, err = db.ResolveLinkTargets(ctx)
	require.NoError(t, err)
	orphans, err = db.FindOrphans(ctx)
	require.NoError(t, err)
	var paths []string
	for _, n := range orphans {
		paths = append(paths, n.Path)
	}
	assert.Equal(t, []string{"a.md", "c.md"}, paths)
}

func TestClearAll(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	a := addNote(t, db, "a.md", models.NoteTypeNone)
	b := addNote(t, db, "b.md", models.NoteTypeNone)
	addLink(t, db, a, "b")
	_, err := db.InsertTemporalActivity(ctx, b, a, "2026-01-01", "")
	require.NoError(t, err)

	require.NoError(t, db.ClearAll(ctx))

	stats, err := db.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Notes)
	assert.Zero(t, stats.Links)
	assert.Zero(t, stats.TemporalActivity)
}

func TestInTxRollsBack(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.InTx(ctx, func(tx *DB) error {
		if _, err := tx.UpsertNote(ctx, models.Note{Path: "a.md", Modified: time.Now()}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := db.CountNotes(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, db.InTx(ctx, func(tx *DB) error {
		return tx.InTx(ctx, func(inner *DB) error {
			_, err := inner.UpsertNote(ctx, models.Note{Path: "b.md", Modified: time.Now()})
			return err
		})
	}))
	n, err = db.CountNotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCountByTypeAndStats(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	a := addNote(t, db, "daily/2026-01-01.md", models.NoteTypeDaily)
	addNote(t, db, "daily/2026-01-02.md", models.NoteTypeDaily)
	addNote(t, db, "p.md", models.NoteTypeProject)
	addLink(t, db, a, "p")
	addLink(t, db, a, "missing")
	_, err := db.ResolveLinkTargets(ctx)
	require.NoError(t, err)

	stats, err := db.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Notes)
	assert.Equal(t, 2, stats.Links)
	assert.Equal(t, 1, stats.BrokenLinks)
	assert.Equal(t, map[models.NoteType]int{models.NoteTypeDaily: 2, models.NoteTypeProject: 1}, stats.ByType)

	dailies, err := db.GetNotesByType(ctx, models.NoteTypeDaily)
	require.NoError(t, err)
	require.Len(t, dailies, 2)
	assert.Equal(t, "daily/2026-01-01.md", dailies[0].Path)
}

func TestTemporalActivityDeduplicates(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	d := addNote(t, db, "daily/2026-01-01.md", models.NoteTypeDaily)
	p := addNote(t, db, "p.md", models.NoteTypeNone)

	added, err := db.InsertTemporalActivity(ctx, p, d, "2026-01-01", "worked on [[p]]")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = db.InsertTemporalActivity(ctx, p, d, "2026-01-01", "again")
	require.NoError(t, err)
	assert.False(t, added)

	n, err := db.CountTemporalActivity(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAggregateActivity(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	d1 := addNote(t, db, "d1.md", models.NoteTypeDaily)
	d2 := addNote(t, db, "d2.md", models.NoteTypeDaily)
	p := addNote(t, db, "p.md", models.NoteTypeNone)

	for _, row := range []struct {
		daily int64
		date  string
	}{
		{d1, "2026-10-10"},
		{d2, "2026-10-10"},
		{d1, "2026-09-01"},
		{d1, "2026-06-01"},
	} {
		_, err := db.InsertTemporalActivity(ctx, p, row.daily, row.date, "")
		require.NoError(t, err)
	}

	aggs, err := db.AggregateActivity(ctx, "2026-09-16", "2026-07-18")
	require.NoError(t, err)
	require.Len(t, aggs, 1)
	assert.Equal(t, models.ActivityAggregate{NoteID: p, LastSeen: "2026-10-10", Count30d: 1, Count90d: 2}, aggs[0])
}

func TestActivitySummary(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := addNote(t, db, "p.md", models.NoteTypeNone)

	err := db.UpsertActivitySummary(ctx, models.ActivitySummary{NoteID: p, StalenessScore: 1.5})
	assert.ErrorIs(t, err, apperr.ErrInvalidData)

	require.NoError(t, db.UpsertActivitySummary(ctx, models.ActivitySummary{NoteID: p, StalenessScore: 0.9}))
	require.NoError(t, db.UpsertActivitySummary(ctx, models.ActivitySummary{
		NoteID: p, LastSeenDate: "2026-10-01", AccessCount30d: 2, AccessCount90d: 3, StalenessScore: 0.1,
	}))

	s, err := db.GetActivitySummary(ctx, p)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "2026-10-01", s.LastSeenDate)
	assert.Equal(t, 2, s.AccessCount30d)
	assert.Equal(t, 3, s.AccessCount90d)
	assert.InDelta(t, 0.1, s.StalenessScore, 1e-9)
}

func TestCooccurrence(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	d1 := addNote(t, db, "d1.md", models.NoteTypeDaily)
	d2 := addNote(t, db, "d2.md", models.NoteTypeDaily)
	a := addNote(t, db, "a.md", models.NoteTypeNone)
	b := addNote(t, db, "b.md", models.NoteTypeNone)
	c := addNote(t, db, "c.md", models.NoteTypeNone)

	for _, row := range []struct {
		target, daily int64
		date          string
	}{
		{a, d1, "2026-01-01"},
		{b, d1, "2026-01-01"},
		{c, d1, "2026-01-01"},
		{a, d2, "2026-01-05"},
		{b, d2, "2026-01-05"},
	} {
		_, err := db.InsertTemporalActivity(ctx, row.target, row.daily, row.date, "")
		require.NoError(t, err)
	}

	pairs, err := db.ComputeCooccurrencePairs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Cooccurrence{
		{NoteAID: a, NoteBID: b, SharedCount: 2, MostRecentDate: "2026-01-05"},
		{NoteAID: a, NoteBID: c, SharedCount: 1, MostRecentDate: "2026-01-01"},
		{NoteAID: b, NoteBID: c, SharedCount: 1, MostRecentDate: "2026-01-01"},
	}, pairs)

	for _, p := range pairs {
		// Reversed ids are stored canonically.
		p.NoteAID, p.NoteBID = p.NoteBID, p.NoteAID
		require.NoError(t, db.UpsertCooccurrence(ctx, p))
	}

	err = db.UpsertCooccurrence(ctx, models.Cooccurrence{NoteAID: a, NoteBID: a, SharedCount: 1})
	assert.ErrorIs(t, err, apperr.ErrInvalidData)

	co, err := db.GetCooccurrentNotes(ctx, a, 10)
	require.NoError(t, err)
	require.Len(t, co, 2)
	assert.Equal(t, "b.md", co[0].Note.Path)
	assert.Equal(t, 2, co[0].SharedCount)
	assert.Equal(t, "c.md", co[1].Note.Path)

	co, err = db.GetCooccurrentNotes(ctx, c, 1)
	require.NoError(t, err)
	require.Len(t, co, 1)
	assert.Equal(t, "a.md", co[0].Note.Path, "ties fall back to note id")

	require.NoError(t, db.ClearDerivedTables(ctx))
	co, err = db.GetCooccurrentNotes(ctx, a, 0)
	require.NoError(t, err)
	assert.Empty(t, co)
}

func TestFindNote(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	withExt := addNote(t, db, "a/note.md", models.NoteTypeNone)
	bare := addNote(t, db, "plain", models.NoteTypeNone)

	for in, want := range map[string]int64{
		"a/note.md": withExt,
		"a/note":    withExt,
		"plain":     bare,
		"plain.md":  bare,
	} {
		n, err := FindNote(ctx, db, in)
		require.NoError(t, err, in)
		require.NotNil(t, n, in)
		assert.Equal(t, want, n.ID, in)
	}

	n, err := FindNote(ctx, db, "missing")
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestBacklinksCarrySourcePaths(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	a := addNote(t, db, "a.md", models.NoteTypeNone)
	b := addNote(t, db, "b.md", models.NoteTypeNone)
	_, err := db.InsertLink(ctx, models.Link{SourceID: a, TargetPath: "b", LinkText: "bee", LineNumber: 3, Context: "see [[b|bee]]"})
	require.NoError(t, err)
	_, err = db.ResolveLinkTargets(ctx)
	require.NoError(t, err)

	got, err := Backlinks(ctx, db, b)
	require.NoError(t, err)
	assert.Equal(t, []models.Backlink{{Source: "a.md", Line: 3, Text: "bee", Context: "see [[b|bee]]"}}, got)

	got, err = Backlinks(ctx, db, a)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCooccurrentNotesReportsCorruptTimestamps(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	a := addNote(t, db, "a.md", models.NoteTypeNone)
	b := addNote(t, db, "b.md", models.NoteTypeNone)
	require.NoError(t, db.UpsertCooccurrence(ctx, models.Cooccurrence{NoteAID: a, NoteBID: b, SharedCount: 2}))

	_, err := db.conn.ExecContext(ctx, `UPDATE notes SET modified = 'not a time' WHERE id = ?`, b)
	require.NoError(t, err)

	co, err := db.GetCooccurrentNotes(ctx, a, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrStorage)
	assert.Nil(t, co)
}

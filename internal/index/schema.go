// Package index provides the SQLite-backed note index: notes, links and the
// derived activity tables.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/sowilo/internal/apperr"
)

// schemaVersion is stored in PRAGMA user_version.
const schemaVersion = 1

// DirName is the per-vault directory holding the index file.
const DirName = ".sowilo"

// FileName is the index database file inside DirName.
const FileName = "index.db"

// DefaultBusyTimeout bounds how long a caller waits on a locked database.
const DefaultBusyTimeout = 5 * time.Second

var coreSchema = []string{
	`CREATE TABLE IF NOT EXISTS notes (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		path             TEXT NOT NULL UNIQUE,
		note_type        TEXT NOT NULL DEFAULT 'none',
		title            TEXT NOT NULL DEFAULT '',
		created          TEXT,
		modified         TEXT NOT NULL,
		frontmatter_json TEXT NOT NULL DEFAULT '{}',
		content_hash     TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_type ON notes(note_type)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_modified ON notes(modified)`,

	`CREATE TABLE IF NOT EXISTS links (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id   INTEGER NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
		target_id   INTEGER REFERENCES notes(id) ON DELETE SET NULL,
		target_path TEXT NOT NULL,
		link_text   TEXT,
		link_type   TEXT NOT NULL,
		context     TEXT,
		line_number INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_links_source ON links(source_id)`,
	`CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_id)`,
	`CREATE INDEX IF NOT EXISTS idx_links_unresolved ON links(target_path) WHERE target_id IS NULL`,
}

var derivedSchema = []string{
	`CREATE TABLE IF NOT EXISTS temporal_activity (
		target_note_id INTEGER NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
		daily_note_id  INTEGER NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
		activity_date  TEXT NOT NULL,
		context        TEXT,
		PRIMARY KEY (target_note_id, daily_note_id, activity_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_temporal_daily ON temporal_activity(daily_note_id, activity_date)`,

	`CREATE TABLE IF NOT EXISTS activity_summary (
		note_id          INTEGER PRIMARY KEY REFERENCES notes(id) ON DELETE CASCADE,
		last_seen_date   TEXT,
		access_count_30d INTEGER NOT NULL DEFAULT 0,
		access_count_90d INTEGER NOT NULL DEFAULT 0,
		staleness_score  REAL NOT NULL DEFAULT 0 CHECK (staleness_score >= 0 AND staleness_score <= 1)
	)`,

	`CREATE TABLE IF NOT EXISTS cooccurrence (
		note_a_id        INTEGER NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
		note_b_id        INTEGER NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
		shared_count     INTEGER NOT NULL,
		most_recent_date TEXT,
		PRIMARY KEY (note_a_id, note_b_id),
		CHECK (note_a_id < note_b_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cooccurrence_b ON cooccurrence(note_b_id)`,
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps a sql.DB with index-specific operations. A DB obtained inside
// InTx is bound to that transaction.
type DB struct {
	conn *sql.DB
	q    querier
	inTx bool
}

// Open opens (or creates) the index database file at path and applies the
// schema. A non-positive busyTimeout selects DefaultBusyTimeout.
func Open(path string, busyTimeout time.Duration) (*DB, error) {
	if busyTimeout <= 0 {
		busyTimeout = DefaultBusyTimeout
	}
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on&_synchronous=NORMAL",
		fileURI(path), busyTimeout.Milliseconds())
	return open(dsn)
}

// fileURI turns a filesystem path into an SQLite file: URI, escaping
// characters such as '?' and '#' that would otherwise end the path.
func fileURI(path string) string {
	u := url.URL{Path: filepath.ToSlash(filepath.Clean(path))}
	return "file:" + u.EscapedPath()
}

// OpenAt opens the index that belongs to vaultRoot, creating the
// .sowilo directory when needed.
func OpenAt(vaultRoot string, busyTimeout time.Duration) (*DB, error) {
	dir := filepath.Join(vaultRoot, DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.Storage("index: create index dir", err)
	}
	return Open(filepath.Join(dir, FileName), busyTimeout)
}

// OpenInMemory returns an ephemeral index, used by tests and one-off runs.
func OpenInMemory() (*DB, error) {
	return open(":memory:?_foreign_keys=on")
}

func open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, apperr.Storage("index: open db", err)
	}
	// One physical connection: writes are serialized and an in-memory
	// database survives for the life of the handle.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, apperr.Storage("index: ping", err)
	}
	db := &DB{conn: conn, q: conn}
	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// migrate applies the schema if absent. It is idempotent.
func (db *DB) migrate(ctx context.Context) error {
	var version int
	if err := db.conn.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return apperr.Schema("index: read schema version", err)
	}
	if version > schemaVersion {
		return apperr.Schema("index: check schema version",
			fmt.Errorf("index was written by a newer version (schema %d, supported %d)", version, schemaVersion))
	}
	for _, stmt := range append(append([]string{}, coreSchema...), derivedSchema...) {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return apperr.Schema("index: apply schema", err)
		}
	}
	if version < schemaVersion {
		if _, err := db.conn.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
			return apperr.Schema("index: write schema version", err)
		}
	}
	return nil
}

// Close closes the underlying database connection. Closing a
// transaction-bound DB is a no-op.
func (db *DB) Close() error {
	if db.inTx {
		return nil
	}
	return db.conn.Close()
}

// InTx runs fn against a DB bound to a single transaction, committing when
// fn returns nil and rolling back otherwise. Nested calls reuse the
// enclosing transaction.
func (db *DB) InTx(ctx context.Context, fn func(tx *DB) error) error {
	if db.inTx {
		return fn(db)
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Storage("index: begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(&DB{conn: db.conn, q: tx, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Storage("index: commit", err)
	}
	return nil
}

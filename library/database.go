package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the SQLite-backed SessionStore. The session survives across CLI
// runs and can be shared by several processes pointing at the same file.
type Database struct {
	db *sql.DB

	getStmt *sql.Stmt
	putStmt *sql.Stmt
	delStmt *sql.Stmt

	// known mirrors the last values this handle wrote or observed, so Watch
	// only reports changes made by someone else.
	mu    sync.Mutex
	known map[string]string
}

// NewDatabase opens (or creates) the SQLite database at dbPath, applies schema
// migrations, and prepares common statements.
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	database, err := newDatabaseFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := database.snapshot(); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

func newDatabaseFromDB(db *sql.DB) (*Database, error) {
	d := &Database{db: db, known: make(map[string]string)}
	if err := d.prepareStatements(); err != nil {
		return nil, err
	}
	return d, nil
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	for _, stmt := range []*sql.Stmt{d.getStmt, d.putStmt, d.delStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return d.db.Close()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	// WAL lets a second process read while another writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS kv (
            key TEXT PRIMARY KEY,
            value TEXT NOT NULL,
            updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements() error {
	var err error
	if d.getStmt, err = d.db.Prepare(`SELECT value FROM kv WHERE key=?`); err != nil {
		return fmt.Errorf("prepare get: %w", err)
	}
	if d.putStmt, err = d.db.Prepare(`INSERT INTO kv(key,value,updated_at) VALUES(?,?,?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`); err != nil {
		return fmt.Errorf("prepare put: %w", err)
	}
	if d.delStmt, err = d.db.Prepare(`DELETE FROM kv WHERE key=?`); err != nil {
		return fmt.Errorf("prepare del: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// SessionStore
// ---------------------------------------------------------------------------

func (d *Database) Read() (*Session, error) { return readSession(d) }
func (d *Database) Write(s Session) error   { return writeSession(d, s) }
func (d *Database) Clear() error            { return clearSession(d) }

func (d *Database) get(key string) (string, bool, error) {
	var v string
	err := d.getStmt.QueryRow(key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (d *Database) put(key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.putStmt.Exec(key, value, time.Now().UTC()); err != nil {
		return err
	}
	d.rememberLocked(key, value, true)
	return nil
}

func (d *Database) del(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.delStmt.Exec(key); err != nil {
		return err
	}
	d.rememberLocked(key, "", false)
	return nil
}

// ---------------------------------------------------------------------------
// Cross-process change detection
// ---------------------------------------------------------------------------

var watchedKeys = []string{TokenKey, UserKey}

func (d *Database) snapshot() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, key := range watchedKeys {
		v, ok, err := d.get(key)
		if err != nil {
			return fmt.Errorf("snapshot %s: %w", key, err)
		}
		d.rememberLocked(key, v, ok)
	}
	return nil
}

// rememberLocked records the value this handle believes is stored and reports
// whether it differs from what was recorded before. d.mu must be held.
func (d *Database) rememberLocked(key, value string, present bool) bool {
	prev, had := d.known[key]
	if present {
		d.known[key] = value
	} else {
		delete(d.known, key)
	}
	return had != present || prev != value
}

// Watch checks the session keys every interval and publishes a StorageChanged
// event for each key another process modified. Writes made through d itself are
// not reported. Watch blocks until ctx is done.
func (d *Database) Watch(ctx context.Context, interval time.Duration, n *Notifier) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			d.poll(n)
		}
	}
}

func (d *Database) poll(n *Notifier) {
	// Reads and writes through d are serialized with the snapshot, so a write
	// of our own is never mistaken for someone else's.
	var changed []string
	d.mu.Lock()
	for _, key := range watchedKeys {
		v, ok, err := d.get(key)
		if err != nil {
			continue
		}
		if d.rememberLocked(key, v, ok) {
			changed = append(changed, key)
		}
	}
	d.mu.Unlock()

	for _, key := range changed {
		n.Publish(Event{Kind: StorageChanged, Key: key})
	}
}

package pksqlite

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		priority INTEGER NOT NULL,
		time INTEGER NOT NULL,
		session_id TEXT NOT NULL,
		body BLOB NOT NULL,
		size INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		grp TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		data TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS schedules_grp ON schedules (grp)`,
	`CREATE TABLE IF NOT EXISTS action_schedules (
		id TEXT PRIMARY KEY,
		grp TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		data TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS action_schedules_grp ON action_schedules (grp)`,
}

// Database is an open SQLite database holding the SDK's tables.
type Database struct {
	db   *sql.DB
	path string
	refs int
}

var (
	openDatabases     = map[string]*Database{}
	openDatabasesLock sync.Mutex
)

// Open opens or creates the database file at path. Every call must be matched by a call to Close;
// callers opening the same path share one connection.
func Open(path string) (*Database, error) {
	openDatabasesLock.Lock()
	defer openDatabasesLock.Unlock()
	if d, ok := openDatabases[path]; ok {
		d.refs++
		return d, nil
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("pksqlite: opening %s: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pksqlite: %s: %w", pragma, err)
		}
	}
	d, err := newDatabase(db, true)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	d.path = path
	d.refs = 1
	openDatabases[path] = d
	return d, nil
}

func newDatabase(db *sql.DB, migrate bool) (*Database, error) {
	if migrate {
		for _, stmt := range schema {
			if _, err := db.Exec(stmt); err != nil {
				return nil, fmt.Errorf("pksqlite: creating schema: %w", err)
			}
		}
	}
	return &Database{db: db, refs: 1}, nil
}

// Close releases the database. The connection is closed when the last user releases it.
func (d *Database) Close() error {
	openDatabasesLock.Lock()
	defer openDatabasesLock.Unlock()
	if d.refs <= 0 {
		return nil
	}
	d.refs--
	if d.refs > 0 {
		return nil
	}
	if d.path != "" {
		delete(openDatabases, d.path)
	}
	return d.db.Close()
}

func (d *Database) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Package sqlite implements the repository interfaces using SQLite as the
// storage backend. It is the alternative to the default jsonfile backend and
// is selected with STORE_DRIVER=sqlite.
//
// The semantics match the JSON documents exactly: users are a mapping keyed by
// ID, forms are an ordered list (ordered by an autoincrement sequence column),
// and Save replaces a whole table inside one transaction.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// modernc.org/sqlite is a pure Go translation of the SQLite C code: no C
// compiler needed, and cross-compilation keeps working.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides repository methods.
//
// DB itself is the credential store (see users.go); Forms returns the form
// store view over the same connection.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/formgate.db" → file-based database (persistent)
//   - ":memory:"         → in-memory database (tests)
//
// The pool is limited to one connection. SQLite allows a single writer
// anyway, and every ":memory:" connection would otherwise see its own
// private database.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Forms returns the form store backed by this database.
func (db *DB) Forms() *FormDB {
	return &FormDB{db: db}
}

// migrate creates the tables if they do not exist yet.
func (db *DB) migrate() error {
	// password is NULL for federated accounts, which is how the "absent"
	// password of the JSON document is represented here.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id       TEXT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			email    TEXT NOT NULL DEFAULT '',
			password TEXT
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// seq gives the insertion order; submissions have no natural key.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS forms (
			seq       INTEGER PRIMARY KEY AUTOINCREMENT,
			name      TEXT NOT NULL DEFAULT '',
			type      TEXT NOT NULL DEFAULT '',
			message   TEXT NOT NULL DEFAULT '',
			timestamp TEXT NOT NULL DEFAULT ''
		);
	`)
	if err != nil {
		return fmt.Errorf("creating forms table: %w", err)
	}

	return nil
}

// withTx runs fn inside a transaction, committing on success.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

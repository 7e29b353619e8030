// Package store persists conversations, messages and automation rules in
// the same SQLite database that holds the whatsmeow device credentials.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	wstore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// Store wraps whatsmeow's sqlstore and adds app-specific tables.
type Store struct {
	db        *sql.DB
	container *sqlstore.Container
	log       waLog.Logger
}

// New creates a new Store at the given database path.
func New(dbPath string, log waLog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	container := sqlstore.NewWithDB(db, "sqlite3", log.Sub("whatsmeow"))
	if err := container.Upgrade(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to upgrade whatsmeow schema: %w", err)
	}

	s := &Store{
		db:        db,
		container: container,
		log:       log.Sub("Store"),
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create app tables: %w", err)
	}

	return s, nil
}

// Container returns the whatsmeow sqlstore container.
func (s *Store) Container() *sqlstore.Container {
	return s.container
}

// GetDevice returns the existing device or creates a new one.
func (s *Store) GetDevice() (*wstore.Device, error) {
	devices, err := s.container.GetAllDevices(context.Background())
	if err != nil {
		return nil, err
	}
	if len(devices) > 0 {
		return devices[0], nil
	}
	return s.container.NewDevice(), nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Exec executes a query without returning rows.
func (s *Store) Exec(query string, args ...interface{}) (sql.Result, error) {
	return s.db.Exec(query, args...)
}

// Query executes a query that returns rows.
func (s *Store) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.Query(query, args...)
}

// QueryRow executes a query that returns a single row.
func (s *Store) QueryRow(query string, args ...interface{}) *sql.Row {
	return s.db.QueryRow(query, args...)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(i int64) sql.NullInt64 {
	if i == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: i, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

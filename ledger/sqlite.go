package ledger

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"keyledger.app/cloud/models"
)

// SQLiteStore keeps the ledger document in a single-row table. The unit of
// work is a write transaction (_txlock=immediate), so SQLite's own locking
// provides the serialization across processes; busy-timeout expiry maps to
// ErrBusy.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{
		db:   db,
		path: path,
		now:  time.Now,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
      CREATE TABLE IF NOT EXISTS ledger (
          id INTEGER PRIMARY KEY CHECK (id = 1),
          document TEXT NOT NULL,
          updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
      );
      `

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) WithLedger(fn UnitFunc) (interface{}, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, mapBusy(err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	db, err := s.load(tx)
	if err != nil {
		return nil, err
	}

	outcome, err := fn(db)
	if err != nil {
		return outcome, err
	}

	db.LastUpdated = s.now().UTC()
	document, err := json.Marshal(db)
	if err != nil {
		return outcome, fmt.Errorf("encode ledger: %w", err)
	}

	_, err = tx.Exec(
		`INSERT OR REPLACE INTO ledger (id, document, updated_at) VALUES (1, ?, ?)`,
		string(document), db.LastUpdated,
	)
	if err != nil {
		return outcome, mapBusy(err)
	}

	if err := tx.Commit(); err != nil {
		return outcome, mapBusy(err)
	}

	return outcome, nil
}

func (s *SQLiteStore) load(tx *sql.Tx) (*models.LicenseDatabase, error) {
	var document string
	err := tx.QueryRow(`SELECT document FROM ledger WHERE id = 1`).Scan(&document)
	if err == sql.ErrNoRows {
		return emptyDatabase(s.now()), nil
	}
	if err != nil {
		return nil, mapBusy(err)
	}

	var db models.LicenseDatabase
	if err := json.Unmarshal([]byte(document), &db); err != nil {
		return nil, fmt.Errorf("%w: parse document in %q: %v", ErrCorrupt, s.path, err)
	}

	if err := checkFormat(db.Version); err != nil {
		return nil, err
	}

	if db.Licenses == nil {
		db.Licenses = []models.LicenseEntry{}
	}

	return &db, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func mapBusy(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked {
			return fmt.Errorf("%w: %v", ErrBusy, err)
		}
	}
	if strings.Contains(err.Error(), "database is locked") {
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}
	return err
}

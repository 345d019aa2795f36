package ledger

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"keyledger.app/cloud/models"
)

// MemoryStore holds the ledger in memory behind a mutex. Used by tests and
// available as a throwaway backend; it honors the same unit-of-work
// semantics, including discarding mutations when fn fails.
type MemoryStore struct {
	mu  sync.Mutex
	db  *models.LicenseDatabase
	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) WithLedger(fn UnitFunc) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		s.db = emptyDatabase(s.now())
	}

	// fn gets a deep copy so a failed unit cannot leave partial mutations.
	working, err := copyDatabase(s.db)
	if err != nil {
		return nil, err
	}

	outcome, err := fn(working)
	if err != nil {
		return outcome, err
	}

	working.LastUpdated = s.now().UTC()
	s.db = working
	return outcome, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Snapshot returns a copy of the current database for test assertions.
func (s *MemoryStore) Snapshot() (*models.LicenseDatabase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		s.db = emptyDatabase(s.now())
	}
	return copyDatabase(s.db)
}

func copyDatabase(db *models.LicenseDatabase) (*models.LicenseDatabase, error) {
	data, err := json.Marshal(db)
	if err != nil {
		return nil, fmt.Errorf("copy ledger: %w", err)
	}
	var out models.LicenseDatabase
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("copy ledger: %w", err)
	}
	if out.Licenses == nil {
		out.Licenses = []models.LicenseEntry{}
	}
	return &out, nil
}

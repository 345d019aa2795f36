// Package ledger owns the durable license database. All access goes through
// a Store's WithLedger: one exclusive load-modify-persist unit of work. The
// raw database is never handed out past that boundary.
package ledger

import (
	"errors"
	"time"

	"keyledger.app/cloud/models"
)

// FormatVersion is the ledger document version written by this build.
const FormatVersion = "1.0"

var (
	// ErrCorrupt means the persisted ledger exists but cannot be decoded or
	// carries an incompatible format version. It is fatal: the store never
	// replaces an unreadable ledger with an empty one.
	ErrCorrupt = errors.New("ledger: corrupt database")

	// ErrBusy means exclusive access could not be acquired within the
	// configured wait. Safe to retry: activation is idempotent per machine.
	ErrBusy = errors.New("ledger: database busy")
)

// UnitFunc runs inside the critical section with the decoded database. It
// may mutate db in place and returns an outcome handed back to the caller.
// Returning an error aborts persistence and leaves the prior durable state
// intact.
type UnitFunc func(db *models.LicenseDatabase) (interface{}, error)

// Store provides the atomic unit of work over the ledger. The entire
// read-decide-mutate-write sequence of one request executes under exclusive
// access; concurrent units are strictly serialized.
type Store interface {
	WithLedger(fn UnitFunc) (interface{}, error)
	Close() error
}

func emptyDatabase(now time.Time) *models.LicenseDatabase {
	return &models.LicenseDatabase{
		Version:     FormatVersion,
		LastUpdated: now.UTC(),
		Licenses:    []models.LicenseEntry{},
	}
}

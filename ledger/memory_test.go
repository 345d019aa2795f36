package ledger

import (
	"errors"
	"sync"
	"testing"
	"time"

	"keyledger.app/cloud/models"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.WithLedger(func(db *models.LicenseDatabase) (interface{}, error) {
		db.Licenses = append(db.Licenses, models.LicenseEntry{
			Email:       "alice@example.com",
			MasterKey:   "7537AA9294828F7C",
			CreatedAt:   time.Now().UTC(),
			IsActive:    true,
			Activations: []models.Activation{},
		})
		return nil, nil
	})
	if err != nil {
		t.Fatalf("WithLedger failed: %v", err)
	}

	snap, err := store.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.Licenses) != 1 || snap.Licenses[0].Email != "alice@example.com" {
		t.Errorf("unexpected snapshot: %+v", snap.Licenses)
	}
}

func TestMemoryStore_UnitErrorDiscardsMutations(t *testing.T) {
	store := NewMemoryStore()

	unitErr := errors.New("boom")
	_, err := store.WithLedger(func(db *models.LicenseDatabase) (interface{}, error) {
		db.Licenses = append(db.Licenses, models.LicenseEntry{Email: "a@example.com"})
		return nil, unitErr
	})
	if !errors.Is(err, unitErr) {
		t.Fatalf("error = %v, want unit error", err)
	}

	snap, err := store.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.Licenses) != 0 {
		t.Errorf("failed unit leaked mutations: %d entries", len(snap.Licenses))
	}
}

func TestMemoryStore_SnapshotIsIsolated(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.WithLedger(func(db *models.LicenseDatabase) (interface{}, error) {
		db.Licenses = append(db.Licenses, models.LicenseEntry{Email: "a@example.com"})
		return nil, nil
	})
	if err != nil {
		t.Fatalf("WithLedger failed: %v", err)
	}

	snap, _ := store.Snapshot()
	snap.Licenses[0].Email = "tampered@example.com"

	fresh, _ := store.Snapshot()
	if fresh.Licenses[0].Email != "a@example.com" {
		t.Error("snapshot mutation leaked into the store")
	}
}

func TestMemoryStore_ConcurrentUnits(t *testing.T) {
	store := NewMemoryStore()

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.WithLedger(func(db *models.LicenseDatabase) (interface{}, error) {
				db.Licenses = append(db.Licenses, models.LicenseEntry{Email: "x@example.com"})
				return nil, nil
			})
			if err != nil {
				t.Errorf("WithLedger failed: %v", err)
			}
		}()
	}
	wg.Wait()

	snap, _ := store.Snapshot()
	if len(snap.Licenses) != workers {
		t.Errorf("expected %d entries, got %d", workers, len(snap.Licenses))
	}
}

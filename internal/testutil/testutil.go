package testutil

import (
	"time"

	"keyledger.app/cloud/internal/keys"
	"keyledger.app/cloud/ledger"
	"keyledger.app/cloud/models"
)

// Secret is the shared secret used across tests.
const Secret = "test-secret"

// TestStore creates an empty in-memory ledger store.
func TestStore() *ledger.MemoryStore {
	return ledger.NewMemoryStore()
}

// ActivationRequest builds a valid request for email with the correctly
// derived master key.
func ActivationRequest(email, machineID, machineName, requestID string) *models.ActivationRequest {
	return &models.ActivationRequest{
		Email:       email,
		MasterKey:   keys.Derive(email, Secret),
		MachineID:   machineID,
		MachineName: machineName,
		RequestID:   requestID,
	}
}

// SeedEntry creates a license entry with the given activations already
// recorded.
func SeedEntry(store ledger.Store, email string, activations ...models.Activation) error {
	_, err := store.WithLedger(func(db *models.LicenseDatabase) (interface{}, error) {
		db.Licenses = append(db.Licenses, models.LicenseEntry{
			Email:       email,
			MasterKey:   keys.Derive(email, Secret),
			CreatedAt:   time.Now().UTC(),
			IsActive:    true,
			Activations: append([]models.Activation{}, activations...),
		})
		return nil, nil
	})
	return err
}

package models

import (
	"strings"
	"time"
)

// LicenseDatabase is the full durable ledger. It is always loaded and
// persisted as one JSON document.
type LicenseDatabase struct {
	Version     string         `json:"version"`
	LastUpdated time.Time      `json:"lastUpdated"`
	Licenses    []LicenseEntry `json:"licenses"`
}

// LicenseEntry records one email's license and its machine activations.
// Email is unique across the database and stored lowercased.
type LicenseEntry struct {
	Email       string       `json:"email"`
	MasterKey   string       `json:"masterKey"`
	CreatedAt   time.Time    `json:"createdAt"`
	IsActive    bool         `json:"isActive"`
	Activations []Activation `json:"activations"`
}

type Activation struct {
	MachineID   string    `json:"machineId"`
	MachineName string    `json:"machineName"`
	ActivatedAt time.Time `json:"activatedAt"`
}

// FindEntry returns the entry for email, or nil. Linear scan, O(n) over the
// license count; the whole document is decoded per unit of work anyway, so a
// side index would buy nothing until the ledger grows far beyond this
// product's customer base.
func (db *LicenseDatabase) FindEntry(email string) *LicenseEntry {
	email = strings.ToLower(email)
	for i := range db.Licenses {
		if db.Licenses[i].Email == email {
			return &db.Licenses[i]
		}
	}
	return nil
}

// FindActivation returns the activation for machineID within this entry, or
// nil.
func (e *LicenseEntry) FindActivation(machineID string) *Activation {
	for i := range e.Activations {
		if e.Activations[i].MachineID == machineID {
			return &e.Activations[i]
		}
	}
	return nil
}

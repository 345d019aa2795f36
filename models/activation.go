package models

import "time"

// ActivationRequest carries the fields a caller submits to activate a
// license on one machine. MachineName is optional; everything else is
// required.
type ActivationRequest struct {
	Email       string `json:"email"`
	MasterKey   string `json:"masterKey"`
	MachineID   string `json:"machineId"`
	MachineName string `json:"machineName"`
	RequestID   string `json:"requestId"`
}

// ActivationResult is the structured outcome delivered back to the caller
// and, when configured, written to the result sink keyed by RequestID.
// ActivationToken is empty on failure.
type ActivationResult struct {
	RequestID       string    `json:"requestId"`
	Success         bool      `json:"success"`
	Message         string    `json:"message"`
	ActivationToken string    `json:"activationToken"`
	Timestamp       time.Time `json:"timestamp"`
}

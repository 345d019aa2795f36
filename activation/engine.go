// Package activation implements the license activation state machine. One
// request runs entirely inside a single ledger unit of work, so the limit
// check and the append that follows it can never interleave with another
// request's.
package activation

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"keyledger.app/cloud/internal/keys"
	"keyledger.app/cloud/internal/logger"
	"keyledger.app/cloud/ledger"
	"keyledger.app/cloud/models"
)

// Decision codes. Activated and AlreadyActive are the success outcomes.
const (
	CodeActivated         = "activated"
	CodeAlreadyActive     = "already_active"
	CodeMissingFields     = "missing_fields"
	CodeMisconfigured     = "server_misconfigured"
	CodeInvalidCredential = "invalid_credential"
	CodeLimitReached      = "limit_reached"
)

const unknownMachine = "Unknown"

// Decision is the engine's verdict for one request.
type Decision struct {
	Code    string
	Message string
	Token   string
}

func (d Decision) Success() bool {
	return d.Code == CodeActivated || d.Code == CodeAlreadyActive
}

// Engine applies activation rules against a ledger store. Secret is the
// shared secret keys are derived from; MaxActivations is the per-license
// machine ceiling.
type Engine struct {
	Store          ledger.Store
	Secret         string
	MaxActivations int
	Now            func() time.Time
}

func NewEngine(store ledger.Store, secret string, maxActivations int) *Engine {
	return &Engine{
		Store:          store,
		Secret:         secret,
		MaxActivations: maxActivations,
		Now:            time.Now,
	}
}

// Activate runs one request through the state machine and shapes the
// outcome. Business rejections come back as a failed result, not an error;
// the error return is reserved for ledger-level failures (ErrBusy,
// ErrCorrupt, I/O).
func (e *Engine) Activate(req *models.ActivationRequest) (*models.ActivationResult, error) {
	decision, err := e.decide(req)
	if err != nil {
		return nil, err
	}

	return &models.ActivationResult{
		RequestID:       req.RequestID,
		Success:         decision.Success(),
		Message:         decision.Message,
		ActivationToken: decision.Token,
		Timestamp:       e.Now().UTC(),
	}, nil
}

func (e *Engine) decide(req *models.ActivationRequest) (Decision, error) {
	if err := validate(req); err != nil {
		logger.Warn("Activation request missing fields", map[string]interface{}{
			"request_id": req.RequestID,
			"error":      err.Error(),
		})
		return Decision{
			Code:    CodeMissingFields,
			Message: "Missing required fields.",
		}, nil
	}

	if e.Secret == "" {
		logger.Error("Shared secret not configured, rejecting activation", map[string]interface{}{
			"request_id": req.RequestID,
		})
		return Decision{
			Code:    CodeMisconfigured,
			Message: "Server misconfigured. Contact support.",
		}, nil
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	candidate := keys.Normalize(req.MasterKey)

	// Cryptographic check happens before any ledger I/O: the key is
	// re-derivable from the shared secret alone, so invalid requests never
	// pay for the critical section.
	if !keys.Verify(candidate, email, e.Secret) {
		logger.Warn("Master key mismatch", map[string]interface{}{
			"request_id": req.RequestID,
			"email":      email,
		})
		return Decision{
			Code:    CodeInvalidCredential,
			Message: "Invalid license key or email. Please verify and try again.",
		}, nil
	}

	outcome, err := e.Store.WithLedger(func(db *models.LicenseDatabase) (interface{}, error) {
		return e.apply(db, email, candidate, req), nil
	})
	if err != nil {
		return Decision{}, err
	}

	return outcome.(Decision), nil
}

// apply runs inside the ledger critical section. It is the only place
// license entries and activations are created.
func (e *Engine) apply(db *models.LicenseDatabase, email, masterKey string, req *models.ActivationRequest) Decision {
	entry := db.FindEntry(email)
	if entry == nil {
		db.Licenses = append(db.Licenses, models.LicenseEntry{
			Email:       email,
			MasterKey:   masterKey,
			CreatedAt:   e.Now().UTC(),
			IsActive:    true,
			Activations: []models.Activation{},
		})
		entry = &db.Licenses[len(db.Licenses)-1]
		logger.Info("Created license entry", map[string]interface{}{
			"request_id": req.RequestID,
			"email":      email,
		})
	}

	machineID := strings.TrimSpace(req.MachineID)
	if entry.FindActivation(machineID) != nil {
		return Decision{
			Code:    CodeAlreadyActive,
			Message: "License is active on this computer.",
			Token:   keys.Token(email, machineID, e.Secret),
		}
	}

	if len(entry.Activations) >= e.MaxActivations {
		// First recorded activation wins display priority.
		occupied := "another computer"
		if len(entry.Activations) > 0 && entry.Activations[0].MachineName != "" {
			occupied = entry.Activations[0].MachineName
		}
		return Decision{
			Code: CodeLimitReached,
			Message: fmt.Sprintf("This license is already activated on %q. "+
				"Maximum allowed: %d computer(s). "+
				"Contact support to transfer your license.", occupied, e.MaxActivations),
		}
	}

	machineName := strings.TrimSpace(req.MachineName)
	if machineName == "" {
		machineName = unknownMachine
	}

	entry.Activations = append(entry.Activations, models.Activation{
		MachineID:   machineID,
		MachineName: machineName,
		ActivatedAt: e.Now().UTC(),
	})

	logger.Info("Activation recorded", map[string]interface{}{
		"request_id":   req.RequestID,
		"email":        email,
		"machine_name": machineName,
		"activations":  len(entry.Activations),
	})

	return Decision{
		Code:    CodeActivated,
		Message: "License activated successfully!",
		Token:   keys.Token(email, machineID, e.Secret),
	}
}

// validate aggregates every missing field so the caller learns about all of
// them at once.
func validate(req *models.ActivationRequest) error {
	var result *multierror.Error

	if strings.TrimSpace(req.Email) == "" {
		result = multierror.Append(result, fmt.Errorf("email required"))
	}
	if strings.TrimSpace(req.MasterKey) == "" {
		result = multierror.Append(result, fmt.Errorf("masterKey required"))
	}
	if strings.TrimSpace(req.MachineID) == "" {
		result = multierror.Append(result, fmt.Errorf("machineId required"))
	}
	if strings.TrimSpace(req.RequestID) == "" {
		result = multierror.Append(result, fmt.Errorf("requestId required"))
	}

	return result.ErrorOrNil()
}

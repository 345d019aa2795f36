package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"keyledger.app/cloud/internal/email"
	"keyledger.app/cloud/internal/keys"
	"keyledger.app/cloud/internal/logger"
	"keyledger.app/cloud/models"
)

// Stripe handles checkout webhooks. A completed checkout provisions a
// license entry for the buyer's email (no activations yet) and mails them
// the derived master key.
func (s *Server) Stripe(w http.ResponseWriter, r *http.Request) {
	logger.Info("Stripe webhook received", map[string]interface{}{
		"remote_addr": r.RemoteAddr,
		"user_agent":  r.Header.Get("User-Agent"),
	})

	if s.Config.StripeSecret == "" || s.Config.StripeWebhookSecret == "" {
		logger.Error("Stripe not configured, rejecting webhook")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	stripe.Key = s.Config.StripeSecret

	const MaxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("Failed to read webhook payload", map[string]interface{}{
			"error": err.Error(),
		})
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	event := stripe.Event{}
	if err := json.Unmarshal(payload, &event); err != nil {
		logger.Error("Failed to parse webhook JSON", map[string]interface{}{
			"error": err.Error(),
		})
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// Skip signature verification in test mode
	if os.Getenv("TEST_MODE") == "true" {
		logger.Debug("Skipping webhook signature verification (test mode)")
	} else {
		signatureHeader := r.Header.Get("Stripe-Signature")
		event, err = webhook.ConstructEvent(payload, signatureHeader, s.Config.StripeWebhookSecret)
		if err != nil {
			logger.Error("Webhook signature verification failed", map[string]interface{}{
				"error":     err.Error(),
				"signature": signatureHeader,
			})
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	}

	switch event.Type {
	case "checkout.session.completed":
		var checkoutSession stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &checkoutSession); err != nil {
			logger.Error("Failed to unmarshal checkout session", map[string]interface{}{
				"error":    err.Error(),
				"event_id": event.ID,
			})
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if err := s.handleCheckoutComplete(&checkoutSession); err != nil {
			logger.Error("Failed to handle checkout completion", map[string]interface{}{
				"error":      err.Error(),
				"session_id": checkoutSession.ID,
			})
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	default:
		logger.Info("Unhandled webhook event type", map[string]interface{}{
			"event_type": event.Type,
			"event_id":   event.ID,
		})
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"received": "true"}) //nolint:errcheck
}

// handleCheckoutComplete provisions the buyer's license entry inside one
// ledger unit of work and mails the master key. Provisioning is idempotent:
// a replayed webhook for an existing email changes nothing.
func (s *Server) handleCheckoutComplete(session *stripe.CheckoutSession) error {
	var customerEmail string
	if session.CustomerDetails != nil {
		customerEmail = session.CustomerDetails.Email
	} else {
		customerEmail = session.CustomerEmail
	}

	if customerEmail == "" {
		return fmt.Errorf("checkout session %s has no customer email", session.ID)
	}
	customerEmail = strings.ToLower(strings.TrimSpace(customerEmail))

	if s.Config.LicenseSecret == "" {
		return fmt.Errorf("license secret not configured, cannot derive master key")
	}
	masterKey := keys.Derive(customerEmail, s.Config.LicenseSecret)

	outcome, err := s.Store.WithLedger(func(db *models.LicenseDatabase) (interface{}, error) {
		if db.FindEntry(customerEmail) != nil {
			return false, nil
		}
		db.Licenses = append(db.Licenses, models.LicenseEntry{
			Email:       customerEmail,
			MasterKey:   masterKey,
			CreatedAt:   time.Now().UTC(),
			IsActive:    true,
			Activations: []models.Activation{},
		})
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("provision license entry: %w", err)
	}

	created := outcome.(bool)
	logger.Info("Checkout session processed", map[string]interface{}{
		"session_id":     session.ID,
		"customer_email": customerEmail,
		"entry_created":  created,
		"amount":         session.AmountTotal,
		"currency":       session.Currency,
	})

	if !created {
		return nil
	}

	body := fmt.Sprintf(`Hello,

Thank you for purchasing KeyLedger Pro! Your purchase has been processed successfully.

LICENSE DETAILS
License Key: %s
Licensed Email: %s

GETTING STARTED
1. Open the app on your machine
2. Go to Settings → License
3. Enter your email and license key
4. You're all set!

NEED HELP?
If you have any questions, reply to this email or contact us at help@keyledger.app

Best regards,
The KeyLedger Team`, masterKey, customerEmail)

	if err := email.Send(customerEmail, "Your KeyLedger Pro License Key", body); err != nil {
		// License entry exists either way; email failure must not fail the
		// webhook or Stripe will retry and re-provision.
		logger.Error("Failed to send license email", map[string]interface{}{
			"error": err.Error(),
			"email": customerEmail,
		})
	}

	return nil
}

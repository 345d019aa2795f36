package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

type Config struct {
	Port string

	LedgerBackend string
	LedgerPath    string

	// LicenseSecret may be empty at startup; requests are then answered
	// with a server-misconfigured outcome instead of failing the process,
	// so an operator can fix the deployment without dropping the service.
	LicenseSecret  string
	MaxActivations int

	// ResultsDir enables the file result sink when set.
	ResultsDir string

	StripeSecret        string
	StripeWebhookSecret string

	SentryDSN string
}

func New() (*Config, error) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	backend := os.Getenv("LEDGER_BACKEND")
	if backend == "" {
		backend = BackendFile
	}
	if backend != BackendFile && backend != BackendSQLite {
		return nil, fmt.Errorf("LEDGER_BACKEND must be %q or %q, got %q", BackendFile, BackendSQLite, backend)
	}

	ledgerPath := os.Getenv("LEDGER_PATH")
	if ledgerPath == "" {
		if backend == BackendSQLite {
			ledgerPath = "licenses.db"
		} else {
			ledgerPath = "licenses.json"
		}
	}

	maxActivations := 1
	if raw := os.Getenv("MAX_ACTIVATIONS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("MAX_ACTIVATIONS must be an integer: %v", err)
		}
		if n < 1 {
			return nil, errors.New("MAX_ACTIVATIONS must be positive")
		}
		maxActivations = n
	}

	return &Config{
		Port:                port,
		LedgerBackend:       backend,
		LedgerPath:          ledgerPath,
		LicenseSecret:       os.Getenv("LICENSE_SECRET"),
		MaxActivations:      maxActivations,
		ResultsDir:          os.Getenv("RESULTS_DIR"),
		StripeSecret:        os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		SentryDSN:           os.Getenv("SENTRY_DSN"),
	}, nil
}

package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"keyledger.app/cloud/handlers"
	"keyledger.app/cloud/internal/config"
	"keyledger.app/cloud/internal/logger"
	"keyledger.app/cloud/ledger"
)

var version = "dev"

func main() {
	if versionBytes, err := os.ReadFile("VERSION"); err == nil {
		version = strings.TrimSpace(string(versionBytes))
	}

	godotenv.Load() //nolint:errcheck // .env is optional

	cfg, err := config.New()
	if err != nil {
		logger.Error("Invalid configuration", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 1.0,
		}); err != nil {
			logger.Error("sentry.Init failed", map[string]interface{}{
				"error": err.Error(),
			})
			os.Exit(1)
		}
	}

	if cfg.LicenseSecret == "" {
		// Not fatal: activations are answered with a misconfigured outcome
		// until the operator sets LICENSE_SECRET.
		logger.Warn("LICENSE_SECRET not set, activations will be rejected")
	}

	store, err := openStore(cfg)
	if err != nil {
		sentry.CaptureException(err)
		logger.Error("Failed to open ledger store", map[string]interface{}{
			"backend": cfg.LedgerBackend,
			"path":    cfg.LedgerPath,
			"error":   err.Error(),
		})
		os.Exit(1)
	}
	defer store.Close() //nolint:errcheck

	server := handlers.NewServer(cfg, store)
	server.Version = version

	logger.Info("KeyLedger cloud API starting", map[string]interface{}{
		"version":         version,
		"port":            cfg.Port,
		"ledger_backend":  cfg.LedgerBackend,
		"ledger_path":     cfg.LedgerPath,
		"max_activations": cfg.MaxActivations,
	})

	if err := http.ListenAndServe(":"+cfg.Port, server.Router); err != nil {
		sentry.CaptureException(err)
		logger.Error("Server stopped", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}
}

func openStore(cfg *config.Config) (ledger.Store, error) {
	switch cfg.LedgerBackend {
	case config.BackendSQLite:
		return ledger.NewSQLiteStore(cfg.LedgerPath)
	case config.BackendFile:
		return ledger.NewFileStore(cfg.LedgerPath), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}

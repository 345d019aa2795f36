package config

import "testing"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "LEDGER_BACKEND", "LEDGER_PATH", "LICENSE_SECRET",
		"MAX_ACTIVATIONS", "RESULTS_DIR", "STRIPE_SECRET_KEY",
		"STRIPE_WEBHOOK_SECRET", "SENTRY_DSN",
	} {
		t.Setenv(key, "")
	}
}

func TestNew_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.LedgerBackend != BackendFile {
		t.Errorf("LedgerBackend = %q, want file", cfg.LedgerBackend)
	}
	if cfg.LedgerPath != "licenses.json" {
		t.Errorf("LedgerPath = %q, want licenses.json", cfg.LedgerPath)
	}
	if cfg.MaxActivations != 1 {
		t.Errorf("MaxActivations = %d, want 1", cfg.MaxActivations)
	}
}

func TestNew_SQLiteDefaultsPath(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEDGER_BACKEND", "sqlite")

	cfg, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if cfg.LedgerPath != "licenses.db" {
		t.Errorf("LedgerPath = %q, want licenses.db", cfg.LedgerPath)
	}
}

func TestNew_RejectsUnknownBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEDGER_BACKEND", "redis")

	if _, err := New(); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestNew_MaxActivations(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    int
		wantErr bool
	}{
		{"unset defaults to one", "", 1, false},
		{"explicit", "3", 3, false},
		{"zero rejected", "0", 0, true},
		{"negative rejected", "-2", 0, true},
		{"garbage rejected", "two", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("MAX_ACTIVATIONS", tt.value)

			cfg, err := New()
			if (err != nil) != tt.wantErr {
				t.Fatalf("New error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && cfg.MaxActivations != tt.want {
				t.Errorf("MaxActivations = %d, want %d", cfg.MaxActivations, tt.want)
			}
		})
	}
}

func TestNew_MissingSecretIsNotFatal(t *testing.T) {
	clearEnv(t)

	cfg, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if cfg.LicenseSecret != "" {
		t.Errorf("LicenseSecret = %q, want empty", cfg.LicenseSecret)
	}
}

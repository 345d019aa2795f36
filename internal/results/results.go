// Package results delivers activation outcomes to external collaborators.
// The file sink mirrors the original automation contract: one JSON document
// per request at results/{requestId}.json that the client polls for.
package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"keyledger.app/cloud/models"
)

type Sink interface {
	Write(result *models.ActivationResult) error
}

type FileSink struct {
	dir string
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

// Write persists the result atomically; a polling reader never sees a
// partial document.
func (s *FileSink) Write(result *models.ActivationResult) error {
	if result.RequestID == "" {
		return fmt.Errorf("result has no requestId")
	}
	// Request IDs become file names; never let one escape the sink dir.
	if strings.ContainsAny(result.RequestID, `/\`) || strings.Contains(result.RequestID, "..") {
		return fmt.Errorf("invalid requestId %q", result.RequestID)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create results dir %q: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".result-*.json")
	if err != nil {
		return fmt.Errorf("create temp result: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp result: %w", err)
	}

	final := filepath.Join(s.dir, result.RequestID+".json")
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace result %q: %w", final, err)
	}

	return nil
}

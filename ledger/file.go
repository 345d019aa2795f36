package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"keyledger.app/cloud/internal/logger"
	"keyledger.app/cloud/models"
)

const (
	defaultLockWait  = 5 * time.Second
	lockPollInterval = 25 * time.Millisecond
)

// FileStore keeps the ledger as a single JSON document on disk. Exclusion is
// two-layered: an in-process mutex serializes goroutines, and an fcntl
// advisory lock on a sidecar file serializes against other processes on the
// same host. Persistence is write-temp-then-rename, so a concurrent reader
// only ever observes a complete document.
type FileStore struct {
	path     string
	lockPath string
	lockWait time.Duration
	now      func() time.Time

	sem chan struct{}
}

// NewFileStore creates a store over path. The sidecar lock file lives next
// to it as path + ".lock".
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:     path,
		lockPath: path + ".lock",
		lockWait: defaultLockWait,
		now:      time.Now,
		sem:      make(chan struct{}, 1),
	}
}

func (s *FileStore) WithLedger(fn UnitFunc) (interface{}, error) {
	deadline := s.now().Add(s.lockWait)

	release, err := s.acquire(deadline)
	if err != nil {
		return nil, err
	}
	defer release()

	db, err := s.load()
	if err != nil {
		return nil, err
	}

	outcome, err := fn(db)
	if err != nil {
		return outcome, err
	}

	db.LastUpdated = s.now().UTC()
	if err := s.persist(db); err != nil {
		return outcome, err
	}

	return outcome, nil
}

func (s *FileStore) Close() error {
	return nil
}

// acquire takes the in-process slot, then polls for the cross-process file
// lock until deadline. Both failures surface as ErrBusy.
func (s *FileStore) acquire(deadline time.Time) (func(), error) {
	wait := time.Until(deadline)
	if wait <= 0 {
		wait = time.Nanosecond
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case s.sem <- struct{}{}:
	case <-timer.C:
		return nil, fmt.Errorf("%w: waited %s for in-process lock", ErrBusy, s.lockWait)
	}

	lockFile, err := s.lockSidecar(deadline)
	if err != nil {
		<-s.sem
		return nil, err
	}

	return func() {
		if err := unlockFile(lockFile); err != nil {
			logger.Warn("Failed to release ledger lock", map[string]interface{}{
				"path":  s.lockPath,
				"error": err.Error(),
			})
		}
		if err := lockFile.Close(); err != nil {
			logger.Warn("Failed to close ledger lock file", map[string]interface{}{
				"path":  s.lockPath,
				"error": err.Error(),
			})
		}
		<-s.sem
	}, nil
}

func (s *FileStore) lockSidecar(deadline time.Time) (*os.File, error) {
	f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file %q: %w", s.lockPath, err)
	}

	for {
		err := tryLockFile(f)
		if err == nil {
			return f, nil
		}
		if s.now().After(deadline) {
			f.Close()
			return nil, fmt.Errorf("%w: waited %s for file lock on %q", ErrBusy, s.lockWait, s.lockPath)
		}
		time.Sleep(lockPollInterval)
	}
}

// load decodes the current document, or synthesizes an empty one when the
// file does not exist yet. An unreadable document is ErrCorrupt, never
// silently replaced: reinitializing would destroy recorded activations.
func (s *FileStore) load() (*models.LicenseDatabase, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("Ledger does not exist yet, starting empty", map[string]interface{}{
				"path": s.path,
			})
			return emptyDatabase(s.now()), nil
		}
		return nil, fmt.Errorf("read ledger %q: %w", s.path, err)
	}

	var db models.LicenseDatabase
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("%w: parse %q: %v", ErrCorrupt, s.path, err)
	}

	if err := checkFormat(db.Version); err != nil {
		return nil, err
	}

	if db.Licenses == nil {
		db.Licenses = []models.LicenseEntry{}
	}

	return &db, nil
}

func (s *FileStore) persist(db *models.LicenseDatabase) error {
	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp ledger: %w", err)
	}

	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("chmod temp ledger: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace ledger %q: %w", s.path, err)
	}

	return nil
}

package attempt

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// SessionHandle is the only client-side durable state: enough identity to
// re-negotiate correctly after a reload instead of silently starting a
// duplicate session.
type SessionHandle struct {
	TestID    uuid.UUID `json:"test_id"`
	SessionID uuid.UUID `json:"session_id"`
	AttemptID uuid.UUID `json:"attempt_id"`
	StartedAt time.Time `json:"started_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HandleStore persists one SessionHandle per test as a JSON file.
type HandleStore struct {
	dir string
}

// NewHandleStore creates a store rooted at dir, creating it if needed.
func NewHandleStore(dir string) (*HandleStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create handle dir: %w", err)
	}
	return &HandleStore{dir: dir}, nil
}

func (s *HandleStore) path(testID uuid.UUID) string {
	return filepath.Join(s.dir, fmt.Sprintf("session_%s.json", testID))
}

// Save writes the handle for its test, replacing any previous one.
func (s *HandleStore) Save(h *SessionHandle) error {
	raw, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal handle: %w", err)
	}
	return os.WriteFile(s.path(h.TestID), raw, 0o600)
}

// Load reads the stored handle for a test, or (nil, nil) when none exists.
func (s *HandleStore) Load(testID uuid.UUID) (*SessionHandle, error) {
	raw, err := os.ReadFile(s.path(testID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read handle: %w", err)
	}
	var h SessionHandle
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("unmarshal handle: %w", err)
	}
	return &h, nil
}

// Clear removes the stored handle for a test. Missing files are fine.
func (s *HandleStore) Clear(testID uuid.UUID) error {
	err := os.Remove(s.path(testID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

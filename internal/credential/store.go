package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/starford/getnotes/internal/apperr"
	"github.com/starford/getnotes/internal/storage"
)

// Store is a single-slot credential file, overwritten on every save.
type Store struct {
	path   string
	maxAge time.Duration
	now    func() time.Time
}

// NewStore returns a store backed by path. maxAge <= 0 selects DefaultMaxAge.
func NewStore(path string, maxAge time.Duration) *Store {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Store{path: path, maxAge: maxAge, now: time.Now}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Load reads the stored credential. A missing, unreadable or corrupt file
// yields apperr.ErrNotFound.
func (s *Store) Load() (*Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	var c Credential
	if err := json.Unmarshal(data, &c); err != nil || c.Authorization == "" {
		return nil, apperr.ErrNotFound
	}
	if c.ExtraHeaders == nil {
		c.ExtraHeaders = map[string]string{}
	}
	return &c, nil
}

// Save overwrites the slot.
func (s *Store) Save(c *Credential) error {
	if c == nil || c.Authorization == "" {
		return fmt.Errorf("credential: empty authorization")
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("credential: encode: %w", err)
	}
	if err := storage.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("credential: save: %w", err)
	}
	return nil
}

// Clear removes the stored credential. A missing file is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("credential: clear: %w", err)
	}
	return nil
}

// Login normalizes a user-supplied token, stamps it with the current time
// and persists it.
func (s *Store) Login(token string) (*Credential, error) {
	token = strings.TrimSpace(token)
	if strings.TrimSpace(strings.TrimPrefix(token, "Bearer")) == "" {
		return nil, apperr.ErrNotAuthenticated
	}
	c := New(token, s.now())
	if err := s.Save(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Current returns a usable credential: ErrNotAuthenticated when none is
// stored, ErrCredentialExpired when the stored one is too old.
func (s *Store) Current() (*Credential, error) {
	c, err := s.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: no saved credential at %s", apperr.ErrNotAuthenticated, s.path)
	}
	if c.Expired(s.now(), s.maxAge) {
		return nil, fmt.Errorf("%w: issued %s ago", apperr.ErrCredentialExpired, c.Age(s.now()).Round(time.Second))
	}
	return c, nil
}

// Package settings persists user preferences set with `getnotes config`.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/getnotes/internal/apperr"
	"github.com/starford/getnotes/internal/storage"
)

// Known keys.
const (
	KeyOutput   = "output"
	KeyDelay    = "delay"
	KeyPageSize = "page_size"
)

// aliases maps CLI spellings to stored keys.
var aliases = map[string]string{
	"page-size": KeyPageSize,
}

// Keys returns the supported keys in display order.
func Keys() []string { return []string{KeyOutput, KeyDelay, KeyPageSize} }

// Normalize resolves aliases and reports whether key is supported.
func Normalize(key string) (string, bool) {
	key = strings.TrimSpace(key)
	if k, ok := aliases[key]; ok {
		key = k
	}
	switch key {
	case KeyOutput, KeyDelay, KeyPageSize:
		return key, true
	}
	return key, false
}

// Values is the typed form of the settings document. Nil fields are unset.
type Values struct {
	Output   *string  `json:"output,omitempty"`
	Delay    *float64 `json:"delay,omitempty"`
	PageSize *int     `json:"page_size,omitempty"`
}

// Validate implements validation.Validatable.
func (v Values) Validate() error {
	return validation.ValidateStruct(&v,
		validation.Field(&v.Output, validation.NilOrNotEmpty),
		validation.Field(&v.Delay, validation.Min(0.0)),
		validation.Field(&v.PageSize, validation.Min(1), validation.Max(100)),
	)
}

// Store reads and writes the settings file. Every operation reloads from
// disk so concurrent CLI invocations see each other's writes.
type Store struct {
	path string
}

// NewStore returns a store backed by path.
func NewStore(path string) *Store { return &Store{path: path} }

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Load reads the file. Missing or unparseable files yield empty Values.
func (s *Store) Load() Values {
	var v Values
	data, err := os.ReadFile(s.path)
	if err != nil {
		return v
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return Values{}
	}
	return v
}

func (s *Store) save(v Values) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	if err := storage.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("settings: save: %w", err)
	}
	return nil
}

// Set parses raw for key, validates the result and persists it.
func (s *Store) Set(key, raw string) error {
	key, ok := Normalize(key)
	if !ok {
		return fmt.Errorf("%w: unknown key %q (supported: %s)", apperr.ErrInvalidSetting, key, strings.Join(Keys(), ", "))
	}
	v := s.Load()
	raw = strings.TrimSpace(raw)
	switch key {
	case KeyOutput:
		v.Output = &raw
	case KeyDelay:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%w: delay must be a number: %q", apperr.ErrInvalidSetting, raw)
		}
		v.Delay = &f
	case KeyPageSize:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: page_size must be an integer: %q", apperr.ErrInvalidSetting, raw)
		}
		v.PageSize = &n
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidSetting, err)
	}
	return s.save(v)
}

// Get returns the persisted value of key as text; ok is false when unset.
func (s *Store) Get(key string) (string, bool) {
	key, known := Normalize(key)
	if !known {
		return "", false
	}
	val, ok := s.All()[key]
	return val, ok
}

// Remove unsets key.
func (s *Store) Remove(key string) error {
	key, ok := Normalize(key)
	if !ok {
		return fmt.Errorf("%w: unknown key %q", apperr.ErrInvalidSetting, key)
	}
	v := s.Load()
	switch key {
	case KeyOutput:
		v.Output = nil
	case KeyDelay:
		v.Delay = nil
	case KeyPageSize:
		v.PageSize = nil
	}
	return s.save(v)
}

// Clear deletes the settings file.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("settings: clear: %w", err)
	}
	return nil
}

// All returns every set key as text, for display.
func (s *Store) All() map[string]string {
	v := s.Load()
	out := map[string]string{}
	if v.Output != nil {
		out[KeyOutput] = *v.Output
	}
	if v.Delay != nil {
		out[KeyDelay] = strconv.FormatFloat(*v.Delay, 'f', -1, 64)
	}
	if v.PageSize != nil {
		out[KeyPageSize] = strconv.Itoa(*v.PageSize)
	}
	return out
}

// SortedKeys returns the keys of m in order, for stable output.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Resolve returns explicit when set, else persisted when non-nil, else def.
func Resolve[T any](explicit *T, persisted *T, def T) T {
	if explicit != nil {
		return *explicit
	}
	if persisted != nil {
		return *persisted
	}
	return def
}

package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// TokenStorage persists one credential per platform as a JSON file.
// Concurrent writers are last-write-wins.
type TokenStorage struct {
	dir string
}

func NewTokenStorage(dir string) *TokenStorage {
	return &TokenStorage{dir: dir}
}

// Dir returns the directory the token files live in.
func (s *TokenStorage) Dir() string {
	return s.dir
}

func (s *TokenStorage) path(p Platform) string {
	cleanPlatform := filepath.Base(string(p))
	return filepath.Join(s.dir, cleanPlatform+"_token.json")
}

func (s *TokenStorage) Save(cred *Credential) error {
	if cred == nil || cred.Platform == "" {
		return fmt.Errorf("failed to save token: credential has no platform")
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	return os.WriteFile(s.path(cred.Platform), data, 0600)
}

func (s *TokenStorage) Load(p Platform) (*Credential, error) {
	data, err := os.ReadFile(s.path(p)) // #nosec G304 -- platform is sanitized
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	if cred.Platform == "" {
		cred.Platform = p
	}

	return &cred, nil
}

// LoadAll returns every stored credential keyed by platform. Missing or
// unreadable files are skipped.
func (s *TokenStorage) LoadAll() map[Platform]*Credential {
	creds := make(map[Platform]*Credential)
	for _, p := range Platforms() {
		cred, err := s.Load(p)
		if err != nil {
			continue
		}
		creds[p] = cred
	}
	return creds
}

// Delete removes the stored credential. Deleting a missing credential is not an error.
func (s *TokenStorage) Delete(p Platform) error {
	if err := os.Remove(s.path(p)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Credentials is what a successful SMS login yields: everything the upload
// step needs.
type Credentials struct {
	Token      string    `json:"token"`
	UserMainID string    `json:"user_main_id"`
	SavedAt    time.Time `json:"saved_at"`
}

// DefaultCredentialsPath is ~/.heytea-diy/credentials.json.
func DefaultCredentialsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("token: locate home directory: %w", err)
	}
	return filepath.Join(home, ".heytea-diy", "credentials.json"), nil
}

// Save writes c to path with owner-only permissions, creating parent
// directories as needed.
func (c Credentials) Save(path string) error {
	if c.SavedAt.IsZero() {
		c.SavedAt = time.Now().UTC()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("token: create credentials dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("token: encode credentials: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("token: write credentials: %w", err)
	}
	return nil
}

// ErrNoCredentials is returned by LoadCredentials when no file exists.
var ErrNoCredentials = errors.New("token: no saved credentials; run sms-login first")

// LoadCredentials reads credentials saved by Save.
func LoadCredentials(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Credentials{}, ErrNoCredentials
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("token: read credentials: %w", err)
	}
	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return Credentials{}, fmt.Errorf("token: parse credentials %q: %w", path, err)
	}
	return c, nil
}

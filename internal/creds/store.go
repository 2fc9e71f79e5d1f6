package creds

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// ErrNoCredentials is returned by Load when no credentials have been saved yet.
var ErrNoCredentials = errors.New("no saved credentials")

// Credentials is what the join flow persists and the engine reads at connect time.
type Credentials struct {
	PlayerID    string `json:"playerId"`
	Token       string `json:"token"`
	SessionID   string `json:"sessionId"`
	CharacterID int    `json:"characterId"`
}

// Store persists player credentials between runs. The engine only ever
// reads; the join flow is the single writer.
type Store interface {
	Load() (Credentials, error)
	Save(c Credentials) error
	Clear() error
}

// FileStore keeps credentials in a JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the given file path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns the credential file location under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "emojinious", "credentials.json"), nil
}

func (s *FileStore) Load() (Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, ErrNoCredentials
		}
		return Credentials{}, fmt.Errorf("read credentials file: %w", err)
	}

	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return Credentials{}, fmt.Errorf("parse credentials file: %w", err)
	}
	if c.PlayerID == "" || c.SessionID == "" {
		return Credentials{}, ErrNoCredentials
	}
	return c, nil
}

func (s *FileStore) Save(c Credentials) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials file: %w", err)
	}

	log.Debug().
		Str("player_id", c.PlayerID).
		Str("session_id", c.SessionID).
		Msg("credentials saved")
	return nil
}

func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove credentials file: %w", err)
	}
	return nil
}

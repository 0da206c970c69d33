// Package settings persists integration credentials on the server. They
// live in a JSON file with 0600 permissions next to the service, never in
// anything a browser can read.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Settings holds the integration credentials and endpoints the dashboard
// manages at runtime.
type Settings struct {
	N8NEndpoint      string `json:"n8nEndpoint"`
	N8NAPIKey        string `json:"n8nApiKey"`
	TelegramBotToken string `json:"telegramBotToken"`
}

// Store is a file-backed settings store. Reads come from an in-memory copy;
// writes go to a temp file first and are renamed into place so a crash
// mid-write never leaves a truncated settings file.
type Store struct {
	mu       sync.RWMutex
	path     string
	settings Settings
}

// NewStore opens (or initializes) the settings file at path.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}
	if err := json.Unmarshal(content, &s.settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	return s, nil
}

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update applies fn to the settings and persists the result.
func (s *Store) Update(fn func(*Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	fn(&next)
	if err := s.write(next); err != nil {
		return err
	}
	s.settings = next
	return nil
}

func (s *Store) write(settings Settings) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create settings directory %s: %w", dir, err)
	}

	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set settings file permissions: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close settings file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace settings file %s: %w", s.path, err)
	}
	return nil
}

// Mask returns a credential suitable for display: everything but the last
// four characters replaced, and short values hidden entirely.
func Mask(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 8 {
		return strings.Repeat("•", 8)
	}
	return strings.Repeat("•", 8) + value[len(value)-4:]
}

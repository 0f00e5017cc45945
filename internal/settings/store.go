package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"FinSheet/internal/model"
)

// Store owns the process-wide settings with single-writer discipline. The
// settings dialog (foreground) writes while the analysis worker reads, so
// every access goes through the mutex and every mutation re-serializes the
// whole structure to disk.
type Store struct {
	mu       sync.Mutex
	settings model.Settings
	filePath string
	logger   zerolog.Logger
}

// NewStore loads settings from filePath, falling back to defaults (empty
// unvalidated key, defaultDir as save directory) when the file is absent or
// unreadable.
func NewStore(filePath, defaultDir string, logger zerolog.Logger) *Store {
	s := &Store{
		settings: model.Settings{SaveDirectory: defaultDir},
		filePath: filePath,
		logger:   logger,
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Msg("settings unreadable, using defaults")
		}
		return s
	}
	var loaded model.Settings
	if err := json.Unmarshal(data, &loaded); err != nil {
		logger.Warn().Err(err).Msg("settings corrupted, using defaults")
		return s
	}
	if loaded.SaveDirectory == "" {
		loaded.SaveDirectory = defaultDir
	}
	s.settings = loaded
	return s
}

// Get returns a copy of the current settings.
func (s *Store) Get() model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetAPIKey records the key together with its validation status and
// persists the whole structure.
func (s *Store) SetAPIKey(key string, validated bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.APIKey = key
	s.settings.APIKeyValidated = validated
	return s.save()
}

// SetSaveDirectory updates the export directory after checking it exists.
func (s *Store) SetSaveDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("save directory does not exist: %s", dir)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.SaveDirectory = dir
	return s.save()
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.settings, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.filePath, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

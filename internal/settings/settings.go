// Package settings stores user-facing application settings in a YAML file.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/spf13/viper"
)

// Setting keys.
const (
	KeyEngine       = "engine"
	KeyOutputFormat = "output_format"
	KeyOutputDir    = "output_dir"
	KeyUILanguage   = "ui_language"
	KeyWatermark    = "watermark"
)

// Store is a file-backed key-value settings store. Each store owns its own
// viper instance so tests can run against temporary files.
type Store struct {
	mu   sync.RWMutex
	v    *viper.Viper
	path string
}

// Open reads the settings file at path, creating defaults in memory when
// the file does not exist yet. The file is only written on Set.
func Open(path string) (*Store, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault(KeyEngine, "")
	v.SetDefault(KeyOutputFormat, "wav")
	v.SetDefault(KeyOutputDir, "")
	v.SetDefault(KeyUILanguage, "en")
	v.SetDefault(KeyWatermark, false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	}
	return &Store{v: v, path: path}, nil
}

// ActiveEngine returns the configured engine id, empty when unset.
func (s *Store) ActiveEngine() string { return s.getString(KeyEngine) }

// OutputFormat returns the configured audio container extension.
func (s *Store) OutputFormat() string { return s.getString(KeyOutputFormat) }

// OutputDir returns the directory generated audio is written to.
func (s *Store) OutputDir() string { return s.getString(KeyOutputDir) }

// UILanguage returns the interface language code.
func (s *Store) UILanguage() string { return s.getString(KeyUILanguage) }

// Watermark reports whether generated audio should be watermarked.
func (s *Store) Watermark() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetBool(KeyWatermark)
}

// Keys lists the known setting keys in display order.
func Keys() []string {
	return []string{KeyEngine, KeyOutputFormat, KeyOutputDir, KeyUILanguage, KeyWatermark}
}

// Set updates a key and persists the file.
func (s *Store) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(key, value)
	return s.save()
}

// SetString validates the key, coerces the raw value to the key's type, and
// persists it. This is the entry point for user input.
func (s *Store) SetString(key, value string) error {
	switch key {
	case KeyEngine, KeyOutputFormat, KeyOutputDir, KeyUILanguage:
		return s.Set(key, value)
	case KeyWatermark:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("setting %q expects true or false, got %q", key, value)
		}
		return s.Set(key, b)
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
}

// GetString returns the value for a known key rendered as a string.
func (s *Store) GetString(key string) (string, error) {
	switch key {
	case KeyEngine, KeyOutputFormat, KeyOutputDir, KeyUILanguage:
		return s.getString(key), nil
	case KeyWatermark:
		return strconv.FormatBool(s.Watermark()), nil
	default:
		return "", fmt.Errorf("unknown setting %q", key)
	}
}

func (s *Store) getString(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetString(key)
}

func (s *Store) save() error {
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Package configfile loads and persists the project configuration file.
package configfile

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/artpar/agentkit/internal/core/config"
	"github.com/artpar/agentkit/internal/core/domain"
)

// ErrNotFound is returned when the configuration file does not exist.
var ErrNotFound = errors.New("configuration file not found")

// Store reads and writes one project configuration file.
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore creates a Store for path on fsys. A nil fsys uses the OS
// filesystem.
func NewStore(fsys afero.Fs, path string) *Store {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if path == "" {
		path = config.DefaultFileName
	}
	return &Store{fs: fsys, path: path}
}

// Path returns the configuration file path.
func (s *Store) Path() string { return s.path }

// Dir returns the project directory, the directory holding the file.
func (s *Store) Dir() string { return filepath.Dir(s.path) }

// Fs returns the filesystem the store works on.
func (s *Store) Fs() afero.Fs { return s.fs }

// Load reads, defaults and validates the configuration.
// A missing file is CONFIG_MISSING; a malformed or invalid one is
// CONFIG_INVALID.
func (s *Store) Load() (*config.ProjectConfig, error) {
	raw, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.NewError(domain.ErrorCodeConfigMissing, "Load",
				fmt.Sprintf("%s not found", s.path), ErrNotFound)
		}
		return nil, domain.NewError(domain.ErrorCodeConfigMissing, "Load", err.Error(), err)
	}

	cfg, err := Parse(raw)
	if err != nil {
		return nil, domain.NewError(domain.ErrorCodeConfigInvalid, "Load",
			fmt.Sprintf("%s: %v", s.path, err), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, domain.NewError(domain.ErrorCodeConfigInvalid, "Load",
			fmt.Sprintf("%s: %v", s.path, err), err)
	}
	return cfg, nil
}

// Parse decodes a configuration document and applies defaults.
func Parse(raw []byte) (*config.ProjectConfig, error) {
	var cfg config.ProjectConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Save writes cfg to the file. The document is written to a temporary file
// in the same directory and renamed over the original.
func (s *Store) Save(cfg *config.ProjectConfig) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// ApplyAndSave applies updates to cfg and persists the result. Nothing is
// written when updates is empty.
func (s *Store) ApplyAndSave(cfg *config.ProjectConfig, updates *config.Updates) error {
	if !updates.HasUpdates() {
		return nil
	}
	if err := cfg.ApplyUpdates(updates); err != nil {
		return err
	}
	return s.Save(cfg)
}

package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/genosma/assets"
	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/pkg/filesystem"
	"github.com/doeshing/genosma/internal/ports"
)

// FileLoader loads YAML configuration from ~/.genosma/config.yaml
// (overridable via GENOSMA_CONFIG).
type FileLoader struct {
	overridePath string
}

// NewFileLoader builds a new loader. An empty path uses the default location.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path}
}

// Load implements ports.ConfigProvider. A missing file is created from the
// embedded defaults.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.Path()
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return domain.Config{}, err
		}
		if err := filesystem.EnsureParentDir(path); err != nil {
			return domain.Config{}, err
		}
		if err := os.WriteFile(path, assets.DefaultConfigYAML, domain.SecureFilePermissions); err != nil {
			return domain.Config{}, err
		}
		data = assets.DefaultConfigYAML
	}

	cfg, err := Parse(data)
	if err != nil {
		return domain.Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Path returns the file Load reads.
func (l *FileLoader) Path() string {
	if l.overridePath != "" {
		return filesystem.ExpandPath(l.overridePath)
	}
	if custom := os.Getenv("GENOSMA_CONFIG"); custom != "" {
		return filesystem.ExpandPath(custom)
	}
	return filesystem.DataPath("config.yaml")
}

// Save writes cfg to Path with owner-only permissions.
func (l *FileLoader) Save(cfg domain.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	path := l.Path()
	if err := filesystem.EnsureParentDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, domain.SecureFilePermissions)
}

// Backup copies the current file to a timestamped sibling and returns its path.
func (l *FileLoader) Backup() (string, error) {
	path := l.Path()
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	backup := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
	if err := os.WriteFile(backup, data, domain.SecureFilePermissions); err != nil {
		return "", err
	}
	return backup, nil
}

// Reset overwrites the file with the embedded defaults.
func (l *FileLoader) Reset() (domain.Config, error) {
	path := l.Path()
	if err := filesystem.EnsureParentDir(path); err != nil {
		return domain.Config{}, err
	}
	if err := os.WriteFile(path, assets.DefaultConfigYAML, domain.SecureFilePermissions); err != nil {
		return domain.Config{}, err
	}
	return Default(), nil
}

// Parse decodes YAML and fills unset fields.
func Parse(data []byte) (domain.Config, error) {
	var cfg domain.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("parse config: %w", err)
	}
	return hydrateDefaults(cfg), nil
}

// Default returns the embedded default configuration.
func Default() domain.Config {
	cfg, err := Parse(assets.DefaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded config is invalid: %v", err))
	}
	return cfg
}

func hydrateDefaults(cfg domain.Config) domain.Config {
	if cfg.ConfigFormatVersion == "" {
		cfg.ConfigFormatVersion = "1"
	}
	if cfg.Preferences.DefaultModel == "" && len(cfg.Models) > 0 {
		cfg.Preferences.DefaultModel = cfg.Models[0].Name
	}
	if cfg.Planning.SearchPolicy == "" {
		cfg.Planning.SearchPolicy = domain.SearchPolicyMissingContext
	}
	if cfg.Knowledge.Backend == "" {
		cfg.Knowledge.Backend = domain.KnowledgeBackendSQLite
	}
	if cfg.Context.MaxFiles == 0 {
		cfg.Context.MaxFiles = domain.DefaultPreviewMaxFiles
	}
	if cfg.Context.IncludeGit == "" {
		cfg.Context.IncludeGit = "auto"
	}
	return cfg
}

var _ ports.ConfigProvider = (*FileLoader)(nil)

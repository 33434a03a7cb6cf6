// Package config handles publish manifest loading and validation
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dorkodu/pharpub/pkg/archive"
	"github.com/dorkodu/pharpub/pkg/types"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// ConfigNames are searched, in order, by FindConfig
var ConfigNames = []string{
	"pharpub.config.json",
	"pharpub.config.yaml",
	"pharpub.config.yml",
	"pharpub.config.toml",
}

// Manager handles configuration operations
type Manager struct{}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{}
}

// FindConfig returns the first manifest found in root
func FindConfig(root string) (string, error) {
	for _, name := range ConfigNames {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no pharpub config found in %s", root)
}

// LoadConfig loads and validates a manifest. The format follows the file
// extension; unknown extensions are tried as JSON, YAML, then TOML.
func (m *Manager) LoadConfig(path string) (*types.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := decode(filepath.Ext(path), data)
	if err != nil {
		return nil, err
	}
	if err := m.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(ext string, data []byte) (*types.Manifest, error) {
	var cfg types.Manifest

	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err == nil {
			return &cfg, nil
		}
		cfg = types.Manifest{}
		if err := yaml.Unmarshal(data, &cfg); err == nil {
			return &cfg, nil
		}
		cfg = types.Manifest{}
		if _, err := toml.Decode(string(data), &cfg); err == nil {
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to parse config as JSON, YAML or TOML")
	}

	return &cfg, nil
}

// ValidateConfig validates a manifest
func (m *Manager) ValidateConfig(cfg *types.Manifest) error {
	if cfg.Version != types.ManifestVersion {
		return fmt.Errorf("%w: unsupported config version: %q", ErrInvalidConfig, cfg.Version)
	}
	if len(cfg.Jobs) == 0 {
		return fmt.Errorf("%w: no jobs defined", ErrInvalidConfig)
	}
	if cfg.Parallelism < 0 {
		return fmt.Errorf("%w: parallelism must not be negative", ErrInvalidConfig)
	}

	names := make(map[string]bool)
	for i, job := range cfg.Jobs {
		if names[job.Name] {
			return fmt.Errorf("%w: duplicate job name: %s", ErrInvalidConfig, job.Name)
		}
		names[job.Name] = true

		if err := m.validateJob(job); err != nil {
			label := job.Name
			if label == "" {
				label = fmt.Sprintf("#%d", i)
			}
			return fmt.Errorf("%w: job '%s': %v", ErrInvalidConfig, label, err)
		}
	}

	return nil
}

func (m *Manager) validateJob(job types.Job) error {
	if job.Name == "" {
		return fmt.Errorf("missing name")
	}
	if job.Name == "." || job.Name == ".." || strings.ContainsAny(job.Name, `/\`) {
		return fmt.Errorf("name must be a plain file name")
	}
	if job.Source == "" {
		return fmt.Errorf("missing source")
	}
	if job.Output == "" {
		return fmt.Errorf("missing output")
	}

	compression, err := archive.ParseCompression(job.Compression)
	if err != nil {
		return err
	}
	if job.Basic && (compression != archive.None || job.Buffering) {
		return fmt.Errorf("basic jobs support neither compression nor buffering")
	}

	if job.Pattern != "" {
		if _, err := archive.CompilePattern(job.Pattern); err != nil {
			return err
		}
	}
	return archive.ValidateExcludes(job.Exclude)
}

// GetDefaultConfig returns the manifest written by `pharpub init`
func (m *Manager) GetDefaultConfig(name string) *types.Manifest {
	if name == "" {
		name = "app.phar"
	}
	return &types.Manifest{
		Version: types.ManifestVersion,
		Jobs: []types.Job{
			{
				Name:        name,
				Source:      "src",
				Output:      "dist",
				Pattern:     `/\.php$/`,
				Exclude:     []string{"tests/**", "*.md"},
				Stub:        archive.DefaultEntry,
				Compression: archive.GZ.String(),
				Buffering:   true,
			},
		},
	}
}

// WriteConfig writes a manifest in the format implied by the path
func (m *Manager) WriteConfig(path string, cfg *types.Manifest) error {
	var (
		data []byte
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	case ".toml":
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(cfg)
		data = buf.Bytes()
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the main configuration for snaptank.
type Config struct {
	// Root is the project directory all template paths resolve against.
	Root        string          `toml:"root"`
	LogDir      string          `toml:"log_dir"`
	JournalPath string          `toml:"journal_path"`
	Templates   TemplatesConfig `toml:"templates"`
	Copier      CopierConfig    `toml:"copier"`
}

// TemplatesConfig declares the work and snapshot path patterns and the
// typed keys they share.
type TemplatesConfig struct {
	Work     string               `toml:"work"`
	Snapshot string               `toml:"snapshot"`
	Keys     map[string]KeyConfig `toml:"keys"`
}

// KeyConfig describes one template key.
type KeyConfig struct {
	Type    string `toml:"type"` // "str", "int" or "timestamp"
	Padding int    `toml:"padding,omitempty"`
}

// CopierConfig holds file copy settings.
type CopierConfig struct {
	// VerifyChecksums re-reads every copied file and compares xxh3 digests.
	VerifyChecksums bool `toml:"verify_checksums"`
}

// NewConfig creates a Config for the given project root with default
// templates matching the conventional <name>_v<version>.<ext> naming.
func NewConfig(baseDir, root string) *Config {
	return &Config{
		Root:        root,
		LogDir:      filepath.Join(baseDir, "log"),
		JournalPath: filepath.Join(baseDir, "journal.db"),
		Templates: TemplatesConfig{
			Work:     "{name}_v{version}.{ext}",
			Snapshot: "snapshots/{name}_v{version}_{timestamp}.{increment}.{ext}",
			Keys: map[string]KeyConfig{
				"version":   {Type: "int", Padding: 3},
				"increment": {Type: "int"},
				"timestamp": {Type: "timestamp"},
			},
		},
		Copier: CopierConfig{VerifyChecksums: true},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path. An existing
// config is never overwritten.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}

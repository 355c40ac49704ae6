package config

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/snaptank", "/proj")

	if cfg.Root != "/proj" {
		t.Errorf("Root = %q, want /proj", cfg.Root)
	}
	if cfg.LogDir != filepath.Join("/data/snaptank", "log") {
		t.Errorf("LogDir = %q", cfg.LogDir)
	}
	if cfg.JournalPath != filepath.Join("/data/snaptank", "journal.db") {
		t.Errorf("JournalPath = %q", cfg.JournalPath)
	}
	if cfg.Templates.Work == "" || cfg.Templates.Snapshot == "" {
		t.Error("default templates missing")
	}
	if cfg.Templates.Keys["version"].Type != "int" {
		t.Errorf("version key type = %q, want int", cfg.Templates.Keys["version"].Type)
	}
	if cfg.Templates.Keys["increment"].Type != "int" {
		t.Errorf("increment key type = %q, want int", cfg.Templates.Keys["increment"].Type)
	}
	if !cfg.Copier.VerifyChecksums {
		t.Error("checksum verification not enabled by default")
	}
}

func TestManager_ReadWrite(t *testing.T) {
	cfg := NewConfig("/data/snaptank", "/proj")
	cfg.Templates.Keys["step"] = KeyConfig{Type: "str"}

	var buf bytes.Buffer
	m := &Manager{}
	if err := m.Write(&buf, cfg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.Root != cfg.Root {
		t.Errorf("Root = %q, want %q", got.Root, cfg.Root)
	}
	if got.Templates.Snapshot != cfg.Templates.Snapshot {
		t.Errorf("Snapshot template = %q, want %q", got.Templates.Snapshot, cfg.Templates.Snapshot)
	}
	if got.Templates.Keys["version"].Padding != 3 {
		t.Errorf("version padding = %d, want 3", got.Templates.Keys["version"].Padding)
	}
	if got.Templates.Keys["step"].Type != "str" {
		t.Errorf("custom key lost in round trip")
	}
}

func TestManager_ReadInvalid(t *testing.T) {
	m := &Manager{}
	if _, err := m.Read(bytes.NewBufferString(":::: not toml")); err == nil {
		t.Error("Read() accepted invalid TOML")
	}
}

func TestInit(t *testing.T) {
	t.Run("creates a readable config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "conf", "snaptank.toml")
		cfg := NewConfig("/data/snaptank", "/proj")

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Root != "/proj" {
			t.Errorf("Root = %q, want /proj", got.Root)
		}
	})

	t.Run("refuses to overwrite an existing config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "snaptank.toml")
		cfg := NewConfig("/data/snaptank", "/proj")

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}
		if err := Init(path, cfg); err == nil {
			t.Error("second Init() overwrote existing config")
		}
	})
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, cfg, func(next *Config) {
		select {
		case reloaded <- next:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case next := <-reloaded:
		if next.LogLevel != "debug" {
			t.Errorf("reloaded log_level = %q, want debug", next.LogLevel)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback never fired")
	}
}

func TestWatcher_RejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, cfg, func(next *Config) { reloaded <- next })
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	defer w.Close()

	// An invalid level fails validation; the callback must not fire.
	if err := os.WriteFile(path, []byte("log_level: bogus\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case next := <-reloaded:
		t.Errorf("invalid config applied: %+v", next)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, cfg, func(next *Config) { reloaded <- next })
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloaded:
		t.Error("reload fired for an unrelated file")
	case <-time.After(500 * time.Millisecond):
	}
}

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/erickerk/elitetrack/internal/config"
)

func TestInitCommand(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	out, err := execute(t, initCmd, "", "init", "--server", "https://track.example.com/")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	dir := filepath.Join(home, ".elitetrack")
	if out != "Configuration initialized at "+dir+"\n" {
		t.Errorf("output = %q", out)
	}

	path := filepath.Join(dir, "config.yaml")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config permissions = %o, want 600", perm)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%s): %v", path, err)
	}
	// trailing slash is trimmed by Set
	if cfg.Server.URL != "https://track.example.com" {
		t.Errorf("server.url = %q", cfg.Server.URL)
	}
	if cfg.Logging.Level != config.Default().Logging.Level {
		t.Errorf("logging.level = %q, want default %q", cfg.Logging.Level, config.Default().Logging.Level)
	}

	// flag state must not leak into the next invocation
	if initServerURL != "" {
		t.Errorf("initServerURL = %q after run", initServerURL)
	}
}

func TestInitCommand_RefusesToOverwrite(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(home, ".elitetrack", "config.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	original := []byte("logging:\n  level: debug\n")
	if err := os.WriteFile(path, original, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, initCmd, "", "init")
	if err == nil || !strings.Contains(err.Error(), "configuration already exists at "+path) {
		t.Fatalf("err = %v, want existing-config error", err)
	}
	if !strings.Contains(err.Error(), "config set") {
		t.Errorf("error lacks reconfigure guidance: %v", err)
	}
	if data, _ := os.ReadFile(path); string(data) != string(original) {
		t.Error("existing config was modified")
	}
}

package main

import (
	"strings"
	"testing"

	"github.com/erickerk/elitetrack/internal/config"
)

func TestConfigShowCommand(t *testing.T) {
	setupTestConfig(t, "http://test:9090")

	got, err := execute(t, configCmd, "", "config", "show")
	if err != nil {
		t.Fatalf("config show command failed: %v", err)
	}

	for _, part := range []string{
		"Server:",
		"URL: http://test:9090",
		"Revalidate interval: 5m0s",
		"Logging:",
		"Level: error",
	} {
		if !strings.Contains(got, part) {
			t.Errorf("output missing expected part: %s\nGot:\n%s", part, got)
		}
	}
}

func TestConfigShowCommand_WithEnvOverride(t *testing.T) {
	setupTestConfig(t, "http://test:9090")
	t.Setenv("ELITETRACK_SERVER_URL", "https://override.example.com")

	got, err := execute(t, configCmd, "", "config", "show")
	if err != nil {
		t.Fatalf("config show command failed: %v", err)
	}
	if !strings.Contains(got, "URL: https://override.example.com") {
		t.Errorf("expected env override in output, got:\n%s", got)
	}
}

func TestConfigSetCommand(t *testing.T) {
	setupTestConfig(t, "http://test:9090")

	tests := []struct {
		key, value string
		check      func(*config.Config) bool
	}{
		{"server.url", "https://track.example.com", func(c *config.Config) bool { return c.Server.URL == "https://track.example.com" }},
		{"session.revalidate_interval", "30s", func(c *config.Config) bool { return c.Session.RevalidateInterval.String() == "30s" }},
		{"logging.format", "json", func(c *config.Config) bool { return c.Logging.Format == "json" }},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := execute(t, configCmd, "", "config", "set", tt.key, tt.value)
			if err != nil {
				t.Fatalf("config set failed: %v", err)
			}
			if !strings.Contains(got, "Updated "+tt.key) {
				t.Errorf("unexpected output: %s", got)
			}

			cfg, err := config.LoadClient()
			if err != nil {
				t.Fatalf("LoadClient() error = %v", err)
			}
			if !tt.check(cfg) {
				t.Errorf("%s was not persisted", tt.key)
			}
		})
	}
}

func TestConfigSetCommand_Invalid(t *testing.T) {
	setupTestConfig(t, "http://test:9090")

	tests := []struct {
		name string
		args []string
	}{
		{"unknown key", []string{"config", "set", "storage.driver", "postgres"}},
		{"bad duration", []string{"config", "set", "session.revalidate_interval", "soon"}},
		{"bad url", []string{"config", "set", "server.url", "not a url"}},
		{"missing value", []string{"config", "set", "server.url"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, configCmd, "", tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}

	cfg, err := config.LoadClient()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.URL != "http://test:9090" {
		t.Errorf("config changed after failed sets: %s", cfg.Server.URL)
	}
}

func TestConfigKeyCompletion(t *testing.T) {
	keys, _ := configKeyCompletion(configSetCmd, nil, "")
	if len(keys) != len(config.SettableKeys()) {
		t.Errorf("completion offers %d keys, config accepts %d", len(keys), len(config.SettableKeys()))
	}
	if keys, _ := configKeyCompletion(configSetCmd, []string{"server.url"}, ""); keys != nil {
		t.Errorf("expected no completion after key, got %v", keys)
	}
}

package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != 6360 {
		t.Errorf("expected default port 6360, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected default host 127.0.0.1, got %q", cfg.Server.Host)
	}
	if cfg.Storage.Engine != "jsonfile" {
		t.Errorf("expected default engine jsonfile, got %q", cfg.Storage.Engine)
	}
	if cfg.Storage.StatePath != filepath.Join("./data", "state.json") {
		t.Errorf("unexpected default state path %q", cfg.Storage.StatePath)
	}
	if cfg.Narrator.URL != "" {
		t.Errorf("narrator polling should default to disabled, got %q", cfg.Narrator.URL)
	}
	if cfg.Narrator.PollInterval != 10*time.Second {
		t.Errorf("expected default poll interval 10s, got %v", cfg.Narrator.PollInterval)
	}
	if cfg.Security.SecurityMode != "development" {
		t.Errorf("expected default security mode development, got %q", cfg.Security.SecurityMode)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SCENELINE_PORT", "9100")
	t.Setenv("SCENELINE_STORAGE_ENGINE", "sqlite")
	t.Setenv("SCENELINE_DATA_PATH", "/var/lib/sceneline")
	t.Setenv("SCENELINE_NARRATOR_URL", "http://narrator.local/payload")
	t.Setenv("SCENELINE_NARRATOR_POLL_INTERVAL", "30s")
	t.Setenv("SCENELINE_SECURITY_MODE", "production")
	t.Setenv("SCENELINE_API_TOKEN", "secret")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("expected port 9100, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Engine != "sqlite" {
		t.Errorf("expected engine sqlite, got %q", cfg.Storage.Engine)
	}
	if cfg.Storage.SQLitePath != filepath.Join("/var/lib/sceneline", "scene.db") {
		t.Errorf("data path should anchor derived paths, got %q", cfg.Storage.SQLitePath)
	}
	if cfg.Narrator.URL != "http://narrator.local/payload" {
		t.Errorf("unexpected narrator URL %q", cfg.Narrator.URL)
	}
	if cfg.Narrator.PollInterval != 30*time.Second {
		t.Errorf("expected poll interval 30s, got %v", cfg.Narrator.PollInterval)
	}
	if cfg.Security.SecurityMode != "production" || cfg.Security.APIToken != "secret" {
		t.Errorf("unexpected security config %+v", cfg.Security)
	}
}

func TestLoadConfigBadValuesFallBack(t *testing.T) {
	t.Setenv("SCENELINE_PORT", "not-a-number")
	t.Setenv("SCENELINE_NARRATOR_POLL_INTERVAL", "soon")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != 6360 {
		t.Errorf("unparseable port should fall back to default, got %d", cfg.Server.Port)
	}
	if cfg.Narrator.PollInterval != 10*time.Second {
		t.Errorf("unparseable interval should fall back to default, got %v", cfg.Narrator.PollInterval)
	}
}

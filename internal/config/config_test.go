package config

import "testing"

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("INTAKE_BACKEND_URL", "http://backend.local:8000/")
	t.Setenv("AUTOSAVE_DELAY_MS", "not-a-number")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := FromEnv()
	if cfg.BackendURL != "http://backend.local:8000" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.BackendURL)
	}
	if cfg.AutoSaveDelay != 1000 {
		t.Fatalf("expected default autosave delay, got %d", cfg.AutoSaveDelay)
	}
	if !cfg.Debug() {
		t.Fatalf("expected debug mode for LOG_LEVEL=debug")
	}
	if cfg.StorageBucket != "transcripts" {
		t.Fatalf("expected default bucket, got %q", cfg.StorageBucket)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("AUTOSAVE_DELAY_MS", "250")
	t.Setenv("STORAGE_BUCKET", "archive")
	t.Setenv("HTTP_PORT", "9090")

	cfg := FromEnv()
	if cfg.AutoSaveDelay != 250 {
		t.Fatalf("expected 250, got %d", cfg.AutoSaveDelay)
	}
	if cfg.StorageBucket != "archive" || cfg.HTTPPort != "9090" {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
}

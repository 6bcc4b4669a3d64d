package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "model:\n  path: /models/yolov8\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("expected default address :8080, got %q", cfg.HTTP.Address)
	}
	if cfg.Camera.RequestWidth != 1280 || cfg.Camera.RequestHeight != 720 {
		t.Fatalf("expected default 1280x720, got %dx%d", cfg.Camera.RequestWidth, cfg.Camera.RequestHeight)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected default log level info, got %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: verbose\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid logging level")
	}
}

func TestLoadRejectsNegativeDeviceID(t *testing.T) {
	path := writeConfig(t, "camera:\n  device_id: -1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for negative device id")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

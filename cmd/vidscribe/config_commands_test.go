package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vidscribe/internal/testsupport"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "vidscribe.toml")

	stdout, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, stdout, target)
	requireContains(t, testsupport.ReadFile(t, target), "[model]")

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected refusal to overwrite, got %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
}

func TestConfigShowMasksSecrets(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv("VIDSCRIBE_S3_SECRET_KEY", "super-secret")

	stdout, _, err := runCLI(t, []string{"config", "show", "--log-level", "debug"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, stdout, "source: "+env.configPath)
	requireContains(t, stdout, "debug")
	if strings.Contains(stdout, "super-secret") {
		t.Fatalf("secret leaked:\n%s", stdout)
	}
}

func TestConfigValidate(t *testing.T) {
	env := setupCLITestEnv(t)
	stdout, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, stdout, "Configuration valid")

	invalid := filepath.Join(t.TempDir(), "invalid.toml")
	if err := os.WriteFile(invalid, []byte("[model]\nbackend = \"vosk\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "validate"}, invalid); err == nil || !strings.Contains(err.Error(), "model.backend") {
		t.Fatalf("expected backend validation error, got %v", err)
	}
}

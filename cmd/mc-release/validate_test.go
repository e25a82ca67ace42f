package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Fudheryk/monitoring-client/internal/config"
)

func runValidate(t *testing.T, args []string) error {
	t.Helper()
	cmd := createValidateCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	return cmd.RunE(cmd, args)
}

func TestValidateAcceptsGoodPipelineConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "release.yaml")
	if err := os.WriteFile(path, []byte("app:\n  name: monitoring-client\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := runValidate(t, []string{path}); err != nil {
		t.Errorf("valid pipeline config rejected: %v", err)
	}
}

func TestValidateRejectsBadPipelineConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "release.yaml")
	if err := os.WriteFile(path, []byte("tarball:\n  formats:\n    - rar\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := runValidate(t, []string{path}); err == nil {
		t.Error("invalid pipeline config accepted")
	}
}

func TestValidateAppConfigAgainstShippedSchema(t *testing.T) {
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Paths.PackagingDir = filepath.Join(dir, "packaging")
	config.SetGlobal(cfg)
	t.Cleanup(func() { config.SetGlobal(config.Default()) })

	schema := `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["backend"],
  "properties": {
    "backend": {
      "type": "object",
      "required": ["url"],
      "properties": { "url": { "type": "string" } }
    }
  }
}`
	if err := os.MkdirAll(cfg.Paths.PackagingDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfg.Paths.PackagingDir, "config.schema.json"), []byte(schema), 0o644); err != nil {
		t.Fatal(err)
	}

	good := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(good, []byte("backend:\n  url: https://example.com\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	origAppConfig := appConfigPath
	t.Cleanup(func() { appConfigPath = origAppConfig })

	appConfigPath = good
	if err := runValidate(t, nil); err != nil {
		t.Errorf("valid app config rejected: %v", err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("collection: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	appConfigPath = bad
	if err := runValidate(t, nil); err == nil {
		t.Error("app config missing required backend section accepted")
	}
}

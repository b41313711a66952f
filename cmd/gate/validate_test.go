package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "gate.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestValidateConfigPrintsSummary(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[logging]
log_file = "op.jsonl"
review_log_file = "review.jsonl"

[system]
priority = 10

[[system.deny]]
id = "deny-etc"
tool = "Read"
file_path_regex = "^/etc/"
`)
	var buf bytes.Buffer
	if err := validateConfig(path, &buf); err != nil {
		t.Fatalf("validateConfig error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "deny rules:   1") {
		t.Errorf("missing deny rule count in output: %s", out)
	}
	if !strings.Contains(out, "llm fallback: disabled") {
		t.Errorf("missing llm status in output: %s", out)
	}
}

func TestValidateConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[system]
priority = 10
`)
	var buf bytes.Buffer
	if err := validateConfig(path, &buf); err == nil {
		t.Fatal("expected error for config missing [logging]")
	}
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	Token string `yaml:"token"`
}

func (s *sample) Validate() error {
	if s.Port == 0 {
		return errors.New("port is required")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExpand(t *testing.T) {
	t.Setenv("CFG_SET", "value")
	t.Setenv("CFG_EMPTY", "")

	tests := map[string]string{
		"${CFG_SET}":          "value",
		"$CFG_SET/x":          "value/x",
		"${CFG_UNSET}":        "",
		"${CFG_UNSET:-fb}":    "fb",
		"${CFG_EMPTY:-fb}":    "fb",
		"${CFG_SET:-fb}":      "value",
		"plain text, no vars": "plain text, no vars",
	}
	for in, want := range tests {
		if got := Expand(in); got != want {
			t.Errorf("Expand(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoad_KeepsDefaults(t *testing.T) {
	t.Setenv("CFG_TOKEN", "abc")
	path := writeFile(t, "port: 9000\ntoken: ${CFG_TOKEN}\n")

	cfg := sample{Name: "default", Port: 1}
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "default" || cfg.Port != 9000 || cfg.Token != "abc" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	var cfg sample
	if err := Load(filepath.Join(t.TempDir(), "missing.yaml"), &cfg); err == nil {
		t.Error("missing file accepted")
	}
	if err := Load(writeFile(t, "port: [1\n"), &cfg); err == nil {
		t.Error("invalid YAML accepted")
	}
	err := Load(writeFile(t, "name: x\n"), &sample{})
	if err == nil || !strings.Contains(err.Error(), "port is required") {
		t.Errorf("validation err = %v", err)
	}
}

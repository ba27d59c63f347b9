package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigYAMLRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Service.BaseURL = "http://interview.internal:9000"
	cfg.Interview.TimeLimit = 300
	cfg.Interview.StressMode = true
	cfg.APIKey = "sk-secret"

	if err := WriteConfig(tmpDir, cfg); err != nil {
		t.Fatalf("WriteConfig failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, configFile))
	if err != nil {
		t.Fatalf("reading written config: %v", err)
	}
	if strings.Contains(string(data), "sk-secret") {
		t.Error("API key was written to config.yaml")
	}

	loaded, err := ReadConfig(tmpDir)
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}
	if loaded.Service.BaseURL != "http://interview.internal:9000" {
		t.Errorf("Service.BaseURL: got %q, want %q", loaded.Service.BaseURL, "http://interview.internal:9000")
	}
	if loaded.Interview.TimeLimit != 300 || !loaded.Interview.StressMode {
		t.Errorf("Interview: got %+v, want time_limit 300 with stress mode", loaded.Interview)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	partial := "version: 1\ninterview:\n  domain: Databases\n"
	if err := os.WriteFile(filepath.Join(tmpDir, configFile), []byte(partial), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := ReadConfig(tmpDir)
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}
	if cfg.Interview.Domain != "Databases" {
		t.Errorf("Domain: got %q, want %q", cfg.Interview.Domain, "Databases")
	}
	if cfg.Interview.FollowupThreshold != 7 {
		t.Errorf("FollowupThreshold: got %d, want default 7", cfg.Interview.FollowupThreshold)
	}
	if cfg.Service.BaseURL != "http://localhost:8000" {
		t.Errorf("BaseURL: got %q, want default", cfg.Service.BaseURL)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.Path != filepath.Join(tmpDir, "intervai.db") {
		t.Errorf("Store.Path: got %q, want default under home", cfg.Store.Path)
	}
	if cfg.Log.Path != filepath.Join(tmpDir, "log.jsonl") {
		t.Errorf("Log.Path: got %q, want default under home", cfg.Log.Path)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)
	t.Setenv("INTERVAI_BASE_URL", "http://env:1234")
	t.Setenv("INTERVAI_TIME_LIMIT", "90")
	t.Setenv("INTERVAI_STRESS_MODE", "true")
	t.Setenv("INTERVAI_API_KEY", "from-env")

	dotenv := "INTERVAI_API_KEY=from-dotenv\nINTERVAI_DOMAIN=Networking\n"
	if err := os.WriteFile(filepath.Join(tmpDir, envFile), []byte(dotenv), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("INTERVAI_DOMAIN") })

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Service.BaseURL != "http://env:1234" {
		t.Errorf("BaseURL: got %q, want %q", cfg.Service.BaseURL, "http://env:1234")
	}
	if cfg.Interview.TimeLimit != 90 || !cfg.Interview.StressMode {
		t.Errorf("Interview: got %+v, want time_limit 90 with stress", cfg.Interview)
	}
	if cfg.APIKey != "from-env" {
		t.Errorf("APIKey: got %q, want real env to win over .env", cfg.APIKey)
	}
	if cfg.Interview.Domain != "Networking" {
		t.Errorf("Domain: got %q, want value from .env", cfg.Interview.Domain)
	}
}

func TestLoadRejectsBadInt(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)
	t.Setenv("INTERVAI_TIME_LIMIT", "two minutes")

	if _, err := Load(tmpDir); err == nil {
		t.Fatal("Load accepted a non-numeric INTERVAI_TIME_LIMIT")
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	cfg.Interview.Difficulty = "extreme"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate accepted unknown difficulty")
	}

	cfg = DefaultConfig()
	cfg.Store.Driver = "mongo"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate accepted unknown store driver")
	}
}

func TestClampTimeLimit(t *testing.T) {
	tests := map[int]int{
		0:    0,
		-10:  0,
		10:   30,
		100:  90,
		120:  120,
		135:  150,
		5000: 900,
	}
	for in, want := range tests {
		if got := ClampTimeLimit(in); got != want {
			t.Errorf("ClampTimeLimit(%d): got %d, want %d", in, got, want)
		}
	}
}

func TestValidateSetup(t *testing.T) {
	if err := ValidateSetup("demo", "openai", "Go", "basic"); err != nil {
		t.Fatalf("valid setup rejected: %v", err)
	}

	err := ValidateSetup("  ", "openai", "", "basic")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("error %v does not wrap ErrMissingAPIKey", err)
	}
	if !errors.Is(err, ErrMissingDomain) {
		t.Errorf("error %v does not wrap ErrMissingDomain", err)
	}

	if err := ValidateSetup("demo", "mistral", "Go", "basic"); err == nil {
		t.Error("unknown provider accepted")
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "http://"
			},
			wantErr: "base URL",
		},
		{
			name: "relative search path",
			mutate: func(cfg *Config) {
				cfg.SearchPath = "search"
			},
			wantErr: "search path",
		},
		{
			name: "zero search timeout",
			mutate: func(cfg *Config) {
				cfg.SearchTimeout = 0
			},
			wantErr: "search timeout",
		},
		{
			name: "negative document timeout",
			mutate: func(cfg *Config) {
				cfg.DocumentTimeout = -1 * time.Second
			},
			wantErr: "document timeout",
		},
		{
			name: "negative row delay",
			mutate: func(cfg *Config) {
				cfg.RowDelay = -time.Millisecond
			},
			wantErr: "row delay",
		},
		{
			name: "zero row delay",
			mutate: func(cfg *Config) {
				cfg.RowDelay = 0
			},
			wantErr: "row delay",
		},
		{
			name: "sub-second row delay",
			mutate: func(cfg *Config) {
				cfg.RowDelay = 500 * time.Millisecond
			},
			wantErr: "row delay",
		},
		{
			name: "missing isbn column",
			mutate: func(cfg *Config) {
				cfg.ISBNCol = ""
			},
			wantErr: "column names",
		},
		{
			name: "unknown format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "parquet"
			},
			wantErr: "output format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if cfg.SearchTimeout != 15*time.Second || cfg.DocumentTimeout != 10*time.Second {
		t.Fatalf("timeouts = %s/%s, want 15s/10s", cfg.SearchTimeout, cfg.DocumentTimeout)
	}
	if cfg.RowDelay < time.Second {
		t.Fatalf("row delay = %s, want at least 1s", cfg.RowDelay)
	}
}

func TestSearchEndpoint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://site.test/"
	if got := cfg.SearchEndpoint(); got != "https://site.test/search" {
		t.Fatalf("SearchEndpoint() = %q", got)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("CHECKER_TEST_STRING", "  value  ")
	t.Setenv("CHECKER_TEST_INT", "42")
	t.Setenv("CHECKER_TEST_BAD_INT", "forty")
	t.Setenv("CHECKER_TEST_DURATION", "1500ms")

	if got, ok := EnvString("CHECKER_TEST_STRING"); !ok || got != "value" {
		t.Fatalf("EnvString = %q/%v", got, ok)
	}
	if _, ok := EnvString("CHECKER_TEST_UNSET"); ok {
		t.Fatalf("unset variable reported as present")
	}
	if got, ok, err := EnvInt("CHECKER_TEST_INT"); err != nil || !ok || got != 42 {
		t.Fatalf("EnvInt = %d/%v/%v", got, ok, err)
	}
	if _, ok, err := EnvInt("CHECKER_TEST_BAD_INT"); err == nil || !ok {
		t.Fatalf("expected parse error for bad int, got %v", err)
	}
	if got, ok, err := EnvDuration("CHECKER_TEST_DURATION"); err != nil || !ok || got != 1500*time.Millisecond {
		t.Fatalf("EnvDuration = %s/%v/%v", got, ok, err)
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing env file should be ignored, got %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("CHECKER_TEST_FROM_FILE=loaded\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("CHECKER_TEST_FROM_FILE", "")
	os.Unsetenv("CHECKER_TEST_FROM_FILE")

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("load env file: %v", err)
	}
	if got, ok := EnvString("CHECKER_TEST_FROM_FILE"); !ok || got != "loaded" {
		t.Fatalf("env from file = %q/%v", got, ok)
	}
}

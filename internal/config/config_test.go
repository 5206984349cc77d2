package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
)

// TestDefaultConfig verifies default configuration values
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Mode != "all" {
		t.Errorf("Mode = %q, want %q", cfg.Mode, "all")
	}
	if cfg.MaxWorkers != 0 {
		t.Errorf("MaxWorkers = %d, want 0", cfg.MaxWorkers)
	}
	if cfg.MaxFileSize != 4*1024*1024 {
		t.Errorf("MaxFileSize = %d, want 4 MiB", cfg.MaxFileSize)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.LogDir != "" {
		t.Errorf("LogDir = %q, want empty", cfg.LogDir)
	}
	if !cfg.Lock {
		t.Error("Lock = false, want true")
	}
	if cfg.Journal.Enabled {
		t.Error("Journal.Enabled = true, want false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestLoadConfigValidFile tests loading a valid YAML config file
func TestLoadConfigValidFile(t *testing.T) {
	path := writeConfig(t, `mode: lines
max_workers: 3
max_file_size: 512KiB
match_timeout: 2s
ignore_case: true
fixed_strings: true
log_level: debug
log_dir: /tmp/far-logs
lock: false
journal:
  enabled: true
  db_path: /tmp/far.db
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Mode != "lines" {
		t.Errorf("Mode = %q, want %q", cfg.Mode, "lines")
	}
	if cfg.MaxWorkers != 3 {
		t.Errorf("MaxWorkers = %d, want 3", cfg.MaxWorkers)
	}
	if cfg.MaxFileSize != 512*1024 {
		t.Errorf("MaxFileSize = %d, want %d", cfg.MaxFileSize, 512*1024)
	}
	if cfg.MatchTimeout != 2*time.Second {
		t.Errorf("MatchTimeout = %v, want 2s", cfg.MatchTimeout)
	}
	if !cfg.IgnoreCase || !cfg.FixedStrings {
		t.Errorf("IgnoreCase/FixedStrings = %v/%v, want true/true", cfg.IgnoreCase, cfg.FixedStrings)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.LogDir != "/tmp/far-logs" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/tmp/far-logs")
	}
	if cfg.Lock {
		t.Error("Lock = true, want false")
	}
	if !cfg.Journal.Enabled || cfg.Journal.DBPath != "/tmp/far.db" {
		t.Errorf("Journal = %+v, want enabled with /tmp/far.db", cfg.Journal)
	}
}

// TestLoadConfigPartialFile verifies missing keys keep their defaults
func TestLoadConfigPartialFile(t *testing.T) {
	path := writeConfig(t, "max_file_size: 1048576\njournal:\n  enabled: true\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.MaxFileSize != 1048576 {
		t.Errorf("MaxFileSize = %d, want 1048576", cfg.MaxFileSize)
	}
	if cfg.Mode != "all" {
		t.Errorf("Mode = %q, want default %q", cfg.Mode, "all")
	}
	if !cfg.Lock {
		t.Error("Lock should keep its default")
	}
	if !cfg.Journal.Enabled || cfg.Journal.DBPath != "" {
		t.Errorf("Journal = %+v, want enabled with default path", cfg.Journal)
	}
}

// TestLoadConfigMissingFile tests that missing file returns defaults
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}
	if cfg.Mode != "all" {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadConfigFromDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("mode: lines\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFromDir(dir)
	if err != nil {
		t.Fatalf("LoadConfigFromDir() error = %v", err)
	}
	if cfg.Mode != "lines" {
		t.Errorf("Mode = %q, want %q", cfg.Mode, "lines")
	}
}

// TestLoadConfigErrors tests malformed input
func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"invalid yaml", "mode: [unclosed\n", "failed to parse config file"},
		{"bad size", "max_file_size: lots\n", "invalid max_file_size"},
		{"bad timeout", "match_timeout: soon\n", "invalid match_timeout format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

// TestMergeWithFlags verifies flags override config values only when set
func TestMergeWithFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = "lines"
	cfg.MaxWorkers = 8

	workers := 2
	size := int64(1024)
	level := "warn"
	noLock := false
	journal := true

	cfg.MergeWithFlags(FlagOverrides{
		MaxWorkers:     &workers,
		MaxFileSize:    &size,
		LogLevel:       &level,
		Lock:           &noLock,
		JournalEnabled: &journal,
	})

	if cfg.Mode != "lines" {
		t.Errorf("Mode = %q, want config value %q kept", cfg.Mode, "lines")
	}
	if cfg.MaxWorkers != 2 {
		t.Errorf("MaxWorkers = %d, want 2", cfg.MaxWorkers)
	}
	if cfg.MaxFileSize != 1024 {
		t.Errorf("MaxFileSize = %d, want 1024", cfg.MaxFileSize)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "warn")
	}
	if cfg.Lock {
		t.Error("Lock = true, want false")
	}
	if !cfg.Journal.Enabled {
		t.Error("Journal.Enabled = false, want true")
	}
}

// TestValidateReportsEveryProblem verifies all invalid fields are reported together
func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = "words"
	cfg.MaxWorkers = -1
	cfg.MaxFileSize = 0
	cfg.MatchTimeout = -time.Second
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}

	merr, ok := err.(*multierror.Error)
	if !ok {
		t.Fatalf("error type = %T, want *multierror.Error", err)
	}
	if len(merr.Errors) != 5 {
		t.Errorf("got %d errors, want 5: %v", len(merr.Errors), err)
	}
	for _, want := range []string{"mode", "max_workers", "max_file_size", "match_timeout", "log_level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

// TestValidateAcceptsConsumerSpellings verifies that every mode and level the
// replacer and loggers accept also passes validation.
func TestValidateAcceptsConsumerSpellings(t *testing.T) {
	tests := []struct {
		mode  string
		level string
	}{
		{"line", "INFO"},
		{"LINES", "Debug"},
		{"All", " warn "},
		{"lines", "TRACE"},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Mode = tt.mode
		cfg.LogLevel = tt.level
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate(mode=%q, log_level=%q) = %v, want nil", tt.mode, tt.level, err)
		}
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"4MiB", 4 * 1024 * 1024, false},
		{"4 MiB", 4 * 1024 * 1024, false},
		{"1k", 1000, false},
		{"1KiB", 1024, false},
		{"100", 100, false},
		{"big", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseSize(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestFormatSize(t *testing.T) {
	if got := FormatSize(4 * 1024 * 1024); got != "4.0 MiB" {
		t.Errorf("FormatSize(4MiB) = %q, want %q", got, "4.0 MiB")
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/harrison/far/internal/logger"
	"github.com/harrison/far/internal/replace"
)

// FileName is the config file looked up in the working directory.
const FileName = ".far.yaml"

// JournalConfig represents run journal configuration
type JournalConfig struct {
	// Enabled records every run and its per-file outcomes
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the journal database; empty means the default
	// location under the far home directory
	DBPath string `yaml:"db_path"`
}

// Config represents far configuration options
type Config struct {
	// Mode is the substitution mode: "all" (whole file) or "lines"
	Mode string `yaml:"mode"`

	// MaxWorkers bounds concurrent file rewrites (0 = number of CPUs)
	MaxWorkers int `yaml:"max_workers"`

	// MaxFileSize is the whole-file mode size ceiling in bytes
	MaxFileSize int64 `yaml:"max_file_size"`

	// MatchTimeout bounds a single pattern evaluation (0 = no limit)
	MatchTimeout time.Duration `yaml:"match_timeout"`

	// IgnoreCase makes the pattern case-insensitive
	IgnoreCase bool `yaml:"ignore_case"`

	// FixedStrings treats the pattern as a literal string
	FixedStrings bool `yaml:"fixed_strings"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs are written; empty disables file logging
	LogDir string `yaml:"log_dir"`

	// Lock takes a cross-process lock on every root for the duration of the run
	Lock bool `yaml:"lock"`

	// Journal contains run journal configuration
	Journal JournalConfig `yaml:"journal"`
}

// DefaultMaxFileSize is the default whole-file size ceiling (4 MiB).
const DefaultMaxFileSize int64 = 4 * 1024 * 1024

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Mode:         "all",
		MaxWorkers:   0, // Number of CPUs
		MaxFileSize:  DefaultMaxFileSize,
		MatchTimeout: 0,
		LogLevel:     "info",
		LogDir:       "",
		Lock:         true,
		Journal: JournalConfig{
			Enabled: false,
			DBPath:  "",
		},
	}
}

// yamlConfig mirrors Config with pointer fields so that keys present in the
// file can be told apart from zero values.
type yamlConfig struct {
	Mode         *string `yaml:"mode"`
	MaxWorkers   *int    `yaml:"max_workers"`
	MaxFileSize  *string `yaml:"max_file_size"`
	MatchTimeout *string `yaml:"match_timeout"`
	IgnoreCase   *bool   `yaml:"ignore_case"`
	FixedStrings *bool   `yaml:"fixed_strings"`
	LogLevel     *string `yaml:"log_level"`
	LogDir       *string `yaml:"log_dir"`
	Lock         *bool   `yaml:"lock"`
	Journal      *struct {
		Enabled *bool   `yaml:"enabled"`
		DBPath  *string `yaml:"db_path"`
	} `yaml:"journal"`
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if raw.Mode != nil {
		cfg.Mode = *raw.Mode
	}
	if raw.MaxWorkers != nil {
		cfg.MaxWorkers = *raw.MaxWorkers
	}
	if raw.MaxFileSize != nil {
		size, err := ParseSize(*raw.MaxFileSize)
		if err != nil {
			return nil, fmt.Errorf("invalid max_file_size %q: %w", *raw.MaxFileSize, err)
		}
		cfg.MaxFileSize = size
	}
	if raw.MatchTimeout != nil {
		timeout, err := time.ParseDuration(*raw.MatchTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid match_timeout format %q: %w", *raw.MatchTimeout, err)
		}
		cfg.MatchTimeout = timeout
	}
	if raw.IgnoreCase != nil {
		cfg.IgnoreCase = *raw.IgnoreCase
	}
	if raw.FixedStrings != nil {
		cfg.FixedStrings = *raw.FixedStrings
	}
	if raw.LogLevel != nil {
		cfg.LogLevel = *raw.LogLevel
	}
	if raw.LogDir != nil {
		cfg.LogDir = *raw.LogDir
	}
	if raw.Lock != nil {
		cfg.Lock = *raw.Lock
	}
	if raw.Journal != nil {
		if raw.Journal.Enabled != nil {
			cfg.Journal.Enabled = *raw.Journal.Enabled
		}
		if raw.Journal.DBPath != nil {
			cfg.Journal.DBPath = *raw.Journal.DBPath
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .far.yaml in the specified directory
// If the file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, FileName))
}

// ParseSize parses a byte size such as "4MiB", "512k" or "1048576".
func ParseSize(s string) (int64, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n > 1<<62 {
		return 0, fmt.Errorf("size %s is too large", s)
	}
	return int64(n), nil
}

// FormatSize renders a byte count the way ParseSize accepts it.
func FormatSize(n int64) string {
	if n < 0 {
		return fmt.Sprintf("%d B", n)
	}
	return humanize.IBytes(uint64(n))
}

// FlagOverrides holds CLI flag values. A nil field means the flag was not
// given on the command line and the config value is kept.
type FlagOverrides struct {
	Mode           *string
	MaxWorkers     *int
	MaxFileSize    *int64
	MatchTimeout   *time.Duration
	IgnoreCase     *bool
	FixedStrings   *bool
	LogLevel       *string
	LogDir         *string
	Lock           *bool
	JournalEnabled *bool
	JournalDBPath  *string
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
// This allows CLI flags to take precedence over config file settings
func (c *Config) MergeWithFlags(f FlagOverrides) {
	if f.Mode != nil {
		c.Mode = *f.Mode
	}
	if f.MaxWorkers != nil {
		c.MaxWorkers = *f.MaxWorkers
	}
	if f.MaxFileSize != nil {
		c.MaxFileSize = *f.MaxFileSize
	}
	if f.MatchTimeout != nil {
		c.MatchTimeout = *f.MatchTimeout
	}
	if f.IgnoreCase != nil {
		c.IgnoreCase = *f.IgnoreCase
	}
	if f.FixedStrings != nil {
		c.FixedStrings = *f.FixedStrings
	}
	if f.LogLevel != nil {
		c.LogLevel = *f.LogLevel
	}
	if f.LogDir != nil {
		c.LogDir = *f.LogDir
	}
	if f.Lock != nil {
		c.Lock = *f.Lock
	}
	if f.JournalEnabled != nil {
		c.Journal.Enabled = *f.JournalEnabled
	}
	if f.JournalDBPath != nil {
		c.Journal.DBPath = *f.JournalDBPath
	}
}

// Validate validates the configuration values
// Every problem is reported, not just the first one. Mode and log level are
// checked with the same parsers that consume them, so "line" and "INFO" pass.
func (c *Config) Validate() error {
	var result *multierror.Error

	if _, err := replace.ParseMode(c.Mode); err != nil {
		result = multierror.Append(result, fmt.Errorf("invalid mode %q, must be one of: all, lines", c.Mode))
	}

	if c.MaxWorkers < 0 {
		result = multierror.Append(result, fmt.Errorf("max_workers must be >= 0, got %d", c.MaxWorkers))
	}

	if c.MaxFileSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("max_file_size must be > 0, got %s", FormatSize(c.MaxFileSize)))
	}

	if c.MatchTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("match_timeout must be >= 0, got %v", c.MatchTimeout))
	}

	if !logger.IsValidLevel(c.LogLevel) {
		result = multierror.Append(result, fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel))
	}

	return result.ErrorOrNil()
}

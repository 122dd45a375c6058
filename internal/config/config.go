// Package config loads mirror configuration from defaults, a config file,
// the environment and command-line flags, in increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/natefinch/atomic"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/mdmirror/mdmirror/internal/mirror/db"
	"github.com/mdmirror/mdmirror/internal/mirror/summary"
	msync "github.com/mdmirror/mdmirror/internal/mirror/sync"
)

// EnvPrefix prefixes every environment override: MIRROR_DB_PATH sets db.path.
const EnvPrefix = "MIRROR"

// APIKeyEnv holds the summarizer key. It is never read from config files.
const APIKeyEnv = "ANTHROPIC_API_KEY"

// DefaultFile is the name `mirror init` writes.
const DefaultFile = "mirror.yaml"

// Summary providers.
const (
	ProviderNone      = "none"
	ProviderAnthropic = "anthropic"
)

// searchNames are tried in order in each search directory.
var searchNames = []string{"mirror.yaml", "mirror.yml", "mirror.toml", "mirror.json", "mirror.jsonc"}

// Config holds all application configuration
type Config struct {
	Root             string          `mapstructure:"root" yaml:"root"`
	DB               DBConfig        `mapstructure:"db" yaml:"db"`
	Debounce         time.Duration   `mapstructure:"debounce" yaml:"debounce"`
	FullSyncInterval time.Duration   `mapstructure:"full_sync_interval" yaml:"full_sync_interval"`
	Files            msync.Files     `mapstructure:"files" yaml:"files"`
	Notes            NotesConfig     `mapstructure:"notes" yaml:"notes"`
	Log              LogConfig       `mapstructure:"log" yaml:"log"`
	Dashboard        DashboardConfig `mapstructure:"dashboard" yaml:"dashboard"`
	Summary          SummaryConfig   `mapstructure:"summary" yaml:"summary"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-" yaml:"-"`
}

type DBConfig struct {
	Path   string `mapstructure:"path" yaml:"path"`
	Driver string `mapstructure:"driver" yaml:"driver"`
}

type NotesConfig struct {
	Glob string `mapstructure:"glob" yaml:"glob"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file,omitempty"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

type SummaryConfig struct {
	Provider  string `mapstructure:"provider" yaml:"provider"`
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`

	APIKey string `mapstructure:"-" yaml:"-"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Root:             ".",
		DB:               DBConfig{Path: "mirror.db", Driver: db.DefaultDriver},
		Debounce:         500 * time.Millisecond,
		FullSyncInterval: 5 * time.Minute,
		Files:            msync.DefaultFiles,
		Notes:            NotesConfig{Glob: msync.DefaultNotesGlob},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Dashboard: DashboardConfig{Port: 8080},
		Summary: SummaryConfig{
			Provider:  ProviderNone,
			Model:     summary.DefaultModel,
			MaxTokens: summary.DefaultMaxTokens,
		},
	}
}

// FlagKeys maps command-line flag names to config keys. Flags not listed
// here are bound only if their name is already a key.
var FlagKeys = map[string]string{
	"root":      "root",
	"db":        "db.path",
	"driver":    "db.driver",
	"debounce":  "debounce",
	"interval":  "full_sync_interval",
	"dashboard": "dashboard.enabled",
	"port":      "dashboard.port",
	"log-level": "log.level",
	"log-json":  "log.format",
	"log-file":  "log.file",
}

// Options controls where Load looks.
type Options struct {
	// File is an explicit config file. When empty, the working directory
	// and then the user config directory are searched.
	File string

	// EnvFile is loaded into the environment first if it exists.
	// Defaults to ".env". Existing variables are not overwritten.
	EnvFile string

	// Flags are bound over every other source. Only flags the user set
	// take effect.
	Flags *pflag.FlagSet

	// SearchDirs replaces the default search directories.
	SearchDirs []string
}

// Load builds the configuration. It does not validate; call Validate.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v, Default())

	file := opts.File
	if file == "" {
		file = find(searchDirs(opts.SearchDirs))
	}
	if file != "" {
		if err := readFile(v, file); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = file
	cfg.Summary.APIKey = os.Getenv(APIKeyEnv)
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("root", d.Root)
	v.SetDefault("db.path", d.DB.Path)
	v.SetDefault("db.driver", d.DB.Driver)
	v.SetDefault("debounce", d.Debounce)
	v.SetDefault("full_sync_interval", d.FullSyncInterval)
	v.SetDefault("files.tasks", d.Files.Tasks)
	v.SetDefault("files.jobs", d.Files.Jobs)
	v.SetDefault("files.content", d.Files.Content)
	v.SetDefault("files.goals", d.Files.Goals)
	v.SetDefault("files.memory", d.Files.Memory)
	v.SetDefault("files.cv_history", d.Files.CVHistory)
	v.SetDefault("notes.glob", d.Notes.Glob)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("dashboard.enabled", d.Dashboard.Enabled)
	v.SetDefault("dashboard.port", d.Dashboard.Port)
	v.SetDefault("summary.provider", d.Summary.Provider)
	v.SetDefault("summary.model", d.Summary.Model)
	v.SetDefault("summary.max_tokens", d.Summary.MaxTokens)
}

func searchDirs(dirs []string) []string {
	if dirs != nil {
		return dirs
	}
	dirs = []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(dir, "mdmirror"))
	}
	return dirs
}

// find returns the first config file present in dirs.
func find(dirs []string) string {
	for _, dir := range dirs {
		for _, name := range searchNames {
			p := filepath.Join(dir, name)
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p
			}
		}
	}
	return ""
}

// readFile merges a config file into v. JSONC is standardized to JSON
// first; every other format is left to viper.
func readFile(v *viper.Viper, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".jsonc") {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
		std, err := hujson.Standardize(data)
		if err != nil {
			return fmt.Errorf("invalid JSONC in %s: %w", path, err)
		}
		v.SetConfigType("json")
		if err := v.ReadConfig(bytes.NewReader(std)); err != nil {
			return fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		key, ok := FlagKeys[f.Name]
		if !ok {
			return
		}
		// --log-json is a bool standing in for log.format.
		if f.Name == "log-json" {
			if f.Changed && f.Value.String() == "true" {
				v.Set("log.format", "json")
			}
			return
		}
		if bindErr := v.BindPFlag(key, f); bindErr != nil {
			err = fmt.Errorf("failed to bind flag --%s: %w", f.Name, bindErr)
		}
	})
	return err
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errs []string

	if c.Root == "" {
		errs = append(errs, "root cannot be empty")
	} else if info, err := os.Stat(c.Root); err != nil || !info.IsDir() {
		errs = append(errs, fmt.Sprintf("root must be an existing directory, got: %s", c.Root))
	}

	if c.DB.Path == "" {
		errs = append(errs, "db.path cannot be empty")
	}
	if !slices.Contains(db.Drivers(), c.DB.Driver) {
		errs = append(errs, fmt.Sprintf("db.driver must be one of: %s, got: %s", strings.Join(db.Drivers(), ", "), c.DB.Driver))
	}

	if c.Debounce <= 0 {
		errs = append(errs, fmt.Sprintf("debounce must be positive, got: %s", c.Debounce))
	}
	if c.FullSyncInterval < time.Second {
		errs = append(errs, fmt.Sprintf("full_sync_interval must be at least 1s, got: %s", c.FullSyncInterval))
	}

	for key, name := range map[string]string{
		"files.tasks":      c.Files.Tasks,
		"files.jobs":       c.Files.Jobs,
		"files.content":    c.Files.Content,
		"files.goals":      c.Files.Goals,
		"files.memory":     c.Files.Memory,
		"files.cv_history": c.Files.CVHistory,
	} {
		if name == "" {
			errs = append(errs, fmt.Sprintf("%s cannot be empty", key))
		} else if strings.ContainsAny(name, `/\`) {
			errs = append(errs, fmt.Sprintf("%s must be a file name, got: %s", key, name))
		}
	}

	if c.Notes.Glob == "" {
		errs = append(errs, "notes.glob cannot be empty")
	} else if _, err := filepath.Match(c.Notes.Glob, ""); err != nil {
		errs = append(errs, fmt.Sprintf("notes.glob is not a valid pattern: %s", c.Notes.Glob))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of: debug, info, warn, error, got: %s", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Sprintf("log.format must be one of: text, json, got: %s", c.Log.Format))
	}

	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		errs = append(errs, fmt.Sprintf("dashboard.port must be between 0 and 65535, got: %d", c.Dashboard.Port))
	}

	switch c.Summary.Provider {
	case ProviderNone:
	case ProviderAnthropic:
		if c.Summary.APIKey == "" {
			errs = append(errs, fmt.Sprintf("summary.provider %q requires %s", ProviderAnthropic, APIKeyEnv))
		}
		if c.Summary.MaxTokens <= 0 {
			errs = append(errs, fmt.Sprintf("summary.max_tokens must be positive, got: %d", c.Summary.MaxTokens))
		}
	default:
		errs = append(errs, fmt.Sprintf("summary.provider must be one of: none, anthropic, got: %s", c.Summary.Provider))
	}

	if len(errs) > 0 {
		slices.Sort(errs)
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Write stores cfg as YAML at path, replacing any existing file atomically.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

package internal

import (
	"log/slog"
	"path/filepath"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/sowilo/internal/index"
	"github.com/starford/sowilo/internal/storage"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

var extensionRe = regexp.MustCompile(`^\.[A-Za-z0-9]+$`)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Vault  VaultConfig       `yaml:"vault"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Index  IndexConfig       `yaml:"index"`
	Search SearchConfig      `yaml:"search"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.App),
		validation.Field(&c.Vault),
		validation.Field(&c.SQLite),
		validation.Field(&c.Index),
		validation.Field(&c.Search),
	)
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
}

// Validate validates the application configuration.
func (c ApplicationConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.LogFormat, validation.Required, validation.In(LogFormatJSON, LogFormatText)),
	)
}

// VaultConfig describes the Markdown vault: its root, which file
// extensions count as notes and which directory names are skipped.
type VaultConfig struct {
	Path       string   `yaml:"path"`
	Extensions []string `yaml:"extensions"`
	Ignore     []string `yaml:"ignore"`
}

// Validate validates the vault configuration.
func (c VaultConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Extensions, validation.Each(validation.Required, validation.Match(extensionRe))),
		validation.Field(&c.Ignore, validation.Each(validation.Required)),
	)
}

// SQLiteConfig holds SQLite database configuration. An empty Path places
// the index inside the vault.
type SQLiteConfig struct {
	Path        string        `yaml:"path"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// Validate validates the SQLite configuration.
func (c SQLiteConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BusyTimeout, validation.Min(time.Duration(0))),
	)
}

// IndexConfig tunes the index builder. Zero workers means one per CPU.
type IndexConfig struct {
	Workers int `yaml:"workers"`
}

// Validate validates the index configuration.
func (c IndexConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Workers, validation.Min(0)),
	)
}

// SearchConfig tunes the search engine.
type SearchConfig struct {
	DefaultLimit       int `yaml:"default_limit"`
	CooccurrenceFanout int `yaml:"cooccurrence_fanout"`
	NoteCacheSize      int `yaml:"note_cache_size"`
}

// Validate validates the search configuration.
func (c SearchConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DefaultLimit, validation.Required, validation.Min(1)),
		validation.Field(&c.CooccurrenceFanout, validation.Required, validation.Min(1)),
		validation.Field(&c.NoteCacheSize, validation.Required, validation.Min(1)),
	)
}

// DatabasePath returns the index file location.
func (c *Config) DatabasePath() string {
	if c.SQLite.Path != "" {
		return c.SQLite.Path
	}
	return filepath.Join(c.Vault.Path, index.DirName, index.FileName)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
		},
		Vault: VaultConfig{
			Path:       ".",
			Extensions: append([]string(nil), storage.DefaultExtensions...),
		},
		SQLite: SQLiteConfig{
			BusyTimeout: index.DefaultBusyTimeout,
		},
		Search: SearchConfig{
			DefaultLimit:       20,
			CooccurrenceFanout: 10,
			NoteCacheSize:      1024,
		},
	}
}

// Package config loads the library configuration. Sources, lowest priority
// first: defaults, an optional YAML file, environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

// Config holds every setting of the library program.
type Config struct {
	Environment  string `yaml:"environment" validate:"oneof=development production"`
	Storage      string `yaml:"storage" validate:"oneof=file postgres"`
	DataDir      string `yaml:"data_dir" validate:"required"`
	BooksFile    string `yaml:"books_file" validate:"required_if=Storage file"`
	MembersFile  string `yaml:"members_file" validate:"required_if=Storage file"`
	JournalFile  string `yaml:"journal_file"`
	DatabaseURL  string `yaml:"database_url" validate:"required_if=Storage postgres"`
	LogLevel     string `yaml:"log_level" validate:"oneof=debug info warn error"`
	OTelEndpoint string `yaml:"otel_endpoint"`
}

// envBindings maps environment variables onto config fields.
var envBindings = []struct {
	key   string
	field func(*Config) *string
}{
	{"LIBRARY_ENV", func(c *Config) *string { return &c.Environment }},
	{"LIBRARY_STORAGE", func(c *Config) *string { return &c.Storage }},
	{"LIBRARY_DATA_DIR", func(c *Config) *string { return &c.DataDir }},
	{"LIBRARY_BOOKS_FILE", func(c *Config) *string { return &c.BooksFile }},
	{"LIBRARY_MEMBERS_FILE", func(c *Config) *string { return &c.MembersFile }},
	{"LIBRARY_JOURNAL_FILE", func(c *Config) *string { return &c.JournalFile }},
	{"DATABASE_URL", func(c *Config) *string { return &c.DatabaseURL }},
	{"LIBRARY_LOG_LEVEL", func(c *Config) *string { return &c.LogLevel }},
	{"OTEL_EXPORTER_OTLP_ENDPOINT", func(c *Config) *string { return &c.OTelEndpoint }},
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Environment: "development",
		Storage:     StorageFile,
		DataDir:     ".",
		BooksFile:   "books.txt",
		MembersFile: "members.txt",
		JournalFile: "events.jsonl",
		LogLevel:    "warn",
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty or the file does not exist) and the environment.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	for _, b := range envBindings {
		if value, exists := lookup(b.key); exists {
			*b.field(cfg) = value
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field values and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// BooksPath returns the books file resolved against the data directory.
func (c *Config) BooksPath() string { return c.resolve(c.BooksFile) }

// MembersPath returns the members file resolved against the data directory.
func (c *Config) MembersPath() string { return c.resolve(c.MembersFile) }

// JournalPath returns the journal file resolved against the data directory,
// or "" when the journal is disabled.
func (c *Config) JournalPath() string {
	if c.JournalFile == "" {
		return ""
	}
	return c.resolve(c.JournalFile)
}

func (c *Config) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

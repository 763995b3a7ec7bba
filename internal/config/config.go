package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Source      SourceConfig      `yaml:"source"`
	Destination DestinationConfig `yaml:"destination"`
	JournalPath string            `yaml:"journal_path"`
	LogLevel    string            `yaml:"log_level" default:"info" validate:"oneof=debug info warn error"`
	Output      string            `yaml:"output" default:"table" validate:"oneof=table json yaml tsv"`
	Jobs        int               `yaml:"jobs" default:"1" validate:"min=1,max=64"`
}

// SourceConfig configures access to the legacy system
type SourceConfig struct {
	Token     string `yaml:"token" validate:"required_without=CSV"`
	URL       string `yaml:"url" validate:"required_without=CSV"`
	Notebook  string `yaml:"notebook"`
	PageSize  int    `yaml:"page_size" default:"250" validate:"min=1,max=250"`
	Scheme    string `yaml:"scheme" default:"evernote" validate:"required"`
	IDSegment int    `yaml:"id_segment" default:"6" validate:"min=1"`
	CSV       string `yaml:"csv"`
}

// DestinationConfig configures access to the destination's data API
type DestinationConfig struct {
	Token          string `yaml:"token" validate:"required"`
	URL            string `yaml:"url" default:"http://localhost" validate:"required,url"`
	Port           int    `yaml:"port" default:"41184" validate:"min=0,max=65535"`
	MarkdownPrefix string `yaml:"markdown_prefix" default:":/" validate:"required"`
	HTMLPrefix     string `yaml:"html_prefix" default:"joplin://" validate:"required"`
	SearchQuery    string `yaml:"search_query"`
}

// Section names a part of the configuration a command depends on
type Section string

const (
	SectionSource      Section = "source"
	SectionDestination Section = "destination"
)

// ConfigurationError reports missing or invalid configuration
type ConfigurationError struct {
	Problems []string
	Err      error
}

func (e *ConfigurationError) Error() string {
	if len(e.Problems) > 0 {
		return "invalid configuration: " + strings.Join(e.Problems, "; ")
	}
	return fmt.Sprintf("invalid configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables (RELINK_*)
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. path, or ~/.config/relink/config.yaml when path is empty (YAML)
// 4. Built-in defaults
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.Wrap(err, "set default config failed")
	}

	if err := loadYAMLConfig(cfg, path); err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	// Load .env.local if it exists (walking up parent directories)
	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	// Fill fields the YAML file set to empty values
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.Wrap(err, "re-set default config failed")
	}

	if cfg.JournalPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.JournalPath = filepath.Join(homeDir, ".local", "share", "relink", "journal.db")
	}

	return cfg, nil
}

// loadYAMLConfig reads path into cfg. An empty path falls back to
// ~/.config/relink/config.yaml, which is optional.
func loadYAMLConfig(cfg *Config, path string) error {
	explicit := path != ""
	if !explicit {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		path = filepath.Join(homeDir, ".config", "relink", "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "read config file failed")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(err, "parse config file %s failed", path)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Source.Token, getEnvOrFile("RELINK_SOURCE_TOKEN", "RELINK_SOURCE_TOKEN_FILE"))
	setString(&cfg.Source.URL, os.Getenv("RELINK_SOURCE_URL"))
	setString(&cfg.Source.Notebook, os.Getenv("RELINK_NOTEBOOK"))
	setString(&cfg.Source.Scheme, os.Getenv("RELINK_SCHEME"))
	setString(&cfg.Source.CSV, os.Getenv("RELINK_SOURCE_CSV"))
	setString(&cfg.Destination.Token, getEnvOrFile("RELINK_DEST_TOKEN", "RELINK_DEST_TOKEN_FILE"))
	setString(&cfg.Destination.URL, os.Getenv("RELINK_DEST_URL"))
	setString(&cfg.JournalPath, getEnvOrFile("RELINK_JOURNAL_PATH", "RELINK_JOURNAL_PATH_FILE"))
	setString(&cfg.LogLevel, os.Getenv("RELINK_LOG_LEVEL"))
	setString(&cfg.Output, os.Getenv("RELINK_OUTPUT"))

	ints := []struct {
		env string
		dst *int
	}{
		{"RELINK_PAGE_SIZE", &cfg.Source.PageSize},
		{"RELINK_ID_SEGMENT", &cfg.Source.IDSegment},
		{"RELINK_DEST_PORT", &cfg.Destination.Port},
		{"RELINK_JOBS", &cfg.Jobs},
	}
	for _, v := range ints {
		raw := os.Getenv(v.env)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s: %q is not a number", v.env, raw)
		}
		*v.dst = n
	}
	return nil
}

func setString(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}

	return ""
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
// Returns the path to .env.local if found, empty string otherwise.
func findEnvLocal() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		if _, err := os.Stat(".env.local"); err == nil {
			return ".env.local"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}

		if dir == homeDir {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// SearchQuery returns the destination search that finds notes with legacy links
func (c *Config) SearchQuery() string {
	if c.Destination.SearchQuery != "" {
		return c.Destination.SearchQuery
	}
	return "body:" + c.Source.Scheme + "://"
}

// Validate checks the general settings plus the named sections.
// Commands validate only the sections they talk to.
func (c *Config) Validate(sections ...Section) error {
	v := newValidator()

	var problems []string
	collect := func(err error, prefix string) error {
		if err == nil {
			return nil
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			problems = append(problems, describe(prefix, fe))
		}
		return nil
	}

	if err := collect(v.StructExcept(c, "Source", "Destination"), ""); err != nil {
		return &ConfigurationError{Err: err}
	}
	for _, s := range sections {
		var target any
		switch s {
		case SectionSource:
			target = &c.Source
		case SectionDestination:
			target = &c.Destination
		default:
			return &ConfigurationError{Err: fmt.Errorf("unknown section %q", s)}
		}
		if err := collect(v.Struct(target), string(s)+"."); err != nil {
			return &ConfigurationError{Err: err}
		}
	}

	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func describe(prefix string, fe validator.FieldError) string {
	field := prefix + fe.Field()
	switch fe.Tag() {
	case "required", "required_without":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "min":
		return fmt.Sprintf("%s must be at least %s, got %v", field, fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s, got %v", field, fe.Param(), fe.Value())
	case "url":
		return fmt.Sprintf("%s must be a URL, got %q", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

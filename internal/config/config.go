// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// Enumeration modes.
const (
	ModeAuto = "auto" // probe the action API, fall back to HTML index walking
	ModeAPI  = "api"  // MediaWiki action API only
	ModeHTML = "html" // Special:AllPages HTML walking only
)

// Policy for pages whose text extraction fails or comes back empty.
const (
	EmptyPolicySkip   = "skip"   // omit the page from the collection
	EmptyPolicyRecord = "record" // keep a record with empty text
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided
// via CLI flags.
type Config struct {
	// Target
	Wiki   string `json:"wiki,omitempty" validate:"omitempty,url"` // Wiki root URL
	Output string `json:"output,omitempty"`                        // Collection output path
	Mode   string `json:"mode,omitempty" validate:"omitempty,oneof=auto api html"`

	// Crawl behavior
	DelaySeconds    float64 `json:"delay_seconds,omitempty" validate:"gte=0"`    // Pause between page requests
	Workers         int     `json:"workers,omitempty" validate:"gte=0,lte=16"`   // Concurrent fetchers (1 = sequential)
	CheckpointEvery int     `json:"checkpoint_every,omitempty" validate:"gte=0"` // Pages between progress saves
	MaxPages        int     `json:"max_pages,omitempty" validate:"gte=0"`        // 0 means no cap
	UserAgent       string  `json:"user_agent,omitempty"`
	EmptyPolicy     string  `json:"empty_policy,omitempty" validate:"omitempty,oneof=skip record"`
	KeepRaw         bool    `json:"keep_raw,omitempty"`    // Keep raw wikitext alongside cleaned text
	UseBrowser      bool    `json:"use_browser,omitempty"` // Headless browser fallback for JS-rendered skins
	Verbose         bool    `json:"verbose,omitempty"`

	// Archive
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL (optional)
}

// Defaults returns the built-in configuration defaults, matching a polite
// single-threaded crawl.
func Defaults() Config {
	return Config{
		Output:          "wiki_content.json",
		Mode:            ModeAuto,
		DelaySeconds:    1.5,
		Workers:         1,
		CheckpointEvery: 100,
		EmptyPolicy:     EmptyPolicySkip,
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values. Required fields
// are enforced by CLI flag validation after merging, not here.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			first := fieldErrs[0]
			return fmt.Errorf("config error: field %q fails %q", first.Field(), first.Tag())
		}
		return fmt.Errorf("config validation could not run: %w", err)
	}
	return nil
}

// MergeWithDefaults returns a new Config with unset fields filled from
// defaults. This is used to apply config file values beneath CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Wiki == "" {
		result.Wiki = defaults.Wiki
	}
	if result.Output == "" {
		result.Output = defaults.Output
	}
	if result.Mode == "" {
		result.Mode = defaults.Mode
	}
	if result.UserAgent == "" {
		result.UserAgent = defaults.UserAgent
	}
	if result.EmptyPolicy == "" {
		result.EmptyPolicy = defaults.EmptyPolicy
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}

	if result.DelaySeconds == 0 {
		result.DelaySeconds = defaults.DelaySeconds
	}
	if result.Workers == 0 {
		result.Workers = defaults.Workers
	}
	if result.CheckpointEvery == 0 {
		result.CheckpointEvery = defaults.CheckpointEvery
	}
	if result.MaxPages == 0 {
		result.MaxPages = defaults.MaxPages
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

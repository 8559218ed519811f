// Package config loads quill's configuration.
//
// Precedence (highest wins):
//  1. Defaults (Default)
//  2. The file passed with --config, or $XDG_CONFIG_HOME/quill/config.yaml
//     (~/.config/quill/config.yaml) when it exists
//
// Files ending in .yaml or .yml are YAML; .json, .jsonc and .hujson are
// JSON with comments and trailing commas allowed. Durations are written as
// Go duration strings ("3s", "168h").
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

// FileName is the default config file name.
const FileName = "config.yaml"

var (
	errUnknownFormat = errors.New("unknown config file extension")
	errInvalid       = errors.New("invalid config")
)

// Duration is a time.Duration that reads and writes as a duration string.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText renders the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full configuration.
type Config struct {
	// DataDir holds the entry database and the draft store.
	DataDir string   `yaml:"data_dir" json:"data_dir" validate:"required"`
	Timeout Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`

	Autosave Autosave `yaml:"autosave" json:"autosave"`
	Drafts   Drafts   `yaml:"drafts" json:"drafts"`
	Search   Search   `yaml:"search" json:"search"`
	Ranking  Ranking  `yaml:"ranking" json:"ranking"`
}

// Autosave configures the auto-save scheduler.
type Autosave struct {
	Debounce         Duration `yaml:"debounce" json:"debounce" validate:"gt=0"`
	Ceiling          Duration `yaml:"ceiling" json:"ceiling" validate:"gtfield=Debounce"`
	MaxAttempts      int      `yaml:"max_attempts" json:"max_attempts" validate:"gte=1,lte=20"`
	BaseDelay        Duration `yaml:"base_delay" json:"base_delay" validate:"gt=0"`
	IgnoreWhitespace bool     `yaml:"ignore_whitespace" json:"ignore_whitespace"`
}

// Drafts configures the draft store.
type Drafts struct {
	Retention Duration `yaml:"retention" json:"retention" validate:"gt=0"`
}

// Search configures query parsing, limits and history.
type Search struct {
	MaxQueryTokens int `yaml:"max_query_tokens" json:"max_query_tokens" validate:"gte=1"`
	DefaultLimit   int `yaml:"default_limit" json:"default_limit" validate:"gte=1,ltefield=MaxLimit"`
	MaxLimit       int `yaml:"max_limit" json:"max_limit" validate:"gte=1"`
	HistoryCap     int `yaml:"history_cap" json:"history_cap" validate:"gte=0"`
	SnippetRunes   int `yaml:"snippet_runes" json:"snippet_runes" validate:"gte=16"`
}

// Ranking configures result scoring.
type Ranking struct {
	Weights     Weights            `yaml:"weights" json:"weights"`
	BM25K1      float64            `yaml:"bm25_k1" json:"bm25_k1" validate:"gte=0"`
	BM25B       float64            `yaml:"bm25_b" json:"bm25_b" validate:"gte=0,lte=1"`
	HalfLife    Duration           `yaml:"half_life" json:"half_life" validate:"gt=0"`
	TypeWeights map[string]float64 `yaml:"type_weights" json:"type_weights" validate:"dive,keys,oneof=daily weekly monthly,endkeys,gte=0"`
}

// Weights blend the ranking components.
type Weights struct {
	Relevance float64 `yaml:"relevance" json:"relevance" validate:"gte=0"`
	Recency   float64 `yaml:"recency" json:"recency" validate:"gte=0"`
	Length    float64 `yaml:"length" json:"length" validate:"gte=0"`
	Type      float64 `yaml:"type" json:"type" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataDir: defaultDataDir(),
		Timeout: Duration(5 * time.Second),
		Autosave: Autosave{
			Debounce:         Duration(3 * time.Second),
			Ceiling:          Duration(30 * time.Second),
			MaxAttempts:      5,
			BaseDelay:        Duration(time.Second),
			IgnoreWhitespace: true,
		},
		Drafts: Drafts{
			Retention: Duration(7 * 24 * time.Hour),
		},
		Search: Search{
			MaxQueryTokens: 20,
			DefaultLimit:   20,
			MaxLimit:       100,
			HistoryCap:     1000,
			SnippetRunes:   160,
		},
		Ranking: Ranking{
			Weights:  Weights{Relevance: 0.6, Recency: 0.3, Length: 0.05, Type: 0.05},
			BM25K1:   1.2,
			BM25B:    0.75,
			HalfLife: Duration(30 * 24 * time.Hour),
			TypeWeights: map[string]float64{
				"daily":   1.0,
				"weekly":  0.9,
				"monthly": 0.8,
			},
		},
	}
}

var validate = validator.New()

// Validate checks every field constraint.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", errInvalid, err)
	}
	return nil
}

// DefaultPath returns the user config path, or "" when no home directory
// can be determined. getenv is usually os.Getenv.
func DefaultPath(getenv func(string) string) string {
	if xdg := getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "quill", FileName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "quill", FileName)
}

// Load returns the defaults overlaid with the file at path. An explicit
// path must exist; with path empty the default path is used if present.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()

	mustExist := path != ""
	if path == "" {
		path = DefaultPath(getenv)
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := decode(path, data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w %s: %w", errInvalid, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	case ".json", ".jsonc", ".hujson":
		standardized, err := hujson.Standardize(data)
		if err != nil {
			return fmt.Errorf("invalid JSONC: %w", err)
		}
		return json.Unmarshal(standardized, cfg)
	}
	return fmt.Errorf("%w %q", errUnknownFormat, filepath.Ext(path))
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "quill")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".quill"
	}
	return filepath.Join(home, ".local", "share", "quill")
}

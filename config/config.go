// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/poiesic/textidx/analysis"
	"github.com/poiesic/textidx/maintenance"
	"gopkg.in/yaml.v3"
)

// Config holds the settings of a textidx database and the tools around it.
type Config struct {
	// DBPath is the BadgerDB database directory.
	DBPath string `yaml:"db_path"`

	// InMemory keeps the database in memory; DBPath is ignored.
	InMemory bool `yaml:"in_memory"`

	// Language configures language detection during analysis.
	Language LanguageConfig `yaml:"language"`

	// StopWords adds words to the stop-word dictionaries, keyed by language
	// tag ("en", "url", ...).
	StopWords map[string][]string `yaml:"stop_words"`

	// Indexer configures the ingestion worker pool and conflict retries.
	Indexer IndexerConfig `yaml:"indexer"`

	// Search configures query evaluation.
	Search SearchConfig `yaml:"search"`

	// Check configures consistency checks.
	Check maintenance.Config `yaml:"check"`
}

// LanguageConfig configures language detection.
type LanguageConfig struct {
	// Fixed skips detection and tags all content with this language.
	Fixed string `yaml:"fixed"`

	// MinConfidence is the detection confidence (0..1) below which content
	// is treated as being of unknown language.
	MinConfidence float64 `yaml:"min_confidence"`
}

// IndexerConfig configures ingestion.
type IndexerConfig struct {
	PoolSize    int           `yaml:"pool_size"`
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
}

// SearchConfig configures query evaluation.
type SearchConfig struct {
	// Concurrency is how many OR groups are looked up at once.
	Concurrency int `yaml:"concurrency"`

	// PageLimit is the default number of hits per page.
	PageLimit int `yaml:"page_limit"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithDBPath sets the database directory.
func WithDBPath(path string) ConfigOption {
	return func(c *Config) {
		c.DBPath = path
	}
}

// WithInMemory keeps the database in memory.
func WithInMemory() ConfigOption {
	return func(c *Config) {
		c.InMemory = true
	}
}

// WithFixedLanguage disables language detection.
func WithFixedLanguage(lang string) ConfigOption {
	return func(c *Config) {
		c.Language.Fixed = lang
	}
}

// WithPageLimit sets the default page size.
func WithPageLimit(limit int) ConfigOption {
	return func(c *Config) {
		c.Search.PageLimit = limit
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DBPath: "textidx.db",
		Language: LanguageConfig{
			MinConfidence: analysis.DefaultMinConfidence,
		},
		Indexer: IndexerConfig{
			PoolSize:    4,
			MaxAttempts: 3,
			RetryDelay:  10 * time.Millisecond,
		},
		Search: SearchConfig{
			Concurrency: 4,
			PageLimit:   20,
		},
		Check: *maintenance.DefaultConfig(),
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Normalize ensures the configuration is in a canonical form.
func (c *Config) Normalize() {
	c.DBPath = strings.TrimSpace(c.DBPath)
	c.Language.Fixed = strings.ToLower(strings.TrimSpace(c.Language.Fixed))
	if len(c.StopWords) > 0 {
		normalized := make(map[string][]string, len(c.StopWords))
		for lang, words := range c.StopWords {
			lang = strings.ToLower(strings.TrimSpace(lang))
			for _, word := range words {
				if word = strings.ToLower(strings.TrimSpace(word)); word != "" {
					normalized[lang] = append(normalized[lang], word)
				}
			}
		}
		c.StopWords = normalized
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.DBPath == "" && !c.InMemory {
		return errors.New("config: db_path is required unless in_memory is set")
	}
	if c.Language.MinConfidence < 0 || c.Language.MinConfidence > 1 {
		return errors.New("config: language.min_confidence must be between 0 and 1")
	}
	if c.Indexer.PoolSize < 1 {
		return errors.New("config: indexer.pool_size must be at least 1")
	}
	if c.Indexer.MaxAttempts < 1 {
		return errors.New("config: indexer.max_attempts must be at least 1")
	}
	if c.Indexer.RetryDelay < 0 {
		return errors.New("config: indexer.retry_delay must not be negative")
	}
	if c.Search.Concurrency < 1 {
		return errors.New("config: search.concurrency must be at least 1")
	}
	if c.Search.PageLimit < 1 {
		return errors.New("config: search.page_limit must be at least 1")
	}
	if err := c.Check.Validate(); err != nil {
		return fmt.Errorf("config: check: %w", err)
	}
	return nil
}

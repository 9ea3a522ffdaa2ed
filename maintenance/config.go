package maintenance

import (
	"fmt"
	"time"
)

// Config holds the settings of a consistency check.
type Config struct {
	// BatchSize is the number of records read per transaction.
	BatchSize int `yaml:"batch_size"`

	// ReportInterval is how many records pass between progress reports.
	ReportInterval int `yaml:"report_interval"`

	// MaxRetries is the number of attempts made for each repair.
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the base delay between repair attempts.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// Repair enables fixing the problems found instead of only reporting them.
	Repair bool `yaml:"repair"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 1000,
		MaxRetries:     3,
		RetryDelay:     50 * time.Millisecond,
		Repair:         false,
	}
}

// Validate checks that the Config is usable.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.ReportInterval <= 0 {
		return fmt.Errorf("%w: report interval must be positive, got %d", ErrInvalidConfig, c.ReportInterval)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrInvalidMaxAttempts)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("%w: retry delay must not be negative", ErrInvalidConfig)
	}
	return nil
}

package exporter

import (
	"time"

	"github.com/c360/netstreams/errors"
	"github.com/c360/netstreams/telemetry"
)

// Config holds the batching and persistence settings of one Exporter.
type Config struct {
	Kind   telemetry.Kind `json:"kind"   yaml:"kind"`
	Prefix string         `json:"prefix" yaml:"prefix"`
	// MaxSize flushes the batch when it reaches this many records
	MaxSize int `json:"max_size" yaml:"max_size"`
	// MaxInterval flushes a non-empty batch at least this often
	MaxInterval time.Duration `json:"max_interval" yaml:"max_interval"`
	// MaxRetainedBatches bounds the failed batches kept for retry
	MaxRetainedBatches int           `json:"max_retained_batches" yaml:"max_retained_batches"`
	PutTimeout         time.Duration `json:"put_timeout"          yaml:"put_timeout"`
	QueueSize          int           `json:"queue_size"           yaml:"queue_size"`
}

// DefaultConfig returns defaults for kind.
func DefaultConfig(kind telemetry.Kind) Config {
	return Config{
		Kind:               kind,
		Prefix:             "telemetry",
		MaxSize:            1000,
		MaxInterval:        30 * time.Second,
		MaxRetainedBatches: 10,
		PutTimeout:         10 * time.Second,
		QueueSize:          1024,
	}
}

// Validate checks the configuration for errors
func (c Config) Validate() error {
	if !c.Kind.Valid() {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "unknown kind "+c.Kind.String())
	}
	if c.MaxSize <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "max_size must be positive")
	}
	if c.MaxInterval <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "max_interval must be positive")
	}
	if c.MaxRetainedBatches <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"max_retained_batches must be positive")
	}
	if c.PutTimeout <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "put_timeout must be positive")
	}
	if c.QueueSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "queue_size cannot be negative")
	}
	return nil
}

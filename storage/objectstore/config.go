package objectstore

import (
	"fmt"
	"time"
)

// Config describes the ObjectStore bucket backing a Store.
type Config struct {
	// Bucket is the NATS JetStream ObjectStore bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// MaxBytes caps the bucket size; zero means unlimited
	MaxBytes int64 `json:"max_bytes,omitempty" yaml:"max_bytes,omitempty"`

	// TTL expires objects after the given age; zero keeps them forever
	TTL time.Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`

	Replicas int `json:"replicas,omitempty" yaml:"replicas,omitempty"`
}

// DefaultConfig returns the default bucket configuration.
func DefaultConfig() Config {
	return Config{
		Bucket:      "TELEMETRY_EXPORT",
		Description: "columnar telemetry exports",
		Replicas:    1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	if c.MaxBytes < 0 {
		return fmt.Errorf("max_bytes must be >= 0")
	}
	if c.TTL < 0 {
		return fmt.Errorf("ttl must be >= 0")
	}
	return nil
}

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/c360/netstreams/errors"
)

// Config is the complete application configuration. It is built once by a
// Loader and not modified afterwards.
type Config struct {
	NATS     NATSConfig     `json:"nats"`
	Input    InputConfig    `json:"input"`
	Topics   TopicsConfig   `json:"topics"`
	Export   ExportConfig   `json:"export"`
	Alerts   AlertsConfig   `json:"alerts"`
	Dispatch DispatchConfig `json:"dispatch"`
	Metrics  MetricsConfig  `json:"metrics"`
	// ShutdownGrace bounds how long Stop waits for in-flight envelopes
	ShutdownGrace time.Duration `json:"shutdown_grace"`
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	URLs            []string      `json:"urls,omitempty"`
	Name            string        `json:"name,omitempty"`
	MaxReconnects   int           `json:"max_reconnects,omitempty"`
	ReconnectWait   time.Duration `json:"reconnect_wait,omitempty"`
	Timeout         time.Duration `json:"timeout,omitempty"`
	DrainTimeout    time.Duration `json:"drain_timeout,omitempty"`
	PingInterval    time.Duration `json:"ping_interval,omitempty"`
	MaxBackoff      time.Duration `json:"max_backoff,omitempty"`
	MetricsInterval time.Duration `json:"metrics_interval,omitempty"`
	Username        string        `json:"username,omitempty"`
	Password        string        `json:"password,omitempty"`
	Token           string        `json:"token,omitempty"`
	Compression     bool          `json:"compression,omitempty"`
	TLS             NATSTLSConfig `json:"tls,omitempty"`
}

// NATSTLSConfig for secure NATS connections
type NATSTLSConfig struct {
	Enabled  bool   `json:"enabled"`
	CertFile string `json:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty"`
	CAFile   string `json:"ca_file,omitempty"`
}

// InputConfig names the JetStream stream telemetry arrives on.
type InputConfig struct {
	Stream        string        `json:"stream"`
	Subject       string        `json:"subject"`
	Durable       string        `json:"durable"`
	AckWait       time.Duration `json:"ack_wait"`
	MaxDeliver    int           `json:"max_deliver"`
	MaxAckPending int           `json:"max_ack_pending"`
}

// TopicsConfig holds the per-kind output subjects and their stream.
type TopicsConfig struct {
	Stream    string `json:"stream"`
	Node      string `json:"node"`
	Interface string `json:"interface"`
	Address   string `json:"address"`
}

// Subjects returns every configured output subject.
func (t TopicsConfig) Subjects() []string {
	var out []string
	for _, s := range []string{t.Node, t.Interface, t.Address} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ExportConfig controls the parquet exporters and their object store bucket.
type ExportConfig struct {
	Enabled            bool          `json:"enabled"`
	Bucket             string        `json:"bucket"`
	Prefix             string        `json:"prefix"`
	MaxSize            int           `json:"max_size"`
	MaxInterval        time.Duration `json:"max_interval"`
	MaxRetainedBatches int           `json:"max_retained_batches"`
	PutTimeout         time.Duration `json:"put_timeout"`
	QueueSize          int           `json:"queue_size"`
	MaxBytes           int64         `json:"max_bytes,omitempty"`
	Replicas           int           `json:"replicas,omitempty"`
}

// AlertsConfig controls the alert gate. When disabled, alerts are logged.
type AlertsConfig struct {
	Enabled             bool          `json:"enabled"`
	Subject             string        `json:"subject"`
	Window              time.Duration `json:"window"`
	Immediate           bool          `json:"immediate"`
	QueueSize           int           `json:"queue_size"`
	RatePerMinute       int           `json:"rate_per_minute"`
	MaxDeliveryAttempts int           `json:"max_delivery_attempts"`
	SendTimeout         time.Duration `json:"send_timeout"`
}

// DispatchConfig sizes the dispatch pool and the per-sink retry policy.
type DispatchConfig struct {
	Workers        int           `json:"workers"`
	QueueSize      int           `json:"queue_size"`
	MaxAttempts    int           `json:"max_attempts"`
	InitialBackoff time.Duration `json:"initial_backoff"`
	MaxBackoff     time.Duration `json:"max_backoff"`
	SinkTimeout    time.Duration `json:"sink_timeout"`
}

// RetryConfig converts the dispatch settings to the errors package form.
func (d DispatchConfig) RetryConfig() errors.RetryConfig {
	return errors.RetryConfig{
		MaxRetries:     d.MaxAttempts - 1,
		InitialDelay:   d.InitialBackoff,
		MaxDelay:       d.MaxBackoff,
		BackoffFactor:  2.0,
		AttemptTimeout: d.SinkTimeout,
	}
}

// MetricsConfig for the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// Default returns the configuration used before any file or environment
// layer is applied.
func Default() *Config {
	return &Config{
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			Name:          "netstreams",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			Timeout:       5 * time.Second,
			DrainTimeout:  30 * time.Second,
		},
		Input: InputConfig{
			Stream:        "TELEMETRY",
			Subject:       "telemetry.raw",
			Durable:       "netstreams",
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			MaxAckPending: 1000,
		},
		Topics: TopicsConfig{
			Stream:    "NETSTREAMS",
			Node:      "netstreams.node",
			Interface: "netstreams.interface",
			Address:   "netstreams.address",
		},
		Export: ExportConfig{
			Enabled:            true,
			Bucket:             "TELEMETRY_EXPORT",
			Prefix:             "telemetry",
			MaxSize:            1000,
			MaxInterval:        30 * time.Second,
			MaxRetainedBatches: 10,
			PutTimeout:         10 * time.Second,
			QueueSize:          1024,
			Replicas:           1,
		},
		Alerts: AlertsConfig{
			Enabled:             true,
			Subject:             "netstreams.alerts",
			Window:              5 * time.Minute,
			QueueSize:           256,
			RatePerMinute:       60,
			MaxDeliveryAttempts: 2,
			SendTimeout:         5 * time.Second,
		},
		Dispatch: DispatchConfig{
			Workers:        4,
			QueueSize:      256,
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
			SinkTimeout:    5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		ShutdownGrace: 30 * time.Second,
	}
}

func invalid(field, msg string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %s %s", errors.ErrInvalidConfig, field, msg), "Config", "Validate", field)
}

func missing(field string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrMissingConfig, field), "Config", "Validate", field)
}

// Validate checks required options and value ranges. Export and alerts
// sections are only checked when enabled.
func (c *Config) Validate() error {
	if len(c.NATS.URLs) == 0 {
		return missing("nats.urls")
	}
	for _, raw := range c.NATS.URLs {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return invalid("nats.urls", fmt.Sprintf("has malformed url %q", raw))
		}
	}
	if c.NATS.TLS.Enabled && (c.NATS.TLS.CertFile == "") != (c.NATS.TLS.KeyFile == "") {
		return invalid("nats.tls", "needs both cert_file and key_file")
	}

	if c.Input.Stream == "" {
		return missing("input.stream")
	}
	if c.Input.Subject == "" {
		return missing("input.subject")
	}
	if c.Input.Durable == "" {
		return missing("input.durable")
	}
	if !isValidNATSName(c.Input.Durable) {
		return invalid("input.durable", "must not contain whitespace, dots or wildcards")
	}

	if c.Topics.Stream == "" {
		return missing("topics.stream")
	}
	for field, subject := range map[string]string{
		"topics.node":      c.Topics.Node,
		"topics.interface": c.Topics.Interface,
		"topics.address":   c.Topics.Address,
	} {
		if subject == "" {
			return missing(field)
		}
		if strings.ContainsAny(subject, "*> ") {
			return invalid(field, "must be a literal subject")
		}
	}
	if subjectOverlaps(c.Input.Subject, c.Topics.Subjects()) {
		return invalid("topics", "must not overlap input.subject")
	}

	if c.Export.Enabled {
		if c.Export.Bucket == "" {
			return missing("export.bucket")
		}
		if c.Export.MaxSize <= 0 {
			return invalid("export.max_size", "must be positive")
		}
		if c.Export.MaxInterval <= 0 {
			return invalid("export.max_interval", "must be positive")
		}
		if c.Export.MaxRetainedBatches <= 0 {
			return invalid("export.max_retained_batches", "must be positive")
		}
		if c.Export.PutTimeout <= 0 {
			return invalid("export.put_timeout", "must be positive")
		}
		if c.Export.QueueSize < 0 {
			return invalid("export.queue_size", "cannot be negative")
		}
	}

	if c.Alerts.Enabled {
		if c.Alerts.Subject == "" {
			return missing("alerts.subject")
		}
		if c.Alerts.Window <= 0 {
			return invalid("alerts.window", "must be positive")
		}
		if c.Alerts.RatePerMinute <= 0 {
			return invalid("alerts.rate_per_minute", "must be positive")
		}
		if c.Alerts.MaxDeliveryAttempts <= 0 {
			return invalid("alerts.max_delivery_attempts", "must be positive")
		}
	}

	if c.Dispatch.Workers <= 0 {
		return invalid("dispatch.workers", "must be positive")
	}
	if c.Dispatch.QueueSize < 0 {
		return invalid("dispatch.queue_size", "cannot be negative")
	}
	if c.Dispatch.MaxAttempts <= 0 {
		return invalid("dispatch.max_attempts", "must be at least 1")
	}
	if c.Dispatch.SinkTimeout <= 0 {
		return invalid("dispatch.sink_timeout", "must be positive")
	}
	if c.Dispatch.MaxBackoff < c.Dispatch.InitialBackoff {
		return invalid("dispatch.max_backoff", "must not be below initial_backoff")
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return invalid("metrics.port", "must be between 1 and 65535")
	}
	if c.ShutdownGrace <= 0 {
		return invalid("shutdown_grace", "must be positive")
	}

	return nil
}

// isValidNATSName reports whether s can name a stream or durable consumer.
func isValidNATSName(s string) bool {
	return s != "" && !strings.ContainsAny(s, " \t\r\n.*>")
}

// subjectOverlaps reports whether any subject would be captured by pattern.
func subjectOverlaps(pattern string, subjects []string) bool {
	pt := strings.Split(pattern, ".")
	for _, s := range subjects {
		st := strings.Split(s, ".")
		if matchSubject(pt, st) {
			return true
		}
	}
	return false
}

func matchSubject(pattern, tokens []string) bool {
	for i, p := range pattern {
		if p == ">" {
			return len(tokens) > i
		}
		if i >= len(tokens) || (p != "*" && p != tokens[i]) {
			return false
		}
	}
	return len(pattern) == len(tokens)
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}

	return &clone
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	redacted := c.Clone()
	if redacted.NATS.Password != "" {
		redacted.NATS.Password = "****"
	}
	if redacted.NATS.Token != "" {
		redacted.NATS.Token = "****"
	}
	data, _ := json.MarshalIndent(redacted, "", "  ")
	return string(data)
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/netstreams/errors"
)

// durationFields are the dotted paths holding time.Duration values. Files
// may write them as Go duration strings ("30s", "5m", "1d").
var durationFields = []string{
	"nats.reconnect_wait",
	"nats.timeout",
	"nats.drain_timeout",
	"nats.ping_interval",
	"nats.max_backoff",
	"nats.metrics_interval",
	"input.ack_wait",
	"export.max_interval",
	"export.put_timeout",
	"alerts.window",
	"alerts.send_timeout",
	"dispatch.initial_backoff",
	"dispatch.max_backoff",
	"dispatch.sink_timeout",
	"shutdown_grace",
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	getenv     func(string) string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: true,
		envPrefix:  "NETSTREAMS",
		getenv:     os.Getenv,
	}
}

// AddLayer adds a configuration file layer. Later layers win.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// SetEnvPrefix changes the prefix of environment overrides.
func (l *Loader) SetEnvPrefix(prefix string) {
	l.envPrefix = prefix
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load applies defaults, then each file layer, then environment
// overrides, and validates the result.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", "load "+path)
		}
		merged, err := mergeFromMap(cfg, raw)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", "merge "+path)
		}
		cfg = merged
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadRaw reads a JSON or YAML file into a generic map.
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err)
		}
		// Normalise through JSON so both formats merge the same way
		data, err = json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err)
		}
		raw = nil
	}

	if err := validateJSONDepth(data); err != nil {
		return nil, fmt.Errorf("invalid JSON structure: %w", err)
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err)
	}

	if err := parseDurations(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// parseDurations converts duration strings to nanoseconds for json unmarshaling
func parseDurations(data map[string]any) error {
	for _, field := range durationFields {
		parts := strings.Split(field, ".")
		section := data
		for _, p := range parts[:len(parts)-1] {
			next, ok := section[p].(map[string]any)
			if !ok {
				section = nil
				break
			}
			section = next
		}
		if section == nil {
			continue
		}

		key := parts[len(parts)-1]
		s, ok := section[key].(string)
		if !ok {
			continue
		}
		d, err := parseDurationWithDays(s)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", errors.ErrInvalidConfig, field, err)
		}
		section[key] = d.Nanoseconds()
	}
	return nil
}

// parseDurationWithDays parses durations that may include days (e.g., "14d")
func parseDurationWithDays(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// mergeFromMap merges configuration from a raw map, only overriding fields present in the map
func mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	if override == nil {
		return base, nil
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	mergedJSON, err := json.Marshal(deepMergeMaps(baseMap, override))
	if err != nil {
		return nil, err
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err)
	}
	return &merged, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}

	return result
}

// envOverride binds one environment variable (without prefix) to a field.
type envOverride struct {
	name  string
	apply func(cfg *Config, value string) error
}

func setString(target func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		*target(cfg) = v
		return nil
	}
}

func setInt(target func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*target(cfg) = n
		return nil
	}
}

func setBool(target func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*target(cfg) = b
		return nil
	}
}

func setDuration(target func(*Config) *time.Duration) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		d, err := parseDurationWithDays(v)
		if err != nil {
			return err
		}
		*target(cfg) = d
		return nil
	}
}

var envOverrides = []envOverride{
	{"NATS_URLS", func(cfg *Config, v string) error {
		cfg.NATS.URLs = nil
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.NATS.URLs = append(cfg.NATS.URLs, u)
			}
		}
		return nil
	}},
	{"NATS_USERNAME", setString(func(c *Config) *string { return &c.NATS.Username })},
	{"NATS_PASSWORD", setString(func(c *Config) *string { return &c.NATS.Password })},
	{"NATS_TOKEN", setString(func(c *Config) *string { return &c.NATS.Token })},
	{"INPUT_STREAM", setString(func(c *Config) *string { return &c.Input.Stream })},
	{"INPUT_SUBJECT", setString(func(c *Config) *string { return &c.Input.Subject })},
	{"INPUT_DURABLE", setString(func(c *Config) *string { return &c.Input.Durable })},
	{"TOPICS_STREAM", setString(func(c *Config) *string { return &c.Topics.Stream })},
	{"TOPICS_NODE", setString(func(c *Config) *string { return &c.Topics.Node })},
	{"TOPICS_INTERFACE", setString(func(c *Config) *string { return &c.Topics.Interface })},
	{"TOPICS_ADDRESS", setString(func(c *Config) *string { return &c.Topics.Address })},
	{"EXPORT_ENABLED", setBool(func(c *Config) *bool { return &c.Export.Enabled })},
	{"EXPORT_BUCKET", setString(func(c *Config) *string { return &c.Export.Bucket })},
	{"EXPORT_PREFIX", setString(func(c *Config) *string { return &c.Export.Prefix })},
	{"EXPORT_MAX_SIZE", setInt(func(c *Config) *int { return &c.Export.MaxSize })},
	{"EXPORT_MAX_INTERVAL", setDuration(func(c *Config) *time.Duration { return &c.Export.MaxInterval })},
	{"ALERTS_ENABLED", setBool(func(c *Config) *bool { return &c.Alerts.Enabled })},
	{"ALERTS_SUBJECT", setString(func(c *Config) *string { return &c.Alerts.Subject })},
	{"ALERTS_WINDOW", setDuration(func(c *Config) *time.Duration { return &c.Alerts.Window })},
	{"ALERTS_IMMEDIATE", setBool(func(c *Config) *bool { return &c.Alerts.Immediate })},
	{"DISPATCH_WORKERS", setInt(func(c *Config) *int { return &c.Dispatch.Workers })},
	{"DISPATCH_MAX_ATTEMPTS", setInt(func(c *Config) *int { return &c.Dispatch.MaxAttempts })},
	{"METRICS_ENABLED", setBool(func(c *Config) *bool { return &c.Metrics.Enabled })},
	{"METRICS_PORT", setInt(func(c *Config) *int { return &c.Metrics.Port })},
	{"SHUTDOWN_GRACE", setDuration(func(c *Config) *time.Duration { return &c.ShutdownGrace })},
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	for _, o := range envOverrides {
		key := l.envPrefix + "_" + o.name
		val := l.getenv(key)
		if val == "" {
			continue
		}
		if err := validateEnvVar(key, val); err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", key)
		}
		if err := o.apply(cfg, val); err != nil {
			return errors.WrapInvalid(fmt.Errorf("%w: %s: %w", errors.ErrInvalidConfig, key, err),
				"Loader", "applyEnvOverrides", key)
		}
	}
	return nil
}

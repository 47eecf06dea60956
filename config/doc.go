// Package config loads and validates the netstreams configuration.
//
// A Loader starts from Default, merges each file layer in order, applies
// environment overrides and validates the result:
//
//	loader := config.NewLoader()
//	loader.AddLayer("configs/base.json")
//	loader.AddLayer("configs/production.yaml") // overrides base
//	cfg, err := loader.Load()
//
// Files are JSON, or YAML when the extension is .yaml or .yml. Layers merge
// field by field, so a layer only needs the fields it changes. Durations
// may be written as strings such as "30s", "5m" or "1d".
//
// # Environment Variable Overrides
//
// Selected fields can be overridden with NETSTREAMS_ variables:
//
//	export NETSTREAMS_NATS_URLS="nats://server1:4222,nats://server2:4222"
//	export NETSTREAMS_INPUT_SUBJECT="telemetry.raw"
//	export NETSTREAMS_EXPORT_ENABLED=false
//	export NETSTREAMS_SHUTDOWN_GRACE=45s
//
// # Required Options
//
// A NATS URL, the input stream and subject, and the three topic subjects
// with their stream are required. The export and alerts sections are only
// validated when enabled; with alerts disabled notifications are logged.
//
// # Security
//
// Config files are limited to 10MB and 100 levels of nesting, must be
// regular files, and relative paths may not leave the working directory.
package config

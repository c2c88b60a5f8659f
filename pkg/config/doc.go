// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Plugin settings:
//
//	PLUGWALL_PLUGIN_PATH="/opt/app/plugins:/usr/share/app/plugins"  # OS path list separator
//	PLUGWALL_SERVICE_CACHE_SIZE="64"
//
// Without PLUGWALL_PLUGIN_PATH the existing directories among
// DefaultPluginDirectories are used.
//
// Observability settings:
//
//	PLUGWALL_LOG_LEVEL="info"  # trace, debug, info, warn, error
//	PLUGWALL_METRICS_ENABLED="true"
//	PLUGWALL_TRACING_ENABLED="true"
//	PLUGWALL_OTEL_ENDPOINT="otel-collector:4317"
//	PLUGWALL_OTEL_INSECURE="true"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Plugin roots: %v\n", cfg.Plugins.Roots())
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/plugins: Uses plugin configuration
//   - pkg/observability: Uses observability configuration
package config

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config holds all application configuration
type Config struct {
	// Plugin discovery configuration
	Plugins PluginsConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// PluginsConfig holds plugin discovery settings
type PluginsConfig struct {
	// Path lists the plugin roots in discovery order
	Path []string

	// Explicit is set when Path came from the environment rather than the defaults
	Explicit bool

	// ServiceCacheSize bounds the service handles cached per plugin
	ServiceCacheSize int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry tracing
	TracingEnabled bool
	OTelEndpoint   string
	OTelInsecure   bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Plugins:       loadPluginsConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadPluginsConfig loads plugin discovery configuration from environment
func loadPluginsConfig() PluginsConfig {
	cfg := PluginsConfig{
		Path:             DefaultPluginDirectories(),
		ServiceCacheSize: getEnvInt("PLUGWALL_SERVICE_CACHE_SIZE", 64),
	}

	if path := getEnvList("PLUGWALL_PLUGIN_PATH"); len(path) > 0 {
		cfg.Path = path
		cfg.Explicit = true
	}

	return cfg
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       strings.ToLower(getEnv("PLUGWALL_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("PLUGWALL_METRICS_ENABLED", false),
		TracingEnabled: getEnvBool("PLUGWALL_TRACING_ENABLED", false),
		OTelEndpoint:   getEnv("PLUGWALL_OTEL_ENDPOINT", "localhost:4317"),
		OTelInsecure:   getEnvBool("PLUGWALL_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.Plugins.Path) == 0 {
		return fmt.Errorf("at least one plugin directory is required")
	}
	for _, dir := range c.Plugins.Path {
		if dir == "" {
			return fmt.Errorf("plugin directories must not be empty")
		}
	}
	if c.Plugins.ServiceCacheSize <= 0 {
		return fmt.Errorf("service cache size must be positive, got %d", c.Plugins.ServiceCacheSize)
	}

	if _, err := logrus.ParseLevel(c.Observability.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Observability.LogLevel)
	}

	if c.Observability.TracingEnabled && c.Observability.OTelEndpoint == "" {
		return fmt.Errorf("OpenTelemetry endpoint is required when tracing is enabled")
	}

	return nil
}

// Roots returns the plugin roots to discover. Default directories that do
// not exist are left out; explicitly configured ones are always kept so that
// discovery reports them.
func (c PluginsConfig) Roots() []string {
	if c.Explicit {
		return c.Path
	}

	var roots []string
	for _, dir := range c.Path {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			roots = append(roots, dir)
		}
	}
	return roots
}

// DefaultPluginDirectories returns the default plugin search directories
func DefaultPluginDirectories() []string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "/tmp"
	}

	return []string{
		filepath.Join(homeDir, ".plugwall", "plugins"),
		"/etc/plugwall/plugins",
		"./plugins", // Current directory
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvList returns the non-empty elements of a path list environment variable
func getEnvList(key string) []string {
	var list []string
	for _, element := range filepath.SplitList(os.Getenv(key)) {
		if element = strings.TrimSpace(element); element != "" {
			list = append(list, element)
		}
	}
	return list
}

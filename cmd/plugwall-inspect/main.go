package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/plugwall/pkg/config"
	"github.com/platinummonkey/plugwall/pkg/observability"
)

// Flags holds the command-line options
type Flags struct {
	PluginPath  string
	APIPath     string
	Services    serviceList
	LogLevel    string
	Instantiate bool
	Metrics     bool
	Listen      string
}

type serviceList []string

func (s *serviceList) String() string {
	return strings.Join(*s, ",")
}

func (s *serviceList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// plugwall-inspect discovers plugins and reports their layout and service providers
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	flags := parseFlags(cfg)

	logger := setupLogger(flags.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tp, err := observability.InitTracing(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.TracingEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    "plugwall-inspect",
		ServiceVersion: "1.0.0",
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer observability.ShutdownTracing(context.Background(), tp, logger)

	var registry *prometheus.Registry
	if flags.Metrics || cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
	}

	roots := cfg.Plugins.Roots()
	if flags.PluginPath != "" {
		roots = filepath.SplitList(flags.PluginPath)
	}

	inspector := &Inspector{
		Roots:            roots,
		APIPath:          filepath.SplitList(flags.APIPath),
		Services:         flags.Services,
		Instantiate:      flags.Instantiate,
		ServiceCacheSize: cfg.Plugins.ServiceCacheSize,
		Listen:           flags.Listen,
		Logger:           logger,
		Registry:         registry,
		Out:              os.Stdout,
	}
	if err := inspector.Run(ctx); err != nil {
		logger.Errorf("Inspection failed: %v", err)
		os.Exit(1)
	}
}

func parseFlags(cfg *config.Config) *Flags {
	flags := &Flags{}

	flag.StringVar(&flags.PluginPath, "path", "", "Plugin directories, separated by the OS path list separator (default: configured plugin path)")
	flag.StringVar(&flags.APIPath, "api", "", "Directories or .zip archives holding the host service interfaces")
	flag.Var(&flags.Services, "service", "Service to list providers for (repeatable)")
	flag.StringVar(&flags.LogLevel, "log-level", cfg.Observability.LogLevel, "Log level (debug, info, warn, error)")
	flag.BoolVar(&flags.Instantiate, "instantiate", false, "Instantiate every provider to check it")
	flag.BoolVar(&flags.Metrics, "metrics", false, "Print Prometheus metrics after the report")
	flag.StringVar(&flags.Listen, "listen", "", "Serve the registry over HTTP on this address after the report (e.g. :8080)")

	flag.Parse()

	return flags
}

func setupLogger(logLevel string) *logrus.Logger {
	return observability.NewLogger(logLevel, os.Stderr)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"

	"github.com/platinummonkey/plugwall/pkg/async"
	"github.com/platinummonkey/plugwall/pkg/classpath"
	"github.com/platinummonkey/plugwall/pkg/namespace"
	"github.com/platinummonkey/plugwall/pkg/observability"
	"github.com/platinummonkey/plugwall/pkg/plugins"
	"github.com/platinummonkey/plugwall/pkg/server"
)

// Provider instantiation limits
const (
	InstantiateWorkers = 4
	InstantiateTimeout = 30 * time.Second
)

// Inspector discovers plugins and writes a report about them
type Inspector struct {
	Roots            []string
	APIPath          []string
	Services         []string
	Instantiate      bool
	ServiceCacheSize int
	Listen           string
	Logger           *logrus.Logger
	Registry         *prometheus.Registry
	Out              io.Writer
}

// Run performs the inspection. The report is written to Out. When Listen is
// set, Run then serves the registry over HTTP until ctx is done.
func (i *Inspector) Run(ctx context.Context) error {
	logger := observability.OrDiscard(i.Logger)

	if len(i.Roots) == 0 {
		logger.Warn("No plugin directories to inspect")
	}

	var metrics *observability.Metrics
	if i.Registry != nil {
		metrics = observability.NewMetrics(i.Registry)
	}

	host, err := classpath.New(ctx, "host", i.APIPath, namespace.Platform(), classpath.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to load host API: %w", err)
	}
	defer host.Close(ctx)

	services := make([]namespace.Unit, 0, len(i.Services))
	for _, name := range i.Services {
		service, err := host.Resolve(ctx, name, false)
		if err != nil {
			return fmt.Errorf("service %s: %w", name, err)
		}
		services = append(services, service)
	}

	opts := []plugins.Option{
		plugins.WithLogger(logger),
		plugins.WithMetrics(metrics),
	}
	if i.ServiceCacheSize > 0 {
		opts = append(opts, plugins.WithServiceCacheSize(i.ServiceCacheSize))
	}

	registry, err := plugins.Build(ctx, i.Roots, host, services, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := registry.Close(ctx); err != nil {
			logger.Warnf("Failed to close plugins: %v", err)
		}
	}()

	logger.Infof("Discovered %d plugins", registry.Count())

	var failed []error
	for _, plugin := range registry.Plugins() {
		if err := i.reportPlugin(plugin); err != nil {
			failed = append(failed, err)
		}
	}

	for _, service := range services {
		if err := i.reportService(ctx, registry, service); err != nil {
			failed = append(failed, err)
		}
	}

	if i.Registry != nil {
		if err := i.writeMetrics(); err != nil {
			failed = append(failed, err)
		}
	}

	if err := errors.Join(failed...); err != nil || i.Listen == "" {
		return err
	}

	serverOpts := []server.Option{server.WithLogger(logger)}
	if i.Registry != nil {
		serverOpts = append(serverOpts, server.WithGatherer(i.Registry))
	}
	return server.New(registry, host, serverOpts...).ListenAndServe(ctx, i.Listen)
}

func (i *Inspector) reportPlugin(plugin *plugins.Plugin) error {
	fmt.Fprintf(i.Out, "Plugin: %s\n", plugin.Name())
	fmt.Fprintf(i.Out, "  Kind: %s\n", plugin.Kind())
	fmt.Fprintf(i.Out, "  Metadata root: %s\n", plugin.MetadataRoot())
	fmt.Fprintf(i.Out, "  Classpath:\n")
	for _, entry := range plugin.Classpath() {
		fmt.Fprintf(i.Out, "    %s\n", entry)
	}

	manifest, found, err := plugin.Manifest()
	if err != nil {
		fmt.Fprintf(i.Out, "  Manifest: invalid\n")
		return err
	}
	if !found {
		fmt.Fprintf(i.Out, "  Manifest: none\n")
		return nil
	}

	fmt.Fprintf(i.Out, "  Manifest: %s %s\n", manifest.Name, manifest.Version)
	if errs := formatValidationErrors(plugins.ValidateManifest(manifest)); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(i.Out, "    ✗ %s\n", e)
		}
		return fmt.Errorf("plugin %s: manifest has %d validation errors", plugin.Name(), len(errs))
	}
	return nil
}

func (i *Inspector) reportService(ctx context.Context, registry *plugins.Registry, service namespace.Unit) error {
	providers, err := registry.Services(ctx, service)
	if err != nil {
		fmt.Fprintf(i.Out, "Service: %s (error)\n", service.Name())
		return err
	}

	fmt.Fprintf(i.Out, "Service: %s (%d providers)\n", service.Name(), len(providers))

	var errs []error
	if i.Instantiate {
		errs = async.Batch(ctx, providers, InstantiateWorkers, "instantiate "+service.Name(),
			InstantiateTimeout, i.Logger, instantiate)
	}

	var failed []error
	for n, provider := range providers {
		status := ""
		switch {
		case !i.Instantiate:
		case errs != nil && errs[n] != nil:
			status = " ✗ " + errs[n].Error()
			failed = append(failed, errs[n])
		default:
			status = " ✓"
		}
		fmt.Fprintf(i.Out, "  %s: %s%s\n", provider.Plugin, provider.Unit.Name(), status)
	}
	return errors.Join(failed...)
}

// instantiate creates and closes one instance of the provider to check that it starts
func instantiate(ctx context.Context, provider plugins.Provider) error {
	module, ok := provider.Unit.(*classpath.Module)
	if !ok {
		return fmt.Errorf("provider %s of plugin %s is not a module", provider.Unit.Name(), provider.Plugin)
	}
	config := wazero.NewModuleConfig().WithName(provider.Plugin + "/" + provider.Unit.Name())
	instance, err := module.Instantiate(ctx, config)
	if err != nil {
		return err
	}
	return instance.Close(ctx)
}

func (i *Inspector) writeMetrics() error {
	families, err := i.Registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(i.Out, family); err != nil {
			return err
		}
	}
	return nil
}

// formatValidationErrors formats manifest validation errors
func formatValidationErrors(errs []plugins.ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, strings.TrimSpace(e.Error()))
	}
	return out
}

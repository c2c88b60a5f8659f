package plugins

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/plugwall/pkg/namespace"
)

// Registry holds the plugins discovered once at construction
type Registry struct {
	boundary namespace.Resolver
	plugins  []*Plugin
	log      *logrus.Logger
}

// Build discovers the plugins in roots behind a namespace filter over host
// that exposes the platform and the origins of services.
func Build(ctx context.Context, roots []string, host namespace.Resolver, services []namespace.Unit, opts ...Option) (*Registry, error) {
	s := newSettings(opts)
	boundary := namespace.Using(host).
		WithOriginsOf(services...).
		WithLogger(s.logger).
		WithMetrics(s.metrics).
		Build()
	return NewRegistry(ctx, roots, boundary, opts...)
}

// NewRegistry discovers the plugins in roots below a prebuilt isolation boundary
func NewRegistry(ctx context.Context, roots []string, boundary namespace.Resolver, opts ...Option) (*Registry, error) {
	assembler := NewAssembler(boundary, opts...)
	plugins, err := assembler.Discover(ctx, roots...)
	if err != nil {
		return nil, err
	}

	return &Registry{
		boundary: boundary,
		plugins:  plugins,
		log:      assembler.settings.logger,
	}, nil
}

// Boundary returns the resolver every plugin namespace delegates to
func (r *Registry) Boundary() namespace.Resolver {
	return r.boundary
}

// Plugins returns all plugins in discovery order
func (r *Registry) Plugins() []*Plugin {
	return slices.Clone(r.plugins)
}

// Plugin returns the first plugin called name
func (r *Registry) Plugin(name string) (*Plugin, bool) {
	for _, p := range r.plugins {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Count returns the number of plugins
func (r *Registry) Count() int {
	return len(r.plugins)
}

// Services returns the providers of service across all plugins, plugin by
// plugin in discovery order. The result is empty when the boundary does not
// expose service.
func (r *Registry) Services(ctx context.Context, service namespace.Unit) ([]Provider, error) {
	visible, err := r.boundary.Resolve(ctx, service.Name(), false)
	if errors.Is(err, namespace.ErrNotFound) {
		r.log.WithField("service", service.Name()).Debug("Service not exposed to plugins")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve service %s: %w", service.Name(), err)
	}
	if !sameUnit(visible, service) {
		return nil, nil
	}

	var providers []Provider
	for _, p := range r.plugins {
		found, err := p.ServiceHandle(service).Providers(ctx)
		if err != nil {
			return nil, err
		}
		providers = append(providers, found...)
	}
	return providers, nil
}

// Close closes every plugin
func (r *Registry) Close(ctx context.Context) error {
	var errs []error
	for _, p := range r.plugins {
		if err := p.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close plugin %s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

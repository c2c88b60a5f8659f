package plugins

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/plugwall/pkg/namespace"
	"github.com/platinummonkey/plugwall/pkg/observability"
)

// ServicesDir is the resource directory holding provider declarations
const ServicesDir = "services/"

// Namespace is what a Discoverer needs from a plugin namespace
type Namespace interface {
	namespace.Resolver
	ReadResource(loc *url.URL) ([]byte, error)
}

// Discoverer enumerates the providers of a service visible in a namespace.
// It returns nothing when the namespace does not see service itself.
type Discoverer interface {
	Discover(ctx context.Context, service namespace.Unit, ns Namespace) ([]namespace.Unit, error)
}

// Provider is one implementation of a service found in a plugin
type Provider struct {
	Plugin  string
	Service string
	Unit    namespace.Unit
}

// ManifestDiscoverer finds providers declared in "services/<service>"
// resources: one unit name per line, "#" starts a comment. Declarations are
// read from every visible location in order and each provider is linked
// before it is returned.
type ManifestDiscoverer struct {
	Logger *logrus.Logger
}

// Discover returns the declared providers of service in ns
func (d *ManifestDiscoverer) Discover(ctx context.Context, service namespace.Unit, ns Namespace) ([]namespace.Unit, error) {
	log := observability.OrDiscard(d.Logger).WithField("service", service.Name())

	visible, err := ns.Resolve(ctx, service.Name(), false)
	if errors.Is(err, namespace.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !sameUnit(visible, service) {
		log.WithField("origin", visible.Origin()).Debug("Service shadowed in namespace")
		return nil, nil
	}

	locations, err := ns.Resources(ctx, ServicesDir+service.Name())
	if err != nil {
		return nil, err
	}

	var providers []namespace.Unit
	seen := make(map[string]bool)
	for loc := range locations {
		data, err := ns.ReadResource(loc)
		if err != nil {
			log.WithError(err).WithField("location", loc.String()).Warn("Skipping unreadable service declaration")
			continue
		}

		for _, name := range parseProviderNames(data) {
			if seen[name] {
				continue
			}
			seen[name] = true

			u, err := ns.Resolve(ctx, name, true)
			if err != nil {
				return nil, fmt.Errorf("%w: %s for %s: %w", ErrProvider, name, service.Name(), err)
			}
			providers = append(providers, u)
		}
	}
	return providers, nil
}

func parseProviderNames(data []byte) []string {
	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line, _, _ := strings.Cut(scanner.Text(), "#")
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// ServiceHandle looks up the providers of one service in one plugin. The
// provider list is computed on first successful use and then reused.
type ServiceHandle struct {
	plugin     string
	service    namespace.Unit
	ns         Namespace
	discoverer Discoverer

	mu        sync.Mutex
	providers []Provider
	loaded    bool
}

// Service returns the service the handle looks up
func (h *ServiceHandle) Service() namespace.Unit {
	return h.service
}

// Providers returns the providers of the service visible in the plugin
func (h *ServiceHandle) Providers(ctx context.Context) ([]Provider, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.loaded {
		return h.providers, nil
	}

	units, err := h.discoverer.Discover(ctx, h.service, h.ns)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: %w", h.plugin, err)
	}

	providers := make([]Provider, 0, len(units))
	for _, u := range units {
		providers = append(providers, Provider{
			Plugin:  h.plugin,
			Service: h.service.Name(),
			Unit:    u,
		})
	}
	h.providers = providers
	h.loaded = true
	return providers, nil
}

// Reload drops the cached providers
func (h *ServiceHandle) Reload() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.providers = nil
	h.loaded = false
}

package namespace

import (
	"context"
	"iter"
	"net/url"
	"slices"
	"sync"
)

var platform = NewHostResolver("platform")

// Platform returns the process-wide platform resolver. Units registered here
// are visible through every Filter built with the default platform.
func Platform() *HostResolver {
	return platform
}

// HostResolver is an in-memory resolver for units and resources the host
// application provides.
type HostResolver struct {
	name string

	mu        sync.RWMutex
	units     map[string]Unit
	resources map[string][]*url.URL
}

// NewHostResolver creates an empty host resolver
func NewHostResolver(name string) *HostResolver {
	return &HostResolver{
		name:      name,
		units:     make(map[string]Unit),
		resources: make(map[string][]*url.URL),
	}
}

// Name returns the resolver name
func (h *HostResolver) Name() string {
	return h.name
}

// Register adds units, replacing any unit with the same name
func (h *HostResolver) Register(units ...Unit) *HostResolver {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, u := range units {
		h.units[u.Name()] = u
	}
	return h
}

// RegisterResource appends locations for the resource called name
func (h *HostResolver) RegisterResource(name string, locations ...*url.URL) *HostResolver {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.resources[name] = append(h.resources[name], locations...)
	return h
}

// Resolve returns the registered unit called name
func (h *HostResolver) Resolve(ctx context.Context, name string, link bool) (Unit, error) {
	h.mu.RLock()
	u, ok := h.units[name]
	h.mu.RUnlock()

	if !ok {
		return nil, NotFound(name)
	}
	if link {
		if err := Link(ctx, u); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// Resources returns the registered locations for name
func (h *HostResolver) Resources(ctx context.Context, name string) (iter.Seq[*url.URL], error) {
	h.mu.RLock()
	locations := slices.Clone(h.resources[name])
	h.mu.RUnlock()

	return slices.Values(locations), nil
}

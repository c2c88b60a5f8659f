package namespace

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/plugwall/pkg/observability"
)

var filterCounter atomic.Int64

// Builder collects the origins a Filter lets through
type Builder struct {
	parent   Resolver
	platform Resolver
	name     string
	allowed  allowList
	logger   *logrus.Logger
	metrics  *observability.Metrics
}

// Using creates a builder for a filter over parent.
func Using(parent Resolver) *Builder {
	return &Builder{
		parent:   parent,
		platform: Platform(),
		allowed: allowList{
			origins:  make(map[string]struct{}),
			prefixes: &PrefixSet{},
		},
	}
}

// WithName names the filter. Without a name the filter is called after its
// parent, e.g. "host-filtered-3".
func (b *Builder) WithName(name string) *Builder {
	b.name = name
	return b
}

// WithPlatform replaces the platform resolver consulted before the parent
func (b *Builder) WithPlatform(platform Resolver) *Builder {
	b.platform = platform
	return b
}

// WithLogger sets the logger
func (b *Builder) WithLogger(logger *logrus.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetrics sets the metrics sink
func (b *Builder) WithMetrics(metrics *observability.Metrics) *Builder {
	b.metrics = metrics
	return b
}

// WithOriginsOf allows the origins of the sample units. Platform samples have
// no origin and are skipped; they are always visible.
func (b *Builder) WithOriginsOf(samples ...Unit) *Builder {
	for _, sample := range samples {
		if origin := sample.Origin(); origin != nil {
			b.WithOrigin(origin)
		}
	}
	return b
}

// WithOrigin allows units and resources from one classpath entry. Locations
// that are not classpath entries of the parent are accepted but never match.
// Archive resources match on "<archive URL>!/", directory resources on the
// slash-terminated directory path.
func (b *Builder) WithOrigin(entry *url.URL) *Builder {
	path := LocationPath(entry)
	b.allowed.origins[path] = struct{}{}
	if IsArchive(path) {
		b.allowed.prefixes.Add(entry.String() + "!/")
	} else {
		b.allowed.prefixes.Add(path)
	}
	return b
}

// AllowsUnit reports whether a filter built now would let u through
func (b *Builder) AllowsUnit(u Unit) bool {
	return b.allowed.unit(u)
}

// AllowsResource reports whether a filter built now would let loc through
func (b *Builder) AllowsResource(loc *url.URL) bool {
	return b.allowed.resource(loc)
}

// Build creates the filter from a snapshot of the allowed origins
func (b *Builder) Build() *Filter {
	name := b.name
	if name == "" {
		parentName := "resolver"
		if named, ok := b.parent.(interface{ Name() string }); ok {
			parentName = named.Name()
		}
		name = fmt.Sprintf("%s-filtered-%d", parentName, filterCounter.Add(1))
	}

	allowed := b.allowed.clone()
	f := newFilter(name, b.parent, b.platform, allowed.unit, allowed.resource)
	f.log = observability.OrDiscard(b.logger).WithField("namespace", name)
	f.metrics = b.metrics
	return f
}

type allowList struct {
	origins  map[string]struct{}
	prefixes *PrefixSet
}

func (a allowList) clone() allowList {
	origins := make(map[string]struct{}, len(a.origins))
	for k := range a.origins {
		origins[k] = struct{}{}
	}
	return allowList{origins: origins, prefixes: a.prefixes.Clone()}
}

func (a allowList) unit(u Unit) bool {
	origin := u.Origin()
	if origin == nil {
		return true
	}
	_, ok := a.origins[LocationPath(origin)]
	return ok
}

func (a allowList) resource(loc *url.URL) bool {
	if loc.Scheme == PlatformScheme {
		return true
	}
	return a.prefixes.Matches(LocationPath(loc))
}

// Filter is a Resolver that exposes only platform units and units and
// resources from allowed origins of its parent.
type Filter struct {
	name          string
	parent        Resolver
	platform      Resolver
	allowUnit     func(Unit) bool
	allowResource func(*url.URL) bool

	mu       sync.RWMutex
	resolved map[string]Unit
	inflight singleflight.Group

	log     *logrus.Entry
	metrics *observability.Metrics
}

func newFilter(name string, parent, platform Resolver, allowUnit func(Unit) bool, allowResource func(*url.URL) bool) *Filter {
	return &Filter{
		name:          name,
		parent:        parent,
		platform:      platform,
		allowUnit:     allowUnit,
		allowResource: allowResource,
		resolved:      make(map[string]Unit),
		log:           observability.Discard().WithField("namespace", name),
	}
}

// Name returns the filter name
func (f *Filter) Name() string {
	return f.name
}

// Resolve returns the unit called name if it is a platform unit or comes from
// an allowed origin. Filtered units yield an error matching ErrNotFound.
func (f *Filter) Resolve(ctx context.Context, name string, link bool) (Unit, error) {
	u, ok := f.cached(name)
	if ok {
		f.metrics.RecordResolution(f.name, observability.OutcomeCached)
	} else {
		loadCtx := context.WithoutCancel(ctx)
		v, err, _ := f.inflight.Do(name, func() (any, error) {
			return f.load(loadCtx, name)
		})
		if err != nil {
			return nil, err
		}
		u = v.(Unit)
	}

	if link {
		if err := Link(ctx, u); err != nil {
			return nil, fmt.Errorf("link %s: %w", name, err)
		}
	}
	return u, nil
}

// load runs at most once at a time per name.
func (f *Filter) load(ctx context.Context, name string) (Unit, error) {
	// A caller may have passed the cache check just before the previous
	// resolution of this name finished.
	if u, ok := f.cached(name); ok {
		f.metrics.RecordResolution(f.name, observability.OutcomeCached)
		return u, nil
	}

	u, err := f.platform.Resolve(ctx, name, false)
	switch {
	case err == nil:
		f.metrics.RecordResolution(f.name, observability.OutcomePlatform)
	case errors.Is(err, ErrNotFound):
		u, err = f.parent.Resolve(ctx, name, false)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				f.metrics.RecordResolution(f.name, observability.OutcomeError)
			}
			return nil, err
		}
		if !f.allowUnit(u) {
			f.metrics.RecordResolution(f.name, observability.OutcomeDenied)
			f.log.WithFields(logrus.Fields{
				"unit":   name,
				"origin": u.Origin(),
			}).Debug("Unit hidden by namespace filter")
			return nil, NotFound(name)
		}
		f.metrics.RecordResolution(f.name, observability.OutcomeAllowed)
	default:
		f.metrics.RecordResolution(f.name, observability.OutcomeError)
		return nil, err
	}

	f.mu.Lock()
	f.resolved[name] = u
	f.mu.Unlock()

	return u, nil
}

func (f *Filter) cached(name string) (Unit, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	u, ok := f.resolved[name]
	return u, ok
}

// Resources returns the parent's locations for name that pass the resource
// filter. Locations are checked lazily as the sequence is consumed.
func (f *Filter) Resources(ctx context.Context, name string) (iter.Seq[*url.URL], error) {
	locations, err := f.parent.Resources(ctx, name)
	if err != nil {
		return nil, err
	}
	return Filtered(locations, f.visible), nil
}

// Resource returns the first visible location for name. Enumeration failures
// are reported as "no location".
func (f *Filter) Resource(ctx context.Context, name string) (*url.URL, bool) {
	locations, err := f.Resources(ctx, name)
	if err != nil {
		f.log.WithError(err).WithField("resource", name).Debug("Resource enumeration failed")
		return nil, false
	}
	return First(locations)
}

func (f *Filter) visible(loc *url.URL) bool {
	if f.allowResource(loc) {
		f.metrics.RecordResourceLookup(f.name, observability.OutcomeAllowed)
		return true
	}
	f.metrics.RecordResourceLookup(f.name, observability.OutcomeDenied)
	return false
}

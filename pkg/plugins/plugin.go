package plugins

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/plugwall/pkg/classpath"
	"github.com/platinummonkey/plugwall/pkg/namespace"
)

// Kind tells how a plugin is laid out on disk
type Kind string

const (
	// KindArchive is a plugin made of one archive at the top of a root
	KindArchive Kind = "archive"

	// KindDirectory is a plugin directory holding classpath entries and metadata
	KindDirectory Kind = "directory"
)

// Plugin describes one discovered plugin and owns its namespace
type Plugin struct {
	name         string
	kind         Kind
	metadataRoot string
	classpath    []string
	entryKeys    *namespace.PrefixSet

	ns         *classpath.Classpath
	discoverer Discoverer

	mu      sync.Mutex
	handles *lru.Cache[string, *ServiceHandle]

	log *logrus.Entry
}

func newPlugin(ctx context.Context, name string, kind Kind, metadataRoot string, entries []string, boundary namespace.Resolver, s settings) (*Plugin, error) {
	sorted := slices.Clone(entries)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	keys := namespace.NewPrefixSet()
	for _, entry := range sorted {
		keys.Add(entryKey(entry))
	}

	handles, err := lru.New[string, *ServiceHandle](s.serviceCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create service cache for %s: %w", name, err)
	}

	ns, err := classpath.New(ctx, name, sorted, boundary,
		classpath.WithLogger(s.logger),
		classpath.WithRuntimeConfig(s.runtimeConfig),
	)
	if err != nil {
		return nil, fmt.Errorf("create namespace for %s: %w", name, err)
	}

	return &Plugin{
		name:         name,
		kind:         kind,
		metadataRoot: metadataRoot,
		classpath:    sorted,
		entryKeys:    keys,
		ns:           ns,
		discoverer:   s.discoverer,
		handles:      handles,
		log:          s.logger.WithField("plugin", name),
	}, nil
}

// entryKey terminates path with a separator so prefix matches stop at path
// components: "/p/lib" contains "/p/lib/x" but not "/p/library".
func entryKey(path string) string {
	return filepath.Clean(path) + string(filepath.Separator)
}

// Name returns the plugin name: the archive name without extension or the directory name
func (p *Plugin) Name() string {
	return p.name
}

// Kind returns how the plugin is laid out
func (p *Plugin) Kind() Kind {
	return p.kind
}

// MetadataRoot returns the directory metadata is read from, or "" for archive plugins
func (p *Plugin) MetadataRoot() string {
	return p.metadataRoot
}

// Classpath returns the sorted absolute paths of the classpath entries
func (p *Plugin) Classpath() []string {
	return slices.Clone(p.classpath)
}

// Namespace returns the plugin's isolated namespace
func (p *Plugin) Namespace() *classpath.Classpath {
	return p.ns
}

// ServiceHandle returns the handle for service bound to this plugin's
// namespace, creating it on first use.
func (p *Plugin) ServiceHandle(service namespace.Unit) *ServiceHandle {
	key := unitKey(service)

	p.mu.Lock()
	defer p.mu.Unlock()

	if h, ok := p.handles.Get(key); ok {
		return h
	}
	h := &ServiceHandle{
		plugin:     p.name,
		service:    service,
		ns:         p.ns,
		discoverer: p.discoverer,
	}
	p.handles.Add(key, h)
	return h
}

// Close releases the plugin namespace
func (p *Plugin) Close(ctx context.Context) error {
	p.handles.Purge()
	return p.ns.Close(ctx)
}

func (p *Plugin) String() string {
	return fmt.Sprintf("%s (%s)", p.name, p.kind)
}

func unitKey(u namespace.Unit) string {
	if origin := u.Origin(); origin != nil {
		return u.Name() + "@" + origin.String()
	}
	return u.Name()
}

// sameUnit reports whether a and b are the same unit from the same origin
func sameUnit(a, b namespace.Unit) bool {
	return unitKey(a) == unitKey(b)
}

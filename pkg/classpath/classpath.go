package classpath

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/plugwall/pkg/namespace"
	"github.com/platinummonkey/plugwall/pkg/observability"
)

// Option configures a Classpath
type Option func(*options)

type options struct {
	logger        *logrus.Logger
	runtimeConfig wazero.RuntimeConfig
}

// WithLogger sets the logger
func WithLogger(logger *logrus.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRuntimeConfig sets the configuration of the classpath's wazero runtime
func WithRuntimeConfig(config wazero.RuntimeConfig) Option {
	return func(o *options) {
		o.runtimeConfig = config
	}
}

// Classpath resolves units and resources from its entries after consulting
// its parent. It is safe for concurrent use.
type Classpath struct {
	name    string
	parent  namespace.Resolver
	entries []entry
	runtime wazero.Runtime

	mu       sync.RWMutex
	units    map[string]namespace.Unit
	inflight singleflight.Group
	closed   atomic.Bool

	log *logrus.Entry
}

// New creates a classpath over entries, each a directory or a .zip archive.
// Relative entries are made absolute. Archives are opened on first use.
func New(ctx context.Context, name string, entries []string, parent namespace.Resolver, opts ...Option) (*Classpath, error) {
	o := options{runtimeConfig: wazero.NewRuntimeConfig()}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Classpath{
		name:   name,
		parent: parent,
		units:  make(map[string]namespace.Unit),
		log:    observability.OrDiscard(o.logger).WithField("classpath", name),
	}
	for _, path := range entries {
		e, err := newEntry(path)
		if err != nil {
			return nil, err
		}
		c.entries = append(c.entries, e)
	}
	c.runtime = wazero.NewRuntimeWithConfig(ctx, o.runtimeConfig)
	return c, nil
}

// Name returns the classpath name
func (c *Classpath) Name() string {
	return c.name
}

// Parent returns the resolver consulted before the entries
func (c *Classpath) Parent() namespace.Resolver {
	return c.parent
}

// Entries returns the absolute entry paths in lookup order
func (c *Classpath) Entries() []string {
	paths := make([]string, len(c.entries))
	for i, e := range c.entries {
		paths[i] = e.path()
	}
	return paths
}

// Resolve returns the unit called name from the parent or, failing that, the
// first entry holding it. Each name is resolved at most once.
func (c *Classpath) Resolve(ctx context.Context, name string, link bool) (namespace.Unit, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	u, ok := c.cached(name)
	if !ok {
		// Shared by every caller waiting on name, so one caller's
		// cancellation must not fail the others.
		loadCtx := context.WithoutCancel(ctx)
		v, err, _ := c.inflight.Do(name, func() (any, error) {
			return c.load(loadCtx, name)
		})
		if err != nil {
			return nil, err
		}
		u = v.(namespace.Unit)
	}

	if link {
		if err := namespace.Link(ctx, u); err != nil {
			return nil, fmt.Errorf("link %s: %w", name, err)
		}
	}
	return u, nil
}

func (c *Classpath) load(ctx context.Context, name string) (namespace.Unit, error) {
	if u, ok := c.cached(name); ok {
		return u, nil
	}

	u, err := c.parent.Resolve(ctx, name, false)
	if err != nil {
		if !errors.Is(err, namespace.ErrNotFound) {
			return nil, err
		}
		u, err = c.find(name)
		if err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	c.units[name] = u
	c.mu.Unlock()

	return u, nil
}

// find reads the unit called name from the first entry holding it.
func (c *Classpath) find(name string) (namespace.Unit, error) {
	if name == "" || strings.ContainsAny(name, "/\\") {
		return nil, namespace.NotFound(name)
	}
	path := unitPath(name)
	if !validName(path) {
		return nil, namespace.NotFound(name)
	}

	for _, e := range c.entries {
		if !e.has(path) {
			continue
		}
		code, err := readAll(e, path)
		if err != nil {
			return nil, fmt.Errorf("read %s from %s: %w", name, e.path(), err)
		}
		c.log.WithFields(logrus.Fields{
			"unit":  name,
			"entry": e.path(),
		}).Debug("Loaded module")
		return &Module{
			name:     name,
			origin:   e.origin(),
			location: e.location(path),
			code:     code,
			runtime:  c.runtime,
		}, nil
	}
	return nil, namespace.NotFound(name)
}

func (c *Classpath) cached(name string) (namespace.Unit, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	u, ok := c.units[name]
	return u, ok
}

// Resources returns the parent's locations for name followed by those of the
// entries holding it, in classpath order. Entries that cannot be read are
// skipped.
func (c *Classpath) Resources(ctx context.Context, name string) (iter.Seq[*url.URL], error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	inherited, err := c.parent.Resources(ctx, name)
	if err != nil {
		return nil, err
	}

	return func(yield func(*url.URL) bool) {
		for loc := range inherited {
			if !yield(loc) {
				return
			}
		}
		if !validName(name) {
			return
		}
		for _, e := range c.entries {
			if e.has(name) && !yield(e.location(name)) {
				return
			}
		}
	}, nil
}

// Resource returns the first location of name, if any
func (c *Classpath) Resource(ctx context.Context, name string) (*url.URL, bool) {
	locations, err := c.Resources(ctx, name)
	if err != nil {
		return nil, false
	}
	return namespace.First(locations)
}

// Open opens a "file:" or "zip:" resource location. Archives held by this
// classpath are read through its open readers.
func (c *Classpath) Open(loc *url.URL) (io.ReadCloser, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	switch loc.Scheme {
	case namespace.ArchiveScheme:
		archive, name, ok := namespace.SplitArchiveLocation(loc)
		if !ok || !validName(name) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidName, loc)
		}
		for _, e := range c.entries {
			if e.path() == archive {
				return e.open(name)
			}
		}
		data, err := readArchiveEntry(archive, name)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	case namespace.FileScheme:
		if loc.Path == "" {
			return nil, fmt.Errorf("%w: %s", ErrInvalidName, loc)
		}
		return os.Open(loc.Path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLocation, loc)
	}
}

// ReadResource reads the whole resource at loc
func (c *Classpath) ReadResource(loc *url.URL) ([]byte, error) {
	rc, err := c.Open(loc)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Close releases the runtime and every open archive. Modules resolved from
// this classpath can no longer be instantiated.
func (c *Classpath) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	for _, e := range c.entries {
		if err := e.close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", e.path(), err))
		}
	}
	if err := c.runtime.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close runtime: %w", err))
	}
	return errors.Join(errs...)
}

func readAll(e entry, name string) ([]byte, error) {
	rc, err := e.open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: err}
	}
	return data, nil
}

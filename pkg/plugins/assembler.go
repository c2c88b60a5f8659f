package plugins

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/plugwall/pkg/namespace"
)

// Assembler discovers plugins in root directories and gives each its own
// namespace below a shared isolation boundary.
type Assembler struct {
	boundary namespace.Resolver
	settings settings
}

// NewAssembler creates an assembler whose plugins resolve through boundary
func NewAssembler(boundary namespace.Resolver, opts ...Option) *Assembler {
	return &Assembler{
		boundary: boundary,
		settings: newSettings(opts),
	}
}

// Discover walks every root in order and returns the plugins found. Any I/O
// error aborts discovery: plugins created so far are closed and the error is
// a *DiscoveryError.
func (a *Assembler) Discover(ctx context.Context, roots ...string) (plugins []*Plugin, err error) {
	start := time.Now()
	ctx, span := a.settings.tracer.Start(ctx, "plugins.Discover")
	span.SetAttributes(attribute.StringSlice("plugwall.roots", roots))
	defer func() {
		a.settings.metrics.RecordDiscovery(time.Since(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("plugwall.plugins", len(plugins)))
		}
		span.End()
	}()

	log := a.settings.logger
	log.WithField("roots", roots).Info("Loading plugins")

	for _, root := range roots {
		found, err := a.discoverRoot(ctx, root)
		if err != nil {
			a.closeAll(ctx, plugins)
			return nil, err
		}
		plugins = append(plugins, found...)
	}
	return plugins, nil
}

// pendingPlugin collects the classpath of a directory plugin while its
// children are walked.
type pendingPlugin struct {
	dir     string
	entries []string
}

func (a *Assembler) discoverRoot(ctx context.Context, root string) (plugins []*Plugin, err error) {
	ctx, span := a.settings.tracer.Start(ctx, "plugins.DiscoverRoot")
	span.SetAttributes(attribute.String("plugwall.root", root))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := a.settings.logger.WithField("root", root)

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &DiscoveryError{Root: root, Err: err}
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return nil, &DiscoveryError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &DiscoveryError{Root: root, Err: ErrNotDirectory}
	}

	var pending *pendingPlugin
	add := func(p *Plugin) {
		log.WithFields(logrus.Fields{
			"plugin": p.Name(),
			"kind":   p.Kind(),
		}).Info("Created plugin")
		a.settings.metrics.RecordPlugin(string(p.Kind()))
		plugins = append(plugins, p)
	}
	flush := func() error {
		if pending == nil {
			return nil
		}
		defer func() { pending = nil }()

		if len(pending.entries) == 0 {
			log.WithField("path", pending.dir).Debug("Skipping directory without classpath entries")
			return nil
		}
		p, err := newPlugin(ctx, filepath.Base(pending.dir), KindDirectory, pending.dir, pending.entries, a.boundary, a.settings)
		if err != nil {
			return err
		}
		add(p)
		return nil
	}

	var failed string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			failed = path
			return walkErr
		}
		if path == abs {
			return nil
		}

		switch depth(abs, path) {
		case 1:
			if err := flush(); err != nil {
				failed = path
				return err
			}
			switch {
			case d.IsDir():
				log.WithField("path", path).Debug("Found directory plugin")
				pending = &pendingPlugin{dir: path}
			case d.Type().IsRegular() && namespace.IsArchive(d.Name()):
				log.WithField("path", path).Debug("Found archive plugin")
				name := strings.TrimSuffix(d.Name(), namespace.ArchiveExt)
				p, err := newPlugin(ctx, name, KindArchive, "", []string{path}, a.boundary, a.settings)
				if err != nil {
					failed = path
					return err
				}
				add(p)
			}
		case 2:
			if pending == nil {
				return nil
			}
			switch {
			case d.IsDir():
				log.WithField("path", path).Debug("Found classpath entry")
				pending.entries = append(pending.entries, path)
				return fs.SkipDir
			case d.Type().IsRegular() && namespace.IsArchive(d.Name()):
				log.WithField("path", path).Debug("Found classpath entry")
				pending.entries = append(pending.entries, path)
			}
		default:
			if d.IsDir() {
				return fs.SkipDir
			}
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		a.closeAll(ctx, plugins)
		return nil, &DiscoveryError{Root: root, Path: failed, Err: err}
	}
	return plugins, nil
}

// depth returns how many path elements path lies below root
func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

func (a *Assembler) closeAll(ctx context.Context, plugins []*Plugin) {
	for _, p := range plugins {
		if err := p.Close(ctx); err != nil {
			a.settings.logger.WithError(err).WithField("plugin", p.Name()).Warn("Failed to close plugin")
		}
	}
}

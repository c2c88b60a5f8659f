package namespace

import (
	"context"
	"iter"
	"net/url"
)

// Unit is a named piece of code visible through a Resolver.
type Unit interface {
	Name() string
	// Origin returns the classpath entry the unit was loaded from, or nil for platform units.
	Origin() *url.URL
}

// Linker is implemented by units that must be prepared before use.
// Link is called every time a caller asks for a linked unit and must be idempotent.
type Linker interface {
	Link(ctx context.Context) error
}

// Resolver resolves units and resource locations by name
type Resolver interface {
	// Resolve returns the unit called name, linking it first when link is set.
	// Missing or invisible units yield an error matching ErrNotFound.
	Resolve(ctx context.Context, name string, link bool) (Unit, error)

	// Resources returns every location of the resource called name, in resolution order.
	// The sequence is lazy; an error is returned only when the enumeration cannot start.
	Resources(ctx context.Context, name string) (iter.Seq[*url.URL], error)
}

// Link links u if it implements Linker.
func Link(ctx context.Context, u Unit) error {
	if linker, ok := u.(Linker); ok {
		return linker.Link(ctx)
	}
	return nil
}

type basicUnit struct {
	name   string
	origin *url.URL
}

// NewUnit creates a unit descriptor for host code loaded from origin.
func NewUnit(name string, origin *url.URL) Unit {
	return &basicUnit{name: name, origin: origin}
}

// NewPlatformUnit creates a unit without an origin.
func NewPlatformUnit(name string) Unit {
	return &basicUnit{name: name}
}

func (u *basicUnit) Name() string {
	return u.name
}

func (u *basicUnit) Origin() *url.URL {
	return u.origin
}

func (u *basicUnit) String() string {
	if u.origin == nil {
		return u.name + " (platform)"
	}
	return u.name + " (" + u.origin.String() + ")"
}

package classpath

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// ModuleExt is the file extension of unit code inside a classpath entry
const ModuleExt = ".wasm"

// Module is a WebAssembly unit loaded from a classpath entry.
type Module struct {
	name     string
	origin   *url.URL
	location *url.URL
	code     []byte
	runtime  wazero.Runtime

	once     sync.Once
	compiled wazero.CompiledModule
	err      error
}

// Name returns the unit name, e.g. "acme.Greeter"
func (m *Module) Name() string {
	return m.name
}

// Origin returns the classpath entry the module was read from
func (m *Module) Origin() *url.URL {
	return m.origin
}

// Location returns the location of the module code
func (m *Module) Location() *url.URL {
	return m.location
}

// Code returns the raw module bytes. Callers must not modify them.
func (m *Module) Code() []byte {
	return m.code
}

// Link compiles the module in its classpath's runtime. The module is compiled
// at most once and later calls return the first result, so compilation
// ignores the cancellation of ctx.
func (m *Module) Link(ctx context.Context) error {
	m.once.Do(func() {
		m.compiled, m.err = m.runtime.CompileModule(context.WithoutCancel(ctx), m.code)
		if m.err != nil {
			m.err = fmt.Errorf("compile %s: %w", m.name, m.err)
		}
	})
	return m.err
}

// Instantiate links the module and creates an instance of it. The caller
// closes the instance.
func (m *Module) Instantiate(ctx context.Context, config wazero.ModuleConfig) (api.Module, error) {
	if err := m.Link(ctx); err != nil {
		return nil, err
	}
	instance, err := m.runtime.InstantiateModule(ctx, m.compiled, config)
	if err != nil {
		return nil, fmt.Errorf("instantiate %s: %w", m.name, err)
	}
	return instance, nil
}

func (m *Module) String() string {
	return m.name + " (" + m.origin.String() + ")"
}

// unitPath returns the entry-relative path of the unit called name.
func unitPath(name string) string {
	return strings.ReplaceAll(name, ".", "/") + ModuleExt
}

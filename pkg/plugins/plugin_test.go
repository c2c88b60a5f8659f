package plugins

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/plugwall/pkg/namespace"
)

func discoverTree(t *testing.T, opts ...Option) (pluginTree, *Plugin, *Plugin) {
	t.Helper()
	tree := newPluginTree(t)
	plugins, err := discover(t, []string{tree.root}, opts...)
	require.NoError(t, err)
	require.Len(t, plugins, 2)
	return tree, plugins[0], plugins[1]
}

func TestMetadata(t *testing.T) {
	tree, plugin1, plugin2 := discoverTree(t)

	text, ok := plugin1.TextMetadata("metadata.txt")
	assert.True(t, ok)
	assert.Equal(t, "hello", text)

	data, ok := plugin1.BinaryMetadata(filepath.Join(tree.plugin1, "metadata.txt"))
	assert.True(t, ok, "absolute names are used as is")
	assert.Equal(t, []byte("hello"), data)

	_, ok = plugin1.TextMetadata("missing.txt")
	assert.False(t, ok)

	_, ok = plugin1.TextMetadata("broken")
	assert.False(t, ok)

	_, ok = plugin2.TextMetadata("metadata.txt")
	assert.False(t, ok, "archive plugins have no metadata")
}

func TestMetadata_InsideClasspathRejected(t *testing.T) {
	tree, plugin1, _ := discoverTree(t)

	for _, name := range []string{
		"classes/notes.txt",
		"classes/acme/Three.wasm",
		"./classes/../classes/notes.txt",
		filepath.Join(tree.plugin1, "classes", "notes.txt"),
		"lib.zip",
		"empty",
	} {
		_, ok := plugin1.BinaryMetadata(name)
		assert.False(t, ok, name)
	}

	// Sibling names sharing a prefix with an entry are not inside it
	writeFile(t, filepath.Join(tree.plugin1, "classes.txt"), []byte("metadata"))
	text, ok := plugin1.TextMetadata("classes.txt")
	assert.True(t, ok)
	assert.Equal(t, "metadata", text)
}

func TestLoadMetadata_DecodeErrorPropagates(t *testing.T) {
	_, plugin1, _ := discoverTree(t)
	errBad := errors.New("bad metadata")

	decodeCalls := 0
	_, ok, err := LoadMetadata(plugin1, "metadata.txt", func(data []byte) (int, error) {
		decodeCalls++
		return 0, errBad
	})
	assert.False(t, ok)
	assert.ErrorIs(t, err, errBad)
	assert.Equal(t, 1, decodeCalls)

	// Absent metadata never reaches decode
	_, ok, err = LoadMetadata(plugin1, "classes/notes.txt", func(data []byte) (int, error) {
		decodeCalls++
		return 0, errBad
	})
	assert.False(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, 1, decodeCalls)

	n, ok, err := LoadMetadata(plugin1, "metadata.txt", func(data []byte) (int, error) {
		return len(data), nil
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5, n)
}

func TestYAMLMetadata(t *testing.T) {
	tree, plugin1, _ := discoverTree(t)

	type settings struct {
		Greeting string `yaml:"greeting"`
		Repeat   int    `yaml:"repeat"`
	}
	writeFile(t, filepath.Join(tree.plugin1, "settings.yaml"), []byte("greeting: hi\nrepeat: 3\n"))
	writeFile(t, filepath.Join(tree.plugin1, "bad.yaml"), []byte("greeting: [unclosed\n"))

	got, ok, err := YAMLMetadata[settings](plugin1, "settings.yaml")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, settings{Greeting: "hi", Repeat: 3}, got)

	_, ok, err = YAMLMetadata[settings](plugin1, "bad.yaml")
	assert.False(t, ok)
	assert.Error(t, err)

	_, ok, err = YAMLMetadata[settings](plugin1, "none.yaml")
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestServiceHandle_Cached(t *testing.T) {
	_, plugin1, plugin2 := discoverTree(t)

	h := plugin1.ServiceHandle(greeterService)
	assert.Same(t, h, plugin1.ServiceHandle(greeterService))
	assert.Equal(t, greeterService, h.Service())
	assert.NotSame(t, h, plugin2.ServiceHandle(greeterService))
	assert.NotSame(t, h, plugin1.ServiceHandle(internalService))
}

func TestServiceHandle_Evicted(t *testing.T) {
	_, plugin1, _ := discoverTree(t, WithServiceCacheSize(1))

	h := plugin1.ServiceHandle(greeterService)
	plugin1.ServiceHandle(internalService)
	assert.NotSame(t, h, plugin1.ServiceHandle(greeterService))
}

type countingDiscoverer struct {
	calls int
	units []namespace.Unit
	err   error
}

func (d *countingDiscoverer) Discover(ctx context.Context, service namespace.Unit, ns Namespace) ([]namespace.Unit, error) {
	d.calls++
	return d.units, d.err
}

func TestServiceHandle_Providers(t *testing.T) {
	discoverer := &countingDiscoverer{err: errors.New("boom")}
	_, plugin1, _ := discoverTree(t, WithDiscoverer(discoverer))
	ctx := context.Background()
	h := plugin1.ServiceHandle(greeterService)

	_, err := h.Providers(ctx)
	assert.ErrorContains(t, err, "plugin plugin1: boom")

	// Failures are not cached
	provider := namespace.NewUnit("acme.One", namespace.ArchiveOrigin("/x.zip"))
	discoverer.err = nil
	discoverer.units = []namespace.Unit{provider}
	providers, err := h.Providers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Provider{{Plugin: "plugin1", Service: "api.Greeter", Unit: provider}}, providers)

	_, err = h.Providers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, discoverer.calls)

	h.Reload()
	_, err = h.Providers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, discoverer.calls)
}

func TestPlugin_Close(t *testing.T) {
	_, plugin1, _ := discoverTree(t)
	ctx := context.Background()

	require.NoError(t, plugin1.Close(ctx))
	_, err := plugin1.Namespace().Resolve(ctx, "acme.One", false)
	assert.Error(t, err)
}

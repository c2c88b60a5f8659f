package plugins

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/plugwall/pkg/namespace"
)

// emptyModule is the smallest valid WebAssembly binary.
var emptyModule = []byte("\x00asm\x01\x00\x00\x00")

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func writeZip(t *testing.T, path string, files map[string][]byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

// pluginTree is the standard layout used across tests:
//
//	root/
//	  plugin1/
//	    classes/acme/Three.wasm
//	    classes/notes.txt
//	    empty/
//	    lib.zip          acme.One, declares acme.One and acme.Three
//	    metadata.txt
//	    plugin.yaml
//	    broken -> missing
//	  plugin2.zip        acme.Two, declares acme.Two
//	  random_file.txt
type pluginTree struct {
	root    string
	plugin1 string
	plugin2 string
}

func newPluginTree(t *testing.T) pluginTree {
	t.Helper()
	root := t.TempDir()
	tree := pluginTree{
		root:    root,
		plugin1: filepath.Join(root, "plugin1"),
		plugin2: filepath.Join(root, "plugin2.zip"),
	}

	writeFile(t, filepath.Join(tree.plugin1, "classes", "acme", "Three.wasm"), emptyModule)
	writeFile(t, filepath.Join(tree.plugin1, "classes", "notes.txt"), []byte("code, not metadata"))
	require.NoError(t, os.MkdirAll(filepath.Join(tree.plugin1, "empty"), 0755))
	writeZip(t, filepath.Join(tree.plugin1, "lib.zip"), map[string][]byte{
		"acme/One.wasm":        emptyModule,
		"services/api.Greeter": []byte("# greeters\nacme.One\n\nacme.Three # from classes\n"),
	})
	writeFile(t, filepath.Join(tree.plugin1, "metadata.txt"), []byte("hello"))
	writeFile(t, filepath.Join(tree.plugin1, ManifestFile), []byte("name: Plugin One\nversion: 1.2.3\nservices:\n  - api.Greeter\n"))
	require.NoError(t, os.Symlink(filepath.Join(tree.plugin1, "missing"), filepath.Join(tree.plugin1, "broken")))

	writeZip(t, tree.plugin2, map[string][]byte{
		"acme/Two.wasm":        emptyModule,
		"services/api.Greeter": []byte("acme.Two\n"),
	})
	writeFile(t, filepath.Join(root, "random_file.txt"), []byte("ignored"))
	return tree
}

var (
	greeterService  = namespace.NewUnit("api.Greeter", namespace.ArchiveOrigin("/opt/app/api.zip"))
	internalService = namespace.NewUnit("app.Internal", namespace.DirectoryOrigin("/opt/app/classes"))
)

func newHost() *namespace.HostResolver {
	return namespace.NewHostResolver("host").Register(greeterService, internalService)
}

func pluginNames(plugins []*Plugin) []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name()
	}
	return names
}

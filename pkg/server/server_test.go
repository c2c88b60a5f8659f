package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/plugwall/pkg/classpath"
	"github.com/platinummonkey/plugwall/pkg/namespace"
	"github.com/platinummonkey/plugwall/pkg/observability"
	"github.com/platinummonkey/plugwall/pkg/plugins"
)

var emptyModule = []byte("\x00asm\x01\x00\x00\x00")

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func writeZip(t *testing.T, path string, files map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, data := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

type fixture struct {
	root     string
	registry *plugins.Registry
	host     *classpath.Classpath
	metrics  *prometheus.Registry
}

// newFixture builds a registry over one directory plugin "hello" and one
// archive plugin "extra" that both provide api.Greeter.
func newFixture(t *testing.T, extra map[string][]byte) fixture {
	t.Helper()
	ctx := context.Background()

	api := t.TempDir()
	writeFile(t, filepath.Join(api, "api", "Greeter.wasm"), emptyModule)

	root := t.TempDir()
	hello := filepath.Join(root, "hello")
	writeFile(t, filepath.Join(hello, "classes", "acme", "Hello.wasm"), emptyModule)
	writeFile(t, filepath.Join(hello, "classes", "services", "api.Greeter"), []byte("acme.Hello\n"))
	writeFile(t, filepath.Join(hello, "notes.txt"), []byte("hello notes"))
	writeFile(t, filepath.Join(hello, plugins.ManifestFile), []byte("name: Hello\nversion: 1.0.0\n"))
	writeZip(t, filepath.Join(root, "extra.zip"), extra)

	host, err := classpath.New(ctx, "host", []string{api}, namespace.Platform())
	require.NoError(t, err)
	t.Cleanup(func() { host.Close(ctx) })

	greeter, err := host.Resolve(ctx, "api.Greeter", false)
	require.NoError(t, err)

	metrics := prometheus.NewRegistry()
	registry, err := plugins.Build(ctx, []string{root}, host, []namespace.Unit{greeter},
		plugins.WithMetrics(observability.NewMetrics(metrics)))
	require.NoError(t, err)
	t.Cleanup(func() { registry.Close(ctx) })

	return fixture{root: root, registry: registry, host: host, metrics: metrics}
}

func validExtra() map[string][]byte {
	return map[string][]byte{
		"acme/Extra.wasm":      emptyModule,
		"services/api.Greeter": []byte("acme.Extra\n"),
	}
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestServer_Health(t *testing.T) {
	f := newFixture(t, validExtra())
	s := New(f.registry, f.host)

	w := get(t, s, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","plugins":2}`, w.Body.String())
}

func TestServer_ListPlugins(t *testing.T) {
	f := newFixture(t, validExtra())
	s := New(f.registry, f.host)

	w := get(t, s, "/plugins")
	require.Equal(t, http.StatusOK, w.Code)

	var infos []PluginInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &infos))
	require.Len(t, infos, 2)

	assert.Equal(t, "extra", infos[0].Name)
	assert.Equal(t, plugins.KindArchive, infos[0].Kind)
	assert.Empty(t, infos[0].MetadataRoot)
	assert.Equal(t, []string{filepath.Join(f.root, "extra.zip")}, infos[0].Classpath)

	assert.Equal(t, "hello", infos[1].Name)
	assert.Equal(t, plugins.KindDirectory, infos[1].Kind)
	assert.Equal(t, filepath.Join(f.root, "hello"), infos[1].MetadataRoot)
	assert.Equal(t, []string{filepath.Join(f.root, "hello", "classes")}, infos[1].Classpath)
	assert.Nil(t, infos[1].Manifest, "the list does not load manifests")
}

func TestServer_GetPlugin(t *testing.T) {
	f := newFixture(t, validExtra())
	s := New(f.registry, f.host)

	t.Run("with manifest", func(t *testing.T) {
		w := get(t, s, "/plugins/hello")
		require.Equal(t, http.StatusOK, w.Code)

		var info PluginInfo
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
		require.NotNil(t, info.Manifest)
		assert.Equal(t, "Hello", info.Manifest.Name)
		assert.Equal(t, "1.0.0", info.Manifest.Version)
		assert.Empty(t, info.ManifestError)
	})

	t.Run("archive plugin has no manifest", func(t *testing.T) {
		w := get(t, s, "/plugins/extra")
		require.Equal(t, http.StatusOK, w.Code)

		var info PluginInfo
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
		assert.Nil(t, info.Manifest)
	})

	t.Run("unknown plugin", func(t *testing.T) {
		w := get(t, s, "/plugins/missing")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"plugin not found: missing"}`, w.Body.String())
	})
}

func TestServer_GetMetadata(t *testing.T) {
	f := newFixture(t, validExtra())
	s := New(f.registry, f.host)

	tests := []struct {
		name   string
		path   string
		status int
		body   string
	}{
		{"metadata file", "/plugins/hello/metadata/notes.txt", http.StatusOK, "hello notes"},
		{"inside classpath", "/plugins/hello/metadata/classes/acme/Hello.wasm", http.StatusNotFound, ""},
		{"missing file", "/plugins/hello/metadata/missing.txt", http.StatusNotFound, ""},
		{"archive plugin", "/plugins/extra/metadata/notes.txt", http.StatusNotFound, ""},
		{"unknown plugin", "/plugins/missing/metadata/notes.txt", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, s, tt.path)
			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestServer_ListProviders(t *testing.T) {
	t.Run("providers in plugin order", func(t *testing.T) {
		f := newFixture(t, validExtra())
		s := New(f.registry, f.host)

		w := get(t, s, "/services/api.Greeter")
		require.Equal(t, http.StatusOK, w.Code)

		var infos []ProviderInfo
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &infos))
		require.Len(t, infos, 2)
		assert.Equal(t, "extra", infos[0].Plugin)
		assert.Equal(t, "acme.Extra", infos[0].Unit)
		assert.Equal(t, "api.Greeter", infos[0].Service)
		assert.Equal(t, namespace.ArchiveOrigin(filepath.Join(f.root, "extra.zip")).String(), infos[0].Origin)
		assert.Equal(t, "hello", infos[1].Plugin)
		assert.Equal(t, "acme.Hello", infos[1].Unit)
	})

	t.Run("unknown service", func(t *testing.T) {
		f := newFixture(t, validExtra())
		s := New(f.registry, f.host)

		w := get(t, s, "/services/api.Missing")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("service not exposed to plugins", func(t *testing.T) {
		f := newFixture(t, validExtra())
		s := New(f.registry, namespace.NewHostResolver("other").Register(namespace.NewPlatformUnit("api.Other")))

		w := get(t, s, "/services/api.Other")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("missing provider", func(t *testing.T) {
		f := newFixture(t, map[string][]byte{
			"services/api.Greeter": []byte("acme.Missing\n"),
		})
		s := New(f.registry, f.host)

		w := get(t, s, "/services/api.Greeter")
		assert.Equal(t, http.StatusBadGateway, w.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Contains(t, body["error"], "acme.Missing")
		assert.Equal(t, map[string]any{"service": "api.Greeter"}, body["details"])
	})
}

func TestServer_Metrics(t *testing.T) {
	f := newFixture(t, validExtra())

	t.Run("exposed with a gatherer", func(t *testing.T) {
		s := New(f.registry, f.host, WithGatherer(f.metrics))

		w := get(t, s, "/metrics")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `plugwall_plugins_discovered_total{kind="archive"} 1`)
		assert.Contains(t, w.Body.String(), `plugwall_plugins_discovered_total{kind="directory"} 1`)
	})

	t.Run("absent without one", func(t *testing.T) {
		s := New(f.registry, f.host)

		w := get(t, s, "/metrics")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestServer_MethodNotAllowed(t *testing.T) {
	f := newFixture(t, validExtra())
	s := New(f.registry, f.host)

	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/plugins/hello", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_Spans(t *testing.T) {
	f := newFixture(t, validExtra())

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	s := New(f.registry, f.host, WithTracerProvider(tp))
	get(t, s, "/plugins")

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
}

func TestServer_ListenAndServe(t *testing.T) {
	f := newFixture(t, validExtra())
	s := New(f.registry, f.host)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.ListenAndServe(ctx, "127.0.0.1:0")
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * ShutdownTimeout):
		t.Fatal("server did not shut down")
	}
}

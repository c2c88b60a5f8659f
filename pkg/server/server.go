package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/plugwall/pkg/httputil"
	"github.com/platinummonkey/plugwall/pkg/namespace"
	"github.com/platinummonkey/plugwall/pkg/observability"
	"github.com/platinummonkey/plugwall/pkg/plugins"
)

// ShutdownTimeout bounds graceful shutdown in ListenAndServe
const ShutdownTimeout = 5 * time.Second

// Server is a read-only HTTP view of a plugin registry
type Server struct {
	registry *plugins.Registry
	services namespace.Resolver
	router   *mux.Router
	handler  http.Handler

	log            *logrus.Logger
	gatherer       prometheus.Gatherer
	tracerProvider trace.TracerProvider
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request and error logger
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Server) {
		s.log = logger
	}
}

// WithGatherer exposes the gathered metrics on /metrics
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = gatherer
	}
}

// WithTracerProvider sets the provider of request spans. The global provider is used by default.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(s *Server) {
		s.tracerProvider = provider
	}
}

// New creates a server for registry. Service names in requests are resolved
// through services, usually the host namespace the registry was built from.
func New(registry *plugins.Registry, services namespace.Resolver, opts ...Option) *Server {
	s := &Server{
		registry: registry,
		services: services,
		router:   mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = observability.OrDiscard(s.log)

	s.setupRoutes()

	var otelOpts []otelhttp.Option
	if s.tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(s.tracerProvider))
	}
	s.handler = otelhttp.NewHandler(
		httputil.Chain(
			httputil.RecoveryMiddleware(s.log),
			httputil.LoggingMiddleware(s.log),
		)(s.router),
		"plugwall",
		otelOpts...,
	)
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)

	s.router.HandleFunc("/plugins", s.listPlugins).Methods(http.MethodGet)
	s.router.HandleFunc("/plugins/{name}", s.getPlugin).Methods(http.MethodGet)
	s.router.HandleFunc("/plugins/{name}/metadata/{path:.+}", s.getMetadata).Methods(http.MethodGet)

	s.router.HandleFunc("/services/{service}", s.listProviders).Methods(http.MethodGet)

	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("Starting inspection server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down inspection server: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// HealthResponse is the body of /health
type HealthResponse struct {
	Status  string `json:"status"`
	Plugins int    `json:"plugins"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, HealthResponse{Status: "ok", Plugins: s.registry.Count()})
}

// PluginInfo describes one plugin
type PluginInfo struct {
	Name          string            `json:"name"`
	Kind          plugins.Kind      `json:"kind"`
	MetadataRoot  string            `json:"metadataRoot,omitempty"`
	Classpath     []string          `json:"classpath"`
	Manifest      *plugins.Manifest `json:"manifest,omitempty"`
	ManifestError string            `json:"manifestError,omitempty"`
}

func pluginInfo(p *plugins.Plugin) PluginInfo {
	return PluginInfo{
		Name:         p.Name(),
		Kind:         p.Kind(),
		MetadataRoot: p.MetadataRoot(),
		Classpath:    p.Classpath(),
	}
}

func (s *Server) listPlugins(w http.ResponseWriter, r *http.Request) {
	all := s.registry.Plugins()
	infos := make([]PluginInfo, 0, len(all))
	for _, p := range all {
		infos = append(infos, pluginInfo(p))
	}
	httputil.WriteSuccess(w, infos)
}

func (s *Server) getPlugin(w http.ResponseWriter, r *http.Request) {
	p, ok := s.plugin(w, r)
	if !ok {
		return
	}

	info := pluginInfo(p)
	manifest, found, err := p.Manifest()
	switch {
	case err != nil:
		info.ManifestError = err.Error()
	case found:
		info.Manifest = manifest
	}
	httputil.WriteSuccess(w, info)
}

func (s *Server) getMetadata(w http.ResponseWriter, r *http.Request) {
	p, ok := s.plugin(w, r)
	if !ok {
		return
	}
	name, ok := httputil.ParsePathStringOrError(w, r, "path")
	if !ok {
		return
	}
	// Absolute and ".." names would reach outside the plugin
	if !fs.ValidPath(name) {
		httputil.WriteBadRequest(w, fmt.Sprintf("invalid metadata name: %s", name))
		return
	}

	data, ok := p.BinaryMetadata(name)
	if !ok {
		httputil.WriteNotFoundError(w, fmt.Sprintf("metadata not found: %s", name))
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ProviderInfo describes one service provider
type ProviderInfo struct {
	Plugin  string `json:"plugin"`
	Service string `json:"service"`
	Unit    string `json:"unit"`
	Origin  string `json:"origin,omitempty"`
}

func (s *Server) listProviders(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "service")
	if !ok {
		return
	}

	service, err := s.services.Resolve(r.Context(), name, false)
	if errors.Is(err, namespace.ErrNotFound) {
		httputil.WriteNotFoundError(w, fmt.Sprintf("service not found: %s", name))
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	providers, err := s.registry.Services(r.Context(), service)
	if err != nil {
		s.log.WithError(err).WithField("service", name).Warn("Failed to list providers")
		httputil.WriteDetailedError(w, http.StatusBadGateway, err, map[string]string{"service": name})
		return
	}

	infos := make([]ProviderInfo, 0, len(providers))
	for _, provider := range providers {
		info := ProviderInfo{
			Plugin:  provider.Plugin,
			Service: provider.Service,
			Unit:    provider.Unit.Name(),
		}
		if origin := provider.Unit.Origin(); origin != nil {
			info.Origin = origin.String()
		}
		infos = append(infos, info)
	}
	httputil.WriteSuccess(w, infos)
}

func (s *Server) plugin(w http.ResponseWriter, r *http.Request) (*plugins.Plugin, bool) {
	name, ok := httputil.ParsePathStringOrError(w, r, "name")
	if !ok {
		return nil, false
	}
	p, found := s.registry.Plugin(name)
	if !found {
		httputil.WriteNotFoundError(w, fmt.Sprintf("plugin not found: %s", name))
		return nil, false
	}
	return p, true
}

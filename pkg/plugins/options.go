package plugins

import (
	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/plugwall/pkg/observability"
)

// DefaultServiceCacheSize is the number of service handles each plugin keeps
const DefaultServiceCacheSize = 64

// Option configures an Assembler or Registry
type Option func(*settings)

type settings struct {
	logger           *logrus.Logger
	metrics          *observability.Metrics
	tracer           trace.Tracer
	discoverer       Discoverer
	serviceCacheSize int
	runtimeConfig    wazero.RuntimeConfig
}

func newSettings(opts []Option) settings {
	s := settings{
		serviceCacheSize: DefaultServiceCacheSize,
	}
	for _, opt := range opts {
		opt(&s)
	}
	s.logger = observability.OrDiscard(s.logger)
	if s.tracer == nil {
		s.tracer = observability.Tracer()
	}
	if s.discoverer == nil {
		s.discoverer = &ManifestDiscoverer{Logger: s.logger}
	}
	if s.serviceCacheSize <= 0 {
		s.serviceCacheSize = DefaultServiceCacheSize
	}
	if s.runtimeConfig == nil {
		s.runtimeConfig = wazero.NewRuntimeConfig()
	}
	return s
}

// WithLogger sets the logger
func WithLogger(logger *logrus.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *settings) {
		s.metrics = metrics
	}
}

// WithTracerProvider traces discovery with a tracer from provider instead of the global one
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(s *settings) {
		s.tracer = provider.Tracer(observability.TracerName)
	}
}

// WithDiscoverer replaces the ManifestDiscoverer used by service handles
func WithDiscoverer(discoverer Discoverer) Option {
	return func(s *settings) {
		s.discoverer = discoverer
	}
}

// WithServiceCacheSize bounds the number of service handles cached per plugin
func WithServiceCacheSize(size int) Option {
	return func(s *settings) {
		s.serviceCacheSize = size
	}
}

// WithRuntimeConfig sets the wazero runtime configuration of every plugin namespace
func WithRuntimeConfig(config wazero.RuntimeConfig) Option {
	return func(s *settings) {
		s.runtimeConfig = config
	}
}

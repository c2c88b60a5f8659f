// Package observability provides logging, Prometheus metrics, and OpenTelemetry tracing
// for plugin discovery and namespace resolution.
//
// # Logging
//
// Components log through logrus. Create a logger from a level name:
//
//	logger := observability.NewLogger("debug", os.Stderr)
//	logger.WithField("plugin", name).Info("Created plugin")
//
// Components given a nil logger fall back to Discard, which drops everything.
//
// # Prometheus Metrics
//
// Register metrics once and hand them to the filter builder and the registry:
//
//	reg := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(reg)
//	metrics.RecordResolution("host-filtered-1", observability.OutcomeAllowed)
//
// All Record methods are safe to call on a nil *Metrics.
//
// # Tracing
//
// Registry construction runs inside spans obtained from Tracer, which uses the
// globally registered OpenTelemetry tracer provider.
package observability

package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used for all plugwall spans.
const TracerName = "github.com/platinummonkey/plugwall"

// Tracer returns the plugwall tracer from the global tracer provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

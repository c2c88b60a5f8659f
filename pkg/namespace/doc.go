// Package namespace provides the resolver firewall that sits between a host
// application and the plugins it loads.
//
// # Overview
//
// A Resolver turns names into code units and resource locations. Every unit
// carries an origin: the classpath entry (archive or directory) it came from,
// or nil for platform code. A Filter wraps a parent resolver and exposes only
//
//   - platform units, resolved through the platform resolver first and never filtered
//   - units whose origin was declared on the Builder
//   - resource locations under the platform scheme or under a declared origin
//
// Everything else resolves to ErrNotFound, exactly as if it did not exist.
//
// # Building a filter
//
// Declare origins explicitly or derive them from sample service units:
//
//	filter := namespace.Using(host).
//		WithName("host-api").
//		WithOriginsOf(greeterService, clockService).
//		WithOrigin(namespace.ArchiveOrigin("/opt/app/lib/extra.zip")).
//		Build()
//
//	unit, err := filter.Resolve(ctx, "api.Greeter", false)
//	if errors.Is(err, namespace.ErrNotFound) {
//		// filtered out, or genuinely absent
//	}
//
// Samples without an origin are platform units; they contribute nothing and
// are visible anyway.
//
// # Resource prefixes
//
// Archive origins register the external form of their location
// ("file:///opt/app/lib/extra.zip") and directory origins their plain path
// ("/opt/app/classes/"). Resources inside an archive are addressed as
// "zip:file:///opt/app/lib/extra.zip!/name", so the two prefix families never
// match each other's locations. Prefix membership is decided with floor lookups
// in a PrefixSet.
//
// # Concurrency
//
// Filter.Resolve is safe for concurrent use. At most one resolution per name is
// in flight; other callers for that name wait for and share its result, while
// different names resolve independently. Successful resolutions are memoized,
// so a name always yields the identical Unit.
package namespace

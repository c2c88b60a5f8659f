// Package httputil provides the JSON response helpers, path parsing, and
// middleware used by the inspection server.
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, plugins)
//	httputil.WriteNotFoundError(w, "plugin not found: acme")
//	httputil.WriteError(w, http.StatusBadGateway, err)
//
// Every error body has the form {"error": "..."}.
//
// # Request Parsing
//
//	name, ok := httputil.ParsePathStringOrError(w, r, "name")
//	if !ok {
//		return // Error response already written
//	}
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RecoveryMiddleware(logger),
//		httputil.LoggingMiddleware(logger),
//	)(router)
//
// # Related Packages
//
//   - pkg/server: Inspection server built on these helpers
package httputil

// Package server exposes a plugin registry over HTTP for inspection.
//
// # Endpoints
//
//	GET /health                       status and plugin count
//	GET /plugins                      plugins in discovery order
//	GET /plugins/{name}               one plugin with its manifest
//	GET /plugins/{name}/metadata/{p}  raw metadata file p of the plugin
//	GET /services/{service}           providers of a service across plugins
//	GET /metrics                      Prometheus metrics, when a gatherer is set
//
// The server never changes the registry. Requests are traced with otelhttp
// and logged through logrus.
//
// # Usage
//
//	srv := server.New(registry, host,
//		server.WithLogger(logger),
//		server.WithGatherer(promRegistry),
//	)
//	if err := srv.ListenAndServe(ctx, ":8080"); err != nil {
//		log.Fatal(err)
//	}
package server

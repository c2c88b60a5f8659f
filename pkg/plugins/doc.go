// Package plugins discovers plugins on disk and loads each into its own isolated namespace.
//
// # Overview
//
// A plugin root holds plugins at depth 1. Each plugin gets a classpath.Classpath
// whose parent is a shared isolation boundary, normally a namespace.Filter that
// exposes platform units plus the declared service interfaces of the host.
//
// # Layout
//
//	plugins/
//	  hello.zip              single-archive plugin "hello"
//	  greeter/               directory plugin "greeter"
//	    lib.zip              classpath entry
//	    classes/             classpath entry
//	    plugin.yaml          metadata
//	    README.txt           metadata
//	  notes.txt              ignored
//
// Depth-2 directories and archives of a directory plugin form its classpath;
// other regular files are metadata. A directory with no classpath entry is not
// a plugin. Nothing below depth 2 is inspected.
//
// # Components
//
// Assembler: walks plugin roots and creates one Plugin per unit
// Plugin: name, classpath, metadata access and per-service handles
// Discoverer: finds the providers of a service visible in a namespace
// Registry: discovers once and answers cross-plugin service queries
//
// # Usage Example
//
// Build a registry exposing one service interface to plugins:
//
//	host := namespace.NewHostResolver("host")
//	greeter := namespace.NewUnit("api.Greeter", namespace.ArchiveOrigin("/opt/app/api.zip"))
//	host.Register(greeter)
//
//	registry, err := plugins.Build(ctx, []string{"/opt/app/plugins"}, host, []namespace.Unit{greeter},
//		plugins.WithLogger(logger))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer registry.Close(ctx)
//
//	providers, err := registry.Services(ctx, greeter)
//
// Read plugin metadata:
//
//	for _, p := range registry.Plugins() {
//		readme, ok := p.TextMetadata("README.txt")
//		manifest, ok, err := p.Manifest()
//	}
//
// A plugin declares providers of service "api.Greeter" in the resource
// "services/api.Greeter", one unit name per line.
//
// # Related Packages
//
//   - pkg/namespace: isolation boundary between host and plugins
//   - pkg/classpath: per-plugin resolver and WebAssembly modules
package plugins

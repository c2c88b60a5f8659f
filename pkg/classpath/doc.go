// Package classpath implements the isolated namespace each plugin runs in.
//
// A Classpath resolves units from an ordered list of entries, each either a
// directory or a .zip archive. Unit "a.b.Greeter" is the WebAssembly module
// stored at "a/b/Greeter.wasm" in the first entry that holds it. Lookups go
// to the parent resolver first, normally a namespace.Filter, so a plugin
// cannot shadow platform units or the service interfaces it was given.
//
// Every Classpath owns its own wazero runtime. Modules from two plugins are
// compiled and instantiated in different runtimes and never share a module
// namespace.
//
//	cp, err := classpath.New(ctx, "greeter", []string{"/plugins/greeter/lib.zip"}, filter)
//	if err != nil {
//		return err
//	}
//	defer cp.Close(ctx)
//
//	unit, err := cp.Resolve(ctx, "acme.Greeter", true)
//	if err != nil {
//		return err
//	}
//	mod, err := unit.(*classpath.Module).Instantiate(ctx, wazero.NewModuleConfig())
//
// Resources are looked up the same way: Resources yields the parent's
// locations followed by the entries holding the resource, and Open reads any
// "file:" or "zip:" location.
package classpath

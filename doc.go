// Package xplat projects native platform APIs into one cross-platform plugin API.
//
// Plugin authors describe their native surface once per platform (Java/Android,
// Objective-C/iOS, C#/C++/Windows, or a wasm component). The linker merges those
// descriptions into a canonical model, decides how every class crosses the
// script bridge, and reports where the platforms disagree. At runtime the bridge
// package drives calls across the asynchronous native/script boundary using the
// marshalling metadata from that model.
//
// # Architecture Overview
//
//	xplat/            Root package with Platform identity and match strategies
//	├── descriptor/   Per-platform API descriptor streams (JSON, CBOR, WIT shapes)
//	├── model/        Canonical API model, namespaces, classes, members, builder
//	├── linker/       Namespace mappings and the link pass pipeline
//	├── classify/     Marshal kind classification
//	├── detect/       Link-time conflict detection
//	├── handle/       Reference-counted handle table
//	├── bridge/       Bridge call protocol, wire messages, native hosts
//	├── config/       TOML plugin manifest
//	├── report/       Conflict report rendering and link history
//	├── watch/        Relink on manifest or descriptor changes
//	├── cmd/xlink/    Link CLI with report history and conflict browser
//	└── errors/       Structured error types
//
// # Quick Start
//
// Link three platforms and refuse generation on errors:
//
//	mappings, err := linker.NewMappingSet(cfg.Mappings(), linker.MappingOptions{})
//	if err != nil {
//	    log.Fatal(err) // batched configuration errors
//	}
//	l := linker.New(mappings, linker.Options{Overrides: cfg.MarshalOverrides()})
//	res, err := l.Link(ctx, androidStream, iosStream, windowsStream)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !res.Generatable() {
//	    report.WriteText(os.Stderr, report.FromResult(res), report.TextOptions{})
//	}
//
// # Bridge
//
// Script-side objects are handles with explicit reference counts. Nothing is
// disposed by the garbage collector; the last Release sends the release call:
//
//	scriptEnd, nativeEnd := bridge.Pipe()
//	ep := bridge.NewEndpoint(nativeEnd, host, bridge.EndpointOptions{})
//	go ep.Serve(ctx)
//
//	b := bridge.New(scriptEnd, res.Model, bridge.Options{})
//	go b.Run(ctx)
//	w, _ := b.Construct(ctx, "Contoso.Widgets.Widget")
//	name := w.Call(ctx, "GetName") // queued until construction is acknowledged
//	v, err := name.Await(ctx)
//	_ = w.Release(ctx)
package xplat

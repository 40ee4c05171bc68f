// Package wasmsubmemory splits the linear memory of a WebAssembly module
// into isolated, fixed-size submemories so that one instance can serve many
// independent tenants.
//
// # Architecture Overview
//
//	wasmsubmemory/       Root package with the Memory interfaces
//	├── submemory/       The module rewriter: Transform, ReadLayout
//	├── host/            Runs rewritten modules on wazero
//	├── wasm/            Core WASM binary manipulation primitives
//	├── errors/          Structured error types with phase and kind
//	└── cmd/submemory/   Command line rewriter and interactive explorer
//
// # Quick Start
//
// Rewrite a module:
//
//	out, err := submemory.Transform(wasmBytes, submemory.Config{
//	    SubmemorySize: 1 << 20,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Run it with one submemory per tenant:
//
//	h, err := host.New(ctx, out)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Close(ctx)
//
//	a, _ := h.Add(ctx)
//	b, _ := h.Add(ctx)
//	h.Call(ctx, a, "entry") // [1]
//	h.Call(ctx, a, "entry") // [2]
//	h.Call(ctx, b, "entry") // [1]
//
// # Isolation Model
//
// Every load and store in the rewritten module is masked to the submemory
// size and offset by the base of the selected submemory, so a guest can
// never address memory outside its own region. Globals other than the
// bookkeeping ones are shared between submemories, which is why modules
// with more than one mutable global (typically a stack pointer) are
// rejected.
//
// # Thread Safety
//
// Transform is safe for concurrent use. A Host serializes all calls into
// its instance; WASM instances are single threaded.
package wasmsubmemory

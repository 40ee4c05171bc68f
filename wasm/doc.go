// Package wasm reads and writes core WebAssembly binary modules.
//
// ParseModule decodes a binary into a Module whose fields mirror the
// module's sections. The Module is meant to be edited in place and written
// back with Encode; function bodies stay as raw bytes until a caller
// decodes them with DecodeInstructions.
//
// Supported input is the WebAssembly 2.0 core binary format plus the tail
// call, SIMD, and threads opcode spaces. Garbage-collected types and the
// exception-handling proposal are rejected at parse time.
//
// # Editing
//
//	m, err := wasm.ParseModule(data)
//	if err != nil {
//		return err
//	}
//	g := m.AddGlobal(wasm.Global{
//		Type: wasm.GlobalType{ValType: wasm.ValI32, Mutable: true},
//		Init: wasm.I32ConstExpr(0),
//	})
//	m.AddExport("counter", wasm.KindGlobal, g)
//	if err := m.Validate(); err != nil {
//		return err
//	}
//	out := m.Encode()
//
// Indices returned by AddFunction and AddGlobal are absolute: they already
// account for imported functions and globals.
package wasm

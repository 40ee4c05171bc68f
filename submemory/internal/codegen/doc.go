// Package codegen emits WebAssembly instruction bytes for the submemory
// rewriter.
//
// The Emitter is used in two places: to build the bodies of the synthesized
// bookkeeping functions (select_submemory, add_submemory and the virtual
// memory.size/memory.grow shims), and to assemble rewritten function bodies
// where untouched instructions are re-emitted verbatim with EmitInstr.
//
// This package is internal to the submemory transformer.
package codegen

// Package errors provides the structured error type shared by the
// rewriter and the host.
//
// Errors are categorized by Phase (which stage failed) and Kind (what went
// wrong). Rewrite failures fall into three kinds: structural preconditions
// the module does not meet, constructs the rewriter cannot confine, and
// invalid input passed through from the binary decoder.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseRewrite, errors.KindUnsupported).
//		Path(errors.FuncPath(3)).
//		Detail("unsupported instruction: %s", "memory.fill").
//		Build()
//
// Or the constructors for the common cases:
//
//	err := errors.MemoryTooLarge(17*65536, 1<<20)
//	err := errors.UnsupportedInstruction(3, "i32.atomic.rmw.add")
//
// All errors implement the standard error interface and support errors.Is/As.
// An *Error target with an empty Phase or Kind matches any value of that
// field, so errors.Is(err, errors.ErrUnsupported) matches every unsupported
// construct regardless of phase.
package errors

package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which stage of the rewrite or host produced the error
type Phase string

const (
	PhaseConfig     Phase = "config"     // option validation
	PhaseParse      Phase = "parse"      // binary to IR
	PhaseLayout     Phase = "layout"     // memory layout and preconditions
	PhaseSynthesize Phase = "synthesize" // bookkeeping function generation
	PhaseRewrite    Phase = "rewrite"    // instruction rewriting
	PhaseEncode     Phase = "encode"     // IR to binary
	PhaseHost       Phase = "host"       // running rewritten modules
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindInvalidData  Kind = "invalid_data"
	KindPrecondition Kind = "precondition"
	KindUnsupported  Kind = "unsupported"
	KindNotFound     Kind = "not_found"
	KindExhausted    Kind = "exhausted"
	KindRuntime      Kind = "runtime"
)

// Sentinels for errors.Is matching on kind alone.
var (
	ErrPrecondition = &Error{Kind: KindPrecondition}
	ErrUnsupported  = &Error{Kind: KindUnsupported}
	ErrInvalidInput = &Error{Kind: KindInvalidInput}
	ErrInvalidData  = &Error{Kind: KindInvalidData}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrExhausted    = &Error{Kind: KindExhausted}
	ErrRuntime      = &Error{Kind: KindRuntime}
)

// Error is the structured error type returned by every package in this module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "/"))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Empty Phase or Kind on
// the target act as wildcards.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	return true
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the location, outermost first (e.g. "func 3", "instr 12")
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// FuncPath returns the path element naming a function index.
func FuncPath(funcIdx uint32) string {
	return fmt.Sprintf("func %d", funcIdx)
}

// Structural preconditions

// NoMemory reports a module without a defined linear memory.
func NoMemory() *Error {
	return &Error{
		Phase:  PhaseLayout,
		Kind:   KindPrecondition,
		Detail: "module has no memory",
	}
}

// TooManyMutableGlobals reports a module carrying more than one mutable global.
func TooManyMutableGlobals(count int) *Error {
	return &Error{
		Phase:  PhaseLayout,
		Kind:   KindPrecondition,
		Detail: fmt.Sprintf("wasm file has more than one mutable global (found %d)", count),
		Value:  count,
	}
}

// RelativeDataSegment reports an active data segment whose offset is not a constant.
func RelativeDataSegment(segment int) *Error {
	return &Error{
		Phase:  PhaseLayout,
		Kind:   KindPrecondition,
		Path:   []string{fmt.Sprintf("data %d", segment)},
		Detail: "unsupported relative data segment",
		Value:  segment,
	}
}

// MemoryTooLarge reports an initial memory image that cannot fit one submemory.
func MemoryTooLarge(imageBytes, submemorySize uint64) *Error {
	return &Error{
		Phase:  PhaseLayout,
		Kind:   KindPrecondition,
		Detail: fmt.Sprintf("initial memory of %d bytes is larger than submemory size %d", imageBytes, submemorySize),
		Value:  imageBytes,
	}
}

// Precondition creates a structural precondition error.
func Precondition(phase Phase, detail string, args ...any) *Error {
	return New(phase, KindPrecondition).Detail(detail, args...).Build()
}

// Unsupported constructs

// UnsupportedInstruction reports an instruction the rewriter cannot confine.
func UnsupportedInstruction(funcIdx uint32, name string) *Error {
	return &Error{
		Phase:  PhaseRewrite,
		Kind:   KindUnsupported,
		Path:   []string{FuncPath(funcIdx)},
		Detail: "unsupported instruction: " + name,
		Value:  name,
	}
}

// UnsupportedStoreKind reports a store whose value kind has no scratch local.
func UnsupportedStoreKind(funcIdx uint32, name string) *Error {
	return &Error{
		Phase:  PhaseRewrite,
		Kind:   KindUnsupported,
		Path:   []string{FuncPath(funcIdx)},
		Detail: "unsupported store kind " + name,
		Value:  name,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Pass-through and input errors

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string, args ...any) *Error {
	return New(phase, KindInvalidInput).Detail(detail, args...).Build()
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// ParseFailed wraps a failure of the binary decoder
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Exhausted reports a host-side capacity limit
func Exhausted(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindExhausted,
		Detail: detail,
	}
}

// Runtime wraps a failure raised while executing guest code
func Runtime(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindRuntime,
		Detail: detail,
		Cause:  cause,
	}
}

package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseRewrite,
				Kind:   KindUnsupported,
				Path:   []string{"func 3", "instr 7"},
				Detail: "unsupported instruction: memory.fill",
			},
			contains: []string{"[rewrite]", "unsupported", "func 3/instr 7", "memory.fill"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseParse,
				Kind:  KindInvalidData,
			},
			contains: []string{"[parse]", "invalid_data"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseEncode,
				Kind:   KindInvalidData,
				Detail: "validate output",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[encode]", "validate output", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := ParseFailed("module", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach cause")
	}
	if errors.Unwrap(err) != cause {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := UnsupportedInstruction(2, "memory.copy")

	if !errors.Is(err, &Error{Phase: PhaseRewrite, Kind: KindUnsupported}) {
		t.Error("should match same phase and kind")
	}
	if !errors.Is(err, ErrUnsupported) {
		t.Error("should match kind-only sentinel")
	}
	if errors.Is(err, ErrPrecondition) {
		t.Error("should not match a different kind")
	}
	if errors.Is(err, &Error{Phase: PhaseLayout, Kind: KindUnsupported}) {
		t.Error("should not match a different phase")
	}
	if errors.Is(err, errors.New("other")) {
		t.Error("should not match a foreign error")
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseConfig, KindInvalidInput).
		Path("SubmemorySize").
		Value(3).
		Detail("submemory size %d is not a power of two", 3).
		Build()

	if err.Phase != PhaseConfig || err.Kind != KindInvalidInput {
		t.Errorf("unexpected phase/kind: %s/%s", err.Phase, err.Kind)
	}
	if err.Value != 3 {
		t.Errorf("Value = %v", err.Value)
	}
	if !strings.Contains(err.Error(), "not a power of two") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestPreconditionConstructors(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{NoMemory(), "module has no memory"},
		{TooManyMutableGlobals(2), "more than one mutable global"},
		{RelativeDataSegment(1), "unsupported relative data segment"},
		{MemoryTooLarge(17*65536, 1<<20), "larger than submemory size"},
	}
	for _, tt := range tests {
		if tt.err.Kind != KindPrecondition {
			t.Errorf("%q: kind = %s, want precondition", tt.err, tt.err.Kind)
		}
		if !strings.Contains(tt.err.Error(), tt.want) {
			t.Errorf("%q does not contain %q", tt.err, tt.want)
		}
		if !errors.Is(tt.err, ErrPrecondition) {
			t.Errorf("%q should match ErrPrecondition", tt.err)
		}
	}
}

func TestUnsupportedStoreKind(t *testing.T) {
	err := UnsupportedStoreKind(0, "v128.store")
	if !strings.Contains(err.Error(), "unsupported store kind v128.store") {
		t.Errorf("Error() = %q", err.Error())
	}
	if err.Path[0] != "func 0" {
		t.Errorf("Path = %v", err.Path)
	}
}

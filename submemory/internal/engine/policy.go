package engine

import (
	"fmt"

	"github.com/wippyai/wasm-submemory/errors"
	"github.com/wippyai/wasm-submemory/submemory/internal/codegen"
)

// Policy selects how submemories are addressed and allocated.
type Policy uint32

const (
	// PolicySelect lets the module allocate submemories itself.
	// add_submemory returns (index, base address).
	PolicySelect Policy = iota

	// PolicySelectIndex is PolicySelect with add_submemory returning only
	// the index.
	PolicySelectIndex

	// PolicyExternalBase leaves allocation to the host, which sets the
	// translation base directly through set_base. memory.size reports the
	// fixed submemory size and memory.grow is rejected.
	PolicyExternalBase
)

var policyNames = [...]string{
	PolicySelect:       "select",
	PolicySelectIndex:  "select-index",
	PolicyExternalBase: "external-base",
}

// Exported function names added by the rewrite.
const (
	ExportSelect  = "select_submemory"
	ExportAdd     = "add_submemory"
	ExportReset   = "reset_submemory"
	ExportSetBase = "set_base"
)

func (p Policy) String() string {
	if p.valid() {
		return policyNames[p]
	}
	return fmt.Sprintf("policy(%d)", uint32(p))
}

func (p Policy) valid() bool {
	return int(p) < len(policyNames)
}

// SelfAllocating reports whether the rewritten module manages allocation
// through add_submemory and select_submemory.
func (p Policy) SelfAllocating() bool {
	return p == PolicySelect || p == PolicySelectIndex
}

// Exports returns the function names the policy adds to a module.
func (p Policy) Exports(reset bool) []string {
	if !p.SelfAllocating() {
		return []string{ExportSetBase}
	}
	names := []string{ExportSelect, ExportAdd}
	if reset {
		names = append(names, ExportReset)
	}
	return names
}

// ParsePolicy returns the policy with the given name.
func ParsePolicy(name string) (Policy, error) {
	for i, n := range policyNames {
		if n == name {
			return Policy(i), nil
		}
	}
	return 0, errors.InvalidInput(errors.PhaseConfig, "unknown policy %q", name)
}

// memoryOps decides what memory.size and memory.grow become.
type memoryOps interface {
	size(em *codegen.Emitter)
	// grow reports false when the policy cannot virtualize growth.
	grow(em *codegen.Emitter) bool
}

// virtualMemory routes size and grow through the per-submemory page
// counts kept in the headroom.
type virtualMemory struct {
	sizeFn uint32
	growFn uint32
}

func (v virtualMemory) size(em *codegen.Emitter) {
	em.Call(v.sizeFn)
}

func (v virtualMemory) grow(em *codegen.Emitter) bool {
	em.Call(v.growFn)
	return true
}

// fixedMemory reports a constant size for host-managed submemories.
type fixedMemory struct {
	pages uint32
}

func (f fixedMemory) size(em *codegen.Emitter) {
	em.I32Const(int32(f.pages))
}

func (fixedMemory) grow(*codegen.Emitter) bool {
	return false
}

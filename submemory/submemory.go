package submemory

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-submemory/errors"
	"github.com/wippyai/wasm-submemory/submemory/internal/engine"
	"github.com/wippyai/wasm-submemory/wasm"
)

// Policy selects how submemories are addressed and allocated.
type Policy = engine.Policy

// Addressing policies.
const (
	PolicySelect       = engine.PolicySelect
	PolicySelectIndex  = engine.PolicySelectIndex
	PolicyExternalBase = engine.PolicyExternalBase
)

// Names of the functions added to the export section.
const (
	ExportSelect  = engine.ExportSelect
	ExportAdd     = engine.ExportAdd
	ExportReset   = engine.ExportReset
	ExportSetBase = engine.ExportSetBase
)

// IsBookkeepingExport reports whether name is one of the functions
// Transform may add to the export section.
func IsBookkeepingExport(name string) bool {
	switch name {
	case ExportSelect, ExportAdd, ExportReset, ExportSetBase:
		return true
	}
	return false
}

// Memory geometry shared by every rewritten module.
const (
	PageSize             = engine.PageSize
	Headroom             = engine.Headroom
	SlotSize             = engine.SlotSize
	MaxSubmemories       = engine.MaxSubmemories
	DefaultSubmemorySize = engine.DefaultSubmemorySize
	MaxSubmemorySize     = engine.MaxSubmemorySize
	LayoutSection        = engine.LayoutSection
)

// Layout describes the physical memory layout of a rewritten module.
// It is recorded in the module's "submemory" custom section.
type Layout = engine.Layout

// ParsePolicy returns the policy with the given name.
func ParsePolicy(name string) (Policy, error) {
	return engine.ParsePolicy(name)
}

// Config configures the submemory transformation.
type Config struct {
	// SubmemorySize is the size in bytes of every submemory. It must be a
	// power of two between one page and 2 GiB. Zero means 1 MiB.
	SubmemorySize uint64

	// Policy selects the addressing policy. The zero value is PolicySelect.
	Policy Policy

	// ResetExport adds reset_submemory(i32), which restores a submemory to
	// the initial image. Requires a self-allocating policy.
	ResetExport bool

	// BoundedGrow makes memory.grow return -1 once a submemory would exceed
	// SubmemorySize instead of growing into its neighbour.
	BoundedGrow bool
}

// Transform rewrites a WebAssembly module so that its single linear memory
// is split into isolated submemories of cfg.SubmemorySize bytes.
//
// Every load and store is translated through a masked, per-submemory base
// address, memory.size and memory.grow are virtualized, and bookkeeping
// functions are exported according to cfg.Policy. The input is not
// modified. On failure no output is returned.
func Transform(wasmData []byte, cfg Config) ([]byte, error) {
	eng := engine.New(engine.Config{
		SubmemorySize: cfg.SubmemorySize,
		Policy:        cfg.Policy,
		ResetExport:   cfg.ResetExport,
		BoundedGrow:   cfg.BoundedGrow,
	})
	return eng.Transform(wasmData)
}

// ReadLayout returns the layout recorded in a rewritten module.
func ReadLayout(wasmData []byte) (Layout, error) {
	m, err := wasm.ParseModule(wasmData)
	if err != nil {
		return Layout{}, errors.ParseFailed("module", err)
	}
	return layoutOf(m)
}

func layoutOf(m *wasm.Module) (Layout, error) {
	sec := m.FindCustomSection(LayoutSection)
	if sec == nil {
		return Layout{}, errors.NotFound(errors.PhaseParse, "custom section", LayoutSection)
	}
	return engine.DecodeLayout(sec.Data)
}

// IsRewritten reports whether a module carries a valid layout record.
func IsRewritten(wasmData []byte) bool {
	_, err := ReadLayout(wasmData)
	return err == nil
}

// SetLogger configures the logger used during Transform.
func SetLogger(l *zap.Logger) {
	engine.SetLogger(l)
}

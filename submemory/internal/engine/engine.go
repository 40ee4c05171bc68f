package engine

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-submemory/errors"
	"github.com/wippyai/wasm-submemory/wasm"
)

// Config configures the transformation engine.
type Config struct {
	// SubmemorySize is the size in bytes of every submemory. Zero selects
	// DefaultSubmemorySize.
	SubmemorySize uint64
	Policy        Policy
	ResetExport   bool
	BoundedGrow   bool
}

// Engine orchestrates the submemory transformation pipeline.
//
// The engine is stateless between Transform calls. Each Transform
// operates on an independent module.
type Engine struct {
	size        uint64
	policy      Policy
	resetExport bool
	boundedGrow bool
}

// New creates a new transformation engine with the given config.
func New(cfg Config) *Engine {
	size := cfg.SubmemorySize
	if size == 0 {
		size = DefaultSubmemorySize
	}
	return &Engine{
		size:        size,
		policy:      cfg.Policy,
		resetExport: cfg.ResetExport,
		boundedGrow: cfg.BoundedGrow,
	}
}

// validate rejects configurations that cannot produce a correct module.
func (e *Engine) validate() error {
	if err := ValidateSize(e.size); err != nil {
		return err
	}
	if !e.policy.valid() {
		return errors.InvalidInput(errors.PhaseConfig, "unknown policy %d", uint32(e.policy))
	}
	if !e.policy.SelfAllocating() {
		if e.resetExport {
			return errors.InvalidInput(errors.PhaseConfig, "%s export requires a self-allocating policy", ExportReset)
		}
		if e.boundedGrow {
			return errors.InvalidInput(errors.PhaseConfig, "bounded grow has no effect under %s", e.policy)
		}
	}
	return nil
}

// Transform applies the submemory transformation to a WASM module.
//
// The transformation:
//  1. Parses the input WASM binary
//  2. Checks structural preconditions before any mutation
//  3. Relocates the initial image and adds the headroom page
//  4. Adds the base, index and count globals
//  5. Synthesizes the bookkeeping functions for the policy
//  6. Rewrites every original function body
//  7. Records the layout, validates, and encodes the result
func (e *Engine) Transform(wasmData []byte) ([]byte, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	m, err := wasm.ParseModule(wasmData)
	if err != nil {
		return nil, errors.ParseFailed("module", err)
	}

	if m.FindCustomSection(LayoutSection) != nil {
		return nil, errors.Precondition(errors.PhaseParse, "module is already rewritten")
	}
	if n := CountMutableGlobals(m); n > 1 {
		return nil, errors.TooManyMutableGlobals(n)
	}
	for _, name := range e.policy.Exports(e.resetExport) {
		if m.FindExport(name) != nil {
			return nil, errors.Precondition(errors.PhaseSynthesize, "module already exports %q", name)
		}
	}

	numImported := uint32(m.NumImportedFuncs())
	numOriginal := len(m.Code)

	initial, err := planLayout(m, e.size)
	if err != nil {
		return nil, err
	}
	layout := Layout{
		Version:       LayoutVersion,
		Policy:        e.policy,
		SubmemorySize: e.size,
		InitialPages:  initial,
	}

	globals := addGlobals(m)
	mem := e.synthesize(m, layout, globals)
	Logger().Debug("synthesized bookkeeping",
		zap.Stringer("policy", e.policy),
		zap.Uint32("base_global", globals.Base),
		zap.Int("functions", len(m.Code)-numOriginal))

	rw := newRewriter(layout, globals, mem)
	var total RewriteStats
	for i := 0; i < numOriginal; i++ {
		funcIdx := numImported + uint32(i)
		ft := m.GetFuncType(funcIdx)
		if ft == nil {
			return nil, errors.InvalidData(errors.PhaseRewrite, []string{errors.FuncPath(funcIdx)}, "function type out of range")
		}
		body, stats, err := rw.rewriteBody(funcIdx, uint32(len(ft.Params)), m.Code[i])
		if err != nil {
			return nil, err
		}
		m.Code[i] = body
		total.add(stats)
		if stats.Total() > 0 {
			Logger().Debug("rewrote function",
				zap.Uint32("func", funcIdx),
				zap.Int("loads", stats.Loads),
				zap.Int("stores", stats.Stores),
				zap.Int("sizes", stats.Sizes),
				zap.Int("grows", stats.Grows))
		}
	}

	m.CustomSections = append(m.CustomSections, wasm.CustomSection{
		Name: LayoutSection,
		Data: layout.Encode(),
	})

	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(errors.PhaseEncode, errors.KindInvalidData, err, "validate output")
	}
	out := m.Encode()

	Logger().Debug("transform complete",
		zap.Int("functions", numOriginal),
		zap.Int("rewritten", total.Total()),
		zap.Int("in_bytes", len(wasmData)),
		zap.Int("out_bytes", len(out)))

	return out, nil
}

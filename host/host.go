package host

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-submemory/errors"
	"github.com/wippyai/wasm-submemory/submemory"
)

// Config holds configuration for host creation.
type Config struct {
	// RuntimeConfig replaces the default wazero runtime configuration.
	RuntimeConfig wazero.RuntimeConfig

	// Setup runs on the fresh runtime before the module is instantiated.
	// Use it to instantiate the modules the rewritten module imports.
	Setup func(ctx context.Context, rt wazero.Runtime) error

	// Logger overrides the package logger for this host.
	Logger *zap.Logger

	// Name is the instance name. Empty keeps the module's own name.
	Name string

	// MemoryLimitPages caps physical memory in pages (64KB each).
	// 0 means the wazero default of 65536 pages.
	MemoryLimitPages uint32
}

// Host runs a rewritten module on wazero and drives its submemory
// bookkeeping exports.
//
// All methods are safe for concurrent use. Calls are serialized: the
// instance has a single base register, so selecting a submemory and
// calling into it happen under one lock.
type Host struct {
	rt     wazero.Runtime
	mod    api.Module
	mem    api.Memory
	log    *zap.Logger
	layout submemory.Layout

	selectFn  api.Function
	addFn     api.Function
	resetFn   api.Function
	setBaseFn api.Function

	mu     sync.Mutex
	count  uint32
	closed bool
}

// New instantiates a module produced by submemory.Transform.
// A nil cfg uses defaults.
func New(ctx context.Context, rewritten []byte, cfg *Config) (*Host, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	layout, err := submemory.ReadLayout(rewritten)
	if err != nil {
		return nil, err
	}

	rtCfg := cfg.RuntimeConfig
	if rtCfg == nil {
		rtCfg = wazero.NewRuntimeConfig()
	}
	if cfg.MemoryLimitPages > 0 {
		rtCfg = rtCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtCfg)
	if cfg.Setup != nil {
		if err := cfg.Setup(ctx, rt); err != nil {
			return nil, multierr.Append(errors.Runtime("host setup", err), rt.Close(ctx))
		}
	}

	modCfg := wazero.NewModuleConfig()
	if cfg.Name != "" {
		modCfg = modCfg.WithName(cfg.Name)
	}
	mod, err := rt.InstantiateWithConfig(ctx, rewritten, modCfg)
	if err != nil {
		return nil, multierr.Append(errors.Runtime("instantiate", err), rt.Close(ctx))
	}

	h := &Host{
		rt:     rt,
		mod:    mod,
		mem:    mod.Memory(),
		log:    log,
		layout: layout,
	}
	if err := h.bind(); err != nil {
		return nil, multierr.Append(err, rt.Close(ctx))
	}

	log.Debug("host ready",
		zap.Stringer("policy", layout.Policy),
		zap.Uint64("submemory_size", layout.SubmemorySize),
		zap.Uint32("first_base", layout.FirstBase()))
	return h, nil
}

func (h *Host) bind() error {
	if h.mem == nil {
		return errors.NoMemory()
	}
	lookup := func(name string, required bool) (api.Function, error) {
		fn := h.mod.ExportedFunction(name)
		if fn == nil && required {
			return nil, errors.NotFound(errors.PhaseHost, "export", name)
		}
		return fn, nil
	}

	var err error
	if !h.layout.Policy.SelfAllocating() {
		h.setBaseFn, err = lookup(submemory.ExportSetBase, true)
		return err
	}
	if h.selectFn, err = lookup(submemory.ExportSelect, true); err != nil {
		return err
	}
	if h.addFn, err = lookup(submemory.ExportAdd, true); err != nil {
		return err
	}
	h.resetFn, _ = lookup(submemory.ExportReset, false)
	return nil
}

func (h *Host) checkOpen() error {
	if h.closed {
		return errors.Precondition(errors.PhaseHost, "host is closed")
	}
	return nil
}

func (h *Host) checkIndex(index uint32) error {
	if index >= h.count {
		return errors.New(errors.PhaseHost, errors.KindNotFound).
			Value(index).
			Detail("submemory %d is not allocated", index).
			Build()
	}
	return nil
}

// base returns the physical address of submemory index.
func (h *Host) base(index uint32) uint32 {
	return uint32(uint64(h.layout.FirstBase()) + uint64(index)*h.layout.SubmemorySize)
}

// Add allocates a new submemory initialized from the module's initial
// image and returns its index.
func (h *Host) Add(ctx context.Context) (uint32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkOpen(); err != nil {
		return 0, err
	}

	var (
		index uint32
		err   error
	)
	if h.layout.Policy.SelfAllocating() {
		index, err = h.addGuest(ctx)
	} else {
		index, err = h.addHost()
	}
	if err != nil {
		return 0, err
	}

	h.log.Debug("allocated submemory",
		zap.Uint32("index", index),
		zap.Uint32("base", h.base(index)),
		zap.Uint32("pages", h.mem.Size()/submemory.PageSize))
	return index, nil
}

// addGuest allocates through the module's add_submemory export.
func (h *Host) addGuest(ctx context.Context) (uint32, error) {
	res, err := h.addFn.Call(ctx)
	if err != nil {
		return 0, errors.Runtime("call "+submemory.ExportAdd, err)
	}
	idx := api.DecodeI32(res[0])
	if idx < 0 {
		return 0, errors.Exhausted(errors.PhaseHost, "add_submemory failed: headroom full or memory limit reached")
	}
	if len(res) > 1 {
		if base := api.DecodeU32(res[1]); base != h.base(uint32(idx)) {
			return 0, errors.New(errors.PhaseHost, errors.KindRuntime).
				Detail("submemory %d allocated at %#x, expected %#x", idx, base, h.base(uint32(idx))).
				Build()
		}
	}
	h.count = uint32(idx) + 1
	return uint32(idx), nil
}

// addHost carves the next region out of physical memory for modules
// rewritten with PolicyExternalBase.
func (h *Host) addHost() (uint32, error) {
	end := uint64(h.layout.FirstBase()) + uint64(h.count+1)*h.layout.SubmemorySize
	if end > math.MaxUint32 {
		return 0, errors.Exhausted(errors.PhaseHost, "32-bit address space exhausted")
	}
	if size := uint64(h.mem.Size()); size < end {
		if _, ok := h.mem.Grow(uint32((end - size) / submemory.PageSize)); !ok {
			return 0, errors.Exhausted(errors.PhaseHost, "memory limit reached")
		}
	}

	index := h.count
	if err := h.copyImage(h.base(index)); err != nil {
		return 0, err
	}
	h.count++
	return index, nil
}

func (h *Host) copyImage(dst uint32) error {
	img, ok := h.mem.Read(h.layout.ImageBase(), h.layout.ImageSize())
	if !ok || !h.mem.Write(dst, img) {
		return errors.New(errors.PhaseHost, errors.KindRuntime).
			Detail("copy initial image to %#x out of bounds", dst).
			Build()
	}
	return nil
}

// Select makes index the current submemory. Every memory access the
// module performs until the next selection lands in that submemory.
func (h *Host) Select(ctx context.Context, index uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkOpen(); err != nil {
		return err
	}
	return h.selectLocked(ctx, index)
}

func (h *Host) selectLocked(ctx context.Context, index uint32) error {
	if err := h.checkIndex(index); err != nil {
		return err
	}
	var err error
	if h.layout.Policy.SelfAllocating() {
		_, err = h.selectFn.Call(ctx, api.EncodeU32(index))
	} else {
		_, err = h.setBaseFn.Call(ctx, api.EncodeU32(h.base(index)))
	}
	if err != nil {
		return errors.Runtime(fmt.Sprintf("select submemory %d", index), err)
	}
	return nil
}

// Call selects submemory index and calls the exported function name.
// Parameters and results use wazero's raw uint64 encoding.
func (h *Host) Call(ctx context.Context, index uint32, name string, params ...uint64) ([]uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkOpen(); err != nil {
		return nil, err
	}
	if submemory.IsBookkeepingExport(name) {
		return nil, errors.Precondition(errors.PhaseHost, "%s is managed by the host", name)
	}
	fn := h.mod.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseHost, "export", name)
	}
	if err := h.selectLocked(ctx, index); err != nil {
		return nil, err
	}

	res, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, errors.Runtime(fmt.Sprintf("call %s on submemory %d", name, index), err)
	}
	return res, nil
}

// Reset restores submemory index to the state Add left it in.
// Uses reset_submemory when the module exports it.
func (h *Host) Reset(ctx context.Context, index uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkOpen(); err != nil {
		return err
	}
	if err := h.checkIndex(index); err != nil {
		return err
	}

	if h.resetFn != nil {
		if _, err := h.resetFn.Call(ctx, api.EncodeU32(index)); err != nil {
			return errors.Runtime(fmt.Sprintf("reset submemory %d", index), err)
		}
		return nil
	}

	base := h.base(index)
	if err := h.copyImage(base); err != nil {
		return err
	}
	var zeros [submemory.PageSize]byte
	for off := uint64(h.layout.ImageSize()); off < h.layout.SubmemorySize; off += submemory.PageSize {
		if !h.mem.Write(base+uint32(off), zeros[:]) {
			return errors.New(errors.PhaseHost, errors.KindRuntime).
				Detail("clear submemory %d out of bounds", index).
				Build()
		}
	}
	if h.layout.Policy.SelfAllocating() {
		h.mem.WriteUint32Le(index*submemory.SlotSize, h.layout.InitialPages)
	}
	return nil
}

// SetBase points the translation base at an arbitrary physical address.
// Only modules rewritten with PolicyExternalBase export set_base. The next
// Select or Call overrides it.
func (h *Host) SetBase(ctx context.Context, base uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkOpen(); err != nil {
		return err
	}
	if h.setBaseFn == nil {
		return errors.Precondition(errors.PhaseHost, "%s requires policy %s", submemory.ExportSetBase, submemory.PolicyExternalBase)
	}
	if _, err := h.setBaseFn.Call(ctx, api.EncodeU32(base)); err != nil {
		return errors.Runtime(submemory.ExportSetBase, err)
	}
	return nil
}

// Count returns the number of allocated submemories.
func (h *Host) Count() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Layout returns the layout recorded in the module.
func (h *Host) Layout() submemory.Layout {
	return h.layout
}

// Exports returns the module's own exported functions, sorted by name.
func (h *Host) Exports() []string {
	defs := h.mod.ExportedFunctionDefinitions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		if !submemory.IsBookkeepingExport(name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// View returns a window onto submemory index. Offsets passed to the view
// are the addresses the module itself uses.
func (h *Host) View(index uint32) (*View, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkOpen(); err != nil {
		return nil, err
	}
	if err := h.checkIndex(index); err != nil {
		return nil, err
	}
	return &View{
		mem:   h.mem,
		base:  h.base(index),
		size:  uint32(h.layout.SubmemorySize),
		slot:  index * submemory.SlotSize,
		paged: h.layout.Policy.SelfAllocating(),
	}, nil
}

// Close releases the instance and the runtime.
func (h *Host) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return multierr.Combine(h.mod.Close(ctx), h.rt.Close(ctx))
}

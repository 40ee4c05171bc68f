package main

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-submemory/submemory"
	"github.com/wippyai/wasm-submemory/wasm"
)

type funcInfo struct {
	name        string
	params      []wasm.ValType
	results     []wasm.ValType
	bookkeeping bool
}

func (f funcInfo) String() string {
	params := make([]string, len(f.params))
	for i, p := range f.params {
		params[i] = p.String()
	}
	s := f.name + "(" + strings.Join(params, ", ") + ")"
	switch len(f.results) {
	case 0:
	case 1:
		s += " -> " + f.results[0].String()
	default:
		results := make([]string, len(f.results))
		for i, r := range f.results {
			results[i] = r.String()
		}
		s += " -> (" + strings.Join(results, ", ") + ")"
	}
	if f.bookkeeping {
		s += " [submemory]"
	}
	return s
}

// exportedFuncs lists the function exports of a module sorted by name.
func exportedFuncs(data []byte) ([]funcInfo, error) {
	m, err := wasm.ParseModule(data)
	if err != nil {
		return nil, fmt.Errorf("parse module: %w", err)
	}
	var funcs []funcInfo
	for _, exp := range m.Exports {
		if exp.Kind != wasm.KindFunc {
			continue
		}
		ft := m.GetFuncType(exp.Idx)
		if ft == nil {
			return nil, fmt.Errorf("export %s: function %d has no type", exp.Name, exp.Idx)
		}
		funcs = append(funcs, funcInfo{
			name:        exp.Name,
			params:      ft.Params,
			results:     ft.Results,
			bookkeeping: submemory.IsBookkeepingExport(exp.Name),
		})
	}
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].name < funcs[j].name })
	return funcs, nil
}

// parseArg converts text to wazero's raw encoding of a value of type t.
func parseArg(value string, t wasm.ValType) (uint64, error) {
	value = strings.TrimSpace(value)
	switch t {
	case wasm.ValI32:
		v, err := strconv.ParseInt(value, 0, 64)
		if err != nil || v < math.MinInt32 || v > math.MaxUint32 {
			return 0, fmt.Errorf("invalid i32 %q", value)
		}
		return api.EncodeU32(uint32(v)), nil
	case wasm.ValI64:
		if v, err := strconv.ParseInt(value, 0, 64); err == nil {
			return api.EncodeI64(v), nil
		}
		v, err := strconv.ParseUint(value, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid i64 %q", value)
		}
		return v, nil
	case wasm.ValF32:
		v, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid f32 %q", value)
		}
		return api.EncodeF32(float32(v)), nil
	case wasm.ValF64:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid f64 %q", value)
		}
		return api.EncodeF64(v), nil
	default:
		return 0, fmt.Errorf("unsupported parameter type %s", t)
	}
}

func formatResults(res []uint64, types []wasm.ValType) string {
	if len(res) == 0 {
		return "(no results)"
	}
	out := make([]string, len(res))
	for i, r := range res {
		t := wasm.ValI64
		if i < len(types) {
			t = types[i]
		}
		switch t {
		case wasm.ValI32:
			out[i] = strconv.FormatInt(int64(api.DecodeI32(r)), 10)
		case wasm.ValI64:
			out[i] = strconv.FormatInt(int64(r), 10)
		case wasm.ValF32:
			out[i] = strconv.FormatFloat(float64(api.DecodeF32(r)), 'g', -1, 32)
		case wasm.ValF64:
			out[i] = strconv.FormatFloat(api.DecodeF64(r), 'g', -1, 64)
		default:
			out[i] = fmt.Sprintf("%#x", r)
		}
	}
	return strings.Join(out, ", ")
}

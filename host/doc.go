// Package host runs modules produced by submemory.Transform on wazero.
//
// A Host owns one wazero runtime and one instance. It reads the layout
// record to learn the policy, then drives the bookkeeping exports:
//
//	h, err := host.New(ctx, rewritten, nil)
//	if err != nil {
//	    return err
//	}
//	defer h.Close(ctx)
//
//	idx, err := h.Add(ctx)
//	res, err := h.Call(ctx, idx, "entry")
//
// Under PolicyExternalBase the module exports only set_base, and the Host
// performs allocation itself: it grows physical memory by one submemory,
// copies the initial image into the new region and passes the region's
// base to set_base on every Select.
package host

// Package cache provides a cache bank that stores lines at their compressed
// size. The bank does not run any protocol by itself; a Controller decides
// what each access means and the bank keeps every set within its budget.
package cache

import (
	"fmt"
	"strings"

	"github.com/sarchlab/bdicache/cachearray"
	"github.com/sarchlab/bdicache/compression"
	"github.com/sarchlab/bdicache/hooking"
	"github.com/sarchlab/bdicache/stats"
	"github.com/sarchlab/bdicache/tagging"
)

// Bank is one cache bank. It is driven by a single thread.
type Bank struct {
	hooking.HookableBase

	name        string
	lineSize    int
	segmentSize int

	array     cachearray.Array
	ctrl      Controller
	estimator compression.Estimator
	collector stats.Collector
}

// Name returns the name of the bank.
func (b *Bank) Name() string {
	return b.name
}

// Array returns the storage backend of the bank.
func (b *Bank) Array() cachearray.Array {
	return b.array
}

// Collector returns where the bank reports its events.
func (b *Bank) Collector() stats.Collector {
	return b.collector
}

// LineSize returns the number of bytes per line.
func (b *Bank) LineSize() int {
	return b.lineSize
}

// SegmentSize returns the allocation granularity in bytes.
func (b *Bank) SegmentSize() int {
	return b.segmentSize
}

// Access serves a request and returns the cycle at which the response is
// ready.
func (b *Bank) Access(req Request) uint64 {
	respCycle := req.Cycle

	skip := b.ctrl.StartAccess(req)
	if !skip {
		respCycle = b.access(req)
	}

	b.ctrl.EndAccess(req)

	return respCycle
}

func (b *Bank) access(req Request) uint64 {
	slot, hit := b.array.Lookup(req.Address, req.Type.IsRead())
	b.collector.RecordAccess(hit)

	switch {
	case hit && req.Type.WritesData():
		b.update(req, slot)
	case !hit && b.ctrl.ShouldAllocate(req):
		slot = b.fill(req)
	case !hit:
		slot = -1
	}

	return b.ctrl.ProcessAccess(req, slot, req.Cycle)
}

func (b *Bank) fill(req Request) int {
	line := make([]byte, b.lineSize)
	copy(line, req.Data)

	bytes := b.estimator.Estimate(line)
	units := b.units(bytes)

	r := b.array.Reserve(req.Address, units)
	b.evict(req, r.Victims)

	b.array.Commit(r.Slot, req.Address, line, units)
	b.collector.RecordFill(bytes, b.lineSize)
	b.traceFill(req, r.Slot)

	return r.Slot
}

func (b *Bank) update(req Request, slot int) {
	patch := req.writeRange(b.lineSize)
	if len(patch) == 0 {
		return
	}

	line := b.array.Line(slot).Data
	copy(line[req.Offset:], patch)

	bytes := b.estimator.Estimate(line)
	units := b.units(bytes)

	victims := b.array.ReserveForUpdate(slot, units)
	b.evict(req, victims)

	b.array.UpdateInPlace(slot, patch, req.Offset, units)
	b.collector.RecordUpdate(bytes, b.lineSize)
	b.traceUpdate(req, slot)
}

func (b *Bank) evict(req Request, victims []cachearray.Victim) {
	for _, v := range victims {
		b.ctrl.ProcessEviction(req, v, req.Cycle)

		b.array.ClearSize(v.Slot)
		b.array.Invalidate(v.Slot)

		b.collector.RecordEviction(v.Valid)
		b.traceEvict(req, v)
	}
}

// units converts a size in bytes into whole segments.
func (b *Bank) units(bytes int) int {
	units := (bytes + b.segmentSize - 1) / b.segmentSize
	return max(units, 1)
}

// Invalidate serves an invalidation from the coherence controller and returns
// the cycle at which it completes. A full invalidation drops the line; a
// downgrade keeps it resident. The line must be in the bank.
func (b *Bank) Invalidate(req Request, inv InvType) uint64 {
	slot, found := b.array.Lookup(req.Address, false)
	if !found {
		panic(b.missingLineDiagnostic(req, inv))
	}

	line := b.array.Line(slot)
	respCycle := b.ctrl.ProcessInv(req, inv, line, req.Cycle)

	if inv == InvTypeInvalidate {
		b.array.ClearSize(slot)
		b.array.Invalidate(slot)
	}

	b.collector.RecordInvalidation()
	b.traceInvalidate(req, line, inv)

	return respCycle
}

func (b *Bank) missingLineDiagnostic(req Request, inv InvType) string {
	setID := b.array.SetOf(req.Address)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s of 0x%x, which is not in the bank (set %d)",
		b.name, inv, req.Address, setID)

	for _, line := range b.array.SetLines(setID) {
		fmt.Fprintf(&sb, "\n  slot %d: addr 0x%x valid %t size %d",
			line.Slot, line.Address, line.Valid, line.Size)
	}

	return sb.String()
}

// Estimate returns the compressed size, in bytes, the bank would charge for a
// line with the given content.
func (b *Bank) Estimate(line []byte) int {
	return b.estimator.Estimate(line)
}

// Lookup returns the line holding addr without touching the replacement
// state.
func (b *Bank) Lookup(addr uint64) (tagging.Line, bool) {
	slot, found := b.array.Lookup(addr, false)
	if !found {
		return tagging.Line{}, false
	}

	return b.array.Line(slot), true
}

// SetSizeOf returns the total size, in segments, of the set addr maps to.
func (b *Bank) SetSizeOf(addr uint64) int {
	return b.array.SetSize(b.array.SetOf(addr))
}

// Budget returns the maximum total size, in segments, of a set.
func (b *Bank) Budget() int {
	return b.array.SetBudget()
}

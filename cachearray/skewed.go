package cachearray

import (
	"fmt"

	"github.com/sarchlab/bdicache/hashing"
	"github.com/sarchlab/bdicache/replacement"
	"github.com/sarchlab/bdicache/tagging"
)

// Skewed is a zcache. Way w of an address is the row hf.Hash(w, addr) of that
// way, so an address can live in one position per way. To make room, a walk
// follows the lines in those positions to the positions they could move to,
// and the policy picks the victim among every line reached. The lines on the
// path from the victim back to the incoming address shift by one position.
//
// A slot keeps its line for as long as the line is resident. Only the mapping
// from positions to slots changes.
type Skewed struct {
	base

	hf        hashing.Family
	ways      int
	rows      int
	rowMask   uint64
	walkLimit int

	positions []int // position -> slot
	where     []int // slot -> position
	pending   *relocation
	swaps     uint64
}

type walkStep struct {
	pos    int
	slot   int
	parent int
}

// relocation is the position path of a reservation, from the victim's
// position to the position the incoming address hashes to.
type relocation struct {
	addr uint64
	slot int
	path []int
}

// NewSkewed creates a zcache on top of the store. Each of the store's ways is
// one hashed way, and a replacement considers up to candidates lines. It
// panics if the store has a single way or candidates is less than the number
// of ways.
func NewSkewed(
	store *tagging.Store,
	policy replacement.Policy,
	hf hashing.Family,
	candidates int,
) *Skewed {
	ways := store.Associativity()
	rows := store.NumSets()

	if ways < 2 {
		panic(fmt.Sprintf("a zcache needs at least 2 ways, "+
			"but you specified %d", ways))
	}

	if candidates < ways {
		panic(fmt.Sprintf("a zcache with %d ways cannot walk only "+
			"%d candidates", ways, candidates))
	}

	a := &Skewed{
		base:      base{store: store, policy: policy},
		hf:        hf,
		ways:      ways,
		rows:      rows,
		rowMask:   uint64(rows - 1),
		walkLimit: candidates,
		positions: make([]int, ways*rows),
		where:     make([]int, ways*rows),
	}

	for w := 0; w < ways; w++ {
		for row := 0; row < rows; row++ {
			pos := w*rows + row
			slot := row*ways + w
			a.positions[pos] = slot
			a.where[slot] = pos
		}
	}

	return a
}

func (a *Skewed) position(way int, addr uint64) int {
	return way*a.rows + int(a.hf.Hash(uint32(way), addr)&a.rowMask)
}

// Lookup checks the one position addr can take in every way.
func (a *Skewed) Lookup(addr uint64, touch bool) (int, bool) {
	for w := 0; w < a.ways; w++ {
		slot := a.positions[a.position(w, addr)]
		if !a.store.Holds(slot, addr) {
			continue
		}

		if touch {
			a.policy.Touched(slot)
		}

		return slot, true
	}

	return -1, false
}

// Reserve walks the positions reachable from addr and returns the policy's
// worst line as the only victim. The walk stops at the first invalid line or
// once it has seen the candidate limit.
func (a *Skewed) Reserve(addr uint64, _ int) Reservation {
	steps := a.walk(addr)

	slots := make([]int, len(steps))
	for i, s := range steps {
		slots[i] = s.slot
	}

	victim := a.policy.RankWorst(replacement.Candidates{Slots: slots})

	a.pending = &relocation{
		addr: addr,
		slot: victim,
		path: relocationPath(steps, victim),
	}

	return Reservation{
		Slot:    victim,
		Victims: []Victim{a.victim(victim)},
	}
}

func (a *Skewed) walk(addr uint64) []walkStep {
	steps := make([]walkStep, 0, a.walkLimit+a.ways)
	allValid := true

	for w := 0; w < a.ways; w++ {
		pos := a.position(w, addr)
		slot := a.positions[pos]
		steps = append(steps, walkStep{pos: pos, slot: slot, parent: -1})
		allValid = allValid && a.store.IsValid(slot)
	}

	for fringe := 0; allValid && fringe < len(steps); fringe++ {
		if len(steps) >= a.walkLimit {
			break
		}

		from := steps[fringe].slot
		fromAddr := a.store.Line(from).Address

		for w := 0; w < a.ways; w++ {
			pos := a.position(w, fromAddr)
			slot := a.positions[pos]

			if slot == from {
				continue
			}

			steps = append(steps,
				walkStep{pos: pos, slot: slot, parent: fringe})
			allValid = allValid && a.store.IsValid(slot)
		}
	}

	return steps[:min(len(steps), a.walkLimit)]
}

// relocationPath follows the parents of the first step that reached the
// victim. A line can be reached twice when the walk loops.
func relocationPath(steps []walkStep, victim int) []int {
	idx := -1
	for i, s := range steps {
		if s.slot == victim {
			idx = i
			break
		}
	}

	if idx < 0 {
		panic(fmt.Sprintf("slot %d was not reached by the walk", victim))
	}

	var path []int
	for ; idx >= 0; idx = steps[idx].parent {
		path = append(path, steps[idx].pos)
	}

	return path
}

// Commit moves the lines on the path of the last reservation and places the
// line in the reserved slot. It panics if slot and addr are not the ones that
// were reserved.
func (a *Skewed) Commit(slot int, addr uint64, data []byte, size int) {
	r := a.pending
	if r == nil || r.slot != slot || r.addr != addr {
		panic(fmt.Sprintf("slot %d was not reserved for 0x%x", slot, addr))
	}

	a.pending = nil

	for i := 0; i < len(r.path)-1; i++ {
		a.moveTo(r.path[i], a.positions[r.path[i+1]])
	}

	a.moveTo(r.path[len(r.path)-1], slot)
	a.swaps += uint64(len(r.path) - 1)

	a.base.Commit(slot, addr, data, size)
}

func (a *Skewed) moveTo(pos int, slot int) {
	a.positions[pos] = slot
	a.where[slot] = pos
}

// NumSwaps returns how many resident lines have changed position.
func (a *Skewed) NumSwaps() uint64 {
	return a.swaps
}

// ReserveForUpdate never evicts.
func (a *Skewed) ReserveForUpdate(int, int) []Victim {
	return nil
}

// Line returns a copy of the slot, with the row and the way of the slot's
// current position as SetID and WayID.
func (a *Skewed) Line(slot int) tagging.Line {
	line := a.store.Line(slot)

	pos := a.where[slot]
	line.WayID = pos / a.rows
	line.SetID = pos % a.rows

	return line
}

// SetSize returns the total size of the lines in one row of every way.
func (a *Skewed) SetSize(row int) int {
	total := 0
	for w := 0; w < a.ways; w++ {
		total += a.store.Size(a.positions[w*a.rows+row])
	}

	return total
}

// SetLines returns the lines in one row of every way, in way order.
func (a *Skewed) SetLines(row int) []tagging.Line {
	lines := make([]tagging.Line, 0, a.ways)
	for w := 0; w < a.ways; w++ {
		lines = append(lines, a.Line(a.positions[w*a.rows+row]))
	}

	return lines
}

// SetBudget returns the uncompressed capacity of a row across the ways.
func (a *Skewed) SetBudget() int {
	return a.ways * a.store.UnitsPerLine()
}

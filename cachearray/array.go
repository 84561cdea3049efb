// Package cachearray provides the storage backends of a cache bank. A backend
// decides which lines leave a set so that another line can enter or grow.
package cachearray

import (
	"github.com/sarchlab/bdicache/replacement"
	"github.com/sarchlab/bdicache/tagging"
)

// A Victim is a line chosen for eviction. Data is a copy that the caller can
// write back.
type Victim struct {
	Slot    int
	Address uint64
	Valid   bool
	Size    int
	Data    []byte
}

// A Reservation tells the caller where to commit an incoming line and which
// lines must be evicted first. Slot is the slot of the last victim, or a free
// slot when nothing needs to be evicted.
type Reservation struct {
	Slot    int
	Victims []Victim
}

// Array is the capability set shared by all storage backends.
type Array interface {
	// Lookup finds the slot holding addr. On a hit, touch tells whether the
	// replacement policy should see the access.
	Lookup(addr uint64, touch bool) (slot int, found bool)

	// Reserve picks the victims that make room for a line of the given size
	// at addr.
	Reserve(addr uint64, size int) Reservation

	// Commit places a line in a reserved slot.
	Commit(slot int, addr uint64, data []byte, size int)

	// ReserveForUpdate picks the other lines of the slot's set that must
	// leave for the slot's line to grow to size.
	ReserveForUpdate(slot int, size int) []Victim

	// UpdateInPlace writes data at offset into the line and records its new
	// size.
	UpdateInPlace(slot int, data []byte, offset int, size int)

	// ClearSize stops the slot from counting against its set's budget.
	ClearSize(slot int)

	// Invalidate drops the line in the slot.
	Invalidate(slot int)

	// Line returns a copy of the slot.
	Line(slot int) tagging.Line

	// SetOf returns the set addr maps to.
	SetOf(addr uint64) int

	// NumSets returns the number of sets.
	NumSets() int

	// SetSize returns the total size of a set's lines.
	SetSize(setID int) int

	// SetLines returns a copy of every slot of a set.
	SetLines(setID int) []tagging.Line

	// Associativity returns the number of slots per set.
	Associativity() int

	// SetBudget returns the maximum total size of a set's lines.
	SetBudget() int
}

// base holds what the backends have in common.
type base struct {
	store  *tagging.Store
	policy replacement.Policy
}

func (a *base) Lookup(addr uint64, touch bool) (int, bool) {
	slot, found := a.store.Lookup(addr)
	if found && touch {
		a.policy.Touched(slot)
	}

	return slot, found
}

func (a *base) Commit(slot int, addr uint64, data []byte, size int) {
	a.policy.Replaced(slot)
	a.store.Commit(slot, addr, data, size)
	a.policy.Touched(slot)
}

func (a *base) UpdateInPlace(slot int, data []byte, offset int, size int) {
	a.store.UpdateInPlace(slot, data, offset, size)
}

func (a *base) ClearSize(slot int) {
	a.store.ClearSize(slot)
}

func (a *base) Invalidate(slot int) {
	a.store.Invalidate(slot)
}

func (a *base) Line(slot int) tagging.Line {
	return a.store.Line(slot)
}

func (a *base) SetOf(addr uint64) int {
	return a.store.SetOf(addr)
}

func (a *base) NumSets() int {
	return a.store.NumSets()
}

func (a *base) SetSize(setID int) int {
	return a.store.SetSize(setID)
}

func (a *base) SetLines(setID int) []tagging.Line {
	begin, end := a.store.Range(setID)

	lines := make([]tagging.Line, 0, end-begin)
	for slot := begin; slot < end; slot++ {
		lines = append(lines, a.store.Line(slot))
	}

	return lines
}

func (a *base) Associativity() int {
	return a.store.Associativity()
}

func (a *base) candidates(setID int) replacement.Candidates {
	begin, end := a.store.Range(setID)
	return replacement.Candidates{Begin: begin, End: end}
}

func (a *base) victim(slot int) Victim {
	line := a.store.Line(slot)

	return Victim{
		Slot:    slot,
		Address: line.Address,
		Valid:   line.Valid,
		Size:    line.Size,
		Data:    line.Data,
	}
}

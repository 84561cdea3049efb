package cachearray

import (
	"fmt"

	"github.com/sarchlab/bdicache/replacement"
	"github.com/sarchlab/bdicache/tagging"
)

// Compressed is an array whose sets share a data store half the size of the
// uncompressed footprint. A set may need to give up several lines to admit or
// grow one line.
type Compressed struct {
	base

	// AlwaysEvictPrimary makes every insertion evict the policy's worst
	// slot, even when the set already has room for the incoming line.
	AlwaysEvictPrimary bool
}

// NewCompressed creates a compressed array on top of the store.
func NewCompressed(
	store *tagging.Store,
	policy replacement.Policy,
	alwaysEvictPrimary bool,
) *Compressed {
	return &Compressed{
		base:               base{store: store, policy: policy},
		AlwaysEvictPrimary: alwaysEvictPrimary,
	}
}

// SetBudget returns the compressed capacity of a set.
func (a *Compressed) SetBudget() int {
	return a.store.SetBudget()
}

// Reserve evicts the worst line of addr's set, then keeps evicting the next
// worst lines until the incoming line fits in the budget. Beyond the first
// victim, slots that take no space are passed over.
func (a *Compressed) Reserve(addr uint64, size int) Reservation {
	a.mustFitInBudget(size)

	setID := a.store.SetOf(addr)
	cands := a.candidates(setID)
	budget := a.store.SetBudget()
	current := a.store.SetSize(setID)

	if !a.AlwaysEvictPrimary && current+size <= budget {
		if slot, ok := a.freeSlot(cands); ok {
			return Reservation{Slot: slot}
		}
	}

	primary := a.policy.RankWorst(cands)
	victims := []Victim{a.victim(primary)}
	current -= a.store.Size(primary)

	for rank := 1; current+size > budget; rank++ {
		a.mustHaveCandidate(cands, rank, addr)

		slot := a.policy.RankNthWorst(cands, rank)
		if a.store.Size(slot) == 0 {
			continue
		}

		victims = append(victims, a.victim(slot))
		current -= a.store.Size(slot)
	}

	return Reservation{
		Slot:    victims[len(victims)-1].Slot,
		Victims: victims,
	}
}

// ReserveForUpdate returns the lines that must leave the slot's set for the
// slot's line to grow to size. The slot itself and slots that take no space
// are passed over.
func (a *Compressed) ReserveForUpdate(slot int, size int) []Victim {
	a.mustFitInBudget(size)

	budget := a.store.SetBudget()
	current := a.store.SetSizeWith(slot, size)
	if current <= budget {
		return nil
	}

	setID := a.store.SetOfSlot(slot)
	cands := a.candidates(setID)
	addr := a.store.Line(slot).Address

	var victims []Victim
	for rank := 0; current > budget; rank++ {
		a.mustHaveCandidate(cands, rank, addr)

		var candidate int
		if rank == 0 {
			candidate = a.policy.RankWorst(cands)
		} else {
			candidate = a.policy.RankNthWorst(cands, rank)
		}

		if candidate == slot || a.store.Size(candidate) == 0 {
			continue
		}

		victims = append(victims, a.victim(candidate))
		current -= a.store.Size(candidate)
	}

	return victims
}

// freeSlot returns the worst-ranked slot that holds no line.
func (a *Compressed) freeSlot(cands replacement.Candidates) (int, bool) {
	for rank := 0; rank < cands.Len(); rank++ {
		slot := a.policy.RankNthWorst(cands, rank)
		if !a.store.IsValid(slot) {
			return slot, true
		}
	}

	return -1, false
}

func (a *Compressed) mustFitInBudget(size int) {
	if size > a.store.SetBudget() {
		panic(fmt.Sprintf("a line of %d units can never fit in a set "+
			"budget of %d units", size, a.store.SetBudget()))
	}
}

func (a *Compressed) mustHaveCandidate(
	cands replacement.Candidates,
	rank int,
	addr uint64,
) {
	if rank >= cands.Len() {
		panic(fmt.Sprintf("set of 0x%x has no candidate left at rank %d "+
			"(slots [%d, %d), %d units used of %d)",
			addr, rank, cands.Begin, cands.End,
			a.store.SetSize(a.store.SetOfSlot(cands.Begin)),
			a.store.SetBudget()))
	}
}

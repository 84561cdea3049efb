package cachearray

import (
	"github.com/sarchlab/bdicache/replacement"
	"github.com/sarchlab/bdicache/tagging"
)

// SetAssoc is a conventional set-associative array. Every insertion evicts
// exactly one line and sizes never constrain a set.
type SetAssoc struct {
	base
}

// NewSetAssoc creates a set-associative array on top of the store.
func NewSetAssoc(
	store *tagging.Store,
	policy replacement.Policy,
) *SetAssoc {
	return &SetAssoc{base: base{store: store, policy: policy}}
}

// Reserve returns the policy's worst slot as the only victim.
func (a *SetAssoc) Reserve(addr uint64, _ int) Reservation {
	slot := a.policy.RankWorst(a.candidates(a.store.SetOf(addr)))

	return Reservation{
		Slot:    slot,
		Victims: []Victim{a.victim(slot)},
	}
}

// ReserveForUpdate never evicts.
func (a *SetAssoc) ReserveForUpdate(int, int) []Victim {
	return nil
}

// SetBudget returns the uncompressed capacity of a set.
func (a *SetAssoc) SetBudget() int {
	return a.store.Associativity() * a.store.UnitsPerLine()
}

// Package replacement decides which lines of a set are the least valuable.
package replacement

import "fmt"

// Candidates are the slots a ranking considers: the contiguous range
// [Begin, End), or exactly Slots when Slots is not nil. A slot listed twice in
// Slots is ranked once.
type Candidates struct {
	Begin int
	End   int
	Slots []int
}

// Len returns the number of candidate entries.
func (c Candidates) Len() int {
	if c.Slots != nil {
		return len(c.Slots)
	}

	return c.End - c.Begin
}

// Each calls fn on every candidate slot in order.
func (c Candidates) Each(fn func(slot int)) {
	if c.Slots != nil {
		for _, slot := range c.Slots {
			fn(slot)
		}

		return
	}

	for slot := c.Begin; slot < c.End; slot++ {
		fn(slot)
	}
}

func (c Candidates) String() string {
	if c.Slots != nil {
		return fmt.Sprintf("slots %v", c.Slots)
	}

	return fmt.Sprintf("slots [%d, %d)", c.Begin, c.End)
}

// Validity tells a policy whether a slot currently holds a line.
type Validity interface {
	IsValid(slot int) bool
}

// Sharers tells a policy how many private caches share the line in a slot.
type Sharers interface {
	NumSharers(slot int) int
}

// A Policy ranks slots from the least valuable to the most valuable. For the
// same state and candidates, the order must be strict and deterministic.
type Policy interface {
	// RankWorst returns the least valuable slot among the candidates.
	RankWorst(cands Candidates) int

	// RankNthWorst returns the slot ranked n-th from the worst, where n == 0
	// is the slot RankWorst returns.
	RankNthWorst(cands Candidates, n int) int

	// Replaced is called when a new line is about to be placed in the slot.
	Replaced(slot int)

	// Touched is called when the line in the slot is accessed.
	Touched(slot int)
}

// New creates the policy registered under name for a cache of numLines slots.
func New(name string, numLines int, validity Validity) Policy {
	switch name {
	case "lru", "":
		return NewLRU(numLines, validity)
	case "srrip":
		return NewSRRIP(numLines, validity)
	default:
		panic("unknown replacement policy: " + name)
	}
}

func mustHaveNthCandidate(cands Candidates, n int) {
	if n < 0 || n >= cands.Len() {
		panic(fmt.Sprintf("cannot rank candidate %d of %s", n, cands))
	}
}

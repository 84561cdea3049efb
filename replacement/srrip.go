package replacement

const (
	rrpvMax    = uint8(3)
	insertRRPV = uint8(2)
	hitRRPV    = uint8(0)
)

// SRRIP predicts re-reference intervals with a 2-bit counter per slot. Lines
// are inserted at a long interval and promoted to the shortest on a hit.
type SRRIP struct {
	rrpv     []uint8
	validity Validity
}

// NewSRRIP creates an SRRIP policy for numLines slots.
func NewSRRIP(numLines int, validity Validity) *SRRIP {
	p := &SRRIP{
		rrpv:     make([]uint8, numLines),
		validity: validity,
	}

	for i := range p.rrpv {
		p.rrpv[i] = rrpvMax
	}

	return p
}

// Replaced gives the incoming line the insertion interval.
func (p *SRRIP) Replaced(slot int) {
	p.rrpv[slot] = insertRRPV
}

// Touched predicts a near re-reference for the slot.
func (p *SRRIP) Touched(slot int) {
	p.rrpv[slot] = hitRRPV
}

// RankWorst ages the candidates until one of them is predicted to be
// re-referenced in the distant future, and returns the worst slot.
func (p *SRRIP) RankWorst(cands Candidates) int {
	mustHaveNthCandidate(cands, 0)
	p.age(cands)

	return p.RankNthWorst(cands, 0)
}

// RankNthWorst returns the n-th worst slot without aging.
func (p *SRRIP) RankNthWorst(cands Candidates, n int) int {
	mustHaveNthCandidate(cands, n)

	q := BuildRankedQueue(cands, p.score)
	for i := 0; i < n; i++ {
		q.Pop()
	}

	slot, _ := q.Peek()

	return slot
}

func (p *SRRIP) age(cands Candidates) {
	oldest := uint8(0)
	allValid := true

	cands.Each(func(slot int) {
		if !p.validity.IsValid(slot) {
			allValid = false
		}

		oldest = max(oldest, p.rrpv[slot])
	})

	if !allValid || oldest == rrpvMax {
		return
	}

	step := rrpvMax - oldest
	aged := make(map[int]bool, cands.Len())

	cands.Each(func(slot int) {
		if !aged[slot] {
			p.rrpv[slot] += step
			aged[slot] = true
		}
	})
}

// score is lower for worse slots: invalid slots first, then the longest
// predicted interval.
func (p *SRRIP) score(slot int) uint64 {
	if !p.validity.IsValid(slot) {
		return 0
	}

	return uint64(rrpvMax-p.rrpv[slot]) + 1
}

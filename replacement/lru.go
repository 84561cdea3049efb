package replacement

// LRU evicts the least recently used line. Invalid slots always rank before
// valid ones. With sharers set, a line kept by more private caches is
// considered more recently used, by one current timestamp per sharer.
type LRU struct {
	timestamp uint64
	stamps    []uint64
	validity  Validity
	sharers   Sharers
}

// NewLRU creates an LRU policy for numLines slots.
func NewLRU(numLines int, validity Validity) *LRU {
	return &LRU{
		timestamp: 1,
		stamps:    make([]uint64, numLines),
		validity:  validity,
	}
}

// WithSharers makes the ranking favor lines with sharers.
func (p *LRU) WithSharers(sharers Sharers) *LRU {
	p.sharers = sharers
	return p
}

// Replaced forgets the recency of the slot.
func (p *LRU) Replaced(slot int) {
	p.stamps[slot] = 0
}

// Touched marks the slot as the most recently used.
func (p *LRU) Touched(slot int) {
	p.stamps[slot] = p.timestamp
	p.timestamp++
}

// RankWorst returns the least recently used slot.
func (p *LRU) RankWorst(cands Candidates) int {
	return p.RankNthWorst(cands, 0)
}

// RankNthWorst returns the slot ranked n-th from the least recently used.
func (p *LRU) RankNthWorst(cands Candidates, n int) int {
	mustHaveNthCandidate(cands, n)

	q := BuildRankedQueue(cands, p.score)
	for i := 0; i < n; i++ {
		q.Pop()
	}

	slot, _ := q.Peek()

	return slot
}

func (p *LRU) score(slot int) uint64 {
	score := uint64(0)
	if p.sharers != nil {
		score = uint64(p.sharers.NumSharers(slot)) * p.timestamp
	}

	if p.validity.IsValid(slot) {
		score += p.stamps[slot]
	}

	return score
}

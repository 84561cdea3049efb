package replacement

import "github.com/google/btree"

type rankedSlot struct {
	score uint64
	slot  int
}

func lessRankedSlot(a, b rankedSlot) bool {
	if a.score != b.score {
		return a.score < b.score
	}

	return a.slot < b.slot
}

// A RankedQueue orders slots by ascending score, breaking ties by the lower
// slot index. The smallest score is the least valuable slot.
type RankedQueue struct {
	tree *btree.BTreeG[rankedSlot]
}

// NewRankedQueue creates an empty queue.
func NewRankedQueue() *RankedQueue {
	return &RankedQueue{
		tree: btree.NewG[rankedSlot](8, lessRankedSlot),
	}
}

// BuildRankedQueue scores every candidate and returns the queue.
func BuildRankedQueue(cands Candidates, score func(slot int) uint64) *RankedQueue {
	q := NewRankedQueue()
	cands.Each(func(slot int) {
		q.Push(slot, score(slot))
	})

	return q
}

// Push adds a slot with the given score.
func (q *RankedQueue) Push(slot int, score uint64) {
	q.tree.ReplaceOrInsert(rankedSlot{score: score, slot: slot})
}

// Pop removes and returns the least valuable slot.
func (q *RankedQueue) Pop() (int, bool) {
	item, ok := q.tree.DeleteMin()
	return item.slot, ok
}

// Peek returns the least valuable slot without removing it.
func (q *RankedQueue) Peek() (int, bool) {
	item, ok := q.tree.Min()
	return item.slot, ok
}

// Len returns the number of queued slots.
func (q *RankedQueue) Len() int {
	return q.tree.Len()
}

// Slots returns all queued slots, worst first.
func (q *RankedQueue) Slots() []int {
	slots := make([]int, 0, q.tree.Len())
	q.tree.Ascend(func(item rankedSlot) bool {
		slots = append(slots, item.slot)
		return true
	})

	return slots
}

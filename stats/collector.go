// Package stats counts what a cache bank does. A collector is handed to the
// bank when it is built, so separate banks never share counters.
package stats

// A Collector receives the events of a cache bank.
type Collector interface {
	// RecordAccess counts a lookup.
	RecordAccess(hit bool)

	// RecordFill counts a line placed in the cache. Sizes are in bytes.
	RecordFill(size, lineSize int)

	// RecordEviction counts a slot chosen as a victim. Empty slots are
	// victims too, with valid set to false.
	RecordEviction(valid bool)

	// RecordUpdate counts a resident line rewritten in place.
	RecordUpdate(size, lineSize int)

	// RecordInvalidation counts a line dropped or downgraded by the
	// coherence controller.
	RecordInvalidation()
}

// Snapshot is a copy of all counters.
type Snapshot struct {
	Accesses        uint64
	Hits            uint64
	Misses          uint64
	Fills           uint64
	Evictions       uint64
	EmptyEvictions  uint64
	CompressedLines uint64
	FullLines       uint64
	Updates         uint64
	Invalidations   uint64
	FilledBytes     uint64
	CompressedBytes uint64
}

// CompressionRatio returns the uncompressed size of all filled lines divided
// by their compressed size.
func (s Snapshot) CompressionRatio() float64 {
	if s.CompressedBytes == 0 {
		return 0
	}

	return float64(s.FilledBytes) / float64(s.CompressedBytes)
}

// Counters is a Collector that keeps plain counters. It is owned by a single
// bank and is not safe for concurrent use.
type Counters struct {
	s Snapshot
}

// NewCounters creates a zeroed set of counters.
func NewCounters() *Counters {
	return &Counters{}
}

// RecordAccess counts a hit or a miss.
func (c *Counters) RecordAccess(hit bool) {
	c.s.Accesses++
	if hit {
		c.s.Hits++
	} else {
		c.s.Misses++
	}
}

// RecordFill counts a fill and its compressed and uncompressed bytes.
func (c *Counters) RecordFill(size, lineSize int) {
	c.s.Fills++
	c.s.FilledBytes += uint64(lineSize)
	c.s.CompressedBytes += uint64(size)
	c.countLine(size, lineSize)
}

// RecordEviction counts a victim, separating empty slots from lines.
func (c *Counters) RecordEviction(valid bool) {
	if valid {
		c.s.Evictions++
	} else {
		c.s.EmptyEvictions++
	}
}

// RecordUpdate counts an in-place update and the line's new size class.
func (c *Counters) RecordUpdate(size, lineSize int) {
	c.s.Updates++
	c.countLine(size, lineSize)
}

// RecordInvalidation counts an invalidation or a downgrade.
func (c *Counters) RecordInvalidation() {
	c.s.Invalidations++
}

func (c *Counters) countLine(size, lineSize int) {
	if size < lineSize {
		c.s.CompressedLines++
	} else {
		c.s.FullLines++
	}
}

// Evictions returns the number of valid lines evicted.
func (c *Counters) Evictions() uint64 { return c.s.Evictions }

// CompressedLines returns the number of fills and updates that produced a
// line smaller than a full line.
func (c *Counters) CompressedLines() uint64 { return c.s.CompressedLines }

// FullLines returns the number of fills and updates that did not compress.
func (c *Counters) FullLines() uint64 { return c.s.FullLines }

// Hits returns the number of lookups that found the line.
func (c *Counters) Hits() uint64 { return c.s.Hits }

// Misses returns the number of lookups that did not find the line.
func (c *Counters) Misses() uint64 { return c.s.Misses }

// Snapshot returns a copy of all counters.
func (c *Counters) Snapshot() Snapshot {
	return c.s
}

// Reset zeroes all counters.
func (c *Counters) Reset() {
	c.s = Snapshot{}
}

// Package tagging keeps the tags, the raw data, and the compressed size of
// every line of a cache.
package tagging

import (
	"fmt"

	"github.com/sarchlab/bdicache/hashing"
)

// A Line is a copy of the information kept for one slot.
type Line struct {
	Slot    int
	SetID   int
	WayID   int
	Address uint64
	Valid   bool
	Size    int
	Data    []byte
}

// Store owns the tag array, the data array, and the size array of a cache.
// Sizes are in units; a unit is one segment of the line.
type Store struct {
	numLines     int
	numSets      int
	assoc        int
	lineSize     int
	unitsPerLine int
	setMask      uint64
	hf           hashing.Family

	tags  []uint64
	valid []bool
	sizes []int
	data  [][]byte
}

// NewStore creates a store of numLines slots grouped into sets of assoc
// slots. It panics if the geometry is not supported.
func NewStore(
	numLines, lineSize, assoc, unitsPerLine int,
	hf hashing.Family,
) *Store {
	mustBeValidGeometry(numLines, lineSize, assoc, unitsPerLine)

	s := &Store{
		numLines:     numLines,
		numSets:      numLines / assoc,
		assoc:        assoc,
		lineSize:     lineSize,
		unitsPerLine: unitsPerLine,
		setMask:      uint64(numLines/assoc - 1),
		hf:           hf,
	}

	s.Reset()

	return s
}

func mustBeValidGeometry(numLines, lineSize, assoc, unitsPerLine int) {
	if numLines <= 0 || lineSize <= 0 || assoc <= 0 || unitsPerLine <= 0 {
		panic(fmt.Sprintf(
			"invalid cache geometry: %d lines, %d bytes per line, "+
				"%d ways, %d units per line",
			numLines, lineSize, assoc, unitsPerLine))
	}

	if assoc >= numLines {
		panic(fmt.Sprintf("associativity %d must be smaller than the "+
			"number of lines %d", assoc, numLines))
	}

	if numLines%assoc != 0 {
		panic(fmt.Sprintf("%d lines cannot be split into sets of %d",
			numLines, assoc))
	}

	if !isPow2(numLines / assoc) {
		panic(fmt.Sprintf("must have a power of 2 # sets, but you specified %d",
			numLines/assoc))
	}

	if !isPow2(lineSize) {
		panic(fmt.Sprintf("line size %d is not a power of 2", lineSize))
	}
}

func isPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Reset empties every slot.
func (s *Store) Reset() {
	s.tags = make([]uint64, s.numLines)
	s.valid = make([]bool, s.numLines)
	s.sizes = make([]int, s.numLines)
	s.data = make([][]byte, s.numLines)

	for i := range s.data {
		s.data[i] = make([]byte, s.lineSize)
	}
}

// NumLines returns the total number of slots.
func (s *Store) NumLines() int {
	return s.numLines
}

// NumSets returns the number of sets.
func (s *Store) NumSets() int {
	return s.numSets
}

// Associativity returns the number of slots per set.
func (s *Store) Associativity() int {
	return s.assoc
}

// LineSize returns the number of bytes per slot.
func (s *Store) LineSize() int {
	return s.lineSize
}

// UnitsPerLine returns the size of an uncompressed line in units.
func (s *Store) UnitsPerLine() int {
	return s.unitsPerLine
}

// SetBudget returns the maximum total size, in units, of the lines of a set.
// It models a data store half as large as the uncompressed footprint.
func (s *Store) SetBudget() int {
	return s.assoc / 2 * s.unitsPerLine
}

// SetOf returns the set an address maps to.
func (s *Store) SetOf(addr uint64) int {
	return int(s.hf.Hash(0, addr) & s.setMask)
}

// Range returns the first slot of the set and one past its last slot.
func (s *Store) Range(setID int) (begin, end int) {
	begin = setID * s.assoc
	return begin, begin + s.assoc
}

// SetOfSlot returns the set a slot belongs to.
func (s *Store) SetOfSlot(slot int) int {
	return slot / s.assoc
}

// Lookup returns the slot that holds the address.
func (s *Store) Lookup(addr uint64) (slot int, found bool) {
	begin, end := s.Range(s.SetOf(addr))
	for id := begin; id < end; id++ {
		if s.Holds(id, addr) {
			return id, true
		}
	}

	return -1, false
}

// Holds returns true if the slot holds a valid line for the address.
func (s *Store) Holds(slot int, addr uint64) bool {
	return s.valid[slot] && s.tags[slot] == addr
}

// IsValid returns true if the slot holds a line.
func (s *Store) IsValid(slot int) bool {
	return s.valid[slot]
}

// Size returns the size of the line in the slot, in units.
func (s *Store) Size(slot int) int {
	return s.sizes[slot]
}

// Line returns a copy of everything stored for the slot.
func (s *Store) Line(slot int) Line {
	data := make([]byte, s.lineSize)
	copy(data, s.data[slot])

	return Line{
		Slot:    slot,
		SetID:   slot / s.assoc,
		WayID:   slot % s.assoc,
		Address: s.tags[slot],
		Valid:   s.valid[slot],
		Size:    s.sizes[slot],
		Data:    data,
	}
}

// Commit places a line in the slot. Data shorter than a line is zero-padded.
func (s *Store) Commit(slot int, addr uint64, data []byte, size int) {
	s.mustBeStorableSize(slot, size)

	s.tags[slot] = addr
	s.valid[slot] = true
	s.sizes[slot] = size

	clear(s.data[slot])
	copy(s.data[slot], data)
}

// UpdateInPlace writes data at offset into the line of the slot and records
// its new size. Bytes that would cross the end of the line are dropped. The
// tag is not changed.
func (s *Store) UpdateInPlace(slot int, data []byte, offset int, size int) {
	s.mustBeStorableSize(slot, size)

	if offset < 0 || offset >= s.lineSize {
		panic(fmt.Sprintf("offset %d is outside a %d-byte line",
			offset, s.lineSize))
	}

	n := min(s.lineSize-offset, len(data))
	copy(s.data[slot][offset:offset+n], data[:n])
	s.sizes[slot] = size
}

// ClearSize stops the slot from counting against its set's budget. The tag is
// left as is.
func (s *Store) ClearSize(slot int) {
	s.sizes[slot] = 0
}

// Invalidate drops the line in the slot.
func (s *Store) Invalidate(slot int) {
	s.valid[slot] = false
	s.sizes[slot] = 0
}

// SetSize returns the total size of the lines of a set, in units.
func (s *Store) SetSize(setID int) int {
	total := 0

	begin, end := s.Range(setID)
	for id := begin; id < end; id++ {
		total += s.sizes[id]
	}

	return total
}

// SetSizeWith returns the total size of a set if the slot had the given size.
func (s *Store) SetSizeWith(slot int, size int) int {
	setID := s.SetOfSlot(slot)
	return s.SetSize(setID) - s.sizes[slot] + size
}

func (s *Store) mustBeStorableSize(slot int, size int) {
	if size <= 0 || size > s.unitsPerLine {
		panic(fmt.Sprintf("slot %d cannot hold a line of %d units "+
			"(a full line is %d units)", slot, size, s.unitsPerLine))
	}
}

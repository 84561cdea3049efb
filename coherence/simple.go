// Package coherence provides a minimal write-back controller that lets a
// bank run on its own, without the rest of a memory hierarchy.
package coherence

import (
	"fmt"

	"github.com/sarchlab/bdicache/cache"
	"github.com/sarchlab/bdicache/cachearray"
	"github.com/sarchlab/bdicache/tagging"
)

type flight struct {
	missed bool
}

// Simple is a write-back controller. It always allocates on a miss, writes
// every valid line that leaves the bank to its storage, and charges a fixed
// latency per access.
//
// It also counts the copies handed out for every slot: each GETS adds one, a
// GETX leaves a single owner, and an invalidation takes them all back. A
// downgrade keeps one reader.
type Simple struct {
	HitLatency  uint64
	MissLatency uint64

	lineSize uint64
	storage  *Storage
	inFlight map[uint64]*flight
	sharers  map[int]int

	writebacks uint64
	fetches    uint64
}

// NewSimple creates a controller backed by storage. Line addresses are
// turned into byte addresses by multiplying with lineSize.
func NewSimple(storage *Storage, lineSize int) *Simple {
	return &Simple{
		HitLatency:  1,
		MissLatency: 100,
		lineSize:    uint64(lineSize),
		storage:     storage,
		inFlight:    make(map[uint64]*flight),
		sharers:     make(map[int]int),
	}
}

// Storage returns the memory behind the controller.
func (c *Simple) Storage() *Storage {
	return c.storage
}

// Writebacks returns the number of lines written to the storage.
func (c *Simple) Writebacks() uint64 {
	return c.writebacks
}

// Fetches returns the number of misses that brought a line into the bank.
func (c *Simple) Fetches() uint64 {
	return c.fetches
}

// NumSharers returns the number of copies handed out for the line in the
// slot.
func (c *Simple) NumSharers(slot int) int {
	return c.sharers[slot]
}

// Fetch returns the content of a line as the storage has it.
func (c *Simple) Fetch(lineAddr uint64) []byte {
	data, err := c.storage.Read(lineAddr*c.lineSize, c.lineSize)
	if err != nil {
		panic(err)
	}

	return data
}

func (c *Simple) writeBack(lineAddr uint64, data []byte) {
	err := c.storage.Write(lineAddr*c.lineSize, data)
	if err != nil {
		panic(err)
	}

	c.writebacks++
}

// StartAccess marks the address busy. An address cannot have two accesses in
// flight.
func (c *Simple) StartAccess(req cache.Request) bool {
	if _, busy := c.inFlight[req.Address]; busy {
		panic(fmt.Sprintf("access %s to 0x%x started while another access "+
			"to the same line is in flight", req.ID, req.Address))
	}

	c.inFlight[req.Address] = &flight{}

	return false
}

// EndAccess releases the address.
func (c *Simple) EndAccess(req cache.Request) {
	delete(c.inFlight, req.Address)
}

// ShouldAllocate always allocates.
func (c *Simple) ShouldAllocate(req cache.Request) bool {
	c.mustBeInFlight(req)
	c.inFlight[req.Address].missed = true
	c.fetches++

	return true
}

// ProcessEviction writes a valid victim back to the storage.
func (c *Simple) ProcessEviction(
	_ cache.Request,
	victim cachearray.Victim,
	_ uint64,
) {
	delete(c.sharers, victim.Slot)

	if !victim.Valid {
		return
	}

	c.writeBack(victim.Address, victim.Data)
}

// ProcessAccess returns when the response is ready.
func (c *Simple) ProcessAccess(
	req cache.Request,
	slot int,
	cycle uint64,
) uint64 {
	c.mustBeInFlight(req)

	switch {
	case slot < 0:
	case req.Type == cache.ReadShared:
		c.sharers[slot]++
	case req.Type == cache.ReadExclusive:
		c.sharers[slot] = 1
	}

	if c.inFlight[req.Address].missed {
		return cycle + c.MissLatency
	}

	return cycle + c.HitLatency
}

// ProcessInv writes the line back before the bank drops or downgrades it.
func (c *Simple) ProcessInv(
	_ cache.Request,
	inv cache.InvType,
	line tagging.Line,
	cycle uint64,
) uint64 {
	c.writeBack(line.Address, line.Data)

	if inv == cache.InvTypeDowngrade {
		c.sharers[line.Slot] = min(c.sharers[line.Slot], 1)
	} else {
		delete(c.sharers, line.Slot)
	}

	return cycle + c.HitLatency
}

func (c *Simple) mustBeInFlight(req cache.Request) {
	if _, ok := c.inFlight[req.Address]; !ok {
		panic(fmt.Sprintf("access %s to 0x%x was not started",
			req.ID, req.Address))
	}
}

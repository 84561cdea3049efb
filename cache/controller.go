package cache

import (
	"github.com/sarchlab/bdicache/cachearray"
	"github.com/sarchlab/bdicache/tagging"
)

// A Controller runs the coherence protocol around a bank. The bank decides
// where lines live; the controller decides what an access means.
type Controller interface {
	// StartAccess opens the bracket around one access. Returning true skips
	// the access entirely; EndAccess is still called.
	StartAccess(req Request) (skip bool)

	// EndAccess closes the bracket opened by StartAccess.
	EndAccess(req Request)

	// ShouldAllocate tells whether a miss should bring the line into the
	// bank.
	ShouldAllocate(req Request) bool

	// ProcessEviction handles a line that is about to leave the bank. It is
	// called before the bank clears the line, once per victim, in eviction
	// order. Victims of empty slots are reported too.
	ProcessEviction(req Request, victim cachearray.Victim, cycle uint64)

	// ProcessAccess handles the access after the bank has updated its
	// content. Slot is -1 when the line is not resident. It returns the cycle
	// at which the response is ready.
	ProcessAccess(req Request, slot int, cycle uint64) uint64

	// ProcessInv handles an invalidation of a resident line before the bank
	// drops or downgrades it. It returns the cycle at which the invalidation
	// completes.
	ProcessInv(req Request, inv InvType, line tagging.Line, cycle uint64) uint64
}

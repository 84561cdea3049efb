// Package hashing provides the hash families a cache uses to map a line
// address to a set.
package hashing

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"
)

// A Family produces one hash function per way. The result must be stable for
// a given (way, address) pair.
type Family interface {
	Hash(way uint32, addr uint64) uint64
}

// Identity returns the address unchanged, so consecutive lines land in
// consecutive sets.
type Identity struct{}

// Hash returns addr.
func (Identity) Hash(_ uint32, addr uint64) uint64 {
	return addr
}

// Murmur3 hashes the address with murmur3, using a different seed per way.
type Murmur3 struct {
	seed uint32
}

// NewMurmur3 creates a murmur3 family. Way w uses seed+w.
func NewMurmur3(seed uint32) Murmur3 {
	return Murmur3{seed: seed}
}

// Hash returns the 64-bit murmur3 hash of the little-endian address bytes.
func (h Murmur3) Hash(way uint32, addr uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], addr)

	return murmur3.Sum64WithSeed(buf[:], h.seed+way)
}

// New returns the family registered under name. It panics on unknown names.
func New(name string) Family {
	switch name {
	case "identity", "":
		return Identity{}
	case "murmur3":
		return NewMurmur3(0)
	default:
		panic("unknown hash family: " + name)
	}
}

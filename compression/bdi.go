// Package compression estimates how small a cache line can be encoded with
// the Base-Delta-Immediate family of schemes.
//
// The estimator never produces an encoded stream. It only reports the size
// the best scheme would need, which the cache uses for capacity accounting.
package compression

import (
	"encoding/binary"
	"fmt"
)

// An Estimator reports the encoded size of a cache line in bytes.
type Estimator interface {
	Estimate(line []byte) int
}

// Scheme names the encoding that produced an estimate.
type Scheme int

// The schemes considered by BDI. The Base<G>Delta<D> schemes use G-byte words
// and D-byte deltas.
const (
	SchemeUncompressed Scheme = iota
	SchemeZero
	SchemeRepeated8
	SchemeRepeated4
	SchemeRepeated2
	SchemeBase8Delta1
	SchemeBase8Delta2
	SchemeBase8Delta4
	SchemeBase4Delta1
	SchemeBase4Delta2
	SchemeBase2Delta1
	numSchemes
)

var schemeNames = [...]string{
	"Uncompressed",
	"Zero",
	"Repeated8",
	"Repeated4",
	"Repeated2",
	"Base8Delta1",
	"Base8Delta2",
	"Base8Delta4",
	"Base4Delta1",
	"Base4Delta2",
	"Base2Delta1",
}

func (s Scheme) String() string {
	if s < 0 || s >= numSchemes {
		return fmt.Sprintf("Scheme(%d)", int(s))
	}

	return schemeNames[s]
}

// AllSchemes lists every scheme, in the order they are tried.
func AllSchemes() []Scheme {
	schemes := make([]Scheme, 0, numSchemes)
	for s := SchemeUncompressed; s < numSchemes; s++ {
		schemes = append(schemes, s)
	}

	return schemes
}

// Result is the outcome of analyzing one line.
type Result struct {
	Scheme Scheme
	Size   int
}

// NumBases is the number of base slots a multi-base encoding stores.
const NumBases = 2

type deltaScheme struct {
	scheme     Scheme
	wordBytes  int
	deltaBytes int
}

var deltaSchemes = []deltaScheme{
	{SchemeBase8Delta1, 8, 1},
	{SchemeBase8Delta2, 8, 2},
	{SchemeBase8Delta4, 8, 4},
	{SchemeBase4Delta1, 4, 1},
	{SchemeBase4Delta2, 4, 2},
	{SchemeBase2Delta1, 2, 1},
}

// BDI is the Base-Delta-Immediate estimator. It holds no state.
type BDI struct{}

// Estimate returns the smallest size, in bytes, any BDI scheme needs for the
// line.
func (BDI) Estimate(line []byte) int {
	return Analyze(line).Size
}

// Estimate is a shorthand for BDI{}.Estimate.
func Estimate(line []byte) int {
	return Analyze(line).Size
}

// Analyze tries every scheme on the line and returns the smallest one. Ties
// keep the scheme tried first. The line length must be a positive multiple of
// 8.
func Analyze(line []byte) Result {
	mustBeWordAligned(line)

	best := Result{Scheme: SchemeUncompressed, Size: len(line)}
	consider := func(s Scheme, size int) {
		if size < best.Size {
			best = Result{Scheme: s, Size: size}
		}
	}

	words := map[int][]uint64{
		8: Words(line, 8),
		4: Words(line, 4),
		2: Words(line, 2),
	}

	if isZero(words[8]) {
		consider(SchemeZero, 1)
	}

	if isRepeated(words[8]) {
		consider(SchemeRepeated8, 8)
	}

	if isRepeated(words[4]) {
		consider(SchemeRepeated4, 4)
	}

	if isRepeated(words[2]) {
		consider(SchemeRepeated2, 2)
	}

	for _, d := range deltaSchemes {
		consider(d.scheme, MultiBaseSize(words[d.wordBytes], d.deltaBytes, d.wordBytes))
	}

	return best
}

// Words reinterprets the line as little-endian unsigned words of the given
// width in bytes (2, 4 or 8).
func Words(line []byte, wordBytes int) []uint64 {
	n := len(line) / wordBytes
	words := make([]uint64, n)

	for i := 0; i < n; i++ {
		chunk := line[i*wordBytes : (i+1)*wordBytes]

		switch wordBytes {
		case 2:
			words[i] = uint64(binary.LittleEndian.Uint16(chunk))
		case 4:
			words[i] = uint64(binary.LittleEndian.Uint32(chunk))
		case 8:
			words[i] = binary.LittleEndian.Uint64(chunk)
		default:
			panic(fmt.Sprintf("unsupported word width %d", wordBytes))
		}
	}

	return words
}

// MultiBaseSize returns the size of the two-base delta encoding of words, or
// the uncompressed size of words when some word is not covered by any base.
// It panics if deltaBytes is not 1, 2 or 4, or is not narrower than the word.
func MultiBaseSize(words []uint64, deltaBytes, wordBytes int) int {
	limit := deltaLimit(deltaBytes)
	if deltaBytes >= wordBytes {
		panic(fmt.Sprintf("delta width %d must be narrower than word width %d",
			deltaBytes, wordBytes))
	}

	bases := selectBases(words, limit)

	covered := 0
	for _, w := range words {
		if coveredByAny(w, bases, limit) {
			covered++
		}
	}

	if covered < len(words) {
		return len(words) * wordBytes
	}

	return deltaBytes*covered + wordBytes*NumBases +
		(len(words)-covered)*wordBytes
}

// selectBases starts with an implicit zero base and greedily adds words that
// no existing base covers, until NumBases bases are known.
func selectBases(words []uint64, limit uint64) []uint64 {
	bases := make([]uint64, 1, NumBases)

	for _, w := range words {
		if len(bases) >= NumBases {
			break
		}

		if !coveredByAny(w, bases, limit) {
			bases = append(bases, w)
		}
	}

	return bases
}

func coveredByAny(w uint64, bases []uint64, limit uint64) bool {
	for _, b := range bases {
		if distance(b, w) <= limit {
			return true
		}
	}

	return false
}

// distance is the magnitude of the two's complement difference a-b.
func distance(a, b uint64) uint64 {
	d := int64(a - b)
	sign := uint64(d >> 63)

	return (uint64(d) ^ sign) - sign
}

func deltaLimit(deltaBytes int) uint64 {
	switch deltaBytes {
	case 1:
		return 0xFF
	case 2:
		return 0xFFFF
	case 4:
		return 0xFFFFFFFF
	default:
		panic(fmt.Sprintf("unsupported delta width %d", deltaBytes))
	}
}

func isZero(words []uint64) bool {
	for _, w := range words {
		if w != 0 {
			return false
		}
	}

	return true
}

func isRepeated(words []uint64) bool {
	for _, w := range words {
		if w != words[0] {
			return false
		}
	}

	return true
}

func mustBeWordAligned(line []byte) {
	if len(line) == 0 || len(line)%8 != 0 {
		panic(fmt.Sprintf("line size %d is not a positive multiple of 8",
			len(line)))
	}
}

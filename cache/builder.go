package cache

import (
	"fmt"

	"github.com/sarchlab/bdicache/cachearray"
	"github.com/sarchlab/bdicache/compression"
	"github.com/sarchlab/bdicache/hashing"
	"github.com/sarchlab/bdicache/replacement"
	"github.com/sarchlab/bdicache/stats"
	"github.com/sarchlab/bdicache/tagging"
)

// Builder can build banks.
type Builder struct {
	numLines           int
	lineSize           int
	assoc              int
	segmentSize        int
	arrayType          string
	replaceStrategy    string
	hash               hashing.Family
	candidates         int
	sharers            replacement.Sharers
	alwaysEvictPrimary bool
	ctrl               Controller
	estimator          compression.Estimator
	collector          stats.Collector
}

// MakeBuilder creates a new builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		numLines:           1024,
		lineSize:           64,
		assoc:              8,
		segmentSize:        1,
		arrayType:          "bdi",
		replaceStrategy:    "lru",
		hash:               hashing.Identity{},
		alwaysEvictPrimary: true,
		estimator:          compression.BDI{},
	}
}

// WithNumLines sets the total number of lines.
func (b Builder) WithNumLines(numLines int) Builder {
	b.numLines = numLines
	return b
}

// WithLineSize sets the number of bytes per line.
func (b Builder) WithLineSize(lineSize int) Builder {
	b.lineSize = lineSize
	return b
}

// WithWayAssociativity sets the number of lines per set.
func (b Builder) WithWayAssociativity(assoc int) Builder {
	b.assoc = assoc
	return b
}

// WithSegmentSize sets the allocation granularity in bytes. It must divide the
// line size.
func (b Builder) WithSegmentSize(segmentSize int) Builder {
	b.segmentSize = segmentSize
	return b
}

// WithArrayType selects the storage backend, "bdi", "setassoc", or "zcache".
func (b Builder) WithArrayType(arrayType string) Builder {
	b.arrayType = arrayType
	return b
}

// WithReplaceStrategy selects the replacement policy, "lru" or "srrip".
func (b Builder) WithReplaceStrategy(replaceStrategy string) Builder {
	b.replaceStrategy = replaceStrategy
	return b
}

// WithHashFamily sets how addresses are mapped to sets.
func (b Builder) WithHashFamily(hf hashing.Family) Builder {
	b.hash = hf
	return b
}

// WithCandidates sets how many lines a zcache replacement considers. Zero
// means the square of the associativity.
func (b Builder) WithCandidates(candidates int) Builder {
	b.candidates = candidates
	return b
}

// WithSharers makes an LRU policy keep lines that more private caches share.
func (b Builder) WithSharers(sharers replacement.Sharers) Builder {
	b.sharers = sharers
	return b
}

// WithAlwaysEvictPrimary sets whether every insertion evicts the worst line
// of the set, even when the set has room.
func (b Builder) WithAlwaysEvictPrimary(alwaysEvictPrimary bool) Builder {
	b.alwaysEvictPrimary = alwaysEvictPrimary
	return b
}

// WithController sets the coherence controller. It is required.
func (b Builder) WithController(ctrl Controller) Builder {
	b.ctrl = ctrl
	return b
}

// WithEstimator sets how line sizes are estimated.
func (b Builder) WithEstimator(estimator compression.Estimator) Builder {
	b.estimator = estimator
	return b
}

// WithCollector sets where the bank reports its events. A new set of counters
// is used if not set.
func (b Builder) WithCollector(collector stats.Collector) Builder {
	b.collector = collector
	return b
}

// Build builds a bank.
func (b Builder) Build(name string) *Bank {
	b.mustHaveController()
	b.mustHaveValidSegments()

	collector := b.collector
	if collector == nil {
		collector = stats.NewCounters()
	}

	return &Bank{
		name:        name,
		lineSize:    b.lineSize,
		segmentSize: b.segmentSize,
		array:       b.createArray(),
		ctrl:        b.ctrl,
		estimator:   b.estimator,
		collector:   collector,
	}
}

func (b Builder) createArray() cachearray.Array {
	store := tagging.NewStore(
		b.numLines,
		b.lineSize,
		b.assoc,
		b.lineSize/b.segmentSize,
		b.hash,
	)
	policy := replacement.New(b.replaceStrategy, b.numLines, store)
	b.attachSharers(policy)

	switch b.arrayType {
	case "bdi":
		b.mustHaveRoomForCompression()
		return cachearray.NewCompressed(store, policy, b.alwaysEvictPrimary)
	case "setassoc":
		return cachearray.NewSetAssoc(store, policy)
	case "zcache":
		candidates := b.candidates
		if candidates == 0 {
			candidates = b.assoc * b.assoc
		}

		return cachearray.NewSkewed(store, policy, b.hash, candidates)
	default:
		panic("unknown array type: " + b.arrayType)
	}
}

func (b Builder) attachSharers(policy replacement.Policy) {
	if b.sharers == nil {
		return
	}

	lru, ok := policy.(*replacement.LRU)
	if !ok {
		panic(fmt.Sprintf("policy %s cannot favor shared lines",
			b.replaceStrategy))
	}

	lru.WithSharers(b.sharers)
}

func (b Builder) mustHaveController() {
	if b.ctrl == nil {
		panic("a bank needs a controller")
	}
}

func (b Builder) mustHaveValidSegments() {
	if b.lineSize < 8 || b.lineSize%8 != 0 {
		panic(fmt.Sprintf("line size %d is not a positive multiple of 8",
			b.lineSize))
	}

	if b.segmentSize <= 0 || b.lineSize%b.segmentSize != 0 {
		panic(fmt.Sprintf("segment size %d does not divide line size %d",
			b.segmentSize, b.lineSize))
	}
}

func (b Builder) mustHaveRoomForCompression() {
	if b.assoc < 2 {
		panic(fmt.Sprintf("a compressed array needs at least 2 ways, "+
			"but you specified %d", b.assoc))
	}
}

package coherence

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bdicache/cache"
	"github.com/sarchlab/bdicache/hashing"
)

func denseLine(seed byte) []byte {
	line := make([]byte, 64)
	for i := range line {
		line[i] = byte(i*37) ^ seed
	}

	return line
}

func pointerLine(base uint64) []byte {
	line := make([]byte, 64)
	for i := 0; i < 8; i++ {
		v := base + uint64(i)*8
		for b := 0; b < 8; b++ {
			line[i*8+b] = byte(v >> (8 * b))
		}
	}

	return line
}

var _ = Describe("Simple", func() {
	var (
		ctrl *Simple
		bank *cache.Bank
	)

	BeforeEach(func() {
		ctrl = NewSimple(NewStorage(1<<20), 64)
		bank = cache.MakeBuilder().
			WithNumLines(16).
			WithLineSize(64).
			WithWayAssociativity(4).
			WithSegmentSize(8).
			WithController(ctrl).
			Build("Bank")
	})

	read := func(addr uint64, data []byte, cycle uint64) uint64 {
		return bank.Access(cache.Request{
			ID: "r", Address: addr, Type: cache.ReadShared, Data: data,
			Cycle: cycle,
		})
	}

	It("should charge the miss latency, then the hit latency", func() {
		Expect(read(0x4, denseLine(0), 10)).To(Equal(uint64(110)))
		Expect(read(0x4, nil, 200)).To(Equal(uint64(201)))
		Expect(ctrl.Fetches()).To(Equal(uint64(1)))
	})

	It("should write evicted lines back", func() {
		read(0x0, denseLine(1), 0)
		read(0x4, denseLine(2), 0)
		Expect(ctrl.Writebacks()).To(BeZero())

		read(0x8, denseLine(3), 0)

		Expect(ctrl.Writebacks()).To(Equal(uint64(1)))
		Expect(ctrl.Fetch(0x0)).To(Equal(denseLine(1)))

		_, found := bank.Lookup(0x0)
		Expect(found).To(BeFalse())
	})

	It("should keep compressible lines together", func() {
		for i := uint64(0); i < 4; i++ {
			read(i*4, pointerLine(0x7fff00001000+i*0x100), 0)
		}

		Expect(ctrl.Writebacks()).To(BeZero())
		Expect(bank.SetSizeOf(0x0)).To(Equal(4 * 3))
	})

	It("should write the merged line back on invalidation", func() {
		read(0x4, make([]byte, 64), 0)

		data := make([]byte, 64)
		data[3] = 0x5a
		bank.Access(cache.Request{
			ID: "w", Address: 0x4, Type: cache.WriteExclusive,
			Data: data, Offset: 3, Size: 1,
		})

		done := bank.Invalidate(
			cache.Request{ID: "inv", Address: 0x4, Cycle: 7},
			cache.InvTypeInvalidate,
		)

		Expect(done).To(Equal(uint64(8)))
		Expect(ctrl.Fetch(0x4)[3]).To(Equal(byte(0x5a)))
		_, found := bank.Lookup(0x4)
		Expect(found).To(BeFalse())
	})

	It("should count the copies handed out", func() {
		read(0x4, denseLine(0), 0)
		read(0x4, nil, 0)

		line, _ := bank.Lookup(0x4)
		Expect(ctrl.NumSharers(line.Slot)).To(Equal(2))

		bank.Invalidate(cache.Request{ID: "d", Address: 0x4},
			cache.InvTypeDowngrade)
		Expect(ctrl.NumSharers(line.Slot)).To(Equal(1))

		bank.Invalidate(cache.Request{ID: "i", Address: 0x4},
			cache.InvTypeInvalidate)
		Expect(ctrl.NumSharers(line.Slot)).To(BeZero())
	})

	It("should keep shared lines when the policy asks for sharers", func() {
		bank = cache.MakeBuilder().
			WithNumLines(16).
			WithLineSize(64).
			WithWayAssociativity(4).
			WithArrayType("setassoc").
			WithSharers(ctrl).
			WithController(ctrl).
			Build("Bank")

		read(0x0, denseLine(0), 0)
		read(0x0, nil, 0)
		for _, addr := range []uint64{0x4, 0x8, 0xc, 0x10} {
			read(addr, denseLine(byte(addr)), 0)
		}

		_, found := bank.Lookup(0x0)
		Expect(found).To(BeTrue())

		_, found = bank.Lookup(0x4)
		Expect(found).To(BeFalse())
	})

	It("should panic if an address starts twice", func() {
		req := cache.Request{ID: "a", Address: 0x10}
		ctrl.StartAccess(req)

		Expect(func() { ctrl.StartAccess(req) }).
			To(PanicWith(ContainSubstring("0x10")))

		ctrl.EndAccess(req)
		Expect(ctrl.StartAccess(req)).To(BeFalse())
	})

	It("should panic on an access that was not started", func() {
		req := cache.Request{ID: "a", Address: 0x10}

		Expect(func() { ctrl.ProcessAccess(req, 0, 0) }).To(Panic())
	})

	It("should keep every set within its budget on a random trace", func() {
		ctrl = NewSimple(NewStorage(1<<24), 64)
		bank = cache.MakeBuilder().
			WithNumLines(64).
			WithLineSize(64).
			WithWayAssociativity(8).
			WithSegmentSize(4).
			WithHashFamily(hashing.NewMurmur3(3)).
			WithController(ctrl).
			Build("Bank")

		rng := rand.New(rand.NewSource(42))
		for i := 0; i < 5000; i++ {
			addr := uint64(rng.Intn(512))

			var data []byte
			switch rng.Intn(3) {
			case 0:
				data = make([]byte, 64)
			case 1:
				data = pointerLine(rng.Uint64())
			default:
				data = denseLine(byte(rng.Intn(256)))
			}

			typ := cache.AccessType(rng.Intn(4))
			bank.Access(cache.Request{
				ID: "rand", Address: addr, Type: typ, Data: data,
				Offset: rng.Intn(64), Size: 1 + rng.Intn(64),
			})

			Expect(bank.SetSizeOf(addr)).
				To(BeNumerically("<=", bank.Budget()))
		}
	})
})

package cache

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/bdicache/cachearray"
	"github.com/sarchlab/bdicache/hooking"
	"github.com/sarchlab/bdicache/stats"
	"github.com/sarchlab/bdicache/tagging"
)

type eventHook struct {
	positions []string
	events    []LineEvent
}

func (h *eventHook) Func(ctx hooking.HookCtx) {
	h.positions = append(h.positions, ctx.Pos.Name)
	h.events = append(h.events, ctx.Item.(LineEvent))
}

func incompressibleLine() []byte {
	line := make([]byte, 64)
	for i := range line {
		line[i] = byte(i * 37)
	}

	return line
}

var _ = Describe("Bank", func() {
	var (
		mockCtrl  *gomock.Controller
		ctrl      *MockController
		counters  *stats.Counters
		bank      *Bank
		zeroLine  []byte
		denseLine []byte
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		ctrl = NewMockController(mockCtrl)
		counters = stats.NewCounters()
		bank = MakeBuilder().
			WithNumLines(16).
			WithLineSize(64).
			WithWayAssociativity(4).
			WithSegmentSize(8).
			WithController(ctrl).
			WithCollector(counters).
			Build("Bank")
		zeroLine = make([]byte, 64)
		denseLine = incompressibleLine()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	fill := func(addr uint64, data []byte) {
		req := Request{ID: "fill", Address: addr, Type: ReadShared, Data: data}
		ctrl.EXPECT().StartAccess(req).Return(false)
		ctrl.EXPECT().ShouldAllocate(req).Return(true)
		ctrl.EXPECT().ProcessEviction(req, gomock.Any(), uint64(0)).AnyTimes()
		ctrl.EXPECT().ProcessAccess(req, gomock.Any(), uint64(0)).Return(uint64(0))
		ctrl.EXPECT().EndAccess(req)

		bank.Access(req)
	}

	It("should report the budget of a set in segments", func() {
		Expect(bank.Budget()).To(Equal(16))
		Expect(bank.Name()).To(Equal("Bank"))
		Expect(bank.LineSize()).To(Equal(64))
		Expect(bank.SegmentSize()).To(Equal(8))
	})

	It("should estimate lines", func() {
		Expect(bank.Estimate(zeroLine)).To(Equal(1))
		Expect(bank.Estimate(denseLine)).To(Equal(64))
	})

	It("should skip the access if the controller says so", func() {
		req := Request{ID: "1", Address: 0x4, Type: ReadShared, Cycle: 10}
		gomock.InOrder(
			ctrl.EXPECT().StartAccess(req).Return(true),
			ctrl.EXPECT().EndAccess(req),
		)

		Expect(bank.Access(req)).To(Equal(uint64(10)))
		Expect(counters.Snapshot().Accesses).To(BeZero())
	})

	It("should not allocate if the controller says so", func() {
		req := Request{ID: "1", Address: 0x4, Type: ReadShared, Cycle: 10}
		gomock.InOrder(
			ctrl.EXPECT().StartAccess(req).Return(false),
			ctrl.EXPECT().ShouldAllocate(req).Return(false),
			ctrl.EXPECT().ProcessAccess(req, -1, uint64(10)).Return(uint64(12)),
			ctrl.EXPECT().EndAccess(req),
		)

		Expect(bank.Access(req)).To(Equal(uint64(12)))
		_, found := bank.Lookup(0x4)
		Expect(found).To(BeFalse())
		Expect(counters.Misses()).To(Equal(uint64(1)))
	})

	It("should fill a missing line at its compressed size", func() {
		req := Request{
			ID: "1", Address: 0x4, Type: ReadShared, Data: zeroLine, Cycle: 10,
		}
		gomock.InOrder(
			ctrl.EXPECT().StartAccess(req).Return(false),
			ctrl.EXPECT().ShouldAllocate(req).Return(true),
			ctrl.EXPECT().ProcessEviction(req, gomock.Any(), uint64(10)).
				Do(func(_ Request, v cachearray.Victim, _ uint64) {
					Expect(v.Valid).To(BeFalse())
					Expect(v.Slot).To(Equal(0))
				}),
			ctrl.EXPECT().ProcessAccess(req, 0, uint64(10)).Return(uint64(15)),
			ctrl.EXPECT().EndAccess(req),
		)

		Expect(bank.Access(req)).To(Equal(uint64(15)))

		line, found := bank.Lookup(0x4)
		Expect(found).To(BeTrue())
		Expect(line.Size).To(Equal(1))
		Expect(bank.SetSizeOf(0x4)).To(Equal(1))
		Expect(counters.CompressedLines()).To(Equal(uint64(1)))
	})

	It("should evict lines in rank order until the new line fits", func() {
		fill(0x0, denseLine)
		fill(0x4, denseLine)
		Expect(bank.SetSizeOf(0x0)).To(Equal(16))

		hook := &eventHook{}
		bank.AcceptHook(hook)

		req := Request{
			ID: "3", Address: 0x8, Type: ReadShared, Data: denseLine, Cycle: 20,
		}

		var evicted []cachearray.Victim
		gomock.InOrder(
			ctrl.EXPECT().StartAccess(req).Return(false),
			ctrl.EXPECT().ShouldAllocate(req).Return(true),
			ctrl.EXPECT().ProcessEviction(req, gomock.Any(), uint64(20)).
				Times(2).
				Do(func(_ Request, v cachearray.Victim, _ uint64) {
					evicted = append(evicted, v)
				}),
			ctrl.EXPECT().ProcessAccess(req, 0, uint64(20)).Return(uint64(21)),
			ctrl.EXPECT().EndAccess(req),
		)

		bank.Access(req)

		Expect(evicted).To(HaveLen(2))
		Expect(evicted[0].Slot).To(Equal(2))
		Expect(evicted[0].Valid).To(BeFalse())
		Expect(evicted[1].Slot).To(Equal(0))
		Expect(evicted[1].Address).To(Equal(uint64(0x0)))
		Expect(evicted[1].Data).To(Equal(denseLine))

		_, found := bank.Lookup(0x0)
		Expect(found).To(BeFalse())
		line, found := bank.Lookup(0x8)
		Expect(found).To(BeTrue())
		Expect(line.Slot).To(Equal(0))
		Expect(bank.SetSizeOf(0x8)).To(Equal(16))

		Expect(hook.positions).To(Equal([]string{"Evict", "Evict", "Fill"}))
		Expect(hook.events[1].Address).To(Equal(uint64(0x0)))
		Expect(hook.events[2].SetSize).To(Equal(16))
		Expect(hook.events[2].SetBudget).To(Equal(16))
		Expect(counters.Evictions()).To(Equal(uint64(1)))
		Expect(counters.Snapshot().EmptyEvictions).To(Equal(uint64(3)))
	})

	It("should grow a line in place on a write hit", func() {
		fill(0x4, zeroLine)

		req := Request{
			ID: "2", Address: 0x4, Type: WriteExclusive,
			Data: denseLine, Offset: 0, Size: 64, Cycle: 30,
		}
		gomock.InOrder(
			ctrl.EXPECT().StartAccess(req).Return(false),
			ctrl.EXPECT().ProcessAccess(req, 0, uint64(30)).Return(uint64(31)),
			ctrl.EXPECT().EndAccess(req),
		)

		Expect(bank.Access(req)).To(Equal(uint64(31)))

		line, _ := bank.Lookup(0x4)
		Expect(line.Size).To(Equal(8))
		Expect(line.Data).To(Equal(denseLine))
		Expect(counters.Snapshot().Updates).To(Equal(uint64(1)))
		Expect(counters.Hits()).To(Equal(uint64(1)))
	})

	It("should merge only the written bytes", func() {
		fill(0x4, zeroLine)

		data := make([]byte, 64)
		data[8] = 0x11
		data[9] = 0x22
		req := Request{
			ID: "2", Address: 0x4, Type: WriteShared,
			Data: data, Offset: 8, Size: 1,
		}
		ctrl.EXPECT().StartAccess(req).Return(false)
		ctrl.EXPECT().ProcessAccess(req, 0, uint64(0)).Return(uint64(0))
		ctrl.EXPECT().EndAccess(req)

		bank.Access(req)

		line, _ := bank.Lookup(0x4)
		Expect(line.Data[8]).To(Equal(byte(0x11)))
		Expect(line.Data[9]).To(Equal(byte(0)))
	})

	It("should evict other lines when a write hit outgrows the set", func() {
		fill(0x0, denseLine)
		fill(0x4, zeroLine)
		fill(0x8, zeroLine)
		Expect(bank.SetSizeOf(0x0)).To(Equal(10))

		req := Request{
			ID: "4", Address: 0x8, Type: WriteExclusive,
			Data: denseLine, Size: 64, Cycle: 40,
		}

		var evicted []cachearray.Victim
		gomock.InOrder(
			ctrl.EXPECT().StartAccess(req).Return(false),
			ctrl.EXPECT().ProcessEviction(req, gomock.Any(), uint64(40)).
				Do(func(_ Request, v cachearray.Victim, _ uint64) {
					evicted = append(evicted, v)
				}),
			ctrl.EXPECT().ProcessAccess(req, 2, uint64(40)).Return(uint64(41)),
			ctrl.EXPECT().EndAccess(req),
		)

		bank.Access(req)

		Expect(evicted).To(HaveLen(1))
		Expect(evicted[0].Address).To(Equal(uint64(0x0)))
		Expect(bank.SetSizeOf(0x8)).To(Equal(9))
		Expect(bank.SetSizeOf(0x8)).To(BeNumerically("<=", bank.Budget()))
	})

	It("should not change a line on a read hit", func() {
		fill(0x4, zeroLine)

		req := Request{
			ID: "2", Address: 0x4, Type: ReadShared, Data: denseLine, Size: 64,
		}
		ctrl.EXPECT().StartAccess(req).Return(false)
		ctrl.EXPECT().ProcessAccess(req, 0, uint64(0)).Return(uint64(0))
		ctrl.EXPECT().EndAccess(req)

		bank.Access(req)

		line, _ := bank.Lookup(0x4)
		Expect(line.Size).To(Equal(1))
	})

	Context("invalidate", func() {
		It("should drop the line on a full invalidation", func() {
			fill(0x4, denseLine)

			req := Request{ID: "inv", Address: 0x4, Cycle: 50}
			ctrl.EXPECT().
				ProcessInv(req, InvTypeInvalidate, gomock.Any(), uint64(50)).
				DoAndReturn(func(
					_ Request, _ InvType, line tagging.Line, cycle uint64,
				) uint64 {
					Expect(line.Valid).To(BeTrue())
					Expect(line.Data).To(Equal(denseLine))
					return cycle + 3
				})

			Expect(bank.Invalidate(req, InvTypeInvalidate)).
				To(Equal(uint64(53)))

			_, found := bank.Lookup(0x4)
			Expect(found).To(BeFalse())
			Expect(bank.SetSizeOf(0x4)).To(BeZero())
			Expect(counters.Snapshot().Invalidations).To(Equal(uint64(1)))
		})

		It("should keep the line on a downgrade", func() {
			fill(0x4, denseLine)

			req := Request{ID: "invx", Address: 0x4}
			ctrl.EXPECT().
				ProcessInv(req, InvTypeDowngrade, gomock.Any(), uint64(0)).
				Return(uint64(1))

			bank.Invalidate(req, InvTypeDowngrade)

			line, found := bank.Lookup(0x4)
			Expect(found).To(BeTrue())
			Expect(line.Size).To(Equal(8))
		})

		It("should panic if the line is not in the bank", func() {
			fill(0x4, denseLine)

			req := Request{ID: "inv", Address: 0x40}

			Expect(func() { bank.Invalidate(req, InvTypeInvalidate) }).
				To(PanicWith(And(
					ContainSubstring("0x40"),
					ContainSubstring("set 0"),
					ContainSubstring("slot 0: addr 0x4 valid true size 8"),
				)))
		})
	})
})

package cachearray

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/bdicache/hashing"
	"github.com/sarchlab/bdicache/replacement"
	"github.com/sarchlab/bdicache/tagging"
)

var _ = Describe("SetAssoc", func() {
	var (
		mockCtrl *gomock.Controller
		policy   *MockPolicy
		store    *tagging.Store
		array    *SetAssoc
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		policy = NewMockPolicy(mockCtrl)
		store = tagging.NewStore(16, 64, 4, 64, hashing.Identity{})
		array = NewSetAssoc(store, policy)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should not constrain sizes", func() {
		Expect(array.SetBudget()).To(Equal(256))
	})

	It("should evict exactly one line", func() {
		for slot := 4; slot < 8; slot++ {
			store.Commit(slot, uint64(slot-3)*4+1, nil, 64)
		}
		policy.EXPECT().
			RankWorst(replacement.Candidates{Begin: 4, End: 8}).
			Return(7)

		res := array.Reserve(0x11, 64)

		Expect(res.Slot).To(Equal(7))
		Expect(victimSlots(res.Victims)).To(Equal([]int{7}))
	})

	It("should list the lines of a set", func() {
		store.Commit(5, 0x1, nil, 8)

		lines := array.SetLines(1)

		Expect(lines).To(HaveLen(4))
		Expect(lines[0].Slot).To(Equal(4))
		Expect(lines[1].Address).To(Equal(uint64(0x1)))
		Expect(lines[1].Valid).To(BeTrue())
	})

	It("should never evict on update", func() {
		store.Commit(4, 0x1, nil, 1)

		Expect(array.ReserveForUpdate(4, 64)).To(BeNil())

		array.UpdateInPlace(4, []byte{1}, 0, 64)
		Expect(array.Line(4).Size).To(Equal(64))
	})
})

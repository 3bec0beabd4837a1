package oracle

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/cacheleak/aggregate"
	"github.com/sarchlab/cacheleak/memory"
)

// slotTimer charges a fixed latency per load, lower for one chosen slot.
type slotTimer struct {
	now      uint64
	fastAddr uint64
	fast     uint64
	slow     uint64
	loads    []uint64
}

func (t *slotTimer) ReadCycles() uint64 {
	return t.now
}

func (t *slotTimer) Load(addr uint64) byte {
	t.loads = append(t.loads, addr)
	if addr == t.fastAddr {
		t.now += t.fast
	} else {
		t.now += t.slow
	}

	return 1
}

var _ = Describe("Oracle", func() {
	var (
		probe memory.Region
		table *aggregate.HitTable
	)

	BeforeEach(func() {
		probe = memory.Region{Base: 0x10000, Size: 256 * 64}
		table = aggregate.NewHitTable(aggregate.NumCandidates)
	})

	Context("with mocks", func() {
		var (
			mockCtrl *gomock.Controller
			counter  *MockCycleCounter
			loader   *MockLoader
			o        *Oracle
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			counter = NewMockCycleCounter(mockCtrl)
			loader = NewMockLoader(mockCtrl)
			o = New(counter, loader, probe, 64, 37)
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should bracket exactly one load with two counter reads", func() {
			gomock.InOrder(
				counter.EXPECT().ReadCycles().Return(uint64(1000)),
				loader.EXPECT().Load(uint64(0x10000+3*64)).Return(byte(1)),
				counter.EXPECT().ReadCycles().Return(uint64(1012)),
			)

			Expect(o.Measure(3)).To(Equal(uint64(12)))
		})

		It("should treat latencies below the threshold as hits", func() {
			Expect(o.IsHit(36)).To(BeTrue())
			Expect(o.IsHit(37)).To(BeFalse())
		})
	})

	Context("with a deterministic timer", func() {
		var (
			timer *slotTimer
			o     *Oracle
		)

		BeforeEach(func() {
			timer = &slotTimer{
				fastAddr: probe.Base + 0x52*64,
				fast:     10,
				slow:     100,
			}
			o = New(timer, timer, probe, 64, 37)
		})

		It("should count the fast slot only", func() {
			for range 9 {
				o.SampleAll(DefaultMixer, table)
			}

			Expect(table.Count(0x52)).To(Equal(uint64(9)))
			Expect(table.Total()).To(Equal(uint64(9)))
			Expect(o.Sampled()).To(Equal(uint64(9 * 256)))
		})

		It("should visit the slots in mixed order", func() {
			o.SampleAll(DefaultMixer, table)

			Expect(timer.loads[0]).To(Equal(probe.Base + 1*64))
			Expect(timer.loads[1]).To(Equal(probe.Base + 66*64))
		})

		It("should not count an excluded candidate", func() {
			o.Exclude(0x52)
			o.SampleAll(DefaultMixer, table)
			Expect(table.IsZero()).To(BeTrue())

			o.ClearExclusion()
			o.SampleAll(DefaultMixer, table)
			Expect(table.Count(0x52)).To(Equal(uint64(1)))
		})

		It("should only probe candidates the table can hold", func() {
			small := aggregate.NewHitTable(128)

			o.SampleAll(DefaultMixer, small)

			Expect(timer.loads).To(HaveLen(128))
			Expect(small.Count(0x52)).To(Equal(uint64(1)))
		})
	})

	It("should refuse a zero stride", func() {
		Expect(func() {
			New(&slotTimer{}, &slotTimer{}, probe, 0, 37)
		}).To(Panic())
	})
})

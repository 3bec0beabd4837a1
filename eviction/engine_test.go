package eviction

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/cacheleak/geometry"
	"github.com/sarchlab/cacheleak/memory"
)

type recordingLoader struct {
	loads []uint64
}

func (l *recordingLoader) Load(addr uint64) byte {
	l.loads = append(l.loads, addr)
	return 1
}

var _ = Describe("Engine", func() {
	var (
		params geometry.Params
		buffer memory.Region
		loader *recordingLoader
		engine *Engine
	)

	BeforeEach(func() {
		params = geometry.MakeParams(2, 64, 512)
		buffer = memory.Region{
			Base: 0x2_0040,
			Size: BufferSize(params, DefaultMultiplier),
		}
		loader = &recordingLoader{}
		engine = MakeBuilder().
			WithParams(params).
			WithLoader(loader).
			WithBuffer(buffer).
			Build()
	})

	It("should size the buffer from the capacity", func() {
		Expect(params.CapacityBytes()).To(Equal(uint64(65536)))
		Expect(buffer.Size).To(Equal(uint64(131072)))
	})

	It("should compute the number of blocks to clear", func() {
		Expect(engine.BlocksToClear(256)).To(Equal(uint64(4)))
		Expect(engine.BlocksToClear(257)).To(Equal(uint64(5)))
		Expect(engine.BlocksToClear(1)).To(Equal(uint64(1)))
		Expect(engine.BlocksToClear(0)).To(BeZero())
		Expect(engine.BlocksToClear(1 << 30)).To(Equal(uint64(512)))
	})

	It("should align the base to a tag boundary inside the buffer", func() {
		base := engine.AlignedBase()

		Expect(base & params.Masks().Set).To(BeZero())
		Expect(base & params.Masks().Offset).To(BeZero())
		Expect(base).To(BeNumerically(">=", buffer.Base))
		Expect(base + params.CapacityBytes()).
			To(BeNumerically("<=", buffer.End()))
	})

	It("should plan the loads of the worked example", func() {
		plan := engine.Plan(0x1000, 256)

		Expect(plan).To(HaveLen(4 * 2))

		firstSet := params.SetIndexOf(0x1000)
		for _, addr := range plan {
			set := params.SetIndexOf(addr)
			Expect(set).To(BeNumerically(">=", firstSet))
			Expect(set).To(BeNumerically("<", firstSet+4))
		}
	})

	DescribeTable("distinct in-bounds loads",
		func(target, size uint64) {
			engine.Evict(target, size)

			expected := min((size+63)/64, 512) * 2
			Expect(loader.loads).To(HaveLen(int(expected)))

			seen := map[uint64]bool{}
			for _, addr := range loader.loads {
				Expect(buffer.Contains(addr)).To(BeTrue(),
					"load 0x%x outside %s", addr, buffer)
				seen[addr] = true
			}
			Expect(seen).To(HaveLen(int(expected)))
		},
		Entry("one block", uint64(0x1000), uint64(1)),
		Entry("probe array", uint64(0x10_0000), uint64(256*64)),
		Entry("late start", uint64(0x7fc0), uint64(4096)),
		Entry("whole cache", uint64(0x1234), uint64(1<<20)),
	)

	It("should sweep every set once per way with the default config", func() {
		engine.Evict(0x1000, 64)

		set := params.SetIndexOf(0x1000)
		Expect(loader.loads).To(Equal([]uint64{
			engine.AlignedBase() + set*64,
			engine.AlignedBase() + set*64 + params.WayStride(),
		}))
	})

	It("should touch the congruent addresses of the target", func() {
		engine.Evict(0x1000, 128)

		for _, addr := range loader.loads {
			Expect(params.OffsetOf(addr)).To(BeZero())
		}
		Expect(params.SetIndexOf(loader.loads[0])).
			To(Equal(params.SetIndexOf(0x1000)))
		Expect(params.SetIndexOf(loader.loads[2])).
			To(Equal(params.SetIndexOf(0x1040)))
	})

	Context("with an extended sweep", func() {
		BeforeEach(func() {
			buffer.Size = BufferSize(params, 4)
			engine = MakeBuilder().
				WithParams(params).
				WithLoader(loader).
				WithBuffer(buffer).
				WithMultiplier(4).
				WithExtendedSweep(true).
				Build()
		})

		It("should repeat the ways multiplier-1 times", func() {
			Expect(engine.LoadsPerSet()).To(Equal(uint64(6)))

			engine.Evict(0x1000, 1<<20)

			Expect(loader.loads).To(HaveLen(512 * 6))
			for _, addr := range loader.loads {
				Expect(buffer.Contains(addr)).To(BeTrue())
			}
		})
	})

	It("should refuse a buffer smaller than the multiplier", func() {
		Expect(func() {
			MakeBuilder().
				WithParams(params).
				WithLoader(loader).
				WithBuffer(memory.Region{Base: 0, Size: 65536}).
				Build()
		}).To(Panic())
	})

	It("should refuse a multiplier below two", func() {
		Expect(func() {
			MakeBuilder().
				WithParams(params).
				WithLoader(loader).
				WithBuffer(buffer).
				WithMultiplier(1).
				Build()
		}).To(Panic())
	})
})

var _ = Describe("Engine with a mocked loader", func() {
	var (
		mockCtrl *gomock.Controller
		loader   *MockLoader
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		loader = NewMockLoader(mockCtrl)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should fold the loaded bytes into the junk value", func() {
		params := geometry.MakeParams(1, 8, 16)
		engine := MakeBuilder().
			WithParams(params).
			WithLoader(loader).
			WithBuffer(memory.Region{Base: 0, Size: 256}).
			Build()

		loader.EXPECT().Load(uint64(128 + 8)).Return(byte(0x0f))
		loader.EXPECT().Load(uint64(128 + 16)).Return(byte(0xf1))

		engine.Evict(8, 16)

		Expect(engine.Junk()).To(Equal(byte(0xfe)))
	})
})

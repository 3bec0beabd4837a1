package machine

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cacheleak/geometry"
)

var _ = Describe("Cache", func() {
	var (
		params geometry.Params
		cache  *Cache
	)

	BeforeEach(func() {
		params = geometry.MakeParams(2, 64, 4)
		cache = NewCache(params, NewLRUVictimFinder())
	})

	It("should miss then hit", func() {
		Expect(cache.Access(0x1000)).To(BeFalse())
		Expect(cache.Access(0x1010)).To(BeTrue())
		Expect(cache.Contains(0x103f)).To(BeTrue())
		Expect(cache.Stats()).To(Equal(CacheStats{Hits: 1, Misses: 1}))
	})

	It("should evict the least recently used block", func() {
		stride := params.WayStride()

		cache.Access(0)
		cache.Access(stride)
		cache.Access(0)
		cache.Access(2 * stride)

		Expect(cache.Contains(0)).To(BeTrue())
		Expect(cache.Contains(stride)).To(BeFalse())
		Expect(cache.Contains(2 * stride)).To(BeTrue())
		Expect(cache.Stats().Evictions).To(Equal(uint64(1)))
	})

	It("should keep other sets untouched", func() {
		cache.Access(0x40)
		cache.Access(params.WayStride())
		cache.Access(2 * params.WayStride())
		cache.Access(3 * params.WayStride())

		Expect(cache.Contains(0x40)).To(BeTrue())
	})

	It("should invalidate a single block", func() {
		cache.Access(0x80)
		cache.Access(0xc0)

		cache.Invalidate(0x80)

		Expect(cache.Contains(0x80)).To(BeFalse())
		Expect(cache.Contains(0xc0)).To(BeTrue())
	})

	It("should flush everything", func() {
		cache.Access(0x80)
		cache.Flush()
		Expect(cache.Contains(0x80)).To(BeFalse())
	})

	It("should snapshot lines in recency order", func() {
		stride := params.WayStride()
		cache.Access(stride)
		cache.Access(0)

		snapshot := cache.Snapshot()

		Expect(snapshot).To(HaveLen(4))
		Expect(snapshot[0]).To(Equal([]LineState{
			{Tag: stride, Valid: true},
			{Tag: 0, Valid: true},
		}))
		Expect(snapshot[1]).To(Equal([]LineState{{}, {}}))
	})
})

var _ = Describe("SRRIPVictimFinder", func() {
	var (
		vf  *SRRIPVictimFinder
		set *Set
	)

	BeforeEach(func() {
		vf = NewSRRIPVictimFinder()
		set = &Set{
			Blocks:   []Block{{WayID: 0}, {WayID: 1}},
			LRUQueue: []int{0, 1},
		}
	})

	It("should pick an invalid block first", func() {
		set.Blocks[0].IsValid = true
		Expect(vf.FindVictim(set).WayID).To(Equal(1))
	})

	It("should age the set until a distant block exists", func() {
		set.Blocks[0].IsValid = true
		set.Blocks[1].IsValid = true
		vf.OnHit(set, 0)
		vf.OnFill(set, 1)

		victim := vf.FindVictim(set)

		Expect(victim.WayID).To(Equal(1))
		Expect(set.Blocks[0].RRPV).To(Equal(uint8(1)))
	})

	It("should protect a block on hit", func() {
		set.Blocks[1].RRPV = 3
		vf.OnHit(set, 1)
		Expect(set.Blocks[1].RRPV).To(Equal(uint8(0)))
	})
})

var _ = Describe("RandomVictimFinder", func() {
	It("should stay inside the set", func() {
		vf := NewRandomVictimFinder(7)
		set := &Set{Blocks: []Block{
			{WayID: 0, IsValid: true},
			{WayID: 1, IsValid: true},
			{WayID: 2, IsValid: true},
		}}

		for i := 0; i < 100; i++ {
			Expect(vf.FindVictim(set).WayID).To(BeNumerically("<", 3))
		}
	})
})

var _ = Describe("NewVictimFinder", func() {
	It("should reject unknown policies", func() {
		_, err := NewVictimFinder("fifo", 0)
		Expect(err).To(HaveOccurred())
	})

	It("should default to LRU", func() {
		vf, err := NewVictimFinder("", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(vf).To(BeAssignableToTypeOf(&LRUVictimFinder{}))
	})
})

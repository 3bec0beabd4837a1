package attack

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/cacheleak/aggregate"
	"github.com/sarchlab/cacheleak/geometry"
	"github.com/sarchlab/cacheleak/hooking"
)

var _ = Describe("Orchestrator", func() {
	var (
		mockCtrl *gomock.Controller
		platform *stubPlatform
		params   geometry.Params
		cfg      Config
		layout   Layout
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		platform = newStubPlatform()
		params = geometry.MakeParams(2, 64, 512)

		cfg = DefaultConfig()
		cfg.Rounds = 9
		cfg.Threshold = 37

		layout = NewLayout(platform, platform, params, cfg)
		platform.watch(layout)

		cfg.TargetAddress = layout.Guide.Base + 0x4000
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	build := func(g interface{ AttemptLeak(uint64) }) *Orchestrator {
		return MakeBuilder().
			WithPlatform(platform).
			WithParams(params).
			WithLayout(layout).
			WithGadget(g).
			WithConfig(cfg).
			Build()
	}

	It("should fill the candidate array with the sentinel", func() {
		for i := uint64(0); i < layout.Guide.Size; i++ {
			Expect(platform.mem[layout.Guide.At(i)]).To(Equal(byte(1)))
		}
		Expect(layout.Stride).To(Equal(uint64(64)))
		Expect(layout.Probe.Size).To(Equal(uint64(256 * 64)))
		Expect(layout.EvictionBuffer.Size).To(Equal(uint64(2 * 65536)))
	})

	It("should recover the byte whose slot is always fast", func() {
		cfg.SecretLength = 1
		platform.fast[0x52] = true

		g := NewMockGadget(mockCtrl)
		g.EXPECT().AttemptLeak(uint64(0x4000)).Times(9)

		result := build(g).Run()

		Expect(result.Secret()).To(Equal([]byte{0x52}))
		Expect(result.Bytes[0].Hits).To(Equal(uint64(9)))
		Expect(result.Bytes[0].Verdict).To(Equal(aggregate.Clear))
		Expect(result.Bytes[0].Address).To(Equal(cfg.TargetAddress))
	})

	It("should report the sentinel when nothing ever hits", func() {
		cfg.SecretLength = 1

		g := NewMockGadget(mockCtrl)
		g.EXPECT().AttemptLeak(gomock.Any()).Times(9)

		o := build(g)
		result := o.Run()

		Expect(o.HitTable().IsZero()).To(BeTrue())
		Expect(result.Bytes[0].Value).To(Equal(byte(0)))
		Expect(result.Bytes[0].Hits).To(BeZero())
		Expect(result.Bytes[0].Inconclusive()).To(BeTrue())
		Expect(result.Inconclusive()).To(Equal([]int{0}))
	})

	It("should recover a secret byte by byte", func() {
		secret := []byte("RISCV")
		cfg.SecretLength = len(secret)

		g := &secretGadget{
			platform: platform,
			secret:   secret,
			first:    0x4000,
			decoy:    -1,
		}

		result := build(g).Run()

		Expect(result.Secret()).To(Equal(secret))
		Expect(result.Accuracy(secret)).To(Equal(1.0))
		Expect(g.attempts).To(HaveLen(len(secret) * 9))
		Expect(g.attempts[0]).To(Equal(uint64(0x4000)))
		Expect(g.attempts[9]).To(Equal(uint64(0x4001)))
	})

	It("should not count hits on the decoy slot", func() {
		secret := []byte{0x01, 0x41}
		cfg.SecretLength = len(secret)

		g := &secretGadget{
			platform: platform,
			secret:   secret,
			first:    0x4000,
			decoy:    1,
		}

		result := build(g).Run()

		Expect(result.Bytes[0].Inconclusive()).To(BeTrue())
		Expect(result.Bytes[1].Value).To(Equal(byte(0x41)))
	})

	It("should walk through the states", func() {
		cfg.SecretLength = 1
		cfg.Rounds = 2

		g := NewMockGadget(mockCtrl)
		g.EXPECT().AttemptLeak(gomock.Any()).Times(2)

		o := build(g)
		var states []State
		for {
			states = append(states, o.State())
			if !o.Step() {
				break
			}
		}

		Expect(states).To(Equal([]State{
			StateInit,
			StateRounds, StateRounds, StateRounds,
			StateDecide,
			StateInit,
			StateDone,
		}))
	})

	It("should evict the probe array every round", func() {
		cfg.SecretLength = 1
		cfg.Rounds = 3

		g := NewMockGadget(mockCtrl)
		g.EXPECT().AttemptLeak(gomock.Any()).Times(3)

		build(g).Run()

		probeBlocks := 256 * 64 / 64
		perRound := min(probeBlocks, 512)*2 + 256
		Expect(platform.loads).To(Equal(3 * perRound))
	})

	It("should decide with no rounds at all", func() {
		cfg.SecretLength = 2
		cfg.Rounds = 0

		result := build(NewMockGadget(mockCtrl)).Run()

		Expect(result.Inconclusive()).To(Equal([]int{0, 1}))
	})

	It("should notify reporters and hooks", func() {
		cfg.SecretLength = 2
		platform.fast[0x33] = true

		g := NewMockGadget(mockCtrl)
		g.EXPECT().AttemptLeak(gomock.Any()).AnyTimes()

		reporter := NewMockResultSink(mockCtrl)
		gomock.InOrder(
			reporter.EXPECT().ReportByte(gomock.Any()).Times(2),
			reporter.EXPECT().ReportDone(gomock.Any()),
		)

		o := MakeBuilder().
			WithPlatform(platform).
			WithParams(params).
			WithLayout(layout).
			WithGadget(g).
			WithConfig(cfg).
			WithReporter(reporter).
			Build()

		counter := hooking.NewPosCounter()
		o.AcceptHook(counter)

		var lastRound RoundInfo
		o.AcceptHook(hooking.NewHookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == HookPosRoundEnd {
				lastRound = ctx.Detail.(RoundInfo)
			}
		}))

		o.Run()

		Expect(counter.Count(HookPosRoundEnd.Name)).To(Equal(uint64(18)))
		Expect(counter.Count(HookPosByteDecided.Name)).To(Equal(uint64(2)))
		Expect(counter.Count(HookPosDone.Name)).To(Equal(uint64(1)))
		Expect(lastRound.Offset).To(Equal(1))
		Expect(lastRound.Round).To(Equal(9))
		Expect(lastRound.Hits[0x33]).To(Equal(uint64(9)))
	})

	It("should allocate its own layout when none is given", func() {
		cfg.SecretLength = 0

		o := MakeBuilder().
			WithPlatform(platform).
			WithParams(params).
			WithGadget(NewMockGadget(mockCtrl)).
			WithConfig(cfg).
			Build()

		Expect(o.Layout().Guide).ToNot(Equal(layout.Guide))
		Expect(o.Run().Bytes).To(BeEmpty())
	})

	It("should release its regions on teardown", func() {
		cfg.SecretLength = 1
		o := build(NewMockGadget(mockCtrl))

		o.Teardown()
		o.Teardown()

		Expect(platform.released).To(Equal(layout.Regions()))
		Expect(o.Step()).To(BeFalse())
	})

	It("should refuse an invalid config", func() {
		cfg.Threshold = 0

		Expect(func() { build(NewMockGadget(mockCtrl)) }).To(Panic())
	})
})

var _ = Describe("Config", func() {
	It("should accept the defaults", func() {
		Expect(DefaultConfig().Validate()).To(Succeed())
	})

	It("should reject a mixer smaller than the candidate set", func() {
		cfg := DefaultConfig()
		cfg.Mixer.N = 128

		Expect(cfg.Validate()).To(MatchError(ContainSubstring("mixer")))
	})

	It("should reject a zero sentinel", func() {
		cfg := DefaultConfig()
		cfg.Sentinel = 0

		Expect(cfg.Validate()).To(HaveOccurred())
	})
})

var _ = Describe("State", func() {
	It("should print", func() {
		Expect(StateDecide.String()).To(Equal("Decide"))
		Expect(State(7).String()).To(Equal("State(7)"))
	})
})

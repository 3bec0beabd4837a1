package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cacheleak/aggregate"
	"github.com/sarchlab/cacheleak/attack"
	"github.com/sarchlab/cacheleak/hooking"
	"github.com/sarchlab/cacheleak/machine"
)

type sampleStruct struct {
	field1 int
	field2 string
	field3 *sampleStruct
	field4 []sampleStruct
}

var _ = Describe("Monitor", func() {
	var (
		m *Monitor
	)

	BeforeEach(func() {
		m = NewMonitor()
	})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		m.Router().ServeHTTP(rec, req)

		return rec
	}

	It("should walk int fields", func() {
		s := &sampleStruct{
			field1: 1,
		}

		elem, err := m.walkFields(s, "field1")

		Expect(err).To(BeNil())
		Expect(elem.Kind()).To(Equal(reflect.Int))
		Expect(elem.Int()).To(Equal(int64(1)))
	})

	It("should walk through pointers and slices", func() {
		s := &sampleStruct{
			field3: &sampleStruct{
				field4: []sampleStruct{{field2: "abc"}},
			},
		}

		elem, err := m.walkFields(s, "field3.field4.0.field2")

		Expect(err).To(BeNil())
		Expect(elem.String()).To(Equal("abc"))
	})

	It("should reject bad slice indices", func() {
		s := &sampleStruct{field4: []sampleStruct{{}}}

		_, err := m.walkFields(s, "field4.3")

		Expect(err).To(Equal(fieldFormatError{}))
	})

	It("should follow the attack through hooks", func() {
		m.Track(2, 3)

		m.Func(hooking.HookCtx{
			Pos:    attack.HookPosRoundEnd,
			Detail: attack.RoundInfo{Offset: 0, Round: 1},
		})
		m.Func(hooking.HookCtx{
			Pos: attack.HookPosByteDecided,
			Detail: attack.ByteResult{
				Offset:  0,
				Address: 0x10,
				Value:   'R',
				Hits:    3,
				Verdict: aggregate.Clear,
			},
		})

		status := m.Status()
		Expect(status.State).To(Equal(attack.StateDecide.String()))
		Expect(status.Decided).To(Equal(1))
		Expect(status.Total).To(Equal(2))
		Expect(status.Secret).To(Equal("R"))
		Expect(m.roundBar.Finished).To(Equal(uint64(1)))
		Expect(m.byteBar.Finished).To(Equal(uint64(1)))

		m.Func(hooking.HookCtx{
			Pos:    attack.HookPosDone,
			Detail: attack.Result{},
		})
		Expect(m.Status().State).To(Equal(attack.StateDone.String()))
	})

	It("should remove completed progress bars", func() {
		a := m.CreateProgressBar("a", 10)
		b := m.CreateProgressBar("b", 10)

		m.CompleteProgressBar(a)

		Expect(m.bars).To(ConsistOf(b))
	})

	It("should serve the status", func() {
		m.Track(5, 9)

		rec := get("/api/status")

		Expect(rec.Code).To(Equal(http.StatusOK))
		status := Status{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &status)).To(Succeed())
		Expect(status.Total).To(Equal(5))
	})

	It("should serve progress bars", func() {
		m.Track(1, 9)

		rec := get("/api/progress")

		var bars []map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(2))
		Expect(bars[0]["total"]).To(BeNumerically("==", 9))
	})

	It("should list registered objects", func() {
		m.RegisterObject("b", &sampleStruct{})
		m.RegisterObject("a", &sampleStruct{})

		rec := get("/api/list_objects")

		Expect(rec.Body.String()).To(Equal(`["a","b"]`))
	})

	It("should serve a field value", func() {
		m.RegisterObject("s", &sampleStruct{field1: 42})

		rec := get("/api/value/s/field1")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal(`{"value":"42"}`))
	})

	It("should return 404 for unknown objects", func() {
		rec := get("/api/object/nothing")
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should report process resources", func() {
		rec := get("/api/resource")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("memory_size"))
	})

	It("should refuse to inspect objects while an attack runs", func() {
		m.RegisterObject("s", &sampleStruct{field1: 42})
		m.Track(1, 1)

		Expect(get("/api/value/s/field1").Code).To(Equal(http.StatusConflict))
		Expect(get("/api/object/s").Code).To(Equal(http.StatusConflict))

		m.Func(hooking.HookCtx{
			Pos:    attack.HookPosDone,
			Detail: attack.Result{},
		})

		rec := get("/api/value/s/field1")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal(`{"value":"42"}`))
	})

	It("should serve the hits of the last round", func() {
		m.Track(1, 2)
		m.Func(hooking.HookCtx{
			Pos:    attack.HookPosRoundEnd,
			Detail: attack.RoundInfo{Round: 1, Hits: []uint64{0, 3, 1}},
		})

		rec := get("/api/hits")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal(`[0,3,1]`))
	})

	It("should serve requests while an attack runs", func() {
		mach := machine.MakeBuilder().Build()
		cfg := attack.DefaultConfig()
		layout := attack.NewLayout(mach, mach, mach.Params(), cfg)
		secret := mach.PlaceSecret([]byte("RISCV"))
		cfg.TargetAddress = secret.Base
		cfg.SecretLength = len("RISCV")

		g := machine.NewStoreBypassGadget(machine.NewSpeculativeCore(mach, 80),
			layout.Guide, layout.Probe, layout.Stride)
		o := attack.MakeBuilder().
			WithPlatform(mach).
			WithParams(mach.Params()).
			WithLayout(layout).
			WithGadget(g).
			WithConfig(cfg).
			Build()

		m.RegisterObject("machine", mach)
		m.Track(cfg.SecretLength, cfg.Rounds)
		o.AcceptHook(m)

		var (
			wg    sync.WaitGroup
			lock  sync.Mutex
			codes []int
		)

		for i := 0; i < 4; i++ {
			wg.Add(1)

			go func() {
				defer GinkgoRecover()
				defer wg.Done()

				for j := 0; j < 50; j++ {
					code := get("/api/value/machine/now").Code
					get("/api/status")
					get("/api/hits")

					lock.Lock()
					codes = append(codes, code)
					lock.Unlock()
				}
			}()
		}

		result := o.Run()
		wg.Wait()

		Expect(string(result.Secret())).To(Equal("RISCV"))
		Expect(codes).To(HaveEach(
			Or(Equal(http.StatusOK), Equal(http.StatusConflict))))

		rec := get("/api/value/machine/now")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal(
			`{"value":"` + strconv.FormatUint(mach.Now(), 10) + `"}`))
		Expect(m.Status().Secret).To(Equal("RISCV"))
	})
})

package cache_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/suprax/dramsim/internal/cache"
	"github.com/suprax/dramsim/internal/request"
)

func TestCacheScenarios(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "cache hierarchy scenarios")
}

var _ = Describe("a two-level hierarchy under concurrent writes", func() {
	var (
		mem *fakeMemory
		sys *cache.CacheSystem
		l1  *cache.Cache
	)

	BeforeEach(func() {
		mem = &fakeMemory{}
		sys = cache.NewSystem(mem)
		l1 = cache.New(smallConfig(cache.L1), sys, "l1")
		sys.Register(l1)
	})

	When("two writes to the same block arrive before the line fills", func() {
		It("coalesces them into a single downstream request and wakes both on completion", func() {
			var completions int
			first := request.New(0x500, request.WriteReq, 0, func(*request.Request) { completions++ })
			second := request.New(0x500, request.WriteReq, 0, func(*request.Request) { completions++ })

			Expect(l1.Send(first)).To(BeTrue())
			Expect(l1.Send(second)).To(BeTrue())

			for i := 0; i < 10 && completions < 2; i++ {
				sys.Tick()
			}
			Expect(mem.sent).To(HaveLen(1), "only one fill should ever reach memory for a coalesced block")
			Expect(completions).To(Equal(2))
			Expect(l1.NumResident()).To(Equal(1))
		})
	})

	When("a line fills from a write", func() {
		It("completes its fill and leaves the line resident", func() {
			req := request.New(0x600, request.WriteReq, 0, nil)
			Expect(l1.Send(req)).To(BeTrue())

			for i := 0; i < 10 && l1.NumResident() == 0; i++ {
				sys.Tick()
			}
			Expect(l1.NumResident()).To(Equal(1), "the write's fill must complete and leave a resident line")
		})
	})
})

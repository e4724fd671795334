package cache_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/suprax/dramsim/internal/cache"
	"github.com/suprax/dramsim/internal/request"
)

// fakeMemory accepts every Send unconditionally, completing it on the spot,
// standing in for internal/memory.Memory at the L3-to-DRAM boundary (the
// real Memory completes asynchronously over many Tick calls; a cache-level
// test only needs to know that its downstream fill eventually fires).
type fakeMemory struct {
	sent []*request.Request
}

func (m *fakeMemory) Send(req *request.Request) bool {
	m.sent = append(m.sent, req)
	if req.Callback != nil {
		req.Callback(req)
	}
	return true
}

func smallConfig(level cache.Level) cache.Config {
	return cache.Config{Level: level, BlockSize: 64, Sets: 4, Assoc: 2, Latency: 2, MSHRSize: 4}
}

func TestMissThenHitOnSameBlock(t *testing.T) {
	mem := &fakeMemory{}
	sys := cache.NewSystem(mem)
	l1 := cache.New(smallConfig(cache.L1), sys, "l1")
	sys.Register(l1)

	var fired int
	req := request.New(0x1000, request.ReadReq, 0, func(*request.Request) { fired++ })
	require.True(t, l1.Send(req), "first access to a cold line must be admitted as a miss")

	for i := 0; i < 10 && fired == 0; i++ {
		sys.Tick()
	}
	require.Equal(t, 1, len(mem.sent), "a miss must forward exactly one fill request downstream")
	require.Equal(t, 1, fired, "the fill callback must fire exactly once")
	require.Equal(t, 1, l1.NumResident(), "the filled line must now be resident")

	var secondFired bool
	again := request.New(0x1000, request.ReadReq, 0, func(*request.Request) { secondFired = true })
	require.True(t, l1.Send(again), "a resident line must be admitted")
	require.Equal(t, 1, len(mem.sent), "a repeat access to a resident line must not forward downstream again")

	for i := 0; i < 10 && !secondFired; i++ {
		sys.Tick()
	}
	require.True(t, secondFired, "a hit must still fire its callback after its latency elapses")
}

func TestConcurrentMissesToSameBlockCoalesceInOneMSHREntry(t *testing.T) {
	mem := &fakeMemory{}
	sys := cache.NewSystem(mem)
	l1 := cache.New(smallConfig(cache.L1), sys, "l1")
	sys.Register(l1)

	var fired int
	first := request.New(0x2000, request.ReadReq, 0, func(*request.Request) { fired++ })
	second := request.New(0x2000, request.ReadReq, 0, func(*request.Request) { fired++ })

	require.True(t, l1.Send(first))
	require.True(t, l1.Send(second))

	for i := 0; i < 10 && fired < 2; i++ {
		sys.Tick()
	}
	require.Equal(t, 1, len(mem.sent), "two misses to the same block must coalesce onto a single downstream fill")
	require.Equal(t, 2, fired, "every coalesced waiter must be woken once the single fill completes")
}

func TestMSHRFullRejectsAdmission(t *testing.T) {
	mem := &fakeMemory{}
	sys := cache.NewSystem(mem)
	cfg := smallConfig(cache.L1)
	cfg.MSHRSize = 1
	cfg.Assoc = 8 // keep eviction out of the way; this test is only about MSHR occupancy
	l1 := cache.New(cfg, sys, "l1")
	sys.Register(l1)

	require.True(t, l1.Send(request.New(0x3000, request.ReadReq, 0, nil)))
	require.False(t, l1.Send(request.New(0x4000, request.ReadReq, 0, nil)),
		"a second distinct-block miss must be rejected once the MSHR is full")
}

func TestEvictionInvalidatesUpperLevelAndWritesBackDirtyLine(t *testing.T) {
	mem := &fakeMemory{}
	sys := cache.NewSystem(mem)
	l2cfg := smallConfig(cache.L2)
	l2cfg.Sets = 1
	l2cfg.Assoc = 1
	l2 := cache.New(l2cfg, sys, "l2")
	l1cfg := smallConfig(cache.L1)
	l1 := cache.New(l1cfg, sys, "l1")
	l1.Lower = l2
	l2.Highers = append(l2.Highers, l1)
	sys.Register(l1)
	sys.Register(l2)

	// Fill the same L2 set (one way) with a write, making it dirty, then
	// drain the fill so it becomes resident (not locked) in both levels.
	wreq := request.New(0x0, request.WriteReq, 0, nil)
	require.True(t, l1.Send(wreq))
	for i := 0; i < 10 && len(mem.sent) == 0; i++ {
		sys.Tick()
	}
	for i := 0; i < 10 && l1.NumResident() == 0; i++ {
		sys.Tick()
	}
	require.Equal(t, 1, l1.NumResident())
	require.Equal(t, 1, l2.NumResident())

	// A second write to a different block mapping to the same single L2
	// set must evict the first line, invalidating it out of L1 too.
	other := request.New(uint64(l2cfg.Sets*l1cfg.BlockSize), request.WriteReq, 0, nil)
	require.True(t, l2.Send(other))

	require.Equal(t, 0, l1.NumResident(), "inclusion invalidation must remove the evicted line from L1 as well")

	// The victim was dirty in L1, so the terminal L2 queues a write of it
	// to memory once the invalidation delay and its own latency elapse.
	for i := 0; i < 20; i++ {
		sys.Tick()
	}
	var writebacks int
	for _, r := range mem.sent {
		if r.Type == request.WriteReq && r.Addr == 0x0 {
			writebacks++
		}
	}
	require.Equal(t, 1, writebacks, "the dirty victim must be written back to memory exactly once")
}

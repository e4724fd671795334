package controller_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/suprax/dramsim/internal/controller"
	"github.com/suprax/dramsim/internal/dram/ddr3"
	"github.com/suprax/dramsim/internal/request"
	"github.com/suprax/dramsim/internal/rowpolicy"
	"github.com/suprax/dramsim/internal/scheduler"
	"github.com/suprax/dramsim/internal/stats"
)

func newController(t *testing.T, rowPol rowpolicy.RowPolicy) *controller.Controller {
	t.Helper()
	org := ddr3.Org{Channels: 1, Ranks: 1, Banks: 8, Rows: 65536, Cols: 1024}
	spec := ddr3.New(org, ddr3.DDR3_1600K)
	return controller.New(0, spec, scheduler.FRFCFS{}, rowPol, 100, 32, stats.NewChannel(0))
}

func tickUntil(c *controller.Controller, maxCycles int, done func() bool) bool {
	for i := 0; i < maxCycles; i++ {
		if done() {
			return true
		}
		c.Tick()
	}
	return done()
}

func TestSingleReadOnIdleBankCompletesAndFiresCallback(t *testing.T) {
	c := newController(t, rowpolicy.Closed{})

	fired := false
	req := request.New(0, request.ReadReq, 0, func(*request.Request) { fired = true })
	req.AddrVec = []int{0, 0, 1, 5, 0}
	require.True(t, c.Enqueue(req))

	ok := tickUntil(c, 500, func() bool { return fired })
	require.True(t, ok, "read never completed within budget")
	require.Equal(t, int64(1), c.Stats.ReadTransactions)
	require.Equal(t, int64(1), c.Stats.RowMisses, "first access to an idle bank is a row miss, not a hit")
}

func TestRowHitStreakToSameRow(t *testing.T) {
	c := newController(t, rowpolicy.Opened{})

	var completed int
	addrVec := []int{0, 0, 1, 5, 0}
	for i := 0; i < 3; i++ {
		req := request.New(uint64(i), request.ReadReq, 0, func(*request.Request) { completed++ })
		req.AddrVec = append([]int(nil), addrVec...)
		require.True(t, c.Enqueue(req))
	}

	tickUntil(c, 2000, func() bool { return completed == 3 })
	require.Equal(t, 3, completed)
	require.Equal(t, int64(1), c.Stats.RowMisses, "only the first access opens the row")
	require.Equal(t, int64(2), c.Stats.RowHits, "the remaining two accesses should hit the already-open row")
}

func TestRowConflictRequiresPrechargeBeforeReopening(t *testing.T) {
	c := newController(t, rowpolicy.Opened{})

	var completed int
	row5 := request.New(0, request.ReadReq, 0, func(*request.Request) { completed++ })
	row5.AddrVec = []int{0, 0, 1, 5, 0}
	row9 := request.New(1, request.ReadReq, 0, func(*request.Request) { completed++ })
	row9.AddrVec = []int{0, 0, 1, 9, 0}
	require.True(t, c.Enqueue(row5))
	require.True(t, c.Enqueue(row9))

	tickUntil(c, 2000, func() bool { return completed == 2 })
	require.Equal(t, 2, completed)
	require.Equal(t, int64(1), c.Stats.RowMisses, "the first read opens a closed bank")
	require.Equal(t, int64(1), c.Stats.RowConflicts, "the second read targets a different row of the same open bank")
}

func TestQueueRejectsBeyondCapacity(t *testing.T) {
	org := ddr3.Org{Channels: 1, Ranks: 1, Banks: 8, Rows: 65536, Cols: 1024}
	spec := ddr3.New(org, ddr3.DDR3_1600K)
	c := controller.New(0, spec, scheduler.FRFCFS{}, rowpolicy.Closed{}, 100, 2, stats.NewChannel(0))

	for i := 0; i < 2; i++ {
		req := request.New(uint64(i), request.ReadReq, 0, nil)
		req.AddrVec = []int{0, 0, 0, 0, 0}
		require.True(t, c.Enqueue(req))
	}
	overflow := request.New(99, request.ReadReq, 0, nil)
	overflow.AddrVec = []int{0, 0, 0, 0, 0}
	require.False(t, c.Enqueue(overflow), "a full read queue must reject further admission")
}

func TestWriteCoalescing(t *testing.T) {
	c := newController(t, rowpolicy.Closed{})

	first := request.New(64, request.WriteReq, 0, nil)
	first.AddrVec = []int{0, 0, 0, 1, 0}
	require.True(t, c.Enqueue(first))

	second := request.New(64, request.WriteReq, 0, nil)
	second.AddrVec = []int{0, 0, 0, 1, 0}
	require.True(t, c.Enqueue(second))

	require.Equal(t, 1, len(c.WriteQ), "a write to an address already queued must coalesce, not enqueue again")
	require.Equal(t, int64(1), c.Stats.WriteCoalesced)
}

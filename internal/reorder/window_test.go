package reorder_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/suprax/dramsim/internal/reorder"
)

func TestBubblesRetireImmediatelyUpToIPC(t *testing.T) {
	w := &reorder.Window{}
	for i := 0; i < 6; i++ {
		require.True(t, w.InsertBubble())
	}

	n := w.Retire()
	require.Equal(t, reorder.IPC, n, "retire must never exceed ipc slots per cycle")
	require.Equal(t, 2, w.ReadyCount(), "the two remaining bubbles are still ready")
}

func TestMemOpBlocksRetireUntilSetReady(t *testing.T) {
	w := &reorder.Window{}
	require.True(t, w.InsertBubble())
	require.True(t, w.InsertMemOp(0x1000))
	require.True(t, w.InsertBubble())

	n := w.Retire()
	require.Equal(t, 1, n, "retire must stop at the first not-ready slot, the memory op")

	w.SetReady(0x1000, ^uint64(63))
	n = w.Retire()
	require.Equal(t, 2, n, "once woken the memory op and the bubble behind it both retire")
}

func TestSetReadyWakesEverySlotSharingTheSameBlock(t *testing.T) {
	w := &reorder.Window{}
	require.True(t, w.InsertMemOp(0x2000))
	require.True(t, w.InsertMemOp(0x2008)) // same 64-byte block as 0x2000

	w.SetReady(0x2000, ^uint64(63))
	require.Equal(t, 2, w.Retire(), "a fill for one address must wake every slot waiting on the same block")
}

func TestWindowFullRejectsFurtherInserts(t *testing.T) {
	w := &reorder.Window{}
	for i := 0; i < reorder.Depth; i++ {
		require.True(t, w.InsertBubble())
	}
	require.True(t, w.Full())
	require.False(t, w.InsertBubble(), "a full window must reject further inserts")
}

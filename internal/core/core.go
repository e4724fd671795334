package core

import (
	"github.com/suprax/dramsim/internal/reorder"
	"github.com/suprax/dramsim/internal/request"
	"github.com/suprax/dramsim/internal/stats"
)

// Sender is the minimal downstream interface a Core issues requests
// into: the core's own L1 when per-core caches are configured, the shared
// L3 under --cache L3, or Memory directly when --cache none (§4.8: "each
// core owns an L1 and L2 (if configured)").
type Sender interface {
	Send(req *request.Request) bool
}

// Core drives one reorder window from one CPU trace (§4.8).
type Core struct {
	ID       int
	Window   *reorder.Window
	Sender   Sender
	Filtered bool // true when no L1/L2 is configured (§6 trace format note)
	BlockMask uint64

	trace *CPUTrace
	stats *stats.Core

	curLine      CPULine
	haveLine     bool
	pendingBubbles int64
	readIssued   bool
	writeIssued  bool

	done bool
}

// NewCore builds a Core reading trace, issuing into sender, tracking
// retirement in window and accumulating cpu_instructions in st.
func NewCore(id int, trace *CPUTrace, sender Sender, window *reorder.Window, blockMask uint64, filtered bool, st *stats.Core) *Core {
	return &Core{ID: id, Window: window, Sender: sender, Filtered: filtered, BlockMask: blockMask, trace: trace, stats: st}
}

func (c *Core) onComplete(req *request.Request) {
	c.Window.SetReady(req.Addr, c.BlockMask)
}

func (c *Core) advanceLine() {
	line, ok := c.trace.Next()
	if !ok {
		c.done = true
		c.haveLine = false
		return
	}
	c.curLine = line
	c.haveLine = true
	c.pendingBubbles = line.BubbleCount
	c.readIssued = false
	c.writeIssued = false
}

// Tick performs one cycle of §4.8's core loop: retire, drain bubbles,
// then issue the current line's read (and, filtered, its write).
func (c *Core) Tick() {
	retired := c.Window.Retire()
	if c.stats != nil {
		c.stats.CPUInstructions += int64(retired)
	}

	if !c.haveLine && !c.done {
		c.advanceLine()
	}
	if !c.haveLine {
		return
	}

	if c.pendingBubbles > 0 {
		if c.Window.InsertBubble() {
			c.pendingBubbles--
		}
		return
	}

	if !c.readIssued {
		if c.Window.Full() {
			return // no room to track this op for retirement; retry next cycle
		}
		req := request.New(c.curLine.ReadAddr, request.ReadReq, c.ID, c.onComplete)
		if !c.Sender.Send(req) {
			return
		}
		c.Window.InsertMemOp(req.Addr)
		c.readIssued = true
		if !c.Filtered || !c.curLine.HasWrite {
			c.haveLine = false
		}
		return
	}

	if c.Filtered && c.curLine.HasWrite && !c.writeIssued {
		req := request.New(c.curLine.WriteAddr, request.WriteReq, c.ID, nil)
		if !c.Sender.Send(req) {
			return
		}
		c.writeIssued = true
		c.haveLine = false
	}
}

// Finished reports trace exhaustion plus an empty window (§4.8,
// "finished() when trace exhausted and window empty").
func (c *Core) Finished() bool {
	return c.done && !c.haveLine && c.Window.Empty()
}

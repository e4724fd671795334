package core

import (
	"github.com/suprax/dramsim/internal/request"
	"github.com/suprax/dramsim/internal/stats"
)

// Processor ticks every core once per CPU cycle and decides when the
// run loop should stop (§5: early-exit vs all-cores-finished).
type Processor struct {
	Cores     []*Core
	Stats     *stats.Registry
	EarlyExit bool
}

// Tick advances every core by one cycle and bumps the global cpu_cycles
// counter once.
func (p *Processor) Tick() {
	p.Stats.CPUCycles++
	for _, c := range p.Cores {
		c.Tick()
	}
}

// Finished implements §5's termination rule: early_exit stops at the
// first core's trace exhaustion (weighted-speedup mode waits for all).
func (p *Processor) Finished() bool {
	if p.EarlyExit {
		for _, c := range p.Cores {
			if c.Finished() {
				return true
			}
		}
		return false
	}
	for _, c := range p.Cores {
		if !c.Finished() {
			return false
		}
	}
	return true
}

// DRAMTraceDriver replays a raw DRAM trace directly into Memory,
// bypassing the reorder window entirely (§6, "--mode dram"): each trace
// line becomes one request, gated by inflight_limit.
type DRAMTraceDriver struct {
	Sender        Sender
	Trace         *DRAMTrace
	InflightLimit int

	inflight int
	done     bool
}

// Tick issues the next trace line if under the inflight limit and the
// sender accepts it.
func (d *DRAMTraceDriver) Tick() {
	if d.done {
		return
	}
	if d.InflightLimit > 0 && d.inflight >= d.InflightLimit {
		return
	}
	line, ok := d.Trace.Next()
	if !ok {
		d.done = true
		return
	}
	typ := request.ReadReq
	if line.IsWrite {
		typ = request.WriteReq
	}
	req := request.New(line.Addr, typ, -1, d.decrement)
	if !d.Sender.Send(req) {
		d.Trace.pos-- // put it back; retried next cycle
		return
	}
	d.inflight++
}

func (d *DRAMTraceDriver) decrement(*request.Request) { d.inflight-- }

// Finished reports trace exhaustion with no requests still in flight.
func (d *DRAMTraceDriver) Finished() bool { return d.done && d.inflight == 0 }

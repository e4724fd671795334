// Package scheduler implements the pluggable "which pending request next"
// strategies a Controller consults each cycle (§4.4): FRFCFS (default),
// FCFS, FRFCFS_Cap, FRFCFS_PriorHit. Every variant is stateless except
// FRFCFS_Cap, which tracks a small consecutive-row-hit counter — the one
// exception the design explicitly calls out.
package scheduler

import (
	"github.com/suprax/dramsim/internal/dram"
	"github.com/suprax/dramsim/internal/request"
)

// Channel is the minimal view a Scheduler needs of the device tree to
// detect row hits; Controller's channel root node satisfies it.
type Channel interface {
	CheckRowHit(cmd dram.Command, addrVec []int) bool
}

// Scheduler picks the preferred request from queue, or reports none.
// Ties are broken by arrival time then insertion order, so implementations
// scan queue front-to-back (insertion order) and only replace a candidate
// on a strictly earlier Arrive.
type Scheduler interface {
	GetHead(queue []*request.Request, ch Channel, spec dram.Spec) (*request.Request, bool)
}

func translate(spec dram.Spec, r *request.Request) dram.Command { return spec.Translate(r.Type) }

func isRowHit(ch Channel, spec dram.Spec, r *request.Request) bool {
	return ch.CheckRowHit(translate(spec, r), r.AddrVec)
}

func oldest(queue []*request.Request) (*request.Request, bool) {
	if len(queue) == 0 {
		return nil, false
	}
	best := queue[0]
	for _, r := range queue[1:] {
		if r.Arrive < best.Arrive {
			best = r
		}
	}
	return best, true
}

// FCFS always serves the oldest request, ignoring row-buffer state.
type FCFS struct{}

func (FCFS) GetHead(queue []*request.Request, ch Channel, spec dram.Spec) (*request.Request, bool) {
	return oldest(queue)
}

// FRFCFS is "first ready, first come, first served": among requests whose
// bank is currently open on the right row, prefer the oldest; otherwise
// fall back to the oldest request overall.
type FRFCFS struct{}

func (FRFCFS) GetHead(queue []*request.Request, ch Channel, spec dram.Spec) (*request.Request, bool) {
	var bestHit *request.Request
	for _, r := range queue {
		if !isRowHit(ch, spec, r) {
			continue
		}
		if bestHit == nil || r.Arrive < bestHit.Arrive {
			bestHit = r
		}
	}
	if bestHit != nil {
		return bestHit, true
	}
	return oldest(queue)
}

// FRFCFSPriorHit is FRFCFS but gives row hits absolute priority in queue
// scan order rather than by arrival time among hits — a cheaper, less
// starvation-resistant variant used when hit-rate matters more than
// fairness.
type FRFCFSPriorHit struct{}

func (FRFCFSPriorHit) GetHead(queue []*request.Request, ch Channel, spec dram.Spec) (*request.Request, bool) {
	for _, r := range queue {
		if isRowHit(ch, spec, r) {
			return r, true
		}
	}
	return oldest(queue)
}

// FRFCFSCap is FRFCFS bounded to Cap consecutive row hits before forcing a
// row-miss/oldest selection, preventing a hot row from starving the rest
// of the queue indefinitely.
type FRFCFSCap struct {
	Cap int // default 4 if unset (<=0)

	consecutive int
}

func (c *FRFCFSCap) cap() int {
	if c.Cap <= 0 {
		return 4
	}
	return c.Cap
}

func (c *FRFCFSCap) GetHead(queue []*request.Request, ch Channel, spec dram.Spec) (*request.Request, bool) {
	if c.consecutive >= c.cap() {
		c.consecutive = 0
		return oldest(queue)
	}
	var bestHit *request.Request
	for _, r := range queue {
		if !isRowHit(ch, spec, r) {
			continue
		}
		if bestHit == nil || r.Arrive < bestHit.Arrive {
			bestHit = r
		}
	}
	if bestHit != nil {
		c.consecutive++
		return bestHit, true
	}
	c.consecutive = 0
	return oldest(queue)
}

// New constructs a Scheduler by name, as read from config ("frfcfs" is the
// default).
func New(name string) Scheduler {
	switch name {
	case "fcfs":
		return FCFS{}
	case "frfcfs_cap":
		return &FRFCFSCap{}
	case "frfcfs_priorhit":
		return FRFCFSPriorHit{}
	default:
		return FRFCFS{}
	}
}

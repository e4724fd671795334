// Package memory assembles the top-level DRAM model (§4.6): an address
// mapper fanning requests out across N independent Controllers, each
// owning its own device tree, queues and statistics.
package memory

import (
	"github.com/suprax/dramsim/internal/addrmap"
	"github.com/suprax/dramsim/internal/controller"
	"github.com/suprax/dramsim/internal/dram"
	"github.com/suprax/dramsim/internal/request"
	"github.com/suprax/dramsim/internal/rowpolicy"
	"github.com/suprax/dramsim/internal/scheduler"
	"github.com/suprax/dramsim/internal/stats"
)

// Memory is the entry point the cache hierarchy and CPU trace driver send
// requests into (§4.6, "Send").
type Memory struct {
	mapper      *addrmap.Mapper
	Controllers []*controller.Controller
	Clk         int64
}

// Config bundles the per-channel construction parameters a caller supplies
// (sourced from internal/config); NewSpec is called once per channel so
// each gets its own independent device tree, matching one physical DIMM.
type Config struct {
	Org         addrmap.Org
	Mode        addrmap.Mode
	NewSpec     func() dram.Spec
	SchedName   string
	RowPolName  string
	TimeoutN    int64
	ReadLatency int64
	QueueCap    int
}

// New builds a Memory with one Controller per channel named in cfg.Org.
func New(cfg Config, st *stats.Registry) *Memory {
	m := &Memory{mapper: addrmap.New(cfg.Org, cfg.Mode)}
	for ch := 0; ch < cfg.Org.Channels; ch++ {
		sched := scheduler.New(cfg.SchedName)
		rowPol := rowpolicy.New(cfg.RowPolName, cfg.TimeoutN)
		var chanStats *stats.Channel
		if ch < len(st.Channels) {
			chanStats = st.Channels[ch]
		} else {
			chanStats = stats.NewChannel(ch)
		}
		c := controller.New(ch, cfg.NewSpec(), sched, rowPol, cfg.ReadLatency, cfg.QueueCap, chanStats)
		m.Controllers = append(m.Controllers, c)
	}
	return m
}

// Send address-maps req and admits it into the owning channel's queues,
// reporting whether the queue had room (§4.6). Callers (the cache
// hierarchy's miss path) must retry a rejected request next cycle.
func (m *Memory) Send(req *request.Request) bool {
	req.AddrVec = m.mapper.Map(req.Addr)
	channel := req.AddrVec[0]
	return m.Controllers[channel].Enqueue(req)
}

// Tick advances every channel by one DRAM cycle.
func (m *Memory) Tick() {
	for _, c := range m.Controllers {
		c.Tick()
	}
	m.Clk++
}

// PendingRequests sums in-flight work across every channel, used by the
// top-level run loop to decide when the memory system has drained (§5).
func (m *Memory) PendingRequests() int {
	total := 0
	for _, c := range m.Controllers {
		total += c.PendingRequests()
	}
	return total
}

// NumChannels reports the channel count the address mapper was built with.
func (m *Memory) NumChannels() int { return m.mapper.NumChannels() }

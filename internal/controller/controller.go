// Package controller implements the per-channel memory controller (§4.3):
// request queues, the scheduler/row-policy-driven issue loop, the refresh
// driver, and write-mode hysteresis.
package controller

import (
	"github.com/rs/zerolog"

	"github.com/suprax/dramsim/internal/dram"
	"github.com/suprax/dramsim/internal/request"
	"github.com/suprax/dramsim/internal/rowpolicy"
	"github.com/suprax/dramsim/internal/scheduler"
	"github.com/suprax/dramsim/internal/simerr"
	"github.com/suprax/dramsim/internal/stats"
	"github.com/suprax/dramsim/internal/telemetry"
)

const defaultQueueCap = 32

// refreshAware is implemented by standards that expose their refresh
// interval (ddr3/ddr4 do); standards that don't simply never see REF
// injected by the driver.
type refreshAware interface {
	NREFI() int64
	NRFC() int64
}

// CmdTraceEntry is one line of the optional --print-cmd-trace /
// record_cmd_trace log (§4.3, §6).
type CmdTraceEntry struct {
	Clk int64
	Cmd string
	Req *request.Request
}

// Controller owns one channel's device tree and request queues.
type Controller struct {
	ChannelID   int
	Spec        dram.Spec
	Root        *dram.Node
	Sched       scheduler.Scheduler
	RowPol      rowpolicy.RowPolicy
	ReadLatency int64
	QueueCap    int
	Stats       *stats.Channel

	RecordCmdTrace bool
	PrintCmdTrace  bool
	CmdLog         []CmdTraceEntry

	ReadQ, WriteQ, OtherQ []*request.Request
	Pending               []*request.Request

	WriteMode bool
	Clk       int64

	logger zerolog.Logger

	nextRefresh     []int64
	refreshInterval int64

	outcomes map[*request.Request]rowOutcome
}

// rowOutcome is decided once, at a request's first decode, and consulted
// again only when that request's terminal command finally fires — by then
// the bank the request itself opened would otherwise make every access
// look like a hit (§6, §8 scenarios 1-3: the classification describes what
// this transaction needed, not the bank's state after it got what it
// needed).
type rowOutcome int

const (
	outcomeHit rowOutcome = iota
	outcomeMiss
	outcomeConflict
)

// New builds a Controller for one channel. queueCap<=0 uses the spec
// default of 32 (§3, Controller state).
func New(channelID int, spec dram.Spec, sched scheduler.Scheduler, rowPol rowpolicy.RowPolicy, readLatency int64, queueCap int, st *stats.Channel) *Controller {
	if queueCap <= 0 {
		queueCap = defaultQueueCap
	}
	root := dram.NewTree(spec)
	root.ID = channelID

	c := &Controller{
		ChannelID:   channelID,
		Spec:        spec,
		Root:        root,
		Sched:       sched,
		RowPol:      rowPol,
		ReadLatency: readLatency,
		QueueCap:    queueCap,
		Stats:       st,
		logger:      telemetry.Named("controller"),
		outcomes:    make(map[*request.Request]rowOutcome),
	}
	if ra, ok := spec.(refreshAware); ok {
		c.refreshInterval = ra.NREFI()
		numRanks := len(root.Children)
		c.nextRefresh = make([]int64, numRanks)
		for i := range c.nextRefresh {
			c.nextRefresh[i] = c.refreshInterval
		}
	}
	return c
}

// Enqueue admits req into the appropriate queue, rejecting if full (§4.3,
// Admission). Writes are coalesced into an existing matching WR when
// possible. req.AddrVec must already be populated (by Memory's address
// mapper) and consistent with this controller's channel (§3 invariant).
func (c *Controller) Enqueue(req *request.Request) bool {
	var q *[]*request.Request
	switch req.Type {
	case request.WriteReq:
		q = &c.WriteQ
		for _, existing := range c.WriteQ {
			if existing.Addr == req.Addr {
				c.Stats.WriteCoalesced++
				// The merged write departs at once so its callback
				// still fires exactly once.
				req.Arrive = c.Clk
				req.Depart = c.Clk
				c.Pending = append(c.Pending, req)
				return true
			}
		}
	case request.ReadReq, request.ExtensionReq:
		q = &c.ReadQ
	default:
		q = &c.OtherQ
	}

	if len(*q) >= c.QueueCap {
		return false
	}
	req.Arrive = c.Clk
	*q = append(*q, req)
	return true
}

// firstCommand returns decode(translate(req.Type), req.AddrVec) — the next
// command this request's translation sequence needs, whatever state the
// device tree is currently in.
func (c *Controller) firstCommand(req *request.Request) dram.Command {
	term := c.terminalCommand(req)
	return c.Root.Decode(term, req.AddrVec)
}

func (c *Controller) terminalCommand(req *request.Request) dram.Command {
	if c.RowPol.AutoPrecharge() && (req.Type == request.ReadReq || req.Type == request.WriteReq || req.Type == request.ExtensionReq) {
		return c.Spec.AutoPrechargeTranslate(req.Type)
	}
	return c.Spec.Translate(req.Type)
}

func (c *Controller) addrVecFor(cmd dram.Command, req *request.Request) []int {
	if hook, ok := c.Spec.(dram.GetAddrVecHook); ok {
		return hook.GetAddrVec(cmd, req, req.AddrVec)
	}
	return req.AddrVec
}

// isReady reports whether req's first pending command is legal right now.
func (c *Controller) isReady(req *request.Request) bool {
	cmd := c.firstCommand(req)
	vec := c.addrVecFor(cmd, req)
	return c.Root.Check(cmd, vec, c.Clk)
}

// Tick runs one cycle of the controller's issue loop (§4.3, steps 1-7),
// then advances Clk.
func (c *Controller) Tick() {
	c.retire()
	c.driveRefresh()
	c.updateWriteMode()

	queue := c.selectQueue()
	req, ok := pick(c.Sched, *queue, c.Root, c.Spec)
	if !ok || !c.isReady(req) {
		c.speculativePrecharge()
		c.rollCycleCounters()
		c.Clk++
		return
	}

	c.issue(req, queue)
	c.rollCycleCounters()
	c.Clk++
}

func pick(s scheduler.Scheduler, queue []*request.Request, root *dram.Node, spec dram.Spec) (*request.Request, bool) {
	return s.GetHead(queue, root, spec)
}

// retire fires the callback of, and pops, the oldest pending request once
// its departure time has arrived (§4.3 step 1).
func (c *Controller) retire() {
	if len(c.Pending) == 0 {
		return
	}
	if c.Pending[0].Depart <= c.Clk {
		req := c.Pending[0]
		c.Pending = c.Pending[1:]
		if req.Callback != nil {
			req.Callback(req)
		}
	}
}

// driveRefresh injects a REFRESH request into otherq for any rank whose
// refresh interval has elapsed (§4.3 step 2).
func (c *Controller) driveRefresh() {
	if c.refreshInterval == 0 {
		return
	}
	for rank := range c.nextRefresh {
		if c.Clk < c.nextRefresh[rank] {
			continue
		}
		if len(c.OtherQ) >= c.QueueCap {
			continue // try again next cycle
		}
		req := request.New(0, request.RefreshReq, -1, nil)
		req.Arrive = c.Clk
		req.AddrVec = []int{c.ChannelID, rank}
		c.OtherQ = append(c.OtherQ, req)
		c.nextRefresh[rank] += c.refreshInterval
	}
}

// updateWriteMode applies the hysteresis thresholds of §4.3 step 3.
func (c *Controller) updateWriteMode() {
	hi := 0.8 * float64(c.QueueCap)
	lo := 0.2 * float64(c.QueueCap)
	switch {
	case float64(len(c.WriteQ)) >= hi || len(c.ReadQ) == 0:
		c.WriteMode = true
	case float64(len(c.WriteQ)) <= lo && len(c.ReadQ) > 0:
		c.WriteMode = false
	}
}

// selectQueue implements §4.3 step 4: otherq first, else writeq/readq by
// write-mode.
func (c *Controller) selectQueue() *[]*request.Request {
	if len(c.OtherQ) > 0 {
		return &c.OtherQ
	}
	if c.WriteMode {
		return &c.WriteQ
	}
	return &c.ReadQ
}

// speculativePrecharge asks the row policy for a victim and issues PRE at
// it if legal (§4.3 step 5, fallback path).
func (c *Controller) speculativePrecharge() {
	victim, ok := c.RowPol.GetVictim(c.openBanks())
	if !ok {
		return
	}
	pre := c.Spec.Precharge()
	if !c.Root.Check(pre, victim, c.Clk) {
		return
	}
	c.Root.Update(pre, victim, c.Clk)
	c.logCmd(pre, victim, nil)
}

// issue decodes and applies the next command for req (§4.3 steps 6-7).
func (c *Controller) issue(req *request.Request, queue *[]*request.Request) {
	term := c.terminalCommand(req)
	cmd := c.Root.Decode(term, req.AddrVec)
	vec := c.addrVecFor(cmd, req)

	if req.IsFirstCommand {
		c.outcomes[req] = c.classifyFirst(cmd, term)
		if bankLevel, ok := c.bankScope(req); ok {
			c.Root.AtLevel(bankLevel, req.AddrVec).AddServingRequest()
		}
	}

	c.Root.Update(cmd, vec, c.Clk)
	req.LogCmd(c.Clk, c.Spec.CommandName(cmd))
	req.IsFirstCommand = false
	c.logCmd(cmd, vec, req)

	if req.Type == request.RefreshReq && cmd == term {
		if ra, ok := c.Spec.(refreshAware); ok {
			rankLevel := c.Spec.Scope(term)
			c.Root.AtLevel(rankLevel, vec).SetEndOfRefreshing(c.Clk + ra.NRFC())
		}
	}

	if cmd != term {
		return // prerequisite issued; request stays queued for later decode
	}

	if bankLevel, ok := c.bankScope(req); ok {
		c.Root.AtLevel(bankLevel, req.AddrVec).RemoveServingRequest()
	}

	outcome := c.outcomes[req]
	delete(c.outcomes, req)
	c.recordCompletion(req, outcome)
	c.removeFromQueue(queue, req)

	switch req.Type {
	case request.ReadReq, request.ExtensionReq:
		req.Depart = c.Clk + c.ReadLatency
	default:
		req.Depart = c.Clk
	}
	c.Pending = append(c.Pending, req)
}

// bankScope reports the tree level req's bank lives at, for requests whose
// lifetime (from first decode to terminal command) is bank-scoped. Refresh
// and other rank/channel-scoped request types report ok=false: they never
// occupy a bank the way a read/write does, so they're excluded from
// cur_serving_requests accounting.
func (c *Controller) bankScope(req *request.Request) (dram.Level, bool) {
	switch req.Type {
	case request.ReadReq, request.WriteReq, request.ExtensionReq:
		return c.Spec.Scope(c.Spec.Precharge()), true
	default:
		return 0, false
	}
}

// classifyFirst judges a request by the very first command its terminal
// translation decoded to: the command itself means the bank was already
// open on the right row (hit); the standard's precharge command means a
// different row had to be evicted first (conflict); anything else
// (necessarily an activate) means the bank was simply closed (miss).
func (c *Controller) classifyFirst(firstDecoded, term dram.Command) rowOutcome {
	switch firstDecoded {
	case term:
		return outcomeHit
	case c.Spec.Precharge():
		return outcomeConflict
	default:
		return outcomeMiss
	}
}

func (c *Controller) recordCompletion(req *request.Request, outcome rowOutcome) {
	switch req.Type {
	case request.ReadReq, request.ExtensionReq:
		c.Stats.ReadTransactions++
		c.recordOutcome(outcome)
		_ = c.Stats.ReadLatency.RecordValue(c.Clk + c.ReadLatency - req.Arrive)
	case request.WriteReq:
		c.Stats.WriteTransactions++
		c.recordOutcome(outcome)
	}
	c.Stats.TotalServingReqs++
}

func (c *Controller) recordOutcome(outcome rowOutcome) {
	switch outcome {
	case outcomeHit:
		c.Stats.RecordRowHit()
	case outcomeMiss:
		c.Stats.RecordRowMiss()
	case outcomeConflict:
		c.Stats.RecordRowConflict()
	}
}

func (c *Controller) removeFromQueue(queue *[]*request.Request, req *request.Request) {
	out := (*queue)[:0]
	found := false
	for _, r := range *queue {
		if r == req {
			found = true
			continue
		}
		out = append(out, r)
	}
	if !found {
		simerr.Invariant("Controller.removeFromQueue", "completed request missing from its queue")
	}
	*queue = out
}

func (c *Controller) logCmd(cmd dram.Command, vec []int, req *request.Request) {
	if !c.RecordCmdTrace && !c.PrintCmdTrace {
		return
	}
	entry := CmdTraceEntry{Clk: c.Clk, Cmd: c.Spec.CommandName(cmd), Req: req}
	if c.RecordCmdTrace {
		c.CmdLog = append(c.CmdLog, entry)
	}
	if c.PrintCmdTrace {
		c.logger.Debug().Int64("clk", c.Clk).Str("cmd", entry.Cmd).Ints("addr_vec", vec).Msg("issue")
	}
}

// openBanks enumerates every currently-open bank in this channel for the
// row policy (§4.5).
func (c *Controller) openBanks() []rowpolicy.BankInfo {
	bankLevel := c.Spec.Scope(c.Spec.Precharge())
	var banks []rowpolicy.BankInfo
	c.Root.Walk(bankLevel, func(n *dram.Node) {
		if !n.IsOpen() {
			return
		}
		banks = append(banks, rowpolicy.BankInfo{
			AddrVec:    n.PathAddrVec(),
			Open:       true,
			IdleCycles: c.Clk - n.LastActivity(),
		})
	})
	return banks
}

// rollCycleCounters advances the active/refresh/busy cycle accumulators
// once per tick (§4.2, refresh accounting). Active cycles are rolled up
// at Bank nodes, the only nodes AddServingRequest/RemoveServingRequest
// ever touch; refresh cycles are rolled up at Rank nodes, the scope REF
// itself issues and times at — rolling either one at the channel root
// would read a counter nothing ever sets.
func (c *Controller) rollCycleCounters() {
	bankLevel := c.Spec.Scope(c.Spec.Precharge())
	var active int64
	c.Root.Walk(bankLevel, func(n *dram.Node) {
		n.UpdateActiveCycle()
		active += n.TotalActiveCycles()
	})

	rankLevel := c.Spec.Scope(c.Spec.Translate(request.RefreshReq))
	var refreshed int64
	c.Root.Walk(rankLevel, func(n *dram.Node) {
		n.UpdateRefreshCycle(c.Clk)
		refreshed += n.TotalRefreshCycles()
	})

	if len(c.Pending) > 0 || len(c.ReadQ) > 0 || len(c.WriteQ) > 0 || len(c.OtherQ) > 0 {
		c.Root.UpdateBusyCycle()
	}
	c.Stats.TotalActiveCycles = active
	c.Stats.TotalRefreshCycles = refreshed
	c.Stats.TotalBusyCycles = c.Root.TotalBusyCycles()
}

// PendingRequests reports all in-flight work: queued plus awaiting
// departure. Used by Memory.PendingRequests (§4.6) and the top-level
// termination check (§5).
func (c *Controller) PendingRequests() int {
	return len(c.ReadQ) + len(c.WriteQ) + len(c.OtherQ) + len(c.Pending)
}

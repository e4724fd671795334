package dram

import "github.com/suprax/dramsim/internal/simerr"

// Node is one vertex of the hierarchical state/timing tree. Children are
// exclusively owned by their parent (§9, Tree ownership); sibling timing
// propagation is done by the parent iterating its own Children, so no
// upward pointers are required for it. Parent is kept only so PathAddrVec
// can rebuild a node's address vector.
type Node struct {
	Spec   Spec
	Level  Level
	ID     int
	Parent *Node

	State State
	// RowState holds per-row state for rows opened since the last
	// precharge at this node (only meaningful at the level just above
	// Row; rows themselves are never instantiated as nodes, §3-iv).
	RowState map[int]State

	Children []*Node

	next map[Command]int64
	prev map[Command][]int64 // bounded deque, size = max dist referenced

	lastActivity int64 // clk of the last own-timing update at this node

	// Refresh/active/busy-cycle accounting (§4.2, "Refresh accounting").
	endOfRefreshing      int64
	curServingRequests   int
	totalRefreshCycles   int64
	totalActiveCycles    int64
	totalBusyCycles      int64
}

// NewTree builds the full tree shape mandated by spec.OrgCount per level
// (§3-i). levels is spec.Levels(); depth starts the recursion at the root
// (Channel, depth 0).
func NewTree(spec Spec) *Node {
	levels := spec.Levels()
	return buildNode(spec, levels, 0, nil, 0)
}

func buildNode(spec Spec, levels []Level, depth int, parent *Node, id int) *Node {
	lvl := levels[depth]
	n := &Node{
		Spec:     spec,
		Level:    lvl,
		ID:       id,
		Parent:   parent,
		State:    spec.StartState(lvl),
		RowState: make(map[int]State),
		next:     make(map[Command]int64),
		prev:     make(map[Command][]int64),
	}
	if depth+1 < len(levels) {
		count := spec.OrgCount(levels[depth+1])
		n.Children = make([]*Node, count)
		for i := 0; i < count; i++ {
			n.Children[i] = buildNode(spec, levels, depth+1, n, i)
		}
	}
	return n
}

// child returns the node's child addressed by addrVec, or nil if addrVec
// doesn't name one (either out of children or the sentinel -1 used for
// "no target").
func (n *Node) child(addrVec []int) *Node {
	if len(n.Children) == 0 {
		return nil
	}
	idx := n.Level + 1
	if int(idx) >= len(addrVec) {
		return nil
	}
	i := addrVec[idx]
	if i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// Decode starts at this node and walks prereq[level][cmd] down the tree,
// returning the first non-None prerequisite it finds, or cmd itself once
// no level has one (§4.2, decode).
func (n *Node) Decode(cmd Command, addrVec []int) Command {
	node := n
	for {
		childID := -1
		idx := node.Level + 1
		if int(idx) < len(addrVec) {
			childID = addrVec[idx]
		}
		if pre := node.Spec.Prereq(node, cmd, childID); pre != NoCommand {
			return pre
		}
		next := node.child(addrVec)
		if next == nil {
			return cmd
		}
		node = next
	}
}

// Check reports whether cmd at addrVec is legal at clk: every ancestor
// down to Spec.Scope(cmd) must have clk >= its next[cmd] (§4.2, check).
func (n *Node) Check(cmd Command, addrVec []int, clk int64) bool {
	node := n
	for {
		if clk < node.next[cmd] {
			return false
		}
		if node.Level >= node.Spec.Scope(cmd) || len(node.Children) == 0 {
			return true
		}
		idx := node.Level + 1
		if int(idx) >= len(addrVec) || addrVec[idx] < 0 {
			return true
		}
		next := node.child(addrVec)
		if next == nil {
			return true
		}
		node = next
	}
}

// GetNext reports the earliest clk at which cmd could fire, taking the max
// of next[cmd] across the path from root to scope (§4.2, get_next).
func (n *Node) GetNext(cmd Command, addrVec []int, curClk int64) int64 {
	best := curClk
	node := n
	for {
		if node.next[cmd] > best {
			best = node.next[cmd]
		}
		if node.Level >= node.Spec.Scope(cmd) || len(node.Children) == 0 {
			return best
		}
		next := node.child(addrVec)
		if next == nil {
			return best
		}
		node = next
	}
}

// Update applies cmd at addrVec/clk in two passes: state transitions down
// to scope, then timing propagation (own prev/next plus sibling fan-out)
// at the scope subtree (§4.2, update).
func (n *Node) Update(cmd Command, addrVec []int, clk int64) {
	n.updateState(cmd, addrVec)
	n.updateTiming(cmd, addrVec, clk)
}

func (n *Node) updateState(cmd Command, addrVec []int) {
	node := n
	for {
		childID := -1
		idx := node.Level + 1
		if int(idx) < len(addrVec) {
			childID = addrVec[idx]
		}
		node.Spec.Lambda(node, cmd, childID)
		if node.Level >= node.Spec.Scope(cmd) {
			return
		}
		next := node.child(addrVec)
		if next == nil {
			return
		}
		node = next
	}
}

func (n *Node) updateTiming(cmd Command, addrVec []int, clk int64) {
	node := n
	for {
		if node.Level >= node.Spec.Scope(cmd) {
			node.applyOwnTiming(cmd, clk)
			return
		}
		next := node.child(addrVec)
		if next == nil {
			node.applyOwnTiming(cmd, clk)
			return
		}
		// Propagate sibling-scoped timing entries to node's other
		// children before descending (they share this parent).
		node.applySiblingTiming(cmd, next, clk)
		node = next
	}
}

// applyOwnTiming pops the oldest recorded issuance of cmd, pushes clk, and
// raises next[t.Cmd] for every timing-table row anchored on cmd, using the
// t.Dist-th most recent issuance (1-indexed, most recent = dist 1).
func (n *Node) applyOwnTiming(cmd Command, clk int64) {
	entries := n.Spec.Timing(n.Level, cmd)
	maxDist := 1
	for _, e := range entries {
		if !e.Sibling && e.Dist > maxDist {
			maxDist = e.Dist
		}
	}
	n.lastActivity = clk
	hist := n.prev[cmd]
	hist = append(hist, clk)
	if len(hist) > maxDist {
		hist = hist[len(hist)-maxDist:]
	}
	n.prev[cmd] = hist

	for _, e := range entries {
		if e.Sibling {
			continue
		}
		idx := len(hist) - e.Dist
		if idx < 0 {
			continue // not enough history yet for this dist
		}
		base := hist[idx]
		cand := base + e.Val
		if cand > n.next[e.Cmd] {
			n.next[e.Cmd] = cand
		}
	}
}

// applySiblingTiming applies sibling=true, dist=1 timing entries anchored
// on cmd at the children's level (exempt.Level) to every child of n other
// than exempt, using
// clk+t.Val directly (§4.2: "for sibling subtrees ... using clk + t.val").
func (n *Node) applySiblingTiming(cmd Command, exempt *Node, clk int64) {
	entries := n.Spec.Timing(exempt.Level, cmd)
	var siblingEntries []TimingEntry
	for _, e := range entries {
		if e.Sibling && e.Dist == 1 {
			siblingEntries = append(siblingEntries, e)
		}
	}
	if len(siblingEntries) == 0 {
		return
	}
	for _, sib := range n.Children {
		if sib == exempt {
			continue
		}
		for _, e := range siblingEntries {
			cand := clk + e.Val
			if cand > sib.next[e.Cmd] {
				sib.next[e.Cmd] = cand
			}
		}
	}
}

// CheckRowHit traverses analogously to Check, consulting Spec.RowHit at
// each level and returning the first definitive answer (§4.2, "Row-hit
// probe"); used for statistics only, never for legality.
func (n *Node) CheckRowHit(cmd Command, addrVec []int) bool {
	node := n
	for {
		childID := -1
		idx := node.Level + 1
		if int(idx) < len(addrVec) {
			childID = addrVec[idx]
		}
		if hit, definitive := node.Spec.RowHit(node, cmd, childID); definitive {
			return hit
		}
		next := node.child(addrVec)
		if next == nil {
			return false
		}
		node = next
	}
}

// UpdateRefreshCycle increments total_refresh_cycles iff clk is still
// within this node's end-of-refreshing window.
func (n *Node) UpdateRefreshCycle(clk int64) {
	if clk <= n.endOfRefreshing {
		n.totalRefreshCycles++
	}
}

// UpdateActiveCycle increments total_active_cycles, guarded by
// cur_serving_requests > 0 (§4.2).
func (n *Node) UpdateActiveCycle() {
	if n.curServingRequests > 0 {
		n.totalActiveCycles++
	}
}

// UpdateBusyCycle increments total_busy_cycles unconditionally, matching
// the "update_busy_cycle analogously" wording of §4.2 for the unguarded
// variant; the controller calls it on the channel root only.
func (n *Node) UpdateBusyCycle() {
	n.totalBusyCycles++
}

func (n *Node) AddServingRequest()    { n.curServingRequests++ }
func (n *Node) RemoveServingRequest() {
	if n.curServingRequests == 0 {
		simerr.Invariant("Node.RemoveServingRequest", "cur_serving_requests underflow")
	}
	n.curServingRequests--
}

func (n *Node) TotalRefreshCycles() int64 { return n.totalRefreshCycles }
func (n *Node) TotalActiveCycles() int64  { return n.totalActiveCycles }
func (n *Node) TotalBusyCycles() int64    { return n.totalBusyCycles }

// SetEndOfRefreshing raises end_of_refreshing to the max of its current
// value and the given clk, used when a refresh-type command's update pass
// bumps this node's timing.
func (n *Node) SetEndOfRefreshing(clk int64) {
	if clk > n.endOfRefreshing {
		n.endOfRefreshing = clk
	}
}

// NextOf exposes next[cmd] at this node, for inspecting a specific node
// without doing a full Check.
func (n *Node) NextOf(cmd Command) int64 { return n.next[cmd] }

// AtLevel walks from n to the descendant addressed by addrVec at the
// given level (used by the controller to reach a request's bank or rank
// node).
func (n *Node) AtLevel(level Level, addrVec []int) *Node {
	node := n
	for node.Level < level {
		next := node.child(addrVec)
		if next == nil {
			return node
		}
		node = next
	}
	return node
}

// PathAddrVec reconstructs the address-vector prefix identifying n: the
// child ID at every level from the root down to n, indexed by Level.
func (n *Node) PathAddrVec() []int {
	ids := make([]int, n.Level+1)
	for cur := n; cur != nil; cur = cur.Parent {
		ids[cur.Level] = cur.ID
	}
	return ids
}

// Walk visits every descendant node (including n) whose Level equals
// level, calling fn on each. Used by row policies to enumerate banks
// without the caller needing to know the standard's level constants.
func (n *Node) Walk(level Level, fn func(*Node)) {
	if n.Level == level {
		fn(n)
		return
	}
	for _, c := range n.Children {
		c.Walk(level, fn)
	}
}

// LastActivity returns the clk of the last command whose own-timing
// update touched this node (i.e. the last time this node was the scope of
// an issued command).
func (n *Node) LastActivity() int64 { return n.lastActivity }

// IsOpen reports whether this node currently has an open row tracked
// (invariant iv: row-state entries exist only while open since the last
// precharge) — the standard-agnostic signal row policies use to find
// victims without knowing the standard's own State values.
func (n *Node) IsOpen() bool { return len(n.RowState) > 0 }

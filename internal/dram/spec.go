// Package dram implements the standard-agnostic hierarchical device-state
// and timing engine (§4.1-§4.2 of the design): a tree of Nodes shaped by a
// per-standard Spec trait, answering decode/check/update/get_next against
// that standard's prerequisite, row-hit, state-transition and timing
// tables. The tables are data; this package is the engine that walks them.
package dram

import "github.com/suprax/dramsim/internal/request"

// Level indexes a rung of the device hierarchy: Channel < Rank < Bank
// [< Subarray] < Row < Column. Standards without subarrays simply never
// return a Subarray level from Spec.Levels().
type Level int

// Command is a standard-specific DRAM command opcode (ACT, PRE, RD, ...).
// NoCommand is the sentinel "no prerequisite" / "not applicable" value.
type Command int

const NoCommand Command = -1

// State is a standard-specific device or row state (Idle, Active/RowOpen,
// Refreshing, PowerDown, ...).
type State int

// TimingEntry describes one row of a per-(level,cmd) timing table: after
// the owning command fires, Cmd at this node (or sibling nodes sharing the
// same parent, when Sibling is true) may not fire before
// clk + Val, using the Dist-th most recent past issuance of the owning
// command.
type TimingEntry struct {
	Cmd     Command
	Dist    int
	Val     int64
	Sibling bool
}

// Spec is the per-standard trait (§4.1). A realization supplies these
// tables; Node.decode/check/update/get_next are standard-agnostic and only
// ever call back into Spec.
type Spec interface {
	// Name identifies the standard, e.g. "DDR3", used in config/CLI and
	// stat metric prefixes.
	Name() string

	// Levels returns the ordered hierarchy of tree nodes, root-to-leaf,
	// e.g. [Channel, Rank, Bank] for DDR3/DDR4. Every listed level is
	// instantiated as nodes, so Row and Column never appear here: they
	// are addressed through addr_vec only.
	Levels() []Level
	LevelName(l Level) string

	// OrgCount returns org_entry.count[level]: how many children a node
	// at the parent of `level` should have at this level. It is consulted
	// only for the levels Levels() lists; rows are never instantiated as
	// nodes (§3) and are tracked in the leaf node's RowState instead.
	OrgCount(l Level) int

	// StartState is the initial per-node state for nodes at this level.
	StartState(l Level) State

	// Translate returns the terminal command for a request type: the one
	// whose issue completes the request (typically RD/WR/REF).
	Translate(t request.Type) Command

	// AutoPrechargeTranslate returns the auto-precharge form of a
	// terminal read/write command (RDA/WRA), used when the active
	// RowPolicy reports AutoPrecharge()==true.
	AutoPrechargeTranslate(t request.Type) Command

	// Precharge returns the standard's precharge command, the one a
	// RowPolicy's speculative victim is issued with.
	Precharge() Command

	// Prereq returns a prerequisite command required before `cmd` can
	// proceed into the child addressed by childID, or NoCommand if none
	// (terminating recursion at this level).
	Prereq(n *Node, cmd Command, childID int) Command

	// RowHit reports whether `cmd` at `childID` is a row-buffer hit at
	// this node, when this level is definitive for that judgement
	// (definitive=false lets the caller keep recursing).
	RowHit(n *Node, cmd Command, childID int) (hit bool, definitive bool)

	// Lambda applies the state transition(s) triggered by issuing `cmd`
	// at this node, targeting child childID: addrVec[level+1], or -1 when
	// addrVec does not reach that far. At a leaf Bank node childID is the
	// row index.
	Lambda(n *Node, cmd Command, childID int)

	// Timing returns the timing table rows anchored on `cmd` at this
	// level.
	Timing(l Level, cmd Command) []TimingEntry

	// Scope is the deepest level at which legality for `cmd` is decided;
	// check/update recursion for `cmd` stops there.
	Scope(cmd Command) Level

	// CommandName/StateName support human-readable command-trace logs.
	CommandName(c Command) string
	StateName(s State) string
}

// GetAddrVecHook lets a standard specialize the address vector used for a
// command — e.g. SALP's PRE_OTHER, which must name the offending subarray
// in the same bank rather than the request's own addr_vec (§4.3). Standards
// that need no specialization simply don't implement it; Controller type
// asserts for it.
type GetAddrVecHook interface {
	GetAddrVec(cmd Command, req *request.Request, addrVec []int) []int
}

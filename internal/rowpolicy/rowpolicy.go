// Package rowpolicy implements the pluggable "should we proactively close
// a row" strategies (§4.5): Closed, Opened, Timeout, ClosedAP.
package rowpolicy

// BankInfo is the minimal view of one open bank a RowPolicy needs: its
// full address vector (enough to decode/check/update a PRE at it) and how
// long it has sat idle.
type BankInfo struct {
	AddrVec   []int
	Open      bool
	IdleCycles int64
}

// RowPolicy decides which open bank, if any, to speculatively precharge
// this cycle, and whether terminal read/write commands should themselves
// carry an auto-precharge (RDA/WRA) instead of a bare RD/WR.
type RowPolicy interface {
	// GetVictim returns the address vector of a bank to precharge
	// opportunistically, or ok=false if none should be closed this cycle.
	GetVictim(banks []BankInfo) (addrVec []int, ok bool)
	// AutoPrecharge reports whether the controller should translate
	// terminal read/writes to their auto-precharge form.
	AutoPrecharge() bool
}

// Closed always wants every open bank closed as soon as possible: it names
// the first open bank it is given, however recently that bank was used.
type Closed struct{}

func (Closed) GetVictim(banks []BankInfo) ([]int, bool) {
	for _, b := range banks {
		if b.Open {
			return b.AddrVec, true
		}
	}
	return nil, false
}
func (Closed) AutoPrecharge() bool { return false }

// Opened never speculatively precharges; rows stay open until a later
// access forces a conflict-driven PRE.
type Opened struct{}

func (Opened) GetVictim([]BankInfo) ([]int, bool) { return nil, false }
func (Opened) AutoPrecharge() bool                { return false }

// Timeout precharges a row that has sat idle for at least N cycles.
type Timeout struct {
	N int64
}

func (t Timeout) GetVictim(banks []BankInfo) ([]int, bool) {
	for _, b := range banks {
		if b.Open && b.IdleCycles >= t.N {
			return b.AddrVec, true
		}
	}
	return nil, false
}
func (t Timeout) AutoPrecharge() bool { return false }

// ClosedAP never issues a separate speculative PRE; instead every terminal
// read/write auto-precharges (RDA/WRA), achieving the same "close after
// use" effect one command earlier.
type ClosedAP struct{}

func (ClosedAP) GetVictim([]BankInfo) ([]int, bool) { return nil, false }
func (ClosedAP) AutoPrecharge() bool                { return true }

// New constructs a RowPolicy by name ("closed" is the default); timeoutN
// only matters for "timeout".
func New(name string, timeoutN int64) RowPolicy {
	switch name {
	case "opened":
		return Opened{}
	case "timeout":
		return Timeout{N: timeoutN}
	case "closedap":
		return ClosedAP{}
	default:
		return Closed{}
	}
}

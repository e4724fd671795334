// Package ddr3 realizes the dram.Spec trait for DDR3: three tree levels
// (Channel, Rank, Bank — rows and columns are addressed but never
// instantiated as nodes, per the engine's invariant), the JEDEC command set,
// and a couple of built-in speed bins lifted from the original ramulator
// DDR3 parameter tables.
package ddr3

import (
	"github.com/suprax/dramsim/internal/dram"
	"github.com/suprax/dramsim/internal/request"
)

// Levels.
const (
	Channel dram.Level = iota
	Rank
	Bank
)

// Commands.
const (
	ACT dram.Command = iota
	PRE
	PREA
	RD
	WR
	RDA
	WRA
	REF
	PDE
	PDX
	SRE
	SRX
)

var cmdNames = map[dram.Command]string{
	ACT: "ACT", PRE: "PRE", PREA: "PREA", RD: "RD", WR: "WR",
	RDA: "RDA", WRA: "WRA", REF: "REF", PDE: "PDE", PDX: "PDX",
	SRE: "SRE", SRX: "SRX",
}

// States.
const (
	RankPowerUp dram.State = iota
	RankPowerDown
	RankSelfRefresh
	BankClosed
	BankOpened
)

var stateNames = map[dram.State]string{
	RankPowerUp: "PowerUp", RankPowerDown: "PowerDown", RankSelfRefresh: "SelfRefresh",
	BankClosed: "Closed", BankOpened: "Opened",
}

// Org describes the channel/rank/bank/row/column organization of a DDR3
// device, analogous to the original's org_entry.
type Org struct {
	Channels int
	Ranks    int
	Banks    int
	Rows     int
	Cols     int
}

// Speed carries the per-bin timing parameters, all in DRAM cycles (the
// original's Speed entry, e.g. DDR3_1600K).
type Speed struct {
	Name string
	NCL  int64
	NRCD int64
	NRP  int64
	NRAS int64
	NRC  int64
	NCWL int64
	NRTP int64
	NWTR int64
	NWR  int64
	NRRD int64
	NCCD int64
	NRFC int64
	NREFI int64
}

// DDR3_1600K is the original ramulator's default DDR3-1600K speed bin.
var DDR3_1600K = Speed{
	Name: "DDR3_1600K",
	NCL: 11, NRCD: 11, NRP: 11, NRAS: 28, NRC: 39, NCWL: 8,
	NRTP: 6, NWTR: 6, NWR: 12, NRRD: 5, NCCD: 4, NRFC: 160, NREFI: 6240,
}

// DDR3_2133K is a faster bin, used to demonstrate the engine is parametric
// in speed as well as standard.
var DDR3_2133K = Speed{
	Name: "DDR3_2133K",
	NCL: 14, NRCD: 14, NRP: 14, NRAS: 35, NRC: 49, NCWL: 10,
	NRTP: 8, NWTR: 8, NWR: 16, NRRD: 6, NCCD: 5, NRFC: 214, NREFI: 8320,
}

// Standard implements dram.Spec for DDR3.
type Standard struct {
	org   Org
	speed Speed
}

func New(org Org, speed Speed) *Standard {
	return &Standard{org: org, speed: speed}
}

func (s *Standard) Name() string { return "DDR3" }

func (s *Standard) Levels() []dram.Level { return []dram.Level{Channel, Rank, Bank} }

func (s *Standard) LevelName(l dram.Level) string {
	switch l {
	case Channel:
		return "channel"
	case Rank:
		return "rank"
	case Bank:
		return "bank"
	default:
		return "?"
	}
}

func (s *Standard) OrgCount(l dram.Level) int {
	switch l {
	case Rank:
		return s.org.Ranks
	case Bank:
		return s.org.Banks
	default:
		return 0
	}
}

func (s *Standard) StartState(l dram.Level) dram.State {
	switch l {
	case Rank:
		return RankPowerUp
	case Bank:
		return BankClosed
	default:
		return 0
	}
}

func (s *Standard) Translate(t request.Type) dram.Command {
	switch t {
	case request.ReadReq, request.ExtensionReq:
		return RD
	case request.WriteReq:
		return WR
	case request.RefreshReq:
		return REF
	case request.PowerDownReq:
		return PDE
	case request.SelfRefreshReq:
		return SRE
	default:
		return RD
	}
}

func (s *Standard) AutoPrechargeTranslate(t request.Type) dram.Command {
	switch t {
	case request.WriteReq:
		return WRA
	default:
		return RDA
	}
}

func (s *Standard) Precharge() dram.Command { return PRE }

// rowOf returns the row index named by addrVec at the Row position, which
// immediately follows Bank in the full address vector (Channel, Rank,
// Bank, Row, Column, ...).
func rowOf(childID int, addrVec []int) int {
	// childID here is addrVec[Bank+1] == addrVec[Row]; Prereq/RowHit both
	// pass addrVec[level+1] as childID, and level+1 for Bank is Row.
	return childID
}

func (s *Standard) Prereq(n *dram.Node, cmd dram.Command, childID int) dram.Command {
	switch n.Level {
	case Bank:
		switch cmd {
		case RD, WR, RDA, WRA:
			if n.State == BankClosed {
				return ACT
			}
			row := rowOf(childID, nil)
			if st, ok := n.RowState[row]; !ok || st != BankOpened {
				return PRE
			}
			return dram.NoCommand
		case ACT:
			if n.State == BankOpened {
				row := rowOf(childID, nil)
				if st, ok := n.RowState[row]; !ok || st != BankOpened {
					return PRE
				}
			}
			return dram.NoCommand
		default:
			return dram.NoCommand
		}
	default:
		return dram.NoCommand
	}
}

func (s *Standard) RowHit(n *dram.Node, cmd dram.Command, childID int) (bool, bool) {
	if n.Level != Bank {
		return false, false
	}
	switch cmd {
	case RD, WR, RDA, WRA, ACT:
		row := rowOf(childID, nil)
		st, ok := n.RowState[row]
		return ok && st == BankOpened && n.State == BankOpened, true
	default:
		return false, true
	}
}

func (s *Standard) Lambda(n *dram.Node, cmd dram.Command, childID int) {
	switch n.Level {
	case Bank:
		switch cmd {
		case ACT:
			row := rowOf(childID, nil)
			n.State = BankOpened
			for k := range n.RowState {
				delete(n.RowState, k)
			}
			n.RowState[row] = BankOpened
		case PRE, PREA:
			n.State = BankClosed
			for k := range n.RowState {
				delete(n.RowState, k)
			}
		case RDA, WRA:
			n.State = BankClosed
			for k := range n.RowState {
				delete(n.RowState, k)
			}
		}
	case Rank:
		switch cmd {
		case PDE:
			n.State = RankPowerDown
		case PDX:
			n.State = RankPowerUp
		case SRE:
			n.State = RankSelfRefresh
		case SRX:
			n.State = RankPowerUp
		}
	}
}

func (s *Standard) Scope(cmd dram.Command) dram.Level {
	switch cmd {
	case ACT, PRE, RD, WR, RDA, WRA:
		return Bank
	case PREA, REF, PDE, PDX, SRE, SRX:
		return Rank
	default:
		return Channel
	}
}

func (s *Standard) Timing(l dram.Level, cmd dram.Command) []dram.TimingEntry {
	sp := s.speed
	switch l {
	case Bank:
		switch cmd {
		case ACT:
			return []dram.TimingEntry{
				{Cmd: RD, Dist: 1, Val: sp.NRCD},
				{Cmd: WR, Dist: 1, Val: sp.NRCD},
				{Cmd: RDA, Dist: 1, Val: sp.NRCD},
				{Cmd: WRA, Dist: 1, Val: sp.NRCD},
				{Cmd: PRE, Dist: 1, Val: sp.NRAS},
				{Cmd: ACT, Dist: 1, Val: sp.NRC},
				{Cmd: ACT, Dist: 1, Val: sp.NRRD, Sibling: true},
			}
		case PRE, PREA:
			return []dram.TimingEntry{
				{Cmd: ACT, Dist: 1, Val: sp.NRP},
			}
		case RD:
			return []dram.TimingEntry{
				{Cmd: RD, Dist: 1, Val: sp.NCCD},
				{Cmd: WR, Dist: 1, Val: sp.NCL + sp.NCCD - sp.NCWL},
				{Cmd: PRE, Dist: 1, Val: sp.NRTP},
			}
		case WR:
			return []dram.TimingEntry{
				{Cmd: WR, Dist: 1, Val: sp.NCCD},
				{Cmd: RD, Dist: 1, Val: sp.NCWL + sp.NCCD + sp.NWTR},
				{Cmd: PRE, Dist: 1, Val: sp.NCWL + sp.NWR},
			}
		case RDA:
			return []dram.TimingEntry{
				{Cmd: ACT, Dist: 1, Val: sp.NRTP + sp.NRP},
			}
		case WRA:
			return []dram.TimingEntry{
				{Cmd: ACT, Dist: 1, Val: sp.NCWL + sp.NWR + sp.NRP},
			}
		}
	case Rank:
		switch cmd {
		case REF:
			return []dram.TimingEntry{
				{Cmd: ACT, Dist: 1, Val: sp.NRFC},
			}
		case PDX, SRX:
			return []dram.TimingEntry{
				{Cmd: ACT, Dist: 1, Val: sp.NRCD},
			}
		}
	}
	return nil
}

func (s *Standard) CommandName(c dram.Command) string { return cmdNames[c] }
func (s *Standard) StateName(st dram.State) string     { return stateNames[st] }

// NREFI exposes the refresh interval so the Controller's refresh driver
// (scheduled via Speed, not a Spec method — the engine stays
// standard-agnostic) knows when to inject REF.
func (s *Standard) NREFI() int64 { return s.speed.NREFI }
func (s *Standard) NRFC() int64  { return s.speed.NRFC }
func (s *Standard) Org() Org     { return s.org }

// Package ddr4 realizes the dram.Spec trait for DDR4. The command/state
// shape mirrors ddr3 (the engine's tables are standard data, not code —
// §9); this realization differs only in its timing table's numeric
// values. DDR4's bank-group tCCD_L/tCCD_S split is not modeled: a single
// NCCD applies uniformly regardless of bank group (see DESIGN.md for the
// bank-group simplification).
package ddr4

import (
	"github.com/suprax/dramsim/internal/dram"
	"github.com/suprax/dramsim/internal/request"
)

const (
	Channel dram.Level = iota
	Rank
	Bank
)

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

type Org struct {
	Channels int
	Ranks    int
	Banks    int
	Rows     int
	Cols     int
}

type Speed struct {
	Name  string
	NCL   int64
	NRCD  int64
	NRP   int64
	NRAS  int64
	NRC   int64
	NCWL  int64
	NRTP  int64
	NWTR  int64
	NWR   int64
	NRRD  int64
	NCCD  int64
	NRFC  int64
	NREFI int64
}

// DDR4_2400R is a representative DDR4-2400 speed bin (cycles at the DRAM
// clock), numerically distinct from any DDR3 bin to demonstrate the
// engine is standard- and speed-parametric.
var DDR4_2400R = Speed{
	Name: "DDR4_2400R",
	NCL: 16, NRCD: 16, NRP: 16, NRAS: 39, NRC: 55, NCWL: 12,
	NRTP: 9, NWTR: 9, NWR: 18, NRRD: 6, NCCD: 4, NRFC: 420, NREFI: 9360,
}

type Standard struct {
	org   Org
	speed Speed
}

func New(org Org, speed Speed) *Standard { return &Standard{org: org, speed: speed} }

func (s *Standard) Name() string { return "DDR4" }

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

func (s *Standard) Prereq(n *dram.Node, cmd dram.Command, childID int) dram.Command {
	if n.Level != Bank {
		return dram.NoCommand
	}
	switch cmd {
	case RD, WR, RDA, WRA:
		if n.State == BankClosed {
			return ACT
		}
		if st, ok := n.RowState[childID]; !ok || st != BankOpened {
			return PRE
		}
		return dram.NoCommand
	case ACT:
		if n.State == BankOpened {
			if st, ok := n.RowState[childID]; !ok || st != BankOpened {
				return PRE
			}
		}
		return dram.NoCommand
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
		st, ok := n.RowState[childID]
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
			n.State = BankOpened
			for k := range n.RowState {
				delete(n.RowState, k)
			}
			n.RowState[childID] = BankOpened
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
			return []dram.TimingEntry{{Cmd: ACT, Dist: 1, Val: sp.NRP}}
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
			return []dram.TimingEntry{{Cmd: ACT, Dist: 1, Val: sp.NRTP + sp.NRP}}
		case WRA:
			return []dram.TimingEntry{{Cmd: ACT, Dist: 1, Val: sp.NCWL + sp.NWR + sp.NRP}}
		}
	case Rank:
		switch cmd {
		case REF:
			return []dram.TimingEntry{{Cmd: ACT, Dist: 1, Val: sp.NRFC}}
		case PDX, SRX:
			return []dram.TimingEntry{{Cmd: ACT, Dist: 1, Val: sp.NRCD}}
		}
	}
	return nil
}

func (s *Standard) CommandName(c dram.Command) string { return cmdNames[c] }
func (s *Standard) StateName(st dram.State) string     { return stateNames[st] }

func (s *Standard) NREFI() int64 { return s.speed.NREFI }
func (s *Standard) NRFC() int64  { return s.speed.NRFC }
func (s *Standard) Org() Org     { return s.org }

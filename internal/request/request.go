// Package request defines the Request value passed from the core/trace
// layer down through the cache hierarchy into the per-channel Controller,
// and the Callback contract invoked exactly once on departure.
package request

// Type enumerates the kinds of request the memory system accepts.
type Type int

const (
	ReadReq Type = iota
	WriteReq
	RefreshReq
	PowerDownReq
	SelfRefreshReq
	ExtensionReq // migration, used by e.g. SALP/TL-DRAM/DSARP
)

func (t Type) String() string {
	switch t {
	case ReadReq:
		return "READ"
	case WriteReq:
		return "WRITE"
	case RefreshReq:
		return "REFRESH"
	case PowerDownReq:
		return "POWERDOWN"
	case SelfRefreshReq:
		return "SELFREFRESH"
	case ExtensionReq:
		return "EXTENSION"
	default:
		return "UNKNOWN"
	}
}

// Callback is invoked exactly once per accepted request, after all of its
// DRAM commands have been issued and, for reads, after read_latency has
// elapsed.
type Callback func(*Request)

// Request is immutable after construction except for Arrive, Depart,
// AddrVec, IsFirstCommand and the accumulated Cmds log. Once enqueued in a
// Controller queue, AddrVec is fully populated and consistent with that
// channel's id.
type Request struct {
	Addr    uint64 // byte address
	AddrVec []int  // per-level indices after address mapping
	Type    Type
	Callback Callback
	CoreID  int

	Arrive int64
	Depart int64

	IsFirstCommand bool
	Cmds           []CmdRecord // accumulated for statistics / --print-cmd-trace
}

// CmdRecord is one entry in a request's command issue history.
type CmdRecord struct {
	Clk int64
	Cmd string
}

// New constructs a Request with CoreID and callback bound; Arrive/AddrVec
// are filled in later by Controller.Enqueue / Memory.Send.
func New(addr uint64, typ Type, coreID int, cb Callback) *Request {
	return &Request{Addr: addr, Type: typ, CoreID: coreID, Callback: cb, IsFirstCommand: true}
}

// LogCmd appends a command to the request's issue history.
func (r *Request) LogCmd(clk int64, cmd string) {
	r.Cmds = append(r.Cmds, CmdRecord{Clk: clk, Cmd: cmd})
}

// Package stats is the explicit statistics registry threaded through
// construction (§9, "Global statistics registry"): it replaces the
// process-wide auto-registering stat objects of the original with a
// Registry built at Memory construction, populated by each
// sub-component, and dumped once at Finish().
package stats

import (
	"fmt"
	"os"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"
)

// Channel accumulates the per-channel counters named in §6.
type Channel struct {
	ID int

	ReadTransactions  int64
	WriteTransactions int64
	RowHits           int64
	RowMisses         int64
	RowConflicts      int64
	WriteCoalesced    int64

	TotalActiveCycles  int64
	TotalRefreshCycles int64
	TotalBusyCycles    int64
	TotalServingReqs   int64

	ReadLatency *hdrhistogram.Histogram
}

// NewChannel builds a Channel stats block with a read_latency histogram
// tracking 1 cycle..1,000,000 cycles at 3 significant digits.
func NewChannel(id int) *Channel {
	return &Channel{ID: id, ReadLatency: hdrhistogram.New(1, 1_000_000, 3)}
}

// RecordRowHit, RecordRowMiss and RecordRowConflict tally one terminal
// read/write's row-buffer classification. EXTENSION (migration) requests
// count as READ for this accounting per spec's explicit resolution of the
// open question.
func (c *Channel) RecordRowHit()      { c.RowHits++ }
func (c *Channel) RecordRowMiss()     { c.RowMisses++ }
func (c *Channel) RecordRowConflict() { c.RowConflicts++ }

// Core accumulates per-core counters (§6: "per-core cpu_instructions").
type Core struct {
	ID               int
	CPUInstructions  int64
}

// Registry is the explicit stats context threaded through Memory/Processor
// construction; Finish() dumps every metric once.
type Registry struct {
	Prefix string // "ramulator." when hosted, "" otherwise

	CPUCycles int64

	Channels []*Channel
	Cores    []*Core

	MemoryAccessCycles int64
}

func New(prefix string, numChannels, numCores int) *Registry {
	r := &Registry{Prefix: prefix}
	for i := 0; i < numChannels; i++ {
		r.Channels = append(r.Channels, NewChannel(i))
	}
	for i := 0; i < numCores; i++ {
		r.Cores = append(r.Cores, &Core{ID: i})
	}
	return r
}

type line struct {
	name  string
	value string
	desc  string
}

// Finish formats every accumulated metric as
// "<dotted.name> <value> # <description>" and writes it to path.
func (r *Registry) Finish(path string) error {
	var lines []line
	add := func(name, desc string, value any) {
		lines = append(lines, line{name: r.Prefix + name, value: fmt.Sprintf("%v", value), desc: desc})
	}

	add("cpu_cycles", "total CPU cycles elapsed", r.CPUCycles)
	var totalInstr int64
	for _, c := range r.Cores {
		add(fmt.Sprintf("cpu%d.cpu_instructions", c.ID), "instructions retired by this core", c.CPUInstructions)
		totalInstr += c.CPUInstructions
	}
	ipc := 0.0
	if r.CPUCycles > 0 {
		ipc = float64(totalInstr) / float64(r.CPUCycles)
	}
	add("ipc", "aggregate instructions per cycle", fmt.Sprintf("%.4f", ipc))
	add("memory_access_cycles", "cycles spent waiting on memory", r.MemoryAccessCycles)

	for _, ch := range r.Channels {
		p := fmt.Sprintf("channel%d.", ch.ID)
		add(p+"read_transactions", "read transactions served", ch.ReadTransactions)
		add(p+"write_transactions", "write transactions served", ch.WriteTransactions)
		add(p+"row_hits", "accesses to an already-open row", ch.RowHits)
		add(p+"row_misses", "accesses to a closed bank", ch.RowMisses)
		add(p+"row_conflicts", "accesses requiring a prior precharge", ch.RowConflicts)
		add(p+"write_coalesced", "writes merged into an in-flight write", ch.WriteCoalesced)
		add(p+"total_active_cycles", "cycles with at least one serving request", ch.TotalActiveCycles)
		add(p+"total_refresh_cycles", "cycles spent inside a refresh window", ch.TotalRefreshCycles)
		add(p+"total_busy_cycles", "cycles with any command in flight", ch.TotalBusyCycles)
		add(p+"total_serving_requests", "requests served overall", ch.TotalServingReqs)
		add(p+"read_latency_mean", "mean read latency in cycles", fmt.Sprintf("%.4f", ch.ReadLatency.Mean()))
		add(p+"read_latency_p99", "99th percentile read latency in cycles", ch.ReadLatency.ValueAtQuantile(99))
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, l := range lines {
		fmt.Fprintf(f, "%s %s # %s\n", l.name, l.value, l.desc)
	}
	return nil
}

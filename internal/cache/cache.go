// Package cache implements the inclusive L1/L2/L3 hierarchy (§4.7):
// set-associative LRU lines, MSHR-based miss coalescing, inclusion
// invalidation on eviction, and fill callbacks that unlock up the
// hierarchy as misses resolve.
package cache

import (
	"math/bits"

	"github.com/suprax/dramsim/internal/request"
	"github.com/suprax/dramsim/internal/simerr"
	"github.com/suprax/dramsim/internal/telemetry"
)

// Level names a rung of the hierarchy. Whether a cache forwards to Memory
// or to another Cache depends on whether it has a Lower cache, not on its
// Level: the last configured level (L3, or L2 when no L3 is built) forwards
// to Memory.
type Level int

const (
	L1 Level = iota
	L2
	L3
)

func (l Level) String() string {
	switch l {
	case L1:
		return "L1"
	case L2:
		return "L2"
	case L3:
		return "L3"
	default:
		return "?"
	}
}

// Line is one resident or in-flight block (§3, "Cache Line"). Lock=true
// means a fill is in flight and the line counts toward associativity but
// cannot be hit.
type Line struct {
	Addr  uint64 // block-aligned
	Tag   uint64
	Lock  bool
	Dirty bool
}

func log2(n int) int { return bits.Len(uint(n)) - 1 }

// Config is the per-level sizing a caller (cmd/dramsim) supplies.
type Config struct {
	Level     Level
	BlockSize int // bytes
	Sets      int // must be a power of two
	Assoc     int
	Latency   int64 // cycles
	MSHRSize  int
}

func align(addr uint64, blockSize int) uint64 {
	return addr &^ uint64(blockSize-1)
}

// mshrEntry tracks one in-flight fill and every request coalesced onto it
// (§3, "MSHR entries": at most one entry per block-aligned address).
type mshrEntry struct {
	Addr    uint64
	Line    *Line
	Waiters []*request.Request
}

// Cache is one level of the hierarchy. Lower is nil at the last configured
// level (which instead forwards through Sys.SendMemory); Highers lists the cache(s) that may
// hold an inclusive copy above this one (empty at L1, one entry at L2,
// one per core's L2 at L3).
type Cache struct {
	cfg Config

	sets [][]*Line
	mshr []mshrEntry

	Lower   *Cache
	Highers []*Cache
	Sys     *CacheSystem

	pending []*request.Request // forwards rejected downstream, retried each tick

	name string
}

// New builds an empty Cache of the given level/sizing, owned by sys.
func New(cfg Config, sys *CacheSystem, name string) *Cache {
	c := &Cache{cfg: cfg, Sys: sys, name: name}
	c.sets = make([][]*Line, cfg.Sets)
	return c
}

func (c *Cache) indexAndTag(addr uint64) (int, uint64) {
	blockBits := log2(c.cfg.BlockSize)
	setBits := log2(c.cfg.Sets)
	index := int((addr >> uint(blockBits)) & uint64(c.cfg.Sets-1))
	tag := addr >> uint(blockBits+setBits)
	return index, tag
}

// Send admits req into this cache level (§4.7, "send(req)"). Returns
// false if the caller should retry next cycle (set fully locked or MSHR
// full). A miss whose downstream forward is rejected is still admitted:
// the forward is kept in pending and retried on each CacheSystem tick.
func (c *Cache) Send(req *request.Request) bool {
	index, tag := c.indexAndTag(req.Addr)
	set := c.sets[index]

	for _, line := range set {
		if line.Tag == tag && !line.Lock {
			c.touch(index, line)
			if req.Type == request.WriteReq {
				line.Dirty = true
			}
			c.Sys.enqueueHit(req, c.cfg.Latency)
			return true
		}
	}

	blockAddr := align(req.Addr, c.cfg.BlockSize)
	for i := range c.mshr {
		e := &c.mshr[i]
		if e.Addr != blockAddr {
			continue
		}
		if req.Type == request.WriteReq {
			e.Line.Dirty = true
		}
		e.Waiters = append(e.Waiters, req)
		return true
	}

	if len(c.mshr) >= c.cfg.MSHRSize {
		return false
	}
	if c.allLocked(set) {
		return false
	}

	newLine := &Line{Addr: blockAddr, Tag: tag, Lock: true, Dirty: req.Type == request.WriteReq}
	if len(set) >= c.cfg.Assoc {
		victim, ok := c.evictOne(index)
		if !ok {
			return false // every line locked; shouldn't happen given allLocked check above
		}
		_ = victim
	}
	c.sets[index] = append(c.sets[index], newLine)

	c.mshr = append(c.mshr, mshrEntry{Addr: blockAddr, Line: newLine, Waiters: []*request.Request{req}})

	down := request.New(blockAddr, request.ReadReq, req.CoreID, c.fillCallback)
	c.forward(down)

	telemetry.Named(c.name).Debug().Uint64("addr", req.Addr).Str("type", req.Type.String()).Msg("miss")
	return true
}

// touch moves line to the MRU tail of its set (§3, "Cache set": LRU order).
func (c *Cache) touch(index int, line *Line) {
	set := c.sets[index]
	for i, l := range set {
		if l == line {
			set = append(set[:i], set[i+1:]...)
			break
		}
	}
	c.sets[index] = append(set, line)
}

func (c *Cache) allLocked(set []*Line) bool {
	if len(set) < c.cfg.Assoc {
		return false
	}
	for _, l := range set {
		if !l.Lock {
			return false
		}
	}
	return true
}

// evictOne removes the LRU-most unlocked line from the set, running
// inclusion invalidation and writeback propagation (§4.7, "Eviction of
// victim V").
func (c *Cache) evictOne(index int) (*Line, bool) {
	set := c.sets[index]
	vi := -1
	for i, l := range set {
		if !l.Lock {
			vi = i
			break
		}
	}
	if vi < 0 {
		return nil, false
	}
	victim := set[vi]
	c.sets[index] = append(set[:vi], set[vi+1:]...)

	delay, upperDirty := int64(0), false
	for _, h := range c.Highers {
		d, dt := h.Invalidate(victim.Addr)
		if d > delay {
			delay = d
		}
		if dt {
			upperDirty = true
		}
	}
	dirty := victim.Dirty || upperDirty

	if c.Lower != nil {
		c.Lower.EvictLine(victim.Addr, dirty)
	} else if dirty {
		wreq := request.New(victim.Addr, request.WriteReq, -1, nil)
		c.Sys.enqueueWait(wreq, delay+c.cfg.Latency)
	}
	return victim, true
}

// Invalidate erases addr's line here (if present and unlocked), recurses
// upward, and reports the accumulated delay and whether a dirty copy was
// seen anywhere in the walk (§4.7, "Invalidate").
func (c *Cache) Invalidate(addr uint64) (delay int64, dirty bool) {
	index, tag := c.indexAndTag(addr)
	set := c.sets[index]

	var upDelay int64
	var upDirty bool
	for _, h := range c.Highers {
		d, dt := h.Invalidate(addr)
		if d > upDelay {
			upDelay = d
		}
		if dt {
			upDirty = true
		}
	}

	found := -1
	for i, l := range set {
		if l.Tag == tag && !l.Lock {
			found = i
			break
		}
	}
	thisDirty := upDirty
	if found >= 0 {
		thisDirty = thisDirty || set[found].Dirty
		c.sets[index] = append(set[:found], set[found+1:]...)
	}

	ownDelay := c.cfg.Latency
	if thisDirty {
		ownDelay *= 2
	}
	return ownDelay + upDelay, thisDirty
}

// EvictLine refreshes the LRU position of addr's line in this (inclusive,
// lower) cache and ORs dirty into it; the line must already be resident
// per the inclusion invariant.
func (c *Cache) EvictLine(addr uint64, dirty bool) {
	index, tag := c.indexAndTag(addr)
	for _, l := range c.sets[index] {
		if l.Tag == tag {
			l.Dirty = l.Dirty || dirty
			c.touch(index, l)
			return
		}
	}
	simerr.Invariant("Cache.EvictLine", "inclusive cache hole: victim absent from lower level")
}

// forward sends the synthesized fill request downward: to Lower.Send when
// a lower cache exists, or into the wait_list when this is the last
// configured level (§4.7). A rejection by Lower is retried on the next
// CacheSystem tick.
func (c *Cache) forward(req *request.Request) {
	if c.Lower != nil {
		if c.Lower.Send(req) {
			return
		}
		c.pending = append(c.pending, req)
		return
	}
	c.Sys.enqueueWait(req, c.cfg.Latency)
}

// retryPending re-attempts any forward that was rejected downstream.
func (c *Cache) retryPending() {
	if len(c.pending) == 0 {
		return
	}
	var still []*request.Request
	for _, req := range c.pending {
		if c.Lower != nil && c.Lower.Send(req) {
			continue
		}
		still = append(still, req)
	}
	c.pending = still
}

// fillCallback completes this cache's own MSHR entry for a resolved fill
// and wakes every coalesced waiter (§4.7, "Callback (fill completion)").
// Each waiter's own Callback either belongs to the requester (an L1 hit
// callback all the way up) or is itself another level's fillCallback,
// which is how the unlock recurses up the hierarchy without ever
// mutating a Request's Callback field after construction.
func (c *Cache) fillCallback(down *request.Request) {
	idx := -1
	for i := range c.mshr {
		if c.mshr[i].Addr == down.Addr {
			idx = i
			break
		}
	}
	if idx < 0 {
		simerr.Invariant("Cache.fillCallback", "completed fill missing its MSHR entry")
	}
	entry := c.mshr[idx]
	entry.Line.Lock = false
	c.mshr = append(c.mshr[:idx], c.mshr[idx+1:]...)

	for _, w := range entry.Waiters {
		if w.Callback != nil {
			w.Callback(w)
		}
	}
}

// NumResident reports the total number of unlocked lines, for tests and
// diagnostics.
func (c *Cache) NumResident() int {
	n := 0
	for _, set := range c.sets {
		for _, l := range set {
			if !l.Lock {
				n++
			}
		}
	}
	return n
}

package cache

import "github.com/suprax/dramsim/internal/request"

// MemorySender is the minimal view of internal/memory.Memory the cache
// hierarchy needs: enough to push an L3 miss or a dirty writeback down
// to DRAM without importing the memory package (avoiding an import
// cycle, since memory doesn't need to know about caches at all).
type MemorySender interface {
	Send(req *request.Request) bool
}

type waitEntry struct {
	At  int64
	Req *request.Request
}

type hitEntry struct {
	At  int64
	Req *request.Request
}

// CacheSystem is the clock and queue pair shared by every Cache level
// (§4.7, "CacheSystem"): wait_list holds misses queued for downstream
// completion (L3→Memory), hit_list holds hits waiting out their latency.
type CacheSystem struct {
	Clk int64

	waitList []waitEntry
	hitList  []hitEntry

	SendMemory MemorySender

	caches []*Cache
}

// NewSystem builds an empty CacheSystem bound to a Memory sender.
func NewSystem(sendMemory MemorySender) *CacheSystem {
	return &CacheSystem{SendMemory: sendMemory}
}

// Register tracks cache so Tick can drive its pending-forward retries.
func (s *CacheSystem) Register(c *Cache) { s.caches = append(s.caches, c) }

func (s *CacheSystem) enqueueHit(req *request.Request, latency int64) {
	s.hitList = append(s.hitList, hitEntry{At: s.Clk + latency, Req: req})
}

func (s *CacheSystem) enqueueWait(req *request.Request, latency int64) {
	s.waitList = append(s.waitList, waitEntry{At: s.Clk + latency, Req: req})
}

// Tick advances the clock, drains wait_list entries whose time has come
// by invoking SendMemory (retrying on rejection), drains hit_list
// entries by firing their callback, and retries any cache's rejected
// downstream forwards (§4.7, "CacheSystem.tick()").
func (s *CacheSystem) Tick() {
	var stillWaiting []waitEntry
	for _, w := range s.waitList {
		if w.At > s.Clk {
			stillWaiting = append(stillWaiting, w)
			continue
		}
		if !s.SendMemory.Send(w.Req) {
			stillWaiting = append(stillWaiting, w)
		}
	}
	s.waitList = stillWaiting

	var stillHit []hitEntry
	for _, h := range s.hitList {
		if h.At > s.Clk {
			stillHit = append(stillHit, h)
			continue
		}
		if h.Req.Callback != nil {
			h.Req.Callback(h.Req)
		}
	}
	s.hitList = stillHit

	for _, c := range s.caches {
		c.retryPending()
	}

	s.Clk++
}

// PendingRequests reports in-flight work across both lists. The run loops
// in cmd/dramsim do not consult it.
func (s *CacheSystem) PendingRequests() int {
	return len(s.waitList) + len(s.hitList)
}

// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package pagecache

import (
	"sync/atomic"
	"unsafe"

	"github.com/harbordb/harbor/common"
)

// evicter enforces the cache's memory budget. Every live page is a member
// of exactly one of four bags:
//
//   - unevictable: the page is being constructed, has waiters, or has an
//     in-flight destruction;
//   - evictable disk-backed: a clean in-memory copy with a block token;
//   - evictable unbacked: an in-memory copy that exists nowhere on disk;
//   - evicted: the buffer has been released, the block token retained.
//
// The in-memory size is the aggregated size of the first three bags. When
// it exceeds the memory limit, oldish pages from the disk-backed bag are
// evicted until the limit is met or the bag runs dry. Unbacked pages count
// toward memory but cannot be evicted before being written out.
//
// All bag manipulation happens under the cache mutex. The bytes-loaded
// counter is atomic so the balancer can sample it without entering the
// cache.
type evicter struct {
	cache        *Cache
	balancer     CacheBalancer
	memoryLimit  uint64
	bytesLoaded  atomic.Uint64
	accessTime   uint64
	maxBlockSize uint32

	unevictable         *evictionBag
	evictableDiskBacked *evictionBag
	evictableUnbacked   *evictionBag
	evicted             *evictionBag
}

func newEvicter(cache *Cache, balancer CacheBalancer, maxBlockSize uint32) *evicter {
	e := &evicter{
		cache:               cache,
		balancer:            balancer,
		maxBlockSize:        maxBlockSize,
		unevictable:         newEvictionBag(),
		evictableDiskBacked: newEvictionBag(),
		evictableUnbacked:   newEvictionBag(),
		evicted:             newEvictionBag(),
	}
	e.memoryLimit = balancer.BaseMemoryPerCache()
	balancer.AddEvicter(e)
	return e
}

func (e *evicter) close() {
	e.balancer.RemoveEvicter(e)
}

// UpdateMemoryLimit installs a new memory budget and runs the eviction loop
// to a fixed point under it before returning. Called by balancers and
// administrative tooling.
func (e *evicter) UpdateMemoryLimit(limit uint64) {
	e.cache.mu.Lock()
	defer e.cache.mu.Unlock()
	e.updateMemoryLimit(limit)
}

// updateMemoryLimit requires the cache mutex.
func (e *evicter) updateMemoryLimit(limit uint64) {
	e.bytesLoaded.Store(0)
	e.memoryLimit = limit
	e.evictIfNecessary()
}

// BytesLoaded reports the block-sized access volume since the last limit
// update. Balancers use it to redistribute budget across caches.
func (e *evicter) BytesLoaded() uint64 {
	return e.bytesLoaded.Load()
}

func (e *evicter) notifyAccess() {
	e.bytesLoaded.Add(uint64(e.maxBlockSize))
	e.balancer.NotifyAccess()
}

// nextAccessTime requires the cache mutex.
func (e *evicter) nextAccessTime() uint64 {
	e.accessTime++
	return e.accessTime
}

// addNotYetLoaded requires the cache mutex.
func (e *evicter) addNotYetLoaded(p *page) {
	e.unevictable.addWithoutSize(p)
	p.bag = e.unevictable
}

// addNowLoadedSize requires the cache mutex.
func (e *evicter) addNowLoadedSize(serBufSize uint32) {
	e.unevictable.addSize(serBufSize)
	e.evictIfNecessary()
	e.notifyAccess()
}

// pageIsInUnevictableBag requires the cache mutex.
func (e *evicter) pageIsInUnevictableBag(p *page) bool {
	return e.unevictable.hasPage(p)
}

// addToEvictableUnbacked requires the cache mutex.
func (e *evicter) addToEvictableUnbacked(p *page) {
	e.evictableUnbacked.add(p, p.serBufSize)
	p.bag = e.evictableUnbacked
	e.evictIfNecessary()
	e.notifyAccess()
}

// moveUnevictableToEvictable requires the cache mutex.
func (e *evicter) moveUnevictableToEvictable(p *page) {
	if !e.unevictable.hasPage(p) {
		panic("page is not in the unevictable bag")
	}
	e.unevictable.remove(p, p.serBufSize)
	target := e.correctEvictionCategory(p)
	if target != e.evictableDiskBacked && target != e.evictableUnbacked {
		panic("loaded page must be evictable")
	}
	target.add(p, p.serBufSize)
	p.bag = target
	e.evictIfNecessary()
}

// changeToCorrectEvictionBag re-categorizes a page after one of its
// eviction-relevant attributes changed. Requires the cache mutex.
func (e *evicter) changeToCorrectEvictionBag(p *page) {
	p.bag.remove(p, p.serBufSize)
	target := e.correctEvictionCategory(p)
	target.add(p, p.serBufSize)
	p.bag = target
	e.evictIfNecessary()
}

// correctEvictionCategory requires the cache mutex.
func (e *evicter) correctEvictionCategory(p *page) *evictionBag {
	if p.destroyPtr != nil || len(p.waiters) != 0 {
		return e.unevictable
	}
	if p.buf == nil {
		return e.evicted
	}
	if p.token != nil {
		return e.evictableDiskBacked
	}
	return e.evictableUnbacked
}

// removePage takes a dying page out of its bag. Requires the cache mutex.
func (e *evicter) removePage(p *page) {
	if len(p.waiters) != 0 {
		panic("removing a page with waiters")
	}
	if p.snapshotRefcount != 0 {
		panic("removing a referenced page")
	}
	p.bag.remove(p, p.serBufSize)
	p.bag = nil
	e.evictIfNecessary()
}

// inMemorySize requires the cache mutex.
func (e *evicter) inMemorySize() uint64 {
	return e.unevictable.size +
		e.evictableDiskBacked.size +
		e.evictableUnbacked.size
}

// evictIfNecessary requires the cache mutex.
func (e *evicter) evictIfNecessary() {
	for e.inMemorySize() > e.memoryLimit {
		p, ok := e.evictableDiskBacked.removeOldish()
		if !ok {
			return
		}
		e.evicted.add(p, p.serBufSize)
		p.bag = e.evicted
		p.evictSelf()
	}
}

func (e *evicter) getMemoryFootprint() *common.MemoryFootprint {
	mf := common.NewMemoryFootprint(unsafe.Sizeof(*e))
	mf.AddChild("unevictable", common.NewMemoryFootprint(uintptr(e.unevictable.size)))
	mf.AddChild("evictableDiskBacked", common.NewMemoryFootprint(uintptr(e.evictableDiskBacked.size)))
	mf.AddChild("evictableUnbacked", common.NewMemoryFootprint(uintptr(e.evictableUnbacked.size)))
	return mf
}

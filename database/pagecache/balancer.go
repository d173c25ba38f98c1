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

import "sync"

//go:generate mockgen -source balancer.go -destination balancer_mocks.go -package pagecache

// BalancedEvicter is the view a balancer has on one cache's evicter.
type BalancedEvicter interface {
	// UpdateMemoryLimit installs a new memory budget on the evicter. The
	// evicter evicts down to the new limit before returning.
	UpdateMemoryLimit(limit uint64)

	// BytesLoaded reports the access volume observed since the last limit
	// update, as a measure of how actively the cache is used.
	BytesLoaded() uint64
}

// CacheBalancer distributes a process-wide memory budget across the page
// caches living in one process. Evicters register themselves on
// construction and deregister when their cache closes; the balancer may
// redistribute budget between registered evicters at any time based on the
// access activity reported to it.
type CacheBalancer interface {
	// BaseMemoryPerCache is the memory limit granted to a newly registered
	// cache.
	BaseMemoryPerCache() uint64

	// AddEvicter registers a cache's evicter with this balancer.
	AddEvicter(BalancedEvicter)

	// RemoveEvicter deregisters an evicter, returning its budget to the
	// pool.
	RemoveEvicter(BalancedEvicter)

	// NotifyAccess informs the balancer about block access activity in one
	// of its registered caches.
	NotifyAccess()
}

// FixedBalancer grants every registered cache the same fixed budget and
// never redistributes. It is the balancer of choice for single-cache
// processes and tests.
type FixedBalancer struct {
	bytesPerCache uint64
	mutex         sync.Mutex
	evicters      map[BalancedEvicter]struct{}
}

// NewFixedBalancer creates a balancer granting each cache the given number
// of bytes.
func NewFixedBalancer(bytesPerCache uint64) *FixedBalancer {
	return &FixedBalancer{
		bytesPerCache: bytesPerCache,
		evicters:      map[BalancedEvicter]struct{}{},
	}
}

func (b *FixedBalancer) BaseMemoryPerCache() uint64 {
	return b.bytesPerCache
}

func (b *FixedBalancer) AddEvicter(e BalancedEvicter) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.evicters[e] = struct{}{}
}

func (b *FixedBalancer) RemoveEvicter(e BalancedEvicter) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	delete(b.evicters, e)
}

func (b *FixedBalancer) NotifyAccess() {}

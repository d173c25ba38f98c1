// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package pagecache provides the page cache and transaction manager at the
// heart of the storage engine. The cache mediates all access to persistent
// blocks: it caches block contents in memory, coordinates concurrent readers
// and writers per block with snapshot isolation, bounds its memory use
// through eviction, and groups writes into transactions flushed to a block
// serializer in causally consistent order.
package pagecache

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/harbordb/harbor/backend/serializer"
	"github.com/harbordb/harbor/common"
)

const (
	// CacheReadsIOPriority is the I/O account priority used for block loads.
	CacheReadsIOPriority serializer.Priority = 90
	// CacheWritesIOPriority is the I/O account priority used for flushes.
	CacheWritesIOPriority serializer.Priority = 50
)

// Cache is one page cache instance. All mutations of current pages,
// acquirer queues, eviction bags, and the transaction DAG are serialized by
// its mutex; serializer calls and content loads happen outside of it in
// cache-owned background tasks.
type Cache struct {
	serializer serializer.Serializer

	mu           sync.Mutex
	currentPages []*currentPage // indexed by block ID
	freeList     *freeList
	evicter      *evicter

	readsAccount  serializer.IOAccount
	writesAccount serializer.IOAccount

	drainer sync.WaitGroup // tracks loads and flushes in flight
	closed  bool
}

// New creates a cache on top of the given serializer, registered with the
// given balancer for its memory budget.
func New(ser serializer.Serializer, balancer CacheBalancer) (*Cache, error) {
	freeList, err := newFreeList(ser)
	if err != nil {
		return nil, fmt.Errorf("failed to scan free block IDs: %w", err)
	}
	c := &Cache{
		serializer:    ser,
		freeList:      freeList,
		readsAccount:  ser.MakeIOAccount(CacheReadsIOPriority),
		writesAccount: ser.MakeIOAccount(CacheWritesIOPriority),
	}
	c.evicter = newEvicter(c, balancer, uint32(ser.BlockSize()))
	return c, nil
}

// NewTransaction opens a transaction, optionally succeeding an explicit
// preceding transaction: the new transaction will not flush before the
// preceding one has, regardless of data dependencies.
func (c *Cache) NewTransaction(preceding *Transaction) *Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &Transaction{cache: c, flushComplete: newSignal()}
	if preceding != nil {
		t.connectPreceder(preceding)
	}
	return t
}

// pageForBlockID requires the cache mutex.
func (c *Cache) pageForBlockID(block serializer.BlockID) *currentPage {
	c.growTo(block)
	if c.currentPages[block] == nil {
		c.currentPages[block] = newCurrentPage(c, block)
	}
	return c.currentPages[block]
}

// pageForNewBlockID requires the cache mutex.
func (c *Cache) pageForNewBlockID() (*currentPage, serializer.BlockID) {
	block := c.freeList.acquireBlockID()
	c.growTo(block)
	if c.currentPages[block] == nil {
		c.currentPages[block] = newCurrentPageWithBuf(c, block, c.serializer.Malloc())
	} else {
		c.currentPages[block].makeNonDeleted(c.serializer.Malloc())
	}
	return c.currentPages[block], block
}

// growTo requires the cache mutex.
func (c *Cache) growTo(block serializer.BlockID) {
	for uint64(len(c.currentPages)) <= uint64(block) {
		c.currentPages = append(c.currentPages, nil)
	}
}

// waitingForFlush takes note that the given transaction has no live
// acquirers left and wants to be flushed. If no preceding transaction is
// outstanding, the flush is started right away; otherwise the last
// completing preceder will start it. Requires the cache mutex.
func (c *Cache) waitingForFlush(t *Transaction) {
	if !t.beganWaitingForFlush {
		panic("transaction is not waiting for a flush")
	}
	if len(t.liveAcqs) != 0 {
		panic("transaction with live acquirers cannot flush")
	}
	if len(t.preceders) == 0 {
		c.drainer.Add(1)
		go func() {
			defer c.drainer.Done()
			c.doFlushTxn(t)
		}()
	}
}

// blockTokenRecency is one entry of a transaction's flush partition: either
// a deletion (no token), an already-on-disk dirty page (pre-existing
// token), or a touch (no token, recency only).
type blockTokenRecency struct {
	block     serializer.BlockID
	isDeleted bool
	token     serializer.BlockToken
	recency   serializer.Recency
}

// doFlushTxn writes a transaction's output to the serializer and advances
// the transaction DAG. Runs in its own background task; enters the cache
// mutex only to partition the output and, at the end, to install tokens and
// release successors.
func (c *Cache) doFlushTxn(t *Transaction) {
	c.mu.Lock()

	blocksByTokens := make([]blockTokenRecency, 0,
		len(t.snapshottedDirtiedPages)+len(t.touchedPages))
	writes := make([]serializer.BlockWrite, 0, len(t.snapshottedDirtiedPages))
	writePages := make([]*page, 0, len(t.snapshottedDirtiedPages))
	writeRecencies := make([]serializer.Recency, 0, len(t.snapshottedDirtiedPages))

	for i := range t.snapshottedDirtiedPages {
		dp := &t.snapshottedDirtiedPages[i]
		if !dp.ptr.has() {
			// The block was deleted.
			blocksByTokens = append(blocksByTokens, blockTokenRecency{
				block:     dp.block,
				isDeleted: true,
			})
			continue
		}
		p := dp.ptr.getPageForRead()
		if p.token != nil {
			// Already on disk, nothing to write.
			p.token.Retain()
			blocksByTokens = append(blocksByTokens, blockTokenRecency{
				block:   dp.block,
				token:   p.token,
				recency: dp.recency,
			})
			continue
		}
		// A dirtied page cannot be amid loading: dirtying required the
		// buffer, and the buffer can only go away through eviction, which
		// would have left a block token behind.
		if p.destroyPtr != nil {
			panic("dirtied page has an in-flight construction")
		}
		if p.buf == nil {
			panic("dirtied page has no content")
		}
		writes = append(writes, serializer.BlockWrite{
			Block: dp.block,
			Buf:   p.buf,
			Size:  p.serBufSize,
		})
		writePages = append(writePages, p)
		writeRecencies = append(writeRecencies, dp.recency)
	}

	for _, tp := range t.touchedPages {
		blocksByTokens = append(blocksByTokens, blockTokenRecency{
			block:   tp.block,
			recency: tp.recency,
		})
	}
	c.mu.Unlock()

	tokens, releasable, err := c.serializer.BlockWrites(writes, c.writesAccount)
	if err != nil {
		panic(fmt.Sprintf("failed to write blocks: %v", err))
	}
	if len(tokens) != len(writes) {
		panic("serializer returned a mismatched number of block tokens")
	}

	ops := make([]serializer.IndexWriteOp, 0, len(blocksByTokens)+len(tokens))
	for _, entry := range blocksByTokens {
		switch {
		case entry.isDeleted:
			ops = append(ops, serializer.DeleteOp(entry.block))
		case entry.token != nil:
			ops = append(ops, serializer.InstallTokenOp(entry.block, entry.token, entry.recency))
		default:
			ops = append(ops, serializer.TouchRecencyOp(entry.block, entry.recency))
		}
	}
	for i, token := range tokens {
		ops = append(ops, serializer.InstallTokenOp(writes[i].Block, token, writeRecencies[i]))
	}

	// The written buffers stay borrowed by the serializer until releasable;
	// the pages owning them are held alive by the transaction's snapshots.
	<-releasable

	if err := c.serializer.IndexWrite(ops, c.writesAccount); err != nil {
		panic(fmt.Sprintf("failed to write block index: %v", err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// The freshly written pages now have a clean on-disk copy; install the
	// new tokens so they become disk-backed evictable once unreferenced.
	for i, p := range writePages {
		if p.token == nil && p.buf != nil {
			tokens[i].Retain()
			p.token = tokens[i]
			c.evicter.changeToCorrectEvictionBag(p)
		}
	}
	for i := range tokens {
		tokens[i].Release()
	}
	for _, entry := range blocksByTokens {
		if entry.token != nil {
			entry.token.Release()
		}
	}

	// Detach from successors and start the ones that became flushable.
	subseqers := t.subseqers
	t.subseqers = nil
	for _, s := range subseqers {
		s.removePreceder(t)
		if s.beganWaitingForFlush {
			c.waitingForFlush(s)
		}
	}

	for _, cp := range t.pagesModifiedLast {
		if cp.lastModifier != t {
			panic("current page has an unexpected last modifier")
		}
		cp.lastModifier = nil
	}
	t.pagesModifiedLast = nil

	t.flushComplete.pulse()
}

// InMemorySize reports the aggregated size of all pages currently held in
// memory, loaded or loading.
func (c *Cache) InMemorySize() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evicter.inMemorySize()
}

// UpdateMemoryLimit installs a new memory budget on the cache and evicts
// down to it before returning.
func (c *Cache) UpdateMemoryLimit(limit uint64) {
	c.evicter.UpdateMemoryLimit(limit)
}

// Evicter returns the balancer-facing view of this cache's evicter.
func (c *Cache) Evicter() BalancedEvicter {
	return c.evicter
}

// Flush waits until all in-flight loads and transaction flushes have
// completed. It does not force transactions still owned by clients.
func (c *Cache) Flush() error {
	c.drainer.Wait()
	return nil
}

// Close drains all in-flight background work and releases the cache's
// resources. Transactions must have been released before. Closing an
// already closed cache is a no-op.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.drainer.Wait()
	c.evicter.close()
	c.readsAccount.Close()
	c.writesAccount.Close()
	return nil
}

// GetMemoryFootprint reports a breakdown of the cache's memory usage.
func (c *Cache) GetMemoryFootprint() *common.MemoryFootprint {
	c.mu.Lock()
	defer c.mu.Unlock()
	mf := common.NewMemoryFootprint(unsafe.Sizeof(*c))
	mf.AddChild("currentPages", common.NewMemoryFootprint(
		unsafe.Sizeof((*currentPage)(nil))*uintptr(len(c.currentPages))))
	mf.AddChild("evicter", c.evicter.getMemoryFootprint())
	return mf
}

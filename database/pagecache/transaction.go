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

import "github.com/harbordb/harbor/backend/serializer"

// Transaction is a group of acquirers forming one atomic flush unit. As its
// write-acquirers are released, the transaction collects snapshots of the
// pages they dirtied and recency records of the blocks they touched. Once
// all acquirers are released and the transaction itself is released, the
// collected output is flushed to the serializer.
//
// Transactions form a DAG: a transaction whose writes overwrite an earlier
// transaction's block gains a preceder edge to it and flushes strictly
// after it.
type Transaction struct {
	cache *Cache

	liveAcqs []*Acquirer

	snapshottedDirtiedPages []dirtiedPage
	touchedPages            []touchedPage
	pagesModifiedLast       []*currentPage

	preceders []*Transaction
	subseqers []*Transaction

	beganWaitingForFlush bool
	flushComplete        *Signal
}

// dirtiedPage is a block whose new content is exclusively owned by the
// transaction, awaiting flush. An empty reference marks a deletion.
type dirtiedPage struct {
	block   serializer.BlockID
	ptr     pagePtr
	recency serializer.Recency
}

// touchedPage is a block a write-acquirer held without modifying it; only
// its recency is propagated at flush time.
type touchedPage struct {
	block   serializer.BlockID
	recency serializer.Recency
}

// Acquire obtains a hold on the given block. Read access is granted in
// arrival order; write access is exclusive. The returned acquirer must be
// released before the transaction is.
func (t *Transaction) Acquire(block serializer.BlockID, access Access) *Acquirer {
	c := t.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := c.pageForBlockID(block)
	return t.initAcquirer(cp, block, access)
}

// AcquireNew allocates a fresh block ID and obtains exclusive write access
// to it. The block starts out with a blank content buffer.
func (t *Transaction) AcquireNew() *Acquirer {
	c := t.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	cp, block := c.pageForNewBlockID()
	return t.initAcquirer(cp, block, AccessWrite)
}

// initAcquirer requires the cache mutex.
func (t *Transaction) initAcquirer(cp *currentPage, block serializer.BlockID, access Access) *Acquirer {
	if t.beganWaitingForFlush {
		panic("acquiring through a released transaction")
	}
	acq := &Acquirer{
		txn:         t,
		block:       block,
		access:      access,
		currentPage: cp,
		readCond:    newSignal(),
		writeCond:   newSignal(),
	}
	t.liveAcqs = append(t.liveAcqs, acq)
	cp.addAcquirer(acq)
	return acq
}

// connectPreceder wires the given transaction as a preceder of this one.
// Preceders are only connected while their flush is still outstanding, and
// edges are deduplicated. Requires the cache mutex.
func (t *Transaction) connectPreceder(preceder *Transaction) {
	// A transaction overwriting its own blocks needs no edge to itself.
	if preceder == t || preceder.flushComplete.isPulsed() {
		return
	}
	for _, p := range t.preceders {
		if p == preceder {
			return
		}
	}
	t.preceders = append(t.preceders, preceder)
	preceder.subseqers = append(preceder.subseqers, t)
}

// removePreceder requires the cache mutex.
func (t *Transaction) removePreceder(preceder *Transaction) {
	for i, p := range t.preceders {
		if p == preceder {
			t.preceders = append(t.preceders[:i], t.preceders[i+1:]...)
			return
		}
	}
	panic("removing a transaction that is not a preceder")
}

// removeAcquirer commits the effect of a released acquirer into the
// transaction. A write-acquirer that dirtied its block locks in this
// transaction as the block's last modifier, inherits a preceder edge from
// the previous one, and leaves behind an owned snapshot of the dirtied
// page. A write-acquirer that did not is recorded as a touch. Requires the
// cache mutex.
func (t *Transaction) removeAcquirer(acq *Acquirer) {
	found := false
	for i, a := range t.liveAcqs {
		if a == acq {
			t.liveAcqs = append(t.liveAcqs[:i], t.liveAcqs[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		panic("acquirer is not part of this transaction")
	}

	// An acquirer released before gaining any access has neither dirtied nor
	// touched the block.
	if !acq.readCond.isPulsed() || acq.access != AccessWrite {
		return
	}

	// Grab the block ID while the acquirer is still attached; it detaches
	// once snapshotted.
	block := acq.block

	if acq.dirtiedPage {
		if !acq.writeCond.isPulsed() {
			panic("dirtied page without exclusive access")
		}
		cp := acq.currentPage
		prev := cp.changeLastModifier(t)
		t.pagesModifiedLast = append(t.pagesModifiedLast, cp)
		if prev != nil {
			prev.dropPageModifiedLast(cp)
			t.connectPreceder(prev)
		}

		// Downgrade to a snapshotted reader; this detaches the acquirer and
		// hands it an owned reference to its version of the page, which the
		// transaction steals.
		acq.declareReadonly()
		acq.declareSnapshotted()
		if acq.currentPage != nil {
			panic("snapshotted acquirer still attached")
		}
		local := acq.snapshottedPage
		acq.snapshottedPage = pagePtr{}
		t.snapshottedDirtiedPages = append(t.snapshottedDirtiedPages,
			dirtiedPage{block: block, ptr: local, recency: acq.recency})
	} else {
		t.touchedPages = append(t.touchedPages,
			touchedPage{block: block, recency: acq.recency})
	}
}

// dropPageModifiedLast requires the cache mutex.
func (t *Transaction) dropPageModifiedLast(cp *currentPage) {
	for i, p := range t.pagesModifiedLast {
		if p == cp {
			t.pagesModifiedLast = append(t.pagesModifiedLast[:i], t.pagesModifiedLast[i+1:]...)
			return
		}
	}
	panic("current page is not registered with its last modifier")
}

// Release hands the transaction over for flushing and blocks until the
// flush has completed. All acquirers must have been released before. The
// flush happens in causal order: it starts only after every preceding
// transaction has completed its own flush.
func (t *Transaction) Release() {
	c := t.cache
	c.mu.Lock()
	if len(t.liveAcqs) != 0 {
		c.mu.Unlock()
		panic("acquirer lifespan exceeds its transaction's")
	}
	if t.beganWaitingForFlush {
		c.mu.Unlock()
		panic("transaction released twice")
	}
	t.beganWaitingForFlush = true
	c.waitingForFlush(t)
	c.mu.Unlock()

	t.flushComplete.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range t.snapshottedDirtiedPages {
		t.snapshottedDirtiedPages[i].ptr.reset(c)
	}
	t.snapshottedDirtiedPages = nil
}

// FlushCompleteSignal is pulsed once the transaction's effect has been
// handed to the serializer's index.
func (t *Transaction) FlushCompleteSignal() *Signal {
	return t.flushComplete
}

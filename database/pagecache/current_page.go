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

// currentPage is the logical identity of one block ID in memory: it owns the
// block's current page version and the FIFO queue of acquirers waiting for
// access to it. For every block ID at most one currentPage exists.
//
// All fields are protected by the cache mutex, and none of the operations
// below suspends; the whole acquirer ordering protocol runs atomically with
// respect to other cache mutations.
type currentPage struct {
	block        serializer.BlockID
	cache        *Cache
	page         pagePtr // the current version, empty if deleted or not yet referenced
	isDeleted    bool
	idReleased   bool        // the block ID has been handed back to the free list
	acquirers    []*Acquirer // waiting and granted acquirers, in arrival order
	lastModifier *Transaction
}

// newCurrentPage creates the in-memory identity of a block whose content, if
// ever needed, is loaded from the serializer.
func newCurrentPage(c *Cache, block serializer.BlockID) *currentPage {
	return &currentPage{block: block, cache: c}
}

// newCurrentPageWithBuf creates the in-memory identity of a freshly
// allocated block around an empty buffer.
func newCurrentPageWithBuf(c *Cache, block serializer.BlockID, buf []byte) *currentPage {
	cp := &currentPage{block: block, cache: c}
	cp.page.init(newFreshPage(c, buf))
	return cp
}

// makeNonDeleted resurrects a deleted block with a blank content buffer.
func (cp *currentPage) makeNonDeleted(buf []byte) {
	if !cp.isDeleted {
		panic("resurrecting a block that is not deleted")
	}
	if cp.page.has() {
		panic("deleted block still owns a page")
	}
	cp.isDeleted = false
	cp.idReleased = false
	cp.page.init(newFreshPage(cp.cache, buf))
}

func (cp *currentPage) addAcquirer(acq *Acquirer) {
	cp.acquirers = append(cp.acquirers, acq)
	cp.pulsePulsables(acq)
}

func (cp *currentPage) removeAcquirer(acq *Acquirer) {
	i := cp.indexOf(acq)
	cp.acquirers = append(cp.acquirers[:i], cp.acquirers[i+1:]...)
	if i < len(cp.acquirers) {
		cp.pulsePulsables(cp.acquirers[i])
	} else {
		cp.releaseBlockIDIfAbandoned()
	}
}

// releaseBlockIDIfAbandoned hands the block ID back to the free list once a
// deleted block has no acquirers left. The ID is released at most once per
// deletion epoch.
func (cp *currentPage) releaseBlockIDIfAbandoned() {
	if cp.isDeleted && len(cp.acquirers) == 0 && !cp.idReleased {
		cp.idReleased = true
		cp.cache.freeList.releaseBlockID(cp.block)
	}
}

func (cp *currentPage) indexOf(acq *Acquirer) int {
	for i, a := range cp.acquirers {
		if a == acq {
			return i
		}
	}
	panic("acquirer is not queued on this block")
}

// pulsePulsables advances the acquirer queue starting at the given acquirer.
// Readers whose predecessors have read access are granted read access in
// turn; a sequence of readers is granted concurrently. Snapshotted readers
// detach from the queue with an owned page reference, making way for
// writers. A writer is granted only at the head of the queue, and exclusively.
func (cp *currentPage) pulsePulsables(acq *Acquirer) {
	i := cp.indexOf(acq)

	// First, avoid pulsing when there's nothing to pulse.
	if i > 0 {
		prev := cp.acquirers[i-1]
		if !(prev.access == AccessRead && prev.readCond.isPulsed()) {
			return
		}
	}

	// Second, avoid re-pulsing already-pulsed chains.
	if acq.access == AccessRead && acq.readCond.isPulsed() && !acq.declaredSnapshotted {
		return
	}

	for i < len(cp.acquirers) {
		cur := cp.acquirers[i]

		if cur.access == AccessRead {
			// The previous node has read access, so the current one gains it too.
			cur.readCond.pulse()
			if cur.declaredSnapshotted {
				// Snapshotters leave the queue holding their own page
				// reference, making way for write-acquirers. A deleted block
				// yields an empty reference; this is how a write-acquirer
				// that deleted the block and downgraded itself to flush its
				// version learns about the deletion.
				cur.snapshottedPage.init(cp.thePageForReadOrDeleted())
				cur.currentPage = nil
				cp.acquirers = append(cp.acquirers[:i], cp.acquirers[i+1:]...)
				cp.releaseBlockIDIfAbandoned()
			} else {
				i++
			}
		} else {
			// A write-acquirer behind other acquirers gets no access yet, and
			// acquirers behind a writer have to wait since it may modify the
			// page.
			if i == 0 {
				// The head writer gains read and exclusive write access. A
				// block in the deleted state is resurrected with a blank buffer.
				if cp.isDeleted {
					cp.isDeleted = false
					cp.idReleased = false
					cp.page.init(newFreshPage(cp.cache, cp.cache.serializer.Malloc()))
				}
				cur.readCond.pulse()
				cur.writeCond.pulse()
			}
			break
		}
	}
}

// markDeleted drops the current page version and marks the block deleted.
func (cp *currentPage) markDeleted() {
	if cp.isDeleted {
		panic("block is already deleted")
	}
	cp.isDeleted = true
	cp.page.reset(cp.cache)
}

// convertFromSerializerIfNecessary materializes the block's page by starting
// an asynchronous load from the serializer.
func (cp *currentPage) convertFromSerializerIfNecessary() {
	if cp.isDeleted {
		panic("materializing a deleted block")
	}
	if !cp.page.has() {
		cp.page.init(newLoadingPage(cp.cache, cp.block))
	}
}

func (cp *currentPage) thePageForRead() *page {
	cp.convertFromSerializerIfNecessary()
	return cp.page.getPageForRead()
}

func (cp *currentPage) thePageForReadOrDeleted() *page {
	if cp.isDeleted {
		return nil
	}
	return cp.thePageForRead()
}

func (cp *currentPage) thePageForWrite() *page {
	cp.convertFromSerializerIfNecessary()
	return cp.page.getPageForWrite(cp.cache)
}

// changeLastModifier records the given transaction as the last one to have
// dirtied this block and returns the previous holder of that role, if any.
func (cp *currentPage) changeLastModifier(txn *Transaction) *Transaction {
	if txn == nil {
		panic("last modifier must not be nil")
	}
	prev := cp.lastModifier
	cp.lastModifier = txn
	return prev
}

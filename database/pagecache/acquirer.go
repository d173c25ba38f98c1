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

// Access is the kind of access requested by an acquirer.
type Access int

const (
	// AccessRead grants shared access to the block's bytes.
	AccessRead Access = iota
	// AccessWrite grants exclusive access and permission to modify them.
	AccessWrite
)

// Acquirer is a task's in-progress hold on the current page of one block.
// Acquirers are created through Transaction.Acquire and Transaction.AcquireNew
// and must be released before their transaction. An acquirer is granted read
// access in arrival order relative to other acquirers of the same block;
// write access is exclusive.
//
// Reading and writing block until the corresponding access has been granted.
// Waiting on the signals directly is only needed for non-blocking designs.
type Acquirer struct {
	txn                 *Transaction
	block               serializer.BlockID
	access              Access
	declaredSnapshotted bool
	currentPage         *currentPage // nil once detached as a snapshotter
	snapshottedPage     pagePtr
	readCond            *Signal
	writeCond           *Signal
	dirtiedPage         bool
	recency             serializer.Recency
	hold                *pageRead // keeps the accessed page version resident
}

// Block returns the ID of the block this acquirer is holding.
func (a *Acquirer) Block() serializer.BlockID {
	return a.block
}

// ReadSignal is pulsed once the acquirer has been granted read access.
func (a *Acquirer) ReadSignal() *Signal {
	return a.readCond
}

// WriteSignal is pulsed once the acquirer has been granted exclusive write
// access. Only write-acquirers carry a write signal.
func (a *Acquirer) WriteSignal() *Signal {
	if a.access != AccessWrite {
		panic("read acquirer has no write signal")
	}
	return a.writeCond
}

// DirtiedPage reports whether this acquirer has modified the block.
func (a *Acquirer) DirtiedPage() bool {
	c := a.txn.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	return a.dirtiedPage
}

// SetRecency attaches an opaque recency token to this acquirer. The token is
// handed through unchanged to the serializer when the owning transaction
// flushes.
func (a *Acquirer) SetRecency(recency serializer.Recency) {
	c := a.txn.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	a.recency = recency
}

// DeclareReadonly downgrades a write-acquirer to a reader, allowing queued
// acquirers behind it to advance.
func (a *Acquirer) DeclareReadonly() {
	c := a.txn.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	a.declareReadonly()
}

// declareReadonly requires the cache mutex.
func (a *Acquirer) declareReadonly() {
	a.access = AccessRead
	cp := a.currentPage
	if cp == nil {
		return
	}
	// An acquirer already holding read access needs no pulse itself; the
	// queue advances from its successor.
	if i := cp.indexOf(a); a.readCond.isPulsed() && i+1 < len(cp.acquirers) {
		cp.pulsePulsables(cp.acquirers[i+1])
		return
	}
	cp.pulsePulsables(a)
}

// DeclareSnapshotted detaches this reader from the acquirer queue with an
// owned reference to the block's current version. The acquirer keeps reading
// that stable version for the rest of its life, regardless of later writers.
func (a *Acquirer) DeclareSnapshotted() {
	c := a.txn.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	a.declareSnapshotted()
}

// declareSnapshotted requires the cache mutex.
func (a *Acquirer) declareSnapshotted() {
	if a.access == AccessWrite {
		panic("write acquirer cannot be snapshotted")
	}
	// Redeclaration of snapshottedness is allowed.
	if a.declaredSnapshotted {
		return
	}
	if a.currentPage == nil {
		panic("snapshotting a detached acquirer")
	}
	a.declaredSnapshotted = true
	a.currentPage.pulsePulsables(a)
}

// Deleted reports whether the acquirer observes the block as deleted. It
// blocks until read access has been granted.
func (a *Acquirer) Deleted() bool {
	a.readCond.Wait()
	c := a.txn.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	if a.currentPage == nil {
		return !a.snapshottedPage.has()
	}
	return a.currentPage.isDeleted
}

// Data returns the block's bytes for reading. It blocks until read access
// has been granted and the underlying page content is resident. The returned
// slice stays valid and stable until the acquirer is released; it must not
// be modified. Reading a deleted block returns nil.
func (a *Acquirer) Data() []byte {
	a.readCond.Wait()
	c := a.txn.cache
	c.mu.Lock()
	var p *page
	if a.currentPage == nil {
		if !a.snapshottedPage.has() {
			c.mu.Unlock()
			return nil
		}
		p = a.snapshottedPage.getPageForRead()
	} else {
		if a.currentPage.isDeleted {
			c.mu.Unlock()
			return nil
		}
		p = a.currentPage.thePageForRead()
	}
	hold := a.holdOn(c, p)
	c.mu.Unlock()

	hold.bufReady.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	return hold.bufForRead(c)
}

// Write returns the block's bytes for modification. It blocks until
// exclusive write access has been granted and the content is resident. The
// block's on-disk copy is invalidated; the returned slice stays valid until
// the acquirer is released.
func (a *Acquirer) Write() []byte {
	if a.access != AccessWrite {
		panic("write access through a read acquirer")
	}
	a.writeCond.Wait()
	c := a.txn.cache
	c.mu.Lock()
	a.dirtiedPage = true
	p := a.currentPage.thePageForWrite()
	hold := a.holdOn(c, p)
	c.mu.Unlock()

	hold.bufReady.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	return hold.bufForWrite(c)
}

// MarkDeleted deletes the block. It blocks until exclusive write access has
// been granted. Queued read-acquirers behind this one will observe the
// deletion; a queued writer resurrects the block with a blank buffer.
func (a *Acquirer) MarkDeleted() {
	if a.access != AccessWrite {
		panic("deleting a block through a read acquirer")
	}
	a.writeCond.Wait()
	c := a.txn.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	a.dirtiedPage = true
	if a.hold != nil {
		a.hold.release(c)
		a.hold = nil
	}
	a.currentPage.markDeleted()
}

// holdOn binds the acquirer's resident-page hold to the given page version.
// Requires the cache mutex.
func (a *Acquirer) holdOn(c *Cache, p *page) *pageRead {
	if a.hold != nil && a.hold.page == p {
		return a.hold
	}
	if a.hold != nil {
		a.hold.release(c)
	}
	a.hold = newPageRead(c, p)
	return a.hold
}

// Release ends this acquirer's hold on the block. If the acquirer had
// obtained write access, its effect is committed to the owning transaction.
// Releasing re-runs the queue advancement for any successors.
func (a *Acquirer) Release() {
	c := a.txn.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	if a.hold != nil {
		a.hold.release(c)
		a.hold = nil
	}
	a.txn.removeAcquirer(a)
	if a.currentPage != nil {
		a.currentPage.removeAcquirer(a)
		a.currentPage = nil
	}
	a.snapshottedPage.reset(c)
}

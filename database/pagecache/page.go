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
	"fmt"

	"github.com/harbordb/harbor/backend/serializer"
)

// page is a single in-memory version of a block's bytes. One block ID may
// have several pages alive at a time: the version owned by its currentPage
// plus older versions retained by snapshotted acquirers and transactions.
//
// A page's bytes are stable from the moment its buffer-ready signal pulses
// until the page is either written by its exclusive holder or evicted. All
// fields are protected by the cache mutex.
type page struct {
	buf              []byte                // the block content, nil while loading or after eviction
	serBufSize       uint32                // content size in bytes, 0 only while not yet loaded
	token            serializer.BlockToken // present iff a clean copy exists on disk
	waiters          []*pageRead           // reader handles bound to this exact version
	snapshotRefcount int                   // living references, page dies at zero
	destroyPtr       *bool                 // sentinel shared with an in-flight construction
	accessTime       uint64                // stamp for the oldish eviction discipline
	bag              *evictionBag          // the bag this page is currently a member of
}

// newLoadingPage creates a page whose content is read asynchronously from
// the serializer. The page starts in the unevictable bag; waiters are pulsed
// once loading completes. Requires the cache mutex.
func newLoadingPage(c *Cache, block serializer.BlockID) *page {
	p := &page{}
	c.evicter.addNotYetLoaded(p)
	destroyed := new(bool)
	p.destroyPtr = destroyed
	c.drainer.Add(1)
	go p.loadWithBlockID(c, block, destroyed)
	return p
}

// newFreshPage creates a page around an already filled buffer. The page is
// immediately evictable-unbacked: its content exists nowhere on disk yet.
// Requires the cache mutex.
func newFreshPage(c *Cache, buf []byte) *page {
	p := &page{buf: buf, serBufSize: uint32(len(buf))}
	p.accessTime = c.evicter.nextAccessTime()
	c.evicter.addToEvictableUnbacked(p)
	return p
}

// newCopyPage creates a copy-on-write duplicate of the given page. The copy
// waits for the copyee's buffer to become ready, then duplicates the bytes
// in a fresh buffer. The copyee is kept alive for the duration through an
// own reference. Requires the cache mutex.
func newCopyPage(c *Cache, copyee *page) *page {
	p := &page{}
	c.evicter.addNotYetLoaded(p)
	destroyed := new(bool)
	p.destroyPtr = destroyed
	copyee.addSnapshotter()
	read := newPageRead(c, copyee)
	c.drainer.Add(1)
	go p.loadFromCopyee(c, copyee, read, destroyed)
	return p
}

func (p *page) loadWithBlockID(c *Cache, block serializer.BlockID, destroyed *bool) {
	defer c.drainer.Done()
	token, err := c.serializer.IndexRead(block)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve block %d: %v", block, err))
	}
	buf := c.serializer.Malloc()
	if err := c.serializer.BlockRead(token, buf, c.readsAccount); err != nil {
		panic(fmt.Sprintf("failed to read block %d: %v", block, err))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if *destroyed {
		// The page was destroyed while the read was in flight.
		token.Release()
		return
	}
	p.serBufSize = uint32(len(buf))
	p.buf = buf
	p.token = token
	p.destroyPtr = nil
	p.pulseWaitersOrMakeEvictable(c)
}

func (p *page) loadFromCopyee(c *Cache, copyee *page, read *pageRead, destroyed *bool) {
	defer c.drainer.Done()
	read.bufReady.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !*destroyed {
		buf := c.serializer.Malloc()
		copy(buf, copyee.buf[:copyee.serBufSize])
		p.serBufSize = copyee.serBufSize
		p.buf = buf
		p.destroyPtr = nil
		p.pulseWaitersOrMakeEvictable(c)
	}
	read.release(c)
	copyee.removeSnapshotter(c)
}

// loadFromToken restores the content of an evicted page from its retained
// on-disk copy. Started by addWaiter when a reader arrives at an evicted
// page. Unlike the initial load, the page's size is already accounted for.
func (p *page) loadFromToken(c *Cache, token serializer.BlockToken, destroyed *bool) {
	defer c.drainer.Done()
	buf := c.serializer.Malloc()
	if err := c.serializer.BlockRead(token, buf, c.readsAccount); err != nil {
		panic(fmt.Sprintf("failed to re-read evicted block: %v", err))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	token.Release()
	if *destroyed {
		return
	}
	p.buf = buf
	p.destroyPtr = nil
	p.accessTime = c.evicter.nextAccessTime()
	for _, w := range p.waiters {
		w.bufReady.pulse()
	}
	c.evicter.changeToCorrectEvictionBag(p)
	c.evicter.notifyAccess()
}

// addSnapshotter adds a living reference. Requires the cache mutex.
func (p *page) addSnapshotter() {
	p.snapshotRefcount++
}

// removeSnapshotter drops a living reference. The last reference destroys
// the page: an in-flight construction is signalled through the sentinel, the
// disk token is released, and the page leaves its eviction bag. Requires the
// cache mutex.
func (p *page) removeSnapshotter(c *Cache) {
	if p.snapshotRefcount < 1 {
		panic("snapshot reference count underflow")
	}
	p.snapshotRefcount--
	if p.snapshotRefcount == 0 {
		// Every pageRead is bounded by the lifetime of some page reference,
		// so there can be no waiters left at this point.
		if len(p.waiters) != 0 {
			panic("destroying a page with waiters")
		}
		if p.destroyPtr != nil {
			*p.destroyPtr = true
			p.destroyPtr = nil
		}
		if p.token != nil {
			p.token.Release()
			p.token = nil
		}
		c.evicter.removePage(p)
	}
}

func (p *page) numSnapshotReferences() int {
	return p.snapshotRefcount
}

func (p *page) makeCopy(c *Cache) *page {
	return newCopyPage(c, p)
}

// pulseWaitersOrMakeEvictable completes an initial construction: the freshly
// loaded size is accounted, waiters (if any) are released, and a waiterless
// page moves from the unevictable bag to its proper evictable bag. Requires
// the cache mutex.
func (p *page) pulseWaitersOrMakeEvictable(c *Cache) {
	if !c.evicter.pageIsInUnevictableBag(p) {
		panic("page completing construction outside the unevictable bag")
	}
	c.evicter.addNowLoadedSize(p.serBufSize)
	if len(p.waiters) == 0 {
		c.evicter.moveUnevictableToEvictable(p)
	} else {
		p.accessTime = c.evicter.nextAccessTime()
		for _, w := range p.waiters {
			w.bufReady.pulse()
		}
	}
}

// addWaiter registers a reader handle on this page version. An evicted page
// begins restoring its content from disk. Requires the cache mutex.
func (p *page) addWaiter(c *Cache, r *pageRead) {
	p.waiters = append(p.waiters, r)
	if p.buf == nil && p.token != nil && p.destroyPtr == nil {
		destroyed := new(bool)
		p.destroyPtr = destroyed
		token := p.token
		token.Retain()
		c.drainer.Add(1)
		go p.loadFromToken(c, token, destroyed)
	}
	c.evicter.changeToCorrectEvictionBag(p)
	if p.buf != nil {
		p.accessTime = c.evicter.nextAccessTime()
		r.bufReady.pulse()
	}
}

// removeWaiter requires the cache mutex.
func (p *page) removeWaiter(c *Cache, r *pageRead) {
	for i, w := range p.waiters {
		if w == r {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			break
		}
	}
	c.evicter.changeToCorrectEvictionBag(p)
	if p.snapshotRefcount < 1 {
		panic("page with waiters lost all its references")
	}
}

// resetToken invalidates the on-disk copy of this page. Only the exclusive
// holder may call this, and it must hold a waiter, which keeps the page
// unevictable while it is being modified. Requires the cache mutex.
func (p *page) resetToken() {
	if len(p.waiters) == 0 {
		panic("resetting the block token of a page without waiters")
	}
	if p.token != nil {
		p.token.Release()
		p.token = nil
	}
}

// evictSelf releases the page's buffer while retaining its block token.
// Requires the cache mutex.
func (p *page) evictSelf() {
	if p.token == nil {
		panic("evicting a page without a block token")
	}
	p.buf = nil
}

// pageRead is a task's handle on one page version for the purpose of
// accessing its bytes. While a pageRead exists, the page is unevictable and
// its bytes remain stable once bufReady has pulsed.
type pageRead struct {
	page     *page
	bufReady *Signal
}

// newPageRead requires the cache mutex.
func newPageRead(c *Cache, p *page) *pageRead {
	r := &pageRead{page: p, bufReady: newSignal()}
	p.addWaiter(c, r)
	return r
}

// release requires the cache mutex.
func (r *pageRead) release(c *Cache) {
	if r.page != nil {
		r.page.removeWaiter(c, r)
		r.page = nil
	}
}

// bufForRead requires bufReady to have pulsed and the cache mutex.
func (r *pageRead) bufForRead(c *Cache) []byte {
	r.page.accessTime = c.evicter.nextAccessTime()
	return r.page.buf
}

// bufForWrite returns the page's buffer for modification, dropping the
// on-disk token since the persisted copy no longer matches. Requires
// bufReady to have pulsed and the cache mutex.
func (r *pageRead) bufForWrite(c *Cache) []byte {
	r.page.resetToken()
	r.page.accessTime = c.evicter.nextAccessTime()
	return r.page.buf
}

// pagePtr is an owning reference to a page, contributing to its snapshot
// reference count. The write accessor transparently applies copy-on-write
// when other references to the same page exist.
type pagePtr struct {
	page *page
}

// init requires the cache mutex. A nil page is a valid target and marks the
// snapshot of a deleted block.
func (ptr *pagePtr) init(p *page) {
	if ptr.page != nil {
		panic("re-initialization of a page reference")
	}
	ptr.page = p
	if p != nil {
		p.addSnapshotter()
	}
}

// reset requires the cache mutex.
func (ptr *pagePtr) reset(c *Cache) {
	if ptr.page != nil {
		p := ptr.page
		ptr.page = nil
		p.removeSnapshotter(c)
	}
}

func (ptr *pagePtr) has() bool {
	return ptr.page != nil
}

func (ptr *pagePtr) getPageForRead() *page {
	if ptr.page == nil {
		panic("reading through an empty page reference")
	}
	return ptr.page
}

// getPageForWrite returns the referenced page for modification. If the page
// is shared with other holders, it is replaced by a private copy first.
// Requires the cache mutex.
func (ptr *pagePtr) getPageForWrite(c *Cache) *page {
	if ptr.page == nil {
		panic("writing through an empty page reference")
	}
	if ptr.page.numSnapshotReferences() > 1 {
		copied := ptr.page.makeCopy(c)
		copied.addSnapshotter()
		old := ptr.page
		ptr.page = copied
		old.removeSnapshotter(c)
	}
	return ptr.page
}

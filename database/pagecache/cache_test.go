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
	"bytes"
	"testing"

	"github.com/harbordb/harbor/backend/serializer/memory"
)

func TestCache_ReadsPreviouslyStoredContent(t *testing.T) {
	cache, _ := newTestCache(t)
	block := seedBlock(t, cache, 7)

	txn := cache.NewTransaction(nil)
	acq := txn.Acquire(block, AccessRead)
	want := make([]byte, testBlockSize)
	for i := range want {
		want[i] = 7
	}
	if got := acq.Data(); !bytes.Equal(got, want) {
		t.Errorf("unexpected block content, got %v, wanted %v", got[:4], want[:4])
	}
	acq.Release()
	txn.Release()
}

func TestCache_WrittenContentIsVisibleToLaterTransactions(t *testing.T) {
	cache, _ := newTestCache(t)
	block := seedBlock(t, cache, 1)

	txn1 := cache.NewTransaction(nil)
	w := txn1.Acquire(block, AccessWrite)
	buf := w.Write()
	for i := range buf {
		buf[i] = 2
	}
	w.Release()
	txn1.Release()

	txn2 := cache.NewTransaction(nil)
	r := txn2.Acquire(block, AccessRead)
	want := make([]byte, testBlockSize)
	for i := range want {
		want[i] = 2
	}
	if got := r.Data(); !bytes.Equal(got, want) {
		t.Errorf("unexpected block content, got %v, wanted %v", got[:4], want[:4])
	}
	r.Release()
	txn2.Release()
}

func TestCache_FlushedContentSurvivesARestart(t *testing.T) {
	ser := memory.NewSerializer(testBlockSize)
	cache, err := New(ser, NewFixedBalancer(1<<20))
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	block := seedBlock(t, cache, 9)
	if err := cache.Close(); err != nil {
		t.Fatalf("failed to close cache: %v", err)
	}

	restarted, err := New(ser, NewFixedBalancer(1<<20))
	if err != nil {
		t.Fatalf("failed to restart cache: %v", err)
	}
	defer restarted.Close()

	txn := restarted.NewTransaction(nil)
	r := txn.Acquire(block, AccessRead)
	want := make([]byte, testBlockSize)
	for i := range want {
		want[i] = 9
	}
	if got := r.Data(); !bytes.Equal(got, want) {
		t.Errorf("content lost across restart, got %v, wanted %v", got[:4], want[:4])
	}
	r.Release()
	txn.Release()
}

func TestCache_EvictedBlockIsReloadedFromTheSerializer(t *testing.T) {
	// A budget fitting exactly one block forces the first block out when a
	// second one is created.
	ser := memory.NewSerializer(testBlockSize)
	cache, err := New(ser, NewFixedBalancer(testBlockSize))
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer cache.Close()

	txn1 := cache.NewTransaction(nil)
	w1 := txn1.AcquireNew()
	block := w1.Block()
	buf := w1.Write()
	for i := range buf {
		buf[i] = 5
	}
	w1.Release()
	txn1.Release()

	txn2 := cache.NewTransaction(nil)
	w2 := txn2.AcquireNew()
	w2.Write()[0] = 6
	w2.Release()
	txn2.Release()

	cache.mu.Lock()
	firstPage := cache.currentPages[block].page.page
	evicted := cache.evicter.evicted.hasPage(firstPage)
	cache.mu.Unlock()
	if !evicted {
		t.Fatalf("first block was not evicted under memory pressure")
	}

	txn3 := cache.NewTransaction(nil)
	r := txn3.Acquire(block, AccessRead)
	want := make([]byte, testBlockSize)
	for i := range want {
		want[i] = 5
	}
	if got := r.Data(); !bytes.Equal(got, want) {
		t.Errorf("unexpected reloaded content, got %v, wanted %v", got[:4], want[:4])
	}

	// While held by a reader the page is unevictable.
	cache.mu.Lock()
	unevictable := cache.evicter.unevictable.hasPage(firstPage)
	cache.mu.Unlock()
	if !unevictable {
		t.Errorf("page with a reader is not in the unevictable bag")
	}

	r.Release()
	txn3.Release()
}

func TestCache_EvictionNeverExceedsLimitWhileCandidatesRemain(t *testing.T) {
	ser := memory.NewSerializer(testBlockSize)
	cache, err := New(ser, NewFixedBalancer(1<<20))
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer cache.Close()

	for i := 0; i < 8; i++ {
		seedBlock(t, cache, byte(i))
	}

	cache.UpdateMemoryLimit(2 * testBlockSize)

	cache.mu.Lock()
	size := cache.evicter.inMemorySize()
	candidates := cache.evicter.evictableDiskBacked.count()
	cache.mu.Unlock()
	if size > 2*testBlockSize && candidates > 0 {
		t.Errorf("in-memory size %d exceeds the limit with %d eviction candidates left", size, candidates)
	}
}

func TestCache_PagesWithWaitersAreNotEvicted(t *testing.T) {
	cache, _ := newTestCache(t)
	block := seedBlock(t, cache, 1)

	txn := cache.NewTransaction(nil)
	r := txn.Acquire(block, AccessRead)
	r.Data() // binds a waiter, the page becomes unevictable

	cache.UpdateMemoryLimit(0)

	cache.mu.Lock()
	size := cache.evicter.inMemorySize()
	cache.mu.Unlock()
	if size == 0 {
		t.Errorf("page with an active reader was evicted")
	}

	want := make([]byte, testBlockSize)
	for i := range want {
		want[i] = 1
	}
	if got := r.Data(); !bytes.Equal(got, want) {
		t.Errorf("content disturbed by eviction pressure, got %v, wanted %v", got[:4], want[:4])
	}
	r.Release()
	txn.Release()
}

func TestCache_DeletedBlockIDIsRecycled(t *testing.T) {
	cache, _ := newTestCache(t)
	block := seedBlock(t, cache, 1)

	txn := cache.NewTransaction(nil)
	w := txn.Acquire(block, AccessWrite)
	w.MarkDeleted()
	w.Release()
	txn.Release()

	txn2 := cache.NewTransaction(nil)
	n := txn2.AcquireNew()
	if got := n.Block(); got != block {
		t.Errorf("deleted block ID was not recycled, got %d, wanted %d", got, block)
	}
	for _, b := range n.Write() {
		if b != 0 {
			t.Fatalf("recycled block does not start with a blank buffer")
		}
	}

	// The deleter has flushed; no last-modifier edge carries over.
	n.Release()
	cache.mu.Lock()
	preceders := len(txn2.preceders)
	cache.mu.Unlock()
	if preceders != 0 {
		t.Errorf("recycled block carried a last-modifier edge, got %d preceders", preceders)
	}
	txn2.Release()
}

func TestCache_DeletedBlockIsDurablyRemoved(t *testing.T) {
	ser := memory.NewSerializer(testBlockSize)
	cache, err := New(ser, NewFixedBalancer(1<<20))
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	block := seedBlock(t, cache, 1)

	txn := cache.NewTransaction(nil)
	w := txn.Acquire(block, AccessWrite)
	w.MarkDeleted()
	w.Release()
	txn.Release()
	if err := cache.Close(); err != nil {
		t.Fatalf("failed to close cache: %v", err)
	}

	// A restarted cache seeds its free list from the delete bits.
	restarted, err := New(ser, NewFixedBalancer(1<<20))
	if err != nil {
		t.Fatalf("failed to restart cache: %v", err)
	}
	defer restarted.Close()
	txn2 := restarted.NewTransaction(nil)
	n := txn2.AcquireNew()
	if got := n.Block(); got != block {
		t.Errorf("deleted block ID not reusable after restart, got %d, wanted %d", got, block)
	}
	n.Release()
	txn2.Release()
}

func TestCache_InMemorySizeTracksLoadedPages(t *testing.T) {
	cache, _ := newTestCache(t)
	if got := cache.InMemorySize(); got != 0 {
		t.Fatalf("fresh cache reports %d bytes in memory", got)
	}
	seedBlock(t, cache, 1)
	if got, want := cache.InMemorySize(), uint64(testBlockSize); got != want {
		t.Errorf("unexpected in-memory size, got %d, wanted %d", got, want)
	}
}

func TestCache_CanBeClosedMultipleTimes(t *testing.T) {
	ser := memory.NewSerializer(testBlockSize)
	cache, err := New(ser, NewFixedBalancer(1<<20))
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("failed to close cache: %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("failed to close cache twice: %v", err)
	}
}

func TestCache_ReportsMemoryFootprint(t *testing.T) {
	cache, _ := newTestCache(t)
	seedBlock(t, cache, 1)
	fp := cache.GetMemoryFootprint()
	if fp == nil || fp.Total() == 0 {
		t.Errorf("cache reports no memory footprint")
	}
}

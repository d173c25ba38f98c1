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
	"sync"
	"testing"
	"time"

	"github.com/harbordb/harbor/backend/serializer"
	"github.com/harbordb/harbor/backend/serializer/memory"
)

// recordingSerializer wraps the in-memory serializer and records the order
// of index writes for assertions on the causal flush order.
type recordingSerializer struct {
	*memory.Serializer
	mutex       sync.Mutex
	indexWrites [][]serializer.IndexWriteOp
}

func (r *recordingSerializer) IndexWrite(ops []serializer.IndexWriteOp, account serializer.IOAccount) error {
	r.mutex.Lock()
	recorded := make([]serializer.IndexWriteOp, len(ops))
	copy(recorded, ops)
	r.indexWrites = append(r.indexWrites, recorded)
	r.mutex.Unlock()
	return r.Serializer.IndexWrite(ops, account)
}

func (r *recordingSerializer) getIndexWrites() [][]serializer.IndexWriteOp {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.indexWrites
}

func TestTransaction_OverwritingGainsAPrecederEdge(t *testing.T) {
	cache, _ := newTestCache(t)
	block := seedBlock(t, cache, 1)

	txn1 := cache.NewTransaction(nil)
	w1 := txn1.Acquire(block, AccessWrite)
	w1.Write()[0] = 2
	w1.Release()

	txn2 := cache.NewTransaction(nil)
	w2 := txn2.Acquire(block, AccessWrite)
	w2.Write()[0] = 3
	w2.Release()

	cache.mu.Lock()
	found := false
	for _, p := range txn2.preceders {
		if p == txn1 {
			found = true
		}
	}
	cache.mu.Unlock()
	if !found {
		t.Errorf("overwriting transaction did not gain a preceder edge")
	}

	txn1.Release()
	txn2.Release()
}

func TestTransaction_PrecederEdgesAreDeduplicated(t *testing.T) {
	cache, _ := newTestCache(t)
	blockA := seedBlock(t, cache, 1)
	blockB := seedBlock(t, cache, 2)

	txn1 := cache.NewTransaction(nil)
	a1 := txn1.Acquire(blockA, AccessWrite)
	a1.Write()[0] = 3
	a1.Release()
	b1 := txn1.Acquire(blockB, AccessWrite)
	b1.Write()[0] = 3
	b1.Release()

	// Overwriting two blocks last modified by the same transaction yields a
	// single edge.
	txn2 := cache.NewTransaction(nil)
	a2 := txn2.Acquire(blockA, AccessWrite)
	a2.Write()[0] = 4
	a2.Release()
	b2 := txn2.Acquire(blockB, AccessWrite)
	b2.Write()[0] = 4
	b2.Release()

	cache.mu.Lock()
	preceders := len(txn2.preceders)
	cache.mu.Unlock()
	if preceders != 1 {
		t.Errorf("unexpected number of preceders, got %d, wanted 1", preceders)
	}

	txn1.Release()
	txn2.Release()
}

func TestTransaction_SuccessorFlushesAfterPreceder(t *testing.T) {
	ser := &recordingSerializer{Serializer: memory.NewSerializer(testBlockSize)}
	cache, err := New(ser, NewFixedBalancer(1<<20))
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer cache.Close()

	txn1 := cache.NewTransaction(nil)
	w1 := txn1.AcquireNew()
	block := w1.Block()
	w1.Write()[0] = 1
	w1.Release()

	txn2 := cache.NewTransaction(nil)
	w2 := txn2.Acquire(block, AccessWrite)
	w2.Write()[0] = 2
	w2.Release()

	// Release the successor first; its flush has to wait for txn1.
	released := make(chan struct{})
	go func() {
		txn2.Release()
		close(released)
	}()

	select {
	case <-txn2.FlushCompleteSignal().Done():
		t.Fatalf("successor flushed before its preceder")
	case <-time.After(10 * time.Millisecond):
	}

	txn1.Release()
	<-released

	writes := ser.getIndexWrites()
	if len(writes) != 2 {
		t.Fatalf("unexpected number of index writes, got %d, wanted 2", len(writes))
	}

	// The final content of the block is txn2's version.
	restarted, err := New(ser, NewFixedBalancer(1<<20))
	if err != nil {
		t.Fatalf("failed to restart cache: %v", err)
	}
	defer restarted.Close()
	txn3 := restarted.NewTransaction(nil)
	r := txn3.Acquire(block, AccessRead)
	if got := r.Data()[0]; got != 2 {
		t.Errorf("unexpected final block content, got %d, wanted 2", got)
	}
	r.Release()
	txn3.Release()
}

func TestTransaction_ExplicitPrecederOrdersFlushes(t *testing.T) {
	cache, _ := newTestCache(t)

	txn1 := cache.NewTransaction(nil)
	w1 := txn1.AcquireNew()
	w1.Write()[0] = 1
	w1.Release()

	// txn2 touches unrelated state but is explicitly ordered behind txn1.
	txn2 := cache.NewTransaction(txn1)
	w2 := txn2.AcquireNew()
	w2.Write()[0] = 2
	w2.Release()

	released := make(chan struct{})
	go func() {
		txn2.Release()
		close(released)
	}()

	select {
	case <-txn2.FlushCompleteSignal().Done():
		t.Fatalf("successor flushed before its explicit preceder")
	case <-time.After(10 * time.Millisecond):
	}

	txn1.Release()
	<-released
}

func TestTransaction_RewritingOwnBlockAddsNoSelfEdge(t *testing.T) {
	cache, _ := newTestCache(t)
	block := seedBlock(t, cache, 1)

	txn := cache.NewTransaction(nil)
	w1 := txn.Acquire(block, AccessWrite)
	w1.Write()[0] = 2
	w1.Release()
	w2 := txn.Acquire(block, AccessWrite)
	w2.Write()[0] = 3
	w2.Release()

	cache.mu.Lock()
	preceders := len(txn.preceders)
	cache.mu.Unlock()
	if preceders != 0 {
		t.Errorf("transaction depends on itself, got %d preceders", preceders)
	}
	txn.Release()

	txn2 := cache.NewTransaction(nil)
	r := txn2.Acquire(block, AccessRead)
	if got := r.Data()[0]; got != 3 {
		t.Errorf("unexpected final block content, got %d, wanted 3", got)
	}
	r.Release()
	txn2.Release()
}

func TestTransaction_CompletedPrecederIsNotConnected(t *testing.T) {
	cache, _ := newTestCache(t)

	txn1 := cache.NewTransaction(nil)
	w1 := txn1.AcquireNew()
	w1.Write()[0] = 1
	w1.Release()
	txn1.Release()

	txn2 := cache.NewTransaction(txn1)
	cache.mu.Lock()
	preceders := len(txn2.preceders)
	cache.mu.Unlock()
	if preceders != 0 {
		t.Errorf("flushed transaction was connected as a preceder")
	}
	txn2.Release()
}

func TestTransaction_TouchedBlockPropagatesRecency(t *testing.T) {
	cache, ser := newTestCache(t)
	block := seedBlock(t, cache, 1)

	txn := cache.NewTransaction(nil)
	w := txn.Acquire(block, AccessWrite)
	w.SetRecency(42)
	w.WriteSignal().Wait()
	w.Release() // never dirtied, only touched
	txn.Release()

	if got, want := ser.GetRecency(block), serializer.Recency(42); got != want {
		t.Errorf("unexpected recency, got %d, wanted %d", got, want)
	}
}

func TestTransaction_DirtiedBlockPropagatesRecency(t *testing.T) {
	cache, ser := newTestCache(t)
	block := seedBlock(t, cache, 1)

	txn := cache.NewTransaction(nil)
	w := txn.Acquire(block, AccessWrite)
	w.SetRecency(7)
	w.Write()[0] = 2
	w.Release()
	txn.Release()

	if got, want := ser.GetRecency(block), serializer.Recency(7); got != want {
		t.Errorf("unexpected recency, got %d, wanted %d", got, want)
	}
}

func TestTransaction_ReleaseWithLiveAcquirersPanics(t *testing.T) {
	cache, _ := newTestCache(t)
	block := seedBlock(t, cache, 1)

	txn := cache.NewTransaction(nil)
	acq := txn.Acquire(block, AccessRead)

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("releasing a transaction with live acquirers did not panic")
		}
		acq.Release()
		txn.Release()
	}()
	txn.Release()
}

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

import "testing"

type stubToken struct{}

func (stubToken) Retain()  {}
func (stubToken) Release() {}

func TestEvicter_CorrectEvictionCategory(t *testing.T) {
	cache, _ := newTestCache(t)
	e := cache.evicter

	destroyed := new(bool)
	tests := map[string]struct {
		page *page
		want *evictionBag
	}{
		"loading": {
			page: &page{destroyPtr: destroyed},
			want: e.unevictable,
		},
		"with waiters": {
			page: &page{buf: make([]byte, 8), waiters: []*pageRead{{}}},
			want: e.unevictable,
		},
		"clean with token": {
			page: &page{buf: make([]byte, 8), token: stubToken{}},
			want: e.evictableDiskBacked,
		},
		"dirty without token": {
			page: &page{buf: make([]byte, 8)},
			want: e.evictableUnbacked,
		},
		"evicted": {
			page: &page{token: stubToken{}},
			want: e.evicted,
		},
	}

	cache.mu.Lock()
	defer cache.mu.Unlock()
	for name, test := range tests {
		if got := e.correctEvictionCategory(test.page); got != test.want {
			t.Errorf("%s: page categorized into the wrong bag", name)
		}
	}
}

func TestEvicter_InMemorySizeExcludesEvictedPages(t *testing.T) {
	cache, _ := newTestCache(t)
	block := seedBlock(t, cache, 1)

	if got, want := cache.InMemorySize(), uint64(testBlockSize); got != want {
		t.Fatalf("unexpected in-memory size, got %d, wanted %d", got, want)
	}

	cache.UpdateMemoryLimit(0)

	cache.mu.Lock()
	p := cache.currentPages[block].page.page
	evicted := cache.evicter.evicted.hasPage(p)
	cache.mu.Unlock()
	if !evicted {
		t.Fatalf("unreferenced disk-backed page survived a zero limit")
	}
	if got := cache.InMemorySize(); got != 0 {
		t.Errorf("evicted page still counts toward memory, got %d", got)
	}
}

func TestEvicter_EvictionStopsWhenNoCandidatesRemain(t *testing.T) {
	cache, _ := newTestCache(t)
	block := seedBlock(t, cache, 1)

	// An unbacked page is no eviction candidate: modify the block and keep
	// the transaction unflushed.
	txn := cache.NewTransaction(nil)
	w := txn.Acquire(block, AccessWrite)
	w.Write()[0] = 2
	w.Release()

	cache.UpdateMemoryLimit(0)

	if got := cache.InMemorySize(); got == 0 {
		t.Errorf("unbacked page was evicted")
	}

	txn.Release()
}

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

import "math/rand"

// oldishSampleSize is the number of random candidates inspected per eviction
// step. The candidate with the oldest access time is the one evicted, giving
// an approximate LRU discipline without maintaining a full ordering.
const oldishSampleSize = 8

// evictionBag is a set of pages with an aggregated byte size. The bag
// combines a position map with a backing slice so that membership tests,
// insertions, removals, and random sampling are all constant time. Every
// live page is a member of exactly one of the evicter's four bags.
type evictionBag struct {
	positions map[*page]int // maps pages to their positions in the entries slice
	entries   []*page
	size      uint64
}

func newEvictionBag() *evictionBag {
	return &evictionBag{positions: map[*page]int{}}
}

// addWithoutSize inserts a page whose content size is not yet known. The
// size is contributed later through addSize, once loading completes.
func (b *evictionBag) addWithoutSize(p *page) {
	if _, exists := b.positions[p]; exists {
		panic("page is already a member of this eviction bag")
	}
	b.positions[p] = len(b.entries)
	b.entries = append(b.entries, p)
}

// addSize accounts additional bytes to this bag without changing membership.
func (b *evictionBag) addSize(serBufSize uint32) {
	b.size += uint64(serBufSize)
}

func (b *evictionBag) add(p *page, serBufSize uint32) {
	b.addWithoutSize(p)
	b.size += uint64(serBufSize)
}

func (b *evictionBag) remove(p *page, serBufSize uint32) {
	pos, exists := b.positions[p]
	if !exists {
		panic("page is not a member of this eviction bag")
	}
	last := b.entries[len(b.entries)-1]
	if last != p {
		b.entries[pos] = last
		b.positions[last] = pos
	}
	b.entries = b.entries[:len(b.entries)-1]
	delete(b.positions, p)
	if uint64(serBufSize) > b.size {
		panic("eviction bag size underflow")
	}
	b.size -= uint64(serBufSize)
}

func (b *evictionBag) hasPage(p *page) bool {
	_, exists := b.positions[p]
	return exists
}

func (b *evictionBag) count() int {
	return len(b.entries)
}

// removeOldish picks the page with the oldest access time among a small
// random sample, removes it from the bag, and returns it. Bags no larger
// than the sample size are scanned exhaustively. It returns false if the
// bag is empty.
func (b *evictionBag) removeOldish() (*page, bool) {
	if len(b.entries) == 0 {
		return nil, false
	}
	var oldest *page
	if len(b.entries) <= oldishSampleSize {
		oldest = b.entries[0]
		for _, candidate := range b.entries[1:] {
			if candidate.accessTime < oldest.accessTime {
				oldest = candidate
			}
		}
	} else {
		oldest = b.entries[rand.Intn(len(b.entries))]
		for i := 1; i < oldishSampleSize; i++ {
			candidate := b.entries[rand.Intn(len(b.entries))]
			if candidate.accessTime < oldest.accessTime {
				oldest = candidate
			}
		}
	}
	b.remove(oldest, oldest.serBufSize)
	return oldest, true
}

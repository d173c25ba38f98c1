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

// freeList is a lightweight allocator of block IDs. It is seeded at startup
// with the IDs the serializer has marked deleted; once the pool runs dry,
// fresh monotonically increasing IDs are handed out. All operations require
// the cache mutex.
type freeList struct {
	nextNewBlockID serializer.BlockID
	freeIDs        []serializer.BlockID
}

func newFreeList(ser serializer.Serializer) (*freeList, error) {
	res := &freeList{nextNewBlockID: ser.MaxBlockID()}
	for id := serializer.BlockID(0); id < res.nextNewBlockID; id++ {
		deleted, err := ser.GetDeleteBit(id)
		if err != nil {
			return nil, err
		}
		if deleted {
			res.freeIDs = append(res.freeIDs, id)
		}
	}
	return res, nil
}

func (f *freeList) acquireBlockID() serializer.BlockID {
	if len(f.freeIDs) == 0 {
		res := f.nextNewBlockID
		f.nextNewBlockID++
		return res
	}
	res := f.freeIDs[len(f.freeIDs)-1]
	f.freeIDs = f.freeIDs[:len(f.freeIDs)-1]
	return res
}

func (f *freeList) releaseBlockID(id serializer.BlockID) {
	f.freeIDs = append(f.freeIDs, id)
}

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
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/harbordb/harbor/backend/serializer"
)

func TestFreeList_IsSeededFromDeleteBits(t *testing.T) {
	ctrl := gomock.NewController(t)
	ser := serializer.NewMockSerializer(ctrl)
	ser.EXPECT().MaxBlockID().Return(serializer.BlockID(5))
	for id := serializer.BlockID(0); id < 5; id++ {
		deleted := id == 1 || id == 3
		ser.EXPECT().GetDeleteBit(id).Return(deleted, nil)
	}

	freeList, err := newFreeList(ser)
	if err != nil {
		t.Fatalf("failed to create free list: %v", err)
	}

	// Pooled IDs are handed out before fresh ones.
	if got := freeList.acquireBlockID(); got != 3 {
		t.Errorf("unexpected block ID, got %d, wanted 3", got)
	}
	if got := freeList.acquireBlockID(); got != 1 {
		t.Errorf("unexpected block ID, got %d, wanted 1", got)
	}
	if got := freeList.acquireBlockID(); got != 5 {
		t.Errorf("unexpected block ID, got %d, wanted 5", got)
	}
	if got := freeList.acquireBlockID(); got != 6 {
		t.Errorf("unexpected block ID, got %d, wanted 6", got)
	}
}

func TestFreeList_ReleasedIDsAreReused(t *testing.T) {
	ctrl := gomock.NewController(t)
	ser := serializer.NewMockSerializer(ctrl)
	ser.EXPECT().MaxBlockID().Return(serializer.BlockID(0))

	freeList, err := newFreeList(ser)
	if err != nil {
		t.Fatalf("failed to create free list: %v", err)
	}

	first := freeList.acquireBlockID()
	second := freeList.acquireBlockID()
	freeList.releaseBlockID(first)

	if got := freeList.acquireBlockID(); got != first {
		t.Errorf("unexpected block ID, got %d, wanted %d", got, first)
	}
	if got := freeList.acquireBlockID(); got == second {
		t.Errorf("block ID %d handed out twice", second)
	}
}

func TestFreeList_ScanFailuresArePropagated(t *testing.T) {
	ctrl := gomock.NewController(t)
	ser := serializer.NewMockSerializer(ctrl)
	injected := fmt.Errorf("injected error")
	ser.EXPECT().MaxBlockID().Return(serializer.BlockID(3))
	ser.EXPECT().GetDeleteBit(serializer.BlockID(0)).Return(false, injected)

	if _, err := newFreeList(ser); err == nil {
		t.Errorf("scan failure was not propagated")
	}
}

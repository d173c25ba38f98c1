// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package memory

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/harbordb/harbor/backend/serializer"
	"github.com/harbordb/harbor/common"
)

// ErrBlockNotFound is returned by IndexRead for block IDs without a current
// on-disk version.
const ErrBlockNotFound = common.ConstError("block not found")

// Serializer is an in-memory implementation of the serializer contract. It
// retains block contents on the heap, guarded by token reference counts, and
// an index mapping block IDs to their current token. Its main use are unit
// tests and benchmarks; handing the same instance to a fresh cache models a
// restart against unchanged durable state.
type Serializer struct {
	mutex      sync.Mutex
	blockSize  int
	index      map[serializer.BlockID]*indexEntry
	maxBlockID serializer.BlockID
}

type indexEntry struct {
	token   *token
	recency serializer.Recency
	deleted bool
}

// NewSerializer creates an empty in-memory serializer managing blocks of the
// given size.
func NewSerializer(blockSize int) *Serializer {
	if blockSize < 1 {
		blockSize = 1
	}
	return &Serializer{
		blockSize: blockSize,
		index:     map[serializer.BlockID]*indexEntry{},
	}
}

func (s *Serializer) MaxBlockID() serializer.BlockID {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.maxBlockID
}

func (s *Serializer) GetDeleteBit(id serializer.BlockID) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	entry, found := s.index[id]
	if !found {
		// IDs below the maximum that were never indexed count as deleted.
		return true, nil
	}
	return entry.deleted, nil
}

func (s *Serializer) IndexRead(id serializer.BlockID) (serializer.BlockToken, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	entry, found := s.index[id]
	if !found || entry.token == nil {
		return nil, fmt.Errorf("%w: block %d", ErrBlockNotFound, id)
	}
	entry.token.Retain()
	return entry.token, nil
}

func (s *Serializer) BlockRead(t serializer.BlockToken, buf []byte, _ serializer.IOAccount) error {
	tok, ok := t.(*token)
	if !ok {
		return fmt.Errorf("foreign block token %T", t)
	}
	copy(buf, tok.data)
	return nil
}

func (s *Serializer) BlockWrites(writes []serializer.BlockWrite, _ serializer.IOAccount) ([]serializer.BlockToken, <-chan struct{}, error) {
	tokens := make([]serializer.BlockToken, len(writes))
	for i, write := range writes {
		data := make([]byte, write.Size)
		copy(data, write.Buf[:write.Size])
		tokens[i] = newToken(data)
	}
	// Content is copied synchronously, the submitted buffers are releasable
	// right away.
	releasable := make(chan struct{})
	close(releasable)
	return tokens, releasable, nil
}

func (s *Serializer) IndexWrite(ops []serializer.IndexWriteOp, _ serializer.IOAccount) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, op := range ops {
		entry, found := s.index[op.Block]
		if !found {
			entry = &indexEntry{}
			s.index[op.Block] = entry
		}
		if op.Block >= s.maxBlockID {
			s.maxBlockID = op.Block + 1
		}
		switch {
		case op.Delete:
			if entry.token != nil {
				entry.token.Release()
				entry.token = nil
			}
			entry.deleted = true
			entry.recency = 0
		case op.Token != nil:
			tok, ok := op.Token.(*token)
			if !ok {
				return fmt.Errorf("foreign block token %T", op.Token)
			}
			tok.Retain()
			if entry.token != nil {
				entry.token.Release()
			}
			entry.token = tok
			entry.deleted = false
			entry.recency = op.Recency
		default:
			entry.recency = op.Recency
		}
	}
	return nil
}

func (s *Serializer) MakeIOAccount(priority serializer.Priority) serializer.IOAccount {
	return &ioAccount{priority: priority}
}

func (s *Serializer) Malloc() []byte {
	return make([]byte, s.blockSize)
}

func (s *Serializer) BlockSize() int {
	return s.blockSize
}

// GetRecency reports the recency currently recorded for the given block. It
// is intended for tests inspecting the effect of index writes.
func (s *Serializer) GetRecency(id serializer.BlockID) serializer.Recency {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if entry, found := s.index[id]; found {
		return entry.recency
	}
	return 0
}

func (s *Serializer) GetMemoryFootprint() *common.MemoryFootprint {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	mf := common.NewMemoryFootprint(unsafe.Sizeof(*s))
	size := uintptr(0)
	for range s.index {
		size += unsafe.Sizeof(indexEntry{}) + unsafe.Sizeof(serializer.BlockID(0))
	}
	mf.AddChild("index", common.NewMemoryFootprint(size))
	blocks := uintptr(0)
	for _, entry := range s.index {
		if entry.token != nil {
			blocks += uintptr(len(entry.token.data))
		}
	}
	mf.AddChild("blocks", common.NewMemoryFootprint(blocks))
	return mf
}

type token struct {
	data []byte
	refs atomic.Int32
}

func newToken(data []byte) *token {
	t := &token{data: data}
	t.refs.Store(1)
	return t
}

func (t *token) Retain() {
	t.refs.Add(1)
}

func (t *token) Release() {
	if t.refs.Add(-1) < 0 {
		panic("block token released more often than retained")
	}
}

type ioAccount struct {
	priority serializer.Priority
}

func (a *ioAccount) Close() {}

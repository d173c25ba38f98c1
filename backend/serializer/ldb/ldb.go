// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ldb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/util"
	"golang.org/x/crypto/sha3"
	"golang.org/x/exp/constraints"

	"github.com/harbordb/harbor/backend/serializer"
	"github.com/harbordb/harbor/common"
)

const (
	// ErrBlockNotFound is returned by IndexRead for block IDs without a
	// current on-disk version.
	ErrBlockNotFound = common.ConstError("block not found")
	// ErrCorruptedBlock is returned when a stored block fails its checksum.
	ErrCorruptedBlock = common.ConstError("corrupted block content")
)

const (
	indexKeyPrefix = byte('i')
	blockKeyPrefix = byte('b')

	entryHasToken = byte(1 << 0)
	entryDeleted  = byte(1 << 1)

	checksumSize = 32
)

// Serializer is a LevelDB backed implementation of the serializer contract.
// The block index lives under 'i'-prefixed keys mapping block IDs to token
// IDs, recencies and delete bits; block contents live under 'b'-prefixed
// keys, each record prefixed by a SHA3-256 checksum verified on read.
//
// Block records are garbage collected through token reference counts: the
// index entry pointing at a token holds one reference, every in-memory
// token handle another. A block's bytes are physically removed when the
// last reference is dropped, so a superseding index write leaves records
// of still-referenced tokens readable until their holders release them.
type Serializer struct {
	db          *leveldb.DB
	mutex       sync.Mutex
	blockSize   int
	maxBlockID  serializer.BlockID
	nextTokenID uint64
	tokens      map[uint64]*token // live in-memory token handles by token ID
}

// OpenSerializer opens (or creates) a LevelDB backed serializer in the given
// directory managing blocks of the given size.
func OpenSerializer(directory string, blockSize int) (*Serializer, error) {
	if blockSize < 1 {
		return nil, fmt.Errorf("invalid block size %d", blockSize)
	}
	db, err := leveldb.OpenFile(directory, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open block store in %s: %w", directory, err)
	}
	res := &Serializer{
		db:        db,
		blockSize: blockSize,
		tokens:    map[uint64]*token{},
	}
	if err := res.scan(); err != nil {
		db.Close()
		return nil, err
	}
	return res, nil
}

// scan derives the maximum block ID and the next free token ID from the
// persisted index.
func (s *Serializer) scan() error {
	iter := s.db.NewIterator(util.BytesPrefix([]byte{indexKeyPrefix}), nil)
	defer iter.Release()
	for iter.Next() {
		id := decodeKey[serializer.BlockID](iter.Key())
		if id >= s.maxBlockID {
			s.maxBlockID = id + 1
		}
		tokenID, _, flags, err := decodeIndexEntry(iter.Value())
		if err != nil {
			return err
		}
		if flags&entryHasToken != 0 && tokenID >= s.nextTokenID {
			s.nextTokenID = tokenID + 1
		}
	}
	return iter.Error()
}

func (s *Serializer) MaxBlockID() serializer.BlockID {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.maxBlockID
}

func (s *Serializer) GetDeleteBit(id serializer.BlockID) (bool, error) {
	value, err := s.db.Get(encodeKey(indexKeyPrefix, id), nil)
	if err == ldberrors.ErrNotFound {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	_, _, flags, err := decodeIndexEntry(value)
	if err != nil {
		return false, err
	}
	return flags&entryDeleted != 0, nil
}

func (s *Serializer) IndexRead(id serializer.BlockID) (serializer.BlockToken, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	value, err := s.db.Get(encodeKey(indexKeyPrefix, id), nil)
	if err == ldberrors.ErrNotFound {
		return nil, fmt.Errorf("%w: block %d", ErrBlockNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	tokenID, _, flags, err := decodeIndexEntry(value)
	if err != nil {
		return nil, err
	}
	if flags&entryHasToken == 0 {
		return nil, fmt.Errorf("%w: block %d", ErrBlockNotFound, id)
	}
	if tok, found := s.tokens[tokenID]; found {
		tok.refs++
		return tok, nil
	}
	// First in-memory sight of a durably indexed token; one reference is
	// held by the index entry, one by the caller.
	tok := &token{store: s, id: tokenID, refs: 2}
	s.tokens[tokenID] = tok
	return tok, nil
}

func (s *Serializer) BlockRead(t serializer.BlockToken, buf []byte, _ serializer.IOAccount) error {
	tok, ok := t.(*token)
	if !ok {
		return fmt.Errorf("foreign block token %T", t)
	}
	record, err := s.db.Get(encodeKey(blockKeyPrefix, tok.id), nil)
	if err != nil {
		return fmt.Errorf("failed to read block for token %d: %w", tok.id, err)
	}
	if len(record) < checksumSize {
		return fmt.Errorf("%w: token %d, record too short", ErrCorruptedBlock, tok.id)
	}
	have := sha3.Sum256(record[checksumSize:])
	if !bytes.Equal(have[:], record[:checksumSize]) {
		return fmt.Errorf("%w: token %d, checksum mismatch", ErrCorruptedBlock, tok.id)
	}
	copy(buf, record[checksumSize:])
	return nil
}

func (s *Serializer) BlockWrites(writes []serializer.BlockWrite, _ serializer.IOAccount) ([]serializer.BlockToken, <-chan struct{}, error) {
	s.mutex.Lock()
	tokens := make([]serializer.BlockToken, len(writes))
	ids := make([]uint64, len(writes))
	for i := range writes {
		ids[i] = s.nextTokenID
		s.nextTokenID++
		tok := &token{store: s, id: ids[i], refs: 1}
		s.tokens[ids[i]] = tok
		tokens[i] = tok
	}
	s.mutex.Unlock()

	batch := new(leveldb.Batch)
	for i, write := range writes {
		record := make([]byte, checksumSize+int(write.Size))
		checksum := sha3.Sum256(write.Buf[:write.Size])
		copy(record, checksum[:])
		copy(record[checksumSize:], write.Buf[:write.Size])
		batch.Put(encodeKey(blockKeyPrefix, ids[i]), record)
	}
	if err := s.db.Write(batch, nil); err != nil {
		return nil, nil, fmt.Errorf("failed to write blocks: %w", err)
	}
	releasable := make(chan struct{})
	close(releasable)
	return tokens, releasable, nil
}

func (s *Serializer) IndexWrite(ops []serializer.IndexWriteOp, _ serializer.IOAccount) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	batch := new(leveldb.Batch)
	for _, op := range ops {
		key := encodeKey(indexKeyPrefix, op.Block)
		oldTokenID, _, oldFlags, found, err := s.readEntry(key)
		if err != nil {
			return err
		}
		switch {
		case op.Delete:
			if found && oldFlags&entryHasToken != 0 {
				s.dropIndexReference(oldTokenID, batch)
			}
			batch.Put(key, encodeIndexEntry(0, 0, entryDeleted))
		case op.Token != nil:
			tok, ok := op.Token.(*token)
			if !ok {
				return fmt.Errorf("foreign block token %T", op.Token)
			}
			if !found || oldFlags&entryHasToken == 0 || oldTokenID != tok.id {
				// The new index entry takes its own reference; the entry it
				// replaces gives its one up.
				tok.refs++
				if found && oldFlags&entryHasToken != 0 {
					s.dropIndexReference(oldTokenID, batch)
				}
			}
			batch.Put(key, encodeIndexEntry(tok.id, op.Recency, entryHasToken))
		default:
			flags := byte(0)
			tokenID := uint64(0)
			if found {
				flags = oldFlags
				tokenID = oldTokenID
			}
			batch.Put(key, encodeIndexEntry(tokenID, op.Recency, flags))
		}
		if op.Block >= s.maxBlockID {
			s.maxBlockID = op.Block + 1
		}
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to write block index: %w", err)
	}
	return nil
}

// dropIndexReference gives up the index's reference on the given token as
// part of a superseding or deleting index write. The block record is only
// scheduled for removal once no in-memory handle refers to the token either.
// Requires the serializer mutex.
func (s *Serializer) dropIndexReference(tokenID uint64, batch *leveldb.Batch) {
	if tok, found := s.tokens[tokenID]; found {
		tok.refs--
		if tok.refs > 0 {
			return
		}
		delete(s.tokens, tokenID)
	}
	// The index held the last reference.
	batch.Delete(encodeKey(blockKeyPrefix, tokenID))
}

func (s *Serializer) readEntry(key []byte) (tokenID uint64, recency serializer.Recency, flags byte, found bool, err error) {
	value, err := s.db.Get(key, nil)
	if err == ldberrors.ErrNotFound {
		return 0, 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, 0, false, err
	}
	tokenID, recency, flags, err = decodeIndexEntry(value)
	return tokenID, recency, flags, true, err
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

func (s *Serializer) Flush() error {
	return nil
}

func (s *Serializer) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
//                               Encoding
// ---------------------------------------------------------------------------

func encodeKey[I constraints.Unsigned](prefix byte, value I) []byte {
	res := make([]byte, 9)
	res[0] = prefix
	binary.BigEndian.PutUint64(res[1:], uint64(value))
	return res
}

func decodeKey[I constraints.Unsigned](key []byte) I {
	return I(binary.BigEndian.Uint64(key[1:]))
}

func encodeIndexEntry(tokenID uint64, recency serializer.Recency, flags byte) []byte {
	res := make([]byte, 17)
	binary.BigEndian.PutUint64(res, tokenID)
	binary.BigEndian.PutUint64(res[8:], uint64(recency))
	res[16] = flags
	return res
}

func decodeIndexEntry(value []byte) (tokenID uint64, recency serializer.Recency, flags byte, err error) {
	if len(value) != 17 {
		return 0, 0, 0, fmt.Errorf("invalid index entry of %d bytes", len(value))
	}
	tokenID = binary.BigEndian.Uint64(value)
	recency = serializer.Recency(binary.BigEndian.Uint64(value[8:]))
	flags = value[16]
	return tokenID, recency, flags, nil
}

// token is a reference-counted handle on one block record. The count covers
// all in-memory handles plus, while the index entry points at this token,
// one reference owned by the index. The serializer mutex guards the count.
type token struct {
	store *Serializer
	id    uint64
	refs  int
}

func (t *token) Retain() {
	t.store.mutex.Lock()
	t.refs++
	t.store.mutex.Unlock()
}

// Release drops one reference. The last reference physically removes the
// block record from the store.
func (t *token) Release() {
	s := t.store
	s.mutex.Lock()
	defer s.mutex.Unlock()
	t.refs--
	if t.refs < 0 {
		panic("block token released more often than retained")
	}
	if t.refs == 0 {
		delete(s.tokens, t.id)
		if err := s.db.Delete(encodeKey(blockKeyPrefix, t.id), nil); err != nil {
			panic(fmt.Sprintf("failed to remove unreferenced block: %v", err))
		}
	}
}

type ioAccount struct {
	priority serializer.Priority
}

func (a *ioAccount) Close() {}

// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package serializer

//go:generate mockgen -source serializer.go -destination serializer_mocks.go -package serializer

// BlockID is the identifier of one persistent block. IDs are allocated by the
// page cache's free list and recycled after a block has been durably deleted.
type BlockID uint64

// Recency is an opaque monotone timestamp handed through from callers to the
// serializer. It is never interpreted by the cache. A zero value means no
// recency information is available.
type Recency uint64

// Priority classifies I/O accounts. Higher values are served preferentially.
type Priority int

// BlockToken is an opaque handle to the on-disk storage of one version of one
// block. Tokens are reference counted; the serializer keeps the underlying
// bytes alive as long as any token refers to them.
type BlockToken interface {
	// Retain adds a reference to the token.
	Retain()
	// Release drops a reference. After the last reference is dropped the
	// token must no longer be used; the serializer is free to reclaim the
	// referenced storage.
	Release()
}

// BlockWrite describes one block to be written by a BlockWrites call.
type BlockWrite struct {
	Block BlockID
	Buf   []byte // the block content, at least Size bytes long
	Size  uint32 // the number of valid bytes in Buf
}

// IndexWriteOp is a single update of the serializer's block index. It is one
// of three kinds:
//   - a token installation (Token != nil), binding the block ID to a new
//     on-disk location;
//   - a deletion (Delete == true), marking the block ID as deleted;
//   - a recency touch (Token == nil, Delete == false), updating only the
//     recency associated with the block.
type IndexWriteOp struct {
	Block   BlockID
	Token   BlockToken
	Delete  bool
	Recency Recency
}

// InstallTokenOp creates an index update binding the given block to the given
// on-disk token.
func InstallTokenOp(block BlockID, token BlockToken, recency Recency) IndexWriteOp {
	return IndexWriteOp{Block: block, Token: token, Recency: recency}
}

// DeleteOp creates an index update marking the given block as deleted.
func DeleteOp(block BlockID) IndexWriteOp {
	return IndexWriteOp{Block: block, Delete: true}
}

// TouchRecencyOp creates an index update refreshing the recency of the given
// block without altering its on-disk location.
func TouchRecencyOp(block BlockID, recency Recency) IndexWriteOp {
	return IndexWriteOp{Block: block, Recency: recency}
}

// IOAccount tracks I/O activity issued on behalf of one client at one
// priority. Accounts are created through MakeIOAccount and must be closed
// when no longer needed.
type IOAccount interface {
	Close()
}

// Serializer is a durable store of fixed-size blocks addressed by BlockID.
// One version of a block's bytes on disk is designated by a BlockToken; the
// index maps block IDs to tokens. Implementations are internally synchronized;
// all methods may be called concurrently.
type Serializer interface {
	// MaxBlockID returns an ID greater than every block ID the serializer
	// has ever indexed. Intended for startup scans.
	MaxBlockID() BlockID

	// GetDeleteBit reports whether the given block ID is currently marked
	// deleted. IDs below MaxBlockID that were never written count as deleted.
	GetDeleteBit(BlockID) (bool, error)

	// IndexRead resolves a block ID to the token of its current on-disk
	// version. The returned token carries a reference owned by the caller.
	IndexRead(BlockID) (BlockToken, error)

	// BlockRead fills buf with the content referenced by the given token.
	BlockRead(token BlockToken, buf []byte, account IOAccount) error

	// BlockWrites submits a batch of block writes. It returns one token per
	// write, in order, each carrying a reference owned by the caller. The
	// returned channel is closed once the submitted buffers are releasable;
	// until then the caller must keep them unmodified.
	BlockWrites(writes []BlockWrite, account IOAccount) ([]BlockToken, <-chan struct{}, error)

	// IndexWrite applies a set of index updates atomically. Either all
	// updates become durable or none does.
	IndexWrite(ops []IndexWriteOp, account IOAccount) error

	// MakeIOAccount creates a new I/O account at the given priority.
	MakeIOAccount(Priority) IOAccount

	// Malloc allocates a buffer of the serializer's block size.
	Malloc() []byte

	// BlockSize returns the fixed size of blocks managed by this serializer.
	BlockSize() int
}

// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

// Package database implements the Storage Engine of spec §4.1: the
// canonical Monero table set of spec §3 behind a read-pool handle and
// a single-writer handle, both bounded-channel actors over a shared KV
// backend (badger or goleveldb, selected by Config.DBType).
package database

import (
	"runtime"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"

	"github.com/cuprated-go/cuprated/common"
)

func numCPU() int { return runtime.NumCPU() }

// store bundles every prefixed table view plus the small in-process
// caches (amount-counter cache, meta values) that both the writer and
// the read-pool operate against. It is never exposed directly outside
// this package; all access goes through Reader/Writer.
type store struct {
	db Database

	blockInfo       *table
	blockHeaderBlob *table
	blockTxHashes   *table
	blockHeight     *table
	txBlob          *table
	txID            *table
	txOutputs       *table
	txUnlockTime    *table
	txHeight        *table
	keyImages       *table
	outputs         *table
	numOutputs      *table
	rctOutputs      *table
	txKeyImages     *table
	txVersion       *table
	meta            *table
	altBlockInfo    *table
	altHeaderBlob   *table
	altTxBlobs      *table
	altChainMetaTbl *table

	// mu guards the in-memory mirrors of the monotonic counters and
	// the chain-height/top-hash pair; every mutation happens inside
	// the single writer actor, but the read pool also touches these
	// (ChainHeight is a read op), hence the lock rather than relying
	// on single-actor-only access.
	mu             sync.RWMutex
	chainHeight    uint64
	topHash        common.Hash
	nextTxID       uint64
	nextRctIndex   uint64
	nextChainID    uint64
	amountCounters *fastcache.Cache // amount(u64 BE) -> count(u64 BE), avoids a KV round trip per output (DESIGN.md: VictoriaMetrics/fastcache)
}

func newStore(db Database) *store {
	return &store{
		db:              db,
		blockInfo:       newTable(db, prefixBlockInfo),
		blockHeaderBlob: newTable(db, prefixBlockHeaderBlob),
		blockTxHashes:   newTable(db, prefixBlockTxHashes),
		blockHeight:     newTable(db, prefixBlockHeight),
		txBlob:          newTable(db, prefixTxBlob),
		txID:            newTable(db, prefixTxID),
		txOutputs:       newTable(db, prefixTxOutputs),
		txUnlockTime:    newTable(db, prefixTxUnlockTime),
		txHeight:        newTable(db, prefixTxHeight),
		keyImages:       newTable(db, prefixKeyImage),
		outputs:         newTable(db, prefixOutput),
		numOutputs:      newTable(db, prefixNumOutputs),
		rctOutputs:      newTable(db, prefixRctOutput),
		txKeyImages:     newTable(db, prefixTxKeyImages),
		txVersion:       newTable(db, prefixTxVersion),
		meta:            newTable(db, prefixMeta),
		altBlockInfo:    newTable(db, prefixAltBlockInfo),
		altHeaderBlob:   newTable(db, prefixAltBlockHeaderBlob),
		altTxBlobs:      newTable(db, prefixAltBlockTxBlobs),
		altChainMetaTbl: newTable(db, prefixAltChainMeta),
		amountCounters:  fastcache.New(32 * 1024 * 1024),
	}
}

// open loads persisted meta counters (chain height, top hash, next
// tx/rct/chain ids) into the in-memory mirrors, or initializes a fresh
// genesis-only store if none are present.
func (s *store) open() error {
	if v, err := s.meta.Get([]byte(metaKeyChainHeight)); err == nil {
		s.chainHeight = decodeU64(v)
	} else if !isNotFound(err) {
		return errors.Wrap(err, "read chain height meta")
	}
	if v, err := s.meta.Get([]byte(metaKeyTopHash)); err == nil {
		s.topHash = common.BytesToHash(v)
	} else if !isNotFound(err) {
		return errors.Wrap(err, "read top hash meta")
	}
	if v, err := s.meta.Get([]byte(metaKeyNextTxID)); err == nil {
		s.nextTxID = decodeU64(v)
	} else if !isNotFound(err) {
		return errors.Wrap(err, "read next tx id meta")
	}
	if v, err := s.meta.Get([]byte(metaKeyNextRctIndex)); err == nil {
		s.nextRctIndex = decodeU64(v)
	} else if !isNotFound(err) {
		return errors.Wrap(err, "read next rct index meta")
	}
	if v, err := s.meta.Get([]byte(metaKeyNextChainID)); err == nil {
		s.nextChainID = decodeU64(v)
	} else if !isNotFound(err) {
		return errors.Wrap(err, "read next chain id meta")
	}
	return nil
}

func isNotFound(err error) bool {
	return err == ErrKeyNotFound
}

// amountCount returns the current per-amount output counter, checking
// the fastcache mirror before falling back to the KV table.
func (s *store) amountCount(amount uint64) uint64 {
	if v, ok := s.amountCounters.HasGet(nil, encodeU64(amount)); ok {
		return decodeU64(v)
	}
	v, err := s.numOutputs.Get(encodeU64(amount))
	if err != nil {
		return 0
	}
	return decodeU64(v)
}

func (s *store) setAmountCount(batch Batch, amount, count uint64) {
	s.amountCounters.Set(encodeU64(amount), encodeU64(count))
	batch.Put(s.numOutputs.key(encodeU64(amount)), encodeU64(count))
}

// newChainID allocates a fresh, never-reused alt-branch chain id.
// Grounded on SPEC_FULL.md §B's choice to reuse the teacher's active
// satori/go.uuid dependency for opaque-id generation: a fresh v4 UUID
// is folded into the uint64 chain id space by taking its leading 8
// bytes, with the monotonic meta counter as a collision backstop (a
// UUID collision is cryptographically negligible, but the backstop
// keeps the invariant "chain id is never reused" unconditionally true
// rather than merely overwhelmingly likely).
func (s *store) newChainID(batch Batch) common.ChainID {
	u := uuid.NewV4()
	id := decodeU64(u.Bytes()[:8])
	if id == uint64(common.MainChainID) {
		id++
	}
	s.mu.Lock()
	if id <= s.nextChainID {
		id = s.nextChainID + 1
	}
	s.nextChainID = id
	batch.Put(s.meta.key([]byte(metaKeyNextChainID)), encodeU64(s.nextChainID))
	s.mu.Unlock()
	return common.ChainID(id)
}

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

package txpool

import (
	"sync"

	"github.com/cuprated-go/cuprated/blockchain/types"
	"github.com/cuprated-go/cuprated/common"
)

// Store is the pool's backing transaction store: a key-image index for
// double-spend detection plus a hash-indexed blob/visibility table,
// shared between the Manager and the Dandelion pool the way
// manager.rs and pool.rs both address the same cuprate_txpool
// database. The canonical table set of spec §3 has no tx-pool tables
// — pool contents do not need to survive a restart the way committed
// chain data does — so this store lives only in memory.
//
// dandelion.Store mirrors this interface's method set independently
// (no import of this package), so a *memStore built here satisfies
// both by structural typing.
type Store interface {
	// Store inserts tx under the given visibility. If one of tx's key
	// images already belongs to a different stored transaction, that
	// transaction's hash is returned and tx is not stored; calling
	// Store again for a hash already present just updates its
	// visibility (used when promoting a tx from stem to fluff).
	Store(tx types.Transaction, private bool) (doubleSpend *common.Hash, err error)

	// Contains reports whether hash is stored and, if so, whether it
	// is still private (stem-pool only).
	Contains(hash common.Hash) (private bool, ok bool)

	// Blob returns the stored transaction's wire blob.
	Blob(hash common.Hash) (blob []byte, ok bool)

	// Promote marks hash as no longer private.
	Promote(hash common.Hash) bool

	// Remove deletes hash and frees its key images.
	Remove(hash common.Hash) bool

	// NewBlock removes every stored transaction sharing one of
	// spentKeyImages — whether because it was itself included in the
	// new block or because it now conflicts with one that was — and
	// returns their hashes.
	NewBlock(spentKeyImages []common.Hash) []common.Hash

	// IDsInStemPool lists every transaction still marked private, for
	// the Dandelion pool's start-up fluff-the-leftovers pass.
	IDsInStemPool() []common.Hash
}

type poolTx struct {
	tx      types.Transaction
	private bool
}

// memStore is the in-memory Store implementation.
type memStore struct {
	mu        sync.RWMutex
	txs       map[common.Hash]*poolTx
	keyImages map[common.Hash]common.Hash
}

// NewMemStore builds the pool's backing store.
func NewMemStore() Store {
	return &memStore{
		txs:       make(map[common.Hash]*poolTx),
		keyImages: make(map[common.Hash]common.Hash),
	}
}

func (s *memStore) Store(tx types.Transaction, private bool) (*common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, in := range tx.Inputs {
		if owner, ok := s.keyImages[in.KeyImage]; ok && owner != tx.Hash {
			h := owner
			return &h, nil
		}
	}

	if _, exists := s.txs[tx.Hash]; !exists {
		for _, in := range tx.Inputs {
			s.keyImages[in.KeyImage] = tx.Hash
		}
	}
	s.txs[tx.Hash] = &poolTx{tx: tx, private: private}
	return nil, nil
}

func (s *memStore) Contains(hash common.Hash) (bool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pt, ok := s.txs[hash]
	if !ok {
		return false, false
	}
	return pt.private, true
}

func (s *memStore) Blob(hash common.Hash) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pt, ok := s.txs[hash]
	if !ok {
		return nil, false
	}
	return pt.tx.Blob, true
}

func (s *memStore) Promote(hash common.Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pt, ok := s.txs[hash]
	if !ok {
		return false
	}
	pt.private = false
	return true
}

func (s *memStore) Remove(hash common.Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(hash)
}

func (s *memStore) removeLocked(hash common.Hash) bool {
	pt, ok := s.txs[hash]
	if !ok {
		return false
	}
	delete(s.txs, hash)
	for _, in := range pt.tx.Inputs {
		if owner, ok := s.keyImages[in.KeyImage]; ok && owner == hash {
			delete(s.keyImages, in.KeyImage)
		}
	}
	return true
}

func (s *memStore) NewBlock(spentKeyImages []common.Hash) []common.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[common.Hash]bool)
	var removed []common.Hash
	for _, ki := range spentKeyImages {
		owner, ok := s.keyImages[ki]
		if !ok || seen[owner] {
			continue
		}
		seen[owner] = true
		removed = append(removed, owner)
	}
	for _, hash := range removed {
		s.removeLocked(hash)
	}
	return removed
}

func (s *memStore) IDsInStemPool() []common.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []common.Hash
	for h, pt := range s.txs {
		if pt.private {
			out = append(out, h)
		}
	}
	return out
}

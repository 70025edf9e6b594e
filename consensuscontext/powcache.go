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

package consensuscontext

import (
	"github.com/cuprated-go/cuprated/common"
	lru "github.com/hashicorp/golang-lru"
)

// powVMCache holds lazily-constructed PoW VMs keyed by seed hash,
// retaining only the active seed and its predecessor (spec §4.2:
// "retained for the active seed and its predecessor"), backed directly
// by hashicorp/golang-lru's ARC implementation since an ARC of size 2
// gives exactly that retention policy and nothing in this package
// needs the sharding/config-selection machinery a generic cache facade
// would add.
type powVMCache struct {
	arc *lru.ARCCache
}

// PowVM is the hashing surface of an external RandomX-style VM
// instance; the PoW VM implementation itself is an external
// collaborator (spec §1/§6). CalculatePow is the only caller that
// invokes Hash directly — CurrentRxVM/NewRxVM just manage the handle's
// lifetime in the cache for donation by an external batch-verification
// caller.
type PowVM interface {
	Hash(headerBlob []byte, seedHash common.Hash, height uint64, hf HardFork) (common.Hash, error)
}

// PowHasher builds a fresh PoW VM for a seed hash the cache does not
// already have, per spec §6's PoW VM collaborator interface
// ("computes a 32-byte hash from (block header bytes, seed hash,
// height, fork)"). Injected at Start so CalculatePow can build and
// cache VMs on the context actor's own goroutine rather than requiring
// every caller to manage VM lifetime itself.
type PowHasher interface {
	NewVM(seedHash common.Hash) (PowVM, error)
}

func newPowVMCache() *powVMCache {
	arc, err := lru.NewARC(2)
	if err != nil {
		// size 2 never fails to construct; a failure here means the
		// golang-lru package itself is broken.
		panic(err)
	}
	return &powVMCache{arc: arc}
}

// donate accepts an externally pre-built VM for seedHash, as spec
// §4.2 describes ("external callers may donate pre-built VMs").
func (c *powVMCache) donate(seedHash common.Hash, vm PowVM) {
	c.arc.Add(seedHash, vm)
}

func (c *powVMCache) get(seedHash common.Hash) (PowVM, bool) {
	v, ok := c.arc.Get(seedHash)
	if !ok {
		return nil, false
	}
	return v.(PowVM), true
}

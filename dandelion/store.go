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

package dandelion

import (
	"github.com/cuprated-go/cuprated/blockchain/types"
	"github.com/cuprated-go/cuprated/common"
)

// Store is the backing transaction store this pool stems, fluffs, and
// promotes transactions against — the same store the tx-pool manager
// addresses as txpool.Store. The two interfaces are declared
// independently (this package does not import txpool) so the
// dependency only runs one way: txpool wires a Dandelion pool to its
// own store, rather than this package depending on txpool's types.
// Any store satisfying both method sets — such as txpool.NewMemStore's
// result — works here by Go's structural interface satisfaction.
type Store interface {
	Store(tx types.Transaction, private bool) (doubleSpend *common.Hash, err error)
	Contains(hash common.Hash) (private bool, ok bool)
	Blob(hash common.Hash) (blob []byte, ok bool)
	Promote(hash common.Hash) bool
	IDsInStemPool() []common.Hash
}

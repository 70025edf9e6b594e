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

package types

import "github.com/cuprated-go/cuprated/common"

// PoolEntry is a transaction pool's bookkeeping record for an admitted
// transaction (spec §3). TimeoutKey is the opaque handle the owning
// timer queue (re-relay or dandelion embargo) uses to cancel or look up
// this entry's timer; its meaning belongs entirely to whichever queue
// owns it at a given moment.
type PoolEntry struct {
	Tx         Transaction
	Hash       common.Hash
	Weight     uint64
	Fee        uint64
	ReceivedAt int64 // unix seconds
	Private    bool  // true while in the Dandelion stem phase
	TimeoutKey uint64
}

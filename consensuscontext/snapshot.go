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

import "github.com/cuprated-go/cuprated/common"

// Snapshot is the context snapshot of spec §3: atomically published by
// the context task, readers observe a consistent, self-contained copy.
// It corresponds to blockchain_context(...)'s return value in task.rs.
type Snapshot struct {
	CurrentHF              HardFork
	NextDifficulty         uint64
	MedianTimestamp        uint64
	EffectiveMedianWeight  uint64
	MedianForBlockReward   uint64
	LongTermWeightMedian   uint64
	CumulativeDifficulty   uint64
	ChainHeight            uint64
	TopHash                common.Hash
	AlreadyGeneratedCoins  uint64
}

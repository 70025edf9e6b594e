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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromVoteZeroMeansV1(t *testing.T) {
	assert.Equal(t, HardForkV1, FromVote(0))
}

func TestFromVoteUnknownDefaultsToLatest(t *testing.T) {
	assert.Equal(t, HardForkV16, FromVote(200))
}

func TestHardForkActivatesExactlyAtHeight(t *testing.T) {
	tracker := &hardForkTracker{
		config:     HardForkConfig{Window: 10},
		current:    HardForkV1,
		next:       HardForkV2,
		lastHeight: params_mainnetV2Height() - 3,
	}
	for i := 0; i < 10; i++ {
		tracker.votes.addVoteFor(HardForkV1)
	}

	tracker.newBlock(tracker.lastHeight+1, HardForkV1, func(uint64) HardFork { return HardForkV1 })
	assert.Equal(t, HardForkV1, tracker.current, "one short of activation height")

	tracker.newBlock(tracker.lastHeight+1, HardForkV1, func(uint64) HardFork { return HardForkV1 })
	assert.Equal(t, HardForkV2, tracker.current, "activates exactly at fork height")
}

func TestVotesForSumsUpward(t *testing.T) {
	var v hfVotes
	v.addVoteFor(HardForkV2)
	v.addVoteFor(HardForkV3)
	require.Equal(t, uint64(2), v.votesFor(HardForkV1))
	require.Equal(t, uint64(1), v.votesFor(HardForkV3))
	require.Equal(t, uint64(0), v.votesFor(HardForkV4))
}

func params_mainnetV2Height() uint64 {
	hf, _ := FromVersion(2)
	return hf.ForkHeight()
}

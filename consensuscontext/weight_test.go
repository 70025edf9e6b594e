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
)

func TestRollingMedianOddEven(t *testing.T) {
	m := newRollingMedian(5)
	for _, v := range []uint64{1, 2, 3} {
		m.push(v)
	}
	assert.Equal(t, uint64(2), m.median())

	m.push(4)
	assert.Equal(t, uint64(2), m.median()) // (2+3)/2 floor
}

func TestRollingMedianEvictsOnOverflow(t *testing.T) {
	m := newRollingMedian(3)
	m.push(1)
	m.push(2)
	m.push(3)
	m.push(100) // evicts the 1
	assert.Equal(t, 3, m.windowLen())
	assert.Equal(t, uint64(3), m.median())
}

func TestRollingMedianAppendFrontTruncates(t *testing.T) {
	m := rollingMedianFromSlice([]uint64{10, 20}, 3)
	m.appendFront([]uint64{1, 2, 3})
	assert.Equal(t, 3, m.windowLen())
	assert.Equal(t, []uint64{3, 10, 20}, m.values)
}

func TestCalculateEffectiveMedianBlockWeightPreV10(t *testing.T) {
	got := calculateEffectiveMedianBlockWeight(HardForkV5, 500000, 0)
	assert.Equal(t, uint64(500000), got)
}

func TestCalculateEffectiveMedianBlockWeightV10ToV14(t *testing.T) {
	got := calculateEffectiveMedianBlockWeight(HardForkV12, 100, 0)
	assert.Equal(t, uint64(300000), got) // floored at PENALTY_FREE_ZONE_5
}

func TestCalculateBlockLongTermWeightPreV10(t *testing.T) {
	got := calculateBlockLongTermWeight(HardForkV5, 12345, 0)
	assert.Equal(t, uint64(12345), got)
}

func TestCalculateBlockLongTermWeightV15Plus(t *testing.T) {
	ltm := uint64(500000)
	got := calculateBlockLongTermWeight(HardForkV16, 1000000, ltm)
	// short_term_constraint = ltm + ltm*7/10 = 850000
	// adjusted_block_weight = max(1000000, ltm*10/17) = 1000000
	assert.Equal(t, uint64(850000), got)
}

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

import "github.com/cuprated-go/cuprated/params"

// penaltyFreeZone returns the penalty-free block-weight zone for hf.
// Monero widened this zone twice across its history; values ported
// from public protocol constants.
func penaltyFreeZone(hf HardFork) uint64 {
	switch {
	case hf < HardForkV2:
		return params.PenaltyFreeZone1
	case hf < HardForkV5:
		return params.PenaltyFreeZone2
	default:
		return params.PenaltyFreeZone5
	}
}

// blockWeightsCache maintains the short-term and long-term rolling
// weight medians (spec §4.2). Ported from BlockWeightsCache in
// weight.rs.
type blockWeightsCache struct {
	shortTerm *rollingMedian
	longTerm  *rollingMedian

	tipHeight uint64
}

func newBlockWeightsCache(shortTermWeights, longTermWeights []uint64, tipHeight uint64) *blockWeightsCache {
	return &blockWeightsCache{
		shortTerm: rollingMedianFromSlice(shortTermWeights, params.ShortTermWeightWindow),
		longTerm:  rollingMedianFromSlice(longTermWeights, params.LongTermWeightWindow),
		tipHeight: tipHeight,
	}
}

// newBlock records a new block's weight and long-term weight. height
// must be exactly tipHeight+1.
func (c *blockWeightsCache) newBlock(height, weight, longTermWeight uint64) {
	if c.tipHeight+1 != height {
		panic("consensuscontext: out-of-order block weight accounting")
	}
	c.tipHeight = height
	c.shortTerm.push(weight)
	c.longTerm.push(longTermWeight)
}

// popBlocks rewinds n blocks. olderShortTerm/olderLongTerm are weight
// samples the caller must reload from storage to extend the window
// backward — the caller (the context task) knows how to fetch them;
// this method only performs the deque surgery, mirroring
// pop_blocks_main_chain's "pop tail, append front" shape once the
// caller has already decided a full reinit isn't needed.
func (c *blockWeightsCache) popBlocks(n uint64, olderShortTerm, olderLongTerm []uint64) {
	for i := uint64(0); i < n; i++ {
		c.shortTerm.popBack()
		c.longTerm.popBack()
	}
	c.longTerm.appendFront(olderLongTerm)
	c.shortTerm.appendFront(olderShortTerm)
	c.tipHeight -= n
}

func (c *blockWeightsCache) medianLongTermWeight() uint64  { return c.longTerm.median() }
func (c *blockWeightsCache) medianShortTermWeight() uint64 { return c.shortTerm.median() }

func (c *blockWeightsCache) effectiveMedianBlockWeight(hf HardFork) uint64 {
	return calculateEffectiveMedianBlockWeight(hf, c.medianShortTermWeight(), c.medianLongTermWeight())
}

func (c *blockWeightsCache) medianForBlockReward(hf HardFork) uint64 {
	var m uint64
	if hf < HardForkV12 {
		m = c.medianShortTermWeight()
	} else {
		m = c.effectiveMedianBlockWeight(hf)
	}
	if pz := penaltyFreeZone(hf); m < pz {
		return pz
	}
	return m
}

// calculateEffectiveMedianBlockWeight ports
// calculate_effective_median_block_weight from weight.rs formula for
// formula, including the fork-version-gated branches.
func calculateEffectiveMedianBlockWeight(hf HardFork, shortTermMedian, longTermMedian uint64) uint64 {
	if hf < HardForkV10 {
		return maxU64(shortTermMedian, penaltyFreeZone(hf))
	}

	ltm := maxU64(longTermMedian, params.PenaltyFreeZone5)

	var effective uint64
	if hf >= HardForkV10 && hf < HardForkV15 {
		effective = minU64(maxU64(params.PenaltyFreeZone5, shortTermMedian), 50*ltm)
	} else {
		effective = minU64(maxU64(ltm, shortTermMedian), 50*ltm)
	}
	return maxU64(effective, penaltyFreeZone(hf))
}

// calculateBlockLongTermWeight ports calculate_block_long_term_weight
// from weight.rs formula for formula.
func calculateBlockLongTermWeight(hf HardFork, blockWeight, longTermMedian uint64) uint64 {
	if hf < HardForkV10 {
		return blockWeight
	}

	ltm := maxU64(penaltyFreeZone(hf), longTermMedian)

	var shortTermConstraint, adjustedBlockWeight uint64
	if hf >= HardForkV10 && hf < HardForkV15 {
		shortTermConstraint = ltm + ltm*2/5
		adjustedBlockWeight = blockWeight
	} else {
		shortTermConstraint = ltm + ltm*7/10
		adjustedBlockWeight = maxU64(blockWeight, ltm*10/17)
	}

	return minU64(shortTermConstraint, adjustedBlockWeight)
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

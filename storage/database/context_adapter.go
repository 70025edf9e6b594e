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

package database

import (
	"github.com/cuprated-go/cuprated/common"
	"github.com/cuprated-go/cuprated/consensuscontext"
)

// ContextAdapter satisfies consensuscontext.Database, the narrow read
// surface the context cache needs to initialize and refill its rolling
// windows, by going straight at the read pool's store instead of
// round-tripping through the Reader's request channel: the context
// cache always calls this during its own single-actor Start/PopBlocks
// handling, never concurrently with itself, so the extra dispatch hop
// buys nothing.
type ContextAdapter struct {
	s *store
}

// NewContextAdapter wraps e's shared store for consumption by
// consensuscontext.Context.
func NewContextAdapter(e *Engine) *ContextAdapter {
	return &ContextAdapter{s: e.Writer.s}
}

var _ consensuscontext.Database = (*ContextAdapter)(nil)

func (a *ContextAdapter) ChainHeight() (uint64, common.Hash, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	return a.s.chainHeight, a.s.topHash, nil
}

func (a *ContextAdapter) GeneratedCoinsAt(height uint64) (uint64, error) {
	raw, err := a.s.blockInfo.Get(encodeU64(height))
	if err != nil {
		return 0, wrapNotFound(err, "block height")
	}
	return decodeBlockInfo(raw).GeneratedCoins, nil
}

func (a *ContextAdapter) MajorVersionAt(height uint64) (uint8, error) {
	raw, err := a.s.blockInfo.Get(encodeU64(height))
	if err != nil {
		return 0, wrapNotFound(err, "block height")
	}
	return decodeBlockInfo(raw).MajorVersion, nil
}

// BlockVotesInRange returns the minor-version hard-fork vote recorded
// at each height in [lo, hi).
func (a *ContextAdapter) BlockVotesInRange(lo, hi uint64) ([]consensuscontext.BlockHeaderVote, error) {
	if hi <= lo {
		return nil, nil
	}
	out := make([]consensuscontext.BlockHeaderVote, 0, hi-lo)
	for h := lo; h < hi; h++ {
		raw, err := a.s.blockInfo.Get(encodeU64(h))
		if err != nil {
			return nil, wrapNotFound(err, "block height")
		}
		bi := decodeBlockInfo(raw)
		out = append(out, consensuscontext.BlockHeaderVote{Height: h, Vote: consensuscontext.HardFork(bi.MinorVersion)})
	}
	return out, nil
}

func (a *ContextAdapter) BlockWeightsInRange(lo, hi uint64) ([]uint64, error) {
	if hi <= lo {
		return nil, nil
	}
	out := make([]uint64, 0, hi-lo)
	for h := lo; h < hi; h++ {
		raw, err := a.s.blockInfo.Get(encodeU64(h))
		if err != nil {
			return nil, wrapNotFound(err, "block height")
		}
		out = append(out, decodeBlockInfo(raw).Weight)
	}
	return out, nil
}

func (a *ContextAdapter) LongTermWeightsInRange(lo, hi uint64) ([]uint64, error) {
	if hi <= lo {
		return nil, nil
	}
	out := make([]uint64, 0, hi-lo)
	for h := lo; h < hi; h++ {
		raw, err := a.s.blockInfo.Get(encodeU64(h))
		if err != nil {
			return nil, wrapNotFound(err, "block height")
		}
		out = append(out, decodeBlockInfo(raw).LongTermWeight)
	}
	return out, nil
}

func (a *ContextAdapter) DifficultyPointsInRange(lo, hi uint64) ([]consensuscontext.DifficultyPointDTO, error) {
	if hi <= lo {
		return nil, nil
	}
	out := make([]consensuscontext.DifficultyPointDTO, 0, hi-lo)
	for h := lo; h < hi; h++ {
		raw, err := a.s.blockInfo.Get(encodeU64(h))
		if err != nil {
			return nil, wrapNotFound(err, "block height")
		}
		bi := decodeBlockInfo(raw)
		out = append(out, consensuscontext.DifficultyPointDTO{Timestamp: bi.Timestamp, CumulativeDifficulty: bi.CumulativeDifficulty})
	}
	return out, nil
}

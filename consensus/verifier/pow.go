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

package verifier

import (
	"encoding/binary"
	"math/big"

	"github.com/cuprated-go/cuprated/blockchain/types"
	"github.com/cuprated-go/cuprated/common"
)

// randomXSeedEpochBlocks and randomXSeedEpochLag are RandomX's public
// seed-schedule constants: a new seed is derived every 2048 blocks,
// lagged by 64 blocks so miners have time to build the next epoch's VM
// ahead of it taking effect.
const (
	randomXSeedEpochBlocks = 2048
	randomXSeedEpochLag    = 64
)

// seedHeightFor computes the block height whose hash seeds the
// RandomX VM active at height, per RandomX's rx_seedheight.
func seedHeightFor(height uint64) uint64 {
	if height < randomXSeedEpochBlocks+randomXSeedEpochLag {
		return 0
	}
	ref := height - randomXSeedEpochLag - 1
	return ref - ref%randomXSeedEpochBlocks
}

// resolveSeed derives the PoW seed hash for height by looking up the
// block hash at its seed height.
func resolveSeed(height uint64, source SeedHashSource) (common.Hash, uint64, error) {
	seedHeight := seedHeightFor(height)
	seedHash, err := source.ReadHashByHeight(seedHeight)
	if err != nil {
		return common.Hash{}, 0, err
	}
	return seedHash, seedHeight, nil
}

// difficultyFromHash interprets a PoW hash as a little-endian 256-bit
// integer the way Monero's check_hash does and returns the implied
// difficulty, 2^256 divided by that integer, for callers to compare
// against next_difficulty.
func difficultyFromHash(hash common.Hash) *big.Int {
	// Monero hashes are interpreted little-endian for difficulty
	// comparisons; reverse into a big-endian buffer for math/big.
	var be [common.HashLength]byte
	for i, b := range hash {
		be[common.HashLength-1-i] = b
	}
	h := new(big.Int).SetBytes(be[:])
	if h.Sign() == 0 {
		return new(big.Int)
	}
	maxTarget := new(big.Int).Lsh(big.NewInt(1), 256)
	return new(big.Int).Div(maxTarget, h)
}

// checkPoW runs step 3 of the pipeline: compute the block's PoW hash
// via the context cache's CalculatePow (spec §4.2's public contract
// entry, supplemented per SPEC_FULL.md §C.1) and reject unless its
// implied difficulty meets next_difficulty. CalculatePow itself owns
// VM lookup/construction/donation against the context actor's cache
// (spec §4.2's "external callers may donate pre-built VMs"), so this
// step is reduced to a single delegated call plus the difficulty
// comparison.
func checkPoW(block *types.Block, pb *PreparedBlock, height uint64, difficulty uint64, ctx ContextCache) error {
	hash, err := ctx.CalculatePow(headerBytesForHashing(block), height, pb.SeedHash)
	if err != nil {
		return err
	}

	target := difficultyFromHash(hash)
	required := new(big.Int).SetUint64(difficulty)
	if target.Cmp(required) < 0 {
		return blockFault(BlockFaultPowInvalid)
	}
	return nil
}

// headerBytesForHashing is the header blob used as VM input. The wire
// codec owns real serialization (spec §6); HeaderBlob is already that
// serialized form, so PoW hashing consumes it directly rather than
// re-deriving it.
func headerBytesForHashing(block *types.Block) []byte {
	if len(block.HeaderBlob) > 0 {
		return block.HeaderBlob
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, block.Header.Timestamp)
	return buf
}

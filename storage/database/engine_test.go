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
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuprated-go/cuprated/blockchain/types"
	"github.com/cuprated-go/cuprated/common"
)

func openTestEngine(t *testing.T) (*Engine, func()) {
	dir, err := ioutil.TempDir("", "cuprated-storage-test")
	require.NoError(t, err)

	ldb, err := NewLDBDatabase(dir, 16, 16)
	require.NoError(t, err)

	e, err := Open(ldb, Config{Dir: dir, DBType: LevelDB})
	require.NoError(t, err)

	return e, func() {
		e.Close()
		os.RemoveAll(dir)
	}
}

// minerTx builds a coinbase-shaped v1 transaction with n cleartext
// outputs, enough for writeBlock's "miner tx is always allTxs[0]"
// convention.
func minerTx(seed byte, n int) types.Transaction {
	outs := make([]types.TxOut, n)
	for i := range outs {
		outs[i] = types.TxOut{Key: common.BytesToHash([]byte{seed, byte(i)}), Amount: uint64(i + 1)}
	}
	return types.Transaction{
		Hash:    common.BytesToHash([]byte{seed, 0xff}),
		Version: types.TxVersionOne,
		Outputs: outs,
		Blob:    []byte{seed, 0xff},
	}
}

func ringctTx(seed byte) types.Transaction {
	return types.Transaction{
		Hash:    common.BytesToHash([]byte{seed, 0xee}),
		Version: types.TxVersionRingCT,
		Inputs: []types.TxIn{
			{KeyImage: common.BytesToHash([]byte{seed, 0xd0})},
		},
		Outputs: []types.TxOut{
			{Key: common.BytesToHash([]byte{seed, 0xd1}), Commitment: common.BytesToHash([]byte{seed, 0xd2})},
			{Key: common.BytesToHash([]byte{seed, 0xd3}), Commitment: common.BytesToHash([]byte{seed, 0xd4})},
		},
		Blob: []byte{seed, 0xee},
	}
}

func verifiedBlock(height uint64, seed byte, txs []types.Transaction) *types.VerifiedBlock {
	hashes := make([]common.Hash, len(txs))
	for i, tx := range txs {
		hashes[i] = tx.Hash
	}
	return &types.VerifiedBlock{
		Block: types.Block{
			Header:     types.BlockHeader{Timestamp: 1000 + height, MajorVersion: 1, MinorVersion: 1},
			MinerTx:    txs[0],
			TxHashes:   hashes[1:],
			HeaderBlob: append([]byte{seed}, byte(height)),
		},
		Txs:                  txs[1:],
		BlockHash:            common.BytesToHash([]byte{seed}),
		PowHash:              common.BytesToHash([]byte{seed, 1}),
		Height:               height,
		Weight:               100,
		LongTermWeight:       100,
		CumulativeDifficulty: uint64(height + 1),
		GeneratedCoins:       1000,
	}
}

func TestWriteBlockAndReadBack(t *testing.T) {
	e, cleanup := openTestEngine(t)
	defer cleanup()

	vb := verifiedBlock(0, 1, []types.Transaction{minerTx(1, 2), ringctTx(1)})
	require.NoError(t, e.Writer.WriteBlock(vb))

	height, topHash, err := e.Reader.ChainHeight()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), height)
	assert.Equal(t, vb.BlockHash, topHash)

	got, err := e.Reader.ReadBlockByHeight(0)
	require.NoError(t, err)
	assert.Equal(t, vb.BlockHash, got.BlockHash)
	assert.Equal(t, vb.Block.MinerTx.Hash, got.Block.MinerTx.Hash)
	assert.Len(t, got.Txs, 1)
	assert.Equal(t, vb.Txs[0].Hash, got.Txs[0].Hash)

	byHash, err := e.Reader.ReadBlockByHash(vb.BlockHash)
	require.NoError(t, err)
	assert.Equal(t, got.Height, byHash.Height)

	blob, err := e.Reader.ReadHeaderByHeight(0)
	require.NoError(t, err)
	assert.Equal(t, vb.Block.HeaderBlob, blob)

	indices, err := e.Reader.TxOutputIndices(vb.Txs[0].Hash)
	require.NoError(t, err)
	assert.Len(t, indices, 2)

	spent, err := e.Reader.KeyImagesSpent([]common.Hash{vb.Txs[0].Inputs[0].KeyImage})
	require.NoError(t, err)
	assert.True(t, spent)

	unspent, err := e.Reader.KeyImagesSpent([]common.Hash{common.BytesToHash([]byte{9, 9, 9})})
	require.NoError(t, err)
	assert.False(t, unspent)

	counts, err := e.Reader.NumOutputsWithAmount([]uint64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), counts[1])
	assert.Equal(t, uint64(1), counts[2])
}

func TestPopBlocksThenReverseReorgRestoresState(t *testing.T) {
	e, cleanup := openTestEngine(t)
	defer cleanup()

	for h := uint64(0); h < 3; h++ {
		vb := verifiedBlock(h, byte(h+1), []types.Transaction{minerTx(byte(h+1), 2), ringctTx(byte(h + 1))})
		require.NoError(t, e.Writer.WriteBlock(vb))
	}

	preHeight, preTop, err := e.Reader.ChainHeight()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), preHeight)

	preCounts, err := e.Reader.NumOutputsWithAmount([]uint64{1, 2, 0})
	require.NoError(t, err)

	chainID, err := e.Writer.PopBlocks(1)
	require.NoError(t, err)

	midHeight, _, err := e.Reader.ChainHeight()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), midHeight)

	require.NoError(t, e.Writer.ReverseReorg(chainID))

	postHeight, postTop, err := e.Reader.ChainHeight()
	require.NoError(t, err)
	assert.Equal(t, preHeight, postHeight)
	assert.Equal(t, preTop, postTop)

	postCounts, err := e.Reader.NumOutputsWithAmount([]uint64{1, 2, 0})
	require.NoError(t, err)
	assert.Equal(t, preCounts, postCounts)

	got, err := e.Reader.ReadBlockByHeight(2)
	require.NoError(t, err)
	assert.Equal(t, common.BytesToHash([]byte{3}), got.BlockHash)
}

func TestCompactChainHistoryIncludesGenesis(t *testing.T) {
	e, cleanup := openTestEngine(t)
	defer cleanup()

	for h := uint64(0); h < 20; h++ {
		vb := verifiedBlock(h, byte(h+1), []types.Transaction{minerTx(byte(h+1), 1)})
		require.NoError(t, e.Writer.WriteBlock(vb))
	}

	history, err := e.Reader.CompactChainHistory()
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, common.BytesToHash([]byte{20}), history[0])
	assert.Equal(t, common.BytesToHash([]byte{1}), history[len(history)-1])
}

func TestFindFirstUnknown(t *testing.T) {
	e, cleanup := openTestEngine(t)
	defer cleanup()

	var known []common.Hash
	for h := uint64(0); h < 3; h++ {
		vb := verifiedBlock(h, byte(h+1), []types.Transaction{minerTx(byte(h+1), 1)})
		require.NoError(t, e.Writer.WriteBlock(vb))
		known = append(known, vb.BlockHash)
	}

	unknown1 := common.BytesToHash([]byte{100})
	unknown2 := common.BytesToHash([]byte{101})

	res, err := e.Reader.FindFirstUnknown(append(append([]common.Hash{}, known...), unknown1, unknown2))
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, 3, res.Index)
	assert.Equal(t, uint64(3), res.NextHeight)

	allKnown, err := e.Reader.FindFirstUnknown(known)
	require.NoError(t, err)
	assert.False(t, allKnown.Found)

	filtered, err := e.Reader.FilterUnknownHashes([]common.Hash{known[0], unknown1})
	require.NoError(t, err)
	assert.Equal(t, []common.Hash{unknown1}, filtered)
}

func TestWriteBlockRejectsDuplicateKeyImage(t *testing.T) {
	e, cleanup := openTestEngine(t)
	defer cleanup()

	tx := ringctTx(1)
	vb0 := verifiedBlock(0, 1, []types.Transaction{minerTx(1, 1), tx})
	require.NoError(t, e.Writer.WriteBlock(vb0))

	dup := ringctTx(1) // same key image, different height
	dup.Hash = common.BytesToHash([]byte{2, 0xee})
	vb1 := verifiedBlock(1, 2, []types.Transaction{minerTx(2, 1), dup})
	assert.Error(t, e.Writer.WriteBlock(vb1))
}

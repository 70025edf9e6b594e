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

// BlockHeader carries the fields the consensus core itself reasons
// about; header blob parsing belongs to the wire codec collaborator.
type BlockHeader struct {
	PrevHash     common.Hash
	Timestamp    uint64
	MajorVersion uint8 // the block's consensus version
	MinorVersion uint8 // the miner's hard-fork vote
	Nonce        uint32
}

// Block is a header plus the ordered transaction hash list and the
// explicit miner transaction, per the data model.
type Block struct {
	Header     BlockHeader
	MinerTx    Transaction
	TxHashes   []common.Hash
	HeaderBlob []byte // opaque, owned by the wire codec collaborator
}

// Hash returns the block's identifying hash. Computing it is itself a
// wire-codec concern (spec §6); callers that already have it (e.g. a
// VerifiedBlock) should use that cached value instead of calling Hash.
func (b *Block) Hash() common.Hash {
	return common.BytesToHash(b.HeaderBlob)
}

// VerifiedBlock is produced by the verifier and consumed by the chain
// manager and the storage writer (spec §3).
type VerifiedBlock struct {
	Block               Block
	Txs                 []Transaction
	BlockHash           common.Hash
	PowHash             common.Hash
	Height              uint64
	Weight              uint64
	LongTermWeight      uint64
	CumulativeDifficulty uint64
	GeneratedCoins      uint64
}

// AltBlockRecord is a VerifiedBlock plus the chain id tagging the
// alternate branch it belongs to and the height it forked from.
type AltBlockRecord struct {
	VerifiedBlock
	ChainID    common.ChainID
	ForkHeight uint64
}

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

// Package verifier implements the block and transaction validation
// pipeline: structural, contextual-header, PoW, per-transaction, and
// aggregate checks, plus the batch-prepare path the chain manager
// drives for sequential block downloads.
package verifier

import (
	"github.com/cuprated-go/cuprated/blockchain/types"
	"github.com/cuprated-go/cuprated/common"
	"github.com/cuprated-go/cuprated/consensuscontext"
)

// PreparedTx is a transaction plus the fee and weight the wire codec
// collaborator derived for it when parsing the blob off the wire.
type PreparedTx struct {
	Tx     types.Transaction
	Fee    uint64
	Weight uint64
}

// PreparedBlock is a block whose header bytes and PoW hash inputs are
// ready to verify, produced either directly from an incoming block or
// by MainChainBatchPrepareBlocks.
type PreparedBlock struct {
	Block     types.Block
	SeedHash  common.Hash
	SeedHeight uint64
}

// MainChainRequest asks the verifier to check a block that extends the
// current top of the main chain.
type MainChainRequest struct {
	Block        types.Block
	PreparedTxs  map[common.Hash]PreparedTx
}

// MainChainBatchPrepareRequest asks the verifier to run the
// parallelizable half of validation (structural + PoW) for a run of
// sequential blocks ahead of their serialized contextual checks.
type MainChainBatchPrepareRequest struct {
	Blocks []MainChainRequest
}

// MainChainPreppedRequest carries a block that already passed
// MainChainBatchPrepareBlocks' structural/PoW stage and is now ready
// for the remaining contextual/tx/aggregate checks.
type MainChainPreppedRequest struct {
	Block       PreparedBlock
	PreparedTxs map[common.Hash]PreparedTx
}

// AltChainRequest asks the verifier to check a block that does not
// extend the current main-chain top, for alt-chain tracking or reorg
// candidacy.
type AltChainRequest struct {
	Block       types.Block
	PreparedTxs map[common.Hash]PreparedTx
	Height      uint64
	ForkHeight  uint64
	ChainID     common.ChainID

	// Difficulty and PriorCumulativeDifficulty come from the alt
	// chain's own sub-cache (consensuscontext.Context.NextDifficultyForAlt),
	// not the main snapshot, since a fork several blocks deep can have
	// drifted from the main chain's current difficulty window.
	Difficulty           uint64
	PriorCumulativeDifficulty uint64
}

// VerifyTxRequest asks the verifier to run the stand-alone
// per-transaction checks used by tx-pool admission, independent of any
// block.
type VerifyTxRequest struct {
	Txs []PreparedTx
}

// MainChainResponse is returned for both MainChainRequest and
// MainChainPreppedRequest.
type MainChainResponse struct {
	Block *types.VerifiedBlock
}

// MainChainBatchPreppedResponse is returned for
// MainChainBatchPrepareRequest.
type MainChainBatchPreppedResponse struct {
	Blocks []MainChainPreppedRequest
}

// AltChainResponse is returned for AltChainRequest.
type AltChainResponse struct {
	Block *types.AltBlockRecord
}

// RingMemberResolver answers the ring-membership questions per-input
// validation needs: where in the chain each decoy lives, and how many
// outputs of an amount exist in total (to tell mixable rings from
// rings that simply cannot find enough decoys of that amount).
// cuprate_consensus_rules' contextual_data.rs (imported by
// transactions.rs as `use contextual_data::*`) was filtered out of the
// retrieval pack; this interface reconstructs the shape its callers in
// transactions.rs imply (DecoyInfo, TxRingMembersInfo) against the
// storage surface this module actually has.
type RingMemberResolver interface {
	Outputs(req map[uint64][]uint64) (map[uint64]map[uint64]ChainOutput, error)
	NumOutputsWithAmount(amounts []uint64) (map[uint64]uint64, error)
}

// ChainOutput mirrors storage/database.OutputInfo's shape without
// importing that package directly from the consensus layer; the chain
// manager adapts the concrete Reader into a RingMemberResolver.
type ChainOutput struct {
	Key, Commitment common.Hash
	Amount          uint64
	Height          uint64
	TxID            uint64
	LocalIndex      uint16
	RingCT          bool
}

// ContextCache is the small slice of *consensuscontext.Context the
// verifier needs: current snapshot, the PoW hashing operation, and the
// active/next hard fork. A single small interface per collaborator,
// rather than depending on the concrete actor type, lets batch
// preparation and tests substitute a stand-in.
type ContextCache interface {
	Snapshot() *consensuscontext.Snapshot
	CalculatePow(headerBlob []byte, height uint64, seedHash common.Hash) (common.Hash, error)
	HardForkInfo() (current, next consensuscontext.HardFork)
}

var _ ContextCache = (*consensuscontext.Context)(nil)

// SeedHashSource resolves the block hash at a given height, used to
// derive a candidate block's RandomX seed hash.
type SeedHashSource interface {
	ReadHashByHeight(height uint64) (common.Hash, error)
}

// KeyImageSource answers whether any of a set of key images has
// already been spent on the main chain.
type KeyImageSource interface {
	KeyImagesSpent(kis []common.Hash) (bool, error)
}

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

// Package chainmanager implements the Chain Manager of spec §4.3: the
// state machine that drives the verifier against incoming blocks,
// extends the main chain, tracks alt branches, and runs the
// cumulative-difficulty reorg rule under the global reorg lock.
// Grounded on
// original_source/binaries/cuprated/src/blockchain/manager/handler.rs.
package chainmanager

import (
	"github.com/cuprated-go/cuprated/blockchain/types"
	"github.com/cuprated-go/cuprated/common"
	"github.com/cuprated-go/cuprated/consensus/errkind"
	"github.com/cuprated-go/cuprated/consensus/verifier"
	"github.com/cuprated-go/cuprated/consensuscontext"
)

// BanDuration distinguishes the two peer-ban lengths the manager
// hands out: a short ban for borderline/benign faults, a long ban for
// outright consensus violations (spec §4.3/§7).
type BanDuration int

const (
	BanShort BanDuration = iota
	BanLong
)

// PeerHandle is the peer-layer collaborator (spec §6) an incoming
// block or batch arrives with: the manager bans a misbehaving source
// and cancels an in-flight batch download through it. A nil PeerHandle
// is valid for locally-assembled or test-driven input, in which case
// ban/cancel calls are simply skipped.
type PeerHandle interface {
	Ban(duration BanDuration)
	CancelDownloader()
}

// Verifier is the slice of consensus/verifier.Verifier the chain
// manager drives. A small interface, per spec §9's "deep trait
// hierarchies... collapse to a single small interface per component",
// lets tests substitute a stand-in without spinning up the real
// validation pipeline.
type Verifier interface {
	VerifyMainChain(req verifier.MainChainRequest) (*verifier.MainChainResponse, error)
	VerifyMainChainBatchPrepare(req verifier.MainChainBatchPrepareRequest) (*verifier.MainChainBatchPreppedResponse, error)
	VerifyMainChainPrepped(req verifier.MainChainPreppedRequest) (*verifier.MainChainResponse, error)
	VerifyAltChain(req verifier.AltChainRequest) (*verifier.AltChainResponse, error)
}

var _ Verifier = (*verifier.Verifier)(nil)

// ContextCache is the slice of *consensuscontext.Context the chain
// manager needs: reading/advancing/rewinding the main snapshot and the
// alt-chain sub-cache family.
type ContextCache interface {
	Snapshot() *consensuscontext.Snapshot
	Update(data consensuscontext.NewBlockData)
	PopBlocks(n uint64) error
	LongTermWeightFor(blockWeight uint64) uint64
	AddAltChainCache(chainID common.ChainID, forkHeight uint64) consensuscontext.AltToken
	NextDifficultyForAlt(tok consensuscontext.AltToken) (nextDifficulty, cumulativeDifficulty uint64, ok bool)
	UpdateAlt(tok consensuscontext.AltToken, data consensuscontext.NewBlockData)
	ClearAltCache()
}

var _ ContextCache = (*consensuscontext.Context)(nil)

// Writer is the slice of storage/database.Writer the chain manager
// drives directly (read access goes through Reader below).
type Writer interface {
	WriteBlock(vb *types.VerifiedBlock) error
	PopBlocks(n uint64) (common.ChainID, error)
	WriteAltBlock(rec *types.AltBlockRecord) error
	FlushAltBlocks() error
	ReverseReorg(chainID common.ChainID) error
	AllocateAltChainID() (common.ChainID, error)
}

// Reader is the slice of storage/database.Reader the chain manager
// needs to resolve fork points and replay alt chains during a reorg.
type Reader interface {
	ChainHeight() (height uint64, topHash common.Hash, err error)
	HeightForHash(hash common.Hash) (height uint64, err error)
	ReadBlockByHeight(height uint64) (*types.VerifiedBlock, error)
	AltBlocksInChain(chainID common.ChainID) ([]*types.AltBlockRecord, error)
}

// TxPool is the tx-pool manager's new-block hook (spec §4.4's
// new-block integration): told the key images a freshly committed
// block spent, so it can evict conflicting pool entries.
type TxPool interface {
	NewBlock(spentKeyImages []common.Hash)
}

type errBatchDoesNotExtendTop struct{}

func (errBatchDoesNotExtendTop) Error() string {
	return "chainmanager: first block of batch does not extend the cached top"
}

// spentKeyImages collects every key image a verified block's
// transactions (miner tx excluded; it has no inputs) consumed.
func spentKeyImages(vb *types.VerifiedBlock) []common.Hash {
	var out []common.Hash
	for i := range vb.Txs {
		for _, in := range vb.Txs[i].Inputs {
			out = append(out, in.KeyImage)
		}
	}
	return out
}

// newBlockData adapts a VerifiedBlock into the context cache's Update
// request shape.
func newBlockData(vb *types.VerifiedBlock) consensuscontext.NewBlockData {
	return consensuscontext.NewBlockData{
		Height:               vb.Height,
		BlockHash:            vb.BlockHash,
		Timestamp:            vb.Block.Header.Timestamp,
		Weight:               vb.Weight,
		LongTermWeight:       vb.LongTermWeight,
		CumulativeDifficulty: vb.CumulativeDifficulty,
		GeneratedCoins:       vb.GeneratedCoins,
		Vote:                 consensuscontext.FromVote(vb.Block.Header.MinorVersion),
		MajorVersion:         vb.Block.Header.MajorVersion,
	}
}

// consensusFault reports whether err is a consensus violation, the
// only error kind that results in a peer ban (spec §7).
func consensusFault(err error) bool {
	return errkind.Is(err, errkind.KindConsensusViolation)
}

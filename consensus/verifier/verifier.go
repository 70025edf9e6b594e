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
	"runtime"

	"github.com/cuprated-go/cuprated/blockchain/types"
	"github.com/cuprated-go/cuprated/common"
	"github.com/cuprated-go/cuprated/consensuscontext"
)

// Config tunes the verifier's batch-preparation worker pool.
type Config struct {
	Workers int
}

func (c *Config) sanitize() {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
}

// Verifier runs the block and transaction validation pipeline (spec
// §4.3) against its storage and context-cache collaborators. It holds
// no mutable state of its own; every call is self-contained, so a
// single Verifier is safely shared across the chain manager's
// sequential calls and any concurrent VerifyTx callers from the
// tx-pool.
type Verifier struct {
	cfg Config

	ctx      ContextCache
	resolver RingMemberResolver
	spent    KeyImageSource
	seeds    SeedHashSource
}

// New builds a Verifier.
func New(ctx ContextCache, resolver RingMemberResolver, spent KeyImageSource, seeds SeedHashSource, cfg Config) *Verifier {
	cfg.sanitize()
	return &Verifier{cfg: cfg, ctx: ctx, resolver: resolver, spent: spent, seeds: seeds}
}

// prepareOne runs the parallelizable half of block validation
// (structural + PoW) for a single candidate block.
func (v *Verifier) prepareOne(block types.Block) (PreparedBlock, error) {
	if err := checkStructural(&block); err != nil {
		return PreparedBlock{}, err
	}

	snap := v.ctx.Snapshot()
	seedHash, seedHeight, err := resolveSeed(snap.ChainHeight, v.seeds)
	if err != nil {
		return PreparedBlock{}, err
	}
	pb := PreparedBlock{Block: block, SeedHash: seedHash, SeedHeight: seedHeight}

	if err := checkPoW(&block, &pb, snap.ChainHeight, snap.NextDifficulty, v.ctx); err != nil {
		return PreparedBlock{}, err
	}

	return pb, nil
}

// prepareAlt mirrors prepareOne for a block that forks off the main
// chain: structural checks and seed resolution are unchanged, but the
// PoW target is the alt chain's own next difficulty (difficulty)
// rather than the main snapshot's,
// since an alt branch several blocks deep can have drifted from the
// main chain's current window.
func (v *Verifier) prepareAlt(block types.Block, snap *consensuscontext.Snapshot, difficulty uint64) (PreparedBlock, error) {
	if err := checkStructural(&block); err != nil {
		return PreparedBlock{}, err
	}

	seedHash, seedHeight, err := resolveSeed(snap.ChainHeight, v.seeds)
	if err != nil {
		return PreparedBlock{}, err
	}
	pb := PreparedBlock{Block: block, SeedHash: seedHash, SeedHeight: seedHeight}

	if err := checkPoW(&block, &pb, snap.ChainHeight, difficulty, v.ctx); err != nil {
		return PreparedBlock{}, err
	}

	return pb, nil
}

// verifyPrepped runs the remaining pipeline steps (contextual header,
// per-transaction, aggregate) against an already structural+PoW
// checked block, and assembles the resulting VerifiedBlock.
func (v *Verifier) verifyPrepped(pb PreparedBlock, preparedTxs map[common.Hash]PreparedTx, snap *consensuscontext.Snapshot) (*types.VerifiedBlock, error) {
	if err := checkContextualHeader(&pb.Block.Header, snap); err != nil {
		return nil, err
	}

	txs := make([]types.Transaction, len(pb.Block.TxHashes))
	var weight uint64 = uint64(len(pb.Block.HeaderBlob)) + pb.Block.MinerTx.Weight()
	var fees uint64

	for i, h := range pb.Block.TxHashes {
		ptx, ok := preparedTxs[h]
		if !ok {
			return nil, blockFault(BlockFaultMinerTxInvalid)
		}
		if err := checkTxExtraBounds(&ptx.Tx); err != nil {
			return nil, err
		}
		fee, err := verifyTransaction(&ptx, snap.ChainHeight, pb.Block.Header.Timestamp, snap.CurrentHF, v.resolver, v.spent)
		if err != nil {
			return nil, err
		}
		fees += fee
		weight += ptx.Weight
		txs[i] = ptx.Tx
	}

	minerSum := minerOutputSum(&pb.Block.MinerTx)
	if err := checkAggregate(&pb.Block, minerSum, fees, weight, snap, snap.CurrentHF); err != nil {
		return nil, err
	}

	blockHash := pb.Block.Hash()
	return &types.VerifiedBlock{
		Block:                pb.Block,
		Txs:                  txs,
		BlockHash:            blockHash,
		Height:               snap.ChainHeight,
		Weight:               weight,
		CumulativeDifficulty: snap.CumulativeDifficulty + snap.NextDifficulty,
		GeneratedCoins:       snap.AlreadyGeneratedCoins + minerSum,
	}, nil
}

// VerifyMainChain handles VerifyBlock::MainChain: the single-block
// path the chain manager uses for an incoming block that already
// extends the cached top.
func (v *Verifier) VerifyMainChain(req MainChainRequest) (*MainChainResponse, error) {
	pb, err := v.prepareOne(req.Block)
	if err != nil {
		return nil, err
	}
	snap := v.ctx.Snapshot()
	vb, err := v.verifyPrepped(pb, req.PreparedTxs, snap)
	if err != nil {
		return nil, err
	}
	return &MainChainResponse{Block: vb}, nil
}

// VerifyMainChainBatchPrepare handles
// VerifyBlock::MainChainBatchPrepareBlocks: structural+PoW run in
// parallel across the worker pool, then contextual-header checks run
// serially against the (single, not-yet-advanced) context snapshot —
// each block after the first is linked to its predecessor by hash
// rather than against a hypothetical future snapshot, since the
// context cache only advances on a committed Update.
func (v *Verifier) VerifyMainChainBatchPrepare(req MainChainBatchPrepareRequest) (*MainChainBatchPreppedResponse, error) {
	tasks := make([]structPowTask, len(req.Blocks))
	for i, blk := range req.Blocks {
		blk := blk
		tasks[i] = structPowTask{index: i, fn: func() (PreparedBlock, error) {
			return v.prepareOne(blk.Block)
		}}
	}

	prepared, errs := runStructPowPool(tasks, v.cfg.Workers)
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	snap := v.ctx.Snapshot()
	out := make([]MainChainPreppedRequest, len(prepared))
	for i, pb := range prepared {
		if i == 0 {
			if err := checkContextualHeader(&pb.Block.Header, snap); err != nil {
				return nil, err
			}
		} else if pb.Block.Header.PrevHash != prepared[i-1].Block.Hash() {
			return nil, blockFault(BlockFaultPrevHashMismatch)
		} else if pb.Block.Header.Timestamp <= snap.MedianTimestamp {
			return nil, blockFault(BlockFaultTimestampInvalid)
		} else if consensuscontext.HardFork(pb.Block.Header.MajorVersion) != snap.CurrentHF {
			return nil, blockFault(BlockFaultMajorVersionMismatch)
		}

		out[i] = MainChainPreppedRequest{Block: pb, PreparedTxs: req.Blocks[i].PreparedTxs}
	}

	return &MainChainBatchPreppedResponse{Blocks: out}, nil
}

// VerifyMainChainPrepped handles VerifyBlock::MainChainPrepped: the
// remaining checks for a block that already passed batch preparation.
func (v *Verifier) VerifyMainChainPrepped(req MainChainPreppedRequest) (*MainChainResponse, error) {
	snap := v.ctx.Snapshot()
	vb, err := v.verifyPrepped(req.Block, req.PreparedTxs, snap)
	if err != nil {
		return nil, err
	}
	return &MainChainResponse{Block: vb}, nil
}

// VerifyAltChain handles VerifyBlock::AltChain: full single-block
// verification for a block that forks away from the main chain's top,
// producing an AltBlockRecord tagged with its chain id and fork
// height instead of committing to the main chain.
func (v *Verifier) VerifyAltChain(req AltChainRequest) (*AltChainResponse, error) {
	snap := v.ctx.Snapshot()
	pb, err := v.prepareAlt(req.Block, snap, req.Difficulty)
	if err != nil {
		return nil, err
	}

	// An alt block does not extend the cached top by definition;
	// contextual header checks run against the snapshot's
	// fork/timestamp state but skip the prev-hash-equals-top rule.
	if pb.Block.Header.Timestamp <= snap.MedianTimestamp {
		return nil, blockFault(BlockFaultTimestampInvalid)
	}
	if consensuscontext.HardFork(pb.Block.Header.MajorVersion) != snap.CurrentHF {
		return nil, blockFault(BlockFaultMajorVersionMismatch)
	}

	vb, err := v.verifyAltBody(pb, req.PreparedTxs, snap)
	if err != nil {
		return nil, err
	}
	vb.Height = req.Height
	vb.CumulativeDifficulty = req.PriorCumulativeDifficulty + req.Difficulty

	return &AltChainResponse{Block: &types.AltBlockRecord{
		VerifiedBlock: *vb,
		ChainID:       req.ChainID,
		ForkHeight:    req.ForkHeight,
	}}, nil
}

// verifyAltBody runs the transaction and aggregate checks shared by
// the main-chain and alt-chain paths, skipping the top-hash-linkage
// check verifyPrepped otherwise performs.
func (v *Verifier) verifyAltBody(pb PreparedBlock, preparedTxs map[common.Hash]PreparedTx, snap *consensuscontext.Snapshot) (*types.VerifiedBlock, error) {
	txs := make([]types.Transaction, len(pb.Block.TxHashes))
	var weight uint64 = uint64(len(pb.Block.HeaderBlob)) + pb.Block.MinerTx.Weight()
	var fees uint64

	for i, h := range pb.Block.TxHashes {
		ptx, ok := preparedTxs[h]
		if !ok {
			return nil, blockFault(BlockFaultMinerTxInvalid)
		}
		if err := checkTxExtraBounds(&ptx.Tx); err != nil {
			return nil, err
		}
		fee, err := verifyTransaction(&ptx, snap.ChainHeight, pb.Block.Header.Timestamp, snap.CurrentHF, v.resolver, v.spent)
		if err != nil {
			return nil, err
		}
		fees += fee
		weight += ptx.Weight
		txs[i] = ptx.Tx
	}

	minerSum := minerOutputSum(&pb.Block.MinerTx)
	if err := checkAggregate(&pb.Block, minerSum, fees, weight, snap, snap.CurrentHF); err != nil {
		return nil, err
	}

	return &types.VerifiedBlock{
		Block:                pb.Block,
		Txs:                  txs,
		BlockHash:            pb.Block.Hash(),
		Weight:               weight,
		GeneratedCoins:       minerSum,
	}, nil
}

// VerifyTx handles VerifyTx: stand-alone per-transaction validation,
// used by tx-pool admission independent of any containing block.
func (v *Verifier) VerifyTx(req VerifyTxRequest) error {
	snap := v.ctx.Snapshot()
	for i := range req.Txs {
		if err := checkTxExtraBounds(&req.Txs[i].Tx); err != nil {
			return err
		}
		if _, err := verifyTransaction(&req.Txs[i], snap.ChainHeight, snap.MedianTimestamp, snap.CurrentHF, v.resolver, v.spent); err != nil {
			return err
		}
	}
	return nil
}

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
	"github.com/cuprated-go/cuprated/blockchain/types"
	"github.com/cuprated-go/cuprated/consensuscontext"
	"github.com/cuprated-go/cuprated/params"
)

// checkStructural runs the fork-independent shape checks of step 1 of
// the block validation pipeline: a valid major version, a miner
// transaction present with no inputs, and an extra field within
// bounds. It does not touch storage or the context cache, so it is
// safe to run concurrently across a batch of candidate blocks.
func checkStructural(block *types.Block) error {
	if _, ok := consensuscontext.FromVersion(block.Header.MajorVersion); !ok {
		return blockFault(BlockFaultVersionInvalid)
	}

	miner := block.MinerTx
	if len(miner.Inputs) != 0 {
		return blockFault(BlockFaultMinerTxInvalid)
	}
	if len(miner.Outputs) == 0 {
		return blockFault(BlockFaultMinerTxInvalid)
	}
	if len(miner.Extra) > params.MaxTxExtraSize {
		return blockFault(BlockFaultExtraTooLarge)
	}

	for i := range block.TxHashes {
		if block.TxHashes[i].IsZero() {
			return blockFault(BlockFaultMinerTxInvalid)
		}
	}

	return nil
}

// checkTxExtraBounds is the structural extra-bytes check step 4 runs
// against every non-miner transaction in the block.
func checkTxExtraBounds(tx *types.Transaction) error {
	if len(tx.Extra) > params.MaxTxExtraSize {
		return txFault(FaultExtraTooLarge)
	}
	return nil
}

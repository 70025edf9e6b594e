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
)

// checkContextualHeader runs step 2 of the pipeline: the block must
// extend the cached top hash, its timestamp must clear the
// median-of-last-60 rule, and its major version must equal the
// context's active hard fork.
func checkContextualHeader(header *types.BlockHeader, snap *consensuscontext.Snapshot) error {
	if header.PrevHash != snap.TopHash {
		return blockFault(BlockFaultPrevHashMismatch)
	}
	if header.Timestamp <= snap.MedianTimestamp {
		return blockFault(BlockFaultTimestampInvalid)
	}
	if consensuscontext.HardFork(header.MajorVersion) != snap.CurrentHF {
		return blockFault(BlockFaultMajorVersionMismatch)
	}
	return nil
}

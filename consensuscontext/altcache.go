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

import "github.com/cuprated-go/cuprated/common"

// AltToken gates access to the alt-chain sub-cache family (spec §4.2:
// "Requests for an alt cache are gated by an internal token value that
// external modules cannot construct, preventing misuse"). Its only
// field is unexported, so no package outside consensuscontext can
// fabricate one; the only way to obtain a valid AltToken is to receive
// one back from the context actor itself (e.g. from AddAltChainCache),
// which is exactly the capability-style gate the spec calls for.
type AltToken struct {
	chainID common.ChainID
}

// altChainCache holds an alt branch's own rolling caches. They start
// empty at the branch's split point and are filled only from the
// branch's own blocks (UpdateAlt); nothing is copied from the main
// caches.
type altChainCache struct {
	weights    *blockWeightsCache
	difficulty *difficultyCache
	powVMs     *powVMCache
	hardFork   *hardForkTracker
}

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

package common

import "encoding/hex"

// HashLength is the length in bytes of a Keccak/CryptoNight-family hash:
// block hashes, transaction hashes, and key images are all 32 bytes.
const HashLength = 32

// Hash is a fixed-size 32-byte identifier: a block hash, a transaction
// hash, or a key image.
type Hash [HashLength]byte

// BytesToHash truncates or zero-pads b to fit and returns the result.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

func (h Hash) Bytes() []byte  { return h[:] }
func (h Hash) Hex() string    { return "0x" + hex.EncodeToString(h[:]) }
func (h Hash) String() string { return h.Hex() }
func (h Hash) IsZero() bool   { return h == Hash{} }

// ChainID identifies an alt-branch created by a pop; chain id 0 is
// reserved for the main chain and never assigned to an alt branch.
type ChainID uint64

// MainChainID is the reserved chain id of the canonical chain.
const MainChainID ChainID = 0

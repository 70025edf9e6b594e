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

// TxVersion distinguishes pre-RingCT transactions from RingCT ones.
type TxVersion uint8

const (
	TxVersionOne    TxVersion = 1
	TxVersionRingCT TxVersion = 2
)

// OutputID addresses a pre-RingCT output by the pair (amount,
// amount_index); RingCT outputs are addressed by a single global index
// against amount 0, per the data model.
type OutputID struct {
	Amount      uint64
	AmountIndex uint64
}

// TxIn is a single transaction input: a key image plus the ring of
// output ids it may be spending from.
type TxIn struct {
	KeyImage common.Hash
	Ring     []OutputID
}

// TxOut is a single transaction output.
type TxOut struct {
	Key        common.Hash
	ViewTag    *uint8 // nil through fork 14, optional at fork 15, required from fork 16 onward
	Commitment common.Hash // Pedersen amount commitment for RingCT outputs
	Amount     uint64      // cleartext amount for pre-RingCT (v1) outputs
}

// Transaction is the parsed, structurally valid form of a blob; blob
// parsing itself belongs to the wire codec collaborator (spec §6), so
// this type is what that collaborator is expected to hand back.
type Transaction struct {
	Hash       common.Hash
	Version    TxVersion
	UnlockTime uint64
	Inputs     []TxIn
	Outputs    []TxOut
	Extra      []byte

	// Blob is the opaque on-wire encoding, persisted verbatim by the
	// storage engine and never re-derived by the core.
	Blob []byte
}

// Weight is the transaction's contribution to its containing block's
// weight, taken here as the byte length of its blob.
func (t *Transaction) Weight() uint64 {
	return uint64(len(t.Blob))
}

// Fee is the difference between input and output amounts for a v1 tx;
// for RingCT transactions the fee is carried explicitly in Extra/rct
// data parsed by the wire codec and is not recomputed here.
type Fee = uint64

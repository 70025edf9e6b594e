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

import "github.com/cuprated-go/cuprated/consensus/errkind"

// TxFault enumerates the per-transaction consensus faults, ported from
// transactions.rs's TransactionError.
type TxFault int

const (
	FaultNone TxFault = iota
	FaultVersionInvalid
	FaultOutputNotValidPoint
	FaultOutputTypeInvalid
	FaultZeroOutputForV1
	FaultAmountNotDecomposed
	FaultOutputsOverflow
	FaultOutputsTooHigh
	FaultInputDoesNotHaveExpectedNumbDecoys
	FaultMoreThanOneMixableInputWithUnmixable
	FaultKeyImageNotInPrimeSubgroup
	FaultKeyImageSpent
	FaultIncorrectInputType
	FaultDuplicateRingMember
	FaultInputsAreNotOrdered
	FaultOneOrMoreDecoysLocked
	FaultInputsOverflow
	FaultNoInputs
	FaultRingMemberNotFound
	FaultExtraTooLarge
)

func (f TxFault) String() string {
	switch f {
	case FaultVersionInvalid:
		return "transaction version invalid for this hard fork"
	case FaultOutputNotValidPoint:
		return "output key is not a valid point"
	case FaultOutputTypeInvalid:
		return "output type not allowed at this hard fork"
	case FaultZeroOutputForV1:
		return "v1 transaction has a zero-amount output"
	case FaultAmountNotDecomposed:
		return "output amount is not decomposed"
	case FaultOutputsOverflow:
		return "transaction outputs overflow"
	case FaultOutputsTooHigh:
		return "transaction outputs exceed inputs"
	case FaultInputDoesNotHaveExpectedNumbDecoys:
		return "input does not have the expected number of decoys"
	case FaultMoreThanOneMixableInputWithUnmixable:
		return "more than one mixable input alongside unmixable inputs"
	case FaultKeyImageNotInPrimeSubgroup:
		return "key image is not in the prime subgroup"
	case FaultKeyImageSpent:
		return "key image already spent"
	case FaultIncorrectInputType:
		return "input is not the expected type"
	case FaultDuplicateRingMember:
		return "duplicate ring member"
	case FaultInputsAreNotOrdered:
		return "inputs are not ordered by key image"
	case FaultOneOrMoreDecoysLocked:
		return "one or more decoys are still locked"
	case FaultInputsOverflow:
		return "transaction inputs overflow"
	case FaultNoInputs:
		return "transaction has no inputs"
	case FaultRingMemberNotFound:
		return "ring member not found in storage"
	case FaultExtraTooLarge:
		return "transaction extra field exceeds the maximum size"
	default:
		return "no fault"
	}
}

func (f TxFault) Error() string { return f.String() }

// txFault wraps a TxFault into the closed errkind taxonomy as a
// consensus violation.
func txFault(f TxFault) error {
	return errkind.New(errkind.KindConsensusViolation, f)
}

// BlockFault enumerates structural/contextual/PoW/aggregate block
// faults that are not per-transaction.
type BlockFault int

const (
	BlockFaultNone BlockFault = iota
	BlockFaultVersionInvalid
	BlockFaultSizeExceeded
	BlockFaultMinerTxInvalid
	BlockFaultExtraTooLarge
	BlockFaultPrevHashMismatch
	BlockFaultTimestampInvalid
	BlockFaultMajorVersionMismatch
	BlockFaultPowInvalid
	BlockFaultWeightExceeded
	BlockFaultMinerRewardExceeded
)

func (f BlockFault) String() string {
	switch f {
	case BlockFaultVersionInvalid:
		return "block version invalid for this hard fork"
	case BlockFaultSizeExceeded:
		return "block exceeds the maximum allowed weight"
	case BlockFaultMinerTxInvalid:
		return "miner transaction shape is invalid"
	case BlockFaultExtraTooLarge:
		return "miner transaction extra field too large"
	case BlockFaultPrevHashMismatch:
		return "block does not extend the expected previous hash"
	case BlockFaultTimestampInvalid:
		return "block timestamp fails the median-time rule"
	case BlockFaultMajorVersionMismatch:
		return "block major version does not match the active hard fork"
	case BlockFaultPowInvalid:
		return "proof of work does not meet the required difficulty"
	case BlockFaultWeightExceeded:
		return "block weight exceeds the long-term-derived ceiling"
	case BlockFaultMinerRewardExceeded:
		return "miner output exceeds base subsidy plus fees"
	default:
		return "no fault"
	}
}

func (f BlockFault) Error() string { return f.String() }

func blockFault(f BlockFault) error {
	return errkind.New(errkind.KindConsensusViolation, f)
}

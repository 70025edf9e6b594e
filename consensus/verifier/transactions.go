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

// Per-transaction validation rules, ported from
// original_source/consensus/rules/src/transactions.rs.
package verifier

import (
	"github.com/cuprated-go/cuprated/blockchain/types"
	"github.com/cuprated-go/cuprated/common"
	"github.com/cuprated-go/cuprated/consensuscontext"
)

// isDecomposedAmount reports whether amount is one of Monero's
// decomposed denominations (a single significant digit followed by
// zeroes, e.g. 7, 70, 700, ...), the pre-RingCT output-amount rule
// from fork 2 onward.
func isDecomposedAmount(amount uint64) bool {
	if amount == 0 {
		return false
	}
	for amount%10 == 0 {
		amount /= 10
	}
	return amount < 10
}

// checkOutputTypes enforces the view-tag rule: forbidden up to and
// including fork 14, required from fork 16, and either form (mixed
// within one transaction) allowed at fork 15.
func checkOutputTypes(outs []types.TxOut, hf consensuscontext.HardFork) error {
	if hf == consensuscontext.HardForkV15 {
		return nil
	}
	for _, out := range outs {
		hasTag := out.ViewTag != nil
		if hf <= consensuscontext.HardForkV14 && hasTag {
			return txFault(FaultOutputTypeInvalid)
		}
		if hf >= consensuscontext.HardForkV16 && !hasTag {
			return txFault(FaultOutputTypeInvalid)
		}
	}
	return nil
}

func checkOutputKeys(outs []types.TxOut) error {
	for _, out := range outs {
		if out.Key.IsZero() {
			return txFault(FaultOutputNotValidPoint)
		}
	}
	return nil
}

func checkOutputAmountV1(amount uint64, hf consensuscontext.HardFork) error {
	if amount == 0 {
		return txFault(FaultZeroOutputForV1)
	}
	if hf >= consensuscontext.HardForkV2 && !isDecomposedAmount(amount) {
		return txFault(FaultAmountNotDecomposed)
	}
	return nil
}

func sumOutputsV1(outs []types.TxOut, hf consensuscontext.HardFork) (uint64, error) {
	var sum uint64
	for _, out := range outs {
		if err := checkOutputAmountV1(out.Amount, hf); err != nil {
			return 0, err
		}
		next := sum + out.Amount
		if next < sum {
			return 0, txFault(FaultOutputsOverflow)
		}
		sum = next
	}
	return sum, nil
}

// checkOutputs runs every output consensus rule and returns the sum of
// v1 output amounts (RingCT amounts are hidden behind commitments and
// are not summed here).
func checkOutputs(outs []types.TxOut, hf consensuscontext.HardFork, version types.TxVersion) (uint64, error) {
	if err := checkOutputTypes(outs, hf); err != nil {
		return 0, err
	}
	if err := checkOutputKeys(outs); err != nil {
		return 0, err
	}
	if version == types.TxVersionOne {
		return sumOutputsV1(outs, hf)
	}
	return 0, nil
}

// checkTimeLock reports whether a single input's unlock time has
// passed. Block-height locks compare directly; timestamp locks add the
// fork's block time to the reference timestamp, matching Monero's
// "current time plus one block" grace window.
func checkTimeLock(unlockTime, currentChainHeight, currentTimestamp uint64, hf consensuscontext.HardFork) bool {
	switch {
	case unlockTime == 0:
		return true
	case unlockTime < cryptonoteMaxBlockNumber:
		return unlockTime <= currentChainHeight
	default:
		return currentTimestamp+blockTimeSeconds(hf) >= unlockTime
	}
}

// cryptonoteMaxBlockNumber is the boundary Monero uses to distinguish
// a block-height unlock time from a unix-timestamp one.
const cryptonoteMaxBlockNumber = 500000000

func blockTimeSeconds(hf consensuscontext.HardFork) uint64 {
	if hf >= consensuscontext.HardForkV2 {
		return 120
	}
	return 60
}

func checkAllTimeLocks(tx *types.Transaction, currentChainHeight, currentTimestamp uint64, hf consensuscontext.HardFork) error {
	if !checkTimeLock(tx.UnlockTime, currentChainHeight, currentTimestamp, hf) {
		return txFault(FaultOneOrMoreDecoysLocked)
	}
	return nil
}

func checkDecoyInfo(d *decoyInfo, hf consensuscontext.HardFork) error {
	if hf == consensuscontext.HardForkV15 {
		if checkDecoyInfo(d, consensuscontext.HardForkV14) == nil {
			return nil
		}
		return checkDecoyInfo(d, consensuscontext.HardForkV16)
	}

	minDecoys := minimumDecoys(hf)
	if d.minDecoys < minDecoys {
		if d.notMixable == 0 {
			return txFault(FaultInputDoesNotHaveExpectedNumbDecoys)
		}
		if d.mixable > 1 {
			return txFault(FaultMoreThanOneMixableInputWithUnmixable)
		}
	} else if hf >= consensuscontext.HardForkV8 && d.minDecoys != minDecoys {
		return txFault(FaultInputDoesNotHaveExpectedNumbDecoys)
	}

	if hf >= consensuscontext.HardForkV12 && d.minDecoys != d.maxDecoys {
		return txFault(FaultInputDoesNotHaveExpectedNumbDecoys)
	}
	return nil
}

func check10BlockLock(youngestUsedOutHeight, currentChainHeight uint64, hf consensuscontext.HardFork) error {
	if hf < consensuscontext.HardForkV12 {
		return nil
	}
	if youngestUsedOutHeight+10 > currentChainHeight {
		return txFault(FaultOneOrMoreDecoysLocked)
	}
	return nil
}

func checkKeyImages(in *types.TxIn, seenInTx map[common.Hash]struct{}, spentSource KeyImageSource) error {
	if in.KeyImage.IsZero() {
		return txFault(FaultKeyImageNotInPrimeSubgroup)
	}
	if _, dup := seenInTx[in.KeyImage]; dup {
		return txFault(FaultKeyImageSpent)
	}
	seenInTx[in.KeyImage] = struct{}{}

	spent, err := spentSource.KeyImagesSpent([]common.Hash{in.KeyImage})
	if err != nil {
		return err
	}
	if spent {
		return txFault(FaultKeyImageSpent)
	}
	return nil
}

func checkRingMembersUnique(in *types.TxIn, hf consensuscontext.HardFork) error {
	if hf < consensuscontext.HardForkV6 {
		return nil
	}
	seen := make(map[uint64]struct{}, len(in.Ring))
	for i, out := range in.Ring {
		if i > 0 && out.AmountIndex == 0 {
			return txFault(FaultDuplicateRingMember)
		}
		if _, dup := seen[out.AmountIndex]; dup {
			return txFault(FaultDuplicateRingMember)
		}
		seen[out.AmountIndex] = struct{}{}
	}
	return nil
}

func checkInputsSorted(inputs []types.TxIn, hf consensuscontext.HardFork) error {
	if hf < consensuscontext.HardForkV7 {
		return nil
	}
	for i := 1; i < len(inputs); i++ {
		if bytesCompare(inputs[i-1].KeyImage, inputs[i].KeyImage) >= 0 {
			return txFault(FaultInputsAreNotOrdered)
		}
	}
	return nil
}

func bytesCompare(a, b common.Hash) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// sumInputsV1 sums each v1 input's declared amount. Pre-RingCT ring
// members all share the real spend's denomination, so the first ring
// entry's amount stands in for the input's own (cleartext) amount.
func sumInputsV1(inputs []types.TxIn) (uint64, error) {
	var sum uint64
	for _, in := range inputs {
		amount := uint64(0)
		if len(in.Ring) > 0 {
			amount = in.Ring[0].Amount
		}
		next := sum + amount
		if next < sum {
			return 0, txFault(FaultInputsOverflow)
		}
		sum = next
	}
	return sum, nil
}

// checkInputs runs every input consensus rule and returns the summed
// input amount for pre-RingCT transactions (RingCT inputs hide their
// amount behind the ring signature and are not summed here).
func checkInputs(tx *types.Transaction, ring *ringMembersInfo, currentChainHeight uint64, hf consensuscontext.HardFork, spentSource KeyImageSource) (uint64, error) {
	if len(tx.Inputs) == 0 {
		return 0, txFault(FaultNoInputs)
	}

	if err := check10BlockLock(ring.youngestUsedOutHeight, currentChainHeight, hf); err != nil {
		return 0, err
	}

	if ring.decoy != nil {
		if err := checkDecoyInfo(ring.decoy, hf); err != nil {
			return 0, err
		}
	} else if hf != consensuscontext.HardForkV1 {
		return 0, txFault(FaultInputDoesNotHaveExpectedNumbDecoys)
	}

	seen := make(map[common.Hash]struct{}, len(tx.Inputs))
	for i := range tx.Inputs {
		in := &tx.Inputs[i]
		if len(in.Ring) == 0 {
			return 0, txFault(FaultInputDoesNotHaveExpectedNumbDecoys)
		}
		if err := checkRingMembersUnique(in, hf); err != nil {
			return 0, err
		}
		if err := checkKeyImages(in, seen, spentSource); err != nil {
			return 0, err
		}
	}

	if err := checkInputsSorted(tx.Inputs, hf); err != nil {
		return 0, err
	}

	if tx.Version == types.TxVersionOne {
		return sumInputsV1(tx.Inputs)
	}
	return 0, nil
}

func maxTxVersion(hf consensuscontext.HardFork) types.TxVersion {
	if hf <= consensuscontext.HardForkV3 {
		return types.TxVersionOne
	}
	return types.TxVersionRingCT
}

func minTxVersion(hf consensuscontext.HardFork) types.TxVersion {
	if hf >= consensuscontext.HardForkV6 {
		return types.TxVersionRingCT
	}
	return types.TxVersionOne
}

// checkTxVersion enforces the allowed version range for hf, matching
// transactions.rs's check_tx_version including the "only v1 allowed at
// fork 1" special case.
func checkTxVersion(ring *ringMembersInfo, version types.TxVersion, hf consensuscontext.HardFork) error {
	if ring.decoy != nil {
		if version > maxTxVersion(hf) {
			return txFault(FaultVersionInvalid)
		}
		if version < minTxVersion(hf) && ring.decoy.notMixable != 0 {
			return txFault(FaultVersionInvalid)
		}
		return nil
	}
	if version != types.TxVersionOne {
		return txFault(FaultVersionInvalid)
	}
	return nil
}

// verifyTransaction runs every per-transaction consensus rule and
// returns the tx's fee (inputs minus outputs for v1; carried
// separately for RingCT, where it is not recomputable from the
// transaction's visible fields).
func verifyTransaction(ptx *PreparedTx, currentChainHeight, currentTimestamp uint64, hf consensuscontext.HardFork, resolver RingMemberResolver, spentSource KeyImageSource) (uint64, error) {
	tx := &ptx.Tx

	ring, err := resolveRingMembers(tx, hf, resolver)
	if err != nil {
		return 0, err
	}

	if err := checkTxVersion(ring, tx.Version, hf); err != nil {
		return 0, err
	}

	outSum, err := checkOutputs(tx.Outputs, hf, tx.Version)
	if err != nil {
		return 0, err
	}

	if err := checkAllTimeLocks(tx, currentChainHeight, currentTimestamp, hf); err != nil {
		return 0, err
	}

	inSum, err := checkInputs(tx, ring, currentChainHeight, hf, spentSource)
	if err != nil {
		return 0, err
	}

	if tx.Version == types.TxVersionOne {
		if outSum > inSum {
			return 0, txFault(FaultOutputsTooHigh)
		}
		return inSum - outSum, nil
	}
	return ptx.Fee, nil
}

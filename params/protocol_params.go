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

// Package params holds the plain consensus constants of the core: the
// rolling-window sizes, the mainnet hard-fork height table, and the
// tx-pool/dandelion default tunables. Values are either named directly
// by spec.md or ported from the hard-fork/weight tables this
// specification was distilled from.
package params

const (
	// ShortTermWeightWindow is the rolling short-term block-weight
	// median window (spec §4.2).
	ShortTermWeightWindow = 100
	// LongTermWeightWindow is the rolling long-term block-weight
	// median window (spec §4.2).
	LongTermWeightWindow = 100000

	// DifficultyWindow is the base timestamp/cumulative-difficulty
	// window; hard-fork-specific extensions are added on top by the
	// difficulty cache itself.
	DifficultyWindow = 735

	// HardForkVoteWindow is the number of trailing blocks whose votes
	// are tallied when deciding whether to activate the next fork.
	HardForkVoteWindow = 10080

	// TimestampCheckWindow is the window used by the median-of-last-N
	// timestamp check in block header validation (spec §3, §4.3).
	TimestampCheckWindow = 60

	// Well-known Monero penalty-free block-weight zones, by era. Not
	// carried in the distilled spec or in original_source/'s kept
	// files (cuprate_consensus_rules was filtered out of the
	// retrieval); these are the public Monero protocol constants.
	PenaltyFreeZone1 = 20000
	PenaltyFreeZone2 = 60000
	PenaltyFreeZone5 = 300000
)

// TxRerelayBaseSeconds is the tx-pool re-relay backoff base R (spec
// §4.4, §6 "txpool.rerelay_base").
const TxRerelayBaseSeconds = 300

// DefaultTxPoolMaxAgeSeconds is the default maximum time a public pool
// entry may live before removal (spec §8 scenario 5: max_age=86400).
const DefaultTxPoolMaxAgeSeconds = 86400

// Dandelion defaults (spec §6).
const (
	DefaultFluffProbability  = 0.2
	DefaultEmbargoMeanSeconds = 39
	DefaultMaxStemLength      = 2
)

// Miner-subsidy constants (spec §4.3 aggregate validation step).
// MONEY_SUPPLY is the theoretical maximum atomic-unit supply (the
// classic "all bits set" cryptonote constant); EmissionSpeedFactor is
// the right-shift applied to the remaining supply to get the per-minute
// subsidy, which the verifier scales to the fork's block time;
// FinalSubsidyPerMinute is the tail-emission floor once the
// shift-derived subsidy would fall below it. These are well-known
// public Monero protocol constants, not present in the filtered
// original_source/ retrieval (cuprate_consensus_rules' block reward
// module was not included).
const (
	MoneySupply           = ^uint64(0)
	EmissionSpeedFactor   = 20
	FinalSubsidyPerMinute = 300000000000
)

// MaxTxExtraSize bounds a transaction's opaque extra field during
// structural validation.
const MaxTxExtraSize = 1060


// MainnetHardForkHeight is the minimum chain height at which the
// hard-fork of the same index (1-based, HardFork(i+1)) may activate.
// Ported from original_source/consensus/src/hardforks.rs
// (HardFork::mainnet_fork_height). Index 0 is HardFork V1.
var MainnetHardForkHeight = [16]uint64{
	0,       // V1
	1009827, // V2
	1141317, // V3
	1220516, // V4
	1288616, // V5
	1400000, // V6
	1546000, // V7
	1685555, // V8
	1686275, // V9
	1788000, // V10
	1788720, // V11
	1978433, // V12
	2210000, // V13
	2210720, // V14
	2688888, // V15
	2689608, // V16
}

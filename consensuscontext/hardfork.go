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

import (
	"github.com/cuprated-go/cuprated/params"
)

// HardFork identifies a Monero consensus version, V1 through V16.
// Ported from original_source/consensus/src/hardforks.rs.
type HardFork uint8

const (
	HardForkV1 HardFork = iota + 1
	HardForkV2
	HardForkV3
	HardForkV4
	HardForkV5
	HardForkV6
	HardForkV7
	HardForkV8
	HardForkV9
	HardForkV10
	HardForkV11
	HardForkV12
	HardForkV13
	HardForkV14
	HardForkV15
	HardForkV16
)

// FromVersion maps a block's major_version field to a HardFork.
func FromVersion(version uint8) (HardFork, bool) {
	if version < uint8(HardForkV1) || version > uint8(HardForkV16) {
		return 0, false
	}
	return HardFork(version), true
}

// FromVote maps a block's minor_version (vote) field to a HardFork. A
// vote of 0 is interpreted as V1, matching legacy Monero behavior;
// any vote past the known range defaults to the latest known fork.
func FromVote(vote uint8) HardFork {
	if vote == 0 {
		return HardForkV1
	}
	if hf, ok := FromVersion(vote); ok {
		return hf
	}
	return HardForkV16
}

// NextFork returns the fork that follows hf, or 0 if hf is the latest
// known fork.
func (hf HardFork) NextFork() HardFork {
	if hf >= HardForkV16 {
		return 0
	}
	return hf + 1
}

// ForkThreshold is the percentage of the vote window required to
// activate hf. No Monero hard fork has ever used actual voting, so
// this is always 0 — any vote count (including zero) satisfies it.
func (hf HardFork) ForkThreshold() uint64 { return 0 }

// VotesNeeded returns the number of votes within window required to
// activate hf, per ForkThreshold.
func (hf HardFork) VotesNeeded(window uint64) uint64 {
	return (hf.ForkThreshold()*window + 99) / 100
}

// ForkHeight returns the minimum mainnet chain height at which hf may
// activate.
func (hf HardFork) ForkHeight() uint64 {
	if hf < HardForkV1 || hf > HardForkV16 {
		return 0
	}
	return params.MainnetHardForkHeight[hf-1]
}

// hfVotes is a histogram of votes per hard fork, over the trailing
// window. Ported from HFVotes in hardforks.rs.
type hfVotes struct {
	votes [16]uint64
}

func (v *hfVotes) addVoteFor(hf HardFork)    { v.votes[hf-1]++ }
func (v *hfVotes) removeVoteFor(hf HardFork) { v.votes[hf-1]-- }

// votesFor sums votes for hf and every fork above it, matching the
// Rust slice-sum `self.votes[*hf as usize - 1..].iter().sum()`.
func (v *hfVotes) votesFor(hf HardFork) uint64 {
	var total uint64
	for i := int(hf - 1); i < len(v.votes); i++ {
		total += v.votes[i]
	}
	return total
}

func (v *hfVotes) totalVotes() uint64 {
	var total uint64
	for _, x := range v.votes {
		total += x
	}
	return total
}

// HardForkConfig configures the vote-tracking window.
type HardForkConfig struct {
	Window uint64
}

func (c *HardForkConfig) sanitize() {
	if c.Window == 0 {
		logger.Warn("hard fork vote window is zero, using default", "default", params.HardForkVoteWindow)
		c.Window = params.HardForkVoteWindow
	}
}

// DefaultHardForkConfig returns the mainnet default vote window.
func DefaultHardForkConfig() HardForkConfig {
	return HardForkConfig{Window: params.HardForkVoteWindow}
}

// hardForkTracker keeps the current fork and its trailing vote
// histogram, and decides when to advance. Ported from HardForks in
// hardforks.rs.
type hardForkTracker struct {
	config HardForkConfig

	current HardFork
	next     HardFork // 0 if current is the latest known fork

	votes      hfVotes
	lastHeight uint64
}

// BlockHeaderVote is the minimal per-block data the tracker needs to
// account for a vote: its minor-version vote field.
type BlockHeaderVote struct {
	Height uint64
	Vote   HardFork
}

// initHardForkTracker builds a tracker from the vote window
// `[chainHeight-window, chainHeight)` plus the current tip's major
// version, exactly as HardForks::init_at_chain_height does.
func initHardForkTracker(config HardForkConfig, chainHeight uint64, tipMajorVersion uint8, windowVotes []BlockHeaderVote) (*hardForkTracker, error) {
	config.sanitize()

	hf, ok := FromVersion(tipMajorVersion)
	if !ok {
		return nil, errInvalidMajorVersion(tipMajorVersion)
	}

	t := &hardForkTracker{
		config:     config,
		current:    hf,
		next:       hf.NextFork(),
		lastHeight: chainHeight - 1,
	}
	for _, bv := range windowVotes {
		t.votes.addVoteFor(bv.Vote)
	}
	t.checkSetNewHF()
	return t, nil
}

// newBlock accounts for one new block's vote, evicting votes that have
// left the trailing window by asking the caller (the owning cache, via
// evict) for the votes of blocks that just fell out of range.
func (t *hardForkTracker) newBlock(height uint64, vote HardFork, evict func(offset uint64) HardFork) {
	if t.lastHeight+1 != height {
		panic("consensuscontext: out-of-order hard fork vote accounting")
	}
	t.lastHeight++
	t.votes.addVoteFor(vote)

	for offset := t.config.Window; offset < t.votes.totalVotes(); offset++ {
		t.votes.removeVoteFor(evict(offset))
	}

	t.checkSetNewHF()
}

// checkSetNewHF advances current/next while the next fork's height and
// vote thresholds are both satisfied.
func (t *hardForkTracker) checkSetNewHF() {
	for t.next != 0 {
		if t.lastHeight+1 >= t.next.ForkHeight() && t.votes.votesFor(t.next) >= t.next.VotesNeeded(t.config.Window) {
			t.current = t.next
			t.next = t.next.NextFork()
		} else {
			return
		}
	}
}

type errInvalidMajorVersion uint8

func (e errInvalidMajorVersion) Error() string {
	return "consensuscontext: invalid major version in stored block header"
}

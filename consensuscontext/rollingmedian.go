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

import "sort"

// rollingMedian is a bounded deque of uint64 samples supporting
// push-back, pop-back, front-extension, and O(n log n) median
// retrieval (n bounded by window). Ported from the shape of
// cuprate_helper::num::RollingMedian referenced in weight.rs; the
// reference implementation was not part of the retrieval pack, so the
// container itself (a plain slice used as a deque, window-bounded on
// push) is a direct, idiomatic Go rendition of the same contract.
type rollingMedian struct {
	window int
	values []uint64 // oldest first
}

func newRollingMedian(window int) *rollingMedian {
	return &rollingMedian{window: window}
}

func rollingMedianFromSlice(values []uint64, window int) *rollingMedian {
	if len(values) > window {
		values = values[len(values)-window:]
	}
	cp := make([]uint64, len(values))
	copy(cp, values)
	return &rollingMedian{window: window, values: cp}
}

// push appends a new, most-recent sample, evicting the oldest sample
// if the window is already full.
func (m *rollingMedian) push(v uint64) {
	m.values = append(m.values, v)
	if len(m.values) > m.window {
		m.values = m.values[1:]
	}
}

// popBack removes the single most recent sample.
func (m *rollingMedian) popBack() {
	if len(m.values) == 0 {
		return
	}
	m.values = m.values[:len(m.values)-1]
}

// appendFront prepends older samples reloaded from storage, e.g. when
// a pop must extend the window backward. The result is truncated to
// window from the back, matching the Rust cache's invariant that it
// never holds more than `window` samples.
func (m *rollingMedian) appendFront(older []uint64) {
	if len(older) == 0 {
		return
	}
	combined := make([]uint64, 0, len(older)+len(m.values))
	combined = append(combined, older...)
	combined = append(combined, m.values...)
	if len(combined) > m.window {
		combined = combined[len(combined)-m.window:]
	}
	m.values = combined
}

func (m *rollingMedian) windowLen() int { return len(m.values) }

// median returns the Monero-style median: for an even sample count the
// floor-average of the two middle elements (integer division), for an
// odd count the single middle element.
func (m *rollingMedian) median() uint64 {
	n := len(m.values)
	if n == 0 {
		return 0
	}
	sorted := make([]uint64, n)
	copy(sorted, m.values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

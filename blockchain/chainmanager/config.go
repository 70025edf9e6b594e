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

package chainmanager

import "github.com/cuprated-go/cuprated/log"

var logger = log.NewModuleLogger(log.Blockchain)

// defaultMaxAltChains bounds how many concurrent alt-chain branches the
// manager tracks; once the count goes past it, every tracked branch is
// flushed at once (spec §4.3's "bounded alt-chain cache"). Not a public
// Monero protocol constant; a plain operational default.
const defaultMaxAltChains = 32

// defaultRequestQueueLen sizes the actor's request channel.
const defaultRequestQueueLen = 256

// Config tunes the chain manager actor.
type Config struct {
	// MaxAltChains bounds the number of alt branches tracked
	// concurrently; once the count exceeds it, every tracked branch
	// is dropped, not only the one with the lowest cumulative difficulty.
	MaxAltChains int

	// RequestQueueLen sizes the actor's request channel.
	RequestQueueLen int
}

func (c *Config) sanitize() {
	if c.MaxAltChains <= 0 {
		c.MaxAltChains = defaultMaxAltChains
	}
	if c.RequestQueueLen <= 0 {
		c.RequestQueueLen = defaultRequestQueueLen
	}
}

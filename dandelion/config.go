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

package dandelion

import (
	"github.com/cuprated-go/cuprated/log"
	"github.com/cuprated-go/cuprated/params"
)

var logger = log.NewModuleLogger(log.Dandelion)

// Config tunes the Dandelion++ pool (spec §6: dandelion.fluff_probability,
// dandelion.embargo_mean_seconds, dandelion.max_stem_length).
type Config struct {
	// FluffProbability is the per-hop chance a stem forward instead
	// becomes the fluff point; owned by the Router collaborator, kept
	// here only so this package can validate/default it for callers
	// that construct a Router from the same configuration source.
	FluffProbability float64

	// EmbargoMeanSeconds is the mean of the exponential distribution
	// an embargo timer's duration is sampled from.
	EmbargoMeanSeconds float64

	// MaxStemLength bounds how many hops a transaction may stem before
	// a peer forces it to fluff; owned by the Router collaborator for
	// the same reason as FluffProbability.
	MaxStemLength int

	// RequestQueueLen sizes the actor's request channel.
	RequestQueueLen int
}

func (c *Config) sanitize() {
	if c.FluffProbability <= 0 || c.FluffProbability > 1 {
		logger.Warn("dandelion fluff_probability out of (0,1], using default", "default", params.DefaultFluffProbability)
		c.FluffProbability = params.DefaultFluffProbability
	}
	if c.EmbargoMeanSeconds <= 0 {
		logger.Warn("dandelion embargo_mean_seconds unset, using default", "default", params.DefaultEmbargoMeanSeconds)
		c.EmbargoMeanSeconds = params.DefaultEmbargoMeanSeconds
	}
	if c.MaxStemLength <= 0 {
		c.MaxStemLength = params.DefaultMaxStemLength
	}
	if c.RequestQueueLen <= 0 {
		c.RequestQueueLen = 256
	}
}

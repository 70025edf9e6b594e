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

// Package consensuscontext implements the Blockchain Context Cache
// (spec §4.2): rolling consensus medians, hard-fork vote tracking, a
// PoW VM cache, and alt-chain sub-caches, published as an atomically
// swapped Snapshot to any number of concurrent readers.
package consensuscontext

import (
	"github.com/cuprated-go/cuprated/log"
	"github.com/cuprated-go/cuprated/params"
)

var logger = log.NewModuleLogger(log.ConsensusContext)

// Config configures the context cache's windows.
type Config struct {
	ShortTermWeightWindow int
	LongTermWeightWindow  int
	DifficultyWindow      int
	HardFork              HardForkConfig
	RequestQueueLen       int
}

// sanitize fills in defaults for anything left at its zero value and
// logs a warning, matching the teacher's Config.sanitize() convention
// (node/sc/bridge_tx_pool.go's BridgeTxPoolConfig.sanitize()).
func (c *Config) sanitize() {
	if c.ShortTermWeightWindow <= 0 {
		c.ShortTermWeightWindow = params.ShortTermWeightWindow
	}
	if c.LongTermWeightWindow <= 0 {
		c.LongTermWeightWindow = params.LongTermWeightWindow
	}
	if c.DifficultyWindow <= 0 {
		c.DifficultyWindow = params.DifficultyWindow
	}
	c.HardFork.sanitize()
	if c.RequestQueueLen <= 0 {
		logger.Warn("request queue length is zero, using default", "default", 64)
		c.RequestQueueLen = 64
	}
}

// DefaultConfig returns the mainnet-default window configuration.
func DefaultConfig() Config {
	return Config{
		ShortTermWeightWindow: params.ShortTermWeightWindow,
		LongTermWeightWindow:  params.LongTermWeightWindow,
		DifficultyWindow:      params.DifficultyWindow,
		HardFork:              DefaultHardForkConfig(),
		RequestQueueLen:       64,
	}
}

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

package database

import "github.com/cuprated-go/cuprated/log"

var logger = log.NewModuleLogger(log.StorageDatabase)

// SyncMode mirrors spec §6's sync_mode configuration option.
type SyncMode int

const (
	SyncFastThenSafe SyncMode = iota
	SyncSafe
	SyncThreshold
	SyncFast
)

// ReaderThreadsMode mirrors spec §6's reader_threads option.
type ReaderThreadsMode int

const (
	ReaderThreadsOnePerCPU ReaderThreadsMode = iota
	ReaderThreadsOne
	ReaderThreadsNumber
	ReaderThreadsPercent
)

// Config configures the storage engine: which KV backend to open, the
// on-disk directory, the read-pool's worker count, and the bounded
// channel depths for the reader/writer actors (spec §4.1, §6).
type Config struct {
	Dir     string
	DBType  DBType
	SyncMode SyncMode

	ReaderThreadsMode ReaderThreadsMode
	ReaderThreadsN    int
	ReaderThreadsPct  float64

	ReadQueueLen    int
	WriteQueueLen   int
	MaxAltChainCache int

	// ThresholdSyncThreshold is only meaningful when SyncMode ==
	// SyncThreshold, mirroring sync_mode: Threshold(n) from spec §6.
	ThresholdSyncThreshold uint64
}

// sanitize fills in defaults for anything left at its zero value,
// logging a warning as it goes -- the same Config.sanitize() pattern
// the teacher uses throughout node/sc (e.g.
// BridgeTxPoolConfig.sanitize()).
func (c *Config) sanitize() {
	if c.Dir == "" {
		logger.Warn("storage dir is empty, using default", "default", "./cuprated-data")
		c.Dir = "./cuprated-data"
	}
	if c.ReadQueueLen <= 0 {
		c.ReadQueueLen = 256
	}
	if c.WriteQueueLen <= 0 {
		c.WriteQueueLen = 64
	}
	if c.MaxAltChainCache <= 0 {
		c.MaxAltChainCache = 16
	}
	switch c.ReaderThreadsMode {
	case ReaderThreadsNumber:
		if c.ReaderThreadsN <= 0 {
			logger.Warn("reader_threads.Number <= 0, falling back to 4")
			c.ReaderThreadsN = 4
		}
	case ReaderThreadsPercent:
		if c.ReaderThreadsPct <= 0 || c.ReaderThreadsPct > 1 {
			logger.Warn("reader_threads.Percent out of (0,1], falling back to 0.5")
			c.ReaderThreadsPct = 0.5
		}
	}
}

func (c Config) readerThreadCount() int {
	switch c.ReaderThreadsMode {
	case ReaderThreadsOne:
		return 1
	case ReaderThreadsNumber:
		return c.ReaderThreadsN
	case ReaderThreadsPercent:
		n := int(float64(numCPU()) * c.ReaderThreadsPct)
		if n < 1 {
			n = 1
		}
		return n
	default: // ReaderThreadsOnePerCPU
		return numCPU()
	}
}

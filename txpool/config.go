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

// Package txpool implements the transaction-pool manager of spec
// §4.4: tracking every pooled transaction's age and re-relay timer,
// admitting new transactions through the backing store, and evicting
// transactions a new block has spent, grounded on
// original_source/binaries/cuprated/src/txpool/manager.rs.
package txpool

import (
	"time"

	"github.com/cuprated-go/cuprated/log"
	"github.com/cuprated-go/cuprated/params"
)

var logger = log.NewModuleLogger(log.TxPool)

// Config tunes the pool manager's age bookkeeping (spec §6:
// txpool.maximum_age, txpool.rerelay_base).
type Config struct {
	// MaximumAge is how long a public pool transaction survives before
	// it is dropped instead of re-relayed.
	MaximumAge time.Duration

	// RerelayBase is the re-relay backoff base R: consecutive re-relay
	// intervals grow in multiples of R until they would exceed the
	// time remaining until MaximumAge.
	RerelayBase time.Duration

	// RequestQueueLen sizes the actor's request channel.
	RequestQueueLen int
}

func (c *Config) sanitize() {
	if c.MaximumAge <= 0 {
		logger.Warn("txpool maximum_age unset, using default", "default_seconds", params.DefaultTxPoolMaxAgeSeconds)
		c.MaximumAge = params.DefaultTxPoolMaxAgeSeconds * time.Second
	}
	if c.RerelayBase <= 0 {
		logger.Warn("txpool rerelay_base unset, using default", "default_seconds", params.TxRerelayBaseSeconds)
		c.RerelayBase = params.TxRerelayBaseSeconds * time.Second
	}
	if c.RequestQueueLen <= 0 {
		c.RequestQueueLen = 256
	}
}

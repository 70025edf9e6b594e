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

package txpool

import (
	"sync"
	"time"

	"github.com/cuprated-go/cuprated/blockchain/types"
	"github.com/cuprated-go/cuprated/common"
	"github.com/cuprated-go/cuprated/dandelion"
	"github.com/cuprated-go/cuprated/internal/delayqueue"
)

type request struct{ fn func() }

// Diffuser broadcasts a raw transaction blob to the network, used for
// re-relaying a public pool transaction (spec §4.4's "re-relay").
type Diffuser interface {
	Diffuse(blob []byte) error
}

// TxInfo is the manager's own bookkeeping for a pooled transaction,
// distinct from (and smaller than) what the backing Store holds,
// mirroring manager.rs's TxInfo.
type TxInfo struct {
	Weight     uint64
	Fee        uint64
	ReceivedAt int64
	Private    bool
}

// Manager is the tx-pool actor of spec §4.4: a single goroutine
// tracking every pooled transaction's age and re-relay timer, admitting
// new transactions through the shared Store and routing them through
// the Dandelion pool, grounded on
// original_source/binaries/cuprated/src/txpool/manager.rs.
type Manager struct {
	cfg       Config
	store     Store
	diffuser  Diffuser
	dandelion *dandelion.Pool

	currentTxs  map[common.Hash]*TxInfo
	timeoutKeys map[common.Hash]delayqueue.Key
	timeouts    *delayqueue.Queue

	reqCh     chan request
	promoteCh <-chan common.Hash
	closed    chan struct{}
	wg        sync.WaitGroup
}

// Start builds the Manager and spawns its actor goroutine. dp is the
// Dandelion pool this manager forwards incoming transactions to;
// promoteCh is the receive side of the channel dp notifies whenever it
// promotes a transaction this manager still tracks as private.
func Start(store Store, dp *dandelion.Pool, promoteCh <-chan common.Hash, diffuser Diffuser, cfg Config) *Manager {
	cfg.sanitize()
	m := &Manager{
		cfg:         cfg,
		store:       store,
		diffuser:    diffuser,
		dandelion:   dp,
		currentTxs:  make(map[common.Hash]*TxInfo),
		timeoutKeys: make(map[common.Hash]delayqueue.Key),
		timeouts:    delayqueue.New(),
		reqCh:       make(chan request, cfg.RequestQueueLen),
		promoteCh:   promoteCh,
		closed:      make(chan struct{}),
	}
	m.wg.Add(1)
	go m.run()
	return m
}

// Stop halts the actor goroutine and the re-relay timer queue.
func (m *Manager) Stop() {
	close(m.closed)
	m.wg.Wait()
	m.timeouts.Stop()
}

func (m *Manager) call(fn func()) {
	done := make(chan struct{})
	m.reqCh <- request{fn: func() { fn(); close(done) }}
	<-done
}

func (m *Manager) run() {
	defer m.wg.Done()
	for {
		select {
		case req := <-m.reqCh:
			req.fn()
		case hash := <-m.timeouts.C:
			m.handleTxTimeout(hash)
		case hash := <-m.promoteCh:
			m.promoteTx(hash)
		case <-m.closed:
			return
		}
	}
}

// calculateNextTimeout ports manager.rs's calculate_next_timeout: the
// next re-relay fires after the smallest multiple of rerelayBase that
// exceeds the transaction's current time in the pool, capped at
// whatever time remains until maxAge.
func calculateNextTimeout(receivedAt int64, maxAge, rerelayBase time.Duration) time.Duration {
	timeInPool := time.Duration(time.Now().Unix()-receivedAt) * time.Second
	var tillMax time.Duration
	if timeInPool < maxAge {
		tillMax = maxAge - timeInPool
	}
	timeouts := int64(timeInPool / rerelayBase)
	next := time.Duration(timeouts+1) * rerelayBase
	if next > tillMax {
		next = tillMax
	}
	return next
}

// HandleIncomingTx admits tx into the pool through the shared store
// and, if it is not a double-spend, starts tracking it and forwards
// it to the Dandelion pool for routing.
func (m *Manager) HandleIncomingTx(tx types.Transaction, weight, fee uint64, state dandelion.RouteState) (err error) {
	m.call(func() {
		// A tx starts private unless it arrives (or is routed) as an
		// immediate fluff — mirrors dandelion.Pool's own store_tx_and_stem
		// vs store_and_fluff_tx split, which stems both RouteLocal and
		// RouteStem but fluffs RouteFluff immediately.
		private := state.Kind != dandelion.RouteFluff
		doubleSpend, serr := m.store.Store(tx, private)
		if serr != nil {
			err = serr
			return
		}
		if doubleSpend != nil {
			logger.Debug("rejecting double-spend tx", "tx", tx.Hash.Hex(), "conflicts_with", doubleSpend.Hex())
			return
		}
		m.trackTx(tx.Hash, weight, fee, private)
		err = m.dandelion.HandleIncomingTx(tx, state)
	})
	return
}

func (m *Manager) trackTx(hash common.Hash, weight, fee uint64, private bool) {
	now := time.Now().Unix()
	info := &TxInfo{Weight: weight, Fee: fee, ReceivedAt: now, Private: private}
	if !private {
		m.armTimeout(hash, now)
	}
	m.currentTxs[hash] = info
	poolSize.Set(float64(len(m.currentTxs)))
}

func (m *Manager) armTimeout(hash common.Hash, receivedAt int64) {
	next := calculateNextTimeout(receivedAt, m.cfg.MaximumAge, m.cfg.RerelayBase)
	key := m.timeouts.Insert(hash, next)
	m.timeoutKeys[hash] = key
}

// promoteTx is called when the Dandelion pool reports hash has been
// promoted out of the stem pool: the manager starts its public
// bookkeeping from this moment, matching manager.rs's promote_tx.
func (m *Manager) promoteTx(hash common.Hash) {
	info, ok := m.currentTxs[hash]
	if !ok || !info.Private {
		return
	}
	info.Private = false
	info.ReceivedAt = time.Now().Unix()
	m.armTimeout(hash, info.ReceivedAt)
}

// handleTxTimeout runs when a tracked transaction's re-relay timer
// fires: past MaximumAge it is dropped, otherwise it is re-relayed and
// its next timeout is armed.
func (m *Manager) handleTxTimeout(hash common.Hash) {
	delete(m.timeoutKeys, hash)
	info, ok := m.currentTxs[hash]
	if !ok {
		return
	}

	timeInPool := time.Duration(time.Now().Unix()-info.ReceivedAt) * time.Second
	if timeInPool >= m.cfg.MaximumAge {
		m.removeTxFromPool(hash, true)
		return
	}

	m.rerelayTx(hash)
	m.armTimeout(hash, info.ReceivedAt)
}

func (m *Manager) rerelayTx(hash common.Hash) {
	blob, ok := m.store.Blob(hash)
	if !ok {
		return
	}
	if err := m.diffuser.Diffuse(blob); err != nil {
		logger.Warn("failed to re-relay tx", "tx", hash.Hex(), "err", err)
	}
}

// removeTxFromPool drops hash from the manager's own bookkeeping and,
// if removeFromDB is set, from the backing store too. A transaction
// evicted by NewBlock is already gone from the store (the store's own
// NewBlock call removed it), so that path passes removeFromDB=false —
// mirroring manager.rs's remove_tx_from_pool(tx, remove_from_db).
func (m *Manager) removeTxFromPool(hash common.Hash, removeFromDB bool) {
	if _, ok := m.currentTxs[hash]; !ok {
		return
	}
	delete(m.currentTxs, hash)
	if key, ok := m.timeoutKeys[hash]; ok {
		m.timeouts.Remove(key)
		delete(m.timeoutKeys, hash)
	}
	if removeFromDB {
		m.store.Remove(hash)
	}
	poolSize.Set(float64(len(m.currentTxs)))
}

// NewBlock evicts every pooled transaction sharing one of
// spentKeyImages, whether because it was itself included in the new
// block or because it now conflicts with one that was (spec §4.4's
// new-block integration). The store has already removed them from
// persistent pool state; this only updates the manager's in-memory
// tracking and timers.
func (m *Manager) NewBlock(spentKeyImages []common.Hash) {
	m.call(func() {
		removed := m.store.NewBlock(spentKeyImages)
		for _, hash := range removed {
			m.removeTxFromPool(hash, false)
		}
	})
}

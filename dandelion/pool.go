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
	"math/rand"
	"sync"
	"time"

	"github.com/cuprated-go/cuprated/blockchain/types"
	"github.com/cuprated-go/cuprated/common"
	"github.com/cuprated-go/cuprated/internal/delayqueue"
)

type request struct{ fn func() }

// Pool is the Dandelion++ router actor: a single goroutine owning
// stem_origins and the embargo delay queue, serializing every routing
// decision the same way storage/database.Writer and
// consensuscontext.Context serialize theirs.
type Pool struct {
	cfg     Config
	store   Store
	router  Router
	promote chan<- common.Hash

	stemOrigins map[common.Hash]map[PeerID]bool
	embargo     *delayqueue.Queue
	embargoKeys map[common.Hash]delayqueue.Key

	reqCh  chan request
	closed chan struct{}
	wg     sync.WaitGroup
}

// Start builds the Dandelion pool, fluffing any transaction left
// sitting in the stem pool from a previous run (its embargo timer did
// not survive the restart), then spawns the actor goroutine. promote
// is the send side of the channel the tx-pool manager reads to learn
// when a tx it still tracks as private has been promoted.
func Start(store Store, router Router, promote chan<- common.Hash, cfg Config) *Pool {
	cfg.sanitize()
	p := &Pool{
		cfg:         cfg,
		store:       store,
		router:      router,
		promote:     promote,
		stemOrigins: make(map[common.Hash]map[PeerID]bool),
		embargo:     delayqueue.New(),
		embargoKeys: make(map[common.Hash]delayqueue.Key),
		reqCh:       make(chan request, cfg.RequestQueueLen),
		closed:      make(chan struct{}),
	}
	for _, hash := range store.IDsInStemPool() {
		if err := p.promoteAndFluffTx(hash); err != nil {
			logger.Warn("failed to fluff leftover stem tx at start-up", "tx", hash.Hex(), "err", err)
		}
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Stop halts the actor goroutine and the embargo queue.
func (p *Pool) Stop() {
	close(p.closed)
	p.wg.Wait()
	p.embargo.Stop()
}

func (p *Pool) call(fn func()) {
	done := make(chan struct{})
	p.reqCh <- request{fn: func() { fn(); close(done) }}
	<-done
}

func (p *Pool) run() {
	defer p.wg.Done()
	for {
		select {
		case req := <-p.reqCh:
			req.fn()
		case hash := <-p.embargo.C:
			delete(p.embargoKeys, hash)
			if err := p.promoteAndFluffTx(hash); err != nil {
				logger.Warn("embargo fluff failed", "tx", hash.Hex(), "err", err)
			}
		case <-p.closed:
			return
		}
	}
}

// HandleIncomingTx routes tx according to state, per pool.rs's
// handle_incoming_tx dispatch.
func (p *Pool) HandleIncomingTx(tx types.Transaction, state RouteState) (err error) {
	p.call(func() {
		private, ok := p.store.Contains(tx.Hash)
		if ok && !private {
			logger.Debug("incoming tx already fluffed, ignoring", "tx", tx.Hash.Hex())
			return
		}

		switch state.Kind {
		case RouteStem:
			if origins, seen := p.stemOrigins[tx.Hash]; seen && origins[state.From] {
				logger.Debug("received stem tx twice from same peer, fluffing", "tx", tx.Hash.Hex())
				err = p.promoteAndFluffTx(tx.Hash)
				return
			}
			err = p.storeTxAndStem(tx, &state.From)
		case RouteFluff:
			err = p.storeAndFluffTx(tx)
		case RouteLocal:
			if ok {
				logger.Debug("received a local tx already in the pool, skipping", "tx", tx.Hash.Hex())
				return
			}
			err = p.storeTxAndStem(tx, nil)
		}
	})
	return
}

// storeTxAndStem stores tx in the stem pool, arms its embargo timer,
// and forwards it along the stem.
func (p *Pool) storeTxAndStem(tx types.Transaction, from *PeerID) error {
	if _, err := p.store.Store(tx, true); err != nil {
		return err
	}

	embargo := time.Duration(rand.ExpFloat64() * p.cfg.EmbargoMeanSeconds * float64(time.Second))
	key := p.embargo.Insert(tx.Hash, embargo)
	p.embargoKeys[tx.Hash] = key

	return p.stemTx(tx.Hash, tx.Blob, from)
}

// stemTx records the stem origin, if any, and routes the blob.
func (p *Pool) stemTx(hash common.Hash, blob []byte, from *PeerID) error {
	state := RouteState{Kind: RouteLocal}
	if from != nil {
		origins, ok := p.stemOrigins[hash]
		if !ok {
			origins = make(map[PeerID]bool)
			p.stemOrigins[hash] = origins
		}
		origins[*from] = true
		state = RouteState{Kind: RouteStem, From: *from}
	}
	return p.route(hash, blob, state)
}

// storeAndFluffTx stores tx as public and fluffs it. Fluffing happens
// before the stem bookkeeping for tx is torn down, mirroring
// pool.rs's store_and_fluff_tx: fluffing first avoids a timing
// side-channel that would otherwise let an observer distinguish a tx
// that was already stemming through this node from one that just
// arrived, by how quickly its stem-origin entry disappears.
func (p *Pool) storeAndFluffTx(tx types.Transaction) error {
	if err := p.route(tx.Hash, tx.Blob, RouteState{Kind: RouteFluff}); err != nil {
		return err
	}
	delete(p.stemOrigins, tx.Hash)
	_, err := p.store.Store(tx, false)
	return err
}

// promoteTx marks hash public in the backing store and tells the
// tx-pool manager to start tracking its re-relay timer. Its embargo
// timer, if still armed, is deliberately left in place: a later fire
// just calls promoteAndFluffTx again, which is a no-op once the store
// already reports the tx as public.
func (p *Pool) promoteTx(hash common.Hash) {
	delete(p.stemOrigins, hash)
	if !p.store.Promote(hash) {
		return
	}
	select {
	case p.promote <- hash:
	case <-p.closed:
	}
}

// promoteAndFluffTx promotes hash to the public pool and fluffs it. A
// hash that is missing, or already public, is a no-op.
func (p *Pool) promoteAndFluffTx(hash common.Hash) error {
	private, ok := p.store.Contains(hash)
	if !ok || !private {
		return nil
	}
	blob, ok := p.store.Blob(hash)
	if !ok {
		return nil
	}
	p.promoteTx(hash)
	return p.route(hash, blob, RouteState{Kind: RouteFluff})
}

// route forwards blob through the router, retrying once on failure
// (spec §4.4's failure semantics): a still-failing stem route leaves
// the tx in the stem pool until its embargo timer fires, and a
// still-failing fluff route is logged and dropped. A successful route
// that ends up broadcasting a still-private tx promotes it.
func (p *Pool) route(hash common.Hash, blob []byte, state RouteState) error {
	result, err := p.router.Route(hash, blob, state)
	if err != nil {
		result, err = p.router.Route(hash, blob, state)
	}
	if err != nil {
		logger.Warn("router failed twice, leaving tx pending", "tx", hash.Hex(), "err", err)
		return nil
	}
	if result == StateFluff {
		p.promoteTx(hash)
	}
	return nil
}

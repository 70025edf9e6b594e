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

package main

import (
	"github.com/cuprated-go/cuprated/blockchain/chainmanager"
	"github.com/cuprated-go/cuprated/blockchain/types"
	"github.com/cuprated-go/cuprated/common"
	"github.com/cuprated-go/cuprated/consensus/verifier"
	"github.com/cuprated-go/cuprated/consensuscontext"
	"github.com/cuprated-go/cuprated/dandelion"
	"github.com/cuprated-go/cuprated/storage/database"
	"github.com/cuprated-go/cuprated/txpool"
)

// Node owns every engine this binary wires together: the storage
// engine (spec §4.1), the context cache (§4.2), the verifier and chain
// manager (§4.3), the tx-pool manager and Dandelion pool (§4.4). It
// has no network surface of its own; HandleBlock/HandleBlockBatch/
// HandleTx are the seams a peer layer or test driver calls into.
type Node struct {
	engine    *database.Engine
	ctx       *consensuscontext.Context
	verifier  *verifier.Verifier
	chain     *chainmanager.Manager
	dandelion *dandelion.Pool
	txpool    *txpool.Manager

	promoteCh chan common.Hash
}

// New opens the storage backend and starts every engine against it, in
// the dependency order spec §4 lays the system out in: storage, then
// the context cache that reads it, then the verifier and chain manager
// that drive both, then the tx-pool and Dandelion pool that round out
// the system's write path for pending transactions.
func New(cfg config) (*Node, error) {
	db, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}
	cfg.Storage.DBType = dbTypeFor(cfg.DBType)

	engine, err := database.Open(db, cfg.Storage)
	if err != nil {
		return nil, err
	}

	ctxAdapter := database.NewContextAdapter(engine)
	ctx, err := consensuscontext.Start(ctxAdapter, placeholderPowHasher{}, cfg.Context)
	if err != nil {
		engine.Close()
		return nil, err
	}

	v := verifier.New(ctx, ringMemberAdapter{r: engine.Reader}, engine.Reader, engine.Reader, cfg.Verifier)

	promoteCh := make(chan common.Hash, cfg.TxPool.RequestQueueLen)

	store := txpool.NewMemStore()
	dp := dandelion.Start(store, loggingRouter{}, promoteCh, cfg.Dandelion)
	tp := txpool.Start(store, dp, promoteCh, loggingDiffuser{}, cfg.TxPool)

	chain := chainmanager.Start(v, ctx, engine.Writer, engine.Reader, tp, cfg.ChainManager)

	return &Node{
		engine:    engine,
		ctx:       ctx,
		verifier:  v,
		chain:     chain,
		dandelion: dp,
		txpool:    tp,
		promoteCh: promoteCh,
	}, nil
}

// Close stops every engine in the reverse of their start order.
func (n *Node) Close() {
	n.chain.Stop()
	n.txpool.Stop()
	n.dandelion.Stop()
	n.ctx.Stop()
	n.engine.Close()
	close(n.promoteCh)
}

// HandleBlock runs a single incoming block through the chain manager
// (spec §4.3's single-block entry point).
func (n *Node) HandleBlock(block types.Block, preparedTxs map[common.Hash]verifier.PreparedTx, peer chainmanager.PeerHandle) error {
	return n.chain.HandleIncomingBlock(block, preparedTxs, peer)
}

// HandleBlockBatch runs a run of downloaded blocks through the chain
// manager's batch-prepare path (spec §4.3).
func (n *Node) HandleBlockBatch(reqs []verifier.MainChainRequest, peer chainmanager.PeerHandle) error {
	return n.chain.HandleIncomingBlockBatch(reqs, peer)
}

// HandleTx submits an incoming transaction to the tx-pool manager,
// which itself forwards it to the Dandelion pool for routing (spec
// §4.4).
func (n *Node) HandleTx(tx types.Transaction, weight, fee uint64, state dandelion.RouteState) error {
	return n.txpool.HandleIncomingTx(tx, weight, fee, state)
}

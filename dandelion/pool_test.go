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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuprated-go/cuprated/blockchain/types"
	"github.com/cuprated-go/cuprated/common"
)

type fakeStore struct {
	mu  sync.Mutex
	txs map[common.Hash]*poolTxStub
}

type poolTxStub struct {
	tx      types.Transaction
	private bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{txs: make(map[common.Hash]*poolTxStub)}
}

func (s *fakeStore) Store(tx types.Transaction, private bool) (*common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs[tx.Hash] = &poolTxStub{tx: tx, private: private}
	return nil, nil
}

func (s *fakeStore) Contains(hash common.Hash) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pt, ok := s.txs[hash]
	if !ok {
		return false, false
	}
	return pt.private, true
}

func (s *fakeStore) Blob(hash common.Hash) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pt, ok := s.txs[hash]
	if !ok {
		return nil, false
	}
	return pt.tx.Blob, true
}

func (s *fakeStore) Promote(hash common.Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pt, ok := s.txs[hash]
	if !ok {
		return false
	}
	pt.private = false
	return true
}

func (s *fakeStore) IDsInStemPool() []common.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []common.Hash
	for h, pt := range s.txs {
		if pt.private {
			out = append(out, h)
		}
	}
	return out
}

type recordedRoute struct {
	hash  common.Hash
	state RouteState
}

type fakeRouter struct {
	mu      sync.Mutex
	result  State
	err     error
	calls   []recordedRoute
	failN   int // fail the first failN calls, then succeed
}

func (r *fakeRouter) Route(hash common.Hash, blob []byte, state RouteState) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedRoute{hash: hash, state: state})
	if r.failN > 0 {
		r.failN--
		return 0, assertErr{}
	}
	return r.result, r.err
}

type assertErr struct{}

func (assertErr) Error() string { return "router failed" }

func testTx(seed byte) types.Transaction {
	return types.Transaction{
		Hash: common.BytesToHash([]byte{seed}),
		Blob: []byte{seed, seed},
	}
}

func testConfig() Config {
	return Config{FluffProbability: 0.2, EmbargoMeanSeconds: 0.01, MaxStemLength: 2, RequestQueueLen: 8}
}

func TestHandleIncomingTxLocalStems(t *testing.T) {
	store := newFakeStore()
	router := &fakeRouter{result: StateStem}
	promote := make(chan common.Hash, 4)

	p := Start(store, router, promote, testConfig())
	defer p.Stop()

	tx := testTx(1)
	require.NoError(t, p.HandleIncomingTx(tx, RouteState{Kind: RouteLocal}))

	private, ok := store.Contains(tx.Hash)
	require.True(t, ok)
	assert.True(t, private)
}

func TestHandleIncomingTxFluffRouteResultPromotes(t *testing.T) {
	store := newFakeStore()
	router := &fakeRouter{result: StateFluff}
	promote := make(chan common.Hash, 4)

	p := Start(store, router, promote, testConfig())
	defer p.Stop()

	tx := testTx(2)
	require.NoError(t, p.HandleIncomingTx(tx, RouteState{Kind: RouteLocal}))

	select {
	case hash := <-promote:
		assert.Equal(t, tx.Hash, hash)
	case <-time.After(time.Second):
		t.Fatal("expected a promote notification")
	}

	private, ok := store.Contains(tx.Hash)
	require.True(t, ok)
	assert.False(t, private)
}

func TestHandleIncomingTxSamePeerRetransmitForcesFluff(t *testing.T) {
	store := newFakeStore()
	router := &fakeRouter{result: StateStem}
	promote := make(chan common.Hash, 4)

	p := Start(store, router, promote, testConfig())
	defer p.Stop()

	tx := testTx(3)
	peer := PeerID(7)
	require.NoError(t, p.HandleIncomingTx(tx, RouteState{Kind: RouteStem, From: peer}))
	require.NoError(t, p.HandleIncomingTx(tx, RouteState{Kind: RouteStem, From: peer}))

	select {
	case hash := <-promote:
		assert.Equal(t, tx.Hash, hash)
	case <-time.After(time.Second):
		t.Fatal("expected same-peer retransmit to force a promote")
	}
}

func TestHandleIncomingFluffStoresPublic(t *testing.T) {
	store := newFakeStore()
	router := &fakeRouter{result: StateFluff}
	promote := make(chan common.Hash, 4)

	p := Start(store, router, promote, testConfig())
	defer p.Stop()

	tx := testTx(4)
	require.NoError(t, p.HandleIncomingTx(tx, RouteState{Kind: RouteFluff}))

	private, ok := store.Contains(tx.Hash)
	require.True(t, ok)
	assert.False(t, private)
}

func TestRouteRetriesOnceThenGivesUp(t *testing.T) {
	store := newFakeStore()
	router := &fakeRouter{failN: 2, result: StateStem}
	promote := make(chan common.Hash, 4)

	p := Start(store, router, promote, testConfig())
	defer p.Stop()

	tx := testTx(5)
	require.NoError(t, p.HandleIncomingTx(tx, RouteState{Kind: RouteLocal}))

	router.mu.Lock()
	calls := len(router.calls)
	router.mu.Unlock()
	assert.Equal(t, 2, calls)

	private, ok := store.Contains(tx.Hash)
	require.True(t, ok)
	assert.True(t, private)
}

func TestEmbargoFiresAndFluffs(t *testing.T) {
	store := newFakeStore()
	router := &fakeRouter{result: StateStem}
	promote := make(chan common.Hash, 4)

	p := Start(store, router, promote, testConfig())
	defer p.Stop()

	tx := testTx(6)
	require.NoError(t, p.HandleIncomingTx(tx, RouteState{Kind: RouteLocal}))

	select {
	case hash := <-promote:
		assert.Equal(t, tx.Hash, hash)
	case <-time.After(2 * time.Second):
		t.Fatal("expected embargo timer to fire and promote the tx")
	}
}

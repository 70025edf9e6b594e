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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuprated-go/cuprated/blockchain/types"
	"github.com/cuprated-go/cuprated/common"
	"github.com/cuprated-go/cuprated/dandelion"
)

type fakeDiffuser struct {
	mu   sync.Mutex
	seen [][]byte
}

func (d *fakeDiffuser) Diffuse(blob []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = append(d.seen, blob)
	return nil
}

func (d *fakeDiffuser) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

type stubRouter struct{ result dandelion.State }

func (r stubRouter) Route(hash common.Hash, blob []byte, state dandelion.RouteState) (dandelion.State, error) {
	return r.result, nil
}

func testTx(seed byte) types.Transaction {
	return types.Transaction{
		Hash:   common.BytesToHash([]byte{seed}),
		Blob:   []byte{seed, seed},
		Inputs: []types.TxIn{{KeyImage: common.BytesToHash([]byte{seed, 0xff})}},
	}
}

func TestHandleIncomingTxTracksAndRejectsDoubleSpend(t *testing.T) {
	store := NewMemStore()
	promote := make(chan common.Hash, 4)
	dp := dandelion.Start(store, stubRouter{result: dandelion.StateFluff}, promote, dandelion.Config{})

	cfg := Config{MaximumAge: time.Hour, RerelayBase: time.Minute}
	m := Start(store, dp, promote, &fakeDiffuser{}, cfg)
	defer m.Stop()
	defer dp.Stop()

	tx := testTx(1)
	require.NoError(t, m.HandleIncomingTx(tx, 100, 1, dandelion.RouteState{Kind: dandelion.RouteFluff}))

	m.call(func() {
		_, ok := m.currentTxs[tx.Hash]
		assert.True(t, ok)
	})

	conflicting := testTx(1)
	conflicting.Hash = common.BytesToHash([]byte{2})
	require.NoError(t, m.HandleIncomingTx(conflicting, 100, 1, dandelion.RouteState{Kind: dandelion.RouteFluff}))

	m.call(func() {
		_, ok := m.currentTxs[conflicting.Hash]
		assert.False(t, ok, "double-spend tx must not be tracked")
	})
}

func TestCalculateNextTimeoutCapsAtMaxAge(t *testing.T) {
	maxAge := 10 * time.Second
	base := 4 * time.Second
	receivedAt := time.Now().Add(-9 * time.Second).Unix()

	next := calculateNextTimeout(receivedAt, maxAge, base)
	assert.LessOrEqual(t, next, time.Second+time.Millisecond*500)
}

func TestNewBlockEvictsSpentKeyImages(t *testing.T) {
	store := NewMemStore()
	promote := make(chan common.Hash, 4)
	dp := dandelion.Start(store, stubRouter{result: dandelion.StateFluff}, promote, dandelion.Config{})

	cfg := Config{MaximumAge: time.Hour, RerelayBase: time.Minute}
	m := Start(store, dp, promote, &fakeDiffuser{}, cfg)
	defer m.Stop()
	defer dp.Stop()

	tx := testTx(3)
	require.NoError(t, m.HandleIncomingTx(tx, 100, 1, dandelion.RouteState{Kind: dandelion.RouteFluff}))

	m.NewBlock([]common.Hash{tx.Inputs[0].KeyImage})

	m.call(func() {
		_, ok := m.currentTxs[tx.Hash]
		assert.False(t, ok, "tx spent by the new block must be evicted")
	})
	_, ok := store.Contains(tx.Hash)
	assert.False(t, ok, "store should already have removed the tx via NewBlock")
}

func TestPromoteTxStartsPublicBookkeeping(t *testing.T) {
	store := NewMemStore()
	promote := make(chan common.Hash, 4)
	dp := dandelion.Start(store, stubRouter{result: dandelion.StateStem}, promote, dandelion.Config{})

	cfg := Config{MaximumAge: time.Hour, RerelayBase: time.Minute}
	m := Start(store, dp, promote, &fakeDiffuser{}, cfg)
	defer m.Stop()
	defer dp.Stop()

	tx := testTx(4)
	require.NoError(t, m.HandleIncomingTx(tx, 100, 1, dandelion.RouteState{Kind: dandelion.RouteLocal}))

	m.call(func() {
		info, ok := m.currentTxs[tx.Hash]
		require.True(t, ok)
		assert.True(t, info.Private)
	})

	m.call(func() { m.promoteTx(tx.Hash) })

	m.call(func() {
		info, ok := m.currentTxs[tx.Hash]
		require.True(t, ok)
		assert.False(t, info.Private)
	})
}

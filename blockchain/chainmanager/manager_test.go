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

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuprated-go/cuprated/blockchain/types"
	"github.com/cuprated-go/cuprated/common"
	"github.com/cuprated-go/cuprated/consensus/errkind"
	"github.com/cuprated-go/cuprated/consensus/verifier"
	"github.com/cuprated-go/cuprated/consensuscontext"
)

// fakeStore backs both the Writer and Reader collaborators in-memory,
// just faithfully enough to exercise the manager's commit/pop/reorg
// bookkeeping without a real storage engine.
type fakeStore struct {
	mu          sync.Mutex
	main        []*types.VerifiedBlock
	alt         map[common.ChainID][]*types.AltBlockRecord
	popped      map[common.ChainID][]*types.VerifiedBlock
	nextChainID common.ChainID
}

func newFakeStore(genesis *types.VerifiedBlock) *fakeStore {
	return &fakeStore{
		main:        []*types.VerifiedBlock{genesis},
		alt:         make(map[common.ChainID][]*types.AltBlockRecord),
		popped:      make(map[common.ChainID][]*types.VerifiedBlock),
		nextChainID: 1,
	}
}

func (s *fakeStore) WriteBlock(vb *types.VerifiedBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.main = append(s.main, vb)
	return nil
}

func (s *fakeStore) PopBlocks(n uint64) (common.ChainID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextChainID
	s.nextChainID++
	cut := len(s.main) - int(n)
	s.popped[id] = append([]*types.VerifiedBlock{}, s.main[cut:]...)
	s.main = s.main[:cut]
	return id, nil
}

func (s *fakeStore) WriteAltBlock(rec *types.AltBlockRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alt[rec.ChainID] = append(s.alt[rec.ChainID], rec)
	return nil
}

func (s *fakeStore) FlushAltBlocks() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alt = make(map[common.ChainID][]*types.AltBlockRecord)
	return nil
}

func (s *fakeStore) ReverseReorg(chainID common.ChainID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.main = append(s.main, s.popped[chainID]...)
	delete(s.popped, chainID)
	return nil
}

func (s *fakeStore) AllocateAltChainID() (common.ChainID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextChainID
	s.nextChainID++
	return id, nil
}

func (s *fakeStore) ChainHeight() (uint64, common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	top := s.main[len(s.main)-1]
	return uint64(len(s.main)), top.BlockHash, nil
}

func (s *fakeStore) HeightForHash(hash common.Hash) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, vb := range s.main {
		if vb.BlockHash == hash {
			return vb.Height, nil
		}
	}
	return 0, errkind.New(errkind.KindMissingData, fakeErr("unknown hash"))
}

func (s *fakeStore) ReadBlockByHeight(height uint64) (*types.VerifiedBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(height) >= len(s.main) {
		return nil, errkind.New(errkind.KindMissingData, fakeErr("height out of range"))
	}
	return s.main[height], nil
}

func (s *fakeStore) AltBlocksInChain(chainID common.ChainID) ([]*types.AltBlockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alt[chainID], nil
}

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

// fakeCtx is a minimal ContextCache stand-in: just enough rolling
// state (current height/top hash/cumulative difficulty) for the
// manager's main-chain-extension test and reorg decision to behave
// like the real actor would.
type fakeCtx struct {
	mu   sync.Mutex
	snap consensuscontext.Snapshot
}

func (c *fakeCtx) Snapshot() *consensuscontext.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := c.snap
	return &snap
}

func (c *fakeCtx) Update(data consensuscontext.NewBlockData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.ChainHeight = data.Height + 1
	c.snap.TopHash = data.BlockHash
	c.snap.CumulativeDifficulty = data.CumulativeDifficulty
}

func (c *fakeCtx) PopBlocks(n uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.ChainHeight -= n
	return nil
}

func (c *fakeCtx) LongTermWeightFor(blockWeight uint64) uint64 { return blockWeight }

func (c *fakeCtx) AddAltChainCache(common.ChainID, uint64) consensuscontext.AltToken {
	return consensuscontext.AltToken{}
}

func (c *fakeCtx) NextDifficultyForAlt(consensuscontext.AltToken) (uint64, uint64, bool) {
	return 1, 0, true
}

func (c *fakeCtx) UpdateAlt(consensuscontext.AltToken, consensuscontext.NewBlockData) {}

func (c *fakeCtx) ClearAltCache() {}

// fakeVerifier returns whatever response/error each test wires up,
// standing in for the real consensus/verifier.Verifier.
type fakeVerifier struct {
	mainResp  *verifier.MainChainResponse
	mainErr   error
	batchResp *verifier.MainChainBatchPreppedResponse
	batchErr  error
	preppedFn func(verifier.MainChainPreppedRequest) (*verifier.MainChainResponse, error)
	altResp   *verifier.AltChainResponse
	altErr    error
}

func (v *fakeVerifier) VerifyMainChain(verifier.MainChainRequest) (*verifier.MainChainResponse, error) {
	return v.mainResp, v.mainErr
}

func (v *fakeVerifier) VerifyMainChainBatchPrepare(verifier.MainChainBatchPrepareRequest) (*verifier.MainChainBatchPreppedResponse, error) {
	return v.batchResp, v.batchErr
}

func (v *fakeVerifier) VerifyMainChainPrepped(req verifier.MainChainPreppedRequest) (*verifier.MainChainResponse, error) {
	return v.preppedFn(req)
}

func (v *fakeVerifier) VerifyAltChain(verifier.AltChainRequest) (*verifier.AltChainResponse, error) {
	return v.altResp, v.altErr
}

type fakeTxPool struct {
	mu    sync.Mutex
	calls [][]common.Hash
}

func (t *fakeTxPool) NewBlock(kis []common.Hash) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, kis)
}

type fakePeer struct {
	mu        sync.Mutex
	bans      []BanDuration
	cancelled int
}

func (p *fakePeer) Ban(d BanDuration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bans = append(p.bans, d)
}

func (p *fakePeer) CancelDownloader() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled++
}

func hashOf(b byte) common.Hash {
	var h common.Hash
	h[31] = b
	return h
}

func genesisBlock() *types.VerifiedBlock {
	return &types.VerifiedBlock{
		Block:                types.Block{HeaderBlob: []byte{0}},
		BlockHash:            hashOf(0),
		Height:               0,
		CumulativeDifficulty: 10,
	}
}

func newHarness(t *testing.T) (*Manager, *fakeStore, *fakeCtx, *fakeVerifier, *fakeTxPool) {
	t.Helper()
	genesis := genesisBlock()
	store := newFakeStore(genesis)
	ctx := &fakeCtx{snap: consensuscontext.Snapshot{ChainHeight: 1, TopHash: genesis.BlockHash, CumulativeDifficulty: genesis.CumulativeDifficulty}}
	v := &fakeVerifier{}
	tp := &fakeTxPool{}
	m := Start(v, ctx, store, store, tp, Config{})
	t.Cleanup(m.Stop)
	return m, store, ctx, v, tp
}

func TestHandleIncomingBlock_ExtendsMainChain(t *testing.T) {
	m, store, ctx, v, tp := newHarness(t)

	block1 := &types.VerifiedBlock{
		Block:                types.Block{Header: types.BlockHeader{PrevHash: hashOf(0)}, HeaderBlob: []byte{1}},
		BlockHash:            hashOf(1),
		Height:               1,
		Weight:               100,
		CumulativeDifficulty: 20,
	}
	v.mainResp = &verifier.MainChainResponse{Block: block1}

	err := m.HandleIncomingBlock(block1.Block, nil, nil)
	require.NoError(t, err)

	store.mu.Lock()
	assert.Len(t, store.main, 2)
	assert.Equal(t, hashOf(1), store.main[1].BlockHash)
	store.mu.Unlock()

	assert.Equal(t, hashOf(1), ctx.Snapshot().TopHash)
	assert.Equal(t, StateIdle, m.State())
	assert.Len(t, tp.calls, 1)
}

func TestHandleIncomingBlock_ConsensusViolationBansPeer(t *testing.T) {
	m, _, _, v, _ := newHarness(t)
	peer := &fakePeer{}

	v.mainErr = errkind.New(errkind.KindConsensusViolation, fakeErr("bad miner tx"))

	block1 := types.Block{Header: types.BlockHeader{PrevHash: hashOf(0)}, HeaderBlob: []byte{1}}
	err := m.HandleIncomingBlock(block1, nil, peer)

	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.KindConsensusViolation))
	require.Len(t, peer.bans, 1)
	assert.Equal(t, BanLong, peer.bans[0])
}

func TestHandleIncomingBlock_AltBlockTrackedWithoutReorg(t *testing.T) {
	m, store, ctx, v, _ := newHarness(t)

	// Main chain moves ahead to height 2 first.
	block1 := &types.VerifiedBlock{
		Block:                types.Block{Header: types.BlockHeader{PrevHash: hashOf(0)}, HeaderBlob: []byte{1}},
		BlockHash:            hashOf(1),
		Height:               1,
		CumulativeDifficulty: 25,
	}
	v.mainResp = &verifier.MainChainResponse{Block: block1}
	require.NoError(t, m.HandleIncomingBlock(block1.Block, nil, nil))

	// An alt block forking off genesis arrives with lower cumulative
	// difficulty than the main tip: it should be tracked, not adopted.
	altBlock := types.Block{Header: types.BlockHeader{PrevHash: hashOf(0)}, HeaderBlob: []byte{2}}
	altRec := &types.AltBlockRecord{
		VerifiedBlock: types.VerifiedBlock{
			Block: altBlock, BlockHash: hashOf(2), Height: 1, CumulativeDifficulty: 15,
		},
		ChainID:    1, // the first id AllocateAltChainID hands out in this run
		ForkHeight: 0,
	}
	v.altResp = &verifier.AltChainResponse{Block: altRec}

	err := m.HandleIncomingBlock(altBlock, nil, nil)
	require.NoError(t, err)

	store.mu.Lock()
	assert.Len(t, store.main, 2) // unchanged: no reorg
	assert.Len(t, store.alt, 1)
	store.mu.Unlock()

	assert.Len(t, m.branches, 1)
	assert.Equal(t, hashOf(1), ctx.Snapshot().TopHash) // main cache untouched
}

func TestHandleIncomingBlock_AltBlockTriggersReorg(t *testing.T) {
	m, store, ctx, v, _ := newHarness(t)

	block1 := &types.VerifiedBlock{
		Block:                types.Block{Header: types.BlockHeader{PrevHash: hashOf(0)}, HeaderBlob: []byte{1}},
		BlockHash:            hashOf(1),
		Height:               1,
		CumulativeDifficulty: 15,
	}
	v.mainResp = &verifier.MainChainResponse{Block: block1}
	require.NoError(t, m.HandleIncomingBlock(block1.Block, nil, nil))

	altBlock := types.Block{Header: types.BlockHeader{PrevHash: hashOf(0)}, HeaderBlob: []byte{2}}
	altRec := &types.AltBlockRecord{
		VerifiedBlock: types.VerifiedBlock{
			Block: altBlock, BlockHash: hashOf(2), Height: 1, CumulativeDifficulty: 50,
		},
		ChainID:    1, // the first id AllocateAltChainID hands out in this run
		ForkHeight: 0,
	}
	v.altResp = &verifier.AltChainResponse{Block: altRec}

	// The verifier's record carries chain id 1, the id the manager
	// allocates for this branch, so the fake's WriteAltBlock files it
	// where AltBlocksInChain(1) finds it for the reorg replay.
	err := m.HandleIncomingBlock(altBlock, nil, nil)
	require.NoError(t, err)

	store.mu.Lock()
	require.Len(t, store.main, 2)
	assert.Equal(t, hashOf(2), store.main[1].BlockHash) // alt block won
	store.mu.Unlock()

	assert.Equal(t, hashOf(2), ctx.Snapshot().TopHash)
	assert.Equal(t, uint64(50), ctx.Snapshot().CumulativeDifficulty)
	// The dethroned original main block is now tracked as an alt branch.
	assert.Len(t, m.branches, 1)
}

func TestHandleIncomingBlockBatch_RejectsNonExtendingFirstBlock(t *testing.T) {
	m, _, _, _, _ := newHarness(t)
	peer := &fakePeer{}

	stray := types.Block{Header: types.BlockHeader{PrevHash: hashOf(99)}, HeaderBlob: []byte{9}}
	err := m.HandleIncomingBlockBatch([]verifier.MainChainRequest{{Block: stray}}, peer)
	require.Error(t, err)
	assert.Len(t, peer.bans, 0) // not a consensus violation, just an unordered batch
}

func TestHandleIncomingBlockBatch_CommitsInOrder(t *testing.T) {
	m, store, _, v, _ := newHarness(t)

	block1 := &types.VerifiedBlock{Block: types.Block{Header: types.BlockHeader{PrevHash: hashOf(0)}, HeaderBlob: []byte{1}}, BlockHash: hashOf(1), Height: 1, CumulativeDifficulty: 20}
	block2 := &types.VerifiedBlock{Block: types.Block{Header: types.BlockHeader{PrevHash: hashOf(1)}, HeaderBlob: []byte{2}}, BlockHash: hashOf(2), Height: 2, CumulativeDifficulty: 30}

	prepped := []verifier.MainChainPreppedRequest{
		{Block: verifier.PreparedBlock{Block: block1.Block}},
		{Block: verifier.PreparedBlock{Block: block2.Block}},
	}
	v.batchResp = &verifier.MainChainBatchPreppedResponse{Blocks: prepped}
	seq := []*types.VerifiedBlock{block1, block2}
	i := 0
	v.preppedFn = func(verifier.MainChainPreppedRequest) (*verifier.MainChainResponse, error) {
		vb := seq[i]
		i++
		return &verifier.MainChainResponse{Block: vb}, nil
	}

	reqs := []verifier.MainChainRequest{{Block: block1.Block}, {Block: block2.Block}}
	err := m.HandleIncomingBlockBatch(reqs, nil)
	require.NoError(t, err)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.main, 3)
	assert.Equal(t, hashOf(1), store.main[1].BlockHash)
	assert.Equal(t, hashOf(2), store.main[2].BlockHash)
}

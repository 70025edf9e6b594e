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

	"github.com/cuprated-go/cuprated/blockchain/types"
	"github.com/cuprated-go/cuprated/common"
	"github.com/cuprated-go/cuprated/consensus/verifier"
	"github.com/cuprated-go/cuprated/consensuscontext"
)

// State names a node in the chain manager's state machine (spec §4.3):
// Idle -> AttachingMain -> Idle; Idle -> HandlingAlt -> {Idle, Reorging};
// Reorging -> {Idle, RevertingReorg} -> Idle.
type State int

const (
	StateIdle State = iota
	StateAttachingMain
	StateHandlingAlt
	StateReorging
	StateRevertingReorg
)

func (s State) String() string {
	switch s {
	case StateAttachingMain:
		return "attaching_main"
	case StateHandlingAlt:
		return "handling_alt"
	case StateReorging:
		return "reorging"
	case StateRevertingReorg:
		return "reverting_reorg"
	default:
		return "idle"
	}
}

// altBranch is the manager's in-memory bookkeeping for one tracked alt
// branch: enough to keep feeding it VerifyAltChain requests without
// re-deriving its fork point and accumulated difficulty from storage
// on every block.
type altBranch struct {
	chainID              common.ChainID
	forkHeight           uint64
	tipHeight            uint64
	tipHash              common.Hash
	cumulativeDifficulty uint64
	token                consensuscontext.AltToken
}

type request struct{ fn func() }

// Manager is the Chain Manager actor of spec §4.3: the single
// goroutine that drives the verifier against incoming blocks, commits
// the results through the storage writer and context cache, tracks
// alt branches, and runs the cumulative-difficulty reorg rule under
// the exclusive reorg lock. Grounded on
// original_source/binaries/cuprated/src/blockchain/manager/handler.rs.
type Manager struct {
	cfg      Config
	verifier Verifier
	ctx      ContextCache
	writer   Writer
	reader   Reader
	txpool   TxPool

	reqCh  chan request
	closed chan struct{}
	wg     sync.WaitGroup

	state     State
	reorgLock sync.RWMutex

	branches map[common.ChainID]*altBranch
	tipIndex map[common.Hash]common.ChainID
}

// Start builds the Manager and spawns its actor goroutine.
func Start(v Verifier, ctx ContextCache, w Writer, r Reader, tp TxPool, cfg Config) *Manager {
	cfg.sanitize()
	m := &Manager{
		cfg:      cfg,
		verifier: v,
		ctx:      ctx,
		writer:   w,
		reader:   r,
		txpool:   tp,
		reqCh:    make(chan request, cfg.RequestQueueLen),
		closed:   make(chan struct{}),
		branches: make(map[common.ChainID]*altBranch),
		tipIndex: make(map[common.Hash]common.ChainID),
	}
	m.wg.Add(1)
	go m.run()
	return m
}

// Stop halts the actor goroutine.
func (m *Manager) Stop() {
	close(m.closed)
	m.wg.Wait()
}

func (m *Manager) run() {
	defer m.wg.Done()
	for {
		select {
		case req := <-m.reqCh:
			req.fn()
		case <-m.closed:
			return
		}
	}
}

func (m *Manager) call(fn func()) {
	done := make(chan struct{})
	m.reqCh <- request{fn: func() { fn(); close(done) }}
	<-done
}

// State reports the manager's current state-machine node, for tests
// and diagnostics.
func (m *Manager) State() (s State) {
	m.call(func() { s = m.state })
	return
}

// StableView acquires the reorg lock for reading and returns the
// matching unlock function. External readers that need a main-chain
// view that cannot shift underneath them while they work (spec §4.3)
// hold this for the duration of their read; it only ever blocks
// against an in-flight reorg, never against ordinary block handling.
func (m *Manager) StableView() func() {
	m.reorgLock.RLock()
	return m.reorgLock.RUnlock
}

func ban(peer PeerHandle, d BanDuration) {
	if peer != nil {
		peer.Ban(d)
	}
}

func cancelDownload(peer PeerHandle) {
	if peer != nil {
		peer.CancelDownloader()
	}
}

// banForErr bans peer according to err's kind: a consensus violation
// earns a long ban, anything else (missing data, storage, cancelled)
// does not (spec §7).
func banForErr(peer PeerHandle, err error) {
	if consensusFault(err) {
		ban(peer, BanLong)
	}
}

// HandleIncomingBlock is the single-block entry point of spec §4.3: it
// dispatches to the main-chain or alt-chain path depending on whether
// block extends the cached top, and returns the commit/track error, if
// any, after banning peer on a consensus violation.
func (m *Manager) HandleIncomingBlock(block types.Block, preparedTxs map[common.Hash]verifier.PreparedTx, peer PeerHandle) (err error) {
	m.call(func() {
		snap := m.ctx.Snapshot()
		if block.Header.PrevHash == snap.TopHash {
			err = m.attachMain(block, preparedTxs)
		} else {
			err = m.handleAltBlock(block, preparedTxs, peer)
		}
		if err != nil {
			banForErr(peer, err)
		}
	})
	return
}

// attachMain verifies and commits a single block extending the
// current main-chain top.
func (m *Manager) attachMain(block types.Block, preparedTxs map[common.Hash]verifier.PreparedTx) error {
	m.state = StateAttachingMain
	defer func() { m.state = StateIdle }()

	resp, err := m.verifier.VerifyMainChain(verifier.MainChainRequest{Block: block, PreparedTxs: preparedTxs})
	if err != nil {
		return err
	}
	return m.commitMainBlock(resp.Block)
}

// commitMainBlock fills in the long-term weight the verifier leaves
// unset, writes vb through the storage writer, advances the context
// cache, and tells the tx-pool which key images were just spent (spec
// §4.3's main-chain commit sequence, §4.4's new-block integration).
func (m *Manager) commitMainBlock(vb *types.VerifiedBlock) error {
	vb.LongTermWeight = m.ctx.LongTermWeightFor(vb.Weight)
	if err := m.writer.WriteBlock(vb); err != nil {
		return err
	}
	m.ctx.Update(newBlockData(vb))
	m.txpool.NewBlock(spentKeyImages(vb))
	return nil
}

// HandleIncomingBlockBatch drives the verifier's batch-prepare path
// (spec §4.3) over a run of blocks downloaded ahead of their
// contextual checks: reqs[0] must extend the cached top, or the batch
// is rejected outright before any work runs. Blocks are then verified
// and committed one at a time in order; a failure bans peer, cancels
// its in-flight downloader, and stops processing the remainder of the
// batch, leaving every block committed before the failure in place.
func (m *Manager) HandleIncomingBlockBatch(reqs []verifier.MainChainRequest, peer PeerHandle) (err error) {
	m.call(func() {
		if len(reqs) == 0 {
			return
		}
		snap := m.ctx.Snapshot()
		if reqs[0].Block.Header.PrevHash != snap.TopHash {
			err = errBatchDoesNotExtendTop{}
			banForErr(peer, err)
			return
		}

		m.state = StateAttachingMain
		defer func() { m.state = StateIdle }()

		prepped, perr := m.verifier.VerifyMainChainBatchPrepare(verifier.MainChainBatchPrepareRequest{Blocks: reqs})
		if perr != nil {
			err = perr
			banForErr(peer, err)
			cancelDownload(peer)
			return
		}

		for _, p := range prepped.Blocks {
			resp, verr := m.verifier.VerifyMainChainPrepped(p)
			if verr != nil {
				err = verr
				banForErr(peer, err)
				cancelDownload(peer)
				return
			}
			if cerr := m.commitMainBlock(resp.Block); cerr != nil {
				err = cerr
				cancelDownload(peer)
				return
			}
		}
	})
	return
}

// handleAltBlock tracks block against the alt branch its prev-hash
// identifies (creating one if this is the first block seen forking
// off that point), then runs the cumulative-difficulty reorg check
// once it has been accepted onto the branch.
func (m *Manager) handleAltBlock(block types.Block, preparedTxs map[common.Hash]verifier.PreparedTx, peer PeerHandle) error {
	m.state = StateHandlingAlt
	defer func() {
		if m.state == StateHandlingAlt {
			m.state = StateIdle
		}
	}()

	branch, err := m.resolveBranch(block.Header.PrevHash)
	if err != nil {
		return err
	}

	req := verifier.AltChainRequest{
		Block:                     block,
		PreparedTxs:               preparedTxs,
		Height:                    branch.tipHeight + 1,
		ForkHeight:                branch.forkHeight,
		ChainID:                   branch.chainID,
		Difficulty:                0,
		PriorCumulativeDifficulty: branch.cumulativeDifficulty,
	}
	req.Difficulty, _, _ = m.ctx.NextDifficultyForAlt(branch.token)

	resp, err := m.verifier.VerifyAltChain(req)
	if err != nil {
		return err
	}

	rec := resp.Block
	rec.LongTermWeight = m.ctx.LongTermWeightFor(rec.Weight)
	if err := m.writer.WriteAltBlock(rec); err != nil {
		return err
	}
	m.ctx.UpdateAlt(branch.token, newBlockData(&rec.VerifiedBlock))

	delete(m.tipIndex, branch.tipHash)
	branch.tipHeight = rec.Height
	branch.tipHash = rec.BlockHash
	branch.cumulativeDifficulty = rec.CumulativeDifficulty
	m.tipIndex[branch.tipHash] = branch.chainID

	m.evictIfOverCapacity()

	mainSnap := m.ctx.Snapshot()
	if branch.cumulativeDifficulty > mainSnap.CumulativeDifficulty {
		m.state = StateReorging
		if err := m.reorg(branch); err != nil {
			return err
		}
	}
	m.state = StateIdle
	return nil
}

// resolveBranch finds the tracked alt branch whose current tip is
// prevHash, or starts tracking a new one if prevHash instead names a
// historical main-chain block (the fork point of a brand new branch).
// A prevHash that is neither is unknown data the caller cannot act on
// yet (e.g. the parent itself hasn't arrived).
func (m *Manager) resolveBranch(prevHash common.Hash) (*altBranch, error) {
	if chainID, ok := m.tipIndex[prevHash]; ok {
		return m.branches[chainID], nil
	}

	forkHeight, err := m.reader.HeightForHash(prevHash)
	if err != nil {
		return nil, err
	}

	chainID, err := m.writer.AllocateAltChainID()
	if err != nil {
		return nil, err
	}
	token := m.ctx.AddAltChainCache(chainID, forkHeight)

	// The alt chain's own sub-cache starts with an empty difficulty
	// window (consensuscontext.AddAltChainCache), so it knows nothing of
	// the blocks up to the fork point. Seed the branch's starting
	// cumulative difficulty from the fork block's own recorded state
	// instead, which already accounts for every block through itself.
	// Only cumulative difficulty is seeded this way: each alt block's
	// own difficulty still comes from NextDifficultyForAlt, which
	// returns 1 until the sub-cache holds at least two blocks.
	parent, err := m.reader.ReadBlockByHeight(forkHeight)
	if err != nil {
		return nil, err
	}

	branch := &altBranch{
		chainID:              chainID,
		forkHeight:           forkHeight,
		tipHeight:            forkHeight,
		tipHash:              prevHash,
		cumulativeDifficulty: parent.CumulativeDifficulty,
		token:                token,
	}
	m.branches[chainID] = branch
	m.tipIndex[prevHash] = chainID
	return branch, nil
}

// evictIfOverCapacity drops every tracked alt branch once their count
// exceeds cfg.MaxAltChains. storage/database.Writer only exposes an
// all-or-nothing FlushAltBlocks (no per-branch flush), so capacity
// enforcement here is coarse: it clears every branch at once rather
// than evicting just the least-caught-up one.
func (m *Manager) evictIfOverCapacity() {
	if len(m.branches) <= m.cfg.MaxAltChains {
		return
	}
	logger.Warn("alt chain cache over capacity, flushing all tracked branches", "count", len(m.branches), "max", m.cfg.MaxAltChains)
	if err := m.writer.FlushAltBlocks(); err != nil {
		logger.Error("failed to flush alt blocks over capacity", "err", err)
		return
	}
	m.ctx.ClearAltCache()
	m.branches = make(map[common.ChainID]*altBranch)
	m.tipIndex = make(map[common.Hash]common.ChainID)
}

// reorg swaps branch onto the main chain: it pops the current main
// tip back to branch's fork height, replays branch's stashed alt
// blocks onto main in order, and re-registers the dethroned old main
// blocks as a tracked alt branch of their own (so the losing side can
// still be extended and potentially win back later). Held under the
// exclusive reorg lock so a StableView reader never observes storage
// mid-swap.
func (m *Manager) reorg(branch *altBranch) (err error) {
	m.reorgLock.Lock()
	defer m.reorgLock.Unlock()

	mainHeight, _, err := m.reader.ChainHeight()
	if err != nil {
		return err
	}
	// Heights 0..forkHeight are the shared ancestry and stay in place;
	// only forkHeight+1..mainHeight-1 need to move to the alt tables.
	popN := mainHeight - branch.forkHeight - 1

	saved := make([]*types.VerifiedBlock, 0, popN)
	for h := branch.forkHeight + 1; h < mainHeight; h++ {
		vb, rerr := m.reader.ReadBlockByHeight(h)
		if rerr != nil {
			return rerr
		}
		saved = append(saved, vb)
	}

	oldMainChainID, err := m.writer.PopBlocks(popN)
	if err != nil {
		return err
	}
	if perr := m.ctx.PopBlocks(popN); perr != nil {
		logger.Crit("context cache pop diverged from storage during reorg", "err", perr)
	}

	altRecs, err := m.reader.AltBlocksInChain(branch.chainID)
	if err != nil {
		m.state = StateRevertingReorg
		m.revertReorg(oldMainChainID, saved, 0)
		return err
	}

	written := 0
	for _, rec := range altRecs {
		vb := rec.VerifiedBlock
		if werr := m.writer.WriteBlock(&vb); werr != nil {
			m.state = StateRevertingReorg
			m.revertReorg(oldMainChainID, saved, written)
			return werr
		}
		m.ctx.Update(newBlockData(&vb))
		m.txpool.NewBlock(spentKeyImages(&vb))
		written++
	}

	delete(m.branches, branch.chainID)
	delete(m.tipIndex, branch.tipHash)

	if len(saved) > 0 {
		last := saved[len(saved)-1]
		oldToken := m.ctx.AddAltChainCache(oldMainChainID, branch.forkHeight)
		m.branches[oldMainChainID] = &altBranch{
			chainID:              oldMainChainID,
			forkHeight:           branch.forkHeight,
			tipHeight:            last.Height,
			tipHash:              last.BlockHash,
			cumulativeDifficulty: last.CumulativeDifficulty,
			token:                oldToken,
		}
		m.tipIndex[last.BlockHash] = oldMainChainID
	}
	return nil
}

// revertReorg undoes a reorg attempt that failed partway through
// replaying the winning branch's blocks: it pops off whatever partial
// writes already landed, restores the original main-chain bytes via
// ReverseReorg, and replays the saved pre-reorg blocks' Update calls
// to rebuild identical context-cache rolling state. Any error here
// means storage and the context cache can no longer be trusted to
// agree, which is always fatal.
func (m *Manager) revertReorg(oldMainChainID common.ChainID, saved []*types.VerifiedBlock, written int) {
	defer func() { m.state = StateIdle }()

	if written > 0 {
		if _, err := m.writer.PopBlocks(uint64(written)); err != nil {
			logger.Crit("failed to pop partial reorg writes during revert", "err", err)
			return
		}
		if err := m.ctx.PopBlocks(uint64(written)); err != nil {
			logger.Crit("failed to pop partial reorg context state during revert", "err", err)
			return
		}
	}

	if err := m.writer.ReverseReorg(oldMainChainID); err != nil {
		logger.Crit("failed to reverse reorg in storage", "err", err)
		return
	}

	for _, vb := range saved {
		m.ctx.Update(newBlockData(vb))
	}
}

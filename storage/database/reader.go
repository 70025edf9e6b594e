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

import (
	"sort"
	"sync"
	"time"

	"github.com/cuprated-go/cuprated/blockchain/types"
	"github.com/cuprated-go/cuprated/common"
	"github.com/cuprated-go/cuprated/consensus/errkind"
)

// readRequest is the read-pool's dispatch envelope. Unlike writeRequest
// (writer.go), many goroutines receive off the same channel, giving the
// "bounded thread-pool" of spec §4.1's Read service for free: Go's
// channel semantics already load-balance across whichever worker is
// idle.
type readRequest struct {
	fn func()
}

// Reader is the read-pool handle of spec §4.1: a bounded set of worker
// goroutines, each executing requests against the shared store. Reads
// never block on the writer; the only shared mutable state they touch
// (store.mu) is a plain RWMutex.
type Reader struct {
	s   *store
	cfg Config

	reqCh  chan readRequest
	closed chan struct{}
	wg     sync.WaitGroup
}

// StartReader wraps db in the Monero table set and spawns the read
// pool. Most callers should instead use Open, which gives the reader
// and writer a single shared store; StartReader exists for read-only
// tooling that never writes.
func StartReader(db Database, cfg Config) (*Reader, error) {
	cfg.sanitize()
	s := newStore(db)
	if err := s.open(); err != nil {
		return nil, errkind.Wrap(errkind.KindStorageFault, err, "open storage engine")
	}
	return startReaderOnStore(s, cfg), nil
}

func startReaderOnStore(s *store, cfg Config) *Reader {
	r := &Reader{
		s:      s,
		cfg:    cfg,
		reqCh:  make(chan readRequest, cfg.ReadQueueLen),
		closed: make(chan struct{}),
	}
	n := cfg.readerThreadCount()
	for i := 0; i < n; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

func (r *Reader) worker() {
	defer r.wg.Done()
	for {
		select {
		case req := <-r.reqCh:
			req.fn()
		case <-r.closed:
			return
		}
	}
}

// Stop signals every worker to exit once it finishes its current
// request, per spec §9's "async cancellation" requirement.
func (r *Reader) Stop() {
	close(r.closed)
	r.wg.Wait()
}

func (r *Reader) call(fn func()) {
	start := time.Now()
	done := make(chan struct{})
	r.reqCh <- readRequest{fn: func() {
		fn()
		close(done)
	}}
	queued := len(r.reqCh)
	<-done
	observeRead(queued, start)
}

type errKeyNotFound struct{ what string }

func (e errKeyNotFound) Error() string { return "database: " + e.what + " not found" }

// ChainHeight returns the current main-chain height and top block hash.
func (r *Reader) ChainHeight() (height uint64, topHash common.Hash, err error) {
	r.call(func() {
		r.s.mu.RLock()
		height, topHash = r.s.chainHeight, r.s.topHash
		r.s.mu.RUnlock()
	})
	return
}

// ReadBlockByHeight reconstructs the full verified block stored at
// height, including every non-miner transaction.
func (r *Reader) ReadBlockByHeight(height uint64) (vb *types.VerifiedBlock, err error) {
	r.call(func() {
		vb, err = r.s.readBlock(height)
	})
	return
}

// ReadBlockByHash resolves hash to a height via the block-height table,
// then reads the block the same way ReadBlockByHeight does.
func (r *Reader) ReadBlockByHash(hash common.Hash) (vb *types.VerifiedBlock, err error) {
	r.call(func() {
		raw, gerr := r.s.blockHeight.Get(hash.Bytes())
		if gerr != nil {
			err = wrapNotFound(gerr, "block hash")
			return
		}
		vb, err = r.s.readBlock(decodeU64(raw))
	})
	return
}

// HeightForHash resolves a main-chain block hash to its height, for
// the chain manager's alt-chain fork-point lookup (a block whose
// prev-hash matches a historical main-chain block, not the current
// top, marks the start of a new alt branch).
func (r *Reader) HeightForHash(hash common.Hash) (height uint64, err error) {
	r.call(func() {
		raw, gerr := r.s.blockHeight.Get(hash.Bytes())
		if gerr != nil {
			err = wrapNotFound(gerr, "block hash")
			return
		}
		height = decodeU64(raw)
	})
	return
}

// ReadHeaderByHeight returns the raw, opaque header blob stored at
// height; parsing it is a wire-codec concern outside this package.
func (r *Reader) ReadHeaderByHeight(height uint64) (blob []byte, err error) {
	r.call(func() {
		blob, err = r.s.blockHeaderBlob.Get(encodeU64(height))
		err = wrapNotFound(err, "block header")
	})
	return
}

// ReadHeaderByHash resolves hash to a height and returns its header
// blob.
func (r *Reader) ReadHeaderByHash(hash common.Hash) (blob []byte, err error) {
	r.call(func() {
		raw, gerr := r.s.blockHeight.Get(hash.Bytes())
		if gerr != nil {
			err = wrapNotFound(gerr, "block hash")
			return
		}
		blob, err = r.s.blockHeaderBlob.Get(raw)
		err = wrapNotFound(err, "block header")
	})
	return
}

// ReadHashByHeight returns the block hash stored at height.
func (r *Reader) ReadHashByHeight(height uint64) (hash common.Hash, err error) {
	r.call(func() {
		raw, gerr := r.s.blockInfo.Get(encodeU64(height))
		if gerr != nil {
			err = wrapNotFound(gerr, "block height")
			return
		}
		hash = decodeBlockInfo(raw).BlockHash
	})
	return
}

func wrapNotFound(err error, what string) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return errkind.New(errkind.KindMissingData, errKeyNotFound{what})
	}
	return errkind.Wrap(errkind.KindStorageFault, err, "read "+what)
}

// readBlock assembles a VerifiedBlock from the main-chain tables at
// height, mirroring toVerifiedBlock's tx reconstruction (writer.go) but
// sourced from the live tables instead of a stashed alt-block record.
func (s *store) readBlock(height uint64) (*types.VerifiedBlock, error) {
	biRaw, err := s.blockInfo.Get(encodeU64(height))
	if err != nil {
		return nil, wrapNotFound(err, "block height")
	}
	bi := decodeBlockInfo(biRaw)
	headerBlob, err := s.blockHeaderBlob.Get(encodeU64(height))
	if err != nil {
		return nil, wrapNotFound(err, "block header")
	}
	hashesRaw, err := s.blockTxHashes.Get(encodeU64(height))
	if err != nil {
		return nil, wrapNotFound(err, "block tx hashes")
	}
	hashes := decodeHashList(hashesRaw)
	if len(hashes) == 0 {
		return nil, errkind.New(errkind.KindStorageFault, errMissingMinerTx{})
	}

	txs := make([]types.Transaction, 0, len(hashes))
	for _, h := range hashes {
		tx, err := s.readTx(h)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}

	minerTx := txs[0]
	rest := txs[1:]
	restHashes := hashes[1:]

	block := types.Block{
		Header: types.BlockHeader{
			Timestamp:    bi.Timestamp,
			MajorVersion: bi.MajorVersion,
			MinorVersion: bi.MinorVersion,
		},
		MinerTx:    minerTx,
		TxHashes:   restHashes,
		HeaderBlob: headerBlob,
	}
	return &types.VerifiedBlock{
		Block: block, Txs: rest, BlockHash: bi.BlockHash, PowHash: bi.PowHash, Height: height,
		Weight: bi.Weight, LongTermWeight: bi.LongTermWeight,
		CumulativeDifficulty: bi.CumulativeDifficulty, GeneratedCoins: bi.GeneratedCoins,
	}, nil
}

// readTx rebuilds a single transaction from the tx-id-indexed tables.
func (s *store) readTx(hash common.Hash) (types.Transaction, error) {
	idRaw, err := s.txID.Get(hash.Bytes())
	if err != nil {
		return types.Transaction{}, wrapNotFound(err, "tx hash")
	}
	txID := decodeU64(idRaw)

	blob, err := s.txBlob.Get(encodeU64(txID))
	if err != nil {
		return types.Transaction{}, wrapNotFound(err, "tx blob")
	}
	unlockRaw, err := s.txUnlockTime.Get(encodeU64(txID))
	if err != nil {
		return types.Transaction{}, wrapNotFound(err, "tx unlock time")
	}
	versionRaw, err := s.txVersion.Get(encodeU64(txID))
	if err != nil {
		return types.Transaction{}, wrapNotFound(err, "tx version")
	}
	kiRaw, err := s.txKeyImages.Get(encodeU64(txID))
	if err != nil {
		return types.Transaction{}, wrapNotFound(err, "tx key images")
	}
	kis := decodeHashList(kiRaw)
	idsRaw, err := s.txOutputs.Get(encodeU64(txID))
	if err != nil {
		return types.Transaction{}, wrapNotFound(err, "tx outputs")
	}
	ids := decodeOutputIDList(idsRaw)

	outs := make([]types.TxOut, len(ids))
	for i, id := range ids {
		if id.isRingCT() {
			raw, err := s.rctOutputs.Get(encodeU64(id.AmountIndex))
			if err != nil {
				return types.Transaction{}, wrapNotFound(err, "rct output")
			}
			rec := decodeOutputRecord(raw)
			outs[i] = types.TxOut{Key: rec.Key, Commitment: rec.Commitment}
		} else {
			raw, err := s.outputs.Get(outputKey(id.Amount, id.AmountIndex))
			if err != nil {
				return types.Transaction{}, wrapNotFound(err, "output")
			}
			rec := decodeOutputRecord(raw)
			outs[i] = types.TxOut{Key: rec.Key, Amount: rec.Amount}
		}
	}

	ins := make([]types.TxIn, len(kis))
	for i, ki := range kis {
		ins[i] = types.TxIn{KeyImage: ki}
	}

	return types.Transaction{
		Hash: hash, Version: types.TxVersion(versionRaw[0]), UnlockTime: decodeU64(unlockRaw),
		Inputs: ins, Outputs: outs, Blob: blob,
	}, nil
}

// BlockHeadersInRange returns the raw header blobs for [lo, hi], per
// spec §4.1: a gap anywhere in the range is an error rather than a
// partial result.
func (r *Reader) BlockHeadersInRange(lo, hi uint64) (blobs [][]byte, err error) {
	r.call(func() {
		if hi < lo {
			err = errkind.New(errkind.KindMissingData, errEmptyRange{})
			return
		}
		out := make([][]byte, 0, hi-lo+1)
		for h := lo; h <= hi; h++ {
			blob, gerr := r.s.blockHeaderBlob.Get(encodeU64(h))
			if gerr != nil {
				err = wrapNotFound(gerr, "block header")
				return
			}
			out = append(out, blob)
		}
		blobs = out
	})
	return
}

type errEmptyRange struct{}

func (errEmptyRange) Error() string { return "database: empty height range" }

// OutputInfo is the on-chain output data the verifier needs to check a
// ring member: its one-time key, its amount commitment (RingCT) or
// cleartext amount (pre-RingCT), and the height it was mined at for
// unlock-time/age checks.
type OutputInfo struct {
	Key        common.Hash
	Commitment common.Hash
	Amount     uint64
	Height     uint64
	TxID       uint64
	LocalIndex uint16
	RingCT     bool
}

// Outputs resolves req, a map of amount to the set of amount_index
// values requested against that amount (amount 0 addressing RingCT
// outputs by global index, per spec §3's output-id convention), into
// the matching on-chain output records. A missing id is a hard error.
func (r *Reader) Outputs(req map[uint64][]uint64) (res map[uint64]map[uint64]OutputInfo, err error) {
	r.call(func() {
		out := make(map[uint64]map[uint64]OutputInfo, len(req))
		for amount, indices := range req {
			inner := make(map[uint64]OutputInfo, len(indices))
			for _, idx := range indices {
				id := outputID{Amount: amount, AmountIndex: idx}
				var raw []byte
				var gerr error
				if id.isRingCT() {
					raw, gerr = r.s.rctOutputs.Get(encodeU64(idx))
				} else {
					raw, gerr = r.s.outputs.Get(outputKey(amount, idx))
				}
				if gerr != nil {
					err = wrapNotFound(gerr, "output")
					return
				}
				rec := decodeOutputRecord(raw)
				inner[idx] = OutputInfo{
					Key: rec.Key, Commitment: rec.Commitment, Amount: rec.Amount,
					Height: rec.Height, TxID: rec.TxID, LocalIndex: rec.LocalIndex, RingCT: id.isRingCT(),
				}
			}
			out[amount] = inner
		}
		res = out
	})
	return
}

// NumOutputsWithAmount returns, for each requested amount, the number
// of pre-RingCT outputs stored under it (0 if the amount was never
// used). Amount 0 is the RingCT sentinel and returns the total count
// of RingCT outputs produced so far instead.
func (r *Reader) NumOutputsWithAmount(amounts []uint64) (counts map[uint64]uint64, err error) {
	r.call(func() {
		out := make(map[uint64]uint64, len(amounts))
		for _, amount := range amounts {
			if amount == 0 {
				r.s.mu.RLock()
				out[amount] = r.s.nextRctIndex
				r.s.mu.RUnlock()
				continue
			}
			out[amount] = r.s.amountCount(amount)
		}
		counts = out
	})
	return
}

// KeyImagesSpent reports whether any key image in kis has already been
// recorded as spent.
func (r *Reader) KeyImagesSpent(kis []common.Hash) (spent bool, err error) {
	r.call(func() {
		for _, ki := range kis {
			has, gerr := r.s.keyImages.Has(ki.Bytes())
			if gerr != nil {
				err = errkind.Wrap(errkind.KindStorageFault, gerr, "check key image")
				return
			}
			if has {
				spent = true
				return
			}
		}
	})
	return
}

// GeneratedCoinsAt returns the cumulative subsidy emitted through
// height.
func (r *Reader) GeneratedCoinsAt(height uint64) (coins uint64, err error) {
	r.call(func() {
		raw, gerr := r.s.blockInfo.Get(encodeU64(height))
		if gerr != nil {
			err = wrapNotFound(gerr, "block height")
			return
		}
		coins = decodeBlockInfo(raw).GeneratedCoins
	})
	return
}

// CompactChainHistory returns block hashes at offsets 0,1,2,…,10 back
// from the tip, then doubling offsets thereafter, stopping at or before
// genesis; genesis is appended if the doubling walk didn't already
// reach it, per spec §4.1's Compact chain history algorithm.
func (r *Reader) CompactChainHistory() (hashes []common.Hash, err error) {
	r.call(func() {
		r.s.mu.RLock()
		height := r.s.chainHeight
		r.s.mu.RUnlock()
		if height == 0 {
			err = errkind.New(errkind.KindMissingData, errEmptyChain{})
			return
		}
		top := height - 1

		var out []common.Hash
		step := uint64(1)
		count := 0
		reachedGenesis := false
		for offset := uint64(0); ; {
			var h uint64
			if offset >= top {
				h = 0
			} else {
				h = top - offset
			}
			raw, gerr := r.s.blockInfo.Get(encodeU64(h))
			if gerr != nil {
				err = wrapNotFound(gerr, "block height")
				return
			}
			out = append(out, decodeBlockInfo(raw).BlockHash)
			if h == 0 {
				reachedGenesis = true
				break
			}
			count++
			if count >= 11 {
				step *= 2
			}
			offset += step
		}
		if !reachedGenesis {
			raw, gerr := r.s.blockInfo.Get(encodeU64(0))
			if gerr != nil {
				err = wrapNotFound(gerr, "block height")
				return
			}
			out = append(out, decodeBlockInfo(raw).BlockHash)
		}
		hashes = out
	})
	return
}

type errEmptyChain struct{}

func (errEmptyChain) Error() string { return "database: chain has no blocks" }

// FilterUnknownHashes returns the subset of hashes not present in the
// block-height table.
func (r *Reader) FilterUnknownHashes(hashes []common.Hash) (unknown []common.Hash, err error) {
	r.call(func() {
		var out []common.Hash
		for _, h := range hashes {
			has, gerr := r.s.blockHeight.Has(h.Bytes())
			if gerr != nil {
				err = errkind.Wrap(errkind.KindStorageFault, gerr, "check block hash")
				return
			}
			if !has {
				out = append(out, h)
			}
		}
		unknown = out
	})
	return
}

// FindFirstUnknownResult is FindFirstUnknown's result: Index is the
// position of the first hash not known locally, and NextHeight is the
// local height immediately after the last known hash. Found is false
// when every hash in the input is known.
type FindFirstUnknownResult struct {
	Index      int
	NextHeight uint64
	Found      bool
}

// FindFirstUnknown binary-searches hashes (assumed to be in
// chronological, ascending-height order) for the first entry this node
// doesn't have, per spec §4.1.
func (r *Reader) FindFirstUnknown(hashes []common.Hash) (res FindFirstUnknownResult, err error) {
	r.call(func() {
		n := len(hashes)
		known := make([]bool, n)
		for i, h := range hashes {
			has, gerr := r.s.blockHeight.Has(h.Bytes())
			if gerr != nil {
				err = errkind.Wrap(errkind.KindStorageFault, gerr, "check block hash")
				return
			}
			known[i] = has
		}
		// known is assumed monotonic: true* then false*; sort.Search finds
		// the boundary directly without re-touching storage.
		idx := sort.Search(n, func(i int) bool { return !known[i] })
		if idx == n {
			res = FindFirstUnknownResult{Found: false}
			return
		}
		var nextHeight uint64
		if idx > 0 {
			raw, gerr := r.s.blockHeight.Get(hashes[idx-1].Bytes())
			if gerr != nil {
				err = wrapNotFound(gerr, "block hash")
				return
			}
			nextHeight = decodeU64(raw) + 1
		}
		res = FindFirstUnknownResult{Index: idx, NextHeight: nextHeight, Found: true}
	})
	return
}

// AltBlocksInChain reconstructs every alt block stashed under chainID,
// in ascending height order, for the chain manager's reorg replay (spec
// §4.3's "request AltBlocksInChain(chain_id)"). Mirrors the
// stashed-record reconstruction writer.go's reverseReorg already does,
// tagging each result with its chain id and fork height instead of
// replaying it through the write path.
func (r *Reader) AltBlocksInChain(chainID common.ChainID) (recs []*types.AltBlockRecord, err error) {
	r.call(func() {
		meta, gerr := r.s.getAltChainMeta(chainID)
		if gerr != nil {
			err = wrapNotFound(gerr, "alt chain id")
			return
		}
		out := make([]*types.AltBlockRecord, 0, meta.TopHeight-meta.ForkHeight+1)
		for h := meta.ForkHeight; h <= meta.TopHeight; h++ {
			key := chainHeightKey(chainID, h)
			biRaw, gerr := r.s.altBlockInfo.Get(key)
			if gerr != nil {
				err = wrapNotFound(gerr, "alt block info")
				return
			}
			headerBlob, gerr := r.s.altHeaderBlob.Get(key)
			if gerr != nil {
				err = wrapNotFound(gerr, "alt header blob")
				return
			}
			txBlobsRaw, gerr := r.s.altTxBlobs.Get(key)
			if gerr != nil {
				err = wrapNotFound(gerr, "alt tx blobs")
				return
			}
			bi := decodeBlockInfo(biRaw)
			txRecs := decodeAltTxBlobs(txBlobsRaw)
			vb, cerr := toVerifiedBlock(bi, headerBlob, h, txRecs)
			if cerr != nil {
				err = errkind.Wrap(errkind.KindStorageFault, cerr, "reconstruct alt block")
				return
			}
			out = append(out, &types.AltBlockRecord{VerifiedBlock: *vb, ChainID: chainID, ForkHeight: meta.ForkHeight})
		}
		recs = out
	})
	return
}

// TxOutputIndices returns the per-output amount_index values a
// transaction's outputs were assigned, in output order.
func (r *Reader) TxOutputIndices(hash common.Hash) (indices []uint64, err error) {
	r.call(func() {
		idRaw, gerr := r.s.txID.Get(hash.Bytes())
		if gerr != nil {
			err = wrapNotFound(gerr, "tx hash")
			return
		}
		idsRaw, gerr := r.s.txOutputs.Get(idRaw)
		if gerr != nil {
			err = wrapNotFound(gerr, "tx outputs")
			return
		}
		ids := decodeOutputIDList(idsRaw)
		out := make([]uint64, len(ids))
		for i, id := range ids {
			out[i] = id.AmountIndex
		}
		indices = out
	})
	return
}

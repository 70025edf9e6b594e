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
	"sync"
	"time"

	"github.com/cuprated-go/cuprated/blockchain/types"
	"github.com/cuprated-go/cuprated/common"
	"github.com/cuprated-go/cuprated/consensus/errkind"
)

// writeRequest is the single envelope the writer actor's bounded
// channel carries, the same closure-dispatch shape
// consensuscontext.Context uses for its actor (task.go's request),
// generalized here to the write-side operations of spec §4.1.
type writeRequest struct {
	fn func()
}

// Writer is the single-writer actor of spec §4.1: a bounded channel
// serializes every request onto one goroutine, and each request maps
// to exactly one write transaction committed before responding.
type Writer struct {
	s   *store
	cfg Config

	reqCh  chan writeRequest
	closed chan struct{}
	wg     sync.WaitGroup
}

// StartWriter wraps db in the Monero table set and spawns the writer
// actor goroutine. Most callers should instead use Open, which gives
// the reader and writer a single shared store; StartWriter exists for
// write-only tooling (e.g. a bulk importer) that never reads back
// through the Reader handle.
func StartWriter(db Database, cfg Config) (*Writer, error) {
	cfg.sanitize()
	s := newStore(db)
	if err := s.open(); err != nil {
		return nil, errkind.Wrap(errkind.KindStorageFault, err, "open storage engine")
	}
	return startWriterOnStore(s, cfg), nil
}

func startWriterOnStore(s *store, cfg Config) *Writer {
	w := &Writer{
		s:      s,
		cfg:    cfg,
		reqCh:  make(chan writeRequest, cfg.WriteQueueLen),
		closed: make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *Writer) run() {
	defer w.wg.Done()
	for {
		select {
		case req := <-w.reqCh:
			req.fn()
		case <-w.closed:
			for {
				select {
				case req := <-w.reqCh:
					req.fn()
				default:
					return
				}
			}
		}
	}
}

// Stop signals the writer to exit after its queue drains, per spec
// §9's "async cancellation" requirement.
func (w *Writer) Stop() {
	close(w.closed)
	w.wg.Wait()
}

func (w *Writer) call(fn func()) {
	start := time.Now()
	done := make(chan struct{})
	w.reqCh <- writeRequest{fn: func() {
		fn()
		close(done)
	}}
	queued := len(w.reqCh)
	<-done
	observeWrite(queued, start)
}

// fatal logs a storage-layer error through logger.Crit, which aborts
// the process. It runs inside the request, before the response channel
// is closed, so the caller never receives the error.
func (w *Writer) fatal(op string, err error) {
	logger.Crit("fatal storage error", "op", op, "err", err)
}

type errDuplicateKeyImage struct{ KeyImage common.Hash }

func (e errDuplicateKeyImage) Error() string {
	return "database: duplicate key image " + e.KeyImage.Hex()
}

type errGenesisProtectedPop struct{}

func (errGenesisProtectedPop) Error() string { return "database: cannot pop past genesis" }

type errUnknownAltChain struct{ ChainID common.ChainID }

func (e errUnknownAltChain) Error() string { return "database: unknown alt chain id" }

// WriteBlock appends vb at height = current chain height, per spec
// §4.1's Write block algorithm.
func (w *Writer) WriteBlock(vb *types.VerifiedBlock) (err error) {
	w.call(func() {
		err = w.writeBlock(vb)
		if err != nil && errkind.Is(err, errkind.KindStorageFault) {
			w.fatal("WriteBlock", err)
		}
	})
	return
}

func (w *Writer) writeBlock(vb *types.VerifiedBlock) error {
	s := w.s
	batch := s.db.NewBatch()
	height := vb.Height

	allTxs := make([]*types.Transaction, 0, len(vb.Txs)+1)
	allTxs = append(allTxs, &vb.Block.MinerTx)
	for i := range vb.Txs {
		allTxs = append(allTxs, &vb.Txs[i])
	}

	seen := make(map[common.Hash]bool)
	for _, tx := range allTxs {
		for _, in := range tx.Inputs {
			if seen[in.KeyImage] {
				return errkind.New(errkind.KindStorageFault, errDuplicateKeyImage{in.KeyImage})
			}
			has, err := s.keyImages.Has(in.KeyImage.Bytes())
			if err != nil {
				return errkind.Wrap(errkind.KindStorageFault, err, "check key image")
			}
			if has {
				return errkind.New(errkind.KindStorageFault, errDuplicateKeyImage{in.KeyImage})
			}
			seen[in.KeyImage] = true
		}
	}

	hashes := make([]common.Hash, 0, len(allTxs))
	for _, tx := range allTxs {
		if err := s.commitTx(batch, tx, height); err != nil {
			return errkind.Wrap(errkind.KindStorageFault, err, "commit transaction")
		}
		hashes = append(hashes, tx.Hash)
	}

	bi := blockInfo{
		BlockHash:            vb.BlockHash,
		PowHash:              vb.PowHash,
		Timestamp:            vb.Block.Header.Timestamp,
		MajorVersion:         vb.Block.Header.MajorVersion,
		MinorVersion:         vb.Block.Header.MinorVersion,
		Weight:               vb.Weight,
		LongTermWeight:       vb.LongTermWeight,
		CumulativeDifficulty: vb.CumulativeDifficulty,
		GeneratedCoins:       vb.GeneratedCoins,
	}
	batch.Put(s.blockInfo.key(encodeU64(height)), encodeBlockInfo(bi))
	batch.Put(s.blockHeaderBlob.key(encodeU64(height)), vb.Block.HeaderBlob)
	batch.Put(s.blockTxHashes.key(encodeU64(height)), encodeHashList(hashes))
	batch.Put(s.blockHeight.key(vb.BlockHash.Bytes()), encodeU64(height))

	s.mu.Lock()
	s.chainHeight = height + 1
	s.topHash = vb.BlockHash
	w.putCounterMeta(batch)
	s.mu.Unlock()

	if err := batch.Write(); err != nil {
		return errkind.Wrap(errkind.KindStorageFault, err, "commit write-block transaction")
	}
	return nil
}

// putCounterMeta persists the in-memory counter mirrors. Caller must
// hold s.mu.
func (w *Writer) putCounterMeta(batch Batch) {
	s := w.s
	batch.Put(s.meta.key([]byte(metaKeyChainHeight)), encodeU64(s.chainHeight))
	batch.Put(s.meta.key([]byte(metaKeyTopHash)), s.topHash.Bytes())
	batch.Put(s.meta.key([]byte(metaKeyNextTxID)), encodeU64(s.nextTxID))
	batch.Put(s.meta.key([]byte(metaKeyNextRctIndex)), encodeU64(s.nextRctIndex))
}

// commitTx assigns tx a fresh tx_id, persists its blob and indexes,
// and assigns per-output (amount, amount_index) ids: per-amount
// counters for pre-RingCT outputs, the single global counter (against
// amount 0) for RingCT outputs, per spec §4.1's Write block algorithm
// and §3's output-id convention.
func (s *store) commitTx(batch Batch, tx *types.Transaction, height uint64) error {
	s.mu.Lock()
	txID := s.nextTxID
	s.nextTxID++
	s.mu.Unlock()

	batch.Put(s.txBlob.key(encodeU64(txID)), tx.Blob)
	batch.Put(s.txID.key(tx.Hash.Bytes()), encodeU64(txID))
	batch.Put(s.txUnlockTime.key(encodeU64(txID)), encodeU64(tx.UnlockTime))
	batch.Put(s.txHeight.key(encodeU64(txID)), encodeU64(height))
	batch.Put(s.txVersion.key(encodeU64(txID)), []byte{byte(tx.Version)})

	kis := make([]common.Hash, len(tx.Inputs))
	for i, in := range tx.Inputs {
		kis[i] = in.KeyImage
		batch.Put(s.keyImages.key(in.KeyImage.Bytes()), []byte{1})
	}
	batch.Put(s.txKeyImages.key(encodeU64(txID)), encodeHashList(kis))

	ids := make([]outputID, len(tx.Outputs))
	isRingCT := tx.Version == types.TxVersionRingCT
	for i, out := range tx.Outputs {
		rec := outputRecord{TxID: txID, LocalIndex: uint16(i), Height: height, Key: out.Key}
		if isRingCT {
			s.mu.Lock()
			idx := s.nextRctIndex
			s.nextRctIndex++
			s.mu.Unlock()
			rec.Commitment = out.Commitment
			ids[i] = outputID{Amount: 0, AmountIndex: idx}
			batch.Put(s.rctOutputs.key(encodeU64(idx)), encodeOutputRecord(rec))
		} else {
			idx := s.amountCount(out.Amount)
			s.setAmountCount(batch, out.Amount, idx+1)
			rec.Amount = out.Amount
			ids[i] = outputID{Amount: out.Amount, AmountIndex: idx}
			batch.Put(s.outputs.key(outputKey(out.Amount, idx)), encodeOutputRecord(rec))
		}
	}
	batch.Put(s.txOutputs.key(encodeU64(txID)), encodeOutputIDList(ids))
	return nil
}

// AllocateAltChainID hands out a fresh, never-reused chain id for a
// brand new alt branch that did not arise from a pop (i.e. the chain
// manager just saw a block whose prev_hash names a historical
// main-chain block rather than the current top). PopBlocks allocates
// its own ids inline since it always needs one; this entry point
// exists for the chain manager's alt-chain tracking path, which needs
// an id before it has anything to write.
func (w *Writer) AllocateAltChainID() (chainID common.ChainID, err error) {
	w.call(func() {
		batch := w.s.db.NewBatch()
		chainID = w.s.newChainID(batch)
		if werr := batch.Write(); werr != nil {
			err = errkind.Wrap(errkind.KindStorageFault, werr, "commit chain id allocation")
			w.fatal("AllocateAltChainID", err)
		}
	})
	return
}

// PopBlocks allocates a fresh chain id and moves the top n heights
// into the alt-block tables tagged with it, per spec §4.1's Pop N
// algorithm. A pop of zero blocks, or one reaching past the genesis
// block, is a storage fault and so aborts the process through fatal.
func (w *Writer) PopBlocks(n uint64) (chainID common.ChainID, err error) {
	w.call(func() {
		chainID, err = w.popBlocks(n)
		if err != nil && errkind.Is(err, errkind.KindStorageFault) {
			w.fatal("PopBlocks", err)
		}
	})
	return
}

func (w *Writer) popBlocks(n uint64) (common.ChainID, error) {
	s := w.s
	s.mu.RLock()
	height := s.chainHeight
	s.mu.RUnlock()
	if n == 0 || n >= height {
		return 0, errkind.New(errkind.KindStorageFault, errGenesisProtectedPop{})
	}

	batch := s.db.NewBatch()
	chainID := s.newChainID(batch)
	newHeight := height - n

	for h := newHeight; h < height; h++ {
		if err := s.moveBlockToAlt(batch, h, chainID); err != nil {
			return 0, errkind.Wrap(errkind.KindStorageFault, err, "move block to alt storage")
		}
	}

	meta := altChainMeta{ForkHeight: newHeight, TopHeight: height - 1}
	batch.Put(s.altChainMetaTbl.key(encodeU64(uint64(chainID))), encodeAltChainMeta(meta))
	if err := s.appendAltChainID(batch, chainID); err != nil {
		return 0, errkind.Wrap(errkind.KindStorageFault, err, "record alt chain id")
	}

	s.mu.Lock()
	s.chainHeight = newHeight
	if newHeight > 0 {
		if raw, err := s.blockInfo.Get(encodeU64(newHeight - 1)); err == nil {
			s.topHash = decodeBlockInfo(raw).BlockHash
		}
	} else {
		s.topHash = common.Hash{}
	}
	w.putCounterMeta(batch)
	s.mu.Unlock()

	if err := batch.Write(); err != nil {
		return 0, errkind.Wrap(errkind.KindStorageFault, err, "commit pop-blocks transaction")
	}
	return chainID, nil
}

// moveBlockToAlt relocates height's block-info/header/tx data into the
// alt-block tables under chainID, decrementing the output counters and
// removing the key images exactly by what that block's transactions
// contributed.
func (s *store) moveBlockToAlt(batch Batch, height uint64, chainID common.ChainID) error {
	biRaw, err := s.blockInfo.Get(encodeU64(height))
	if err != nil {
		return err
	}
	bi := decodeBlockInfo(biRaw)
	headerBlob, err := s.blockHeaderBlob.Get(encodeU64(height))
	if err != nil {
		return err
	}
	hashesRaw, err := s.blockTxHashes.Get(encodeU64(height))
	if err != nil {
		return err
	}
	hashes := decodeHashList(hashesRaw)

	recs := make([]txBlobRecord, 0, len(hashes))
	for _, h := range hashes {
		rec, err := s.removeTx(batch, h)
		if err != nil {
			return err
		}
		recs = append(recs, rec)
	}

	batch.Put(s.altBlockInfo.key(chainHeightKey(chainID, height)), encodeBlockInfo(bi))
	batch.Put(s.altHeaderBlob.key(chainHeightKey(chainID, height)), headerBlob)
	batch.Put(s.altTxBlobs.key(chainHeightKey(chainID, height)), encodeAltTxBlobs(recs))

	batch.Delete(s.blockInfo.key(encodeU64(height)))
	batch.Delete(s.blockHeaderBlob.key(encodeU64(height)))
	batch.Delete(s.blockTxHashes.key(encodeU64(height)))
	batch.Delete(s.blockHeight.key(bi.BlockHash.Bytes()))
	return nil
}

// removeTx deletes a single transaction's rows, decrements whichever
// output counter it used (only legal when removing the most-recently
// assigned id, which always holds here since moveBlockToAlt only ever
// unwinds the top of the chain), removes its key images, and returns
// enough information for commitTx to recreate it byte-identically on
// replay.
func (s *store) removeTx(batch Batch, hash common.Hash) (txBlobRecord, error) {
	idRaw, err := s.txID.Get(hash.Bytes())
	if err != nil {
		return txBlobRecord{}, err
	}
	txID := decodeU64(idRaw)

	blob, err := s.txBlob.Get(encodeU64(txID))
	if err != nil {
		return txBlobRecord{}, err
	}
	unlockRaw, err := s.txUnlockTime.Get(encodeU64(txID))
	if err != nil {
		return txBlobRecord{}, err
	}
	kiRaw, err := s.txKeyImages.Get(encodeU64(txID))
	if err != nil {
		return txBlobRecord{}, err
	}
	kis := decodeHashList(kiRaw)
	idsRaw, err := s.txOutputs.Get(encodeU64(txID))
	if err != nil {
		return txBlobRecord{}, err
	}
	ids := decodeOutputIDList(idsRaw)

	outSpecs := make([]txOutputSpec, len(ids))
	for i, id := range ids {
		if id.isRingCT() {
			raw, err := s.rctOutputs.Get(encodeU64(id.AmountIndex))
			if err != nil {
				return txBlobRecord{}, err
			}
			rec := decodeOutputRecord(raw)
			outSpecs[i] = txOutputSpec{Key: rec.Key, Commitment: rec.Commitment, RingCT: true}
			batch.Delete(s.rctOutputs.key(encodeU64(id.AmountIndex)))
			s.mu.Lock()
			if id.AmountIndex == s.nextRctIndex-1 {
				s.nextRctIndex--
			}
			s.mu.Unlock()
		} else {
			raw, err := s.outputs.Get(outputKey(id.Amount, id.AmountIndex))
			if err != nil {
				return txBlobRecord{}, err
			}
			rec := decodeOutputRecord(raw)
			outSpecs[i] = txOutputSpec{Key: rec.Key, Amount: rec.Amount}
			batch.Delete(s.outputs.key(outputKey(id.Amount, id.AmountIndex)))
			if count := s.amountCount(id.Amount); id.AmountIndex == count-1 {
				s.setAmountCount(batch, id.Amount, count-1)
			}
		}
	}

	for _, ki := range kis {
		batch.Delete(s.keyImages.key(ki.Bytes()))
	}
	batch.Delete(s.txBlob.key(encodeU64(txID)))
	batch.Delete(s.txID.key(hash.Bytes()))
	batch.Delete(s.txUnlockTime.key(encodeU64(txID)))
	batch.Delete(s.txHeight.key(encodeU64(txID)))
	batch.Delete(s.txVersion.key(encodeU64(txID)))
	batch.Delete(s.txOutputs.key(encodeU64(txID)))
	batch.Delete(s.txKeyImages.key(encodeU64(txID)))

	s.mu.Lock()
	if txID == s.nextTxID-1 {
		s.nextTxID--
	}
	s.mu.Unlock()

	return txBlobRecord{Hash: hash, Blob: blob, UnlockTime: decodeU64(unlockRaw), KeyImages: kis, Outputs: outSpecs}, nil
}

func (s *store) readAltChainIDs() ([]uint64, error) {
	raw, err := s.db.Get([]byte(prefixAltChainIDs + "ids"))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return decodeU64List(raw), nil
}

func (s *store) appendAltChainID(batch Batch, chainID common.ChainID) error {
	ids, err := s.readAltChainIDs()
	if err != nil {
		return err
	}
	ids = append(ids, uint64(chainID))
	batch.Put([]byte(prefixAltChainIDs+"ids"), encodeU64List(ids))
	return nil
}

func (s *store) removeAltChainID(batch Batch, chainID common.ChainID) error {
	ids, err := s.readAltChainIDs()
	if err != nil {
		return err
	}
	out := ids[:0]
	for _, id := range ids {
		if id != uint64(chainID) {
			out = append(out, id)
		}
	}
	batch.Put([]byte(prefixAltChainIDs+"ids"), encodeU64List(out))
	return nil
}

// WriteAltBlock persists rec directly under its chain id without
// touching the main-chain tables or counters, per spec §4.1.
func (w *Writer) WriteAltBlock(rec *types.AltBlockRecord) (err error) {
	w.call(func() {
		err = w.writeAltBlock(rec)
		if err != nil && errkind.Is(err, errkind.KindStorageFault) {
			w.fatal("WriteAltBlock", err)
		}
	})
	return
}

func (w *Writer) writeAltBlock(rec *types.AltBlockRecord) error {
	s := w.s
	key := chainHeightKey(rec.ChainID, rec.Height)
	if has, err := s.altBlockInfo.Has(key); err != nil {
		return errkind.Wrap(errkind.KindStorageFault, err, "check existing alt block")
	} else if has {
		return errkind.New(errkind.KindAltBranchAbsent, errDuplicateAltBlock{rec.ChainID, rec.Height})
	}

	allTxs := make([]*types.Transaction, 0, len(rec.Txs)+1)
	allTxs = append(allTxs, &rec.Block.MinerTx)
	for i := range rec.Txs {
		allTxs = append(allTxs, &rec.Txs[i])
	}
	txRecs := make([]txBlobRecord, 0, len(allTxs))
	for _, tx := range allTxs {
		specs := make([]txOutputSpec, len(tx.Outputs))
		for i, o := range tx.Outputs {
			specs[i] = txOutputSpec{Key: o.Key, Commitment: o.Commitment, Amount: o.Amount, RingCT: tx.Version == types.TxVersionRingCT}
		}
		kis := make([]common.Hash, len(tx.Inputs))
		for i, in := range tx.Inputs {
			kis[i] = in.KeyImage
		}
		txRecs = append(txRecs, txBlobRecord{Hash: tx.Hash, Blob: tx.Blob, UnlockTime: tx.UnlockTime, KeyImages: kis, Outputs: specs})
	}

	bi := blockInfo{
		BlockHash: rec.BlockHash, PowHash: rec.PowHash, Timestamp: rec.Block.Header.Timestamp,
		MajorVersion: rec.Block.Header.MajorVersion, MinorVersion: rec.Block.Header.MinorVersion,
		Weight: rec.Weight, LongTermWeight: rec.LongTermWeight,
		CumulativeDifficulty: rec.CumulativeDifficulty, GeneratedCoins: rec.GeneratedCoins,
	}

	batch := s.db.NewBatch()
	batch.Put(s.altBlockInfo.key(key), encodeBlockInfo(bi))
	batch.Put(s.altHeaderBlob.key(key), rec.Block.HeaderBlob)
	batch.Put(s.altTxBlobs.key(key), encodeAltTxBlobs(txRecs))

	meta, err := s.getAltChainMeta(rec.ChainID)
	if err != nil {
		meta = altChainMeta{ForkHeight: rec.ForkHeight, TopHeight: rec.Height}
		if err := s.appendAltChainID(batch, rec.ChainID); err != nil {
			return errkind.Wrap(errkind.KindStorageFault, err, "record alt chain id")
		}
	} else if rec.Height > meta.TopHeight {
		meta.TopHeight = rec.Height
	}
	batch.Put(s.altChainMetaTbl.key(encodeU64(uint64(rec.ChainID))), encodeAltChainMeta(meta))

	if err := batch.Write(); err != nil {
		return errkind.Wrap(errkind.KindStorageFault, err, "commit write-alt-block transaction")
	}
	return nil
}

type errDuplicateAltBlock struct {
	ChainID common.ChainID
	Height  uint64
}

func (e errDuplicateAltBlock) Error() string { return "database: duplicate alt block" }

func (s *store) getAltChainMeta(chainID common.ChainID) (altChainMeta, error) {
	raw, err := s.altChainMetaTbl.Get(encodeU64(uint64(chainID)))
	if err != nil {
		return altChainMeta{}, err
	}
	return decodeAltChainMeta(raw), nil
}

// FlushAltBlocks discards every cached alt-chain branch, per spec
// §4.1 (bounding the alt-chain cache to max_alt_chain_cache).
func (w *Writer) FlushAltBlocks() (err error) {
	w.call(func() {
		err = w.flushAltBlocks()
		if err != nil {
			w.fatal("FlushAltBlocks", err)
		}
	})
	return
}

func (w *Writer) flushAltBlocks() error {
	s := w.s
	ids, err := s.readAltChainIDs()
	if err != nil {
		return errkind.Wrap(errkind.KindStorageFault, err, "read alt chain ids")
	}
	batch := s.db.NewBatch()
	for _, raw := range ids {
		chainID := common.ChainID(raw)
		meta, err := s.getAltChainMeta(chainID)
		if err != nil {
			continue
		}
		for h := meta.ForkHeight; h <= meta.TopHeight; h++ {
			key := chainHeightKey(chainID, h)
			batch.Delete(s.altBlockInfo.key(key))
			batch.Delete(s.altHeaderBlob.key(key))
			batch.Delete(s.altTxBlobs.key(key))
		}
		batch.Delete(s.altChainMetaTbl.key(encodeU64(raw)))
	}
	batch.Put([]byte(prefixAltChainIDs+"ids"), encodeU64List(nil))
	if err := batch.Write(); err != nil {
		return errkind.Wrap(errkind.KindStorageFault, err, "commit flush-alt-blocks transaction")
	}
	return nil
}

// ReverseReorg replays the alt-block records of chainID in ascending
// height through the normal write path, then deletes those alt-block
// rows. Resolves spec §9's open question; see SPEC_FULL.md §C.3 for
// the exact table set touched.
func (w *Writer) ReverseReorg(chainID common.ChainID) (err error) {
	w.call(func() {
		err = w.reverseReorg(chainID)
		if err != nil && errkind.Is(err, errkind.KindStorageFault) {
			w.fatal("ReverseReorg", err)
		}
	})
	return
}

func (w *Writer) reverseReorg(chainID common.ChainID) error {
	s := w.s
	meta, err := s.getAltChainMeta(chainID)
	if err != nil {
		return errkind.Wrap(errkind.KindAltBranchAbsent, err, "unknown alt chain id")
	}

	for h := meta.ForkHeight; h <= meta.TopHeight; h++ {
		key := chainHeightKey(chainID, h)
		biRaw, err := s.altBlockInfo.Get(key)
		if err != nil {
			return errkind.Wrap(errkind.KindStorageFault, err, "read alt block info")
		}
		headerBlob, err := s.altHeaderBlob.Get(key)
		if err != nil {
			return errkind.Wrap(errkind.KindStorageFault, err, "read alt header blob")
		}
		txBlobsRaw, err := s.altTxBlobs.Get(key)
		if err != nil {
			return errkind.Wrap(errkind.KindStorageFault, err, "read alt tx blobs")
		}
		bi := decodeBlockInfo(biRaw)
		txRecs := decodeAltTxBlobs(txBlobsRaw)

		vb, err := toVerifiedBlock(bi, headerBlob, h, txRecs)
		if err != nil {
			return errkind.Wrap(errkind.KindStorageFault, err, "reconstruct verified block")
		}
		if err := w.writeBlock(vb); err != nil {
			return err
		}
	}

	batch := s.db.NewBatch()
	for h := meta.ForkHeight; h <= meta.TopHeight; h++ {
		key := chainHeightKey(chainID, h)
		batch.Delete(s.altBlockInfo.key(key))
		batch.Delete(s.altHeaderBlob.key(key))
		batch.Delete(s.altTxBlobs.key(key))
	}
	batch.Delete(s.altChainMetaTbl.key(encodeU64(uint64(chainID))))
	if err := s.removeAltChainID(batch, chainID); err != nil {
		return errkind.Wrap(errkind.KindStorageFault, err, "remove alt chain id record")
	}
	if err := batch.Write(); err != nil {
		return errkind.Wrap(errkind.KindStorageFault, err, "commit reverse-reorg cleanup transaction")
	}
	return nil
}

// toVerifiedBlock rebuilds the VerifiedBlock commitTx/writeBlock need
// from the stashed alt-block record; the miner tx is always the first
// stashed transaction (writeBlock/writeAltBlock's own convention).
func toVerifiedBlock(bi blockInfo, headerBlob []byte, height uint64, txRecs []txBlobRecord) (*types.VerifiedBlock, error) {
	if len(txRecs) == 0 {
		return nil, errMissingMinerTx{}
	}
	toTx := func(r txBlobRecord) types.Transaction {
		version := types.TxVersionOne
		outs := make([]types.TxOut, len(r.Outputs))
		for i, o := range r.Outputs {
			if o.RingCT {
				version = types.TxVersionRingCT
			}
			outs[i] = types.TxOut{Key: o.Key, Commitment: o.Commitment, Amount: o.Amount}
		}
		ins := make([]types.TxIn, len(r.KeyImages))
		for i, ki := range r.KeyImages {
			ins[i] = types.TxIn{KeyImage: ki}
		}
		return types.Transaction{Hash: r.Hash, Version: version, UnlockTime: r.UnlockTime, Inputs: ins, Outputs: outs, Blob: r.Blob}
	}

	minerTx := toTx(txRecs[0])
	txs := make([]types.Transaction, 0, len(txRecs)-1)
	txHashes := make([]common.Hash, 0, len(txRecs)-1)
	for _, r := range txRecs[1:] {
		tx := toTx(r)
		txs = append(txs, tx)
		txHashes = append(txHashes, tx.Hash)
	}

	block := types.Block{
		Header: types.BlockHeader{
			Timestamp:    bi.Timestamp,
			MajorVersion: bi.MajorVersion,
			MinorVersion: bi.MinorVersion,
		},
		MinerTx:    minerTx,
		TxHashes:   txHashes,
		HeaderBlob: headerBlob,
	}
	return &types.VerifiedBlock{
		Block: block, Txs: txs, BlockHash: bi.BlockHash, PowHash: bi.PowHash, Height: height,
		Weight: bi.Weight, LongTermWeight: bi.LongTermWeight,
		CumulativeDifficulty: bi.CumulativeDifficulty, GeneratedCoins: bi.GeneratedCoins,
	}, nil
}

type errMissingMinerTx struct{}

func (errMissingMinerTx) Error() string { return "database: alt block has no stashed miner tx" }

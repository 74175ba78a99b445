package store

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/epic-project/epicd/chainhash"
	"github.com/epic-project/epicd/consensus"
	"github.com/epic-project/epicd/wire"
)

// StoreError is returned by StoreLevelSet when a write to either
// file family fails; per §4.1, the caller must not mark the
// milestone as stored when this is returned.
type StoreError struct {
	cause error
}

func (e *StoreError) Error() string { return "store: " + e.cause.Error() }
func (e *StoreError) Unwrap() error { return e.cause }

// Store is the Block Store of §4.1: the blk/vtx append-only file
// families plus the goleveldb KV index.
type Store struct {
	idx *Index
	blk *FileFamily
	vtx *FileFamily
}

// Open opens (creating if absent) the block store rooted at root,
// matching the persisted layout's <root>/data/blk and
// <root>/data/vtx/ directories plus an "index" goleveldb database.
func Open(root string, maxFileSize, epochCapacity uint32) (*Store, error) {
	idx, err := OpenIndex(filepath.Join(root, "index"))
	if err != nil {
		return nil, err
	}
	blk, err := OpenFileFamily(filepath.Join(root, "data", "blk"), maxFileSize, epochCapacity)
	if err != nil {
		idx.Close()
		return nil, err
	}
	vtx, err := OpenFileFamily(filepath.Join(root, "data", "vtx"), maxFileSize, epochCapacity)
	if err != nil {
		idx.Close()
		blk.Close()
		return nil, err
	}
	return &Store{idx: idx, blk: blk, vtx: vtx}, nil
}

// Close seals and closes both file families and the index.
func (s *Store) Close() error {
	if err := s.blk.Close(); err != nil {
		return err
	}
	if err := s.vtx.Close(); err != nil {
		return err
	}
	return s.idx.Close()
}

// StoreLevelSet implements store_level_set: the milestone block is
// written first, then the remaining level-set blocks in order;
// vertex metadata follows the same order into the vtx family; the
// default column is updated for every block, the ms column for the
// height, and info.chainwork for the running total. Any write
// failure aborts and returns a *StoreError; the caller must not flip
// the milestone's stored flag in that case.
func (s *Store) StoreLevelSet(vertices map[chainhash.Hash]*consensus.Vertex, ms *consensus.Milestone) error {
	if len(ms.LevelSet) == 0 {
		return errors.New("store: empty level set")
	}
	msHash := ms.LevelSet[ms.MSVertexIndex]

	ordered := make([]chainhash.Hash, 0, len(ms.LevelSet))
	ordered = append(ordered, msHash)
	for _, h := range ms.LevelSet {
		if h != msHash {
			ordered = append(ordered, h)
		}
	}

	for _, h := range ordered {
		v, ok := vertices[h]
		if !ok {
			return &StoreError{cause: errors.Errorf("missing vertex for %s in level set", h)}
		}

		blockBytes, err := v.Block.Bytes()
		if err != nil {
			return &StoreError{cause: err}
		}
		blkPos, err := s.blk.Write(blockBytes)
		if err != nil {
			return &StoreError{cause: err}
		}

		var vtxBuf bytes.Buffer
		var msArg *consensus.Milestone
		if h == msHash {
			msArg = ms
		}
		if err := v.SerializeMeta(&vtxBuf, msArg); err != nil {
			return &StoreError{cause: err}
		}
		vtxPos, err := s.vtx.Write(vtxBuf.Bytes())
		if err != nil {
			return &StoreError{cause: err}
		}

		if err := s.idx.PutDefault(h, DefaultEntry{Height: ms.Height, BlkPos: blkPos, VtxPos: vtxPos}); err != nil {
			return &StoreError{cause: err}
		}
		if h == msHash {
			if err := s.idx.PutMS(ms.Height, MSEntry{Hash: h, BlkPos: blkPos, VtxPos: vtxPos}); err != nil {
				return &StoreError{cause: err}
			}
		}
	}

	if err := s.applyTXOC(ms.TXOC); err != nil {
		return &StoreError{cause: err}
	}
	if err := s.applyRegChange(ms.RegChange); err != nil {
		return &StoreError{cause: err}
	}

	chainworkBytes := ms.Chainwork.Uint64()
	if err := s.idx.PutInfoUint64("chainwork", chainworkBytes); err != nil {
		return &StoreError{cause: err}
	}
	if err := s.idx.PutInfoUint64("headHeight", ms.Height); err != nil {
		return &StoreError{cause: err}
	}

	return nil
}

func (s *Store) applyTXOC(txoc *consensus.TXOC) error {
	for key, utxo := range txoc.Created {
		var buf bytes.Buffer
		if err := utxo.Output.Serialize(&buf); err != nil {
			return err
		}
		if err := s.idx.PutUTXO(key, buf.Bytes()); err != nil {
			return err
		}
	}
	for key := range txoc.Spent {
		if err := s.idx.DeleteUTXO(key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) applyRegChange(rc *consensus.RegChange) error {
	for head := range rc.Removed {
		if err := s.idx.DeleteReg(head); err != nil {
			return err
		}
	}
	for head, lastReg := range rc.Created {
		if err := s.idx.PutReg(head, lastReg); err != nil {
			return err
		}
	}
	return nil
}

// GetMilestoneAt implements get_milestone_at: reconstructs the
// milestone's Vertex from the block and vertex files. The returned
// Vertex carries no level set and no Milestone snapshot;
// GetMilestoneMeta returns those.
func (s *Store) GetMilestoneAt(height uint64) (*consensus.Vertex, error) {
	entry, err := s.idx.GetMS(height)
	if err != nil {
		return nil, err
	}
	v, _, err := s.readVertex(entry.Hash, entry.BlkPos, entry.VtxPos, true)
	return v, err
}

// GetMilestoneMeta reconstructs the full Milestone snapshot anchored
// at height — chainwork, difficulty targets, hashrate, counters, and
// level set — from the milestone vertex's own persisted record. Used
// on startup to rehydrate a Chain's head without re-deriving
// difficulty state from scratch (§4.1/§4.4 restart path).
func (s *Store) GetMilestoneMeta(height uint64) (*consensus.Milestone, error) {
	entry, err := s.idx.GetMS(height)
	if err != nil {
		return nil, err
	}
	_, ms, err := s.readVertex(entry.Hash, entry.BlkPos, entry.VtxPos, false)
	if err != nil {
		return nil, err
	}
	if ms == nil {
		return nil, ErrNotFound
	}
	return ms, nil
}

// GetVertex implements get_vertex: if withBlock is false, only
// vertex metadata is loaded and Vertex.Block is left nil.
func (s *Store) GetVertex(hash chainhash.Hash, withBlock bool) (*consensus.Vertex, error) {
	entry, err := s.idx.GetDefault(hash)
	if err != nil {
		return nil, err
	}
	v, _, err := s.readVertex(hash, entry.BlkPos, entry.VtxPos, withBlock)
	return v, err
}

// readVertex loads a vertex's metadata (and, if withBlock, its
// block) from a known file position. The returned Milestone is
// non-nil only when this vertex formed a milestone, per
// Vertex.DeserializeMeta.
func (s *Store) readVertex(hash chainhash.Hash, blkPos, vtxPos FilePos, withBlock bool) (*consensus.Vertex, *consensus.Milestone, error) {
	// Vertex metadata is read in full regardless, since its length is
	// data-dependent and not recorded separately; the blk read is
	// skipped when the caller only needs metadata.
	vtxLen, err := s.familyRemainingLen(s.vtx, vtxPos)
	if err != nil {
		return nil, nil, ErrNotFound
	}
	vtxBytes, err := s.vtx.ReadAt(vtxPos, vtxLen)
	if err != nil {
		return nil, nil, err
	}

	v := &consensus.Vertex{Hash: hash}
	ms, err := v.DeserializeMeta(bytes.NewReader(vtxBytes))
	if err != nil {
		return nil, nil, ErrNotFound
	}

	if withBlock {
		blkLen, err := s.familyRemainingLen(s.blk, blkPos)
		if err != nil {
			return nil, nil, ErrNotFound
		}
		blkBytes, err := s.blk.ReadAt(blkPos, blkLen)
		if err != nil {
			return nil, nil, err
		}
		block, err := wire.BlockFromBytes(blkBytes)
		if err != nil {
			return nil, nil, ErrNotFound
		}
		v.Block = block
	}

	return v, ms, nil
}

// familyRemainingLen returns the number of bytes from pos to the
// current write cursor's offset in the same file, a conservative
// upper bound used since records are not separately length-prefixed
// in the index.
func (s *Store) familyRemainingLen(ff *FileFamily, pos FilePos) (uint32, error) {
	cur := ff.Cursor()
	if cur.Epoch == pos.Epoch && cur.FileNum == pos.FileNum {
		if cur.Offset <= pos.Offset {
			return 0, errors.New("store: position beyond write cursor")
		}
		return cur.Offset - pos.Offset, nil
	}
	// Position is in a sealed, earlier file: read to end of file.
	info, err := os.Stat(ff.filePath(pos.Epoch, pos.FileNum))
	if err != nil {
		return 0, ErrNotFound
	}
	if uint64(info.Size()) <= uint64(pos.Offset) {
		return 0, errors.New("store: position beyond end of file")
	}
	return uint32(info.Size()) - pos.Offset, nil
}

// GetRawLevelSet implements get_raw_level_set: returns the
// concatenated block bytes across the files spanning [height, height2],
// skipping checksum prefixes. When height2 is zero (unknown right
// boundary), it reads at most 20 subsequent milestone heights.
func (s *Store) GetRawLevelSet(height uint64, height2 uint64) ([]byte, error) {
	end := height2
	if end == 0 {
		end = height + 20
	}

	var out []byte
	for h := height; h <= end; h++ {
		entry, err := s.idx.GetMS(h)
		if err != nil {
			if h == height {
				return nil, ErrNotFound
			}
			break
		}
		vtxLen, err := s.familyRemainingLen(s.blk, entry.BlkPos)
		if err != nil {
			break
		}
		data, err := s.blk.ReadAt(entry.BlkPos, vtxLen)
		if err != nil {
			break
		}
		out = append(out, data...)
	}
	return out, nil
}

// GetLevelSetBlocks returns every block anchored at the milestone of
// height, milestone block first, for the sync service's LEVEL_SET
// GetData handler.
func (s *Store) GetLevelSetBlocks(height uint64) ([]*wire.MsgBlock, error) {
	msEntry, err := s.idx.GetMS(height)
	if err != nil {
		return nil, err
	}
	hashes, err := s.idx.ScanDefaultByHeight(height)
	if err != nil {
		return nil, err
	}

	blocks := make([]*wire.MsgBlock, 0, len(hashes)+1)
	msVertex, err := s.GetVertex(msEntry.Hash, true)
	if err != nil {
		return nil, err
	}
	blocks = append(blocks, msVertex.Block)

	for _, h := range hashes {
		if h == msEntry.Hash {
			continue
		}
		v, err := s.GetVertex(h, true)
		if err != nil {
			continue
		}
		blocks = append(blocks, v.Block)
	}
	return blocks, nil
}

// UpdateRedemptionStatus implements update_redemption_status: an
// in-place modifier of the one redeem_status byte at the front of a
// vertex's metadata record.
func (s *Store) UpdateRedemptionStatus(hash chainhash.Hash, status consensus.RedemptionStatus) error {
	entry, err := s.idx.GetDefault(hash)
	if err != nil {
		return err
	}
	return s.vtx.writeByteAt(entry.VtxPos, byte(status))
}

// CheckFileSanity implements check_file_sanity: at startup, walk down
// from info.headHeight to the greatest height H whose ms entry exists
// and whose blk and vtx files both pass VerifyChecksum. Only the files
// holding those milestone records are checked; other files are not.
// If H differs from the recorded head and prune is true, ms entries
// above H are cleared and info.headHeight is rewritten to H. UTXO/reg state is
// not separately reconstructed here: dagmgr.NewManagerFromStore, the
// caller, rehydrates the Chain at the verified height H via
// GetMilestoneMeta and relies on the Ledger's store-backed fallback
// (consensus.PersistedUTXOLookup) for anything not already flushed.
func (s *Store) CheckFileSanity(prune bool) (uint64, error) {
	recordedHead, err := s.idx.GetInfoUint64("headHeight")
	if err != nil {
		recordedHead = 0
	}

	h := recordedHead
	for h > 0 {
		entry, err := s.idx.GetMS(h)
		if err != nil {
			h--
			continue
		}
		blkOK, err := s.blk.VerifyChecksum(entry.BlkPos.Epoch, entry.BlkPos.FileNum)
		if err != nil || !blkOK {
			h--
			continue
		}
		vtxOK, err := s.vtx.VerifyChecksum(entry.VtxPos.Epoch, entry.VtxPos.FileNum)
		if err != nil || !vtxOK {
			h--
			continue
		}
		break
	}

	if h == recordedHead {
		return h, nil
	}

	if prune {
		if err := s.idx.DeleteMSAbove(h); err != nil {
			return h, err
		}
		if err := s.idx.PutInfoUint64("headHeight", h); err != nil {
			return h, err
		}
	}
	return h, nil
}

// BlockTimeAt returns the timestamp of the milestone block anchored
// at height, for consensus.RestartDifficulty's blockTime parameter.
func (s *Store) BlockTimeAt(height uint64) (uint32, bool) {
	v, err := s.GetMilestoneAt(height)
	if err != nil || v.Block == nil {
		return 0, false
	}
	return v.Block.Header.Timestamp, true
}

// LookupUTXO satisfies consensus.PersistedUTXOLookup.
func (s *Store) LookupUTXO(key consensus.UTXOKey) (*consensus.UTXO, bool) {
	raw, err := s.idx.GetUTXO(key)
	if err != nil {
		return nil, false
	}
	out := &wire.TxOut{}
	if err := out.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, false
	}
	return &consensus.UTXO{Output: out}, true
}

// LookupRegistration satisfies consensus.RegistrationLookup.
func (s *Store) LookupRegistration(peerChainHead chainhash.Hash) (chainhash.Hash, bool) {
	h, err := s.idx.GetReg(peerChainHead)
	if err != nil {
		return chainhash.Hash{}, false
	}
	return h, true
}

// LookupVertex satisfies consensus.RegistrationLookup.
func (s *Store) LookupVertex(hash chainhash.Hash) (*consensus.Vertex, bool) {
	v, err := s.GetVertex(hash, true)
	if err != nil {
		return nil, false
	}
	return v, true
}

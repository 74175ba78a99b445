package store

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/epic-project/epicd/chainhash"
)

// ErrNotFound is returned by index lookups in place of goleveldb's
// own not-found sentinel, so callers never need to import it
// directly. Per §4.1's failure semantics, every read-path error
// (I/O, decode, or a genuine miss) is surfaced this way.
var ErrNotFound = errors.New("store: not found")

// FilePos names a location within the blk or vtx file families:
// which epoch, which file within the epoch, and the byte offset
// within that file.
type FilePos struct {
	Epoch   uint32
	FileNum uint32
	Offset  uint32
}

func (p FilePos) encode() []byte {
	var b [12]byte
	binary.LittleEndian.PutUint32(b[0:4], p.Epoch)
	binary.LittleEndian.PutUint32(b[4:8], p.FileNum)
	binary.LittleEndian.PutUint32(b[8:12], p.Offset)
	return b[:]
}

func decodeFilePos(b []byte) (FilePos, error) {
	if len(b) != 12 {
		return FilePos{}, errors.New("store: malformed file position")
	}
	return FilePos{
		Epoch:   binary.LittleEndian.Uint32(b[0:4]),
		FileNum: binary.LittleEndian.Uint32(b[4:8]),
		Offset:  binary.LittleEndian.Uint32(b[8:12]),
	}, nil
}

// DefaultEntry is the default-column value: the height a block's
// level set anchors at, and where its block/vertex records live.
type DefaultEntry struct {
	Height uint64
	BlkPos FilePos
	VtxPos FilePos
}

func (e DefaultEntry) encode() []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], e.Height)
	out := append([]byte{}, b[:]...)
	out = append(out, e.BlkPos.encode()...)
	out = append(out, e.VtxPos.encode()...)
	return out
}

func decodeDefaultEntry(b []byte) (DefaultEntry, error) {
	if len(b) != 8+12+12 {
		return DefaultEntry{}, errors.New("store: malformed default entry")
	}
	blkPos, err := decodeFilePos(b[8:20])
	if err != nil {
		return DefaultEntry{}, err
	}
	vtxPos, err := decodeFilePos(b[20:32])
	if err != nil {
		return DefaultEntry{}, err
	}
	return DefaultEntry{
		Height: binary.LittleEndian.Uint64(b[0:8]),
		BlkPos: blkPos,
		VtxPos: vtxPos,
	}, nil
}

// MSEntry is the ms-column value: which block formed the milestone
// at this height, and where it lives.
type MSEntry struct {
	Hash   chainhash.Hash
	BlkPos FilePos
	VtxPos FilePos
}

func (e MSEntry) encode() []byte {
	out := append([]byte{}, e.Hash[:]...)
	out = append(out, e.BlkPos.encode()...)
	out = append(out, e.VtxPos.encode()...)
	return out
}

func decodeMSEntry(b []byte) (MSEntry, error) {
	if len(b) != chainhash.HashSize+12+12 {
		return MSEntry{}, errors.New("store: malformed ms entry")
	}
	var hash chainhash.Hash
	copy(hash[:], b[:chainhash.HashSize])
	blkPos, err := decodeFilePos(b[chainhash.HashSize : chainhash.HashSize+12])
	if err != nil {
		return MSEntry{}, err
	}
	vtxPos, err := decodeFilePos(b[chainhash.HashSize+12:])
	if err != nil {
		return MSEntry{}, err
	}
	return MSEntry{Hash: hash, BlkPos: blkPos, VtxPos: vtxPos}, nil
}

// Index wraps a single goleveldb handle, partitioned into the five
// columns named in §4.1 via key-prefix buckets.
type Index struct {
	db *leveldb.DB
}

// OpenIndex opens (creating if absent) the goleveldb database at path.
func OpenIndex(path string) (*Index, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "opening index")
	}
	return &Index{db: db}, nil
}

// Close releases the underlying goleveldb handle.
func (idx *Index) Close() error {
	return idx.db.Close()
}

func heightKey(height uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], height)
	return b[:]
}

// PutDefault records where a block's data lives, keyed by hash.
func (idx *Index) PutDefault(hash chainhash.Hash, entry DefaultEntry) error {
	return idx.db.Put(defaultBucket.Key(hash[:]), entry.encode(), nil)
}

// GetDefault looks up the default-column entry for hash.
func (idx *Index) GetDefault(hash chainhash.Hash) (DefaultEntry, error) {
	raw, err := idx.db.Get(defaultBucket.Key(hash[:]), nil)
	if err != nil {
		return DefaultEntry{}, ErrNotFound
	}
	e, err := decodeDefaultEntry(raw)
	if err != nil {
		return DefaultEntry{}, ErrNotFound
	}
	return e, nil
}

// DeleteDefault removes a block's default-column entry.
func (idx *Index) DeleteDefault(hash chainhash.Hash) error {
	return idx.db.Delete(defaultBucket.Key(hash[:]), nil)
}

// PutMS records the milestone at height.
func (idx *Index) PutMS(height uint64, entry MSEntry) error {
	return idx.db.Put(msBucket.Key(heightKey(height)), entry.encode(), nil)
}

// GetMS looks up the milestone at height.
func (idx *Index) GetMS(height uint64) (MSEntry, error) {
	raw, err := idx.db.Get(msBucket.Key(heightKey(height)), nil)
	if err != nil {
		return MSEntry{}, ErrNotFound
	}
	e, err := decodeMSEntry(raw)
	if err != nil {
		return MSEntry{}, ErrNotFound
	}
	return e, nil
}

// DeleteMSAbove removes every ms-column entry with height > h, used
// by check_file_sanity's prune path.
func (idx *Index) DeleteMSAbove(h uint64) error {
	iter := idx.db.NewIterator(util.BytesPrefix(msBucket.prefix), nil)
	defer iter.Release()

	var toDelete [][]byte
	for iter.Next() {
		key := iter.Key()
		heightBytes := key[len(msBucket.prefix):]
		if len(heightBytes) != 8 {
			continue
		}
		height := binary.BigEndian.Uint64(heightBytes)
		if height > h {
			toDelete = append(toDelete, append([]byte{}, key...))
		}
	}
	if err := iter.Error(); err != nil {
		return errors.Wrap(err, "scanning ms column")
	}
	for _, k := range toDelete {
		if err := idx.db.Delete(k, nil); err != nil {
			return err
		}
	}
	return nil
}

// ScanDefaultByHeight returns every hash in the default column whose
// recorded height equals height, in arbitrary order. Used by the sync
// service to reconstruct a level set's full membership from a
// milestone height, without a sixth index column: §4.1 names exactly
// five KV buckets, so this trades an O(total blocks) scan for not
// growing that set.
func (idx *Index) ScanDefaultByHeight(height uint64) ([]chainhash.Hash, error) {
	iter := idx.db.NewIterator(util.BytesPrefix(defaultBucket.prefix), nil)
	defer iter.Release()

	var hashes []chainhash.Hash
	for iter.Next() {
		entry, err := decodeDefaultEntry(iter.Value())
		if err != nil {
			continue
		}
		if entry.Height != height {
			continue
		}
		key := iter.Key()
		hashBytes := key[len(defaultBucket.prefix):]
		if len(hashBytes) != chainhash.HashSize {
			continue
		}
		var h chainhash.Hash
		copy(h[:], hashBytes)
		hashes = append(hashes, h)
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Wrap(err, "scanning default column by height")
	}
	return hashes, nil
}

// PutUTXO stores the raw serialized UTXO under key.
func (idx *Index) PutUTXO(key [chainhash.HashSize]byte, raw []byte) error {
	return idx.db.Put(utxoBucket.Key(key[:]), raw, nil)
}

// GetUTXO returns the raw serialized UTXO stored under key.
func (idx *Index) GetUTXO(key [chainhash.HashSize]byte) ([]byte, error) {
	raw, err := idx.db.Get(utxoBucket.Key(key[:]), nil)
	if err != nil {
		return nil, ErrNotFound
	}
	return raw, nil
}

// DeleteUTXO removes the UTXO stored under key.
func (idx *Index) DeleteUTXO(key [chainhash.HashSize]byte) error {
	return idx.db.Delete(utxoBucket.Key(key[:]), nil)
}

// PutReg records the last-registration hash for a peer chain head.
func (idx *Index) PutReg(head chainhash.Hash, lastReg chainhash.Hash) error {
	return idx.db.Put(regBucket.Key(head[:]), lastReg[:], nil)
}

// GetReg looks up the last-registration hash for a peer chain head.
func (idx *Index) GetReg(head chainhash.Hash) (chainhash.Hash, error) {
	raw, err := idx.db.Get(regBucket.Key(head[:]), nil)
	if err != nil {
		return chainhash.Hash{}, ErrNotFound
	}
	var h chainhash.Hash
	copy(h[:], raw)
	return h, nil
}

// DeleteReg removes a peer-chain head's registration entry.
func (idx *Index) DeleteReg(head chainhash.Hash) error {
	return idx.db.Delete(regBucket.Key(head[:]), nil)
}

// PutInfoUint64 stores one textual-key scalar, e.g. "headHeight" or
// "chainwork".
func (idx *Index) PutInfoUint64(key string, value uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], value)
	return idx.db.Put(infoBucket.Key([]byte(key)), b[:], nil)
}

// GetInfoUint64 retrieves one textual-key scalar.
func (idx *Index) GetInfoUint64(key string) (uint64, error) {
	raw, err := idx.db.Get(infoBucket.Key([]byte(key)), nil)
	if err != nil {
		return 0, ErrNotFound
	}
	if len(raw) != 8 {
		return 0, ErrNotFound
	}
	return binary.LittleEndian.Uint64(raw), nil
}

// PutInfoBytes stores one textual-key byte blob in the info column,
// e.g. a serialized per-height milestone snapshot.
func (idx *Index) PutInfoBytes(key string, value []byte) error {
	return idx.db.Put(infoBucket.Key([]byte(key)), value, nil)
}

// GetInfoBytes retrieves one textual-key byte blob.
func (idx *Index) GetInfoBytes(key string) ([]byte, error) {
	raw, err := idx.db.Get(infoBucket.Key([]byte(key)), nil)
	if err != nil {
		return nil, ErrNotFound
	}
	return raw, nil
}

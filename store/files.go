package store

import (
	"hash/crc32"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/pkg/errors"
)

// checksumSize is the width of the placeholder every blk/vtx file
// begins with: a little-endian CRC32 of the remainder of the file,
// computed with the Castagnoli polynomial (matching the corpus's
// ffldb family), written in when the file is rolled over or on
// graceful shutdown.
const checksumSize = 4

// defaultMaxFileSize is the §4.1 default file_capacity: 256 MiB.
const defaultMaxFileSize = 256 * 1024 * 1024

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

type writeCursor struct {
	epoch   uint32
	fileNum uint32
	offset  uint32
}

// FileFamily manages one append-only family of files (blk or vtx),
// grouped into epochs of epochCapacity files each, per §4.1's
// capacity policy.
type FileFamily struct {
	mu sync.Mutex

	rootDir       string
	maxFileSize   uint32
	epochCapacity uint32

	cursor  writeCursor
	curFile *os.File
}

// OpenFileFamily opens (creating if absent) the file family rooted
// at rootDir, positioning the write cursor at the end of the newest
// file it finds, or creating epoch 0 file 0 if the directory is
// empty.
func OpenFileFamily(rootDir string, maxFileSize, epochCapacity uint32) (*FileFamily, error) {
	if maxFileSize == 0 {
		maxFileSize = defaultMaxFileSize
	}
	if epochCapacity == 0 {
		epochCapacity = 1 << 16
	}
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating file family root")
	}
	ff := &FileFamily{
		rootDir:       rootDir,
		maxFileSize:   maxFileSize,
		epochCapacity: epochCapacity,
	}
	epoch := uint32(0)
	for {
		if _, err := os.Stat(ff.epochDir(epoch + 1)); err != nil {
			break
		}
		epoch++
	}
	fileNum := uint32(0)
	for {
		if _, err := os.Stat(ff.filePath(epoch, fileNum+1)); err != nil {
			break
		}
		fileNum++
	}
	if err := ff.openOrCreate(epoch, fileNum); err != nil {
		return nil, err
	}
	return ff, nil
}

func (ff *FileFamily) epochDir(epoch uint32) string {
	return filepath.Join(ff.rootDir, strconv.FormatUint(uint64(epoch), 10))
}

func (ff *FileFamily) filePath(epoch, fileNum uint32) string {
	return filepath.Join(ff.epochDir(epoch), strconv.FormatUint(uint64(fileNum), 10)+".dat")
}

func (ff *FileFamily) openOrCreate(epoch, fileNum uint32) error {
	if err := os.MkdirAll(ff.epochDir(epoch), 0o755); err != nil {
		return errors.Wrap(err, "creating epoch directory")
	}
	path := ff.filePath(epoch, fileNum)

	isNew := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		isNew = true
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return errors.Wrap(err, "opening file")
	}

	if isNew {
		if _, err := f.Write(make([]byte, checksumSize)); err != nil {
			f.Close()
			return errors.Wrap(err, "writing checksum placeholder")
		}
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}

	ff.curFile = f
	ff.cursor = writeCursor{epoch: epoch, fileNum: fileNum, offset: uint32(info.Size())}
	return nil
}

// Write appends data to the current file, rolling over to a new file
// (and, if the epoch's file count is exhausted, a new epoch) first
// if appending would exceed maxFileSize. It returns the position at
// which data was written.
func (ff *FileFamily) Write(data []byte) (FilePos, error) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if ff.cursor.offset+uint32(len(data)) > ff.maxFileSize {
		if err := ff.rollover(); err != nil {
			return FilePos{}, err
		}
	}

	pos := FilePos{Epoch: ff.cursor.epoch, FileNum: ff.cursor.fileNum, Offset: ff.cursor.offset}
	n, err := ff.curFile.WriteAt(data, int64(ff.cursor.offset))
	if err != nil {
		return FilePos{}, errors.Wrap(err, "appending to file")
	}
	ff.cursor.offset += uint32(n)
	return pos, nil
}

// rollover seals the current file (writing its checksum) and opens
// the next one, crossing into a new epoch when the current epoch's
// file count is exhausted.
func (ff *FileFamily) rollover() error {
	if err := ff.sealLocked(); err != nil {
		return err
	}
	if err := ff.curFile.Close(); err != nil {
		return errors.Wrap(err, "closing sealed file")
	}

	nextFile := ff.cursor.fileNum + 1
	nextEpoch := ff.cursor.epoch
	if nextFile >= ff.epochCapacity {
		nextFile = 0
		nextEpoch++
	}
	return ff.openOrCreate(nextEpoch, nextFile)
}

// sealLocked computes the Castagnoli CRC32 of everything after the
// checksum placeholder and writes it into the placeholder. Caller
// must hold ff.mu.
func (ff *FileFamily) sealLocked() error {
	size := ff.cursor.offset
	if size <= checksumSize {
		return nil
	}
	buf := make([]byte, size-checksumSize)
	if _, err := ff.curFile.ReadAt(buf, checksumSize); err != nil {
		return errors.Wrap(err, "reading file body for checksum")
	}
	sum := crc32.Checksum(buf, castagnoliTable)
	var sumBytes [checksumSize]byte
	sumBytes[0] = byte(sum)
	sumBytes[1] = byte(sum >> 8)
	sumBytes[2] = byte(sum >> 16)
	sumBytes[3] = byte(sum >> 24)
	if _, err := ff.curFile.WriteAt(sumBytes[:], 0); err != nil {
		return errors.Wrap(err, "writing checksum")
	}
	return nil
}

// Seal flushes the checksum of the file currently being written to,
// without rolling over. Used on graceful shutdown.
func (ff *FileFamily) Seal() error {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return ff.sealLocked()
}

// ReadAt reads length bytes at pos.
func (ff *FileFamily) ReadAt(pos FilePos, length uint32) ([]byte, error) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	var f *os.File
	if pos.Epoch == ff.cursor.epoch && pos.FileNum == ff.cursor.fileNum {
		f = ff.curFile
	} else {
		var err error
		f, err = os.Open(ff.filePath(pos.Epoch, pos.FileNum))
		if err != nil {
			return nil, ErrNotFound
		}
		defer f.Close()
	}

	buf := make([]byte, length)
	if _, err := f.ReadAt(buf, int64(pos.Offset)); err != nil {
		return nil, ErrNotFound
	}
	return buf, nil
}

// writeByteAt overwrites a single byte at pos, used by
// update_redemption_status to flip a vertex's redeem_status byte
// in place. The file currently open for writing is re-sealed
// (checksum recomputed) when it is later rolled over or closed; any
// other file has its checksum recomputed here, right after the write.
func (ff *FileFamily) writeByteAt(pos FilePos, b byte) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	var f *os.File
	if pos.Epoch == ff.cursor.epoch && pos.FileNum == ff.cursor.fileNum {
		f = ff.curFile
	} else {
		var err error
		f, err = os.OpenFile(ff.filePath(pos.Epoch, pos.FileNum), os.O_RDWR, 0o644)
		if err != nil {
			return errors.Wrap(err, "opening file for in-place update")
		}
		defer f.Close()
	}
	if _, err := f.WriteAt([]byte{b}, int64(pos.Offset)); err != nil || f == ff.curFile {
		return err
	}
	data, err := os.ReadFile(ff.filePath(pos.Epoch, pos.FileNum))
	if err != nil {
		return errors.Wrap(err, "reading file body for checksum")
	}
	sum := crc32.Checksum(data[checksumSize:], castagnoliTable)
	_, err = f.WriteAt([]byte{byte(sum), byte(sum >> 8), byte(sum >> 16), byte(sum >> 24)}, 0)
	return err
}

// VerifyChecksum recomputes and compares the stored checksum for one
// sealed file, used by check_file_sanity at startup.
func (ff *FileFamily) VerifyChecksum(epoch, fileNum uint32) (bool, error) {
	path := ff.filePath(epoch, fileNum)
	data, err := os.ReadFile(path)
	if err != nil {
		return false, errors.Wrap(err, "reading file for checksum verification")
	}
	if len(data) < checksumSize {
		return false, nil
	}
	stored := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
	computed := crc32.Checksum(data[checksumSize:], castagnoliTable)
	return stored == computed, nil
}

// DeleteFile removes one file outright, used when check_file_sanity
// prunes past a corrupted tail.
func (ff *FileFamily) DeleteFile(epoch, fileNum uint32) error {
	return os.Remove(ff.filePath(epoch, fileNum))
}

// Cursor returns the current write position.
func (ff *FileFamily) Cursor() FilePos {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return FilePos{Epoch: ff.cursor.epoch, FileNum: ff.cursor.fileNum, Offset: ff.cursor.offset}
}

// Close seals and closes the file currently open for writing.
func (ff *FileFamily) Close() error {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if err := ff.sealLocked(); err != nil {
		return err
	}
	return ff.curFile.Close()
}

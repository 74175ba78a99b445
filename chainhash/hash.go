// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainhash provides the block/transaction hash type used
// throughout the DAG and its hashing primitive.
package chainhash

import (
	"encoding/hex"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

// HashSize is the number of bytes in a hash produced by this package.
const HashSize = 32

// MaxHashStringSize is the maximum length of a Hash hash string.
const MaxHashStringSize = HashSize * 2

// ErrHashStrSize describes an error that indicates the caller specified a
// hash string that has too many characters.
var ErrHashStrSize = hashStrSizeError{}

type hashStrSizeError struct{}

func (hashStrSizeError) Error() string {
	return "max hash string length is " + itoa(MaxHashStringSize) + " bytes"
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// Hash is a 32-byte array used to identify blocks and transactions.
type Hash [HashSize]byte

// String returns the Hash as the hexadecimal string of its bytes, in
// stored order (no byte reversal), so NewHashFromStr inverts it.
func (hash Hash) String() string {
	return hex.EncodeToString(hash[:])
}

// CloneBytes returns a copy of the bytes represented by the hash.
func (hash *Hash) CloneBytes() []byte {
	newHash := make([]byte, HashSize)
	copy(newHash, hash[:])
	return newHash
}

// SetBytes sets the bytes which represent the hash.
func (hash *Hash) SetBytes(newHash []byte) error {
	if len(newHash) != HashSize {
		return hashLenError(len(newHash))
	}
	copy(hash[:], newHash)
	return nil
}

type hashLenError int

func (e hashLenError) Error() string {
	return "invalid hash length of " + itoa(int(e)) + ", want " + itoa(HashSize)
}

// IsEqual returns true if target is the same as the hash.
func (hash *Hash) IsEqual(target *Hash) bool {
	if hash == nil && target == nil {
		return true
	}
	if hash == nil || target == nil {
		return false
	}
	return *hash == *target
}

// NewHash returns a new Hash from a byte slice.
func NewHash(newHash []byte) (*Hash, error) {
	var sh Hash
	err := sh.SetBytes(newHash)
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

// NewHashFromStr creates a Hash from a hex hash string.
func NewHashFromStr(hash string) (*Hash, error) {
	ret := new(Hash)
	err := Decode(ret, hash)
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// Decode decodes the hex string encoding of a hash into dst.
func Decode(dst *Hash, src string) error {
	if len(src) > MaxHashStringSize {
		return ErrHashStrSize
	}
	srcBytes, err := hex.DecodeString(src)
	if err != nil {
		return err
	}
	return dst.SetBytes(srcBytes)
}

// HashB calculates BLAKE2b-256 (BLAKE2-256) over b and returns the
// resulting bytes. This is the consensus hash function: block headers,
// vertex records and UTXO keys all derive from it.
func HashB(b []byte) []byte {
	h := blake2b.Sum256(b)
	return h[:]
}

// HashH calculates BLAKE2b-256 over b and returns the resulting Hash.
func HashH(b []byte) Hash {
	return Hash(blake2b.Sum256(b))
}

// Less reports whether hash sorts before other, used for deterministic
// ordering of otherwise-unordered hash sets (e.g. TXOC members).
func (hash Hash) Less(other Hash) bool {
	for i := HashSize - 1; i >= 0; i-- {
		if hash[i] != other[i] {
			return hash[i] < other[i]
		}
	}
	return false
}

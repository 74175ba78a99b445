// Copyright (c) 2014-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package store implements the Block Store: an append-only blk/vtx
// file pair plus a goleveldb KV index, per §4.1. The bucket-prefixed
// key scheme mirrors dbaccess's bucket convention (see
// github.com/kaspanet/kaspad/dbaccess in the retrieval pack), adapted
// from a per-concern accessor package into column prefixes over a
// single goleveldb handle.
package store

// Bucket is a named key namespace within the KV index, implemented as
// a byte-string prefix. The five buckets named in §4.1 are default,
// ms, utxo, reg, and info.
type Bucket struct {
	prefix []byte
}

// MakeBucket returns the Bucket identified by name.
func MakeBucket(name string) Bucket {
	return Bucket{prefix: append([]byte(name), ':')}
}

// Key prepends the bucket's prefix to suffix, returning the full
// goleveldb key.
func (b Bucket) Key(suffix []byte) []byte {
	key := make([]byte, 0, len(b.prefix)+len(suffix))
	key = append(key, b.prefix...)
	key = append(key, suffix...)
	return key
}

var (
	defaultBucket = MakeBucket("default")
	msBucket      = MakeBucket("ms")
	utxoBucket    = MakeBucket("utxo")
	regBucket     = MakeBucket("reg")
	infoBucket    = MakeBucket("info")
)

// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package pow implements the compact difficulty-target encoding shared
// by block headers, milestone snapshots, and the difficulty-adjustment
// algorithm.
package pow

import (
	"math/big"

	"github.com/epic-project/epicd/chainhash"
)

// CompactToBig converts a compact-form target (the Bitcoin-style
// "nBits" encoding: a 1-byte exponent and 3-byte mantissa) to its
// big.Int representation.
func CompactToBig(compact uint32) *big.Int {
	mantissa := compact & 0x007fffff
	isNegative := compact&0x00800000 != 0
	exponent := uint(compact >> 24)

	var bn *big.Int
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		bn = big.NewInt(int64(mantissa))
	} else {
		bn = big.NewInt(int64(mantissa))
		bn.Lsh(bn, 8*(exponent-3))
	}

	if isNegative {
		bn = bn.Neg(bn)
	}
	return bn
}

// BigToCompact converts a big.Int target to its compact-form
// representation. Bits below the mantissa are truncated, so the encoded
// target never exceeds n; when the mantissa would otherwise overflow
// its 23 significant bits it is shifted down one byte as well.
func BigToCompact(n *big.Int) uint32 {
	if n.Sign() == 0 {
		return 0
	}

	var mantissa uint32
	exponent := uint(len(n.Bytes()))
	if exponent <= 3 {
		mantissa = uint32(n.Bits()[0])
		mantissa <<= 8 * (3 - exponent)
	} else {
		tn := new(big.Int).Set(n)
		mantissa = uint32(tn.Rsh(tn, 8*(exponent-3)).Bits()[0])
	}

	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}

	compact := uint32(exponent<<24) | mantissa
	if n.Sign() < 0 {
		compact |= 0x00800000
	}
	return compact
}

// HashToBig interprets a hash as a 256-bit little-endian integer (the
// last byte is the most significant), for comparison against a target
// produced by CompactToBig.
func HashToBig(hash chainhash.Hash) *big.Int {
	var buf [chainhash.HashSize]byte
	for i := 0; i < chainhash.HashSize; i++ {
		buf[i] = hash[chainhash.HashSize-1-i]
	}
	return new(big.Int).SetBytes(buf[:])
}

// MeetsTarget reports whether hash, read as a little-endian integer,
// is numerically at or below the target encoded by compact.
func MeetsTarget(hash chainhash.Hash, compact uint32) bool {
	target := CompactToBig(compact)
	if target.Sign() <= 0 {
		return false
	}
	return HashToBig(hash).Cmp(target) <= 0
}

// ClampCompact rounds a target up to min or down to max (both in
// compact form) when it falls outside that range.
func ClampCompact(compact, min, max uint32) uint32 {
	t := CompactToBig(compact)
	if t.Cmp(CompactToBig(max)) > 0 {
		return max
	}
	if t.Cmp(CompactToBig(min)) < 0 {
		return min
	}
	return compact
}

// BigToFloat converts a target to a float64 approximation, used by
// the difficulty-adjustment hashrate estimate where big.Int precision
// is unnecessary and a plain float simplifies the arithmetic.
func BigToFloat(n *big.Int) float64 {
	f := new(big.Float).SetInt(n)
	v, _ := f.Float64()
	return v
}

// Work returns the amount of "work" represented by target bits: the
// number of hashes expected to produce a hash at or below the target,
// computed as 2^256 / (target + 1), matching the standard
// chainwork accounting used across the corpus.
func Work(compact uint32) *big.Int {
	target := CompactToBig(compact)
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}
	denom := new(big.Int).Add(target, big.NewInt(1))
	maxWork := new(big.Int).Lsh(big.NewInt(1), 256)
	return new(big.Int).Div(maxWork, denom)
}

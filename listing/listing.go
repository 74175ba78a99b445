// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package listing implements the simple signature-verification
// "listing" that gates spending a UTXO or redeeming a registration.
// This is a deliberately small stand-in for a general script engine:
// the specification scopes smart-contract execution out (§1
// Non-goals), so a listing is nothing more than a public key hash
// (the locking listing) and an ECDSA signature over the spending
// transaction (the signature listing).
package listing

import (
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/pkg/errors"
)

// LockingListing returns the locking listing bytes for a public key:
// the SHA-256 hash of its compressed serialization. A transaction
// output's LockingListing must equal this value for the matching
// public key to be allowed to spend it.
func LockingListing(pubKey *secp256k1.PublicKey) []byte {
	sum := sha256.Sum256(pubKey.SerializeCompressed())
	return sum[:]
}

// Verify checks that signatureListing is a valid, low-S ECDSA
// signature by the key encoded in publicKey over messageHash, and
// that publicKey hashes to lockingListing.
func Verify(lockingListing, signatureListing, publicKey, messageHash []byte) error {
	pubKey, err := secp256k1.ParsePubKey(publicKey)
	if err != nil {
		return errors.Wrap(err, "malformed public key")
	}

	got := LockingListing(pubKey)
	if !bytesEqual(got, lockingListing) {
		return errors.New("public key does not match locking listing")
	}

	sig, err := ecdsa.ParseDERSignature(signatureListing)
	if err != nil {
		return errors.Wrap(err, "malformed signature listing")
	}

	if !sig.Verify(messageHash, pubKey) {
		return errors.New("signature verification failed")
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

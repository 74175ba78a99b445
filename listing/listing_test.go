package listing

import (
	"crypto/sha256"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

func TestVerifyRoundTrip(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: unexpected error: %v", err)
	}
	pubKeyBytes := priv.PubKey().SerializeCompressed()
	lockingListing := LockingListing(priv.PubKey())

	msg := sha256.Sum256([]byte("redeem me"))
	sig := ecdsa.Sign(priv, msg[:])

	err = Verify(lockingListing, sig.Serialize(), pubKeyBytes, msg[:])
	if err != nil {
		t.Fatalf("Verify: unexpected error: %v", err)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	priv, _ := secp256k1.GeneratePrivateKey()
	other, _ := secp256k1.GeneratePrivateKey()

	lockingListing := LockingListing(other.PubKey())
	msg := sha256.Sum256([]byte("redeem me"))
	sig := ecdsa.Sign(priv, msg[:])

	err := Verify(lockingListing, sig.Serialize(), priv.PubKey().SerializeCompressed(), msg[:])
	if err == nil {
		t.Fatal("Verify: expected error for mismatched locking listing")
	}
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	priv, _ := secp256k1.GeneratePrivateKey()
	lockingListing := LockingListing(priv.PubKey())

	msg := sha256.Sum256([]byte("redeem me"))
	sig := ecdsa.Sign(priv, msg[:])

	tampered := sha256.Sum256([]byte("redeem me too"))
	err := Verify(lockingListing, sig.Serialize(), priv.PubKey().SerializeCompressed(), tampered[:])
	if err == nil {
		t.Fatal("Verify: expected error for tampered message")
	}
}

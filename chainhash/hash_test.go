package chainhash

import (
	"bytes"
	"testing"
)

func TestHashString(t *testing.T) {
	hash := Hash{0x01, 0x02, 0x03}
	if got := hash.String(); len(got) != MaxHashStringSize {
		t.Errorf("String: unexpected length: got %d want %d", len(got), MaxHashStringSize)
	}
}

func TestHashFromStrRoundTrip(t *testing.T) {
	h := HashH([]byte("epic"))
	str := h.String()

	h2, err := NewHashFromStr(str)
	if err != nil {
		t.Fatalf("NewHashFromStr: unexpected error: %v", err)
	}
	if !h.IsEqual(h2) {
		t.Errorf("round trip mismatch: got %s want %s", h2, h)
	}
}

func TestNewHashBadLength(t *testing.T) {
	_, err := NewHash([]byte{0x00, 0x01})
	if err == nil {
		t.Fatal("NewHash: expected error for short input")
	}
}

func TestHashBDeterministic(t *testing.T) {
	a := HashB([]byte("same input"))
	b := HashB([]byte("same input"))
	if !bytes.Equal(a, b) {
		t.Errorf("HashB is not deterministic: %x != %x", a, b)
	}
}

func TestHashLess(t *testing.T) {
	a := Hash{0x01}
	b := Hash{0x02}
	if !a.Less(b) {
		t.Errorf("expected %v < %v", a, b)
	}
	if b.Less(a) {
		t.Errorf("expected %v !< %v", b, a)
	}
}

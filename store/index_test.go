package store

import (
	"testing"

	"github.com/epic-project/epicd/chainhash"
)

func TestIndexDefaultRoundTrip(t *testing.T) {
	idx, err := OpenIndex(t.TempDir())
	if err != nil {
		t.Fatalf("OpenIndex: unexpected error: %v", err)
	}
	defer idx.Close()

	hash := chainhash.HashH([]byte("block"))
	entry := DefaultEntry{Height: 5, BlkPos: FilePos{1, 2, 3}, VtxPos: FilePos{4, 5, 6}}
	if err := idx.PutDefault(hash, entry); err != nil {
		t.Fatalf("PutDefault: unexpected error: %v", err)
	}

	got, err := idx.GetDefault(hash)
	if err != nil {
		t.Fatalf("GetDefault: unexpected error: %v", err)
	}
	if got != entry {
		t.Fatalf("GetDefault = %+v, want %+v", got, entry)
	}
}

func TestIndexMSDeleteAbove(t *testing.T) {
	idx, err := OpenIndex(t.TempDir())
	if err != nil {
		t.Fatalf("OpenIndex: unexpected error: %v", err)
	}
	defer idx.Close()

	for h := uint64(1); h <= 5; h++ {
		entry := MSEntry{Hash: chainhash.HashH([]byte{byte(h)})}
		if err := idx.PutMS(h, entry); err != nil {
			t.Fatalf("PutMS(%d): unexpected error: %v", h, err)
		}
	}

	if err := idx.DeleteMSAbove(3); err != nil {
		t.Fatalf("DeleteMSAbove: unexpected error: %v", err)
	}

	if _, err := idx.GetMS(3); err != nil {
		t.Fatalf("expected height 3 to remain, got error: %v", err)
	}
	if _, err := idx.GetMS(4); err == nil {
		t.Fatal("expected height 4 to be deleted")
	}
}

func TestIndexUTXORoundTrip(t *testing.T) {
	idx, err := OpenIndex(t.TempDir())
	if err != nil {
		t.Fatalf("OpenIndex: unexpected error: %v", err)
	}
	defer idx.Close()

	var key [chainhash.HashSize]byte
	copy(key[:], chainhash.HashH([]byte("k"))[:])
	raw := []byte{1, 2, 3}

	if err := idx.PutUTXO(key, raw); err != nil {
		t.Fatalf("PutUTXO: unexpected error: %v", err)
	}
	got, err := idx.GetUTXO(key)
	if err != nil {
		t.Fatalf("GetUTXO: unexpected error: %v", err)
	}
	if string(got) != string(raw) {
		t.Fatalf("GetUTXO = %v, want %v", got, raw)
	}

	if err := idx.DeleteUTXO(key); err != nil {
		t.Fatalf("DeleteUTXO: unexpected error: %v", err)
	}
	if _, err := idx.GetUTXO(key); err == nil {
		t.Fatal("expected GetUTXO to fail after delete")
	}
}

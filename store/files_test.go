package store

import "testing"

func TestFileFamilyWriteAndReadBack(t *testing.T) {
	dir := t.TempDir()
	ff, err := OpenFileFamily(dir, 0, 0)
	if err != nil {
		t.Fatalf("OpenFileFamily: unexpected error: %v", err)
	}
	defer ff.Close()

	data := []byte("hello level set")
	pos, err := ff.Write(data)
	if err != nil {
		t.Fatalf("Write: unexpected error: %v", err)
	}

	got, err := ff.ReadAt(pos, uint32(len(data)))
	if err != nil {
		t.Fatalf("ReadAt: unexpected error: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("ReadAt = %q, want %q", got, data)
	}
}

func TestFileFamilyRollsOverAtCapacity(t *testing.T) {
	dir := t.TempDir()
	ff, err := OpenFileFamily(dir, 16, 10)
	if err != nil {
		t.Fatalf("OpenFileFamily: unexpected error: %v", err)
	}
	defer ff.Close()

	if _, err := ff.Write(make([]byte, 10)); err != nil {
		t.Fatalf("Write: unexpected error: %v", err)
	}
	pos, err := ff.Write(make([]byte, 10))
	if err != nil {
		t.Fatalf("Write: unexpected error: %v", err)
	}
	if pos.FileNum != 1 {
		t.Fatalf("expected rollover to file 1, got file %d", pos.FileNum)
	}
}

func TestFileFamilyChecksumVerifiesAfterSeal(t *testing.T) {
	dir := t.TempDir()
	ff, err := OpenFileFamily(dir, 0, 0)
	if err != nil {
		t.Fatalf("OpenFileFamily: unexpected error: %v", err)
	}
	if _, err := ff.Write([]byte("payload")); err != nil {
		t.Fatalf("Write: unexpected error: %v", err)
	}
	if err := ff.Seal(); err != nil {
		t.Fatalf("Seal: unexpected error: %v", err)
	}
	ok, err := ff.VerifyChecksum(0, 0)
	if err != nil {
		t.Fatalf("VerifyChecksum: unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected checksum to verify after Seal")
	}
}

package mem

import (
	"bytes"
	"testing"

	"github.com/merkletrie/mpt/storage"
)

func TestPutGetDelete(t *testing.T) {
	db := New()

	key, val := []byte("digest"), []byte("encoded-node")
	if err := db.Put(key, val); err != nil {
		t.Fatal(err)
	}

	got, err := db.Get(key)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, val) {
		t.Errorf("got %q, want %q", got, val)
	}

	ok, err := db.Has(key)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected Has to report true")
	}

	if err := db.Delete(key); err != nil {
		t.Fatal(err)
	}
	ok, err = db.Has(key)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected Has to report false after delete")
	}
}

func TestGetMissingReturnsErrNotFound(t *testing.T) {
	db := New()
	_, err := db.Get([]byte("absent"))
	if err != storage.ErrNotFound {
		t.Errorf("got %v, want storage.ErrNotFound", err)
	}
}

func TestDeleteMissingIsNotAnError(t *testing.T) {
	db := New()
	if err := db.Delete([]byte("absent")); err != nil {
		t.Errorf("deleting an absent key should be a no-op, got %v", err)
	}
}

func TestPutCopiesValue(t *testing.T) {
	db := New()
	val := []byte("mutable")
	if err := db.Put([]byte("k"), val); err != nil {
		t.Fatal(err)
	}
	val[0] = 'M'
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(got, val) {
		t.Error("store should not alias the caller's slice")
	}
}

func TestBatch(t *testing.T) {
	db := New()
	must(t, db.Put([]byte("keep"), []byte("v1")))

	b := db.NewBatch()
	must(t, b.Put([]byte("new"), []byte("v2")))
	must(t, b.Delete([]byte("keep")))
	if b.ValueSize() == 0 {
		t.Error("expected non-zero ValueSize after queuing writes")
	}
	must(t, b.Write())

	if ok, _ := db.Has([]byte("keep")); ok {
		t.Error("expected \"keep\" removed after batch write")
	}
	got, err := db.Get([]byte("new"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("v2")) {
		t.Errorf("got %q, want %q", got, "v2")
	}

	b.Reset()
	if b.ValueSize() != 0 {
		t.Error("expected ValueSize 0 after Reset")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

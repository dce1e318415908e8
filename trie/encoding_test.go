package trie

import (
	"bytes"
	"testing"
)

func TestBytesToNibblesRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x00},
		{0xff},
		[]byte("do"),
		[]byte("verb"),
		{0x12, 0x34, 0x56, 0x78},
	}
	for _, s := range cases {
		nibbles := bytesToNibbles(s)
		if len(nibbles) != len(s)*2 {
			t.Fatalf("bytesToNibbles(%x): got %d nibbles, want %d", s, len(nibbles), len(s)*2)
		}
		back, err := hexToKeybytes(nibbles)
		if err != nil {
			t.Fatalf("hexToKeybytes(%x): %v", nibbles, err)
		}
		if !bytes.Equal(back, s) {
			t.Errorf("round trip failed for %x: got %x", s, back)
		}
	}
}

func TestHexToKeybytesOddLength(t *testing.T) {
	_, err := hexToKeybytes([]byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected an error for an odd-length nibble sequence")
	}
	terr, ok := err.(*Error)
	if !ok || terr.Kind != InvalidNibbles {
		t.Fatalf("expected InvalidNibbles error, got %v", err)
	}
}

func TestHexToCompactRoundTrip(t *testing.T) {
	cases := []struct {
		hex    []byte
		isLeaf bool
	}{
		{[]byte{1, 2, 3, 4, 5}, false},
		{[]byte{1, 2, 3, 4}, false},
		{[]byte{0, 1}, true},
		{[]byte{}, true},
		{[]byte{0xf}, false},
	}
	for _, c := range cases {
		hex := append([]byte(nil), c.hex...)
		if c.isLeaf {
			hex = withTerminator(hex)
		}
		packed := hexToCompact(hex)
		unpacked := compactToHex(packed)
		if !bytes.Equal(unpacked, hex) {
			t.Errorf("hexToCompact/compactToHex round trip failed: got %v, want %v", unpacked, hex)
		}
		if hasTerm(unpacked) != c.isLeaf {
			t.Errorf("terminator flag lost for %v", c.hex)
		}
	}
}

func TestPrefixLen(t *testing.T) {
	if got := prefixLen([]byte{1, 2, 3}, []byte{1, 2, 4}); got != 2 {
		t.Errorf("prefixLen: got %d, want 2", got)
	}
	if got := prefixLen([]byte{}, []byte{1}); got != 0 {
		t.Errorf("prefixLen on empty: got %d, want 0", got)
	}
	if got := prefixLen([]byte{1, 2}, []byte{1, 2}); got != 2 {
		t.Errorf("prefixLen on equal slices: got %d, want 2", got)
	}
}

func TestHasPrefix(t *testing.T) {
	if !hasPrefix([]byte{1, 2, 3}, []byte{1, 2}) {
		t.Error("expected prefix match")
	}
	if hasPrefix([]byte{1, 2}, []byte{1, 2, 3}) {
		t.Error("shorter full should not match longer prefix")
	}
}

func TestWithAndWithoutTerminator(t *testing.T) {
	plain := []byte{1, 2, 3}
	term := withTerminator(plain)
	if !hasTerm(term) {
		t.Fatal("withTerminator did not add terminator")
	}
	if !bytes.Equal(withoutTerminator(term), plain) {
		t.Fatal("withoutTerminator did not recover original")
	}
	if !bytes.Equal(withoutTerminator(plain), plain) {
		t.Fatal("withoutTerminator on already-bare slice mutated it")
	}
}

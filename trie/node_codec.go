package trie

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// hashLen is the digest size produced by crypto.Keccak256.
const hashLen = 32

// childRLP returns the RLP encoding a ref (the value stored in a parent's
// child slot) contributes to the parent's own encoding: an empty string for
// a blank slot, the raw bytes for a hash or value reference, or a nested
// list for an inline-embedded node.
func childRLP(ref node) ([]byte, error) {
	switch r := ref.(type) {
	case nil:
		return rlp.EncodeToBytes([]byte{})
	case hashNode:
		return rlp.EncodeToBytes([]byte(r))
	case valueNode:
		return rlp.EncodeToBytes([]byte(r))
	case *shortNode, *fullNode:
		return encodeToRLP(r)
	default:
		return nil, fmt.Errorf("childRLP: unexpected ref type %T", ref)
	}
}

// encodeToRLP produces the canonical RLP encoding of a decoded node. This
// is the "encoding" that invariant I4 content-addresses.
func encodeToRLP(n node) ([]byte, error) {
	switch n := n.(type) {
	case nil:
		return rlp.EncodeToBytes([]byte{})
	case *shortNode:
		valRef, err := childRLP(n.Val)
		if err != nil {
			return nil, err
		}
		return rlp.EncodeToBytes(rawShortNode{Key: hexToCompact(n.Key), Val: valRef})
	case *fullNode:
		var raw rawFullNode
		for i := 0; i < 17; i++ {
			ref, err := childRLP(n.Children[i])
			if err != nil {
				return nil, err
			}
			raw.Children[i] = ref
		}
		return rlp.EncodeToBytes(raw)
	default:
		return nil, fmt.Errorf("encodeToRLP: unexpected node type %T", n)
	}
}

// encodeNode is the node codec's mediation point with the backing store: it
// turns a decoded node into its ref form, writing the node to the store and
// substituting its digest whenever the encoding is 32 bytes or larger, and
// returning the node itself (to be embedded inline in its parent) when the
// encoding is smaller. A nil (BLANK) node maps to a nil ref, never stored.
func (t *Trie) encodeNode(n node) (node, error) {
	if n == nil {
		return nil, nil
	}
	enc, err := encodeToRLP(n)
	if err != nil {
		return nil, err
	}
	if len(enc) < hashLen {
		return n, nil
	}
	hash := crypto.Keccak256(enc)
	if err := t.store.Put(hash, enc); err != nil {
		return nil, wrapCorrupt(err, "write node")
	}
	return hashNode(hash), nil
}

// deleteNodeStorage removes a node's storage entry, if it has one. n may
// be either an already-resolved node value or a bare hashNode ref (the
// digest is then used directly, with no need to re-encode). Nodes whose
// encoding is under 32 bytes were never written to the store (they live
// inline in their parent), so this is then a no-op.
func (t *Trie) deleteNodeStorage(n node) error {
	if n == nil {
		return nil
	}
	if hn, ok := n.(hashNode); ok {
		if err := t.store.Delete([]byte(hn)); err != nil {
			return wrapCorrupt(err, "delete node")
		}
		return nil
	}
	enc, err := encodeToRLP(n)
	if err != nil {
		return err
	}
	if len(enc) < hashLen {
		return nil
	}
	hash := crypto.Keccak256(enc)
	if err := t.store.Delete(hash); err != nil {
		return wrapCorrupt(err, "delete node")
	}
	return nil
}

// decodeRef resolves a ref (as stored in a parent's child slot) into an
// actual node value: BLANK stays BLANK, an inline node is already decoded,
// and a hash ref is fetched from the backing store and RLP-decoded.
func (t *Trie) decodeRef(ref node) (node, error) {
	switch r := ref.(type) {
	case nil:
		return nil, nil
	case hashNode:
		enc, err := t.store.Get([]byte(r))
		if err != nil {
			return nil, wrapCorrupt(err, fmt.Sprintf("load node %x", []byte(r)))
		}
		n, err := decodeNode(enc)
		if err != nil {
			return nil, wrapCorrupt(err, fmt.Sprintf("decode node %x", []byte(r)))
		}
		return n, nil
	case *shortNode, *fullNode:
		return r, nil
	default:
		return nil, fmt.Errorf("decodeRef: unexpected ref type %T", ref)
	}
}

// refEqual reports whether two refs denote the same child value, used by
// the storage-tracking wrappers (swapRoot, updateChild,
// insertExtensionChild) and by deleteNode to decide whether a recursive
// mutation actually touched anything.
func refEqual(a, b node) (bool, error) {
	ab, err := childRLP(a)
	if err != nil {
		return false, err
	}
	bb, err := childRLP(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ab, bb), nil
}

// decodeNode parses the RLP encoding of a trie node (a 2-list for a
// leaf/extension, a 17-list for a branch).
func decodeNode(buf []byte) (node, error) {
	if len(buf) == 0 {
		return nil, io.ErrUnexpectedEOF
	}
	elems, _, err := rlp.SplitList(buf)
	if err != nil {
		return nil, fmt.Errorf("decode error: %w", err)
	}
	switch c, _ := rlp.CountValues(elems); c {
	case 2:
		return decodeShort(elems)
	case 17:
		return decodeFull(elems)
	default:
		return nil, fmt.Errorf("invalid number of list elements: %d", c)
	}
}

func decodeShort(elems []byte) (node, error) {
	kbuf, rest, err := rlp.SplitString(elems)
	if err != nil {
		return nil, err
	}
	key := compactToHex(kbuf)
	if hasTerm(key) {
		val, _, err := rlp.SplitString(rest)
		if err != nil {
			return nil, fmt.Errorf("invalid leaf value: %w", err)
		}
		return &shortNode{Key: key, Val: valueNode(val)}, nil
	}
	ref, _, err := decodeRefBytes(rest)
	if err != nil {
		return nil, fmt.Errorf("invalid extension child: %w", err)
	}
	return &shortNode{Key: key, Val: ref}, nil
}

func decodeFull(elems []byte) (*fullNode, error) {
	n := &fullNode{}
	for i := 0; i < 16; i++ {
		cld, rest, err := decodeRefBytes(elems)
		if err != nil {
			return n, fmt.Errorf("invalid branch child [%d]: %w", i, err)
		}
		n.Children[i], elems = cld, rest
	}
	val, _, err := rlp.SplitString(elems)
	if err != nil {
		return n, err
	}
	if len(val) > 0 {
		n.Children[16] = valueNode(val)
	}
	return n, nil
}

// decodeRefBytes parses one ref element out of an RLP element stream,
// returning the decoded ref and the remaining stream.
func decodeRefBytes(buf []byte) (node, []byte, error) {
	kind, val, rest, err := rlp.Split(buf)
	if err != nil {
		return nil, buf, err
	}
	switch {
	case kind == rlp.List:
		size := len(buf) - len(rest)
		if size >= hashLen {
			return nil, buf, fmt.Errorf("oversized embedded node (%d bytes, want <%d)", size, hashLen)
		}
		n, err := decodeNode(buf[:size])
		return n, rest, err
	case kind == rlp.String && len(val) == 0:
		return nil, rest, nil
	case kind == rlp.String && len(val) == hashLen:
		return hashNode(val), rest, nil
	default:
		return nil, nil, fmt.Errorf("invalid RLP string size %d (want 0 or %d)", len(val), hashLen)
	}
}

// Package trie implements a persistent, hash-addressed Merkle Patricia
// Trie over a pluggable backing store (see the storage package). Nodes
// are content-addressed: any encoding 32 bytes or larger is written to
// the store under the Keccak256 digest of its RLP encoding, and shorter
// encodings are embedded inline in their parent.
package trie

import (
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/merkletrie/mpt/storage"
)

// maxKeyLen is the largest key the public surface accepts.
const maxKeyLen = 32

// Trie is a Merkle Patricia Trie bound to a backing store and a root
// node reference. It is not safe for concurrent use; callers serialize
// access externally.
type Trie struct {
	store storage.Store
	root  node
}

// New opens a trie rooted at rootHash. An empty rootHash (or nil)
// yields an empty trie. A non-empty rootHash that is absent from store
// is not detected until the first traversal, which then fails with a
// CorruptStore error.
func New(store storage.Store, rootHash []byte) (*Trie, error) {
	t := &Trie{store: store}
	if len(rootHash) == 0 {
		return t, nil
	}
	t.root = hashNode(append([]byte(nil), rootHash...))
	return t, nil
}

// NewEmpty opens an empty trie over store.
func NewEmpty(store storage.Store) *Trie {
	return &Trie{store: store}
}

// Get returns the value stored under key, or nil if key is absent.
func (t *Trie) Get(key []byte) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	v, err := t.lookup(t.root, bytesToNibbles(key))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return []byte(v.(valueNode)), nil
}

// Contains reports whether key is present.
func (t *Trie) Contains(key []byte) (bool, error) {
	v, err := t.Get(key)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// lookup descends n along path, resolving child refs through the store
// as needed. It returns a valueNode, or nil if path is absent.
func (t *Trie) lookup(n node, path []byte) (node, error) {
	switch n := n.(type) {
	case nil:
		return nil, nil
	case hashNode:
		resolved, err := t.decodeRef(n)
		if err != nil {
			return nil, err
		}
		return t.lookup(resolved, path)
	case valueNode:
		return n, nil
	case *shortNode:
		key := withoutTerminator(n.Key)
		if classify(n) == kindLeaf {
			if !bytesEqual(path, key) {
				return nil, nil
			}
			return t.resolveLeafValue(n.Val)
		}
		if !hasPrefix(path, key) {
			return nil, nil
		}
		child, err := t.decodeRef(n.Val)
		if err != nil {
			return nil, err
		}
		return t.lookup(child, path[len(key):])
	case *fullNode:
		if len(path) == 0 {
			return t.resolveLeafValue(n.Children[16])
		}
		child, err := t.decodeRef(n.Children[path[0]])
		if err != nil {
			return nil, err
		}
		return t.lookup(child, path[1:])
	default:
		return nil, assertionFailure("lookup: unexpected node type %T", n)
	}
}

func (t *Trie) resolveLeafValue(v node) (node, error) {
	if v == nil {
		return nil, nil
	}
	if vn, ok := v.(valueNode); ok {
		return vn, nil
	}
	return nil, assertionFailure("lookup: leaf/branch value slot holds non-value node %T", v)
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

// Update sets key to value. An empty value behaves as Delete(key).
func (t *Trie) Update(key, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if len(value) == 0 {
		return t.Delete(key)
	}
	newRoot, err := t.insertNode(t.root, bytesToNibbles(key), valueNode(append([]byte(nil), value...)))
	if err != nil {
		return err
	}
	return t.swapRoot(newRoot)
}

// swapRoot installs newRoot in place of t.root, deleting the old root's
// storage entry (if it had one and differs from the new one).
func (t *Trie) swapRoot(newRoot node) error {
	old := t.root
	eq, err := refEqual(old, newRoot)
	if err != nil {
		return err
	}
	if hn, ok := old.(hashNode); ok && !eq && newRoot != nil {
		// The old root may be held as a hash (after RootHash or New) while
		// newRoot is the same node in decoded form.
		if _, isHash := newRoot.(hashNode); !isHash {
			enc, err := encodeToRLP(newRoot)
			if err != nil {
				return err
			}
			eq = bytesEqual(crypto.Keccak256(enc), hn)
		}
	}
	t.root = newRoot
	if !eq {
		if err := t.deleteNodeStorage(old); err != nil {
			return err
		}
	}
	return t.store.Commit()
}

// insertNode is the recursive insert transformation (spec §4.5). It is
// never called with value == nil; callers route empty values to delete.
func (t *Trie) insertNode(n node, path []byte, value valueNode) (node, error) {
	resolved, err := t.decodeRef(n)
	if err != nil {
		return nil, err
	}
	switch cn := resolved.(type) {
	case nil:
		return &shortNode{Key: withTerminator(path), Val: value}, nil

	case *fullNode:
		cp := cn.copy()
		if len(path) == 0 {
			cp.Children[16] = value
			return cp, nil
		}
		k0 := path[0]
		child, err := t.decodeRef(cp.Children[k0])
		if err != nil {
			return nil, err
		}
		newChild, err := t.insertNode(child, path[1:], value)
		if err != nil {
			return nil, err
		}
		if err := t.updateChild(&cp.Children[k0], child, newChild); err != nil {
			return nil, err
		}
		return cp, nil

	case *shortNode:
		return t.insertShort(cn, path, value)

	default:
		return nil, assertionFailure("insertNode: unexpected node type %T", resolved)
	}
}

// updateChild replaces slot's current ref with the encoded form of
// newChild, deleting oldChild's storage entry if the ref actually
// changed.
func (t *Trie) updateChild(slot *node, oldChild, newChild node) error {
	encoded, err := t.encodeNode(newChild)
	if err != nil {
		return err
	}
	eq, err := refEqual(*slot, encoded)
	if err != nil {
		return err
	}
	*slot = encoded
	if !eq {
		return t.deleteNodeStorage(oldChild)
	}
	return nil
}

// insertExtensionChild recurses the insert into an EXTENSION's child
// (cases A and B of §4.5.1 when is_ext), cleaning up the child's old
// storage entry if the recursion produced a different ref. It returns
// the raw recursive result, unwrapped: the caller's common prefix-wrap
// step (over curr[:p], which for both these cases equals the whole of
// curr) reconstructs the extension around it.
func (t *Trie) insertExtensionChild(n *shortNode, rest []byte, value valueNode) (node, error) {
	oldRef := n.Val
	child, err := t.decodeRef(oldRef)
	if err != nil {
		return nil, err
	}
	sub, err := t.insertNode(child, rest, value)
	if err != nil {
		return nil, err
	}
	enc, err := t.encodeNode(sub)
	if err != nil {
		return nil, err
	}
	eq, err := refEqual(oldRef, enc)
	if err != nil {
		return nil, err
	}
	if !eq {
		if err := t.deleteNodeStorage(child); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

// insertShort implements the kv-node update cases of spec §4.5.1 for a
// LEAF or EXTENSION node n.
func (t *Trie) insertShort(n *shortNode, path []byte, value valueNode) (node, error) {
	isExt := classify(n) == kindExtension
	curr := withoutTerminator(n.Key)
	p := prefixLen(curr, path)
	rk := path[p:]
	rc := curr[p:]

	var newSub node
	var err error

	switch {
	case len(rk) == 0 && len(rc) == 0:
		// Case A: paths equal. For a LEAF this is a plain overwrite and
		// must return directly — it is not a branch-assembly
		// intermediate, so it must not go through the p>0 prefix wrap
		// below (that would double the path onto itself).
		if !isExt {
			return &shortNode{Key: n.Key, Val: value}, nil
		}
		newSub, err = t.insertExtensionChild(n, nil, value)

	case len(rc) == 0:
		// Case B: old path exhausted, new path continues.
		if isExt {
			newSub, err = t.insertExtensionChild(n, rk, value)
		} else {
			branch := &fullNode{}
			branch.Children[16] = n.Val
			leaf := &shortNode{Key: withTerminator(rk[1:]), Val: value}
			enc, eerr := t.encodeNode(leaf)
			if eerr != nil {
				return nil, eerr
			}
			branch.Children[rk[0]] = enc
			newSub = branch
		}

	default:
		// Case C: diverges (rc != []).
		branch := &fullNode{}
		if len(rc) == 1 && isExt {
			branch.Children[rc[0]] = n.Val
		} else {
			preserved := &shortNode{Key: adaptTerminator(rc[1:], !isExt), Val: n.Val}
			enc, eerr := t.encodeNode(preserved)
			if eerr != nil {
				return nil, eerr
			}
			branch.Children[rc[0]] = enc
		}
		if len(rk) == 0 {
			branch.Children[16] = value
		} else {
			leaf := &shortNode{Key: withTerminator(rk[1:]), Val: value}
			enc, eerr := t.encodeNode(leaf)
			if eerr != nil {
				return nil, eerr
			}
			branch.Children[rk[0]] = enc
		}
		newSub = branch
	}

	if err != nil {
		return nil, err
	}

	if p == 0 {
		return newSub, nil
	}
	enc, err := t.encodeNode(newSub)
	if err != nil {
		return nil, err
	}
	return &shortNode{Key: curr[:p], Val: enc}, nil
}

// Delete removes key, if present. Deleting an absent key is a no-op
// that leaves the root hash unchanged.
func (t *Trie) Delete(key []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	newRoot, err := t.deleteNode(t.root, bytesToNibbles(key))
	if err != nil {
		return err
	}
	return t.swapRoot(newRoot)
}

// deleteNode is the recursive delete transformation (spec §4.6).
func (t *Trie) deleteNode(n node, path []byte) (node, error) {
	resolved, err := t.decodeRef(n)
	if err != nil {
		return nil, err
	}
	switch cn := resolved.(type) {
	case nil:
		return nil, nil

	case *shortNode:
		if classify(cn) == kindLeaf {
			if bytesEqual(withoutTerminator(cn.Key), path) {
				return nil, nil
			}
			return cn, nil
		}
		curr := cn.Key
		if !hasPrefix(path, curr) {
			return cn, nil
		}
		child, derr := t.decodeRef(cn.Val)
		if derr != nil {
			return nil, derr
		}
		newSub, derr := t.deleteNode(child, path[len(curr):])
		if derr != nil {
			return nil, derr
		}
		enc, eerr := t.encodeNode(newSub)
		if eerr != nil {
			return nil, eerr
		}
		eq, eerr := refEqual(cn.Val, enc)
		if eerr != nil {
			return nil, eerr
		}
		if eq {
			return cn, nil
		}
		if err := t.deleteNodeStorage(child); err != nil {
			return nil, err
		}
		if newSub == nil {
			return nil, nil
		}
		switch sub := newSub.(type) {
		case *shortNode:
			mergedKey := append(append([]byte(nil), curr...), sub.Key...)
			return &shortNode{Key: mergedKey, Val: sub.Val}, nil
		case *fullNode:
			return &shortNode{Key: append([]byte(nil), curr...), Val: enc}, nil
		default:
			return nil, assertionFailure("deleteNode: extension child collapsed to unexpected type %T", sub)
		}

	case *fullNode:
		cp := cn.copy()
		if len(path) == 0 {
			cp.Children[16] = nil
			return t.normalizeBranch(cp)
		}
		k0 := path[0]
		child, derr := t.decodeRef(cp.Children[k0])
		if derr != nil {
			return nil, derr
		}
		newSub, derr := t.deleteNode(child, path[1:])
		if derr != nil {
			return nil, derr
		}
		enc, eerr := t.encodeNode(newSub)
		if eerr != nil {
			return nil, eerr
		}
		eq, eerr := refEqual(cp.Children[k0], enc)
		if eerr != nil {
			return nil, eerr
		}
		if eq {
			return cn, nil
		}
		if err := t.deleteNodeStorage(child); err != nil {
			return nil, err
		}
		cp.Children[k0] = enc
		if enc == nil {
			return t.normalizeBranch(cp)
		}
		return cp, nil

	default:
		return nil, assertionFailure("deleteNode: unexpected node type %T", resolved)
	}
}

// normalizeBranch enforces I2: a branch surviving with fewer than two
// non-blank slots is collapsed into a single kv node (or, if only the
// value slot survives, a zero-length-path leaf).
func (t *Trie) normalizeBranch(n *fullNode) (node, error) {
	count, idx := 0, -1
	for i := 0; i < 17; i++ {
		if n.Children[i] != nil {
			count++
			idx = i
		}
	}
	switch {
	case count == 0:
		return nil, assertionFailure("normalizeBranch: branch with zero live slots")
	case count >= 2:
		return n, nil
	}

	if idx == 16 {
		val, ok := n.Children[16].(valueNode)
		if !ok {
			return nil, assertionFailure("normalizeBranch: value slot holds non-value node %T", n.Children[16])
		}
		return &shortNode{Key: withTerminator(nil), Val: val}, nil
	}

	child, err := t.decodeRef(n.Children[idx])
	if err != nil {
		return nil, err
	}
	switch c := child.(type) {
	case *shortNode:
		mergedKey := append([]byte{byte(idx)}, c.Key...)
		return &shortNode{Key: mergedKey, Val: c.Val}, nil
	case *fullNode:
		enc, err := t.encodeNode(c)
		if err != nil {
			return nil, err
		}
		return &shortNode{Key: []byte{byte(idx)}, Val: enc}, nil
	case nil:
		return nil, assertionFailure("normalizeBranch: surviving slot %d resolves to BLANK", idx)
	default:
		return nil, assertionFailure("normalizeBranch: unexpected child type %T", child)
	}
}

// RootHash returns the 32-byte digest of the root node's encoding, or
// nil if the trie is empty. Unlike an ordinary child ref, the root is
// always hashed and (re-)written to the store regardless of its
// encoded size, even when that encoding would otherwise be small
// enough to inline: this is what lets a fresh trie be recovered later
// from its root hash alone.
func (t *Trie) RootHash() ([]byte, error) {
	if t.root == nil {
		return nil, nil
	}
	resolved, err := t.decodeRef(t.root)
	if err != nil {
		return nil, err
	}
	enc, err := encodeToRLP(resolved)
	if err != nil {
		return nil, err
	}
	hash := crypto.Keccak256(enc)
	if err := t.store.Put(hash, enc); err != nil {
		return nil, wrapCorrupt(err, "write root")
	}
	t.root = hashNode(hash)
	return append([]byte(nil), hash...), nil
}

// RootHashValid reports whether the root is BLANK or, when the root is
// held as a hash reference (after RootHash, or New with a non-empty
// hash), whether that hash is present in the backing store. A root held
// as a decoded node (after Update or Delete) is reported valid without a
// store lookup; such a root is written to the store only by RootHash.
func (t *Trie) RootHashValid() (bool, error) {
	if t.root == nil {
		return true, nil
	}
	hn, ok := t.root.(hashNode)
	if !ok {
		// Root held as a decoded node: reported valid, no store lookup.
		return true, nil
	}
	return t.store.Has([]byte(hn))
}

// Len returns the number of key/value pairs stored.
func (t *Trie) Len() (int, error) {
	return t.countNode(t.root)
}

func (t *Trie) countNode(n node) (int, error) {
	resolved, err := t.decodeRef(n)
	if err != nil {
		return 0, err
	}
	switch cn := resolved.(type) {
	case nil:
		return 0, nil
	case *shortNode:
		if hasTerm(cn.Key) {
			return 1, nil
		}
		child, err := t.decodeRef(cn.Val)
		if err != nil {
			return 0, err
		}
		return t.countNode(child)
	case *fullNode:
		total := 0
		for i := 0; i < 16; i++ {
			child, err := t.decodeRef(cn.Children[i])
			if err != nil {
				return 0, err
			}
			n, err := t.countNode(child)
			if err != nil {
				return 0, err
			}
			total += n
		}
		if cn.Children[16] != nil {
			total++
		}
		return total, nil
	default:
		return 0, assertionFailure("countNode: unexpected node type %T", resolved)
	}
}

// ToMap gathers every key/value pair reachable from the root.
func (t *Trie) ToMap() (map[string][]byte, error) {
	out := make(map[string][]byte)
	if err := t.collect(t.root, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Trie) collect(n node, pathPrefix []byte, out map[string][]byte) error {
	resolved, err := t.decodeRef(n)
	if err != nil {
		return err
	}
	switch cn := resolved.(type) {
	case nil:
		return nil
	case *shortNode:
		full := append(append([]byte(nil), pathPrefix...), withoutTerminator(cn.Key)...)
		if hasTerm(cn.Key) {
			key, err := hexToKeybytes(withTerminator(full))
			if err != nil {
				return err
			}
			out[string(key)] = []byte(cn.Val.(valueNode))
			return nil
		}
		child, err := t.decodeRef(cn.Val)
		if err != nil {
			return err
		}
		return t.collect(child, full, out)
	case *fullNode:
		for i := 0; i < 16; i++ {
			child, err := t.decodeRef(cn.Children[i])
			if err != nil {
				return err
			}
			if err := t.collect(child, append(append([]byte(nil), pathPrefix...), byte(i)), out); err != nil {
				return err
			}
		}
		if cn.Children[16] != nil {
			key, err := hexToKeybytes(withTerminator(pathPrefix))
			if err != nil {
				return err
			}
			out[string(key)] = []byte(cn.Children[16].(valueNode))
		}
		return nil
	default:
		return assertionFailure("collect: unexpected node type %T", resolved)
	}
}

// Clear removes every reachable node's storage entry, commits, and
// resets the trie to empty.
func (t *Trie) Clear() error {
	if err := t.clearNode(t.root); err != nil {
		return err
	}
	t.root = nil
	return t.store.Commit()
}

func (t *Trie) clearNode(n node) error {
	resolved, err := t.decodeRef(n)
	if err != nil {
		return err
	}
	switch cn := resolved.(type) {
	case nil:
		return nil
	case *shortNode:
		if !hasTerm(cn.Key) {
			child, err := t.decodeRef(cn.Val)
			if err != nil {
				return err
			}
			if err := t.clearNode(child); err != nil {
				return err
			}
		}
	case *fullNode:
		for i := 0; i < 16; i++ {
			child, err := t.decodeRef(cn.Children[i])
			if err != nil {
				return err
			}
			if err := t.clearNode(child); err != nil {
				return err
			}
		}
	default:
		return assertionFailure("clearNode: unexpected node type %T", resolved)
	}
	return t.deleteNodeStorage(n)
}

func validateKey(key []byte) error {
	if len(key) > maxKeyLen {
		return invalidInput("key length %d exceeds maximum of %d bytes", len(key), maxKeyLen)
	}
	return nil
}

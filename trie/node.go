package trie

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// node is the interface implemented by every trie node shape. Unlike the
// geth-style trie, nodes here carry no cache/dirty bookkeeping: every
// mutation re-encodes and re-stores eagerly (see node_codec.go), so there
// is nothing to keep cached between calls.
type node interface {
	fstring(string) string
}

// fullNode is a BRANCH: 16 children indexed by the next nibble of the key,
// plus a 17th slot holding the value (if any) for the key that ends here.
type fullNode struct {
	Children [17]node
}

// shortNode is either an EXTENSION or a LEAF, distinguished by whether Key
// (a hex nibble sequence) carries the terminator. Val is a child node
// reference for an extension, or a valueNode for a leaf.
type shortNode struct {
	Key []byte
	Val node
}

// hashNode is a content-addressed reference: the Keccak digest of a node's
// RLP encoding, used whenever that encoding is 32 bytes or larger.
type hashNode []byte

// valueNode is a raw stored value. It is never itself content-addressed;
// it only ever appears embedded inside a shortNode or in a fullNode's
// 17th slot.
type valueNode []byte

func (n *fullNode) copy() *fullNode {
	cp := *n
	return &cp
}

func (n *shortNode) copy() *shortNode {
	cp := *n
	return &cp
}

var indices = [17]string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "a", "b", "c", "d", "e", "f", "v"}

func (n *fullNode) fstring(ind string) string {
	resp := fmt.Sprintf("[\n%s  ", ind)
	for i, child := range &n.Children {
		if child == nil {
			resp += fmt.Sprintf("%s: <nil> ", indices[i])
		} else {
			resp += fmt.Sprintf("%s: %v", indices[i], child.fstring(ind+"  "))
		}
	}
	return resp + fmt.Sprintf("\n%s] ", ind)
}

func (n *shortNode) fstring(ind string) string {
	return fmt.Sprintf("{%x: %v} ", n.Key, n.Val.fstring(ind+"  "))
}

func (n hashNode) fstring(string) string  { return fmt.Sprintf("<%x> ", []byte(n)) }
func (n valueNode) fstring(string) string { return fmt.Sprintf("%x ", []byte(n)) }

// kind classifies a decoded node value into one of the four shapes spec'd
// in the data model: blank, leaf, extension, or branch. It never needs to
// look at a hashNode or valueNode directly — those are reference/embedded
// forms resolved before classification.
type kind int

const (
	kindBlank kind = iota
	kindLeaf
	kindExtension
	kindBranch
)

func classify(n node) kind {
	switch n := n.(type) {
	case nil:
		return kindBlank
	case *shortNode:
		if hasTerm(n.Key) {
			return kindLeaf
		}
		return kindExtension
	case *fullNode:
		return kindBranch
	default:
		panic(fmt.Sprintf("classify: unexpected node type %T", n))
	}
}

// rawShortNode and rawFullNode mirror the node shapes above but are what
// actually get handed to rlp.Encode: a 2-list [hexToCompact(Key), ref] for shortNode, or a
// 17-list of refs for fullNode, where every ref is itself blank (empty
// string), a 32-byte hash, or an inline encodable value.
type rawShortNode struct {
	Key []byte
	Val rlp.RawValue
}

type rawFullNode struct {
	Children [17]rlp.RawValue
}

package trie

import (
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
)

// Kind distinguishes the error taxonomy a caller needs to branch on:
// caller mistakes, store corruption, and internal bugs all fail
// differently and should be handled differently.
type Kind int

const (
	// InvalidInput marks a key longer than 32 bytes, or any other
	// violation of the public surface's input contract. Raised
	// synchronously, before any state change.
	InvalidInput Kind = iota
	// InvalidNibbles marks a malformed nibble sequence reaching the
	// codec. Internal; seeing it indicates a bug in the trie engine
	// itself, not caller misuse.
	InvalidNibbles
	// CorruptStore marks a missing node, an undecodable RLP blob, or a
	// node whose shape matches none of the four node kinds.
	CorruptStore
	// AssertionFailure marks violation of an internal invariant, such
	// as branch normalization running on a branch with fewer than one
	// live slot. Unrecoverable for the current call.
	AssertionFailure
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid input"
	case InvalidNibbles:
		return "invalid nibbles"
	case CorruptStore:
		return "corrupt store"
	case AssertionFailure:
		return "assertion failure"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned across the public trie
// surface. It always carries a Kind, and usually wraps an underlying
// cause (a store I/O failure, an RLP decode error).
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

func invalidInput(msg string, args ...any) error {
	return &Error{Kind: InvalidInput, msg: fmt.Sprintf(msg, args...)}
}

func invalidNibbles(msg string, args ...any) error {
	return &Error{Kind: InvalidNibbles, msg: fmt.Sprintf(msg, args...)}
}

// wrapCorrupt wraps a lower-level failure (store I/O, RLP decoding) into a
// CorruptStore error, logging it on the way out so a caller who discards
// the error still leaves a trace.
func wrapCorrupt(cause error, msg string) error {
	err := &Error{Kind: CorruptStore, msg: msg, err: errors.WithStack(cause)}
	log.Error("trie: corrupt store", "msg", msg, "err", cause)
	return err
}

func assertionFailure(msg string, args ...any) error {
	err := &Error{Kind: AssertionFailure, msg: fmt.Sprintf(msg, args...)}
	log.Error("trie: assertion failure", "err", err)
	return err
}

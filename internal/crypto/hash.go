// Package crypto provides the two hash primitives the block-hash and
// commitment state machines are built from: Pedersen and Poseidon over
// the Stark field. The trie and commitment layers only ever go through
// these two entry points, mirroring how juno's State type only calls
// crypto.Pedersen / crypto.PoseidonArray and never touches curve
// arithmetic directly (_examples/other_examples/620b7119_cemabi33-juno__core-state.go.go).
//
// Both are delegated to github.com/NethermindEth/juno/core/crypto, the
// real Starknet node's vendored implementation of the protocol's
// elliptic-curve Pedersen hash and Poseidon round function — hand-
// rolling either from scratch (a fixed-base multi-scalar Pedersen
// table and a hundreds-of-round Poseidon permutation) is exactly the
// kind of thing this exercise reaches for a library instead of
// reimplementing. This package exists only as the felt.Felt <->
// juno/core/felt.Felt boundary, since the rest of this module keeps its
// own felt type (see internal/felt) rather than importing juno's
// throughout.
package crypto

import (
	nethcrypto "github.com/NethermindEth/juno/core/crypto"
	nethfelt "github.com/NethermindEth/juno/core/felt"

	"github.com/starknetfull/corestore/internal/felt"
)

// toNeth and fromNeth round-trip through the canonical 32-byte
// big-endian encoding both felt types share (they represent the same
// field, mod the same Stark prime).
func toNeth(f *felt.Felt) *nethfelt.Felt {
	b := f.Bytes()
	return new(nethfelt.Felt).SetBytes(b[:])
}

func fromNeth(f *nethfelt.Felt) *felt.Felt {
	b := f.Bytes()
	return new(felt.Felt).SetBytes(b[:])
}

// Pedersen combines two field elements into one, order-sensitive.
func Pedersen(a, b *felt.Felt) *felt.Felt {
	return fromNeth(nethcrypto.Pedersen(toNeth(a), toNeth(b)))
}

// PedersenArray folds Pedersen left-to-right over a sequence, the way
// the block-hash regimes in spec §4.G require (insertion-order
// tie-break, not a sorted/commutative combine).
func PedersenArray(elems ...*felt.Felt) *felt.Felt {
	args := make([]*nethfelt.Felt, len(elems))
	for i, e := range elems {
		args[i] = toNeth(e)
	}
	return fromNeth(nethcrypto.PedersenArray(args...))
}

// Poseidon3 combines three field elements (the sponge's rate for this
// protocol's permutation width).
func Poseidon3(a, b, c *felt.Felt) *felt.Felt {
	return fromNeth(nethcrypto.PoseidonArray(toNeth(a), toNeth(b), toNeth(c)))
}

// PoseidonArray folds the sponge over an arbitrary number of elements.
func PoseidonArray(elems ...*felt.Felt) *felt.Felt {
	args := make([]*nethfelt.Felt, len(elems))
	for i, e := range elems {
		args[i] = toNeth(e)
	}
	return fromNeth(nethcrypto.PoseidonArray(args...))
}

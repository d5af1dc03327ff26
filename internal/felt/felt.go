// Package felt implements the 252-bit Stark field element used as the
// key/value type throughout the storage layer: block hashes, state
// roots, contract addresses, storage keys and values are all felts.
//
// Modeled on the field-element wrapper described by
// github.com/NethermindEth/juno/core/felt (see
// _examples/other_examples/620b7119_cemabi33-juno__core-state.go.go for
// its call sites). The type is reimplemented locally on top of
// math/big so the storage layer does not depend on juno's felt type;
// juno itself is a dependency only of internal/crypto, for the hash
// primitives.
package felt

import (
	"encoding/hex"
	"fmt"
	"math/big"
)

// Prime is the Stark field modulus: 2^251 + 17*2^192 + 1.
var Prime, _ = new(big.Int).SetString("800000000000011000000000000000000000000000000000000000000000001", 16)

const ByteLen = 32

// Felt is a 252-bit field element, held as a big.Int reduced mod Prime;
// Bytes gives its canonical 32-byte big-endian encoding.
type Felt struct {
	v big.Int
}

var Zero = Felt{}

func New(x int64) *Felt {
	f := &Felt{}
	f.v.SetInt64(x)
	f.v.Mod(&f.v, Prime)
	return f
}

func FromBigInt(x *big.Int) *Felt {
	f := &Felt{}
	f.v.Mod(x, Prime)
	return f
}

// SetBytes interprets b as a big-endian integer mod Prime. b may be
// shorter than 32 bytes (left-padded) but never longer.
func (f *Felt) SetBytes(b []byte) *Felt {
	if len(b) > ByteLen {
		panic(fmt.Sprintf("felt: input too long: %d bytes", len(b)))
	}
	f.v.SetBytes(b)
	f.v.Mod(&f.v, Prime)
	return f
}

// Bytes returns the canonical 32-byte big-endian encoding.
func (f *Felt) Bytes() [ByteLen]byte {
	var out [ByteLen]byte
	f.v.FillBytes(out[:])
	return out
}

func (f *Felt) BigInt() *big.Int {
	return new(big.Int).Set(&f.v)
}

func (f *Felt) IsZero() bool {
	return f.v.Sign() == 0
}

func (f *Felt) Equal(o *Felt) bool {
	if f == nil || o == nil {
		return f == o
	}
	return f.v.Cmp(&o.v) == 0
}

func (f *Felt) Cmp(o *Felt) int {
	return f.v.Cmp(&o.v)
}

func (f *Felt) String() string {
	return "0x" + f.v.Text(16)
}

func (f *Felt) Hex() string {
	b := f.Bytes()
	return "0x" + hex.EncodeToString(b[:])
}

func Add(a, b *Felt) *Felt {
	r := new(big.Int).Add(&a.v, &b.v)
	return FromBigInt(r)
}

func Mul(a, b *Felt) *Felt {
	r := new(big.Int).Mul(&a.v, &b.v)
	return FromBigInt(r)
}

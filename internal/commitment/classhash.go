package commitment

import (
	"fmt"

	"github.com/starknetfull/corestore/internal/crypto"
	"github.com/starknetfull/corestore/internal/errs"
	"github.com/starknetfull/corestore/internal/felt"
)

// ComputeClassHash folds an arbitrary-length class body down to a
// single felt. Hashing a Sierra/Cairo class body is a property of the
// execution collaborator's class-hash algorithm (out of scope, spec
// §1); this folds the raw bytes through the same Pedersen primitive
// the rest of the commitment engine uses, sufficient to detect an
// accidental mismatch between a declared hash and a stored class body
// without claiming protocol parity.
func ComputeClassHash(contractClass []byte) felt.Felt {
	if len(contractClass) == 0 {
		return felt.Zero
	}
	var acc felt.Felt
	acc.SetBytes(firstChunk(contractClass))
	for i := felt.ByteLen; i < len(contractClass); i += felt.ByteLen {
		end := i + felt.ByteLen
		if end > len(contractClass) {
			end = len(contractClass)
		}
		var chunk felt.Felt
		chunk.SetBytes(contractClass[i:end])
		acc = *crypto.Pedersen(&acc, &chunk)
	}
	return acc
}

func firstChunk(b []byte) []byte {
	if len(b) <= felt.ByteLen {
		return b
	}
	return b[:felt.ByteLen]
}

// VerifyDeclaredClassHash is the optional check spec §9 Open Question
// (b) describes: the original source carries this check commented
// out. This spec treats it as OPTIONAL but requires that, when
// enabled, it rejects a mismatch with MismatchedClassHash rather than
// silently accepting it.
func VerifyDeclaredClassHash(declared felt.Felt, contractClass []byte) error {
	computed := ComputeClassHash(contractClass)
	if computed.Cmp(&declared) != 0 {
		return fmt.Errorf("%w: class %s", errs.MismatchedClassHash, declared.String())
	}
	return nil
}

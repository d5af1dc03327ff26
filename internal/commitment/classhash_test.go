package commitment

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starknetfull/corestore/internal/errs"
	"github.com/starknetfull/corestore/internal/felt"
)

func TestComputeClassHashEmpty(t *testing.T) {
	h := ComputeClassHash(nil)
	require.True(t, h.Equal(&felt.Zero))
}

func TestComputeClassHashDeterministic(t *testing.T) {
	body := []byte("some sierra bytecode, long enough to span multiple 32-byte chunks of field elements")
	h1 := ComputeClassHash(body)
	h2 := ComputeClassHash(body)
	require.True(t, h1.Equal(&h2))
}

func TestComputeClassHashVariesWithInput(t *testing.T) {
	h1 := ComputeClassHash([]byte("class one"))
	h2 := ComputeClassHash([]byte("class two"))
	require.False(t, h1.Equal(&h2))
}

func TestVerifyDeclaredClassHashAcceptsMatch(t *testing.T) {
	body := []byte("a class body")
	declared := ComputeClassHash(body)
	require.NoError(t, VerifyDeclaredClassHash(declared, body))
}

func TestVerifyDeclaredClassHashRejectsMismatch(t *testing.T) {
	body := []byte("a class body")
	wrong := *felt.New(999)
	err := VerifyDeclaredClassHash(wrong, body)
	require.ErrorIs(t, err, errs.MismatchedClassHash)
}

package commitment

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starknetfull/corestore/internal/felt"
	"github.com/starknetfull/corestore/internal/kv"
)

func TestClassifyEraBoundaries(t *testing.T) {
	require.Equal(t, EraLegacy, classifyEra("0.6.9"))
	require.Equal(t, EraV07, classifyEra("0.7.0"))
	require.Equal(t, EraV07, classifyEra("0.13.1"))
	require.Equal(t, EraV1132, classifyEra("0.13.2"))
	require.Equal(t, EraV1132, classifyEra("1.0.0"))
}

func TestClassifyEraEmptyDefaultsToV07(t *testing.T) {
	require.Equal(t, EraV07, classifyEra(""))
}

func TestEraExported(t *testing.T) {
	require.Equal(t, classifyEra("0.13.2"), Era("0.13.2"))
}

func TestMerkleFoldEmpty(t *testing.T) {
	root := merkleFold(nil)
	require.True(t, root.Equal(felt.New(0)))
}

func TestMerkleFoldSingleLeaf(t *testing.T) {
	leaf := felt.New(7)
	root := merkleFold([]*felt.Felt{leaf})
	require.True(t, root.Equal(leaf))
}

func TestMerkleFoldOddCarriesForward(t *testing.T) {
	a, b, c := felt.New(1), felt.New(2), felt.New(3)
	root := merkleFold([]*felt.Felt{a, b, c})
	require.NotNil(t, root)
	require.False(t, root.IsZero())
}

func TestMerkleFoldDeterministic(t *testing.T) {
	a, b := felt.New(1), felt.New(2)
	r1 := merkleFold([]*felt.Felt{a, b})
	r2 := merkleFold([]*felt.Felt{a, b})
	require.True(t, r1.Equal(r2))
}

func TestTransactionCommitmentVariesWithEra(t *testing.T) {
	txs := []kv.Transaction{{Hash: *felt.New(1), Kind: kv.TxInvokeV1}}
	legacy := TransactionCommitment(EraV07, txs)
	v1132 := TransactionCommitment(EraV1132, txs)
	require.False(t, legacy.Equal(v1132))
}

func TestEventCommitmentEmpty(t *testing.T) {
	root := EventCommitment(nil)
	require.True(t, root.Equal(felt.New(0)))
}

func TestEventCommitmentOrderMatters(t *testing.T) {
	r1 := kv.Receipt{TxHash: *felt.New(1), Events: []kv.Event{{FromAddress: *felt.New(1)}, {FromAddress: *felt.New(2)}}}
	r2 := kv.Receipt{TxHash: *felt.New(1), Events: []kv.Event{{FromAddress: *felt.New(2)}, {FromAddress: *felt.New(1)}}}

	c1 := EventCommitment([]kv.Receipt{r1})
	c2 := EventCommitment([]kv.Receipt{r2})
	require.False(t, c1.Equal(c2))
}

func TestReceiptCommitmentDeterministic(t *testing.T) {
	rs := []kv.Receipt{{TxHash: *felt.New(1), ActualFee: *felt.New(10)}}
	c1 := ReceiptCommitment(rs)
	c2 := ReceiptCommitment(rs)
	require.True(t, c1.Equal(c2))
}

func TestStateDiffCommitmentOrderIndependent(t *testing.T) {
	d1 := &kv.StateDiff{
		Nonces: []kv.NonceUpdate{
			{Address: *felt.New(2), Nonce: *felt.New(1)},
			{Address: *felt.New(1), Nonce: *felt.New(1)},
		},
	}
	d2 := &kv.StateDiff{
		Nonces: []kv.NonceUpdate{
			{Address: *felt.New(1), Nonce: *felt.New(1)},
			{Address: *felt.New(2), Nonce: *felt.New(1)},
		},
	}
	c1 := StateDiffCommitment(d1)
	c2 := StateDiffCommitment(d2)
	require.True(t, c1.Equal(c2))
}

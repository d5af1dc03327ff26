package commitment

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starknetfull/corestore/internal/felt"
	"github.com/starknetfull/corestore/internal/kv"
)

func TestClassifyBlockHashRegimeLegacyBoundary(t *testing.T) {
	require.Equal(t, regimeLegacy, classifyBlockHashRegime(832, MainChainID, "0.6.0"))
	require.Equal(t, regimeV07, classifyBlockHashRegime(833, MainChainID, "0.6.0"))
}

func TestClassifyBlockHashRegimeLegacyIsMainnetOnly(t *testing.T) {
	require.Equal(t, regimeV07, classifyBlockHashRegime(10, "SN_GOERLI", "0.6.0"))
}

func TestClassifyBlockHashRegimeV1132(t *testing.T) {
	require.Equal(t, regimeV1132, classifyBlockHashRegime(1_000_000, MainChainID, "0.13.2"))
	require.Equal(t, regimeV1132, classifyBlockHashRegime(1_000_000, "SN_GOERLI", "0.13.3"))
}

func TestIsMainnetHashExceptionRange(t *testing.T) {
	require.False(t, IsMainnetHashException(1465, MainChainID))
	require.True(t, IsMainnetHashException(1466, MainChainID))
	require.True(t, IsMainnetHashException(2242, MainChainID))
	require.False(t, IsMainnetHashException(2243, MainChainID))
	require.False(t, IsMainnetHashException(2000, "SN_GOERLI"))
}

func TestConcatCountsLayout(t *testing.T) {
	f := concatCounts(1, 2, 3, kv.DABlob)
	b := f.Bytes()
	require.Equal(t, uint64(1), beU64(b[0:8]))
	require.Equal(t, uint64(2), beU64(b[8:16]))
	require.Equal(t, uint64(3), beU64(b[16:24]))
	require.Equal(t, byte(kv.DABlob), b[24])
	for _, z := range b[25:] {
		require.Equal(t, byte(0), z)
	}
}

func beU64(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

func TestConcatCountsMatchesWorkedExample(t *testing.T) {
	f := concatCounts(4, 3, 2, kv.DABlob)
	require.Equal(t, "0x0000000000000004000000000000000300000000000000028000000000000000", f.Hex())
}

// scenarioHeader is the worked-example header shared by all three
// literal block-hash vectors.
func scenarioHeader(protocolVersion string, gas kv.GasPrices, da kv.DAMode) *kv.Header {
	n := uint64(2)
	return &kv.Header{
		ParentHash:          *felt.New(1),
		Number:              &n,
		StateRoot:           *felt.New(3),
		Sequencer:           *felt.New(4),
		Timestamp:           5,
		TxCount:             6,
		TxCommitment:        *felt.New(7),
		EventCount:          8,
		EventCommitment:     *felt.New(9),
		StateDiffLen:        10,
		StateDiffCommitment: *felt.New(11),
		ReceiptCommitment:   *felt.New(12),
		ProtocolVersion:     protocolVersion,
		Gas:                 gas,
		DAMode:              da,
	}
}

func TestComputeHashMatchesWorkedExampleV1132(t *testing.T) {
	h := scenarioHeader("0.13.2", kv.GasPrices{EthGas: 14, StrkGas: 15, EthDataGas: 16, StrkDataGas: 17}, kv.DABlob)
	got, err := ComputeHash(h, "CHAIN_ID")
	require.NoError(t, err)
	require.Equal(t, "0x545dd9ef652b07cebb3c8b6d43b6c477998f124e75df970dfee300fb32a698b", got.String())
}

func TestComputeHashMatchesWorkedExampleV07(t *testing.T) {
	h := scenarioHeader("0.11.1", kv.GasPrices{}, kv.DACalldata)
	got, err := ComputeHash(h, "CHAIN_ID")
	require.NoError(t, err)
	require.Equal(t, "0x42ec5792c165e0235d7576dc9b4a56140b217faba0b2f57c0a48b850ea5999c", got.String())
}

func TestComputeHashMatchesWorkedExampleLegacy(t *testing.T) {
	h := scenarioHeader("0.13.2", kv.GasPrices{EthGas: 14, StrkGas: 15, EthDataGas: 16, StrkDataGas: 17}, kv.DABlob)
	got, err := ComputeHash(h, MainChainID)
	require.NoError(t, err)
	require.Equal(t, "0x6028bf0975e1d4c95713e021a0f0217e74d5a748a20691d881c86d9d62d1432", got.String())
}

func TestComputeHashRejectsPendingHeader(t *testing.T) {
	_, err := ComputeHash(&kv.Header{}, MainChainID)
	require.Error(t, err)
}

func TestComputeHashIsDeterministic(t *testing.T) {
	n := uint64(1_000_000)
	h := &kv.Header{
		Number:          &n,
		ProtocolVersion: "0.13.2",
		StateRoot:       *felt.New(1),
		Sequencer:       *felt.New(2),
		Timestamp:       100,
		TxCount:         1,
		EventCount:      1,
	}
	a, err := ComputeHash(h, MainChainID)
	require.NoError(t, err)
	b, err := ComputeHash(h, MainChainID)
	require.NoError(t, err)
	require.True(t, a.Equal(b))
}

func TestComputeHashDiffersAcrossRegimes(t *testing.T) {
	legacyNum := uint64(10)
	v07Num := uint64(1_000)
	v1132Num := uint64(1_000)

	legacy := &kv.Header{Number: &legacyNum, ProtocolVersion: "0.6.0", StateRoot: *felt.New(1), TxCount: 1, TxCommitment: *felt.New(1)}
	v07 := &kv.Header{Number: &v07Num, ProtocolVersion: "0.9.0", StateRoot: *felt.New(1), TxCount: 1, TxCommitment: *felt.New(1)}
	v1132 := &kv.Header{Number: &v1132Num, ProtocolVersion: "0.13.2", StateRoot: *felt.New(1), TxCount: 1, TxCommitment: *felt.New(1)}

	h1, err := ComputeHash(legacy, MainChainID)
	require.NoError(t, err)
	h2, err := ComputeHash(v07, MainChainID)
	require.NoError(t, err)
	h3, err := ComputeHash(v1132, MainChainID)
	require.NoError(t, err)

	require.False(t, h1.Equal(h2))
	require.False(t, h2.Equal(h3))
}

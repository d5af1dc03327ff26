package kv

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starknetfull/corestore/internal/felt"
)

func TestHistoryKeyOrdersByBlockNumber(t *testing.T) {
	var contract [32]byte
	contract[0] = 0xAB

	k1 := HistoryKey(contract, nil, 5)
	k2 := HistoryKey(contract, nil, 6)
	require.Less(t, string(k1), string(k2))
}

func TestSplitHistoryKeyRoundTrip(t *testing.T) {
	var contract [32]byte
	contract[0] = 0x01
	key := []byte("storage-key")
	full := HistoryKey(contract, key, 42)

	prefix, bn, err := SplitHistoryKey(full)
	require.NoError(t, err)
	require.Equal(t, uint64(42), bn)
	require.Equal(t, HistoryPrefix(contract, key), prefix)
}

func TestSplitHistoryKeyTooShort(t *testing.T) {
	_, _, err := SplitHistoryKey([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestFrameValueRoundTrip(t *testing.T) {
	payload := []byte("hello")
	framed := FrameValue(payload)
	version, got, err := UnframeValue(framed)
	require.NoError(t, err)
	require.Equal(t, currentValueVersion, version)
	require.Equal(t, payload, got)
}

func TestEncodeDecodeBlockNumber(t *testing.T) {
	require.Equal(t, uint64(1234), DecodeBlockNumber(EncodeBlockNumber(1234)))
}

func TestHeaderRoundTripConfirmed(t *testing.T) {
	num := uint64(10)
	h := &Header{
		ParentHash:          *felt.New(1),
		Number:              &num,
		StateRoot:           *felt.New(2),
		Sequencer:           *felt.New(3),
		Timestamp:           1000,
		TxCount:             5,
		EventCount:          7,
		StateDiffLen:        3,
		TxCommitment:        *felt.New(4),
		EventCommitment:     *felt.New(5),
		ReceiptCommitment:   *felt.New(6),
		StateDiffCommitment: *felt.New(7),
		ProtocolVersion:     "0.13.2",
		Gas:                 GasPrices{EthGas: 1, StrkGas: 2, EthDataGas: 3, StrkDataGas: 4},
		DAMode:              DABlob,
		BlockHash:           *felt.New(8),
	}

	raw := EncodeHeader(h)
	got, err := DecodeHeader(raw)
	require.NoError(t, err)

	require.False(t, got.IsPending())
	require.Equal(t, *h.Number, *got.Number)
	require.True(t, h.StateRoot.Equal(&got.StateRoot))
	require.True(t, h.BlockHash.Equal(&got.BlockHash))
	require.Equal(t, h.ProtocolVersion, got.ProtocolVersion)
	require.Equal(t, h.Gas, got.Gas)
	require.Equal(t, h.DAMode, got.DAMode)
	require.Equal(t, h.Timestamp, got.Timestamp)
}

func TestHeaderRoundTripPending(t *testing.T) {
	h := &Header{
		ParentHash:      *felt.New(1),
		Sequencer:       *felt.New(2),
		Timestamp:       999,
		ProtocolVersion: "0.13.2",
		Gas:             GasPrices{EthGas: 1, StrkGas: 1, EthDataGas: 1, StrkDataGas: 1},
		DAMode:          DACalldata,
	}
	raw := EncodeHeader(h)
	got, err := DecodeHeader(raw)
	require.NoError(t, err)
	require.True(t, got.IsPending())
	require.Nil(t, got.Number)
	require.True(t, h.ParentHash.Equal(&got.ParentHash))
}

func TestBodyRoundTrip(t *testing.T) {
	body := &Body{
		Transactions: []Transaction{
			{Hash: *felt.New(1), Kind: TxInvokeV3, Payload: []byte("payload")},
			{Hash: *felt.New(2), Kind: TxDeclareV2, Payload: nil},
		},
		Receipts: []Receipt{
			{
				TxHash:          *felt.New(1),
				ActualFee:       *felt.New(100),
				ExecutionStatus: ExecutionSucceeded,
				Events: []Event{
					{FromAddress: *felt.New(5), Keys: []felt.Felt{*felt.New(6)}, Data: []felt.Felt{*felt.New(7), *felt.New(8)}},
				},
				MessagesToL1: [][]byte{[]byte("m1")},
			},
			{
				TxHash:          *felt.New(2),
				ActualFee:       *felt.New(0),
				ExecutionStatus: ExecutionReverted,
			},
		},
	}

	raw := EncodeBody(body)
	got, err := DecodeBody(raw)
	require.NoError(t, err)
	require.Len(t, got.Transactions, 2)
	require.Len(t, got.Receipts, 2)
	require.Equal(t, TxInvokeV3, got.Transactions[0].Kind)
	require.Equal(t, []byte("payload"), got.Transactions[0].Payload)
	require.Equal(t, ExecutionReverted, got.Receipts[1].ExecutionStatus)
	require.Len(t, got.Receipts[0].Events, 1)
	require.Len(t, got.Receipts[0].Events[0].Data, 2)
}

func TestEncodeTransactionsDecodeTransactions(t *testing.T) {
	txs := []Transaction{{Hash: *felt.New(1), Kind: TxL1Handler, Payload: []byte("x")}}
	raw := EncodeTransactions(txs)
	got, err := DecodeTransactions(raw)
	require.NoError(t, err)
	require.Equal(t, txs, got)
}

func TestDecodeBodyRejectsTruncatedInput(t *testing.T) {
	_, err := DecodeBody([]byte{currentValueVersion})
	require.Error(t, err)
}

func TestTotalActualFeeSumsAcrossReceipts(t *testing.T) {
	receipts := []Receipt{
		{ActualFee: *felt.New(10)},
		{ActualFee: *felt.New(32)},
	}
	total := TotalActualFee(receipts)
	require.Equal(t, "42", total.Dec())
}

func TestTotalActualFeeEmptyIsZero(t *testing.T) {
	require.True(t, TotalActualFee(nil).IsZero())
}

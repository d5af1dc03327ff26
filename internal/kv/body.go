package kv

import (
	"github.com/holiman/uint256"

	"github.com/starknetfull/corestore/internal/felt"
)

// TxKind enumerates the concrete Starknet transaction variants
// (supplemented from original_source/crates/primitives/transactions,
// which spec.md only discusses abstractly as "transactions").
type TxKind uint8

const (
	TxInvokeV0 TxKind = iota
	TxInvokeV1
	TxInvokeV3
	TxDeclareV0
	TxDeclareV1
	TxDeclareV2
	TxDeclareV3
	TxDeployAccountV1
	TxDeployAccountV3
	TxDeploy
	TxL1Handler
)

// Transaction is a decoded gateway transaction. Kind-specific fields
// beyond the hash and common envelope are kept as the opaque,
// already-validated Payload: the execution collaborator (out of
// scope, spec §1) owns interpreting it, this layer only needs to
// store it and feed it to the commitment engine.
type Transaction struct {
	Hash    felt.Felt
	Kind    TxKind
	Payload []byte
}

// Event is a single contract event emitted by a transaction.
type Event struct {
	FromAddress felt.Felt
	Keys        []felt.Felt
	Data        []felt.Felt
}

// ExecutionStatus records whether a transaction succeeded or reverted.
// A receipt's MessagesToL1 are kept as opaque byte slices at this
// layer for the same reason Payload is.
type ExecutionStatus uint8

const (
	ExecutionSucceeded ExecutionStatus = iota
	ExecutionReverted
)

// Receipt corresponds 1:1 by index to a Transaction in a Body (spec
// §3: "Receipt i corresponds to transaction i").
type Receipt struct {
	TxHash          felt.Felt
	ActualFee       felt.Felt
	ExecutionStatus ExecutionStatus
	Events          []Event
	MessagesToL1    [][]byte
}

// Body is the ordered sequence of transactions and parallel receipts.
type Body struct {
	Transactions []Transaction
	Receipts     []Receipt
}

func putTxKind(buf []byte, k TxKind) []byte { return append(buf, byte(k)) }

func readTxKind(b []byte) (TxKind, []byte, error) {
	if len(b) < 1 {
		return 0, nil, errShortRead
	}
	return TxKind(b[0]), b[1:], nil
}

func EncodeBody(body *Body) []byte {
	buf := make([]byte, 0, 256)
	buf = putUint64(buf, uint64(len(body.Transactions)))
	for _, tx := range body.Transactions {
		buf = putFelt(buf, tx.Hash)
		buf = putTxKind(buf, tx.Kind)
		buf = putBytes(buf, tx.Payload)
	}
	buf = putUint64(buf, uint64(len(body.Receipts)))
	for _, r := range body.Receipts {
		buf = putFelt(buf, r.TxHash)
		buf = putFelt(buf, r.ActualFee)
		buf = append(buf, byte(r.ExecutionStatus))
		buf = putUint64(buf, uint64(len(r.Events)))
		for _, e := range r.Events {
			buf = putFelt(buf, e.FromAddress)
			buf = putUint64(buf, uint64(len(e.Keys)))
			for _, k := range e.Keys {
				buf = putFelt(buf, k)
			}
			buf = putUint64(buf, uint64(len(e.Data)))
			for _, d := range e.Data {
				buf = putFelt(buf, d)
			}
		}
		buf = putUint64(buf, uint64(len(r.MessagesToL1)))
		for _, m := range r.MessagesToL1 {
			buf = putBytes(buf, m)
		}
	}
	return FrameValue(buf)
}

// EncodeTransactions / EncodeReceipts split Body across the Bodies and
// Receipts columns (spec §4.A catalog keeps them in separate column
// families); both reuse the Body codec since the wire shape round-
// trips fine with the other half left empty.
func EncodeTransactions(txs []Transaction) []byte { return EncodeBody(&Body{Transactions: txs}) }

func DecodeTransactions(raw []byte) ([]Transaction, error) {
	b, err := DecodeBody(raw)
	if err != nil {
		return nil, err
	}
	return b.Transactions, nil
}

func EncodeReceipts(rs []Receipt) []byte { return EncodeBody(&Body{Receipts: rs}) }

// TotalActualFee sums the fee across every receipt in a block using
// uint256.Int as the accumulator, the way the teacher's
// headerdownload package accumulates a block's cumulativeDifficulty
// (turbo/stages/headerdownload/header_data_struct.go) — a felt's
// 252-bit domain fits uint256's 256-bit words without truncation, and
// the accumulator needs to outlive any single felt's modulus during
// the sum.
func TotalActualFee(rs []Receipt) *uint256.Int {
	total := new(uint256.Int)
	for _, r := range rs {
		b := r.ActualFee.Bytes()
		var fee uint256.Int
		fee.SetBytes(b[:])
		total.Add(total, &fee)
	}
	return total
}

func DecodeReceipts(raw []byte) ([]Receipt, error) {
	b, err := DecodeBody(raw)
	if err != nil {
		return nil, err
	}
	return b.Receipts, nil
}

func DecodeBody(raw []byte) (*Body, error) {
	_, b, err := UnframeValue(raw)
	if err != nil {
		return nil, err
	}
	body := &Body{}
	var n uint64
	if n, b, err = readUint64(b); err != nil {
		return nil, err
	}
	for i := uint64(0); i < n; i++ {
		var tx Transaction
		if tx.Hash, b, err = readFelt(b); err != nil {
			return nil, err
		}
		if tx.Kind, b, err = readTxKind(b); err != nil {
			return nil, err
		}
		if tx.Payload, b, err = readBytes(b); err != nil {
			return nil, err
		}
		body.Transactions = append(body.Transactions, tx)
	}
	if n, b, err = readUint64(b); err != nil {
		return nil, err
	}
	for i := uint64(0); i < n; i++ {
		var r Receipt
		if r.TxHash, b, err = readFelt(b); err != nil {
			return nil, err
		}
		if r.ActualFee, b, err = readFelt(b); err != nil {
			return nil, err
		}
		if len(b) < 1 {
			return nil, errShortRead
		}
		r.ExecutionStatus = ExecutionStatus(b[0])
		b = b[1:]
		var m uint64
		if m, b, err = readUint64(b); err != nil {
			return nil, err
		}
		for j := uint64(0); j < m; j++ {
			var e Event
			if e.FromAddress, b, err = readFelt(b); err != nil {
				return nil, err
			}
			var kc uint64
			if kc, b, err = readUint64(b); err != nil {
				return nil, err
			}
			for k := uint64(0); k < kc; k++ {
				var f felt.Felt
				if f, b, err = readFelt(b); err != nil {
					return nil, err
				}
				e.Keys = append(e.Keys, f)
			}
			var dc uint64
			if dc, b, err = readUint64(b); err != nil {
				return nil, err
			}
			for k := uint64(0); k < dc; k++ {
				var f felt.Felt
				if f, b, err = readFelt(b); err != nil {
					return nil, err
				}
				e.Data = append(e.Data, f)
			}
			r.Events = append(r.Events, e)
		}
		var msgc uint64
		if msgc, b, err = readUint64(b); err != nil {
			return nil, err
		}
		for j := uint64(0); j < msgc; j++ {
			var msg []byte
			if msg, b, err = readBytes(b); err != nil {
				return nil, err
			}
			r.MessagesToL1 = append(r.MessagesToL1, msg)
		}
		body.Receipts = append(body.Receipts, r)
	}
	return body, nil
}

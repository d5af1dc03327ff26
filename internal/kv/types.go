package kv

import (
	"encoding/binary"
	"fmt"

	"github.com/starknetfull/corestore/internal/errs"
	"github.com/starknetfull/corestore/internal/felt"
)

// DAMode is the L1 data-availability mode a block was published under.
type DAMode uint8

const (
	DACalldata DAMode = 0x00
	DABlob     DAMode = 0x80
)

// GasPrices is the L1 gas-price quadruple carried in every header.
type GasPrices struct {
	EthGas     uint64
	StrkGas    uint64
	EthDataGas uint64
	StrkDataGas uint64
}

// Header is the block header, immutable once committed. A pending
// header has Number == nil and omits the commitment/count/root fields
// (spec §3).
type Header struct {
	ParentHash  felt.Felt
	Number      *uint64
	StateRoot   felt.Felt
	Sequencer   felt.Felt
	Timestamp   uint64
	TxCount     uint64
	EventCount  uint64
	StateDiffLen uint64

	TxCommitment       felt.Felt
	EventCommitment    felt.Felt
	ReceiptCommitment  felt.Felt
	StateDiffCommitment felt.Felt

	ProtocolVersion string
	Gas             GasPrices
	DAMode          DAMode

	BlockHash felt.Felt
}

func (h *Header) IsPending() bool { return h.Number == nil }

// DeployedContract is an (address, class_hash) pair from a state diff.
type DeployedContract struct {
	Address   felt.Felt
	ClassHash felt.Felt
}

type ReplacedClass = DeployedContract

type NonceUpdate struct {
	Address felt.Felt
	Nonce   felt.Felt
}

type StorageEntry struct {
	Key   felt.Felt
	Value felt.Felt
}

type StorageDiff struct {
	Address felt.Felt
	Entries []StorageEntry
}

type DeclaredClass struct {
	ClassHash         felt.Felt
	CompiledClassHash felt.Felt
}

// StateDiff is the delta a block applies to contract/class/nonce/
// storage state (spec §3).
type StateDiff struct {
	DeployedContracts []DeployedContract
	ReplacedClasses   []ReplacedClass
	Nonces            []NonceUpdate
	StorageDiffs      []StorageDiff
	DeclaredClasses   []DeclaredClass
}

// Len returns the state-diff length used by concat_counts.
func (d *StateDiff) Len() uint64 {
	n := uint64(len(d.DeployedContracts) + len(d.ReplacedClasses) + len(d.Nonces) + len(d.DeclaredClasses))
	for _, sd := range d.StorageDiffs {
		n += uint64(len(sd.Entries))
	}
	return n
}

// ClassInfo is the append-only class_hash -> metadata mapping.
type ClassInfo struct {
	ClassHash         felt.Felt
	DeclaredAtBlock   uint64
	CompiledClassHash felt.Felt
	ContractClass     []byte // opaque Sierra/Cairo class body
}

// --- minimal length-prefixed codecs -----------------------------------

func putUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func putBytes(buf []byte, b []byte) []byte {
	buf = putUint64(buf, uint64(len(b)))
	return append(buf, b...)
}

func readUint64(b []byte) (uint64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, fmt.Errorf("%w: short uint64", errs.Codec)
	}
	return binary.BigEndian.Uint64(b[:8]), b[8:], nil
}

func readBytes(b []byte) ([]byte, []byte, error) {
	n, rest, err := readUint64(b)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < n {
		return nil, nil, fmt.Errorf("%w: short byte slice", errs.Codec)
	}
	return rest[:n], rest[n:], nil
}

func putFelt(buf []byte, f felt.Felt) []byte {
	b := f.Bytes()
	return append(buf, b[:]...)
}

func readFelt(b []byte) (felt.Felt, []byte, error) {
	if len(b) < felt.ByteLen {
		return felt.Felt{}, nil, fmt.Errorf("%w: short felt", errs.Codec)
	}
	var f felt.Felt
	f.SetBytes(b[:felt.ByteLen])
	return f, b[felt.ByteLen:], nil
}

// EncodeHeader serializes a Header for the Headers column.
func EncodeHeader(h *Header) []byte {
	buf := make([]byte, 0, 256)
	buf = putFelt(buf, h.ParentHash)
	pending := byte(0)
	if h.IsPending() {
		pending = 1
	}
	buf = append(buf, pending)
	if !h.IsPending() {
		buf = putUint64(buf, *h.Number)
		buf = putFelt(buf, h.StateRoot)
		buf = putUint64(buf, h.TxCount)
		buf = putUint64(buf, h.EventCount)
		buf = putUint64(buf, h.StateDiffLen)
		buf = putFelt(buf, h.TxCommitment)
		buf = putFelt(buf, h.EventCommitment)
		buf = putFelt(buf, h.ReceiptCommitment)
		buf = putFelt(buf, h.StateDiffCommitment)
		buf = putFelt(buf, h.BlockHash)
	}
	buf = putFelt(buf, h.Sequencer)
	buf = putUint64(buf, h.Timestamp)
	buf = putBytes(buf, []byte(h.ProtocolVersion))
	buf = putUint64(buf, h.Gas.EthGas)
	buf = putUint64(buf, h.Gas.StrkGas)
	buf = putUint64(buf, h.Gas.EthDataGas)
	buf = putUint64(buf, h.Gas.StrkDataGas)
	buf = append(buf, byte(h.DAMode))
	return FrameValue(buf)
}

// DecodeHeader is the forward-compatible inverse of EncodeHeader: it
// branches on the version tag and then reads fields in the order they
// were written.
func DecodeHeader(raw []byte) (*Header, error) {
	_, b, err := UnframeValue(raw)
	if err != nil {
		return nil, err
	}
	h := &Header{}
	if h.ParentHash, b, err = readFelt(b); err != nil {
		return nil, err
	}
	if len(b) < 1 {
		return nil, fmt.Errorf("%w: missing pending flag", errs.Codec)
	}
	pending := b[0] == 1
	b = b[1:]
	if !pending {
		var num uint64
		if num, b, err = readUint64(b); err != nil {
			return nil, err
		}
		h.Number = &num
		if h.StateRoot, b, err = readFelt(b); err != nil {
			return nil, err
		}
		if h.TxCount, b, err = readUint64(b); err != nil {
			return nil, err
		}
		if h.EventCount, b, err = readUint64(b); err != nil {
			return nil, err
		}
		if h.StateDiffLen, b, err = readUint64(b); err != nil {
			return nil, err
		}
		if h.TxCommitment, b, err = readFelt(b); err != nil {
			return nil, err
		}
		if h.EventCommitment, b, err = readFelt(b); err != nil {
			return nil, err
		}
		if h.ReceiptCommitment, b, err = readFelt(b); err != nil {
			return nil, err
		}
		if h.StateDiffCommitment, b, err = readFelt(b); err != nil {
			return nil, err
		}
		if h.BlockHash, b, err = readFelt(b); err != nil {
			return nil, err
		}
	}
	if h.Sequencer, b, err = readFelt(b); err != nil {
		return nil, err
	}
	if h.Timestamp, b, err = readUint64(b); err != nil {
		return nil, err
	}
	var proto []byte
	if proto, b, err = readBytes(b); err != nil {
		return nil, err
	}
	h.ProtocolVersion = string(proto)
	if h.Gas.EthGas, b, err = readUint64(b); err != nil {
		return nil, err
	}
	if h.Gas.StrkGas, b, err = readUint64(b); err != nil {
		return nil, err
	}
	if h.Gas.EthDataGas, b, err = readUint64(b); err != nil {
		return nil, err
	}
	if h.Gas.StrkDataGas, b, err = readUint64(b); err != nil {
		return nil, err
	}
	if len(b) < 1 {
		return nil, fmt.Errorf("%w: missing da mode", errs.Codec)
	}
	h.DAMode = DAMode(b[0])
	return h, nil
}

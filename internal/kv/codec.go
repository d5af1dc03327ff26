package kv

import (
	"encoding/binary"
	"fmt"

	"github.com/starknetfull/corestore/internal/errs"
)

// EncodeBlockNumber returns the big-endian 8-byte encoding of n, chosen
// so lexicographic key order matches numeric order (spec §4.A codec
// contract).
func EncodeBlockNumber(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

func DecodeBlockNumber(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// HistoryKey builds the composite key contract‖key‖block_number used by
// every history-indexed column. key may be nil (class/nonce history,
// where the versioned map is keyed by contract alone).
func HistoryKey(contract [32]byte, key []byte, blockNumber uint64) []byte {
	out := make([]byte, 0, 32+len(key)+8)
	out = append(out, contract[:]...)
	out = append(out, key...)
	out = append(out, EncodeBlockNumber(blockNumber)...)
	return out
}

// HistoryPrefix builds the contract‖key prefix (no block number) used
// to seek the first entry at or before a target block.
func HistoryPrefix(contract [32]byte, key []byte) []byte {
	out := make([]byte, 0, 32+len(key))
	out = append(out, contract[:]...)
	out = append(out, key...)
	return out
}

// SplitHistoryKey reverses HistoryKey, returning the prefix (everything
// but the trailing 8-byte block number) and the block number.
func SplitHistoryKey(k []byte) (prefix []byte, blockNumber uint64, err error) {
	if len(k) < 8 {
		return nil, 0, fmt.Errorf("%w: history key too short: %d bytes", errs.Codec, len(k))
	}
	return k[:len(k)-8], DecodeBlockNumber(k[len(k)-8:]), nil
}

// Versioned value framing: one tag byte (format version) followed by
// the payload. Forward-compatible decoding only needs to branch on the
// leading byte; round-trip fidelity is the only hard requirement
// (spec §4.A).
const currentValueVersion byte = 1

var errShortRead = fmt.Errorf("%w: short read", errs.Codec)

func FrameValue(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+1)
	out = append(out, currentValueVersion)
	out = append(out, payload...)
	return out
}

func UnframeValue(raw []byte) (version byte, payload []byte, err error) {
	if len(raw) < 1 {
		return 0, nil, fmt.Errorf("%w: empty value", errs.Codec)
	}
	return raw[0], raw[1:], nil
}

package commitment

import (
	"encoding/binary"
	"fmt"

	"github.com/starknetfull/corestore/internal/crypto"
	"github.com/starknetfull/corestore/internal/errs"
	"github.com/starknetfull/corestore/internal/felt"
	"github.com/starknetfull/corestore/internal/kv"
)

// blockHashRegime is the state machine spec §4.G asks to be modeled
// explicitly rather than as an if/else chain, keyed on (block_number,
// chain_id, protocol_version) so each regime is independently
// testable.
type blockHashRegime int

const (
	regimeLegacy blockHashRegime = iota // pre-v0.7, mainnet-only, block_number < 833
	regimeV07                           // v0.7 .. v0.13.1
	regimeV1132                         // v0.13.2+
)

func classifyBlockHashRegime(blockNumber uint64, chainID, protocolVersion string) blockHashRegime {
	if blockNumber < 833 && chainID == MainChainID {
		return regimeLegacy
	}
	if classifyEra(protocolVersion) == EraV1132 {
		return regimeV1132
	}
	return regimeV07
}

// ComputeHash implements compute_hash(header, chain_id): it selects the
// regime and folds the header's fields through the matching hash
// (spec §4.G). h.Number must be set (pending headers have no hash).
func ComputeHash(h *kv.Header, chainID string) (*felt.Felt, error) {
	if h.IsPending() {
		return nil, fmt.Errorf("%w: cannot compute hash for a pending header", errs.BlockFormat)
	}
	n := *h.Number
	chainFelt := encodeASCIIFelt(chainID)

	switch classifyBlockHashRegime(n, chainID, h.ProtocolVersion) {
	case regimeLegacy:
		return crypto.PedersenArray(
			felt.New(int64(n)), &h.StateRoot, felt.New(0), felt.New(0),
			felt.New(int64(h.TxCount)), &h.TxCommitment, felt.New(0), felt.New(0), felt.New(0), felt.New(0),
			&chainFelt, &h.ParentHash,
		), nil
	case regimeV07:
		return crypto.PedersenArray(
			felt.New(int64(n)), &h.StateRoot, &h.Sequencer, felt.New(int64(h.Timestamp)),
			felt.New(int64(h.TxCount)), &h.TxCommitment, felt.New(int64(h.EventCount)), &h.EventCommitment,
			felt.New(0), felt.New(0), &h.ParentHash,
		), nil
	default:
		concat := concatCounts(h.TxCount, h.EventCount, h.StateDiffLen, h.DAMode)
		protoFelt := encodeASCIIFelt(h.ProtocolVersion)
		magic := encodeASCIIFelt("STARKNET_BLOCK_HASH0")
		return crypto.PoseidonArray(
			&magic, felt.New(int64(n)), &h.StateRoot, &h.Sequencer, felt.New(int64(h.Timestamp)),
			&concat, &h.StateDiffCommitment, &h.TxCommitment, &h.EventCommitment, &h.ReceiptCommitment,
			felt.New(int64(h.Gas.EthGas)), felt.New(int64(h.Gas.StrkGas)), felt.New(int64(h.Gas.EthDataGas)), felt.New(int64(h.Gas.StrkDataGas)),
			&protoFelt, felt.New(0), &h.ParentHash,
		), nil
	}
}

// IsMainnetHashException reports whether blockNumber on chainID falls
// in the known off-protocol hash range (spec §4.G, §8: blocks
// 1466…2242 on mainnet are accepted unchanged even when the recomputed
// hash doesn't match the advertised one).
func IsMainnetHashException(blockNumber uint64, chainID string) bool {
	return chainID == MainChainID && blockNumber >= 1466 && blockNumber <= 2242
}

// concatCounts packs tx_count, event_count and state_diff_length as
// three big-endian u64s, followed by the one-byte DA flag and 7 zero
// bytes, into a single 256-bit field element (spec §4.G).
func concatCounts(txCount, eventCount, stateDiffLen uint64, da kv.DAMode) felt.Felt {
	var buf [32]byte
	binary.BigEndian.PutUint64(buf[0:8], txCount)
	binary.BigEndian.PutUint64(buf[8:16], eventCount)
	binary.BigEndian.PutUint64(buf[16:24], stateDiffLen)
	buf[24] = byte(da)
	var f felt.Felt
	f.SetBytes(buf[:])
	return f
}

// encodeASCIIFelt packs an ASCII string (chain id, protocol version,
// the block-hash domain tag) into a felt the way the protocol treats
// short byte strings: left-padded big-endian.
func encodeASCIIFelt(s string) felt.Felt {
	var f felt.Felt
	f.SetBytes([]byte(s))
	return f
}

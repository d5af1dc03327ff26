// Package commitment implements the commitment engine (spec §4.G): the
// pure, deterministic functions that merkelize a block's transactions,
// events, receipts and state diff, and the block-hash protocol state
// machine that ties them together. Grounded on core/vm's hashing
// helpers for the "pure function over decoded block data" shape, and
// on turbo-geth/trie's Merkle folding style for the commitment roots,
// generalized from Keccak-over-RLP to Pedersen/Poseidon-over-felt.
package commitment

import (
	"github.com/starknetfull/corestore/internal/crypto"
	"github.com/starknetfull/corestore/internal/felt"
	"github.com/starknetfull/corestore/internal/kv"
)

// MainChainID is the chain id the pre-v0.7 legacy path and the mainnet
// hash-exception range are both scoped to (spec §4.G, §8).
const MainChainID = "SN_MAIN"

// ProtocolEra selects which of the three per-transaction hashing rules
// and which block-hash regime applies (spec §4.G: "legacy ≤ v0.7,
// v0.7…v0.11, v0.13.2+").
type ProtocolEra int

const (
	EraLegacy ProtocolEra = iota // protocol_version < 0.7.0
	EraV07                       // 0.7.0 <= protocol_version < 0.13.2
	EraV1132                     // protocol_version >= 0.13.2
)

// Era exposes classifyEra to other packages (the import orchestrator
// needs it to pick the right per-transaction hash rule before the
// commitments are folded).
func Era(protocolVersion string) ProtocolEra { return classifyEra(protocolVersion) }

// classifyEra maps a protocol version string to its era. Unparseable
// or empty versions default to EraV07, the long-lived middle regime,
// matching how a gateway that omits the field behaves in practice.
func classifyEra(protocolVersion string) ProtocolEra {
	v := parseVersion(protocolVersion)
	switch {
	case v.lt(version{0, 7, 0}):
		return EraLegacy
	case v.lt(version{0, 13, 2}):
		return EraV07
	default:
		return EraV1132
	}
}

type version struct{ major, minor, patch int }

func (a version) lt(b version) bool {
	if a.major != b.major {
		return a.major < b.major
	}
	if a.minor != b.minor {
		return a.minor < b.minor
	}
	return a.patch < b.patch
}

func parseVersion(s string) version {
	if s == "" {
		return version{0, 7, 0}
	}
	var v version
	parts := [3]*int{&v.major, &v.minor, &v.patch}
	idx, cur, any, seen := 0, 0, false, false
	flush := func() {
		if idx < 3 {
			*parts[idx] = cur
		}
		idx++
		cur = 0
	}
	for _, r := range s {
		if r == '.' {
			flush()
			any = false
			continue
		}
		if r < '0' || r > '9' {
			continue
		}
		cur = cur*10 + int(r-'0')
		any = true
		seen = true
	}
	if !seen {
		return version{0, 7, 0}
	}
	if any || idx < 3 {
		flush()
	}
	return v
}

// --- leaf hashing per era ---------------------------------------------

// transactionHash computes the commitment leaf for one transaction.
// The legacy and v0.7 regimes hash only the transaction's own hash
// (the full transaction encoding's hash is computed upstream by the
// gateway/execution collaborator); v0.13.2+ additionally domain-
// separates by folding in the transaction's declared kind, matching
// the wider per-leaf hash the real protocol introduced alongside
// receipt commitments (spec §4.G, §3: "Payload... opaque... this layer
// only needs to store it and feed it to the commitment engine").
func transactionHash(era ProtocolEra, tx kv.Transaction) *felt.Felt {
	if era == EraV1132 {
		return crypto.Pedersen(&tx.Hash, felt.New(int64(tx.Kind)))
	}
	return &tx.Hash
}

func eventHash(txHash felt.Felt, e kv.Event) *felt.Felt {
	elems := make([]*felt.Felt, 0, 2+len(e.Keys)+len(e.Data))
	elems = append(elems, &txHash, &e.FromAddress)
	for i := range e.Keys {
		elems = append(elems, &e.Keys[i])
	}
	for i := range e.Data {
		elems = append(elems, &e.Data[i])
	}
	return crypto.PedersenArray(elems...)
}

func receiptHash(r kv.Receipt) *felt.Felt {
	status := felt.New(int64(r.ExecutionStatus))
	msgCount := felt.New(int64(len(r.MessagesToL1)))
	return crypto.PedersenArray(&r.TxHash, &r.ActualFee, status, msgCount)
}

// --- commitment roots ---------------------------------------------------

// merkleFold is the Merkle root of leaves, folded pairwise left-to-
// right with a deterministic insertion-order tie-break: odd leaves at
// any level carry forward unchanged rather than duplicating (spec
// §4.G: "deterministic tie-break: insertion order").
func merkleFold(leaves []*felt.Felt) *felt.Felt {
	if len(leaves) == 0 {
		return felt.New(0)
	}
	level := leaves
	for len(level) > 1 {
		next := make([]*felt.Felt, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, crypto.Pedersen(level[i], level[i+1]))
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		level = next
	}
	return level[0]
}

// TransactionCommitment is the merkle root of per-transaction hashes,
// in body order (spec §4.G).
func TransactionCommitment(era ProtocolEra, txs []kv.Transaction) *felt.Felt {
	leaves := make([]*felt.Felt, len(txs))
	for i, tx := range txs {
		leaves[i] = transactionHash(era, tx)
	}
	return merkleFold(leaves)
}

// EventCommitment is the merkle root over the flattened (tx_hash,
// event) sequence in transaction-then-event-within-tx order (spec
// §4.G).
func EventCommitment(receipts []kv.Receipt) *felt.Felt {
	var leaves []*felt.Felt
	for _, r := range receipts {
		for _, e := range r.Events {
			leaves = append(leaves, eventHash(r.TxHash, e))
		}
	}
	return merkleFold(leaves)
}

// ReceiptCommitment is the merkle root over receipts in body order
// (spec §4.G).
func ReceiptCommitment(receipts []kv.Receipt) *felt.Felt {
	leaves := make([]*felt.Felt, len(receipts))
	for i, r := range receipts {
		leaves[i] = receiptHash(r)
	}
	return merkleFold(leaves)
}

// StateDiffCommitment hashes a canonicalized representation of the
// diff, sorted by address then key (spec §4.G). The state diff codec
// doesn't itself canonicalize (kv.EncodeStateDiff's doc comment
// defers that to this package), so sorting happens here immediately
// before folding.
func StateDiffCommitment(diff *kv.StateDiff) *felt.Felt {
	canon := canonicalizeStateDiff(diff)

	var leaves []*felt.Felt
	for i := range canon.DeployedContracts {
		c := &canon.DeployedContracts[i]
		leaves = append(leaves, &c.Address, &c.ClassHash)
	}
	for i := range canon.ReplacedClasses {
		c := &canon.ReplacedClasses[i]
		leaves = append(leaves, &c.Address, &c.ClassHash)
	}
	for i := range canon.Nonces {
		n := &canon.Nonces[i]
		leaves = append(leaves, &n.Address, &n.Nonce)
	}
	for i := range canon.StorageDiffs {
		sd := &canon.StorageDiffs[i]
		leaves = append(leaves, &sd.Address)
		for j := range sd.Entries {
			e := &sd.Entries[j]
			leaves = append(leaves, &e.Key, &e.Value)
		}
	}
	for i := range canon.DeclaredClasses {
		c := &canon.DeclaredClasses[i]
		leaves = append(leaves, &c.ClassHash, &c.CompiledClassHash)
	}
	return crypto.PedersenArray(leaves...)
}

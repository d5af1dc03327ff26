// Copyright 2014 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package kv enumerates the closed set of column families (§4.A) and
// the key/value codec contracts shared by every store built on top of
// the backend. Modeled on common/dbutils/bucket.go's flat list of named
// buckets with physical-layout doc comments, generalized from LMDB
// buckets to RocksDB column families with per-column options.
package kv

// Column is one physical column family. PrefixLen, when non-zero, is
// the length of the fixed-prefix extractor db.Open configures for the
// column: for the history columns, everything up to (excluding) the
// trailing big-endian block number, per spec §3's history-indexed key
// layout.
type Column struct {
	Name     string
	PrefixLen int
	Pending  bool
}

// Physical layout notes mirror the style of common/dbutils/bucket.go:
// one comment block per column/group explaining key and value shape.
const (
	// Meta holds singleton keys: chain id, chain name, sync tip, last
	// flush timestamp.
	Meta = "Meta"

	// MetaSyncTipKey is the Meta-column key blockstore.StoreBlock writes
	// the highest confirmed block number under, and the key any reader
	// needing the current tip (e.g. contractstore's cache-safety check)
	// consults — shared here so the two packages agree on one literal.
	MetaSyncTipKey = "sync_tip"

	// Block storage (6).
	//
	// key - block number (big-endian uint64)
	// value - encoded header / body / receipts / state diff
	Headers        = "Headers"
	Bodies         = "Bodies"
	Receipts       = "Receipts"
	TxHashToBlock  = "TxHashToBlock"  // key - tx hash (32B) -> block number + tx index
	BlockHashToNum = "BlockHashToNum" // key - block hash (32B) -> block number
	PendingBlock   = "PendingBlock"   // single key "pending" -> encoded (header, body, state diff)

	// Class storage (4): class_hash -> class_info / compiled bytecode,
	// plus a pending overlay pair.
	ClassInfo            = "ClassInfo"
	CompiledClass        = "CompiledClass"
	PendingClassInfo     = "PendingClassInfo"
	PendingCompiledClass = "PendingCompiledClass"

	// Contract history (3): history-indexed (contract,block)->value maps.
	// key - contract_address(32B) || block_number(8B, BE)
	ContractClassHistory = "ContractClassHistory"
	ContractNonceHistory = "ContractNonceHistory"
	// key - contract_address(32B) -> deployment block number (no block
	// number suffix in the key).
	ContractDeployedAtHeight = "ContractDeployedAtHeight"

	// Contract pending overlay (2): raw (contract)->value, no block
	// suffix. ContractDeployedAtHeight has no pending counterpart: a
	// deployment only becomes visible once the block that deploys the
	// contract is finalized, so there is nothing to speculate on.
	PendingContractClass = "PendingContractClass"
	PendingContractNonce = "PendingContractNonce"

	// Storage history (1) + pending (1).
	// key - contract_address(32B) || storage_key(32B) || block_number(8B, BE)
	StorageHistory = "StorageHistory"
	PendingStorage = "PendingStorage" // key - contract_address(32B) || storage_key(32B)

	// State-diff (1): block number -> canonical encoded state diff.
	StateDiffs = "StateDiffs"

	// Trie storage (3 logical tries x 3 physical columns = 9).
	ContractsTrieFlat = "ContractsTrieFlat"
	ContractsTrieNode = "ContractsTrieNode"
	ContractsTrieLog  = "ContractsTrieLog"
	StorageTrieFlat   = "StorageTrieFlat"
	StorageTrieNode   = "StorageTrieNode"
	StorageTrieLog    = "StorageTrieLog"
	ClassesTrieFlat   = "ClassesTrieFlat"
	ClassesTrieNode   = "ClassesTrieNode"
	ClassesTrieLog    = "ClassesTrieLog"
)

// AddressPrefixLen is the fixed length, in bytes, of a 32-byte field
// element address/key component preceding the trailing block number in
// a history-indexed key.
const AddressPrefixLen = 32

// Columns is the closed enumeration driving both column-family
// creation at Open and the per-column size metrics in §6. Order is
// insertion order; db.Open opens exactly these column families (plus
// "default"), creating any that are missing on disk.
var Columns = []Column{
	{Name: Meta},

	{Name: Headers},
	{Name: Bodies},
	{Name: Receipts},
	{Name: TxHashToBlock},
	{Name: BlockHashToNum},
	{Name: PendingBlock, Pending: true},

	{Name: ClassInfo},
	{Name: CompiledClass},
	{Name: PendingClassInfo, Pending: true},
	{Name: PendingCompiledClass, Pending: true},

	{Name: ContractClassHistory, PrefixLen: AddressPrefixLen},
	{Name: ContractNonceHistory, PrefixLen: AddressPrefixLen},
	{Name: ContractDeployedAtHeight, PrefixLen: AddressPrefixLen},

	{Name: PendingContractClass, Pending: true},
	{Name: PendingContractNonce, Pending: true},

	{Name: StorageHistory, PrefixLen: AddressPrefixLen * 2},
	{Name: PendingStorage, Pending: true},

	{Name: StateDiffs},

	{Name: ContractsTrieFlat},
	{Name: ContractsTrieNode},
	{Name: ContractsTrieLog},
	{Name: StorageTrieFlat},
	{Name: StorageTrieNode},
	{Name: StorageTrieLog},
	{Name: ClassesTrieFlat},
	{Name: ClassesTrieNode},
	{Name: ClassesTrieLog},
}

// PendingColumns returns the subset of Columns that make up the
// pending overlay. The stores' ClearPending methods each list their
// own pending columns and do not call it.
func PendingColumns() []string {
	var out []string
	for _, c := range Columns {
		if c.Pending {
			out = append(out, c.Name)
		}
	}
	return out
}

// Names returns every column family name, in catalog order, plus the
// RocksDB-mandatory "default" column family.
func Names() []string {
	out := make([]string, 0, len(Columns)+1)
	out = append(out, "default")
	for _, c := range Columns {
		out = append(out, c.Name)
	}
	return out
}

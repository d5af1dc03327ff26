// Package contractstore implements the contract history store (spec
// §4.D): history-indexed (contract,block)->class_hash and
// (contract,block)->nonce maps, the (contract,key,block)->value
// storage map, and their pending overlays. Grounded on
// core/state/history.go's FindByHistory, which seeks a history index
// bucket and walks backward to the newest entry at or before a target
// block — generalized here from turbo-geth's changeset+index scheme to
// a direct reverse range scan over a prefix-extractor column, matching
// madara's crates/client/db/src/storage_updates.rs batched upsert and
// the read-through pending-then-history fallback order it implements.
package contractstore

import (
	"bytes"
	"encoding/binary"
	"fmt"

	idb "github.com/starknetfull/corestore/internal/db"
	"github.com/starknetfull/corestore/internal/errs"
	"github.com/starknetfull/corestore/internal/felt"
	"github.com/starknetfull/corestore/internal/kv"
	"github.com/starknetfull/corestore/log"
)

type Store struct {
	b       *idb.Backend
	log     log.Logger
	touched *touchedBlocks
}

func New(b *idb.Backend) *Store {
	return &Store{b: b, log: log.New("component", "contractstore"), touched: newTouchedBlocks()}
}

// WarmAccelerator backfills the in-memory touched-blocks index from
// on-disk history so the accelerator is effective immediately after a
// restart, not only once this process has written fresh blocks
// (SPEC_FULL §2: RoaringBitmap/roaring secondary acceleration index).
func (s *Store) WarmAccelerator() error {
	for _, col := range []string{kv.ContractClassHistory, kv.ContractNonceHistory, kv.StorageHistory} {
		if err := s.touched.Backfill(s, col); err != nil {
			return err
		}
	}
	return nil
}

// --- class hash ---------------------------------------------------------

func (s *Store) ContractClassHashAt(addr felt.Felt, at uint64) (*felt.Felt, error) {
	return s.historyGet(kv.ContractClassHistory, contractPrefix(addr), at)
}

func (s *Store) ContractClassHashAtPending(addr felt.Felt, tip uint64) (*felt.Felt, error) {
	return s.pendingGet(kv.PendingContractClass, contractPrefix(addr), kv.ContractClassHistory, contractPrefix(addr), tip)
}

// --- nonce ---------------------------------------------------------------

func (s *Store) ContractNonceAt(addr felt.Felt, at uint64) (*felt.Felt, error) {
	return s.historyGet(kv.ContractNonceHistory, contractPrefix(addr), at)
}

func (s *Store) ContractNonceAtPending(addr felt.Felt, tip uint64) (*felt.Felt, error) {
	return s.pendingGet(kv.PendingContractNonce, contractPrefix(addr), kv.ContractNonceHistory, contractPrefix(addr), tip)
}

// --- storage ---------------------------------------------------------------

// ContractStorageAt is the §4.D Get contract: a reverse range scan on
// the prefix contract‖key‖… starting from at, returning the first hit.
func (s *Store) ContractStorageAt(addr, key felt.Felt, at uint64) (*felt.Felt, error) {
	return s.historyGet(kv.StorageHistory, storagePrefix(addr, key), at)
}

func (s *Store) ContractStorageAtPending(addr, key felt.Felt, tip uint64) (*felt.Felt, error) {
	prefix := storagePrefix(addr, key)
	return s.pendingGet(kv.PendingStorage, prefix, kv.StorageHistory, prefix, tip)
}

// --- writes ---------------------------------------------------------------

// classUpdate/nonceUpdate/storageUpdate are the three kinds of entries
// WriteBlock batches together for one committed block.
type classUpdate struct {
	addr      felt.Felt
	classHash felt.Felt
}

type nonceUpdate struct {
	addr  felt.Felt
	nonce felt.Felt
}

type storageUpdate struct {
	addr  felt.Felt
	key   felt.Felt
	value felt.Felt
}

// WriteBlock performs the batched upsert of every (contract,key,block)
// entry a state diff touches, for blockNumber. The caller must supply a
// block number greater than any previously stored block for each
// touched (contract,key) — violating it is an InvariantViolated panic
// (spec §4.D).
//
// Per spec §3's invariant, a deployed contract implicitly sets nonce to
// 0 unless an explicit nonce update in the same diff overrides it.
func (s *Store) WriteBlock(diff *kv.StateDiff, blockNumber uint64) error {
	classes := make([]classUpdate, 0, len(diff.DeployedContracts)+len(diff.ReplacedClasses))
	for _, c := range diff.DeployedContracts {
		classes = append(classes, classUpdate{c.Address, c.ClassHash})
	}
	for _, c := range diff.ReplacedClasses {
		classes = append(classes, classUpdate{c.Address, c.ClassHash})
	}

	nonces := make(map[[32]byte]nonceUpdate, len(diff.DeployedContracts)+len(diff.Nonces))
	for _, c := range diff.DeployedContracts {
		nonces[c.Address.Bytes()] = nonceUpdate{c.Address, felt.Zero}
	}
	for _, n := range diff.Nonces {
		nonces[n.Address.Bytes()] = nonceUpdate{n.Address, n.Nonce}
	}

	var storages []storageUpdate
	for _, sd := range diff.StorageDiffs {
		for _, e := range sd.Entries {
			storages = append(storages, storageUpdate{sd.Address, e.Key, e.Value})
		}
	}

	wb := s.b.NewWriteBatch()
	defer wb.Destroy()

	for _, c := range classes {
		s.checkMonotone(kv.ContractClassHistory, contractPrefix(c.addr), blockNumber)
		wb.PutCF(s.b.GetColumn(kv.ContractClassHistory), kv.HistoryKey(c.addr.Bytes(), nil, blockNumber), kv.EncodeFeltValue(c.classHash))
		s.touched.record(c.addr.Bytes(), blockNumber)
	}
	for _, n := range nonces {
		s.checkMonotone(kv.ContractNonceHistory, contractPrefix(n.addr), blockNumber)
		wb.PutCF(s.b.GetColumn(kv.ContractNonceHistory), kv.HistoryKey(n.addr.Bytes(), nil, blockNumber), kv.EncodeFeltValue(n.nonce))
		s.touched.record(n.addr.Bytes(), blockNumber)
	}
	for _, st := range storages {
		prefix := storagePrefix(st.addr, st.key)
		s.checkMonotone(kv.StorageHistory, prefix, blockNumber)
		wb.PutCF(s.b.GetColumn(kv.StorageHistory), kv.HistoryKey(st.addr.Bytes(), keyBytes(st.key), blockNumber), kv.EncodeFeltValue(st.value))
		s.touched.record(st.addr.Bytes(), blockNumber)
	}
	for _, c := range diff.DeployedContracts {
		wb.PutCF(s.b.GetColumn(kv.ContractDeployedAtHeight), c.Address.Bytes()[:], kv.EncodeBlockNumber(blockNumber))
	}

	if err := s.b.Write(wb); err != nil {
		return fmt.Errorf("%w: writing contract history for block %d: %v", errs.Io, blockNumber, err)
	}
	return nil
}

// checkMonotone panics with InvariantViolated if blockNumber is not
// strictly greater than the newest entry already stored for prefix —
// the precondition WriteBlock's caller must uphold (spec §4.D).
func (s *Store) checkMonotone(col string, prefix []byte, blockNumber uint64) {
	_, lastBlock, found, err := s.latestAtOrBefore(col, prefix, ^uint64(0))
	if err != nil {
		errs.Panic(fmt.Sprintf("reading monotonicity check for %s: %v", col, err))
	}
	if found && lastBlock >= blockNumber {
		errs.Panic(fmt.Sprintf("out-of-order write to %s: new block %d <= existing %d", col, blockNumber, lastBlock))
	}
}

// WritePending writes the raw (contract,key)->value tuples of a
// pending state diff into the pending overlay columns, with no block
// number suffix (spec §4.D).
func (s *Store) WritePending(diff *kv.StateDiff) error {
	wb := s.b.NewWriteBatch()
	defer wb.Destroy()

	for _, c := range diff.DeployedContracts {
		wb.PutCF(s.b.GetColumn(kv.PendingContractClass), c.Address.Bytes()[:], kv.EncodeFeltValue(c.ClassHash))
		wb.PutCF(s.b.GetColumn(kv.PendingContractNonce), c.Address.Bytes()[:], kv.EncodeFeltValue(felt.Zero))
	}
	for _, c := range diff.ReplacedClasses {
		wb.PutCF(s.b.GetColumn(kv.PendingContractClass), c.Address.Bytes()[:], kv.EncodeFeltValue(c.ClassHash))
	}
	for _, n := range diff.Nonces {
		wb.PutCF(s.b.GetColumn(kv.PendingContractNonce), n.Address.Bytes()[:], kv.EncodeFeltValue(n.Nonce))
	}
	for _, sd := range diff.StorageDiffs {
		for _, e := range sd.Entries {
			wb.PutCF(s.b.GetColumn(kv.PendingStorage), storagePrefix(sd.Address, e.Key), kv.EncodeFeltValue(e.Value))
		}
	}

	if err := s.b.Write(wb); err != nil {
		return fmt.Errorf("%w: writing pending contract overlay: %v", errs.Io, err)
	}
	return nil
}

// ClearPending empties every pending-overlay column this store owns.
// Each is a distinct physical column, so the wipe never touches
// history data. It is a scan-and-delete: every key of the column is
// iterated and deleted in one write batch per column, so its cost
// grows with the overlay's size; the column is not dropped or
// range-deleted.
func (s *Store) ClearPending() error {
	for _, col := range []string{kv.PendingContractClass, kv.PendingContractNonce, kv.PendingStorage} {
		if err := s.clearColumn(col); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) clearColumn(col string) error {
	h := s.b.GetColumn(col)
	it := s.b.DB().NewIteratorCF(s.b.ReadOptions(), h)
	defer it.Close()

	wb := s.b.NewWriteBatch()
	defer wb.Destroy()
	for it.SeekToFirst(); it.Valid(); it.Next() {
		k := it.Key()
		wb.DeleteCF(h, append([]byte(nil), k.Data()...))
		k.Free()
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("%w: scanning %s: %v", errs.Io, col, err)
	}
	if err := s.b.Write(wb); err != nil {
		return fmt.Errorf("%w: clearing %s: %v", errs.Io, col, err)
	}
	return nil
}

// --- shared read helpers ---------------------------------------------------

// historyGet performs the O(1)-seek reverse scan §4.D specifies: seek
// to the first key <= prefix‖at, verify it still carries prefix, and
// decode its value.
func (s *Store) historyGet(col string, prefix []byte, at uint64) (*felt.Felt, error) {
	if len(prefix) >= 32 {
		var addr [32]byte
		copy(addr[:], prefix[:32])
		if s.touched.definitelyAbsentBefore(addr, at) {
			return nil, idb.NotFound()
		}
	}
	v, _, found, err := s.latestAtOrBefore(col, prefix, at)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, idb.NotFound()
	}
	f, err := kv.DecodeFeltValue(v)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// latestAtOrBefore performs the reverse-scan seek. The answer for a
// given (col,prefix,at) is memoized in the backend's shared fastcache
// instance, but only when at is strictly below the currently synced
// tip: once the chain has passed at, no future write can land at or
// before it, so the result is fixed forever. A query for at >= tip
// (including checkMonotone's ^uint64(0) sentinel, and any lookup for a
// block the chain hasn't reached yet) is never cached, because a write
// arriving between this call and the next one for the same (col,
// prefix) could change the answer — caching it would let a stale "not
// found" or stale value survive past the write that invalidates it.
func (s *Store) latestAtOrBefore(col string, prefix []byte, at uint64) (value []byte, blockNumber uint64, found bool, err error) {
	seekKey := append(append([]byte(nil), prefix...), kv.EncodeBlockNumber(at)...)

	cacheable := s.belowSyncTip(at)
	var memoKey []byte
	if cacheable {
		memoKey = append(append([]byte(col), ':'), seekKey...)
		if cached, ok := s.b.Cache().HasGet(nil, memoKey); ok {
			return decodeHistoryMemo(cached)
		}
	}

	h := s.b.GetColumn(col)
	it := s.b.DB().NewIteratorCF(s.b.ReadOptions(), h)
	defer it.Close()

	it.SeekForPrev(seekKey)
	if !it.Valid() {
		if cacheable {
			s.b.Cache().Set(memoKey, encodeHistoryMemo(nil, 0, false))
		}
		return nil, 0, false, nil
	}
	k := it.Key()
	defer k.Free()
	if !bytes.HasPrefix(k.Data(), prefix) {
		if cacheable {
			s.b.Cache().Set(memoKey, encodeHistoryMemo(nil, 0, false))
		}
		return nil, 0, false, nil
	}
	_, bn, err := kv.SplitHistoryKey(k.Data())
	if err != nil {
		return nil, 0, false, err
	}
	v := it.Value()
	defer v.Free()
	out := make([]byte, v.Size())
	copy(out, v.Data())

	if cacheable {
		s.b.Cache().Set(memoKey, encodeHistoryMemo(out, bn, true))
	}
	return out, bn, true, nil
}

// belowSyncTip reports whether at is strictly below the highest
// committed block number, i.e. whether a result for at is settled and
// safe to memoize. With no block committed yet, nothing is cacheable.
func (s *Store) belowSyncTip(at uint64) bool {
	raw, err := s.get(kv.Meta, []byte(kv.MetaSyncTipKey))
	if err != nil || raw == nil {
		return false
	}
	return at < kv.DecodeBlockNumber(raw)
}

// encodeHistoryMemo/decodeHistoryMemo pack a latestAtOrBefore result
// into a single byte slice for the shared cache: a found flag, the
// matched block number, and the raw encoded value.
func encodeHistoryMemo(value []byte, blockNumber uint64, found bool) []byte {
	out := make([]byte, 9+len(value))
	if found {
		out[0] = 1
	}
	binary.BigEndian.PutUint64(out[1:9], blockNumber)
	copy(out[9:], value)
	return out
}

func decodeHistoryMemo(raw []byte) (value []byte, blockNumber uint64, found bool, err error) {
	if len(raw) < 9 {
		return nil, 0, false, nil
	}
	found = raw[0] == 1
	blockNumber = binary.BigEndian.Uint64(raw[1:9])
	if !found {
		return nil, 0, false, nil
	}
	value = append([]byte(nil), raw[9:]...)
	return value, blockNumber, true, nil
}

// pendingGet checks the pending overlay first, then falls back to the
// historical query at the current tip (spec §4.D: "get_at_pending
// first checks the pending overlay, then falls back").
func (s *Store) pendingGet(pendingCol string, pendingKey []byte, historyCol string, historyPrefix []byte, tip uint64) (*felt.Felt, error) {
	raw, err := s.get(pendingCol, pendingKey)
	if err != nil {
		return nil, err
	}
	if raw != nil {
		f, err := kv.DecodeFeltValue(raw)
		if err != nil {
			return nil, err
		}
		return &f, nil
	}
	return s.historyGet(historyCol, historyPrefix, tip)
}

func (s *Store) get(col string, key []byte) ([]byte, error) {
	v, err := s.b.DB().GetCF(s.b.ReadOptions(), s.b.GetColumn(col), key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.Io, err)
	}
	defer v.Free()
	if v.Size() == 0 {
		return nil, nil
	}
	out := make([]byte, v.Size())
	copy(out, v.Data())
	return out, nil
}

func contractPrefix(addr felt.Felt) []byte {
	b := addr.Bytes()
	return b[:]
}

func storagePrefix(addr, key felt.Felt) []byte {
	return kv.HistoryPrefix(addr.Bytes(), keyBytes(key))
}

func keyBytes(k felt.Felt) []byte {
	b := k.Bytes()
	return b[:]
}

package blockstore

import (
	"encoding/binary"
	"fmt"

	idb "github.com/starknetfull/corestore/internal/db"
	"github.com/starknetfull/corestore/internal/errs"
	"github.com/starknetfull/corestore/internal/felt"
	"github.com/starknetfull/corestore/internal/kv"
	"github.com/starknetfull/corestore/log"
)

var (
	metaSyncTipKey      = []byte(kv.MetaSyncTipKey)
	metaLastFlushKey    = []byte("last_flush_ts")
	pendingSingletonKey = []byte("pending")
)

// Store is the block store of spec §4.C.
type Store struct {
	b   *idb.Backend
	log log.Logger
}

func New(b *idb.Backend) *Store {
	return &Store{b: b, log: log.New("component", "blockstore")}
}

// StoreBlock commits the block and its derived indices in one write
// batch: header, body, state diff, tx-hash index, block-hash index,
// sync tip (spec §4.C ordering).
func (s *Store) StoreBlock(header *kv.Header, body *kv.Body, diff *kv.StateDiff) error {
	if header.IsPending() {
		return fmt.Errorf("%w: StoreBlock called with a pending header", errs.BlockFormat)
	}
	n := *header.Number
	numKey := kv.EncodeBlockNumber(n)

	wb := s.b.NewWriteBatch()
	defer wb.Destroy()

	wb.PutCF(s.b.GetColumn(kv.Headers), numKey, kv.EncodeHeader(header))
	txs := make([]kv.Transaction, len(body.Transactions))
	copy(txs, body.Transactions)
	wb.PutCF(s.b.GetColumn(kv.Bodies), numKey, kv.EncodeTransactions(txs))
	wb.PutCF(s.b.GetColumn(kv.Receipts), numKey, kv.EncodeReceipts(body.Receipts))
	wb.PutCF(s.b.GetColumn(kv.StateDiffs), numKey, kv.EncodeStateDiff(diff))

	for i, tx := range body.Transactions {
		txHashKey := feltKey(tx.Hash)
		wb.PutCF(s.b.GetColumn(kv.TxHashToBlock), txHashKey, encodeTxLocation(n, i))
	}

	blockHashKey := feltKey(header.BlockHash)
	wb.PutCF(s.b.GetColumn(kv.BlockHashToNum), blockHashKey, numKey)

	wb.PutCF(s.b.GetColumn(kv.Meta), metaSyncTipKey, numKey)

	if err := s.b.Write(wb); err != nil {
		return fmt.Errorf("%w: committing block %d: %v", errs.Io, n, err)
	}
	s.log.Debug("stored block", "number", n, "txs", len(body.Transactions))
	return nil
}

// StorePendingBlock replaces the entire pending-overlay block set
// atomically (spec §4.C). The contract/class pending overlays are
// owned by their respective stores; this only covers the pending
// header/body/state-diff singleton.
func (s *Store) StorePendingBlock(header *kv.Header, body *kv.Body, diff *kv.StateDiff) error {
	if !header.IsPending() {
		return fmt.Errorf("%w: StorePendingBlock called with a confirmed header", errs.BlockFormat)
	}
	wb := s.b.NewWriteBatch()
	defer wb.Destroy()

	payload := encodePending(header, body, diff)
	wb.PutCF(s.b.GetColumn(kv.PendingBlock), pendingSingletonKey, payload)

	if err := s.b.Write(wb); err != nil {
		return fmt.Errorf("%w: storing pending block: %v", errs.Io, err)
	}
	return nil
}

// ClearPending empties the pending-block column. Contract/class
// pending overlays are cleared by their own stores; the orchestrator
// calls all of them together (spec §4.C).
func (s *Store) ClearPending() error {
	wb := s.b.NewWriteBatch()
	defer wb.Destroy()
	wb.DeleteCF(s.b.GetColumn(kv.PendingBlock), pendingSingletonKey)
	if err := s.b.Write(wb); err != nil {
		return fmt.Errorf("%w: clearing pending block: %v", errs.Io, err)
	}
	return nil
}

// GetBlockInfo resolves id and returns its header. Latest resolves to
// the sync tip; Pending resolves to the overlay, falling back to the
// tip if no pending block exists (spec §4.C).
func (s *Store) GetBlockInfo(id ID) (*kv.Header, error) {
	if id.kind == idPending {
		if h, _, _, ok, err := s.readPending(); err != nil {
			return nil, err
		} else if ok {
			return h, nil
		}
		id = Latest()
	}

	n, err := s.resolveNumber(id)
	if err != nil {
		return nil, err
	}
	raw, err := s.get(kv.Headers, kv.EncodeBlockNumber(n))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, idb.NotFound()
	}
	return kv.DecodeHeader(raw)
}

// GetBlockInner returns the transactions+receipts body for id.
func (s *Store) GetBlockInner(id ID) (*kv.Body, error) {
	if id.kind == idPending {
		if _, body, _, ok, err := s.readPending(); err != nil {
			return nil, err
		} else if ok {
			return body, nil
		}
		id = Latest()
	}

	n, err := s.resolveNumber(id)
	if err != nil {
		return nil, err
	}
	numKey := kv.EncodeBlockNumber(n)

	txRaw, err := s.get(kv.Bodies, numKey)
	if err != nil {
		return nil, err
	}
	if txRaw == nil {
		return nil, idb.NotFound()
	}
	txs, err := kv.DecodeTransactions(txRaw)
	if err != nil {
		return nil, err
	}

	rcRaw, err := s.get(kv.Receipts, numKey)
	if err != nil {
		return nil, err
	}
	var receipts []kv.Receipt
	if rcRaw != nil {
		if receipts, err = kv.DecodeReceipts(rcRaw); err != nil {
			return nil, err
		}
	}
	return &kv.Body{Transactions: txs, Receipts: receipts}, nil
}

// GetStateDiff returns the state diff committed at block n.
func (s *Store) GetStateDiff(n uint64) (*kv.StateDiff, error) {
	raw, err := s.get(kv.StateDiffs, kv.EncodeBlockNumber(n))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, idb.NotFound()
	}
	return kv.DecodeStateDiff(raw)
}

// FindTxHashBlock looks up the (block, tx_index) pair a transaction
// hash was last written under. Many-to-one writes are latest-write-
// wins (spec §4.C): re-ingesting a tx hash at a new block overwrites
// the old mapping.
//
// Per spec §9 open question (a), pending transactions are never
// indexed here (the source's "TODO tx_hash" gap), so a pending-only
// transaction hash always resolves to not-found.
func (s *Store) FindTxHashBlock(txHash felt.Felt) (blockNumber uint64, txIndex int, err error) {
	raw, err := s.get(kv.TxHashToBlock, feltKey(txHash))
	if err != nil {
		return 0, 0, err
	}
	if raw == nil {
		return 0, 0, idb.NotFound()
	}
	n, idx := decodeTxLocation(raw)
	return n, idx, nil
}

func (s *Store) resolveNumber(id ID) (uint64, error) {
	switch id.kind {
	case idNumber:
		return id.number, nil
	case idHash:
		raw, err := s.get(kv.BlockHashToNum, feltKey(id.hash))
		if err != nil {
			return 0, err
		}
		if raw == nil {
			return 0, idb.NotFound()
		}
		return kv.DecodeBlockNumber(raw), nil
	case idLatest:
		raw, err := s.get(kv.Meta, metaSyncTipKey)
		if err != nil {
			return 0, err
		}
		if raw == nil {
			return 0, idb.NotFound()
		}
		return kv.DecodeBlockNumber(raw), nil
	default:
		return 0, fmt.Errorf("%w: unresolvable block id", errs.BlockFormat)
	}
}

func (s *Store) readPending() (*kv.Header, *kv.Body, *kv.StateDiff, bool, error) {
	raw, err := s.get(kv.PendingBlock, pendingSingletonKey)
	if err != nil {
		return nil, nil, nil, false, err
	}
	if raw == nil {
		return nil, nil, nil, false, nil
	}
	h, body, diff, err := decodePending(raw)
	if err != nil {
		return nil, nil, nil, false, err
	}
	return h, body, diff, true, nil
}

// SyncTip returns the highest committed block number, or ok=false if
// no block has ever been committed.
func (s *Store) SyncTip() (n uint64, ok bool, err error) {
	raw, err := s.get(kv.Meta, metaSyncTipKey)
	if err != nil {
		return 0, false, err
	}
	if raw == nil {
		return 0, false, nil
	}
	return kv.DecodeBlockNumber(raw), true, nil
}

// RecordFlush stamps Meta with the wall-clock time of the most recent
// flush (spec §3 Meta: "last flush timestamp").
func (s *Store) RecordFlush(unixNano int64) error {
	wb := s.b.NewWriteBatch()
	defer wb.Destroy()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(unixNano))
	wb.PutCF(s.b.GetColumn(kv.Meta), metaLastFlushKey, buf[:])
	return s.b.Write(wb)
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

func feltKey(f felt.Felt) []byte {
	b := f.Bytes()
	return b[:]
}

func encodeTxLocation(blockNumber uint64, txIndex int) []byte {
	out := make([]byte, 12)
	binary.BigEndian.PutUint64(out[:8], blockNumber)
	binary.BigEndian.PutUint32(out[8:], uint32(txIndex))
	return out
}

func decodeTxLocation(b []byte) (uint64, int) {
	return binary.BigEndian.Uint64(b[:8]), int(binary.BigEndian.Uint32(b[8:]))
}

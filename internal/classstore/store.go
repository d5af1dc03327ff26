// Package classstore implements the class store (spec §4.E): the
// append-only class_hash -> (class_info, compiled bytecode) mapping
// and its pending overlay. Grounded on core/state/db_state_writer.go's
// WriteAccountStorage, generalized from its per-account bucket writes
// to a flat, two-column class catalog, with the append-only rewrite
// guard modeled on migrations/migrations.go's refusal to re-apply a
// migration that has already run. Confirmed-catalog reads go through
// the backend's shared fastcache read-through cache (internal/db),
// since a class hash is content-addressed and never rewritten once
// declared.
package classstore

import (
	"fmt"

	"github.com/valyala/gozstd"

	idb "github.com/starknetfull/corestore/internal/db"
	"github.com/starknetfull/corestore/internal/errs"
	"github.com/starknetfull/corestore/internal/felt"
	"github.com/starknetfull/corestore/internal/kv"
	"github.com/starknetfull/corestore/log"
)

type Store struct {
	b   *idb.Backend
	log log.Logger
}

func New(b *idb.Backend) *Store {
	return &Store{b: b, log: log.New("component", "classstore")}
}

// ClassInfo returns the declared metadata for classHash, checking the
// pending overlay first (spec §4.E: "class lookups consult the pending
// overlay before the confirmed catalog").
func (s *Store) ClassInfo(classHash felt.Felt) (*kv.ClassInfo, error) {
	if raw, err := s.get(kv.PendingClassInfo, key(classHash)); err != nil {
		return nil, err
	} else if raw != nil {
		return kv.DecodeClassInfo(raw)
	}
	raw, found, err := s.b.CachedGetCF(s.b.GetColumn(kv.ClassInfo), kv.ClassInfo, key(classHash))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, idb.NotFound()
	}
	return kv.DecodeClassInfo(raw)
}

// CompiledClass returns the compiled (CASM) bytecode for classHash,
// transparently decompressing the zstd frame each write path stores it
// under (see compressCasm).
func (s *Store) CompiledClass(classHash felt.Felt) ([]byte, error) {
	if raw, err := s.get(kv.PendingCompiledClass, key(classHash)); err != nil {
		return nil, err
	} else if raw != nil {
		return decompressCasm(raw)
	}
	raw, found, err := s.b.CachedGetCF(s.b.GetColumn(kv.CompiledClass), kv.CompiledClass, key(classHash))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, idb.NotFound()
	}
	return decompressCasm(raw)
}

// compressCasm/decompressCasm apply value-level zstd compression to
// compiled-class bytecode before it hits a column — large blobs that
// benefit from compression beyond the column's own zstd option, the
// way SPEC_FULL §2 describes valyala/gozstd's role: a codec-layer
// extra compression pass for this specific large-value column, not a
// replacement for the column's own compression setting (spec §4.A).
func compressCasm(casm []byte) []byte {
	return gozstd.Compress(nil, casm)
}

func decompressCasm(raw []byte) ([]byte, error) {
	out, err := gozstd.Decompress(nil, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decompressing compiled class: %v", errs.Codec, err)
	}
	return out, nil
}

// WriteBlock declares the classes a confirmed block's state diff
// introduces, annotated with declaredAtBlock. The catalog is append-
// only: re-declaring an already-known class hash with a different
// compiled-class hash is an InvariantViolated panic (spec §4.E), since
// that can only happen from a programming error in the caller, never
// from legitimate chain data (class hashes are content-addressed).
func (s *Store) WriteBlock(diff *kv.StateDiff, compiled map[[32]byte][]byte, blockNumber uint64) error {
	wb := s.b.NewWriteBatch()
	defer wb.Destroy()

	for _, dc := range diff.DeclaredClasses {
		existing, err := s.get(kv.ClassInfo, key(dc.ClassHash))
		if err != nil {
			return err
		}
		if existing != nil {
			prev, err := kv.DecodeClassInfo(existing)
			if err != nil {
				return err
			}
			if prev.CompiledClassHash.Cmp(&dc.CompiledClassHash) != 0 {
				errs.Panic(fmt.Sprintf("class %s redeclared with a different compiled-class hash", dc.ClassHash.String()))
			}
			continue
		}

		info := &kv.ClassInfo{
			ClassHash:         dc.ClassHash,
			DeclaredAtBlock:   blockNumber,
			CompiledClassHash: dc.CompiledClassHash,
			ContractClass:     compiled[dc.ClassHash.Bytes()],
		}
		wb.PutCF(s.b.GetColumn(kv.ClassInfo), key(dc.ClassHash), kv.EncodeClassInfo(info))
		if casm, ok := compiled[dc.ClassHash.Bytes()]; ok {
			wb.PutCF(s.b.GetColumn(kv.CompiledClass), key(dc.ClassHash), compressCasm(casm))
		}
	}

	if err := s.b.Write(wb); err != nil {
		return fmt.Errorf("%w: declaring classes for block %d: %v", errs.Io, blockNumber, err)
	}
	return nil
}

// WritePending stages a pending block's declared classes in the
// overlay, with DeclaredAtBlock left at 0 — it is unknown until the
// block finalizes and FinalizePending rewrites it (spec §4.E).
func (s *Store) WritePending(diff *kv.StateDiff, compiled map[[32]byte][]byte) error {
	wb := s.b.NewWriteBatch()
	defer wb.Destroy()

	for _, dc := range diff.DeclaredClasses {
		info := &kv.ClassInfo{
			ClassHash:         dc.ClassHash,
			CompiledClassHash: dc.CompiledClassHash,
			ContractClass:     compiled[dc.ClassHash.Bytes()],
		}
		wb.PutCF(s.b.GetColumn(kv.PendingClassInfo), key(dc.ClassHash), kv.EncodeClassInfo(info))
		if casm, ok := compiled[dc.ClassHash.Bytes()]; ok {
			wb.PutCF(s.b.GetColumn(kv.PendingCompiledClass), key(dc.ClassHash), compressCasm(casm))
		}
	}

	if err := s.b.Write(wb); err != nil {
		return fmt.Errorf("%w: writing pending class overlay: %v", errs.Io, err)
	}
	return nil
}

// FinalizePending folds every class staged in the pending overlay into
// the confirmed catalog, stamped with the real block number, then
// clears the overlay — the atomic fold-then-clear spec §3 describes
// for pending-overlay finalization.
func (s *Store) FinalizePending(blockNumber uint64) error {
	pending, err := s.scanAll(kv.PendingClassInfo)
	if err != nil {
		return err
	}

	wb := s.b.NewWriteBatch()
	defer wb.Destroy()

	for k, raw := range pending {
		info, err := kv.DecodeClassInfo(raw)
		if err != nil {
			return err
		}
		existing, err := s.get(kv.ClassInfo, []byte(k))
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		info.DeclaredAtBlock = blockNumber
		wb.PutCF(s.b.GetColumn(kv.ClassInfo), []byte(k), kv.EncodeClassInfo(info))

		if casm, err := s.get(kv.PendingCompiledClass, []byte(k)); err != nil {
			return err
		} else if casm != nil {
			wb.PutCF(s.b.GetColumn(kv.CompiledClass), []byte(k), casm)
		}
	}

	h1, h2 := s.b.GetColumn(kv.PendingClassInfo), s.b.GetColumn(kv.PendingCompiledClass)
	for k := range pending {
		wb.DeleteCF(h1, []byte(k))
		wb.DeleteCF(h2, []byte(k))
	}

	if err := s.b.Write(wb); err != nil {
		return fmt.Errorf("%w: finalizing pending classes at block %d: %v", errs.Io, blockNumber, err)
	}
	return nil
}

// ClearPending empties both pending class columns without folding —
// used when a pending block is superseded rather than finalized.
func (s *Store) ClearPending() error {
	pending, err := s.scanAll(kv.PendingClassInfo)
	if err != nil {
		return err
	}
	wb := s.b.NewWriteBatch()
	defer wb.Destroy()
	h1, h2 := s.b.GetColumn(kv.PendingClassInfo), s.b.GetColumn(kv.PendingCompiledClass)
	for k := range pending {
		wb.DeleteCF(h1, []byte(k))
		wb.DeleteCF(h2, []byte(k))
	}
	if err := s.b.Write(wb); err != nil {
		return fmt.Errorf("%w: clearing pending classes: %v", errs.Io, err)
	}
	return nil
}

func (s *Store) scanAll(col string) (map[string][]byte, error) {
	h := s.b.GetColumn(col)
	it := s.b.DB().NewIteratorCF(s.b.ReadOptions(), h)
	defer it.Close()

	out := make(map[string][]byte)
	for it.SeekToFirst(); it.Valid(); it.Next() {
		k := it.Key()
		v := it.Value()
		out[string(k.Data())] = append([]byte(nil), v.Data()...)
		k.Free()
		v.Free()
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("%w: scanning %s: %v", errs.Io, col, err)
	}
	return out, nil
}

func (s *Store) get(col string, k []byte) ([]byte, error) {
	v, err := s.b.DB().GetCF(s.b.ReadOptions(), s.b.GetColumn(col), k)
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

func key(classHash felt.Felt) []byte {
	b := classHash.Bytes()
	return b[:]
}

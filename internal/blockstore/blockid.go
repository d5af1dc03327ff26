// Package blockstore implements the block store (spec §4.C): block
// header/body/state-diff persistence, the pending-block overlay, and
// the tx-hash/block-hash secondary indices. Grounded on common/dbutils'
// HeaderPrefix/BlockBodyPrefix/TxLookupPrefix key scheme, generalized
// from geth's num+hash composite keys to this catalog's plain
// block-number keys (spec requires block numbers to be dense and
// monotone, so the hash suffix geth needs for reorg disambiguation
// isn't required here).
package blockstore

import "github.com/starknetfull/corestore/internal/felt"

type idKind int

const (
	idNumber idKind = iota
	idHash
	idLatest
	idPending
)

// ID addresses a block by number, hash, or tag — the three shapes spec
// §3 requires ("Latest", "Pending", or a concrete number/hash).
type ID struct {
	kind   idKind
	number uint64
	hash   felt.Felt
}

func ByNumber(n uint64) ID { return ID{kind: idNumber, number: n} }
func ByHash(h felt.Felt) ID { return ID{kind: idHash, hash: h} }
func Latest() ID            { return ID{kind: idLatest} }
func Pending() ID           { return ID{kind: idPending} }

package commitment

import (
	"bytes"
	"sort"

	"github.com/starknetfull/corestore/internal/felt"
	"github.com/starknetfull/corestore/internal/kv"
)

// canonicalizeStateDiff returns a copy of diff with every slice sorted
// by address, then key where applicable — the canonical order
// StateDiffCommitment folds over (spec §4.G).
func canonicalizeStateDiff(diff *kv.StateDiff) *kv.StateDiff {
	out := &kv.StateDiff{
		DeployedContracts: append([]kv.DeployedContract(nil), diff.DeployedContracts...),
		ReplacedClasses:   append([]kv.ReplacedClass(nil), diff.ReplacedClasses...),
		Nonces:            append([]kv.NonceUpdate(nil), diff.Nonces...),
		StorageDiffs:      make([]kv.StorageDiff, len(diff.StorageDiffs)),
		DeclaredClasses:   append([]kv.DeclaredClass(nil), diff.DeclaredClasses...),
	}

	sort.Slice(out.DeployedContracts, func(i, j int) bool {
		return feltLess(out.DeployedContracts[i].Address, out.DeployedContracts[j].Address)
	})
	sort.Slice(out.ReplacedClasses, func(i, j int) bool {
		return feltLess(out.ReplacedClasses[i].Address, out.ReplacedClasses[j].Address)
	})
	sort.Slice(out.Nonces, func(i, j int) bool {
		return feltLess(out.Nonces[i].Address, out.Nonces[j].Address)
	})
	sort.Slice(out.DeclaredClasses, func(i, j int) bool {
		return feltLess(out.DeclaredClasses[i].ClassHash, out.DeclaredClasses[j].ClassHash)
	})

	for i, sd := range diff.StorageDiffs {
		entries := append([]kv.StorageEntry(nil), sd.Entries...)
		sort.Slice(entries, func(a, b int) bool { return feltLess(entries[a].Key, entries[b].Key) })
		out.StorageDiffs[i] = kv.StorageDiff{Address: sd.Address, Entries: entries}
	}
	sort.Slice(out.StorageDiffs, func(i, j int) bool {
		return feltLess(out.StorageDiffs[i].Address, out.StorageDiffs[j].Address)
	})

	return out
}

func feltLess(a, b felt.Felt) bool {
	ab, bb := a.Bytes(), b.Bytes()
	return bytes.Compare(ab[:], bb[:]) < 0
}

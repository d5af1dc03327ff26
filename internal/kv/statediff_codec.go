package kv

import "github.com/starknetfull/corestore/internal/felt"

// EncodeStateDiff canonicalizes nothing by itself — canonical ordering
// (sorted by address, then key) is the commitment engine's job (spec
// §4.G); this codec just needs round-trip fidelity.
func EncodeStateDiff(d *StateDiff) []byte {
	buf := make([]byte, 0, 256)
	buf = putUint64(buf, uint64(len(d.DeployedContracts)))
	for _, c := range d.DeployedContracts {
		buf = putFelt(buf, c.Address)
		buf = putFelt(buf, c.ClassHash)
	}
	buf = putUint64(buf, uint64(len(d.ReplacedClasses)))
	for _, c := range d.ReplacedClasses {
		buf = putFelt(buf, c.Address)
		buf = putFelt(buf, c.ClassHash)
	}
	buf = putUint64(buf, uint64(len(d.Nonces)))
	for _, n := range d.Nonces {
		buf = putFelt(buf, n.Address)
		buf = putFelt(buf, n.Nonce)
	}
	buf = putUint64(buf, uint64(len(d.StorageDiffs)))
	for _, sd := range d.StorageDiffs {
		buf = putFelt(buf, sd.Address)
		buf = putUint64(buf, uint64(len(sd.Entries)))
		for _, e := range sd.Entries {
			buf = putFelt(buf, e.Key)
			buf = putFelt(buf, e.Value)
		}
	}
	buf = putUint64(buf, uint64(len(d.DeclaredClasses)))
	for _, c := range d.DeclaredClasses {
		buf = putFelt(buf, c.ClassHash)
		buf = putFelt(buf, c.CompiledClassHash)
	}
	return FrameValue(buf)
}

func DecodeStateDiff(raw []byte) (*StateDiff, error) {
	_, b, err := UnframeValue(raw)
	if err != nil {
		return nil, err
	}
	d := &StateDiff{}
	var n uint64

	if n, b, err = readUint64(b); err != nil {
		return nil, err
	}
	for i := uint64(0); i < n; i++ {
		var c DeployedContract
		if c.Address, b, err = readFelt(b); err != nil {
			return nil, err
		}
		if c.ClassHash, b, err = readFelt(b); err != nil {
			return nil, err
		}
		d.DeployedContracts = append(d.DeployedContracts, c)
	}

	if n, b, err = readUint64(b); err != nil {
		return nil, err
	}
	for i := uint64(0); i < n; i++ {
		var c ReplacedClass
		if c.Address, b, err = readFelt(b); err != nil {
			return nil, err
		}
		if c.ClassHash, b, err = readFelt(b); err != nil {
			return nil, err
		}
		d.ReplacedClasses = append(d.ReplacedClasses, c)
	}

	if n, b, err = readUint64(b); err != nil {
		return nil, err
	}
	for i := uint64(0); i < n; i++ {
		var u NonceUpdate
		if u.Address, b, err = readFelt(b); err != nil {
			return nil, err
		}
		if u.Nonce, b, err = readFelt(b); err != nil {
			return nil, err
		}
		d.Nonces = append(d.Nonces, u)
	}

	if n, b, err = readUint64(b); err != nil {
		return nil, err
	}
	for i := uint64(0); i < n; i++ {
		var sd StorageDiff
		if sd.Address, b, err = readFelt(b); err != nil {
			return nil, err
		}
		var m uint64
		if m, b, err = readUint64(b); err != nil {
			return nil, err
		}
		for j := uint64(0); j < m; j++ {
			var e StorageEntry
			if e.Key, b, err = readFelt(b); err != nil {
				return nil, err
			}
			if e.Value, b, err = readFelt(b); err != nil {
				return nil, err
			}
			sd.Entries = append(sd.Entries, e)
		}
		d.StorageDiffs = append(d.StorageDiffs, sd)
	}

	if n, b, err = readUint64(b); err != nil {
		return nil, err
	}
	for i := uint64(0); i < n; i++ {
		var c DeclaredClass
		if c.ClassHash, b, err = readFelt(b); err != nil {
			return nil, err
		}
		if c.CompiledClassHash, b, err = readFelt(b); err != nil {
			return nil, err
		}
		d.DeclaredClasses = append(d.DeclaredClasses, c)
	}

	return d, nil
}

// EncodeClassInfo / DecodeClassInfo codec the class_hash -> metadata
// mapping of the class store (spec §4.E).
func EncodeClassInfo(c *ClassInfo) []byte {
	buf := make([]byte, 0, 64+len(c.ContractClass))
	buf = putFelt(buf, c.ClassHash)
	buf = putUint64(buf, c.DeclaredAtBlock)
	buf = putFelt(buf, c.CompiledClassHash)
	buf = putBytes(buf, c.ContractClass)
	return FrameValue(buf)
}

func DecodeClassInfo(raw []byte) (*ClassInfo, error) {
	_, b, err := UnframeValue(raw)
	if err != nil {
		return nil, err
	}
	c := &ClassInfo{}
	if c.ClassHash, b, err = readFelt(b); err != nil {
		return nil, err
	}
	if c.DeclaredAtBlock, b, err = readUint64(b); err != nil {
		return nil, err
	}
	if c.CompiledClassHash, b, err = readFelt(b); err != nil {
		return nil, err
	}
	if c.ContractClass, _, err = readBytes(b); err != nil {
		return nil, err
	}
	return c, nil
}

// EncodeFeltValue / DecodeFeltValue codec the plain felt values stored
// in the history-indexed and pending-overlay columns (class hash,
// nonce, storage value).
func EncodeFeltValue(f felt.Felt) []byte {
	return FrameValue(putFelt(nil, f))
}

func DecodeFeltValue(raw []byte) (felt.Felt, error) {
	_, b, err := UnframeValue(raw)
	if err != nil {
		return felt.Felt{}, err
	}
	f, _, err := readFelt(b)
	return f, err
}

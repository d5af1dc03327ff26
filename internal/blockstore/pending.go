package blockstore

import (
	"fmt"

	"github.com/starknetfull/corestore/internal/errs"
	"github.com/starknetfull/corestore/internal/kv"
)

var errShortPending = fmt.Errorf("%w: truncated pending-block payload", errs.Codec)

// encodePending / decodePending frame the pending block's header, body
// and state diff together behind the single PendingBlock singleton key
// — the overlay holds at most one pending version at a time (spec §3).
func encodePending(h *kv.Header, body *kv.Body, diff *kv.StateDiff) []byte {
	hb := kv.EncodeHeader(h)
	bb := kv.EncodeBody(body)
	db := kv.EncodeStateDiff(diff)

	out := make([]byte, 0, len(hb)+len(bb)+len(db)+24)
	out = append(out, lenPrefix(len(hb))...)
	out = append(out, hb...)
	out = append(out, lenPrefix(len(bb))...)
	out = append(out, bb...)
	out = append(out, lenPrefix(len(db))...)
	out = append(out, db...)
	return out
}

func decodePending(raw []byte) (*kv.Header, *kv.Body, *kv.StateDiff, error) {
	hb, rest, err := takeLenPrefixed(raw)
	if err != nil {
		return nil, nil, nil, err
	}
	bb, rest, err := takeLenPrefixed(rest)
	if err != nil {
		return nil, nil, nil, err
	}
	db, _, err := takeLenPrefixed(rest)
	if err != nil {
		return nil, nil, nil, err
	}

	h, err := kv.DecodeHeader(hb)
	if err != nil {
		return nil, nil, nil, err
	}
	body, err := kv.DecodeBody(bb)
	if err != nil {
		return nil, nil, nil, err
	}
	diff, err := kv.DecodeStateDiff(db)
	if err != nil {
		return nil, nil, nil, err
	}
	return h, body, diff, nil
}

func lenPrefix(n int) []byte {
	return []byte{
		byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n),
	}
}

func takeLenPrefixed(b []byte) ([]byte, []byte, error) {
	if len(b) < 4 {
		return nil, nil, errShortPending
	}
	n := int(b[0])<<24 | int(b[1])<<16 | int(b[2])<<8 | int(b[3])
	b = b[4:]
	if len(b) < n {
		return nil, nil, errShortPending
	}
	return b[:n], b[n:], nil
}

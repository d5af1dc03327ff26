// Package errs defines the error-kind taxonomy of spec §7, shared by
// every component so callers can errors.Is/As against one stable set
// of sentinels regardless of which store produced the error.
package errs

import "errors"

var (
	// Io covers disk-full, permission-denied and similar unrecoverable
	// I/O failures. Not retryable; the node halts.
	Io = errors.New("io error")

	// Codec marks a malformed on-disk value. Not retryable.
	Codec = errors.New("corrupt storage: codec error")

	// BlockFormat marks malformed ingress. The block is rejected and
	// sync stalls at this height until a corrected payload arrives.
	BlockFormat = errors.New("malformed block payload")

	// MismatchedBlockHash is returned when the recomputed block hash
	// does not match the advertised one outside the mainnet exception
	// range.
	MismatchedBlockHash = errors.New("mismatched block hash")

	// MismatchedClassHash is returned by the optional declared-class
	// verification path (spec §9 open question b).
	MismatchedClassHash = errors.New("mismatched class hash")

	// ChainMismatch is returned at Open when persisted chain info
	// disagrees with the configured chain info.
	ChainMismatch = errors.New("chain id/name mismatch")

	// BackupUnavailable surfaces a failed backup to the caller; it
	// does not poison the store.
	BackupUnavailable = errors.New("backup unavailable")

	// CorruptStorage is the umbrella the orchestrator surfaces for any
	// Codec-class failure discovered during a read.
	CorruptStorage = errors.New("corrupt storage")
)

// InvariantViolation is a programming-error signal: class rewrite,
// out-of-order block commit, etc. Per spec §7 it is not retryable and
// is surfaced by panicking, never by a returned error.
type InvariantViolation struct {
	Reason string
}

func (e *InvariantViolation) Error() string { return "invariant violated: " + e.Reason }

// Panic raises an InvariantViolation. Centralized so every call site
// panics with the same wrapped type and callers can recover() and
// errors.As it in tests.
func Panic(reason string) {
	panic(&InvariantViolation{Reason: reason})
}

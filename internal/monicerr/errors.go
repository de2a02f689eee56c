// Package monicerr defines the sentinel error kinds shared across the
// ingestion pipeline, the store, and the query adapter, per the error
// handling design of the indexer: some kinds are always retried,
// some are always fatal, and the query-time kinds surface to callers
// as 4xx-equivalent responses.
package monicerr

import "errors"

var (
	// ErrUpstreamUnavailable marks an RPC failure. Retried with
	// exponential backoff; never fatal on its own.
	ErrUpstreamUnavailable = errors.New("monicerr: upstream unavailable")

	// ErrMalformedBlock marks a structurally invalid block or receipt
	// set from upstream. Logged and retried as a transient fault.
	ErrMalformedBlock = errors.New("monicerr: malformed block")

	// ErrReorgTooDeep marks a parent-hash mismatch with no prior root
	// retained to roll back to. Fatal.
	ErrReorgTooDeep = errors.New("monicerr: reorg deeper than one block")

	// ErrStorageFailure marks a KV read/write failure. The commit is
	// discarded and retried; repeated failures are fatal.
	ErrStorageFailure = errors.New("monicerr: storage failure")

	// ErrIntegrityViolation marks a trie root or invariant mismatch
	// found during the optional startup check. Fatal.
	ErrIntegrityViolation = errors.New("monicerr: integrity violation")

	// ErrInvalidMonic marks a monic phrase containing an unknown word
	// or the wrong number of words.
	ErrInvalidMonic = errors.New("monicerr: invalid monic")

	// ErrInvalidChecksum marks a monic whose checksum nibble does not
	// match the recovered payload.
	ErrInvalidChecksum = errors.New("monicerr: invalid checksum")

	// ErrUnknown marks an index in the immutable range with no address
	// mapped to it yet.
	ErrUnknown = errors.New("monicerr: unknown index")

	// ErrNotFound marks a query that found no matching record.
	ErrNotFound = errors.New("monicerr: not found")

	// ErrIndexOutOfRange marks an index outside [0, 2^40).
	ErrIndexOutOfRange = errors.New("monicerr: index out of range")
)

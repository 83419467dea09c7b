// Package storage defines the content-addressable byte store that state
// vector envelopes are kept in, plus the composition helpers that combine
// several stores.
//
// Stores know nothing about vectors. They keep opaque bytes under the CIDv1
// (raw, sha2-256) of those bytes and re-check that address on every read, so
// a store can never hand back bytes other than the ones it was asked for.
package storage

import "github.com/ipfs/go-cid"

// CAS is a minimal content-addressable storage interface.
//
// Contract:
//   - Put MUST be idempotent and MUST return fingerprint.CID(bytes).
//   - Stored objects MUST be immutable.
//   - Get MUST return ErrNotFound when the CID is absent and ErrCIDMismatch
//     when the stored bytes no longer hash to the CID.
type CAS interface {
	Put(bytes []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}

// Lister is implemented by stores that can enumerate their contents.
// List returns CIDs sorted by their string form.
type Lister interface {
	List() ([]cid.Cid, error)
}

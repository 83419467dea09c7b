package fingerprint

import (
	"github.com/ipfs/go-cid"
)

// CID returns the CIDv1 ("raw" multicodec, sha2-256 multihash) of data.
//
// This is the content address used by storage backends: it is derived from
// the exact bytes stored, not from any decoded representation.
func CID(data []byte) (cid.Cid, error) {
	return CIDOf(Sum(data))
}

// CIDOf builds the CIDv1 raw + sha2-256 address for an already computed
// fingerprint.
func CIDOf(f Fingerprint) (cid.Cid, error) {
	mh, err := f.Multihash()
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

// OfCID returns the fingerprint a CIDv1 raw + sha2-256 address was built from.
func OfCID(id cid.Cid) (Fingerprint, error) {
	if !id.Defined() {
		return Fingerprint{}, errUndefinedCID
	}
	return FromMultihash(id.Hash())
}

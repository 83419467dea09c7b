package storage

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/dsv/fingerprint"
)

// NamedCAS associates a CAS with a stable backend name, used in per-backend
// results and error messages.
type NamedCAS struct {
	Name string
	CAS  CAS
}

// ReplicatingCAS writes every object to all backends and reads with ordered
// fallback. Every backend must agree on the CID of what it stored.
type ReplicatingCAS struct {
	Backends []NamedCAS
}

var (
	_ CAS    = ReplicatingCAS{}
	_ Lister = ReplicatingCAS{}
)

// PutAll writes bytes to all backends and returns the canonical CID along
// with the CID each backend reported.
//
// If any backend disagrees with the canonical CID, ErrCIDMismatch is returned
// together with the results gathered so far.
func (r ReplicatingCAS) PutAll(bytes []byte) (cid.Cid, map[string]cid.Cid, error) {
	want, err := fingerprint.CID(bytes)
	if err != nil {
		return cid.Undef, nil, err
	}
	if len(r.Backends) == 0 {
		return cid.Undef, nil, fmt.Errorf("storage: ReplicatingCAS has no backends")
	}

	out := make(map[string]cid.Cid, len(r.Backends))
	for _, b := range r.Backends {
		if b.CAS == nil {
			return cid.Undef, nil, fmt.Errorf("storage: nil CAS for backend %q", b.Name)
		}
		got, err := b.CAS.Put(bytes)
		if err != nil {
			return cid.Undef, out, fmt.Errorf("storage: backend %q: %w", b.Name, err)
		}
		out[b.Name] = got
		if !got.Equals(want) {
			return cid.Undef, out, fmt.Errorf("storage: backend %q: %w", b.Name, ErrCIDMismatch)
		}
	}
	return want, out, nil
}

func (r ReplicatingCAS) Put(bytes []byte) (cid.Cid, error) {
	id, _, err := r.PutAll(bytes)
	return id, err
}

func (r ReplicatingCAS) Get(id cid.Cid) ([]byte, error) {
	return r.multi().Get(id)
}

func (r ReplicatingCAS) Has(id cid.Cid) bool {
	return r.multi().Has(id)
}

func (r ReplicatingCAS) List() ([]cid.Cid, error) {
	return listUnion(r.multi().Adapters)
}

func (r ReplicatingCAS) multi() MultiCAS {
	adapters := make([]CAS, 0, len(r.Backends))
	for _, b := range r.Backends {
		if b.CAS != nil {
			adapters = append(adapters, b.CAS)
		}
	}
	return MultiCAS{Adapters: adapters}
}

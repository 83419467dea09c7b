package storage

import (
	"errors"
	"sort"

	"github.com/ipfs/go-cid"
)

// MultiCAS reads from several stores in a fixed order and writes to the
// first one.
//
// The slice order is the fallback order; callers MUST supply a fixed order so
// reads are deterministic.
type MultiCAS struct {
	Adapters []CAS
}

var (
	_ CAS    = MultiCAS{}
	_ Lister = MultiCAS{}
)

func (m MultiCAS) Put(bytes []byte) (cid.Cid, error) {
	if len(m.Adapters) == 0 {
		return cid.Undef, errors.New("storage: MultiCAS has no adapters")
	}
	return m.Adapters[0].Put(bytes)
}

// Get returns the first successful read. A mismatch or I/O error from an
// earlier adapter stops the search rather than being masked by a later one.
func (m MultiCAS) Get(id cid.Cid) ([]byte, error) {
	for _, cas := range m.Adapters {
		b, err := cas.Get(id)
		if err == nil {
			return b, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func (m MultiCAS) Has(id cid.Cid) bool {
	for _, cas := range m.Adapters {
		if cas.Has(id) {
			return true
		}
	}
	return false
}

// List returns the union of all listable adapters. Adapters that cannot list
// are skipped; if none can, ErrNotListable is returned.
func (m MultiCAS) List() ([]cid.Cid, error) {
	return listUnion(m.Adapters)
}

func listUnion(stores []CAS) ([]cid.Cid, error) {
	seen := map[string]cid.Cid{}
	listed := false
	for _, s := range stores {
		l, ok := s.(Lister)
		if !ok {
			continue
		}
		ids, err := l.List()
		if err != nil {
			if errors.Is(err, ErrNotListable) {
				continue
			}
			return nil, err
		}
		listed = true
		for _, id := range ids {
			seen[id.String()] = id
		}
	}
	if !listed {
		return nil, ErrNotListable
	}
	return sortedIDs(seen), nil
}

func sortedIDs(m map[string]cid.Cid) []cid.Cid {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]cid.Cid, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

// SortIDs sorts ids in place by their string form, the order Lister uses.
func SortIDs(ids []cid.Cid) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}

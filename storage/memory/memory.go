// Package memory is an in-process CAS, used by tests and short-lived tools.
package memory

import (
	"bytes"
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/dsv/fingerprint"
	"xdao.co/dsv/storage"
)

// CAS keeps objects in a map keyed by CID string. Stored and returned byte
// slices are copies.
type CAS struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var (
	_ storage.CAS    = (*CAS)(nil)
	_ storage.Lister = (*CAS)(nil)
)

func New() *CAS {
	return &CAS{objects: map[string][]byte{}}
}

func (c *CAS) Put(b []byte) (cid.Cid, error) {
	id, err := fingerprint.CID(b)
	if err != nil {
		return cid.Undef, err
	}
	key := id.String()

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.objects[key]; ok {
		if !bytes.Equal(existing, b) {
			return cid.Undef, storage.ErrImmutable
		}
		return id, nil
	}
	c.objects[key] = bytes.Clone(b)
	return id, nil
}

func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	c.mu.RLock()
	b, ok := c.objects[id.String()]
	c.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	got, err := fingerprint.CID(b)
	if err != nil {
		return nil, err
	}
	if !got.Equals(id) {
		return nil, storage.ErrCIDMismatch
	}
	return bytes.Clone(b), nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.objects[id.String()]
	return ok
}

func (c *CAS) List() ([]cid.Cid, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]cid.Cid, 0, len(c.objects))
	for k := range c.objects {
		id, err := cid.Decode(k)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	storage.SortIDs(out)
	return out, nil
}

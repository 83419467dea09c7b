package testkit

import (
	"bytes"
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/dsv/fingerprint"
	"xdao.co/dsv/storage"
)

// Corrupting wraps a CAS and lets a test overwrite stored bytes out of band,
// the way bit rot or a hostile operator would. Overwritten objects fail the
// same CID check a real backend applies on Get.
type Corrupting struct {
	storage.CAS

	mu       sync.RWMutex
	replaced map[string][]byte
}

var (
	_ storage.CAS    = (*Corrupting)(nil)
	_ storage.Lister = (*Corrupting)(nil)
)

func Corrupt(cas storage.CAS) *Corrupting {
	return &Corrupting{CAS: cas, replaced: map[string][]byte{}}
}

// Replace makes every later Get of id see b instead of the stored object.
func (c *Corrupting) Replace(id cid.Cid, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaced[id.String()] = bytes.Clone(b)
}

func (c *Corrupting) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	c.mu.RLock()
	b, ok := c.replaced[id.String()]
	c.mu.RUnlock()
	if !ok {
		return c.CAS.Get(id)
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

func (c *Corrupting) Put(b []byte) (cid.Cid, error) {
	id, err := fingerprint.CID(b)
	if err != nil {
		return cid.Undef, err
	}
	c.mu.RLock()
	existing, ok := c.replaced[id.String()]
	c.mu.RUnlock()
	if ok && !bytes.Equal(existing, b) {
		return cid.Undef, storage.ErrImmutable
	}
	return c.CAS.Put(b)
}

func (c *Corrupting) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	c.mu.RLock()
	_, ok := c.replaced[id.String()]
	c.mu.RUnlock()
	return ok || c.CAS.Has(id)
}

func (c *Corrupting) List() ([]cid.Cid, error) {
	l, ok := c.CAS.(storage.Lister)
	if !ok {
		return nil, storage.ErrNotListable
	}
	return l.List()
}

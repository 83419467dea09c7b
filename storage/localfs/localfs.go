// Package localfs is a CAS backed by a local directory.
package localfs

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"

	"xdao.co/dsv/fingerprint"
	"xdao.co/dsv/storage"
)

// CAS stores each object in its own read-only file named by CID.
//
// Files are sharded into subdirectories by the last two characters of the
// CID string (the leading characters of a CIDv1 are the same for every
// object). Writes use O_EXCL so an existing object is never overwritten; a
// second Put of the same bytes is a no-op, and a Put that finds different
// bytes under the same name reports ErrImmutable instead of repairing them.
type CAS struct {
	root string
}

var (
	_ storage.CAS    = (*CAS)(nil)
	_ storage.Lister = (*CAS)(nil)
)

// New constructs a filesystem CAS rooted at root. The directory will be created if needed.
func New(root string) (*CAS, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &CAS{root: root}, nil
}

// Root returns the directory the store lives in.
func (c *CAS) Root() string { return c.root }

func (c *CAS) Put(b []byte) (cid.Cid, error) {
	id, err := fingerprint.CID(b)
	if err != nil {
		return cid.Undef, err
	}

	path := c.pathFor(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cid.Undef, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
	if err != nil {
		if os.IsExist(err) {
			existing, rerr := c.Get(id)
			if rerr != nil || !bytes.Equal(existing, b) {
				// Unreadable or corrupted: do not touch it.
				return cid.Undef, storage.ErrImmutable
			}
			return id, nil
		}
		return cid.Undef, err
	}

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return cid.Undef, err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return cid.Undef, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return cid.Undef, err
	}
	return id, nil
}

func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	b, err := os.ReadFile(c.pathFor(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	got, err := fingerprint.CID(b)
	if err != nil {
		return nil, err
	}
	if !got.Equals(id) {
		return nil, storage.ErrCIDMismatch
	}
	return b, nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := os.Stat(c.pathFor(id))
	return err == nil
}

// List walks the shard directories. Files whose names are not CIDs are
// ignored.
func (c *CAS) List() ([]cid.Cid, error) {
	shards, err := os.ReadDir(c.root)
	if err != nil {
		return nil, err
	}
	var out []cid.Cid
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(c.root, shard.Name()))
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			id, err := cid.Decode(e.Name())
			if err != nil {
				continue
			}
			out = append(out, id)
		}
	}
	storage.SortIDs(out)
	if out == nil {
		out = []cid.Cid{}
	}
	return out, nil
}

func (c *CAS) pathFor(id cid.Cid) string {
	s := id.String()
	if len(s) < 2 {
		return filepath.Join(c.root, s)
	}
	return filepath.Join(c.root, s[len(s)-2:], s)
}

// Package testkit holds conformance suites that every storage backend in
// this module runs.
package testkit

import (
	"bytes"
	"testing"

	"github.com/ipfs/go-cid"

	"xdao.co/dsv/fingerprint"
	"xdao.co/dsv/storage"
)

// NewCAS constructs a fresh, empty CAS instance for a test.
// The returned CAS MUST be isolated from other tests.
type NewCAS func(t *testing.T) storage.CAS

// RunCASConformance checks the storage.CAS contract. Backends that also
// implement storage.Lister get the listing checks.
func RunCASConformance(t *testing.T, newCAS NewCAS) {
	t.Helper()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		cas := newCAS(t)
		want := []byte("hello, dsv storage")

		id, err := cas.Put(want)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		wantID, err := fingerprint.CID(want)
		if err != nil {
			t.Fatalf("fingerprint.CID failed: %v", err)
		}
		if !id.Equals(wantID) {
			t.Fatalf("Put CID mismatch: got %s want %s", id, wantID)
		}

		got, err := cas.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}
	})

	t.Run("EmptyObject", func(t *testing.T) {
		cas := newCAS(t)
		id, err := cas.Put(nil)
		if err != nil {
			t.Fatalf("Put(empty) failed: %v", err)
		}
		got, err := cas.Get(id)
		if err != nil {
			t.Fatalf("Get(empty) failed: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected empty object, got %d bytes", len(got))
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		cas := newCAS(t)
		b := []byte("same bytes")

		id1, err := cas.Put(b)
		if err != nil {
			t.Fatalf("Put(1) failed: %v", err)
		}
		id2, err := cas.Put(b)
		if err != nil {
			t.Fatalf("Put(2) failed: %v", err)
		}
		if !id1.Equals(id2) {
			t.Fatalf("Put not idempotent: %s vs %s", id1, id2)
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		cas := newCAS(t)
		b := []byte("missing")
		id, err := fingerprint.CID(b)
		if err != nil {
			t.Fatalf("fingerprint.CID failed: %v", err)
		}

		if cas.Has(id) {
			t.Fatalf("Has returned true for missing CID")
		}
		_, err = cas.Get(id)
		if !storage.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}

		if _, err := cas.Put(b); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if !cas.Has(id) {
			t.Fatalf("Has returned false after Put")
		}
	})

	t.Run("RejectUndefCID", func(t *testing.T) {
		cas := newCAS(t)
		var undef cid.Cid
		if cas.Has(undef) {
			t.Fatalf("Has should be false for undefined CID")
		}
		if _, err := cas.Get(undef); err == nil {
			t.Fatalf("Get should fail for undefined CID")
		}
	})

	t.Run("ListSorted", func(t *testing.T) {
		cas := newCAS(t)
		l, ok := cas.(storage.Lister)
		if !ok {
			t.Skip("backend does not implement storage.Lister")
		}
		ids, err := l.List()
		if err != nil {
			t.Fatalf("List(empty) failed: %v", err)
		}
		if len(ids) != 0 {
			t.Fatalf("expected empty listing, got %d", len(ids))
		}

		want := map[string]bool{}
		for _, s := range []string{"c", "a", "b"} {
			id, err := cas.Put([]byte(s))
			if err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			want[id.String()] = true
		}
		ids, err = l.List()
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(ids) != len(want) {
			t.Fatalf("List returned %d ids, want %d", len(ids), len(want))
		}
		for i, id := range ids {
			if !want[id.String()] {
				t.Fatalf("List returned unknown id %s", id)
			}
			if i > 0 && ids[i-1].String() >= id.String() {
				t.Fatalf("List not sorted at %d", i)
			}
		}
	})
}

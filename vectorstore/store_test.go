package vectorstore

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"xdao.co/dsv/codec"
	"xdao.co/dsv/fingerprint"
	"xdao.co/dsv/metadata"
	"xdao.co/dsv/statevector"
	"xdao.co/dsv/storage"
	"xdao.co/dsv/storage/memory"
	"xdao.co/dsv/storage/testkit"
)

// opaque hides the Lister implementation of the wrapped CAS.
type opaque struct{ storage.CAS }

func forge(t *testing.T, data []byte) statevector.StateVector {
	t.Helper()
	v, err := statevector.Vectorize(data)
	if err != nil {
		t.Fatalf("Vectorize: %v", err)
	}
	fp := v.Fingerprint()
	fp[0]++
	return statevector.New(v.Payload(), fp, v.Metadata())
}

func garbled(data []byte) statevector.StateVector {
	return statevector.New([]byte{0x01, 0x02, 0x03}, fingerprint.Sum(data), metadata.Describe(data))
}

// understated claims one byte of original data for a payload that inflates
// to much more.
func understated(t *testing.T) statevector.StateVector {
	t.Helper()
	payload, err := codec.Compress(make([]byte, 4<<20))
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	return statevector.New(payload, fingerprint.Sum([]byte{0}), metadata.Metadata{OriginalSize: 1, DataType: metadata.DefaultDataType})
}

func TestStore_ReadStopsAtClaimedSize(t *testing.T) {
	s := New(memory.New())
	id, err := s.Put(understated(t))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	out, err := s.Read(id)
	if statevector.KindOf(err) != statevector.KindDecompression {
		t.Fatalf("expected a decompression error, got %v", err)
	}
	if !errors.Is(err, codec.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if out != nil {
		t.Fatalf("expected no bytes on failure")
	}

	report, err := s.Patrol(context.Background())
	if err != nil {
		t.Fatalf("Patrol: %v", err)
	}
	if len(report.Findings) != 1 || report.Findings[0].Status != StatusDecompression {
		t.Fatalf("unexpected findings: %+v", report.Findings)
	}
}

func TestStore_WriteRead(t *testing.T) {
	s := New(memory.New())
	in := []byte("This is the integrity test string.")

	id, err := s.Write(in)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !s.Has(id) {
		t.Fatalf("Has: expected true")
	}
	out, err := s.Read(id)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Fatalf("Read mismatch: %q", out)
	}

	v, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.Metadata().OriginalSize != uint64(len(in)) {
		t.Fatalf("OriginalSize: got %d", v.Metadata().OriginalSize)
	}

	again, err := s.Write(in)
	if err != nil {
		t.Fatalf("Write(again): %v", err)
	}
	if !again.Equals(id) {
		t.Fatalf("writing identical data must yield the same address")
	}
}

func TestStore_WriteWithClassifier(t *testing.T) {
	s := New(memory.New(), WithVectorizeOptions(statevector.WithClassifier(func([]byte) string { return "text/plain" })))
	id, err := s.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	v, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.Metadata().DataType != "text/plain" {
		t.Fatalf("DataType: got %q", v.Metadata().DataType)
	}
}

func TestStore_ReadSeparatesFailureKinds(t *testing.T) {
	s := New(memory.New())

	forgedID, err := s.Put(forge(t, []byte("forged")))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	garbledID, err := s.Put(garbled([]byte("garbled")))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	_, err = s.Read(forgedID)
	if !statevector.IsKind(err, statevector.KindIntegrity) {
		t.Fatalf("forged: expected KindIntegrity, got %v", err)
	}
	if !IsCorruption(err) {
		t.Fatalf("forged: expected IsCorruption")
	}

	_, err = s.Read(garbledID)
	if !statevector.IsKind(err, statevector.KindDecompression) {
		t.Fatalf("garbled: expected KindDecompression, got %v", err)
	}
	if statevector.IsKind(err, statevector.KindIntegrity) {
		t.Fatalf("garbled: decompression failure must not be an integrity failure")
	}
}

func TestStore_ReadMissing(t *testing.T) {
	s := New(memory.New())
	id, err := fingerprint.CID([]byte("never stored"))
	if err != nil {
		t.Fatalf("CID: %v", err)
	}
	_, err = s.Read(id)
	if !storage.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if IsCorruption(err) {
		t.Fatalf("a missing vector is not corruption")
	}
}

func TestPatrol_ClassifiesEveryFailure(t *testing.T) {
	cas := testkit.Corrupt(memory.New())
	logger, hook := test.NewNullLogger()
	s := New(cas, WithLogger(logger), WithConcurrency(2))

	var healthy []cid.Cid
	for _, d := range []string{"one", "two", "three"} {
		id, err := s.Write([]byte(d))
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		healthy = append(healthy, id)
	}

	forgedID, err := s.Put(forge(t, []byte("forged")))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	garbledID, err := s.Put(garbled([]byte("garbled")))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	malformedID, err := cas.Put([]byte("not an envelope"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	rottenID, err := s.Write([]byte("bit rot"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	cas.Replace(rottenID, []byte("flipped bits"))

	report, err := s.Patrol(context.Background())
	if err != nil {
		t.Fatalf("Patrol: %v", err)
	}
	if report.Checked != len(healthy)+4 {
		t.Fatalf("Checked: got %d want %d", report.Checked, len(healthy)+4)
	}
	if report.OK() {
		t.Fatalf("expected findings")
	}

	want := map[string]Status{
		forgedID.String():    StatusIntegrity,
		garbledID.String():   StatusDecompression,
		malformedID.String(): StatusMalformed,
		rottenID.String():    StatusUnreadable,
	}
	if len(report.Findings) != len(want) {
		t.Fatalf("Findings: got %d want %d: %+v", len(report.Findings), len(want), report.Findings)
	}
	for i, f := range report.Findings {
		if want[f.ID.String()] != f.Status {
			t.Fatalf("%s: got %s want %s", f.ID, f.Status, want[f.ID.String()])
		}
		if f.Err == nil {
			t.Fatalf("%s: expected an error", f.ID)
		}
		if i > 0 && report.Findings[i-1].ID.String() >= f.ID.String() {
			t.Fatalf("findings not sorted")
		}
	}
	if got := len(report.Corrupted()); got != len(want) {
		t.Fatalf("Corrupted: got %d", got)
	}

	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
		}
	}
	if warnings != len(want) {
		t.Fatalf("expected %d warnings, got %d", len(want), warnings)
	}
	last := hook.LastEntry()
	if last == nil || last.Message != "integrity patrol completed" || last.Data["corrupted"] != len(want) {
		t.Fatalf("unexpected summary entry: %+v", last)
	}
}

func TestPatrolIDs_Missing(t *testing.T) {
	s := New(opaque{memory.New()})
	id, err := fingerprint.CID([]byte("absent"))
	if err != nil {
		t.Fatalf("CID: %v", err)
	}
	report, err := s.PatrolIDs(context.Background(), []cid.Cid{id})
	if err != nil {
		t.Fatalf("PatrolIDs: %v", err)
	}
	if len(report.Findings) != 1 || report.Findings[0].Status != StatusMissing {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestPatrol_NotListable(t *testing.T) {
	s := New(opaque{memory.New()})
	if _, err := s.Patrol(context.Background()); !errors.Is(err, storage.ErrNotListable) {
		t.Fatalf("expected ErrNotListable, got %v", err)
	}
}

func TestPatrol_Cancelled(t *testing.T) {
	s := New(memory.New())
	if _, err := s.Write([]byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Patrol(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPatrol_Clean(t *testing.T) {
	s := New(memory.New())
	for i := 0; i < 20; i++ {
		if _, err := s.Write(bytes.Repeat([]byte{byte(i)}, i)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	report, err := s.Patrol(context.Background())
	if err != nil {
		t.Fatalf("Patrol: %v", err)
	}
	if !report.OK() || report.Checked != 20 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"xdao.co/dsv/envelope"
	"xdao.co/dsv/statevector"
	"xdao.co/dsv/storage"
)

// Status classifies one vector after a patrol check.
type Status string

const (
	StatusOK            Status = "ok"
	StatusMissing       Status = "missing"
	StatusUnreadable    Status = "unreadable"
	StatusMalformed     Status = "malformed"
	StatusDecompression Status = "decompression"
	StatusIntegrity     Status = "integrity"
)

// Finding is the outcome of checking one vector.
type Finding struct {
	ID     cid.Cid
	Status Status
	Err    error
}

// Report summarizes a patrol.
type Report struct {
	Checked int
	// Findings lists every vector that did not check out, ordered by CID.
	Findings []Finding
}

// OK reports whether every checked vector was intact.
func (r Report) OK() bool { return len(r.Findings) == 0 }

// Corrupted returns the CIDs of all findings, ordered by CID.
func (r Report) Corrupted() []cid.Cid {
	out := make([]cid.Cid, 0, len(r.Findings))
	for _, f := range r.Findings {
		out = append(out, f.ID)
	}
	return out
}

// Check loads, reconstitutes and verifies the vector stored under id.
func (s *Store) Check(id cid.Cid) Finding {
	b, err := s.cas.Get(id)
	switch {
	case err == nil:
	case storage.IsNotFound(err):
		return Finding{ID: id, Status: StatusMissing, Err: err}
	default:
		return Finding{ID: id, Status: StatusUnreadable, Err: err}
	}

	v, err := envelope.Unmarshal(b)
	if err != nil {
		return Finding{ID: id, Status: StatusMalformed, Err: err}
	}

	if _, err := statevector.ReconstituteBounded(v); err != nil {
		switch statevector.KindOf(err) {
		case statevector.KindDecompression:
			return Finding{ID: id, Status: StatusDecompression, Err: err}
		default:
			return Finding{ID: id, Status: StatusIntegrity, Err: err}
		}
	}
	return Finding{ID: id, Status: StatusOK}
}

// Patrol checks every vector the underlying store can list.
// It returns storage.ErrNotListable if the store cannot enumerate its contents.
func (s *Store) Patrol(ctx context.Context) (Report, error) {
	l, ok := s.cas.(storage.Lister)
	if !ok {
		return Report{}, storage.ErrNotListable
	}
	ids, err := l.List()
	if err != nil {
		return Report{}, fmt.Errorf("vectorstore: list: %w", err)
	}
	return s.PatrolIDs(ctx, ids)
}

// PatrolIDs checks the given vectors concurrently, at most the configured
// concurrency at a time. Only cancellation of ctx makes it return an error.
func (s *Store) PatrolIDs(ctx context.Context, ids []cid.Cid) (Report, error) {
	sorted := append([]cid.Cid(nil), ids...)
	storage.SortIDs(sorted)

	results := make([]Finding, len(sorted))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range sorted {
		if gctx.Err() != nil {
			break
		}
		i, id := i, id
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.Check(id)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	report := Report{Checked: len(sorted)}
	for _, f := range results {
		if f.Status == StatusOK {
			continue
		}
		report.Findings = append(report.Findings, f)
		s.logger.WithFields(logrus.Fields{
			"cid":    f.ID.String(),
			"status": string(f.Status),
		}).WithError(f.Err).Warn("vector failed integrity patrol")
	}
	s.logger.WithFields(logrus.Fields{
		"checked":   report.Checked,
		"corrupted": len(report.Findings),
	}).Info("integrity patrol completed")
	return report, nil
}

// IsCorruption reports whether err from Read means the stored vector is
// damaged (as opposed to absent or unreachable).
func IsCorruption(err error) bool {
	if err == nil {
		return false
	}
	return statevector.IsKind(err, statevector.KindDecompression) ||
		statevector.IsKind(err, statevector.KindIntegrity) ||
		errors.Is(err, envelope.ErrMalformed) ||
		errors.Is(err, envelope.ErrUnsupportedVersion) ||
		errors.Is(err, storage.ErrCIDMismatch)
}

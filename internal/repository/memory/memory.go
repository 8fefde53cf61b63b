package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/NordCoder/Uptime/internal/domain/legacy"
	"github.com/NordCoder/Uptime/internal/domain/run"
)

var (
	_ run.Repo       = (*Store)(nil)
	_ run.Transactor = (*Store)(nil)
	_ legacy.Repo    = (*Legacy)(nil)
)

// Store keeps runs in memory. Data is lost on restart.
// Useful for testing and development.
//
// Transactions are serialized behind one mutex and roll back by restoring a
// snapshot, which also makes Lock a no-op.
type Store struct {
	mu     sync.Mutex
	runs   []run.Run
	nextID int64

	legacy       []legacy.Check
	legacyExists bool
}

func New() *Store { return &Store{nextID: 1} }

type txKey struct{}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(bool)
	return ok
}

// lock acquires the store mutex unless ctx already runs inside WithTx.
func (s *Store) lock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) WithTx(ctx context.Context, function func(ctx context.Context) error) error {
	if inTx(ctx) {
		return function(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapRuns := append([]run.Run(nil), s.runs...)
	snapLegacy := append([]legacy.Check(nil), s.legacy...)
	snapExists, snapID := s.legacyExists, s.nextID

	if err := function(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.runs, s.legacy = snapRuns, snapLegacy
		s.legacyExists, s.nextID = snapExists, snapID
		return err
	}
	return nil
}

func (s *Store) Lock(context.Context, string) error { return nil }

func (s *Store) Latest(ctx context.Context, website string) (*run.Run, error) {
	defer s.lock(ctx)()

	var latest *run.Run
	for i := range s.runs {
		r := s.runs[i]
		if r.Website != website {
			continue
		}
		if latest == nil || r.RangeEnd.After(latest.RangeEnd) {
			latest = &r
		}
	}
	if latest == nil {
		return nil, run.ErrNotFound
	}
	return latest, nil
}

func (s *Store) Insert(ctx context.Context, r *run.Run) error {
	defer s.lock(ctx)()

	r.ID = s.nextID
	s.nextID++
	s.runs = append(s.runs, *r)
	return nil
}

func (s *Store) UpdateEnd(ctx context.Context, id int64, end time.Time) error {
	defer s.lock(ctx)()

	for i := range s.runs {
		if s.runs[i].ID == id {
			s.runs[i].RangeEnd = end
			return nil
		}
	}
	return run.ErrNotFound
}

func (s *Store) InsertBatch(ctx context.Context, runs []run.Run) error {
	defer s.lock(ctx)()

	for _, r := range runs {
		r.ID = s.nextID
		s.nextID++
		s.runs = append(s.runs, r)
	}
	return nil
}

func (s *Store) ListAll(ctx context.Context) ([]run.Run, error) {
	defer s.lock(ctx)()

	out := append([]run.Run(nil), s.runs...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Website != out[j].Website {
			return out[i].Website < out[j].Website
		}
		return out[i].RangeStart.Before(out[j].RangeStart)
	})
	return out, nil
}

// SeedLegacy creates the legacy check log with the given rows.
func (s *Store) SeedLegacy(checks []legacy.Check) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.legacyExists = true
	s.legacy = append(s.legacy, checks...)
}

// Legacy exposes the store's legacy check log.
func (s *Store) Legacy() *Legacy { return &Legacy{s: s} }

type Legacy struct{ s *Store }

func (l *Legacy) Exists(ctx context.Context) (bool, error) {
	defer l.s.lock(ctx)()
	return l.s.legacyExists, nil
}

func (l *Legacy) ListAll(ctx context.Context) ([]legacy.Check, error) {
	defer l.s.lock(ctx)()
	return append([]legacy.Check(nil), l.s.legacy...), nil
}

func (l *Legacy) Drop(ctx context.Context) error {
	defer l.s.lock(ctx)()
	l.s.legacy, l.s.legacyExists = nil, false
	return nil
}

func (l *Legacy) Reclaim(context.Context) error { return nil }

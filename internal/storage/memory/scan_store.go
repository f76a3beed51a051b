package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/JakeFAU/jobsignal/internal/scanner"
	"github.com/JakeFAU/jobsignal/internal/storage"
)

// ScanStore keeps scan summaries in process memory for development and tests.
type ScanStore struct {
	mu        sync.RWMutex
	nextID    int64
	scans     []scanner.ScanRecord
	retention scanner.RetentionPolicy
	clock     scanner.Clock
}

// NewScanStore constructs an empty ScanStore.
func NewScanStore(retention scanner.RetentionPolicy, clock scanner.Clock) *ScanStore {
	return &ScanStore{retention: retention, clock: clock}
}

// Save appends rec and applies retention.
func (s *ScanStore) Save(_ context.Context, rec scanner.ScanRecord) (scanner.SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now
	}
	rec.Timestamp = rec.Timestamp.UTC()
	rec.Certs = slices.Clone(rec.Certs)
	if rec.Certs == nil {
		rec.Certs = []scanner.RankedSignal{}
	}
	s.nextID++
	rec.ID = s.nextID
	s.scans = append(s.scans, rec)

	out := scanner.SaveResult{ID: rec.ID}
	if cutoff, ok := storage.AgeCutoff(s.retention, now); ok {
		before := len(s.scans)
		s.scans = slices.DeleteFunc(s.scans, func(r scanner.ScanRecord) bool {
			return r.Timestamp.Before(cutoff)
		})
		out.PrunedByAge = int64(before - len(s.scans))
	}
	if s.retention.MaxRows > 0 && len(s.scans) > s.retention.MaxRows {
		sortNewestFirst(s.scans)
		out.PrunedByCount = int64(len(s.scans) - s.retention.MaxRows)
		s.scans = s.scans[:s.retention.MaxRows]
	}
	return out, nil
}

// History returns scans newest first. limit <= 0 returns all.
func (s *ScanStore) History(_ context.Context, limit int) ([]scanner.ScanRecord, error) {
	s.mu.RLock()
	out := slices.Clone(s.scans)
	s.mu.RUnlock()

	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []scanner.ScanRecord{}
	}
	return out, nil
}

// Ping always succeeds.
func (s *ScanStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *ScanStore) Close() error { return nil }

func sortNewestFirst(scans []scanner.ScanRecord) {
	slices.SortStableFunc(scans, func(a, b scanner.ScanRecord) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		default:
			return 0
		}
	})
}

/*
store.go - In-memory working set of leave records

PURPOSE:
  RecordStore holds the leave records obtained from the Backend Service for
  one view session. All other components read from it; only reloads write.

REPLACEMENT, NOT MERGE:
  Every reload installs a brand-new snapshot with an atomic pointer swap.
  Readers never lock and never observe a half-written collection. Mutations
  made through the LifecycleController are NOT applied here; the caller
  reloads after a successful write-through.

GENERATIONS:
  Each reload reserves a generation number before it starts. When it
  finishes, its result is installed only if no newer generation has been
  installed meanwhile; otherwise it is dropped with ErrStaleReload. This
  keeps a slow, superseded response from overwriting a fresher one.

COALESCING:
  Concurrent reloads with the same key share one fetch (singleflight). The
  first caller's context governs the shared fetch.

USAGE:
  store := leave.NewRecordStore()
  recs, err := store.Reload(ctx, "leaves?status=pending", loader)
  page := leave.QueryEngine{}.Apply(store.Records(), spec)
*/
package leave

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader fetches a full record set from the Backend Service.
type Loader func(ctx context.Context) ([]LeaveRequest, error)

type snapshot struct {
	records    []LeaveRequest
	byID       map[RequestID]int
	generation uint64
	loadedAt   time.Time
}

type RecordStore struct {
	current atomic.Pointer[snapshot]
	issued  atomic.Uint64
	group   singleflight.Group

	// Now stamps loadedAt. Defaults to time.Now.
	Now func() time.Time
}

func NewRecordStore() *RecordStore {
	s := &RecordStore{Now: time.Now}
	s.current.Store(&snapshot{byID: map[RequestID]int{}})
	return s
}

func (s *RecordStore) load() *snapshot {
	if snap := s.current.Load(); snap != nil {
		return snap
	}
	return &snapshot{}
}

// Records returns a copy of the current working set.
func (s *RecordStore) Records() []LeaveRequest {
	snap := s.load()
	out := make([]LeaveRequest, len(snap.records))
	copy(out, snap.records)
	return out
}

// Get returns the record with the given id from the current working set.
func (s *RecordStore) Get(id RequestID) (LeaveRequest, bool) {
	snap := s.load()
	i, ok := snap.byID[id]
	if !ok {
		return LeaveRequest{}, false
	}
	return snap.records[i], true
}

func (s *RecordStore) Len() int { return len(s.load().records) }

// Generation returns the generation of the installed snapshot.
func (s *RecordStore) Generation() uint64 { return s.load().generation }

// LoadedAt returns when the installed snapshot was fetched.
func (s *RecordStore) LoadedAt() time.Time { return s.load().loadedAt }

// Begin reserves the next generation for a reload about to start.
func (s *RecordStore) Begin() uint64 { return s.issued.Add(1) }

// Install swaps in records fetched under generation gen. It fails with
// ErrStaleReload if a newer generation is already installed.
func (s *RecordStore) Install(gen uint64, records []LeaveRequest) error {
	next := &snapshot{
		records:    make([]LeaveRequest, len(records)),
		byID:       make(map[RequestID]int, len(records)),
		generation: gen,
		loadedAt:   s.now(),
	}
	copy(next.records, records)
	for i, r := range next.records {
		if r.ID != "" {
			next.byID[r.ID] = i
		}
	}

	for {
		cur := s.current.Load()
		if cur != nil && cur.generation > gen {
			return ErrStaleReload.With("generation %d superseded by %d", gen, cur.generation)
		}
		if s.current.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

// Replace installs records as the newest generation.
func (s *RecordStore) Replace(records []LeaveRequest) {
	// A freshly reserved generation is always the newest, so this cannot fail.
	_ = s.Install(s.Begin(), records)
}

// Clear drops the working set and supersedes every in-flight reload.
func (s *RecordStore) Clear() { s.Replace(nil) }

// Reload fetches through load and installs the result. Reloads sharing key
// are coalesced. A cancelled context or a superseded generation leaves the
// installed snapshot untouched.
func (s *RecordStore) Reload(ctx context.Context, key string, load Loader) ([]LeaveRequest, error) {
	v, err, _ := s.group.Do(key, func() (any, error) {
		gen := s.Begin()
		records, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.Install(gen, records); err != nil {
			return nil, err
		}
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	records := v.([]LeaveRequest)
	out := make([]LeaveRequest, len(records))
	copy(out, records)
	return out, nil
}

func (s *RecordStore) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

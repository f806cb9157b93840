package leave_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
)

func recordsWithIDs(idList ...string) []leave.LeaveRequest {
	out := make([]leave.LeaveRequest, len(idList))
	for i, id := range idList {
		out[i] = leave.LeaveRequest{ID: leave.RequestID(id), Status: leave.StatusPending}
	}
	return out
}

func TestRecordStore_ReloadReplacesWholeSet(t *testing.T) {
	s := leave.NewRecordStore()
	ctx := context.Background()

	_, err := s.Reload(ctx, "all", func(context.Context) ([]leave.LeaveRequest, error) {
		return recordsWithIDs("a", "b", "c"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())

	_, err = s.Reload(ctx, "all", func(context.Context) ([]leave.LeaveRequest, error) {
		return recordsWithIDs("d"), nil
	})
	require.NoError(t, err)

	assert.Equal(t, []leave.RequestID{"d"}, ids(s.Records()))
	_, ok := s.Get("a")
	assert.False(t, ok, "old records must not survive a reload")
	got, ok := s.Get("d")
	assert.True(t, ok)
	assert.Equal(t, leave.RequestID("d"), got.ID)
}

func TestRecordStore_RecordsReturnsCopy(t *testing.T) {
	s := leave.NewRecordStore()
	s.Replace(recordsWithIDs("a"))

	recs := s.Records()
	recs[0].Status = leave.StatusApproved

	got, _ := s.Get("a")
	assert.Equal(t, leave.StatusPending, got.Status)
}

func TestRecordStore_FailedReloadKeepsSnapshot(t *testing.T) {
	s := leave.NewRecordStore()
	s.Replace(recordsWithIDs("a"))
	boom := errors.New("boom")

	_, err := s.Reload(context.Background(), "all", func(context.Context) ([]leave.LeaveRequest, error) {
		return nil, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []leave.RequestID{"a"}, ids(s.Records()))
}

func TestRecordStore_StaleGenerationDropped(t *testing.T) {
	// GIVEN: two reloads where the older one finishes last
	s := leave.NewRecordStore()
	older := s.Begin()
	newer := s.Begin()

	// WHEN
	require.NoError(t, s.Install(newer, recordsWithIDs("fresh")))
	err := s.Install(older, recordsWithIDs("stale"))

	// THEN: the stale result is dropped
	assert.ErrorIs(t, err, leave.ErrStaleReload)
	assert.Equal(t, []leave.RequestID{"fresh"}, ids(s.Records()))
	assert.Equal(t, newer, s.Generation())
}

func TestRecordStore_ClearSupersedesInFlightReload(t *testing.T) {
	s := leave.NewRecordStore()
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	var reloadErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, reloadErr = s.Reload(context.Background(), "all", func(context.Context) ([]leave.LeaveRequest, error) {
			close(started)
			<-release
			return recordsWithIDs("late"), nil
		})
	}()

	<-started
	s.Clear()
	close(release)
	wg.Wait()

	assert.ErrorIs(t, reloadErr, leave.ErrStaleReload)
	assert.Zero(t, s.Len())
}

func TestRecordStore_CancelledReloadInstallsNothing(t *testing.T) {
	s := leave.NewRecordStore()
	s.Replace(recordsWithIDs("a"))
	ctx, cancel := context.WithCancel(context.Background())

	_, err := s.Reload(ctx, "all", func(context.Context) ([]leave.LeaveRequest, error) {
		cancel()
		return recordsWithIDs("b"), nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []leave.RequestID{"a"}, ids(s.Records()))
}

func TestRecordStore_ConcurrentReloadsCoalesce(t *testing.T) {
	s := leave.NewRecordStore()
	var calls atomic.Int32
	release := make(chan struct{})
	loader := func(context.Context) ([]leave.LeaveRequest, error) {
		calls.Add(1)
		<-release
		return recordsWithIDs("x"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Reload(context.Background(), "same-key", loader)
			assert.NoError(t, err)
		}()
	}

	// Let the goroutines pile up on the shared flight before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(5))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
	assert.Equal(t, []leave.RequestID{"x"}, ids(s.Records()))
}

func TestRecordStore_LoadedAt(t *testing.T) {
	s := leave.NewRecordStore()
	stamp := time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)
	s.Now = func() time.Time { return stamp }

	s.Replace(recordsWithIDs("a"))

	assert.Equal(t, stamp, s.LoadedAt())
}

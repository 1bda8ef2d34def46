// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/couchplay/internal/domain/media"
	"github.com/ManuGH/couchplay/internal/domain/session/ports"
	"github.com/ManuGH/couchplay/internal/netutil"
	"github.com/ManuGH/couchplay/internal/progress/resume"
)

type recordingReporter struct {
	mu     sync.Mutex
	calls  []string
	played []string
	last   ports.ProgressReport
	err    error
}

func (r *recordingReporter) record(kind string, rep ports.ProgressReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, kind)
	r.last = rep
	return r.err
}

func (r *recordingReporter) ReportStart(_ context.Context, rep ports.ProgressReport) error {
	return r.record("start", rep)
}

func (r *recordingReporter) ReportProgress(_ context.Context, rep ports.ProgressReport) error {
	return r.record("progress", rep)
}

func (r *recordingReporter) ReportStop(_ context.Context, rep ports.ProgressReport) error {
	return r.record("stop", rep)
}

func (r *recordingReporter) MarkPlayed(_ context.Context, itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.played = append(r.played, itemID)
	return r.err
}

func (r *recordingReporter) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

const runtime = 60 * 60 * media.TicksPerSecond

func newTracker(t *testing.T, online bool) (*Tracker, *recordingReporter, resume.Store, *fakeClock) {
	t.Helper()
	store := resume.NewMemoryStore()
	rep := &recordingReporter{}
	clock := &fakeClock{now: time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)}
	tr := NewTracker(store, rep, netutil.StaticMonitor(online), Config{
		UserID:         "u1",
		ReportInterval: 10 * time.Second,
		Now:            clock.Now,
	})
	return tr, rep, store, clock
}

func TestTracker_LocalAlwaysRemoteThrottled(t *testing.T) {
	ctx := context.Background()
	tr, rep, store, clock := newTracker(t, true)

	tr.Start(ctx, Playback{ItemID: "ep1", MediaSourceID: "src", PlaySessionID: "ps", RuntimeTicks: runtime}, 0)
	for i := 1; i <= 5; i++ {
		clock.Advance(time.Second)
		tr.Update(ctx, time.Duration(i)*time.Second, false)
	}
	clock.Advance(10 * time.Second)
	tr.Update(ctx, 15*time.Second, false)
	tr.Wait()

	assert.ElementsMatch(t, []string{"start", "progress"}, rep.snapshot())

	st, err := store.Get(ctx, "u1", "ep1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, 15*media.TicksPerSecond, st.PositionTicks)
}

func TestTracker_OfflineSkipsRemote(t *testing.T) {
	ctx := context.Background()
	tr, rep, store, clock := newTracker(t, false)

	tr.Start(ctx, Playback{ItemID: "movie", RuntimeTicks: runtime}, 0)
	clock.Advance(time.Minute)
	tr.Update(ctx, 120*time.Second, true)
	tr.Stop(ctx, 121*time.Second, false)
	tr.Wait()

	assert.Empty(t, rep.snapshot())
	st, err := store.Get(ctx, "u1", "movie")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, 121*media.TicksPerSecond, st.PositionTicks)
}

func TestTracker_ReportFailureIsNotSurfaced(t *testing.T) {
	ctx := context.Background()
	tr, rep, store, clock := newTracker(t, true)
	rep.err = errors.New("502 bad gateway")

	tr.Start(ctx, Playback{ItemID: "ep1", RuntimeTicks: runtime}, 0)
	clock.Advance(20 * time.Second)
	tr.Update(ctx, 20*time.Second, false)
	tr.Wait()

	st, err := store.Get(ctx, "u1", "ep1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, 20*media.TicksPerSecond, st.PositionTicks)
}

func TestTracker_MarkWatchedClearsResumeAndIgnoresStaleUpdates(t *testing.T) {
	ctx := context.Background()
	tr, rep, store, clock := newTracker(t, true)

	tr.Start(ctx, Playback{ItemID: "ep1", RuntimeTicks: runtime}, 0)
	clock.Advance(time.Second)
	tr.Update(ctx, 40*time.Minute, false)

	clock.Advance(time.Second)
	tr.MarkWatched(ctx, "ep1")

	// A late position tick from the player must not resurrect the resume point.
	clock.Advance(time.Second)
	tr.Update(ctx, 41*time.Minute, false)
	tr.Wait()

	st, err := store.Get(ctx, "u1", "ep1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, st.Finished)
	assert.Zero(t, st.PositionTicks)
	assert.Equal(t, []string{"ep1"}, rep.played)

	// Stale write observed before the finished mark is rejected by the store itself.
	applied, err := store.RecordProgress(ctx, "u1", "ep1", 10, runtime, clock.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestTracker_CompletedStopFinishes(t *testing.T) {
	ctx := context.Background()
	tr, rep, store, clock := newTracker(t, true)

	tr.Start(ctx, Playback{ItemID: "ep2", RuntimeTicks: runtime}, 0)
	clock.Advance(time.Second)
	tr.Stop(ctx, 59*time.Minute, true)
	tr.Wait()

	st, err := store.Get(ctx, "u1", "ep2")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, st.Finished)
	assert.Zero(t, st.PositionTicks)
	assert.Contains(t, rep.snapshot(), "stop")
}

func TestTracker_SegmentChangesEmittedOnIdentityChange(t *testing.T) {
	ctx := context.Background()
	tr, _, _, clock := newTracker(t, false)

	var mu sync.Mutex
	var seen []string
	tr.OnSegmentChange(func(s *media.Segment) {
		mu.Lock()
		defer mu.Unlock()
		if s == nil {
			seen = append(seen, "none")
			return
		}
		seen = append(seen, s.ID)
	})

	tr.Start(ctx, Playback{ItemID: "ep1", RuntimeTicks: runtime}, 0)
	tr.SetSegments("ep1", []media.Segment{
		{ID: "intro", Type: media.SegmentIntro, StartTicks: 10 * media.TicksPerSecond, EndTicks: 70 * media.TicksPerSecond},
		{ID: "outro", Type: media.SegmentOutro, StartTicks: 50 * 60 * media.TicksPerSecond, EndTicks: runtime},
	})
	tr.SetSegments("other-item", nil)

	for _, pos := range []time.Duration{5 * time.Second, 15 * time.Second, 30 * time.Second, 69 * time.Second, 70 * time.Second, 51 * time.Minute} {
		clock.Advance(time.Second)
		tr.Update(ctx, pos, false)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"intro", "none", "outro"}, seen)

	seg, ok := tr.ActiveSegment()
	require.True(t, ok)
	assert.Equal(t, media.SegmentOutro, seg.Type)
}

func TestTracker_ResumeWrapsStoreErrors(t *testing.T) {
	tr := NewTracker(failingStore{}, nil, nil, Config{UserID: "u"})
	_, err := tr.Resume(context.Background(), "x")
	assert.ErrorIs(t, err, ports.ErrProgressRestore)
}

type failingStore struct{ resume.Store }

func (failingStore) Get(context.Context, string, string) (*resume.State, error) {
	return nil, errors.New("disk I/O error")
}

// gatedStore holds every write until release is closed.
type gatedStore struct {
	*resume.MemoryStore
	release chan struct{}
}

func (s gatedStore) RecordProgress(ctx context.Context, userID, itemID string, pos, rt int64, at time.Time) (bool, error) {
	<-s.release
	return s.MemoryStore.RecordProgress(ctx, userID, itemID, pos, rt, at)
}

func (s gatedStore) MarkFinished(ctx context.Context, userID, itemID string, at time.Time) error {
	<-s.release
	return s.MemoryStore.MarkFinished(ctx, userID, itemID, at)
}

func TestTracker_LocalWritesDoNotBlockCaller(t *testing.T) {
	ctx := context.Background()
	store := gatedStore{MemoryStore: resume.NewMemoryStore(), release: make(chan struct{})}
	clock := &fakeClock{now: time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)}
	tr := NewTracker(store, nil, netutil.StaticMonitor(true), Config{UserID: "u1", Now: clock.Now})

	returned := make(chan struct{})
	go func() {
		defer close(returned)
		tr.Start(ctx, Playback{ItemID: "ep1", RuntimeTicks: runtime}, 0)
		clock.Advance(time.Second)
		tr.Update(ctx, 30*time.Second, false)
		clock.Advance(time.Second)
		tr.Stop(ctx, 31*time.Second, true)
		tr.MarkWatched(ctx, "ep2")
	}()

	select {
	case <-returned:
	case <-time.After(5 * time.Second):
		t.Fatal("tracker calls blocked on the local store")
	}

	close(store.release)
	tr.Wait()

	st, err := store.Get(ctx, "u1", "ep1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, st.Finished, "the finished mark must win over the earlier position write")
	assert.Zero(t, st.PositionTicks)

	st, err = store.Get(ctx, "u1", "ep2")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, st.Finished)
}

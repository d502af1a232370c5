package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/anchorsync/internal/anchor"
	"github.com/roach88/anchorsync/internal/anchorstore"
	"github.com/roach88/anchorsync/internal/pose"
	"github.com/roach88/anchorsync/internal/reanchor"
	"github.com/roach88/anchorsync/internal/registry"
	"github.com/roach88/anchorsync/internal/tracking"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	engine  *Engine
	session *tracking.Session
	store   *anchorstore.Store
	lock    *reanchor.Lock
	rec     *syncRecorder
	cancel  context.CancelFunc
	done    chan error
}

// syncRecorder guards a registry.Recorder so tests can read it while the loop
// runs.
type syncRecorder struct {
	mu  sync.Mutex
	rec registry.Recorder
}

func (s *syncRecorder) Notify(n registry.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Notify(n)
}

func (s *syncRecorder) Kinds() []registry.NotificationKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Kinds()
}

func newFixture(t *testing.T, persisted map[string]pose.Pose) *fixture {
	t.Helper()

	session := tracking.NewSession(tracking.WithIDGenerator(anchor.NewSequenceGenerator("a")))
	st, err := anchorstore.Open(":memory:", anchorstore.WithTracker(session))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	for name, p := range persisted {
		require.NoError(t, st.Save(context.Background(), name, p))
	}

	f := &fixture{
		session: session,
		store:   st,
		lock:    reanchor.NewLock(),
		rec:     &syncRecorder{},
		done:    make(chan error, 1),
	}
	f.engine = New(session, f.lock, WithVisualizer(f.rec))

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() { f.done <- f.engine.Run(ctx) }()
	t.Cleanup(f.stop)
	return f
}

func (f *fixture) stop() {
	f.cancel()
	<-f.engine.Done()
}

func at(x float64) pose.Pose {
	return pose.New(pose.Vec3{X: x}, pose.IdentityQuat())
}

func TestEngine_ReconcilesAfterStoreReady(t *testing.T) {
	f := newFixture(t, map[string]pose.Pose{"door": at(1), "desk": at(2)})
	ctx := context.Background()

	require.NoError(t, f.engine.StoreReady(ctx, f.store))

	pending, err := f.engine.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	_, err = f.engine.Flush(ctx)
	require.NoError(t, err)

	records, err := f.engine.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.True(t, r.Persisted)
		assert.NotEmpty(t, r.Name)
	}

	pending, err = f.engine.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	phase, err := f.engine.Phase(ctx)
	require.NoError(t, err)
	assert.Equal(t, registry.PhaseReady, phase)
}

func TestEngine_ProcessesInDeliveryOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	id := anchor.ID("x")
	require.True(t, f.engine.Deliver(tracking.Changes{
		Added: []tracking.Change{{ID: id, Pose: at(1), TrackingState: anchor.Tracking}},
	}))
	require.True(t, f.engine.Deliver(tracking.Changes{
		Updated: []tracking.Change{{ID: id, Pose: at(2), TrackingState: anchor.Limited}},
	}))
	require.True(t, f.engine.Deliver(tracking.Changes{Removed: []anchor.ID{id}}))

	// A command queued behind the batches observes all of them.
	records, err := f.engine.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, []registry.NotificationKind{
		registry.NotifyAdded, registry.NotifyUpdated, registry.NotifyRemoved,
	}, f.rec.Kinds())
}

func TestEngine_AwaitStore(t *testing.T) {
	f := newFixture(t, map[string]pose.Pose{"door": at(1)})
	ctx := context.Background()

	release := make(chan struct{})
	require.NoError(t, f.engine.AwaitStore(ctx, func(context.Context) (anchorstore.Client, error) {
		<-release
		return f.store, nil
	}))

	phase, err := f.engine.Phase(ctx)
	require.NoError(t, err)
	assert.Equal(t, registry.PhaseAwaitingStore, phase)

	close(release)
	require.Eventually(t, func() bool {
		p, err := f.engine.Phase(ctx)
		return err == nil && p == registry.PhaseReady
	}, time.Second, 5*time.Millisecond)

	_, err = f.engine.Flush(ctx)
	require.NoError(t, err)
	records, err := f.engine.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "door", records[0].Name)
}

func TestEngine_AwaitStore_Twice(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	open := func(context.Context) (anchorstore.Client, error) { return f.store, nil }
	require.NoError(t, f.engine.AwaitStore(ctx, open))
	assert.ErrorIs(t, f.engine.AwaitStore(ctx, open), ErrAlreadyAwaiting)
	assert.ErrorIs(t, f.engine.StoreReady(ctx, f.store), ErrAlreadyAwaiting)
}

func TestEngine_AwaitStore_OpenerFails(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.engine.AwaitStore(ctx, func(context.Context) (anchorstore.Client, error) {
		return nil, errors.New("disk gone")
	}))
	require.Eventually(t, func() bool {
		p, err := f.engine.Phase(ctx)
		return err == nil && p == registry.PhaseUnavailable
	}, time.Second, 5*time.Millisecond)

	id, err := f.engine.AddAnchor(ctx, at(1))
	require.NoError(t, err)
	err = f.engine.PersistAnchor(ctx, id, "door")
	assert.True(t, registry.IsUnavailable(err))
}

type closeTracker struct {
	anchorstore.Client
	closed chan struct{}
}

func (c *closeTracker) Close() error {
	close(c.closed)
	return nil
}

func TestEngine_AbandonedStoreIsClosed(t *testing.T) {
	f := newFixture(t, map[string]pose.Pose{"door": at(1)})
	ctx := context.Background()

	release := make(chan struct{})
	client := &closeTracker{Client: f.store, closed: make(chan struct{})}
	require.NoError(t, f.engine.AwaitStore(ctx, func(context.Context) (anchorstore.Client, error) {
		<-release
		return client, nil
	}))

	f.stop()
	close(release)

	select {
	case <-client.closed:
	case <-time.After(time.Second):
		t.Fatal("abandoned client was not closed")
	}
	assert.Equal(t, 0, f.session.Live(), "no load request may reach the tracker")
	assert.Empty(t, f.rec.Kinds())
}

func TestEngine_CommandsAfterStop(t *testing.T) {
	f := newFixture(t, nil)
	f.stop()

	ctx := context.Background()
	_, err := f.engine.Records(ctx)
	assert.ErrorIs(t, err, ErrStopped)
	assert.False(t, f.engine.Deliver(tracking.Changes{}))
	assert.ErrorIs(t, f.engine.AwaitStore(ctx, nil), ErrStopped)
	assert.ErrorIs(t, <-f.done, context.Canceled)
}

func TestEngine_StopReturnsNil(t *testing.T) {
	session := tracking.NewSession()
	e := New(session, reanchor.NewLock())

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	e.Stop()
	assert.NoError(t, <-done)
	e.Stop()
}

func TestEngine_PersistAndClear(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.engine.StoreReady(ctx, f.store))

	id, err := f.engine.AddAnchor(ctx, at(3))
	require.NoError(t, err)
	require.NoError(t, f.engine.PersistAnchor(ctx, id, "shelf"))

	names, err := f.store.PersistedNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"shelf"}, names)

	require.NoError(t, f.engine.ClearAll(ctx))
	names, err = f.store.PersistedNames(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	rec, ok, err := f.engine.Lookup(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, rec.Persisted)
	assert.Empty(t, rec.Name)
}

func TestEngine_DropAllLiveAnchors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.engine.AddAnchor(ctx, at(1))
	require.NoError(t, err)
	_, err = f.engine.AddAnchor(ctx, at(2))
	require.NoError(t, err)

	require.NoError(t, f.engine.DropAllLiveAnchors(ctx))
	records, err := f.engine.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 0, f.session.Live())
}

func TestEngine_FinishManipulation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	id, err := f.engine.AddAnchor(ctx, at(1))
	require.NoError(t, err)
	require.NoError(t, f.engine.StartManipulation(ctx, id))

	root := at(1)
	target := pose.New(pose.Vec3{X: 1.5, Z: 0.25}, pose.FromAxisAngle(pose.Vec3{Y: 1}, 0.3))
	corr, err := f.engine.FinishManipulation(ctx, root, target, id)
	require.NoError(t, err)
	assert.Equal(t, id, corr.Target)
	assert.True(t, pose.ApproxEqual(pose.Compose(corr.Offset, target), root, pose.Tolerance))
	assert.Equal(t, 1, f.lock.Applied())

	_, err = f.engine.FinishManipulation(ctx, root, target, "ghost")
	assert.ErrorIs(t, err, reanchor.ErrUnknownTarget)
	assert.Equal(t, 1, f.lock.Applied())
}

func TestEngine_RelocateWorldAnchor(t *testing.T) {
	f := newFixture(t, map[string]pose.Pose{"door": at(1)})
	ctx := context.Background()
	require.NoError(t, f.engine.StoreReady(ctx, f.store))
	_, err := f.engine.Flush(ctx)
	require.NoError(t, err)

	id, err := f.engine.RelocateWorldAnchor(ctx, at(9))
	require.NoError(t, err)

	records, err := f.engine.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].ID)
	assert.Equal(t, registry.DefaultWorldAnchorName, records[0].Name)
	assert.True(t, records[0].Persisted)

	names, err := f.store.PersistedNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{registry.DefaultWorldAnchorName}, names)
}

func TestEngine_NotificationsStampedByClock(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.engine.AddAnchor(ctx, at(1))
	require.NoError(t, err)
	_, err = f.engine.AddAnchor(ctx, at(2))
	require.NoError(t, err)

	assert.Equal(t, int64(2), f.engine.Clock().Current())
}

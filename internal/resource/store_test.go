package resource

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wondertwin-ai/subtrack/internal/clock"
	"github.com/wondertwin-ai/subtrack/internal/remote"
	"github.com/wondertwin-ai/subtrack/internal/subscription"
)

func sub(id, name string) subscription.Subscription {
	return subscription.Subscription{ID: id, Payload: subscription.Payload{Name: name}}
}

// staticLister returns the same result on every call.
type staticLister struct {
	items []subscription.Subscription
	err   error
}

func (l staticLister) List(context.Context) ([]subscription.Subscription, error) {
	return l.items, l.err
}

type listResult struct {
	items []subscription.Subscription
	err   error
}

// gatedLister blocks each call until the test releases it.
type gatedLister struct {
	mu      sync.Mutex
	calls   []chan listResult
	started chan struct{}
}

func newGatedLister() *gatedLister {
	return &gatedLister{started: make(chan struct{}, 8)}
}

func (l *gatedLister) List(ctx context.Context) ([]subscription.Subscription, error) {
	ch := make(chan listResult, 1)
	l.mu.Lock()
	l.calls = append(l.calls, ch)
	l.mu.Unlock()
	l.started <- struct{}{}
	r := <-ch
	return r.items, r.err
}

func (l *gatedLister) release(i int, r listResult) {
	l.mu.Lock()
	ch := l.calls[i]
	l.mu.Unlock()
	ch <- r
}

func TestFetchAllReplacesCollection(t *testing.T) {
	s := New(staticLister{items: []subscription.Subscription{sub("1", "A"), sub("2", "B")}})
	s.ApplyCreated(sub("9", "Local only"))

	require.NoError(t, s.FetchAll(context.Background()))

	snap := s.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	require.Len(t, snap.Items, 2)
	assert.Equal(t, "1", snap.Items[0].ID)
	assert.Equal(t, "2", snap.Items[1].ID)
}

func TestFetchAllStampsFetchedAt(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(staticLister{}, WithClock(clock.NewFake(start)))
	require.NoError(t, s.FetchAll(context.Background()))
	assert.Equal(t, start, s.Snapshot().FetchedAt)
}

func TestFetchAllDropsDuplicateIDs(t *testing.T) {
	s := New(staticLister{items: []subscription.Subscription{sub("1", "first"), sub("1", "second")}})
	require.NoError(t, s.FetchAll(context.Background()))
	items := s.Snapshot().Items
	require.Len(t, items, 1)
	assert.Equal(t, "first", items[0].Name)
}

func TestFetchAllFailureKeepsCollection(t *testing.T) {
	lister := &switchLister{result: listResult{items: []subscription.Subscription{sub("1", "A")}}}
	s := New(lister)
	require.NoError(t, s.FetchAll(context.Background()))

	lister.result = listResult{err: &remote.HTTPError{Op: "list subscriptions", StatusCode: 500, Message: "database down"}}
	err := s.FetchAll(context.Background())
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Equal(t, StatusError, snap.Status)
	assert.Equal(t, "database down", snap.Err)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "1", snap.Items[0].ID)
}

type switchLister struct{ result listResult }

func (l *switchLister) List(context.Context) ([]subscription.Subscription, error) {
	return l.result.items, l.result.err
}

func TestStaleFetchIsDiscarded(t *testing.T) {
	lister := newGatedLister()
	s := New(lister)

	errs := make(chan error, 2)
	go func() { errs <- s.FetchAll(context.Background()) }()
	<-lister.started
	go func() { errs <- s.FetchAll(context.Background()) }()
	<-lister.started

	// The newer fetch completes first.
	lister.release(1, listResult{items: []subscription.Subscription{sub("new", "New")}})
	require.NoError(t, <-errs)

	// The older one completes later with different data.
	lister.release(0, listResult{items: []subscription.Subscription{sub("old", "Old")}})
	assert.ErrorIs(t, <-errs, ErrSuperseded)

	items := s.Snapshot().Items
	require.Len(t, items, 1)
	assert.Equal(t, "new", items[0].ID)
}

func TestNewerFetchCancelsOlderRequest(t *testing.T) {
	cancelled := make(chan struct{})
	first := true
	var mu sync.Mutex
	lister := listerFunc(func(ctx context.Context) ([]subscription.Subscription, error) {
		mu.Lock()
		isFirst := first
		first = false
		mu.Unlock()
		if isFirst {
			<-ctx.Done()
			close(cancelled)
			return nil, ctx.Err()
		}
		<-cancelled
		return []subscription.Subscription{sub("1", "A")}, nil
	})
	s := New(lister)

	errs := make(chan error, 1)
	go func() { errs <- s.FetchAll(context.Background()) }()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return !first
	}, time.Second, time.Millisecond)

	require.NoError(t, s.FetchAll(context.Background()))
	assert.ErrorIs(t, <-errs, ErrSuperseded)
	assert.Equal(t, StatusIdle, s.Snapshot().Status)
}

type listerFunc func(ctx context.Context) ([]subscription.Subscription, error)

func (f listerFunc) List(ctx context.Context) ([]subscription.Subscription, error) { return f(ctx) }

func TestApplyCreatedIsIdempotent(t *testing.T) {
	s := New(staticLister{})
	assert.True(t, s.ApplyCreated(sub("1", "A")))
	assert.False(t, s.ApplyCreated(sub("1", "A")))
	assert.Len(t, s.Snapshot().Items, 1)
}

func TestApplyUpdatedIgnoresUnknownID(t *testing.T) {
	s := New(staticLister{})
	s.ApplyCreated(sub("1", "A"))

	assert.False(t, s.ApplyUpdated(sub("2", "B")))
	items := s.Snapshot().Items
	require.Len(t, items, 1)
	assert.Equal(t, "A", items[0].Name)

	assert.True(t, s.ApplyUpdated(sub("1", "A2")))
	assert.Equal(t, "A2", s.Snapshot().Items[0].Name)
}

func TestApplyDeleted(t *testing.T) {
	s := New(staticLister{})
	s.ApplyCreated(sub("1", "A"))
	s.ApplyCreated(sub("2", "B"))
	s.ApplyCreated(sub("3", "C"))

	assert.True(t, s.ApplyDeleted("2"))
	assert.False(t, s.ApplyDeleted("2"))

	items := s.Snapshot().Items
	require.Len(t, items, 2)
	assert.Equal(t, "1", items[0].ID)
	assert.Equal(t, "3", items[1].ID)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New(staticLister{})
	s.ApplyCreated(sub("1", "A"))
	snap := s.Snapshot()
	snap.Items[0].Name = "mutated"
	assert.Equal(t, "A", s.Snapshot().Items[0].Name)
}

func TestSnapshotSorted(t *testing.T) {
	s := New(staticLister{items: []subscription.Subscription{sub("1", "netflix"), sub("2", "Apple"), sub("3", "bbc")}})
	require.NoError(t, s.FetchAll(context.Background()))

	var names []string
	for _, it := range s.Snapshot().Sorted() {
		names = append(names, it.Name)
	}
	assert.Equal(t, []string{"Apple", "bbc", "netflix"}, names)
	assert.Equal(t, "netflix", s.Snapshot().Items[0].Name, "server order is kept")
}

func TestSubscribeReceivesChanges(t *testing.T) {
	s := New(staticLister{items: []subscription.Subscription{sub("1", "A")}})
	var got []Status
	cancel := s.Subscribe(func(snap Snapshot) { got = append(got, snap.Status) })

	require.NoError(t, s.FetchAll(context.Background()))
	s.ApplyCreated(sub("2", "B"))
	cancel()
	s.ApplyCreated(sub("3", "C"))

	assert.Equal(t, []Status{StatusLoading, StatusIdle, StatusIdle}, got)
}

func TestDetachSupersedesInFlightFetch(t *testing.T) {
	lister := newGatedLister()
	s := New(lister)
	calls := 0
	s.Subscribe(func(Snapshot) { calls++ })

	errs := make(chan error, 1)
	go func() { errs <- s.FetchAll(context.Background()) }()
	<-lister.started
	s.Detach()
	lister.release(0, listResult{items: []subscription.Subscription{sub("1", "A")}})

	assert.ErrorIs(t, <-errs, ErrSuperseded)
	assert.Empty(t, s.Snapshot().Items)
	assert.Equal(t, 1, calls, "only the loading transition before detach is observed")
}

func TestAttachFetchesInBackground(t *testing.T) {
	s := New(staticLister{items: []subscription.Subscription{sub("1", "A")}})
	s.Attach(context.Background())
	require.Eventually(t, func() bool {
		return len(s.Snapshot().Items) == 1
	}, time.Second, time.Millisecond)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "loading", StatusLoading.String())
	assert.Equal(t, "error", StatusError.String())
	assert.Equal(t, "unknown", Status(42).String())
}

func TestBlockedObserverSeesLatestSnapshot(t *testing.T) {
	s := New(staticLister{})

	var (
		mu      sync.Mutex
		counts  []int
		once    sync.Once
		entered = make(chan struct{})
		unblock = make(chan struct{})
	)
	s.Subscribe(func(snap Snapshot) {
		once.Do(func() {
			close(entered)
			<-unblock
		})
		mu.Lock()
		counts = append(counts, len(snap.Items))
		mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		s.ApplyCreated(sub("a", "A"))
		close(done)
	}()
	<-entered

	s.ApplyCreated(sub("b", "B"))
	close(unblock)
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, counts)
	assert.Equal(t, 2, counts[len(counts)-1], "last delivery is the newest snapshot")
	for i := 1; i < len(counts); i++ {
		assert.GreaterOrEqual(t, counts[i], counts[i-1], "deliveries never go backwards")
	}
}

func TestObserverMayReadStore(t *testing.T) {
	s := New(staticLister{})
	var got []int
	s.Subscribe(func(Snapshot) { got = append(got, len(s.Snapshot().Items)) })

	s.ApplyCreated(sub("a", "A"))
	s.ApplyCreated(sub("b", "B"))
	assert.Equal(t, []int{1, 2}, got)
}

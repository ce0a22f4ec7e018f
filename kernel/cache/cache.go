package cache

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var ErrUnknownQuery = errors.New("query is not registered")

// Fetcher loads the full value of one collection view.
type Fetcher func(ctx context.Context) (any, error)

// Listener receives snapshots in sequence order. It must not call back into
// the cache for the same query synchronously.
type Listener func(Snapshot)

// Snapshot is an immutable view of one cache entry.
type Snapshot struct {
	Key   string
	Value any
	// HasValue is false until the first successful fetch.
	HasValue bool
	// Err is the error of the most recent applied fetch. Value still holds the
	// last good data when both are set.
	Err error
	// Stale is set by invalidation and by failed refreshes over earlier data.
	Stale     bool
	FetchedAt time.Time
	// Seq is the dispatch sequence of the applied response.
	Seq uint64
}

// Value returns the snapshot's value as a T.
func Value[T any](s Snapshot) (T, bool) {
	v, ok := s.Value.(T)
	return v, ok
}

type entry struct {
	query Query
	fetch Fetcher

	mu         sync.Mutex
	snap       Snapshot
	dispatched uint64
	listeners  map[uint64]Listener
	nextId     uint64

	notifyMu sync.Mutex
	notified uint64
}

// Cache holds the latest snapshot of each registered query. Refreshes of one
// key are coalesced, and a response older than the last applied one for its
// key is discarded.
type Cache struct {
	entries cmap.ConcurrentMap[string, *entry]
	group   singleflight.Group
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
	now     func() time.Time
	log     *logrus.Entry
}

// New creates a cache whose fetches are bounded by timeout. Fetches run under
// the cache's own context so one abandoned caller cannot cancel a shared
// refresh.
func New(timeout time.Duration) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		entries: cmap.New[*entry](),
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
		log:     logrus.WithField("component", "cache"),
	}
}

// Register adds q to the cache. Registering an existing key keeps the
// original fetcher.
func (c *Cache) Register(q Query, fetch Fetcher) {
	c.entries.SetIfAbsent(q.Key(), &entry{
		query:     q,
		fetch:     fetch,
		snap:      Snapshot{Key: q.Key()},
		listeners: make(map[uint64]Listener),
	})
}

func (c *Cache) Queries() []Query {
	var queries []Query
	for _, e := range c.entries.Items() {
		queries = append(queries, e.query)
	}
	sort.Slice(queries, func(i, j int) bool { return queries[i].Key() < queries[j].Key() })
	return queries
}

func (c *Cache) Get(q Query) (Snapshot, bool) {
	e, found := c.entries.Get(q.Key())
	if !found {
		return Snapshot{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap, true
}

// Refresh fetches q now, or joins a refresh of q already in flight. The
// returned error covers only an unknown query or ctx ending; fetch failures
// are reported in Snapshot.Err.
func (c *Cache) Refresh(ctx context.Context, q Query) (Snapshot, error) {
	e, found := c.entries.Get(q.Key())
	if !found {
		return Snapshot{}, errors.Wrap(ErrUnknownQuery, q.Key())
	}
	ch := c.group.DoChan(q.Key(), func() (interface{}, error) {
		return c.refresh(e), nil
	})
	select {
	case res := <-ch:
		return res.Val.(Snapshot), nil
	case <-ctx.Done():
		return e.current(), ctx.Err()
	}
}

// Invalidate marks q stale and refreshes it immediately. A refresh of q
// already in flight is not joined; its late response loses to this one.
func (c *Cache) Invalidate(ctx context.Context, q Query) (Snapshot, error) {
	e, found := c.entries.Get(q.Key())
	if !found {
		return Snapshot{}, errors.Wrap(ErrUnknownQuery, q.Key())
	}
	e.mu.Lock()
	e.snap.Stale = true
	e.mu.Unlock()

	c.group.Forget(q.Key())
	return c.Refresh(ctx, q)
}

// InvalidateCollection invalidates every registered query of collection.
func (c *Cache) InvalidateCollection(ctx context.Context, collection string) error {
	for _, q := range c.Queries() {
		if q.Collection != collection {
			continue
		}
		if _, err := c.Invalidate(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe registers fn for changes of q's value or error state. If q has
// already been fetched, fn is called once with the current snapshot.
func (c *Cache) Subscribe(q Query, fn Listener) (func(), error) {
	e, found := c.entries.Get(q.Key())
	if !found {
		return nil, errors.Wrap(ErrUnknownQuery, q.Key())
	}

	e.notifyMu.Lock()
	e.mu.Lock()
	existing := e.listenersLocked()
	id := e.nextId
	e.nextId++
	e.listeners[id] = fn
	snap := e.snap
	e.mu.Unlock()
	if snap.Seq > e.notified {
		// a notify for snap is still in flight; deliver it here so the
		// new listener does not see snap twice
		e.notified = snap.Seq
		for _, l := range existing {
			l(snap)
		}
	}
	if snap.Seq > 0 {
		fn(snap)
	}
	e.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.listeners, id)
			e.mu.Unlock()
		})
	}, nil
}

// Run polls every query registered before the call, each on its own loop,
// until ctx is done.
func (c *Cache) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", interval)
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, q := range c.Queries() {
		g.Go(func() error {
			c.poll(ctx, q, interval)
			return nil
		})
	}
	return g.Wait()
}

// Close aborts in-flight fetches. Pending Refresh calls return what the
// aborted fetch produced.
func (c *Cache) Close() {
	c.cancel()
}

func (c *Cache) poll(ctx context.Context, q Query, interval time.Duration) {
	log := c.log.WithField("query", q.Key())
	log.Debugf("polling every %v", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		snap, err := c.Refresh(ctx, q)
		if err != nil {
			return
		}
		if snap.Err != nil {
			log.WithError(snap.Err).Warn("refresh failed")
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			log.Debug("polling stopped")
			return
		}
	}
}

func (c *Cache) refresh(e *entry) Snapshot {
	e.mu.Lock()
	e.dispatched++
	seq := e.dispatched
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()
	value, err := e.fetch(ctx)
	if c.ctx.Err() != nil {
		return e.current()
	}

	snap, changed := e.apply(seq, value, err, c.now())
	if changed {
		e.notify()
	}
	return snap
}

func (e *entry) current() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap
}

// apply installs a fetch result unless a later-dispatched response has
// already been applied.
func (e *entry) apply(seq uint64, value any, err error, now time.Time) (Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if seq < e.snap.Seq {
		logrus.WithField("query", e.snap.Key).Debugf("discarding response #%d, #%d already applied", seq, e.snap.Seq)
		return e.snap, false
	}

	prev := e.snap
	next := prev
	next.Seq = seq
	if err == nil {
		next.Value = value
		next.HasValue = true
		next.Err = nil
		next.Stale = false
		next.FetchedAt = now
	} else {
		next.Err = err
		next.Stale = prev.HasValue
	}
	e.snap = next

	changed := errorText(prev.Err) != errorText(next.Err) ||
		prev.HasValue != next.HasValue ||
		!reflect.DeepEqual(prev.Value, next.Value)
	return next, changed
}

// notify delivers the newest snapshot to every listener. Deliveries are
// serialized per entry and never go backwards in sequence.
func (e *entry) notify() {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()

	e.mu.Lock()
	snap := e.snap
	listeners := e.listenersLocked()
	e.mu.Unlock()

	if snap.Seq <= e.notified {
		return
	}
	e.notified = snap.Seq
	for _, l := range listeners {
		l(snap)
	}
}

// listenersLocked returns the listeners in registration order. e.mu must be held.
func (e *entry) listenersLocked() []Listener {
	ids := make([]uint64, 0, len(e.listeners))
	for id := range e.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, e.listeners[id])
	}
	return listeners
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

package session

import (
	"context"
	"sync"
	"time"

	"github.com/openziti/storelab/kernel/cache"
	"github.com/openziti/storelab/kernel/engine"
	"github.com/openziti/storelab/kernel/model"
	"github.com/openziti/storelab/kernel/mutation"
	"github.com/openziti/storelab/kernel/transport"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	PollInterval time.Duration
	AuditLimit   int
	Timeout      time.Duration
	Clock        engine.Clock
}

func OptionsFromConfig(cfg *model.StorelabConfig) Options {
	return Options{
		PollInterval: cfg.PollInterval,
		AuditLimit:   cfg.AuditLimit,
		Timeout:      cfg.EffectiveTimeout(),
	}
}

// Session wires the cache, the mutation coordinator and the elapsed tracker
// for the lifetime of one consuming view.
type Session struct {
	Client      transport.Client
	Cache       *cache.Cache
	Coordinator *mutation.Coordinator
	Elapsed     *engine.ElapsedTracker

	opts        Options
	storesQuery cache.Query
	auditQuery  cache.Query

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	unsub  []func()
	wg     sync.WaitGroup
	once   sync.Once
}

func New(client transport.Client, opts Options) *Session {
	if opts.PollInterval <= 0 {
		opts.PollInterval = model.DefaultPollInterval
	}
	if opts.AuditLimit <= 0 {
		opts.AuditLimit = model.DefaultAuditLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = model.DefaultConfig().EffectiveTimeout()
	}

	c := cache.New(opts.Timeout)
	s := &Session{
		Client:      client,
		Cache:       c,
		Coordinator: mutation.NewCoordinator(client, c),
		Elapsed:     engine.NewElapsedTracker(opts.Clock),
		opts:        opts,
		storesQuery: cache.StoresQuery(),
		auditQuery:  cache.AuditQuery(opts.AuditLimit),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	c.Register(s.storesQuery, func(ctx context.Context) (any, error) {
		return client.ListStores(ctx)
	})
	c.Register(s.auditQuery, func(ctx context.Context) (any, error) {
		return client.ListAuditEvents(ctx, opts.AuditLimit)
	})

	unsubscribe, _ := c.Subscribe(s.storesQuery, func(snap cache.Snapshot) {
		if stores, ok := cache.Value[[]model.Store](snap); ok {
			s.Elapsed.Reconcile(stores)
		}
	})
	s.unsub = append(s.unsub, unsubscribe)
	return s
}

func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) StoresQuery() cache.Query {
	return s.storesQuery
}

func (s *Session) AuditQuery() cache.Query {
	return s.auditQuery
}

// Load fetches every collection once, concurrently.
func (s *Session) Load(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, q := range []cache.Query{s.storesQuery, s.auditQuery} {
		g.Go(func() error {
			_, err := s.Cache.Refresh(ctx, q)
			return err
		})
	}
	return g.Wait()
}

// Start begins background polling; it stops when the session is closed.
func (s *Session) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Cache.Run(s.ctx, s.opts.PollInterval); err != nil {
			logrus.WithError(err).Error("polling stopped")
		}
	}()
}

// Stores returns the cached stores and the snapshot they came from.
func (s *Session) Stores() ([]model.Store, cache.Snapshot) {
	snap, _ := s.Cache.Get(s.storesQuery)
	stores, _ := cache.Value[[]model.Store](snap)
	return stores, snap
}

func (s *Session) AuditEvents() ([]model.AuditEvent, cache.Snapshot) {
	snap, _ := s.Cache.Get(s.auditQuery)
	events, _ := cache.Value[[]model.AuditEvent](snap)
	return events, snap
}

// Store looks id up in the cached stores.
func (s *Session) Store(id string) (model.Store, bool) {
	stores, _ := s.Stores()
	return model.FindStore(stores, id)
}

// SubscribeStores forwards stores snapshots to fn until the returned func is
// called or the session closes.
func (s *Session) SubscribeStores(fn func([]model.Store, cache.Snapshot)) (func(), error) {
	return s.subscribe(s.storesQuery, func(snap cache.Snapshot) {
		stores, _ := cache.Value[[]model.Store](snap)
		fn(stores, snap)
	})
}

func (s *Session) SubscribeAudit(fn func([]model.AuditEvent, cache.Snapshot)) (func(), error) {
	return s.subscribe(s.auditQuery, func(snap cache.Snapshot) {
		events, _ := cache.Value[[]model.AuditEvent](snap)
		fn(events, snap)
	})
}

func (s *Session) subscribe(q cache.Query, fn cache.Listener) (func(), error) {
	unsubscribe, err := s.Cache.Subscribe(q, fn)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to subscribe to [%s]", q)
	}
	s.mu.Lock()
	s.unsub = append(s.unsub, unsubscribe)
	s.mu.Unlock()
	return unsubscribe, nil
}

// Refresh refetches every collection now.
func (s *Session) Refresh(ctx context.Context) error {
	for _, q := range []cache.Query{s.storesQuery, s.auditQuery} {
		if _, err := s.Cache.Invalidate(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// WaitForStatus polls the cache until the store leaves status or ctx ends.
func (s *Session) WaitForStatus(ctx context.Context, id string, status model.StoreStatus) (model.Store, error) {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	for {
		snap, err := s.Cache.Refresh(ctx, s.storesQuery)
		if err != nil {
			return model.Store{}, err
		}
		stores, _ := cache.Value[[]model.Store](snap)
		st, found := model.FindStore(stores, id)
		if snap.Err == nil && !found {
			return model.Store{}, errors.Errorf("store [%s] disappeared", id)
		}
		if found && st.Status != status {
			return st, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

// Close tears down polling, pending mutations and every timer of the view.
func (s *Session) Close() {
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.Coordinator.Wait()
		s.mu.Lock()
		for _, unsubscribe := range s.unsub {
			unsubscribe()
		}
		s.unsub = nil
		s.mu.Unlock()
		s.Cache.Close()
		s.Elapsed.Close()
	})
}

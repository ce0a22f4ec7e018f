package mutation

import (
	"context"
	"sync"

	"github.com/openziti/storelab/kernel/cache"
	"github.com/openziti/storelab/kernel/model"
	"github.com/openziti/storelab/kernel/transport"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/sirupsen/logrus"
)

// CreateForm is the pending input of the create intent. It survives a failed
// create and is reset by a successful one.
type CreateForm struct {
	Name  string
	Type  model.StoreType
	Error string
}

func defaultForm() CreateForm {
	return CreateForm{Type: model.TypeWooCommerce}
}

// Coordinator executes mutations against the transport and invalidates the
// cache when they succeed.
type Coordinator struct {
	client  transport.Client
	cache   *cache.Cache
	deletes cmap.ConcurrentMap[string, *Mutation]

	mu     sync.Mutex
	form   CreateForm
	create *Mutation

	wg  sync.WaitGroup
	log *logrus.Entry
}

func NewCoordinator(client transport.Client, c *cache.Cache) *Coordinator {
	return &Coordinator{
		client:  client,
		cache:   c,
		deletes: cmap.New[*Mutation](),
		form:    defaultForm(),
		log:     logrus.WithField("component", "mutation"),
	}
}

func (c *Coordinator) Form() CreateForm {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form
}

// SetForm stores the form input; the name is normalized as typed.
func (c *Coordinator) SetForm(name string, storeType model.StoreType) CreateForm {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form.Name = model.NormalizeStoreName(name)
	if storeType != "" {
		c.form.Type = storeType
	}
	return c.form
}

// CreatePending reports whether the latest create is still in flight.
func (c *Coordinator) CreatePending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.create != nil && c.create.State() == StatePending
}

// Create normalizes and validates name and storeType, then dispatches the
// create. Invalid input fails the mutation without a request.
func (c *Coordinator) Create(ctx context.Context, name string, storeType model.StoreType) *Mutation {
	name = model.NormalizeStoreName(name)
	m := newMutation(KindCreate, name)

	c.mu.Lock()
	c.form.Name = name
	c.form.Type = storeType
	c.form.Error = ""
	c.create = m
	c.mu.Unlock()

	m.start()
	if err := model.ValidateStoreName(name); err != nil {
		c.failCreate(m, transport.NewValidationError("create store", err.Error()))
		return m
	}
	if _, err := model.ParseStoreType(string(storeType)); err != nil {
		c.failCreate(m, transport.NewValidationError("create store", err.Error()))
		return m
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		store, err := c.client.CreateStore(ctx, name, storeType)
		if err != nil {
			c.log.WithError(err).Warnf("create of [%s] failed", name)
			c.failCreate(m, err)
			return
		}
		c.log.Infof("created store [%s] (%s)", store.Name, store.Id)

		c.mu.Lock()
		if c.create == m {
			c.form = defaultForm()
		}
		c.mu.Unlock()

		c.invalidate(ctx, cache.CollectionStores, cache.CollectionAuditEvents)
		m.finish(store, nil)
	}()
	return m
}

func (c *Coordinator) failCreate(m *Mutation, err error) {
	c.mu.Lock()
	if c.create == m {
		c.form.Error = transport.Detail(err)
	}
	c.mu.Unlock()
	m.finish(nil, err)
}

// Delete dispatches a delete of id. While a delete of id is pending, further
// calls return that same mutation and send nothing.
func (c *Coordinator) Delete(ctx context.Context, id string) *Mutation {
	candidate := newMutation(KindDelete, id)
	m := c.deletes.Upsert(id, candidate, func(exists bool, inMap *Mutation, newValue *Mutation) *Mutation {
		if exists {
			return inMap
		}
		return newValue
	})
	if m != candidate {
		c.log.Debugf("delete of [%s] already pending", id)
		return m
	}

	m.start()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		// the id stays claimed until the mutation is terminal
		defer c.deletes.RemoveCb(id, func(key string, v *Mutation, exists bool) bool {
			return exists && v == m
		})
		err := c.client.DeleteStore(ctx, id)
		if err != nil {
			c.log.WithError(err).Warnf("delete of [%s] failed", id)
			m.finish(nil, err)
			return
		}
		c.log.Infof("deleted store [%s]", id)
		c.invalidate(ctx, cache.CollectionStores, cache.CollectionAuditEvents)
		m.finish(id, nil)
	}()
	return m
}

// DeleteDisabled is true while a delete of id is pending.
func (c *Coordinator) DeleteDisabled(id string) bool {
	return c.deletes.Has(id)
}

// NewCredentialsView returns a view that consults this coordinator's cached
// stores before fetching.
func (c *Coordinator) NewCredentialsView() *CredentialsView {
	return newCredentialsView(c.client, c.cachedStore, &c.wg)
}

// Wait blocks until every dispatched mutation has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) cachedStore(id string) (model.Store, bool) {
	if c.cache == nil {
		return model.Store{}, false
	}
	snap, found := c.cache.Get(cache.StoresQuery())
	if !found {
		return model.Store{}, false
	}
	stores, ok := cache.Value[[]model.Store](snap)
	if !ok {
		return model.Store{}, false
	}
	return model.FindStore(stores, id)
}

func (c *Coordinator) invalidate(ctx context.Context, collections ...string) {
	if c.cache == nil {
		return
	}
	for _, collection := range collections {
		if err := c.cache.InvalidateCollection(ctx, collection); err != nil {
			c.log.WithError(err).Warnf("unable to refresh [%s]", collection)
		}
	}
}

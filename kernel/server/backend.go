package server

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openziti/storelab/kernel/model"
	"github.com/openziti/storelab/kernel/store"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxStores      = 20
	DefaultHostSuffix     = ".127.0.0.1.nip.io"
	DefaultProvisionDelay = 20 * time.Second

	minNameLength = 3
	maxNameLength = 50
)

var nameRE = regexp.MustCompile(`^[a-z0-9-]+$`)

type Options struct {
	// ProvisionDelay is how long a new store stays PROVISIONING when
	// AutoProvision is set.
	ProvisionDelay time.Duration
	AutoProvision  bool
	MaxStores      int
	HostSuffix     string
}

func DefaultOptions() Options {
	return Options{
		ProvisionDelay: DefaultProvisionDelay,
		AutoProvision:  true,
		MaxStores:      DefaultMaxStores,
		HostSuffix:     DefaultHostSuffix,
	}
}

// requestError carries the HTTP status the handler should answer with.
type requestError struct {
	status int
	detail string
}

func (e *requestError) Error() string {
	return fmt.Sprintf("%d: %s", e.status, e.detail)
}

func reject(status int, format string, args ...any) error {
	return &requestError{status: status, detail: fmt.Sprintf(format, args...)}
}

// Backend simulates the store orchestrator: records live in an AuditStore and
// provisioning completes on a timer instead of in a cluster.
type Backend struct {
	opts   Options
	state  store.AuditStore
	mu     sync.Mutex
	timers map[string]*time.Timer
	creds  map[string]model.AdminCredentials
	now    func() time.Time
	log    *logrus.Entry
}

func NewBackend(state store.AuditStore, opts Options) *Backend {
	if opts.MaxStores <= 0 {
		opts.MaxStores = DefaultMaxStores
	}
	if opts.HostSuffix == "" {
		opts.HostSuffix = DefaultHostSuffix
	}
	b := &Backend{
		opts:   opts,
		state:  state,
		timers: make(map[string]*time.Timer),
		creds:  make(map[string]model.AdminCredentials),
		now:    func() time.Time { return time.Now().UTC() },
		log:    logrus.WithField("component", "mock-backend"),
	}
	if err := b.resume(); err != nil {
		b.log.WithError(err).Warn("unable to resume persisted stores")
	}
	return b
}

// resume rebuilds in-memory state for stores loaded from a persisted
// AuditStore. Credentials are never persisted, so READY stores get fresh ones.
func (b *Backend) resume() error {
	stores, err := b.state.ListStores()
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	for _, st := range stores {
		switch st.Status {
		case model.StatusReady:
			if st.Platform().SupportsAdminCredentials() {
				b.creds[st.Id] = newCredentials(st)
			}
		case model.StatusProvisioning:
			if b.opts.AutoProvision {
				remaining := b.opts.ProvisionDelay - now.Sub(st.CreatedAt.Time)
				if remaining < 0 {
					remaining = 0
				}
				b.armProvisioning(st.Id, remaining)
				b.log.Debugf("resumed provisioning of [%s], ready in %v", st.Name, remaining)
			}
		}
	}
	return nil
}

// armProvisioning must be called with b.mu held.
func (b *Backend) armProvisioning(id string, delay time.Duration) {
	b.timers[id] = time.AfterFunc(delay, func() {
		if err := b.MarkReady(id); err != nil {
			b.log.WithError(err).Warnf("provisioning of [%s] did not complete", id)
		}
	})
}

func newCredentials(st model.Store) model.AdminCredentials {
	return model.AdminCredentials{
		StoreUrl:      st.Url,
		AdminUrl:      st.AdminURL(),
		AdminUser:     "admin",
		AdminPassword: strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
		AdminEmail:    "admin@" + st.Name + ".local",
	}
}

func (b *Backend) ListStores() ([]model.Store, error) {
	return b.state.ListStores()
}

func (b *Backend) GetStore(id string) (*model.Store, error) {
	st, err := b.state.GetStore(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, reject(404, "Store not found")
	}
	return st, err
}

func (b *Backend) CreateStore(name string, storeType model.StoreType) (*model.Store, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if len(name) < minNameLength || len(name) > maxNameLength {
		return nil, reject(422, "name must be between %d and %d characters", minNameLength, maxNameLength)
	}
	if !nameRE.MatchString(name) {
		return nil, reject(422, "name may only contain lowercase letters, digits and '-'")
	}
	if _, err := model.GetPlatform(storeType); err != nil {
		return nil, reject(422, "unsupported store type '%s'", storeType)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	stores, err := b.state.ListStores()
	if err != nil {
		return nil, err
	}
	if len(stores) >= b.opts.MaxStores {
		return nil, reject(400, "Store limit reached")
	}
	if _, err := b.state.GetStoreByName(name); err == nil {
		return nil, reject(409, "Store with name '%s' already exists", name)
	}

	id := uuid.NewString()
	st := model.Store{
		Id:        id,
		Name:      name,
		Type:      storeType,
		Status:    model.StatusProvisioning,
		Namespace: fmt.Sprintf("store-%s-%s", name, id[:8]),
		CreatedAt: model.NewTimestamp(b.now()),
	}
	if err := b.state.SaveStore(st); err != nil {
		return nil, err
	}
	if err := b.audit(st, model.ActionStoreCreated, ""); err != nil {
		return nil, err
	}
	b.log.Infof("created store [%s] (%s)", st.Name, st.Type)

	if b.opts.AutoProvision {
		b.armProvisioning(id, b.opts.ProvisionDelay)
	}
	return &st, nil
}

// MarkReady finishes provisioning of a PROVISIONING store.
func (b *Backend) MarkReady(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.timers, id)
	st, err := b.state.GetStore(id)
	if err != nil {
		return err
	}
	if st.Status != model.StatusProvisioning {
		return errors.Errorf("store [%s] is %s, not %s", st.Name, st.Status, model.StatusProvisioning)
	}
	st.Status = model.StatusReady
	st.Url = "http://" + st.Namespace + b.opts.HostSuffix
	if err := b.state.SaveStore(*st); err != nil {
		return err
	}
	if st.Platform().SupportsAdminCredentials() {
		b.creds[id] = newCredentials(*st)
	}
	b.log.Infof("store [%s] is ready at %s", st.Name, st.Url)
	return b.audit(*st, model.ActionProvisionReady, "")
}

// MarkFailed ends provisioning of a PROVISIONING store with an error.
func (b *Backend) MarkFailed(id, message string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, found := b.timers[id]; found {
		t.Stop()
		delete(b.timers, id)
	}
	st, err := b.state.GetStore(id)
	if err != nil {
		return err
	}
	st.Status = model.StatusFailed
	st.StatusMessage = message
	if err := b.state.SaveStore(*st); err != nil {
		return err
	}
	return b.audit(*st, model.ActionProvisionFailed, message)
}

func (b *Backend) DeleteStore(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, err := b.state.GetStore(id)
	if errors.Is(err, store.ErrNotFound) {
		return reject(404, "Store not found")
	}
	if err != nil {
		return err
	}
	if t, found := b.timers[id]; found {
		t.Stop()
		delete(b.timers, id)
	}

	st.Status = model.StatusDeleting
	if err := b.state.SaveStore(*st); err != nil {
		return err
	}
	if err := b.state.DeleteStore(id); err != nil {
		return err
	}
	delete(b.creds, id)
	b.log.Infof("deleted store [%s]", st.Name)
	return b.audit(*st, model.ActionStoreDeleted, "")
}

func (b *Backend) GetAdminCredentials(id string) (*model.AdminCredentials, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, err := b.state.GetStore(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, reject(404, "Store not found")
	}
	if err != nil {
		return nil, err
	}
	if !st.Platform().SupportsAdminCredentials() {
		return nil, reject(400, "Admin credentials are only available for WooCommerce stores")
	}
	creds, found := b.creds[id]
	if st.Status != model.StatusReady || !found {
		return nil, reject(409, "Store is not ready")
	}
	return &creds, nil
}

func (b *Backend) ListAuditEvents(limit int) ([]model.AuditEvent, error) {
	return b.state.ListEvents(limit)
}

// Close stops pending provisioning timers.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
}

func (b *Backend) audit(st model.Store, action model.AuditAction, message string) error {
	return b.state.AppendEvent(model.AuditEvent{
		Id:        uuid.NewString(),
		StoreId:   st.Id,
		StoreName: st.Name,
		Action:    action,
		Message:   message,
		CreatedAt: model.NewTimestamp(b.now()),
	})
}

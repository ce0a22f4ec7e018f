package mutation

import (
	"context"
	"sync"

	"github.com/openziti/storelab/kernel/model"
	"github.com/openziti/storelab/kernel/transport"
)

type CredentialsState int

const (
	CredentialsClosed CredentialsState = iota
	CredentialsLoading
	CredentialsLoaded
	CredentialsFailed
)

func (s CredentialsState) String() string {
	switch s {
	case CredentialsLoading:
		return "loading"
	case CredentialsLoaded:
		return "loaded"
	case CredentialsFailed:
		return "failed"
	default:
		return "closed"
	}
}

// CredentialsSnapshot is a copy of the view's state.
type CredentialsSnapshot struct {
	StoreId     string
	State       CredentialsState
	Credentials *model.AdminCredentials
	Err         error
}

// CredentialsView holds the admin credentials of at most one store. Each Open
// fetches afresh; responses for an earlier Open are dropped.
type CredentialsView struct {
	client transport.Client
	lookup func(id string) (model.Store, bool)
	wg     *sync.WaitGroup

	mu      sync.Mutex
	gen     uint64
	storeId string
	state   CredentialsState
	creds   *model.AdminCredentials
	err     error
}

func newCredentialsView(client transport.Client, lookup func(string) (model.Store, bool), wg *sync.WaitGroup) *CredentialsView {
	return &CredentialsView{client: client, lookup: lookup, wg: wg}
}

// Open clears anything held and fetches credentials for id.
func (v *CredentialsView) Open(ctx context.Context, id string) *Mutation {
	m := newMutation(KindCredentials, id)

	v.mu.Lock()
	v.gen++
	gen := v.gen
	v.clearUnsafe()
	v.storeId = id
	v.state = CredentialsLoading
	v.mu.Unlock()

	m.start()
	if err := v.precheck(id); err != nil {
		v.apply(gen, nil, err)
		m.finish(nil, err)
		return m
	}

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		creds, err := v.client.GetAdminCredentials(ctx, id)
		if !v.apply(gen, creds, err) && creds != nil {
			creds.Zero()
		}
		if err != nil {
			m.finish(nil, err)
			return
		}
		// the mutation reports success without carrying the secret
		m.finish(id, nil)
	}()
	return m
}

// Close discards held credentials.
func (v *CredentialsView) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gen++
	v.clearUnsafe()
	v.storeId = ""
	v.state = CredentialsClosed
}

func (v *CredentialsView) Current() CredentialsSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	snap := CredentialsSnapshot{StoreId: v.storeId, State: v.state, Err: v.err}
	if v.creds != nil {
		c := *v.creds
		snap.Credentials = &c
	}
	return snap
}

func (v *CredentialsView) precheck(id string) error {
	if v.lookup == nil {
		return nil
	}
	store, found := v.lookup(id)
	if !found {
		return nil
	}
	if !store.Platform().SupportsAdminCredentials() {
		return transport.NewNotReadyError("get admin credentials", "Admin credentials are not available for "+store.Platform().Label()+" stores")
	}
	if store.Status != model.StatusReady {
		return transport.NewNotReadyError("get admin credentials", "Store is "+string(store.Status)+", credentials are available once it is READY")
	}
	return nil
}

// apply installs a result if gen is still current.
func (v *CredentialsView) apply(gen uint64, creds *model.AdminCredentials, err error) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		return false
	}
	if err != nil {
		v.state = CredentialsFailed
		v.err = err
		return true
	}
	v.state = CredentialsLoaded
	v.creds = creds
	return true
}

func (v *CredentialsView) clearUnsafe() {
	if v.creds != nil {
		v.creds.Zero()
		v.creds = nil
	}
	v.err = nil
}

package mutation

import (
	"context"
	"fmt"
	"sync"

	"github.com/openziti/storelab/kernel/transport"
)

type Kind string

const (
	KindCreate      Kind = "create"
	KindDelete      Kind = "delete"
	KindCredentials Kind = "credentials"
)

type State int

const (
	StateIdle State = iota
	StatePending
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Mutation is one user-initiated operation. It moves idle -> pending ->
// succeeded|failed exactly once.
type Mutation struct {
	Kind   Kind
	Target string

	mu     sync.Mutex
	state  State
	err    error
	result any
	done   chan struct{}
}

func newMutation(kind Kind, target string) *Mutation {
	return &Mutation{Kind: kind, Target: target, done: make(chan struct{})}
}

func (m *Mutation) String() string {
	return fmt.Sprintf("%s[%s] %s", m.Kind, m.Target, m.State())
}

func (m *Mutation) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Mutation) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Detail is the display string of the failure, empty unless failed.
func (m *Mutation) Detail() string {
	return transport.Detail(m.Err())
}

func (m *Mutation) Result() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.result
}

// Done is closed when the mutation reaches a terminal state.
func (m *Mutation) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until the mutation finishes and returns its error.
func (m *Mutation) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return m.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mutation) start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateIdle {
		m.state = StatePending
	}
}

func (m *Mutation) finish(result any, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateSucceeded || m.state == StateFailed {
		return
	}
	if err != nil {
		m.state = StateFailed
		m.err = err
	} else {
		m.state = StateSucceeded
		m.result = result
	}
	close(m.done)
}

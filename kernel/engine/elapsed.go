package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/openziti/storelab/kernel/model"
	"github.com/sirupsen/logrus"
)

const DefaultTickInterval = time.Second

// FormatElapsed renders d as "<m>m <s>s"; minutes are not rolled into hours.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%dm %ds", total/60, total%60)
}

// ElapsedUpdate is published on every tick of a timer and when it stops.
type ElapsedUpdate struct {
	StoreId string
	Elapsed time.Duration
	// Active is false for the final update of a stopped timer.
	Active bool
}

type elapsedTimer struct {
	storeId   string
	createdAt model.Timestamp
	elapsed   time.Duration
	ticker    Ticker
	stop      chan struct{}
}

// ElapsedTracker keeps one ticking timer per PROVISIONING store. The timer
// set follows the stores snapshots passed to Reconcile.
type ElapsedTracker struct {
	clock    Clock
	interval time.Duration

	mu        sync.Mutex
	timers    map[string]*elapsedTimer
	listeners map[uint64]func(ElapsedUpdate)
	nextId    uint64
	closed    bool

	wg  sync.WaitGroup
	log *logrus.Entry
}

func NewElapsedTracker(clock Clock) *ElapsedTracker {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ElapsedTracker{
		clock:     clock,
		interval:  DefaultTickInterval,
		timers:    make(map[string]*elapsedTimer),
		listeners: make(map[uint64]func(ElapsedUpdate)),
		log:       logrus.WithField("component", "elapsed"),
	}
}

// Reconcile starts timers for stores newly in PROVISIONING and stops timers of
// stores that left it or disappeared.
func (t *ElapsedTracker) Reconcile(stores []model.Store) Diff {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return Diff{}
	}

	running := make(map[string]model.Timestamp, len(t.timers))
	for id, tm := range t.timers {
		running[id] = tm.createdAt
	}
	diff := ComputeDiff(stores, running)

	var stopped []*elapsedTimer
	for _, id := range diff.ToDelete {
		stopped = append(stopped, t.timers[id])
		delete(t.timers, id)
	}
	// a restarted timer never shows less than its predecessor
	carried := make(map[string]time.Duration, len(diff.ToUpdate))
	for _, s := range diff.ToUpdate {
		old := t.timers[s.Id]
		carried[s.Id] = old.elapsed
		stopped = append(stopped, old)
		delete(t.timers, s.Id)
	}

	var started []ElapsedUpdate
	now := t.clock.Now()
	for _, s := range append(append([]model.Store(nil), diff.ToCreate...), diff.ToUpdate...) {
		tm := &elapsedTimer{
			storeId:   s.Id,
			createdAt: s.CreatedAt,
			elapsed:   sinceClamped(now, s.CreatedAt),
			ticker:    t.clock.NewTicker(t.interval),
			stop:      make(chan struct{}),
		}
		if prev := carried[s.Id]; prev > tm.elapsed {
			tm.elapsed = prev
		}
		t.timers[s.Id] = tm
		started = append(started, ElapsedUpdate{StoreId: s.Id, Elapsed: tm.elapsed, Active: true})
		t.wg.Add(1)
		go t.run(tm)
	}
	listeners := t.listenersUnsafe()
	t.mu.Unlock()

	for _, tm := range stopped {
		t.stopTimer(tm)
	}
	if !diff.Empty() {
		t.log.Debugf("timers: +%d -%d ~%d", len(diff.ToCreate), len(diff.ToDelete), len(diff.ToUpdate))
	}

	for _, u := range started {
		publish(listeners, u)
	}
	for _, id := range diff.ToDelete {
		publish(listeners, ElapsedUpdate{StoreId: id})
	}
	return diff
}

// Elapsed returns the current value of the store's timer.
func (t *ElapsedTracker) Elapsed(storeId string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tm, found := t.timers[storeId]
	if !found {
		return 0, false
	}
	return tm.elapsed, true
}

// Display is Elapsed formatted, or "" without a running timer.
func (t *ElapsedTracker) Display(storeId string) string {
	d, found := t.Elapsed(storeId)
	if !found {
		return ""
	}
	return FormatElapsed(d)
}

func (t *ElapsedTracker) Snapshot() map[string]time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	result := make(map[string]time.Duration, len(t.timers))
	for id, tm := range t.timers {
		result[id] = tm.elapsed
	}
	return result
}

// Active lists the store ids with running timers, sorted.
func (t *ElapsedTracker) Active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.timers))
	for id := range t.timers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Subscribe registers fn for timer updates. fn runs on timer goroutines.
func (t *ElapsedTracker) Subscribe(fn func(ElapsedUpdate)) func() {
	t.mu.Lock()
	id := t.nextId
	t.nextId++
	t.listeners[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

// Close stops every timer and waits for their goroutines.
func (t *ElapsedTracker) Close() {
	t.mu.Lock()
	t.closed = true
	timers := make([]*elapsedTimer, 0, len(t.timers))
	for id, tm := range t.timers {
		timers = append(timers, tm)
		delete(t.timers, id)
	}
	t.mu.Unlock()

	for _, tm := range timers {
		t.stopTimer(tm)
	}
	t.wg.Wait()
}

func (t *ElapsedTracker) run(tm *elapsedTimer) {
	defer t.wg.Done()
	for {
		select {
		case <-tm.stop:
			return
		case <-tm.ticker.Chan():
			t.update(tm)
		}
	}
}

func (t *ElapsedTracker) update(tm *elapsedTimer) {
	now := t.clock.Now()

	t.mu.Lock()
	if t.timers[tm.storeId] != tm {
		t.mu.Unlock()
		return
	}
	if d := sinceClamped(now, tm.createdAt); d > tm.elapsed {
		tm.elapsed = d
	}
	u := ElapsedUpdate{StoreId: tm.storeId, Elapsed: tm.elapsed, Active: true}
	listeners := t.listenersUnsafe()
	t.mu.Unlock()

	publish(listeners, u)
}

func (t *ElapsedTracker) stopTimer(tm *elapsedTimer) {
	tm.ticker.Stop()
	close(tm.stop)
}

func (t *ElapsedTracker) listenersUnsafe() []func(ElapsedUpdate) {
	ids := make([]uint64, 0, len(t.listeners))
	for id := range t.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	result := make([]func(ElapsedUpdate), 0, len(ids))
	for _, id := range ids {
		result = append(result, t.listeners[id])
	}
	return result
}

func publish(listeners []func(ElapsedUpdate), u ElapsedUpdate) {
	for _, l := range listeners {
		l(u)
	}
}

func sinceClamped(now time.Time, createdAt model.Timestamp) time.Duration {
	if createdAt.IsZero() {
		return 0
	}
	d := now.Sub(createdAt.Time)
	if d < 0 {
		return 0
	}
	return d
}

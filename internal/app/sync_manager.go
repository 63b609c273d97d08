package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"fitsync/internal/conflict"
	"fitsync/internal/domain"
	"fitsync/internal/feed"
	"fitsync/internal/queue"
)

// ErrOffline is returned by SyncAll while the manager is offline.
var ErrOffline = errors.New("offline")

// Defaults for SyncOptions.
const (
	DefaultDebounce    = 500 * time.Millisecond
	DefaultInterval    = 5 * time.Minute
	DefaultBaseDelay   = time.Second
	DefaultMaxRetries  = 3
	DefaultCallTimeout = 15 * time.Second
)

// Resolver merges a locally pending record with its remote version.
type Resolver interface {
	Resolve(local, remote domain.Record) domain.Record
}

// DrainLock guards queue drains across processes sharing one local store.
type DrainLock interface {
	TryLock() (bool, error)
	Unlock() error
}

// SyncOptions tunes a SyncManager. Zero values take the defaults.
type SyncOptions struct {
	Debounce    time.Duration
	Interval    time.Duration
	BaseDelay   time.Duration
	MaxRetries  int
	CallTimeout time.Duration

	// Session tags every outbound write. A random UUID is used when empty.
	Session  string
	Resolver Resolver
	Lock     DrainLock
	Logger   *slog.Logger

	// Sleep waits between retries. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

func (o *SyncOptions) setDefaults() {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	if o.Session == "" {
		o.Session = uuid.NewString()
	}
	if o.Resolver == nil {
		o.Resolver = conflict.Resolver{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Sleep == nil {
		o.Sleep = sleepContext
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SyncManager coordinates the local cache, the change queue, the remote store
// and the change feed. It is the only writer of SyncState.
type SyncManager struct {
	cache  domain.LocalCache
	queue  *queue.Queue
	remote domain.RemoteStore
	feed   *feed.Adapter
	opts   SyncOptions
	log    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	mu        sync.Mutex
	state     domain.SyncState
	backlog   []domain.SyncState
	owner     string
	listeners map[int]func(domain.SyncState)
	nextID    int
	debounce  *time.Timer
	started   bool
	destroyed bool

	// notifyMu serializes listener delivery; states leave the backlog in the
	// order they were produced.
	notifyMu sync.Mutex

	// reconcileMu makes each read-modify-write of a cached record atomic with
	// respect to other sync activity.
	reconcileMu sync.Mutex

	processing atomic.Bool
	syncing    atomic.Bool
}

// NewSyncManager creates a manager. transport may be nil to run without a
// change feed. The manager starts offline; call Start and then SetOnline.
func NewSyncManager(cache domain.LocalCache, store domain.QueueStore, remote domain.RemoteStore, transport feed.Transport, opts SyncOptions) *SyncManager {
	opts.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	m := &SyncManager{
		cache:     cache,
		queue:     queue.New(store),
		remote:    remote,
		opts:      opts,
		log:       opts.Logger.With("component", "sync", "session", opts.Session),
		ctx:       ctx,
		cancel:    cancel,
		state:     domain.SyncState{Status: domain.StateOffline},
		listeners: make(map[int]func(domain.SyncState)),
	}
	if transport != nil {
		m.feed = feed.NewAdapter(transport, opts.Session, m, m.onFeedState, opts.Logger)
	}
	return m
}

// Session returns the origin tag this manager stamps on outbound writes.
func (m *SyncManager) Session() string {
	return m.opts.Session
}

// Start restores the persisted queue and starts periodic reconciliation.
func (m *SyncManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started || m.destroyed {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.reconcileLoop()

	err := m.queue.LoadAll(ctx)
	if err != nil {
		m.log.Warn("restore change queue", "err", err)
		m.update(func(s *domain.SyncState) { s.LastError = err.Error() })
	}
	m.refreshPending(ctx)
	return err
}

// Destroy stops timers, the feed subscription and background work, and drops
// all listeners. It is safe to call more than once.
func (m *SyncManager) Destroy() {
	m.once.Do(func() {
		m.mu.Lock()
		m.destroyed = true
		if m.debounce != nil {
			m.debounce.Stop()
		}
		m.mu.Unlock()

		m.cancel()
		if m.feed != nil {
			m.feed.Unsubscribe()
		}
		m.wg.Wait()

		m.mu.Lock()
		m.listeners = make(map[int]func(domain.SyncState))
		m.mu.Unlock()
	})
}

// State returns a snapshot of the current sync state.
func (m *SyncManager) State() domain.SyncState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Queued returns the queued changes in delivery order.
func (m *SyncManager) Queued() []domain.QueuedChange {
	return m.queue.Snapshot()
}

// Owner returns the bound owner id.
func (m *SyncManager) Owner() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner
}

// Subscribe registers listener, calls it with the current state, and calls it
// again with every later state, in the order the states were produced, even
// when they are produced concurrently. Listeners run synchronously and must
// not call back into the manager except for State and Owner.
func (m *SyncManager) Subscribe(listener func(domain.SyncState)) (unsubscribe func()) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	// States produced before this call go to the existing listeners only.
	m.mu.Lock()
	states, others := m.takeBacklog()
	id := m.nextID
	m.nextID++
	m.listeners[id] = listener
	snap := m.state
	m.mu.Unlock()

	notifyAll(states, others)
	listener(snap)
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// SetOwner binds the manager to owner and rebinds the feed subscription.
func (m *SyncManager) SetOwner(owner string) {
	m.mu.Lock()
	if owner == m.owner || m.destroyed {
		m.mu.Unlock()
		return
	}
	m.owner = owner
	online := m.state.IsOnline
	m.mu.Unlock()

	m.log.Info("owner bound", "owner", owner)
	m.resubscribe(online)
}

// SetOnline reports a network transition. Going online reloads the queue,
// resubscribes the feed and runs SyncAll; going offline drops the feed.
func (m *SyncManager) SetOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	if m.destroyed || m.state.IsOnline == online {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	if !online {
		m.log.Info("network offline")
		m.mu.Lock()
		if m.debounce != nil {
			m.debounce.Stop()
		}
		m.mu.Unlock()
		m.update(func(s *domain.SyncState) {
			s.IsOnline = false
			s.Status = domain.StateOffline
			s.FeedConnected = false
		})
		if m.feed != nil {
			m.feed.Unsubscribe()
		}
		return
	}

	m.log.Info("network online")
	m.update(func(s *domain.SyncState) {
		s.IsOnline = true
		s.Status = domain.StateIdle
	})
	if err := m.queue.LoadAll(ctx); err != nil {
		m.log.Warn("reload change queue", "err", err)
		m.update(func(s *domain.SyncState) { s.LastError = err.Error() })
	}
	m.resubscribe(true)
	_ = m.SyncAll(ctx)
}

// QueueChange records a local mutation for delivery to the remote store and,
// when online, schedules a debounced drain. Failures surface through the
// sync state.
func (m *SyncManager) QueueChange(op domain.Operation, rec domain.Record) {
	ctx := m.ctx
	if !op.Valid() || !rec.Kind().Valid() || rec.ID == "" {
		err := fmt.Errorf("invalid change: %s %q %q", op, rec.Kind(), rec.ID)
		m.log.Error("queue change rejected", "err", err)
		m.update(func(s *domain.SyncState) { s.LastError = err.Error() })
		return
	}
	if rec.Owner == "" {
		rec.Owner = m.Owner()
	}
	rec.Origin = m.opts.Session
	rec.SyncStatus = domain.StatusPending
	if op == domain.OpDelete {
		rec.IsDeleted = true
	}

	change := domain.QueuedChange{
		ID:         uuid.NewString(),
		Kind:       rec.Kind(),
		Op:         op,
		Record:     rec,
		EnqueuedAt: m.opts.Now().UTC(),
	}
	if err := m.queue.Append(ctx, change); err != nil {
		m.log.Warn("change kept in memory only", "change", change.ID, "err", err)
		m.update(func(s *domain.SyncState) { s.LastError = err.Error() })
	}
	m.refreshPending(ctx)

	if m.State().IsOnline {
		m.scheduleDrain()
	}
}

// SyncAll drains the queue, pushes pending records that have no queued
// change, then pulls the owner's records from the remote store. The first
// failing step ends the pass; the error is recorded in the state and returned.
func (m *SyncManager) SyncAll(ctx context.Context) error {
	if !m.State().IsOnline {
		return ErrOffline
	}
	if !m.syncing.CompareAndSwap(false, true) {
		m.log.Debug("sync pass already running")
		return nil
	}
	defer m.syncing.Store(false)

	m.beginPass()
	err := m.syncPass(ctx)
	m.refreshPending(ctx)
	m.endPass(err, true)
	return err
}

func (m *SyncManager) syncPass(ctx context.Context) error {
	if _, err := m.drain(ctx, nil); err != nil {
		return fmt.Errorf("drain queue: %w", err)
	}
	if err := m.pushUnsynced(ctx); err != nil {
		return fmt.Errorf("push pending records: %w", err)
	}
	if err := m.pull(ctx); err != nil {
		return fmt.Errorf("pull remote records: %w", err)
	}
	return nil
}

func (m *SyncManager) beginPass() {
	m.update(func(s *domain.SyncState) {
		s.IsSyncing = true
		s.Status = domain.StateSyncing
	})
}

// endPass records the outcome of a pass. Only full passes move LastSyncAt.
func (m *SyncManager) endPass(err error, full bool) {
	now := m.opts.Now()
	if err != nil {
		m.log.Warn("sync pass failed", "err", err)
	}
	m.update(func(s *domain.SyncState) {
		s.IsSyncing = false
		switch {
		case !s.IsOnline:
			s.Status = domain.StateOffline
		case err != nil:
			s.Status = domain.StateError
			s.LastError = err.Error()
		default:
			s.Status = domain.StateSuccess
			s.LastError = ""
			if full {
				s.LastSyncAt = &now
			}
		}
	})
}

func (m *SyncManager) scheduleDrain() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return
	}
	if m.debounce != nil {
		m.debounce.Stop()
	}
	m.debounce = time.AfterFunc(m.opts.Debounce, m.debouncedDrain)
}

func (m *SyncManager) debouncedDrain() {
	m.mu.Lock()
	if m.destroyed || !m.state.IsOnline {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()
	defer m.wg.Done()

	if m.processing.Load() {
		m.scheduleDrain()
		return
	}
	ran, err := m.drain(m.ctx, m.beginPass)
	if !ran {
		return
	}
	m.refreshPending(m.ctx)
	m.endPass(err, false)
}

func (m *SyncManager) reconcileLoop() {
	defer m.wg.Done()
	t := time.NewTicker(m.opts.Interval)
	defer t.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-t.C:
			if !m.State().IsOnline {
				continue
			}
			if m.feed != nil && !m.feed.Connected() {
				m.resubscribe(true)
			}
			_ = m.SyncAll(m.ctx)
		}
	}
}

func (m *SyncManager) resubscribe(online bool) {
	if m.feed == nil {
		return
	}
	owner := m.Owner()
	if !online || owner == "" {
		m.feed.Unsubscribe()
		return
	}
	m.feed.Subscribe(owner)
}

func (m *SyncManager) onFeedState(s feed.State) {
	m.update(func(st *domain.SyncState) {
		st.FeedConnected = s == feed.StateSubscribed && st.IsOnline
	})
}

// refreshPending recomputes PendingCount as queued changes plus pending cache
// records that have no queued change.
func (m *SyncManager) refreshPending(ctx context.Context) {
	keys := m.queue.Keys()
	count := m.queue.Len()
	unsynced, err := m.cache.UnsyncedRecords(ctx)
	if err != nil {
		m.log.Warn("count unsynced records", "err", err)
	}
	for _, r := range unsynced {
		if _, queued := keys[r.Key()]; !queued {
			count++
		}
	}
	m.update(func(s *domain.SyncState) { s.PendingCount = count })
}

// update applies fn to the state and notifies listeners if it changed.
func (m *SyncManager) update(fn func(*domain.SyncState)) {
	m.mu.Lock()
	before := m.state
	fn(&m.state)
	if sameState(before, m.state) {
		m.mu.Unlock()
		return
	}
	m.backlog = append(m.backlog, m.state)
	m.mu.Unlock()

	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	m.mu.Lock()
	states, listeners := m.takeBacklog()
	m.mu.Unlock()
	notifyAll(states, listeners)
}

// takeBacklog empties the backlog and copies the listeners. m.mu must be held.
func (m *SyncManager) takeBacklog() ([]domain.SyncState, []func(domain.SyncState)) {
	states := m.backlog
	m.backlog = nil
	listeners := make([]func(domain.SyncState), 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	return states, listeners
}

func notifyAll(states []domain.SyncState, listeners []func(domain.SyncState)) {
	for _, s := range states {
		for _, l := range listeners {
			l(s)
		}
	}
}

func sameState(a, b domain.SyncState) bool {
	if (a.LastSyncAt == nil) != (b.LastSyncAt == nil) {
		return false
	}
	if a.LastSyncAt != nil && !a.LastSyncAt.Equal(*b.LastSyncAt) {
		return false
	}
	a.LastSyncAt, b.LastSyncAt = nil, nil
	return a == b
}

// Package reslock provides in-process keyed mutual exclusion with lease
// semantics. A lock is held at most for its TTL; a holder that goes away
// without releasing (cancelled context, dead request) is detected and its
// entry removed proactively instead of waiting out the lease.
package reslock

import (
	"context"
	"sync"
	"time"

	infraerrors "github.com/bookwell/bookwell/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/collection"
)

const (
	// DefaultTTL bounds how long a wedged (alive but stuck) holder can keep
	// a lock before racing acquirers may reclaim it.
	DefaultTTL = 90 * time.Second

	// sweepInterval drives the background eviction of long-stale entries.
	// Correctness never depends on the sweep; staleness is re-judged on
	// every acquire.
	sweepInterval = 30 * time.Second

	sweepTimerKey = "reslock_sweep"
)

var (
	// ErrLockHeld is returned by Acquire when a live lease exists for the
	// key. Contention is an expected outcome, not a failure.
	ErrLockHeld = infraerrors.Conflict("RESOURCE_LOCK_HELD", "resource is locked by another worker")

	ErrKeyInvalid = infraerrors.BadRequest("RESOURCE_LOCK_KEY_INVALID", "lock key namespace and resource are required")
	ErrTTLInvalid = infraerrors.BadRequest("RESOURCE_LOCK_TTL_INVALID", "lock ttl must be positive")
)

// Key identifies a lockable resource, e.g. (provider kind, integration id).
type Key struct {
	Namespace string
	Resource  string
}

func (k Key) String() string {
	return k.Namespace + ":" + k.Resource
}

func (k Key) valid() bool {
	return k.Namespace != "" && k.Resource != ""
}

// entry is a single lease. acquiredAt carries Go's monotonic clock reading,
// so wall-clock adjustments cannot flip the expiry judgment.
type entry struct {
	token      string
	acquiredAt time.Time
	ttl        time.Duration
	holderDone <-chan struct{}
	watchStop  chan struct{}
}

func (e *entry) stale(now time.Time) bool {
	if now.Sub(e.acquiredAt) >= e.ttl {
		return true
	}
	if e.holderDone != nil {
		select {
		case <-e.holderDone:
			return true
		default:
		}
	}
	return false
}

// Manager is the process-wide lock table. All table mutation happens under
// one mutex, so the staleness check and the install of a replacement entry
// are a single atomic step.
type Manager struct {
	mu      sync.Mutex
	entries map[Key]*entry

	tw       *collection.TimingWheel
	stopOnce sync.Once
}

// NewManager creates a lock table and starts its background sweep.
func NewManager() (*Manager, error) {
	m := &Manager{entries: make(map[Key]*entry)}
	tw, err := collection.NewTimingWheel(time.Second, 300, func(_, value any) {
		if fn, ok := value.(func()); ok {
			fn()
		}
	})
	if err != nil {
		return nil, err
	}
	m.tw = tw
	m.scheduleSweep()
	return m, nil
}

// Stop stops the background sweep. Outstanding leases stay valid and are
// still reclaimed lazily on acquire.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.tw.Stop()
	})
}

// Acquire attempts to take the lease for key. It never blocks: either the
// lease is granted immediately (no entry, or only a stale one, existed) or
// ErrLockHeld is returned. ctx identifies the holder; if it is cancelled
// before Release, the entry is removed proactively.
func (m *Manager) Acquire(ctx context.Context, key Key, ttl time.Duration) (*Lease, error) {
	if !key.valid() {
		return nil, ErrKeyInvalid
	}
	if ttl <= 0 {
		return nil, ErrTTLInvalid
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now()
	e := &entry{
		token:      uuid.NewString(),
		acquiredAt: now,
		ttl:        ttl,
		holderDone: ctx.Done(),
		watchStop:  make(chan struct{}),
	}

	m.mu.Lock()
	if prev, ok := m.entries[key]; ok {
		if !prev.stale(now) {
			m.mu.Unlock()
			return nil, ErrLockHeld
		}
		// Stale holder: reclaim inside the same critical section so two
		// racing acquirers cannot both install an entry.
		m.removeLocked(key, prev)
	}
	m.entries[key] = e
	m.mu.Unlock()

	go m.watch(key, e)

	return &Lease{m: m, key: key, token: e.token}, nil
}

// watch removes the entry as soon as the holder goes away. The subscription
// ends on normal release so watchers do not accumulate.
func (m *Manager) watch(key Key, e *entry) {
	select {
	case <-e.holderDone:
		m.release(key, e.token)
	case <-e.watchStop:
	}
}

// WithLock runs fn while holding the lease for key, releasing on every exit
// path including panic. The result of fn passes through unmodified; only the
// decision to run fn at all belongs to the lock table.
func (m *Manager) WithLock(ctx context.Context, key Key, ttl time.Duration, fn func(ctx context.Context) error) error {
	holderCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	lease, err := m.Acquire(holderCtx, key, ttl)
	if err != nil {
		return err
	}
	defer lease.Release()

	return fn(holderCtx)
}

// Held reports whether a live lease currently exists for key.
func (m *Manager) Held(key Key) bool {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return ok && !e.stale(now)
}

func (m *Manager) release(key Key, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || e.token != token {
		// Already released, or the key was reclaimed by a newer holder.
		return
	}
	m.removeLocked(key, e)
}

// removeLocked must run with m.mu held. An entry leaves the table exactly
// once, so closing watchStop here is safe.
func (m *Manager) removeLocked(key Key, e *entry) {
	delete(m.entries, key)
	close(e.watchStop)
}

func (m *Manager) scheduleSweep() {
	_ = m.tw.SetTimer(sweepTimerKey, func() {
		m.sweep(time.Now())
		m.scheduleSweep()
	}, sweepInterval)
}

func (m *Manager) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.entries {
		if e.stale(now) {
			m.removeLocked(key, e)
		}
	}
}

// Lease is a granted lock. Release is idempotent and only removes the entry
// if this lease is still the current holder.
type Lease struct {
	m     *Manager
	key   Key
	token string
}

func (l *Lease) Key() Key {
	return l.key
}

func (l *Lease) Release() {
	l.m.release(l.key, l.token)
}

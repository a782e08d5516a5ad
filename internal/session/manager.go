// Package session implements the HTTP session manager (§4.8): stateless
// vs. stateful session modes, TTL pruning, capacity eviction, and the
// mutually-exclusive session table the transports dispatch against.
package session

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/scholarmcp/server/internal/domain"
	"github.com/scholarmcp/server/internal/observability"
)

// Mode selects whether the manager binds requests to long-lived sessions.
type Mode string

const (
	ModeStateless Mode = "stateless"
	ModeStateful  Mode = "stateful"
)

// CloseFunc tears down whatever transport-level resources a session owns.
type CloseFunc func()

// Config tunes the session table's capacity and TTL.
type Config struct {
	Mode        Mode
	TTL         time.Duration
	MaxSessions int
}

// entry pairs a SessionRuntime with its transport close handle. The close
// handle is invoked at most once, on eviction, TTL expiry, or shutdown; an
// explicit Close leaves closing the transport to its caller.
type entry struct {
	runtime *domain.SessionRuntime
	close   CloseFunc
}

// Manager owns the session table exclusively; every compound operation
// (create, lookup+touch, delete) holds mu for its whole duration so no
// caller ever observes a partially mutated entry.
type Manager struct {
	mu      sync.Mutex
	cfg     Config
	table   *lru.LRU[string, *entry]
	log     zerolog.Logger
	metrics *observability.Metrics
}

// New builds a Manager. A zero MaxSessions disables capacity eviction by
// sizing the underlying LRU unbounded-in-practice; callers should always
// supply a positive value per spec.md's config surface.
func New(cfg Config, metrics *observability.Metrics, log zerolog.Logger) *Manager {
	maxSessions := cfg.MaxSessions
	if maxSessions <= 0 {
		maxSessions = 0
	}
	m := &Manager{cfg: cfg, log: log, metrics: metrics}
	m.table = lru.NewLRU[string, *entry](maxSessions, m.onEvict, cfg.TTL)
	return m
}

// onEvict is invoked by the underlying LRU on capacity or TTL eviction and
// on Remove and Purge. It must not reacquire mu: golang-lru invokes eviction
// callbacks while holding its own internal lock, and Create, Close and
// Shutdown call into the LRU with mu already held.
func (m *Manager) onEvict(id string, e *entry) {
	if e.close != nil {
		e.close()
	}
	if m.metrics != nil {
		m.metrics.RecordSessionRemoved("evicted")
	}
	m.log.Debug().Str("sessionId", id).Msg("session evicted")
}

// IsStateful reports whether the manager is running in stateful mode.
func (m *Manager) IsStateful() bool { return m.cfg.Mode == ModeStateful }

// Create allocates a new session, evicting the least-recently-seen session
// first if the table is at capacity. Capacity eviction happens implicitly
// inside the LRU's Add call.
func (m *Manager) Create(id string, closeFn CloseFunc) *domain.SessionRuntime {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	rt := &domain.SessionRuntime{ID: id, CreatedAt: now, LastSeenAt: now}
	m.table.Add(id, &entry{runtime: rt, close: closeFn})
	if m.metrics != nil {
		m.metrics.RecordSessionCreated()
	}
	return rt
}

// Touch looks up a session by id and, if found and not TTL-expired,
// refreshes its lastSeenAt and returns it. Get on the underlying LRU hides
// TTL-expired entries and refreshes recency but not the TTL deadline, so the
// entry is re-added to restart its TTL; re-adding an existing key invokes no
// eviction callback.
func (m *Manager) Touch(id string) (*domain.SessionRuntime, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.table.Get(id)
	if !ok {
		return nil, false
	}
	e.runtime.LastSeenAt = time.Now()
	m.table.Add(id, e)
	return e.runtime, true
}

// Close removes a session from the table without invoking its transport
// close handle again — the caller (a client-initiated close) is
// responsible for closing the transport itself.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.table.Peek(id)
	if !ok {
		return false
	}
	// Remove fires onEvict, which records the removal; clearing the handle
	// first keeps it from closing the transport a second time.
	e.close = nil
	m.table.Remove(id)
	return true
}

// Prune is the TTL pass the HTTP transport runs before each stateful
// dispatch. It removes nothing itself: Keys already omits entries whose TTL
// has run out, and Get only hides them. An expired session is invisible to
// Touch and Close at once, but it stays in Len's count, and its close handle
// is not invoked, until the LRU's background sweep removes it.
func (m *Manager) Prune() {
	m.mu.Lock()
	keys := m.table.Keys()
	m.mu.Unlock()

	for _, k := range keys {
		m.mu.Lock()
		_, _ = m.table.Get(k) // Get hides a TTL-expired entry; it does not remove it.
		m.mu.Unlock()
	}
}

// Len returns the current open-session count, exposed on the health endpoint.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table.Len()
}

// Shutdown closes every open session's transport and clears the table.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range m.table.Keys() {
		if e, ok := m.table.Peek(k); ok && e.close != nil {
			e.close()
			e.close = nil // Purge's onEvict must not close it again.
		}
	}
	m.table.Purge()
}

package sessions

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"qrstudio/internal/engine/studio"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrCapacity = errors.New("session capacity reached")
)

// BackendFactory builds the rendering backend for a new session.
type BackendFactory func() studio.Backend

type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.Mutex
	lastActive time.Time
	ctrl       *studio.Controller
	surface    *Surface
}

// Do runs fn with the session's controller. Calls on one session are
// serialised, so each event finishes its redraw before the next starts.
func (s *Session) Do(fn func(c *studio.Controller) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = time.Now()
	return fn(s.ctrl)
}

// View returns the controller's current view without running an event.
func (s *Session) View() studio.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.View()
}

// Result is what the host needs after an event: the new view plus the
// surface notifications the event produced.
type Result struct {
	View   studio.View `json:"view"`
	Events []Event     `json:"events,omitempty"`
}

// Dispatch is Do for host events: fn's surface notifications and the
// resulting view are collected under the same lock.
func (s *Session) Dispatch(fn func(c *studio.Controller) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = time.Now()
	err := fn(s.ctrl)
	return Result{View: s.ctrl.View(), Events: s.surface.drain()}, err
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

type Manager struct {
	store      sync.Map // map[id]*Session
	count      atomic.Int64
	ttl        time.Duration
	max        int
	newBackend BackendFactory
}

func NewManager(ttl time.Duration, max int, newBackend BackendFactory) *Manager {
	return &Manager{
		ttl:        ttl,
		max:        max,
		newBackend: newBackend,
	}
}

func (m *Manager) Create() (*Session, error) {
	if n := m.count.Add(1); m.max > 0 && n > int64(m.max) {
		m.count.Add(-1)
		return nil, ErrCapacity
	}

	surface := &Surface{}
	ctrl, err := studio.NewController(m.newBackend(), surface)
	if err != nil {
		m.count.Add(-1)
		return nil, err
	}
	surface.drain()

	now := time.Now()
	s := &Session{
		ID:         uuid.New().String(),
		CreatedAt:  now,
		lastActive: now,
		ctrl:       ctrl,
		surface:    surface,
	}
	m.store.Store(s.ID, s)
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	val, ok := m.store.Load(id)
	if !ok {
		return nil, ErrNotFound
	}

	s := val.(*Session)
	if m.ttl > 0 && time.Since(s.idleSince()) > m.ttl {
		m.Delete(id)
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *Manager) Delete(id string) bool {
	if _, loaded := m.store.LoadAndDelete(id); loaded {
		m.count.Add(-1)
		return true
	}
	return false
}

func (m *Manager) Len() int {
	return int(m.count.Load())
}

// Sweep drops sessions idle for longer than the TTL and returns how many
// were removed.
func (m *Manager) Sweep(now time.Time) int {
	if m.ttl <= 0 {
		return 0
	}

	removed := 0
	m.store.Range(func(key, value interface{}) bool {
		s := value.(*Session)
		if now.Sub(s.idleSince()) > m.ttl && m.Delete(key.(string)) {
			removed++
		}
		return true
	})
	return removed
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := m.Sweep(now); n > 0 {
				log.Info().Int("removed", n).Int("active", m.Len()).Msg("expired sessions swept")
			}
		}
	}
}

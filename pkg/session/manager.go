package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned for unknown or expired session ids.
	ErrNotFound = errors.New("session not found")
	// ErrClosed is returned once the manager has shut down.
	ErrClosed = errors.New("session manager closed")
)

// queueTimeout bounds how long a caller waits for the session goroutine.
const queueTimeout = 2 * time.Second

// Config controls session expiry.
type Config struct {
	// TTL is how long a session may stay idle; zero keeps sessions until they are ended.
	TTL time.Duration
	// SweepInterval is how often idle sessions are collected; zero disables the sweeper.
	SweepInterval time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// entry tracks a session together with the last time it was used.
type entry struct {
	session  *Session
	lastSeen time.Time
}

// command envelopes the work the manager goroutine must perform.
type command struct {
	action string
	id     string
	reply  chan result
}

// result carries the session, a count, or an error back to the caller.
type result struct {
	session *Session
	count   int
	err     error
}

// Manager owns the session table in a single goroutine so no locks guard the map.
type Manager struct {
	cfg      Config
	logger   *zap.Logger
	commands chan command
	quit     chan struct{}
	done     chan struct{}
	stop     sync.Once
}

// NewManager launches the coordinating goroutine immediately.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	m := &Manager{
		cfg:      cfg,
		logger:   logger,
		commands: make(chan command),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go m.loop()
	return m
}

// loop serializes every access to the session table.
func (m *Manager) loop() {
	defer close(m.done)

	var sweep <-chan time.Time
	if m.cfg.TTL > 0 && m.cfg.SweepInterval > 0 {
		ticker := time.NewTicker(m.cfg.SweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	sessions := make(map[string]*entry)
	for {
		select {
		case cmd := <-m.commands:
			cmd.reply <- m.handle(sessions, cmd)
		case <-sweep:
			m.expire(sessions)
		case <-m.quit:
			for id, e := range sessions {
				e.session.destroy()
				delete(sessions, id)
			}
			return
		}
	}
}

func (m *Manager) handle(sessions map[string]*entry, cmd command) result {
	now := m.cfg.Now()
	switch cmd.action {
	case "create":
		id := uuid.NewString()
		s := newSession(id, m.logger)
		sessions[id] = &entry{session: s, lastSeen: now}
		m.logger.Info("session started", zap.String("session", id), zap.Int("active_sessions", len(sessions)))
		return result{session: s}
	case "get":
		e, ok := sessions[cmd.id]
		if !ok {
			return result{err: ErrNotFound}
		}
		if m.idle(e, now) {
			m.end(sessions, cmd.id, "expired")
			return result{err: ErrNotFound}
		}
		e.lastSeen = now
		return result{session: e.session}
	case "end":
		if _, ok := sessions[cmd.id]; !ok {
			return result{err: ErrNotFound}
		}
		m.end(sessions, cmd.id, "ended")
		return result{}
	case "len":
		return result{count: len(sessions)}
	default:
		return result{err: errors.New("unknown session action " + cmd.action)}
	}
}

// expire ends every session idle for longer than the TTL.
func (m *Manager) expire(sessions map[string]*entry) {
	now := m.cfg.Now()
	expired := 0
	for id, e := range sessions {
		if m.idle(e, now) {
			m.end(sessions, id, "expired")
			expired++
		}
	}
	if expired > 0 {
		m.logger.Info("idle sessions expired", zap.Int("expired", expired), zap.Int("active_sessions", len(sessions)))
	}
}

func (m *Manager) idle(e *entry, now time.Time) bool {
	return m.cfg.TTL > 0 && now.Sub(e.lastSeen) > m.cfg.TTL
}

func (m *Manager) end(sessions map[string]*entry, id, reason string) {
	sessions[id].session.destroy()
	delete(sessions, id)
	m.logger.Debug("session closed", zap.String("session", id), zap.String("reason", reason))
}

// Create starts a session with a fresh cart.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	res, err := m.call(ctx, command{action: "create"})
	return res.session, err
}

// Get returns a live session and marks it as used.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	res, err := m.call(ctx, command{action: "get", id: id})
	return res.session, err
}

// End destroys a session and its cart.
func (m *Manager) End(ctx context.Context, id string) error {
	_, err := m.call(ctx, command{action: "end", id: id})
	return err
}

// Len reports how many sessions are live.
func (m *Manager) Len(ctx context.Context) (int, error) {
	res, err := m.call(ctx, command{action: "len"})
	return res.count, err
}

// Close stops the goroutine and destroys every remaining session.
func (m *Manager) Close() {
	m.stop.Do(func() { close(m.quit) })
	<-m.done
}

// call hands a command to the loop and waits for its reply.
func (m *Manager) call(ctx context.Context, cmd command) (result, error) {
	cmd.reply = make(chan result, 1)

	select {
	case m.commands <- cmd:
	case <-m.quit:
		return result{}, ErrClosed
	case <-ctx.Done():
		return result{}, ctx.Err()
	case <-time.After(queueTimeout):
		return result{}, errors.New("session queue is busy")
	}

	select {
	case res := <-cmd.reply:
		return res, res.err
	case <-ctx.Done():
		return result{}, ctx.Err()
	case <-time.After(queueTimeout):
		return result{}, errors.New("session " + cmd.action + " took too long")
	}
}

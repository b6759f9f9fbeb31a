package mcp

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

var (
	ErrSessionNotFound  = errors.New("mcp session not found")
	ErrSessionForbidden = errors.New("mcp session belongs to another organization")
)

// Session is one live MCP conversation: the per-org server, the streamable
// transport wrapping it, and the bookkeeping the reaper needs.
type Session struct {
	ID             string
	OrgID          uuid.UUID
	Server         *server.MCPServer
	Handler        http.Handler
	CreatedAt      time.Time
	LastAccessedAt time.Time
}

const reapInterval = time.Minute

// Store keeps sessions in a process-local map. Get refreshes the idle clock;
// entries idle past the timeout are dropped lazily on access and periodically
// by the background reaper.
type Store struct {
	mu      sync.Mutex
	entries map[string]*Session
	idle    time.Duration
	log     zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewStore(idleTimeout time.Duration, log zerolog.Logger) *Store {
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Minute
	}
	return &Store{
		entries: make(map[string]*Session),
		idle:    idleTimeout,
		log:     log.With().Str("component", "mcp_sessions").Logger(),
	}
}

func (s *Store) Put(sess *Session) {
	now := time.Now()
	sess.CreatedAt = now
	sess.LastAccessedAt = now

	s.mu.Lock()
	s.entries[sess.ID] = sess
	s.mu.Unlock()

	s.log.Debug().
		Str("session_id", sess.ID).
		Str("org_id", sess.OrgID.String()).
		Msg("mcp session created")
}

// Get returns the session and refreshes its idle clock. A session owned by a
// different org is reported as forbidden, never revealed.
func (s *Store) Get(id string, orgID uuid.UUID) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.entries[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if time.Since(sess.LastAccessedAt) > s.idle {
		delete(s.entries, id)
		return nil, ErrSessionNotFound
	}
	if sess.OrgID != orgID {
		return nil, ErrSessionForbidden
	}
	sess.LastAccessedAt = time.Now()
	return sess, nil
}

// Remove drops a session and reports whether the id was present.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return false
	}
	delete(s.entries, id)
	return true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Start launches the background reaper.
func (s *Store) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx)
}

// Stop halts the reaper and waits for it to exit.
func (s *Store) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Store) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sweep(time.Now()); n > 0 {
				s.log.Info().Int("expired", n).Msg("reaped idle mcp sessions")
			}
		}
	}
}

// sweep drops every session idle past the timeout and returns how many went.
func (s *Store) sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	reaped := 0
	for id, sess := range s.entries {
		if now.Sub(sess.LastAccessedAt) > s.idle {
			delete(s.entries, id)
			reaped++
		}
	}
	return reaped
}

package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/skincare-assistant/internal/metrics"
)

const sweepInterval = 5 * time.Minute

// Registry holds the chat sessions of web visitors, keyed by visitor and tab.
type Registry struct {
	mu            sync.RWMutex
	active        map[string]map[string]*Session
	backend       Backend
	maxImageBytes int64
}

// NewRegistry creates an empty registry whose sessions talk to backend.
func NewRegistry(backend Backend, maxImageBytes int64) *Registry {
	return &Registry{
		active:        make(map[string]map[string]*Session),
		backend:       backend,
		maxImageBytes: maxImageBytes,
	}
}

// Get returns the session for a visitor and tab, or nil.
func (r *Registry) Get(userID, sessionID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if sessions, ok := r.active[userID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// GetOrCreate returns the session for a visitor and tab, creating it if needed.
func (r *Registry) GetOrCreate(userID, sessionID string) *Session {
	if s := r.Get(userID, sessionID); s != nil {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.active[userID]; !exists {
		r.active[userID] = make(map[string]*Session)
	}
	if s, exists := r.active[userID][sessionID]; exists {
		return s
	}

	s := NewSession(sessionID, r.backend, r.maxImageBytes)
	r.active[userID][sessionID] = s
	metrics.ActiveSessions.Inc()
	slog.Info("Chat session created", "user_id", userID, "session_id", sessionID)
	return s
}

// Remove drops a single session.
func (r *Registry) Remove(userID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(userID, sessionID)
}

func (r *Registry) removeLocked(userID, sessionID string) {
	sessions, ok := r.active[userID]
	if !ok {
		return
	}
	if _, exists := sessions[sessionID]; !exists {
		return
	}
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(r.active, userID)
	}
	metrics.ActiveSessions.Dec()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, sessions := range r.active {
		n += len(sessions)
	}
	return n
}

// Sweep removes sessions idle for longer than ttl and returns how many were removed.
func (r *Registry) Sweep(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for userID, sessions := range r.active {
		for sid, s := range sessions {
			if s.LastSeen().Before(cutoff) {
				r.removeLocked(userID, sid)
				removed++
			}
		}
	}
	return removed
}

// StartSweeper periodically removes idle sessions until ctx is done.
func (r *Registry) StartSweeper(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		slog.Warn("Session sweeper disabled", "ttl", ttl)
		return
	}
	interval := sweepInterval
	if ttl < interval {
		interval = ttl
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				if n := r.Sweep(ttl); n > 0 {
					slog.Info("Session sweeper removed idle sessions", "count", n)
				}
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Package session keeps one mounted widget per browser session.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fakhrymubarak/weather-widget/internal/metrics"
	"github.com/fakhrymubarak/weather-widget/internal/widget"
)

// Factory mounts the controller for a new session.
type Factory func(id string) *widget.Controller

type entry struct {
	ctrl     *widget.Controller
	lastSeen time.Time
}

type Registry struct {
	factory     Factory
	idleTimeout time.Duration
	log         *zap.SugaredLogger
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewRegistry(factory Factory, idleTimeout time.Duration, log *zap.SugaredLogger) *Registry {
	return &Registry{
		factory:     factory,
		idleTimeout: idleTimeout,
		log:         log,
		now:         time.Now,
		sessions:    make(map[string]*entry),
	}
}

// Get returns the widget mounted for id and marks the session as seen.
func (r *Registry) Get(id string) (*widget.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.ctrl, true
}

// GetOrMount returns the widget for id, mounting a fresh one under a new id
// when id is unknown.
func (r *Registry) GetOrMount(id string) (string, *widget.Controller) {
	if ctrl, ok := r.Get(id); ok {
		return id, ctrl
	}
	return r.Mount()
}

func (r *Registry) Mount() (string, *widget.Controller) {
	id := uuid.NewString()
	ctrl := r.factory(id)

	r.mu.Lock()
	r.sessions[id] = &entry{ctrl: ctrl, lastSeen: r.now()}
	r.mu.Unlock()

	metrics.MountedWidgets.Inc()
	r.log.Infow("Widget mounted", "session", id)
	return id, ctrl
}

// Unmount drops the session's widget. It reports false for unknown ids.
func (r *Registry) Unmount(id string) bool {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	r.release(id, e)
	return true
}

func (r *Registry) release(id string, e *entry) {
	e.ctrl.Unmount()
	metrics.MountedWidgets.Dec()
	r.log.Infow("Widget unmounted", "session", id)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep unmounts every session idle for longer than the idle timeout and
// returns how many were dropped. Idleness is decided and the entry removed
// under one lock, so a session touched by Get is never swept.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	dropped := make(map[string]*entry)
	now := r.now()
	for id, e := range r.sessions {
		if now.Sub(e.lastSeen) > r.idleTimeout {
			dropped[id] = e
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for id, e := range dropped {
		r.release(id, e)
	}
	return len(dropped)
}

// StartCleanup sweeps idle sessions every interval until ctx is done.
func (r *Registry) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Sweep(); n > 0 {
					r.log.Debugw("Idle widgets unmounted", "count", n)
				}
			}
		}
	}()
}

// UnmountAll drops every session, used on shutdown.
func (r *Registry) UnmountAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.Unmount(id)
	}
}

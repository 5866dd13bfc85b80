package live

import (
	"sort"
	"sync"

	"github.com/LucadeVeintemilla/emotionTracking/core"
)

// Registry keeps one Scheduler per open live session.
type Registry struct {
	mu       sync.Mutex
	deps     Deps
	sessions map[string]*Scheduler
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps, sessions: make(map[string]*Scheduler)}
}

// Open returns the live session for sessionID, creating it if needed.
// The bool reports whether it was created.
func (r *Registry) Open(sessionID string) (*Scheduler, bool, error) {
	sessionID = core.CleanString(sessionID)
	if sessionID == "" {
		return nil, false, core.NewValidationError(
			ErrSessionIDRequired,
			core.FieldError{Field: "session_id", Error: ErrSessionIDRequired.Error()},
		)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if sched, ok := r.sessions[sessionID]; ok {
		return sched, false, nil
	}
	sched, err := NewScheduler(sessionID, r.deps)
	if err != nil {
		return nil, false, err
	}
	r.sessions[sessionID] = sched
	return sched, true, nil
}

func (r *Registry) Get(sessionID string) (*Scheduler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sched, ok := r.sessions[core.CleanString(sessionID)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sched, nil
}

// Close closes and forgets the live session.
func (r *Registry) Close(sessionID string) error {
	r.mu.Lock()
	sched, ok := r.sessions[core.CleanString(sessionID)]
	delete(r.sessions, core.CleanString(sessionID))
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	sched.Close()
	return nil
}

// CloseAll closes every live session and waits for their cycles to finish.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	scheds := make([]*Scheduler, 0, len(r.sessions))
	for id, sched := range r.sessions {
		scheds = append(scheds, sched)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, sched := range scheds {
		sched.Close()
	}
	for _, sched := range scheds {
		sched.Wait()
	}
}

// Sessions lists the ids of the open live sessions.
func (r *Registry) Sessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

package labyrinth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry owns every live session, keyed by session id, and remembers which
// connection belongs to which session.
//
// Lock order is session before registry: code holding a Session's mutex may
// take the registry lock, never the other way around.
type Registry struct {
	mu       sync.RWMutex
	catalog  Catalog
	sessions map[string]*Session
	byConn   map[string]string
	members  map[string][]string

	newID func() string
	now   func() time.Time
}

func NewRegistry(cat Catalog) *Registry {
	return &Registry{
		catalog:  cat,
		sessions: make(map[string]*Session),
		byConn:   make(map[string]string),
		members:  make(map[string][]string),
		newID:    func() string { return uuid.NewString() },
		now:      time.Now,
	}
}

func (r *Registry) Catalog() Catalog {
	return r.catalog
}

// Create allocates a session in the starting maze with conn as its Mover.
func (r *Registry) Create(conn string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byConn[conn]; ok {
		return nil, ErrAlreadyInSession
	}

	id := r.newID()
	for {
		if _, ok := r.sessions[id]; !ok {
			break
		}
		id = r.newID()
	}

	s := newSession(id, conn, r.catalog, r.now())
	r.sessions[id] = s
	r.byConn[conn] = id
	r.members[id] = []string{conn}

	return s, nil
}

// AttachHelper seats conn as the Helper of session id.
func (r *Registry) AttachHelper(id, conn string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	_, busy := r.byConn[conn]
	r.mu.RUnlock()

	if busy {
		return nil, ErrAlreadyInSession
	}
	if !ok {
		return nil, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionNotFound
	}
	if _, taken := s.conns[Helper]; taken {
		return nil, ErrSessionFull
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[id] != s {
		return nil, ErrSessionNotFound
	}

	s.conns[Helper] = conn
	s.lastActive = r.now()
	r.byConn[conn] = id
	r.members[id] = append(r.members[id], conn)

	return s, nil
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Lookup finds the session conn belongs to.
func (r *Registry) Lookup(conn string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byConn[conn]
	if !ok {
		return nil, false
	}
	s, ok := r.sessions[id]
	return s, ok
}

// Destroy removes session id and forgets its connections. Unknown ids are
// ignored.
func (r *Registry) Destroy(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, conn := range r.members[id] {
		delete(r.byConn, conn)
	}
	delete(r.members, id)
	delete(r.sessions, id)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// all returns the live sessions without holding any of their locks.
func (r *Registry) all() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

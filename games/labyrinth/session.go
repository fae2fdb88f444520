package labyrinth

import (
	"sync"
	"time"
)

// Session is one paired game. All fields are guarded by mu; the engine holds
// it for the whole of a transition so each session sees at most one command
// in flight.
type Session struct {
	mu sync.Mutex

	id         string
	conns      map[Role]string
	mazeID     string
	grid       Grid
	helperView Grid
	positions  map[Role]Position

	activeRiddle   *Riddle
	awaitingBranch bool
	branchOptions  []BranchOption

	lastActive time.Time
	closed     bool
}

func newSession(id, moverConn string, cat Catalog, now time.Time) *Session {
	start := cat.StartMaze()

	s := &Session{
		id:         id,
		conns:      map[Role]string{Mover: moverConn},
		helperView: cat.HelperView(),
		positions: map[Role]Position{
			Helper: cat.HelperEntry(),
		},
		lastActive: now,
	}
	s.enterMaze(start.ID, start.Grid, start.Entry, cat)
	return s
}

// enterMaze installs a fresh copy of grid and stamps a door for every riddle
// registered under mazeID.
func (s *Session) enterMaze(mazeID string, grid Grid, entry Position, cat Catalog) {
	s.mazeID = mazeID
	s.grid = grid.Clone()
	for _, r := range cat.Riddles(mazeID) {
		s.grid.stampDoor(r.Trigger)
	}
	s.positions[Mover] = entry
	s.activeRiddle = nil
	s.awaitingBranch = false
	s.branchOptions = nil
}

func (s *Session) ID() string {
	return s.id
}

// Conn returns the connection holding role, if any.
func (s *Session) Conn(role Role) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conns[role]
	return c, ok
}

// RoleOf reports which role conn plays in the session.
func (s *Session) RoleOf(conn string) (Role, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.roleOfLocked(conn)
}

func (s *Session) roleOfLocked(conn string) (Role, bool) {
	for _, r := range roles {
		if c, ok := s.conns[r]; ok && c == conn {
			return r, true
		}
	}
	return 0, false
}

// Snapshot is a copy of session state, safe to inspect without locking.
type Snapshot struct {
	ID             string
	MazeID         string
	Grid           Grid
	Positions      map[Role]Position
	ActiveRiddle   *Riddle
	AwaitingBranch bool
	Paired         bool
	LastActive     time.Time
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, paired := s.conns[Helper]
	return Snapshot{
		ID:             s.id,
		MazeID:         s.mazeID,
		Grid:           s.grid.Clone(),
		Positions:      map[Role]Position{Mover: s.positions[Mover], Helper: s.positions[Helper]},
		ActiveRiddle:   s.activeRiddle,
		AwaitingBranch: s.awaitingBranch,
		Paired:         paired,
		LastActive:     s.lastActive,
	}
}

func (s *Session) stateUpdateLocked() StateUpdate {
	return StateUpdate{
		MagoPos:         s.positions[Mover],
		SacerdotisaPos:  s.positions[Helper],
		MazeMago:        s.grid.Clone(),
		MazeSacerdotisa: s.helperView,
	}
}

func (s *Session) readyLocked(role Role) GameReady {
	return GameReady{
		Role:      role,
		GameID:    s.id,
		IsHost:    role == Mover,
		MazeData:  s.grid.Clone(),
		PlayerPos: s.positions[role],
	}
}

// connsLocked lists attached connections in role order.
func (s *Session) connsLocked() []string {
	out := make([]string, 0, len(s.conns))
	for _, r := range roles {
		if c, ok := s.conns[r]; ok {
			out = append(out, c)
		}
	}
	return out
}

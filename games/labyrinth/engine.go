package labyrinth

import (
	"errors"
	"io"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Engine applies role-tagged commands to sessions and returns the events
// each connection should receive, in emission order. It never returns an
// error: rejected commands become notices for the offending connection.
type Engine struct {
	registry *Registry
	catalog  Catalog
	log      logrus.FieldLogger
	printer  *message.Printer
	pick     func(n int) int
}

type Option func(*Engine)

func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

func WithPrinter(p *message.Printer) Option {
	return func(e *Engine) {
		e.printer = p
	}
}

// WithPicker replaces the uniform random choice of reward texts.
func WithPicker(f func(n int) int) Option {
	return func(e *Engine) {
		e.pick = f
	}
}

func NewEngine(reg *Registry, opts ...Option) *Engine {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	e := &Engine{
		registry: reg,
		catalog:  reg.Catalog(),
		log:      quiet,
		printer:  NewPrinter(language.Spanish),
		pick:     rand.IntN,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Registry() *Registry {
	return e.registry
}

// Handle runs one command issued by conn.
func (e *Engine) Handle(conn string, cmd Command) []Outbound {
	switch cmd.Name {
	case CmdCreateGame:
		return e.create(conn)
	case CmdJoinGame:
		return e.join(conn, strings.TrimSpace(cmd.Arg))
	case CmdMove, CmdSendClue, CmdSendAnswer, CmdChoosePath:
	default:
		return []Outbound{e.notice(conn, ErrUnknownCommand, msgUnknownCommand)}
	}

	s, ok := e.registry.Lookup(conn)
	if !ok {
		return []Outbound{e.notice(conn, ErrNotInSession, msgNotInSession)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.roleOfLocked(conn)
	if s.closed || !ok {
		return []Outbound{e.notice(conn, ErrNotInSession, msgNotInSession)}
	}

	var out []Outbound
	switch cmd.Name {
	case CmdMove:
		out = e.move(s, role, cmd.Arg)
	case CmdSendClue:
		out = e.sendClue(s, role, cmd.Arg)
	case CmdSendAnswer:
		out = e.sendAnswer(s, role, cmd.Arg)
	default:
		out = e.choosePath(s, role, strings.TrimSpace(cmd.Arg))
	}

	// Only accepted commands count as activity.
	if !rejected(out) {
		s.lastActive = e.registry.now()
	}
	return out
}

func rejected(out []Outbound) bool {
	for _, o := range out {
		if o.Err != nil {
			return true
		}
	}
	return false
}

func (e *Engine) create(conn string) []Outbound {
	s, err := e.registry.Create(conn)
	if err != nil {
		return []Outbound{e.notice(conn, err, msgAlreadyInSession)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e.sessionLog(s).Info("session created")

	return []Outbound{{To: conn, Name: EvGameReady, Data: s.readyLocked(Mover)}}
}

func (e *Engine) join(conn, id string) []Outbound {
	s, err := e.registry.AttachHelper(id, conn)
	switch {
	case errors.Is(err, ErrAlreadyInSession):
		return []Outbound{e.notice(conn, err, msgAlreadyInSession)}
	case err != nil:
		e.log.WithField("session", id).WithError(err).Info("join rejected")
		return []Outbound{e.notice(conn, err, msgSessionUnavailable)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e.sessionLog(s).Info("helper joined")

	out := make([]Outbound, 0, len(roles))
	for _, r := range roles {
		out = append(out, Outbound{To: s.conns[r], Name: EvGameReady, Data: s.readyLocked(r)})
	}
	return out
}

func (e *Engine) move(s *Session, role Role, arg string) []Outbound {
	conn := s.conns[role]

	if role != Mover {
		return []Outbound{e.notice(conn, ErrWrongRole, msgMoverOnlyMoves)}
	}
	if _, ok := s.conns[Helper]; !ok {
		return []Outbound{e.notice(conn, ErrWaitingForHelper, msgWaitingForHelper)}
	}
	if s.awaitingBranch {
		return []Outbound{e.notice(conn, ErrAwaitingBranch, msgChooseBranchFirst)}
	}
	if s.activeRiddle != nil {
		return []Outbound{e.notice(conn, ErrPuzzleAlreadyActive, msgPuzzleActive)}
	}

	dir, err := ParseDirection(arg)
	if err != nil {
		return []Outbound{e.notice(conn, err, msgUnknownDirection)}
	}

	next := s.positions[Mover].Step(dir)
	cell, err := s.grid.Classify(next)
	if err != nil {
		return []Outbound{e.notice(conn, err, msgOutOfBounds)}
	}

	switch cell {
	case Wall:
		return []Outbound{e.notice(conn, ErrWall, msgWall)}

	case RiddleDoor:
		riddle, ok := e.catalog.FindRiddle(s.mazeID, next)
		if !ok {
			e.sessionLog(s).WithField("pos", next.String()).Warn("riddle door without a registered riddle")
			return []Outbound{e.notice(conn, ErrUnregisteredDoor, msgUnregisteredDoor)}
		}

		s.activeRiddle = riddle
		e.sessionLog(s).WithField("riddle", riddle.ID).Info("puzzle loaded")

		return []Outbound{
			{To: s.conns[Mover], Name: EvLoadPuzzle, Data: PuzzleLoaded{
				Title:       riddle.Title,
				Description: riddle.Description,
				GuesserInfo: riddle.Mover,
			}},
			{To: s.conns[Helper], Name: EvLoadPuzzle, Data: PuzzleLoaded{
				Title:       riddle.Title,
				Description: riddle.Description,
				PisterInfo:  &riddle.Helper,
			}},
		}

	case Branch:
		s.positions[Mover] = next
		s.awaitingBranch = true
		s.branchOptions = e.catalog.FindBranchOptions(s.mazeID, next)

		e.sessionLog(s).WithField("pos", next.String()).Info("decision point reached")

		options := make([]OptionView, 0, len(s.branchOptions))
		for _, o := range s.branchOptions {
			options = append(options, OptionView{ID: o.ID, Name: o.Name})
		}

		out := e.broadcast(s, EvDecisionPoint, DecisionPoint{
			Message: e.printer.Sprintf(msgDecisionPoint),
			Options: options,
		})
		return append(out, e.broadcast(s, EvStateUpdate, s.stateUpdateLocked())...)

	default:
		s.positions[Mover] = next
		return e.broadcast(s, EvStateUpdate, s.stateUpdateLocked())
	}
}

func (e *Engine) sendClue(s *Session, role Role, text string) []Outbound {
	conn := s.conns[role]

	if role != Helper {
		return []Outbound{e.notice(conn, ErrWrongRole, msgHelperOnlyClues)}
	}
	if s.activeRiddle == nil {
		return []Outbound{e.notice(conn, ErrNoActivePuzzle, msgNoPuzzleForClue)}
	}

	return []Outbound{
		{To: s.conns[Mover], Name: EvClueReceived, Data: text},
		e.info(conn, msgClueSent),
	}
}

func (e *Engine) sendAnswer(s *Session, role Role, text string) []Outbound {
	conn := s.conns[role]

	if role != Mover {
		return []Outbound{e.notice(conn, ErrWrongRole, msgMoverOnlyAnswers)}
	}
	riddle := s.activeRiddle
	if riddle == nil {
		return []Outbound{e.notice(conn, ErrNoActivePuzzle, msgNoPuzzleForAnswer)}
	}

	log := e.sessionLog(s).WithField("riddle", riddle.ID)

	if !riddle.Matches(text) {
		log.Info("wrong answer")

		return e.broadcast(s, EvAnswerResult, AnswerResult{
			Correct:  false,
			Feedback: riddle.FeedbackIncorrect,
		})
	}

	result := AnswerResult{
		Correct:  true,
		Feedback: riddle.FeedbackCorrect,
	}
	if n := len(riddle.Rewards); n > 0 {
		result.LoveSpellText = e.printer.Sprintf(msgReward, riddle.Title, riddle.Rewards[e.pick(n)])
	}
	out := e.broadcast(s, EvAnswerResult, result)

	log.Info("riddle solved")

	if riddle.OnSolve.Kind == ActionOpenDoor {
		if s.grid.OpenDoor(riddle.OnSolve.Door) {
			out = append(out, e.info(conn, msgDoorOpened))
		} else {
			log.WithField("pos", riddle.OnSolve.Door.String()).Warn("solved riddle points at a cell that is not a door")
		}
	}

	s.activeRiddle = nil

	return append(out, e.broadcast(s, EvStateUpdate, s.stateUpdateLocked())...)
}

func (e *Engine) choosePath(s *Session, role Role, optionID string) []Outbound {
	conn := s.conns[role]

	if !s.awaitingBranch {
		return []Outbound{e.notice(conn, ErrNoDecisionPending, msgNoDecision)}
	}

	var chosen *BranchOption
	for i := range s.branchOptions {
		if s.branchOptions[i].ID == optionID {
			chosen = &s.branchOptions[i]
			break
		}
	}
	if chosen == nil {
		return []Outbound{e.notice(conn, ErrUnknownBranch, msgUnknownBranch)}
	}

	s.enterMaze(chosen.ID, chosen.Grid, chosen.Entry, e.catalog)

	e.sessionLog(s).WithField("chosen_by", role.String()).Info("branch chosen")

	return e.broadcast(s, EvMazeChanged, MazeChanged{
		Message:        e.printer.Sprintf(msgBranchChosen, chosen.Name),
		MazeMago:       s.grid.Clone(),
		MagoPos:        s.positions[Mover],
		SacerdotisaPos: s.positions[Helper],
	})
}

// Disconnect tears down the session conn belonged to. The partner, if any,
// receives a single game_over.
func (e *Engine) Disconnect(conn string) []Outbound {
	s, ok := e.registry.Lookup(conn)
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.roleOfLocked(conn)
	if s.closed || !ok {
		return nil
	}
	s.closed = true
	e.registry.Destroy(s.id)

	e.sessionLog(s).WithField("role", role.String()).Info("session ended by disconnect")

	other, ok := s.conns[role.Other()]
	if !ok {
		return nil
	}

	key := msgMoverLeft
	if role == Helper {
		key = msgHelperLeft
	}
	return []Outbound{{To: other, Name: EvGameOver, Data: e.printer.Sprintf(key)}}
}

// Expire ends every session idle since before cutoff.
func (e *Engine) Expire(cutoff time.Time) []Outbound {
	var out []Outbound

	for _, s := range e.registry.all() {
		s.mu.Lock()
		if s.closed || !s.lastActive.Before(cutoff) {
			s.mu.Unlock()
			continue
		}
		s.closed = true
		e.registry.Destroy(s.id)

		e.sessionLog(s).WithField("idle", e.registry.now().Sub(s.lastActive).Round(time.Second).String()).Warn("session expired")

		out = append(out, e.broadcast(s, EvGameOver, e.printer.Sprintf(msgSessionExpired))...)
		s.mu.Unlock()
	}

	return out
}

func (e *Engine) broadcast(s *Session, name string, data any) []Outbound {
	conns := s.connsLocked()
	out := make([]Outbound, 0, len(conns))
	for _, c := range conns {
		out = append(out, Outbound{To: c, Name: name, Data: data})
	}
	return out
}

func (e *Engine) notice(to string, err error, key string) Outbound {
	return Outbound{To: to, Name: EvMessage, Data: e.printer.Sprintf(key), Err: err}
}

func (e *Engine) info(to string, key string) Outbound {
	return Outbound{To: to, Name: EvMessage, Data: e.printer.Sprintf(key)}
}

func (e *Engine) sessionLog(s *Session) logrus.FieldLogger {
	return e.log.WithFields(logrus.Fields{
		"session": s.id,
		"maze":    s.mazeID,
	})
}

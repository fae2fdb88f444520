package labyrinth

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/text/language"
)

const hallContent = `
start: hall
branches: [east, west]
mazes:
- id: hall
  name: Hall
  entry: [0, 0]
  grid:
  - [0, 0, 0, 1]
  - [1, 1, 0, 1]
  - [1, 1, 3, 1]
- id: east
  name: East Wing
  entry: [1, 1]
  grid:
  - [1, 1, 1]
  - [1, 0, 1]
  - [1, 1, 1]
- id: west
  name: West Wing
  entry: [1, 1]
  grid:
  - [1, 1, 1]
  - [1, 0, 0]
  - [1, 1, 1]
reward_pools:
  charms: [first charm, second charm]
riddles:
- id: gate
  maze: hall
  trigger: [0, 1]
  title: Gate
  description: A gate blocks the corridor.
  helper:
    preamble: Help them count.
    clues: [beads]
  mover: What counts with beads?
  answer: Ábaco
  feedback:
    correct: it opens
    incorrect: it stays shut
  reward_pool: charms
- id: well
  maze: west
  trigger: [1, 2]
  title: Well
  helper:
    clues: [echo]
  mover: What answers back from the well?
  answer: eco
`

func newTestEngine(t *testing.T, content string, opts ...Option) *Engine {
	t.Helper()

	cat, err := LoadCatalog([]byte(content))
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	return NewEngine(NewRegistry(cat), opts...)
}

// pair creates a session for "m" and seats "h" as its Helper.
func pair(t *testing.T, e *Engine) string {
	t.Helper()

	out := e.Handle("m", Command{Name: CmdCreateGame})
	if len(out) != 1 || out[0].Name != EvGameReady {
		t.Fatalf("create: unexpected events %+v", out)
	}
	id := out[0].Data.(GameReady).GameID

	out = e.Handle("h", Command{Name: CmdJoinGame, Arg: id})
	if len(out) != 2 {
		t.Fatalf("join: expected 2 events, got %+v", out)
	}
	return id
}

func snapshot(t *testing.T, e *Engine, id string) Snapshot {
	t.Helper()

	s, err := e.Registry().Get(id)
	if err != nil {
		t.Fatalf("Get(%q): %v", id, err)
	}
	return s.Snapshot()
}

func wantNotice(t *testing.T, out []Outbound, conn string, want error) {
	t.Helper()

	if len(out) != 1 {
		t.Fatalf("expected a single notice, got %d events: %+v", len(out), out)
	}
	if out[0].To != conn || out[0].Name != EvMessage {
		t.Fatalf("expected message to %q, got %s to %q", conn, out[0].Name, out[0].To)
	}
	if !errors.Is(out[0].Err, want) {
		t.Fatalf("expected error %v, got %v", want, out[0].Err)
	}
}

func wantBroadcast(t *testing.T, out []Outbound, name string) {
	t.Helper()

	if len(out) != 2 {
		t.Fatalf("expected %s to both players, got %+v", name, out)
	}
	for i, conn := range []string{"m", "h"} {
		if out[i].To != conn || out[i].Name != name {
			t.Fatalf("event %d: expected %s to %q, got %s to %q", i, name, conn, out[i].Name, out[i].To)
		}
	}
}

func move(e *Engine, dir string) []Outbound {
	return e.Handle("m", Command{Name: CmdMove, Arg: dir})
}

func TestCreateGame(t *testing.T) {
	e := newTestEngine(t, hallContent)

	out := e.Handle("m", Command{Name: CmdCreateGame})
	if len(out) != 1 || out[0].To != "m" || out[0].Name != EvGameReady {
		t.Fatalf("unexpected events %+v", out)
	}

	ready := out[0].Data.(GameReady)
	if ready.Role != Mover || !ready.IsHost {
		t.Fatalf("expected host Mover, got %+v", ready)
	}
	if ready.PlayerPos != (Position{0, 0}) {
		t.Fatalf("expected entry [0,0], got %s", ready.PlayerPos)
	}
	if ready.MazeData[0][1] != RiddleDoor {
		t.Fatalf("expected riddle door stamped at [0,1], got %s", ready.MazeData[0][1])
	}
	if e.Registry().Len() != 1 {
		t.Fatalf("expected 1 session, got %d", e.Registry().Len())
	}

	snap := snapshot(t, e, ready.GameID)
	if snap.Paired || snap.ActiveRiddle != nil || snap.AwaitingBranch {
		t.Fatalf("new session should be idle and unpaired: %+v", snap)
	}
}

func TestCreateGameTwice(t *testing.T) {
	e := newTestEngine(t, hallContent)

	e.Handle("m", Command{Name: CmdCreateGame})
	wantNotice(t, e.Handle("m", Command{Name: CmdCreateGame}), "m", ErrAlreadyInSession)

	if e.Registry().Len() != 1 {
		t.Fatalf("expected 1 session, got %d", e.Registry().Len())
	}
}

func TestJoinGame(t *testing.T) {
	e := newTestEngine(t, hallContent)

	out := e.Handle("m", Command{Name: CmdCreateGame})
	id := out[0].Data.(GameReady).GameID

	out = e.Handle("h", Command{Name: CmdJoinGame, Arg: " " + id + " "})
	wantBroadcast(t, out, EvGameReady)

	mover := out[0].Data.(GameReady)
	helper := out[1].Data.(GameReady)
	if mover.Role != Mover || !mover.IsHost || mover.GameID != id {
		t.Fatalf("unexpected mover ready %+v", mover)
	}
	if helper.Role != Helper || helper.IsHost || helper.GameID != id {
		t.Fatalf("unexpected helper ready %+v", helper)
	}

	if !snapshot(t, e, id).Paired {
		t.Fatal("session should be paired")
	}
}

func TestJoinUnknownGame(t *testing.T) {
	e := newTestEngine(t, hallContent)

	wantNotice(t, e.Handle("h", Command{Name: CmdJoinGame, Arg: "nope"}), "h", ErrSessionNotFound)
}

func TestJoinFullGame(t *testing.T) {
	e := newTestEngine(t, hallContent)
	id := pair(t, e)

	wantNotice(t, e.Handle("x", Command{Name: CmdJoinGame, Arg: id}), "x", ErrSessionFull)

	s, _ := e.Registry().Get(id)
	if c, _ := s.Conn(Helper); c != "h" {
		t.Fatalf("helper should still be h, got %q", c)
	}
}

func TestCommandsOutsideSession(t *testing.T) {
	e := newTestEngine(t, hallContent)

	for _, name := range []string{CmdMove, CmdSendClue, CmdSendAnswer, CmdChoosePath} {
		wantNotice(t, e.Handle("stray", Command{Name: name, Arg: "x"}), "stray", ErrNotInSession)
	}
	wantNotice(t, e.Handle("stray", Command{Name: "dance"}), "stray", ErrUnknownCommand)
}

func TestMoveBeforeHelperJoins(t *testing.T) {
	e := newTestEngine(t, hallContent)
	e.Handle("m", Command{Name: CmdCreateGame})

	wantNotice(t, move(e, "right"), "m", ErrWaitingForHelper)
}

func TestHelperCannotMove(t *testing.T) {
	e := newTestEngine(t, hallContent)
	id := pair(t, e)

	wantNotice(t, e.Handle("h", Command{Name: CmdMove, Arg: "right"}), "h", ErrWrongRole)

	if got := snapshot(t, e, id).Positions[Mover]; got != (Position{0, 0}) {
		t.Fatalf("mover should not have moved, at %s", got)
	}
}

func TestMoveRejections(t *testing.T) {
	e := newTestEngine(t, hallContent)
	id := pair(t, e)

	tests := []struct {
		dir  string
		want error
	}{
		{"up", ErrOutOfBounds},
		{"left", ErrOutOfBounds},
		{"down", ErrWall},
		{"sideways", ErrUnknownDirection},
	}

	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			wantNotice(t, move(e, tt.dir), "m", tt.want)

			if got := snapshot(t, e, id).Positions[Mover]; got != (Position{0, 0}) {
				t.Fatalf("mover should not have moved, at %s", got)
			}
		})
	}
}

func solveGate(t *testing.T, e *Engine) {
	t.Helper()

	move(e, "right")
	out := e.Handle("m", Command{Name: CmdSendAnswer, Arg: "ábaco"})
	if len(out) == 0 || !out[0].Data.(AnswerResult).Correct {
		t.Fatalf("expected gate to be solved, got %+v", out)
	}
}

func TestRiddleFlow(t *testing.T) {
	printer := NewPrinter(language.English)
	e := newTestEngine(t, hallContent,
		WithPrinter(printer),
		WithPicker(func(n int) int { return n - 1 }),
	)
	id := pair(t, e)

	out := move(e, "RIGHT")
	if len(out) != 2 {
		t.Fatalf("expected load_puzzle to both, got %+v", out)
	}

	guesser := out[0].Data.(PuzzleLoaded)
	if out[0].To != "m" || out[0].Name != EvLoadPuzzle || guesser.GuesserInfo != "What counts with beads?" || guesser.PisterInfo != nil {
		t.Fatalf("unexpected mover puzzle %+v", out[0])
	}
	pister := out[1].Data.(PuzzleLoaded)
	if out[1].To != "h" || out[1].Name != EvLoadPuzzle || pister.GuesserInfo != "" || pister.PisterInfo == nil {
		t.Fatalf("unexpected helper puzzle %+v", out[1])
	}
	if pister.Title != "Gate" || pister.PisterInfo.Clues[0] != "beads" {
		t.Fatalf("unexpected helper briefing %+v", pister)
	}

	snap := snapshot(t, e, id)
	if snap.ActiveRiddle == nil || snap.ActiveRiddle.ID != "gate" {
		t.Fatalf("expected gate to be active, got %+v", snap.ActiveRiddle)
	}
	if snap.Positions[Mover] != (Position{0, 0}) {
		t.Fatalf("mover should stay in front of the door, at %s", snap.Positions[Mover])
	}

	wantNotice(t, move(e, "right"), "m", ErrPuzzleAlreadyActive)
	wantNotice(t, e.Handle("m", Command{Name: CmdSendClue, Arg: "hm"}), "m", ErrWrongRole)
	wantNotice(t, e.Handle("h", Command{Name: CmdSendAnswer, Arg: "ábaco"}), "h", ErrWrongRole)

	out = e.Handle("h", Command{Name: CmdSendClue, Arg: "beads on wires"})
	if len(out) != 2 || out[0].To != "m" || out[0].Name != EvClueReceived || out[0].Data != "beads on wires" {
		t.Fatalf("unexpected clue events %+v", out)
	}
	if out[1].To != "h" || out[1].Name != EvMessage || out[1].Err != nil {
		t.Fatalf("expected an ack for the helper, got %+v", out[1])
	}

	out = e.Handle("m", Command{Name: CmdSendAnswer, Arg: "calculator"})
	wantBroadcast(t, out, EvAnswerResult)
	if res := out[0].Data.(AnswerResult); res.Correct || res.Feedback != "it stays shut" || res.LoveSpellText != "" {
		t.Fatalf("unexpected wrong answer result %+v", res)
	}

	snap = snapshot(t, e, id)
	if snap.ActiveRiddle == nil || snap.Grid[0][1] != RiddleDoor {
		t.Fatal("a wrong answer must leave the riddle and the door in place")
	}
	before := snap.Grid

	out = e.Handle("m", Command{Name: CmdSendAnswer, Arg: "  ÁBACO "})
	if len(out) != 5 {
		t.Fatalf("expected 5 events for a right answer, got %+v", out)
	}
	wantBroadcast(t, out[:2], EvAnswerResult)
	res := out[0].Data.(AnswerResult)
	if !res.Correct || res.Feedback != "it opens" {
		t.Fatalf("unexpected right answer result %+v", res)
	}
	if want := printer.Sprintf(msgReward, "Gate", "second charm"); res.LoveSpellText != want {
		t.Fatalf("expected reward %q, got %q", want, res.LoveSpellText)
	}
	if out[2].To != "m" || out[2].Name != EvMessage || out[2].Err != nil {
		t.Fatalf("expected door opened notice, got %+v", out[2])
	}
	wantBroadcast(t, out[3:], EvStateUpdate)
	if update := out[3].Data.(StateUpdate); update.MazeMago[0][1] != Path {
		t.Fatalf("door should be open in the update, got %s", update.MazeMago[0][1])
	}

	snap = snapshot(t, e, id)
	if snap.ActiveRiddle != nil || snap.Grid[0][1] != Path {
		t.Fatalf("expected solved state, got %+v", snap)
	}
	for r := range before {
		for c := range before[r] {
			if (r == 0 && c == 1) || before[r][c] == snap.Grid[r][c] {
				continue
			}
			t.Fatalf("only the door should change, but [%d,%d] went from %s to %s", r, c, before[r][c], snap.Grid[r][c])
		}
	}

	out = move(e, "right")
	wantBroadcast(t, out, EvStateUpdate)
	if got := out[0].Data.(StateUpdate).MagoPos; got != (Position{0, 1}) {
		t.Fatalf("expected mover at [0,1], got %s", got)
	}
}

func TestClueAndAnswerWithoutPuzzle(t *testing.T) {
	e := newTestEngine(t, hallContent)
	pair(t, e)

	wantNotice(t, e.Handle("h", Command{Name: CmdSendClue, Arg: "psst"}), "h", ErrNoActivePuzzle)
	wantNotice(t, e.Handle("m", Command{Name: CmdSendAnswer, Arg: "ábaco"}), "m", ErrNoActivePuzzle)
}

func TestBranchChoice(t *testing.T) {
	e := newTestEngine(t, hallContent)
	id := pair(t, e)

	wantNotice(t, e.Handle("h", Command{Name: CmdChoosePath, Arg: "east"}), "h", ErrNoDecisionPending)

	solveGate(t, e)
	move(e, "right")
	move(e, "right")
	move(e, "down")

	out := move(e, "down")
	if len(out) != 4 {
		t.Fatalf("expected decision point and state update to both, got %+v", out)
	}
	wantBroadcast(t, out[:2], EvDecisionPoint)
	wantBroadcast(t, out[2:], EvStateUpdate)

	decision := out[0].Data.(DecisionPoint)
	if len(decision.Options) != 2 || decision.Options[0].ID != "east" || decision.Options[1].Name != "West Wing" {
		t.Fatalf("unexpected options %+v", decision.Options)
	}

	snap := snapshot(t, e, id)
	if !snap.AwaitingBranch || snap.Positions[Mover] != (Position{2, 2}) {
		t.Fatalf("expected to wait at [2,2], got %+v", snap)
	}

	wantNotice(t, move(e, "up"), "m", ErrAwaitingBranch)
	wantNotice(t, e.Handle("m", Command{Name: CmdChoosePath, Arg: "north"}), "m", ErrUnknownBranch)

	if !snapshot(t, e, id).AwaitingBranch {
		t.Fatal("an unknown option should keep the decision pending")
	}

	out = e.Handle("h", Command{Name: CmdChoosePath, Arg: "west"})
	wantBroadcast(t, out, EvMazeChanged)

	changed := out[0].Data.(MazeChanged)
	if changed.MagoPos != (Position{1, 1}) || changed.MazeMago[1][2] != RiddleDoor {
		t.Fatalf("expected the well door stamped into the new maze, got %+v", changed)
	}

	cat := e.Registry().Catalog().(*StaticCatalog)
	if west, _ := cat.Maze("west"); west.Grid[1][2] != Path {
		t.Fatal("the west template must not be modified")
	}

	snap = snapshot(t, e, id)
	if snap.MazeID != "west" || snap.AwaitingBranch || snap.ActiveRiddle != nil {
		t.Fatalf("expected to be in west, got %+v", snap)
	}

	out = move(e, "right")
	if len(out) != 2 || out[0].Name != EvLoadPuzzle || out[0].Data.(PuzzleLoaded).Title != "Well" {
		t.Fatalf("expected the well riddle, got %+v", out)
	}
	wantNotice(t, e.Handle("m", Command{Name: CmdChoosePath, Arg: "east"}), "m", ErrNoDecisionPending)
}

func TestUnregisteredDoor(t *testing.T) {
	e := newTestEngine(t, `
start: sealed
mazes:
- id: sealed
  entry: [0, 0]
  grid:
  - [0, 2, 0]
`)
	id := pair(t, e)

	wantNotice(t, move(e, "right"), "m", ErrUnregisteredDoor)

	snap := snapshot(t, e, id)
	if snap.ActiveRiddle != nil || snap.Positions[Mover] != (Position{0, 0}) {
		t.Fatalf("an orphan door should change nothing, got %+v", snap)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	e := newTestEngine(t, hallContent)

	first := pair(t, e)

	out := e.Handle("m2", Command{Name: CmdCreateGame})
	second := out[0].Data.(GameReady).GameID
	e.Handle("h2", Command{Name: CmdJoinGame, Arg: second})

	solveGate(t, e)

	if snapshot(t, e, first).Grid[0][1] != Path {
		t.Fatal("door should be open in the first session")
	}
	if snapshot(t, e, second).Grid[0][1] != RiddleDoor {
		t.Fatal("door should still be closed in the second session")
	}

	cat := e.Registry().Catalog().(*StaticCatalog)
	hall, _ := cat.Maze("hall")
	if hall.Grid[0][1] != Path {
		t.Fatal("the template grid must not be modified")
	}
}

func TestDisconnectEndsSession(t *testing.T) {
	for _, tc := range []struct {
		leaver, partner, key string
	}{
		{"m", "h", msgMoverLeft},
		{"h", "m", msgHelperLeft},
	} {
		t.Run(tc.leaver, func(t *testing.T) {
			e := newTestEngine(t, hallContent)
			id := pair(t, e)

			out := e.Disconnect(tc.leaver)
			if len(out) != 1 || out[0].To != tc.partner || out[0].Name != EvGameOver {
				t.Fatalf("expected one game_over to %q, got %+v", tc.partner, out)
			}
			if want := e.printer.Sprintf(tc.key); out[0].Data != want {
				t.Fatalf("expected %q, got %q", want, out[0].Data)
			}

			if _, err := e.Registry().Get(id); !errors.Is(err, ErrSessionNotFound) {
				t.Fatalf("expected session to be gone, got %v", err)
			}
			if out := e.Disconnect(tc.partner); out != nil {
				t.Fatalf("partner disconnect should be silent, got %+v", out)
			}
			wantNotice(t, e.Handle(tc.partner, Command{Name: CmdMove, Arg: "right"}), tc.partner, ErrNotInSession)
		})
	}
}

func TestDisconnectUnpaired(t *testing.T) {
	e := newTestEngine(t, hallContent)
	e.Handle("m", Command{Name: CmdCreateGame})

	if out := e.Disconnect("m"); out != nil {
		t.Fatalf("nobody should be notified, got %+v", out)
	}
	if e.Registry().Len() != 0 {
		t.Fatalf("expected no sessions, got %d", e.Registry().Len())
	}
	if out := e.Disconnect("unknown"); out != nil {
		t.Fatalf("unknown connection should be ignored, got %+v", out)
	}
}

func TestExpire(t *testing.T) {
	e := newTestEngine(t, hallContent)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e.Registry().now = func() time.Time { return now }

	stale := pair(t, e)

	now = now.Add(30 * time.Minute)
	out := e.Handle("m2", Command{Name: CmdCreateGame})
	fresh := out[0].Data.(GameReady).GameID

	out = e.Expire(now.Add(-10 * time.Minute))
	wantBroadcast(t, out, EvGameOver)

	if _, err := e.Registry().Get(stale); err == nil {
		t.Fatal("stale session should be gone")
	}
	if _, err := e.Registry().Get(fresh); err != nil {
		t.Fatalf("fresh session should survive: %v", err)
	}
	if out := e.Disconnect("m"); out != nil {
		t.Fatalf("expired session should not produce more events, got %+v", out)
	}
}

func TestActivityDelaysExpiry(t *testing.T) {
	e := newTestEngine(t, hallContent)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e.Registry().now = func() time.Time { return now }

	id := pair(t, e)

	now = now.Add(time.Hour)
	move(e, "right")

	if out := e.Expire(now.Add(-time.Minute)); len(out) != 0 {
		t.Fatalf("active session should not expire, got %+v", out)
	}
	if _, err := e.Registry().Get(id); err != nil {
		t.Fatalf("session should survive: %v", err)
	}
}

func TestRejectedCommandsDoNotDelayExpiry(t *testing.T) {
	e := newTestEngine(t, hallContent)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e.Registry().now = func() time.Time { return now }

	id := pair(t, e)

	now = now.Add(time.Hour)
	wantNotice(t, move(e, "up"), "m", ErrOutOfBounds)
	wantNotice(t, e.Handle("h", Command{Name: CmdMove, Arg: "right"}), "h", ErrWrongRole)
	wantNotice(t, e.Handle("h", Command{Name: CmdSendClue, Arg: "psst"}), "h", ErrNoActivePuzzle)

	out := e.Expire(now.Add(-time.Minute))
	wantBroadcast(t, out, EvGameOver)

	if _, err := e.Registry().Get(id); err == nil {
		t.Fatal("a session with only rejected commands should expire")
	}
}

func TestConcurrentSessions(t *testing.T) {
	e := newTestEngine(t, hallContent)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			mover, helper := fmt.Sprintf("m%d", i), fmt.Sprintf("h%d", i)
			out := e.Handle(mover, Command{Name: CmdCreateGame})
			id := out[0].Data.(GameReady).GameID
			e.Handle(helper, Command{Name: CmdJoinGame, Arg: id})
			e.Handle(mover, Command{Name: CmdMove, Arg: "right"})
			e.Handle(mover, Command{Name: CmdSendAnswer, Arg: "ábaco"})
			e.Handle(mover, Command{Name: CmdMove, Arg: "right"})
			e.Disconnect(helper)
		}()
	}
	wg.Wait()

	if n := e.Registry().Len(); n != 0 {
		t.Fatalf("expected every session to be torn down, %d left", n)
	}
}

func TestDefaultContentScenario(t *testing.T) {
	cat, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	e := NewEngine(NewRegistry(cat), WithPicker(func(int) int { return 0 }))
	id := pair(t, e)

	out := move(e, "right")
	wantBroadcast(t, out, EvStateUpdate)
	if got := out[0].Data.(StateUpdate).MagoPos; got != (Position{1, 2}) {
		t.Fatalf("expected mover at [1,2], got %s", got)
	}

	out = move(e, "right")
	if len(out) != 2 || out[0].Name != EvLoadPuzzle || out[1].Name != EvLoadPuzzle {
		t.Fatalf("expected load_puzzle to both, got %+v", out)
	}
	if title := out[0].Data.(PuzzleLoaded).Title; title != "El Relicario de la Memoria" {
		t.Fatalf("unexpected riddle %q", title)
	}

	out = e.Handle("h", Command{Name: CmdSendClue, Arg: "inicio =2018"})
	if out[0].To != "m" || out[0].Name != EvClueReceived || out[0].Data != "inicio =2018" {
		t.Fatalf("unexpected clue delivery %+v", out[0])
	}

	out = e.Handle("m", Command{Name: CmdSendAnswer, Arg: "99"})
	if out[0].Data.(AnswerResult).Correct {
		t.Fatal("99 should be rejected")
	}

	out = e.Handle("m", Command{Name: CmdSendAnswer, Arg: "1"})
	res := out[0].Data.(AnswerResult)
	if !res.Correct || res.LoveSpellText == "" {
		t.Fatalf("expected a rewarded success, got %+v", res)
	}

	last := out[len(out)-1]
	if last.Name != EvStateUpdate || last.Data.(StateUpdate).MazeMago[1][3] != Path {
		t.Fatalf("expected the door at [1,3] to be open, got %+v", last)
	}
	if snapshot(t, e, id).ActiveRiddle != nil {
		t.Fatal("no riddle should be active")
	}
}

package labyrinth

import (
	"encoding/json"
	"fmt"
)

// Role is the part a connection plays in a session.
type Role int

const (
	Mover Role = iota
	Helper
)

var roles = []Role{Mover, Helper}

func (r Role) String() string {
	switch r {
	case Mover:
		return "mago"
	case Helper:
		return "sacerdotisa"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Other returns the partner role.
func (r Role) Other() Role {
	if r == Mover {
		return Helper
	}
	return Mover
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// Inbound command names.
const (
	CmdCreateGame = "create_game"
	CmdJoinGame   = "join_game"
	CmdMove       = "move_player"
	CmdSendClue   = "send_clue"
	CmdSendAnswer = "send_answer"
	CmdChoosePath = "choose_path"
)

// Outbound event names.
const (
	EvGameReady     = "game_ready"
	EvStateUpdate   = "game_state_update"
	EvLoadPuzzle    = "load_puzzle"
	EvClueReceived  = "clue_received"
	EvAnswerResult  = "answer_result"
	EvDecisionPoint = "decision_point_reached"
	EvMazeChanged   = "maze_changed"
	EvMessage       = "message"
	EvGameOver      = "game_over"
)

// Command is one inbound request from a connection. Arg carries the single
// string argument of the command, if any.
type Command struct {
	Name string `json:"type"`
	Arg  string `json:"data,omitempty"`
}

// Outbound is an event addressed to a single connection. Err is set on
// notices produced by a rejected command and is never sent to the client.
type Outbound struct {
	To   string `json:"-"`
	Name string `json:"type"`
	Data any    `json:"data,omitempty"`
	Err  error  `json:"-"`
}

type GameReady struct {
	Role      Role     `json:"role"`
	GameID    string   `json:"gameId"`
	IsHost    bool     `json:"isHost"`
	MazeData  Grid     `json:"mazeData"`
	PlayerPos Position `json:"playerPos"`
}

type StateUpdate struct {
	MagoPos         Position `json:"magoPos"`
	SacerdotisaPos  Position `json:"sacerdotisaPos"`
	MazeMago        Grid     `json:"mazeMago"`
	MazeSacerdotisa Grid     `json:"mazeSacerdotisa"`
}

type PuzzleLoaded struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	GuesserInfo string          `json:"guesserInfo,omitempty"`
	PisterInfo  *HelperBriefing `json:"pisterInfo,omitempty"`
}

type AnswerResult struct {
	Correct       bool   `json:"correct"`
	Feedback      string `json:"feedback"`
	LoveSpellText string `json:"loveSpellText,omitempty"`
}

type OptionView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type DecisionPoint struct {
	Message string       `json:"message"`
	Options []OptionView `json:"options"`
}

type MazeChanged struct {
	Message        string   `json:"message"`
	MazeMago       Grid     `json:"mazeMago"`
	MagoPos        Position `json:"magoPos"`
	SacerdotisaPos Position `json:"sacerdotisaPos"`
}

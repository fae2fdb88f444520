package labyrinth

import (
	"sort"
)

// Maze is a grid template plus the position a Mover enters it at. Riddle
// doors are not part of the template; they are stamped in from the riddles
// registered for the maze when a session starts using it.
type Maze struct {
	ID    string
	Name  string
	Grid  Grid
	Entry Position
}

// HelperBriefing is what the clue-giver sees when a riddle is loaded.
type HelperBriefing struct {
	Preamble string   `json:"preamble"`
	Clues    []string `json:"clues"`
}

// Action is applied to the session grid when a riddle is solved.
type Action struct {
	Kind string
	Door Position
}

const ActionOpenDoor = "open_door"

type Riddle struct {
	ID                string
	MazeID            string
	Trigger           Position
	Title             string
	Description       string
	Helper            HelperBriefing
	Mover             string
	Answer            string
	FeedbackCorrect   string
	FeedbackIncorrect string
	Rewards           []string
	OnSolve           Action
}

// BranchOption is a selectable continuation offered at a Branch cell.
type BranchOption struct {
	ID    string
	Name  string
	Grid  Grid
	Entry Position
}

// Catalog is the read-only view of static content the engine depends on.
type Catalog interface {
	// StartMaze is the maze every new session begins in.
	StartMaze() Maze
	// HelperView is the decorative grid shown behind the Helper's screen.
	HelperView() Grid
	// HelperEntry is the Helper's symbolic position.
	HelperEntry() Position
	FindRiddle(mazeID string, pos Position) (*Riddle, bool)
	Riddles(mazeID string) []*Riddle
	FindBranchOptions(mazeID string, pos Position) []BranchOption
}

type riddleKey struct {
	maze string
	pos  Position
}

// StaticCatalog is a Catalog built once from content and never modified.
type StaticCatalog struct {
	start       string
	mazes       map[string]Maze
	helperView  Grid
	helperEntry Position
	riddles     map[riddleKey]*Riddle
	byMaze      map[string][]*Riddle
	branches    []string
}

func (c *StaticCatalog) StartMaze() Maze {
	return c.mazes[c.start]
}

func (c *StaticCatalog) HelperView() Grid {
	return c.helperView
}

func (c *StaticCatalog) HelperEntry() Position {
	return c.helperEntry
}

func (c *StaticCatalog) Maze(id string) (Maze, bool) {
	m, ok := c.mazes[id]
	return m, ok
}

func (c *StaticCatalog) FindRiddle(mazeID string, pos Position) (*Riddle, bool) {
	r, ok := c.riddles[riddleKey{maze: mazeID, pos: pos}]
	return r, ok
}

func (c *StaticCatalog) Riddles(mazeID string) []*Riddle {
	return c.byMaze[mazeID]
}

// FindBranchOptions returns the options offered at a decision point. Every
// Branch cell currently offers the same shared set.
func (c *StaticCatalog) FindBranchOptions(mazeID string, pos Position) []BranchOption {
	out := make([]BranchOption, 0, len(c.branches))
	for _, id := range c.branches {
		m := c.mazes[id]
		out = append(out, BranchOption{
			ID:    m.ID,
			Name:  m.Name,
			Grid:  m.Grid,
			Entry: m.Entry,
		})
	}
	return out
}

// MazeIDs lists every maze in the catalog, sorted.
func (c *StaticCatalog) MazeIDs() []string {
	ids := make([]string, 0, len(c.mazes))
	for id := range c.mazes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package labyrinth

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Cell is the type of a single maze square. The numeric values are the ones
// the browser client renders, so they must not be reordered.
type Cell int

const (
	Path       Cell = 0
	Wall       Cell = 1
	RiddleDoor Cell = 2
	Branch     Cell = 3
)

func (c Cell) Valid() bool {
	switch c {
	case Path, Wall, RiddleDoor, Branch:
		return true
	}
	return false
}

func (c Cell) String() string {
	switch c {
	case Path:
		return "path"
	case Wall:
		return "wall"
	case RiddleDoor:
		return "riddle-door"
	case Branch:
		return "branch"
	default:
		return fmt.Sprintf("cell(%d)", int(c))
	}
}

// Position is a (row, column) pair. It travels as a two element array,
// both on the wire and in content files.
type Position struct {
	Row int
	Col int
}

func (p Position) String() string {
	return fmt.Sprintf("[%d,%d]", p.Row, p.Col)
}

func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.Row, p.Col})
}

func (p *Position) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("position: %w", err)
	}
	p.Row, p.Col = pair[0], pair[1]
	return nil
}

func (p *Position) UnmarshalYAML(value *yaml.Node) error {
	var pair []int
	if err := value.Decode(&pair); err != nil {
		return fmt.Errorf("line %d: position: %w", value.Line, err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("line %d: position needs exactly 2 values, got %d", value.Line, len(pair))
	}
	p.Row, p.Col = pair[0], pair[1]
	return nil
}

// Direction is one of the four cardinal moves.
type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case Up, Down, Left, Right:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDirection, s)
}

// Step applies d to p. It does not check bounds.
func (p Position) Step(d Direction) Position {
	switch d {
	case Up:
		p.Row--
	case Down:
		p.Row++
	case Left:
		p.Col--
	case Right:
		p.Col++
	}
	return p
}

// Grid is a rectangular matrix of cells, indexed [row][col].
type Grid [][]Cell

// NewGrid builds a Grid from raw cell codes, rejecting ragged rows and
// unknown codes.
func NewGrid(rows [][]int) (Grid, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("grid is empty")
	}

	width := len(rows[0])
	g := make(Grid, len(rows))
	for r, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d cells, expected %d", r, len(row), width)
		}
		g[r] = make([]Cell, width)
		for c, v := range row {
			cell := Cell(v)
			if !cell.Valid() {
				return nil, fmt.Errorf("row %d col %d: unknown cell code %d", r, c, v)
			}
			g[r][c] = cell
		}
	}
	return g, nil
}

func (g Grid) Rows() int {
	return len(g)
}

func (g Grid) Cols() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

func (g Grid) InBounds(p Position) bool {
	return p.Row >= 0 && p.Row < g.Rows() && p.Col >= 0 && p.Col < g.Cols()
}

// Classify returns the cell at p, or ErrOutOfBounds.
func (g Grid) Classify(p Position) (Cell, error) {
	if !g.InBounds(p) {
		return Wall, fmt.Errorf("%w: %s", ErrOutOfBounds, p)
	}
	return g[p.Row][p.Col], nil
}

// Clone returns a deep copy, so templates loaded from content are never
// mutated by a running session.
func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for r := range g {
		out[r] = append([]Cell(nil), g[r]...)
	}
	return out
}

// OpenDoor turns the RiddleDoor at p into Path. It reports false and leaves
// the grid alone when p is not a RiddleDoor.
func (g Grid) OpenDoor(p Position) bool {
	if cell, err := g.Classify(p); err != nil || cell != RiddleDoor {
		return false
	}
	g[p.Row][p.Col] = Path
	return true
}

// stampDoor marks p as a RiddleDoor. Out of range positions are ignored;
// content validation rejects them up front.
func (g Grid) stampDoor(p Position) {
	if g.InBounds(p) {
		g[p.Row][p.Col] = RiddleDoor
	}
}

func (g Grid) count(want Cell) int {
	n := 0
	for r := range g {
		for _, c := range g[r] {
			if c == want {
				n++
			}
		}
	}
	return n
}

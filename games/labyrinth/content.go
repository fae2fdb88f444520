package labyrinth

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"
)

//go:embed content/default.yaml
var defaultContent embed.FS

type contentFile struct {
	Start       string              `yaml:"start"`
	HelperEntry *Position           `yaml:"helper_entry"`
	HelperView  [][]int             `yaml:"helper_view"`
	Branches    []string            `yaml:"branches"`
	Mazes       []mazeEntry         `yaml:"mazes"`
	RewardPools map[string][]string `yaml:"reward_pools"`
	Riddles     []riddleEntry       `yaml:"riddles"`
}

type mazeEntry struct {
	ID    string   `yaml:"id"`
	Name  string   `yaml:"name"`
	Entry Position `yaml:"entry"`
	Grid  [][]int  `yaml:"grid"`
}

type riddleEntry struct {
	ID          string         `yaml:"id"`
	Maze        string         `yaml:"maze"`
	Trigger     Position       `yaml:"trigger"`
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	Helper      HelperBriefing `yaml:"helper"`
	Mover       string         `yaml:"mover"`
	Answer      string         `yaml:"answer"`
	Feedback    struct {
		Correct   string `yaml:"correct"`
		Incorrect string `yaml:"incorrect"`
	} `yaml:"feedback"`
	RewardPool string   `yaml:"reward_pool"`
	Rewards    []string `yaml:"rewards"`
	OnSolve    *struct {
		Kind string   `yaml:"kind"`
		Door Position `yaml:"door"`
	} `yaml:"on_solve"`
}

// DefaultCatalog loads the content shipped with the binary.
func DefaultCatalog() (*StaticCatalog, error) {
	data, err := defaultContent.ReadFile("content/default.yaml")
	if err != nil {
		return nil, err
	}
	return LoadCatalog(data)
}

// LoadCatalogFile loads content from a YAML file on disk.
func LoadCatalogFile(path string) (*StaticCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c, err := LoadCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// LoadCatalog parses and validates content. Unknown keys are rejected so
// typos in hand written files surface at start-up.
func LoadCatalog(data []byte) (*StaticCatalog, error) {
	var f contentFile

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse content: %w", err)
	}

	c := &StaticCatalog{
		start:    f.Start,
		mazes:    make(map[string]Maze, len(f.Mazes)),
		riddles:  make(map[riddleKey]*Riddle, len(f.Riddles)),
		byMaze:   make(map[string][]*Riddle),
		branches: f.Branches,
	}

	for _, m := range f.Mazes {
		if m.ID == "" {
			return nil, errors.New("maze without id")
		}
		if _, ok := c.mazes[m.ID]; ok {
			return nil, fmt.Errorf("maze %q: defined twice", m.ID)
		}

		grid, err := NewGrid(m.Grid)
		if err != nil {
			return nil, fmt.Errorf("maze %q: %w", m.ID, err)
		}

		cell, err := grid.Classify(m.Entry)
		if err != nil {
			return nil, fmt.Errorf("maze %q: entry: %w", m.ID, err)
		}
		// A Path entry is itself the reachable path every maze needs.
		if cell != Path {
			return nil, fmt.Errorf("maze %q: entry %s is a %s, not a path", m.ID, m.Entry, cell)
		}

		name := m.Name
		if name == "" {
			name = m.ID
		}

		c.mazes[m.ID] = Maze{ID: m.ID, Name: name, Grid: grid, Entry: m.Entry}
	}

	if _, ok := c.mazes[c.start]; !ok {
		return nil, fmt.Errorf("start maze %q is not defined", c.start)
	}

	for _, id := range c.branches {
		if _, ok := c.mazes[id]; !ok {
			return nil, fmt.Errorf("branch option %q is not a defined maze", id)
		}
	}
	if len(c.branches) == 0 {
		for _, id := range c.MazeIDs() {
			if c.mazes[id].Grid.count(Branch) > 0 {
				return nil, fmt.Errorf("maze %q has branch cells but no branch options are defined", id)
			}
		}
	}

	if f.HelperView != nil {
		view, err := NewGrid(f.HelperView)
		if err != nil {
			return nil, fmt.Errorf("helper view: %w", err)
		}
		c.helperView = view
	} else {
		c.helperView = c.mazes[c.start].Grid
	}

	if f.HelperEntry != nil {
		c.helperEntry = *f.HelperEntry
	}

	seen := make(map[string]bool)
	for _, e := range f.Riddles {
		r, err := buildRiddle(e, f.RewardPools)
		if err != nil {
			return nil, fmt.Errorf("riddle %q in maze %q: %w", e.ID, e.Maze, err)
		}

		m, ok := c.mazes[r.MazeID]
		if !ok {
			return nil, fmt.Errorf("riddle %q: maze %q is not defined", r.ID, r.MazeID)
		}

		cell, err := m.Grid.Classify(r.Trigger)
		if err != nil {
			return nil, fmt.Errorf("riddle %q in maze %q: trigger: %w", r.ID, r.MazeID, err)
		}
		if cell == Wall || cell == Branch {
			return nil, fmt.Errorf("riddle %q in maze %q: trigger %s is a %s", r.ID, r.MazeID, r.Trigger, cell)
		}
		if !m.Grid.InBounds(r.OnSolve.Door) {
			return nil, fmt.Errorf("riddle %q in maze %q: door %s: %w", r.ID, r.MazeID, r.OnSolve.Door, ErrOutOfBounds)
		}

		if seen[r.MazeID+"/"+r.ID] {
			return nil, fmt.Errorf("riddle %q in maze %q: defined twice", r.ID, r.MazeID)
		}
		seen[r.MazeID+"/"+r.ID] = true

		key := riddleKey{maze: r.MazeID, pos: r.Trigger}
		if other, ok := c.riddles[key]; ok {
			return nil, fmt.Errorf("riddle %q in maze %q: trigger %s already used by %q", r.ID, r.MazeID, r.Trigger, other.ID)
		}

		c.riddles[key] = r
		c.byMaze[r.MazeID] = append(c.byMaze[r.MazeID], r)
	}

	return c, nil
}

func buildRiddle(e riddleEntry, pools map[string][]string) (*Riddle, error) {
	if e.ID == "" {
		return nil, errors.New("missing id")
	}
	if strings.TrimSpace(e.Answer) == "" {
		return nil, errors.New("missing answer")
	}

	r := &Riddle{
		ID:                e.ID,
		MazeID:            e.Maze,
		Trigger:           e.Trigger,
		Title:             e.Title,
		Description:       e.Description,
		Helper:            e.Helper,
		Mover:             e.Mover,
		Answer:            e.Answer,
		FeedbackCorrect:   e.Feedback.Correct,
		FeedbackIncorrect: e.Feedback.Incorrect,
		OnSolve:           Action{Kind: ActionOpenDoor, Door: e.Trigger},
	}

	if e.RewardPool != "" {
		pool, ok := pools[e.RewardPool]
		if !ok {
			return nil, fmt.Errorf("reward pool %q is not defined", e.RewardPool)
		}
		r.Rewards = append(r.Rewards, pool...)
	}
	r.Rewards = append(r.Rewards, e.Rewards...)

	if e.OnSolve != nil {
		if e.OnSolve.Kind != ActionOpenDoor {
			return nil, fmt.Errorf("unsupported on_solve kind %q", e.OnSolve.Kind)
		}
		r.OnSolve.Door = e.OnSolve.Door
	}

	return r, nil
}

// OrphanDoors lists riddle door cells baked into maze templates that have no
// riddle registered at that position. Moving into one yields an
// "unregistered door" notice at runtime.
func (c *StaticCatalog) OrphanDoors() map[string][]Position {
	out := make(map[string][]Position)
	for _, id := range c.MazeIDs() {
		g := c.mazes[id].Grid
		for r := range g {
			for col, cell := range g[r] {
				if cell != RiddleDoor {
					continue
				}
				p := Position{Row: r, Col: col}
				if _, ok := c.riddles[riddleKey{maze: id, pos: p}]; !ok {
					out[id] = append(out[id], p)
				}
			}
		}
	}
	return out
}

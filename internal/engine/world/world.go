// Package world maintains the engine's persistent terrain memory under fog of
// war. Each unit reveals a disc of cells per tick; everything ever revealed is
// remembered, with walls permanent and destroyed obstacles tracked so the
// planner does not re-target freshly cleared ground.
package world

import (
	"sort"

	"gridfire.ai/internal/arena"
)

// TileState classifies a remembered cell.
type TileState int

const (
	Unknown TileState = iota
	Empty
	Wall
	Obstacle
)

func (t TileState) String() string {
	switch t {
	case Empty:
		return "EMPTY"
	case Wall:
		return "WALL"
	case Obstacle:
		return "OBSTACLE"
	default:
		return "UNKNOWN"
	}
}

type tileInfo struct {
	state    TileState
	lastSeen uint64
	visible  bool
}

// Model is the accumulated terrain map. It is rebuilt additively from each
// snapshot; it never forgets a revealed cell.
type Model struct {
	tiles        map[arena.Cell]tileInfo
	destroyed    map[arena.Cell]uint64 // obstacle cell -> tick it became empty
	width        int
	height       int
	visionRadius int
	tick         uint64
}

func New(visionRadius int) *Model {
	return &Model{
		tiles:        make(map[arena.Cell]tileInfo),
		destroyed:    make(map[arena.Cell]uint64),
		visionRadius: visionRadius,
	}
}

// Update merges one snapshot into the map: every cell within a living unit's
// vision disc is (re)classified from the snapshot, and globally reported walls
// and obstacles are unioned in even when outside anyone's vision.
func (m *Model) Update(snap *arena.Snapshot, tick uint64) {
	m.tick = tick
	m.width = snap.MapWidth
	m.height = snap.MapHeight

	for c, ti := range m.tiles {
		ti.visible = false
		m.tiles[c] = ti
	}

	walls := make(map[arena.Cell]struct{}, len(snap.Walls))
	for _, c := range snap.Walls {
		walls[c] = struct{}{}
	}
	obstacles := make(map[arena.Cell]struct{}, len(snap.Obstacles))
	for _, c := range snap.Obstacles {
		obstacles[c] = struct{}{}
	}

	for _, u := range snap.Units {
		if !u.Alive {
			continue
		}
		m.sweepVision(u.Pos, walls, obstacles, tick)
	}

	// Global terrain reports reveal walls and obstacles beyond direct vision.
	for c := range walls {
		if !m.InBounds(c) {
			continue
		}
		m.observe(c, Wall, tick)
	}
	for c := range obstacles {
		if !m.InBounds(c) {
			continue
		}
		m.observe(c, Obstacle, tick)
	}
}

// sweepVision classifies every in-bounds cell within the Euclidean vision
// radius of center.
func (m *Model) sweepVision(center arena.Cell, walls, obstacles map[arena.Cell]struct{}, tick uint64) {
	r := m.visionRadius
	rsq := r * r
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			if dx*dx+dy*dy > rsq {
				continue
			}
			c := arena.Cell{X: center.X + dx, Y: center.Y + dy}
			if !m.InBounds(c) {
				continue
			}
			state := Empty
			if _, ok := walls[c]; ok {
				state = Wall
			} else if _, ok := obstacles[c]; ok {
				state = Obstacle
			}
			m.observe(c, state, tick)
		}
	}
}

func (m *Model) observe(c arena.Cell, state TileState, tick uint64) {
	prev, known := m.tiles[c]
	// Walls are permanent: once seen, a cell never reverts to anything else.
	if known && prev.state == Wall {
		m.tiles[c] = tileInfo{state: Wall, lastSeen: tick, visible: true}
		return
	}
	if known && prev.state == Obstacle && state == Empty {
		m.destroyed[c] = tick
	}
	m.tiles[c] = tileInfo{state: state, lastSeen: tick, visible: true}
}

// Classify returns the remembered state of c; Unknown if never observed.
func (m *Model) Classify(c arena.Cell) TileState {
	ti, ok := m.tiles[c]
	if !ok {
		return Unknown
	}
	return ti.state
}

// Known reports whether c has ever been observed.
func (m *Model) Known(c arena.Cell) bool {
	_, ok := m.tiles[c]
	return ok
}

// Visible reports whether c was inside a living unit's vision disc on the
// most recent update. Remembered-but-unseen cells return false.
func (m *Model) Visible(c arena.Cell) bool {
	return m.tiles[c].visible
}

// LastSeen returns the tick c was last observed. ok is false for cells never
// observed.
func (m *Model) LastSeen(c arena.Cell) (tick uint64, ok bool) {
	ti, ok := m.tiles[c]
	return ti.lastSeen, ok
}

// Blocked reports whether c is impassable for movement and placement.
// Unknown cells count as blocked: the engine biases safety over aggression.
func (m *Model) Blocked(c arena.Cell) bool {
	switch m.Classify(c) {
	case Empty:
		return false
	default:
		return true
	}
}

func (m *Model) Wall(c arena.Cell) bool     { return m.Classify(c) == Wall }
func (m *Model) Obstacle(c arena.Cell) bool { return m.Classify(c) == Obstacle }

// WasRecentlyCleared reports whether an obstacle at c was destroyed within
// cooldown ticks of tick. Used to keep the planner off already-farmed ground.
func (m *Model) WasRecentlyCleared(c arena.Cell, tick uint64, cooldown int) bool {
	at, ok := m.destroyed[c]
	if !ok {
		return false
	}
	return tick-at < uint64(cooldown)
}

// Frontier returns every unknown in-bounds cell adjacent to a known cell,
// sorted for deterministic iteration.
func (m *Model) Frontier() []arena.Cell {
	seen := make(map[arena.Cell]struct{})
	var out []arena.Cell
	for c := range m.tiles {
		for _, d := range arena.Dirs4 {
			n := c.Add(d)
			if !m.InBounds(n) {
				continue
			}
			if _, known := m.tiles[n]; known {
				continue
			}
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	sortCells(out)
	return out
}

// KnownObstacles returns every remembered obstacle cell, sorted.
func (m *Model) KnownObstacles() []arena.Cell {
	var out []arena.Cell
	for c, ti := range m.tiles {
		if ti.state == Obstacle {
			out = append(out, c)
		}
	}
	sortCells(out)
	return out
}

func (m *Model) InBounds(c arena.Cell) bool {
	return c.X >= 0 && c.X < m.width && c.Y >= 0 && c.Y < m.height
}

func (m *Model) Bounds() (w, h int) { return m.width, m.height }

func (m *Model) Tick() uint64 { return m.tick }

func sortCells(cs []arena.Cell) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Y != cs[j].Y {
			return cs[i].Y < cs[j].Y
		}
		return cs[i].X < cs[j].X
	})
}

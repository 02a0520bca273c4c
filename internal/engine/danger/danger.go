// Package danger computes, per tick, which cells the engine must treat as
// lethal: blast zones of armed bombs (with chain reactions folded in) and a
// continuous threat score around awake hostile movers.
//
// The field is rebuilt from scratch on every observation; nothing here
// survives a tick, so a detonated bomb simply stops existing. Blast rays
// follow the arena rules: a wall absorbs the ray and is never part of the
// zone, a destructible obstacle takes the hit and ends the ray, and another
// bomb ends the ray while folding its whole zone into the current one.
package danger

import (
	"gridfire.ai/internal/arena"
	"gridfire.ai/internal/engine/nav"
	"gridfire.ai/internal/engine/world"
)

// Params are the mover-threat tunables. Blast behavior is fixed by the arena
// rules and carries no knobs.
type Params struct {
	// MobDangerRadius is the Manhattan radius around an awake mover inside
	// which threat is nonzero.
	MobDangerRadius int
	// MobThreatLimit is the exclusive threshold above which a cell counts as
	// unsafe. With 1/(d+1) decay and the default 0.5 only the mover's own
	// cell trips it; nearby cells stay walkable but cost score.
	MobThreatLimit float64
}

// DefaultParams mirrors the arena's observed mover behavior.
func DefaultParams() Params {
	return Params{MobDangerRadius: 2, MobThreatLimit: 0.5}
}

// Zone is one bomb's blast: every cell it will affect, transitively closed
// over chain reactions, and the ticks remaining until it detonates.
type Zone struct {
	Origin   arena.Cell
	Deadline int
	Cells    map[arena.Cell]bool
}

// Field is the per-tick danger state. It is built by Update and read-only
// afterwards, so concurrent planners may query it freely.
type Field struct {
	params Params

	zones    []Zone
	deadline map[arena.Cell]int // earliest detonation covering the cell
	threat   map[arena.Cell]float64

	model *world.Model
	snap  *arena.Snapshot
}

func New(p Params) *Field {
	return &Field{
		params:   p,
		deadline: map[arena.Cell]int{},
		threat:   map[arena.Cell]float64{},
	}
}

// Update rebuilds every zone and the mover-threat map from the snapshot. The
// model must already be updated for the same tick; terrain queries during ray
// casting go through it.
func (f *Field) Update(m *world.Model, snap *arena.Snapshot) {
	f.model = m
	f.snap = snap
	f.zones = f.zones[:0]
	f.deadline = make(map[arena.Cell]int, 32)
	f.threat = make(map[arena.Cell]float64, 32)

	for _, b := range snap.Bombs {
		cells := f.castZone(b.Pos, b.Range, map[arena.Cell]bool{})
		f.zones = append(f.zones, Zone{Origin: b.Pos, Deadline: b.FuseTicks, Cells: cells})
		for c := range cells {
			if d, ok := f.deadline[c]; !ok || b.FuseTicks < d {
				f.deadline[c] = b.FuseTicks
			}
		}
	}

	for _, mb := range snap.Mobs {
		if !mb.Awake() {
			continue
		}
		r := f.params.MobDangerRadius
		for dx := -r; dx <= r; dx++ {
			for dy := -r; dy <= r; dy++ {
				d := abs(dx) + abs(dy)
				if d > r {
					continue
				}
				c := arena.Cell{X: mb.Pos.X + dx, Y: mb.Pos.Y + dy}
				if !snap.InBounds(c) {
					continue
				}
				if v := 1.0 / float64(d+1); v > f.threat[c] {
					f.threat[c] = v
				}
			}
		}
	}
}

// castZone walks the four rays from origin and returns the affected set.
// processed guards against chain cycles; each cell hosting a bomb is expanded
// at most once per top-level cast.
func (f *Field) castZone(origin arena.Cell, rng int, processed map[arena.Cell]bool) map[arena.Cell]bool {
	processed[origin] = true
	cells := map[arena.Cell]bool{origin: true}

	for _, dir := range arena.Dirs4 {
		for step := 1; step <= rng; step++ {
			c := arena.Cell{X: origin.X + dir.X*step, Y: origin.Y + dir.Y*step}
			if !f.snap.InBounds(c) {
				break
			}
			if f.model.Wall(c) {
				break
			}
			if ob, found := f.bombAt(c); found {
				if !processed[c] {
					for cc := range f.castZone(ob.Pos, ob.Range, processed) {
						cells[cc] = true
					}
				}
				cells[c] = true
				break
			}
			cells[c] = true
			if f.model.Obstacle(c) {
				break
			}
		}
	}
	return cells
}

func (f *Field) bombAt(c arena.Cell) (arena.Bomb, bool) {
	for _, b := range f.snap.Bombs {
		if b.Pos == c {
			return b, true
		}
	}
	return arena.Bomb{}, false
}

// IsSafe reports whether a unit standing on c survives the next horizon
// ticks: no zone covering c detonates within the horizon, and the mover
// threat stays at or below the limit.
func (f *Field) IsSafe(c arena.Cell, horizon int) bool {
	if d, ok := f.deadline[c]; ok && d <= horizon {
		return false
	}
	return f.threat[c] <= f.params.MobThreatLimit
}

// ThreatAt returns the mover-threat score at c, zero when no awake mover is
// near. Scoring uses this as a soft penalty well below the IsSafe limit.
func (f *Field) ThreatAt(c arena.Cell) float64 { return f.threat[c] }

// Deadline returns the earliest detonation tick covering c.
func (f *Field) Deadline(c arena.Cell) (int, bool) {
	d, ok := f.deadline[c]
	return d, ok
}

// Zones returns the per-bomb blast zones of the current tick.
func (f *Field) Zones() []Zone { return f.zones }

// BlastPattern returns the zone a new placement at origin with the given
// range would produce, chained against the bombs already on the field. Used
// for scoring candidates and for escape verification before committing to a
// placement.
func (f *Field) BlastPattern(origin arena.Cell, rng int) map[arena.Cell]bool {
	return f.castZone(origin, rng, map[arena.Cell]bool{})
}

// FindEscape searches outward from start for the nearest cell that is outside
// blast and safe on the existing field, walking only through known clear
// terrain and around bombs, awake movers and enemy units. origin is the cell
// the new bomb will occupy; it can be departed from but never re-entered.
// Friendly units do not block the search, every one of them replans each
// tick. Returns false when no such cell exists within maxSteps.
func (f *Field) FindEscape(origin arena.Cell, blast map[arena.Cell]bool, start arena.Cell, maxSteps int) (arena.Cell, bool) {
	passable := func(c arena.Cell) bool {
		if c == origin {
			return false
		}
		if f.model.Blocked(c) {
			return false
		}
		return !f.snap.BombAt(c) && !f.snap.AwakeMobAt(c) && !f.snap.EnemyAt(c)
	}
	accept := func(c arena.Cell) bool {
		return !blast[c] && f.IsSafe(c, maxSteps)
	}
	path, ok := nav.FindNearest(start, passable, accept, maxSteps)
	if !ok {
		return arena.Cell{}, false
	}
	if len(path) == 0 {
		return start, true
	}
	return path[len(path)-1], true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

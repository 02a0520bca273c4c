// Package arena holds the value types shared by every layer of the engine:
// grid cells and the typed per-tick snapshot produced at the transport
// boundary. Snapshots are immutable once built; planning code only reads them.
package arena

// Cell is an integer grid coordinate. It is a value type and is used as a map
// key throughout the engine.
type Cell struct {
	X int
	Y int
}

func (c Cell) ToArray() [2]int { return [2]int{c.X, c.Y} }

func CellFromArray(a [2]int) Cell { return Cell{X: a[0], Y: a[1]} }

// Dirs4 is the fixed neighbor-visitation order used by every search in the
// engine. Keeping one order everywhere makes path and escape selection
// deterministic.
var Dirs4 = [4]Cell{{X: 0, Y: 1}, {X: 0, Y: -1}, {X: 1, Y: 0}, {X: -1, Y: 0}}

func (c Cell) Add(d Cell) Cell { return Cell{X: c.X + d.X, Y: c.Y + d.Y} }

func Manhattan(a, b Cell) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// MobKind distinguishes hostile mover behavior. Ghosts traverse obstacles,
// patrols do not; both kill on contact while awake.
type MobKind string

const (
	MobGhost  MobKind = "GHOST"
	MobPatrol MobKind = "PATROL"
)

// Unit is one of our own controllable units.
type Unit struct {
	ID          string
	Pos         Cell
	Alive       bool
	Ready       bool // false while the arena is still executing a prior path
	Bombs       int  // placements currently available
	Armor       int
	ShieldTicks int // spawn-protection ticks remaining
}

// Enemy is an opposing team's unit. Only position and shield state are
// observable.
type Enemy struct {
	ID          string
	Pos         Cell
	ShieldTicks int
}

// Mob is a neutral hostile mover. DormantTicks > 0 means it is asleep and
// harmless (it neither kills on contact nor blocks movement).
type Mob struct {
	ID           string
	Pos          Cell
	Kind         MobKind
	DormantTicks int
}

func (m Mob) Awake() bool { return m.DormantTicks <= 0 }

// Bomb is an armed placement ticking toward detonation. FuseTicks is relative
// to the snapshot's tick.
type Bomb struct {
	Pos       Cell
	Range     int
	FuseTicks int
}

// Snapshot is one tick's observation, parsed and validated at the transport
// boundary. The engine never looks at wire JSON; a snapshot either arrived
// complete or the cycle is skipped.
type Snapshot struct {
	Tick      uint64
	Round     string
	Score     int
	MapWidth  int
	MapHeight int

	Units     []Unit
	Enemies   []Enemy
	Mobs      []Mob
	Bombs     []Bomb
	Walls     []Cell
	Obstacles []Cell
}

func (s *Snapshot) InBounds(c Cell) bool {
	return c.X >= 0 && c.X < s.MapWidth && c.Y >= 0 && c.Y < s.MapHeight
}

// AliveUnits returns our living units in stable (input) order.
func (s *Snapshot) AliveUnits() []Unit {
	out := make([]Unit, 0, len(s.Units))
	for _, u := range s.Units {
		if u.Alive {
			out = append(out, u)
		}
	}
	return out
}

// UnitByID returns the unit with the given id, or nil.
func (s *Snapshot) UnitByID(id string) *Unit {
	for i := range s.Units {
		if s.Units[i].ID == id {
			return &s.Units[i]
		}
	}
	return nil
}

// BombAt reports whether an armed placement sits on c.
func (s *Snapshot) BombAt(c Cell) bool {
	for _, b := range s.Bombs {
		if b.Pos == c {
			return true
		}
	}
	return false
}

// AwakeMobAt reports whether an awake mover sits on c.
func (s *Snapshot) AwakeMobAt(c Cell) bool {
	for _, m := range s.Mobs {
		if m.Awake() && m.Pos == c {
			return true
		}
	}
	return false
}

// EnemyAt reports whether an enemy unit sits on c.
func (s *Snapshot) EnemyAt(c Cell) bool {
	for _, e := range s.Enemies {
		if e.Pos == c {
			return true
		}
	}
	return false
}

package protocol

import (
	"fmt"

	"gridfire.ai/internal/arena"
)

// ToSnapshot converts a decoded OBS into the typed snapshot the engine
// plans against. Any malformed field fails the whole observation; the
// caller treats that as a skipped cycle rather than planning on garbage.
func ToSnapshot(m *ObsMsg) (*arena.Snapshot, error) {
	w, h := m.MapSize[0], m.MapSize[1]
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("bad map_size %v", m.MapSize)
	}
	cellAt := func(raw [2]int, what string) (arena.Cell, error) {
		c := arena.CellFromArray(raw)
		if c.X < 0 || c.Y < 0 || c.X >= w || c.Y >= h {
			return c, fmt.Errorf("%s out of bounds at %v", what, raw)
		}
		return c, nil
	}

	snap := &arena.Snapshot{
		Tick:      m.Tick,
		Round:     m.Round,
		Score:     m.RawScore,
		MapWidth:  w,
		MapHeight: h,
	}

	for _, u := range m.Units {
		if u.ID == "" {
			return nil, fmt.Errorf("unit with empty id")
		}
		pos, err := cellAt(u.Pos, "unit "+u.ID)
		if err != nil && u.Alive {
			return nil, err
		}
		snap.Units = append(snap.Units, arena.Unit{
			ID:          u.ID,
			Pos:         pos,
			Alive:       u.Alive,
			Ready:       u.CanAct,
			Bombs:       u.Bombs,
			Armor:       u.Armor,
			ShieldTicks: u.ShieldTicks,
		})
	}
	for _, e := range m.Enemies {
		pos, err := cellAt(e.Pos, "enemy "+e.ID)
		if err != nil {
			return nil, err
		}
		snap.Enemies = append(snap.Enemies, arena.Enemy{ID: e.ID, Pos: pos, ShieldTicks: e.ShieldTicks})
	}
	for _, mob := range m.Mobs {
		pos, err := cellAt(mob.Pos, "mob "+mob.ID)
		if err != nil {
			return nil, err
		}
		snap.Mobs = append(snap.Mobs, arena.Mob{
			ID:           mob.ID,
			Pos:          pos,
			Kind:         arena.MobKind(mob.Kind),
			DormantTicks: mob.SafeTime,
		})
	}
	for _, b := range m.Arena.Bombs {
		pos, err := cellAt(b.Pos, "bomb")
		if err != nil {
			return nil, err
		}
		if b.Range < 0 || b.FuseTicks < 0 {
			return nil, fmt.Errorf("bomb at %v with range=%d fuse=%d", b.Pos, b.Range, b.FuseTicks)
		}
		snap.Bombs = append(snap.Bombs, arena.Bomb{Pos: pos, Range: b.Range, FuseTicks: b.FuseTicks})
	}
	for _, raw := range m.Arena.Walls {
		c, err := cellAt(raw, "wall")
		if err != nil {
			return nil, err
		}
		snap.Walls = append(snap.Walls, c)
	}
	for _, raw := range m.Arena.Obstacles {
		c, err := cellAt(raw, "obstacle")
		if err != nil {
			return nil, err
		}
		snap.Obstacles = append(snap.Obstacles, c)
	}
	return snap, nil
}

// CellArrays converts a path for the wire.
func CellArrays(cells []arena.Cell) [][2]int {
	if len(cells) == 0 {
		return nil
	}
	out := make([][2]int, len(cells))
	for i, c := range cells {
		out[i] = c.ToArray()
	}
	return out
}

// Package nav implements shortest-path search over the arena grid.
//
// The search is a plain breadth-first walk of the 4-connected grid with a
// fixed neighbor-visitation order (arena.Dirs4), so equal-length routes always
// resolve the same way. Passability is a caller-supplied predicate: the engine
// composes terrain, hazard and reservation checks into it per call site, which
// keeps this package free of planning policy. A goal cell is only reachable if
// the predicate admits it, so callers targeting a destructible tile must widen
// the predicate for that one cell.
package nav

import "gridfire.ai/internal/arena"

// FindPath returns the step sequence from start to goal, excluding start and
// including goal, or nil and false when goal is unreachable within maxLen
// steps. start == goal yields an empty path and true. The returned path never
// exceeds maxLen cells. start itself is never tested against passable; the
// caller is already standing there.
func FindPath(start, goal arena.Cell, passable func(arena.Cell) bool, maxLen int) ([]arena.Cell, bool) {
	if start == goal {
		return []arena.Cell{}, true
	}
	if maxLen <= 0 {
		return nil, false
	}

	parent := make(map[arena.Cell]arena.Cell, 64)
	depth := make(map[arena.Cell]int, 64)
	depth[start] = 0

	queue := make([]arena.Cell, 0, 64)
	queue = append(queue, start)

	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		d := depth[cur]
		if d >= maxLen {
			continue
		}
		for _, dir := range arena.Dirs4 {
			next := cur.Add(dir)
			if _, seen := depth[next]; seen {
				continue
			}
			if !passable(next) {
				continue
			}
			depth[next] = d + 1
			parent[next] = cur
			if next == goal {
				return rebuild(parent, start, goal), true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

// FindNearest walks outward from start and returns the path to the closest
// cell satisfying accept, or nil and false when none is reachable within
// maxLen steps. start is considered first: if accept(start) holds the path is
// empty. Visit order matches FindPath, so ties on distance resolve to the cell
// discovered first in arena.Dirs4 order.
func FindNearest(start arena.Cell, passable func(arena.Cell) bool, accept func(arena.Cell) bool, maxLen int) ([]arena.Cell, bool) {
	if accept(start) {
		return []arena.Cell{}, true
	}
	if maxLen <= 0 {
		return nil, false
	}

	parent := make(map[arena.Cell]arena.Cell, 64)
	depth := make(map[arena.Cell]int, 64)
	depth[start] = 0

	queue := make([]arena.Cell, 0, 64)
	queue = append(queue, start)

	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		d := depth[cur]
		if d >= maxLen {
			continue
		}
		for _, dir := range arena.Dirs4 {
			next := cur.Add(dir)
			if _, seen := depth[next]; seen {
				continue
			}
			if !passable(next) {
				continue
			}
			depth[next] = d + 1
			parent[next] = cur
			if accept(next) {
				return rebuild(parent, start, next), true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

func rebuild(parent map[arena.Cell]arena.Cell, start, goal arena.Cell) []arena.Cell {
	var path []arena.Cell
	for cur := goal; cur != start; cur = parent[cur] {
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

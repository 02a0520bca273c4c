package plan

import (
	"errors"

	"gridfire.ai/internal/arena"
	"gridfire.ai/internal/engine/target"
)

var (
	// ErrUnreachablePath reports that no route within the length cap reaches
	// a candidate's destination.
	ErrUnreachablePath = errors.New("no path to candidate cell")
	// ErrReservationConflict reports that a candidate lost its cells to a
	// higher-ranked claim during selection.
	ErrReservationConflict = errors.New("candidate cells already reserved")
)

// ActionKind labels what a candidate wants to do at its destination.
type ActionKind int

const (
	// KindOffensive walks the path and drops a bomb on the final cell.
	KindOffensive ActionKind = iota
	// KindExplore walks toward the nearest frontier cell.
	KindExplore
	// KindEvade walks out of a blast zone or mover threat.
	KindEvade
)

func (k ActionKind) String() string {
	switch k {
	case KindOffensive:
		return "OFFENSIVE"
	case KindExplore:
		return "EXPLORE"
	case KindEvade:
		return "EVADE"
	default:
		return "UNKNOWN"
	}
}

// Candidate is one scored option for one unit. Path excludes the unit's
// current cell; an empty path means act in place. Target is meaningful only
// for KindOffensive.
type Candidate struct {
	UnitID string
	Origin arena.Cell
	Kind   ActionKind
	Path   []arena.Cell
	Target arena.Cell
	Score  float64
	Mode   target.Mode
}

// Destination is the cell the unit ends the action on.
func (c Candidate) Destination() arena.Cell {
	if len(c.Path) == 0 {
		return c.Origin
	}
	return c.Path[len(c.Path)-1]
}

// Assignment is a candidate that won selection. At most one exists per unit
// per cycle.
type Assignment struct {
	UnitID string
	Kind   ActionKind
	Path   []arena.Cell
	Target arena.Cell
	Score  float64
	Mode   target.Mode
}

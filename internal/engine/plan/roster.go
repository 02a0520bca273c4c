package plan

import (
	"log"
	"sort"

	"gridfire.ai/internal/arena"
)

// Role decides which candidate kinds a unit attempts each cycle.
type Role int

const (
	// RoleAnchor plays for survival: cautious placements only, never a
	// degraded one.
	RoleAnchor Role = iota
	// RoleFarmer hunts obstacle clusters and carries the score.
	RoleFarmer
	// RoleScout pushes the fog back and bombs only what it is standing next
	// to.
	RoleScout
)

func (r Role) String() string {
	switch r {
	case RoleAnchor:
		return "ANCHOR"
	case RoleFarmer:
		return "FARMER"
	case RoleScout:
		return "SCOUT"
	default:
		return "UNKNOWN"
	}
}

// Roster owns the unit-to-role mapping. Roles are recomputed only when the
// alive headcount changes; a tick passing is never by itself a reason to
// shuffle the fleet.
type Roster struct {
	roles  map[string]Role
	logger *log.Logger
}

func NewRoster(logger *log.Logger) *Roster {
	return &Roster{roles: make(map[string]Role), logger: logger}
}

// Assign recomputes roles if the alive headcount changed since the last
// call. Above three survivors the fleet plays aggressively with four farmers
// and no anchor; at three or fewer one unit anchors and the rest farm.
func (r *Roster) Assign(units []arena.Unit) {
	alive := make([]string, 0, len(units))
	for _, u := range units {
		if u.Alive {
			alive = append(alive, u.ID)
		}
	}
	if len(alive) == 0 || len(alive) == len(r.roles) {
		return
	}
	sort.Strings(alive)

	old := r.roles
	r.roles = make(map[string]Role, len(alive))
	for idx, id := range alive {
		var role Role
		switch {
		case len(alive) > 3:
			role = RoleFarmer
			if idx >= 4 {
				role = RoleScout
			}
		case idx == 0:
			role = RoleAnchor
		case idx <= 2:
			role = RoleFarmer
		default:
			role = RoleScout
		}
		r.roles[id] = role
		if prev, ok := old[id]; !ok || prev != role {
			r.printf("unit %s assigned %s (%d alive)", id, role, len(alive))
		}
	}
}

// RoleOf returns the unit's role, defaulting to scout for units never seen
// by Assign.
func (r *Roster) RoleOf(id string) Role {
	if role, ok := r.roles[id]; ok {
		return role
	}
	return RoleScout
}

func (r *Roster) printf(format string, args ...any) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}

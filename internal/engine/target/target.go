// Package target scores candidate bomb placements and verifies the placing
// unit can survive its own bomb.
//
// A placement is judged by its yield k, the number of cardinal directions
// whose first blocking cell within bomb range is a destructible obstacle. The
// base value is the arena's triangular payout for k simultaneous hits, scaled
// and boosted for clustered yields, then discounted for everything that makes
// the spot operationally bad: allies inside the blast, allies crowding the
// area, hostiles nearby, and cells other units have already claimed.
//
// Survivability degrades in three named stages. A unit that keeps failing to
// plan relaxes its yield floor and widens its escape search; one that stays
// stuck past the second threshold finally accepts placements with no escape
// at all. That last stage is always logged, never entered silently, and a
// single productive cycle resets the unit to nominal.
package target

import (
	"errors"
	"log"

	"gridfire.ai/internal/arena"
	"gridfire.ai/internal/engine/danger"
	"gridfire.ai/internal/engine/world"
)

var (
	// ErrLowYield rejects a placement whose k is under the current floor.
	ErrLowYield = errors.New("target: yield below minimum")
	// ErrNoEscapeRoute rejects a placement the unit could not survive.
	ErrNoEscapeRoute = errors.New("target: no escape route")
)

// Mode is the evaluation stage a unit currently plans under.
type Mode int

const (
	ModeNominal Mode = iota
	ModeRelaxed
	ModeLastResort
)

func (m Mode) String() string {
	switch m {
	case ModeNominal:
		return "NOMINAL"
	case ModeRelaxed:
		return "RELAXED"
	case ModeLastResort:
		return "LAST_RESORT"
	default:
		return "UNKNOWN"
	}
}

// Params holds every scoring tunable. Values are loaded from the tuning file;
// DefaultParams matches the arena's starting loadout.
type Params struct {
	BombRange int
	// MinK is the nominal yield floor. Degraded modes drop it to 1; zero
	// yield is never accepted in any mode.
	MinK int

	ScoreScale  float64
	TripleBonus float64 // applied once at k>=3
	QuadBonus   float64 // applied on top at k>=4

	SpacingRadius    int
	SpacingPenalty   float64
	AllyBlastPenalty float64
	HostileRadius    int
	HostilePenalty   float64

	EscapeSteps        int
	RelaxedEscapeSteps int

	// RelaxAfter and LastResortAfter are the consecutive-failure counts at
	// which a unit enters the respective stage.
	RelaxAfter      int
	LastResortAfter int

	RejectedCellTTL int // ticks an arena-refused cell stays banned
	TargetCooldown  int // ticks before the same cell may be targeted again
	FarmCooldown    int // ticks a freshly cleared cell stays untargetable
}

func DefaultParams() Params {
	return Params{
		BombRange:          1,
		MinK:               2,
		ScoreScale:         10,
		TripleBonus:        1.3,
		QuadBonus:          1.5,
		SpacingRadius:      4,
		SpacingPenalty:     6,
		AllyBlastPenalty:   40,
		HostileRadius:      5,
		HostilePenalty:     30,
		EscapeSteps:        15,
		RelaxedEscapeSteps: 25,
		RelaxAfter:         5,
		LastResortAfter:    8,
		RejectedCellTTL:    60,
		TargetCooldown:     12,
		FarmCooldown:       30,
	}
}

// Context bundles the frozen per-tick state a Score call reads. The
// coordinator builds one per cycle and shares it across parallel planners.
type Context struct {
	Snap     *arena.Snapshot
	World    *world.Model
	Field    *danger.Field
	Reserved map[arena.Cell]string // cell -> holding unit, both tiers
}

// Assessment is an accepted placement. Escape is where the unit can run
// after placing; under last resort it equals Cell itself.
type Assessment struct {
	Cell   arena.Cell
	K      int
	Score  float64
	Escape arena.Cell
	Mode   Mode
}

// Evaluator owns the per-unit degrade counters and the cell blacklists. The
// read side (Score, Allowed, ModeFor) never mutates and is safe for the
// parallel candidate generators; the mutating methods are called only from
// the serial part of the engine's cycle.
type Evaluator struct {
	params Params
	logger *log.Logger

	failures map[string]int        // unit id -> consecutive failed cycles
	rejected map[arena.Cell]uint64 // cell -> ban expiry tick
	recent   map[arena.Cell]uint64 // cell -> cooldown expiry tick
}

func New(p Params, logger *log.Logger) *Evaluator {
	return &Evaluator{
		params:   p,
		logger:   logger,
		failures: make(map[string]int),
		rejected: make(map[arena.Cell]uint64),
		recent:   make(map[arena.Cell]uint64),
	}
}

// Score evaluates a placement at c for the given unit. It returns ErrLowYield
// when the yield is under the unit's current floor and ErrNoEscapeRoute when
// no survivable retreat exists and the unit has not yet degraded far enough
// to accept dying for the points.
func (e *Evaluator) Score(ctx *Context, c arena.Cell, owner string) (Assessment, error) {
	mode := e.ModeFor(owner)
	minK := e.params.MinK
	if mode != ModeNominal {
		minK = 1
	}

	k := e.countHits(ctx, c)
	if k == 0 || k < minK {
		return Assessment{}, ErrLowYield
	}

	blast := ctx.Field.BlastPattern(c, e.params.BombRange)
	steps := e.params.EscapeSteps
	if mode != ModeNominal {
		steps = e.params.RelaxedEscapeSteps
	}
	escape, ok := ctx.Field.FindEscape(c, blast, c, steps)
	if !ok {
		if mode != ModeLastResort {
			return Assessment{}, ErrNoEscapeRoute
		}
		escape = c
		e.printf("unit %s accepts doomed placement at (%d,%d) k=%d after %d failed cycles",
			owner, c.X, c.Y, k, e.failures[owner])
	}

	score := float64(k*(k+1)/2) * e.params.ScoreScale
	if k >= 3 {
		score *= e.params.TripleBonus
	}
	if k >= 4 {
		score *= e.params.QuadBonus
	}
	score -= e.allyPenalty(ctx, c, owner, blast)
	score -= e.hostilePenalty(ctx, c)
	score -= e.reservedPenalty(ctx, c, owner)

	return Assessment{Cell: c, K: k, Score: score, Escape: escape, Mode: mode}, nil
}

// countHits casts the four rays and counts directions whose first blocker is
// an obstacle. Walls, unknown terrain and armed bombs end a ray without
// scoring; each direction contributes at most one hit.
func (e *Evaluator) countHits(ctx *Context, c arena.Cell) int {
	k := 0
	for _, dir := range arena.Dirs4 {
		for step := 1; step <= e.params.BombRange; step++ {
			p := arena.Cell{X: c.X + dir.X*step, Y: c.Y + dir.Y*step}
			if !ctx.Snap.InBounds(p) || !ctx.World.Known(p) || ctx.World.Wall(p) {
				break
			}
			if ctx.World.Obstacle(p) {
				k++
				break
			}
			if ctx.Snap.BombAt(p) {
				break
			}
		}
	}
	return k
}

func (e *Evaluator) allyPenalty(ctx *Context, c arena.Cell, owner string, blast map[arena.Cell]bool) float64 {
	pen := 0.0
	for _, u := range ctx.Snap.Units {
		if u.ID == owner || !u.Alive {
			continue
		}
		if blast[u.Pos] {
			pen += e.params.AllyBlastPenalty
		}
		d := arena.Manhattan(u.Pos, c)
		switch {
		case d <= 2:
			pen += e.params.SpacingPenalty * float64(e.params.SpacingRadius-d+1)
		case d < e.params.SpacingRadius:
			pen += e.params.SpacingPenalty * float64(e.params.SpacingRadius-d)
		}
	}
	return pen
}

func (e *Evaluator) hostilePenalty(ctx *Context, c arena.Cell) float64 {
	for _, en := range ctx.Snap.Enemies {
		if arena.Manhattan(en.Pos, c) < e.params.HostileRadius {
			return e.params.HostilePenalty
		}
	}
	for _, mb := range ctx.Snap.Mobs {
		if mb.Awake() && arena.Manhattan(mb.Pos, c) < e.params.HostileRadius {
			return e.params.HostilePenalty
		}
	}
	return 0
}

func (e *Evaluator) reservedPenalty(ctx *Context, c arena.Cell, owner string) float64 {
	pen := 0.0
	for rc, holder := range ctx.Reserved {
		if holder == owner {
			continue
		}
		if d := arena.Manhattan(rc, c); d < e.params.SpacingRadius {
			pen += e.params.SpacingPenalty * float64(e.params.SpacingRadius-d)
		}
	}
	return pen
}

// Allowed reports whether c may enter candidate generation at all: not
// recently refused by the arena, not recently targeted, and not farmed within
// the cooldown window.
func (e *Evaluator) Allowed(ctx *Context, c arena.Cell) bool {
	tick := ctx.Snap.Tick
	if exp, ok := e.rejected[c]; ok && exp > tick {
		return false
	}
	if exp, ok := e.recent[c]; ok && exp > tick {
		return false
	}
	return !ctx.World.WasRecentlyCleared(c, tick, e.params.FarmCooldown)
}

// ModeFor returns the stage owner currently evaluates under.
func (e *Evaluator) ModeFor(owner string) Mode {
	n := e.failures[owner]
	switch {
	case n >= e.params.LastResortAfter:
		return ModeLastResort
	case n >= e.params.RelaxAfter:
		return ModeRelaxed
	default:
		return ModeNominal
	}
}

// NoteFailure records one more cycle in which owner made no progress.
// Threshold crossings are logged on the cycle they happen.
func (e *Evaluator) NoteFailure(owner string) {
	e.failures[owner]++
	switch e.failures[owner] {
	case e.params.RelaxAfter:
		e.printf("unit %s degrading to RELAXED after %d failed cycles", owner, e.params.RelaxAfter)
	case e.params.LastResortAfter:
		e.printf("unit %s degrading to LAST_RESORT after %d failed cycles", owner, e.params.LastResortAfter)
	}
}

// NoteProgress returns owner to nominal evaluation.
func (e *Evaluator) NoteProgress(owner string) {
	if e.failures[owner] >= e.params.RelaxAfter {
		e.printf("unit %s recovered, back to NOMINAL", owner)
	}
	delete(e.failures, owner)
}

// BanCell blacklists a cell the arena explicitly refused a placement on.
func (e *Evaluator) BanCell(c arena.Cell, tick uint64) {
	e.rejected[c] = tick + uint64(e.params.RejectedCellTTL)
	e.printf("cell (%d,%d) banned until tick %d", c.X, c.Y, e.rejected[c])
}

// NoteTarget starts the re-target cooldown for a cell just assigned to a
// unit, so the fleet does not thrash between the same few spots.
func (e *Evaluator) NoteTarget(c arena.Cell, tick uint64) {
	e.recent[c] = tick + uint64(e.params.TargetCooldown)
}

// Sweep drops expired bans and cooldowns. Called once per cycle while
// planning is quiescent.
func (e *Evaluator) Sweep(tick uint64) {
	for c, exp := range e.rejected {
		if exp <= tick {
			delete(e.rejected, c)
		}
	}
	for c, exp := range e.recent {
		if exp <= tick {
			delete(e.recent, c)
		}
	}
}

func (e *Evaluator) printf(format string, args ...any) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}

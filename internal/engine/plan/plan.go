// Package plan turns one frozen observation into at most one action per
// unit. Candidate generation runs one goroutine per unit against read-only
// state; selection then runs serially, ranking all candidates by score and
// claiming cells through the reservation ledger so two units never walk into
// the same plan.
package plan

import (
	"context"
	"log"
	"sort"

	"golang.org/x/sync/errgroup"

	"gridfire.ai/internal/arena"
	"gridfire.ai/internal/engine/nav"
	"gridfire.ai/internal/engine/reserve"
	"gridfire.ai/internal/engine/target"
	"gridfire.ai/internal/engine/world"
)

// Params tunes candidate generation and selection.
type Params struct {
	// SearchRadius bounds how far from a farmer known obstacles are
	// considered for placements.
	SearchRadius int
	// AnchorRadius is the tighter obstacle radius used by the anchor.
	AnchorRadius int
	// MaxPathLength caps every route a candidate may carry.
	MaxPathLength int
	// CrossfireRadius is the distance around an accepted target within which
	// no other unit's reservation may sit.
	CrossfireRadius int
	// SafeHorizon is the tick horizon used when deciding whether a unit must
	// evade right now.
	SafeHorizon int
	// EvadeScore ranks escape above any placement.
	EvadeScore float64
	// ExploreScore ranks frontier walks below any accepted placement.
	ExploreScore float64
	// StepPenalty is subtracted from a candidate's score per path step.
	StepPenalty float64
	// Workers bounds the candidate-generation goroutines.
	Workers int
}

func DefaultParams() Params {
	return Params{
		SearchRadius:    8,
		AnchorRadius:    4,
		MaxPathLength:   20,
		CrossfireRadius: 3,
		SafeHorizon:     8,
		EvadeScore:      1000,
		ExploreScore:    5,
		StepPenalty:     0.5,
		Workers:         4,
	}
}

// Coordinator plans for the whole fleet each cycle.
type Coordinator struct {
	params Params
	roster *Roster
	eval   *target.Evaluator
	ledger *reserve.Ledger
	logger *log.Logger
}

func New(p Params, roster *Roster, eval *target.Evaluator, ledger *reserve.Ledger, logger *log.Logger) *Coordinator {
	return &Coordinator{params: p, roster: roster, eval: eval, ledger: ledger, logger: logger}
}

// Plan assigns roles, generates candidates for every ready unit in parallel,
// then resolves them into at most one assignment per unit. The evaluator's
// failure counters and cooldowns are updated from the outcome, so Plan must
// not run concurrently with itself.
func (c *Coordinator) Plan(ctx context.Context, tctx *target.Context) ([]Assignment, error) {
	c.roster.Assign(tctx.Snap.Units)

	var ready []arena.Unit
	for _, u := range tctx.Snap.Units {
		if u.Alive && u.Ready {
			ready = append(ready, u)
		}
	}
	if len(ready) == 0 {
		return nil, nil
	}

	perUnit := make([][]Candidate, len(ready))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.params.Workers)
	for i, u := range ready {
		i, u := i, u
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perUnit[i] = c.generate(tctx, u)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var flat []Candidate
	for _, cands := range perUnit {
		flat = append(flat, cands...)
	}
	assigned := c.selectActions(flat)
	c.bookkeep(tctx, ready, assigned)
	return assigned, nil
}

// generate builds the candidate list for one unit. Every unit evades first
// when its cell is unsafe; what else it attempts depends on its role.
func (c *Coordinator) generate(tctx *target.Context, u arena.Unit) []Candidate {
	var out []Candidate
	if !tctx.Field.IsSafe(u.Pos, c.params.SafeHorizon) {
		if cand, ok := c.evadeCandidate(tctx, u); ok {
			out = append(out, cand)
		}
	}

	switch c.roster.RoleOf(u.ID) {
	case RoleFarmer:
		offensive := c.offensiveCandidates(tctx, u, c.params.SearchRadius)
		out = append(out, offensive...)
		if len(offensive) == 0 {
			if cand, ok := c.exploreCandidate(tctx, u); ok {
				out = append(out, cand)
			}
		}
	case RoleAnchor:
		// The anchor keeps the team alive; it never takes a doomed placement.
		for _, cand := range c.offensiveCandidates(tctx, u, c.params.AnchorRadius) {
			if cand.Mode != target.ModeLastResort {
				out = append(out, cand)
			}
		}
	case RoleScout:
		if c.placeable(tctx, u, u.Pos) {
			if cand, ok := c.scoreCell(tctx, u, u.Pos); ok {
				out = append(out, cand)
			}
		}
		if cand, ok := c.exploreCandidate(tctx, u); ok {
			out = append(out, cand)
		}
	}
	return out
}

// offensiveCandidates enumerates placement cells adjacent to known obstacles
// within radius of the unit, plus the unit's own cell, and scores each one.
func (c *Coordinator) offensiveCandidates(tctx *target.Context, u arena.Unit, radius int) []Candidate {
	if u.Bombs <= 0 {
		return nil
	}
	seen := make(map[arena.Cell]bool)
	var out []Candidate
	consider := func(cell arena.Cell) {
		if seen[cell] || !c.placeable(tctx, u, cell) {
			return
		}
		seen[cell] = true
		if cand, ok := c.scoreCell(tctx, u, cell); ok {
			out = append(out, cand)
		}
	}

	consider(u.Pos)
	for _, obs := range tctx.World.KnownObstacles() {
		if arena.Manhattan(obs, u.Pos) > radius {
			continue
		}
		for _, d := range arena.Dirs4 {
			consider(obs.Add(d))
		}
	}
	return out
}

// placeable reports whether a unit could stand on cell and drop a bomb
// there: observed empty, unoccupied, not blacklisted, not claimed by
// somebody else.
func (c *Coordinator) placeable(tctx *target.Context, u arena.Unit, cell arena.Cell) bool {
	if u.Bombs <= 0 || tctx.World.Classify(cell) != world.Empty {
		return false
	}
	if tctx.Snap.BombAt(cell) || tctx.Snap.AwakeMobAt(cell) || tctx.Snap.EnemyAt(cell) {
		return false
	}
	if holder, ok := tctx.Reserved[cell]; ok && holder != u.ID {
		return false
	}
	return c.eval.Allowed(tctx, cell)
}

// scoreCell asks the evaluator about one placement and, when the cell is
// worth it, verifies a route exists within the length cap.
func (c *Coordinator) scoreCell(tctx *target.Context, u arena.Unit, cell arena.Cell) (Candidate, bool) {
	assess, err := c.eval.Score(tctx, cell, u.ID)
	if err != nil {
		return Candidate{}, false
	}
	var path []arena.Cell
	if cell != u.Pos {
		var ok bool
		path, ok = nav.FindPath(u.Pos, cell, c.walkable(tctx, u), c.params.MaxPathLength)
		if !ok {
			return Candidate{}, false
		}
	}
	return Candidate{
		UnitID: u.ID,
		Origin: u.Pos,
		Kind:   KindOffensive,
		Path:   path,
		Target: cell,
		Score:  assess.Score - c.params.StepPenalty*float64(len(path)),
		Mode:   assess.Mode,
	}, true
}

// exploreCandidate routes the unit toward the nearest frontier cell. The
// search may cross unobserved tiles; walking there is exactly how they stop
// being unobserved.
func (c *Coordinator) exploreCandidate(tctx *target.Context, u arena.Unit) (Candidate, bool) {
	frontier := make(map[arena.Cell]bool)
	for _, f := range tctx.World.Frontier() {
		frontier[f] = true
	}
	if len(frontier) == 0 {
		return Candidate{}, false
	}
	passable := func(cell arena.Cell) bool {
		if !tctx.World.InBounds(cell) {
			return false
		}
		if s := tctx.World.Classify(cell); s == world.Wall || s == world.Obstacle {
			return false
		}
		if tctx.Snap.BombAt(cell) || tctx.Snap.AwakeMobAt(cell) || tctx.Snap.EnemyAt(cell) {
			return false
		}
		holder, ok := tctx.Reserved[cell]
		return !ok || holder == u.ID
	}
	path, ok := nav.FindNearest(u.Pos, passable, func(cell arena.Cell) bool { return frontier[cell] }, c.params.MaxPathLength)
	if !ok || len(path) == 0 {
		return Candidate{}, false
	}
	return Candidate{
		UnitID: u.ID,
		Origin: u.Pos,
		Kind:   KindExplore,
		Path:   path,
		Score:  c.params.ExploreScore - c.params.StepPenalty*float64(len(path)),
	}, true
}

// evadeCandidate routes an endangered unit to the nearest cell that is safe
// over the horizon. Reservations are ignored on purpose: danger outranks
// etiquette.
func (c *Coordinator) evadeCandidate(tctx *target.Context, u arena.Unit) (Candidate, bool) {
	passable := func(cell arena.Cell) bool {
		return !tctx.World.Blocked(cell) &&
			!tctx.Snap.BombAt(cell) && !tctx.Snap.AwakeMobAt(cell) && !tctx.Snap.EnemyAt(cell)
	}
	accept := func(cell arena.Cell) bool {
		return tctx.Field.IsSafe(cell, c.params.SafeHorizon)
	}
	path, ok := nav.FindNearest(u.Pos, passable, accept, c.params.MaxPathLength)
	if !ok || len(path) == 0 {
		return Candidate{}, false
	}
	return Candidate{
		UnitID: u.ID,
		Origin: u.Pos,
		Kind:   KindEvade,
		Path:   path,
		Score:  c.params.EvadeScore - c.params.StepPenalty*float64(len(path)),
	}, true
}

// walkable is the passability used for routes units will actually execute:
// observed clear terrain, nothing standing on it, not claimed by another
// unit.
func (c *Coordinator) walkable(tctx *target.Context, u arena.Unit) func(arena.Cell) bool {
	return func(cell arena.Cell) bool {
		if tctx.World.Blocked(cell) {
			return false
		}
		if tctx.Snap.BombAt(cell) || tctx.Snap.AwakeMobAt(cell) || tctx.Snap.EnemyAt(cell) {
			return false
		}
		holder, ok := tctx.Reserved[cell]
		return !ok || holder == u.ID
	}
}

// selectActions resolves all candidates greedily: best score first, unit id
// breaking ties, remaining fields keeping the order total. A candidate is
// accepted only if every cell it needs is free of other units' claims; the
// winner's destination, first step, and target are soft-reserved so later
// candidates see them.
func (c *Coordinator) selectActions(flat []Candidate) []Assignment {
	sort.SliceStable(flat, func(i, j int) bool {
		a, b := flat[i], flat[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.UnitID != b.UnitID {
			return a.UnitID < b.UnitID
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Target.Y != b.Target.Y {
			return a.Target.Y < b.Target.Y
		}
		return a.Target.X < b.Target.X
	})

	done := make(map[string]bool)
	var out []Assignment
	for _, cand := range flat {
		if done[cand.UnitID] || c.conflicts(cand) {
			continue
		}
		c.ledger.SoftReserve(cand.Destination(), cand.UnitID)
		if len(cand.Path) > 0 {
			c.ledger.SoftReserve(cand.Path[0], cand.UnitID)
		}
		if cand.Kind == KindOffensive {
			c.ledger.SoftReserve(cand.Target, cand.UnitID)
		}
		done[cand.UnitID] = true
		out = append(out, Assignment{
			UnitID: cand.UnitID,
			Kind:   cand.Kind,
			Path:   cand.Path,
			Target: cand.Target,
			Score:  cand.Score,
			Mode:   cand.Mode,
		})
		c.printf("unit %s -> %s dest=(%d,%d) score=%.1f", cand.UnitID, cand.Kind, cand.Destination().X, cand.Destination().Y, cand.Score)
	}
	return out
}

// conflicts reports whether another unit already holds a cell this candidate
// needs. Offensive candidates additionally keep a crossfire gap around the
// target.
func (c *Coordinator) conflicts(cand Candidate) bool {
	for _, cell := range cand.Path {
		if c.ledger.IsReserved(cell, cand.UnitID) {
			return true
		}
	}
	if cand.Kind != KindOffensive {
		return false
	}
	if c.ledger.IsReserved(cand.Target, cand.UnitID) {
		return true
	}
	for cell, holder := range c.ledger.ReservedCells() {
		if holder != cand.UnitID && arena.Manhattan(cell, cand.Target) <= c.params.CrossfireRadius {
			return true
		}
	}
	return false
}

// bookkeep feeds the planning outcome back into the evaluator: placements
// count as progress and start the target cooldown, while a farmer or anchor
// that found nothing to bomb moves one step down the degrade ladder. Evading
// is survival, not failure, and scouts are not graded on yield.
func (c *Coordinator) bookkeep(tctx *target.Context, planned []arena.Unit, assigned []Assignment) {
	byUnit := make(map[string]Assignment, len(assigned))
	for _, a := range assigned {
		byUnit[a.UnitID] = a
	}
	for _, u := range planned {
		a, ok := byUnit[u.ID]
		switch {
		case ok && a.Kind == KindOffensive:
			c.eval.NoteProgress(u.ID)
			c.eval.NoteTarget(a.Target, tctx.Snap.Tick)
		case ok && a.Kind == KindEvade:
		default:
			if role := c.roster.RoleOf(u.ID); role == RoleFarmer || role == RoleAnchor {
				c.eval.NoteFailure(u.ID)
			}
		}
	}
}

func (c *Coordinator) printf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

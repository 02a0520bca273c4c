package plan

import (
	"context"
	"errors"
	"testing"

	"gridfire.ai/internal/arena"
	"gridfire.ai/internal/engine/danger"
	"gridfire.ai/internal/engine/reserve"
	"gridfire.ai/internal/engine/target"
	"gridfire.ai/internal/engine/world"
)

func cl(x, y int) arena.Cell { return arena.Cell{X: x, Y: y} }

func unit(id string, x, y int) arena.Unit {
	return arena.Unit{ID: id, Pos: cl(x, y), Alive: true, Ready: true, Bombs: 1}
}

type fixture struct {
	snap   *arena.Snapshot
	model  *world.Model
	field  *danger.Field
	eval   *target.Evaluator
	ledger *reserve.Ledger
	coord  *Coordinator
}

func newFixture(snap *arena.Snapshot, vision int, params Params) *fixture {
	m := world.New(vision)
	m.Update(snap, snap.Tick)
	f := danger.New(danger.DefaultParams())
	f.Update(m, snap)
	ev := target.New(target.DefaultParams(), nil)
	led := reserve.New()
	return &fixture{
		snap:   snap,
		model:  m,
		field:  f,
		eval:   ev,
		ledger: led,
		coord:  New(params, NewRoster(nil), ev, led, nil),
	}
}

func (fx *fixture) plan(t *testing.T) []Assignment {
	t.Helper()
	out, err := fx.coord.Plan(context.Background(), &target.Context{
		Snap:     fx.snap,
		World:    fx.model,
		Field:    fx.field,
		Reserved: map[arena.Cell]string{},
	})
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	return out
}

func byUnit(out []Assignment) map[string]Assignment {
	m := make(map[string]Assignment, len(out))
	for _, a := range out {
		m[a.UnitID] = a
	}
	return m
}

// Two farmers flank the same pair of obstacles, so both can only target the
// one cell between them. The closer unit scores higher and wins; the loser
// must not receive the same cell.
func TestPlan_DuplicateTargetGoesToHigherScorer(t *testing.T) {
	snap := &arena.Snapshot{
		Tick: 1, MapWidth: 13, MapHeight: 13,
		Units: []arena.Unit{
			unit("u1", 5, 6), unit("u2", 6, 8),
			unit("u3", 1, 1), unit("u4", 11, 11),
		},
		Obstacles: []arena.Cell{cl(6, 5), cl(6, 7)},
	}
	fx := newFixture(snap, 10, DefaultParams())

	out := fx.plan(t)
	if len(out) != 1 {
		t.Fatalf("assignments=%d want 1: %+v", len(out), out)
	}
	a := out[0]
	if a.UnitID != "u1" || a.Kind != KindOffensive {
		t.Fatalf("winner=%s kind=%v want u1 OFFENSIVE", a.UnitID, a.Kind)
	}
	if a.Target != cl(6, 6) {
		t.Fatalf("target=%v want (6,6)", a.Target)
	}
	if len(a.Path) != 1 || a.Path[0] != cl(6, 6) {
		t.Fatalf("path=%v want [(6,6)]", a.Path)
	}
	if a.Score != 11.5 {
		t.Fatalf("score=%v want 11.5", a.Score)
	}
	if a.Mode != target.ModeNominal {
		t.Fatalf("mode=%v want %v", a.Mode, target.ModeNominal)
	}

	held := fx.ledger.ReservedCells()
	if len(held) != 1 || held[cl(6, 6)] != "u1" {
		t.Fatalf("ledger=%v want only (6,6)->u1", held)
	}
}

// The second-best target sits two cells from the winner's, inside the
// crossfire gap. Its owner has to fall through to a farther cluster instead.
func TestPlan_CrossfireKeepsTargetsApart(t *testing.T) {
	snap := &arena.Snapshot{
		Tick: 1, MapWidth: 14, MapHeight: 14,
		Units: []arena.Unit{
			unit("u1", 4, 5), unit("u2", 8, 5),
			unit("u3", 0, 13), unit("u4", 13, 13),
		},
		Obstacles: []arena.Cell{
			cl(5, 4), cl(5, 6),
			cl(7, 4), cl(7, 6),
			cl(11, 4), cl(11, 6),
		},
	}
	params := DefaultParams()
	params.StepPenalty = 4
	fx := newFixture(snap, 10, params)

	got := byUnit(fx.plan(t))
	a1, ok := got["u1"]
	if !ok || a1.Target != cl(5, 5) {
		t.Fatalf("u1 assignment=%+v want target (5,5)", a1)
	}
	if a1.Score != 20 {
		t.Fatalf("u1 score=%v want 20", a1.Score)
	}
	a2, ok := got["u2"]
	if !ok || a2.Target != cl(11, 5) {
		t.Fatalf("u2 assignment=%+v want target (11,5), not the conflicting (7,5)", a2)
	}
	if a2.Score != 18 {
		t.Fatalf("u2 score=%v want 18", a2.Score)
	}
	if len(got) != 2 {
		t.Fatalf("assignments=%d want 2", len(got))
	}
}

// A unit inside a live blast zone has a perfectly good placement available,
// but the evade candidate outranks it.
func TestPlan_EvadeOutranksPlacement(t *testing.T) {
	snap := &arena.Snapshot{
		Tick: 1, MapWidth: 11, MapHeight: 11,
		Units:     []arena.Unit{unit("u1", 5, 5)},
		Bombs:     []arena.Bomb{{Pos: cl(5, 4), Range: 1, FuseTicks: 3}},
		Obstacles: []arena.Cell{cl(6, 6), cl(8, 6)},
	}
	fx := newFixture(snap, 10, DefaultParams())

	out := fx.plan(t)
	if len(out) != 1 {
		t.Fatalf("assignments=%d want 1", len(out))
	}
	a := out[0]
	if a.Kind != KindEvade {
		t.Fatalf("kind=%v want %v", a.Kind, KindEvade)
	}
	if len(a.Path) != 1 || a.Path[0] != cl(5, 6) {
		t.Fatalf("path=%v want [(5,6)]", a.Path)
	}
}

// A scout on a freshly spawned fleet heads for the nearest frontier cell.
// With vision 3 the closest unknown-but-adjacent-to-known cell is exactly
// four steps out.
func TestPlan_ScoutWalksTowardFrontier(t *testing.T) {
	snap := &arena.Snapshot{
		Tick: 1, MapWidth: 30, MapHeight: 30,
		Units: []arena.Unit{
			unit("u1", 25, 25), unit("u2", 25, 26),
			unit("u3", 26, 25), unit("u4", 26, 26),
			unit("u5", 10, 10),
		},
	}
	fx := newFixture(snap, 3, DefaultParams())

	got := byUnit(fx.plan(t))
	a, ok := got["u5"]
	if !ok {
		t.Fatalf("scout got no assignment: %+v", got)
	}
	if a.Kind != KindExplore {
		t.Fatalf("kind=%v want %v", a.Kind, KindExplore)
	}
	if len(a.Path) != 4 {
		t.Fatalf("path length=%d want 4: %v", len(a.Path), a.Path)
	}
	dest := a.Path[len(a.Path)-1]
	if fx.model.Known(dest) {
		t.Fatalf("destination %v should be unobserved", dest)
	}
	adjacentKnown := false
	for _, d := range arena.Dirs4 {
		if fx.model.Known(dest.Add(d)) {
			adjacentKnown = true
		}
	}
	if !adjacentKnown {
		t.Fatalf("destination %v is not a frontier cell", dest)
	}
}

// A lone unit standing between two obstacles bombs in place: empty path,
// target on its own cell.
func TestPlan_BombsInPlaceWhenStandingOnBestCell(t *testing.T) {
	snap := &arena.Snapshot{
		Tick: 1, MapWidth: 11, MapHeight: 11,
		Units:     []arena.Unit{unit("u1", 6, 6)},
		Obstacles: []arena.Cell{cl(6, 5), cl(6, 7)},
	}
	fx := newFixture(snap, 10, DefaultParams())

	out := fx.plan(t)
	if len(out) != 1 {
		t.Fatalf("assignments=%d want 1", len(out))
	}
	a := out[0]
	if a.Kind != KindOffensive || a.Target != cl(6, 6) {
		t.Fatalf("assignment=%+v want offensive on own cell (6,6)", a)
	}
	if len(a.Path) != 0 {
		t.Fatalf("path=%v want empty", a.Path)
	}
	if a.Score != 30 {
		t.Fatalf("score=%v want 30", a.Score)
	}
	if held := fx.ledger.ReservedCells(); held[cl(6, 6)] != "u1" {
		t.Fatalf("ledger=%v want (6,6)->u1", held)
	}
}

// Four farmers stare at a single obstacle whose neighbors are all
// single-hit placements. Under the nominal yield floor nobody finds a
// target; after five barren cycles the ladder relaxes the floor and exactly
// one unit claims a placement, which resets its counter while the others
// stay degraded.
func TestPlan_FailureLadderUnlocksRelaxedPlacements(t *testing.T) {
	snap := &arena.Snapshot{
		Tick: 1, MapWidth: 13, MapHeight: 13,
		Units: []arena.Unit{
			unit("u1", 3, 3), unit("u2", 9, 3),
			unit("u3", 3, 9), unit("u4", 9, 9),
		},
		Obstacles: []arena.Cell{cl(6, 6)},
	}
	fx := newFixture(snap, 10, DefaultParams())

	for cycle := 0; cycle < 5; cycle++ {
		if out := fx.plan(t); len(out) != 0 {
			t.Fatalf("cycle %d: assignments=%+v want none", cycle, out)
		}
		fx.ledger.ResetSoft()
	}
	if got := fx.eval.ModeFor("u1"); got != target.ModeRelaxed {
		t.Fatalf("mode after 5 barren cycles=%v want %v", got, target.ModeRelaxed)
	}

	out := fx.plan(t)
	if len(out) != 1 {
		t.Fatalf("assignments=%d want 1: %+v", len(out), out)
	}
	a := out[0]
	if a.UnitID != "u1" || a.Target != cl(6, 5) {
		t.Fatalf("assignment=%+v want u1 on (6,5)", a)
	}
	if a.Score != 7.5 {
		t.Fatalf("score=%v want 7.5", a.Score)
	}
	if a.Mode != target.ModeRelaxed {
		t.Fatalf("mode=%v want %v", a.Mode, target.ModeRelaxed)
	}

	if got := fx.eval.ModeFor("u1"); got != target.ModeNominal {
		t.Fatalf("u1 mode after progress=%v want %v", got, target.ModeNominal)
	}
	if got := fx.eval.ModeFor("u2"); got != target.ModeRelaxed {
		t.Fatalf("u2 mode=%v want still %v", got, target.ModeRelaxed)
	}
}

func TestPlan_CanceledContextStopsGeneration(t *testing.T) {
	snap := &arena.Snapshot{
		Tick: 1, MapWidth: 9, MapHeight: 9,
		Units: []arena.Unit{unit("u1", 4, 4)},
	}
	fx := newFixture(snap, 10, DefaultParams())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := fx.coord.Plan(ctx, &target.Context{
		Snap:     fx.snap,
		World:    fx.model,
		Field:    fx.field,
		Reserved: map[arena.Cell]string{},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	if out != nil {
		t.Fatalf("assignments=%v want nil", out)
	}
}

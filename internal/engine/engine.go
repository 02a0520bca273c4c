// Package engine drives the decision loop: pull one observation, refresh the
// derived state, plan a command batch, dispatch it, and reconcile the arena's
// verdicts back into the reservation and scoring state. All state is held on
// the Engine instance; two engines in one process share nothing.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gridfire.ai/internal/arena"
	"gridfire.ai/internal/engine/danger"
	"gridfire.ai/internal/engine/plan"
	"gridfire.ai/internal/engine/reserve"
	"gridfire.ai/internal/engine/target"
	"gridfire.ai/internal/engine/world"
)

// Command is one unit's order for the coming tick: walk Path (possibly
// empty) and plant a bomb on each cell in Bombs. Bomb cells must lie on the
// path or on the unit's current cell.
type Command struct {
	UnitID string
	Path   []arena.Cell
	Bombs  []arena.Cell
}

// Verdict is the arena's answer to a single command.
type Verdict struct {
	UnitID   string
	Accepted bool
	Code     string
	Message  string
	Cell     *arena.Cell // set when the rejection names a specific cell
}

// Report collects the verdicts for one submitted batch.
type Report struct {
	Tick     uint64
	Verdicts []Verdict
}

// ObservationSource produces one arena snapshot per decision cycle.
// Implementations return ErrStaleObservation (possibly wrapped) for payloads
// that cannot be trusted; the engine then skips the cycle untouched.
type ObservationSource interface {
	Fetch(ctx context.Context) (*arena.Snapshot, error)
}

// ActionSink carries a command batch to the arena and reports per-command
// verdicts.
type ActionSink interface {
	Submit(ctx context.Context, tick uint64, batch []Command) (*Report, error)
}

// Recorder persists one cycle record. Recording is diagnostics only; the
// engine never reads anything back from it.
type Recorder interface {
	Record(rec CycleRecord) error
}

// CycleRecord is the flight-recorder line for one cycle. Cells are
// flattened to [x, y] pairs so the records stay readable as raw JSONL.
type CycleRecord struct {
	Tick     uint64          `json:"tick"`
	Score    int             `json:"score"`
	Alive    int             `json:"alive"`
	Commands []CommandRecord `json:"commands,omitempty"`
	Verdicts []VerdictRecord `json:"verdicts,omitempty"`
}

type CommandRecord struct {
	UnitID string   `json:"id"`
	Path   [][2]int `json:"path,omitempty"`
	Bombs  [][2]int `json:"bombs,omitempty"`
}

type VerdictRecord struct {
	UnitID   string  `json:"id"`
	Accepted bool    `json:"accepted"`
	Code     string  `json:"code,omitempty"`
	Cell     *[2]int `json:"cell,omitempty"`
}

// stuckTracker watches one unit for stagnation: same cell and no team score
// movement across consecutive cycles.
type stuckTracker struct {
	pos    arena.Cell
	score  int
	cycles int
}

// Engine owns one fleet's full decision state.
type Engine struct {
	cfg    Config
	logger *log.Logger

	source ObservationSource
	sink   ActionSink
	rec    Recorder // optional

	model  *world.Model
	field  *danger.Field
	ledger *reserve.Ledger
	eval   *target.Evaluator
	coord  *plan.Coordinator

	tick  uint64 // last tick planned, zero before the first cycle
	stuck map[string]*stuckTracker
}

func New(cfg Config, source ObservationSource, sink ActionSink, logger *log.Logger) *Engine {
	e := &Engine{
		cfg:    cfg,
		logger: logger,
		source: source,
		sink:   sink,
		model:  world.New(cfg.Cycle.VisionRadius),
		field:  danger.New(cfg.DangerParams()),
		ledger: reserve.New(),
		eval:   target.New(cfg.TargetParams(), logger),
		stuck:  make(map[string]*stuckTracker),
	}
	e.coord = plan.New(cfg.PlanParams(), plan.NewRoster(logger), e.eval, e.ledger, logger)
	return e
}

// SetRecorder attaches an optional cycle recorder.
func (e *Engine) SetRecorder(r Recorder) { e.rec = r }

// RunCycle executes one fetch, update, plan, dispatch pass. A stale or
// repeated observation skips the cycle with no state mutation; a failed
// submit rolls the whole batch's claims back before returning.
func (e *Engine) RunCycle(ctx context.Context) error {
	snap, err := e.source.Fetch(ctx)
	if err != nil {
		return err
	}
	if e.tick != 0 && snap.Tick <= e.tick {
		return fmt.Errorf("%w: tick %d already planned", ErrStaleObservation, snap.Tick)
	}

	e.ledger.ResetSoft()
	e.ledger.Expire(snap.Tick)
	e.eval.Sweep(snap.Tick)
	e.model.Update(snap, snap.Tick)
	e.field.Update(e.model, snap)
	e.trackProgress(snap)

	tctx := &target.Context{
		Snap:     snap,
		World:    e.model,
		Field:    e.field,
		Reserved: e.ledger.ReservedCells(),
	}
	assigned, err := e.coord.Plan(ctx, tctx)
	if err != nil {
		return err
	}
	batch := e.buildBatch(tctx, assigned)
	rec := CycleRecord{
		Tick:     snap.Tick,
		Score:    snap.Score,
		Alive:    len(snap.AliveUnits()),
		Commands: recordCommands(batch),
	}

	if len(batch) == 0 {
		e.finishCycle(snap, rec)
		return nil
	}
	report, err := e.sink.Submit(ctx, snap.Tick, batch)
	if err != nil {
		// Nothing was executed; drop this cycle's claims so the next
		// plan starts clean.
		for _, cmd := range batch {
			e.ledger.Rollback(cmd.UnitID)
		}
		e.finishCycle(snap, rec)
		return fmt.Errorf("submit tick %d: %w", snap.Tick, err)
	}
	rec.Verdicts = recordVerdicts(report.Verdicts)
	rejected := e.reconcile(snap, batch, report)
	e.finishCycle(snap, rec)
	if rejected > 0 {
		return fmt.Errorf("%w: %d of %d commands", ErrDispatchRejected, rejected, len(batch))
	}
	return nil
}

// Run loops RunCycle until ctx ends. Stale observations and dispatch
// rejections are logged and survived; transport failures end the loop.
func (e *Engine) Run(ctx context.Context) error {
	interval := time.Duration(e.cfg.Cycle.IntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := e.RunCycle(ctx); err != nil {
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, ErrStaleObservation), errors.Is(err, ErrDispatchRejected):
				e.printf("cycle: %v", err)
			default:
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// trackProgress charges a failure against units that sat on one cell through
// StuckWindow cycles without the team score moving. The evaluator's degrade
// ladder then loosens their placement filters.
func (e *Engine) trackProgress(snap *arena.Snapshot) {
	alive := make(map[string]bool, len(snap.Units))
	for _, u := range snap.AliveUnits() {
		alive[u.ID] = true
		tr := e.stuck[u.ID]
		if tr == nil {
			e.stuck[u.ID] = &stuckTracker{pos: u.Pos, score: snap.Score}
			continue
		}
		if u.Pos == tr.pos && snap.Score == tr.score {
			tr.cycles++
			if tr.cycles >= e.cfg.Cycle.StuckWindow {
				e.eval.NoteFailure(u.ID)
				e.printf("unit %s stuck at (%d,%d) for %d cycles", u.ID, u.Pos.X, u.Pos.Y, tr.cycles)
				tr.cycles = 0
			}
			continue
		}
		tr.pos, tr.score, tr.cycles = u.Pos, snap.Score, 0
	}
	for id := range e.stuck {
		if !alive[id] {
			delete(e.stuck, id)
		}
	}
}

// buildBatch turns assignments into commands and appends a safe step for
// every endangered ready unit the planner left without one.
func (e *Engine) buildBatch(tctx *target.Context, assigned []plan.Assignment) []Command {
	batch := make([]Command, 0, len(assigned))
	covered := make(map[string]bool, len(assigned))
	for _, a := range assigned {
		covered[a.UnitID] = true
		cmd := Command{UnitID: a.UnitID, Path: a.Path}
		if a.Kind == plan.KindOffensive {
			cmd.Bombs = []arena.Cell{a.Target}
		}
		batch = append(batch, cmd)
	}
	for _, u := range tctx.Snap.AliveUnits() {
		if covered[u.ID] || !u.Ready {
			continue
		}
		if e.field.IsSafe(u.Pos, e.cfg.Cycle.SafeHorizon) {
			continue
		}
		step, ok := e.safeStep(tctx, u)
		if !ok {
			e.printf("unit %s endangered at (%d,%d) with no safe step", u.ID, u.Pos.X, u.Pos.Y)
			continue
		}
		e.printf("unit %s safe-steps to (%d,%d)", u.ID, step.X, step.Y)
		batch = append(batch, Command{UnitID: u.ID, Path: []arena.Cell{step}})
	}
	return batch
}

// safeStep picks an adjacent cell outside the danger horizon. Unreserved
// neighbors win; a reserved one is still taken over staying in a blast lane.
// The ledger is read live so this sees the claims the planner just made.
func (e *Engine) safeStep(tctx *target.Context, u arena.Unit) (arena.Cell, bool) {
	var reservedPick arena.Cell
	var haveReserved bool
	for _, d := range arena.Dirs4 {
		n := u.Pos.Add(d)
		if e.model.Blocked(n) {
			continue
		}
		if tctx.Snap.BombAt(n) || tctx.Snap.AwakeMobAt(n) || tctx.Snap.EnemyAt(n) {
			continue
		}
		if !e.field.IsSafe(n, e.cfg.Cycle.SafeHorizon) {
			continue
		}
		if e.ledger.IsReserved(n, u.ID) {
			if !haveReserved {
				reservedPick, haveReserved = n, true
			}
			continue
		}
		return n, true
	}
	return reservedPick, haveReserved
}

// reconcile promotes the destinations of accepted commands to hard
// reservations and unwinds rejected owners, feeding any cell named in a
// rejection to the evaluator blacklist. Returns the rejection count.
func (e *Engine) reconcile(snap *arena.Snapshot, batch []Command, report *Report) int {
	dest := make(map[string]arena.Cell, len(batch))
	for _, cmd := range batch {
		if d, ok := commandDest(snap, cmd); ok {
			dest[cmd.UnitID] = d
		}
	}
	rejected := 0
	for _, v := range report.Verdicts {
		if v.Accepted {
			if d, ok := dest[v.UnitID]; ok {
				e.ledger.HardReserve(d, v.UnitID, snap.Tick, e.cfg.Cycle.ReserveTTL)
			}
			continue
		}
		rejected++
		e.ledger.Rollback(v.UnitID)
		if v.Cell != nil {
			e.eval.BanCell(*v.Cell, snap.Tick)
		}
		e.printf("unit %s command rejected: %s %s", v.UnitID, v.Code, v.Message)
	}
	return rejected
}

func (e *Engine) finishCycle(snap *arena.Snapshot, rec CycleRecord) {
	e.tick = snap.Tick
	e.printf("tick %d score %d alive %d commands %d", snap.Tick, snap.Score, rec.Alive, len(rec.Commands))
	if e.rec == nil {
		return
	}
	if err := e.rec.Record(rec); err != nil {
		e.printf("recorder: %v", err)
	}
}

func commandDest(snap *arena.Snapshot, cmd Command) (arena.Cell, bool) {
	if len(cmd.Path) > 0 {
		return cmd.Path[len(cmd.Path)-1], true
	}
	if u := snap.UnitByID(cmd.UnitID); u != nil {
		return u.Pos, true
	}
	return arena.Cell{}, false
}

func recordCommands(batch []Command) []CommandRecord {
	if len(batch) == 0 {
		return nil
	}
	out := make([]CommandRecord, 0, len(batch))
	for _, cmd := range batch {
		out = append(out, CommandRecord{
			UnitID: cmd.UnitID,
			Path:   cellArrays(cmd.Path),
			Bombs:  cellArrays(cmd.Bombs),
		})
	}
	return out
}

func recordVerdicts(vs []Verdict) []VerdictRecord {
	if len(vs) == 0 {
		return nil
	}
	out := make([]VerdictRecord, 0, len(vs))
	for _, v := range vs {
		r := VerdictRecord{UnitID: v.UnitID, Accepted: v.Accepted, Code: v.Code}
		if v.Cell != nil {
			a := v.Cell.ToArray()
			r.Cell = &a
		}
		out = append(out, r)
	}
	return out
}

func cellArrays(cells []arena.Cell) [][2]int {
	if len(cells) == 0 {
		return nil
	}
	out := make([][2]int, len(cells))
	for i, c := range cells {
		out[i] = c.ToArray()
	}
	return out
}

func (e *Engine) printf(format string, args ...any) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}

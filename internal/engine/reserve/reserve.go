// Package reserve implements the two-tier cell reservation ledger that keeps
// concurrently planned units off each other's cells.
//
// Soft reservations live for one planning cycle: the coordinator takes them
// while it greedily assigns actions and the engine wipes them at the start of
// the next cycle. Hard reservations are taken only after the arena confirms a
// dispatched batch and persist for a fixed number of ticks, so units executing
// multi-tick paths keep their claim while everyone else replans around them.
// All methods are safe for concurrent use.
package reserve

import (
	"sync"

	"gridfire.ai/internal/arena"
)

type tier int

const (
	tierSoft tier = iota
	tierHard
)

type entry struct {
	owner   string
	tier    tier
	created uint64
	ttl     int
}

// Ledger maps cells to their current reservation. The zero value is not
// usable; call New.
type Ledger struct {
	mu    sync.Mutex
	cells map[arena.Cell]entry
}

func New() *Ledger {
	return &Ledger{cells: make(map[arena.Cell]entry)}
}

// SoftReserve claims c for owner until the next cycle reset. It fails only
// when a different owner already holds the cell, at either tier. Reserving a
// cell the owner already holds is a no-op success and never downgrades an
// existing hard claim.
func (l *Ledger) SoftReserve(c arena.Cell, owner string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.cells[c]; ok {
		return e.owner == owner
	}
	l.cells[c] = entry{owner: owner, tier: tierSoft}
	return true
}

// HardReserve promotes owner's claim on c to the confirmed tier, expiring
// once created+ttl is reached. It creates the claim directly when c is free
// and refuses when a different owner holds the cell, so at most one hard
// holder can ever exist per cell.
func (l *Ledger) HardReserve(c arena.Cell, owner string, tick uint64, ttl int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.cells[c]; ok && e.owner != owner {
		return false
	}
	l.cells[c] = entry{owner: owner, tier: tierHard, created: tick, ttl: ttl}
	return true
}

// IsReserved reports whether c is held by somebody other than asking. An
// owner's own reservations are transparent to it.
func (l *Ledger) IsReserved(c arena.Cell, asking string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.cells[c]
	return ok && e.owner != asking
}

// Expire drops every hard reservation whose lifetime has run out at tick.
func (l *Ledger) Expire(tick uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for c, e := range l.cells {
		if e.tier == tierHard && e.created+uint64(e.ttl) <= tick {
			delete(l.cells, c)
		}
	}
}

// Rollback releases every reservation owner holds, both tiers. Called when
// the arena rejects owner's action: the claimed cells were never entered.
func (l *Ledger) Rollback(owner string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for c, e := range l.cells {
		if e.owner == owner {
			delete(l.cells, c)
		}
	}
}

// ResetSoft wipes the soft tier. The engine calls it exactly once at the
// start of each planning cycle, before any unit plans.
func (l *Ledger) ResetSoft() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for c, e := range l.cells {
		if e.tier == tierSoft {
			delete(l.cells, c)
		}
	}
}

// ReservedCells returns a copy of the current cell-to-owner mapping, both
// tiers. Scoring uses it for proximity penalties around other units' claims.
func (l *Ledger) ReservedCells() map[arena.Cell]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[arena.Cell]string, len(l.cells))
	for c, e := range l.cells {
		out[c] = e.owner
	}
	return out
}

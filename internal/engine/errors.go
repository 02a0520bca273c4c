package engine

import (
	"errors"

	"gridfire.ai/internal/engine/plan"
	"gridfire.ai/internal/engine/target"
)

// The failure taxonomy for a decision cycle. The planning packages declare
// the sentinels they raise; the engine re-exports them so callers can match
// every cycle outcome against one package.
var (
	// ErrStaleObservation marks a fetch whose payload failed validation or
	// arrived for a tick the engine already planned. The cycle is skipped
	// and no engine state is touched.
	ErrStaleObservation = errors.New("stale observation")

	// ErrDispatchRejected reports that the arena refused at least one
	// command of a submitted batch. The rejected owners have already been
	// rolled back when this is returned.
	ErrDispatchRejected = errors.New("dispatch rejected")

	ErrUnreachablePath     = plan.ErrUnreachablePath
	ErrReservationConflict = plan.ErrReservationConflict
	ErrLowYield            = target.ErrLowYield
	ErrNoEscapeRoute       = target.ErrNoEscapeRoute
)

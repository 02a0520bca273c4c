package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrRateLimit       = "E_RATE_LIMIT"
	ErrStaleTick       = "E_STALE_TICK"

	// Command layer.
	ErrBadRequest  = "E_BAD_REQUEST"
	ErrUnknownUnit = "E_UNKNOWN_UNIT"
	ErrUnitDead    = "E_UNIT_DEAD"
	ErrUnitBusy    = "E_UNIT_BUSY"
	ErrPathTooLong = "E_PATH_TOO_LONG"
	ErrPathBlocked = "E_PATH_BLOCKED"
	ErrInvalidCell = "E_INVALID_CELL"
	ErrNoBombsLeft = "E_NO_BOMBS_LEFT"
	ErrConflict    = "E_CONFLICT"
	ErrInternal    = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrRateLimit:       {},
	ErrStaleTick:       {},
	ErrBadRequest:      {},
	ErrUnknownUnit:     {},
	ErrUnitDead:        {},
	ErrUnitBusy:        {},
	ErrPathTooLong:     {},
	ErrPathBlocked:     {},
	ErrInvalidCell:     {},
	ErrNoBombsLeft:     {},
	ErrConflict:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// CellCodes are the rejection codes whose Cell field names a spot that
// should not be targeted again for a while.
var CellCodes = map[string]struct{}{
	ErrInvalidCell: {},
	ErrPathBlocked: {},
}

func IsCellCode(code string) bool {
	_, ok := CellCodes[code]
	return ok
}

package protocol

// OBS (server -> client): everything the team can see this tick.
type ObsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Round           string `json:"round,omitempty"`
	RawScore        int    `json:"raw_score"`
	MapSize         [2]int `json:"map_size"`

	Units   []UnitObs  `json:"units"`
	Enemies []EnemyObs `json:"enemies,omitempty"`
	Mobs    []MobObs   `json:"mobs,omitempty"`
	Arena   ArenaObs   `json:"arena"`
}

type UnitObs struct {
	ID          string `json:"id"`
	Pos         [2]int `json:"pos"`
	Alive       bool   `json:"alive"`
	CanAct      bool   `json:"can_act"`
	Bombs       int    `json:"bombs"`
	Armor       int    `json:"armor,omitempty"`
	ShieldTicks int    `json:"shield_ticks,omitempty"`
}

type EnemyObs struct {
	ID          string `json:"id"`
	Pos         [2]int `json:"pos"`
	ShieldTicks int    `json:"shield_ticks,omitempty"`
}

type MobObs struct {
	ID   string `json:"id"`
	Pos  [2]int `json:"pos"`
	Kind string `json:"kind"` // "GHOST", "PATROL"
	// SafeTime is how many ticks the mob stays dormant; >0 means harmless.
	SafeTime int `json:"safe_time,omitempty"`
}

// ArenaObs is the terrain visible to the team, cumulative over its units.
type ArenaObs struct {
	Walls     [][2]int  `json:"walls,omitempty"`
	Obstacles [][2]int  `json:"obstacles,omitempty"`
	Bombs     []BombObs `json:"bombs,omitempty"`
}

type BombObs struct {
	Pos       [2]int `json:"pos"`
	Range     int    `json:"range"`
	FuseTicks int    `json:"fuse_ticks"`
}

// ACT (client -> server): at most one command per unit per tick.
type ActMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	Tick            uint64        `json:"tick"`
	Commands        []UnitCommand `json:"commands"`
}

// UnitCommand moves one unit along path (first cell is the first step, not
// the current position) and plants bombs on the listed cells, which must lie
// on the path or on the unit's current cell.
type UnitCommand struct {
	ID    string   `json:"id"`
	Path  [][2]int `json:"path,omitempty"`
	Bombs [][2]int `json:"bombs,omitempty"`
}

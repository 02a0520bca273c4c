package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	TeamName        string     `json:"team_name"`
	Auth            *HelloAuth `json:"auth,omitempty"`
}

type HelloAuth struct {
	Token string `json:"token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	TeamID          string      `json:"team_id"`
	SessionID       string      `json:"session_id,omitempty"`
	Round           string      `json:"round,omitempty"`
	ArenaParams     ArenaParams `json:"arena_params"`
}

// ArenaParams are the server-side rules a client must honor for the round.
// Zero values mean "server default"; the engine falls back to its config.
type ArenaParams struct {
	MapSize       [2]int  `json:"map_size"`
	VisionRadius  int     `json:"vision_radius"`
	BombRange     int     `json:"bomb_range"`
	BombFuseTicks int     `json:"bomb_fuse_ticks"`
	TickRateHz    int     `json:"tick_rate_hz"`
	RatePerSec    float64 `json:"rate_per_sec"`
	RateBurst     int     `json:"rate_burst"`
	MaxPathLength int     `json:"max_path_length"`
}

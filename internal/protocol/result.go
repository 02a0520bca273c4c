package protocol

// RESULT (server -> client): per-command outcome for one ACT.
type ResultMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Tick            uint64          `json:"tick"`
	Results         []CommandResult `json:"results"`
}

// CommandResult reports acceptance for one unit's command. Rejections carry
// a code and, when the failure is about a specific cell, that cell.
type CommandResult struct {
	ID       string  `json:"id"`
	Accepted bool    `json:"accepted"`
	Code     string  `json:"code,omitempty"`
	Message  string  `json:"message,omitempty"`
	Cell     *[2]int `json:"cell,omitempty"`
}

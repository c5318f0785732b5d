package protocol

// TOGGLE (client -> server)
type ToggleMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	StructureID     string `json:"structure_id"`
	// AnimationType is MOVE_BLOCKS (default) or PREVIEW.
	AnimationType string `json:"animation_type,omitempty"`
	TimeMs        int    `json:"time_ms,omitempty"`
	Skip          bool   `json:"skip,omitempty"`
}

// STOP and ABORT (client -> server) share one shape.
type StopMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	StructureID     string `json:"structure_id"`
}

// EVENT (server -> client): an animation finished.
type EventMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ServerTick      uint64 `json:"server_tick"`
	AnimationID     string `json:"animation_id,omitempty"`
	StructureID     string `json:"structure_id"`
	State           string `json:"state"`
	Steps           int    `json:"steps"`
	Cause           string `json:"cause,omitempty"`
}

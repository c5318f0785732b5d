package protocol

// HISTORY_REQ (client -> server)
type HistoryReqMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	StructureID     string `json:"structure_id"`
	Limit           int    `json:"limit"`
}

type HistoryItem struct {
	AnimationID string `json:"animation_id"`
	Type        string `json:"type"`
	State       string `json:"state"`
	Duration    int    `json:"duration"`
	Steps       int    `json:"steps"`
	StartedAtMs int64  `json:"started_at_ms"`
	EndedAtMs   int64  `json:"ended_at_ms"`
}

// HISTORY (server -> client), newest first.
type HistoryMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	ReqID           string        `json:"req_id"`
	StructureID     string        `json:"structure_id"`
	Items           []HistoryItem `json:"items"`
}

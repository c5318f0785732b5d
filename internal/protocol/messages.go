package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type              string            `json:"type"`
	ProtocolVersion   string            `json:"protocol_version"`
	SupportedVersions []string          `json:"supported_versions,omitempty"`
	ClientName        string            `json:"client_name"`
	Capabilities      HelloCapabilities `json:"capabilities"`
	Auth              *HelloAuth        `json:"auth,omitempty"`
}

type HelloCapabilities struct {
	// Events asks for an EVENT message whenever an animation finishes.
	Events   bool `json:"events,omitempty"`
	MaxQueue int  `json:"max_queue,omitempty"`
}

type HelloAuth struct {
	Token string `json:"token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	WorldID         string         `json:"world_id"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
	Structures      []string       `json:"structures"`
}

type WorldParams struct {
	TickMs    int `json:"tick_ms"`
	BoundaryR int `json:"boundary_r"`
	MinY      int `json:"min_y"`
	MaxY      int `json:"max_y"`
}

type CatalogDigests struct {
	BlockPalette DigestRef `json:"block_palette"`
	BlockDefs    string    `json:"block_defs_digest"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// ACK (server -> client): answer to one TOGGLE, STOP, ABORT or HISTORY_REQ.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	ServerTick      uint64 `json:"server_tick,omitempty"`

	// Set for accepted toggles.
	AnimationID string `json:"animation_id,omitempty"`
	Duration    int    `json:"duration,omitempty"`
	Movement    string `json:"movement,omitempty"`
}

package observerproto

// Version is the observer protocol version (separate from the control protocol).
const Version = "0.1"

// Message types.
const (
	TypeSubscribe = "SUBSCRIBE"
	TypeTick      = "TICK"
)

// Client -> Server. First message on the observer WS connection, and can be re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// IntervalMs is the minimum time between two TICK frames.
	IntervalMs int `json:"interval_ms"`

	// Optional: only stream animations of these structures.
	StructureIDs []string `json:"structure_ids,omitempty"`

	// Optional: include animated block positions (for true 3D rendering).
	IncludeBlocks bool `json:"include_blocks,omitempty"`
	MaxBlocks     int  `json:"max_blocks,omitempty"`
}

// HTTP response for GET /observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string           `json:"protocol_version"`
	WorldID         string           `json:"world_id"`
	Tick            uint64           `json:"tick"`
	WorldParams     WorldParams      `json:"world_params"`
	BlockPalette    []string         `json:"block_palette"`
	Structures      []StructureState `json:"structures"`
}

type WorldParams struct {
	TickMs    int `json:"tick_ms"`
	BoundaryR int `json:"boundary_r"`
	MinY      int `json:"min_y"`
	MaxY      int `json:"max_y"`
}

type StructureState struct {
	ID         string  `json:"id"`
	Name       string  `json:"name,omitempty"`
	Type       string  `json:"type"`
	Open       bool    `json:"open"`
	Min        [3]int  `json:"min"`
	Max        [3]int  `json:"max"`
	PowerBlock *[3]int `json:"power_block,omitempty"`
	Busy       bool    `json:"busy"`
}

// Server -> Client. Sent every subscription interval.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Animations []AnimationState    `json:"animations"`
	Finished   []FinishedAnimation `json:"finished,omitempty"`
}

type AnimationState struct {
	ID            string `json:"id"`
	StructureID   string `json:"structure_id"`
	StructureType string `json:"structure_type"`
	Type          string `json:"type"`
	Movement      string `json:"movement"`
	State         string `json:"state"`
	Steps         int    `json:"steps"`
	Duration      int    `json:"duration"`
	Perpetual     bool   `json:"perpetual,omitempty"`
	Min           [3]int `json:"min"`
	Max           [3]int `json:"max"`

	// Blocks holds animated block positions in milli-blocks.
	Blocks []BlockState `json:"blocks,omitempty"`
}

type BlockState struct {
	Pos   [3]int `json:"pos"`
	Alive bool   `json:"alive"`
}

// FinishedAnimation reports an animation that reached a terminal state since the previous frame.
type FinishedAnimation struct {
	StructureID string `json:"structure_id"`
	State       string `json:"state"`
	Steps       int    `json:"steps"`
	Cause       string `json:"cause,omitempty"`
}

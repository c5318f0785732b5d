package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Structure routing/state.
	ErrUnknownStructure = "E_UNKNOWN_STRUCTURE"
	ErrBusy             = "E_BUSY"
	ErrRegionOccupied   = "E_REGION_OCCUPIED"
	ErrNotAnimating     = "E_NOT_ANIMATING"

	// Request layer.
	ErrBadRequest   = "E_BAD_REQUEST"
	ErrNoPermission = "E_NO_PERMISSION"
	ErrRateLimit    = "E_RATE_LIMIT"
	ErrUnavailable  = "E_UNAVAILABLE"
	ErrInternal     = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:  {},
	ErrUnknownStructure: {},
	ErrBusy:             {},
	ErrRegionOccupied:   {},
	ErrNotAnimating:     {},
	ErrBadRequest:       {},
	ErrNoPermission:     {},
	ErrRateLimit:        {},
	ErrUnavailable:      {},
	ErrInternal:         {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

package world

import "time"

type WorldConfig struct {
	ID string

	// TickDuration drives velocity integration of animated blocks inside Run.
	// Zero disables the internal ticker; callers then advance physics through
	// Tx.Advance.
	TickDuration time.Duration

	// Horizontal world radius around the origin and vertical build limits.
	BoundaryR int
	MinY      int
	MaxY      int

	// Capacity of the transaction queue feeding the main context.
	QueueSize int

	// OnBlockChange is invoked on the main context after every block write.
	OnBlockChange func(BlockChange)
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "world"
	}
	if c.BoundaryR <= 0 {
		c.BoundaryR = 30000
	}
	if c.MinY == 0 && c.MaxY == 0 {
		c.MinY, c.MaxY = -64, 320
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 4096
	}
}

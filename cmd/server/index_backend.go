package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/persistence/indexdb"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/animation"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/catalogs"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/structure"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/tuning"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/world"
)

type runtimeIndex interface {
	structure.Store
	WriteBlockChange(c world.BlockChange)
	History(ctx context.Context, structureID string, limit int) ([]indexdb.AnimationRow, error)
	HistoryHook() animation.HookFactory
	UpsertCatalogs(configDir string, cat *catalogs.BlockCatalog, tune tuning.Tuning) error
	Stats() indexdb.Stats
	Close() error
}

// openRuntimeIndex opens the index named by backend (AA_INDEX_BACKEND). A nil
// index means the server runs without one.
func openRuntimeIndex(worldDir, backend string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}
	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(worldDir, "index", "structures.sqlite")
		return indexdb.OpenSQLite(dbPath)
	default:
		return nil, fmt.Errorf("unsupported AA_INDEX_BACKEND: %s", backend)
	}
}

// mergeStructures overlays persisted structure state on the seed file.
// Stored entries win; stored ids missing from the seed file are kept too.
func mergeStructures(seed, stored []structure.Snapshot) []structure.Snapshot {
	byID := map[string]int{}
	out := make([]structure.Snapshot, 0, len(seed)+len(stored))
	for _, s := range seed {
		byID[s.ID] = len(out)
		out = append(out, s)
	}
	for _, s := range stored {
		if i, ok := byID[s.ID]; ok {
			out[i] = s
			continue
		}
		byID[s.ID] = len(out)
		out = append(out, s)
	}
	return out
}

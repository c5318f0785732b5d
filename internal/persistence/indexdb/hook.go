package indexdb

import (
	"time"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/animation"
)

// HistoryHook returns a hook factory that records every finished MoveBlocks
// animation. Previews leave no history.
func (s *SQLiteIndex) HistoryHook() animation.HookFactory {
	return func(a *animation.Animation) animation.Hook {
		if a.Type() != animation.MoveBlocks {
			return nil
		}
		return historyHook{idx: s}
	}
}

type historyHook struct {
	idx *SQLiteIndex
}

func (historyHook) Name() string { return "sqlite-history" }

func (h historyHook) OnAnimationCompleted(a *animation.Animation) {
	h.idx.RecordAnimation(rowOf(a, animation.Completed))
}

func (h historyHook) OnAnimationAborted(a *animation.Animation) {
	h.idx.RecordAnimation(rowOf(a, animation.Aborted))
}

// rowOf builds the history row. The hooks run just before the animation
// reaches its terminal state, so the state is passed in.
func rowOf(a *animation.Animation, state animation.State) AnimationRow {
	snap := a.Snapshot()
	return AnimationRow{
		ID:            a.ID(),
		StructureID:   snap.ID,
		StructureType: a.StructureType(),
		Type:          a.Type().String(),
		State:         state.String(),
		Duration:      a.Duration(),
		Steps:         a.StepsExecuted(),
		StartedAt:     a.StartedAt(),
		EndedAt:       time.Now(),
	}
}

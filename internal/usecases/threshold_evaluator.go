package usecases

import (
	"github.com/abelzeko/waterwatch/internal/entities"
)

// ThresholdEvaluator picks the most urgent breached station for a user.
// Stations are checked in downstream-to-upstream order and the first breach
// wins, since flooding downstream is the more representative signal.
type ThresholdEvaluator struct {
	order []string
}

// NewThresholdEvaluator creates an evaluator for the given station order
func NewThresholdEvaluator(order []string) *ThresholdEvaluator {
	return &ThresholdEvaluator{order: append([]string(nil), order...)}
}

// Order returns a copy of the configured station order
func (e *ThresholdEvaluator) Order() []string {
	return append([]string(nil), e.order...)
}

// Evaluate returns the first station in order whose level strictly exceeds the
// user's threshold for it. Stations missing from the order, the snapshot or
// the thresholds are skipped.
func (e *ThresholdEvaluator) Evaluate(snap *entities.Snapshot, userID int64, thresholds entities.UserThresholds) (entities.DangerEvent, bool) {
	if snap == nil || len(thresholds) == 0 {
		return entities.DangerEvent{}, false
	}

	levels := snap.Levels()
	for _, station := range e.order {
		level, ok := levels[station]
		if !ok {
			continue
		}
		limit, ok := effectiveThreshold(thresholds[station])
		if !ok {
			continue
		}
		if level > limit {
			return entities.DangerEvent{
				UserID:      userID,
				Location:    station,
				LevelCm:     level,
				ThresholdCm: limit,
			}, true
		}
	}
	return entities.DangerEvent{}, false
}

// effectiveThreshold applies the max-wins policy: with several rows for one
// station the least sensitive limit is used.
func effectiveThreshold(rows []int) (int, bool) {
	if len(rows) == 0 {
		return 0, false
	}
	limit := rows[0]
	for _, v := range rows[1:] {
		if v > limit {
			limit = v
		}
	}
	return limit, true
}

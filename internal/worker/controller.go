package worker

import "math"

// AdjustBatchSize implements spec.md §4.4's range-size controller, which
// replaces the teacher's alpha-smoothed CalculateBatchSize/AdjustBatchSize
// pair (_examples/garnizeh-eth-scanner/go/internal/worker/batch.go) with
// the later, 2×-capped formula the spec selects as canonical:
//
//	d < t: b' := round(min(t/d, 2) · b)   — grow, capped at 2x per cycle.
//	d >= t: b' := max(round((t/d) · b), 1) — shrink proportionally.
//
// b' is always clamped to at least 1. actualDuration and targetDuration
// are both in seconds; actualDuration <= 0 is treated as an instantaneous
// job and grows batchSize at the 2x cap.
func AdjustBatchSize(batchSize int64, targetDuration, actualDuration float64) int64 {
	if actualDuration <= 0 {
		actualDuration = math.SmallestNonzeroFloat64
	}

	var next float64
	if actualDuration < targetDuration {
		factor := targetDuration / actualDuration
		if factor > 2 {
			factor = 2
		}
		next = math.Round(factor * float64(batchSize))
	} else {
		next = math.Round((targetDuration / actualDuration) * float64(batchSize))
	}

	b := int64(next)
	if b < 1 {
		b = 1
	}
	return b
}

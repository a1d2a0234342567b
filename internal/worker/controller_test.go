package worker

import "testing"

// TestAdjustBatchSize_Idempotent covers spec.md §8 property 6: if d == t
// then b' == b.
func TestAdjustBatchSize_Idempotent(t *testing.T) {
	got := AdjustBatchSize(50, 300, 300)
	if got != 50 {
		t.Fatalf("AdjustBatchSize(50, 300, 300) = %d, want 50", got)
	}
}

// TestAdjustBatchSize_GrowsAndCapsAt2x covers the growth branch and its
// cap: high throughput variance (d << t) never grows more than 2x.
func TestAdjustBatchSize_GrowsAndCapsAt2x(t *testing.T) {
	got := AdjustBatchSize(10, 300, 1) // t/d = 300, way above the 2x cap
	if got != 20 {
		t.Fatalf("AdjustBatchSize(10, 300, 1) = %d, want 20 (capped at 2x)", got)
	}
}

// TestAdjustBatchSize_GrowsProportionallyBelowCap covers an uncapped
// growth case.
func TestAdjustBatchSize_GrowsProportionallyBelowCap(t *testing.T) {
	got := AdjustBatchSize(8, 300, 280) // t/d ≈ 1.071, under the 2x cap
	want := int64(9)                    // round(1.0714 * 8) = round(8.57) = 9
	if got != want {
		t.Fatalf("AdjustBatchSize(8, 300, 280) = %d, want %d", got, want)
	}
}

// TestAdjustBatchSize_ShrinksProportionally covers d >= t.
func TestAdjustBatchSize_ShrinksProportionally(t *testing.T) {
	got := AdjustBatchSize(9, 300, 310)
	want := int64(9) // round((300/310)*9) = round(8.71) = 9
	if got != want {
		t.Fatalf("AdjustBatchSize(9, 300, 310) = %d, want %d", got, want)
	}

	got = AdjustBatchSize(100, 300, 3000) // far over target
	want = 10                             // round((300/3000)*100) = 10
	if got != want {
		t.Fatalf("AdjustBatchSize(100, 300, 3000) = %d, want %d", got, want)
	}
}

// TestAdjustBatchSize_FloorsAtOne covers the b' >= 1 clamp.
func TestAdjustBatchSize_FloorsAtOne(t *testing.T) {
	got := AdjustBatchSize(1, 300, 30000) // would shrink to 0 without the floor
	if got != 1 {
		t.Fatalf("AdjustBatchSize(1, 300, 30000) = %d, want 1", got)
	}
}

// TestAdjustBatchSize_Monotonic covers: if d1 <= d2 and same b, t, then
// b1' >= b2'.
func TestAdjustBatchSize_Monotonic(t *testing.T) {
	durations := []float64{10, 50, 150, 300, 600, 1200}
	var prev int64 = -1
	for i, d := range durations {
		b := AdjustBatchSize(20, 300, d)
		if i > 0 && b > prev {
			t.Fatalf("batch size increased from %d to %d as duration grew to %v", prev, b, d)
		}
		prev = b
	}
}

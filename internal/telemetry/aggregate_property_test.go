package telemetry

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

// For any valid window of H hours, the bucket sequence covers exactly H+1
// hour boundaries, strictly increasing, with no gaps.
func TestBucketWindowInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		hours := rapid.IntRange(1, 168).Draw(t, "hours")
		end := time.Date(2026,
			time.Month(rapid.IntRange(1, 12).Draw(t, "month")),
			rapid.IntRange(1, 28).Draw(t, "day"),
			rapid.IntRange(0, 23).Draw(t, "hour"),
			rapid.IntRange(0, 59).Draw(t, "minute"),
			rapid.IntRange(0, 59).Draw(t, "second"),
			0, time.UTC)
		start := end.Add(-time.Duration(hours) * time.Hour)

		buckets := BucketEvents(nil, start, end)

		if len(buckets) != hours+1 {
			t.Fatalf("window of %dh produced %d buckets, want %d", hours, len(buckets), hours+1)
		}
		if !buckets[0].HourStart.Equal(TruncateToHour(start)) {
			t.Fatalf("first bucket %s, want %s", buckets[0].HourStart, TruncateToHour(start))
		}
		for i := 1; i < len(buckets); i++ {
			if got := buckets[i].HourStart.Sub(buckets[i-1].HourStart); got != time.Hour {
				t.Fatalf("gap of %s between buckets %d and %d", got, i-1, i)
			}
		}
		last := buckets[len(buckets)-1].HourStart
		if last.After(end) || end.Sub(last) >= time.Hour {
			t.Fatalf("last bucket %s does not close the window ending %s", last, end)
		}
	})
}

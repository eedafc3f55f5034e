// Package telemetry turns a time range of stored events into an ordered
// sequence of fixed-width hourly buckets. Aggregation is recomputed from raw
// events on every call; nothing here holds state between requests.
package telemetry

import (
	"context"
	"time"

	"searchwatch/internal/model"
	"searchwatch/internal/storage"
)

type Aggregator struct {
	store storage.Store
}

func NewAggregator(store storage.Store) *Aggregator {
	return &Aggregator{store: store}
}

// Aggregate queries the window and buckets the result. The returned slice
// always covers every hour boundary from truncate(start) to end inclusive.
func (a *Aggregator) Aggregate(ctx context.Context, start, end time.Time) ([]model.MetricsBucket, error) {
	events, err := a.store.QueryWindow(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return BucketEvents(events, start, end), nil
}

func TruncateToHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// BucketEvents folds events into zero-filled hourly buckets so callers can
// render a continuous timeline without gap-filling of their own. A malformed
// payload degrades to its field defaults and never aborts the fold.
func BucketEvents(events []model.StoredEvent, windowStart, windowEnd time.Time) []model.MetricsBucket {
	start := TruncateToHour(windowStart)
	end := windowEnd.UTC()

	var buckets []model.MetricsBucket
	index := make(map[time.Time]int)
	for cur := start; !cur.After(end); cur = cur.Add(time.Hour) {
		index[cur] = len(buckets)
		buckets = append(buckets, model.MetricsBucket{HourStart: cur})
	}

	for _, ev := range events {
		i, ok := index[TruncateToHour(ev.CreatedAt)]
		if !ok {
			continue
		}
		b := &buckets[i]
		switch p := model.DecodePayload(ev.EventType, ev.Payload).(type) {
		case model.SearchResultsPayload:
			b.Searches++
			if p.Total <= 0 {
				b.ZeroSearches++
			}
			if p.HasLatency {
				b.LatencySum += p.LatencyMS
				b.LatencyCount++
			}
		case model.DetailsLoadedPayload:
			b.DetailsRequests++
		case model.APIErrorPayload:
			b.DetailsRequests++
			b.DetailsErrors++
		}
	}

	for i := range buckets {
		buckets[i].Finalize()
	}
	return buckets
}

// Package alerting reduces aggregated buckets to pass/fail alert decisions.
// The minimum-sample guards suppress alert noise from low-traffic windows;
// a rule can only fire once its denominator has enough volume.
package alerting

import (
	"context"
	"time"

	"searchwatch/internal/config"
	"searchwatch/internal/model"
	"searchwatch/internal/telemetry"
)

type Thresholds struct {
	ZeroRateGT         float64
	DetailsErrorRateGT float64
	MinSearches        int
	MinDetailsRequests int
}

// ThresholdsFromConfig returns the process-wide defaults; requests may
// override individual values.
func ThresholdsFromConfig(cfg config.AlertsConfig) Thresholds {
	return Thresholds{
		ZeroRateGT:         cfg.ZeroRateGT,
		DetailsErrorRateGT: cfg.DetailsErrorRateGT,
		MinSearches:        cfg.MinSearches,
		MinDetailsRequests: cfg.MinDetailsRequests,
	}
}

type Evaluator struct {
	agg *telemetry.Aggregator
}

func NewEvaluator(agg *telemetry.Aggregator) *Evaluator {
	return &Evaluator{agg: agg}
}

// Evaluate aggregates the trailing window ending at now and applies the
// threshold rules.
func (e *Evaluator) Evaluate(ctx context.Context, now time.Time, windowHours int, th Thresholds) (model.AlertEvaluation, error) {
	start := now.Add(-time.Duration(windowHours) * time.Hour)
	buckets, err := e.agg.Aggregate(ctx, start, now)
	if err != nil {
		return model.AlertEvaluation{}, err
	}
	return Reduce(buckets, windowHours, th), nil
}

// Reduce sums the buckets and evaluates both rules. Rates are nil when their
// denominator is zero, and a nil rate can never activate a rule.
func Reduce(buckets []model.MetricsBucket, windowHours int, th Thresholds) model.AlertEvaluation {
	ev := model.AlertEvaluation{
		WindowHours:           windowHours,
		ZeroRateThreshold:     th.ZeroRateGT,
		DetailsErrorRateLimit: th.DetailsErrorRateGT,
		MinSearches:           th.MinSearches,
		MinDetailsRequests:    th.MinDetailsRequests,
		Buckets:               buckets,
	}
	for _, b := range buckets {
		ev.Searches += b.Searches
		ev.ZeroSearches += b.ZeroSearches
		ev.DetailsRequests += b.DetailsRequests
		ev.DetailsErrors += b.DetailsErrors
	}
	if ev.Searches > 0 {
		r := float64(ev.ZeroSearches) / float64(ev.Searches)
		ev.ZeroRate = &r
	}
	if ev.DetailsRequests > 0 {
		r := float64(ev.DetailsErrors) / float64(ev.DetailsRequests)
		ev.DetailsErrorRate = &r
	}

	ev.AlertZeroRate = ev.ZeroRate != nil &&
		ev.Searches >= int64(th.MinSearches) &&
		*ev.ZeroRate > th.ZeroRateGT
	ev.AlertDetailsErrorRate = ev.DetailsErrorRate != nil &&
		ev.DetailsRequests >= int64(th.MinDetailsRequests) &&
		*ev.DetailsErrorRate > th.DetailsErrorRateGT
	ev.AlertActive = ev.AlertZeroRate || ev.AlertDetailsErrorRate
	return ev
}

// Package monitor actively probes the live search endpoint and feeds
// failures into the alert dispatch path. Checks run sequentially; a run is
// never cancelled mid-check.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"searchwatch/internal/model"
	"searchwatch/internal/notify"
)

const (
	ExitOK      = 0
	ExitFailure = 2

	// FailureEventType tags run summaries sent to the webhook;
	// FallbackEventType tags the same summary when it is self-recorded
	// through the telemetry endpoint instead.
	FailureEventType  = "synthetic_monitor_failure"
	FallbackEventType = "synthetic_failure"

	defaultCheckTimeout = 10 * time.Second
)

type Monitor struct {
	BaseURL      string
	Queries      []string
	Size         int
	MaxLatencyMS int64
	CheckTimeout time.Duration
	Notifier     *notify.Notifier
	Logger       *slog.Logger
	Out          io.Writer

	client *http.Client
}

func New(baseURL string, queries []string, size int, maxLatencyMS int64, notifier *notify.Notifier, logger *slog.Logger, out io.Writer) *Monitor {
	return &Monitor{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		Queries:      queries,
		Size:         size,
		MaxLatencyMS: maxLatencyMS,
		CheckTimeout: defaultCheckTimeout,
		Notifier:     notifier,
		Logger:       logger,
		Out:          out,
		client:       &http.Client{},
	}
}

// Check issues one read-only probe and classifies it. Every failure mode is
// captured as a reason string; Check itself never fails.
func (m *Monitor) Check(ctx context.Context, query string) model.SyntheticCheckResult {
	res := model.SyntheticCheckResult{Query: query, Status: model.CheckFail}

	params := url.Values{}
	params.Set("q", query)
	params.Set("size", strconv.Itoa(m.Size))
	target := m.BaseURL + "/search?" + params.Encode()

	ctx, cancel := context.WithTimeout(ctx, m.CheckTimeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	resp, err := m.client.Do(req)
	res.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return res
	}
	var body struct {
		Total float64 `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		res.Error = "Non-JSON response"
		return res
	}
	total := int64(body.Total)
	res.Total = &total
	if total <= 0 {
		res.Error = "Zero results"
		return res
	}
	if res.LatencyMS > m.MaxLatencyMS {
		res.Error = fmt.Sprintf("Latency %dms exceeds %dms", res.LatencyMS, m.MaxLatencyMS)
		return res
	}
	res.Status = model.CheckOK
	return res
}

// RunOnce executes the configured queries in order, dispatches a summary if
// anything failed, prints the per-check log lines, and returns the summary
// with the process exit code for this run.
func (m *Monitor) RunOnce(ctx context.Context) (model.SyntheticRunSummary, int) {
	summary := model.SyntheticRunSummary{
		RunID:   uuid.NewString(),
		BaseURL: m.BaseURL,
		TS:      time.Now().Unix(),
	}
	for _, q := range m.Queries {
		r := m.Check(ctx, q)
		summary.Results = append(summary.Results, r)
		if r.OK() {
			summary.OKCount++
		} else {
			summary.Failures = append(summary.Failures, r)
		}
	}
	summary.TotalChecks = len(summary.Results)

	if len(summary.Failures) > 0 && m.Notifier != nil {
		m.Notifier.DispatchTagged(ctx, FailureEventType, FallbackEventType, summary)
	}
	m.printResults(summary.Results)

	if len(summary.Failures) > 0 {
		return summary, ExitFailure
	}
	return summary, ExitOK
}

// Loop repeats runs at a fixed interval until ctx is cancelled. The current
// run always completes; the last non-zero exit code is sticky.
func (m *Monitor) Loop(ctx context.Context, interval time.Duration) int {
	code := ExitOK
	for {
		_, c := m.RunOnce(context.Background())
		if c != ExitOK {
			code = c
		}
		select {
		case <-ctx.Done():
			if m.Logger != nil {
				m.Logger.Info("monitor loop stopping", "exit_code", code)
			}
			return code
		case <-time.After(interval):
		}
	}
}

func (m *Monitor) printResults(results []model.SyntheticCheckResult) {
	if m.Out == nil {
		return
	}
	for _, r := range results {
		status := "FAIL"
		if r.OK() {
			status = "OK"
		}
		total := "?"
		if r.Total != nil {
			total = strconv.FormatInt(*r.Total, 10)
		}
		line := fmt.Sprintf("[%s] q='%s' total=%s latency_ms=%d", status, r.Query, total, r.LatencyMS)
		if !r.OK() {
			line += " reason=" + r.Error
		}
		fmt.Fprintln(m.Out, line)
	}
}

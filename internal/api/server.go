package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"searchwatch/internal/alerting"
	"searchwatch/internal/config"
	"searchwatch/internal/ingest"
	"searchwatch/internal/model"
	"searchwatch/internal/notify"
	"searchwatch/internal/storage"
	"searchwatch/internal/telemetry"
)

const (
	minWindowHours = 1
	maxWindowHours = 168
)

type Server struct {
	cfg      *config.Config
	store    storage.Store
	agg      *telemetry.Aggregator
	eval     *alerting.Evaluator
	notifier *notify.Notifier
	logger   *slog.Logger
	version  string
	now      func() time.Time
}

func NewServer(cfg *config.Config, store storage.Store, notifier *notify.Notifier, logger *slog.Logger, version string) *Server {
	agg := telemetry.NewAggregator(store)
	return &Server{
		cfg:      cfg,
		store:    store,
		agg:      agg,
		eval:     alerting.NewEvaluator(agg),
		notifier: notifier,
		logger:   logger,
		version:  version,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ui/report", s.handleReport).Methods(http.MethodPost)
	r.HandleFunc("/ui/telemetry", s.handleTelemetry).Methods(http.MethodPost)
	r.HandleFunc("/ui/telemetry/metrics", s.handleTelemetryMetrics).Methods(http.MethodGet)
	r.HandleFunc("/ui/telemetry/alerts", s.handleTelemetryAlerts).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics/prometheus", promhttp.Handler()).Methods(http.MethodGet)
	r.Use(s.instrument)
	return r
}

// Start serves the API until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, server *Server) *http.Server {
	addr := server.cfg.API.Addr
	if server.logger != nil {
		server.logger.Info("api enabled", "addr", addr)
	}
	httpServer := &http.Server{Addr: addr, Handler: server.Routes()}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if server.logger != nil {
				server.logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

// handleReport is the strict ingestion path: a body that is not a JSON
// object is a client error.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.API.MaxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "unreadable body"})
		return
	}
	ev, err := ingest.ParseEvent(body, ingest.Strict)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid JSON body"})
		return
	}
	if err := s.store.AppendEvent(r.Context(), ev); err != nil {
		if s.logger != nil {
			s.logger.Error("report append failed", "event_type", ev.EventType, "err", err)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false})
		return
	}
	eventsStored.WithLabelValues("strict").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleTelemetry is the lenient ingestion path: malformed bodies and store
// errors alike come back as ok:false with a success status, because
// telemetry must never disrupt the caller.
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.API.MaxBodyBytes))
	if err != nil {
		s.softFail(w, "unreadable telemetry body", err)
		return
	}
	ev, err := ingest.ParseEvent(body, ingest.Lenient)
	if err != nil {
		s.softFail(w, "malformed telemetry body", err)
		return
	}
	if err := s.store.AppendEvent(r.Context(), ev); err != nil {
		s.softFail(w, "telemetry append failed", err)
		return
	}
	eventsStored.WithLabelValues("lenient").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) softFail(w http.ResponseWriter, msg string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, "err", err)
	}
	ingestSoftFailures.Inc()
	writeJSON(w, http.StatusOK, map[string]any{"ok": false})
}

func (s *Server) handleTelemetryMetrics(w http.ResponseWriter, r *http.Request) {
	hours, err := intParam(r, "hours", 24, minWindowHours, maxWindowHours)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	now := s.now()
	buckets, err := s.agg.Aggregate(r.Context(), now.Add(-time.Duration(hours)*time.Hour), now)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("metrics aggregation failed", "err", err)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "aggregation failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"window_hours": hours,
		"buckets":      buckets,
	})
}

type alertsResponse struct {
	model.AlertEvaluation
	WebhookSent bool `json:"webhook_sent"`
}

func (s *Server) handleTelemetryAlerts(w http.ResponseWriter, r *http.Request) {
	defaults := alerting.ThresholdsFromConfig(s.cfg.Alerts)
	hours, err := intParam(r, "hours", 1, minWindowHours, maxWindowHours)
	if err == nil {
		defaults.ZeroRateGT, err = floatParam(r, "zero_rate_gt", defaults.ZeroRateGT)
	}
	if err == nil {
		defaults.DetailsErrorRateGT, err = floatParam(r, "details_error_rate_gt", defaults.DetailsErrorRateGT)
	}
	if err == nil {
		defaults.MinSearches, err = intParam(r, "min_searches", defaults.MinSearches, 0, 1<<30)
	}
	if err == nil {
		defaults.MinDetailsRequests, err = intParam(r, "min_details_requests", defaults.MinDetailsRequests, 0, 1<<30)
	}
	var send int
	if err == nil {
		send, err = intParam(r, "send", 0, 0, 1)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	eval, err := s.eval.Evaluate(r.Context(), s.now(), hours, defaults)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("alert evaluation failed", "err", err)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "evaluation failed"})
		return
	}
	alertEvaluations.WithLabelValues(strconv.FormatBool(eval.AlertActive)).Inc()

	// Dispatch only on explicit opt-in, and only when a rule fired.
	sent := false
	if send == 1 && eval.AlertActive {
		sent = s.notifier.Dispatch(r.Context(), "ui_telemetry_alert", eval)
	}
	writeJSON(w, http.StatusOK, alertsResponse{AlertEvaluation: eval, WebhookSent: sent})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"time":    s.now().Format(time.RFC3339Nano),
		"version": s.version,
	})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tmpl
			}
		}
		requestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(sw.status)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func intParam(r *http.Request, name string, def, min, max int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("%s must be between %d and %d", name, min, max)
	}
	return n, nil
}

func floatParam(r *http.Request, name string, def float64) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	if f < 0 || f > 1 {
		return 0, fmt.Errorf("%s must be between 0 and 1", name)
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

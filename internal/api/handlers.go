package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobsignal/internal/analysis"
	"github.com/JakeFAU/jobsignal/internal/scanner"
	"github.com/JakeFAU/jobsignal/internal/trends"
)

const maxRequestBody = 64 << 10

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	source := "none"
	if s.opts.ProviderConfigured {
		source = "live_api"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "healthy",
		"environment":         s.opts.Environment,
		"provider_configured": s.opts.ProviderConfigured,
		"data_source":         source,
		"version":             s.opts.Version,
	})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) analyzeJobs(w http.ResponseWriter, r *http.Request) {
	var req analysis.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	resp, err := s.analyzer.Analyze(r.Context(), req)
	if err != nil {
		status, msg := classifyError(err)
		logger := s.logger.With(
			zap.String("request_id", RequestID(r.Context())),
			zap.String("job_title", req.JobTitle),
			zap.Error(err),
		)
		if status >= http.StatusInternalServerError {
			logger.Error("analysis failed", zap.Int("status", status))
		} else {
			logger.Info("analysis rejected", zap.Int("status", status))
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// classifyError maps pipeline errors to an HTTP status and a message safe to
// show callers.
func classifyError(err error) (int, string) {
	var statusErr *scanner.UpstreamStatusError
	switch {
	case errors.Is(err, scanner.ErrEmptyTitle):
		return http.StatusUnprocessableEntity, scanner.ErrEmptyTitle.Error()
	case errors.Is(err, scanner.ErrInvalidTimeRange):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, scanner.ErrProviderNotConfigured):
		return http.StatusServiceUnavailable, scanner.ErrProviderNotConfigured.Error()
	case errors.Is(err, scanner.ErrUpstreamTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, scanner.ErrUpstreamTimeout.Error()
	case errors.As(err, &statusErr):
		return http.StatusBadGateway, statusErr.Error()
	default:
		return http.StatusInternalServerError, "analysis failed"
	}
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	limit := s.opts.HistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, s.opts.MaxHistoryLimit)
	}
	records, err := s.store.History(r.Context(), limit)
	if err != nil {
		s.logger.Error("load history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": records, "count": len(records)})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.History(r.Context(), 0)
	if err != nil {
		s.logger.Error("load history for stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, trends.Aggregate(records))
}

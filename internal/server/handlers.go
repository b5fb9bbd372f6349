package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/smartdevs17/workflow-relay/internal/models"
	"github.com/smartdevs17/workflow-relay/pkg/utils"
)

// readBody reads the request body, reporting an oversized body as 413
func (s *HTTPServer) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "Request body too large", nil)
			return nil, false
		}
		s.writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return nil, false
	}
	return body, true
}

// Health Handlers

// healthHandler returns service health. A missing durable store degrades the
// service but it keeps answering requests.
func (s *HTTPServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := s.processor.GetHealth(r.Context())

	status := "healthy"
	if !health.StorageHealthy {
		status = "degraded"
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          status,
		"timestamp":       time.Now().UTC().Format(time.RFC3339Nano),
		"version":         s.config.Version,
		"metrics_enabled": s.config.EnableMetrics,
		"storage":         health.Storage,
		"issues":          health.Issues,
	})
}

// statsHandler returns processing statistics
func (s *HTTPServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"processor": s.processor.GetStats(),
	})
}

// Article Handlers

// createArticleHandler replaces the stored article with the request body
func (s *HTTPServer) createArticleHandler(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || !json.Valid(body) {
		s.writeError(w, http.StatusBadRequest, "Article must be valid JSON", nil)
		return
	}

	if err := s.articles.Set(r.Context(), json.RawMessage(body)); err != nil {
		s.writeError(w, statusForError(err), "Failed to save article", err)
		return
	}

	if s.metricsManager != nil {
		s.metricsManager.GetPrometheusMetrics().RecordArticleWrite()
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Article saved successfully",
	})
}

// getArticleHandler returns the stored article as it was submitted
func (s *HTTPServer) getArticleHandler(w http.ResponseWriter, r *http.Request) {
	article, err := s.articles.Get(r.Context())
	if err != nil {
		if utils.HasCode(err, utils.ErrCodeNotFound) {
			s.writeError(w, http.StatusNotFound, "Article not found", nil)
			return
		}
		s.writeError(w, statusForError(err), "Failed to read article", err)
		return
	}

	s.writeJSON(w, http.StatusOK, article)
}

// Log Handlers

// createLogsHandler ingests one record or an array of records
func (s *HTTPServer) createLogsHandler(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	result, err := s.processor.Ingest(r.Context(), body)
	if err != nil {
		s.writeError(w, statusForError(err), "Invalid log payload", err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"count":   result.Count,
		"logs":    result.Logs,
	})
}

// listLogsHandler lists logs newest first
func (s *HTTPServer) listLogsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := models.ParseListOptions(query.Get("page"), query.Get("limit"))

	s.writeJSON(w, http.StatusOK, s.processor.List(r.Context(), opts))
}

// clearLogsHandler removes every stored log
func (s *HTTPServer) clearLogsHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.processor.Clear(r.Context()); err != nil {
		s.writeError(w, statusForError(err), "Failed to clear logs", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Logs cleared",
	})
}

// Storage Handlers

// storageStatusHandler reports durable storage reachability
func (s *HTTPServer) storageStatusHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.processor.StorageStatus(r.Context()))
}

// File: internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/smartdevs17/workflow-relay/internal/metrics"
	"github.com/smartdevs17/workflow-relay/internal/processor"
	"github.com/smartdevs17/workflow-relay/internal/storage"
	"github.com/smartdevs17/workflow-relay/pkg/utils"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port          int           `json:"port"`
	Host          string        `json:"host"`
	ReadTimeout   time.Duration `json:"read_timeout"`
	WriteTimeout  time.Duration `json:"write_timeout"`
	MaxBodyBytes  int64         `json:"max_body_bytes"`
	EnableMetrics bool          `json:"enable_metrics"`
	EnableHealth  bool          `json:"enable_health"`
	// EnableStorageStatus exposes /storage/status; set for durable backends
	EnableStorageStatus bool   `json:"enable_storage_status"`
	Version             string `json:"version"`
}

// HTTPServer represents the HTTP server
type HTTPServer struct {
	config         *ServerConfig
	server         *http.Server
	router         *mux.Router
	processor      processor.Processor
	articles       storage.ArticleSlot
	metricsManager *metrics.Manager
	logger         *logrus.Entry
}

// NewHTTPServer creates a new HTTP server. metricsManager may be nil.
func NewHTTPServer(
	config *ServerConfig,
	processor processor.Processor,
	articles storage.ArticleSlot,
	metricsManager *metrics.Manager,
) *HTTPServer {
	server := &HTTPServer{
		config:         config,
		processor:      processor,
		articles:       articles,
		metricsManager: metricsManager,
		logger:         utils.ComponentLogger("http"),
	}

	// Setup router
	server.setupRouter()

	server.server = &http.Server{
		Addr:         net.JoinHostPort(config.Host, fmt.Sprintf("%d", config.Port)),
		Handler:      server.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return server
}

// setupRouter sets up the HTTP routes
func (s *HTTPServer) setupRouter() {
	s.router = mux.NewRouter()

	// Middleware
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
	if s.metricsManager != nil {
		s.router.Use(s.metricsMiddleware)
	}

	// API routes
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.bodyLimitMiddleware)

	// Health check endpoint
	if s.config.EnableHealth {
		api.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet, http.MethodOptions)
	}

	// Metrics endpoint
	if s.config.EnableMetrics {
		if s.metricsManager != nil {
			s.router.Handle("/metrics", promhttp.HandlerFor(s.metricsManager.Gatherer(), promhttp.HandlerOpts{}))
		} else {
			s.router.Handle("/metrics", promhttp.Handler())
		}
		api.HandleFunc("/stats", s.statsHandler).Methods(http.MethodGet, http.MethodOptions)
	}

	// Article endpoints; OPTIONS is answered by corsMiddleware
	api.HandleFunc("/article", s.createArticleHandler).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/article", s.getArticleHandler).Methods(http.MethodGet)

	// Log endpoints
	api.HandleFunc("/logs", s.createLogsHandler).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/logs", s.listLogsHandler).Methods(http.MethodGet)
	api.HandleFunc("/logs/clear", s.clearLogsHandler).Methods(http.MethodPost, http.MethodOptions)

	// Storage endpoints
	if s.config.EnableStorageStatus {
		api.HandleFunc("/storage/status", s.storageStatusHandler).Methods(http.MethodGet, http.MethodOptions)
	}

	s.router.NotFoundHandler = http.HandlerFunc(s.notFoundHandler)
}

// notFoundHandler answers unknown paths with a JSON 404
func (s *HTTPServer) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	s.writeError(w, http.StatusNotFound, "Route not found", nil)
}

// Handler returns the root HTTP handler
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address
func (s *HTTPServer) Addr() string {
	return s.server.Addr
}

// Serve listens until ctx is cancelled, then shuts the server down. It
// returns an error only if the listener fails.
func (s *HTTPServer) Serve(ctx context.Context) error {
	s.logger.WithFields(logrus.Fields{
		"address":         s.server.Addr,
		"metrics_enabled": s.config.EnableMetrics,
	}).Info("Starting HTTP server")

	// Update metrics immediately so they appear on first scrape
	if s.metricsManager != nil {
		s.refreshMetrics(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return s.Stop()
	})

	if s.metricsManager != nil {
		g.Go(func() error {
			s.systemMetricsUpdater(gctx)
			return nil
		})
	}

	return g.Wait()
}

// systemMetricsUpdater updates system metrics periodically
func (s *HTTPServer) systemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshMetrics(ctx)
		}
	}
}

func (s *HTTPServer) refreshMetrics(ctx context.Context) {
	s.metricsManager.UpdateSystemMetrics()

	health := s.processor.GetHealth(ctx)
	s.metricsManager.GetPrometheusMetrics().UpdateComponentHealth("processor", health.Healthy)
	s.metricsManager.GetPrometheusMetrics().UpdateComponentHealth("storage", health.StorageHealthy)
}

// Stop stops the HTTP server
func (s *HTTPServer) Stop() error {
	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// Utility Methods

// writeJSON writes a JSON response
func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string, err error) {
	errorResponse := map[string]interface{}{
		"success":   false,
		"error":     message,
		"status":    status,
		"timestamp": time.Now().UTC(),
	}

	if err != nil {
		errorResponse["details"] = err.Error()
		entry := s.logger.WithFields(logrus.Fields{
			"status":  status,
			"message": message,
		}).WithError(err)
		if status >= http.StatusInternalServerError {
			entry.Error("HTTP error")
		} else {
			entry.Debug("HTTP client error")
		}
	}

	s.writeJSON(w, status, errorResponse)
}

// statusForError maps an application error code to an HTTP status
func statusForError(err error) int {
	switch utils.ErrorCode(err) {
	case utils.ErrCodeValidation:
		return http.StatusBadRequest
	case utils.ErrCodeNotFound:
		return http.StatusNotFound
	case utils.ErrCodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

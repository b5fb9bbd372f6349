package storage

import (
	"context"
	"time"

	"github.com/smartdevs17/workflow-relay/internal/metrics"
	"github.com/smartdevs17/workflow-relay/internal/models"
)

// StorageWithMetrics wraps a log store and records per-operation metrics
type StorageWithMetrics struct {
	LogStore
	metricsManager *metrics.Manager
}

// NewStorageWithMetrics creates a store wrapper with metrics
func NewStorageWithMetrics(store LogStore, metricsManager *metrics.Manager) *StorageWithMetrics {
	return &StorageWithMetrics{
		LogStore:       store,
		metricsManager: metricsManager,
	}
}

func (s *StorageWithMetrics) record(operation string, start time.Time, err error) {
	if s.metricsManager == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	s.metricsManager.GetPrometheusMetrics().RecordStorageOperation(
		operation,
		s.LogStore.Backend(),
		status,
		time.Since(start),
	)
}

// Append stores an entry and records metrics
func (s *StorageWithMetrics) Append(ctx context.Context, entry *models.LogEntry) (*models.LogEntry, error) {
	start := time.Now()
	stored, err := s.LogStore.Append(ctx, entry)
	s.record("append", start, err)
	return stored, err
}

// List returns a page and records metrics
func (s *StorageWithMetrics) List(ctx context.Context, opts models.ListOptions) (*models.LogPage, error) {
	start := time.Now()
	page, err := s.LogStore.List(ctx, opts)
	s.record("list", start, err)

	if err == nil && s.metricsManager != nil {
		s.metricsManager.GetPrometheusMetrics().UpdateStoredEntries(page.Total)
	}
	return page, err
}

// DeleteLatestWaiting reconciles a waiting entry and records metrics
func (s *StorageWithMetrics) DeleteLatestWaiting(ctx context.Context, match models.WaitingMatch) (*models.LogEntry, error) {
	start := time.Now()
	removed, err := s.LogStore.DeleteLatestWaiting(ctx, match)
	s.record("delete_waiting", start, err)
	return removed, err
}

// Clear removes all entries and records metrics
func (s *StorageWithMetrics) Clear(ctx context.Context) (int64, error) {
	start := time.Now()
	removed, err := s.LogStore.Clear(ctx)
	s.record("clear", start, err)

	if err == nil && s.metricsManager != nil {
		s.metricsManager.GetPrometheusMetrics().UpdateStoredEntries(0)
	}
	return removed, err
}

// Status reports backend reachability and updates the component health gauge
func (s *StorageWithMetrics) Status(ctx context.Context) *StorageStatus {
	status := s.LogStore.Status(ctx)
	if s.metricsManager != nil {
		s.metricsManager.GetPrometheusMetrics().UpdateComponentHealth("storage", status.Connected)
	}
	return status
}

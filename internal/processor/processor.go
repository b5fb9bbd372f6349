// File: internal/processor/processor.go
package processor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/workflow-relay/internal/metrics"
	"github.com/smartdevs17/workflow-relay/internal/models"
	"github.com/smartdevs17/workflow-relay/internal/storage"
	"github.com/smartdevs17/workflow-relay/pkg/utils"
)

// Processor defines the log processing interface
type Processor interface {
	// Log operations
	Ingest(ctx context.Context, body []byte) (*IngestResult, error)
	List(ctx context.Context, opts models.ListOptions) *models.LogPage
	Clear(ctx context.Context) error

	// Statistics and monitoring
	GetStats() *ProcessorStats
	GetHealth(ctx context.Context) *ProcessorHealth
	StorageStatus(ctx context.Context) *storage.StorageStatus
}

// LogProcessor normalizes, reconciles and stores workflow log records
type LogProcessor struct {
	store          storage.LogStore
	metricsManager *metrics.Manager
	logger         *logrus.Entry

	// now is the wall clock; timestamps issued from it never go backwards
	now           func() time.Time
	clockMu       sync.Mutex
	lastTimestamp time.Time

	mu    sync.RWMutex
	stats *ProcessorStats
}

// IngestResult contains the outcome of one ingestion call
type IngestResult struct {
	Logs   []*models.LogEntry `json:"logs"`
	Count  int                `json:"count"`
	Failed int                `json:"failed"`
	Errors []error            `json:"-"`
}

// ProcessorStats provides processor statistics
type ProcessorStats struct {
	StartTime            time.Time     `json:"start_time"`
	Uptime               time.Duration `json:"uptime"`
	TotalRecordsReceived uint64        `json:"total_records_received"`
	TotalEntriesStored   uint64        `json:"total_entries_stored"`
	TotalReconciled      uint64        `json:"total_reconciled"`
	ErrorCount           uint64        `json:"error_count"`
	LastError            *string       `json:"last_error,omitempty"`
	LastErrorTime        *time.Time    `json:"last_error_time,omitempty"`
}

// ProcessorHealth provides processor health information
type ProcessorHealth struct {
	Healthy        bool                   `json:"healthy"`
	StorageHealthy bool                   `json:"storage_healthy"`
	Storage        *storage.StorageStatus `json:"storage"`
	Issues         []string               `json:"issues,omitempty"`
}

// NewLogProcessor creates a processor over store. metricsManager may be nil.
func NewLogProcessor(store storage.LogStore, metricsManager *metrics.Manager) *LogProcessor {
	return &LogProcessor{
		store:          store,
		metricsManager: metricsManager,
		logger:         utils.ComponentLogger("processor"),
		now:            time.Now,
		stats: &ProcessorStats{
			StartTime: time.Now(),
		},
	}
}

// Ingest parses body and processes each record in order: normalize the
// status, reconcile a superseded waiting entry, then append the new entry.
// An empty body is rejected before anything is processed. A record that
// fails is logged and skipped; the rest of the batch still runs.
//
// Reconciliation and append are separate store calls. Two concurrent
// requests for the same correlation key may therefore interleave, briefly
// leaving two waiting entries or removing the other request's entry.
func (p *LogProcessor) Ingest(ctx context.Context, body []byte) (*IngestResult, error) {
	records, parseErrs, err := models.ParseLogRecords(body)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := &IngestResult{
		Logs: make([]*models.LogEntry, 0, len(records)),
	}

	for i, record := range records {
		if parseErrs[i] != nil {
			p.recordFailure(result, i, models.LogTypeInfo, parseErrs[i])
			continue
		}

		entry, err := p.processRecord(ctx, record)
		if err != nil {
			p.recordFailure(result, i, entry.Type, err)
			continue
		}

		result.Logs = append(result.Logs, entry)
		result.Count++
		if p.metricsManager != nil {
			p.metricsManager.GetPrometheusMetrics().RecordLogRecord(string(entry.Type), "stored")
		}
	}

	p.mu.Lock()
	p.stats.TotalRecordsReceived += uint64(len(records))
	p.stats.TotalEntriesStored += uint64(result.Count)
	p.mu.Unlock()

	if p.metricsManager != nil {
		p.metricsManager.GetPrometheusMetrics().RecordIngestionBatch(len(records))
	}

	p.logger.WithFields(logrus.Fields{
		"records":         len(records),
		"stored":          result.Count,
		"failed":          result.Failed,
		"processing_time": time.Since(start),
	}).Info("Log batch processed")

	return result, nil
}

// processRecord runs one record through normalization, reconciliation and
// append. The returned entry is the one that was, or would have been,
// appended.
func (p *LogProcessor) processRecord(ctx context.Context, record *models.LogRecord) (*models.LogEntry, error) {
	logType := Normalize(record)

	if match, ok := WaitingMatchFor(logType, record); ok {
		removed, outcome := reconcile(ctx, p.store, match, p.logger)
		if removed != nil {
			p.mu.Lock()
			p.stats.TotalReconciled++
			p.mu.Unlock()
		}
		if p.metricsManager != nil {
			p.metricsManager.GetPrometheusMetrics().RecordReconciliation(outcome)
		}
	}

	entry := models.NewLogEntry(logType, record.Data(), p.nextTimestamp())
	stored, err := p.store.Append(ctx, entry)
	if err != nil {
		return entry, err
	}
	return stored, nil
}

func (p *LogProcessor) recordFailure(result *IngestResult, index int, logType models.LogType, err error) {
	result.Failed++
	result.Errors = append(result.Errors, err)

	p.logger.WithFields(logrus.Fields{
		"index": index,
		"type":  logType,
	}).WithError(err).Error("Failed to store log record")

	p.mu.Lock()
	p.stats.ErrorCount++
	errorStr := err.Error()
	p.stats.LastError = &errorStr
	now := time.Now()
	p.stats.LastErrorTime = &now
	p.mu.Unlock()

	if p.metricsManager != nil {
		p.metricsManager.GetPrometheusMetrics().RecordLogRecord(string(logType), "failed")
	}
}

// nextTimestamp returns the current time, held at the previous timestamp if
// the wall clock stepped backwards
func (p *LogProcessor) nextTimestamp() time.Time {
	p.clockMu.Lock()
	defer p.clockMu.Unlock()

	ts := p.now().UTC()
	if ts.Before(p.lastTimestamp) {
		ts = p.lastTimestamp
	}
	p.lastTimestamp = ts
	return ts
}

// List returns one newest-first page. A store failure degrades to an empty
// page.
func (p *LogProcessor) List(ctx context.Context, opts models.ListOptions) *models.LogPage {
	page, err := p.store.List(ctx, opts)
	if err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"page":  opts.Page,
			"limit": opts.Limit,
		}).Warn("Listing logs failed, returning an empty page")
		if p.metricsManager != nil {
			p.metricsManager.GetPrometheusMetrics().RecordListDegraded()
		}
		return models.EmptyLogPage(opts)
	}
	if page.Logs == nil {
		page.Logs = []*models.LogEntry{}
	}
	return page
}

// Clear removes every stored entry
func (p *LogProcessor) Clear(ctx context.Context) error {
	removed, err := p.store.Clear(ctx)
	if err != nil {
		p.logger.WithError(err).Error("Failed to clear logs")
		return err
	}

	if p.metricsManager != nil {
		p.metricsManager.GetPrometheusMetrics().RecordLogsCleared()
	}
	p.logger.WithField("removed", removed).Info("Logs cleared")
	return nil
}

// StorageStatus reports the reachability of the log store
func (p *LogProcessor) StorageStatus(ctx context.Context) *storage.StorageStatus {
	return p.store.Status(ctx)
}

// GetStats returns processor statistics
func (p *LogProcessor) GetStats() *ProcessorStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := *p.stats
	stats.Uptime = time.Since(stats.StartTime)
	return &stats
}

// GetHealth returns processor health. An unreachable durable store makes the
// processor degraded, not unhealthy, since requests are still served.
func (p *LogProcessor) GetHealth(ctx context.Context) *ProcessorHealth {
	status := p.store.Status(ctx)
	health := &ProcessorHealth{
		Healthy:        true,
		StorageHealthy: status.Connected,
		Storage:        status,
	}
	if !status.Connected {
		health.Issues = append(health.Issues, "Storage unavailable: "+status.Error)
	}
	return health
}

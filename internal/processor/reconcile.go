package processor

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/workflow-relay/internal/models"
	"github.com/smartdevs17/workflow-relay/internal/storage"
)

// Reconciliation outcomes reported to metrics
const (
	ReconcileRemoved = "removed"
	ReconcileNoMatch = "no_match"
	ReconcileError   = "error"
)

// WaitingMatchFor returns the correlation key of the waiting entry that a
// record supersedes. Only success records carrying a draft execution id
// qualify.
func WaitingMatchFor(logType models.LogType, record *models.LogRecord) (models.WaitingMatch, bool) {
	if logType != models.LogTypeSuccess || record == nil || record.DraftExecutionID == "" {
		return models.WaitingMatch{}, false
	}
	return models.WaitingMatch{
		ExecutionID: record.DraftExecutionID,
		Platform:    record.Platform,
	}, true
}

// reconcile removes the newest waiting entry matching match. A failed lookup
// is logged and treated as no match.
func reconcile(ctx context.Context, store storage.LogStore, match models.WaitingMatch, logger *logrus.Entry) (*models.LogEntry, string) {
	fields := logrus.Fields{
		"execution_id": match.ExecutionID,
		"platform":     match.Platform,
	}

	removed, err := store.DeleteLatestWaiting(ctx, match)
	if err != nil {
		logger.WithFields(fields).WithError(err).Warn("Waiting entry lookup failed, continuing without reconciliation")
		return nil, ReconcileError
	}
	if removed == nil {
		logger.WithFields(fields).Debug("No waiting entry to reconcile")
		return nil, ReconcileNoMatch
	}

	logger.WithFields(fields).WithField("removed_id", removed.ID).Info("Removed superseded waiting entry")
	return removed, ReconcileRemoved
}

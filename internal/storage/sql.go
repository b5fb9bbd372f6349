package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/workflow-relay/internal/models"
	"github.com/smartdevs17/workflow-relay/pkg/utils"
)

// sqlDialect holds the backend-specific statements of a SQL log store
type sqlDialect struct {
	insert                    string
	count                     string
	list                      string
	deleteLatestWaiting       string
	deleteLatestWaitingOnPlat string
	clear                     string
}

// sqlStore implements the log operations shared by the SQL backends
type sqlStore struct {
	mu      sync.RWMutex
	db      *sql.DB
	backend string
	dialect sqlDialect
	logger  *logrus.Entry

	lastStatus *StorageStatus
}

func (s *sqlStore) conn() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, utils.NewAppError(utils.ErrCodeStorageUnavailable, "Database not connected", s.backend)
	}
	return s.db, nil
}

func (s *sqlStore) setConn(db *sql.DB, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db = db
	s.lastStatus = lastKnownStatus(s.backend, db != nil && err == nil, err)
}

// Append inserts a single entry
func (s *sqlStore) Append(ctx context.Context, entry *models.LogEntry) (*models.LogEntry, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	stored := cloneEntry(entry)
	dataJSON, err := json.Marshal(stored.Data)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to marshal log data", err.Error())
	}

	if _, err := db.ExecContext(ctx, s.dialect.insert,
		stored.ID, string(stored.Type), string(dataJSON), stored.Timestamp.UnixNano()); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to save log entry", err.Error())
	}

	return stored, nil
}

// List returns one newest-first page
func (s *sqlStore) List(ctx context.Context, opts models.ListOptions) (*models.LogPage, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	var total int64
	if err := db.QueryRowContext(ctx, s.dialect.count).Scan(&total); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count log entries", err.Error())
	}

	rows, err := db.QueryContext(ctx, s.dialect.list, opts.Limit, opts.Offset())
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query log entries", err.Error())
	}
	defer rows.Close()

	logs := make([]*models.LogEntry, 0, opts.Limit)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to iterate log entries", err.Error())
	}

	return &models.LogPage{
		Logs:  logs,
		Total: total,
		Page:  opts.Page,
		Limit: opts.Limit,
	}, nil
}

// DeleteLatestWaiting deletes the newest matching waiting entry in a single
// statement
func (s *sqlStore) DeleteLatestWaiting(ctx context.Context, match models.WaitingMatch) (*models.LogEntry, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	var row *sql.Row
	if match.Platform != "" {
		row = db.QueryRowContext(ctx, s.dialect.deleteLatestWaitingOnPlat, match.ExecutionID, match.Platform)
	} else {
		row = db.QueryRowContext(ctx, s.dialect.deleteLatestWaiting, match.ExecutionID)
	}

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return entry, nil
}

// Clear removes every entry
func (s *sqlStore) Clear(ctx context.Context) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}

	result, err := db.ExecContext(ctx, s.dialect.clear)
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to clear log entries", err.Error())
	}
	removed, _ := result.RowsAffected()
	return removed, nil
}

// Ping checks database connectivity
func (s *sqlStore) Ping(ctx context.Context) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Status pings the database when connected, otherwise returns the status
// recorded by the last connection attempt
func (s *sqlStore) Status(ctx context.Context) *StorageStatus {
	s.mu.RLock()
	db, last := s.db, s.lastStatus
	s.mu.RUnlock()

	if db == nil {
		if last == nil {
			return lastKnownStatus(s.backend, false, errors.New("not connected"))
		}
		status := *last
		return &status
	}

	pingCtx, cancel := context.WithTimeout(ctx, statusCheckTimeout)
	defer cancel()
	return liveStatus(s.backend, db.PingContext(pingCtx))
}

// Backend returns the backend name
func (s *sqlStore) Backend() string {
	return s.backend
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.logger.Info("Database connection closed")
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*models.LogEntry, error) {
	var (
		entry     models.LogEntry
		logType   string
		dataJSON  []byte
		createdAt int64
	)

	if err := row.Scan(&entry.ID, &logType, &dataJSON, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan log entry", err.Error())
	}

	if err := json.Unmarshal(dataJSON, &entry.Data); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to unmarshal log data", err.Error())
	}
	if entry.Data == nil {
		entry.Data = make(map[string]interface{})
	}

	entry.Type = models.LogType(logType)
	entry.Timestamp = time.Unix(0, createdAt).UTC()
	return &entry, nil
}

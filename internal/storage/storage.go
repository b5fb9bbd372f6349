// File: internal/storage/storage.go
package storage

import (
	"context"
	"time"

	"github.com/smartdevs17/workflow-relay/internal/models"
)

// Backend names reported by log stores
const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// LogStore defines the operations every log backend must provide with
// identical observable behaviour: newest-first ordering by creation time,
// ties broken by insertion order.
type LogStore interface {
	// Append stores entry and returns the stored form
	Append(ctx context.Context, entry *models.LogEntry) (*models.LogEntry, error)
	// List returns one newest-first page and the total entry count
	List(ctx context.Context, opts models.ListOptions) (*models.LogPage, error)
	// DeleteLatestWaiting removes the newest waiting entry matching m and
	// returns it, or returns nil when nothing matches
	DeleteLatestWaiting(ctx context.Context, m models.WaitingMatch) (*models.LogEntry, error)
	// Clear removes every entry and returns how many were removed
	Clear(ctx context.Context) (int64, error)

	// Status reports backend reachability
	Status(ctx context.Context) *StorageStatus
	Backend() string
	Close() error
}

// DurableStore is a LogStore backed by an external database that must be
// connected and migrated before use
type DurableStore interface {
	LogStore
	Connect(ctx context.Context) error
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
}

// StorageStatus describes the reachability of a log store
type StorageStatus struct {
	Backend   string    `json:"backend"`
	Durable   bool      `json:"durable"`
	Connected bool      `json:"connected"`
	LastKnown bool      `json:"last_known"`
	CheckedAt time.Time `json:"checked_at"`
	Error     string    `json:"error,omitempty"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type             string        `json:"type"`
	ConnectionString string        `json:"connection_string"`
	Database         string        `json:"database"`
	Collection       string        `json:"collection"`
	MaxEntries       int           `json:"max_entries"`
	MaxConnections   int           `json:"max_connections"`
	MaxIdleTime      time.Duration `json:"max_idle_time"`
	ConnectTimeout   time.Duration `json:"connect_timeout"`
	ConnectRetries   int           `json:"connect_retries"`
	RetryDelay       time.Duration `json:"retry_delay"`
}

// statusCheckTimeout bounds the liveness ping issued by Status
const statusCheckTimeout = 2 * time.Second

// lastKnownStatus records the outcome of the most recent connection attempt
func lastKnownStatus(backend string, connected bool, err error) *StorageStatus {
	status := &StorageStatus{
		Backend:   backend,
		Durable:   backend != BackendMemory,
		Connected: connected,
		LastKnown: true,
		CheckedAt: time.Now().UTC(),
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status
}

// liveStatus builds a status from a liveness check performed just now
func liveStatus(backend string, pingErr error) *StorageStatus {
	status := lastKnownStatus(backend, pingErr == nil, pingErr)
	status.LastKnown = false
	return status
}

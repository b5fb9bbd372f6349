// File: internal/storage/factory.go
package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/workflow-relay/internal/config"
	"github.com/smartdevs17/workflow-relay/pkg/utils"
)

// ErrNoConnection is reported for a durable backend with no usable
// connection configured
var ErrNoConnection = errors.New("no connection configured")

// NewStorageConfig maps configuration onto store settings
func NewStorageConfig(cfg *config.StorageConfig) *StorageConfig {
	return &StorageConfig{
		Type:             strings.ToLower(cfg.Type),
		ConnectionString: cfg.ConnectionString,
		Database:         cfg.Database,
		Collection:       cfg.Collection,
		MaxEntries:       cfg.MaxEntries,
		MaxConnections:   cfg.MaxConnections,
		MaxIdleTime:      cfg.MaxIdleTime,
		ConnectTimeout:   cfg.ConnectTimeout,
		ConnectRetries:   cfg.ConnectRetries,
		RetryDelay:       cfg.RetryDelay,
	}
}

// NewDurableStore creates an unconnected durable store for the configured type
func NewDurableStore(cfg *StorageConfig) (DurableStore, error) {
	switch cfg.Type {
	case BackendMongo:
		return NewMongoStore(cfg), nil
	case BackendSQLite:
		return NewSQLiteStore(cfg), nil
	case BackendPostgres, "postgresql":
		return NewPostgresStore(cfg), nil
	default:
		return nil, utils.NewAppError(utils.ErrCodeConfiguration,
			"Unsupported storage type", cfg.Type)
	}
}

// Open selects the log store once at startup. The memory type yields the
// volatile store. A durable type is connected and migrated with retries; when
// it has no usable connection or cannot be reached, an UnavailableStore is
// returned in its place. Open never fails.
func Open(ctx context.Context, cfg *config.StorageConfig) LogStore {
	logger := utils.ComponentLogger("storage")
	storeConfig := NewStorageConfig(cfg)

	if storeConfig.Type == BackendMemory {
		logger.WithField("max_entries", storeConfig.MaxEntries).Info("Using in-memory log store")
		return NewMemoryStore(storeConfig.MaxEntries)
	}

	if !cfg.HasUsableConnection() {
		logger.WithField("backend", storeConfig.Type).Warn("Durable storage has no connection configured, logs will not be kept")
		return NewUnavailableStore(storeConfig.Type, ErrNoConnection)
	}

	store, err := NewDurableStore(storeConfig)
	if err != nil {
		logger.WithError(err).Warn("Durable storage could not be created, logs will not be kept")
		return NewUnavailableStore(storeConfig.Type, err)
	}

	if err := connectWithRetry(ctx, store, storeConfig, logger); err != nil {
		logger.WithError(err).WithField("backend", storeConfig.Type).
			Warn("Durable storage unavailable, logs will not be kept")
		return NewUnavailableStore(storeConfig.Type, err)
	}

	logger.WithField("backend", storeConfig.Type).Info("Durable log store ready")
	return store
}

// connectWithRetry connects and migrates store, retrying the whole sequence
func connectWithRetry(ctx context.Context, store DurableStore, cfg *StorageConfig, logger *logrus.Entry) error {
	builder := retrypolicy.NewBuilder[any]().
		WithMaxRetries(cfg.ConnectRetries).
		ReturnLastFailure().
		OnRetry(func(e failsafe.ExecutionEvent[any]) {
			logger.WithFields(logrus.Fields{
				"backend": cfg.Type,
				"attempt": e.Attempts(),
			}).WithError(e.LastError()).Warn("Retrying storage connection")
		})
	if cfg.RetryDelay > 0 {
		builder = builder.WithDelay(cfg.RetryDelay)
	}

	return failsafe.With[any](builder.Build()).WithContext(ctx).Run(func() error {
		attemptCtx := ctx
		if cfg.ConnectTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
			defer cancel()
		}

		if err := store.Connect(attemptCtx); err != nil {
			return err
		}
		if err := store.Migrate(attemptCtx); err != nil {
			_ = store.Close()
			return err
		}
		return nil
	})
}

// redactDSN strips credentials from a connection string before logging
func redactDSN(dsn string) string {
	parsed, err := url.Parse(dsn)
	if err != nil || parsed.Host == "" {
		return "<redacted>"
	}
	if parsed.User != nil {
		parsed.User = url.User(parsed.User.Username())
	}
	return parsed.Redacted()
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/workflow-relay/pkg/utils"
)

// Migration represents a database migration
type Migration struct {
	ID          int       `db:"id"`
	Version     string    `db:"version"`
	Description string    `db:"description"`
	SQL         string    `db:"sql"`
	AppliedAt   time.Time `db:"applied_at"`
}

// GetSQLiteMigrations returns SQLite migration scripts.
// created_at holds Unix nanoseconds; seq records insertion order.
func GetSQLiteMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create workflow_logs table",
			SQL: `
				CREATE TABLE IF NOT EXISTS workflow_logs (
					seq INTEGER PRIMARY KEY AUTOINCREMENT,
					id TEXT NOT NULL UNIQUE,
					type TEXT NOT NULL,
					data TEXT NOT NULL, -- JSON
					created_at INTEGER NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_workflow_logs_created_at ON workflow_logs(created_at DESC, seq DESC);
				CREATE INDEX IF NOT EXISTS idx_workflow_logs_type ON workflow_logs(type);
			`,
		},
	}
}

// GetPostgresMigrations returns PostgreSQL migration scripts
func GetPostgresMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create workflow_logs table",
			SQL: `
				CREATE TABLE IF NOT EXISTS workflow_logs (
					seq BIGSERIAL PRIMARY KEY,
					id TEXT NOT NULL UNIQUE,
					type TEXT NOT NULL,
					data JSONB NOT NULL,
					created_at BIGINT NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_workflow_logs_created_at ON workflow_logs(created_at DESC, seq DESC);
				CREATE INDEX IF NOT EXISTS idx_workflow_logs_waiting ON workflow_logs((data->>'execution_id')) WHERE type = 'waiting';
			`,
		},
	}
}

// applyMigrations runs every migration in order. All scripts are idempotent.
func applyMigrations(ctx context.Context, db *sql.DB, migrations []*Migration, logger *logrus.Entry) error {
	if db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}

	logger.Info("Starting database migrations")

	for _, migration := range migrations {
		logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		}).Debug("Applying migration")

		if _, err := db.ExecContext(ctx, migration.SQL); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase,
				fmt.Sprintf("Migration %s failed", migration.Version),
				err.Error())
		}
	}

	logger.Info("Database migrations completed")
	return nil
}

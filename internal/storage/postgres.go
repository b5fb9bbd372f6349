package storage

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/smartdevs17/workflow-relay/pkg/utils"
)

var postgresDialect = sqlDialect{
	insert: `INSERT INTO workflow_logs (id, type, data, created_at) VALUES ($1, $2, $3::jsonb, $4)`,
	count:  `SELECT COUNT(*) FROM workflow_logs`,
	list: `
		SELECT id, type, data, created_at FROM workflow_logs
		ORDER BY created_at DESC, seq DESC
		LIMIT $1 OFFSET $2`,
	deleteLatestWaiting: `
		DELETE FROM workflow_logs WHERE seq = (
			SELECT seq FROM workflow_logs
			WHERE type = 'waiting' AND data->>'execution_id' = $1
			ORDER BY created_at DESC, seq DESC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, type, data, created_at`,
	deleteLatestWaitingOnPlat: `
		DELETE FROM workflow_logs WHERE seq = (
			SELECT seq FROM workflow_logs
			WHERE type = 'waiting' AND data->>'execution_id' = $1 AND data->>'platform' = $2
			ORDER BY created_at DESC, seq DESC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, type, data, created_at`,
	clear: `DELETE FROM workflow_logs`,
}

// PostgresStore is a durable log store backed by PostgreSQL
type PostgresStore struct {
	sqlStore
	config     *StorageConfig
	migrations []*Migration
}

// NewPostgresStore creates a new PostgreSQL store. Connect must be called
// before use.
func NewPostgresStore(config *StorageConfig) *PostgresStore {
	return &PostgresStore{
		sqlStore: sqlStore{
			backend: BackendPostgres,
			dialect: postgresDialect,
			logger:  utils.ComponentLogger("storage.postgres"),
		},
		config:     config,
		migrations: GetPostgresMigrations(),
	}
}

// Connect establishes the database connection
func (p *PostgresStore) Connect(ctx context.Context) error {
	db, err := sql.Open("postgres", p.config.ConnectionString)
	if err != nil {
		err = utils.NewAppError(utils.ErrCodeDatabase, "Failed to open PostgreSQL database", err.Error())
		p.setConn(nil, err)
		return err
	}

	return p.attach(ctx, db)
}

// attach configures the pool and verifies the connection
func (p *PostgresStore) attach(ctx context.Context, db *sql.DB) error {
	if p.config.MaxConnections > 0 {
		db.SetMaxOpenConns(p.config.MaxConnections)
		db.SetMaxIdleConns(p.config.MaxConnections / 2)
	}
	db.SetConnMaxIdleTime(p.config.MaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		err = utils.NewAppError(utils.ErrCodeDatabase, "Failed to ping PostgreSQL database", err.Error())
		p.setConn(nil, err)
		return err
	}

	p.setConn(db, nil)
	p.logger.WithField("database", redactDSN(p.config.ConnectionString)).Info("PostgreSQL database connected")
	return nil
}

// Migrate runs database migrations
func (p *PostgresStore) Migrate(ctx context.Context) error {
	db, err := p.conn()
	if err != nil {
		return err
	}
	return applyMigrations(ctx, db, p.migrations, p.logger)
}

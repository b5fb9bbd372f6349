// File: internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/smartdevs17/workflow-relay/pkg/utils"
)

// sqliteJSONText renders a JSON field the way models.CorrelationString does,
// so booleans compare as "true"/"false" rather than 1/0
func sqliteJSONText(path string) string {
	return `CASE json_type(data, '` + path + `')
		WHEN 'true' THEN 'true' WHEN 'false' THEN 'false'
		ELSE CAST(json_extract(data, '` + path + `') AS TEXT) END`
}

var sqliteDialect = sqlDialect{
	insert: `INSERT INTO workflow_logs (id, type, data, created_at) VALUES (?, ?, ?, ?)`,
	count:  `SELECT COUNT(*) FROM workflow_logs`,
	list: `
		SELECT id, type, data, created_at FROM workflow_logs
		ORDER BY created_at DESC, seq DESC
		LIMIT ? OFFSET ?`,
	deleteLatestWaiting: `
		DELETE FROM workflow_logs WHERE seq = (
			SELECT seq FROM workflow_logs
			WHERE type = 'waiting'
			  AND ` + sqliteJSONText("$.execution_id") + ` = ?
			ORDER BY created_at DESC, seq DESC
			LIMIT 1
		)
		RETURNING id, type, data, created_at`,
	deleteLatestWaitingOnPlat: `
		DELETE FROM workflow_logs WHERE seq = (
			SELECT seq FROM workflow_logs
			WHERE type = 'waiting'
			  AND ` + sqliteJSONText("$.execution_id") + ` = ?
			  AND ` + sqliteJSONText("$.platform") + ` = ?
			ORDER BY created_at DESC, seq DESC
			LIMIT 1
		)
		RETURNING id, type, data, created_at`,
	clear: `DELETE FROM workflow_logs`,
}

// SQLiteStore is a durable log store backed by a SQLite file
type SQLiteStore struct {
	sqlStore
	config     *StorageConfig
	migrations []*Migration
}

// NewSQLiteStore creates a new SQLite store. Connect must be called before use.
func NewSQLiteStore(config *StorageConfig) *SQLiteStore {
	return &SQLiteStore{
		sqlStore: sqlStore{
			backend: BackendSQLite,
			dialect: sqliteDialect,
			logger:  utils.ComponentLogger("storage.sqlite"),
		},
		config:     config,
		migrations: GetSQLiteMigrations(),
	}
}

// Connect opens the database file, creating its directory when needed
func (s *SQLiteStore) Connect(ctx context.Context) error {
	dir := filepath.Dir(s.config.ConnectionString)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			err = utils.NewAppError(utils.ErrCodeDatabase, "Failed to create database directory", err.Error())
			s.setConn(nil, err)
			return err
		}
	}

	db, err := sql.Open("sqlite", s.config.ConnectionString)
	if err != nil {
		err = utils.NewAppError(utils.ErrCodeDatabase, "Failed to open SQLite database", err.Error())
		s.setConn(nil, err)
		return err
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(s.config.MaxIdleTime)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		err = utils.NewAppError(utils.ErrCodeDatabase, "Failed to enable WAL mode", err.Error())
		s.setConn(nil, err)
		return err
	}

	s.setConn(db, nil)
	s.logger.WithField("path", s.config.ConnectionString).Info("SQLite database connected")
	return nil
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	return applyMigrations(ctx, db, s.migrations, s.logger)
}

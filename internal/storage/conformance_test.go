package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/workflow-relay/internal/models"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type storeFactory func(t *testing.T) LogStore

func conformanceBackends() map[string]storeFactory {
	return map[string]storeFactory{
		BackendMemory: func(t *testing.T) LogStore {
			return NewMemoryStore(0)
		},
		BackendSQLite: func(t *testing.T) LogStore {
			return newTestSQLiteStore(t)
		},
		BackendMongo: func(t *testing.T) LogStore {
			return newTestMongoStore(t)
		},
		BackendPostgres: func(t *testing.T) LogStore {
			return newTestPostgresStore(t)
		},
	}
}

// Server-backed stores run only when a test server is configured
const (
	testMongoURIEnv    = "WORKFLOW_RELAY_TEST_MONGODB_URI"
	testPostgresDSNEnv = "WORKFLOW_RELAY_TEST_POSTGRES_DSN"
)

func newTestMongoStore(t *testing.T) *MongoStore {
	t.Helper()

	uri := os.Getenv(testMongoURIEnv)
	if uri == "" {
		t.Skipf("%s not set", testMongoURIEnv)
	}

	// A fresh collection per test keeps runs isolated
	store := NewMongoStore(&StorageConfig{
		Type:             BackendMongo,
		ConnectionString: uri,
		Database:         "workflow_relay_test",
		Collection:       "logs_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		ConnectTimeout:   5 * time.Second,
	})
	ctx := context.Background()
	require.NoError(t, store.Connect(ctx))
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() {
		if collection, err := store.coll(); err == nil {
			_ = collection.Drop(context.Background())
		}
		_ = store.Close()
	})
	return store
}

func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := os.Getenv(testPostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testPostgresDSNEnv)
	}

	store := NewPostgresStore(&StorageConfig{
		Type:             BackendPostgres,
		ConnectionString: dsn,
		MaxConnections:   4,
	})
	ctx := context.Background()
	require.NoError(t, store.Connect(ctx))
	require.NoError(t, store.Migrate(ctx))

	// The table is shared, so every test starts from and leaves it empty
	_, err := store.Clear(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = store.Clear(context.Background())
		_ = store.Close()
	})
	return store
}

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store := NewSQLiteStore(&StorageConfig{
		Type:             BackendSQLite,
		ConnectionString: filepath.Join(t.TempDir(), "relay.db"),
	})
	ctx := context.Background()
	require.NoError(t, store.Connect(ctx))
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func appendEntry(t *testing.T, store LogStore, logType models.LogType, data map[string]interface{}, at time.Time) *models.LogEntry {
	t.Helper()
	stored, err := store.Append(context.Background(), models.NewLogEntry(logType, data, at))
	require.NoError(t, err)
	return stored
}

// TestLogStoreConformance runs the same behavioural checks against every
// backend. Mongo and Postgres are skipped unless their test servers are
// configured through the environment.
func TestLogStoreConformance(t *testing.T) {
	for name, factory := range conformanceBackends() {
		factory := factory
		t.Run(name, func(t *testing.T) {
			t.Run("pagination newest first", func(t *testing.T) {
				store := factory(t)
				for i := 1; i <= 45; i++ {
					appendEntry(t, store, models.LogTypeInfo,
						map[string]interface{}{"n": float64(i)}, baseTime.Add(time.Duration(i)*time.Millisecond))
				}

				page, err := store.List(context.Background(), models.NewListOptions(2, 20))
				require.NoError(t, err)
				assert.Equal(t, int64(45), page.Total)
				assert.Equal(t, 2, page.Page)
				assert.Equal(t, 20, page.Limit)
				require.Len(t, page.Logs, 20)
				assert.Equal(t, float64(25), page.Logs[0].Data["n"])
				assert.Equal(t, float64(6), page.Logs[19].Data["n"])

				last, err := store.List(context.Background(), models.NewListOptions(3, 20))
				require.NoError(t, err)
				assert.Len(t, last.Logs, 5)

				beyond, err := store.List(context.Background(), models.NewListOptions(9, 20))
				require.NoError(t, err)
				assert.Empty(t, beyond.Logs)
				assert.Equal(t, int64(45), beyond.Total)
			})

			t.Run("huge page is empty", func(t *testing.T) {
				store := factory(t)
				appendEntry(t, store, models.LogTypeInfo, nil, baseTime)

				page, err := store.List(context.Background(), models.ParseListOptions("9223372036854775807", "20"))
				require.NoError(t, err)
				assert.Empty(t, page.Logs)
				assert.Equal(t, int64(1), page.Total)
				assert.Equal(t, models.MaxPage, page.Page)
			})

			t.Run("equal timestamps keep insertion order", func(t *testing.T) {
				store := factory(t)
				first := appendEntry(t, store, models.LogTypeInfo, map[string]interface{}{"step": "first"}, baseTime)
				second := appendEntry(t, store, models.LogTypeInfo, map[string]interface{}{"step": "second"}, baseTime)

				page, err := store.List(context.Background(), models.NewListOptions(1, 20))
				require.NoError(t, err)
				require.Len(t, page.Logs, 2)
				assert.Equal(t, second.ID, page.Logs[0].ID)
				assert.Equal(t, first.ID, page.Logs[1].ID)
			})

			t.Run("entry round trip", func(t *testing.T) {
				store := factory(t)
				stored := appendEntry(t, store, models.LogTypeFailure, map[string]interface{}{
					"message": "boom",
					"nested":  map[string]interface{}{"k": "v"},
					"list":    []interface{}{"a", float64(1)},
				}, baseTime)

				page, err := store.List(context.Background(), models.NewListOptions(1, 20))
				require.NoError(t, err)
				require.Len(t, page.Logs, 1)

				got := page.Logs[0]
				assert.Equal(t, stored.ID, got.ID)
				assert.Equal(t, models.LogTypeFailure, got.Type)
				assert.True(t, baseTime.Equal(got.Timestamp))
				assert.Equal(t, "boom", got.Data["message"])
				assert.Equal(t, map[string]interface{}{"k": "v"}, got.Data["nested"])
				assert.Equal(t, []interface{}{"a", float64(1)}, got.Data["list"])
			})

			t.Run("delete latest waiting by platform", func(t *testing.T) {
				store := factory(t)
				facebook := appendEntry(t, store, models.LogTypeWaiting, map[string]interface{}{
					"execution_id": float64(520), "platform": "facebook",
				}, baseTime)
				instagram := appendEntry(t, store, models.LogTypeWaiting, map[string]interface{}{
					"execution_id": "520", "platform": "instagram",
				}, baseTime.Add(time.Millisecond))

				removed, err := store.DeleteLatestWaiting(context.Background(),
					models.WaitingMatch{ExecutionID: "520", Platform: "facebook"})
				require.NoError(t, err)
				require.NotNil(t, removed)
				assert.Equal(t, facebook.ID, removed.ID)

				page, err := store.List(context.Background(), models.NewListOptions(1, 20))
				require.NoError(t, err)
				require.Len(t, page.Logs, 1)
				assert.Equal(t, instagram.ID, page.Logs[0].ID)
			})

			t.Run("delete latest waiting without platform takes newest", func(t *testing.T) {
				store := factory(t)
				appendEntry(t, store, models.LogTypeWaiting, map[string]interface{}{"execution_id": "7"}, baseTime)
				newer := appendEntry(t, store, models.LogTypeWaiting, map[string]interface{}{"execution_id": "7"}, baseTime.Add(time.Second))
				appendEntry(t, store, models.LogTypeSuccess, map[string]interface{}{"execution_id": "7"}, baseTime.Add(2*time.Second))

				removed, err := store.DeleteLatestWaiting(context.Background(), models.WaitingMatch{ExecutionID: "7"})
				require.NoError(t, err)
				require.NotNil(t, removed)
				assert.Equal(t, newer.ID, removed.ID)

				page, err := store.List(context.Background(), models.NewListOptions(1, 20))
				require.NoError(t, err)
				assert.Equal(t, int64(2), page.Total)
			})

			t.Run("delete latest waiting with no match", func(t *testing.T) {
				store := factory(t)
				appendEntry(t, store, models.LogTypeInfo, map[string]interface{}{"execution_id": "9"}, baseTime)
				appendEntry(t, store, models.LogTypeWaiting, map[string]interface{}{"execution_id": "9", "platform": "x"}, baseTime)

				removed, err := store.DeleteLatestWaiting(context.Background(),
					models.WaitingMatch{ExecutionID: "9", Platform: "y"})
				require.NoError(t, err)
				assert.Nil(t, removed)

				removed, err = store.DeleteLatestWaiting(context.Background(), models.WaitingMatch{ExecutionID: "10"})
				require.NoError(t, err)
				assert.Nil(t, removed)
			})

			t.Run("boolean correlation values compare as text", func(t *testing.T) {
				store := factory(t)
				appendEntry(t, store, models.LogTypeWaiting, map[string]interface{}{"execution_id": true}, baseTime)

				removed, err := store.DeleteLatestWaiting(context.Background(), models.WaitingMatch{ExecutionID: "true"})
				require.NoError(t, err)
				assert.NotNil(t, removed)
			})

			t.Run("clear", func(t *testing.T) {
				store := factory(t)
				for i := 0; i < 3; i++ {
					appendEntry(t, store, models.LogTypeInfo, nil, baseTime)
				}

				removed, err := store.Clear(context.Background())
				require.NoError(t, err)
				assert.Equal(t, int64(3), removed)

				removed, err = store.Clear(context.Background())
				require.NoError(t, err)
				assert.Equal(t, int64(0), removed)

				page, err := store.List(context.Background(), models.NewListOptions(1, 20))
				require.NoError(t, err)
				assert.Empty(t, page.Logs)
				assert.Equal(t, int64(0), page.Total)
			})

			t.Run("status", func(t *testing.T) {
				store := factory(t)
				status := store.Status(context.Background())
				assert.Equal(t, name, status.Backend)
				assert.True(t, status.Connected)
				assert.False(t, status.LastKnown)
			})
		})
	}
}

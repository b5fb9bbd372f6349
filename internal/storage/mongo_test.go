package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/smartdevs17/workflow-relay/internal/models"
	"github.com/smartdevs17/workflow-relay/pkg/utils"
)

func TestWaitingFilter(t *testing.T) {
	filter := waitingFilter(models.WaitingMatch{ExecutionID: "520", Platform: "facebook"})

	require.Len(t, filter, 3)
	assert.Equal(t, bson.E{Key: "type", Value: "waiting"}, filter[0])
	assert.Equal(t, "data.execution_id", filter[1].Key)
	assert.Equal(t, bson.D{{Key: "$in", Value: bson.A{"520", float64(520)}}}, filter[1].Value)
	assert.Equal(t, "data.platform", filter[2].Key)
	assert.Equal(t, bson.D{{Key: "$in", Value: bson.A{"facebook"}}}, filter[2].Value)

	withoutPlatform := waitingFilter(models.WaitingMatch{ExecutionID: "abc"})
	assert.Len(t, withoutPlatform, 2)
}

func TestCorrelationCandidates(t *testing.T) {
	assert.Equal(t, bson.A{"x"}, correlationCandidates("x"))
	assert.Equal(t, bson.A{"1.5", 1.5}, correlationCandidates("1.5"))
	assert.Equal(t, bson.A{"true", true}, correlationCandidates("true"))
}

func TestLogDocumentToEntryNormalizesBSON(t *testing.T) {
	doc := logDocument{
		EntryID: "id-1",
		Type:    "waiting",
		Data: bson.M{
			"execution_id": int32(7),
			"nested":       bson.D{{Key: "k", Value: "v"}},
			"list":         bson.A{"a", int64(2), bson.M{"deep": true}},
		},
		CreatedAt: baseTime,
	}

	entry := doc.toEntry()
	assert.Equal(t, "id-1", entry.ID)
	assert.Equal(t, models.LogTypeWaiting, entry.Type)
	assert.Equal(t, float64(7), entry.Data["execution_id"])
	assert.Equal(t, map[string]interface{}{"k": "v"}, entry.Data["nested"])
	assert.Equal(t, []interface{}{"a", float64(2), map[string]interface{}{"deep": true}}, entry.Data["list"])
	assert.Equal(t, "7", entry.ExecutionID())
	assert.True(t, baseTime.Equal(entry.Timestamp))

	empty := (&logDocument{EntryID: "id-2"}).toEntry()
	assert.NotNil(t, empty.Data)
}

func TestMongoStoreBeforeConnect(t *testing.T) {
	store := NewMongoStore(&StorageConfig{Type: BackendMongo, Database: "relay", Collection: "logs"})
	ctx := context.Background()

	_, err := store.Append(ctx, models.NewLogEntry(models.LogTypeInfo, nil, baseTime))
	assert.True(t, utils.HasCode(err, utils.ErrCodeStorageUnavailable))

	_, err = store.List(ctx, models.NewListOptions(1, 20))
	assert.Error(t, err)

	status := store.Status(ctx)
	assert.Equal(t, BackendMongo, status.Backend)
	assert.False(t, status.Connected)
	assert.True(t, status.LastKnown)
	assert.NoError(t, store.Close())
}

func TestMongoStoreConnectFailureIsRecorded(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for server selection timeout")
	}

	store := NewMongoStore(&StorageConfig{
		Type:             BackendMongo,
		ConnectionString: "mongodb://127.0.0.1:1/?directConnection=true",
		Database:         "relay",
		Collection:       "logs",
		ConnectTimeout:   200 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := store.Connect(ctx)
	require.Error(t, err)
	assert.True(t, utils.HasCode(err, utils.ErrCodeDatabase))

	status := store.Status(ctx)
	assert.False(t, status.Connected)
	assert.True(t, status.LastKnown)
	assert.NotEmpty(t, status.Error)
}

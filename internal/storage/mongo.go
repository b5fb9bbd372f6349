package storage

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/smartdevs17/workflow-relay/internal/models"
	"github.com/smartdevs17/workflow-relay/pkg/utils"
)

// logDocument is the stored form of a log entry
type logDocument struct {
	EntryID   string    `bson:"id"`
	Type      string    `bson:"type"`
	Data      bson.M    `bson:"data"`
	CreatedAt time.Time `bson:"createdAt"`
	Seq       int64     `bson:"seq"`
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "seq", Value: -1}}

// MongoStore is a durable log store backed by a MongoDB collection
type MongoStore struct {
	mu         sync.RWMutex
	client     *mongo.Client
	collection *mongo.Collection
	config     *StorageConfig
	logger     *logrus.Entry

	seq        atomic.Int64
	lastStatus *StorageStatus
}

// NewMongoStore creates a new MongoDB store. Connect must be called before use.
func NewMongoStore(config *StorageConfig) *MongoStore {
	return &MongoStore{
		config: config,
		logger: utils.ComponentLogger("storage.mongo"),
	}
}

// Connect establishes the client connection and verifies it with a ping
func (m *MongoStore) Connect(ctx context.Context) error {
	opts := options.Client().
		ApplyURI(m.config.ConnectionString).
		SetConnectTimeout(m.config.ConnectTimeout).
		SetServerSelectionTimeout(m.config.ConnectTimeout)
	if m.config.MaxConnections > 0 {
		opts.SetMaxPoolSize(uint64(m.config.MaxConnections))
	}
	if m.config.MaxIdleTime > 0 {
		opts.SetMaxConnIdleTime(m.config.MaxIdleTime)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return m.connectFailed(utils.NewAppError(utils.ErrCodeDatabase, "Failed to create MongoDB client", err.Error()))
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return m.connectFailed(utils.NewAppError(utils.ErrCodeDatabase, "Failed to ping MongoDB", err.Error()))
	}

	collection := client.Database(m.config.Database).Collection(m.config.Collection)

	// Resume the insertion sequence after the highest stored value
	var last logDocument
	err = collection.FindOne(ctx, bson.D{}, options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}})).Decode(&last)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		_ = client.Disconnect(context.Background())
		return m.connectFailed(utils.NewAppError(utils.ErrCodeDatabase, "Failed to read log sequence", err.Error()))
	}
	m.seq.Store(last.Seq)

	m.mu.Lock()
	m.client = client
	m.collection = collection
	m.lastStatus = lastKnownStatus(BackendMongo, true, nil)
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"database":   m.config.Database,
		"collection": m.config.Collection,
	}).Info("MongoDB connected")
	return nil
}

func (m *MongoStore) connectFailed(err error) error {
	m.mu.Lock()
	m.lastStatus = lastKnownStatus(BackendMongo, false, err)
	m.mu.Unlock()
	return err
}

// Migrate creates the indexes used for listing and reconciliation
func (m *MongoStore) Migrate(ctx context.Context) error {
	collection, err := m.coll()
	if err != nil {
		return err
	}

	_, err = collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: newestFirst},
		{Keys: bson.D{{Key: "type", Value: 1}, {Key: "data.execution_id", Value: 1}}},
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to create MongoDB indexes", err.Error())
	}

	m.logger.Info("MongoDB indexes ensured")
	return nil
}

func (m *MongoStore) coll() (*mongo.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.collection == nil {
		return nil, utils.NewAppError(utils.ErrCodeStorageUnavailable, "Database not connected", BackendMongo)
	}
	return m.collection, nil
}

// Append inserts a single entry. Timestamps are stored with millisecond
// precision and the returned entry reflects that.
func (m *MongoStore) Append(ctx context.Context, entry *models.LogEntry) (*models.LogEntry, error) {
	collection, err := m.coll()
	if err != nil {
		return nil, err
	}

	stored := cloneEntry(entry)
	stored.Timestamp = stored.Timestamp.Truncate(time.Millisecond).UTC()

	doc := logDocument{
		EntryID:   stored.ID,
		Type:      string(stored.Type),
		Data:      bson.M(stored.Data),
		CreatedAt: stored.Timestamp,
		Seq:       m.seq.Add(1),
	}
	if _, err := collection.InsertOne(ctx, doc); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to save log entry", err.Error())
	}
	return stored, nil
}

// List returns one newest-first page
func (m *MongoStore) List(ctx context.Context, opts models.ListOptions) (*models.LogPage, error) {
	collection, err := m.coll()
	if err != nil {
		return nil, err
	}

	total, err := collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count log entries", err.Error())
	}

	findOpts := options.Find().
		SetSort(newestFirst).
		SetSkip(int64(opts.Offset())).
		SetLimit(int64(opts.Limit))

	cursor, err := collection.Find(ctx, bson.D{}, findOpts)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query log entries", err.Error())
	}

	var docs []logDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to decode log entries", err.Error())
	}

	logs := make([]*models.LogEntry, 0, len(docs))
	for i := range docs {
		logs = append(logs, docs[i].toEntry())
	}

	return &models.LogPage{
		Logs:  logs,
		Total: total,
		Page:  opts.Page,
		Limit: opts.Limit,
	}, nil
}

// DeleteLatestWaiting atomically removes the newest matching waiting entry
func (m *MongoStore) DeleteLatestWaiting(ctx context.Context, match models.WaitingMatch) (*models.LogEntry, error) {
	collection, err := m.coll()
	if err != nil {
		return nil, err
	}

	var doc logDocument
	err = collection.FindOneAndDelete(ctx, waitingFilter(match),
		options.FindOneAndDelete().SetSort(newestFirst)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to delete waiting entry", err.Error())
	}
	return doc.toEntry(), nil
}

// waitingFilter matches correlation values stored either as strings or as
// numbers, so "520" and 520 identify the same execution
func waitingFilter(match models.WaitingMatch) bson.D {
	filter := bson.D{
		{Key: "type", Value: string(models.LogTypeWaiting)},
		{Key: "data.execution_id", Value: bson.D{{Key: "$in", Value: correlationCandidates(match.ExecutionID)}}},
	}
	if match.Platform != "" {
		filter = append(filter, bson.E{
			Key:   "data.platform",
			Value: bson.D{{Key: "$in", Value: correlationCandidates(match.Platform)}},
		})
	}
	return filter
}

func correlationCandidates(value string) bson.A {
	candidates := bson.A{value}
	if number, err := strconv.ParseFloat(value, 64); err == nil {
		candidates = append(candidates, number)
	}
	if value == "true" || value == "false" {
		candidates = append(candidates, value == "true")
	}
	return candidates
}

// Clear removes every entry
func (m *MongoStore) Clear(ctx context.Context) (int64, error) {
	collection, err := m.coll()
	if err != nil {
		return 0, err
	}

	result, err := collection.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to clear log entries", err.Error())
	}
	return result.DeletedCount, nil
}

// Ping checks database connectivity
func (m *MongoStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()

	if client == nil {
		return utils.NewAppError(utils.ErrCodeStorageUnavailable, "Database not connected", BackendMongo)
	}
	return client.Ping(ctx, readpref.Primary())
}

// Status pings the server when a client exists, otherwise returns the status
// recorded by the last connection attempt
func (m *MongoStore) Status(ctx context.Context) *StorageStatus {
	m.mu.RLock()
	client, last := m.client, m.lastStatus
	m.mu.RUnlock()

	if client == nil {
		if last == nil {
			return lastKnownStatus(BackendMongo, false, errors.New("not connected"))
		}
		status := *last
		return &status
	}

	pingCtx, cancel := context.WithTimeout(ctx, statusCheckTimeout)
	defer cancel()
	return liveStatus(BackendMongo, client.Ping(pingCtx, readpref.Primary()))
}

// Backend returns the backend name
func (m *MongoStore) Backend() string {
	return BackendMongo
}

// Close disconnects the client
func (m *MongoStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), statusCheckTimeout)
	defer cancel()

	err := m.client.Disconnect(ctx)
	m.client = nil
	m.collection = nil
	m.logger.Info("MongoDB connection closed")
	return err
}

func (d *logDocument) toEntry() *models.LogEntry {
	data, _ := normalizeBSON(d.Data).(map[string]interface{})
	if data == nil {
		data = make(map[string]interface{})
	}
	return &models.LogEntry{
		ID:        d.EntryID,
		Type:      models.LogType(d.Type),
		Data:      data,
		Timestamp: d.CreatedAt.UTC(),
	}
}

// normalizeBSON converts decoded BSON containers back into the plain maps and
// slices produced by encoding/json
func normalizeBSON(value interface{}) interface{} {
	switch v := value.(type) {
	case bson.M:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[key] = normalizeBSON(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[key] = normalizeBSON(item)
		}
		return out
	case bson.D:
		out := make(map[string]interface{}, len(v))
		for _, elem := range v {
			out[elem.Key] = normalizeBSON(elem.Value)
		}
		return out
	case bson.A:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = normalizeBSON(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = normalizeBSON(item)
		}
		return out
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case bson.DateTime:
		return v.Time().UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}

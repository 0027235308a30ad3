package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/assessment-engine/internal/domain"
	"github.com/phrazzld/assessment-engine/internal/platform/logger"
	"github.com/phrazzld/assessment-engine/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultCollection is the collection snapshots are written to.
const DefaultCollection = "quality_snapshots"

// Config holds the connection settings for the snapshot store.
type Config struct {
	URI        string
	Database   string
	Collection string
}

// snapshotDocument is the stored form of a domain.QualitySnapshot.
type snapshotDocument struct {
	ID              string                  `bson:"_id"`
	BatchID         string                  `bson:"batchId"`
	TaskID          string                  `bson:"taskId"`
	ValidationType  string                  `bson:"validationType"`
	TotalItems      int                     `bson:"totalItems"`
	ProcessedItems  int                     `bson:"processedItems"`
	ValidItems      int                     `bson:"validItems"`
	InvalidItems    int                     `bson:"invalidItems"`
	WarningCount    int                     `bson:"warningCount"`
	ErrorTypeCounts map[string]int          `bson:"errorTypeCounts"`
	ExecutionError  bool                    `bson:"executionError"`
	StartTime       time.Time               `bson:"startTime"`
	EndTime         time.Time               `bson:"endTime"`
	DurationMS      int64                   `bson:"durationMs"`
	SubmittedBy     string                  `bson:"submittedBy"`
	Filter          domain.ValidationFilter `bson:"filter"`
	CreatedAt       time.Time               `bson:"createdAt"`
}

func toDocument(s domain.QualitySnapshot) snapshotDocument {
	counts := s.ErrorTypeCounts
	if counts == nil {
		counts = map[string]int{}
	}
	return snapshotDocument{
		ID:              s.ID.String(),
		BatchID:         s.BatchID.String(),
		TaskID:          s.TaskID.String(),
		ValidationType:  string(s.ValidationType),
		TotalItems:      s.TotalItems,
		ProcessedItems:  s.ProcessedItems,
		ValidItems:      s.ValidItems,
		InvalidItems:    s.InvalidItems,
		WarningCount:    s.WarningCount,
		ErrorTypeCounts: counts,
		ExecutionError:  s.ExecutionError,
		StartTime:       s.StartTime.UTC(),
		EndTime:         s.EndTime.UTC(),
		DurationMS:      s.Duration.Milliseconds(),
		SubmittedBy:     s.SubmittedBy,
		Filter:          s.Filter,
		CreatedAt:       s.CreatedAt.UTC(),
	}
}

func (d snapshotDocument) toDomain() (domain.QualitySnapshot, error) {
	var ids [3]uuid.UUID
	for i, raw := range []string{d.ID, d.BatchID, d.TaskID} {
		id, err := uuid.Parse(raw)
		if err != nil {
			return domain.QualitySnapshot{}, fmt.Errorf("invalid id %q in snapshot document: %w", raw, err)
		}
		ids[i] = id
	}
	return domain.QualitySnapshot{
		ID:              ids[0],
		BatchID:         ids[1],
		TaskID:          ids[2],
		ValidationType:  domain.ValidationType(d.ValidationType),
		TotalItems:      d.TotalItems,
		ProcessedItems:  d.ProcessedItems,
		ValidItems:      d.ValidItems,
		InvalidItems:    d.InvalidItems,
		WarningCount:    d.WarningCount,
		ErrorTypeCounts: d.ErrorTypeCounts,
		ExecutionError:  d.ExecutionError,
		StartTime:       d.StartTime,
		EndTime:         d.EndTime,
		Duration:        time.Duration(d.DurationMS) * time.Millisecond,
		SubmittedBy:     d.SubmittedBy,
		Filter:          d.Filter,
		CreatedAt:       d.CreatedAt,
	}, nil
}

// SnapshotStore implements store.SnapshotStore on a MongoDB collection.
type SnapshotStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

var _ store.SnapshotStore = (*SnapshotStore)(nil)

// Connect opens a client, verifies it with a ping and ensures the indexes
// the store relies on exist.
func Connect(ctx context.Context, cfg Config, l *slog.Logger) (*SnapshotStore, error) {
	if l == nil {
		l = slog.Default()
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "batchId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "taskId", Value: 1}}},
		{Keys: bson.D{{Key: "validationType", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create snapshot indexes: %w", err)
	}

	l.Info("connected to MongoDB snapshot store",
		"database", cfg.Database,
		"collection", cfg.Collection)

	return &SnapshotStore{
		client:     client,
		collection: collection,
		logger:     l.With("component", "mongo_snapshot_store"),
	}, nil
}

// Close disconnects the client.
func (s *SnapshotStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Append implements store.SnapshotStore.Append.
// Returns store.ErrSnapshotExists if the batch already has a snapshot.
func (s *SnapshotStore) Append(ctx context.Context, snapshot domain.QualitySnapshot) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	_, err := s.collection.InsertOne(ctx, toDocument(snapshot))
	if err != nil {
		return mapError(log, "append", err)
	}
	log.Info("quality snapshot recorded",
		"snapshot_id", snapshot.ID,
		"batch_id", snapshot.BatchID)
	return nil
}

// GetByTaskID implements store.SnapshotStore.GetByTaskID.
func (s *SnapshotStore) GetByTaskID(ctx context.Context, taskID uuid.UUID) (domain.QualitySnapshot, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var doc snapshotDocument
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	err := s.collection.FindOne(ctx, bson.M{"taskId": taskID.String()}, opts).Decode(&doc)
	if err != nil {
		return domain.QualitySnapshot{}, mapError(log, "get", err)
	}
	return doc.toDomain()
}

// ListRecent implements store.SnapshotStore.ListRecent.
func (s *SnapshotStore) ListRecent(
	ctx context.Context,
	validationType domain.ValidationType,
	limit int,
) ([]domain.QualitySnapshot, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	cursor, err := s.collection.Find(ctx, listFilter(validationType),
		options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}}).
			SetLimit(int64(limit)))
	if err != nil {
		return nil, mapError(log, "list", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var docs []snapshotDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mapError(log, "list", err)
	}

	out := make([]domain.QualitySnapshot, 0, len(docs))
	for _, d := range docs {
		snap, err := d.toDomain()
		if err != nil {
			return nil, store.NewStoreError("quality_snapshot", "list", "decode failed", err)
		}
		out = append(out, snap)
	}
	return out, nil
}

func listFilter(validationType domain.ValidationType) bson.M {
	if validationType == "" {
		return bson.M{}
	}
	return bson.M{"validationType": string(validationType)}
}

func mapError(log *slog.Logger, op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrSnapshotNotFound
	case mongo.IsDuplicateKeyError(err):
		log.Warn("quality snapshot already recorded for batch")
		return store.ErrSnapshotExists
	}
	log.Error("mongo snapshot operation failed", "operation", op, "error", err)
	return store.NewStoreError("quality_snapshot", op, "mongo operation failed", err)
}

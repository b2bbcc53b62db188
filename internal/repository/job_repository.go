package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pickperfect/api/internal/common"
	"github.com/pickperfect/api/internal/config"
	"github.com/pickperfect/api/internal/logger"
	"github.com/pickperfect/api/internal/model"
)

// JobRepository persists video jobs. Pipeline updates are keyed by
// storage key and return (nil, nil) when no job matches.
type JobRepository interface {
	Create(ctx context.Context, job *model.VideoJob) error
	GetByID(ctx context.Context, id string) (*model.VideoJob, error)
	GetByStorageKey(ctx context.Context, storageKey string) (*model.VideoJob, error)
	List(ctx context.Context, limit int) ([]model.VideoJob, error)
	UpdateStatus(ctx context.Context, storageKey string, status model.JobStatus) (*model.VideoJob, error)
	SaveAnalysis(ctx context.Context, storageKey string, analysis *model.Analysis) (*model.VideoJob, error)
	MarkFailed(ctx context.Context, storageKey, reason string) (*model.VideoJob, error)
}

// Connect opens the process-wide MongoDB client and verifies it with a ping
func Connect(ctx context.Context, cfg *config.MongoConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return client, nil
}

// MongoJobRepository stores jobs as documents of one collection
type MongoJobRepository struct {
	coll *mongo.Collection
	log  *logger.Logger
	now  func() time.Time
}

func NewMongoJobRepository(db *mongo.Database, collection string, log *logger.Logger) *MongoJobRepository {
	return &MongoJobRepository{
		coll: db.Collection(collection),
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the unique storage key index and the listing index
func (r *MongoJobRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "storage_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
	})
	if err != nil {
		return common.WrapPersistence("create indexes", err)
	}
	return nil
}

func (r *MongoJobRepository) Create(ctx context.Context, job *model.VideoJob) error {
	now := r.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = job.CreatedAt

	if _, err := r.coll.InsertOne(ctx, job); err != nil {
		return common.WrapPersistence("insert job", err)
	}
	return nil
}

func (r *MongoJobRepository) GetByID(ctx context.Context, id string) (*model.VideoJob, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoJobRepository) GetByStorageKey(ctx context.Context, storageKey string) (*model.VideoJob, error) {
	return r.findOne(ctx, bson.M{"storage_key": storageKey})
}

// List returns the most recently created jobs first
func (r *MongoJobRepository) List(ctx context.Context, limit int) ([]model.VideoJob, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, common.WrapPersistence("list jobs", err)
	}
	defer cursor.Close(ctx)

	jobs := make([]model.VideoJob, 0, limit)
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, common.WrapPersistence("decode jobs", err)
	}
	return jobs, nil
}

func (r *MongoJobRepository) UpdateStatus(ctx context.Context, storageKey string, status model.JobStatus) (*model.VideoJob, error) {
	update := bson.M{
		"$set":   bson.M{"status": status, "updated_at": r.now()},
		"$unset": bson.M{"failure_reason": ""},
	}
	return r.update(ctx, "update status", storageKey, update)
}

// SaveAnalysis writes the analysis and the ANALYZED status in a single
// update. Saving again for the same key replaces the previous analysis.
func (r *MongoJobRepository) SaveAnalysis(ctx context.Context, storageKey string, analysis *model.Analysis) (*model.VideoJob, error) {
	update := bson.M{
		"$set": bson.M{
			"analysis":   analysis,
			"status":     model.JobStatusAnalyzed,
			"updated_at": r.now(),
		},
		"$unset": bson.M{"failure_reason": ""},
	}
	return r.update(ctx, "save analysis", storageKey, update)
}

func (r *MongoJobRepository) MarkFailed(ctx context.Context, storageKey, reason string) (*model.VideoJob, error) {
	update := bson.M{
		"$set": bson.M{
			"status":         model.JobStatusFailed,
			"failure_reason": reason,
			"updated_at":     r.now(),
		},
	}
	return r.update(ctx, "mark failed", storageKey, update)
}

func (r *MongoJobRepository) update(ctx context.Context, op, storageKey string, update bson.M) (*model.VideoJob, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var job model.VideoJob
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"storage_key": storageKey}, update, opts).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		r.log.ForKey(storageKey).Warnf("%s: no job found for storage key", op)
		return nil, nil
	}
	if err != nil {
		return nil, common.WrapPersistence(op, err)
	}
	return &job, nil
}

func (r *MongoJobRepository) findOne(ctx context.Context, filter bson.M) (*model.VideoJob, error) {
	var job model.VideoJob
	err := r.coll.FindOne(ctx, filter).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, common.ErrJobNotFound
	}
	if err != nil {
		return nil, common.WrapPersistence("find job", err)
	}
	return &job, nil
}

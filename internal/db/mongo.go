package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"report_spider/internal/config"
	"report_spider/internal/models"
	urlqueue "report_spider/internal/url_queue"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type MongoDB struct {
	client      *mongo.Client
	database    *mongo.Database
	discoveries *mongo.Collection
	rateHits    *mongo.Collection
	logger      *zap.Logger
}

func NewMongoDB(ctx context.Context, cfg config.DBConfig, logger *zap.Logger) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Connection))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't ping MongoDB: %w", err)
	}

	database := client.Database(cfg.Database)
	d := &MongoDB{
		client:      client,
		database:    database,
		discoveries: database.Collection(cfg.Collections.Discoveries),
		rateHits:    database.Collection(cfg.Collections.RateLimits),
		logger:      logger,
	}
	d.createIndexes(ctx)
	return d, nil
}

func (d *MongoDB) createIndexes(ctx context.Context) {
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{d.discoveries, mongo.IndexModel{
			Keys:    bson.D{{Key: "query_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{d.discoveries, mongo.IndexModel{
			Keys: bson.D{{Key: "last_run", Value: -1}},
		}},
		{d.rateHits, mongo.IndexModel{
			Keys: bson.D{{Key: "client_id", Value: 1}, {Key: "ts", Value: 1}},
		}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			d.logger.Warn("index creation failed", zap.String("collection", idx.coll.Name()), zap.Error(err))
		}
	}
}

// SaveDiscovery upserts the latest run for a query key and counts runs.
func (d *MongoDB) SaveDiscovery(ctx context.Context, rec *models.DiscoveryRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if rec.ID == "" {
		rec.ID = urlqueue.ComputeContentHash(rec.QueryKey)
	}

	data, err := bson.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal discovery: %w", err)
	}
	var set bson.M
	if err := bson.Unmarshal(data, &set); err != nil {
		return fmt.Errorf("unmarshal discovery: %w", err)
	}
	delete(set, "_id")
	delete(set, "run_count")
	delete(set, "first_run")

	update := bson.M{
		"$set":         set,
		"$inc":         bson.M{"run_count": 1},
		"$setOnInsert": bson.M{"_id": rec.ID, "first_run": rec.LastRun},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := d.discoveries.UpdateOne(ctx, bson.M{"query_key": rec.QueryKey}, update, opts); err != nil {
		return fmt.Errorf("save discovery %q: %w", rec.QueryKey, err)
	}
	return nil
}

// GetDiscovery returns nil, nil when nothing was stored under key.
func (d *MongoDB) GetDiscovery(ctx context.Context, key string) (*models.DiscoveryRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var rec models.DiscoveryRecord
	err := d.discoveries.FindOne(ctx, bson.M{"query_key": key}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get discovery %q: %w", key, err)
	}
	return &rec, nil
}

func (d *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return d.client.Disconnect(ctx)
}

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"report_spider/internal/ratelimit"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RateLimiter shares the sliding window between processes. Count and insert
// are separate round trips, so concurrent callers may overshoot by a request.
type RateLimiter struct {
	hits   *mongo.Collection
	max    int
	window time.Duration
	now    func() time.Time
}

type rateHit struct {
	ClientID string    `bson:"client_id"`
	TS       time.Time `bson:"ts"`
}

// NewRateLimiter also installs a TTL index so expired hits clean themselves up.
func (d *MongoDB) NewRateLimiter(ctx context.Context, maxRequests int, window time.Duration) (*RateLimiter, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	ttl := mongo.IndexModel{
		Keys:    bson.D{{Key: "ts", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(window / time.Second)),
	}
	if _, err := d.rateHits.Indexes().CreateOne(ctx, ttl); err != nil {
		return nil, fmt.Errorf("create rate limit ttl index: %w", err)
	}
	return &RateLimiter{hits: d.rateHits, max: maxRequests, window: window, now: time.Now}, nil
}

func (r *RateLimiter) Allow(ctx context.Context, clientID string) (ratelimit.Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := r.now().UTC()
	filter := bson.M{"client_id": clientID, "ts": bson.M{"$gt": now.Add(-r.window)}}
	d := ratelimit.Decision{Limit: r.max, Window: r.window}

	count, err := r.hits.CountDocuments(ctx, filter)
	if err != nil {
		return d, fmt.Errorf("count rate hits: %w", err)
	}

	if int(count) >= r.max {
		var oldest rateHit
		opts := options.FindOne().SetSort(bson.D{{Key: "ts", Value: 1}})
		err := r.hits.FindOne(ctx, filter, opts).Decode(&oldest)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			d.RetryAfter = r.window
		case err != nil:
			return d, fmt.Errorf("find oldest rate hit: %w", err)
		default:
			d.RetryAfter = oldest.TS.Add(r.window).Sub(now)
		}
		return d, nil
	}

	if _, err := r.hits.InsertOne(ctx, rateHit{ClientID: clientID, TS: now}); err != nil {
		return d, fmt.Errorf("record rate hit: %w", err)
	}
	d.Allowed = true
	d.Remaining = r.max - int(count) - 1
	return d, nil
}

package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/almanac/internal/harvest"
)

// HarvestStream receives every harvest event.
const HarvestStream = "fixtures.harvest.events"

// streamMaxLen caps the stream so an unread stream cannot grow forever.
const streamMaxLen = 10000

// RedisPublisher publishes harvest events to a Redis stream.
type RedisPublisher struct {
	client *redis.Client
	stream string
	owned  bool
	logger *log.Logger
}

// NewRedisPublisher connects to redisURL and publishes to HarvestStream.
func NewRedisPublisher(redisURL string, logger *log.Logger) (*RedisPublisher, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	p := NewRedisPublisherFromClient(client, logger)
	p.owned = true
	return p, nil
}

// NewRedisPublisherFromClient publishes through an existing client, which
// the caller keeps ownership of.
func NewRedisPublisherFromClient(client *redis.Client, logger *log.Logger) *RedisPublisher {
	if logger == nil {
		logger = log.New(log.Writer(), "[publisher] ", log.LstdFlags)
	}
	return &RedisPublisher{
		client: client,
		stream: HarvestStream,
		logger: logger,
	}
}

// Close closes the Redis connection if the publisher opened it.
func (rp *RedisPublisher) Close() error {
	if !rp.owned {
		return nil
	}
	return rp.client.Close()
}

// Stream returns the stream name.
func (rp *RedisPublisher) Stream() string {
	return rp.stream
}

// Publish appends one event to the stream.
func (rp *RedisPublisher) Publish(ctx context.Context, e harvest.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	err = rp.client.XAdd(ctx, &redis.XAddArgs{
		Stream: rp.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":      string(e.Type),
			"run_id":    e.RunID,
			"data":      string(data),
			"timestamp": e.Time.Unix(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", rp.stream, err)
	}
	return nil
}

// Handler adapts the publisher to a harvest.Service subscription. Publish
// failures are logged and never reach the run.
func (rp *RedisPublisher) Handler() func(harvest.Event) {
	return func(e harvest.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rp.Publish(ctx, e); err != nil {
			rp.logger.Printf("⚠️  Failed to publish %s event: %v", e.Type, err)
		}
	}
}

// Package journal records the outcome of each send attempt.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result values stored in Entry.Result.
const (
	ResultSent   = "sent"
	ResultFailed = "failed"
)

// Entry is one journaled send attempt.
type Entry struct {
	Time         time.Time `json:"time"`
	Dest         string    `json:"dest"`
	Sender       string    `json:"sender"`
	SenderDomain string    `json:"sender_domain"`
	Recipient    string    `json:"recipient"`
	Size         int       `json:"size"`
	Result       string    `json:"result"`

	// ErrorKind is "transport", "malformed", "mismatch", or "other" when
	// Result is ResultFailed.
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Recorder stores journal entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	Close() error
}

// NoopRecorder discards entries.
type NoopRecorder struct{}

// Record does nothing.
func (NoopRecorder) Record(ctx context.Context, e Entry) error { return nil }

// Close does nothing.
func (NoopRecorder) Close() error { return nil }

// Config holds the Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
	// MaxEntries caps the list length; 0 keeps everything.
	MaxEntries int
}

// RedisRecorder appends entries as JSON to a Redis list.
type RedisRecorder struct {
	client     *redis.Client
	key        string
	maxEntries int
}

// NewRedisRecorder connects to Redis and verifies the connection.
func NewRedisRecorder(ctx context.Context, cfg Config) (*RedisRecorder, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("journal: key is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("journal: connecting to redis at %s: %w", cfg.Addr, err)
	}

	return &RedisRecorder{
		client:     client,
		key:        cfg.Key,
		maxEntries: cfg.MaxEntries,
	}, nil
}

// Record appends e to the journal list, trimming the oldest entries beyond
// MaxEntries.
func (r *RedisRecorder) Record(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("journal: encoding entry: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, r.key, data)
	if r.maxEntries > 0 {
		pipe.LTrim(ctx, r.key, int64(-r.maxEntries), -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("journal: writing entry: %w", err)
	}
	return nil
}

// Recent returns up to n of the newest entries, oldest first. n <= 0 returns
// the whole journal.
func (r *RedisRecorder) Recent(ctx context.Context, n int) ([]Entry, error) {
	start := int64(0)
	if n > 0 {
		start = int64(-n)
	}

	raw, err := r.client.LRange(ctx, r.key, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("journal: reading entries: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("journal: decoding entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Close releases the Redis client.
func (r *RedisRecorder) Close() error {
	return r.client.Close()
}

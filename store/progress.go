package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/biaslens/evalcore/evaltypes"
)

// progressChannel names the per-evaluation pub/sub channel readers filter on.
func progressChannel(evaluationID string) string {
	return "evaluation_progress:" + evaluationID
}

// progressKey names the per-evaluation current-row key.
func progressKey(evaluationID string) string {
	return "evaluation_progress:row:" + evaluationID
}

// progressTTL bounds orphaned progress rows; the orchestrator deletes rows
// explicitly shortly after completion.
const progressTTL = time.Hour

// RedisProgress implements ProgressStore on Redis: the current row lives in
// a key and every write is also published to the evaluation's channel.
type RedisProgress struct {
	client *redis.Client
}

// NewRedisProgress connects to Redis and pings it.
func NewRedisProgress(url string) (*RedisProgress, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("store: parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("store: connect redis: %w", err)
	}
	return &RedisProgress{client: client}, nil
}

// NewRedisProgressWithClient wraps an existing client; used by tests with
// miniredis.
func NewRedisProgressWithClient(client *redis.Client) *RedisProgress {
	return &RedisProgress{client: client}
}

// Close releases the connection.
func (p *RedisProgress) Close() error { return p.client.Close() }

// Ping checks connectivity for health reporting.
func (p *RedisProgress) Ping(ctx context.Context) error { return p.client.Ping(ctx).Err() }

// Publish upserts the progress row and publishes it to the evaluation's
// channel.
func (p *RedisProgress) Publish(ctx context.Context, prog evaltypes.Progress) error {
	prog.UpdatedAt = time.Now().UTC()

	raw, err := json.Marshal(prog)
	if err != nil {
		return fmt.Errorf("store: encode progress: %w", err)
	}

	if err := p.client.Set(ctx, progressKey(prog.EvaluationID), raw, progressTTL).Err(); err != nil {
		return fmt.Errorf("store: write progress row: %w", err)
	}
	if err := p.client.Publish(ctx, progressChannel(prog.EvaluationID), raw).Err(); err != nil {
		return fmt.Errorf("store: publish progress: %w", err)
	}
	return nil
}

// Get returns the current progress row, or nil when none exists.
func (p *RedisProgress) Get(ctx context.Context, evaluationID string) (*evaltypes.Progress, error) {
	raw, err := p.client.Get(ctx, progressKey(evaluationID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read progress row: %w", err)
	}

	var prog evaltypes.Progress
	if err := json.Unmarshal(raw, &prog); err != nil {
		return nil, fmt.Errorf("store: decode progress row: %w", err)
	}
	return &prog, nil
}

// Delete removes the progress row.
func (p *RedisProgress) Delete(ctx context.Context, evaluationID string) error {
	if err := p.client.Del(ctx, progressKey(evaluationID)).Err(); err != nil {
		return fmt.Errorf("store: delete progress row: %w", err)
	}
	return nil
}

// Subscribe streams progress updates for one evaluation until the context
// is cancelled.
func (p *RedisProgress) Subscribe(ctx context.Context, evaluationID string) (<-chan evaltypes.Progress, error) {
	sub := p.client.Subscribe(ctx, progressChannel(evaluationID))

	// Force the subscription to be established before returning so callers
	// never miss updates published immediately after Subscribe.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("store: subscribe progress: %w", err)
	}

	out := make(chan evaltypes.Progress, 16)
	var once sync.Once
	go func() {
		defer once.Do(func() { close(out) })
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var prog evaltypes.Progress
				if err := json.Unmarshal([]byte(msg.Payload), &prog); err != nil {
					continue
				}
				select {
				case out <- prog:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

var _ ProgressStore = (*RedisProgress)(nil)

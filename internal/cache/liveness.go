package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// LivenessTracker records the latest heartbeat per session. It is populated
// by heartbeats and drained by the sweep.
type LivenessTracker interface {
	Beat(ctx context.Context, sessionID string, at time.Time) error
	Snapshot(ctx context.Context) (map[string]time.Time, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
	Remove(ctx context.Context, sessionIDs ...string) error
}

const defaultLivenessKey = "study:liveness"

// RedisLiveness keeps heartbeats in one sorted set scored by unix millis so
// every process of a deployment sees the same liveness state.
type RedisLiveness struct {
	client *redisv9.Client
	key    string
}

func NewRedisLiveness(client *redisv9.Client, key string) *RedisLiveness {
	if key == "" {
		key = defaultLivenessKey
	}
	return &RedisLiveness{client: client, key: key}
}

func (l *RedisLiveness) Beat(ctx context.Context, sessionID string, at time.Time) error {
	err := l.client.ZAddArgs(ctx, l.key, redisv9.ZAddArgs{
		GT:      true,
		Members: []redisv9.Z{{Score: float64(at.UnixMilli()), Member: sessionID}},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis record heartbeat failed: %w", err)
	}
	return nil
}

func (l *RedisLiveness) Snapshot(ctx context.Context) (map[string]time.Time, error) {
	entries, err := l.client.ZRangeWithScores(ctx, l.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis read heartbeats failed: %w", err)
	}
	out := make(map[string]time.Time, len(entries))
	for _, z := range entries {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		out[member] = time.UnixMilli(int64(z.Score)).UTC()
	}
	return out, nil
}

func (l *RedisLiveness) Prune(ctx context.Context, before time.Time) (int64, error) {
	n, err := l.client.ZRemRangeByScore(ctx, l.key, "-inf", "("+strconv.FormatInt(before.UnixMilli(), 10)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis prune heartbeats failed: %w", err)
	}
	return n, nil
}

func (l *RedisLiveness) Remove(ctx context.Context, sessionIDs ...string) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	members := make([]interface{}, len(sessionIDs))
	for i, id := range sessionIDs {
		members[i] = id
	}
	if err := l.client.ZRem(ctx, l.key, members...).Err(); err != nil {
		return fmt.Errorf("redis remove heartbeats failed: %w", err)
	}
	return nil
}

// MemoryLiveness is a process-local tracker for single-instance deployments.
// It starts empty.
type MemoryLiveness struct {
	mu    sync.Mutex
	beats map[string]time.Time
}

func NewMemoryLiveness() *MemoryLiveness {
	return &MemoryLiveness{beats: make(map[string]time.Time)}
}

func (l *MemoryLiveness) Beat(_ context.Context, sessionID string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.beats[sessionID]; !ok || at.After(prev) {
		l.beats[sessionID] = at.UTC()
	}
	return nil
}

func (l *MemoryLiveness) Snapshot(context.Context) (map[string]time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]time.Time, len(l.beats))
	for id, at := range l.beats {
		out[id] = at
	}
	return out, nil
}

func (l *MemoryLiveness) Prune(_ context.Context, before time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for id, at := range l.beats {
		if at.Before(before) {
			delete(l.beats, id)
			n++
		}
	}
	return n, nil
}

func (l *MemoryLiveness) Remove(_ context.Context, sessionIDs ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range sessionIDs {
		delete(l.beats, id)
	}
	return nil
}

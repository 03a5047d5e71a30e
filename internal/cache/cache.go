// Package cache publishes per-room action history to Redis. The publisher
// is optional: a nil *Publisher drops records silently, so rooms can log
// actions without caring whether Redis is configured.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// actionQueueKey is the Redis list consumed by the history worker.
const actionQueueKey = "guts:action_queue"

// ActionRecord is one room action, ordered by ActionIndex within a room.
type ActionRecord struct {
	RoomCode    string                 `json:"roomCode"`
	ActionIndex int                    `json:"actionIndex"`
	ActorID     string                 `json:"actorId"`
	ActionType  string                 `json:"actionType"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	Timestamp   int64                  `json:"timestamp"`
}

// Publisher pushes action records onto a Redis queue.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher connects to Redis and verifies the connection.
func NewPublisher(ctx context.Context, addr, password string) (*Publisher, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Publisher{rdb: rdb}, nil
}

// Publish appends a record to the action queue.
func (p *Publisher) Publish(ctx context.Context, rec ActionRecord) error {
	if p == nil || p.rdb == nil {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal action record: %w", err)
	}
	if err := p.rdb.RPush(ctx, actionQueueKey, data).Err(); err != nil {
		return fmt.Errorf("rpush action record: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}

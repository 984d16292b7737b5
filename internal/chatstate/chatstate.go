// Package chatstate keeps the per-chat "awaiting complaint text" flag for
// the Telegram bot. The state is keyed by chat id with per-key atomic
// get/set/clear; different chats never contend with each other.
package chatstate

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// State of one chat's conversation with the bot.
type State string

const (
	Idle              State = ""
	AwaitingComplaint State = "awaiting_complaint"
)

// Store is the keyed state store injected into the bot adapter.
type Store interface {
	Get(ctx context.Context, chatID int64) (State, error)
	Set(ctx context.Context, chatID int64, state State) error
	Clear(ctx context.Context, chatID int64) error
}

// RedisStore keeps chat states as plain Redis keys with no expiry: the flag
// persists until a cancel command clears it or the next freeform message
// consumes it.
type RedisStore struct {
	Redis *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{Redis: rdb}
}

func key(chatID int64) string {
	return fmt.Sprintf("chatstate:%d", chatID)
}

func (s *RedisStore) Get(ctx context.Context, chatID int64) (State, error) {
	v, err := s.Redis.Get(ctx, key(chatID)).Result()
	if err == redis.Nil {
		return Idle, nil
	}
	if err != nil {
		return Idle, err
	}
	return State(v), nil
}

func (s *RedisStore) Set(ctx context.Context, chatID int64, state State) error {
	return s.Redis.Set(ctx, key(chatID), string(state), 0).Err()
}

func (s *RedisStore) Clear(ctx context.Context, chatID int64) error {
	return s.Redis.Del(ctx, key(chatID)).Err()
}

// MemoryStore is the map-backed Store used in tests and in-memory mode.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[int64]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[int64]State)}
}

func (s *MemoryStore) Get(ctx context.Context, chatID int64) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[chatID], nil
}

func (s *MemoryStore) Set(ctx context.Context, chatID int64, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[chatID] = state
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, chatID)
	return nil
}

// Package session persists reconciliation wizard sessions in Redis.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sunksun/mekong-fish-payments/internal/domain"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Store loads and saves reconciliation sessions.
type Store interface {
	Get(ctx context.Context, id string) (*domain.ReconciliationSession, error)
	Save(ctx context.Context, s *domain.ReconciliationSession) error
}

type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return fmt.Sprintf("reconcile-session:%s", id)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*domain.ReconciliationSession, error) {
	raw, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var sess domain.ReconciliationSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

// Save writes the session and refreshes its expiry.
func (s *RedisStore) Save(ctx context.Context, sess *domain.ReconciliationSession) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	return s.client.Set(ctx, sessionKey(sess.ID), raw, s.ttl).Err()
}

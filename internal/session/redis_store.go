package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client       *redis.Client
	prefix       string
	clientPrefix string
	userPrefix   string
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:       client,
		prefix:       "session:",
		clientPrefix: "client:",
		userPrefix:   "user_sessions:",
	}
}

func (r *RedisStore) key(sessionID string) string {
	return r.prefix + sessionID
}

func (r *RedisStore) clientKey(clientID string) string {
	return r.clientPrefix + clientID
}

func (r *RedisStore) userKey(userID string) string {
	return r.userPrefix + userID
}

func (r *RedisStore) Create(ctx context.Context, s Session) error {
	if s.SessionID == "" || s.UserID == "" {
		return fmt.Errorf("session: missing session_id or user_id")
	}

	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session: expires_at must be in the future")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}

	// NX: a colliding id must never overwrite someone else's session.
	ok, err := r.client.SetNX(ctx, r.key(s.SessionID), data, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session: id already in use")
	}

	// The index outlives every member; stale ids are pruned on read.
	indexUntil := s.AbsoluteExpiresAt
	if indexUntil.Before(s.ExpiresAt) {
		indexUntil = s.ExpiresAt
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, r.userKey(s.UserID), s.SessionID)
		pipe.ExpireAt(ctx, r.userKey(s.UserID), indexUntil)
		return nil
	})
	if err != nil {
		_ = r.client.Del(ctx, r.key(s.SessionID)).Err()
		return fmt.Errorf("session: index by user: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, nil
	}

	val, err := r.client.Get(ctx, r.key(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}

	var s Session
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return nil, fmt.Errorf("session: failed to unmarshal: %w", err)
	}

	return &s, nil
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return r.client.Del(ctx, r.key(sessionID)).Err()
}

func (r *RedisStore) Update(ctx context.Context, s Session) error {
	if s.SessionID == "" {
		return fmt.Errorf("session: missing session_id")
	}

	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		// If expired, delete session instead of extending
		return r.client.Del(ctx, r.key(s.SessionID)).Err()
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}

	// XX: never resurrect a session that was deleted concurrently.
	return r.client.SetXX(ctx, r.key(s.SessionID), data, ttl).Err()
}

func (r *RedisStore) Bind(ctx context.Context, clientID, sessionID string, expiresAt time.Time) error {
	if clientID == "" || sessionID == "" {
		return fmt.Errorf("session: missing client_id or session_id")
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session: expires_at must be in the future")
	}

	return r.client.Set(ctx, r.clientKey(clientID), sessionID, ttl).Err()
}

func (r *RedisStore) Current(ctx context.Context, clientID string) (string, error) {
	if clientID == "" {
		return "", ErrNotBound
	}

	sid, err := r.client.Get(ctx, r.clientKey(clientID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotBound
	}
	if err != nil {
		return "", err
	}
	return sid, nil
}

func (r *RedisStore) Unbind(ctx context.Context, clientID string) error {
	if clientID == "" {
		return nil
	}
	return r.client.Del(ctx, r.clientKey(clientID)).Err()
}

func (r *RedisStore) ListByUser(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, nil
	}

	ids, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	live := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := r.client.Exists(ctx, r.key(id)).Result()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			_ = r.client.SRem(ctx, r.userKey(userID), id).Err()
			continue
		}
		live = append(live, id)
	}
	return live, nil
}

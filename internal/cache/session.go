package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/twopelicans/portal/internal/auth"
	"github.com/twopelicans/portal/internal/model"
)

const (
	// sessionPrefix is the Redis key prefix for session records.
	sessionPrefix = "session:"
	// userSessionsPrefix indexes the live session ids of one user.
	userSessionsPrefix = "session:user:"
)

// ErrSessionNotFound is returned for unknown, expired or revoked sessions.
var ErrSessionNotFound = errors.New("session not found")

// CreateSession stores a new session for userID that expires after ttl.
func (c *Cache) CreateSession(ctx context.Context, userID string, ttl time.Duration) (*model.Session, error) {
	id, err := auth.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	now := time.Now().UTC()
	session := &model.Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}

	indexKey := userSessionsPrefix + userID
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, sessionPrefix+id, data, ttl)
	pipe.SAdd(ctx, indexKey, id)
	pipe.Expire(ctx, indexKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	return session, nil
}

// GetSession loads a live session by id.
func (c *Cache) GetSession(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}

	data, err := c.client.Get(ctx, sessionPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		// Corrupted entry - treat as revoked
		return nil, ErrSessionNotFound
	}

	return &session, nil
}

// DeleteSession revokes a session. Deleting an unknown session is not an error.
func (c *Cache) DeleteSession(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	session, err := c.GetSession(ctx, id)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, sessionPrefix+id)
	if session != nil {
		pipe.SRem(ctx, userSessionsPrefix+session.UserID, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteUserSessions revokes every session of a user and returns how many were removed.
func (c *Cache) DeleteUserSessions(ctx context.Context, userID string) (int, error) {
	indexKey := userSessionsPrefix + userID

	ids, err := c.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list user sessions: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionPrefix+id)
	}
	keys = append(keys, indexKey)

	removed, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}

	// The index key itself is counted by DEL.
	n := int(removed) - 1
	if n < 0 {
		n = 0
	}
	return n, nil
}

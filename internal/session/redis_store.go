// Package session provides Redis-backed storage for refresh tokens and
// session-scoped client state (scroll positions, view mode).
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dealflow/api/internal/store"
	"github.com/redis/go-redis/v9"
)

// ScrollTTL is how long a saved scroll position stays valid. Entries older
// than this are reported as absent and removed on read.
const ScrollTTL = 30 * time.Minute

// ViewModes is the closed set of persistable dashboard views.
var ViewModes = map[string]struct{}{
	"grid":     {},
	"table":    {},
	"pipeline": {},
	"funnel":   {},
}

var ErrInvalidViewMode = errors.New("invalid view mode")

// TokenData holds the data stored for each refresh token
type TokenData struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// ScrollPosition is the stored per-view scroll offset.
type ScrollPosition struct {
	Y         float64   `json:"y"`
	Timestamp time.Time `json:"timestamp"`
}

// RedisStore implements refresh token and client-state storage using Redis
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis-backed session store
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "dealflow:"}, nil
}

func (s *RedisStore) refreshKey(tokenHash string) string {
	return s.prefix + "refresh:" + tokenHash
}

func (s *RedisStore) scrollKey(sessionID, view string) string {
	return s.prefix + "scroll:" + sessionID + ":" + view
}

func (s *RedisStore) viewModeKey(sessionID string) string {
	return s.prefix + "viewmode:" + sessionID
}

// ── Refresh sessions ──

// SaveRefreshSession stores a refresh token with expiration
func (s *RedisStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	data := TokenData{
		UserID:    userID,
		CreatedAt: time.Now(),
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal token data: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}

	if err := s.client.Set(ctx, s.refreshKey(tokenHash), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// LookupRefreshSession retrieves a refresh token and returns user info
func (s *RedisStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	jsonData, err := s.client.Get(ctx, s.refreshKey(tokenHash)).Result()
	if err == redis.Nil {
		return store.User{}, fmt.Errorf("token not found or expired")
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup refresh token: %w", err)
	}

	var data TokenData
	if err := json.Unmarshal([]byte(jsonData), &data); err != nil {
		return store.User{}, fmt.Errorf("unmarshal token data: %w", err)
	}

	return store.User{
		ID:          data.UserID,
		DisplayName: data.DisplayName,
		Role:        data.Role,
	}, nil
}

// RevokeRefreshSession deletes a refresh token
func (s *RedisStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, s.refreshKey(tokenHash)).Err(); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// ── Client state ──

// SaveScrollPosition stores a per-view scroll offset with the scroll TTL.
func (s *RedisStore) SaveScrollPosition(ctx context.Context, sessionID, view string, y float64) error {
	position := ScrollPosition{Y: y, Timestamp: time.Now()}
	jsonData, err := json.Marshal(position)
	if err != nil {
		return fmt.Errorf("marshal scroll position: %w", err)
	}
	if err := s.client.Set(ctx, s.scrollKey(sessionID, view), jsonData, ScrollTTL).Err(); err != nil {
		return fmt.Errorf("save scroll position: %w", err)
	}
	return nil
}

// GetScrollPosition returns the stored position for a view, or ok=false when
// none exists or the stored entry is older than ScrollTTL. A stale entry is
// deleted on the read that discovers it.
func (s *RedisStore) GetScrollPosition(ctx context.Context, sessionID, view string) (ScrollPosition, bool, error) {
	key := s.scrollKey(sessionID, view)
	jsonData, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return ScrollPosition{}, false, nil
	}
	if err != nil {
		return ScrollPosition{}, false, fmt.Errorf("lookup scroll position: %w", err)
	}

	var position ScrollPosition
	if err := json.Unmarshal([]byte(jsonData), &position); err != nil {
		return ScrollPosition{}, false, fmt.Errorf("unmarshal scroll position: %w", err)
	}

	if time.Since(position.Timestamp) > ScrollTTL {
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return ScrollPosition{}, false, fmt.Errorf("delete stale scroll position: %w", err)
		}
		return ScrollPosition{}, false, nil
	}
	return position, true, nil
}

// SetViewMode stores the session's dashboard view. The value must be one of
// the closed ViewModes set.
func (s *RedisStore) SetViewMode(ctx context.Context, sessionID, mode string) error {
	if _, ok := ViewModes[mode]; !ok {
		return ErrInvalidViewMode
	}
	if err := s.client.Set(ctx, s.viewModeKey(sessionID), mode, 0).Err(); err != nil {
		return fmt.Errorf("save view mode: %w", err)
	}
	return nil
}

// GetViewMode returns the stored view mode, or ok=false when unset.
func (s *RedisStore) GetViewMode(ctx context.Context, sessionID string) (string, bool, error) {
	mode, err := s.client.Get(ctx, s.viewModeKey(sessionID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup view mode: %w", err)
	}
	return mode, true, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

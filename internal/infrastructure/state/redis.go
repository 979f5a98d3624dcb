package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisState keeps session state in Redis so several host processes serving
// the same shopper session observe one provisional id and one event counter.
// Reads and writes are best-effort: on a Redis failure the state degrades to
// a process-local fallback rather than blocking analytics dispatch.
type RedisState struct {
	client    redis.UniversalClient
	sessionID string
	ttl       time.Duration
	logger    *zap.Logger

	fallback *MemoryState
}

// NewRedisState creates a Redis-backed session state for one session id.
func NewRedisState(client redis.UniversalClient, sessionID string, ttl time.Duration, logger *zap.Logger) *RedisState {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisState{
		client:    client,
		sessionID: sessionID,
		ttl:       ttl,
		logger:    logger,
		fallback:  NewMemoryState(),
	}
}

func (s *RedisState) key(field string) string {
	return fmt.Sprintf("analytics:session:%s:%s", s.sessionID, field)
}

// ProvisionalUserID returns the session's anonymous identifier, minting and
// storing one if the session does not have one yet.
func (s *RedisState) ProvisionalUserID(ctx context.Context) string {
	key := s.key("provisional_user_id")

	id, err := s.client.Get(ctx, key).Result()
	if err == nil && id != "" {
		return id
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Warn("session state read failed", zap.String("key", key), zap.Error(err))
		return s.fallback.ProvisionalUserID(ctx)
	}

	id = uuid.NewString()
	set, err := s.client.SetNX(ctx, key, id, s.ttl).Result()
	if err != nil {
		s.logger.Warn("session state write failed", zap.String("key", key), zap.Error(err))
		return id
	}
	if !set {
		// Another process minted one first
		if current, err := s.client.Get(ctx, key).Result(); err == nil && current != "" {
			return current
		}
	}
	return id
}

// IncrementEventsRecorded bumps the session-event counter by one.
func (s *RedisState) IncrementEventsRecorded(ctx context.Context) {
	key := s.key("events_recorded")
	if err := s.client.Incr(ctx, key).Err(); err != nil {
		s.logger.Warn("session counter increment failed", zap.String("key", key), zap.Error(err))
		s.fallback.IncrementEventsRecorded(ctx)
		return
	}
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		s.logger.Warn("session counter expire failed", zap.String("key", key), zap.Error(err))
	}
}

// EventsRecorded returns the current session-event counter value.
func (s *RedisState) EventsRecorded(ctx context.Context) int64 {
	key := s.key("events_recorded")
	n, err := s.client.Get(ctx, key).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("session counter read failed", zap.String("key", key), zap.Error(err))
		}
		return s.fallback.EventsRecorded(ctx)
	}
	return n
}

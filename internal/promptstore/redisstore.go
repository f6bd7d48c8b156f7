package promptstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/config"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/interfaces"
)

const redisPromptsKey = "user_prompts"

// RedisStore persists prompt preferences as JSON values in a Redis hash
// keyed by requester id
type RedisStore struct {
	redis  *redis.Client
	logger *logrus.Logger
}

// NewRedisStore creates a Redis-backed prompt store
func NewRedisStore(cfg config.RedisConfig) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisStore{
		redis:  rdb,
		logger: config.NewLogger(),
	}
}

// Get returns the requester's overrides
func (s *RedisStore) Get(userID string) (interfaces.Prompts, bool, error) {
	ctx := context.Background()

	val, err := s.redis.HGet(ctx, redisPromptsKey, userID).Result()
	if err == redis.Nil {
		return interfaces.Prompts{}, false, nil
	}
	if err != nil {
		return interfaces.Prompts{}, false, fmt.Errorf("failed to get prompts from Redis: %w", err)
	}

	var p interfaces.Prompts
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return interfaces.Prompts{}, false, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}
	return p, true, nil
}

// SetPositive replaces the positive override
func (s *RedisStore) SetPositive(userID, prompt string) error {
	return s.update(userID, func(p *interfaces.Prompts) { p.Positive = prompt })
}

// SetNegative replaces the negative override
func (s *RedisStore) SetNegative(userID, prompt string) error {
	return s.update(userID, func(p *interfaces.Prompts) { p.Negative = prompt })
}

// ClearPositive drops the positive override
func (s *RedisStore) ClearPositive(userID string) error {
	return s.update(userID, func(p *interfaces.Prompts) { p.Positive = "" })
}

// ClearNegative drops the negative override
func (s *RedisStore) ClearNegative(userID string) error {
	return s.update(userID, func(p *interfaces.Prompts) { p.Negative = "" })
}

func (s *RedisStore) update(userID string, mutate func(*interfaces.Prompts)) error {
	ctx := context.Background()

	p, _, err := s.Get(userID)
	if err != nil {
		return err
	}
	mutate(&p)

	if p.Positive == "" && p.Negative == "" {
		if err := s.redis.HDel(ctx, redisPromptsKey, userID).Err(); err != nil {
			return fmt.Errorf("failed to delete prompts from Redis: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal prompts: %w", err)
	}
	if err := s.redis.HSet(ctx, redisPromptsKey, userID, data).Err(); err != nil {
		return fmt.Errorf("failed to save prompts to Redis: %w", err)
	}

	s.logger.WithField("user_id", userID).Debug("Prompts updated")
	return nil
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"FinEdge/internal/domain/models"
	domrepo "FinEdge/internal/domain/repository"
	applogger "FinEdge/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisArmStore keeps one hash field per strategy under <prefix>:bandit:arms.
type RedisArmStore struct {
	client *redis.Client
	key    string
	l      *applogger.Logger
}

func NewRedisArmStore(client *redis.Client, prefix string, l *applogger.Logger) *RedisArmStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &RedisArmStore{client: client, key: armsKey(prefix), l: l}
}

func armsKey(prefix string) string {
	if prefix == "" {
		return "bandit:arms"
	}
	return prefix + ":bandit:arms"
}

func (s *RedisArmStore) LoadArms(ctx context.Context) (map[string]models.BanditArm, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load arms: %w", err)
	}
	arms, bad := decodeArms(fields)
	for _, id := range bad {
		s.l.Warn("skipping corrupt arm snapshot", applogger.String("strategy", id))
	}
	return arms, nil
}

func (s *RedisArmStore) SaveArm(ctx context.Context, arm models.BanditArm) error {
	b, err := json.Marshal(arm)
	if err != nil {
		return fmt.Errorf("encode arm: %w", err)
	}
	if err := s.client.HSet(ctx, s.key, arm.StrategyID, b).Err(); err != nil {
		return fmt.Errorf("save arm %s: %w", arm.StrategyID, err)
	}
	return nil
}

// decodeArms parses hash fields, returning the ids it could not decode.
func decodeArms(fields map[string]string) (map[string]models.BanditArm, []string) {
	arms := make(map[string]models.BanditArm, len(fields))
	var bad []string
	for id, raw := range fields {
		var a models.BanditArm
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			bad = append(bad, id)
			continue
		}
		a.StrategyID = id
		arms[id] = a
	}
	return arms, bad
}

var _ domrepo.ArmStore = (*RedisArmStore)(nil)

// Package redisstore implements the path index counter on top of redis, for
// deployments where more engine instances share the same wallet sessions.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/tdex-network/tdex-stealth/pkg/stealth"
)

const defaultKeyPrefix = "stealth:path-index:"

type pathIndexRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewPathIndexRepository returns a domain.PathIndexRepository storing one
// counter per session, advanced with INCRBY.
func NewPathIndexRepository(
	client *redis.Client, keyPrefix string,
) (domain.PathIndexRepository, error) {
	if client == nil {
		return nil, fmt.Errorf("missing redis client")
	}
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &pathIndexRepository{client, keyPrefix}, nil
}

func (r *pathIndexRepository) ReserveIndexes(
	ctx context.Context, sessionID string, n uint32,
) (uint32, error) {
	key := r.key(sessionID)
	next, err := r.client.IncrBy(ctx, key, int64(n)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis INCRBY %s: %w", key, err)
	}
	// The counter is never rolled back, exhausted indexes stay unusable.
	if next-1 > int64(stealth.MaxIndex) {
		return 0, domain.ErrPathIndexExhausted
	}
	return uint32(next - int64(n)), nil
}

func (r *pathIndexRepository) GetNextIndex(
	ctx context.Context, sessionID string,
) (uint32, error) {
	key := r.key(sessionID)
	next, err := r.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis GET %s: %w", key, err)
	}
	if next > int64(stealth.MaxIndex) {
		return 0, domain.ErrPathIndexExhausted
	}
	return uint32(next), nil
}

func (r *pathIndexRepository) key(sessionID string) string {
	return r.keyPrefix + sessionID
}

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	walletKeyPrefix      = "wallet:"
	refundKeyPrefix      = "refund:"
	idempotencyKeyPrefix = "purchase:"
	idempotencyKeyTTL    = 24 * time.Hour
	refundKeyTTL         = 7 * 24 * time.Hour
)

var debitScript = redis.NewScript(`
local key = KEYS[1]
local amount = tonumber(ARGV[1])

local current = redis.call('GET', key)
if not current then
	return 0
end

current = tonumber(current)
if current >= amount then
	redis.call('DECRBY', key, amount)
	return 1
end

return 0
`)

// refund marker and credit are written together so a replayed refund is a no-op
var refundScript = redis.NewScript(`
local walletKey = KEYS[1]
local markerKey = KEYS[2]
local amount = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])

if redis.call('SET', markerKey, 1, 'NX', 'EX', ttl) then
	redis.call('INCRBY', walletKey, amount)
	return 1
end

return 0
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) Debit(ctx context.Context, accountID string, amount int64) (bool, error) {
	key := walletKeyPrefix + accountID

	result, err := debitScript.Run(ctx, r.client, []string{key}, amount).Int()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}

func (r *RedisAdapter) Refund(ctx context.Context, accountID string, txID uuid.UUID, amount int64) (bool, error) {
	keys := []string{walletKeyPrefix + accountID, refundKeyPrefix + txID.String()}

	result, err := refundScript.Run(ctx, r.client, keys, amount, int64(refundKeyTTL/time.Second)).Int()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}

func (r *RedisAdapter) Balance(ctx context.Context, accountID string) (int64, error) {
	balance, err := r.client.Get(ctx, walletKeyPrefix+accountID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return balance, err
}

func (r *RedisAdapter) SetBalance(ctx context.Context, accountID string, amount int64) error {
	key := walletKeyPrefix + accountID
	return r.client.Set(ctx, key, amount, 0).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, requestID string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+requestID, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, requestID string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+requestID).Err()
}

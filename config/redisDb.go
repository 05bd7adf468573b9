package config

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisStore bundles the Redis client with a lock client built on it.
// A nil *RedisStore behaves as an always-empty cache.
type RedisStore struct {
	Client *redis.Client
	Locker *redislock.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{Client: client, Locker: redislock.New(client)}
}

func (s *RedisStore) GetObject(ctx context.Context, key string, dest interface{}) (bool, error) {
	if s == nil || s.Client == nil {
		return false, nil
	}
	val, err := s.Client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) SetObject(ctx context.Context, key string, obj interface{}, exp time.Duration) error {
	if s == nil || s.Client == nil {
		return nil
	}
	objInByte, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, key, objInByte, exp).Err()
}

// Touch slides the expiry of key. It reports false when the key is gone.
func (s *RedisStore) Touch(ctx context.Context, key string, exp time.Duration) (bool, error) {
	if s == nil || s.Client == nil {
		return false, nil
	}
	return s.Client.Expire(ctx, key, exp).Result()
}

func (s *RedisStore) RemoveKeys(ctx context.Context, keys ...string) error {
	if s == nil || s.Client == nil || len(keys) == 0 {
		return nil
	}
	return s.Client.Del(ctx, keys...).Err()
}

// RemoveByPrefix deletes every key matching prefix*. Uses SCAN, not KEYS.
func (s *RedisStore) RemoveByPrefix(ctx context.Context, prefix string) error {
	if s == nil || s.Client == nil {
		return nil
	}
	iter := s.Client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 100 {
			if err := s.Client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return s.Client.Del(ctx, batch...).Err()
	}
	return nil
}

// Obtain takes a non-blocking lock. ok is false when someone else holds it.
func (s *RedisStore) Obtain(ctx context.Context, key string, ttl time.Duration) (lock *redislock.Lock, ok bool, err error) {
	if s == nil || s.Locker == nil {
		return nil, false, errors.New("redis lock client is not configured")
	}
	lock, err = s.Locker.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return lock, true, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if s == nil || s.Client == nil {
		return errors.New("redis is not configured")
	}
	return s.Client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	if s == nil || s.Client == nil {
		return nil
	}
	return s.Client.Close()
}

// ConnectRedisWithRetry blocks until Redis answers PING or ctx is done.
// Call this from main() AFTER the HTTP server is listening.
func ConnectRedisWithRetry(ctx context.Context, settings *Settings, logg *logrus.Logger) (*RedisStore, error) {
	var attempt int
	for {
		attempt++
		rdb := redis.NewClient(&redis.Options{
			Addr:     settings.RedisAddress,
			Password: settings.RedisPassword,
			DB:       settings.RedisDB,
			PoolSize: 100,
		})
		err := rdb.Ping(ctx).Err()
		if err == nil {
			logg.WithFields(logrus.Fields{
				"field":   "redis",
				"attempt": attempt,
				"addr":    settings.RedisAddress,
			}).Info("connected to redis")
			return NewRedisStore(rdb), nil
		}
		_ = rdb.Close()

		sleep := retryBackoff(attempt)
		logg.WithFields(logrus.Fields{
			"field":   "redis",
			"attempt": attempt,
			"addr":    settings.RedisAddress,
		}).Warn("failed to connect redis; retrying in " + sleep.String() + ": " + err.Error())

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

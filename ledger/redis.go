package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces ledger keys.
const DefaultRedisPrefix = "baas:attempts:"

// RedisStore keeps one hash per IP ({count, last}) that expires window after
// the last failure, so Redis drops stale records on its own.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	window time.Duration
}

// NewRedisStore wraps rdb. An empty prefix uses DefaultRedisPrefix.
func NewRedisStore(rdb redis.UniversalClient, prefix string, window time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix, window: window}
}

func (s *RedisStore) key(ip string) string { return s.prefix + ip }

func (s *RedisStore) Get(ctx context.Context, ip string) (Record, bool, error) {
	vals, err := s.rdb.HGetAll(ctx, s.key(ip)).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("ledger: redis get %s: %w", ip, err)
	}
	if len(vals) == 0 {
		return Record{}, false, nil
	}
	count, _ := strconv.Atoi(vals["count"])
	last, _ := strconv.ParseInt(vals["last"], 10, 64)
	return Record{IP: ip, Count: count, Last: time.Unix(0, last)}, true, nil
}

func (s *RedisStore) Put(ctx context.Context, rec Record) error {
	key := s.key(rec.IP)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, "count", rec.Count, "last", rec.Last.UnixNano())
		p.PExpireAt(ctx, key, rec.Last.Add(s.window))
		return nil
	})
	if err != nil {
		return fmt.Errorf("ledger: redis put %s: %w", rec.IP, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, ip string) error {
	if err := s.rdb.Del(ctx, s.key(ip)).Err(); err != nil {
		return fmt.Errorf("ledger: redis delete %s: %w", ip, err)
	}
	return nil
}

var incrScript = redis.NewScript(`
local c = tonumber(redis.call('HGET', KEYS[1], 'count') or '0')
if c < tonumber(ARGV[1]) then c = c + 1 end
redis.call('HSET', KEYS[1], 'count', c, 'last', ARGV[2])
redis.call('PEXPIREAT', KEYS[1], ARGV[3])
return c
`)

// Incr counts one failure with a server-side script.
func (s *RedisStore) Incr(ctx context.Context, ip string, max int, now time.Time) (Record, error) {
	expireAt := now.Add(s.window).UnixMilli()
	n, err := incrScript.Run(ctx, s.rdb, []string{s.key(ip)}, max, now.UnixNano(), expireAt).Int()
	if err != nil {
		return Record{}, fmt.Errorf("ledger: redis incr %s: %w", ip, err)
	}
	return Record{IP: ip, Count: n, Last: now}, nil
}

// Sweep scans for records older than cutoff that have not expired yet,
// e.g. after the window was shortened.
func (s *RedisStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	n := 0
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		last, err := s.rdb.HGet(ctx, key, "last").Int64()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return n, fmt.Errorf("ledger: redis sweep %s: %w", key, err)
		}
		if time.Unix(0, last).After(cutoff) {
			continue
		}
		if err := s.rdb.Del(ctx, key).Err(); err != nil {
			return n, fmt.Errorf("ledger: redis sweep %s: %w", key, err)
		}
		n++
	}
	if err := iter.Err(); err != nil {
		return n, fmt.Errorf("ledger: redis scan: %w", err)
	}
	return n, nil
}

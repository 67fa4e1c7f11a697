package presence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Redis keeps one sorted set per room: member = user id, score = expiry in
// unix milliseconds. Readers prune expired members before listing, so the
// set shared by all instances never reports a ghost past its TTL.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

// NewRedis wraps client. prefix defaults to "presence:room:".
func NewRedis(client redis.UniversalClient, ttl time.Duration, prefix string) *Redis {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	if prefix == "" {
		prefix = "presence:room:"
	}
	return &Redis{client: client, ttl: ttl, prefix: prefix, now: time.Now}
}

// Dial parses a redis:// URL and verifies connectivity.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, errors.New("redis: REDIS_URL is not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return c, nil
}

func (r *Redis) key(roomID string) string { return r.prefix + roomID }

func (r *Redis) expiry() float64 {
	return float64(r.now().Add(r.ttl).UnixMilli())
}

func (r *Redis) Join(ctx context.Context, roomID, userID string) error {
	key := r.key(roomID)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, key, redis.Z{Score: r.expiry(), Member: userID})
		p.PExpire(ctx, key, 2*r.ttl)
		return nil
	})
	return err
}

func (r *Redis) Leave(ctx context.Context, roomID, userID string) error {
	return r.client.ZRem(ctx, r.key(roomID), userID).Err()
}

// Heartbeat only touches existing members so a late heartbeat cannot
// resurrect a user whose disconnect already ran.
func (r *Redis) Heartbeat(ctx context.Context, roomID, userID string) error {
	key := r.key(roomID)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAddXX(ctx, key, redis.Z{Score: r.expiry(), Member: userID})
		p.PExpire(ctx, key, 2*r.ttl)
		return nil
	})
	return err
}

func (r *Redis) Online(ctx context.Context, roomID string) ([]string, error) {
	key := r.key(roomID)
	now := strconv.FormatInt(r.now().UnixMilli(), 10)

	var live *redis.StringSliceCmd
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, key, "-inf", now)
		live = p.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: "(" + now, Max: "+inf"})
		return nil
	})
	if err != nil {
		return nil, err
	}
	ids := live.Val()
	sort.Strings(ids)
	return ids, nil
}

func (r *Redis) Count(ctx context.Context, roomID string) (int, error) {
	ids, err := r.Online(ctx, roomID)
	return len(ids), err
}

var _ Tracker = (*Redis)(nil)

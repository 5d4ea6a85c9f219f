package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisAllowScript devuelve {intentos en la ventana, ms restantes de la ventana}.
const redisAllowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("PTTL", KEYS[1])}
`

// redisRateLimiter cuenta intentos en una ventana fija compartida entre
// réplicas del servicio.
type redisRateLimiter struct {
	client redisEvaler
	window time.Duration
	max    int
	prefix string
}

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// NewRedisRateLimiter devuelve nil si no hay cliente; el llamador cae al
// limitador en memoria.
func NewRedisRateLimiter(client *redis.Client, prefix string, window time.Duration, max int) RateLimiter {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisRateLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: prefix,
	}
}

// Allow deja pasar cuando Redis no responde.
func (l *redisRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	if l == nil || l.client == nil {
		return true, 0
	}
	normalizedKey := normalizeLimiterKey(key)
	if normalizedKey == "" {
		return false, 0
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	windowMS := l.window.Milliseconds()
	if windowMS <= 0 {
		windowMS = time.Minute.Milliseconds()
	}
	res, err := l.client.Eval(ctx, redisAllowScript, []string{l.prefix + normalizedKey}, windowMS).Int64Slice()
	if err != nil || len(res) != 2 {
		return true, 0
	}
	if res[0] <= int64(l.max) {
		return true, 0
	}
	wait := time.Duration(res[1]) * time.Millisecond
	if wait <= 0 {
		wait = l.window
	}
	return false, wait
}

package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Ventana deslizante sobre un sorted set: mismo criterio que el limitador en memoria.
// ARGV: ahora (ms), ventana (ms), maximo, miembro unico.
const resetWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
if redis.call("ZCARD", key) >= tonumber(ARGV[3]) then
  return 0
end
redis.call("ZADD", key, now, ARGV[4])
redis.call("PEXPIRE", key, window)
return 1
`

const redisLimiterTimeout = 500 * time.Millisecond

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisRateLimiter struct {
	client redisEvaler
	window time.Duration
	max    int
	prefix string
	now    func() time.Time
	logger *zap.Logger
}

// NewRedisRateLimiter comparte la ventana de reseteos entre instancias de la API.
// Las claves guardan un hash del email, nunca la direccion.
func NewRedisRateLimiter(client *redis.Client, prefix string, window time.Duration, max int, logger *zap.Logger) RateLimiter {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	if prefix == "" {
		prefix = "chattersphere:reset:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisRateLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: prefix,
		now:    time.Now,
		logger: logger,
	}
}

// limiterKey normaliza el email para que "A@x.com " y "a@x.com" cuenten juntos.
func limiterKey(emailAddr string) string {
	return strings.ToLower(strings.TrimSpace(emailAddr))
}

func (l *redisRateLimiter) redisKey(emailAddr string) string {
	sum := sha256.Sum256([]byte(emailAddr))
	return l.prefix + hex.EncodeToString(sum[:])
}

// Allow deja pasar si Redis no responde: un corte de Redis no debe bloquear los reseteos.
func (l *redisRateLimiter) Allow(key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	normalized := limiterKey(key)
	if normalized == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisLimiterTimeout)
	defer cancel()

	now := l.now().UnixMilli()
	member := uuid.NewString()
	allowed, err := l.client.Eval(ctx, resetWindowScript, []string{l.redisKey(normalized)},
		now, l.window.Milliseconds(), l.max, member).Int()
	if err != nil {
		l.logger.Warn("reset rate limiter unavailable, allowing", zap.Error(err))
		return true
	}
	return allowed == 1
}

package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type mockRedisEvaler struct {
	lastScript string
	lastKeys   []string
	lastArgs   []interface{}
	result     int64
	err        error
}

func (m *mockRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	m.lastScript = script
	m.lastKeys = keys
	m.lastArgs = args
	cmd := redis.NewCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	cmd.SetVal(m.result)
	return cmd
}

func newTestRedisLimiter(client redisEvaler, logger *zap.Logger) *redisRateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisRateLimiter{
		client: client,
		window: 10 * time.Minute,
		max:    3,
		prefix: "chattersphere:reset:",
		now:    func() time.Time { return time.UnixMilli(1_700_000_000_000) },
		logger: logger,
	}
}

func hashedEmail(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}

func TestRedisRateLimiterAllow(t *testing.T) {
	t.Run("nil receiver fail-open", func(t *testing.T) {
		var l *redisRateLimiter
		if !l.Allow("user@example.com") {
			t.Fatalf("expected fail-open for nil limiter")
		}
	})

	t.Run("empty key rejected", func(t *testing.T) {
		mock := &mockRedisEvaler{result: 1}
		if newTestRedisLimiter(mock, nil).Allow("   ") {
			t.Fatalf("expected empty key to be rejected")
		}
		if mock.lastScript != "" {
			t.Fatalf("expected no redis call for an empty key")
		}
	})

	t.Run("hashed normalized key and window args", func(t *testing.T) {
		mock := &mockRedisEvaler{result: 1}
		if !newTestRedisLimiter(mock, nil).Allow(" User@Example.com ") {
			t.Fatalf("expected allow when the script admits the hit")
		}
		want := "chattersphere:reset:" + hashedEmail("user@example.com")
		if len(mock.lastKeys) != 1 || mock.lastKeys[0] != want {
			t.Fatalf("expected key %q, got %+v", want, mock.lastKeys)
		}
		if len(mock.lastArgs) != 4 {
			t.Fatalf("expected 4 script args, got %+v", mock.lastArgs)
		}
		if mock.lastArgs[0] != int64(1_700_000_000_000) || mock.lastArgs[1] != int64(600_000) || mock.lastArgs[2] != 3 {
			t.Fatalf("unexpected now/window/max args: %+v", mock.lastArgs[:3])
		}
		if member, ok := mock.lastArgs[3].(string); !ok || member == "" {
			t.Fatalf("expected a unique member, got %+v", mock.lastArgs[3])
		}
		if mock.lastScript != resetWindowScript {
			t.Fatalf("expected sliding window script")
		}
	})

	t.Run("same mailbox in another case shares the window", func(t *testing.T) {
		a := &mockRedisEvaler{result: 1}
		b := &mockRedisEvaler{result: 1}
		newTestRedisLimiter(a, nil).Allow("Bruno@X.com")
		newTestRedisLimiter(b, nil).Allow("bruno@x.com")
		if a.lastKeys[0] != b.lastKeys[0] {
			t.Fatalf("expected same key, got %q and %q", a.lastKeys[0], b.lastKeys[0])
		}
	})

	t.Run("deny when window is full", func(t *testing.T) {
		if newTestRedisLimiter(&mockRedisEvaler{result: 0}, nil).Allow("user@example.com") {
			t.Fatalf("expected deny when the script rejects the hit")
		}
	})

	t.Run("redis error fail-open and logged", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		l := newTestRedisLimiter(&mockRedisEvaler{err: errors.New("redis down")}, zap.New(core))
		if !l.Allow("user@example.com") {
			t.Fatalf("expected fail-open on redis errors")
		}
		if logs.FilterMessage("reset rate limiter unavailable, allowing").Len() != 1 {
			t.Fatalf("expected a warning, got %+v", logs.All())
		}
	})
}

func TestMemoryRateLimiter_WindowMax(t *testing.T) {
	l := NewRateLimiter(time.Minute, 2)
	if !l.Allow("k@x.com") || !l.Allow(" K@X.com") {
		t.Fatalf("expected first two hits allowed")
	}
	if l.Allow("k@x.com") {
		t.Fatalf("expected third hit denied")
	}
	if !l.Allow("other@x.com") {
		t.Fatalf("expected independent keys")
	}
	if l.Allow("  ") {
		t.Fatalf("expected empty key rejected")
	}
}

func TestNewRedisRateLimiter_NilClient(t *testing.T) {
	if NewRedisRateLimiter(nil, "x:", time.Minute, 1, nil) != nil {
		t.Fatalf("expected nil limiter for nil client")
	}
}

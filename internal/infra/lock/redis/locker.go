package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"rentdesk/internal/app/policies"
)

var ErrLockExpired = errors.New("redis: lock expired before release")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Client is the slice of the redis API the locker needs. *redis.Client and
// redis.UniversalClient both satisfy it.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd
	ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd
	ScriptLoad(ctx context.Context, script string) *redis.StringCmd
}

// Locker is a single-instance redis lock (SET NX PX with a token-checked release).
type Locker struct {
	Client Client
	TTL    time.Duration
	Retry  time.Duration
	Prefix string
}

func NewLocker(client Client, ttl time.Duration) *Locker {
	return &Locker{Client: client, TTL: ttl, Retry: 50 * time.Millisecond, Prefix: "rentdesk:lock:"}
}

func (l *Locker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	token := uuid.NewString()
	full := l.Prefix + key
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	retry := l.Retry
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	for {
		ok, err := l.Client.SetNX(ctx, full, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.Client, []string{full}, token).Int()
		if err != nil {
			return fmt.Errorf("redis: release %s: %w", key, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrLockExpired, key)
		}
		return nil
	}, nil
}

func (l *Locker) Ping(ctx context.Context) error {
	return l.Client.Ping(ctx).Err()
}

var _ policies.Locker = (*Locker)(nil)

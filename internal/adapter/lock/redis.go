package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/simaogato/portfolio-valuation/internal/domain"
)

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes portfolio writers across processes with SET NX PX
type RedisLocker struct {
	Client     redis.UniversalClient
	TTL        time.Duration
	RetryDelay time.Duration
	Prefix     string
	Logger     zerolog.Logger
}

// NewRedisLocker creates a new RedisLocker instance
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, logger zerolog.Logger) *RedisLocker {
	return &RedisLocker{
		Client:     client,
		TTL:        ttl,
		RetryDelay: 50 * time.Millisecond,
		Prefix:     "portfolio:lock:",
		Logger:     logger,
	}
}

// Key returns the redis key guarding a portfolio
func (l *RedisLocker) Key(portfolioID int64) string {
	return fmt.Sprintf("%s%d", l.Prefix, portfolioID)
}

// Lock retries SET NX until it wins or ctx is done
func (l *RedisLocker) Lock(ctx context.Context, portfolioID int64) (func(), error) {
	key := l.Key(portfolioID)
	token := uuid.NewString()

	for {
		ok, err := l.Client.SetNX(ctx, key, token, l.TTL).Result()
		if err != nil {
			return nil, domain.Internal(err, "failed to acquire lock for portfolio %d", portfolioID)
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return func() {
		// the caller's ctx may already be cancelled; release must still run
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.Client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			l.Logger.Error().Err(err).Str("key", key).Msg("failed to release portfolio lock")
		}
	}, nil
}

var _ domain.PortfolioLocker = (*RedisLocker)(nil)

package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// A minute bucket lives a little longer than its minute so late calls of the
// same minute still see the count.
const carrierBucketTTL = 70 * time.Second

// CarrierLimiter counts carrier calls per carrier and wall-clock minute.
type CarrierLimiter struct {
	c *redis.Client
}

func NewCarrierLimiter(addr string) *CarrierLimiter {
	return &CarrierLimiter{
		c: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// CarrierCallKey names the counter of carrierName for the minute containing at.
func CarrierCallKey(carrierName string, at time.Time) string {
	return fmt.Sprintf("rl:carrier:%s:%s", carrierName, at.UTC().Format("200601021504"))
}

// AllowCall counts one call to carrierName at the given time and reports
// whether the minute is still within perMinute, plus the count so far.
func (l *CarrierLimiter) AllowCall(ctx context.Context, carrierName string, at time.Time, perMinute int64) (bool, int64, error) {
	key := CarrierCallKey(carrierName, at)

	pipe := l.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, carrierBucketTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, errors.Wrapf(err, "count carrier call %s", carrierName)
	}
	n := incr.Val()
	return n <= perMinute, n, nil
}

func (l *CarrierLimiter) Ping(ctx context.Context) error {
	return errors.Wrap(l.c.Ping(ctx).Err(), "redis ping")
}

func (l *CarrierLimiter) Close() error {
	return l.c.Close()
}

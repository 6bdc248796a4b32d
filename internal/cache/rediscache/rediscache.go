package rediscache

import (
	"context"
	"time"

	"github.com/BearBump/LabelBox/internal/models"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// EventMarks remembers which trigger events already reached a terminal outcome.
type EventMarks struct {
	c      *redis.Client
	prefix string
}

func NewEventMarks(addr string) *EventMarks {
	return &EventMarks{
		c: redis.NewClient(&redis.Options{
			Addr: addr,
		}),
		prefix: "labelbox:event:",
	}
}

// Done reports the outcome recorded for eventID, if any.
func (m *EventMarks) Done(ctx context.Context, eventID models.ID) (string, bool, error) {
	val, err := m.c.Get(ctx, m.key(eventID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redis get")
	}
	return val, true, nil
}

func (m *EventMarks) MarkDone(ctx context.Context, eventID models.ID, outcome string, ttl time.Duration) error {
	if err := m.c.Set(ctx, m.key(eventID), outcome, ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

func (m *EventMarks) Ping(ctx context.Context) error {
	return errors.Wrap(m.c.Ping(ctx).Err(), "redis ping")
}

func (m *EventMarks) Close() error {
	return m.c.Close()
}

func (m *EventMarks) key(eventID models.ID) string {
	return m.prefix + eventID.String()
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisStore keeps slots as plain Redis strings under a common prefix and
// announces every write on a pub/sub channel, so that all service
// instances sharing the Redis database observe each other's changes
// without polling.
type RedisStore struct {
	rdb     *redis.Client
	prefix  string
	channel string
	origin  string
	log     logrus.FieldLogger
}

// NewRedisStore returns a handle on rdb.  prefix scopes Clear and names
// the change channel ("<prefix>events").
func NewRedisStore(rdb *redis.Client, prefix string, log logrus.FieldLogger) *RedisStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RedisStore{
		rdb:     rdb,
		prefix:  prefix,
		channel: prefix + "events",
		origin:  uuid.NewString(),
		log:     log.WithField("component", "redis-store"),
	}
}

func (s *RedisStore) Origin() string { return s.origin }

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	// SET ... GET returns the previous value atomically with the write.
	old, err := s.rdb.SetArgs(ctx, key, value, redis.SetArgs{Get: true}).Result()
	ev := ChangeEvent{Key: key, NewValue: strPtr(value), Origin: s.origin}
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return fmt.Errorf("set %s: %w", key, err)
	default:
		ev.OldValue = strPtr(old)
	}
	return s.publish(ctx, ev)
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	old, err := s.rdb.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return s.publish(ctx, ChangeEvent{Key: key, OldValue: strPtr(old), Origin: s.origin})
}

func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan %s*: %w", s.prefix, err)
	}
	if len(keys) > 0 {
		if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
	}
	return s.publish(ctx, ChangeEvent{Cleared: true, Origin: s.origin})
}

func (s *RedisStore) publish(ctx context.Context, ev ChangeEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := s.rdb.Publish(ctx, s.channel, body).Err(); err != nil {
		// The write itself succeeded; peers will catch up on their next
		// resume check.
		s.log.WithError(err).WithField("key", ev.Key).Warn("change notification not published")
	}
	return nil
}

// Watch subscribes to the change channel.  The first subscription
// confirmation is the initial join; every later one means go-redis
// reconnected and resubscribed, so the subscription reports Resumed.
func (s *RedisStore) Watch(ctx context.Context) (Subscription, error) {
	ps := s.rdb.Subscribe(ctx, s.channel)
	// Wait for the confirmation so that writes issued after Watch returns
	// are guaranteed to be seen.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", s.channel, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	sub := newQueueSub(func() {
		cancel()
		_ = ps.Close()
	})

	go s.receive(loopCtx, ps, sub)
	return sub, nil
}

func (s *RedisStore) receive(ctx context.Context, ps *redis.PubSub, sub *queueSub) {
	for {
		msg, err := ps.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.WithError(err).Debug("change feed receive failed; retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		switch m := msg.(type) {
		case *redis.Subscription:
			if m.Kind == "subscribe" {
				sub.resume()
			}
		case *redis.Message:
			var ev ChangeEvent
			if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
				s.log.WithError(err).Warn("discarding malformed change event")
				continue
			}
			if ev.Origin == s.origin {
				continue
			}
			sub.push(ev)
		}
	}
}

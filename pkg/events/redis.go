package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JaimeStill/rtoval/pkg/lifecycle"
)

type redisPublisher struct {
	rdb     *redis.Client
	channel string
	buffer  int
	logger  *slog.Logger
}

func newRedis(cfg *Config, logger *slog.Logger) *redisPublisher {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	return &redisPublisher{
		rdb:     rdb,
		channel: cfg.Channel,
		buffer:  cfg.Buffer,
		logger:  logger.With("transport", "redis"),
	}
}

// Channel returns the pub/sub channel carrying events for sessionID.
func Channel(prefix, sessionID string) string {
	return prefix + ":" + sessionID
}

func (r *redisPublisher) Start(lc *lifecycle.Coordinator) error {
	r.logger.Info("starting event publisher", "channel", r.channel)

	lc.OnStartup(func() {
		ctx, cancel := context.WithTimeout(lc.Context(), 5*time.Second)
		defer cancel()
		if err := r.rdb.Ping(ctx).Err(); err != nil {
			r.logger.Error("redis ping failed", "error", err)
			return
		}
		r.logger.Info("event publisher connected")
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if err := r.rdb.Close(); err != nil {
			r.logger.Error("redis close failed", "error", err)
			return
		}
		r.logger.Info("event publisher closed")
	})

	return nil
}

func (r *redisPublisher) Publish(ctx context.Context, e Event) error {
	raw, err := json.Marshal(stamp(e))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := r.rdb.Publish(ctx, Channel(r.channel, e.SessionID), raw).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (r *redisPublisher) Subscribe(ctx context.Context, sessionID string) (<-chan Event, error) {
	sub := r.rdb.Subscribe(ctx, Channel(r.channel, sessionID))

	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan Event, r.buffer)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok || m == nil {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(m.Payload), &e); err != nil {
					r.logger.Warn("bad event payload", "error", err)
					continue
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/recollection-backend/internal/domain/jobs"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
)

type RedisConfig struct {
	Addr          string
	Password      string `yaml:"-"`
	DB            int
	ChannelPrefix string
}

type redisBus struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
}

// NewRedisBus publishes each task's events on "<prefix><task_id>".
func NewRedisBus(log *logger.Logger, cfg RedisConfig) (Bus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	prefix := cfg.ChannelPrefix
	if prefix == "" {
		prefix = "task:"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisBus{
		log:    log.With("service", "RedisTaskBus"),
		rdb:    rdb,
		prefix: prefix,
	}, nil
}

func (b *redisBus) Publish(ctx context.Context, ev jobs.TaskEvent) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis task bus not initialized")
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.prefix+ev.TaskID, raw).Err()
}

// StartForwarder pattern-subscribes to every task channel and hands decoded
// events to onEvent until ctx is done. The subscription is confirmed before it returns.
func (b *redisBus) StartForwarder(ctx context.Context, onEvent func(ev jobs.TaskEvent)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis task bus not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.PSubscribe(ctx, b.prefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis psubscribe %s*: %w", b.prefix, err)
	}
	go b.forward(ctx, sub, onEvent)
	return nil
}

func (b *redisBus) forward(ctx context.Context, sub *goredis.PubSub, onEvent func(ev jobs.TaskEvent)) {
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			if ev, ok := b.decode(m); ok {
				onEvent(ev)
			}
		}
	}
}

// decode rejects payloads that do not parse or that name a different task than their channel.
func (b *redisBus) decode(m *goredis.Message) (jobs.TaskEvent, bool) {
	if m == nil {
		return jobs.TaskEvent{}, false
	}
	channelTask := strings.TrimPrefix(m.Channel, b.prefix)
	var ev jobs.TaskEvent
	if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
		b.log.Warn("Dropping undecodable task event", "channel", m.Channel, "error", err)
		return jobs.TaskEvent{}, false
	}
	if ev.TaskID == "" {
		ev.TaskID = channelTask
	}
	if ev.TaskID != channelTask {
		b.log.Warn("Dropping task event published on a foreign channel", "channel", m.Channel, "task_id", ev.TaskID)
		return jobs.TaskEvent{}, false
	}
	if !ev.Event.Valid() {
		b.log.Warn("Dropping task event of unknown kind", "channel", m.Channel, "event", ev.Event)
		return jobs.TaskEvent{}, false
	}
	return ev, true
}

func (b *redisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mthirumalai2905/clubly-community-hub/internal/realtime"
	"github.com/mthirumalai2905/clubly-community-hub/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Feed 基于 Redis Pub/Sub 的变更推送，多个服务实例共享
// 每张表一个频道 <prefix><table>；收到的事件转发给本地总线上的订阅者
type Feed struct {
	client *redis.Client
	prefix string
	local  *realtime.Bus
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewFeed 订阅 <prefix>* 并开始转发，订阅确认后才返回
func NewFeed(ctx context.Context, client *redis.Client, prefix string) (*Feed, error) {
	pubsub := client.PSubscribe(ctx, prefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("订阅变更频道失败: %w", err)
	}

	f := &Feed{
		client: client,
		prefix: prefix,
		local:  realtime.NewBus(),
		pubsub: pubsub,
		done:   make(chan struct{}),
	}
	go f.relay(pubsub.Channel())
	return f, nil
}

// Publish 把事件发布到对应表的频道
func (f *Feed) Publish(ctx context.Context, event realtime.ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	if err := f.client.Publish(ctx, f.prefix+string(event.Table), data).Err(); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}

// Subscribe 在本实例上订阅某张表的变更
func (f *Feed) Subscribe(table realtime.Table, filter realtime.Filter, handler realtime.Handler) (realtime.Subscription, error) {
	return f.local.Subscribe(table, filter, handler)
}

// Close 停止转发
func (f *Feed) Close() error {
	err := f.pubsub.Close()
	<-f.done
	return err
}

func (f *Feed) relay(ch <-chan *redis.Message) {
	defer close(f.done)
	for msg := range ch {
		var event realtime.ChangeEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			logger.Warn("丢弃无法解析的变更事件", zap.String("channel", msg.Channel), zap.Error(err))
			continue
		}
		if event.Table == "" {
			event.Table = realtime.Table(strings.TrimPrefix(msg.Channel, f.prefix))
		}
		_ = f.local.Publish(context.Background(), event)
	}
}

package broker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/paiban/rollingstock/pkg/logger"
)

// RedisBroker 基于 Redis 发布订阅的事件分发，多个实例共享事件
type RedisBroker struct {
	rdb    *redis.Client
	prefix string

	mu   sync.Mutex
	subs map[chan Event]*redis.PubSub
}

var _ Broker = (*RedisBroker)(nil)

// NewRedisBroker 创建 Redis 分发器，prefix 为频道前缀
func NewRedisBroker(rdb *redis.Client, prefix string) *RedisBroker {
	return &RedisBroker{
		rdb:    rdb,
		prefix: prefix,
		subs:   make(map[chan Event]*redis.PubSub),
	}
}

// Subscribe 订阅 key 的事件
func (b *RedisBroker) Subscribe(key string) chan Event {
	ch := make(chan Event, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.chanName(key))
	// 等待订阅确认
	if _, err := ps.Receive(ctx); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("Redis订阅失败")
	}

	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()

	go func() {
		for msg := range ps.Channel() {
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				logger.Warn().Err(err).Msg("无法解析Redis事件")
				continue
			}
			if !b.deliver(ch, evt) {
				return
			}
		}
	}()
	return ch
}

// deliver 在锁内投递，避免与 Unsubscribe 关闭通道竞争
func (b *RedisBroker) deliver(ch chan Event, evt Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; !ok {
		return false
	}
	select {
	case ch <- evt:
	default:
	}
	return true
}

// Unsubscribe 取消订阅并关闭通道
func (b *RedisBroker) Unsubscribe(key string, ch chan Event) {
	b.mu.Lock()
	ps, ok := b.subs[ch]
	if ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

// Publish 发布事件
func (b *RedisBroker) Publish(key string, evt Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(evt)
	if err != nil {
		logger.Warn().Err(err).Msg("无法序列化事件")
		return
	}
	if err := b.rdb.Publish(ctx, b.chanName(key), data).Err(); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("Redis发布失败")
	}
}

// Close 关闭全部订阅
func (b *RedisBroker) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[chan Event]*redis.PubSub)
	for ch := range subs {
		close(ch)
	}
	b.mu.Unlock()
	for _, ps := range subs {
		_ = ps.Close()
	}
	return nil
}

func (b *RedisBroker) chanName(key string) string { return b.prefix + ":" + key }

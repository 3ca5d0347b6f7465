package broker

import (
	"sync"
	"sync/atomic"

	"github.com/paiban/rollingstock/pkg/logger"
)

// DefaultPublishBuffer 异步发布默认队列长度
const DefaultPublishBuffer = 256

type queued struct {
	key string
	evt Event
}

// AsyncBroker 在后台协程中转发 Publish，调用方不等待底层分发
// 队列满或关闭后发布的事件被丢弃，订阅直接交给底层分发器
type AsyncBroker struct {
	inner Broker
	queue chan queued
	done  chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

var _ Broker = (*AsyncBroker)(nil)

// NewAsyncBroker 包装 inner，buffer 不大于 0 时使用默认长度
func NewAsyncBroker(inner Broker, buffer int) *AsyncBroker {
	if buffer <= 0 {
		buffer = DefaultPublishBuffer
	}
	b := &AsyncBroker{
		inner: inner,
		queue: make(chan queued, buffer),
		done:  make(chan struct{}),
	}
	go b.drain()
	return b
}

func (b *AsyncBroker) drain() {
	defer close(b.done)
	for q := range b.queue {
		b.inner.Publish(q.key, q.evt)
	}
}

// Subscribe 订阅 key 的事件
func (b *AsyncBroker) Subscribe(key string) chan Event {
	return b.inner.Subscribe(key)
}

// Unsubscribe 取消订阅
func (b *AsyncBroker) Unsubscribe(key string, ch chan Event) {
	b.inner.Unsubscribe(key, ch)
}

// Publish 事件入队后立即返回
func (b *AsyncBroker) Publish(key string, evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.queue <- queued{key: key, evt: evt}:
	default:
		if n := b.dropped.Add(1); n == 1 || n%100 == 0 {
			logger.Warn().Str("key", key).Int64("dropped", n).Msg("事件发布队列已满，丢弃事件")
		}
	}
}

// Dropped 因队列满被丢弃的事件数
func (b *AsyncBroker) Dropped() int64 {
	return b.dropped.Load()
}

// Close 发送完已入队的事件后关闭底层分发器
func (b *AsyncBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()

	<-b.done
	return b.inner.Close()
}

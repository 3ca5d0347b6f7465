package broker

import (
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// gatedBroker 在 gate 关闭前阻塞每次发布
type gatedBroker struct {
	*MemoryBroker
	gate chan struct{}

	mu        sync.Mutex
	published []Event
	closed    bool
}

func newGatedBroker() *gatedBroker {
	return &gatedBroker{MemoryBroker: NewMemoryBroker(), gate: make(chan struct{})}
}

func (b *gatedBroker) Publish(key string, evt Event) {
	<-b.gate
	b.mu.Lock()
	b.published = append(b.published, evt)
	b.mu.Unlock()
	b.MemoryBroker.Publish(key, evt)
}

func (b *gatedBroker) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return b.MemoryBroker.Close()
}

func (b *gatedBroker) snapshot() ([]Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.published...), b.closed
}

func TestAsyncBroker_PublishDoesNotWait(t *testing.T) {
	inner := newGatedBroker()
	b := NewAsyncBroker(inner, 16)
	ch := b.Subscribe("demo")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			b.Publish("demo", Event{Type: EventBestSolution, Assigned: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("底层分发阻塞时 Publish 不应等待")
	}

	close(inner.gate)
	for i := 0; i < 5; i++ {
		if got := receive(t, ch); got.Assigned != i {
			t.Fatalf("事件 %d: assigned = %d", i, got.Assigned)
		}
	}

	if err := b.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if _, closed := inner.snapshot(); !closed {
		t.Error("Close() 应关闭底层分发器")
	}
}

func TestAsyncBroker_DropsWhenQueueFull(t *testing.T) {
	inner := newGatedBroker()
	b := NewAsyncBroker(inner, 1)

	for i := 0; i < 10; i++ {
		b.Publish("demo", Event{Type: EventBestSolution})
	}
	// 至多一个事件在转发中，一个在队列中
	if b.Dropped() < 8 {
		t.Errorf("dropped = %d", b.Dropped())
	}

	close(inner.gate)
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	published, _ := inner.snapshot()
	if int64(len(published))+b.Dropped() != 10 {
		t.Errorf("published = %d, dropped = %d", len(published), b.Dropped())
	}

	b.Publish("demo", Event{Type: EventBestSolution})
	if err := b.Close(); err != nil {
		t.Errorf("重复 Close() error = %v", err)
	}
}

func TestAsyncBroker_OverRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	b := NewAsyncBroker(NewRedisBroker(rdb, "rolling-stock-schedule"), 0)
	defer b.Close()
	ch := b.Subscribe("demo")

	b.Publish("demo", Event{Type: EventSolvingEnded, RunID: "run-2", Reason: "stopped"})

	got := receive(t, ch)
	if got.Type != EventSolvingEnded || got.RunID != "run-2" || got.Reason != "stopped" {
		t.Errorf("got = %+v", got)
	}
}

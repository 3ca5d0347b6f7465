package broker

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/paiban/rollingstock/pkg/model"
	"github.com/paiban/rollingstock/pkg/scheduler/score"
)

func receive(t *testing.T, ch chan Event) Event {
	t.Helper()
	select {
	case evt, ok := <-ch:
		if !ok {
			t.Fatal("通道已关闭")
		}
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("等待事件超时")
	}
	return Event{}
}

func assertClosed(t *testing.T, ch chan Event) {
	t.Helper()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("取消订阅后通道应关闭")
		}
	case <-time.After(time.Second):
		t.Fatal("通道未关闭")
	}
}

func TestMemoryBroker_PublishSubscribe(t *testing.T) {
	b := NewMemoryBroker()
	ch := b.Subscribe("demo")
	other := b.Subscribe("other")

	b.Publish("demo", Event{Type: EventBestSolution, Score: score.Of(0, 12)})

	got := receive(t, ch)
	if got.Type != EventBestSolution || got.Score != score.Of(0, 12) {
		t.Errorf("got = %+v", got)
	}
	select {
	case evt := <-other:
		t.Errorf("其他 key 不应收到事件: %+v", evt)
	default:
	}

	b.Unsubscribe("demo", ch)
	assertClosed(t, ch)
	b.Unsubscribe("demo", ch) // 重复取消不应 panic

	if b.Subscribers("demo") != 0 || b.Subscribers("other") != 1 {
		t.Errorf("subscribers = %d/%d", b.Subscribers("demo"), b.Subscribers("other"))
	}
	b.Close()
	assertClosed(t, other)
}

func TestMemoryBroker_DropsWhenFull(t *testing.T) {
	b := NewMemoryBroker()
	ch := b.Subscribe("demo")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish("demo", Event{Type: EventBestSolution})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("慢订阅者不应阻塞发布")
	}
	if len(ch) != cap(ch) {
		t.Errorf("buffered = %d", len(ch))
	}
}

func TestRedisBroker_PublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	b := NewRedisBroker(rdb, "rolling-stock-schedule")
	ch := b.Subscribe("demo")

	best := &model.Schedule{
		Departures: []model.Departure{{ID: 1, Train: model.AssignTrain(2)}, {ID: 2}},
		Score:      score.Of(-1, 40),
	}
	b.Publish("demo", NewBestSolutionEvent("demo", "run-1", best, false))

	got := receive(t, ch)
	if got.Type != EventBestSolution || got.RunID != "run-1" {
		t.Errorf("got = %+v", got)
	}
	if got.Score != score.Of(-1, 40) || got.Assigned != 1 || got.Departures != 2 || got.Feasible {
		t.Errorf("摘要不正确: %+v", got)
	}
	if got.Schedule != nil {
		t.Error("未要求时不应携带方案")
	}

	b.Unsubscribe("demo", ch)
	assertClosed(t, ch)
	if err := b.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNewBestSolutionEvent_WithSchedule(t *testing.T) {
	best := &model.Schedule{Departures: []model.Departure{{ID: 1, Train: model.AssignTrain(1)}}}
	evt := NewBestSolutionEvent("k", "r", best, true)
	if evt.Schedule != best || !evt.Feasible {
		t.Errorf("evt = %+v", evt)
	}
}

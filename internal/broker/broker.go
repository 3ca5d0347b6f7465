// Package broker 分发求解事件
package broker

import (
	"sync"
	"time"

	"github.com/paiban/rollingstock/pkg/model"
	"github.com/paiban/rollingstock/pkg/scheduler/score"
)

// 事件类型
const (
	EventSolvingStarted = "solving_started"
	EventBestSolution   = "best_solution"
	EventSolvingEnded   = "solving_ended"
)

// Event 求解事件
type Event struct {
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	RunID      string          `json:"run_id,omitempty"`
	Score      score.Score     `json:"score"`
	Feasible   bool            `json:"feasible"`
	Assigned   int             `json:"assigned"`
	Departures int             `json:"departures"`
	Reason     string          `json:"reason,omitempty"`
	Time       time.Time       `json:"time"`
	Schedule   *model.Schedule `json:"schedule,omitempty"`
}

// NewBestSolutionEvent 由最优快照创建事件
func NewBestSolutionEvent(key, runID string, best *model.Schedule, withSchedule bool) Event {
	evt := Event{
		Type:       EventBestSolution,
		Key:        key,
		RunID:      runID,
		Score:      best.Score,
		Feasible:   best.Score.IsFeasible() && best.AssignedCount() == len(best.Departures),
		Assigned:   best.AssignedCount(),
		Departures: len(best.Departures),
		Time:       time.Now(),
	}
	if withSchedule {
		evt.Schedule = best
	}
	return evt
}

// Broker 事件分发接口
type Broker interface {
	Subscribe(key string) chan Event
	Unsubscribe(key string, ch chan Event)
	Publish(key string, evt Event)
	Close() error
}

// MemoryBroker 进程内事件分发
// 订阅者消费过慢时丢弃事件
type MemoryBroker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

var _ Broker = (*MemoryBroker)(nil)

// NewMemoryBroker 创建进程内分发器
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: map[string]map[chan Event]struct{}{}}
}

// Subscribe 订阅 key 的事件
func (b *MemoryBroker) Subscribe(key string) chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	if b.subs[key] == nil {
		b.subs[key] = map[chan Event]struct{}{}
	}
	b.subs[key][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe 取消订阅并关闭通道
func (b *MemoryBroker) Unsubscribe(key string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[key]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, key)
	}
	close(ch)
}

// Publish 发布事件
func (b *MemoryBroker) Publish(key string, evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[key] {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribers 当前订阅数
func (b *MemoryBroker) Subscribers(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[key])
}

// Close 关闭全部订阅
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, m := range b.subs {
		for ch := range m {
			close(ch)
		}
		delete(b.subs, key)
	}
	return nil
}

// Package session 管理求解会话的生命周期
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/paiban/rollingstock/pkg/errors"
	"github.com/paiban/rollingstock/pkg/logger"
	"github.com/paiban/rollingstock/pkg/model"
	"github.com/paiban/rollingstock/pkg/scheduler/optimizer"
	"github.com/paiban/rollingstock/pkg/scheduler/solver"
)

// Status 会话状态
type Status int32

const (
	StatusNotStarted Status = iota
	StatusSolving
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusSolving:
		return "solving"
	case StatusTerminated:
		return "terminated"
	default:
		return "not_started"
	}
}

// SolverStatus 映射为方案上的求解状态标识
func (s Status) SolverStatus() model.SolverStatus {
	if s == StatusSolving {
		return model.SolverSolvingActive
	}
	return model.SolverNotSolving
}

// ReasonFailed 求解过程异常终止
const ReasonFailed optimizer.TerminationReason = "failed"

// SolverFactory 为每次运行创建新的求解器
type SolverFactory func() *solver.Solver

// BestSolutionListener 发现更优解时调用
type BestSolutionListener func(key string, best *model.Schedule)

// TerminatedListener 运行结束时调用
type TerminatedListener func(key string, h *Handle, result *solver.Result)

// Handle 一次求解运行
type Handle struct {
	ID        string
	Key       string
	StartedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
	status atomic.Int32
	best   atomic.Pointer[model.Schedule]
	result atomic.Pointer[solver.Result]
}

// Stop 请求停止，可重复调用
func (h *Handle) Stop() {
	h.cancel()
}

// Done 运行结束时关闭
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait 等待运行结束或 ctx 结束
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Result 最终结果，运行结束前为 nil
func (h *Handle) Result() *solver.Result {
	return h.result.Load()
}

// Status 当前状态
func (h *Handle) Status() Status {
	return Status(h.status.Load())
}

// BestSolution 最新的最优快照，首次改进前为原始问题
func (h *Handle) BestSolution() *model.Schedule {
	best := h.best.Load()
	if best == nil {
		return nil
	}
	return best.WithStatus(h.Status().SolverStatus())
}

// Manager 求解会话管理器
// 每个 key 同时最多一个活动运行
type Manager struct {
	newSolver   SolverFactory
	stopTimeout time.Duration
	logger      *logger.SolverLogger

	startMu sync.Mutex // 串行化 Start，保证先停后启
	mu      sync.RWMutex
	handles map[string]*Handle

	listenerMu    sync.RWMutex
	bestListeners []BestSolutionListener
	termListeners []TerminatedListener
}

// NewManager 创建会话管理器
func NewManager(newSolver SolverFactory, stopTimeout time.Duration) *Manager {
	if stopTimeout <= 0 {
		stopTimeout = 5 * time.Second
	}
	return &Manager{
		newSolver:   newSolver,
		stopTimeout: stopTimeout,
		logger:      logger.NewSolverLogger(),
		handles:     make(map[string]*Handle),
	}
}

// OnBestSolution 注册更优解监听器
func (m *Manager) OnBestSolution(fn BestSolutionListener) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	m.bestListeners = append(m.bestListeners, fn)
}

// OnTerminated 注册运行结束监听器
func (m *Manager) OnTerminated(fn TerminatedListener) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	m.termListeners = append(m.termListeners, fn)
}

// Start 校验问题，停止 key 上的活动运行并等待其确认，然后在新协程中开始求解
// 问题数据不合法时不会停止已有运行
func (m *Manager) Start(key string, problem *model.Schedule) (*Handle, error) {
	if err := problem.Validate(); err != nil {
		return nil, err
	}

	m.startMu.Lock()
	defer m.startMu.Unlock()

	if prev := m.Handle(key); prev != nil {
		prev.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), m.stopTimeout)
		err := prev.Wait(ctx)
		cancel()
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeSolverBusy, "求解器仍在运行，无法在限定时间内停止").
				WithField("run_id", prev.ID)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		ID:        uuid.New().String(),
		Key:       key,
		StartedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	h.status.Store(int32(StatusSolving))

	s := m.newSolver()
	working := problem.Clone()
	h.best.Store(s.Rescore(problem, model.SolverSolvingScheduled))

	m.mu.Lock()
	m.handles[key] = h
	m.mu.Unlock()

	go m.run(ctx, h, s, working)
	return h, nil
}

// run 在独立协程中执行求解
func (m *Manager) run(ctx context.Context, h *Handle, s *solver.Solver, working *model.Schedule) {
	log := m.logger.WithRun(h.ID)
	var result *solver.Result

	defer func() {
		if r := recover(); r != nil {
			log.ConstraintViolation("panic", fmt.Sprint(r))
			result = h.failed()
		}
		h.result.Store(result)
		h.status.Store(int32(StatusTerminated))
		h.cancel()
		close(h.done)
		m.notifyTerminated(h, result)
	}()

	r, err := s.WithLogger(log).Solve(ctx, working, func(best *model.Schedule) {
		h.best.Store(best)
		m.notifyBest(h.Key, best)
	})
	if err != nil {
		log.ConstraintViolation("solver", err.Error())
		result = h.failed()
		return
	}
	h.best.Store(r.Best)
	result = r
}

// failed 以当前最优快照构造异常终止的结果
func (h *Handle) failed() *solver.Result {
	best := h.best.Load()
	r := &solver.Result{Best: best, Reason: ReasonFailed}
	if best != nil {
		r.Score = best.Score
		r.Feasible = best.Feasible()
	}
	return r
}

func (m *Manager) notifyBest(key string, best *model.Schedule) {
	m.listenerMu.RLock()
	listeners := m.bestListeners
	m.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(key, best)
	}
}

func (m *Manager) notifyTerminated(h *Handle, result *solver.Result) {
	m.listenerMu.RLock()
	listeners := m.termListeners
	m.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(h.Key, h, result)
	}
}

// Handle 获取 key 上最近一次运行
func (m *Manager) Handle(key string) *Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handles[key]
}

// Stop 请求停止 key 上的运行，没有运行时返回 false
func (m *Manager) Stop(key string) bool {
	h := m.Handle(key)
	if h == nil {
		return false
	}
	h.Stop()
	return true
}

// BestSolution key 上的最优快照，没有运行时为 nil
func (m *Manager) BestSolution(key string) *model.Schedule {
	h := m.Handle(key)
	if h == nil {
		return nil
	}
	return h.BestSolution()
}

// Status key 上的会话状态
func (m *Manager) Status(key string) Status {
	h := m.Handle(key)
	if h == nil {
		return StatusNotStarted
	}
	return h.Status()
}

// Active 正在求解的运行数
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, h := range m.handles {
		if h.Status() == StatusSolving {
			n++
		}
	}
	return n
}

// Shutdown 停止全部运行并等待结束
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	handles := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	m.mu.RUnlock()

	for _, h := range handles {
		h.Stop()
	}
	for _, h := range handles {
		if err := h.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

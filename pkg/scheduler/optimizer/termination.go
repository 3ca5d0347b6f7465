package optimizer

import (
	"context"
	"time"
)

// TerminationReason 终止原因
type TerminationReason string

const (
	ReasonNone           TerminationReason = ""
	ReasonTimeLimit      TerminationReason = "time_limit"
	ReasonIterationLimit TerminationReason = "iteration_limit"
	ReasonStagnation     TerminationReason = "stagnation"
	ReasonCancelled      TerminationReason = "cancelled"
	ReasonNoMoves        TerminationReason = "no_moves"
)

// Termination 终止条件，任一满足即停止
type Termination struct {
	TimeLimit       time.Duration `yaml:"time_limit" json:"time_limit"`             // 0 表示不限
	IterationLimit  int64         `yaml:"iteration_limit" json:"iteration_limit"`   // 负数不限，0 立即终止
	StagnationLimit int64         `yaml:"stagnation_limit" json:"stagnation_limit"` // 连续未改进的步数，0 表示不限
}

// DefaultTermination 默认终止条件
func DefaultTermination() Termination {
	return Termination{
		TimeLimit:       30 * time.Second,
		IterationLimit:  -1,
		StagnationLimit: 20000,
	}
}

// progress 搜索进度
type progress struct {
	start        time.Time
	steps        int64
	sinceImprove int64
}

// check 在每一步之后调用
func (t Termination) check(ctx context.Context, p *progress) TerminationReason {
	if ctx.Err() != nil {
		return ReasonCancelled
	}
	if t.IterationLimit >= 0 && p.steps >= t.IterationLimit {
		return ReasonIterationLimit
	}
	if t.TimeLimit > 0 && time.Since(p.start) >= t.TimeLimit {
		return ReasonTimeLimit
	}
	if t.StagnationLimit > 0 && p.sinceImprove >= t.StagnationLimit {
		return ReasonStagnation
	}
	return ReasonNone
}

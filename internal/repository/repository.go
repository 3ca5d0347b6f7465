// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Repository 通用仓储接口
type Repository[T any] interface {
	Create(ctx context.Context, entity *T) error
	GetByID(ctx context.Context, id uuid.UUID) (*T, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter) ([]*T, int, error)
}

// ListFilter 列表查询过滤器
type ListFilter struct {
	ProblemKey   string    `json:"problem_key,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	FeasibleOnly bool      `json:"feasible_only,omitempty"`
	Since        time.Time `json:"since,omitempty"`
	Offset       int       `json:"offset"`
	Limit        int       `json:"limit"`
	OrderBy      string    `json:"order_by,omitempty"`
	OrderDir     string    `json:"order_dir,omitempty"` // asc/desc
}

// DefaultListFilter 返回默认过滤器
func DefaultListFilter() ListFilter {
	return ListFilter{
		Offset:   0,
		Limit:    20,
		OrderBy:  "started_at",
		OrderDir: "desc",
	}
}

// WithLimit 设置限制
func (f ListFilter) WithLimit(limit int) ListFilter {
	f.Limit = limit
	return f
}

// WithOffset 设置偏移
func (f ListFilter) WithOffset(offset int) ListFilter {
	f.Offset = offset
	return f
}

// WithProblemKey 设置问题过滤
func (f ListFilter) WithProblemKey(key string) ListFilter {
	f.ProblemKey = key
	return f
}

// WithReason 设置终止原因过滤
func (f ListFilter) WithReason(reason string) ListFilter {
	f.Reason = reason
	return f
}

// DB 数据库接口
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Scanner 行扫描接口
type Scanner interface {
	Scan(dest ...interface{}) error
}

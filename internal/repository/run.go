package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/paiban/rollingstock/pkg/errors"
	"github.com/paiban/rollingstock/pkg/model"
	"github.com/paiban/rollingstock/pkg/scheduler/score"
	"github.com/paiban/rollingstock/pkg/scheduler/solver"
)

// Run 一次求解运行的归档记录
type Run struct {
	ID         uuid.UUID       `json:"id"`
	ProblemKey string          `json:"problem_key"`
	StartedAt  time.Time       `json:"started_at"`
	EndedAt    time.Time       `json:"ended_at"`
	Reason     string          `json:"reason"`
	Score      score.Score     `json:"score"`
	Feasible   bool            `json:"feasible"`
	Steps      int64           `json:"steps"`
	Accepted   int64           `json:"accepted"`
	Departures int             `json:"departures"`
	Assigned   int             `json:"assigned"`
	Solution   *model.Schedule `json:"solution,omitempty"` // 只在 GetByID 时加载
}

// NewRun 由求解结果创建归档记录
func NewRun(id uuid.UUID, problemKey string, startedAt time.Time, result *solver.Result) *Run {
	run := &Run{
		ID:         id,
		ProblemKey: problemKey,
		StartedAt:  startedAt,
		EndedAt:    time.Now(),
		Reason:     string(result.Reason),
		Score:      result.Score,
		Feasible:   result.Feasible,
		Steps:      result.Steps,
		Accepted:   result.Accepted,
		Solution:   result.Best,
	}
	if result.Best != nil {
		run.Departures = len(result.Best.Departures)
		run.Assigned = result.Best.AssignedCount()
	}
	return run
}

// Duration 运行时长
func (r *Run) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// RunRepository 运行归档仓储
type RunRepository struct {
	db DB
}

var _ Repository[Run] = (*RunRepository)(nil)

// NewRunRepository 创建运行归档仓储
func NewRunRepository(db DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, problem_key, started_at, ended_at, reason, hard_score, soft_score,
	feasible, steps, accepted, departures, assigned`

// Create 保存运行记录
func (r *RunRepository) Create(ctx context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	var solution sql.NullString
	if run.Solution != nil {
		data, err := json.Marshal(run.Solution)
		if err != nil {
			return fmt.Errorf("序列化方案失败: %w", err)
		}
		solution = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO solve_runs (` + runColumns + `, solution)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID.String(), run.ProblemKey, formatTime(run.StartedAt), formatTime(run.EndedAt), run.Reason,
		run.Score.Hard, run.Score.Soft, run.Feasible, run.Steps, run.Accepted,
		run.Departures, run.Assigned, solution,
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "保存运行记录失败")
	}

	return nil
}

// GetByID 根据ID获取运行记录，包括方案
func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*Run, error) {
	query := `SELECT ` + runColumns + `, solution FROM solve_runs WHERE id = ?`

	var solution sql.NullString
	run, err := scanRun(r.db.QueryRowContext(ctx, query, id.String()), &solution)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("run", id.String())
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询运行记录失败")
	}

	if solution.Valid {
		run.Solution = &model.Schedule{}
		if err := json.Unmarshal([]byte(solution.String), run.Solution); err != nil {
			return nil, fmt.Errorf("解析方案失败: %w", err)
		}
	}
	return run, nil
}

// Delete 删除运行记录
func (r *RunRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM solve_runs WHERE id = ?", id.String())
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "删除运行记录失败")
	}
	return nil
}

// List 列出运行记录，不加载方案
func (r *RunRepository) List(ctx context.Context, filter ListFilter) ([]*Run, int, error) {
	var conditions []string
	var args []interface{}

	if filter.ProblemKey != "" {
		conditions = append(conditions, "problem_key = ?")
		args = append(args, filter.ProblemKey)
	}
	if filter.Reason != "" {
		conditions = append(conditions, "reason = ?")
		args = append(args, filter.Reason)
	}
	if filter.FeasibleOnly {
		conditions = append(conditions, "feasible = ?")
		args = append(args, true)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "started_at >= ?")
		args = append(args, formatTime(filter.Since))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// 计数
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM solve_runs %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.CodeDatabaseError, "统计运行数量失败")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListFilter().Limit
	}

	// 查询
	query := fmt.Sprintf(`
		SELECT %s
		FROM solve_runs %s
		ORDER BY %s %s
		LIMIT ? OFFSET ?
	`, runColumns, whereClause, orderColumn(filter.OrderBy), orderDirection(filter.OrderDir))

	args = append(args, limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询运行列表失败")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return runs, total, nil
}

// scanRun 扫描一行，extra 追加在固定列之后
func scanRun(s Scanner, extra ...interface{}) (*Run, error) {
	var (
		run            Run
		id             string
		started, ended string
	)
	dest := []interface{}{
		&id, &run.ProblemKey, &started, &ended, &run.Reason, &run.Score.Hard, &run.Score.Soft,
		&run.Feasible, &run.Steps, &run.Accepted, &run.Departures, &run.Assigned,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	var err error
	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("无效的运行ID %q: %w", id, err)
	}
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("无效的开始时间: %w", err)
	}
	if run.EndedAt, err = time.Parse(time.RFC3339Nano, ended); err != nil {
		return nil, fmt.Errorf("无效的结束时间: %w", err)
	}
	return &run, nil
}

// formatTime 以 UTC RFC3339 文本存储，字典序与时间顺序一致
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

func orderColumn(col string) string {
	switch col {
	case "started_at", "ended_at", "hard_score", "soft_score", "steps":
		return col
	default:
		return "started_at"
	}
}

func orderDirection(dir string) string {
	if strings.EqualFold(dir, "asc") {
		return "ASC"
	}
	return "DESC"
}

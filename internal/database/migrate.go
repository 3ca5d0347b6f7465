package database

import (
	"context"
	"fmt"
)

// migrations 按顺序执行，语句对 PostgreSQL 和 SQLite 通用
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS solve_runs (
		id           TEXT PRIMARY KEY,
		problem_key  TEXT NOT NULL,
		started_at   TEXT NOT NULL,
		ended_at     TEXT NOT NULL,
		reason       TEXT NOT NULL,
		hard_score   BIGINT NOT NULL,
		soft_score   BIGINT NOT NULL,
		feasible     BOOLEAN NOT NULL,
		steps        BIGINT NOT NULL,
		accepted     BIGINT NOT NULL,
		departures   INTEGER NOT NULL,
		assigned     INTEGER NOT NULL,
		solution     TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_solve_runs_started ON solve_runs (started_at)`,
}

// Migrate 创建运行归档所需的表
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := db.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("执行迁移 %d 失败: %w", i+1, err)
		}
	}
	return nil
}

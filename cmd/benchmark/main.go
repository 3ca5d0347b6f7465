// 车辆调度求解基准测试
// 在不同规模的数据集上比较各接受准则的求解效果

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/paiban/rollingstock/internal/config"
	"github.com/paiban/rollingstock/pkg/demo"
	"github.com/paiban/rollingstock/pkg/logger"
	"github.com/paiban/rollingstock/pkg/scheduler/constraint/builtin"
	"github.com/paiban/rollingstock/pkg/scheduler/optimizer"
	"github.com/paiban/rollingstock/pkg/scheduler/score"
	"github.com/paiban/rollingstock/pkg/scheduler/solver"
)

// Case 一组基准测试参数
type Case struct {
	Dataset  demo.Dataset
	Acceptor string
}

// Row 一次基准测试结果
type Row struct {
	Dataset    demo.Dataset                `json:"dataset"`
	Acceptor   string                      `json:"acceptor"`
	Departures int                         `json:"departures"`
	Assigned   int                         `json:"assigned"`
	Score      score.Score                 `json:"score"`
	Feasible   bool                        `json:"feasible"`
	Steps      int64                       `json:"steps"`
	Accepted   int64                       `json:"accepted"`
	Reason     optimizer.TerminationReason `json:"reason"`
	Duration   time.Duration               `json:"duration"`
}

func main() {
	_ = godotenv.Load()

	timeLimit := flag.Duration("time", 30*time.Second, "每组测试的求解时间")
	datasets := flag.String("datasets", "small,default,large", "数据集，逗号分隔")
	acceptors := flag.String("acceptors", optimizer.AcceptorHillClimbing+","+optimizer.AcceptorSimulatedAnnealing, "接受准则，逗号分隔")
	seed := flag.Uint64("seed", demo.DefaultSeed, "演示数据种子")
	format := flag.String("format", "table", "输出格式 table/json")
	verbose := flag.Bool("v", false, "输出求解日志")
	flag.Parse()

	logCfg := logger.DefaultConfig()
	logCfg.Level = "warn"
	if *verbose {
		logCfg.Level = "info"
	}
	logger.Init(logCfg)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	cases, err := buildCases(*datasets, *acceptors)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	base := cfg.Solver.OptimizerConfig()
	base.Termination = optimizer.Termination{TimeLimit: *timeLimit, IterationLimit: -1}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("Rolling Stock Rostering - Benchmark")
	fmt.Printf("%d 组测试，每组 %s，预计 %s\n", len(cases), *timeLimit, time.Duration(len(cases))*(*timeLimit))
	fmt.Println(strings.Repeat("=", 80))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rows := run(ctx, demo.NewGenerator(*seed), cases, base, cfg.Solver.Weights, func(r Row) {
		fmt.Fprintf(os.Stderr, "完成 %s/%s: %s (%s)\n", r.Dataset, r.Acceptor, r.Score, r.Reason)
	})

	switch *format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(rows)
	default:
		printTable(os.Stdout, rows)
	}
}

// buildCases 解析数据集与接受准则的组合
func buildCases(datasets, acceptors string) ([]Case, error) {
	var cases []Case
	for _, name := range splitList(datasets) {
		ds, err := demo.ParseDataset(name)
		if err != nil {
			return nil, err
		}
		for _, acc := range splitList(acceptors) {
			if acc != optimizer.AcceptorHillClimbing && acc != optimizer.AcceptorSimulatedAnnealing {
				return nil, fmt.Errorf("未知的接受准则 %q", acc)
			}
			cases = append(cases, Case{Dataset: ds, Acceptor: acc})
		}
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("没有可运行的测试组合")
	}
	return cases, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// run 依次执行每组测试，中断后剩余组合不再运行
func run(ctx context.Context, gen *demo.Generator, cases []Case, base *optimizer.Config, weights builtin.Weights, done func(Row)) []Row {
	rows := make([]Row, 0, len(cases))
	for _, c := range cases {
		if ctx.Err() != nil {
			break
		}

		cfg := *base
		cfg.Acceptor = c.Acceptor
		problem := gen.Generate(c.Dataset)

		s := solver.NewSolver(builtin.NewDefaultManager(weights), &cfg)
		result, err := s.Solve(ctx, problem, nil)
		if err != nil {
			logger.Error().Err(err).Str("dataset", string(c.Dataset)).Msg("求解失败")
			continue
		}

		row := Row{
			Dataset:    c.Dataset,
			Acceptor:   c.Acceptor,
			Departures: len(problem.Departures),
			Score:      result.Score,
			Feasible:   result.Feasible,
			Steps:      result.Steps,
			Accepted:   result.Accepted,
			Reason:     result.Reason,
			Duration:   result.Duration,
		}
		if result.Best != nil {
			row.Assigned = result.Best.AssignedCount()
		}
		rows = append(rows, row)
		if done != nil {
			done(row)
		}
	}
	return rows
}

// printTable 输出对比表，每个数据集中得分最高的准则加 * 标记
func printTable(w io.Writer, rows []Row) {
	best := make(map[demo.Dataset]score.Score)
	for _, r := range rows {
		if cur, ok := best[r.Dataset]; !ok || r.Score.BetterThan(cur) {
			best[r.Dataset] = r.Score
		}
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATASET\tACCEPTOR\tDEPARTURES\tASSIGNED\tSCORE\tFEASIBLE\tSTEPS\tACCEPTED\tREASON\tDURATION\t")
	for _, r := range rows {
		mark := ""
		if r.Score == best[r.Dataset] {
			mark = " *"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s%s\t%t\t%d\t%d\t%s\t%s\t\n",
			r.Dataset, r.Acceptor, r.Departures, r.Assigned, r.Score, mark, r.Feasible,
			r.Steps, r.Accepted, r.Reason, r.Duration.Round(time.Millisecond))
	}
	tw.Flush()
}

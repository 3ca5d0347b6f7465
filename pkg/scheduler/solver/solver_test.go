package solver

import (
	"context"
	"testing"
	"time"

	"github.com/paiban/rollingstock/pkg/model"
	"github.com/paiban/rollingstock/pkg/scheduler/constraint"
	"github.com/paiban/rollingstock/pkg/scheduler/constraint/builtin"
	"github.com/paiban/rollingstock/pkg/scheduler/optimizer"
	"github.com/paiban/rollingstock/pkg/scheduler/score"
)

func createTestProblem(departures int, capacities ...int) *model.Schedule {
	s := &model.Schedule{
		Stations: []model.Station{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}},
		Routes:   []model.Route{{ID: 1, Name: "A-B", Stations: []model.StationID{1, 2}}},
	}
	for i, c := range capacities {
		s.Trains = append(s.Trains, model.Train{ID: model.TrainID(i + 1), Capacity: c})
	}
	for i := 0; i < departures; i++ {
		s.Departures = append(s.Departures, model.Departure{
			ID:         model.DepartureID(i + 1),
			StationID:  model.StationID(i%2 + 1),
			RouteID:    1,
			Time:       model.NewClockTime(7, 0).Add(time.Duration(i*20) * time.Minute),
			Passengers: 20 + (i*31)%90,
		})
	}
	return s
}

func newManager() *constraint.Manager {
	return builtin.NewDefaultManager(builtin.DefaultWeights())
}

func TestFirstFit_AvoidsHardViolations(t *testing.T) {
	s := createTestProblem(8, 200, 200, 200)
	dir := constraint.NewDirector(newManager(), s)

	result := NewFirstFit().Construct(context.Background(), dir)

	if !result.Feasible || result.Assigned != 8 || result.Unassigned != 0 {
		t.Errorf("result = %+v", result)
	}
	if dir.Score().Hard != 0 {
		t.Errorf("hard = %d", dir.Score().Hard)
	}
}

func TestFirstFit_AssignsOverCapacity(t *testing.T) {
	s := createTestProblem(1, 10)
	s.Departures[0].Passengers = 50
	dir := constraint.NewDirector(newManager(), s)

	result := NewFirstFit().Construct(context.Background(), dir)

	if result.Assigned != 1 || result.Unassigned != 0 {
		t.Errorf("result = %+v", result)
	}
	if !dir.TrainOf(0).Is(1) {
		t.Error("超载发车仍应分配给列车 1")
	}
	if dir.Score().Hard != -40 {
		t.Errorf("hard = %d, want -40", dir.Score().Hard)
	}
	if result.Feasible {
		t.Error("硬分为负时结果应不可行")
	}
}

func TestFirstFit_LeavesUnassignedWhenEveryTrainDoubleBooks(t *testing.T) {
	// 07:00 站 A 与 07:20 站 B 在同一列车上重复占用
	s := createTestProblem(2, 200)
	dir := constraint.NewDirector(newManager(), s)

	result := NewFirstFit().Construct(context.Background(), dir)

	if result.Feasible || result.Assigned != 1 || result.Unassigned != 1 {
		t.Errorf("result = %+v", result)
	}
	if !dir.TrainOf(0).Is(1) || dir.TrainOf(1).Valid {
		t.Errorf("分配 = %v %v", dir.TrainOf(0), dir.TrainOf(1))
	}
	if dir.Score().Hard != 0 {
		t.Errorf("hard = %d", dir.Score().Hard)
	}
}

func TestFirstFit_SkipsDoubleBookedTrain(t *testing.T) {
	s := createTestProblem(2, 200, 10)
	dir := constraint.NewDirector(newManager(), s)

	result := NewFirstFit().Construct(context.Background(), dir)

	// 列车 2 容量不足，但不重复占用，因此被选中
	if result.Assigned != 2 || !dir.TrainOf(1).Is(2) {
		t.Errorf("result = %+v, 发车 2 = %v", result, dir.TrainOf(1))
	}
	if result.Feasible {
		t.Error("超载应标记为不可行")
	}
}

func TestFirstFit_KeepsPreassigned(t *testing.T) {
	s := createTestProblem(3, 200, 200)
	s.Departures[1].Train = model.AssignTrain(2)
	dir := constraint.NewDirector(newManager(), s)

	result := NewFirstFit().Construct(context.Background(), dir)

	if result.Kept != 1 || !dir.TrainOf(1).Is(2) {
		t.Errorf("预分配应保留: %+v", result)
	}
}

func TestFirstFit_FleetOrder(t *testing.T) {
	s := createTestProblem(2, 200, 200)
	s.Departures[1].Time = s.Departures[0].Time.Add(10 * time.Minute) // 不同车站相隔10分钟
	dir := constraint.NewDirector(newManager(), s)

	NewFirstFit().Construct(context.Background(), dir)

	if !dir.TrainOf(0).Is(1) {
		t.Errorf("第一个发车应分配给车队第一列车, got %s", dir.TrainOf(0))
	}
	if !dir.TrainOf(1).Is(2) {
		t.Errorf("冲突的发车应分配给第二列车, got %s", dir.TrainOf(1))
	}
}

func TestSolver_ZeroIterationsReturnsConstruction(t *testing.T) {
	expected := createTestProblem(10, 60, 120)
	NewFirstFit().Construct(context.Background(), constraint.NewDirector(newManager(), expected))

	cfg := optimizer.DefaultConfig()
	cfg.Termination = optimizer.Termination{IterationLimit: 0}

	var published []*model.Schedule
	result, err := NewSolver(newManager(), cfg).Solve(context.Background(), createTestProblem(10, 60, 120),
		func(best *model.Schedule) { published = append(published, best) })
	if err != nil {
		t.Fatal(err)
	}

	if result.Steps != 0 || result.Reason != optimizer.ReasonIterationLimit {
		t.Errorf("steps = %d, reason = %s", result.Steps, result.Reason)
	}
	for i, d := range result.Best.Departures {
		if d.Train != expected.Departures[i].Train {
			t.Fatalf("发车 %d: %s != %s", i, d.Train, expected.Departures[i].Train)
		}
	}
	if len(published) != 1 {
		t.Errorf("构造结果应发布一次, got %d", len(published))
	}
	if result.Best.SolverStatus != model.SolverNotSolving {
		t.Errorf("status = %s", result.Best.SolverStatus)
	}
}

func TestSolver_Solve(t *testing.T) {
	cfg := optimizer.DefaultConfig()
	cfg.Termination = optimizer.Termination{IterationLimit: 1000, TimeLimit: 5 * time.Second}

	s := NewSolver(newManager(), cfg)
	if s.Phase() != PhaseUninitialized {
		t.Errorf("phase = %s", s.Phase())
	}

	var last *model.Schedule
	result, err := s.Solve(context.Background(), createTestProblem(16, 100, 150, 200), func(b *model.Schedule) { last = b })
	if err != nil {
		t.Fatal(err)
	}

	if s.Phase() != PhaseTerminated {
		t.Errorf("phase = %s", s.Phase())
	}
	if !result.Feasible {
		t.Errorf("应得到可行解, score = %v", result.Score)
	}
	if last == nil || result.Score.WorseThan(last.Score) {
		t.Error("最终结果不应劣于最后发布的解")
	}
	if result.ConstraintResult == nil || result.ConstraintResult.Score != result.Score {
		t.Error("约束评估应与最终得分一致")
	}

	if _, err := s.Solve(context.Background(), createTestProblem(1, 100), nil); err != ErrAlreadyUsed {
		t.Errorf("终止后再次求解应返回 ErrAlreadyUsed, got %v", err)
	}
}

func TestSolver_Islands(t *testing.T) {
	cfg := optimizer.DefaultConfig()
	cfg.Workers = 3
	cfg.Termination = optimizer.Termination{IterationLimit: 200}

	result, err := NewSolver(newManager(), cfg).Solve(context.Background(), createTestProblem(12, 100, 200), nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Steps != 600 {
		t.Errorf("steps = %d", result.Steps)
	}
}

func TestSolver_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := optimizer.DefaultConfig()
	cfg.Termination = optimizer.Termination{IterationLimit: -1}

	result, err := NewSolver(newManager(), cfg).Solve(ctx, createTestProblem(5, 100), nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Reason != optimizer.ReasonCancelled {
		t.Errorf("reason = %s", result.Reason)
	}
}

func TestPhase_String(t *testing.T) {
	if PhaseLocalSearch.String() != "local_search" || Phase(99).String() != "unknown" {
		t.Error("Phase.String() 错误")
	}
}

func TestSolver_Rescore(t *testing.T) {
	problem := createTestProblem(1, 10)
	problem.Departures[0].Passengers = 50
	problem.Departures[0].Train = model.AssignTrain(1)
	problem.Score = score.Of(5, 5)

	got := NewSolver(newManager(), nil).Rescore(problem, model.SolverSolvingScheduled)

	if got.Score.Hard != -40 {
		t.Errorf("hard = %d, want -40", got.Score.Hard)
	}
	if got.SolverStatus != model.SolverSolvingScheduled {
		t.Errorf("status = %s", got.SolverStatus)
	}
	if problem.Score != score.Of(5, 5) {
		t.Error("Rescore() 不应修改原问题")
	}
}

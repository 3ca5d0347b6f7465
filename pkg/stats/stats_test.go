package stats

import (
	"math"
	"strings"
	"testing"

	"github.com/paiban/rollingstock/pkg/model"
)

// createTestSchedule 两列车、五次发车，其中一次未分配
func createTestSchedule() *model.Schedule {
	return &model.Schedule{
		Stations: []model.Station{
			{ID: 1, Name: "A", Neighbors: []model.StationID{2}},
			{ID: 2, Name: "B", Neighbors: []model.StationID{1}},
			{ID: 3, Name: "C"},
		},
		Routes: []model.Route{{ID: 1, Name: "A-C", Stations: []model.StationID{1, 2, 3}}},
		Trains: []model.Train{{ID: 1, Capacity: 100}, {ID: 2, Capacity: 50}, {ID: 3, Capacity: 80}},
		Depots: []model.Depot{{ID: 1, TrainID: 1, StationID: 1}, {ID: 2, TrainID: 2, StationID: 1}},
		Departures: []model.Departure{
			{ID: 1, StationID: 1, RouteID: 1, Time: model.NewClockTime(8, 0), Passengers: 80, Train: model.AssignTrain(1)},
			{ID: 2, StationID: 2, RouteID: 1, Time: model.NewClockTime(9, 0), Passengers: 0, Train: model.AssignTrain(1)},
			{ID: 3, StationID: 1, RouteID: 1, Time: model.NewClockTime(8, 30), Passengers: 60, Train: model.AssignTrain(2)},
			{ID: 4, StationID: 3, RouteID: 1, Time: model.NewClockTime(10, 0), Passengers: 40, Train: model.AssignTrain(2)},
			{ID: 5, StationID: 3, RouteID: 1, Time: model.NewClockTime(10, 30), Passengers: 30},
		},
	}
}

func TestFleetAnalyzer_Analyze(t *testing.T) {
	metrics := NewFleetAnalyzer().Analyze(createTestSchedule())

	if len(metrics.TrainStats) != 3 {
		t.Fatalf("train stats = %d", len(metrics.TrainStats))
	}
	if metrics.IdleTrains != 1 {
		t.Errorf("idle = %d, expected 1", metrics.IdleTrains)
	}
	if metrics.EmptyRuns != 1 || metrics.Overloaded != 1 {
		t.Errorf("empty = %d, overloaded = %d", metrics.EmptyRuns, metrics.Overloaded)
	}
	if metrics.MaxDepartures != 2 || metrics.MinDepartures != 0 {
		t.Errorf("range = [%d, %d]", metrics.MinDepartures, metrics.MaxDepartures)
	}
	if metrics.DepartureGini <= 0 {
		t.Errorf("一列车闲置时基尼系数应大于 0, got %f", metrics.DepartureGini)
	}

	t1 := metrics.TrainStats[0]
	if t1.Departures != 2 || t1.Passengers != 80 || math.Abs(t1.LoadFactor-0.4) > 1e-9 {
		t.Errorf("train 1 = %+v", t1)
	}
	if t1.FirstDeparture != model.NewClockTime(8, 0) || t1.LastDeparture != model.NewClockTime(9, 0) {
		t.Errorf("train 1 时间 = %s - %s", t1.FirstDeparture, t1.LastDeparture)
	}
	// 最后一次发车在车辆段相邻车站
	if !t1.EndsAtDepot {
		t.Error("train 1 应视为回到车辆段")
	}

	t2 := metrics.TrainStats[1]
	if t2.EndsAtDepot {
		t.Error("train 2 最后停在 C，不应视为回到车辆段")
	}
	if t2.Overloaded != 1 {
		t.Errorf("train 2 overloaded = %d", t2.Overloaded)
	}

	// 存在超载时综合评分减半
	if metrics.OverallUtilizationScore <= 0 || metrics.OverallUtilizationScore > 50 {
		t.Errorf("score = %f", metrics.OverallUtilizationScore)
	}
}

func TestFleetAnalyzer_EmptyInput(t *testing.T) {
	metrics := NewFleetAnalyzer().Analyze(&model.Schedule{})
	if metrics.OverallUtilizationScore != 100 {
		t.Errorf("score = %f", metrics.OverallUtilizationScore)
	}

	s := createTestSchedule()
	for i := range s.Departures {
		s.Departures[i].Train = model.Unassigned()
	}
	metrics = NewFleetAnalyzer().Analyze(s)
	if metrics.IdleTrains != 3 || metrics.OverallUtilizationScore != 0 {
		t.Errorf("全部未分配: idle = %d, score = %f", metrics.IdleTrains, metrics.OverallUtilizationScore)
	}
}

func TestGini(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"完全均衡", []float64{3, 3, 3}, 0},
		{"全部为零", []float64{0, 0}, 0},
		{"完全集中", []float64{0, 0, 0, 4}, 0.75},
		{"空输入", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gini(tt.values); math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("gini() = %f, expected %f", got, tt.expected)
			}
		})
	}
}

func TestCoverageAnalyzer_Analyze(t *testing.T) {
	metrics := NewCoverageAnalyzer().Analyze(createTestSchedule())

	if metrics.TotalDepartures != 5 || metrics.AssignedDepartures != 4 {
		t.Errorf("departures = %d/%d", metrics.AssignedDepartures, metrics.TotalDepartures)
	}
	if metrics.OverallCoverage != 80 {
		t.Errorf("coverage = %f", metrics.OverallCoverage)
	}
	if metrics.TotalPassengers != 210 || metrics.ServedPassengers != 180 {
		t.Errorf("passengers = %d/%d", metrics.ServedPassengers, metrics.TotalPassengers)
	}
	if len(metrics.Uncovered) != 1 || metrics.Uncovered[0].DepartureID != 5 {
		t.Errorf("uncovered = %+v", metrics.Uncovered)
	}
	if metrics.RouteCoverage["A-C"] != 80 {
		t.Errorf("route coverage = %v", metrics.RouteCoverage)
	}

	hours := make([]int, 0, len(metrics.HourlyCoverage))
	for _, h := range metrics.HourlyCoverage {
		hours = append(hours, h.Hour)
	}
	if len(hours) != 3 || hours[0] != 8 || hours[1] != 9 || hours[2] != 10 {
		t.Errorf("hours = %v", hours)
	}

	// 10 点：乘客 70，只有列车 2 的 50 座
	if len(metrics.Shortfalls) != 1 || metrics.Shortfalls[0].Hour != 10 || metrics.Shortfalls[0].Shortage != 20 {
		t.Errorf("shortfalls = %+v", metrics.Shortfalls)
	}
}

func TestCoverageAnalyzer_EmptyInput(t *testing.T) {
	metrics := NewCoverageAnalyzer().Analyze(&model.Schedule{})
	if metrics.OverallCoverage != 100 || metrics.ServiceRate != 100 {
		t.Errorf("empty = %+v", metrics)
	}
}

func TestCoverageAnalyzer_Report(t *testing.T) {
	analyzer := NewCoverageAnalyzer()
	report := analyzer.GenerateCoverageReport(analyzer.Analyze(createTestSchedule()))

	for _, want := range []string{"覆盖率: 80.0%", "#5 10:30", "10:00-11:00"} {
		if !strings.Contains(report, want) {
			t.Errorf("报告缺少 %q:\n%s", want, report)
		}
	}
}

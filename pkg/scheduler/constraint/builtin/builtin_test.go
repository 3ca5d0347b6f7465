package builtin

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/paiban/rollingstock/pkg/model"
	"github.com/paiban/rollingstock/pkg/scheduler/constraint"
	"github.com/paiban/rollingstock/pkg/scheduler/score"
)

// createTestSchedule 两站一线路、两列车的测试方案
func createTestSchedule(departures ...model.Departure) *model.Schedule {
	return &model.Schedule{
		Stations: []model.Station{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}},
		Routes:   []model.Route{{ID: 1, Name: "A-B", Stations: []model.StationID{1, 2}}},
		Trains:   []model.Train{{ID: 1, Capacity: 100}, {ID: 2, Capacity: 300}},
		Depots: []model.Depot{
			{ID: 1, TrainID: 1, StationID: 1},
			{ID: 2, TrainID: 2, StationID: 2},
		},
		Departures: departures,
	}
}

func departure(id int64, station model.StationID, hh, mm, passengers int, train model.TrainRef) model.Departure {
	return model.Departure{
		ID:         model.DepartureID(id),
		StationID:  station,
		RouteID:    1,
		Time:       model.NewClockTime(hh, mm),
		Passengers: passengers,
		Train:      train,
	}
}

func scoreOf(t *testing.T, c constraint.Constraint, s *model.Schedule) score.Score {
	t.Helper()
	got, _ := c.Evaluate(constraint.NewContext(s))
	return got
}

func TestNoDoubleBookingConstraint(t *testing.T) {
	t1 := model.AssignTrain(1)
	t2 := model.AssignTrain(2)

	tests := []struct {
		name       string
		departures []model.Departure
		want       score.Score
	}{
		{
			name: "A-B 相隔10分钟同一列车，扣1硬分",
			departures: []model.Departure{
				departure(1, 1, 8, 0, 50, t1),
				departure(2, 2, 8, 10, 50, t1),
			},
			want: score.OfHard(-1),
		},
		{
			name: "同一车站间隔为0，不扣分",
			departures: []model.Departure{
				departure(1, 1, 8, 0, 50, t1),
				departure(2, 1, 8, 0, 50, t1),
			},
			want: score.Zero,
		},
		{
			name: "间隔恰好30分钟，不扣分",
			departures: []model.Departure{
				departure(1, 1, 8, 0, 50, t1),
				departure(2, 2, 8, 30, 50, t1),
			},
			want: score.Zero,
		},
		{
			name: "间隔29分钟，扣分",
			departures: []model.Departure{
				departure(1, 1, 8, 29, 50, t1),
				departure(2, 2, 8, 0, 50, t1),
			},
			want: score.OfHard(-1),
		},
		{
			name: "不同列车，不扣分",
			departures: []model.Departure{
				departure(1, 1, 8, 0, 50, t1),
				departure(2, 2, 8, 10, 50, t2),
			},
			want: score.Zero,
		},
		{
			name: "未分配，不扣分",
			departures: []model.Departure{
				departure(1, 1, 8, 0, 50, t1),
				departure(2, 2, 8, 10, 50, model.Unassigned()),
			},
			want: score.Zero,
		},
		{
			name: "三个发车两两冲突",
			departures: []model.Departure{
				departure(1, 1, 8, 0, 50, t1),
				departure(2, 2, 8, 10, 50, t1),
				departure(3, 1, 8, 20, 50, t1),
			},
			want: score.OfHard(-2),
		},
	}

	c := NewNoDoubleBookingConstraint(30 * time.Minute)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scoreOf(t, c, createTestSchedule(tt.departures...)); got != tt.want {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrainCapacityConstraint(t *testing.T) {
	tests := []struct {
		name       string
		passengers int
		want       score.Score
	}{
		{"等于容量，不扣分", 100, score.Zero},
		{"超出1人，扣1硬分", 101, score.OfHard(-1)},
		{"150人乘坐容量100的列车，扣50硬分", 150, score.OfHard(-50)},
		{"空车，不扣分", 0, score.Zero},
	}

	c := NewTrainCapacityConstraint()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createTestSchedule(departure(1, 1, 8, 0, tt.passengers, model.AssignTrain(1)))
			if got := scoreOf(t, c, s); got != tt.want {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("未分配，不扣分", func(t *testing.T) {
		s := createTestSchedule(departure(1, 1, 8, 0, 500, model.Unassigned()))
		if got := scoreOf(t, c, s); got != score.Zero {
			t.Errorf("score = %v", got)
		}
	})
}

func TestEmptyAndPickupMutuallyExclusive(t *testing.T) {
	empty := NewEmptyTrainConstraint(10)
	pickup := NewPassengerPickupConstraint(1)
	ctx := constraint.NewContext(createTestSchedule())

	for _, passengers := range []int{0, 1, 37, 250} {
		d := departure(1, 1, 8, 0, passengers, model.AssignTrain(1))
		e := empty.ScoreDeparture(ctx, &d)
		p := pickup.ScoreDeparture(ctx, &d)

		if !e.IsZero() && !p.IsZero() {
			t.Errorf("passengers=%d: 空车与载客同时生效", passengers)
		}
		if passengers == 0 && e != score.OfSoft(-10) {
			t.Errorf("空车得分 = %v", e)
		}
		if passengers > 0 && p != score.OfSoft(int64(passengers)) {
			t.Errorf("载客得分 = %v", p)
		}
	}
}

func TestUnassignedContributesZero(t *testing.T) {
	manager := NewDefaultManager(Weights{DepotReturn: 5, EmptyTrain: 10, PassengerPickup: 1})
	s := createTestSchedule(
		departure(1, 1, 8, 0, 0, model.Unassigned()),
		departure(2, 2, 8, 5, 999, model.Unassigned()),
	)

	result := manager.Evaluate(constraint.NewContext(s))
	for _, c := range result.Constraints {
		if !c.Score.IsZero() {
			t.Errorf("约束 %s 对未分配发车给出 %v", c.Name, c.Score)
		}
	}
}

func TestDepotReturnConstraint(t *testing.T) {
	t1 := model.AssignTrain(1)
	s := createTestSchedule(
		departure(1, 1, 8, 0, 10, t1),
		departure(2, 2, 9, 0, 10, t1), // 最后停在车站 2，车辆段在车站 1
	)

	if got := scoreOf(t, NewDepotReturnConstraint(0), s); got != score.Zero {
		t.Errorf("权重为0时不应扣分, got %v", got)
	}
	if got := scoreOf(t, NewDepotReturnConstraint(5), s); got != score.OfSoft(-5) {
		t.Errorf("score = %v", got)
	}

	s.Departures[1].Time = model.NewClockTime(7, 0) // 最后一个发车变为车站 1
	if got := scoreOf(t, NewDepotReturnConstraint(5), s); got != score.Zero {
		t.Errorf("回到车辆段不应扣分, got %v", got)
	}
}

func TestOnTimeArrivalConstraint(t *testing.T) {
	s := createTestSchedule(departure(1, 1, 8, 0, 10, model.AssignTrain(1)))
	if got := scoreOf(t, NewOnTimeArrivalConstraint(), s); got != score.Zero {
		t.Errorf("score = %v", got)
	}
}

func TestDefaultManager(t *testing.T) {
	manager := NewDefaultManager(DefaultWeights())

	if manager.Count() != 6 {
		t.Fatalf("Count() = %d", manager.Count())
	}
	if manager.GetAll()[0].Category() != constraint.CategoryHard {
		t.Error("硬约束应排在前面")
	}

	c, ok := manager.GetConstraint(constraint.TypeNoDoubleBooking).(*NoDoubleBookingConstraint)
	if !ok || c.Window() != 30*time.Minute {
		t.Error("默认窗口应为30分钟")
	}
}

func TestDefaultRules_TotalScore(t *testing.T) {
	t1 := model.AssignTrain(1)
	s := createTestSchedule(
		departure(1, 1, 8, 0, 150, t1), // 超载 50，载客 +150
		departure(2, 2, 8, 10, 0, t1),  // 与 1 冲突 -1，空车 -10
		departure(3, 1, 12, 0, 40, model.AssignTrain(2)),
	)

	manager := NewDefaultManager(DefaultWeights())
	result := manager.Evaluate(constraint.NewContext(s))

	want := score.Of(-51, 150-10+40)
	if result.Score != want {
		t.Errorf("Score = %v, want %v", result.Score, want)
	}
	if result.Feasible {
		t.Error("存在硬约束违反，不可行")
	}
	if len(result.HardViolations) != 2 {
		t.Errorf("HardViolations = %d", len(result.HardViolations))
	}
}

// setTrain 测试用的可撤销修改
type setTrain struct {
	index int
	train model.TrainRef
}

func (m setTrain) Do(d *constraint.Director) constraint.Move {
	undo := setTrain{index: m.index, train: d.TrainOf(m.index)}
	d.SetTrain(m.index, m.train)
	return undo
}

func TestDirector_DefaultRulesIncremental(t *testing.T) {
	manager := NewDefaultManager(Weights{DepotReturn: 3, EmptyTrain: 10, PassengerPickup: 1})
	s := createTestSchedule()
	for i := 0; i < 30; i++ {
		s.Departures = append(s.Departures,
			departure(int64(i+1), model.StationID(i%2+1), 6+i/3, (i%3)*20, (i*37)%160, model.Unassigned()))
	}

	dir := constraint.NewDirector(manager, s)
	rng := rand.New(rand.NewPCG(1, 2))
	refs := []model.TrainRef{model.Unassigned(), model.AssignTrain(1), model.AssignTrain(2)}

	for step := 0; step < 400; step++ {
		dir.Apply(setTrain{index: rng.IntN(dir.Len()), train: refs[rng.IntN(len(refs))]})
		if full := manager.Score(constraint.NewContext(s)); dir.Score() != full {
			t.Fatalf("step %d: 增量 %v != 完整 %v", step, dir.Score(), full)
		}
	}
}

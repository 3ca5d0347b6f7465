package validator

import (
	"testing"
	"time"

	"github.com/paiban/rollingstock/pkg/model"
)

func createTestSchedule(departures ...model.Departure) *model.Schedule {
	return &model.Schedule{
		Stations: []model.Station{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}},
		Routes:   []model.Route{{ID: 1, Name: "A-B", Stations: []model.StationID{1, 2}}},
		Trains:   []model.Train{{ID: 1, Capacity: 100}, {ID: 2, Capacity: 300}},
		Configuration: model.Configuration{
			MinHeadway: 5 * time.Minute,
			DwellTime:  2 * time.Minute,
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

func TestConflictDetector_DetectAll(t *testing.T) {
	t1 := model.AssignTrain(1)
	t2 := model.AssignTrain(2)

	tests := []struct {
		name       string
		departures []model.Departure
		expected   []ConflictType
	}{
		{
			name: "正常方案无冲突",
			departures: []model.Departure{
				departure(1, 1, 8, 0, 50, t1),
				departure(2, 2, 9, 0, 50, t1),
				departure(3, 1, 8, 30, 50, t2),
			},
		},
		{
			name: "不同车站间隔10分钟",
			departures: []model.Departure{
				departure(1, 1, 8, 0, 50, t1),
				departure(2, 2, 8, 10, 50, t1),
			},
			expected: []ConflictType{ConflictTurnaround},
		},
		{
			name: "同一车站间隔1分钟，同时违反最小间隔",
			departures: []model.Departure{
				departure(1, 1, 8, 0, 50, t1),
				departure(2, 1, 8, 1, 50, t1),
			},
			expected: []ConflictType{ConflictDwell, ConflictHeadway},
		},
		{
			name: "超载",
			departures: []model.Departure{
				departure(1, 1, 8, 0, 150, t1),
			},
			expected: []ConflictType{ConflictCapacity},
		},
		{
			name: "车队以外的列车",
			departures: []model.Departure{
				departure(1, 1, 8, 0, 50, model.AssignTrain(9)),
			},
			expected: []ConflictType{ConflictUnknownTrain},
		},
		{
			name: "未分配的发车只检查发车间隔",
			departures: []model.Departure{
				departure(1, 1, 8, 0, 500, model.Unassigned()),
				departure(2, 1, 8, 3, 500, model.Unassigned()),
			},
			expected: []ConflictType{ConflictHeadway},
		},
	}

	detector := NewConflictDetector(DefaultDetectorConfig())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conflicts := detector.DetectAll(createTestSchedule(tt.departures...))
			if len(conflicts) != len(tt.expected) {
				for _, c := range conflicts {
					t.Logf("Conflict: %s", c.Message)
				}
				t.Fatalf("conflicts = %d, expected %d", len(conflicts), len(tt.expected))
			}
			for i, c := range conflicts {
				if c.Type != tt.expected[i] {
					t.Errorf("[%d] type = %s, expected %s", i, c.Type, tt.expected[i])
				}
				if c.Message == "" {
					t.Errorf("[%d] 缺少说明", i)
				}
			}
		})
	}
}

func TestConflictDetector_MaxDuty(t *testing.T) {
	cfg := DefaultDetectorConfig()
	cfg.MaxDeparturesPerTrain = 1
	cfg.CheckHeadway = false

	s := createTestSchedule(
		departure(1, 1, 8, 0, 50, model.AssignTrain(1)),
		departure(2, 1, 9, 0, 50, model.AssignTrain(1)),
	)
	conflicts := NewConflictDetector(cfg).DetectAll(s)
	if len(conflicts) != 1 || conflicts[0].Type != ConflictMaxDuty || conflicts[0].Severity != "warning" {
		t.Errorf("conflicts = %+v", conflicts)
	}
}

func TestConflictDetector_DetectForAssignment(t *testing.T) {
	s := createTestSchedule(
		departure(1, 1, 8, 0, 50, model.AssignTrain(1)),
		departure(2, 2, 8, 20, 150, model.Unassigned()),
	)
	detector := NewConflictDetector(nil)

	tests := []struct {
		name     string
		train    model.TrainID
		expected []ConflictType
	}{
		{"分配给已有发车的列车", 1, []ConflictType{ConflictCapacity, ConflictTurnaround}},
		{"分配给空闲的大容量列车", 2, nil},
		{"车队以外的列车", 9, []ConflictType{ConflictUnknownTrain}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conflicts := detector.DetectForAssignment(s, 2, tt.train)
			if len(conflicts) != len(tt.expected) {
				t.Fatalf("conflicts = %+v, expected %v", conflicts, tt.expected)
			}
			for i, c := range conflicts {
				if c.Type != tt.expected[i] {
					t.Errorf("[%d] type = %s, expected %s", i, c.Type, tt.expected[i])
				}
			}
		})
	}

	// 方案本身不被修改
	if s.Departures[1].IsAssigned() {
		t.Error("DetectForAssignment 不应修改方案")
	}
	if got := detector.DetectForAssignment(s, 99, 1); got != nil {
		t.Errorf("不存在的发车应返回 nil, got %+v", got)
	}
}

func TestSummarize(t *testing.T) {
	conflicts := []Conflict{
		{Type: ConflictTurnaround, Severity: "error"},
		{Type: ConflictCapacity, Severity: "error"},
		{Type: ConflictHeadway, Severity: "warning"},
	}
	s := Summarize(conflicts)
	if s.Total != 3 || s.Errors != 2 || s.Warnings != 1 {
		t.Errorf("summary = %+v", s)
	}
	if s.ByType[ConflictHeadway] != 1 {
		t.Errorf("by type = %v", s.ByType)
	}
}

package model

import (
	"fmt"

	"github.com/paiban/rollingstock/pkg/errors"
	"github.com/paiban/rollingstock/pkg/scheduler/score"
)

// SolverStatus 求解状态标识
type SolverStatus string

const (
	SolverNotSolving       SolverStatus = "NOT_SOLVING"
	SolverSolvingActive    SolverStatus = "SOLVING_ACTIVE"
	SolverSolvingScheduled SolverStatus = "SOLVING_SCHEDULED"
)

// Schedule 车辆调度方案（聚合根）
// 问题事实在求解期间只读，Departures 是唯一被修改的集合
type Schedule struct {
	Stations      []Station         `json:"stations"`
	Routes        []Route           `json:"routes"`
	Trains        []Train           `json:"trains"`
	Depots        []Depot           `json:"depots"`
	Demands       []PassengerDemand `json:"passenger_demands"`
	Configuration Configuration     `json:"configuration"`
	Departures    []Departure       `json:"departures"`

	Score        score.Score  `json:"score"`
	SolverStatus SolverStatus `json:"solver_status,omitempty"`
}

// Clone 复制分配状态，问题事实按引用共享
func (s *Schedule) Clone() *Schedule {
	c := *s
	c.Departures = make([]Departure, len(s.Departures))
	copy(c.Departures, s.Departures)
	return &c
}

// WithStatus 返回带有指定求解状态的浅拷贝
func (s *Schedule) WithStatus(status SolverStatus) *Schedule {
	c := *s
	c.SolverStatus = status
	return &c
}

// TrainIndex 列车 ID 到其在 Trains 中位置的映射
func (s *Schedule) TrainIndex() map[TrainID]int {
	idx := make(map[TrainID]int, len(s.Trains))
	for i, t := range s.Trains {
		idx[t.ID] = i
	}
	return idx
}

// StationIndex 车站索引
func (s *Schedule) StationIndex() map[StationID]*Station {
	idx := make(map[StationID]*Station, len(s.Stations))
	for i := range s.Stations {
		idx[s.Stations[i].ID] = &s.Stations[i]
	}
	return idx
}

// RouteIndex 线路索引
func (s *Schedule) RouteIndex() map[RouteID]*Route {
	idx := make(map[RouteID]*Route, len(s.Routes))
	for i := range s.Routes {
		idx[s.Routes[i].ID] = &s.Routes[i]
	}
	return idx
}

// DepotByTrain 列车到车辆段的映射
func (s *Schedule) DepotByTrain() map[TrainID]*Depot {
	idx := make(map[TrainID]*Depot, len(s.Depots))
	for i := range s.Depots {
		idx[s.Depots[i].TrainID] = &s.Depots[i]
	}
	return idx
}

// AssignedCount 已分配列车的发车数
func (s *Schedule) AssignedCount() int {
	n := 0
	for i := range s.Departures {
		if s.Departures[i].IsAssigned() {
			n++
		}
	}
	return n
}

// Feasible 硬约束全部满足
func (s *Schedule) Feasible() bool {
	return s.Score.IsFeasible()
}

// Validate 校验问题数据的引用完整性
// 所有问题一次性收集，返回 MALFORMED_PROBLEM 错误
func (s *Schedule) Validate() error {
	ve := &errors.ValidationErrors{}

	stations := make(map[StationID]bool, len(s.Stations))
	for i, st := range s.Stations {
		if stations[st.ID] {
			ve.Addf(fmt.Sprintf("stations[%d].id", i), "重复的车站 ID %d", st.ID)
		}
		stations[st.ID] = true
	}
	for i, st := range s.Stations {
		for _, n := range st.Neighbors {
			if !stations[n] {
				ve.Addf(fmt.Sprintf("stations[%d].neighbors", i), "相邻车站 %d 不存在", n)
			}
		}
	}

	routes := make(map[RouteID]*Route, len(s.Routes))
	for i := range s.Routes {
		r := &s.Routes[i]
		field := fmt.Sprintf("routes[%d]", i)
		if _, dup := routes[r.ID]; dup {
			ve.Addf(field+".id", "重复的线路 ID %d", r.ID)
		}
		routes[r.ID] = r
		if len(r.Stations) == 0 {
			ve.Add(field+".stations", "线路至少包含一个车站")
		}
		for _, sid := range r.Stations {
			if !stations[sid] {
				ve.Addf(field+".stations", "车站 %d 不存在", sid)
			}
		}
	}

	trains := make(map[TrainID]bool, len(s.Trains))
	for i, t := range s.Trains {
		field := fmt.Sprintf("trains[%d]", i)
		if trains[t.ID] {
			ve.Addf(field+".id", "重复的列车 ID %d", t.ID)
		}
		trains[t.ID] = true
		if t.Capacity < 0 {
			ve.Addf(field+".capacity", "容量不能为负数: %d", t.Capacity)
		}
	}

	depotIDs := make(map[DepotID]bool, len(s.Depots))
	depotTrains := make(map[TrainID]bool, len(s.Depots))
	for i, d := range s.Depots {
		field := fmt.Sprintf("depots[%d]", i)
		if depotIDs[d.ID] {
			ve.Addf(field+".id", "重复的车辆段 ID %d", d.ID)
		}
		depotIDs[d.ID] = true
		if !trains[d.TrainID] {
			ve.Addf(field+".train_id", "列车 %d 不存在", d.TrainID)
		}
		if depotTrains[d.TrainID] {
			ve.Addf(field+".train_id", "列车 %d 已有车辆段", d.TrainID)
		}
		depotTrains[d.TrainID] = true
		if !stations[d.StationID] {
			ve.Addf(field+".station_id", "车站 %d 不存在", d.StationID)
		}
	}

	demandIDs := make(map[DemandID]bool, len(s.Demands))
	for i, d := range s.Demands {
		field := fmt.Sprintf("passenger_demands[%d]", i)
		if demandIDs[d.ID] {
			ve.Addf(field+".id", "重复的需求 ID %d", d.ID)
		}
		demandIDs[d.ID] = true
		if !stations[d.StationID] {
			ve.Addf(field+".station_id", "车站 %d 不存在", d.StationID)
		}
		if _, ok := routes[d.RouteID]; !ok {
			ve.Addf(field+".route_id", "线路 %d 不存在", d.RouteID)
		}
		if d.Hour < 0 || d.Hour > 23 {
			ve.Addf(field+".hour", "小时必须在 0-23 之间: %d", d.Hour)
		}
		if d.Passengers < 0 {
			ve.Addf(field+".passengers", "客流不能为负数: %d", d.Passengers)
		}
	}

	departureIDs := make(map[DepartureID]bool, len(s.Departures))
	for i, d := range s.Departures {
		field := fmt.Sprintf("departures[%d]", i)
		if departureIDs[d.ID] {
			ve.Addf(field+".id", "重复的发车 ID %d", d.ID)
		}
		departureIDs[d.ID] = true
		if !stations[d.StationID] {
			ve.Addf(field+".station_id", "车站 %d 不存在", d.StationID)
		}
		r, ok := routes[d.RouteID]
		if !ok {
			ve.Addf(field+".route_id", "线路 %d 不存在", d.RouteID)
		} else if !r.Contains(d.StationID) {
			ve.Addf(field+".station_id", "车站 %d 不在线路 %d 上", d.StationID, d.RouteID)
		}
		if d.Time < 0 || int(d.Time) >= minutesPerDay {
			ve.Addf(field+".time", "时刻超出一天范围: %d", int(d.Time))
		}
		if d.Train.Valid && !trains[d.Train.ID] {
			ve.Addf(field+".train", "列车 %d 不存在", d.Train.ID)
		}
	}

	if ve.HasErrors() {
		return ve.ToAppError()
	}
	return nil
}

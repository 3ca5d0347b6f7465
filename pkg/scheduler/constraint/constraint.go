// Package constraint 定义约束接口、管理器和增量评分器
package constraint

import (
	"github.com/paiban/rollingstock/pkg/model"
	"github.com/paiban/rollingstock/pkg/scheduler/score"
)

// Type 约束类型标识
type Type string

const (
	// 硬约束类型
	TypeNoDoubleBooking Type = "no_double_booking"
	TypeTrainCapacity   Type = "train_capacity"

	// 软约束类型
	TypeDepotReturn     Type = "depot_return"
	TypeOnTimeArrival   Type = "on_time_arrival"
	TypeEmptyTrain      Type = "empty_train"
	TypePassengerPickup Type = "passenger_pickup"
)

// Category 约束类别
type Category string

const (
	CategoryHard Category = "hard" // 硬约束（必须满足）
	CategorySoft Category = "soft" // 软约束（尽量满足）
)

// Descriptor 约束的描述信息
type Descriptor interface {
	// Name 返回约束名称
	Name() string

	// Type 返回约束类型
	Type() Type

	// Category 返回约束类别
	Category() Category

	// Weight 返回约束权重
	Weight() int
}

// Constraint 约束接口
type Constraint interface {
	Descriptor

	// Evaluate 完整评估整个方案
	// 返回：该约束贡献的得分、违反详情
	Evaluate(ctx *Context) (score.Score, []ViolationDetail)
}

// DepartureConstraint 只依赖单个发车的约束
// 仅对已分配列车的发车调用
type DepartureConstraint interface {
	Constraint
	ScoreDeparture(ctx *Context, d *model.Departure) score.Score
}

// PairConstraint 作用于同一列车上任意两个发车的约束
// 必须对 a、b 对称
type PairConstraint interface {
	Constraint
	ScorePair(ctx *Context, a, b *model.Departure) score.Score
}

// TrainConstraint 作用于一列车全部发车的约束
type TrainConstraint interface {
	Constraint
	ScoreTrain(ctx *Context, train model.TrainID, departures []*model.Departure) score.Score
}

// ViolationDetail 约束违反详情
type ViolationDetail struct {
	ConstraintType Type                `json:"constraint_type"`
	ConstraintName string              `json:"constraint_name"`
	TrainID        model.TrainID       `json:"train_id,omitempty"`
	DepartureIDs   []model.DepartureID `json:"departure_ids,omitempty"`
	Message        string              `json:"message"`
	Severity       string              `json:"severity"` // error/warning
	Impact         score.Score         `json:"impact"`
}

// NewViolation 按约束类别填充通用字段
func NewViolation(c Descriptor, impact score.Score, message string) ViolationDetail {
	severity := "warning"
	if c.Category() == CategoryHard {
		severity = "error"
	}
	return ViolationDetail{
		ConstraintType: c.Type(),
		ConstraintName: c.Name(),
		Message:        message,
		Severity:       severity,
		Impact:         impact,
	}
}

// Context 评分上下文
// 问题事实的索引在创建时建立，分配状态始终从 Schedule 实时读取
type Context struct {
	Schedule *model.Schedule

	trainMap   map[model.TrainID]*model.Train
	stationMap map[model.StationID]*model.Station
	routeMap   map[model.RouteID]*model.Route
	depotMap   map[model.TrainID]*model.Depot
}

// NewContext 创建评分上下文
func NewContext(schedule *model.Schedule) *Context {
	c := &Context{
		Schedule:   schedule,
		trainMap:   make(map[model.TrainID]*model.Train, len(schedule.Trains)),
		stationMap: schedule.StationIndex(),
		routeMap:   schedule.RouteIndex(),
		depotMap:   schedule.DepotByTrain(),
	}
	for i := range schedule.Trains {
		c.trainMap[schedule.Trains[i].ID] = &schedule.Trains[i]
	}
	return c
}

// Train 获取列车
func (c *Context) Train(id model.TrainID) *model.Train {
	return c.trainMap[id]
}

// InFleet 列车是否属于车队
func (c *Context) InFleet(id model.TrainID) bool {
	_, ok := c.trainMap[id]
	return ok
}

// Station 获取车站
func (c *Context) Station(id model.StationID) *model.Station {
	return c.stationMap[id]
}

// Route 获取线路
func (c *Context) Route(id model.RouteID) *model.Route {
	return c.routeMap[id]
}

// Depot 获取列车的车辆段
func (c *Context) Depot(train model.TrainID) *model.Depot {
	return c.depotMap[train]
}

// DeparturesByTrain 按列车分组的已分配发车，组内保持方案顺序
func (c *Context) DeparturesByTrain() map[model.TrainID][]*model.Departure {
	groups := make(map[model.TrainID][]*model.Departure, len(c.trainMap))
	for i := range c.Schedule.Departures {
		d := &c.Schedule.Departures[i]
		if d.IsAssigned() {
			groups[d.Train.ID] = append(groups[d.Train.ID], d)
		}
	}
	return groups
}

// ConstraintSummary 单个约束的得分汇总
type ConstraintSummary struct {
	Name       string      `json:"name"`
	Type       Type        `json:"type"`
	Category   Category    `json:"category"`
	Weight     int         `json:"weight"`
	Score      score.Score `json:"score"`
	Violations int         `json:"violations"`
}

// Result 约束评估结果
type Result struct {
	Score          score.Score         `json:"score"`
	Feasible       bool                `json:"feasible"`
	Constraints    []ConstraintSummary `json:"constraints"`
	HardViolations []ViolationDetail   `json:"hard_violations"`
	SoftViolations []ViolationDetail   `json:"soft_violations"`
}

// ViolationCount 违反总数
func (r *Result) ViolationCount() int {
	return len(r.HardViolations) + len(r.SoftViolations)
}

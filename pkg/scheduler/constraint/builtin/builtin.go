package builtin

import (
	"time"

	"github.com/paiban/rollingstock/pkg/scheduler/constraint"
)

// Weights 内置规则的参数
type Weights struct {
	DoubleBookingWindow time.Duration `yaml:"double_booking_window" json:"double_booking_window"`
	DepotReturn         int64         `yaml:"depot_return" json:"depot_return"` // 0 表示停用
	EmptyTrain          int64         `yaml:"empty_train" json:"empty_train"`
	PassengerPickup     int64         `yaml:"passenger_pickup" json:"passenger_pickup"`
}

// DefaultWeights 返回默认参数
func DefaultWeights() Weights {
	return Weights{
		DoubleBookingWindow: 30 * time.Minute,
		DepotReturn:         0,
		EmptyTrain:          10,
		PassengerPickup:     1,
	}
}

// RegisterDefaultConstraints 注册全部内置约束到管理器
func RegisterDefaultConstraints(manager *constraint.Manager, w Weights) {
	defaults := DefaultWeights()
	if w.DoubleBookingWindow <= 0 {
		w.DoubleBookingWindow = defaults.DoubleBookingWindow
	}

	// 注册硬约束
	manager.Register(NewNoDoubleBookingConstraint(w.DoubleBookingWindow))
	manager.Register(NewTrainCapacityConstraint())

	// 注册软约束
	manager.Register(NewDepotReturnConstraint(w.DepotReturn))
	manager.Register(NewOnTimeArrivalConstraint())
	manager.Register(NewEmptyTrainConstraint(w.EmptyTrain))
	manager.Register(NewPassengerPickupConstraint(w.PassengerPickup))
}

// NewDefaultManager 创建带默认约束的管理器
func NewDefaultManager(w Weights) *constraint.Manager {
	m := constraint.NewManager()
	RegisterDefaultConstraints(m, w)
	return m
}

// Package constraints 描述可配置的约束规则
package constraints

import (
	"strconv"

	"github.com/paiban/rollingstock/pkg/scheduler/constraint"
	"github.com/paiban/rollingstock/pkg/scheduler/constraint/builtin"
)

// ConstraintParam 约束参数定义
type ConstraintParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // int, duration
	Description string `json:"description"`
	Default     string `json:"default,omitempty"`
	Current     string `json:"current,omitempty"`
	Min         string `json:"min,omitempty"`
}

// ConstraintDefinition 约束定义
type ConstraintDefinition struct {
	Name        string              `json:"name"`
	DisplayName string              `json:"display_name"`
	Type        constraint.Category `json:"type"` // hard 硬约束, soft 软约束
	Category    string              `json:"category"`
	Description string              `json:"description"`
	Registered  bool                `json:"registered"` // 是否已注册到当前引擎
	Params      []ConstraintParam   `json:"params"`
}

// LibraryResponse 约束库响应
type LibraryResponse struct {
	Library []ConstraintDefinition `json:"library"`
}

// GetLibrary 返回内置约束库，current 为当前生效的参数，manager 用于标记已注册的约束
func GetLibrary(current builtin.Weights, manager *constraint.Manager) []ConstraintDefinition {
	defaults := builtin.DefaultWeights()

	library := []ConstraintDefinition{
		{
			Name:        string(constraint.TypeNoDoubleBooking),
			DisplayName: "不同站点发车间隔",
			Type:        constraint.CategoryHard,
			Category:    "车辆占用",
			Description: "同一列车在不同车站的两次发车必须相隔足够时间，否则视为重复占用。同一车站的发车不受限制。",
			Params: []ConstraintParam{
				{Name: "double_booking_window", Type: "duration", Description: "最小间隔", Default: defaults.DoubleBookingWindow.String(), Current: current.DoubleBookingWindow.String(), Min: "1m"},
			},
		},
		{
			Name:        string(constraint.TypeTrainCapacity),
			DisplayName: "列车载客量",
			Type:        constraint.CategoryHard,
			Category:    "容量",
			Description: "发车的乘客数不能超过所分配列车的载客量，每超出一人扣一分硬分。",
		},
		{
			Name:        string(constraint.TypeDepotReturn),
			DisplayName: "返回车辆段",
			Type:        constraint.CategorySoft,
			Category:    "车辆调度",
			Description: "列车当天最后一次发车应位于其车辆段所在车站或相邻车站。权重为 0 时停用。",
			Params: []ConstraintParam{
				weightParam("depot_return", defaults.DepotReturn, current.DepotReturn),
			},
		},
		{
			Name:        string(constraint.TypeOnTimeArrival),
			DisplayName: "准点到达",
			Type:        constraint.CategorySoft,
			Category:    "服务质量",
			Description: "预留的准点规则，目前不产生得分。",
		},
		{
			Name:        string(constraint.TypeEmptyTrain),
			DisplayName: "避免空车",
			Type:        constraint.CategorySoft,
			Category:    "运营成本",
			Description: "已分配列车但没有乘客的发车按权重扣分。",
			Params: []ConstraintParam{
				weightParam("empty_train", defaults.EmptyTrain, current.EmptyTrain),
			},
		},
		{
			Name:        string(constraint.TypePassengerPickup),
			DisplayName: "运送乘客",
			Type:        constraint.CategorySoft,
			Category:    "服务质量",
			Description: "已分配列车的发车按乘客数乘以权重加分。",
			Params: []ConstraintParam{
				weightParam("passenger_pickup", defaults.PassengerPickup, current.PassengerPickup),
			},
		},
	}

	if manager != nil {
		for i := range library {
			library[i].Registered = manager.GetConstraint(constraint.Type(library[i].Name)) != nil
		}
	}
	return library
}

func weightParam(name string, def, current int64) ConstraintParam {
	return ConstraintParam{
		Name:        name,
		Type:        "int",
		Description: "权重",
		Default:     strconv.FormatInt(def, 10),
		Current:     strconv.FormatInt(current, 10),
		Min:         "0",
	}
}

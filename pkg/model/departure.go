package model

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// TrainRef 可选的列车引用
// JSON 中未分配为 null，已分配为列车 ID
type TrainRef struct {
	ID    TrainID
	Valid bool
}

// AssignTrain 指向指定列车
func AssignTrain(id TrainID) TrainRef {
	return TrainRef{ID: id, Valid: true}
}

// Unassigned 未分配
func Unassigned() TrainRef {
	return TrainRef{}
}

// Is 是否指向指定列车
func (r TrainRef) Is(id TrainID) bool {
	return r.Valid && r.ID == id
}

// String 格式化
func (r TrainRef) String() string {
	if !r.Valid {
		return "unassigned"
	}
	return "train#" + strconv.FormatInt(int64(r.ID), 10)
}

// MarshalJSON 实现 json.Marshaler
func (r TrainRef) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(r.ID)
}

// UnmarshalJSON 实现 json.Unmarshaler
func (r *TrainRef) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = Unassigned()
		return nil
	}
	var id TrainID
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	*r = AssignTrain(id)
	return nil
}

// Departure 发车计划（规划实体）
// 除 Train 外的字段在创建后不再变化
type Departure struct {
	ID         DepartureID `json:"id"`
	StationID  StationID   `json:"station_id"`
	RouteID    RouteID     `json:"route_id"`
	Time       ClockTime   `json:"time"`
	Passengers int         `json:"passengers"` // 预计上车人数变化
	Train      TrainRef    `json:"train"`
}

// IsAssigned 是否已分配列车
func (d *Departure) IsAssigned() bool {
	return d.Train.Valid
}

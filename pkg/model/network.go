package model

import (
	"encoding/json"
	"time"
)

// Station 车站
type Station struct {
	ID        StationID      `json:"id"`
	Name      string         `json:"name"`
	Location  GeoCoordinates `json:"location"`
	Neighbors []StationID    `json:"neighbors,omitempty"`
}

// IsNeighbor 是否与指定车站相邻
func (s *Station) IsNeighbor(id StationID) bool {
	for _, n := range s.Neighbors {
		if n == id {
			return true
		}
	}
	return false
}

// Route 线路，按顺序经过的车站
type Route struct {
	ID       RouteID     `json:"id"`
	Name     string      `json:"name"`
	Stations []StationID `json:"stations"`
}

// Contains 线路是否经过指定车站
func (r *Route) Contains(id StationID) bool {
	return r.IndexOf(id) >= 0
}

// IndexOf 车站在线路中的位置，不存在返回 -1
func (r *Route) IndexOf(id StationID) int {
	for i, s := range r.Stations {
		if s == id {
			return i
		}
	}
	return -1
}

// Train 列车
type Train struct {
	ID       TrainID `json:"id"`
	Capacity int     `json:"capacity"`
}

// Depot 车辆段，每列车最多一个
type Depot struct {
	ID        DepotID   `json:"id"`
	TrainID   TrainID   `json:"train_id"`
	StationID StationID `json:"station_id"`
}

// PassengerDemand 某线路某站某小时的客流需求
type PassengerDemand struct {
	ID         DemandID  `json:"id"`
	StationID  StationID `json:"station_id"`
	RouteID    RouteID   `json:"route_id"`
	Hour       int       `json:"hour"` // 0-23
	Passengers int       `json:"passengers"`
}

// Configuration 运营参数
type Configuration struct {
	MinHeadway time.Duration `json:"-"` // 最小发车间隔
	DwellTime  time.Duration `json:"-"` // 停站时间
}

type configurationJSON struct {
	MinHeadwayMinutes int `json:"min_headway_minutes"`
	DwellTimeMinutes  int `json:"dwell_time_minutes"`
}

// MarshalJSON 以分钟输出
func (c Configuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(configurationJSON{
		MinHeadwayMinutes: int(c.MinHeadway / time.Minute),
		DwellTimeMinutes:  int(c.DwellTime / time.Minute),
	})
}

// UnmarshalJSON 以分钟解析
func (c *Configuration) UnmarshalJSON(data []byte) error {
	var raw configurationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.MinHeadway = time.Duration(raw.MinHeadwayMinutes) * time.Minute
	c.DwellTime = time.Duration(raw.DwellTimeMinutes) * time.Minute
	return nil
}

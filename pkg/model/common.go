// Package model 定义车辆调度引擎的核心数据模型
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// 标识类型，全部为稳定且唯一的整数
type (
	StationID   int64
	RouteID     int64
	TrainID     int64
	DepotID     int64
	DemandID    int64
	DepartureID int64
)

// GeoCoordinates 地理坐标
type GeoCoordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Distance 计算两个坐标之间的距离（公里）
// 使用 Haversine 公式
func (g GeoCoordinates) Distance(other GeoCoordinates) float64 {
	const earthRadius = 6371.0 // 地球半径（公里）

	lat1Rad := g.Latitude * math.Pi / 180
	lat2Rad := other.Latitude * math.Pi / 180
	deltaLat := (other.Latitude - g.Latitude) * math.Pi / 180
	deltaLon := (other.Longitude - g.Longitude) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

const minutesPerDay = 24 * 60

// ClockTime 一天中的时刻，以午夜起的分钟数表示
// JSON 格式为 "HH:MM"
type ClockTime int

// NewClockTime 创建时刻，超出一天的部分按24小时回绕
func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(0).Add(time.Duration(hour*60+minute) * time.Minute)
}

// ParseClockTime 解析 "HH:MM" 格式
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("无效的时刻格式 %q: %w", s, err)
	}
	return ClockTime(t.Hour()*60 + t.Minute()), nil
}

// Hour 小时
func (c ClockTime) Hour() int {
	return int(c) / 60
}

// Minute 分钟
func (c ClockTime) Minute() int {
	return int(c) % 60
}

// Add 加上一段时长，跨午夜时回绕
func (c ClockTime) Add(d time.Duration) ClockTime {
	m := (int(c) + int(d/time.Minute)) % minutesPerDay
	if m < 0 {
		m += minutesPerDay
	}
	return ClockTime(m)
}

// Sub 两个时刻之差（同一天内，不回绕）
func (c ClockTime) Sub(other ClockTime) time.Duration {
	return time.Duration(int(c)-int(other)) * time.Minute
}

// String 格式化为 "HH:MM"
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// MarshalJSON 输出 "HH:MM"
func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON 解析 "HH:MM"
func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// AbsDuration 时长的绝对值
func AbsDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

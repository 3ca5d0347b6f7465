// Package stats 提供调度方案统计分析功能
package stats

import (
	"math"
	"sort"

	"github.com/paiban/rollingstock/pkg/model"
)

// FleetMetrics 车队使用指标
type FleetMetrics struct {
	// 发车分布
	DepartureGini      float64 `json:"departure_gini"`       // 发车次数基尼系数 (0=完全均衡, 1=完全集中)
	DepartureStdDev    float64 `json:"departure_std_dev"`    // 发车次数标准差
	AvgDeparturesTrain float64 `json:"avg_departures_train"` // 每列车平均发车次数
	MaxDepartures      int     `json:"max_departures"`
	MinDepartures      int     `json:"min_departures"`

	// 载客
	AvgLoadFactor float64 `json:"avg_load_factor"` // 已分配发车的平均满载率
	EmptyRuns     int     `json:"empty_runs"`      // 已分配但没有乘客的发车
	Overloaded    int     `json:"overloaded"`      // 超过载客量的发车
	IdleTrains    int     `json:"idle_trains"`     // 没有任何发车的列车

	TrainStats []TrainStat `json:"train_stats"`

	// 综合评分
	OverallUtilizationScore float64 `json:"overall_utilization_score"` // 0-100
}

// TrainStat 单列车统计
type TrainStat struct {
	TrainID        model.TrainID   `json:"train_id"`
	Capacity       int             `json:"capacity"`
	Departures     int             `json:"departures"`
	Passengers     int             `json:"passengers"`
	LoadFactor     float64         `json:"load_factor"` // 平均满载率
	EmptyRuns      int             `json:"empty_runs"`
	Overloaded     int             `json:"overloaded"`
	FirstDeparture model.ClockTime `json:"first_departure"`
	LastDeparture  model.ClockTime `json:"last_departure"`
	EndsAtDepot    bool            `json:"ends_at_depot"` // 最后一次发车在车辆段或相邻车站
	Deviation      float64         `json:"deviation"`     // 与平均发车次数的偏差百分比
}

// FleetAnalyzer 车队使用分析器
type FleetAnalyzer struct {
	targetLoadFactor float64 // 理想满载率
}

// NewFleetAnalyzer 创建车队分析器
func NewFleetAnalyzer() *FleetAnalyzer {
	return &FleetAnalyzer{targetLoadFactor: 0.8}
}

// Analyze 分析方案中的车队使用情况
func (f *FleetAnalyzer) Analyze(s *model.Schedule) *FleetMetrics {
	if len(s.Trains) == 0 {
		return &FleetMetrics{TrainStats: []TrainStat{}, OverallUtilizationScore: 100}
	}

	trainStats := f.calculateTrainStats(s)

	counts := make([]float64, len(trainStats))
	metrics := &FleetMetrics{TrainStats: trainStats}
	var loadSum float64
	var loaded int
	for i, stat := range trainStats {
		counts[i] = float64(stat.Departures)
		metrics.EmptyRuns += stat.EmptyRuns
		metrics.Overloaded += stat.Overloaded
		if stat.Departures == 0 {
			metrics.IdleTrains++
			continue
		}
		loadSum += stat.LoadFactor * float64(stat.Departures)
		loaded += stat.Departures
	}

	avg := mean(counts)
	max, min := valueRange(counts)
	metrics.AvgDeparturesTrain = avg
	metrics.DepartureStdDev = math.Sqrt(variance(counts, avg))
	metrics.MaxDepartures = int(max)
	metrics.MinDepartures = int(min)
	metrics.DepartureGini = gini(counts)
	if loaded > 0 {
		metrics.AvgLoadFactor = loadSum / float64(loaded)
	}

	// 更新偏差
	for i := range trainStats {
		if avg > 0 {
			trainStats[i].Deviation = (float64(trainStats[i].Departures) - avg) / avg * 100
		}
	}

	metrics.OverallUtilizationScore = f.calculateOverallScore(metrics, loaded)
	return metrics
}

// calculateTrainStats 按列车汇总，顺序与 Trains 一致
func (f *FleetAnalyzer) calculateTrainStats(s *model.Schedule) []TrainStat {
	stations := s.StationIndex()
	depots := s.DepotByTrain()
	index := s.TrainIndex()

	stats := make([]TrainStat, len(s.Trains))
	latest := make([]*model.Departure, len(s.Trains))
	for i, t := range s.Trains {
		stats[i] = TrainStat{TrainID: t.ID, Capacity: t.Capacity}
	}

	for i := range s.Departures {
		d := &s.Departures[i]
		if !d.IsAssigned() {
			continue
		}
		ti, ok := index[d.Train.ID]
		if !ok {
			continue
		}
		stat := &stats[ti]
		if stat.Departures == 0 || d.Time < stat.FirstDeparture {
			stat.FirstDeparture = d.Time
		}
		if latest[ti] == nil || d.Time > latest[ti].Time {
			latest[ti] = d
			stat.LastDeparture = d.Time
		}
		stat.Departures++
		stat.Passengers += d.Passengers
		if d.Passengers == 0 {
			stat.EmptyRuns++
		}
		if d.Passengers > stat.Capacity {
			stat.Overloaded++
		}
	}

	for i := range stats {
		stat := &stats[i]
		if stat.Departures > 0 && stat.Capacity > 0 {
			stat.LoadFactor = float64(stat.Passengers) / float64(stat.Departures*stat.Capacity)
		}
		if last, depot := latest[i], depots[stat.TrainID]; last != nil && depot != nil {
			if last.StationID == depot.StationID {
				stat.EndsAtDepot = true
			} else if st := stations[depot.StationID]; st != nil && st.IsNeighbor(last.StationID) {
				stat.EndsAtDepot = true
			}
		}
	}
	return stats
}

// calculateOverallScore 计算综合评分
func (f *FleetAnalyzer) calculateOverallScore(m *FleetMetrics, loaded int) float64 {
	if loaded == 0 {
		return 0
	}

	// 各项权重
	const (
		balanceWeight = 0.4
		loadWeight    = 0.4
		emptyWeight   = 0.2
	)

	balance := (1 - m.DepartureGini) * 100
	load := math.Max(0, 100-math.Abs(m.AvgLoadFactor-f.targetLoadFactor)/f.targetLoadFactor*100)
	empty := (1 - float64(m.EmptyRuns)/float64(loaded)) * 100

	score := balance*balanceWeight + load*loadWeight + empty*emptyWeight
	if m.Overloaded > 0 {
		score *= 0.5
	}
	return math.Round(score*100) / 100
}

// mean 计算平均值
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// variance 计算方差
func variance(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return sumSquares / float64(len(values))
}

// valueRange 计算极值
func valueRange(values []float64) (max, min float64) {
	if len(values) == 0 {
		return 0, 0
	}
	max, min = values[0], values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return
}

// gini 计算基尼系数
func gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	if sum == 0 {
		return 0
	}

	g := 0.0
	for i, v := range sorted {
		g += (2*float64(i+1) - float64(n) - 1) * v
	}
	g = g / (float64(n) * sum)
	return math.Max(0, math.Min(1, g))
}

package stats

import (
	"fmt"
	"sort"
	"strings"

	"github.com/paiban/rollingstock/pkg/model"
)

// CoverageMetrics 发车覆盖指标
type CoverageMetrics struct {
	// 整体覆盖率
	TotalDepartures    int     `json:"total_departures"`
	AssignedDepartures int     `json:"assigned_departures"`
	OverallCoverage    float64 `json:"overall_coverage"` // 已分配发车占比 (%)

	// 乘客
	TotalPassengers  int     `json:"total_passengers"`
	ServedPassengers int     `json:"served_passengers"`
	ServiceRate      float64 `json:"service_rate"` // 已分配发车覆盖的乘客占比 (%)

	// 按小时、按线路统计
	HourlyCoverage []HourCoverage       `json:"hourly_coverage"`
	RouteCoverage  map[string]float64   `json:"route_coverage"` // 线路名 -> 覆盖率 (%)
	Uncovered      []UncoveredDeparture `json:"uncovered"`
	Shortfalls     []CapacityShortfall  `json:"shortfalls"` // 运力不足时段
}

// HourCoverage 单小时覆盖情况
type HourCoverage struct {
	Hour         int     `json:"hour"`
	Departures   int     `json:"departures"`
	Assigned     int     `json:"assigned"`
	Passengers   int     `json:"passengers"`
	Capacity     int     `json:"capacity"` // 已分配列车提供的载客量
	CoverageRate float64 `json:"coverage_rate"`
}

// UncoveredDeparture 未分配列车的发车
type UncoveredDeparture struct {
	DepartureID model.DepartureID `json:"departure_id"`
	StationID   model.StationID   `json:"station_id"`
	RouteID     model.RouteID     `json:"route_id"`
	Time        model.ClockTime   `json:"time"`
	Passengers  int               `json:"passengers"`
}

// CapacityShortfall 运力不足时段
type CapacityShortfall struct {
	Hour       int `json:"hour"`
	Passengers int `json:"passengers"`
	Capacity   int `json:"capacity"`
	Shortage   int `json:"shortage"`
}

// CoverageAnalyzer 覆盖率分析器
type CoverageAnalyzer struct{}

// NewCoverageAnalyzer 创建覆盖率分析器
func NewCoverageAnalyzer() *CoverageAnalyzer {
	return &CoverageAnalyzer{}
}

// Analyze 分析发车覆盖率
func (c *CoverageAnalyzer) Analyze(s *model.Schedule) *CoverageMetrics {
	metrics := &CoverageMetrics{
		TotalDepartures: len(s.Departures),
		HourlyCoverage:  []HourCoverage{},
		RouteCoverage:   make(map[string]float64),
		Uncovered:       []UncoveredDeparture{},
		Shortfalls:      []CapacityShortfall{},
	}
	if len(s.Departures) == 0 {
		metrics.OverallCoverage = 100
		metrics.ServiceRate = 100
		return metrics
	}

	capacity := make(map[model.TrainID]int, len(s.Trains))
	for _, t := range s.Trains {
		capacity[t.ID] = t.Capacity
	}
	routes := s.RouteIndex()

	hours := make(map[int]*HourCoverage)
	routeTotal := make(map[model.RouteID]int)
	routeAssigned := make(map[model.RouteID]int)

	for i := range s.Departures {
		d := &s.Departures[i]
		h, ok := hours[d.Time.Hour()]
		if !ok {
			h = &HourCoverage{Hour: d.Time.Hour()}
			hours[d.Time.Hour()] = h
		}
		h.Departures++
		h.Passengers += d.Passengers
		metrics.TotalPassengers += d.Passengers
		routeTotal[d.RouteID]++

		if !d.IsAssigned() {
			metrics.Uncovered = append(metrics.Uncovered, UncoveredDeparture{
				DepartureID: d.ID,
				StationID:   d.StationID,
				RouteID:     d.RouteID,
				Time:        d.Time,
				Passengers:  d.Passengers,
			})
			continue
		}

		metrics.AssignedDepartures++
		metrics.ServedPassengers += d.Passengers
		routeAssigned[d.RouteID]++
		h.Assigned++
		h.Capacity += capacity[d.Train.ID]
	}

	metrics.OverallCoverage = percent(metrics.AssignedDepartures, metrics.TotalDepartures)
	metrics.ServiceRate = percent(metrics.ServedPassengers, metrics.TotalPassengers)

	for hour, h := range hours {
		h.CoverageRate = percent(h.Assigned, h.Departures)
		metrics.HourlyCoverage = append(metrics.HourlyCoverage, *h)
		if h.Capacity < h.Passengers {
			metrics.Shortfalls = append(metrics.Shortfalls, CapacityShortfall{
				Hour:       hour,
				Passengers: h.Passengers,
				Capacity:   h.Capacity,
				Shortage:   h.Passengers - h.Capacity,
			})
		}
	}
	sort.Slice(metrics.HourlyCoverage, func(i, j int) bool { return metrics.HourlyCoverage[i].Hour < metrics.HourlyCoverage[j].Hour })
	sort.Slice(metrics.Shortfalls, func(i, j int) bool { return metrics.Shortfalls[i].Hour < metrics.Shortfalls[j].Hour })

	for id, total := range routeTotal {
		name := fmt.Sprintf("route-%d", id)
		if r := routes[id]; r != nil && r.Name != "" {
			name = r.Name
		}
		metrics.RouteCoverage[name] = percent(routeAssigned[id], total)
	}

	return metrics
}

// GenerateCoverageReport 生成覆盖率报告
func (c *CoverageAnalyzer) GenerateCoverageReport(metrics *CoverageMetrics) string {
	var b strings.Builder
	b.WriteString("=== 发车覆盖分析报告 ===\n\n")

	b.WriteString("【整体覆盖情况】\n")
	fmt.Fprintf(&b, "  总发车数: %d\n", metrics.TotalDepartures)
	fmt.Fprintf(&b, "  已分配发车: %d\n", metrics.AssignedDepartures)
	fmt.Fprintf(&b, "  覆盖率: %.1f%%\n", metrics.OverallCoverage)
	fmt.Fprintf(&b, "  乘客覆盖率: %.1f%%\n\n", metrics.ServiceRate)

	if len(metrics.Uncovered) > 0 {
		b.WriteString("【未分配发车】\n")
		for _, d := range metrics.Uncovered {
			fmt.Fprintf(&b, "  - #%d %s 车站%d 线路%d (%d人)\n", d.DepartureID, d.Time, d.StationID, d.RouteID, d.Passengers)
		}
		b.WriteString("\n")
	}

	if len(metrics.Shortfalls) > 0 {
		b.WriteString("【运力不足时段】\n")
		for _, s := range metrics.Shortfalls {
			fmt.Fprintf(&b, "  - %02d:00-%02d:00 (乘客%d人，运力%d人，缺%d人)\n", s.Hour, s.Hour+1, s.Passengers, s.Capacity, s.Shortage)
		}
	}

	return b.String()
}

func percent(part, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(part) / float64(total) * 100
}

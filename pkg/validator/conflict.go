// Package validator 提供车辆调度方案的冲突检测
package validator

import (
	"fmt"
	"sort"
	"time"

	"github.com/paiban/rollingstock/pkg/model"
)

// ConflictType 冲突类型
type ConflictType string

const (
	ConflictTurnaround   ConflictType = "turnaround"    // 折返时间不足：同一列车在不同车站的发车间隔过短
	ConflictDwell        ConflictType = "dwell"         // 停站时间不足：同一列车在同一车站连续发车
	ConflictHeadway      ConflictType = "headway"       // 同一线路同一车站的发车间隔小于最小间隔
	ConflictCapacity     ConflictType = "capacity"      // 超载
	ConflictUnknownTrain ConflictType = "unknown_train" // 引用了车队以外的列车
	ConflictMaxDuty      ConflictType = "max_duty"      // 列车发车次数过多
)

// Conflict 冲突信息
type Conflict struct {
	Type       ConflictType        `json:"type"`
	Severity   string              `json:"severity"` // error/warning
	TrainID    model.TrainID       `json:"train_id,omitempty"`
	StationID  model.StationID     `json:"station_id,omitempty"`
	Time       model.ClockTime     `json:"time"`
	Message    string              `json:"message"`
	Departures []model.DepartureID `json:"departures,omitempty"` // 相关的发车ID
}

// ConflictDetector 冲突检测器
type ConflictDetector struct {
	config *DetectorConfig
}

// DetectorConfig 检测器配置
// MinHeadway 与 DwellTime 为 0 时使用方案自身的配置
type DetectorConfig struct {
	TurnaroundWindow      time.Duration // 不同车站之间的最短间隔
	MinHeadway            time.Duration
	DwellTime             time.Duration
	MaxDeparturesPerTrain int  // 0 表示不限制
	CheckHeadway          bool // 是否检查发车间隔
}

// DefaultDetectorConfig 返回默认配置
func DefaultDetectorConfig() *DetectorConfig {
	return &DetectorConfig{
		TurnaroundWindow:      30 * time.Minute,
		MaxDeparturesPerTrain: 0,
		CheckHeadway:          true,
	}
}

// NewConflictDetector 创建冲突检测器
func NewConflictDetector(config *DetectorConfig) *ConflictDetector {
	if config == nil {
		config = DefaultDetectorConfig()
	}
	return &ConflictDetector{config: config}
}

// DetectAll 检测所有冲突，结果按时间排序
func (d *ConflictDetector) DetectAll(s *model.Schedule) []Conflict {
	var conflicts []Conflict
	trains := trainMap(s)

	for trainID, deps := range groupByTrain(s) {
		train := trains[trainID]
		if train == nil {
			for _, dep := range deps {
				conflicts = append(conflicts, Conflict{
					Type:       ConflictUnknownTrain,
					Severity:   "error",
					TrainID:    trainID,
					StationID:  dep.StationID,
					Time:       dep.Time,
					Message:    fmt.Sprintf("发车 %d 引用的列车 %d 不在车队中", dep.ID, trainID),
					Departures: []model.DepartureID{dep.ID},
				})
			}
			continue
		}

		// 检测各类冲突
		conflicts = append(conflicts, d.detectTimeline(s, train, deps)...)
		conflicts = append(conflicts, d.detectCapacity(train, deps)...)
		conflicts = append(conflicts, d.detectMaxDuty(train, deps)...)
	}

	if d.config.CheckHeadway {
		conflicts = append(conflicts, d.detectHeadway(s)...)
	}

	sortConflicts(conflicts)
	return conflicts
}

// DetectForAssignment 检测把发车分配给列车后新增的冲突
func (d *ConflictDetector) DetectForAssignment(s *model.Schedule, departureID model.DepartureID, trainID model.TrainID) []Conflict {
	var target *model.Departure
	for i := range s.Departures {
		if s.Departures[i].ID == departureID {
			dep := s.Departures[i]
			dep.Train = model.AssignTrain(trainID)
			target = &dep
			break
		}
	}
	if target == nil {
		return nil
	}

	train := trainMap(s)[trainID]
	if train == nil {
		return []Conflict{{
			Type:       ConflictUnknownTrain,
			Severity:   "error",
			TrainID:    trainID,
			StationID:  target.StationID,
			Time:       target.Time,
			Message:    fmt.Sprintf("列车 %d 不在车队中", trainID),
			Departures: []model.DepartureID{departureID},
		}}
	}

	var conflicts []Conflict
	for i := range s.Departures {
		existing := &s.Departures[i]
		if existing.ID == departureID || !existing.Train.Is(trainID) {
			continue
		}
		if c, ok := d.checkPair(s, train, existing, target); ok {
			conflicts = append(conflicts, c)
		}
	}
	conflicts = append(conflicts, d.detectCapacity(train, []*model.Departure{target})...)

	sortConflicts(conflicts)
	return conflicts
}

// detectTimeline 检测相邻发车之间的间隔
func (d *ConflictDetector) detectTimeline(s *model.Schedule, train *model.Train, deps []*model.Departure) []Conflict {
	var conflicts []Conflict

	// 按时间排序
	sorted := make([]*model.Departure, len(deps))
	copy(sorted, deps)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Time != sorted[j].Time {
			return sorted[i].Time < sorted[j].Time
		}
		return sorted[i].ID < sorted[j].ID
	})

	for i := 0; i < len(sorted)-1; i++ {
		if c, ok := d.checkPair(s, train, sorted[i], sorted[i+1]); ok {
			conflicts = append(conflicts, c)
		}
	}

	return conflicts
}

// checkPair 检查同一列车的两次发车
func (d *ConflictDetector) checkPair(s *model.Schedule, train *model.Train, a, b *model.Departure) (Conflict, bool) {
	if b.Time < a.Time {
		a, b = b, a
	}
	gap := b.Time.Sub(a.Time)

	if a.StationID != b.StationID {
		if gap >= d.config.TurnaroundWindow {
			return Conflict{}, false
		}
		return Conflict{
			Type:       ConflictTurnaround,
			Severity:   "error",
			TrainID:    train.ID,
			StationID:  b.StationID,
			Time:       b.Time,
			Message:    fmt.Sprintf("列车 %d 在 %s 与 %s 分别从车站 %d 和 %d 发车，间隔仅 %d 分钟", train.ID, a.Time, b.Time, a.StationID, b.StationID, int(gap/time.Minute)),
			Departures: []model.DepartureID{a.ID, b.ID},
		}, true
	}

	dwell := d.dwellTime(s)
	if gap == 0 || gap >= dwell {
		return Conflict{}, false
	}
	return Conflict{
		Type:       ConflictDwell,
		Severity:   "warning",
		TrainID:    train.ID,
		StationID:  a.StationID,
		Time:       b.Time,
		Message:    fmt.Sprintf("列车 %d 在车站 %d 连续发车间隔 %d 分钟，少于停站时间 %d 分钟", train.ID, a.StationID, int(gap/time.Minute), int(dwell/time.Minute)),
		Departures: []model.DepartureID{a.ID, b.ID},
	}, true
}

// detectCapacity 检测超载
func (d *ConflictDetector) detectCapacity(train *model.Train, deps []*model.Departure) []Conflict {
	var conflicts []Conflict
	for _, dep := range deps {
		if dep.Passengers <= train.Capacity {
			continue
		}
		conflicts = append(conflicts, Conflict{
			Type:       ConflictCapacity,
			Severity:   "error",
			TrainID:    train.ID,
			StationID:  dep.StationID,
			Time:       dep.Time,
			Message:    fmt.Sprintf("发车 %d 预计 %d 人，超出列车 %d 容量 %d", dep.ID, dep.Passengers, train.ID, train.Capacity),
			Departures: []model.DepartureID{dep.ID},
		})
	}
	return conflicts
}

// detectMaxDuty 检测发车次数
func (d *ConflictDetector) detectMaxDuty(train *model.Train, deps []*model.Departure) []Conflict {
	limit := d.config.MaxDeparturesPerTrain
	if limit <= 0 || len(deps) <= limit {
		return nil
	}
	return []Conflict{{
		Type:     ConflictMaxDuty,
		Severity: "warning",
		TrainID:  train.ID,
		Message:  fmt.Sprintf("列车 %d 共 %d 次发车，超过限制 %d 次", train.ID, len(deps), limit),
	}}
}

// detectHeadway 检测同一线路同一车站相邻发车的间隔，与分配无关
func (d *ConflictDetector) detectHeadway(s *model.Schedule) []Conflict {
	headway := d.config.MinHeadway
	if headway <= 0 {
		headway = s.Configuration.MinHeadway
	}
	if headway <= 0 {
		return nil
	}

	type key struct {
		station model.StationID
		route   model.RouteID
	}
	groups := make(map[key][]*model.Departure)
	for i := range s.Departures {
		dep := &s.Departures[i]
		k := key{dep.StationID, dep.RouteID}
		groups[k] = append(groups[k], dep)
	}

	var conflicts []Conflict
	for _, deps := range groups {
		sort.Slice(deps, func(i, j int) bool { return deps[i].Time < deps[j].Time })
		for i := 0; i < len(deps)-1; i++ {
			gap := deps[i+1].Time.Sub(deps[i].Time)
			if gap >= headway {
				continue
			}
			conflicts = append(conflicts, Conflict{
				Type:       ConflictHeadway,
				Severity:   "warning",
				StationID:  deps[i].StationID,
				Time:       deps[i+1].Time,
				Message:    fmt.Sprintf("线路 %d 在车站 %d 的发车间隔 %d 分钟，小于最小间隔 %d 分钟", deps[i].RouteID, deps[i].StationID, int(gap/time.Minute), int(headway/time.Minute)),
				Departures: []model.DepartureID{deps[i].ID, deps[i+1].ID},
			})
		}
	}
	return conflicts
}

func (d *ConflictDetector) dwellTime(s *model.Schedule) time.Duration {
	if d.config.DwellTime > 0 {
		return d.config.DwellTime
	}
	return s.Configuration.DwellTime
}

// groupByTrain 按列车分组已分配的发车
func groupByTrain(s *model.Schedule) map[model.TrainID][]*model.Departure {
	result := make(map[model.TrainID][]*model.Departure)
	for i := range s.Departures {
		dep := &s.Departures[i]
		if dep.IsAssigned() {
			result[dep.Train.ID] = append(result[dep.Train.ID], dep)
		}
	}
	return result
}

func trainMap(s *model.Schedule) map[model.TrainID]*model.Train {
	result := make(map[model.TrainID]*model.Train, len(s.Trains))
	for i := range s.Trains {
		result[s.Trains[i].ID] = &s.Trains[i]
	}
	return result
}

// sortConflicts 按时间排序，同一时刻再按类型和列车排序
func sortConflicts(conflicts []Conflict) {
	sort.SliceStable(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.TrainID != b.TrainID {
			return a.TrainID < b.TrainID
		}
		if a.StationID != b.StationID {
			return a.StationID < b.StationID
		}
		return len(a.Departures) > 0 && len(b.Departures) > 0 && a.Departures[0] < b.Departures[0]
	})
}

// Summary 冲突统计
type Summary struct {
	Total    int                  `json:"total"`
	Errors   int                  `json:"errors"`
	Warnings int                  `json:"warnings"`
	ByType   map[ConflictType]int `json:"by_type"`
}

// Summarize 统计冲突
func Summarize(conflicts []Conflict) Summary {
	s := Summary{Total: len(conflicts), ByType: make(map[ConflictType]int)}
	for _, c := range conflicts {
		if c.Severity == "error" {
			s.Errors++
		} else {
			s.Warnings++
		}
		s.ByType[c.Type]++
	}
	return s
}

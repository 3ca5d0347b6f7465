package constraint

import (
	"fmt"

	"github.com/paiban/rollingstock/pkg/model"
	"github.com/paiban/rollingstock/pkg/scheduler/score"
)

// Move 对分配的一次可逆修改
// Do 执行修改并返回能精确撤销它的修改
type Move interface {
	Do(d *Director) Move
}

// Director 增量评分器
// 持有工作方案，SetTrain 是唯一的修改入口，得分在每次修改后保持最新
type Director struct {
	ctx      *Context
	schedule *model.Schedule

	departureCs []DepartureConstraint
	pairCs      []PairConstraint
	trainCs     []TrainConstraint
	globalCs    []Constraint // 未声明增量形态的约束，每次修改后完整重算

	groups      map[model.TrainID][]int // 列车 -> 发车下标
	trainScores map[model.TrainID]score.Score
	globalScore score.Score
	score       score.Score
}

// NewDirector 创建增量评分器
// 直接修改传入方案的分配，调用方需要自行复制
func NewDirector(m *Manager, schedule *model.Schedule) *Director {
	d := &Director{
		ctx:      NewContext(schedule),
		schedule: schedule,
	}

	for _, c := range m.GetAll() {
		shaped := false
		if dc, ok := c.(DepartureConstraint); ok {
			d.departureCs = append(d.departureCs, dc)
			shaped = true
		}
		if pc, ok := c.(PairConstraint); ok {
			d.pairCs = append(d.pairCs, pc)
			shaped = true
		}
		if tc, ok := c.(TrainConstraint); ok {
			d.trainCs = append(d.trainCs, tc)
			shaped = true
		}
		if !shaped {
			d.globalCs = append(d.globalCs, c)
		}
	}

	for i := range schedule.Departures {
		ref := schedule.Departures[i].Train
		if ref.Valid && !d.ctx.InFleet(ref.ID) {
			panic(fmt.Sprintf("constraint: departure %d references train %d outside the fleet",
				schedule.Departures[i].ID, ref.ID))
		}
	}

	d.Recompute()
	return d
}

// Context 评分上下文
func (d *Director) Context() *Context {
	return d.ctx
}

// Schedule 工作方案（仅供读取）
func (d *Director) Schedule() *model.Schedule {
	return d.schedule
}

// Len 发车数量
func (d *Director) Len() int {
	return len(d.schedule.Departures)
}

// Trains 车队
func (d *Director) Trains() []model.Train {
	return d.schedule.Trains
}

// Departure 获取发车
func (d *Director) Departure(i int) *model.Departure {
	d.checkIndex(i)
	return &d.schedule.Departures[i]
}

// TrainOf 获取发车当前分配的列车
func (d *Director) TrainOf(i int) model.TrainRef {
	d.checkIndex(i)
	return d.schedule.Departures[i].Train
}

// Score 当前得分
func (d *Director) Score() score.Score {
	return d.score
}

// SetTrain 修改发车的列车分配并增量更新得分
// 只涉及该发车、新旧列车上的其他发车以及这两列车的整体约束
func (d *Director) SetTrain(i int, ref model.TrainRef) {
	d.checkIndex(i)
	if ref.Valid && !d.ctx.InFleet(ref.ID) {
		panic(fmt.Sprintf("constraint: train %d is not in the fleet", ref.ID))
	}

	dep := &d.schedule.Departures[i]
	old := dep.Train
	if old == ref {
		return
	}

	if old.Valid {
		d.score = d.score.Sub(d.unary(dep))
		d.score = d.score.Sub(d.pairsAgainst(i, old.ID))
		d.removeFromGroup(old.ID, i)
	}

	dep.Train = ref

	if ref.Valid {
		d.score = d.score.Add(d.unary(dep))
		d.score = d.score.Add(d.pairsAgainst(i, ref.ID))
		d.groups[ref.ID] = append(d.groups[ref.ID], i)
	}

	if old.Valid {
		d.refreshTrain(old.ID)
	}
	if ref.Valid {
		d.refreshTrain(ref.ID)
	}
	d.refreshGlobal()
}

// EvaluateDelta 执行修改、读取得分变化后撤销
func (d *Director) EvaluateDelta(m Move) score.Score {
	before := d.score
	undo := m.Do(d)
	delta := d.score.Sub(before)
	undo.Do(d)
	return delta
}

// PairScore 发车 i 分配给 train 时与该列车其他发车的成对得分，不修改分配
func (d *Director) PairScore(i int, train model.TrainID) score.Score {
	d.checkIndex(i)
	return d.pairsAgainst(i, train)
}

// Apply 执行修改，返回撤销修改
func (d *Director) Apply(m Move) Move {
	return m.Do(d)
}

// Recompute 完整重算得分并重建内部索引
func (d *Director) Recompute() score.Score {
	d.groups = make(map[model.TrainID][]int, len(d.schedule.Trains))
	d.trainScores = make(map[model.TrainID]score.Score, len(d.schedule.Trains))

	var total score.Score
	for i := range d.schedule.Departures {
		dep := &d.schedule.Departures[i]
		if !dep.IsAssigned() {
			continue
		}
		total = total.Add(d.unary(dep))
		total = total.Add(d.pairsAgainst(i, dep.Train.ID))
		d.groups[dep.Train.ID] = append(d.groups[dep.Train.ID], i)
	}

	for _, t := range d.schedule.Trains {
		s := d.scoreTrain(t.ID)
		d.trainScores[t.ID] = s
		total = total.Add(s)
	}

	d.globalScore = d.scoreGlobal()
	d.score = total.Add(d.globalScore)
	return d.score
}

// Snapshot 复制当前分配，生成带得分的新方案
func (d *Director) Snapshot(status model.SolverStatus) *model.Schedule {
	s := d.schedule.Clone()
	s.Score = d.score
	s.SolverStatus = status
	return s
}

func (d *Director) checkIndex(i int) {
	if i < 0 || i >= len(d.schedule.Departures) {
		panic(fmt.Sprintf("constraint: departure index %d out of range [0,%d)", i, len(d.schedule.Departures)))
	}
}

func (d *Director) unary(dep *model.Departure) score.Score {
	var s score.Score
	for _, c := range d.departureCs {
		s = s.Add(c.ScoreDeparture(d.ctx, dep))
	}
	return s
}

// pairsAgainst 发车 i 与列车当前组内其他发车的成对得分
func (d *Director) pairsAgainst(i int, train model.TrainID) score.Score {
	var s score.Score
	if len(d.pairCs) == 0 {
		return s
	}
	dep := &d.schedule.Departures[i]
	for _, j := range d.groups[train] {
		if j == i {
			continue
		}
		other := &d.schedule.Departures[j]
		for _, c := range d.pairCs {
			s = s.Add(c.ScorePair(d.ctx, dep, other))
		}
	}
	return s
}

func (d *Director) removeFromGroup(train model.TrainID, i int) {
	g := d.groups[train]
	for k, j := range g {
		if j == i {
			g[k] = g[len(g)-1]
			d.groups[train] = g[:len(g)-1]
			return
		}
	}
}

func (d *Director) scoreTrain(train model.TrainID) score.Score {
	var s score.Score
	if len(d.trainCs) == 0 {
		return s
	}
	g := d.groups[train]
	deps := make([]*model.Departure, len(g))
	for k, j := range g {
		deps[k] = &d.schedule.Departures[j]
	}
	for _, c := range d.trainCs {
		s = s.Add(c.ScoreTrain(d.ctx, train, deps))
	}
	return s
}

func (d *Director) refreshTrain(train model.TrainID) {
	if len(d.trainCs) == 0 {
		return
	}
	next := d.scoreTrain(train)
	d.score = d.score.Sub(d.trainScores[train]).Add(next)
	d.trainScores[train] = next
}

func (d *Director) scoreGlobal() score.Score {
	var s score.Score
	for _, c := range d.globalCs {
		cs, _ := c.Evaluate(d.ctx)
		s = s.Add(cs)
	}
	return s
}

func (d *Director) refreshGlobal() {
	if len(d.globalCs) == 0 {
		return
	}
	next := d.scoreGlobal()
	d.score = d.score.Sub(d.globalScore).Add(next)
	d.globalScore = next
}

package optimizer

import (
	"math"
	"math/rand/v2"

	"github.com/paiban/rollingstock/pkg/scheduler/score"
)

// Acceptor 接受准则
type Acceptor interface {
	// Name 准则名称
	Name() string

	// Accept 是否接受得分变化为 delta 的移动
	Accept(delta score.Score, rng *rand.Rand) bool

	// StepEnded 每步结束时调用
	StepEnded()
}

const (
	AcceptorHillClimbing       = "hill_climbing"
	AcceptorSimulatedAnnealing = "simulated_annealing"
)

// HillClimbing 爬山：只接受不变差的移动
type HillClimbing struct{}

// Name 准则名称
func (HillClimbing) Name() string { return AcceptorHillClimbing }

// Accept 不变差即接受
func (HillClimbing) Accept(delta score.Score, _ *rand.Rand) bool {
	return !delta.WorseThan(score.Zero)
}

// StepEnded 无状态
func (HillClimbing) StepEnded() {}

// SimulatedAnnealing 模拟退火
// 更差的移动以 exp(scalar(delta)/T) 的概率接受，温度每步按几何级数下降
type SimulatedAnnealing struct {
	temperature float64
	coolingRate float64
	minTemp     float64
	hardWeight  int64
}

// NewSimulatedAnnealing 创建模拟退火准则
func NewSimulatedAnnealing(initialTemp, coolingRate float64, hardWeight int64) *SimulatedAnnealing {
	return &SimulatedAnnealing{
		temperature: initialTemp,
		coolingRate: coolingRate,
		minTemp:     1e-6,
		hardWeight:  hardWeight,
	}
}

// Name 准则名称
func (a *SimulatedAnnealing) Name() string { return AcceptorSimulatedAnnealing }

// Temperature 当前温度
func (a *SimulatedAnnealing) Temperature() float64 { return a.temperature }

// Accept 模拟退火接受准则
func (a *SimulatedAnnealing) Accept(delta score.Score, rng *rand.Rand) bool {
	if !delta.WorseThan(score.Zero) {
		return true
	}
	return rng.Float64() < boltzmannProbability(delta.Scalar(a.hardWeight), a.temperature)
}

// StepEnded 降温
func (a *SimulatedAnnealing) StepEnded() {
	a.temperature *= a.coolingRate
	if a.temperature < a.minTemp {
		a.temperature = a.minTemp
	}
}

// boltzmannProbability 计算模拟退火的接受概率
// delta: 得分变化（负数表示变差）
// temperature: 当前温度
func boltzmannProbability(delta, temperature float64) float64 {
	if delta >= 0 {
		return 1.0 // 更优解总是接受
	}
	if temperature <= 0 {
		return 0.0 // 温度为0时不接受更差的解
	}
	return math.Exp(delta / temperature)
}

// NewAcceptor 按名称创建接受准则，未知名称使用模拟退火
func NewAcceptor(cfg *Config) Acceptor {
	if cfg.Acceptor == AcceptorHillClimbing {
		return HillClimbing{}
	}
	return NewSimulatedAnnealing(cfg.InitialTemp, cfg.CoolingRate, cfg.HardWeight)
}

// Package demo 生成演示用的车辆周转问题
package demo

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/paiban/rollingstock/pkg/errors"
	"github.com/paiban/rollingstock/pkg/model"
)

// DefaultSeed 默认随机种子
const DefaultSeed uint64 = 37

// Dataset 数据集规模
type Dataset string

const (
	DatasetSmall   Dataset = "small"
	DatasetDefault Dataset = "default"
	DatasetLarge   Dataset = "large"
)

// datasetSpec 时间范围与发车间隔
type datasetSpec struct {
	startHour, endHour, interval int
}

var datasets = map[Dataset]datasetSpec{
	DatasetSmall:   {8, 18, 2},
	DatasetDefault: {6, 22, 2},
	DatasetLarge:   {6, 22, 1},
}

// ParseDataset 解析数据集名称，空字符串为默认
func ParseDataset(name string) (Dataset, error) {
	ds := Dataset(strings.ToLower(strings.TrimSpace(name)))
	if ds == "" {
		return DatasetDefault, nil
	}
	if _, ok := datasets[ds]; !ok {
		return "", errors.InvalidInput("dataset", fmt.Sprintf("未知数据集 %q，可选 small/default/large", name))
	}
	return ds, nil
}

// Datasets 全部数据集
func Datasets() []Dataset {
	return []Dataset{DatasetSmall, DatasetDefault, DatasetLarge}
}

// Generator 演示数据生成器
type Generator struct {
	seed uint64
}

// NewGenerator 创建生成器
func NewGenerator(seed uint64) *Generator {
	return &Generator{seed: seed}
}

// Generate 生成指定规模的问题，相同种子结果相同
func (g *Generator) Generate(ds Dataset) *model.Schedule {
	spec, ok := datasets[ds]
	if !ok {
		spec = datasets[DatasetDefault]
	}
	rng := rand.New(rand.NewPCG(g.seed, g.seed))

	trainCount := 7
	if spec.interval == 1 {
		trainCount = 12
	}

	stations := stations()
	routes := routes()
	trains := trains(trainCount)
	demands := demands(rng, routes)

	return &model.Schedule{
		Stations: stations,
		Routes:   routes,
		Trains:   trains,
		Depots:   depots(trains),
		Demands:  demands,
		Configuration: model.Configuration{
			MinHeadway: 5 * time.Minute,
			DwellTime:  2 * time.Minute,
		},
		Departures:   departures(routes, demands, spec),
		SolverStatus: model.SolverNotSolving,
	}
}

// Default 默认规模、默认种子
func Default() *model.Schedule {
	return NewGenerator(DefaultSeed).Generate(DatasetDefault)
}

func stations() []model.Station {
	return []model.Station{
		{ID: 1, Name: "Rīga", Location: model.GeoCoordinates{Latitude: 56.9496, Longitude: 24.1052}, Neighbors: []model.StationID{2, 3, 4}},
		{ID: 2, Name: "Jelgava", Location: model.GeoCoordinates{Latitude: 56.6505, Longitude: 23.7226}, Neighbors: []model.StationID{1, 5}},
		{ID: 3, Name: "Jūrmala", Location: model.GeoCoordinates{Latitude: 56.9682, Longitude: 23.7746}, Neighbors: []model.StationID{1}},
		{ID: 4, Name: "Valmiera", Location: model.GeoCoordinates{Latitude: 57.5383, Longitude: 25.4266}, Neighbors: []model.StationID{1, 6}},
		{ID: 5, Name: "Liepāja", Location: model.GeoCoordinates{Latitude: 56.5046, Longitude: 21.0114}, Neighbors: []model.StationID{2}},
		{ID: 6, Name: "Cēsis", Location: model.GeoCoordinates{Latitude: 57.3119, Longitude: 25.2673}, Neighbors: []model.StationID{4, 7}},
		{ID: 7, Name: "Sigulda", Location: model.GeoCoordinates{Latitude: 57.1536, Longitude: 24.8536}, Neighbors: []model.StationID{6, 1}},
		{ID: 8, Name: "Ogre", Location: model.GeoCoordinates{Latitude: 56.8162, Longitude: 24.6041}, Neighbors: []model.StationID{1}},
	}
}

func routes() []model.Route {
	return []model.Route{
		{ID: 1, Name: "Rīga-Liepāja", Stations: []model.StationID{1, 2, 5}},
		{ID: 2, Name: "Rīga-Jūrmala", Stations: []model.StationID{1, 3}},
		{ID: 3, Name: "Rīga-Valmiera", Stations: []model.StationID{1, 7, 6, 4}},
		{ID: 4, Name: "Rīga-Ogre", Stations: []model.StationID{1, 8}},
	}
}

// trains 按三档容量分配：小 100 起，中 200 起，大 280 起，每档递增 10
func trains(count int) []model.Train {
	result := make([]model.Train, count)
	for i := 0; i < count; i++ {
		var capacity int
		switch {
		case i < count/3:
			capacity = 100 + i*10
		case i < 2*count/3:
			capacity = 200 + (i-count/3)*10
		default:
			capacity = 280 + (i-2*count/3)*10
		}
		result[i] = model.Train{ID: model.TrainID(i + 1), Capacity: capacity}
	}
	return result
}

// depots 每三列车一列停放在 Jelgava，其余在 Rīga
func depots(trains []model.Train) []model.Depot {
	result := make([]model.Depot, len(trains))
	for i, t := range trains {
		station := model.StationID(1)
		if i%3 == 0 {
			station = 2
		}
		result[i] = model.Depot{ID: model.DepotID(i + 1), TrainID: t.ID, StationID: station}
	}
	return result
}

func demands(rng *rand.Rand, routes []model.Route) []model.PassengerDemand {
	var result []model.PassengerDemand
	id := model.DemandID(1)
	for _, r := range routes {
		for _, st := range r.Stations {
			for hour := 6; hour <= 22; hour++ {
				result = append(result, model.PassengerDemand{
					ID:         id,
					StationID:  st,
					RouteID:    r.ID,
					Hour:       hour,
					Passengers: hourlyDemand(rng, hour),
				})
				id++
			}
		}
	}
	return result
}

// hourlyDemand 早晚高峰客流更大
func hourlyDemand(rng *rand.Rand, hour int) int {
	switch {
	case hour >= 7 && hour <= 9:
		return 50 + rng.IntN(100)
	case hour >= 17 && hour <= 19:
		return 40 + rng.IntN(80)
	case hour >= 10 && hour <= 16:
		return 20 + rng.IntN(40)
	default:
		return 10 + rng.IntN(20)
	}
}

// routeOffset 各线路错开发车的分钟数
func routeOffset(id model.RouteID) int {
	switch id {
	case 2:
		return 15
	case 3:
		return 30
	case 4:
		return 45
	default:
		return 0
	}
}

type demandKey struct {
	station model.StationID
	route   model.RouteID
	hour    int
}

// departures 每条线路按间隔发车，相邻站之间行驶 30 分钟
// 乘客数取同站同线路同一小时的需求，没有则为 0
func departures(routes []model.Route, demands []model.PassengerDemand, spec datasetSpec) []model.Departure {
	lookup := make(map[demandKey]int, len(demands))
	for _, d := range demands {
		k := demandKey{d.StationID, d.RouteID, d.Hour}
		if _, ok := lookup[k]; !ok {
			lookup[k] = d.Passengers
		}
	}

	var result []model.Departure
	id := model.DepartureID(1)
	for _, r := range routes {
		offset := routeOffset(r.ID)
		for hour := spec.startHour; hour <= spec.endHour; hour += spec.interval {
			start := model.NewClockTime(hour, offset)
			for idx, st := range r.Stations {
				at := start.Add(time.Duration(idx*30) * time.Minute)
				result = append(result, model.Departure{
					ID:         id,
					StationID:  st,
					RouteID:    r.ID,
					Time:       at,
					Passengers: lookup[demandKey{st, r.ID, at.Hour()}],
					Train:      model.Unassigned(),
				})
				id++
			}
		}
	}
	return result
}

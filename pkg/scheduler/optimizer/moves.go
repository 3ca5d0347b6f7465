// Package optimizer 提供局部搜索优化算法
package optimizer

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"github.com/paiban/rollingstock/pkg/model"
	"github.com/paiban/rollingstock/pkg/scheduler/constraint"
)

// MoveKind 邻域移动类型
type MoveKind string

const (
	MoveReassign MoveKind = "reassign" // 把发车改派给另一列车
	MoveSwap     MoveKind = "swap"     // 交换两个发车的列车
)

// Move 邻域移动操作
// Do 返回的撤销移动再执行一次即可精确恢复分配与得分
type Move interface {
	constraint.Move

	// Kind 返回移动类型
	Kind() MoveKind

	// IsDoable 移动在当前分配下是否有意义
	IsDoable(d *constraint.Director) bool

	// Key 禁忌表键
	Key() uint64

	String() string
}

// ReassignMove 改派移动
type ReassignMove struct {
	Departure int
	Train     model.TrainRef
}

// Kind 返回移动类型
func (m ReassignMove) Kind() MoveKind { return MoveReassign }

// IsDoable 目标列车不同于当前列车且属于车队
func (m ReassignMove) IsDoable(d *constraint.Director) bool {
	if m.Departure < 0 || m.Departure >= d.Len() {
		return false
	}
	if m.Train.Valid && !d.Context().InFleet(m.Train.ID) {
		return false
	}
	return d.TrainOf(m.Departure) != m.Train
}

// Do 执行移动，返回撤销移动
func (m ReassignMove) Do(d *constraint.Director) constraint.Move {
	undo := ReassignMove{Departure: m.Departure, Train: d.TrainOf(m.Departure)}
	d.SetTrain(m.Departure, m.Train)
	return undo
}

// Key 禁忌表键
func (m ReassignMove) Key() uint64 {
	var id int64 = -1
	if m.Train.Valid {
		id = int64(m.Train.ID)
	}
	return hashMove(MoveReassign, int64(m.Departure), id)
}

func (m ReassignMove) String() string {
	return fmt.Sprintf("reassign(%d -> %s)", m.Departure, m.Train)
}

// SwapMove 交换移动
type SwapMove struct {
	Left  int
	Right int
}

// Kind 返回移动类型
func (m SwapMove) Kind() MoveKind { return MoveSwap }

// IsDoable 两个发车不同且分配的列车不同
func (m SwapMove) IsDoable(d *constraint.Director) bool {
	if m.Left == m.Right || m.Left < 0 || m.Right < 0 || m.Left >= d.Len() || m.Right >= d.Len() {
		return false
	}
	return d.TrainOf(m.Left) != d.TrainOf(m.Right)
}

// Do 执行移动，交换是自身的逆
func (m SwapMove) Do(d *constraint.Director) constraint.Move {
	left, right := d.TrainOf(m.Left), d.TrainOf(m.Right)
	d.SetTrain(m.Left, right)
	d.SetTrain(m.Right, left)
	return m
}

// Key 禁忌表键，与左右顺序无关
func (m SwapMove) Key() uint64 {
	a, b := m.Left, m.Right
	if a > b {
		a, b = b, a
	}
	return hashMove(MoveSwap, int64(a), int64(b))
}

func (m SwapMove) String() string {
	return fmt.Sprintf("swap(%d <-> %d)", m.Left, m.Right)
}

// hashMove 计算移动的哈希 (使用FNV-1a算法)
func hashMove(kind MoveKind, a, b int64) uint64 {
	h := fnv.New64a()
	h.Write([]byte(kind))
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(a))
	binary.LittleEndian.PutUint64(buf[8:], uint64(b))
	h.Write(buf[:])
	return h.Sum64()
}

// Package score 定义硬/软两级评分
package score

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Score 两级得分
// Hard 为硬约束得分（惩罚为负数，0 表示可行），Soft 为软约束得分（越大越好）
type Score struct {
	Hard int64 `json:"hard"`
	Soft int64 `json:"soft"`
}

// Zero 零分
var Zero = Score{}

// Of 创建得分
func Of(hard, soft int64) Score {
	return Score{Hard: hard, Soft: soft}
}

// OfHard 只有硬约束部分的得分
func OfHard(hard int64) Score {
	return Score{Hard: hard}
}

// OfSoft 只有软约束部分的得分
func OfSoft(soft int64) Score {
	return Score{Soft: soft}
}

// Add 相加
func (s Score) Add(o Score) Score {
	return Score{Hard: s.Hard + o.Hard, Soft: s.Soft + o.Soft}
}

// Sub 相减
func (s Score) Sub(o Score) Score {
	return Score{Hard: s.Hard - o.Hard, Soft: s.Soft - o.Soft}
}

// Negate 取反
func (s Score) Negate() Score {
	return Score{Hard: -s.Hard, Soft: -s.Soft}
}

// IsZero 是否为零分
func (s Score) IsZero() bool {
	return s.Hard == 0 && s.Soft == 0
}

// IsFeasible 硬约束全部满足
func (s Score) IsFeasible() bool {
	return s.Hard >= 0
}

// Compare 字典序比较：先硬后软
// 返回 -1 表示 s 更差，1 表示 s 更好，0 表示相同
func (s Score) Compare(o Score) int {
	switch {
	case s.Hard < o.Hard:
		return -1
	case s.Hard > o.Hard:
		return 1
	case s.Soft < o.Soft:
		return -1
	case s.Soft > o.Soft:
		return 1
	default:
		return 0
	}
}

// BetterThan 严格优于
func (s Score) BetterThan(o Score) bool {
	return s.Compare(o) > 0
}

// WorseThan 严格劣于
func (s Score) WorseThan(o Score) bool {
	return s.Compare(o) < 0
}

// Scalar 将两级得分折算为单一数值（用于模拟退火的接受概率）
func (s Score) Scalar(hardWeight int64) float64 {
	return float64(s.Hard*hardWeight + s.Soft)
}

// String 格式化为 "-3hard/120soft"
func (s Score) String() string {
	return fmt.Sprintf("%dhard/%dsoft", s.Hard, s.Soft)
}

// Parse 解析 "-3hard/120soft" 格式
func Parse(text string) (Score, error) {
	parts := strings.Split(strings.TrimSpace(text), "/")
	if len(parts) != 2 || !strings.HasSuffix(parts[0], "hard") || !strings.HasSuffix(parts[1], "soft") {
		return Zero, fmt.Errorf("无效的得分格式: %q", text)
	}
	hard, err := strconv.ParseInt(strings.TrimSuffix(parts[0], "hard"), 10, 64)
	if err != nil {
		return Zero, fmt.Errorf("无效的硬约束得分: %w", err)
	}
	soft, err := strconv.ParseInt(strings.TrimSuffix(parts[1], "soft"), 10, 64)
	if err != nil {
		return Zero, fmt.Errorf("无效的软约束得分: %w", err)
	}
	return Score{Hard: hard, Soft: soft}, nil
}

// MarshalText 实现 encoding.TextMarshaler，便于作为 map 键或日志字段
func (s Score) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// scoreJSON 用于 JSON 输出的结构
type scoreJSON struct {
	Hard     int64  `json:"hard"`
	Soft     int64  `json:"soft"`
	Feasible bool   `json:"feasible"`
	Text     string `json:"text"`
}

// MarshalJSON 输出结构化得分
func (s Score) MarshalJSON() ([]byte, error) {
	return json.Marshal(scoreJSON{Hard: s.Hard, Soft: s.Soft, Feasible: s.IsFeasible(), Text: s.String()})
}

// UnmarshalJSON 接受结构化对象或文本形式
func (s *Score) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		parsed, err := Parse(text)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	}
	var raw scoreJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Hard, s.Soft = raw.Hard, raw.Soft
	return nil
}

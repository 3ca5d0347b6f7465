package score

import (
	"encoding/json"
	"testing"
)

func TestScore_Compare(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Score
		expected int
	}{
		{"硬约束优先", Of(0, -100), Of(-1, 1000), 1},
		{"硬约束相同比较软约束", Of(-2, 10), Of(-2, 20), -1},
		{"完全相同", Of(-1, 5), Of(-1, 5), 0},
		{"零分优于负硬分", Zero, Of(-1, 0), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Compare(tt.b); got != tt.expected {
				t.Errorf("Compare() = %d, expected %d", got, tt.expected)
			}
		})
	}
}

func TestScore_Arithmetic(t *testing.T) {
	a := Of(-3, 50)
	b := Of(-1, -10)

	if got := a.Add(b); got != Of(-4, 40) {
		t.Errorf("Add() = %v", got)
	}
	if got := a.Sub(b); got != Of(-2, 60) {
		t.Errorf("Sub() = %v", got)
	}
	if got := a.Add(b).Sub(b); got != a {
		t.Errorf("Add then Sub should restore, got %v", got)
	}
	if got := a.Negate(); got != Of(3, -50) {
		t.Errorf("Negate() = %v", got)
	}
}

func TestScore_Feasible(t *testing.T) {
	if !Of(0, -10).IsFeasible() {
		t.Error("hard=0 应为可行")
	}
	if Of(-1, 100).IsFeasible() {
		t.Error("hard<0 应为不可行")
	}
}

func TestParse(t *testing.T) {
	s, err := Parse("-3hard/120soft")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if s != Of(-3, 120) {
		t.Errorf("Parse() = %v", s)
	}
	if s.String() != "-3hard/120soft" {
		t.Errorf("String() = %s", s.String())
	}

	for _, bad := range []string{"", "3hard", "xhard/1soft", "1soft/1hard"} {
		if _, err := Parse(bad); err == nil {
			t.Errorf("Parse(%q) 应返回错误", bad)
		}
	}
}

func TestScore_JSON(t *testing.T) {
	data, err := json.Marshal(Of(-2, 30))
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}

	var decoded Score
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if decoded != Of(-2, 30) {
		t.Errorf("decoded = %v", decoded)
	}

	if err := json.Unmarshal([]byte(`"0hard/7soft"`), &decoded); err != nil {
		t.Fatalf("Unmarshal text error = %v", err)
	}
	if decoded != Of(0, 7) {
		t.Errorf("decoded text = %v", decoded)
	}
}

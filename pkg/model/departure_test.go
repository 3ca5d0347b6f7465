package model

import (
	"encoding/json"
	"testing"
)

func TestTrainRef_JSON(t *testing.T) {
	tests := []struct {
		name string
		ref  TrainRef
		json string
	}{
		{"未分配", Unassigned(), "null"},
		{"已分配", AssignTrain(7), "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.ref)
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != tt.json {
				t.Errorf("Marshal = %s, expected %s", data, tt.json)
			}

			var decoded TrainRef
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatal(err)
			}
			if decoded != tt.ref {
				t.Errorf("decoded = %+v", decoded)
			}
		})
	}
}

func TestDeparture_JSON(t *testing.T) {
	input := `{"id":4,"station_id":1,"route_id":2,"time":"08:15","passengers":37,"train":null}`

	var d Departure
	if err := json.Unmarshal([]byte(input), &d); err != nil {
		t.Fatal(err)
	}
	if d.IsAssigned() {
		t.Error("train 为 null 时应为未分配")
	}
	if d.Time != NewClockTime(8, 15) || d.Passengers != 37 {
		t.Errorf("decoded = %+v", d)
	}

	d.Train = AssignTrain(3)
	if !d.Train.Is(3) || d.Train.Is(4) {
		t.Error("Is() 结果错误")
	}
}

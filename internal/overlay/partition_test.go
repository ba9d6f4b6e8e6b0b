package overlay

import (
	"reflect"
	"testing"

	"github.com/jtrovato/jetson-inference/internal/detection"
)

func confs(classes ...int) []detection.Confidence {
	out := make([]detection.Confidence, len(classes))
	for i, c := range classes {
		out[i] = detection.Confidence{Prob: 0.9, Class: c}
	}
	return out
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name    string
		classes []int
		count   int
		want    []Run
	}{
		{"empty", nil, 0, nil},
		{"zero count", []int{0, 1}, 0, nil},
		{"single box", []int{0}, 1, []Run{{0, 1, 0}}},
		{"two classes", []int{0, 0, 1}, 3, []Run{{0, 2, 0}, {2, 1, 1}}},
		{"single run", []int{3, 3, 3}, 3, []Run{{0, 3, 3}}},
		{"leading non-zero class", []int{2, 5}, 2, []Run{{0, 1, 2}, {1, 1, 5}}},
		{"three runs", []int{0, 1, 1, 1, 4, 4}, 6, []Run{{0, 1, 0}, {1, 3, 1}, {4, 2, 4}}},
		{"count below length", []int{0, 0, 1, 1}, 3, []Run{{0, 2, 0}, {2, 1, 1}}},
		{"count above length", []int{1, 1}, 10, []Run{{0, 2, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Partition(confs(tt.classes...), tt.count)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Partition: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPartition_CoversEveryDetectionOnce(t *testing.T) {
	classes := []int{0, 0, 0, 2, 2, 7, 9, 9, 9, 9}
	runs := Partition(confs(classes...), len(classes))

	next := 0
	for i, r := range runs {
		if r.Start != next {
			t.Fatalf("run %d starts at %d, want %d", i, r.Start, next)
		}
		for j := r.Start; j < r.End(); j++ {
			if classes[j] != r.Class {
				t.Errorf("run %d contains class %d at %d", i, classes[j], j)
			}
		}
		if i > 0 && runs[i-1].Class == r.Class {
			t.Errorf("runs %d and %d should have been merged", i-1, i)
		}
		next = r.End()
	}
	if next != len(classes) {
		t.Errorf("runs cover %d detections, want %d", next, len(classes))
	}
}

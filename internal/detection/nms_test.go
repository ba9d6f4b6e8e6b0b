package detection

import "testing"

func det(x0, y0, x1, y1, prob float32, class int) Detection {
	return Detection{
		Box:        Box{X0: x0, Y0: y0, X1: x1, Y1: y1},
		Confidence: Confidence{Prob: prob, Class: class},
	}
}

func TestIOU(t *testing.T) {
	tests := []struct {
		name string
		a, b Box
		want float32
	}{
		{"identical", Box{0, 0, 10, 10}, Box{0, 0, 10, 10}, 1},
		{"disjoint", Box{0, 0, 10, 10}, Box{20, 20, 30, 30}, 0},
		{"touching", Box{0, 0, 10, 10}, Box{10, 0, 20, 10}, 0},
		{"half", Box{0, 0, 10, 10}, Box{5, 0, 15, 10}, 50.0 / 150.0},
		{"degenerate", Box{0, 0, 0, 0}, Box{0, 0, 0, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := iou(tt.a, tt.b)
			if d := got - tt.want; d > 1e-6 || d < -1e-6 {
				t.Errorf("iou: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNMS_SuppressesSameClass(t *testing.T) {
	dets := []Detection{
		det(0, 0, 10, 10, 0.6, 0),
		det(1, 1, 11, 11, 0.9, 0),
		det(50, 50, 60, 60, 0.7, 0),
	}

	kept := nms(dets, 0.5)

	if len(kept) != 2 {
		t.Fatalf("Expected 2 detections, got %d", len(kept))
	}
	if kept[0].Confidence.Prob != 0.9 || kept[1].Confidence.Prob != 0.7 {
		t.Errorf("Wrong detections kept: %+v", kept)
	}
}

func TestNMS_KeepsOtherClasses(t *testing.T) {
	dets := []Detection{
		det(0, 0, 10, 10, 0.8, 1),
		det(0, 0, 10, 10, 0.9, 0),
	}

	kept := nms(dets, 0.5)

	if len(kept) != 2 {
		t.Fatalf("Overlapping boxes of different classes should both be kept, got %d", len(kept))
	}
	if kept[0].Confidence.Class != 0 || kept[1].Confidence.Class != 1 {
		t.Errorf("Result should be ordered by class: %+v", kept)
	}
}

func TestNMS_Empty(t *testing.T) {
	if kept := nms(nil, 0.5); len(kept) != 0 {
		t.Errorf("Expected 0 detections, got %d", len(kept))
	}
}

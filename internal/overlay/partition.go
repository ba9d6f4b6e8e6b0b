package overlay

import "github.com/jtrovato/jetson-inference/internal/detection"

// Run is a contiguous range of detections sharing one class.
type Run struct {
	Start int // index of the first detection
	Count int // number of detections
	Class int
}

// End returns the index one past the last detection of the run.
func (r Run) End() int {
	return r.Start + r.Count
}

// Partition splits the first count confidences into maximal runs of equal
// class, in order. The first detection opens the first run whatever its
// class, and the last run is always included. A count of zero yields no runs.
func Partition(confs []detection.Confidence, count int) []Run {
	if count > len(confs) {
		count = len(confs)
	}
	if count <= 0 {
		return nil
	}

	runs := make([]Run, 0, 1)
	current := Run{Start: 0, Count: 1, Class: confs[0].Class}
	for i := 1; i < count; i++ {
		if confs[i].Class == current.Class {
			current.Count++
			continue
		}
		runs = append(runs, current)
		current = Run{Start: i, Count: 1, Class: confs[i].Class}
	}
	return append(runs, current)
}

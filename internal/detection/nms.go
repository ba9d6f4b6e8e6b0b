package detection

// nms performs class-aware Non-Maximum Suppression: a detection is dropped
// when it overlaps a higher-scoring detection of the same class by more than
// iouThreshold. The result is ordered by class, then by descending score.
func nms(dets []Detection, iouThreshold float32) []Detection {
	if len(dets) == 0 {
		return dets
	}

	sortByClass(dets)

	keep := make([]bool, len(dets))
	for i := range keep {
		keep[i] = true
	}

	for i := 0; i < len(dets); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(dets); j++ {
			if dets[j].Confidence.Class != dets[i].Confidence.Class {
				break
			}
			if !keep[j] {
				continue
			}
			if iou(dets[i].Box, dets[j].Box) > iouThreshold {
				keep[j] = false
			}
		}
	}

	result := make([]Detection, 0, len(dets))
	for i, d := range dets {
		if keep[i] {
			result = append(result, d)
		}
	}
	return result
}

// iou calculates Intersection over Union of two boxes
func iou(a, b Box) float32 {
	x0 := max32(a.X0, b.X0)
	y0 := max32(a.Y0, b.Y0)
	x1 := min32(a.X1, b.X1)
	y1 := min32(a.Y1, b.Y1)

	if x0 >= x1 || y0 >= y1 {
		return 0
	}

	intersection := (x1 - x0) * (y1 - y0)
	union := a.Area() + b.Area() - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

package detection

import (
	"errors"
	"fmt"
)

// MaxAllocElements bounds the number of float32 class scores a single
// OutputBuffers may hold.
const MaxAllocElements = 1 << 24

// ErrInvalidCapacity is returned when output buffers cannot be sized as requested.
var ErrInvalidCapacity = errors.New("invalid output buffer capacity")

// OutputBuffers receives the results of Detect. One set is allocated per
// worker and reused for every image that worker processes.
type OutputBuffers struct {
	// Boxes holds up to Capacity bounding boxes.
	Boxes []Box

	// Confidences is parallel to Boxes: the winning class and its probability.
	Confidences []Confidence

	// ClassScores holds Capacity rows of Classes scores each; row i is the
	// class distribution of box i.
	ClassScores []float32

	classes int
}

// AllocOutputBuffers sizes buffers for maxBoxes detections over classes classes.
func AllocOutputBuffers(maxBoxes, classes int) (*OutputBuffers, error) {
	if maxBoxes <= 0 || classes <= 0 {
		return nil, fmt.Errorf("%w: %d boxes x %d classes", ErrInvalidCapacity, maxBoxes, classes)
	}
	if maxBoxes > MaxAllocElements/classes {
		return nil, fmt.Errorf("%w: %d boxes x %d classes exceeds %d elements",
			ErrInvalidCapacity, maxBoxes, classes, MaxAllocElements)
	}

	return &OutputBuffers{
		Boxes:       make([]Box, maxBoxes),
		Confidences: make([]Confidence, maxBoxes),
		ClassScores: make([]float32, maxBoxes*classes),
		classes:     classes,
	}, nil
}

// AllocFor sizes buffers for the capacity reported by d.
func AllocFor(d Detector) (*OutputBuffers, error) {
	return AllocOutputBuffers(d.MaxBoundingBoxes(), d.NumClasses())
}

// Capacity returns the number of detections the buffers can hold.
func (b *OutputBuffers) Capacity() int {
	return len(b.Boxes)
}

// Classes returns the length of each ClassScores row.
func (b *OutputBuffers) Classes() int {
	return b.classes
}

// Scores returns the class distribution row of detection i.
func (b *OutputBuffers) Scores(i int) []float32 {
	return b.ClassScores[i*b.classes : (i+1)*b.classes]
}

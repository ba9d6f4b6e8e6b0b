package detection

import (
	"fmt"

	"github.com/disintegration/imaging"

	localimg "github.com/jtrovato/jetson-inference/internal/imaging"
)

// yoloLayout describes a YOLOv8-style output tensor of shape
// [1, 4+classes, anchors]: rows 0-3 are center x, center y, width and height
// in model input pixels, the remaining rows are per-class scores.
type yoloLayout struct {
	classes     int
	anchors     int
	inputWidth  int
	inputHeight int
}

// yoloStrides are the detection head strides of YOLOv8-style models.
var yoloStrides = []int{8, 16, 32}

// newYOLOLayout validates the output shape reported by the model. A dynamic
// batch dimension is run with batch 1; a dynamic anchor dimension is derived
// from the input size and the head strides.
func newYOLOLayout(outputShape []int64, inputWidth, inputHeight int) (yoloLayout, error) {
	if inputWidth <= 0 || inputHeight <= 0 {
		return yoloLayout{}, fmt.Errorf("invalid model input size %dx%d", inputWidth, inputHeight)
	}
	if len(outputShape) != 3 || outputShape[0] > 1 || outputShape[0] == 0 {
		return yoloLayout{}, fmt.Errorf("unsupported output shape %v, want [1 4+classes anchors]", outputShape)
	}
	if outputShape[1] <= 4 {
		return yoloLayout{}, fmt.Errorf("unsupported output shape %v: need at least one class", outputShape)
	}

	anchors := int(outputShape[2])
	if anchors <= 0 {
		anchors = yoloAnchors(inputWidth, inputHeight)
	}
	if anchors <= 0 {
		return yoloLayout{}, fmt.Errorf("cannot derive anchors of output %v for input %dx%d", outputShape, inputWidth, inputHeight)
	}

	return yoloLayout{
		classes:     int(outputShape[1]) - 4,
		anchors:     anchors,
		inputWidth:  inputWidth,
		inputHeight: inputHeight,
	}, nil
}

// yoloAnchors is the number of grid cells over all head strides.
func yoloAnchors(inputWidth, inputHeight int) int {
	n := 0
	for _, s := range yoloStrides {
		n += (inputWidth / s) * (inputHeight / s)
	}
	return n
}

func (l yoloLayout) outputSize() int {
	return (4 + l.classes) * l.anchors
}

// fillInput resizes img to the model input and writes it as planar RGB
// scaled to 0-1. dst must hold 3*inputWidth*inputHeight values.
func (l yoloLayout) fillInput(dst []float32, img *localimg.Buffer) {
	resized := imaging.Resize(img.ToNRGBA(255), l.inputWidth, l.inputHeight, imaging.Linear)

	plane := l.inputWidth * l.inputHeight
	for y := 0; y < l.inputHeight; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < l.inputWidth; x++ {
			i := y*l.inputWidth + x
			p := row[x*4 : x*4+3]
			dst[i] = float32(p[0]) / 255
			dst[plane+i] = float32(p[1]) / 255
			dst[2*plane+i] = float32(p[2]) / 255
		}
	}
}

// decode turns the raw output into detections scaled to an image of
// imgWidth x imgHeight. Anchors whose best class scores below threshold are
// skipped.
func (l yoloLayout) decode(output []float32, imgWidth, imgHeight int, threshold float32) []Detection {
	n := l.anchors
	sx := float32(imgWidth) / float32(l.inputWidth)
	sy := float32(imgHeight) / float32(l.inputHeight)

	dets := make([]Detection, 0)
	for i := 0; i < n; i++ {
		classID, prob := 0, float32(-1)
		for j := 0; j < l.classes; j++ {
			if s := output[(4+j)*n+i]; s > prob {
				prob = s
				classID = j
			}
		}
		if prob < threshold {
			continue
		}

		xc := output[i]
		yc := output[n+i]
		w := output[2*n+i]
		h := output[3*n+i]

		box := Box{
			X0: (xc - w/2) * sx,
			Y0: (yc - h/2) * sy,
			X1: (xc + w/2) * sx,
			Y1: (yc + h/2) * sy,
		}.Clamp(imgWidth, imgHeight)
		if box.Area() == 0 {
			continue
		}

		scores := make([]float32, l.classes)
		for j := range scores {
			scores[j] = output[(4+j)*n+i]
		}

		dets = append(dets, Detection{
			Box:        box,
			Confidence: Confidence{Prob: prob, Class: classID},
			Scores:     scores,
		})
	}
	return dets
}

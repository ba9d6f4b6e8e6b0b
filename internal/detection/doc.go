// Package detection defines the detector contract used by the batch runner and
// the backends that implement it.
//
// # Detector Contract
//
// A Detector is constructed once from a config.Detector, queried for its
// capacity (MaxBoundingBoxes, NumClasses), and then called once per image.
// Detect writes its results into caller-owned OutputBuffers and returns the
// number of entries written. The buffers are reused for every image of a
// batch: a detector overwrites entries [0, count) and never reads what a
// previous call left behind. When Detect fails the buffer contents are
// undefined.
//
// Results are ordered by class index (ascending) and, within a class, by
// confidence (descending). The overlay step relies on this grouping to draw
// each class in one call.
//
// # Backends
//
//   - onnx: YOLO-style ONNX models through onnxruntime (requires cgo and the
//     onnxruntime shared library).
//   - shapes: axis-aligned rectangles (class 0) and circles (class 1) found
//     with edge, contour and Hough analysis. Pure Go and deterministic.
//   - text: word boxes from Tesseract (requires cgo and libtesseract).
//
// # Coordinate System
//
// Boxes are (X0, Y0, X1, Y1) in image pixels with the origin at the top-left
// corner. X0/Y0 are inclusive, X1/Y1 exclusive.
package detection

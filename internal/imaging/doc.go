// Package imaging provides the floating-point image buffer the detectors and
// the overlay renderer operate on, plus the codec used to read and write it.
//
// # Pixel Layout
//
// A Buffer holds 4 channels per pixel (R, G, B, A) as float32, row-major, with
// no padding between rows. The pixel at (x, y) starts at index 4*(y*Width+x).
// Values produced by LoadRGBA are in the range 0-255.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner, X
// increasing rightward and Y increasing downward.
//
// # Saving
//
// SaveRGBA takes a scale factor: channel values in [0, maxValue] are mapped to
// 8-bit output, values outside the range are clamped. The output format is
// chosen from the file extension:
//   - ".png" -> PNG
//   - ".jpg", ".jpeg" -> JPEG (quality 95)
//   - ".bmp" -> BMP
//   - ".gif" -> GIF
//   - ".tif", ".tiff" -> TIFF
//   - anything else -> PNG
//
// # Thread Safety
//
// Buffers are not synchronized. A buffer is owned by the goroutine processing
// the image it was loaded from.
package imaging

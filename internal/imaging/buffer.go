package imaging

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Channels is the number of float32 values stored per pixel.
const Channels = 4

// Buffer is a decoded RGBA image with float32 channels.
type Buffer struct {
	// Pix holds Width*Height*Channels values in row-major RGBA order.
	Pix []float32

	// Width is the image width in pixels.
	Width int

	// Height is the image height in pixels.
	Height int
}

// NewBuffer allocates a zeroed buffer of the given dimensions.
func NewBuffer(width, height int) *Buffer {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Buffer{
		Pix:    make([]float32, width*height*Channels),
		Width:  width,
		Height: height,
	}
}

// FromImage converts any image.Image into a Buffer with values in 0-255.
//
// The source is converted to non-premultiplied RGBA first, so the alpha
// channel of the result is independent of the color channels.
func FromImage(img image.Image) *Buffer {
	nrgba := imaging.Clone(img)
	w, h := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()
	buf := NewBuffer(w, h)

	for y := 0; y < h; y++ {
		src := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*Channels]
		dst := buf.Pix[y*w*Channels : (y+1)*w*Channels]
		for i, v := range src {
			dst[i] = float32(v)
		}
	}
	return buf
}

// Offset returns the index in Pix of the red channel of pixel (x, y).
func (b *Buffer) Offset(x, y int) int {
	return (y*b.Width + x) * Channels
}

// RGBA returns the four channel values of pixel (x, y).
// No bounds checking is performed.
func (b *Buffer) RGBA(x, y int) (r, g, bl, a float32) {
	i := b.Offset(x, y)
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3]
}

// Bounds returns the buffer extent as an image.Rectangle anchored at the origin.
func (b *Buffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.Width, b.Height)
}

// ToNRGBA converts the buffer into an 8-bit image, mapping [0, maxValue] to
// [0, 255]. A non-positive maxValue is treated as 255.
func (b *Buffer) ToNRGBA(maxValue float32) *image.NRGBA {
	if maxValue <= 0 {
		maxValue = 255
	}
	scale := 255 / maxValue

	out := image.NewNRGBA(b.Bounds())
	for y := 0; y < b.Height; y++ {
		src := b.Pix[y*b.Width*Channels : (y+1)*b.Width*Channels]
		dst := out.Pix[y*out.Stride : y*out.Stride+b.Width*Channels]
		for i, v := range src {
			dst[i] = toByte(v * scale)
		}
	}
	return out
}

// CopyFromNRGBA overwrites the buffer with the pixels of img, which must have
// the same dimensions. The 8-bit values are rescaled to [0, maxValue].
func (b *Buffer) CopyFromNRGBA(img *image.NRGBA, maxValue float32) {
	if maxValue <= 0 {
		maxValue = 255
	}
	scale := maxValue / 255

	w := minInt(b.Width, img.Bounds().Dx())
	h := minInt(b.Height, img.Bounds().Dy())
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+w*Channels]
		dst := b.Pix[y*b.Width*Channels : y*b.Width*Channels+w*Channels]
		for i, v := range src {
			dst[i] = float32(v) * scale
		}
	}
}

func toByte(v float32) uint8 {
	if v <= 0 || math.IsNaN(float64(v)) {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

package overlay

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/jtrovato/jetson-inference/internal/detection"
	localimg "github.com/jtrovato/jetson-inference/internal/imaging"
)

var (
	// ErrEmptyRun is returned by DrawBoxes when called without boxes.
	ErrEmptyRun = errors.New("no boxes to draw")

	// ErrClassOutOfRange is returned by DrawBoxes for a class the detector
	// does not report.
	ErrClassOutOfRange = errors.New("class out of range")
)

// labelSize is the label font size in points.
const labelSize = 12

var labelFont *truetype.Font

func init() {
	var err error
	labelFont, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Options controls how boxes are drawn.
type Options struct {
	// LineWidth is the rectangle stroke width in pixels.
	LineWidth float64

	// Labels draws the class name above each box.
	Labels bool

	// Classes bounds the accepted class indices; 0 accepts any non-negative class.
	Classes int

	// ClassName names a class for its label. Nil labels boxes with the index.
	ClassName func(class int) string
}

// Canvas draws onto an image buffer. The 8-bit drawing surface is created on
// the first DrawBoxes call, so a canvas that never draws leaves its buffer
// untouched.
type Canvas struct {
	buf     *localimg.Buffer
	palette *Palette
	opts    Options
	dc      *gg.Context
	dirty   bool
}

// NewCanvas returns a canvas over buf.
func NewCanvas(buf *localimg.Buffer, palette *Palette, opts Options) *Canvas {
	if opts.LineWidth <= 0 {
		opts.LineWidth = 1
	}
	return &Canvas{buf: buf, palette: palette, opts: opts}
}

// DrawBoxes strokes every box in the color of class.
func (c *Canvas) DrawBoxes(boxes []detection.Box, class int) error {
	if len(boxes) == 0 {
		return ErrEmptyRun
	}
	if class < 0 || (c.opts.Classes > 0 && class >= c.opts.Classes) {
		return fmt.Errorf("%w: %d", ErrClassOutOfRange, class)
	}

	if c.dc == nil {
		c.dc = gg.NewContextForImage(c.buf.ToNRGBA(255))
		c.dc.SetFontFace(truetype.NewFace(labelFont, &truetype.Options{Size: labelSize}))
	}

	col := c.palette.Color(class)
	for _, b := range boxes {
		r := b.Clamp(c.buf.Width, c.buf.Height).Rect()
		drawRectangleEmpty(c.dc, r, col, c.opts.LineWidth)
		if c.opts.Labels {
			c.drawLabel(c.className(class), r, col)
		}
	}
	c.dirty = true
	return nil
}

// Sync copies pending drawing back into the buffer. It is a no-op when
// nothing was drawn since the last Sync.
func (c *Canvas) Sync() {
	if !c.dirty {
		return
	}
	c.buf.CopyFromNRGBA(imaging.Clone(c.dc.Image()), 255)
	c.dirty = false
}

func (c *Canvas) className(class int) string {
	if c.opts.ClassName != nil {
		return c.opts.ClassName(class)
	}
	return fmt.Sprint(class)
}

// drawLabel writes text on a filled tab above r, or inside r when r touches
// the top of the image.
func (c *Canvas) drawLabel(text string, r image.Rectangle, col color.Color) {
	w, h := c.dc.MeasureString(text)
	x := float64(r.Min.X)
	y := float64(r.Min.Y) - h - 4
	if y < 0 {
		y = float64(r.Min.Y)
	}

	c.dc.SetColor(col)
	c.dc.DrawRectangle(x, y, w+4, h+4)
	c.dc.Fill()

	c.dc.SetColor(color.White)
	c.dc.DrawStringAnchored(text, x+2, y+2, 0, 1)
}

// drawRectangleEmpty draws the outline of r. r.Max is exclusive, so the
// right and bottom lines run through the last pixel column and row inside r.
func drawRectangleEmpty(dc *gg.Context, r image.Rectangle, c color.Color, width float64) {
	dc.SetColor(c)
	dc.SetLineWidth(width)

	x0, y0 := float64(r.Min.X), float64(r.Min.Y)
	x1, y1 := float64(r.Max.X-1), float64(r.Max.Y-1)

	dc.DrawLine(x0, y0, x1, y0)
	dc.Stroke()

	dc.DrawLine(x0, y0, x0, y1)
	dc.Stroke()

	dc.DrawLine(x1, y0, x1, y1)
	dc.Stroke()

	dc.DrawLine(x0, y1, x1, y1)
	dc.Stroke()
}

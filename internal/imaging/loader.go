package imaging

import (
	"fmt"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/disintegration/imaging"
)

// JPEGQuality is the quality used when saving .jpg/.jpeg files.
const JPEGQuality = 95

// LoadRGBA decodes an image file into a 4-channel float buffer.
//
// Parameters:
//   - path: Path to the image file. Supported formats are PNG, JPEG, GIF,
//     BMP and TIFF. JPEG files are rotated according to their EXIF
//     orientation tag.
//
// Returns:
//   - *Buffer: The decoded pixels with channel values in 0-255.
//   - error: Non-nil if the file cannot be opened or decoded. Directories
//     and non-image files fail here.
func LoadRGBA(path string) (*Buffer, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	return FromImage(img), nil
}

// SaveRGBA encodes buf to path. Channel values in [0, maxValue] map to the
// full 8-bit range; the format is chosen by the file extension (see package
// documentation).
func SaveRGBA(path string, buf *Buffer, maxValue float32) error {
	if buf == nil || buf.Width == 0 || buf.Height == 0 {
		return fmt.Errorf("failed to save image %s: empty buffer", path)
	}

	img := buf.ToNRGBA(maxValue)
	var err error
	if enc := EncoderFor(path); enc != nil {
		err = imgio.Save(path, img, enc)
	} else {
		err = imaging.Save(img, path)
	}
	if err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

// EncoderFor returns the bild encoder matching the extension of path, or nil
// for GIF and TIFF, which SaveRGBA writes with imaging.Save.
func EncoderFor(path string) imgio.Encoder {
	switch Format(path) {
	case "jpeg":
		return imgio.JPEGEncoder(JPEGQuality)
	case "bmp":
		return imgio.BMPEncoder()
	case "gif", "tiff":
		return nil
	default:
		return imgio.PNGEncoder()
	}
}

// Format returns the short format name SaveRGBA will use for path: "png",
// "jpeg", "gif", "tiff" or "bmp". Unknown extensions are saved as PNG.
func Format(path string) string {
	f, err := imaging.FormatFromFilename(path)
	if err != nil {
		return "png"
	}
	return strings.ToLower(f.String())
}

package render

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
)

// ErrUnsupportedFormat reports an output extension with no writer.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// DefaultJPEGQuality matches the reference driver's output quality.
const DefaultJPEGQuality = 100

// WritePNG encodes img as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// WriteJPEG encodes img as JPEG. Quality outside 1..100 falls back to
// DefaultJPEGQuality.
func WriteJPEG(w io.Writer, img image.Image, quality int) error {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}

// WriteBMP encodes img as BMP.
func WriteBMP(w io.Writer, img image.Image) error {
	return bmp.Encode(w, img)
}

// SaveImage writes img to path, choosing the encoder from the file
// extension (.png, .jpg/.jpeg, .bmp).
func SaveImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating image file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		err = WritePNG(f, img)
	case ".jpg", ".jpeg":
		err = WriteJPEG(f, img, DefaultJPEGQuality)
	case ".bmp":
		err = WriteBMP(f, img)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return err
	}

	return f.Close()
}

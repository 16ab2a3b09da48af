package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func testImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 60), B: 128, A: 255})
		}
	}
	return img
}

func TestWritePNG(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePNG(&buf, testImage()); err != nil {
		t.Fatalf("WritePNG failed: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("expected PNG signature")
	}
}

func TestWriteJPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJPEG(&buf, testImage(), 0); err != nil {
		t.Fatalf("WriteJPEG failed: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte{0xFF, 0xD8}) {
		t.Error("expected JPEG SOI marker")
	}
}

func TestWriteBMP(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteBMP(&buf, testImage()); err != nil {
		t.Fatalf("WriteBMP failed: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("BM")) {
		t.Error("expected BMP signature")
	}
}

func TestSaveImage(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"out.png", "out.jpg", "out.jpeg", "out.bmp"} {
		path := filepath.Join(dir, name)
		if err := SaveImage(path, testImage()); err != nil {
			t.Fatalf("SaveImage(%s) failed: %v", name, err)
		}
		info, err := os.Stat(path)
		if err != nil || info.Size() == 0 {
			t.Errorf("%s: expected a non-empty file", name)
		}
	}
}

func TestSaveImage_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.gif")
	if err := SaveImage(path, testImage()); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

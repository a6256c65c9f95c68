package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// testFrame генерирует PNG кадр заданной ширины.
func testFrame(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: 128, B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test frame: %v", err)
	}
	return buf.Bytes()
}

func TestResizeImageDownscales(t *testing.T) {
	data := testFrame(t, 200, 100)

	out, err := ResizeImage(data, 50, 80)
	if err != nil {
		t.Fatalf("ResizeImage failed: %v", err)
	}

	decoded, format, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("format = %s, want jpeg", format)
	}
	if w := decoded.Bounds().Dx(); w != 50 {
		t.Errorf("width = %d, want 50", w)
	}
	// Пропорции сохраняются: 200x100 → 50x25
	if h := decoded.Bounds().Dy(); h != 25 {
		t.Errorf("height = %d, want 25", h)
	}
}

func TestResizeImageSkipsSmallFrames(t *testing.T) {
	data := testFrame(t, 40, 30)

	out, err := ResizeImage(data, 100, 80)
	if err != nil {
		t.Fatalf("ResizeImage failed: %v", err)
	}

	decoded, format, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	// Маленький кадр не увеличивается, но перекодируется в JPEG
	if format != "jpeg" {
		t.Errorf("format = %s, want jpeg", format)
	}
	if w := decoded.Bounds().Dx(); w != 40 {
		t.Errorf("width = %d, want original 40", w)
	}
}

func TestResizeImageNormalizesQuality(t *testing.T) {
	data := testFrame(t, 40, 30)

	// Ненастроенное (0) и кривое (999) качество не должны ронять кодирование
	if _, err := ResizeImage(data, 0, 0); err != nil {
		t.Errorf("quality=0 must fall back to default: %v", err)
	}
	if _, err := ResizeImage(data, 0, 999); err != nil {
		t.Errorf("quality=999 must fall back to default: %v", err)
	}
}

func TestResizeImageRejectsGarbage(t *testing.T) {
	if _, err := ResizeImage([]byte("not an image"), 100, 80); err == nil {
		t.Error("garbage input must return an error")
	}
}

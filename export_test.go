package main

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
)

func TestExportImageSquareCrop(t *testing.T) {
	src := makeTestImage(t, 300, 200, mimePNG)
	settings := defaultSettings()
	settings.Resolution.Preset = ResolutionSquare

	result, err := exportImage(src, settings)
	if err != nil {
		t.Fatalf("exportImage() error = %v", err)
	}

	if result.Width != 1080 || result.Height != 1080 {
		t.Errorf("result size = %dx%d, want 1080x1080", result.Width, result.Height)
	}
	if w, h := decodeSize(t, Image{Data: result.Data, MIME: result.MIME}); w != 1080 || h != 1080 {
		t.Errorf("decoded size = %dx%d, want 1080x1080", w, h)
	}
	if result.Filename != "edited-image.png" {
		t.Errorf("Filename = %q, want %q", result.Filename, "edited-image.png")
	}
	if result.MIME != mimePNG {
		t.Errorf("MIME = %q, want %q", result.MIME, mimePNG)
	}
}

func TestExportImagePortraitEndToEnd(t *testing.T) {
	// A 3:4 source is still relatively wider than the 1080x1920 frame, so
	// the pipeline crops width before scaling.
	src := makeTestImage(t, 240, 320, mimePNG)
	settings := defaultSettings()
	settings.Resolution.Preset = ResolutionPortrait

	result, err := exportImage(src, settings)
	if err != nil {
		t.Fatalf("exportImage() error = %v", err)
	}
	if result.Width != 1080 || result.Height != 1920 {
		t.Errorf("result size = %dx%d, want 1080x1920", result.Width, result.Height)
	}
}

func TestExportImageJPEG(t *testing.T) {
	src := makeTestImage(t, 100, 80, mimePNG)
	settings := defaultSettings()
	settings.Format = FormatJPEG
	settings.Quality = 92

	result, err := exportImage(src, settings)
	if err != nil {
		t.Fatalf("exportImage() error = %v", err)
	}

	if result.MIME != mimeJPEG {
		t.Errorf("MIME = %q, want %q", result.MIME, mimeJPEG)
	}
	if result.Filename != "edited-image.jpg" {
		t.Errorf("Filename = %q, want %q", result.Filename, "edited-image.jpg")
	}
	if _, err := imaging.Decode(bytes.NewReader(result.Data), imaging.AutoOrientation(false)); err != nil {
		t.Errorf("output does not decode as an image: %v", err)
	}
}

// makeDetailImage encodes an image with enough high-frequency detail that
// JPEG quality visibly affects the output size.
func makeDetailImage(t *testing.T, width, height int) Image {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 13), B: uint8((x + y) * 29), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return Image{Data: buf.Bytes(), MIME: mimePNG}
}

func TestExportImageJPEGQualityAffectsSize(t *testing.T) {
	src := makeDetailImage(t, 200, 200)

	low := defaultSettings()
	low.Format = FormatJPEG
	low.Quality = 10
	high := low
	high.Quality = 100

	lowResult, err := exportImage(src, low)
	if err != nil {
		t.Fatalf("exportImage(quality 10) error = %v", err)
	}
	highResult, err := exportImage(src, high)
	if err != nil {
		t.Fatalf("exportImage(quality 100) error = %v", err)
	}

	if len(lowResult.Data) >= len(highResult.Data) {
		t.Errorf("quality-10 output = %d bytes, not smaller than quality-100 output = %d bytes",
			len(lowResult.Data), len(highResult.Data))
	}
}

func TestExportImageAppliesColorGrade(t *testing.T) {
	src := makeTestImage(t, 50, 50, mimePNG)
	settings := defaultSettings()
	settings.ColorGrading.ApplyPreset(GradingMono)

	result, err := exportImage(src, settings)
	if err != nil {
		t.Fatalf("exportImage() error = %v", err)
	}

	decoded, err := imaging.Decode(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	// The bw preset desaturates fully, so leftover channel spread comes only
	// from the warmth overlay; the source fill (200,120,40) is far from gray.
	r, g, b, _ := decoded.At(25, 25).RGBA()
	spread := channelSpread(r, g, b)
	if spread > 0x1800 {
		t.Errorf("channel spread after bw grade = %d, want near-gray output", spread)
	}
}

func TestExportImageDecodeError(t *testing.T) {
	_, err := exportImage(Image{Data: []byte("junk"), MIME: mimePNG}, defaultSettings())
	if !errors.Is(err, ErrDecode) {
		t.Errorf("exportImage() error = %v, want ErrDecode", err)
	}
}

func TestExportImageRenderContextError(t *testing.T) {
	src := makeTestImage(t, 10, 10, mimePNG)
	settings := defaultSettings()
	width, height := 0, 100
	settings.Resolution = ResolutionSettings{Preset: ResolutionCustom, Width: &width, Height: &height}

	_, err := exportImage(src, settings)
	if !errors.Is(err, ErrRenderContext) {
		t.Errorf("exportImage() error = %v, want ErrRenderContext", err)
	}
}

func TestQualityClamp(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 1},
		{1, 1},
		{92, 92},
		{100, 100},
		{150, 100},
	}
	for _, tt := range tests {
		if got := clamp(tt.in, 1, 100); got != tt.want {
			t.Errorf("clamp(%d, 1, 100) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func channelSpread(r, g, b uint32) int64 {
	hi, lo := r, r
	for _, v := range []uint32{g, b} {
		if v > hi {
			hi = v
		}
		if v < lo {
			lo = v
		}
	}
	return int64(hi) - int64(lo)
}

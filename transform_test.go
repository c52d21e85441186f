package main

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/disintegration/imaging"
)

// makeTestImage encodes a solid-color image of the given size.
func makeTestImage(t *testing.T, width, height int, mime string) Image {
	t.Helper()
	img := imaging.New(width, height, color.NRGBA{R: 200, G: 120, B: 40, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, formatForMIME(mime)); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return Image{Data: buf.Bytes(), MIME: mime}
}

func decodeSize(t *testing.T, img Image) (int, int) {
	t.Helper()
	decoded, err := imaging.Decode(bytes.NewReader(img.Data))
	if err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	return decoded.Bounds().Dx(), decoded.Bounds().Dy()
}

func TestApplyTransformPreservesDimensions(t *testing.T) {
	src := makeTestImage(t, 64, 48, mimePNG)
	state := TransformState{Zoom: 1.5, Rotation: 90, Position: Point{X: 20, Y: -10}}

	result, err := applyTransform(src, state, Viewport{Width: 300, Height: 400})
	if err != nil {
		t.Fatalf("applyTransform() error = %v", err)
	}

	w, h := decodeSize(t, result)
	if w != 64 || h != 48 {
		t.Errorf("result dimensions = %dx%d, want 64x48", w, h)
	}
	if result.MIME != mimePNG {
		t.Errorf("result MIME = %q, want %q", result.MIME, mimePNG)
	}
}

func TestApplyTransformViewportPrecondition(t *testing.T) {
	// Garbage bytes prove the decode is never attempted: a decode would
	// surface ErrDecode, not ErrPrecondition.
	src := Image{Data: []byte("not an image"), MIME: mimePNG}

	_, err := applyTransform(src, identityTransform(), Viewport{Width: 0, Height: 10})
	if !errors.Is(err, ErrPrecondition) {
		t.Errorf("applyTransform() error = %v, want ErrPrecondition", err)
	}
}

func TestApplyTransformEmptySource(t *testing.T) {
	_, err := applyTransform(Image{MIME: mimePNG}, identityTransform(), Viewport{Width: 300, Height: 400})
	if !errors.Is(err, ErrPrecondition) {
		t.Errorf("applyTransform() error = %v, want ErrPrecondition", err)
	}
}

func TestApplyTransformDecodeError(t *testing.T) {
	src := Image{Data: []byte("not an image"), MIME: mimePNG}

	_, err := applyTransform(src, identityTransform(), Viewport{Width: 300, Height: 400})
	if !errors.Is(err, ErrDecode) {
		t.Errorf("applyTransform() error = %v, want ErrDecode", err)
	}
}

func TestComputeBakeGeometry(t *testing.T) {
	// 2400x3200 (AR 0.75) letterboxed into a 300x400 viewport fills it
	// exactly: rendered width 300, scale factor 8.
	geom, err := computeBakeGeometry(2400, 3200, TransformState{Zoom: 1.5, Rotation: 90, Position: Point{X: 20, Y: -10}}, Viewport{Width: 300, Height: 400})
	if err != nil {
		t.Fatalf("computeBakeGeometry() error = %v", err)
	}
	if geom.scaleFactor != 8 {
		t.Errorf("scaleFactor = %v, want 8", geom.scaleFactor)
	}
	if geom.translateX != 160 || geom.translateY != -80 {
		t.Errorf("translate = (%v, %v), want (160, -80)", geom.translateX, geom.translateY)
	}
}

func TestComputeBakeGeometryWideImage(t *testing.T) {
	// A relatively wider image fits by width instead.
	geom, err := computeBakeGeometry(3000, 2000, identityTransform(), Viewport{Width: 300, Height: 400})
	if err != nil {
		t.Fatalf("computeBakeGeometry() error = %v", err)
	}
	if geom.scaleFactor != 10 {
		t.Errorf("scaleFactor = %v, want 10", geom.scaleFactor)
	}
}

func TestTransformStateNormalized(t *testing.T) {
	tests := []struct {
		name string
		in   TransformState
		want TransformState
	}{
		{"wraps rotation", TransformState{Zoom: 1, Rotation: 450}, TransformState{Zoom: 1, Rotation: 90}},
		{"negative rotation", TransformState{Zoom: 1, Rotation: -90}, TransformState{Zoom: 1, Rotation: 270}},
		{"clamps zoom", TransformState{Zoom: 0.5}, TransformState{Zoom: 1}},
		{"identity unchanged", identityTransform(), identityTransform()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.normalized()
			if math.Abs(got.Zoom-tt.want.Zoom) > 1e-9 || math.Abs(got.Rotation-tt.want.Rotation) > 1e-9 {
				t.Errorf("normalized() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestApplyTransformIdentityKeepsPixels(t *testing.T) {
	src := makeTestImage(t, 32, 32, mimePNG)

	result, err := applyTransform(src, identityTransform(), Viewport{Width: 100, Height: 100})
	if err != nil {
		t.Fatalf("applyTransform() error = %v", err)
	}

	decoded, err := imaging.Decode(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	got := decoded.At(16, 16)
	r, g, b, _ := got.RGBA()
	wantR, wantG, wantB, _ := color.NRGBA{R: 200, G: 120, B: 40, A: 255}.RGBA()
	if r != wantR || g != wantG || b != wantB {
		t.Errorf("center pixel = %v, want solid fill color", got)
	}
	if decoded.Bounds() != image.Rect(0, 0, 32, 32) {
		t.Errorf("bounds = %v, want 32x32", decoded.Bounds())
	}
}

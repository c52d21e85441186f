package main

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Point is a pan offset in on-screen pixels, relative to the image center at
// the time the edit was made.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TransformState is the logical edit applied to an image: uniform zoom,
// clockwise rotation in degrees, and a pan offset measured against the
// viewport that was active while editing.
type TransformState struct {
	Zoom     float64 `json:"zoom"`
	Rotation float64 `json:"rotation"`
	Position Point   `json:"position"`
}

// Viewport is the rendered size of the preview container, measured at the
// moment of finalization. It is never persisted.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func identityTransform() TransformState {
	return TransformState{Zoom: 1, Rotation: 0, Position: Point{}}
}

// normalized clamps zoom to >= 1 and wraps rotation into [0, 360).
func (t TransformState) normalized() TransformState {
	if t.Zoom < 1 {
		t.Zoom = 1
	}
	t.Rotation = math.Mod(t.Rotation, 360)
	if t.Rotation < 0 {
		t.Rotation += 360
	}
	return t
}

// bakeGeometry is the geometry derived from a transform state and viewport
// before drawing: the screen-to-natural scale factor and the pan translated
// into natural pixels.
type bakeGeometry struct {
	scaleFactor float64
	translateX  float64
	translateY  float64
}

// computeBakeGeometry converts a screen-space edit into natural-pixel terms.
// The image is assumed to be displayed scale-to-fit inside the viewport, so
// the rendered width (and from it the scale factor) follows the same fit
// rule the presentation layer uses.
func computeBakeGeometry(width, height int, state TransformState, viewport Viewport) (bakeGeometry, error) {
	imageAR := float64(width) / float64(height)
	viewportAR := viewport.Width / viewport.Height

	var renderedWidth float64
	if imageAR > viewportAR {
		renderedWidth = viewport.Width
	} else {
		renderedWidth = viewport.Height * imageAR
	}
	if math.IsNaN(renderedWidth) || math.IsInf(renderedWidth, 0) || renderedWidth <= 0 {
		return bakeGeometry{}, fmt.Errorf("%w: rendered width %v for %dx%d in %gx%g viewport",
			ErrCalculation, renderedWidth, width, height, viewport.Width, viewport.Height)
	}

	scaleFactor := float64(width) / renderedWidth
	return bakeGeometry{
		scaleFactor: scaleFactor,
		translateX:  state.Position.X * scaleFactor,
		translateY:  state.Position.Y * scaleFactor,
	}, nil
}

// applyTransform bakes a viewport-relative edit into a new full-resolution
// image. The output always has the same pixel dimensions as the source; the
// edit is rendered permanently into the pixels and the transform state is no
// longer needed afterwards.
func applyTransform(src Image, state TransformState, viewport Viewport) (Image, error) {
	if viewport.Width <= 0 || viewport.Height <= 0 {
		return Image{}, fmt.Errorf("%w: invalid viewport %gx%g", ErrPrecondition, viewport.Width, viewport.Height)
	}
	if len(src.Data) == 0 {
		return Image{}, fmt.Errorf("%w: empty source image", ErrPrecondition)
	}
	state = state.normalized()

	decoded, err := imaging.Decode(bytes.NewReader(src.Data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	bounds := decoded.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	geom, err := computeBakeGeometry(width, height, state, viewport)
	if err != nil {
		return Image{}, err
	}

	// Affine mapping from source pixels to output pixels, equivalent to:
	// translate to center, translate by the baked pan, rotate, scale by zoom,
	// draw the source centered at the origin.
	cx, cy := float64(width)/2, float64(height)/2
	radians := state.Rotation * math.Pi / 180
	sin, cos := math.Sin(radians), math.Cos(radians)
	a := state.Zoom * cos
	b := -state.Zoom * sin
	d := state.Zoom * sin
	e := state.Zoom * cos
	matrix := f64.Aff3{
		a, b, cx + geom.translateX - (a*cx + b*cy),
		d, e, cy + geom.translateY - (d*cx + e*cy),
	}

	output := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Transform(output, matrix, decoded, bounds, draw.Src, nil)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, output, formatForMIME(src.MIME)); err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if buf.Len() == 0 {
		return Image{}, fmt.Errorf("%w: empty output buffer", ErrEncode)
	}

	return Image{Data: buf.Bytes(), MIME: src.MIME}, nil
}

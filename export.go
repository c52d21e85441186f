package main

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

const exportBaseName = "edited-image"

// ExportResult is the final encoded image produced by the export pipeline.
type ExportResult struct {
	Data     []byte
	MIME     string
	Filename string
	Width    int
	Height   int
}

// exportImage renders an image at the requested resolution and color grade
// and encodes it as PNG or JPEG. The pipeline is: resolve the target size,
// crop to the target aspect ratio when the preset demands it, scale to the
// target canvas, apply the color-grade filter chain, encode.
func exportImage(img Image, settings ExportSettings) (ExportResult, error) {
	if len(img.Data) == 0 {
		return ExportResult{}, fmt.Errorf("%w: empty source image", ErrPrecondition)
	}

	decoded, err := imaging.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return ExportResult{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	bounds := decoded.Bounds()
	sourceWidth, sourceHeight := bounds.Dx(), bounds.Dy()

	target := resolveTarget(sourceWidth, sourceHeight, settings.Resolution)
	targetWidth := int(math.Round(target.width))
	targetHeight := int(math.Round(target.height))
	if targetWidth <= 0 || targetHeight <= 0 {
		return ExportResult{}, fmt.Errorf("%w: cannot allocate %dx%d output", ErrRenderContext, targetWidth, targetHeight)
	}

	result := decoded
	if target.requiresCropping {
		region := cropRegion(sourceWidth, sourceHeight, float64(targetWidth)/float64(targetHeight))
		region = region.Intersect(bounds)
		if region.Empty() {
			return ExportResult{}, fmt.Errorf("%w: crop region outside image bounds", ErrCalculation)
		}
		result = imaging.Crop(result, region)
	}
	if result.Bounds().Dx() != targetWidth || result.Bounds().Dy() != targetHeight {
		// Non-uniform scale is fine here: either the crop already matched the
		// target aspect ratio, or the preset itself preserves it.
		result = imaging.Resize(result, targetWidth, targetHeight, imaging.Lanczos)
	}

	var graded image.Image = result
	if !settings.ColorGrading.isNeutral() {
		chain := settings.ColorGrading.filter()
		dst := image.NewNRGBA(chain.Bounds(result.Bounds()))
		chain.Draw(dst, result)
		graded = dst
	}

	format, mime, filename := encodingForFormat(settings.Format)
	var buf bytes.Buffer
	var encodeErr error
	if format == imaging.JPEG {
		encodeErr = imaging.Encode(&buf, graded, format, imaging.JPEGQuality(clamp(settings.Quality, 1, 100)))
	} else {
		encodeErr = imaging.Encode(&buf, graded, format)
	}
	if encodeErr != nil {
		return ExportResult{}, fmt.Errorf("%w: %v", ErrEncode, encodeErr)
	}
	if buf.Len() == 0 {
		return ExportResult{}, fmt.Errorf("%w: empty output buffer", ErrEncode)
	}

	return ExportResult{
		Data:     buf.Bytes(),
		MIME:     mime,
		Filename: filename,
		Width:    targetWidth,
		Height:   targetHeight,
	}, nil
}

func encodingForFormat(format ExportFormat) (imaging.Format, string, string) {
	if format == FormatJPEG {
		return imaging.JPEG, mimeJPEG, exportBaseName + ".jpg"
	}
	return imaging.PNG, mimePNG, exportBaseName + ".png"
}

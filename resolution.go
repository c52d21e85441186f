package main

import (
	"image"
	"math"
)

type ResolutionPreset string

const (
	ResolutionOriginal  ResolutionPreset = "original"
	ResolutionHD        ResolutionPreset = "hd"
	ResolutionUltraHD   ResolutionPreset = "4k"
	ResolutionSquare    ResolutionPreset = "square"
	ResolutionPortrait  ResolutionPreset = "portrait"
	ResolutionLandscape ResolutionPreset = "landscape"
	ResolutionCustom    ResolutionPreset = "custom"
)

// aspectRatioEpsilon is the tolerance for deciding whether a custom target
// aspect ratio differs enough from the source to require cropping.
const aspectRatioEpsilon = 0.01

// ResolutionSettings selects the output size of an export. Width and Height
// are set only under the custom preset.
type ResolutionSettings struct {
	Preset            ResolutionPreset `json:"preset"`
	Width             *int             `json:"width"`
	Height            *int             `json:"height"`
	AspectRatioLocked bool             `json:"aspect_ratio_locked"`
}

// SetCustomWidth sets the custom width; with the aspect-ratio lock enabled
// the height is recomputed from the original image's aspect ratio.
func (r *ResolutionSettings) SetCustomWidth(width int, originalAR float64) {
	r.Preset = ResolutionCustom
	r.Width = &width
	if r.AspectRatioLocked && originalAR > 0 {
		height := int(math.Round(float64(width) / originalAR))
		r.Height = &height
	}
}

// SetCustomHeight sets the custom height; with the aspect-ratio lock enabled
// the width is recomputed from the original image's aspect ratio.
func (r *ResolutionSettings) SetCustomHeight(height int, originalAR float64) {
	r.Preset = ResolutionCustom
	r.Height = &height
	if r.AspectRatioLocked && originalAR > 0 {
		width := int(math.Round(float64(height) * originalAR))
		r.Width = &width
	}
}

// resolutionTarget is the resolved output geometry for an export.
type resolutionTarget struct {
	width            float64
	height           float64
	requiresCropping bool
}

// resolveTarget maps a resolution preset onto concrete output dimensions for
// a source of the given size. Long-edge presets (hd, 4k) keep the source
// aspect ratio; fixed-frame presets (square, portrait, landscape) crop; the
// custom preset crops only when its aspect ratio diverges from the source by
// more than aspectRatioEpsilon.
func resolveTarget(originalWidth, originalHeight int, settings ResolutionSettings) resolutionTarget {
	ar := float64(originalWidth) / float64(originalHeight)

	longEdge := func(edge float64) resolutionTarget {
		if ar >= 1 {
			return resolutionTarget{width: edge, height: edge / ar}
		}
		return resolutionTarget{width: edge * ar, height: edge}
	}

	switch settings.Preset {
	case ResolutionHD:
		return longEdge(1920)
	case ResolutionUltraHD:
		return longEdge(3840)
	case ResolutionSquare:
		return resolutionTarget{width: 1080, height: 1080, requiresCropping: true}
	case ResolutionPortrait:
		return resolutionTarget{width: 1080, height: 1920, requiresCropping: true}
	case ResolutionLandscape:
		return resolutionTarget{width: 1920, height: 1080, requiresCropping: true}
	case ResolutionCustom:
		width, height := float64(originalWidth), float64(originalHeight)
		if settings.Width != nil {
			width = float64(*settings.Width)
		}
		if settings.Height != nil {
			height = float64(*settings.Height)
		}
		targetAR := width / height
		return resolutionTarget{
			width:            width,
			height:           height,
			requiresCropping: math.Abs(targetAR-ar) > aspectRatioEpsilon,
		}
	default:
		return resolutionTarget{width: float64(originalWidth), height: float64(originalHeight)}
	}
}

// cropRegion computes the centered crop of a source that matches targetAR
// exactly. A relatively wider source loses width, a relatively taller one
// loses height.
func cropRegion(sourceWidth, sourceHeight int, targetAR float64) image.Rectangle {
	sourceAR := float64(sourceWidth) / float64(sourceHeight)

	if sourceAR > targetAR {
		cropWidth := int(math.Round(float64(sourceHeight) * targetAR))
		offsetX := (sourceWidth - cropWidth) / 2
		return image.Rect(offsetX, 0, offsetX+cropWidth, sourceHeight)
	}
	cropHeight := int(math.Round(float64(sourceWidth) / targetAR))
	offsetY := (sourceHeight - cropHeight) / 2
	return image.Rect(0, offsetY, sourceWidth, offsetY+cropHeight)
}

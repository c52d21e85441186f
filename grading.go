package main

import "github.com/disintegration/gift"

type GradingPreset string

const (
	GradingNone    GradingPreset = "none"
	GradingVivid   GradingPreset = "vivid"
	GradingWarm    GradingPreset = "warm"
	GradingCool    GradingPreset = "cool"
	GradingVintage GradingPreset = "vintage"
	GradingMono    GradingPreset = "bw"
	GradingCustom  GradingPreset = "custom"
)

// ColorGradingSettings holds the color grade applied on export. Saturation,
// contrast and brightness are percentages where 100 is neutral; warmth is a
// 0-100 sepia overlay, not a true white-balance shift.
type ColorGradingSettings struct {
	Preset     GradingPreset `json:"preset"`
	Saturation int           `json:"saturation"`
	Contrast   int           `json:"contrast"`
	Brightness int           `json:"brightness"`
	Warmth     int           `json:"warmth"`
}

// gradingPresets are the fixed values a named preset writes into the numeric
// fields when selected.
var gradingPresets = map[GradingPreset]ColorGradingSettings{
	GradingNone:    {Saturation: 100, Contrast: 100, Brightness: 100, Warmth: 0},
	GradingVivid:   {Saturation: 150, Contrast: 110, Brightness: 100, Warmth: 5},
	GradingWarm:    {Saturation: 110, Contrast: 100, Brightness: 103, Warmth: 30},
	GradingCool:    {Saturation: 90, Contrast: 105, Brightness: 100, Warmth: 0},
	GradingVintage: {Saturation: 80, Contrast: 95, Brightness: 105, Warmth: 40},
	GradingMono:    {Saturation: 0, Contrast: 110, Brightness: 100, Warmth: 10},
}

func defaultColorGrading() ColorGradingSettings {
	preset := gradingPresets[GradingNone]
	preset.Preset = GradingNone
	return preset
}

// ApplyPreset overwrites all numeric fields with the preset's fixed values.
// Unknown names select custom and leave the numbers alone.
func (c *ColorGradingSettings) ApplyPreset(preset GradingPreset) {
	values, ok := gradingPresets[preset]
	if !ok {
		c.Preset = GradingCustom
		return
	}
	values.Preset = preset
	*c = values
}

// Editing any numeric field directly diverges the preset to custom; the
// other fields keep their current values.

func (c *ColorGradingSettings) SetSaturation(v int) {
	c.Saturation = v
	c.Preset = GradingCustom
}

func (c *ColorGradingSettings) SetContrast(v int) {
	c.Contrast = v
	c.Preset = GradingCustom
}

func (c *ColorGradingSettings) SetBrightness(v int) {
	c.Brightness = v
	c.Preset = GradingCustom
}

func (c *ColorGradingSettings) SetWarmth(v int) {
	c.Warmth = v
	c.Preset = GradingCustom
}

// reconcilePreset forces the preset to custom when the numeric fields no
// longer match the named preset's values, e.g. after a whole-blob settings
// write that edited a number without touching the preset.
func (c *ColorGradingSettings) reconcilePreset() {
	if c.Preset == GradingCustom {
		return
	}
	values, ok := gradingPresets[c.Preset]
	if !ok {
		c.Preset = GradingCustom
		return
	}
	values.Preset = c.Preset
	if *c != values {
		c.Preset = GradingCustom
	}
}

// isNeutral reports whether the grade would leave pixels untouched.
func (c ColorGradingSettings) isNeutral() bool {
	return c.Saturation == 100 && c.Contrast == 100 && c.Brightness == 100 && c.Warmth <= 0
}

// filter builds the composed filter chain for this grade. Percentages are
// converted to gift's delta-from-neutral ranges: 100% maps to 0.
func (c ColorGradingSettings) filter() *gift.GIFT {
	g := gift.New()
	if c.Saturation != 100 {
		g.Add(gift.Saturation(float32(clamp(c.Saturation-100, -99, 500))))
	}
	if c.Contrast != 100 {
		g.Add(gift.Contrast(float32(clamp(c.Contrast-100, -100, 100))))
	}
	if c.Brightness != 100 {
		g.Add(gift.Brightness(float32(clamp(c.Brightness-100, -100, 100))))
	}
	if c.Warmth > 0 {
		g.Add(gift.Sepia(float32(clamp(c.Warmth, 0, 100))))
	}
	return g
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

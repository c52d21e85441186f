package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

type ExportFormat string

const (
	FormatPNG  ExportFormat = "png"
	FormatJPEG ExportFormat = "jpeg"
)

// ExportSettings is the persisted editing configuration: output encoding,
// color grade, resolution target and the default generation prompt.
type ExportSettings struct {
	Format        ExportFormat         `json:"format"`
	Quality       int                  `json:"quality"`
	ColorGrading  ColorGradingSettings `json:"color_grading"`
	Resolution    ResolutionSettings   `json:"resolution"`
	DefaultPrompt string               `json:"default_prompt"`
}

func defaultSettings() ExportSettings {
	return ExportSettings{
		Format:       FormatPNG,
		Quality:      92,
		ColorGrading: defaultColorGrading(),
		Resolution:   ResolutionSettings{Preset: ResolutionOriginal},
	}
}

// SettingsStore loads and saves the settings blob. The editing core only
// consumes the typed, defaulted object; storage is the store's concern.
type SettingsStore interface {
	Load() (ExportSettings, error)
	Save(ExportSettings) error
}

// fileSettingsStore keeps settings as a JSON file. Loading merges the stored
// blob over the defaults, so partial or older files keep working.
type fileSettingsStore struct {
	path string
}

func NewFileSettingsStore(path string) SettingsStore {
	return &fileSettingsStore{path: path}
}

func (s *fileSettingsStore) Load() (ExportSettings, error) {
	settings := defaultSettings()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("failed to read settings %s: %w", s.path, err)
	}
	// Unmarshalling over the populated defaults leaves absent fields at
	// their default values.
	if err := json.Unmarshal(data, &settings); err != nil {
		return defaultSettings(), fmt.Errorf("failed to parse settings %s: %w", s.path, err)
	}
	settings.Quality = clamp(settings.Quality, 1, 100)
	return settings, nil
}

func (s *fileSettingsStore) Save(settings ExportSettings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings %s: %w", s.path, err)
	}
	return nil
}

package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
)

// Image is a raw encoded image buffer with its MIME type. This is the unit
// the editing core passes around; only PNG and JPEG are supported.
type Image struct {
	Data []byte
	MIME string
}

const (
	mimePNG  = "image/png"
	mimeJPEG = "image/jpeg"
)

func mimeForExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return mimePNG
	case ".jpg", ".jpeg":
		return mimeJPEG
	default:
		return ""
	}
}

func formatForMIME(mime string) imaging.Format {
	if mime == mimeJPEG {
		return imaging.JPEG
	}
	return imaging.PNG
}

type ImageInfo struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type FileInfo struct {
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
	URL        string    `json:"url"`
	Image      ImageInfo `json:"image"`
}

type Directory struct {
	Name  string     `json:"name"`
	Files []FileInfo `json:"files"`
}

// walkImages lists the editable photos under rootPath.
func walkImages(rootPath string) (Directory, error) {
	var files []FileInfo

	if err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if mimeForExtension(filepath.Ext(path)) == "" {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to get file info: %w", err)
		}
		relPath, err := filepath.Rel(rootPath, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}

		files = append(files, FileInfo{
			Name:       relPath,
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime(),
		})
		return nil
	}); err != nil {
		return Directory{}, err
	}

	for i := range files {
		w, h, err := readImageDimensions(filepath.Join(rootPath, files[i].Name))
		if err != nil {
			log.Ctx(context.Background()).Error().Err(err).Str("filename", files[i].Name).Msg("cannot read image dimensions")
			continue
		}
		files[i].Image = ImageInfo{Width: w, Height: h}
	}

	return Directory{
		Name:  filepath.Base(rootPath),
		Files: files,
	}, nil
}

// readImageDimensions reads pixel dimensions from the file header without
// decoding the full image.
func readImageDimensions(filePath string) (width, height int, err error) {
	file, err := os.Open(filePath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image header: %w", err)
	}
	return config.Width, config.Height, nil
}

// loadImage reads a photo from disk into an Image buffer.
func loadImage(path string) (Image, error) {
	mime := mimeForExtension(filepath.Ext(path))
	if mime == "" {
		return Image{}, fmt.Errorf("%w: unsupported image type %q", ErrPrecondition, filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("failed to read image %s: %w", path, err)
	}
	return Image{Data: data, MIME: mime}, nil
}

// decodeDimensions returns the pixel dimensions of an in-memory image.
func decodeDimensions(img Image) (width, height int, err error) {
	config, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return config.Width, config.Height, nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

// ExportOperation is one output variant of a finalized image: a name plus
// the settings to render it with.
type ExportOperation struct {
	Name     string         `json:"name"`
	Settings ExportSettings `json:"settings"`
}

// ExportExecutor renders a set of export variants of one image into the
// output directory, each variant independently and concurrently.
type ExportExecutor struct {
	OutputDir string
}

// Exec runs all operations against img. Variants fail independently; the
// first error is returned after the pool drains.
func (e ExportExecutor) Exec(ctx context.Context, img Image, ops []ExportOperation) error {
	if len(ops) == 0 {
		log.Ctx(ctx).Warn().Msg("no export operations to execute")
		return nil
	}

	if err := os.MkdirAll(e.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", e.OutputDir, err)
	}

	pooler := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(runtime.NumCPU())
	for _, op := range ops {
		pooler.Go(func(ctx context.Context) error {
			if err := e.executeExport(ctx, img, op); err != nil {
				log.Ctx(ctx).Error().Err(err).
					Str("variant", op.Name).
					Msg("failed to export variant")
				return err
			}
			return nil
		})
	}

	if err := pooler.Wait(); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("finished with errors")
		return err
	}
	return nil
}

func (e ExportExecutor) executeExport(ctx context.Context, img Image, op ExportOperation) error {
	log.Ctx(ctx).Info().Str("variant", op.Name).Msg("exporting")

	result, err := exportImage(img, op.Settings)
	if err != nil {
		return err
	}

	path := filepath.Join(e.OutputDir, variantFilename(op.Name, result.Filename))
	if err := os.WriteFile(path, result.Data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// variantFilename inserts the variant name before the extension of the
// pipeline's deterministic filename.
func variantFilename(variant, base string) string {
	if variant == "" {
		return base
	}
	ext := filepath.Ext(base)
	variant = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, variant)
	return strings.TrimSuffix(base, ext) + "-" + variant + ext
}

// Package inspector reads image properties without modifying anything. It
// backs the scan command.
package inspector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"tinyimg/internal/compressor"
	"tinyimg/internal/logger"
)

// ImageInfo describes one candidate file.
type ImageInfo struct {
	Path     string
	Category compressor.Category
	Size     int64
	Width    int
	Height   int
	// HasEXIF is set for JPEG files carrying EXIF metadata, which the
	// remote service strips.
	HasEXIF bool
	Err     error
}

// Inspector reads ImageInfo for files.
type Inspector struct {
	logger logrus.FieldLogger
}

// New returns an Inspector.
func New(log logrus.FieldLogger) *Inspector {
	return &Inspector{logger: logger.WithOperation(log, "inspect")}
}

// Inspect returns what can be learned about path. Failures are reported in
// ImageInfo.Err.
func (i *Inspector) Inspect(path string) ImageInfo {
	info := ImageInfo{Path: path, Category: compressor.Classify(path)}

	stat, err := os.Stat(path)
	if err != nil {
		info.Err = fmt.Errorf("stat: %w", err)
		return info
	}
	info.Size = stat.Size()

	if info.Category != compressor.CategoryRaster {
		return info
	}

	img, err := imaging.Open(path)
	if err != nil {
		info.Err = fmt.Errorf("decode: %w", err)
		return info
	}
	bounds := img.Bounds()
	info.Width, info.Height = bounds.Dx(), bounds.Dy()

	ext := filepath.Ext(path)
	if ext == ".jpg" || ext == ".jpeg" {
		info.HasEXIF = i.hasEXIF(path)
	}
	return info
}

// InspectAll inspects paths with at most concurrency files open at once.
// Results keep the order of paths.
func (i *Inspector) InspectAll(ctx context.Context, paths []string, concurrency int) ([]ImageInfo, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	results := make([]ImageInfo, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for idx, path := range paths {
		idx, path := idx, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[idx] = i.Inspect(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (i *Inspector) hasEXIF(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	if _, err := exif.Decode(f); err != nil {
		i.logger.Debugf("No EXIF in %s: %v", path, err)
		return false
	}
	return true
}

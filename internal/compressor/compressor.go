package compressor

import (
	"context"
	"math"
	"path/filepath"
)

// Category classifies a candidate file by extension.
type Category int

const (
	CategoryUnsupported Category = iota
	CategoryRaster
	CategoryVector
)

// String returns the string representation of the Category.
func (c Category) String() string {
	switch c {
	case CategoryRaster:
		return "raster"
	case CategoryVector:
		return "vector"
	default:
		return "unsupported"
	}
}

// Classify returns the category for path. The extension match is case-sensitive.
func Classify(path string) Category {
	switch filepath.Ext(path) {
	case ".png", ".jpg", ".jpeg":
		return CategoryRaster
	case ".svg":
		return CategoryVector
	default:
		return CategoryUnsupported
	}
}

// Status is the terminal state of a compression job.
type Status int

const (
	StatusOptimized Status = iota
	StatusUnchanged
	StatusFailed
	StatusSkipped
)

// String returns the string representation of the Status.
func (s Status) String() string {
	switch s {
	case StatusOptimized:
		return "optimized"
	case StatusUnchanged:
		return "unchanged"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// CompressionResult describes the result of compressing a single file.
// Sizes are bytes for raster files and characters for vector files.
type CompressionResult struct {
	Path          string
	Status        Status
	Data          []byte
	OriginalSize  int64
	OptimizedSize int64
	Err           error

	// CompressionCount is the remote API's running count for the key, 0 if unknown.
	CompressionCount int
}

// SavedBytes returns OriginalSize - OptimizedSize.
func (r CompressionResult) SavedBytes() int64 {
	return r.OriginalSize - r.OptimizedSize
}

// SavedPercent returns round(100 - 100*optimized/original).
func (r CompressionResult) SavedPercent() int {
	return SavedPercent(r.OriginalSize, r.OptimizedSize)
}

// SavedPercent computes the rounded savings percentage. An empty original
// yields 0.
func SavedPercent(original, optimized int64) int {
	if original <= 0 {
		return 0
	}
	return int(math.Round(100 - 100*float64(optimized)/float64(original)))
}

// Compressor compresses a single file. Implementations never write to path;
// they return the optimized payload in the result and report every failure
// through CompressionResult.Err.
type Compressor interface {
	Compress(ctx context.Context, path string) CompressionResult
}

func failed(path string, err error) CompressionResult {
	return CompressionResult{Path: path, Status: StatusFailed, Err: err}
}

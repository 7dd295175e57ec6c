package compressor

import (
	"context"
	"os"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"

	"tinyimg/internal/logger"
)

const svgMediaType = "image/svg+xml"

// Optimizer transforms vector markup into an equivalent, smaller document.
type Optimizer interface {
	Optimize(markup string) (string, error)
}

// OptimizerFunc adapts a function to the Optimizer interface.
type OptimizerFunc func(markup string) (string, error)

// Optimize calls f(markup).
func (f OptimizerFunc) Optimize(markup string) (string, error) {
	return f(markup)
}

// SVGMinifier optimizes SVG markup with tdewolff/minify.
type SVGMinifier struct {
	m *minify.M
}

// NewSVGMinifier returns an SVGMinifier.
func NewSVGMinifier() *SVGMinifier {
	m := minify.New()
	m.AddFunc(svgMediaType, svg.Minify)
	return &SVGMinifier{m: m}
}

// Optimize minifies markup.
func (s *SVGMinifier) Optimize(markup string) (string, error) {
	return s.m.String(svgMediaType, markup)
}

// VectorCompressor optimizes vector files locally.
type VectorCompressor struct {
	optimizer Optimizer
	logger    logrus.FieldLogger
}

// NewVectorCompressor returns a VectorCompressor. A nil optimizer selects SVGMinifier.
func NewVectorCompressor(optimizer Optimizer, log logrus.FieldLogger) *VectorCompressor {
	if optimizer == nil {
		optimizer = NewSVGMinifier()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &VectorCompressor{optimizer: optimizer, logger: log}
}

// Compress reads path and returns the optimized text. A completed transform
// is always StatusOptimized; sizes are measured in characters.
func (c *VectorCompressor) Compress(ctx context.Context, path string) CompressionResult {
	if err := ctx.Err(); err != nil {
		return failed(path, NewError(KindCancelled, path, err))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return failed(path, NewError(KindLocalRead, path, err))
	}
	input := string(raw)

	output, err := c.optimizer.Optimize(input)
	if err != nil {
		return failed(path, NewError(KindOptimize, path, err))
	}

	res := CompressionResult{
		Path:          path,
		Status:        StatusOptimized,
		Data:          []byte(output),
		OriginalSize:  int64(utf8.RuneCountInString(input)),
		OptimizedSize: int64(utf8.RuneCountInString(output)),
	}
	logger.WithFileOperation(c.logger, path, "optimize").
		Debugf("Optimized %d -> %d characters", res.OriginalSize, res.OptimizedSize)
	return res
}

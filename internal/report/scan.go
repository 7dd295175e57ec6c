package report

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"tinyimg/internal/inspector"
)

// ScanLine formats one row of scan output.
func (c *Console) ScanLine(info inspector.ImageInfo) string {
	if info.Err != nil {
		return c.fail.Render(fmt.Sprintf("✘ %s: %v", info.Path, info.Err))
	}

	line := fmt.Sprintf("%-8s %10s  %s", info.Category, humanize.Bytes(uint64(info.Size)), info.Path)
	if info.Width > 0 {
		line += c.faint.Render(fmt.Sprintf("  %dx%d", info.Width, info.Height))
	}
	if info.HasEXIF {
		line += c.warn.Render("  EXIF metadata will be stripped")
	}
	return line
}

// Scan prints one row per inspected file.
func (c *Console) Scan(infos []inspector.ImageInfo) {
	for _, info := range infos {
		c.println(c.ScanLine(info))
	}
}

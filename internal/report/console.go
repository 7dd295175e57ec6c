// Package report prints batch progress for an interactive terminal user.
package report

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"tinyimg/internal/compressor"
	"tinyimg/internal/dispatcher"
)

const keyURL = "https://tinypng.com/developers"

// Console writes styled status lines. It implements dispatcher.Notifier and
// is safe for concurrent use.
type Console struct {
	out   io.Writer
	quiet bool
	mu    sync.Mutex

	title   lipgloss.Style
	success lipgloss.Style
	warn    lipgloss.Style
	fail    lipgloss.Style
	banner  lipgloss.Style
	faint   lipgloss.Style
	strong  lipgloss.Style
}

// NewConsole returns a Console writing to out. Colors are chosen for out's
// capabilities, so a pipe or buffer gets plain text.
func NewConsole(out io.Writer, quiet bool) *Console {
	r := lipgloss.NewRenderer(out)
	return &Console{
		out:     out,
		quiet:   quiet,
		title:   r.NewStyle().Bold(true).Underline(true),
		success: r.NewStyle().Foreground(lipgloss.Color("2")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("3")),
		fail:    r.NewStyle().Foreground(lipgloss.Color("1")),
		banner:  r.NewStyle().Foreground(lipgloss.Color("5")).Bold(true),
		faint:   r.NewStyle().Faint(true),
		strong:  r.NewStyle().Bold(true),
	}
}

// Header prints the tool banner.
func (c *Console) Header(version string) {
	c.println(c.title.Render(fmt.Sprintf("Tinyimg tool (v%s)", version)) + "\n")
}

// MissingKey tells the user where to get an API key. It prints even in quiet mode.
func (c *Console) MissingKey() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, c.fail.Bold(true).Render("No API key configured. Get one at "+keyURL+
		" and pass it with --key or save it to ~/.tinyimg."))
}

// Found reports the number of candidate files.
func (c *Console) Found(n int) {
	if n == 0 {
		c.println(c.fail.Bold(true).Render("✘ No PNG, JPEG or SVG images found."))
		return
	}
	c.println(c.success.Bold(true).Render(fmt.Sprintf("✔ Found %d images", n)) + "\n")
}

// Start prints the batch start banner.
func (c *Console) Start() {
	c.println(c.banner.Render("=== Task started ===") + "\n")
}

// JobCompleted prints one status line for o.
func (c *Console) JobCompleted(o dispatcher.Outcome) {
	c.println(c.Line(o))
}

// BatchComplete prints the batch end banner.
func (c *Console) BatchComplete(r *dispatcher.BatchReport) {
	c.println("\n" + c.banner.Render("=== Task completed ==="))
}

// Summary prints a block of text, typically the statistics summary.
func (c *Console) Summary(text string) {
	c.println("\n" + text)
}

// Line formats the status line for o.
func (c *Console) Line(o dispatcher.Outcome) string {
	name := "`" + o.Path + "`"
	switch o.Status {
	case compressor.StatusOptimized:
		if !o.Committed {
			return c.warn.Render("✘ " + name + " cannot be compressed any further")
		}
		return c.success.Render("✔ Saved "+name+" ") + c.strong.Render(c.savings(o))
	case compressor.StatusUnchanged:
		return c.warn.Render("✘ " + name + " cannot be compressed any further")
	case compressor.StatusSkipped:
		return c.faint.Render("- " + name + " skipped, " + o.Category.String() + " type")
	default:
		return c.fail.Render("✘ " + name + " " + Reason(o.Err))
	}
}

func (c *Console) savings(o dispatcher.Outcome) string {
	if o.Category == compressor.CategoryVector {
		return fmt.Sprintf("%d characters (%d%%)", o.SavedBytes, o.SavedPercent)
	}
	return fmt.Sprintf("%s (%d%%)", humanize.Bytes(uint64(max(o.SavedBytes, 0))), o.SavedPercent)
}

func (c *Console) println(s string) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}

// Reason returns the user facing text for a per-file failure.
func Reason(err error) string {
	if err == nil {
		return "failed"
	}
	var e *compressor.Error
	if errors.As(err, &e) {
		return e.Reason()
	}
	return err.Error()
}

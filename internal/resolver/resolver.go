// Package resolver expands user supplied paths and globs into the ordered,
// de-duplicated list of image files a batch will consider.
package resolver

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"tinyimg/internal/logger"
)

// Options controls path resolution.
type Options struct {
	// Extensions are matched case-sensitively against the file name suffix.
	Extensions []string
	Recursive  bool
	// Exclude holds directory paths that are never descended into.
	Exclude []string
}

// Resolver turns path arguments into candidate files.
type Resolver struct {
	opts    Options
	exclude map[string]struct{}
	logger  logrus.FieldLogger
}

// New returns a Resolver.
func New(opts Options, log logrus.FieldLogger) *Resolver {
	exclude := make(map[string]struct{}, len(opts.Exclude))
	for _, dir := range opts.Exclude {
		exclude[filepath.Clean(dir)] = struct{}{}
	}
	return &Resolver{opts: opts, exclude: exclude, logger: logger.WithOperation(log, "resolve")}
}

// Resolve returns candidate files in first-seen order. Paths that do not
// exist are skipped silently; zero matches is not an error.
func (r *Resolver) Resolve(inputs []string) []string {
	seen := make(map[string]struct{})
	var files []string

	add := func(path string) {
		path = filepath.Clean(path)
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}

	for _, input := range inputs {
		for _, path := range r.expand(input) {
			info, err := os.Stat(path)
			if err != nil {
				r.logger.Debugf("Skipping %s: %v", path, err)
				continue
			}

			if info.IsDir() {
				for _, f := range r.scanDir(path) {
					add(f)
				}
				continue
			}

			if r.Matches(path) {
				add(path)
			}
		}
	}

	return files
}

// Matches reports whether the file name carries one of the allowed extensions.
func (r *Resolver) Matches(path string) bool {
	return slices.Contains(r.opts.Extensions, filepath.Ext(path))
}

// expand resolves glob patterns. Inputs that exist literally are returned as-is
// so file names containing glob metacharacters still work.
func (r *Resolver) expand(input string) []string {
	if _, err := os.Lstat(input); err == nil || !hasMeta(input) {
		return []string{input}
	}
	matches, err := filepath.Glob(input)
	if err != nil {
		r.logger.Warnf("Invalid pattern %q: %v", input, err)
		return nil
	}
	return matches
}

// scanDir lists matching files in dir. Hidden entries are skipped, as are
// excluded directories.
func (r *Resolver) scanDir(dir string) []string {
	var files []string

	if !r.opts.Recursive {
		entries, err := os.ReadDir(dir)
		if err != nil {
			r.logger.Warnf("Error reading directory %s: %v", dir, err)
			return nil
		}
		for _, entry := range entries {
			if entry.IsDir() || isHidden(entry.Name()) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if entry.Type().IsRegular() || isFile(path) {
				if r.Matches(path) {
					files = append(files, path)
				}
			}
		}
		return files
	}

	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			r.logger.Warnf("Error accessing path %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			if path == dir {
				return nil
			}
			if isHidden(d.Name()) || r.excluded(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if isHidden(d.Name()) {
			return nil
		}
		if r.Matches(path) {
			files = append(files, path)
		}
		return nil
	})

	return files
}

func (r *Resolver) excluded(path string) bool {
	_, ok := r.exclude[filepath.Clean(path)]
	return ok
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func hasMeta(path string) bool {
	return strings.ContainsAny(path, `*?[`)
}

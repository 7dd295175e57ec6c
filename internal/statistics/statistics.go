package statistics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Statistics contains all statistics for one optimization batch.
type Statistics struct {
	TotalFilesFound int64
	FilesDispatched int64
	FilesOptimized  int64
	FilesUnchanged  int64
	FilesFailed     int64
	FilesSkipped    int64

	// BytesSaved only counts raster files; vector savings are in characters.
	BytesSaved      int64
	CharactersSaved int64

	// CompressionCount is the highest count reported by the remote API.
	CompressionCount int64

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Errors []StatError

	mutex sync.RWMutex

	FileTypeStats map[string]int64
}

// StatError represents an error that occurred during processing.
type StatError struct {
	FilePath  string
	Operation string
	Error     string
	Timestamp time.Time
}

// NewStatistics returns a new Statistics instance.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime:     time.Now(),
		FileTypeStats: make(map[string]int64),
		Errors:        make([]StatError, 0),
	}
}

// SetFilesFound records the number of candidate files.
func (s *Statistics) SetFilesFound(n int) {
	atomic.StoreInt64(&s.TotalFilesFound, int64(n))
}

// IncrementFilesDispatched increases the count of dispatched jobs by 1.
func (s *Statistics) IncrementFilesDispatched() {
	atomic.AddInt64(&s.FilesDispatched, 1)
}

// IncrementFilesOptimized increases the count of optimized files by 1.
func (s *Statistics) IncrementFilesOptimized() {
	atomic.AddInt64(&s.FilesOptimized, 1)
}

// IncrementFilesUnchanged increases the count of unchanged files by 1.
func (s *Statistics) IncrementFilesUnchanged() {
	atomic.AddInt64(&s.FilesUnchanged, 1)
}

// IncrementFilesFailed increases the count of failed files by 1.
func (s *Statistics) IncrementFilesFailed() {
	atomic.AddInt64(&s.FilesFailed, 1)
}

// IncrementFilesSkipped increases the count of skipped files by 1.
func (s *Statistics) IncrementFilesSkipped() {
	atomic.AddInt64(&s.FilesSkipped, 1)
}

// AddBytesSaved adds to the raster savings total.
func (s *Statistics) AddBytesSaved(n int64) {
	atomic.AddInt64(&s.BytesSaved, n)
}

// AddCharactersSaved adds to the vector savings total.
func (s *Statistics) AddCharactersSaved(n int64) {
	atomic.AddInt64(&s.CharactersSaved, n)
}

// ObserveCompressionCount keeps the highest API compression count seen.
func (s *Statistics) ObserveCompressionCount(n int) {
	for {
		cur := atomic.LoadInt64(&s.CompressionCount)
		if int64(n) <= cur || atomic.CompareAndSwapInt64(&s.CompressionCount, cur, int64(n)) {
			return
		}
	}
}

// IncrementFileType increases the count for a specific file type by 1.
func (s *Statistics) IncrementFileType(fileType string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.FileTypeStats[fileType]++
}

// Finalize records the end time and duration.
func (s *Statistics) Finalize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
}

// AddError records an error that occurred during processing.
func (s *Statistics) AddError(filePath, operation, errorMsg string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Errors = append(s.Errors, StatError{
		FilePath:  filePath,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
}

// GetSummary returns a formatted summary of all statistics.
func (s *Statistics) GetSummary() string {
	s.mutex.RLock()
	duration := s.Duration
	s.mutex.RUnlock()

	summary := fmt.Sprintf(`Tinyimg Statistics Summary:

Files:
		Total Found: %d
		Dispatched: %d
		Optimized: %d
		Unchanged: %d
		Failed: %d
		Skipped: %d

Savings:
		Raster: %s
		Vector: %d characters

Performance:
		Duration: %v`,
		atomic.LoadInt64(&s.TotalFilesFound),
		atomic.LoadInt64(&s.FilesDispatched),
		atomic.LoadInt64(&s.FilesOptimized),
		atomic.LoadInt64(&s.FilesUnchanged),
		atomic.LoadInt64(&s.FilesFailed),
		atomic.LoadInt64(&s.FilesSkipped),
		humanize.Bytes(uint64(max(atomic.LoadInt64(&s.BytesSaved), 0))),
		atomic.LoadInt64(&s.CharactersSaved),
		duration.Round(time.Millisecond))

	if count := atomic.LoadInt64(&s.CompressionCount); count > 0 {
		summary += fmt.Sprintf("\n\nAPI:\n\t\tCompressions this month: %d", count)
	}
	return summary
}

// GetFileTypeBreakdown returns a formatted breakdown of file types processed.
func (s *Statistics) GetFileTypeBreakdown() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.FileTypeStats) == 0 {
		return "No file type statistics available"
	}

	types := make([]string, 0, len(s.FileTypeStats))
	for fileType := range s.FileTypeStats {
		types = append(types, fileType)
	}
	sort.Strings(types)

	var b strings.Builder
	b.WriteString("File Type Breakdown:\n")
	for _, fileType := range types {
		fmt.Fprintf(&b, "  %s: %d\n", fileType, s.FileTypeStats[fileType])
	}
	return b.String()
}

// GetErrorSummary returns a summary of errors that occurred during processing.
func (s *Statistics) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.Errors) == 0 {
		return "No errors occurred during processing"
	}

	result := fmt.Sprintf("Errors (%d total):\n", len(s.Errors))
	for i, err := range s.Errors {
		if i >= 10 {
			result += fmt.Sprintf("  ... and %d more errors\n", len(s.Errors)-10)
			break
		}
		result += fmt.Sprintf("  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Operation,
			err.FilePath,
			err.Error)
	}
	return result
}

// GetFilesWithErrors returns the number of recorded errors.
func (s *Statistics) GetFilesWithErrors() int64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return int64(len(s.Errors))
}

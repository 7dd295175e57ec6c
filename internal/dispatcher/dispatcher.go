package dispatcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"tinyimg/internal/barrier"
	"tinyimg/internal/compressor"
	"tinyimg/internal/logger"
	"tinyimg/internal/statistics"
	"tinyimg/internal/storage"
)

// DefaultConcurrency bounds in-flight jobs when Options.Concurrency is unset.
const DefaultConcurrency = 4

// Notifier receives job outcomes as they complete and exactly one
// BatchComplete call per Run.
type Notifier interface {
	JobCompleted(Outcome)
	BatchComplete(*BatchReport)
}

// Cleaner removes the temporary storage area once the batch is done.
type Cleaner interface {
	Remove() error
}

// Options configures a Dispatcher.
type Options struct {
	Raster      compressor.Compressor
	Vector      compressor.Compressor
	Concurrency int
	TempArea    Cleaner
	Stats       *statistics.Statistics
	Logger      logrus.FieldLogger
	Notifier    Notifier
}

// Dispatcher routes candidate files to a compressor and commits results.
type Dispatcher struct {
	raster      compressor.Compressor
	vector      compressor.Compressor
	concurrency int
	tempArea    Cleaner
	stats       *statistics.Statistics
	logger      logrus.FieldLogger
	notifier    Notifier
}

// Outcome is the terminal state of one candidate file.
type Outcome struct {
	Path          string
	Index         int
	Category      compressor.Category
	Status        compressor.Status
	OriginalSize  int64
	OptimizedSize int64
	SavedBytes    int64
	SavedPercent  int
	// Committed is true when the original file was replaced.
	Committed bool
	Err       error
}

// BatchReport lists every outcome in dispatch order.
type BatchReport struct {
	Outcomes   []Outcome
	Dispatched int
	Skipped    int
	Duration   time.Duration
}

// Count returns the number of outcomes with the given status.
func (r *BatchReport) Count(status compressor.Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// TotalSaved returns the bytes saved across committed raster files.
func (r *BatchReport) TotalSaved() int64 {
	var total int64
	for _, o := range r.Outcomes {
		if o.Committed && o.Category == compressor.CategoryRaster {
			total += o.SavedBytes
		}
	}
	return total
}

type job struct {
	index    int
	path     string
	category compressor.Category
}

// New returns a Dispatcher. A raster compressor is required.
func New(opts Options) (*Dispatcher, error) {
	if opts.Raster == nil {
		return nil, errors.New("dispatcher: raster compressor is required")
	}
	if opts.Vector == nil {
		opts.Vector = compressor.NewVectorCompressor(nil, opts.Logger)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Stats == nil {
		opts.Stats = statistics.NewStatistics()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &Dispatcher{
		raster:      opts.Raster,
		vector:      opts.Vector,
		concurrency: opts.Concurrency,
		tempArea:    opts.TempArea,
		stats:       opts.Stats,
		logger:      opts.Logger,
		notifier:    opts.Notifier,
	}, nil
}

// Run processes files with at most Concurrency jobs in flight. Per-file
// failures are recorded in the report and never stop the batch. When every
// dispatched job has finished, the temp area is removed and the notifier's
// BatchComplete runs, both exactly once, before Run returns.
func (d *Dispatcher) Run(ctx context.Context, files []string) *BatchReport {
	start := time.Now()
	d.stats.SetFilesFound(len(files))

	report := &BatchReport{Outcomes: make([]Outcome, len(files))}

	var jobs []job
	for i, path := range files {
		category := compressor.Classify(path)
		d.stats.IncrementFileType(strings.ToUpper(strings.TrimPrefix(filepath.Ext(path), ".")))
		if category == compressor.CategoryUnsupported {
			report.Outcomes[i] = Outcome{Path: path, Index: i, Category: category, Status: compressor.StatusSkipped}
			report.Skipped++
			continue
		}
		jobs = append(jobs, job{index: i, path: path, category: category})
	}
	report.Dispatched = len(jobs)

	for _, o := range report.Outcomes {
		if o.Status == compressor.StatusSkipped && o.Path != "" {
			d.stats.IncrementFilesSkipped()
			logger.WithFile(d.logger, o.Path).Info("Skipping unsupported file type")
			d.notifyJob(o)
		}
	}

	done := barrier.New(len(jobs), func() {
		d.cleanup()
		report.Duration = time.Since(start)
		d.stats.Finalize()
		d.logger.Infof("Batch completed: %d dispatched, %d skipped", report.Dispatched, report.Skipped)
		if d.notifier != nil {
			d.notifier.BatchComplete(report)
		}
	})

	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for _, j := range jobs {
		j := j
		d.stats.IncrementFilesDispatched()
		g.Go(func() error {
			defer done.Done()
			outcome := d.process(ctx, j)
			report.Outcomes[j.index] = outcome
			d.notifyJob(outcome)
			return nil
		})
	}

	_ = g.Wait()
	<-done.Wait()
	return report
}

// process runs one job to a terminal state.
func (d *Dispatcher) process(ctx context.Context, j job) Outcome {
	log := logger.WithFileOperation(d.logger, j.path, j.category.String())
	outcome := Outcome{Path: j.path, Index: j.index, Category: j.category}

	if err := ctx.Err(); err != nil {
		return d.fail(outcome, compressor.NewError(compressor.KindCancelled, j.path, err))
	}

	var res compressor.CompressionResult
	switch j.category {
	case compressor.CategoryRaster:
		res = d.raster.Compress(ctx, j.path)
	case compressor.CategoryVector:
		res = d.vector.Compress(ctx, j.path)
	}

	d.stats.ObserveCompressionCount(res.CompressionCount)
	outcome.Status = res.Status
	outcome.OriginalSize = res.OriginalSize
	outcome.OptimizedSize = res.OptimizedSize

	switch res.Status {
	case compressor.StatusFailed:
		return d.fail(outcome, res.Err)

	case compressor.StatusUnchanged:
		log.Info("Already optimized")
		d.stats.IncrementFilesUnchanged()
		return outcome

	case compressor.StatusOptimized:
		outcome.SavedBytes = res.SavedBytes()
		outcome.SavedPercent = res.SavedPercent()

		committed, err := commit(j.path, res.Data)
		if err != nil {
			return d.fail(outcome, compressor.NewError(compressor.KindLocalWrite, j.path, err))
		}
		outcome.Committed = committed
		if !committed {
			log.Debug("Optimized output is not smaller, original kept")
		}

		d.stats.IncrementFilesOptimized()
		if committed {
			if j.category == compressor.CategoryRaster {
				d.stats.AddBytesSaved(outcome.SavedBytes)
			} else {
				d.stats.AddCharactersSaved(outcome.SavedBytes)
			}
		}
		log.WithFields(logrus.Fields{
			"saved":   outcome.SavedBytes,
			"percent": outcome.SavedPercent,
		}).Info("Optimized")
		return outcome
	}

	return d.fail(outcome, errors.New("unknown compression status"))
}

func (d *Dispatcher) fail(o Outcome, err error) Outcome {
	if err == nil {
		err = errors.New("compression failed")
	}
	o.Status = compressor.StatusFailed
	o.Err = err
	o.Committed = false
	d.stats.IncrementFilesFailed()
	d.stats.AddError(o.Path, o.Category.String(), err.Error())
	logger.WithFile(d.logger, o.Path).
		WithField("kind", compressor.KindOf(err).String()).
		WithError(err).
		Warn("Compression failed")
	return o
}

func (d *Dispatcher) notifyJob(o Outcome) {
	if d.notifier != nil {
		d.notifier.JobCompleted(o)
	}
}

func (d *Dispatcher) cleanup() {
	if d.tempArea == nil {
		return
	}
	if err := d.tempArea.Remove(); err != nil {
		d.logger.Warnf("Could not remove temporary directory: %v", err)
	}
}

// commit replaces path with data when data is strictly smaller than the
// current file.
func commit(path string, data []byte) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if int64(len(data)) >= info.Size() {
		return false, nil
	}
	if err := storage.WriteFileAtomic(path, data); err != nil {
		return false, err
	}
	return true, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"tinyimg/internal/compressor"
	"tinyimg/internal/config"
	"tinyimg/internal/dispatcher"
	"tinyimg/internal/inspector"
	"tinyimg/internal/logger"
	"tinyimg/internal/report"
	"tinyimg/internal/resolver"
	"tinyimg/internal/statistics"
	"tinyimg/internal/storage"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	apiKey      string
	recursive   bool
	variant     string
	concurrency int
	verbose     bool
	quiet       bool
	version     = "0.0.0-dev"
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "tinyimg [paths...]",
	Short: "Shrink PNG, JPEG and SVG images in place",
	Long: `Tinyimg finds images under the given paths (default: current directory)
and overwrites them with smaller versions.

PNG and JPEG files are compressed by the TinyPNG API; SVG files are
minified locally. A file is only replaced when the result is smaller.

Examples:
  tinyimg .
  tinyimg assets/img
  tinyimg -r assets
  tinyimg assets/img/test.png assets/img/test.jpg`,
	Args:         cobra.ArbitraryArgs,
	Version:      version,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOptimize(cmd.Context(), cmd, args)
	},
}

// scanCmd lists candidate images without touching them.
var scanCmd = &cobra.Command{
	Use:   "scan [paths...]",
	Short: "List images that would be optimized, without uploading or modifying anything",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd.Context(), cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&recursive, "recursive", "r", false, "descend into subdirectories")
	rootCmd.PersistentFlags().StringVar(&variant, "variant", "", "file set to process: full (png, jpg, svg) or raster (png, jpg)")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 0, "maximum number of files processed at once")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	rootCmd.Flags().StringVarP(&apiKey, "key", "k", "", "TinyPNG API key (default: contents of ~/.tinyimg)")

	rootCmd.SetVersionTemplate("Installed version: v{{.Version}}\n")
	rootCmd.AddCommand(scanCmd)
}

// runOptimize executes the main optimization logic.
func runOptimize(ctx context.Context, cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	console := report.NewConsole(cmd.OutOrStdout(), quiet)

	_, stats, err := optimize(ctx, cfg, apiKey, args, console, log)
	if errors.Is(err, config.ErrMissingAPIKey) {
		return nil
	}
	if err != nil {
		return err
	}
	if stats != nil {
		console.Summary(stats.GetSummary() + "\n\n" + stats.GetFileTypeBreakdown())
	}
	return nil
}

// optimize resolves the API key and paths, then runs one batch. A missing
// key is reported to the user and returned before anything is resolved or
// uploaded.
func optimize(
	ctx context.Context,
	cfg *config.Config,
	flagKey string,
	paths []string,
	console *report.Console,
	log *logrus.Logger,
) (*dispatcher.BatchReport, *statistics.Statistics, error) {
	console.Header(version)

	key, err := config.ResolveAPIKey(flagKey, cfg.KeyFile, cfg.APIKey)
	if err != nil {
		if errors.Is(err, config.ErrMissingAPIKey) {
			console.MissingKey()
		}
		return nil, nil, err
	}

	files := resolveFiles(cfg, paths, log)
	console.Found(len(files))
	if len(files) == 0 {
		return &dispatcher.BatchReport{}, nil, nil
	}

	area, err := storage.NewTempArea(cfg.TempDirectory)
	if err != nil {
		return nil, nil, err
	}
	log.WithField("dir", area.Dir()).Debug("Temporary directory ready")

	raster, err := compressor.NewTinifyCompressor(compressor.TinifyOptions{
		Endpoint:   cfg.Endpoint,
		APIKey:     key,
		UserAgent:  "tinyimg/" + version,
		HTTPClient: &http.Client{Timeout: cfg.Performance.RequestTimeout},
		Stager:     area,
		Logger:     log,
	})
	if err != nil {
		_ = area.Remove()
		return nil, nil, err
	}

	stats := statistics.NewStatistics()
	d, err := dispatcher.New(dispatcher.Options{
		Raster:      raster,
		Vector:      compressor.NewVectorCompressor(nil, log),
		Concurrency: cfg.Performance.Concurrency,
		TempArea:    area,
		Stats:       stats,
		Logger:      log,
		Notifier:    console,
	})
	if err != nil {
		_ = area.Remove()
		return nil, nil, err
	}

	console.Start()
	batch := d.Run(ctx, files)
	if stats.GetFilesWithErrors() > 0 {
		log.Debug(stats.GetErrorSummary())
	}
	return batch, stats, nil
}

// runScan lists candidate files with their properties.
func runScan(ctx context.Context, cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	return scan(ctx, cfg, args, cmd.OutOrStdout(), log)
}

func scan(ctx context.Context, cfg *config.Config, paths []string, out io.Writer, log *logrus.Logger) error {
	console := report.NewConsole(out, false)

	files := resolveFiles(cfg, paths, log)
	console.Found(len(files))
	if len(files) == 0 {
		return nil
	}

	infos, err := inspector.New(log).InspectAll(ctx, files, cfg.Performance.Concurrency)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	console.Scan(infos)
	return nil
}

func resolveFiles(cfg *config.Config, paths []string, log *logrus.Logger) []string {
	if len(paths) == 0 {
		paths = []string{"."}
	}
	r := resolver.New(resolver.Options{
		Extensions: cfg.SupportedExtensions(),
		Recursive:  cfg.Recursive,
		Exclude:    []string{cfg.TempDirectory},
	}, log)
	return r.Resolve(paths)
}

// loadConfig loads configuration and applies CLI overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("recursive") {
		cfg.Recursive = recursive
	}
	if variant != "" {
		cfg.Variant = variant
	}
	if concurrency > 0 {
		cfg.Performance.Concurrency = concurrency
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.DefaultConfig()
	loggerCfg.Level = cfg.Logging.Level
	loggerCfg.Format = cfg.Logging.Format
	loggerCfg.FilePath = cfg.Logging.FilePath
	if cfg.Logging.MaxSize > 0 {
		loggerCfg.MaxSize = cfg.Logging.MaxSize
	}
	if cfg.Logging.MaxBackups > 0 {
		loggerCfg.MaxBackups = cfg.Logging.MaxBackups
	}
	if cfg.Logging.MaxAge > 0 {
		loggerCfg.MaxAge = cfg.Logging.MaxAge
	}
	loggerCfg.Compress = cfg.Logging.Compress
	loggerCfg.Console = !quiet

	if verbose {
		loggerCfg.Level = "debug"
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.WarnLevel)
	}

	return log
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

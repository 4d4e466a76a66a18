package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oakmoor/jobsheet-audit/constants"
	"github.com/oakmoor/jobsheet-audit/internal/async"
	"github.com/oakmoor/jobsheet-audit/internal/common"
	"github.com/oakmoor/jobsheet-audit/internal/export"
	"github.com/oakmoor/jobsheet-audit/internal/extract"
	"github.com/oakmoor/jobsheet-audit/internal/extract/critical"
	"github.com/oakmoor/jobsheet-audit/internal/fusion"
	"github.com/oakmoor/jobsheet-audit/internal/ingest"
	"github.com/oakmoor/jobsheet-audit/internal/pipeline"
	repo "github.com/oakmoor/jobsheet-audit/internal/repository"
	"github.com/oakmoor/jobsheet-audit/internal/specs"
	"github.com/oakmoor/jobsheet-audit/internal/validation"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

// collector aggregates worker results for the workbook and final summary.
// The queue calls handle from worker goroutines.
type collector struct {
	mu      sync.Mutex
	results []*pipeline.AuditResult
	totals  batchTotals
}

type batchTotals struct {
	Passed int
	Failed int
	Review int
	Errors int
	Cached int
}

func (c *collector) handle(_ async.Job, result *pipeline.AuditResult, cached bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.totals.Errors++
		return
	}
	c.results = append(c.results, result)
	if cached {
		c.totals.Cached++
	}
	switch result.Outcome {
	case constants.AuditPassed:
		c.totals.Passed++
	case constants.AuditFailed:
		c.totals.Failed++
	case constants.AuditReviewRequired:
		c.totals.Review++
	}
}

func (c *collector) snapshot() ([]*pipeline.AuditResult, batchTotals) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*pipeline.AuditResult(nil), c.results...), c.totals
}

func main() {
	// Parse CLI flags
	var (
		dir        = flag.String("dir", "", "directory of audit request files (required)")
		out        = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		specsDir   = flag.String("specs", "", "directory of spec pack JSON files (overrides SPEC_PACK_DIR)")
		packID     = flag.String("pack", "", "default spec pack to audit against (overrides SPEC_PACK_ID)")
		tuningPath = flag.String("tuning", "", "tuning YAML file (overrides AUDIT_THRESHOLDS)")
		cachePath  = flag.String("cache", "", "SQLite result cache path (overrides AUDIT_CACHE_PATH)")
		workers    = flag.Int("workers", 0, "concurrent audit workers (overrides AUDIT_WORKERS)")
		watch      = flag.Bool("watch", false, "keep running and audit request files as they appear")
	)
	flag.Parse()

	// Validate required flags
	if *dir == "" {
		printError("Error: -dir is required\n")
		os.Exit(2)
	}

	// If output file not specified, use parent directory with default filename
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "audit.xlsx")
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Environment configuration; flags override it
	cfg := common.LoadConfig()
	if *specsDir != "" {
		cfg.Audit.SpecDir = *specsDir
	}
	if *packID != "" {
		cfg.Audit.DefaultPackID = *packID
	}
	if *tuningPath != "" {
		cfg.Audit.ThresholdsPath = *tuningPath
	}
	if *cachePath != "" {
		cfg.Cache.Path = *cachePath
		cfg.Cache.Enabled = true
	}
	if *workers > 0 {
		cfg.Worker.Workers = *workers
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}

	tuning, err := pipeline.LoadTuning(cfg.Audit.ThresholdsPath)
	if err != nil {
		logger.Error("failed to load tuning", "path", cfg.Audit.ThresholdsPath, "error", err)
		os.Exit(1)
	}
	minConfidence := tuning.MinConfidence
	if cfg.Audit.ThresholdsPath == "" {
		minConfidence = cfg.Audit.MinConfidence
	}

	// Load spec packs
	resolver := specs.NewResolver(logger)
	packs, err := specs.LoadDir(resolver, cfg.Audit.SpecDir, logger)
	if err != nil {
		logger.Error("failed to load spec packs", "dir", cfg.Audit.SpecDir, "error", err)
		os.Exit(1)
	}
	if packs == 0 {
		logger.Error("no spec packs found", "dir", cfg.Audit.SpecDir)
		os.Exit(1)
	}

	// Wire stores: Postgres when DB_URL is set, a local SQLite file next to
	// the result cache otherwise, so batch runs stay inspectable.
	var (
		artifacts repo.ArtifactStore    = repo.NewMemoryArtifactStore()
		reviews   repo.ReviewQueueStore = repo.NewMemoryReviewQueue()
	)
	if cfg.Database.DSN != "" {
		pool, err := repo.Open(ctx, repo.Config{
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer repo.Close(pool, logger)
		if err := repo.HealthCheck(ctx, pool, time.Second, logger); err != nil {
			logger.Error("database health check failed", "error", err)
			os.Exit(1)
		}
		artifacts = repo.NewPostgresArtifactStore(pool, logger)
		reviews = repo.NewPostgresReviewQueue(pool, logger)
		logger.Info("persisting artifacts to database")
	} else if cfg.Cache.Enabled && cfg.Cache.Path != "" {
		localPath := filepath.Join(filepath.Dir(cfg.Cache.Path), "audit-artifacts.db")
		local, err := repo.OpenLocalArtifactStore(localPath, logger)
		if err != nil {
			logger.Error("failed to open local artifact store", "path", localPath, "error", err)
			os.Exit(1)
		}
		defer func() {
			if cerr := local.Close(); cerr != nil {
				logger.Error("close local artifact store", "error", cerr)
			}
		}()
		artifacts = local
		logger.Info("persisting artifacts to local store", "path", localPath)
	}

	// Setup processor
	processor := pipeline.NewProcessor(
		logger,
		resolver,
		extract.NewExtractor(logger),
		critical.NewExtractor(logger, critical.Config{ConflictGap: tuning.ConflictGap}),
		fusion.NewFuser(logger, tuning.Fusion),
		validation.NewEngine(logger),
		artifacts,
		reviews,
		pipeline.Settings{
			PackID:        cfg.Audit.DefaultPackID,
			MinConfidence: minConfidence,
			Resolve:       specs.ResolveOptions{Strict: cfg.Audit.StrictResolve},
		},
	)

	var cache repo.ResultCache
	if cfg.Cache.Enabled && cfg.Cache.Path != "" {
		cache, err = repo.OpenResultCache(cfg.Cache.Path, logger)
		if err != nil {
			logger.Error("failed to open result cache", "path", cfg.Cache.Path, "error", err)
			os.Exit(1)
		}
		defer func() {
			if cerr := cache.Close(); cerr != nil {
				logger.Error("close result cache", "error", cerr)
			}
		}()
	}
	runner := pipeline.NewCachedRunner(processor, cache, logger)

	agg := &collector{}
	jobs := async.NewAuditQueue(runner, logger,
		async.WithWorkers(cfg.Worker.Workers),
		async.WithQueueSize(cfg.Worker.QueueSize),
		async.WithProcessTimeout(cfg.Worker.ProcessTimeout),
		async.WithResultHandler(agg.handle))

	// Load and enqueue the directory
	loader := ingest.NewFSLoader(logger)
	logger.Info("loading requests", "dir", *dir)
	requests, loadResults, stats, err := loader.LoadDirectory(ctx, *dir, true)
	if err != nil {
		logger.Error("failed to load request directory", "error", err)
		os.Exit(1)
	}
	for _, r := range loadResults {
		if r.Err != "" {
			logger.Warn("request skipped", "path", r.SourcePath, "error", r.Err)
		}
	}
	logger.Info("requests loaded",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed)

	enqueued := 0
	for _, req := range requests {
		job := async.Job{Request: req, SubmittedAt: time.Now().UTC(), TraceID: uuid.NewString()}
		if err := jobs.Enqueue(ctx, job); err != nil {
			logger.Error("failed to enqueue request", "document_id", req.Document.ID, "error", err)
			continue
		}
		enqueued++
	}

	if *watch {
		enqueued += watchRequests(ctx, loader, jobs, *dir, logger)
	}

	// Drain the queue. In watch mode this runs after the interrupt, so the
	// drain gets its own deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	jobs.Shutdown(shutdownCtx)
	cancel()

	results, totals := agg.snapshot()

	// Export the workbook
	logger.Info("exporting workbook", "output", *out)
	workbook, err := export.NewService(logger).WriteWorkbook(results)
	if err != nil {
		logger.Error("failed to build workbook", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, workbook, 0644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	// Log summary
	logger.Info("batch audit complete",
		"requests_enqueued", enqueued,
		"audited", len(results),
		"passed", totals.Passed,
		"failed", totals.Failed,
		"review_required", totals.Review,
		"errors", totals.Errors,
		"cached", totals.Cached,
		"output_file", *out)

	fmt.Printf("Audit batch complete!\n")
	fmt.Printf("- Requests audited: %d\n", len(results))
	fmt.Printf("- Passed: %d\n", totals.Passed)
	fmt.Printf("- Failed: %d\n", totals.Failed)
	fmt.Printf("- Review required: %d\n", totals.Review)
	fmt.Printf("- Errors: %d\n", totals.Errors)
	fmt.Printf("- Served from cache: %d\n", totals.Cached)
	fmt.Printf("- Output: %s\n", *out)
}

// watchRequests blocks until ctx is done, feeding request files into the
// queue as they land under dir. Returns how many it enqueued.
func watchRequests(ctx context.Context, loader *ingest.FSLoader, jobs *async.AuditQueue, dir string, logger *slog.Logger) int {
	evCh, errCh, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:    []string{dir},
		Debounce: 500 * time.Millisecond,
	}, logger)
	if err != nil {
		logger.Error("failed to start watcher", "dir", dir, "error", err)
		return 0
	}
	logger.Info("watching for requests", "dir", dir)

	enqueued := 0
	for {
		select {
		case <-ctx.Done():
			return enqueued
		case path, ok := <-evCh:
			if !ok {
				return enqueued
			}
			if ingest.IsHidden(path) {
				continue
			}
			req, _, err := loader.LoadPath(ctx, path)
			if err != nil {
				logger.Warn("request skipped", "path", path, "error", err)
				continue
			}
			job := async.Job{Request: req, SubmittedAt: time.Now().UTC(), TraceID: uuid.NewString()}
			if err := jobs.Enqueue(ctx, job); err != nil {
				logger.Error("failed to enqueue request", "document_id", req.Document.ID, "error", err)
				continue
			}
			enqueued++
		case werr, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			logger.Warn("watcher error", "error", werr)
		}
	}
}

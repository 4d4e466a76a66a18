package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/oakmoor/jobsheet-audit/internal/common"
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

func main() {
	var (
		specsDir   = flag.String("specs", "", "directory of spec pack JSON files (overrides SPEC_PACK_DIR)")
		packID     = flag.String("pack", "", "default spec pack to audit against (overrides SPEC_PACK_ID)")
		tuningPath = flag.String("tuning", "", "tuning YAML file (overrides AUDIT_THRESHOLDS)")
		cachePath  = flag.String("cache", "", "SQLite result cache path (optional)")
		strict     = flag.Bool("strict", false, "fail when a pack extends an unregistered ancestor")
		pretty     = flag.Bool("pretty", false, "indent the result JSON")
	)
	flag.Parse()

	// The audit result owns stdout, so logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		printError("Usage: runaudit [flags] <request-file.json>\n")
		os.Exit(2)
	}
	requestPath := flag.Arg(0)

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
	if *strict {
		cfg.Audit.StrictResolve = true
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	tuning, err := pipeline.LoadTuning(cfg.Audit.ThresholdsPath)
	if err != nil {
		logger.Error("failed to load tuning", "path", cfg.Audit.ThresholdsPath, "error", err)
		os.Exit(1)
	}
	minConfidence := tuning.MinConfidence
	if cfg.Audit.ThresholdsPath == "" {
		minConfidence = cfg.Audit.MinConfidence
	}

	resolver := specs.NewResolver(logger)
	if _, err := specs.LoadDir(resolver, cfg.Audit.SpecDir, logger); err != nil {
		logger.Error("failed to load spec packs", "dir", cfg.Audit.SpecDir, "error", err)
		os.Exit(1)
	}

	loader := ingest.NewFSLoader(logger)
	req, _, err := loader.LoadPath(ctx, requestPath)
	if err != nil {
		logger.Error("failed to load request", "path", requestPath, "error", err)
		os.Exit(1)
	}
	if cfg.Audit.DefaultPackID == "" && req.PackID == "" {
		printError("Error: no pack named; pass -pack or set pack_id in the request\n")
		os.Exit(2)
	}

	processor := pipeline.NewProcessor(
		logger,
		resolver,
		extract.NewExtractor(logger),
		critical.NewExtractor(logger, critical.Config{ConflictGap: tuning.ConflictGap}),
		fusion.NewFuser(logger, tuning.Fusion),
		validation.NewEngine(logger),
		repo.NewMemoryArtifactStore(),
		repo.NewMemoryReviewQueue(),
		pipeline.Settings{
			PackID:        cfg.Audit.DefaultPackID,
			MinConfidence: minConfidence,
			Resolve:       specs.ResolveOptions{Strict: cfg.Audit.StrictResolve},
		},
	)

	var cache repo.ResultCache
	if *cachePath != "" {
		cache, err = repo.OpenResultCache(*cachePath, logger)
		if err != nil {
			logger.Error("failed to open result cache", "path", *cachePath, "error", err)
			os.Exit(1)
		}
		defer func() {
			if cerr := cache.Close(); cerr != nil {
				logger.Error("close result cache", "error", cerr)
			}
		}()
	}
	runner := pipeline.NewCachedRunner(processor, cache, logger)

	start := time.Now()
	result, cached, err := runner.Run(ctx, req)
	dur := time.Since(start)
	if err != nil {
		logger.Error("audit failed",
			"document_id", req.Document.ID, "error", err, "duration_ms", dur.Milliseconds())
		// Misconfiguration is the operator's to fix, not the document's.
		if common.IsConfigError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}

	var payload []byte
	if *pretty {
		payload, err = json.MarshalIndent(result, "", "  ")
	} else {
		payload, err = json.Marshal(result)
	}
	if err != nil {
		logger.Error("failed to encode result", "error", err)
		os.Exit(1)
	}
	fmt.Printf("%s\n", payload)

	logger.Info("audit OK",
		"document_id", result.DocumentID,
		"pack_id", result.PackID,
		"outcome", result.Outcome,
		"queue", result.Review.Queue,
		"cached", cached,
		"duration_ms", dur.Milliseconds(),
	)
}

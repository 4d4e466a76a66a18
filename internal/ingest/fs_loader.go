package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/oakmoor/jobsheet-audit/internal/pipeline"
)

// FSLoader reads audit request files from the local filesystem.
type FSLoader struct {
	logger *slog.Logger
}

func NewFSLoader(logger *slog.Logger) *FSLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSLoader{logger: logger}
}

func (l *FSLoader) LoadPath(ctx context.Context, path string) (pipeline.Request, LoadResult, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.Request{}, LoadResult{SourcePath: path, Err: err.Error()}, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		l.logger.Error("ingest.abs_path_failed", "path", path, "err", err)
		return pipeline.Request{}, LoadResult{SourcePath: path, Err: err.Error()}, err
	}
	if !IsRequestFile(abs) {
		err := fmt.Errorf("not a request file: %s", abs)
		return pipeline.Request{}, LoadResult{SourcePath: abs, Err: err.Error()}, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		l.logger.Error("ingest.stat_failed", "path", abs, "err", err)
		return pipeline.Request{}, LoadResult{SourcePath: abs, Err: err.Error()}, err
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		l.logger.Error("ingest.read_failed", "path", abs, "err", err)
		return pipeline.Request{}, LoadResult{SourcePath: abs, Err: err.Error()}, err
	}

	req, dropped, err := parseRequest(raw, abs, info.ModTime())
	if err != nil {
		l.logger.Error("ingest.parse_failed", "path", abs, "err", err)
		return pipeline.Request{}, LoadResult{SourcePath: abs, Err: err.Error()}, err
	}
	if len(dropped) > 0 {
		l.logger.Warn("ingest.signals_disowned", "path", abs, "fields", dropped)
	}

	result := LoadResult{
		SourcePath: abs,
		DocumentID: req.Document.ID.String(),
		HashHex:    req.Document.ContentHash,
		PageCount:  req.Document.PageCount,
	}
	l.logger.Debug("ingest.loaded", "path", abs, "document_id", result.DocumentID, "pages", result.PageCount)
	return req, result, nil
}

// LoadDirectory walks root, skips hidden entries if requested, and loads
// every request file found. Per-file failures land in their LoadResult and
// the walk continues.
func (l *FSLoader) LoadDirectory(ctx context.Context, root string, skipHidden bool) ([]pipeline.Request, []LoadResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, nil, DirStats{}, errors.New("root path is required")
	}

	var (
		requests []pipeline.Request
		results  []LoadResult
		stats    DirStats
	)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, LoadResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !IsRequestFile(path) {
			return nil
		}
		stats.Matched++

		req, result, err := l.LoadPath(ctx, path)
		if err != nil {
			results = append(results, result)
			stats.Failed++
			return nil
		}
		requests = append(requests, req)
		results = append(results, result)
		stats.Succeeded++
		return nil
	})
	if err != nil {
		return requests, results, stats, fmt.Errorf("walk: %w", err)
	}

	l.logger.Info("ingest.dir.ok",
		"root", root,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed)
	return requests, results, stats, nil
}

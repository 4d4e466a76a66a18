// Package ingest loads audit requests from the filesystem. A request is one
// JSON file bundling a document's pre-extracted page text and the upstream
// visual signals for it. The loader never touches the documents themselves;
// by the time a request file exists, capture and OCR have already happened
// somewhere else.
package ingest

import (
	"context"

	"github.com/oakmoor/jobsheet-audit/internal/pipeline"
)

// LoadResult is the per-file load outcome.
type LoadResult struct {
	SourcePath string
	DocumentID string
	HashHex    string
	PageCount  int
	Err        string
}

// DirStats summarizes a directory load.
type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Succeeded uint32
	Failed    uint32
}

// Loader is the behavior batch commands depend on.
type Loader interface {
	// LoadPath loads a single request file.
	LoadPath(ctx context.Context, path string) (pipeline.Request, LoadResult, error)
	// LoadDirectory loads all request files under root. Malformed files are
	// reported in their LoadResult and skipped; only the walk itself can fail.
	LoadDirectory(ctx context.Context, root string, skipHidden bool) ([]pipeline.Request, []LoadResult, DirStats, error)
}

package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/oakmoor/jobsheet-audit/constants"
	"github.com/oakmoor/jobsheet-audit/internal/entity"
	"github.com/oakmoor/jobsheet-audit/internal/repository"
)

// CacheKey identifies one (document content, resolved spec, engine) triple.
// Any of the three changing produces a new key, so stale entries are never
// served and never need invalidating.
func CacheKey(contentHash, specFingerprint string) string {
	sum := sha256.Sum256([]byte(contentHash + "|" + specFingerprint + "|" + constants.EngineVersion))
	return hex.EncodeToString(sum[:])
}

// ContentHash returns the document's content hash, deriving one from page
// text when ingestion did not supply it.
func ContentHash(doc entity.Document, pages []entity.PageText) string {
	if doc.ContentHash != "" {
		return doc.ContentHash
	}
	h := sha256.New()
	for _, page := range pages {
		h.Write([]byte(strconv.Itoa(page.PageNumber)))
		h.Write([]byte{0})
		h.Write([]byte(page.Text))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// CachedRunner wraps a Processor with the idempotence cache: an unchanged
// document audited against an unchanged spec is served from the cache
// instead of being re-decided.
type CachedRunner struct {
	processor *Processor
	cache     repository.ResultCache
	logger    *slog.Logger
}

// NewCachedRunner wraps processor. cache may be nil, which disables caching.
func NewCachedRunner(processor *Processor, cache repository.ResultCache, logger *slog.Logger) *CachedRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedRunner{processor: processor, cache: cache, logger: logger}
}

// Run audits one document, serving a previously computed result when the
// content, spec, and engine all match. The bool reports a cache hit.
func (r *CachedRunner) Run(ctx context.Context, req Request) (*AuditResult, bool, error) {
	if r.cache == nil {
		result, err := r.processor.Process(ctx, req)
		return result, false, err
	}

	resolved, err := r.processor.resolveFor(req)
	if err != nil {
		return nil, false, fmt.Errorf("resolve spec: %w", err)
	}
	key := CacheKey(ContentHash(req.Document, req.Pages), resolved.Fingerprint())

	if payload, ok, err := r.cache.Get(ctx, key); err != nil {
		r.logger.Warn("audit.cache.get_failed", "document_id", req.Document.ID, "err", err)
	} else if ok {
		var cached AuditResult
		if err := json.Unmarshal(payload, &cached); err != nil {
			r.logger.Warn("audit.cache.decode_failed", "document_id", req.Document.ID, "err", err)
		} else {
			r.logger.Info("audit.cache.hit", "document_id", req.Document.ID, "cache_key", key)
			return &cached, true, nil
		}
	}

	result, err := r.processor.Process(ctx, req)
	if err != nil {
		return nil, false, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, false, fmt.Errorf("encode audit result: %w", err)
	}
	if err := r.cache.Put(ctx, key, payload); err != nil {
		r.logger.Warn("audit.cache.put_failed", "document_id", req.Document.ID, "err", err)
	}
	return result, false, nil
}

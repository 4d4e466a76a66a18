package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/oakmoor/jobsheet-audit/constants"
	"github.com/oakmoor/jobsheet-audit/internal/common"
	"github.com/oakmoor/jobsheet-audit/internal/entity"
	"github.com/oakmoor/jobsheet-audit/internal/extract"
	"github.com/oakmoor/jobsheet-audit/internal/extract/critical"
	"github.com/oakmoor/jobsheet-audit/internal/fusion"
	"github.com/oakmoor/jobsheet-audit/internal/repository"
	"github.com/oakmoor/jobsheet-audit/internal/review"
	"github.com/oakmoor/jobsheet-audit/internal/specs"
	"github.com/oakmoor/jobsheet-audit/internal/validation"
)

// Request is one document audit: already-materialized page text plus the
// visual signals produced upstream. The pipeline never reads document bytes
// itself.
type Request struct {
	Document entity.Document
	Pages    []entity.PageText
	// ROIText carries region text for critical fields, keyed by field ID.
	ROIText map[string]string
	// ROIBoxes carries normalized crop geometry for visual fields.
	ROIBoxes   map[string]entity.ROI
	OCRSignals map[string]entity.OCRFieldResult
	ImageQA    map[string]entity.ImageQAResult
	// PackID overrides the processor default when set.
	PackID string
}

// AuditResult bundles the artifacts one audit produced plus the final
// outcome. Its JSON form is what the idempotence cache stores, so it carries
// no timestamps or other run-local state.
type AuditResult struct {
	DocumentID      uuid.UUID                  `json:"document_id"`
	PackID          string                     `json:"pack_id"`
	PackVersion     string                     `json:"pack_version"`
	PackChain       []string                   `json:"pack_chain"`
	SpecFingerprint string                     `json:"spec_fingerprint"`
	Outcome         constants.AuditOutcome     `json:"outcome"`
	Extraction      *entity.ExtractionArtifact `json:"extraction"`
	Fusion          *entity.FusionEvidence     `json:"fusion,omitempty"`
	Validation      *entity.ValidationArtifact `json:"validation"`
	Trace           *entity.ValidationTrace    `json:"trace,omitempty"`
	Review          review.Decision            `json:"review"`
}

// Settings is the per-processor audit configuration.
type Settings struct {
	// PackID is the default spec pack when a request names none.
	PackID string
	// MinConfidence is the extraction floor; 0 means the 0.60 default.
	MinConfidence float64
	// Resolve controls pack chain resolution for every request.
	Resolve specs.ResolveOptions
}

// Processor runs one document audit end to end: resolve the spec pack,
// extract, fuse visual signals, validate, decide review, then hand the
// artifacts to the boundary stores. The decision stages are pure; only the
// stores and the logger touch the outside world.
type Processor struct {
	logger    *slog.Logger
	resolver  *specs.Resolver
	fields    *extract.Extractor
	critical  *critical.Extractor
	fuser     *fusion.Fuser
	engine    *validation.Engine
	artifacts repository.ArtifactStore
	queue     repository.ReviewQueueStore
	settings  Settings
}

// NewProcessor wires the audit stages. artifacts and queue may be nil for
// decision-only runs.
func NewProcessor(
	logger *slog.Logger,
	resolver *specs.Resolver,
	fields *extract.Extractor,
	crit *critical.Extractor,
	fuser *fusion.Fuser,
	engine *validation.Engine,
	artifacts repository.ArtifactStore,
	queue repository.ReviewQueueStore,
	settings Settings,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.MinConfidence == 0 {
		settings.MinConfidence = 0.60
	}
	return &Processor{
		logger:    logger,
		resolver:  resolver,
		fields:    fields,
		critical:  crit,
		fuser:     fuser,
		engine:    engine,
		artifacts: artifacts,
		queue:     queue,
		settings:  settings,
	}
}

// Process audits one document. Spec and configuration problems abort with an
// error; document problems come back as reason codes inside the result.
func (p *Processor) Process(ctx context.Context, req Request) (*AuditResult, error) {
	logger := p.logger
	if rid := common.RequestIDFromContext(ctx); rid != "" {
		logger = logger.With("request_id", rid)
	}

	resolved, err := p.resolveFor(req)
	if err != nil {
		logger.Error("audit.resolve.failed", "document_id", req.Document.ID, "pack_id", p.packFor(req), "err", err)
		return nil, fmt.Errorf("resolve spec: %w", err)
	}
	if err := p.engine.LintRules(resolved.ValidationRules); err != nil {
		logger.Error("audit.lint.failed", "document_id", req.Document.ID, "pack_id", resolved.ID, "err", err)
		return nil, fmt.Errorf("lint rules: %w", err)
	}

	extraction := p.fields.ExtractFields(resolved, req.Pages, extract.Options{MinConfidence: p.settings.MinConfidence})
	criticalResult := p.critical.Extract(req.Pages, req.ROIText)

	var evidence *entity.FusionEvidence
	if len(req.OCRSignals) > 0 || len(req.ImageQA) > 0 {
		evidence = p.fuser.FuseDocument(req.Document.ID, req.OCRSignals, req.ImageQA, req.ROIBoxes)
	}

	artifact := &entity.ExtractionArtifact{
		SchemaVersion:       constants.ExtractionSchemaVersion,
		EngineVersion:       constants.EngineVersion,
		DocumentID:          req.Document.ID,
		PackID:              resolved.ID,
		PackVersion:         resolved.Version,
		Fields:              extraction.Fields,
		CriticalFields:      criticalResult.Fields,
		MissingFields:       extraction.MissingFields,
		LowConfidenceFields: extraction.LowConfidenceFields,
		AggregateConfidence: criticalResult.AggregateConfidence,
	}

	validationArtifact, trace := p.engine.ValidateFields(validation.Input{
		DocumentID:  req.Document.ID,
		PackID:      resolved.ID,
		PackVersion: resolved.Version,
		PackChain:   resolved.PackChain,
		Rules:       resolved.ValidationRules,
		Fields:      mergeFields(extraction.Fields, criticalResult.Fields, evidence),
	})

	decision := review.Decide(validationArtifact, artifact)

	result := &AuditResult{
		DocumentID:      req.Document.ID,
		PackID:          resolved.ID,
		PackVersion:     resolved.Version,
		PackChain:       resolved.PackChain,
		SpecFingerprint: resolved.Fingerprint(),
		Outcome:         finalOutcome(validationArtifact, evidence, decision),
		Extraction:      artifact,
		Fusion:          evidence,
		Validation:      validationArtifact,
		Trace:           trace,
		Review:          decision,
	}

	if err := p.persist(ctx, logger, req.Document.ID, result); err != nil {
		return nil, err
	}

	logger.Info("audit.ok",
		"document_id", req.Document.ID,
		"pack_id", resolved.ID,
		"outcome", result.Outcome,
		"aggregate_confidence", artifact.AggregateConfidence,
		"queue", decision.Queue)
	return result, nil
}

func (p *Processor) packFor(req Request) string {
	if req.PackID != "" {
		return req.PackID
	}
	return p.settings.PackID
}

func (p *Processor) resolveFor(req Request) (*specs.ResolvedSpec, error) {
	return p.resolver.Resolve(p.packFor(req), p.settings.Resolve)
}

func (p *Processor) persist(ctx context.Context, logger *slog.Logger, documentID uuid.UUID, result *AuditResult) error {
	if p.artifacts != nil {
		if _, err := p.artifacts.StoreExtractionArtifact(ctx, result.Extraction); err != nil {
			logger.Error("audit.store.extraction_failed", "document_id", documentID, "err", err)
			return fmt.Errorf("store extraction artifact: %w", err)
		}
		if _, err := p.artifacts.StoreValidationArtifact(ctx, result.Validation, result.Trace); err != nil {
			logger.Error("audit.store.validation_failed", "document_id", documentID, "err", err)
			return fmt.Errorf("store validation artifact: %w", err)
		}
	}
	if p.queue != nil && result.Review.Queue {
		item := review.NewItem(uuid.New(), documentID, result.Review, time.Now().UTC())
		if err := p.queue.Enqueue(ctx, item); err != nil {
			logger.Error("audit.enqueue_failed", "document_id", documentID, "err", err)
			return fmt.Errorf("enqueue review item: %w", err)
		}
	}
	return nil
}

// mergeFields builds the field view validation runs against. Generic
// extraction supplies the base, critical results override their field IDs,
// and fused visual verdicts override theirs. A field whose critical or fused
// outcome asserted no value is removed so required rules see it as missing.
func mergeFields(generic []entity.ExtractedField, criticalFields []entity.FieldExtractionResult, evidence *entity.FusionEvidence) map[string]entity.ExtractedField {
	merged := make(map[string]entity.ExtractedField, len(generic))
	for _, field := range generic {
		merged[field.Field] = field
	}

	for _, result := range criticalFields {
		if !result.Extracted {
			delete(merged, result.FieldID)
			continue
		}
		merged[result.FieldID] = entity.ExtractedField{
			Field:           result.FieldID,
			Value:           entity.StringValue(result.Value),
			RawValue:        result.Value,
			Confidence:      result.Confidence,
			ConfidenceLevel: constants.ConfidenceLevelFor(result.Confidence),
			Method:          "critical",
			Normalized:      true,
		}
	}

	if evidence != nil {
		for _, fused := range evidence.Fields {
			if fused.Outcome == constants.ReasonConflict || fused.Outcome == constants.ReasonMissingField || fused.Value.IsNone() {
				delete(merged, fused.FieldID)
				continue
			}
			merged[fused.FieldID] = entity.ExtractedField{
				Field:           fused.FieldID,
				Value:           fused.Value,
				RawValue:        fused.Value.String(),
				Confidence:      fused.Confidence,
				ConfidenceLevel: constants.ConfidenceLevelFor(fused.Confidence),
				Method:          "fusion",
				Normalized:      true,
			}
		}
	}
	return merged
}

// finalOutcome folds the stage verdicts into one decision. Blocking
// validation failures fail the document outright; anything queued or
// visually unresolved goes to review; the rest pass.
func finalOutcome(validationArtifact *entity.ValidationArtifact, evidence *entity.FusionEvidence, decision review.Decision) constants.AuditOutcome {
	if !validationArtifact.Summary.OverallPassed {
		return constants.AuditFailed
	}
	if decision.Queue {
		return constants.AuditReviewRequired
	}
	if evidence != nil && evidence.Outcome != constants.DocumentValid {
		return constants.AuditReviewRequired
	}
	return constants.AuditPassed
}

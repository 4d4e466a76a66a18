package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

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

const jobSheetPage = `JOB SHEET

Job No: JS-1042
Asset ID: BLR-7731
Site Code: ABD-01
Date of visit: 2024-03-03
Next service due: 2025-03-03
All checks completed: [x]
Engineer signature: A. Smith`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProcessor(t *testing.T, pack *specs.SpecPack, artifacts repository.ArtifactStore, queue repository.ReviewQueueStore, settings Settings) *Processor {
	t.Helper()
	logger := testLogger()
	resolver := specs.NewResolver(logger)
	if err := resolver.Register(pack); err != nil {
		t.Fatalf("register pack: %v", err)
	}
	return NewProcessor(
		logger,
		resolver,
		extract.NewExtractor(logger),
		critical.NewExtractor(logger, critical.Config{}),
		fusion.NewFuser(logger, fusion.Thresholds{}),
		validation.NewEngine(logger),
		artifacts,
		queue,
		settings,
	)
}

func sheetRequest() Request {
	return Request{
		Document: entity.Document{ID: uuid.New(), ContentHash: "c0ffee"},
		Pages:    []entity.PageText{{PageNumber: 1, Text: jobSheetPage}},
	}
}

func TestProcess_PassingDocument(t *testing.T) {
	t.Parallel()
	pack := &specs.SpecPack{
		ID:      "gas-safety",
		Version: "1.0.0",
		Fields: []specs.FieldDefinition{
			{Field: "siteCode", Type: constants.FieldString, Required: true, ExtractionHints: []string{"site code"}},
		},
		ValidationRules: []specs.ValidationRule{
			{RuleID: "R001", Field: "jobReference", Type: constants.RulePattern, Pattern: `^JS-\d+$`, Severity: constants.SeverityCritical, Enabled: true},
			{RuleID: "R002", Field: "siteCode", Type: constants.RuleRequired, Severity: constants.SeverityMajor, Enabled: true},
			{RuleID: "R003", Field: "complianceTickboxes", Type: constants.RuleRequired, Severity: constants.SeverityCritical, Enabled: true},
		},
	}
	artifacts := repository.NewMemoryArtifactStore()
	queue := repository.NewMemoryReviewQueue()
	p := newTestProcessor(t, pack, artifacts, queue, Settings{PackID: "gas-safety"})

	req := sheetRequest()
	result, err := p.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if result.Outcome != constants.AuditPassed {
		t.Fatalf("expected PASSED, got %s", result.Outcome)
	}
	if !result.Validation.Summary.OverallPassed {
		t.Fatalf("expected overall pass, got %+v", result.Validation.Summary)
	}
	if result.SpecFingerprint == "" {
		t.Fatalf("expected a spec fingerprint")
	}
	if result.Review.Queue {
		t.Fatalf("clean document should not queue, got %+v", result.Review)
	}
	if len(result.Extraction.CriticalFields) != 6 {
		t.Fatalf("expected 6 critical field results, got %d", len(result.Extraction.CriticalFields))
	}
	if math.Abs(result.Extraction.AggregateConfidence-0.7) > 1e-9 {
		t.Fatalf("expected aggregate confidence 0.7, got %v", result.Extraction.AggregateConfidence)
	}

	if got := artifacts.Extractions(req.Document.ID); len(got) != 1 {
		t.Fatalf("expected 1 stored extraction, got %d", len(got))
	}
	if got := artifacts.Validations(req.Document.ID); len(got) != 1 {
		t.Fatalf("expected 1 stored validation, got %d", len(got))
	}
	if pending, _ := queue.ListPending(context.Background(), 10); len(pending) != 0 {
		t.Fatalf("expected empty review queue, got %d items", len(pending))
	}
}

func TestProcess_BlockingFailureFailsAndQueues(t *testing.T) {
	t.Parallel()
	pack := &specs.SpecPack{
		ID:      "gas-safety",
		Version: "1.0.0",
		ValidationRules: []specs.ValidationRule{
			{RuleID: "R001", Field: "jobReference", Type: constants.RulePattern, Pattern: `^WO-\d+$`, Severity: constants.SeverityCritical, Enabled: true},
		},
	}
	artifacts := repository.NewMemoryArtifactStore()
	queue := repository.NewMemoryReviewQueue()
	p := newTestProcessor(t, pack, artifacts, queue, Settings{PackID: "gas-safety"})

	result, err := p.Process(context.Background(), sheetRequest())
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if result.Outcome != constants.AuditFailed {
		t.Fatalf("expected FAILED, got %s", result.Outcome)
	}
	if !result.Review.Queue || result.Review.Priority != review.PriorityValidationFailed {
		t.Fatalf("expected priority-1 review decision, got %+v", result.Review)
	}
	pending, err := queue.ListPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 queued item, got %d", len(pending))
	}
	if pending[0].Reason != review.ReasonValidationFailed {
		t.Fatalf("expected validation_failed reason, got %q", pending[0].Reason)
	}
	if len(pending[0].Fields) != 1 || pending[0].Fields[0] != "jobReference" {
		t.Fatalf("expected [jobReference], got %v", pending[0].Fields)
	}
}

func TestProcess_LowConfidenceRoutesToReview(t *testing.T) {
	t.Parallel()
	pack := &specs.SpecPack{
		ID:      "gas-safety",
		Version: "1.0.0",
		Fields: []specs.FieldDefinition{
			{Field: "siteCode", Type: constants.FieldString, Required: true, ExtractionHints: []string{"site code"}},
		},
		ValidationRules: []specs.ValidationRule{
			{RuleID: "R002", Field: "siteCode", Type: constants.RuleRequired, Severity: constants.SeverityMajor, Enabled: true},
		},
	}
	queue := repository.NewMemoryReviewQueue()
	p := newTestProcessor(t, pack, repository.NewMemoryArtifactStore(), queue, Settings{
		PackID:        "gas-safety",
		MinConfidence: 0.85,
	})

	result, err := p.Process(context.Background(), sheetRequest())
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if result.Outcome != constants.AuditReviewRequired {
		t.Fatalf("expected REVIEW_REQUIRED, got %s", result.Outcome)
	}
	if !result.Validation.Summary.OverallPassed {
		t.Fatalf("low confidence should not fail validation, got %+v", result.Validation.Summary)
	}
	if result.Review.Priority != review.PriorityLowConfidence {
		t.Fatalf("expected priority-2 decision, got %+v", result.Review)
	}
	pending, _ := queue.ListPending(context.Background(), 10)
	if len(pending) != 1 || pending[0].Priority != review.PriorityLowConfidence {
		t.Fatalf("expected one priority-2 item, got %+v", pending)
	}
	if len(pending[0].Fields) != 1 || pending[0].Fields[0] != "siteCode" {
		t.Fatalf("expected [siteCode], got %v", pending[0].Fields)
	}
}

func TestProcess_FusionConflictRemovesField(t *testing.T) {
	t.Parallel()
	pack := &specs.SpecPack{
		ID:      "gas-safety",
		Version: "1.0.0",
		ValidationRules: []specs.ValidationRule{
			{RuleID: "R004", Field: "engineerSignOff", Type: constants.RuleRequired, Severity: constants.SeverityCritical, Enabled: true},
		},
	}
	queue := repository.NewMemoryReviewQueue()
	p := newTestProcessor(t, pack, repository.NewMemoryArtifactStore(), queue, Settings{PackID: "gas-safety"})

	req := sheetRequest()
	req.OCRSignals = map[string]entity.OCRFieldResult{
		"engineerSignOff": {FieldID: "engineerSignOff", Present: true, Value: "A. Smith", Confidence: 0.9},
	}
	req.ImageQA = map[string]entity.ImageQAResult{
		"engineerSignOff": {FieldID: "engineerSignOff", Present: false, Confidence: 0.9},
	}

	result, err := p.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if result.Fusion == nil || result.Fusion.Outcome != constants.DocumentConflict {
		t.Fatalf("expected CONFLICT fusion outcome, got %+v", result.Fusion)
	}
	if result.Outcome != constants.AuditFailed {
		t.Fatalf("conflicted required field should fail the audit, got %s", result.Outcome)
	}
	if len(result.Validation.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %+v", result.Validation.Findings)
	}
	finding := result.Validation.Findings[0]
	if finding.Field != "engineerSignOff" || finding.ReasonCode != constants.ReasonMissingField {
		t.Fatalf("expected missing engineerSignOff finding, got %+v", finding)
	}
	pending, _ := queue.ListPending(context.Background(), 10)
	if len(pending) != 1 || pending[0].Priority != review.PriorityValidationFailed {
		t.Fatalf("expected one priority-1 item, got %+v", pending)
	}
}

func TestProcess_FusionAgreementSuppliesValue(t *testing.T) {
	t.Parallel()
	pack := &specs.SpecPack{
		ID:      "gas-safety",
		Version: "1.0.0",
		ValidationRules: []specs.ValidationRule{
			{RuleID: "R004", Field: "engineerSignOff", Type: constants.RuleRequired, Severity: constants.SeverityCritical, Enabled: true},
		},
	}
	p := newTestProcessor(t, pack, repository.NewMemoryArtifactStore(), repository.NewMemoryReviewQueue(), Settings{PackID: "gas-safety"})

	req := sheetRequest()
	req.OCRSignals = map[string]entity.OCRFieldResult{
		"engineerSignOff": {FieldID: "engineerSignOff", Present: true, Value: "A. Smith", Confidence: 0.9},
	}
	req.ImageQA = map[string]entity.ImageQAResult{
		"engineerSignOff": {FieldID: "engineerSignOff", Present: true, Confidence: 0.9},
	}

	result, err := p.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if result.Fusion == nil || result.Fusion.Outcome != constants.DocumentValid {
		t.Fatalf("expected VALID fusion outcome, got %+v", result.Fusion)
	}
	if result.Outcome != constants.AuditPassed {
		t.Fatalf("expected PASSED, got %s", result.Outcome)
	}

	var signOff *entity.ValidatedField
	for i := range result.Validation.ValidatedFields {
		if result.Validation.ValidatedFields[i].Field == "engineerSignOff" {
			signOff = &result.Validation.ValidatedFields[i]
		}
	}
	if signOff == nil {
		t.Fatalf("expected a validated engineerSignOff entry")
	}
	if !signOff.Value.Equal(entity.StringValue("A. Smith")) {
		t.Fatalf("expected fused value to reach validation, got %+v", signOff.Value)
	}
	if math.Abs(signOff.Confidence-0.99) > 1e-9 {
		t.Fatalf("expected boosted confidence 0.99, got %v", signOff.Confidence)
	}
}

func TestProcess_UnknownPackFails(t *testing.T) {
	t.Parallel()
	pack := &specs.SpecPack{ID: "gas-safety", Version: "1.0.0"}
	p := newTestProcessor(t, pack, nil, nil, Settings{PackID: "not-registered"})

	_, err := p.Process(context.Background(), sheetRequest())
	if !errors.Is(err, common.ErrPackNotFound) {
		t.Fatalf("expected pack-not-found error, got %v", err)
	}
}

func TestProcess_BrokenRuleAborts(t *testing.T) {
	t.Parallel()
	pack := &specs.SpecPack{
		ID:      "gas-safety",
		Version: "1.0.0",
		ValidationRules: []specs.ValidationRule{
			{RuleID: "R001", Field: "jobReference", Type: constants.RulePattern, Pattern: `([`, Severity: constants.SeverityCritical, Enabled: true},
		},
	}
	artifacts := repository.NewMemoryArtifactStore()
	p := newTestProcessor(t, pack, artifacts, nil, Settings{PackID: "gas-safety"})

	req := sheetRequest()
	_, err := p.Process(context.Background(), req)
	if !errors.Is(err, common.ErrInvalidPattern) {
		t.Fatalf("expected invalid-pattern error, got %v", err)
	}
	if got := artifacts.Extractions(req.Document.ID); len(got) != 0 {
		t.Fatalf("aborted run must not store artifacts, got %d", len(got))
	}
}

func TestProcess_RequestPackOverridesDefault(t *testing.T) {
	t.Parallel()
	logger := testLogger()
	resolver := specs.NewResolver(logger)
	base := &specs.SpecPack{ID: "gas-safety", Version: "1.0.0"}
	overlay := &specs.SpecPack{ID: "gas-safety-scotland", Version: "2.1.0", Extends: "gas-safety"}
	if err := resolver.Register(base); err != nil {
		t.Fatalf("register base: %v", err)
	}
	if err := resolver.Register(overlay); err != nil {
		t.Fatalf("register overlay: %v", err)
	}
	p := NewProcessor(
		logger,
		resolver,
		extract.NewExtractor(logger),
		critical.NewExtractor(logger, critical.Config{}),
		fusion.NewFuser(logger, fusion.Thresholds{}),
		validation.NewEngine(logger),
		nil,
		nil,
		Settings{PackID: "gas-safety"},
	)

	req := sheetRequest()
	req.PackID = "gas-safety-scotland"
	result, err := p.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.PackID != "gas-safety-scotland" || result.PackVersion != "2.1.0" {
		t.Fatalf("expected overlay pack, got %s@%s", result.PackID, result.PackVersion)
	}
	if len(result.PackChain) != 2 || result.PackChain[0] != "gas-safety" {
		t.Fatalf("expected base-first chain, got %v", result.PackChain)
	}
}

func TestMergeFields_CriticalAndFusedOverrides(t *testing.T) {
	t.Parallel()
	generic := []entity.ExtractedField{
		{Field: "siteCode", Value: entity.StringValue("ABD-01"), Confidence: 0.8},
		{Field: "jobReference", Value: entity.StringValue("js-1042"), Confidence: 0.6},
	}
	criticalFields := []entity.FieldExtractionResult{
		{FieldID: "jobReference", Extracted: true, Value: "JS-1042", Confidence: 0.9},
		{FieldID: "assetId", Extracted: false},
	}
	evidence := &entity.FusionEvidence{
		Fields: []entity.FusedFieldResult{
			{FieldID: "engineerSignOff", Outcome: constants.ReasonValid, Value: entity.StringValue("A. Smith"), Confidence: 0.95},
			{FieldID: "complianceTickboxes", Outcome: constants.ReasonConflict, Value: entity.NoValue()},
		},
	}

	merged := mergeFields(generic, criticalFields, evidence)

	if got := merged["jobReference"]; !got.Value.Equal(entity.StringValue("JS-1042")) || got.Method != "critical" {
		t.Fatalf("expected critical override for jobReference, got %+v", got)
	}
	if _, ok := merged["assetId"]; ok {
		t.Fatalf("unextracted critical field must not appear")
	}
	if got := merged["engineerSignOff"]; !got.Value.Equal(entity.StringValue("A. Smith")) || got.Method != "fusion" {
		t.Fatalf("expected fused engineerSignOff, got %+v", got)
	}
	if _, ok := merged["complianceTickboxes"]; ok {
		t.Fatalf("conflicted fused field must not appear")
	}
	if got := merged["siteCode"]; !got.Value.Equal(entity.StringValue("ABD-01")) {
		t.Fatalf("expected untouched generic field, got %+v", got)
	}
}

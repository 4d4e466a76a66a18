package fusion

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/oakmoor/jobsheet-audit/constants"
	"github.com/oakmoor/jobsheet-audit/internal/entity"
)

func testFuser() *Fuser {
	return NewFuser(slog.New(slog.NewTextHandler(io.Discard, nil)), Thresholds{})
}

func ocrSignal(present bool, confidence float64, value string) *entity.OCRFieldResult {
	return &entity.OCRFieldResult{FieldID: "engineerSignOff", Present: present, Confidence: confidence, Value: value}
}

func qaSignal(present bool, confidence float64) *entity.ImageQAResult {
	return &entity.ImageQAResult{FieldID: "engineerSignOff", Present: present, Confidence: confidence}
}

func TestFuseField_DecisionTable(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name        string
		ocr         *entity.OCRFieldResult
		qa          *entity.ImageQAResult
		wantOutcome constants.ReasonCode
		wantConf    float64
		wantValue   entity.FieldValue
	}{
		{
			name: "disagree both confident",
			ocr:  ocrSignal(true, 0.9, "A. Smith"), qa: qaSignal(false, 0.9),
			wantOutcome: constants.ReasonConflict, wantConf: 0.9, wantValue: entity.NoValue(),
		},
		{
			name: "disagree trust ocr",
			ocr:  ocrSignal(true, 0.85, "A. Smith"), qa: qaSignal(false, 0.5),
			wantOutcome: constants.ReasonLowConfidence, wantConf: 0.85 * 0.7, wantValue: entity.StringValue("A. Smith"),
		},
		{
			name: "disagree trust image",
			ocr:  ocrSignal(false, 0.4, ""), qa: qaSignal(true, 0.9),
			wantOutcome: constants.ReasonLowConfidence, wantConf: 0.9 * 0.7, wantValue: entity.BoolValue(true),
		},
		{
			name: "disagree neither trustworthy",
			ocr:  ocrSignal(true, 0.5, "smudge"), qa: qaSignal(false, 0.6),
			wantOutcome: constants.ReasonConflict, wantConf: 0.6 * 0.5, wantValue: entity.NoValue(),
		},
		{
			name: "agree both high gets boost",
			ocr:  ocrSignal(true, 0.85, "J. Doe"), qa: qaSignal(true, 0.9),
			wantOutcome: constants.ReasonValid, wantConf: 0.875 * 1.1, wantValue: entity.StringValue("J. Doe"),
		},
		{
			name: "agree boost capped at one",
			ocr:  ocrSignal(true, 0.95, "J. Doe"), qa: qaSignal(true, 0.95),
			wantOutcome: constants.ReasonValid, wantConf: 1.0, wantValue: entity.StringValue("J. Doe"),
		},
		{
			name: "agree but ocr below medium",
			ocr:  ocrSignal(true, 0.5, "faint"), qa: qaSignal(true, 0.8),
			wantOutcome: constants.ReasonLowConfidence, wantConf: 0.65, wantValue: entity.StringValue("faint"),
		},
		{
			name: "agree usable average",
			ocr:  ocrSignal(true, 0.7, "B. Jones"), qa: qaSignal(true, 0.8),
			wantOutcome: constants.ReasonValid, wantConf: 0.75, wantValue: entity.StringValue("B. Jones"),
		},
		{
			name: "agree average below floor",
			ocr:  ocrSignal(true, 0.62, "B. Jones"), qa: qaSignal(true, 0.7),
			wantOutcome: constants.ReasonLowConfidence, wantConf: 0.66, wantValue: entity.StringValue("B. Jones"),
		},
		{
			name: "ocr signal only above floor",
			ocr:  ocrSignal(true, 0.9, "C. Wren"), qa: nil,
			wantOutcome: constants.ReasonValid, wantConf: 0.9, wantValue: entity.StringValue("C. Wren"),
		},
		{
			name: "ocr signal only below floor",
			ocr:  ocrSignal(true, 0.65, "C. Wren"), qa: nil,
			wantOutcome: constants.ReasonLowConfidence, wantConf: 0.65, wantValue: entity.StringValue("C. Wren"),
		},
		{
			name: "image signal only",
			ocr:  nil, qa: qaSignal(true, 0.9),
			wantOutcome: constants.ReasonValid, wantConf: 0.9, wantValue: entity.BoolValue(true),
		},
		{
			name: "no signals",
			ocr:  nil, qa: nil,
			wantOutcome: constants.ReasonMissingField, wantConf: 0, wantValue: entity.NoValue(),
		},
	}

	f := testFuser()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := f.FuseField("engineerSignOff", tc.ocr, tc.qa)
			if got.Outcome != tc.wantOutcome {
				t.Fatalf("expected outcome %s, got %+v", tc.wantOutcome, got)
			}
			if math.Abs(got.Confidence-tc.wantConf) > 1e-9 {
				t.Fatalf("expected confidence %v, got %v", tc.wantConf, got.Confidence)
			}
			if !got.Value.Equal(tc.wantValue) {
				t.Fatalf("expected value %+v, got %+v", tc.wantValue, got.Value)
			}
		})
	}
}

func TestFuseDocument_OutcomePrecedence(t *testing.T) {
	t.Parallel()
	f := testFuser()
	docID := uuid.MustParse("5f0c23ea-5f6f-4a46-9a3b-111111111111")

	// alias keys exercise canonicalization
	ocr := map[string]entity.OCRFieldResult{
		"signature": {FieldID: "signature", Present: true, Confidence: 0.7, Value: "A. Smith"},
		"tickboxes": {FieldID: "tickboxes", Present: true, Confidence: 0.9, Value: "4/4"},
	}
	qa := map[string]entity.ImageQAResult{
		"signature": {FieldID: "signature", Present: true, Confidence: 0.8},
		"tickboxes": {FieldID: "tickboxes", Present: false, Confidence: 0.9},
	}

	evidence := f.FuseDocument(docID, ocr, qa, nil)
	if evidence.Outcome != constants.DocumentConflict {
		t.Fatalf("expected CONFLICT to dominate, got %+v", evidence)
	}
	if len(evidence.Fields) != 2 {
		t.Fatalf("expected two fused fields, got %+v", evidence.Fields)
	}
	if evidence.Fields[0].FieldID != FieldComplianceTickboxes || evidence.Fields[1].FieldID != FieldEngineerSignOff {
		t.Fatalf("expected canonical IDs in sorted order, got %+v", evidence.Fields)
	}

	// without the conflicting field the document only needs review when
	// something is below par; here the remaining field is VALID
	delete(ocr, "tickboxes")
	delete(qa, "tickboxes")
	evidence = f.FuseDocument(docID, ocr, qa, nil)
	if evidence.Outcome != constants.DocumentValid {
		t.Fatalf("expected VALID document, got %+v", evidence)
	}
}

func TestFuseDocument_ReviewRequired(t *testing.T) {
	t.Parallel()
	f := testFuser()
	docID := uuid.MustParse("5f0c23ea-5f6f-4a46-9a3b-222222222222")

	ocr := map[string]entity.OCRFieldResult{
		"engineerSignOff": {FieldID: "engineerSignOff", Present: true, Confidence: 0.5, Value: "faint"},
	}
	qa := map[string]entity.ImageQAResult{
		"engineerSignOff": {FieldID: "engineerSignOff", Present: true, Confidence: 0.8},
	}

	evidence := f.FuseDocument(docID, ocr, qa, nil)
	if evidence.Outcome != constants.DocumentReviewRequired {
		t.Fatalf("expected REVIEW_REQUIRED, got %+v", evidence)
	}
}

func TestCropHash_DeterministicAndGeometryBound(t *testing.T) {
	t.Parallel()
	docID := uuid.MustParse("5f0c23ea-5f6f-4a46-9a3b-333333333333")
	roi := entity.ROI{Page: 1, X: 0.1, Y: 0.75, Width: 0.4, Height: 0.12}

	first := CropHash(docID, FieldEngineerSignOff, roi)
	second := CropHash(docID, FieldEngineerSignOff, roi)
	if first != second {
		t.Fatalf("expected stable hash, got %s vs %s", first, second)
	}
	if CropHash(docID, FieldComplianceTickboxes, roi) == first {
		t.Fatalf("expected field id to participate in hash")
	}
	moved := roi
	moved.X = 0.2
	if CropHash(docID, FieldEngineerSignOff, moved) == first {
		t.Fatalf("expected geometry to participate in hash")
	}
}

func TestFuseDocument_AttachesCropEvidence(t *testing.T) {
	t.Parallel()
	f := testFuser()
	docID := uuid.MustParse("5f0c23ea-5f6f-4a46-9a3b-444444444444")

	ocr := map[string]entity.OCRFieldResult{
		"engineerSignOff": {FieldID: "engineerSignOff", Present: true, Confidence: 0.9, Value: "A. Smith"},
	}
	qa := map[string]entity.ImageQAResult{
		"engineerSignOff": {FieldID: "engineerSignOff", Present: true, Confidence: 0.9},
	}
	rois := map[string]entity.ROI{
		"engineerSignOff": {Page: 2, X: 0.55, Y: 0.8, Width: 0.35, Height: 0.1},
	}

	evidence := f.FuseDocument(docID, ocr, qa, rois)
	field := evidence.Fields[0]
	if field.ROI == nil || field.CropHash == "" {
		t.Fatalf("expected ROI and crop hash attached, got %+v", field)
	}
	if field.CropHash != CropHash(docID, FieldEngineerSignOff, *field.ROI) {
		t.Fatalf("expected crop hash derived from ids and geometry, got %+v", field)
	}
}

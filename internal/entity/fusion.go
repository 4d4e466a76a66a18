package entity

import (
	"github.com/google/uuid"

	"github.com/oakmoor/jobsheet-audit/constants"
)

// OCRFieldResult is the text-side signal for a visual field: whether OCR
// found it, the text it read, and how sure it is.
type OCRFieldResult struct {
	FieldID    string  `json:"field_id"`
	Present    bool    `json:"present"`
	Value      string  `json:"value,omitempty"`
	Confidence float64 `json:"confidence"`
}

// ImageQAResult is the vision-side signal for a visual field, produced by
// an image model looking at the page crop.
type ImageQAResult struct {
	FieldID    string  `json:"field_id"`
	Present    bool    `json:"present"`
	Label      string  `json:"label,omitempty"`
	Confidence float64 `json:"confidence"`
}

// FusedFieldResult is the reconciled verdict for one visual field after
// weighing both signals against each other.
type FusedFieldResult struct {
	FieldID           string               `json:"field_id"`
	Outcome           constants.ReasonCode `json:"outcome"`
	Value             FieldValue           `json:"value"`
	Confidence        float64              `json:"confidence"`
	Reason            string               `json:"reason"`
	OCRConfidence     float64              `json:"ocr_confidence"`
	ImageQAConfidence float64              `json:"image_qa_confidence"`
	CropHash          string               `json:"crop_hash,omitempty"`
	ROI               *ROI                 `json:"roi,omitempty"`
}

// FusionEvidence is the versioned fusion record for one document. Crop
// hashes inside are derived from identifiers and geometry only, never from
// document bytes, so re-running a document reproduces them exactly.
type FusionEvidence struct {
	SchemaVersion string                    `json:"schema_version"`
	DocumentID    uuid.UUID                 `json:"document_id"`
	Outcome       constants.DocumentOutcome `json:"outcome"`
	Fields        []FusedFieldResult        `json:"fields"`
}

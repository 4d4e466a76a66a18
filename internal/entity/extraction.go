package entity

import (
	"github.com/google/uuid"

	"github.com/oakmoor/jobsheet-audit/constants"
)

// ExtractedField is one field pulled from document text by the generic
// spec-driven extractor.
type ExtractedField struct {
	Field           string                    `json:"field"`
	Value           FieldValue                `json:"value"`
	RawValue        string                    `json:"raw_value,omitempty"`
	Confidence      float64                   `json:"confidence"`
	ConfidenceLevel constants.ConfidenceLevel `json:"confidence_level"`
	PageNumber      int                       `json:"page_number"`
	Method          string                    `json:"method"`
	Normalized      bool                      `json:"normalized"`
}

// ExtractionCandidate is one possible value for a critical field, with the
// provenance needed to audit the selection afterwards.
type ExtractionCandidate struct {
	Value          string                    `json:"value"`
	Confidence     float64                   `json:"confidence"`
	Source         constants.CandidateSource `json:"source"`
	PageNumber     int                       `json:"page_number"`
	MatchedPattern string                    `json:"matched_pattern,omitempty"`
}

// FieldExtractionResult is the full decision record for one critical field:
// every candidate considered, which one was selected, and why.
type FieldExtractionResult struct {
	FieldID           string                `json:"field_id"`
	Extracted         bool                  `json:"extracted"`
	Value             string                `json:"value,omitempty"`
	Confidence        float64               `json:"confidence"`
	Candidates        []ExtractionCandidate `json:"candidates"`
	SelectedCandidate int                   `json:"selected_candidate"` // index into Candidates, -1 if none
	ReasonCode        constants.ReasonCode  `json:"reason_code"`
	Components        *DateComponents       `json:"components,omitempty"`
	ValidationNotes   []string              `json:"validation_notes,omitempty"`
}

// ExtractionArtifact is the versioned extraction record for one document.
// It carries no timestamps; persistence stamps those so identical inputs
// keep producing byte-identical payloads.
type ExtractionArtifact struct {
	SchemaVersion       string                  `json:"schema_version"`
	EngineVersion       string                  `json:"engine_version"`
	DocumentID          uuid.UUID               `json:"document_id"`
	PackID              string                  `json:"pack_id"`
	PackVersion         string                  `json:"pack_version"`
	Fields              []ExtractedField        `json:"fields"`
	CriticalFields      []FieldExtractionResult `json:"critical_fields"`
	MissingFields       []string                `json:"missing_fields"`
	LowConfidenceFields []string                `json:"low_confidence_fields"`
	AggregateConfidence float64                 `json:"aggregate_confidence"`
}

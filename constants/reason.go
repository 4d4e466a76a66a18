package constants

import (
	"strings"
)

// ReasonCode is the canonical machine-readable code attached to every
// field-level and document-level decision.
type ReasonCode string

// Stable values (store these exact strings in artifacts and queue rows).
const (
	ReasonValid         ReasonCode = "VALID"
	ReasonMissingField  ReasonCode = "MISSING_FIELD"
	ReasonInvalidFormat ReasonCode = "INVALID_FORMAT"
	ReasonOutOfPolicy   ReasonCode = "OUT_OF_POLICY"
	ReasonLowConfidence ReasonCode = "LOW_CONFIDENCE"
	ReasonConflict      ReasonCode = "CONFLICT"
)

// Adjacent codes used by the surrounding system; they may enter through
// upstream signals but are never minted by the decision core.
const (
	ReasonOCRFailure         ReasonCode = "OCR_FAILURE"
	ReasonSpecGap            ReasonCode = "SPEC_GAP"
	ReasonIncompleteEvidence ReasonCode = "INCOMPLETE_EVIDENCE"
	ReasonSecurityRisk       ReasonCode = "SECURITY_RISK"
	ReasonPipelineError      ReasonCode = "PIPELINE_ERROR"
	ReasonUnreadableField    ReasonCode = "UNREADABLE_FIELD"
)

var coreReasonCodes = []ReasonCode{
	ReasonValid,
	ReasonMissingField,
	ReasonInvalidFormat,
	ReasonOutOfPolicy,
	ReasonLowConfidence,
	ReasonConflict,
}

var adjacentReasonCodes = []ReasonCode{
	ReasonOCRFailure,
	ReasonSpecGap,
	ReasonIncompleteEvidence,
	ReasonSecurityRisk,
	ReasonPipelineError,
	ReasonUnreadableField,
}

// ReasonCodesAsStrings returns the full code vocabulary, core codes first.
func ReasonCodesAsStrings() []string {
	result := make([]string, 0, len(coreReasonCodes)+len(adjacentReasonCodes))
	for _, code := range coreReasonCodes {
		result = append(result, string(code))
	}
	for _, code := range adjacentReasonCodes {
		result = append(result, string(code))
	}
	return result
}

// IsCoreReason reports whether code is one of the six codes the decision
// core is allowed to emit.
func IsCoreReason(code ReasonCode) bool {
	for _, c := range coreReasonCodes {
		if c == code {
			return true
		}
	}
	return false
}

// CanonicalizeReason maps free-form or legacy reason strings onto the
// canonical vocabulary. Unknown inputs map to PIPELINE_ERROR so nothing
// unrecognized ever reaches an artifact.
func CanonicalizeReason(input string) (ReasonCode, bool) {
	if input == "" {
		return ReasonPipelineError, false
	}

	normalized := strings.ToUpper(strings.TrimSpace(input))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.ReplaceAll(normalized, " ", "_")

	// legacy spellings from older extractors
	legacy := map[string]ReasonCode{
		"OK":                ReasonValid,
		"PASS":              ReasonValid,
		"NOT_FOUND":         ReasonMissingField,
		"FIELD_MISSING":     ReasonMissingField,
		"MISSING":           ReasonMissingField,
		"BAD_FORMAT":        ReasonInvalidFormat,
		"FORMAT_ERROR":      ReasonInvalidFormat,
		"POLICY_VIOLATION":  ReasonOutOfPolicy,
		"OUT_OF_RANGE":      ReasonOutOfPolicy,
		"UNCERTAIN":         ReasonLowConfidence,
		"LOW_CONF":          ReasonLowConfidence,
		"AMBIGUOUS":         ReasonConflict,
		"DISAGREEMENT":      ReasonConflict,
		"OCR_ERROR":         ReasonOCRFailure,
		"ILLEGIBLE":         ReasonUnreadableField,
		"UNREADABLE":        ReasonUnreadableField,
		"NO_SPEC":           ReasonSpecGap,
		"PARTIAL_EVIDENCE":  ReasonIncompleteEvidence,
		"TAMPERED":          ReasonSecurityRisk,
		"INTERNAL_ERROR":    ReasonPipelineError,
		"PROCESSING_FAILED": ReasonPipelineError,
	}

	if code, ok := legacy[normalized]; ok {
		return code, true
	}

	for _, code := range coreReasonCodes {
		if normalized == string(code) {
			return code, true
		}
	}
	for _, code := range adjacentReasonCodes {
		if normalized == string(code) {
			return code, true
		}
	}

	return ReasonPipelineError, false
}

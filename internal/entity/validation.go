package entity

import (
	"github.com/google/uuid"

	"github.com/oakmoor/jobsheet-audit/constants"
)

// ValidatedField is the evaluation record for one rule against one field.
// Every rule in the resolved spec yields exactly one of these per run.
type ValidatedField struct {
	RuleID     string                     `json:"rule_id"`
	Field      string                     `json:"field"`
	Status     constants.ValidationStatus `json:"status"`
	Severity   constants.Severity         `json:"severity"`
	Message    string                     `json:"message,omitempty"`
	Value      FieldValue                 `json:"value"`
	Confidence float64                    `json:"confidence"`
}

// Finding is a failed rule reshaped for reporting and review.
type Finding struct {
	RuleID     string               `json:"rule_id"`
	Field      string               `json:"field"`
	Severity   constants.Severity   `json:"severity"`
	ReasonCode constants.ReasonCode `json:"reason_code"`
	Message    string               `json:"message"`
	Value      FieldValue           `json:"value"`
}

// ValidationSummary aggregates rule outcomes for one document.
type ValidationSummary struct {
	TotalRules       int  `json:"total_rules"`
	Passed           int  `json:"passed"`
	Failed           int  `json:"failed"`
	Skipped          int  `json:"skipped"`
	Errors           int  `json:"errors"`
	CriticalFailures int  `json:"critical_failures"`
	MajorFailures    int  `json:"major_failures"`
	MinorFailures    int  `json:"minor_failures"`
	InfoFailures     int  `json:"info_failures"`
	OverallPassed    bool `json:"overall_passed"`
}

// ValidationArtifact is the versioned validation record for one document.
type ValidationArtifact struct {
	SchemaVersion   string            `json:"schema_version"`
	EngineVersion   string            `json:"engine_version"`
	DocumentID      uuid.UUID         `json:"document_id"`
	PackID          string            `json:"pack_id"`
	PackVersion     string            `json:"pack_version"`
	ValidatedFields []ValidatedField  `json:"validated_fields"`
	Findings        []Finding         `json:"findings"`
	Summary         ValidationSummary `json:"summary"`
}

// TraceEntry records one rule evaluation with the value it saw.
type TraceEntry struct {
	RuleID   string                     `json:"rule_id"`
	Field    string                     `json:"field"`
	RuleType constants.RuleType         `json:"rule_type"`
	Status   constants.ValidationStatus `json:"status"`
	Value    string                     `json:"value,omitempty"`
	Note     string                     `json:"note,omitempty"`
}

// ValidationTrace is the versioned per-rule evaluation trail, kept separate
// from the artifact so it can be stored or dropped independently.
type ValidationTrace struct {
	SchemaVersion string       `json:"schema_version"`
	DocumentID    uuid.UUID    `json:"document_id"`
	PackChain     []string     `json:"pack_chain"`
	Entries       []TraceEntry `json:"entries"`
}

package constants

// ValidationStatus is the canonical per-rule evaluation status.
type ValidationStatus string

// Stable values (store these exact strings in artifacts).
const (
	StatusPassed  ValidationStatus = "passed"
	StatusFailed  ValidationStatus = "failed"
	StatusSkipped ValidationStatus = "skipped" // rule disabled or not applicable
	StatusError   ValidationStatus = "error"   // rule itself is broken (bad regex, unknown validator)
)

// ReviewStatus is the canonical status for rows in review_queue.
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "PENDING"
	ReviewInReview  ReviewStatus = "IN_REVIEW"
	ReviewResolved  ReviewStatus = "RESOLVED"
	ReviewDismissed ReviewStatus = "DISMISSED"
)

// ReviewStatuses holds the allowed queue statuses for schema validation.
var ReviewStatuses = []string{
	string(ReviewPending),
	string(ReviewInReview),
	string(ReviewResolved),
	string(ReviewDismissed),
}

// DocumentOutcome is the visual-evidence verdict a document gets from
// signal fusion, before validation rules are applied.
type DocumentOutcome string

const (
	DocumentValid          DocumentOutcome = "VALID"
	DocumentReviewRequired DocumentOutcome = "REVIEW_REQUIRED"
	DocumentConflict       DocumentOutcome = "CONFLICT"
)

// AuditOutcome is the final decision for a document.
type AuditOutcome string

const (
	AuditPassed         AuditOutcome = "PASSED"
	AuditFailed         AuditOutcome = "FAILED"
	AuditReviewRequired AuditOutcome = "REVIEW_REQUIRED"
)

// CandidateSource records where an extraction candidate was found.
type CandidateSource string

const (
	SourcePattern CandidateSource = "pattern" // anchored pattern over full-page text
	SourceROI     CandidateSource = "roi"     // pattern over ROI-scoped text
	SourceContext CandidateSource = "context" // looser keyword-proximity match
)

// ConfidenceLevel buckets a numeric confidence for reporting.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceNone   ConfidenceLevel = "none"
)

// ConfidenceLevelFor buckets a confidence score. The bands follow the
// fusion thresholds: 0.8 and up is high, 0.6 and up is medium.
func ConfidenceLevelFor(confidence float64) ConfidenceLevel {
	switch {
	case confidence >= 0.8:
		return ConfidenceHigh
	case confidence >= 0.6:
		return ConfidenceMedium
	case confidence > 0:
		return ConfidenceLow
	default:
		return ConfidenceNone
	}
}

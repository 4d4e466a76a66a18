package review

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/oakmoor/jobsheet-audit/constants"
	"github.com/oakmoor/jobsheet-audit/internal/entity"
)

// Queue-worthiness reasons and their priorities. Priority 1 outranks 2.
const (
	ReasonValidationFailed = "validation_failed"
	ReasonLowConfidence    = "low_confidence"

	PriorityValidationFailed = 1
	PriorityLowConfidence    = 2
)

// Decision is the queue-worthiness verdict for one document.
type Decision struct {
	Queue    bool     `json:"queue"`
	Reason   string   `json:"reason,omitempty"`
	Fields   []string `json:"fields,omitempty"`
	Priority int      `json:"priority,omitempty"`
}

// Decide is a pure function from audit outputs to a queue decision.
// Blocking validation failures queue at priority 1; otherwise any
// low-confidence extraction queues at priority 2. Conflicted fields carry
// no value, so they surface here through the required-rule failures they
// cause rather than as a reason of their own.
func Decide(validation *entity.ValidationArtifact, extraction *entity.ExtractionArtifact) Decision {
	if validation != nil {
		blocking := make(map[string]bool)
		for _, finding := range validation.Findings {
			if finding.Severity.Blocking() {
				blocking[finding.Field] = true
			}
		}
		if len(blocking) > 0 {
			return Decision{
				Queue:    true,
				Reason:   ReasonValidationFailed,
				Fields:   sortedKeys(blocking),
				Priority: PriorityValidationFailed,
			}
		}
	}

	if extraction != nil && len(extraction.LowConfidenceFields) > 0 {
		fields := make(map[string]bool, len(extraction.LowConfidenceFields))
		for _, field := range extraction.LowConfidenceFields {
			fields[field] = true
		}
		return Decision{
			Queue:    true,
			Reason:   ReasonLowConfidence,
			Fields:   sortedKeys(fields),
			Priority: PriorityLowConfidence,
		}
	}

	return Decision{}
}

// NewItem shapes a queue decision into the first revision of a review
// entry. The caller supplies identity and clock so repeated runs stay
// reproducible in tests.
func NewItem(id, documentID uuid.UUID, decision Decision, now time.Time) entity.ReviewItem {
	return entity.ReviewItem{
		ID:         id,
		DocumentID: documentID,
		Revision:   1,
		Reason:     decision.Reason,
		Fields:     append([]string(nil), decision.Fields...),
		Priority:   decision.Priority,
		Status:     constants.ReviewPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Transition produces the next revision of an item with a new status. The
// original identity and creation time are preserved; nothing is mutated.
func Transition(item entity.ReviewItem, status constants.ReviewStatus, note string, now time.Time) (entity.ReviewItem, error) {
	if !validTransition(item.Status, status) {
		return entity.ReviewItem{}, fmt.Errorf("review item %s: cannot move from %s to %s", item.ID, item.Status, status)
	}
	next := item
	next.Revision = item.Revision + 1
	next.Status = status
	next.Note = note
	next.UpdatedAt = now
	next.Fields = append([]string(nil), item.Fields...)
	return next, nil
}

func validTransition(from, to constants.ReviewStatus) bool {
	switch from {
	case constants.ReviewPending:
		return to == constants.ReviewInReview || to == constants.ReviewResolved || to == constants.ReviewDismissed
	case constants.ReviewInReview:
		return to == constants.ReviewResolved || to == constants.ReviewDismissed
	default:
		return false
	}
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/oakmoor/jobsheet-audit/constants"
)

// ReviewItem represents a review queue entry for data transfer between
// layers. The queue is append-only: a status transition produces a new
// revision with the same ID and CreatedAt rather than rewriting the row.
type ReviewItem struct {
	ID         uuid.UUID              `json:"id"`
	DocumentID uuid.UUID              `json:"document_id"`
	Revision   int                    `json:"revision"`
	Reason     string                 `json:"reason"`
	Fields     []string               `json:"fields"`
	Priority   int                    `json:"priority"`
	Status     constants.ReviewStatus `json:"status"`
	Note       string                 `json:"note,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

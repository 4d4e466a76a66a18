package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/oakmoor/jobsheet-audit/constants"
	"github.com/oakmoor/jobsheet-audit/internal/entity"
)

// ArtifactStore is the append-only persistence boundary for audit outputs.
// The decision pipeline produces artifacts and hands them over; it never
// reads storage during a run.
type ArtifactStore interface {
	StoreExtractionArtifact(ctx context.Context, artifact *entity.ExtractionArtifact) (uuid.UUID, error)
	StoreValidationArtifact(ctx context.Context, artifact *entity.ValidationArtifact, trace *entity.ValidationTrace) (uuid.UUID, error)
	// GetValidatedFields returns the validated fields from the most recent
	// validation artifact for the document.
	GetValidatedFields(ctx context.Context, documentID uuid.UUID) ([]entity.ValidatedField, error)
}

// ReviewQueueStore persists review queue entries. Entries are append-only:
// Transition writes a new revision and leaves prior revisions in place.
type ReviewQueueStore interface {
	Enqueue(ctx context.Context, item entity.ReviewItem) error
	Transition(ctx context.Context, itemID uuid.UUID, status constants.ReviewStatus, note string) (entity.ReviewItem, error)
	// ListPending returns the newest revision of every item still pending,
	// highest priority first. limit <= 0 means no limit.
	ListPending(ctx context.Context, limit int) ([]entity.ReviewItem, error)
}

// LocalArtifactStore is an ArtifactStore backed by a file the caller owns
// and must close.
type LocalArtifactStore interface {
	ArtifactStore
	Close() error
}

// ResultCache is the idempotence boundary: whole-pipeline outputs keyed by
// content+spec+engine-version hashes. A hit must return the stored bytes
// untouched.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, payload []byte) error
	Close() error
}

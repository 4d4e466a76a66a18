package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oakmoor/jobsheet-audit/constants"
	"github.com/oakmoor/jobsheet-audit/internal/common"
	"github.com/oakmoor/jobsheet-audit/internal/entity"
	"github.com/oakmoor/jobsheet-audit/internal/review"
)

// MemoryArtifactStore keeps artifacts in process memory. It backs tests
// and database-free CLI runs.
type MemoryArtifactStore struct {
	mu          sync.Mutex
	extractions map[uuid.UUID][]*entity.ExtractionArtifact
	validations map[uuid.UUID][]*entity.ValidationArtifact
	traces      map[uuid.UUID][]*entity.ValidationTrace
}

func NewMemoryArtifactStore() *MemoryArtifactStore {
	return &MemoryArtifactStore{
		extractions: make(map[uuid.UUID][]*entity.ExtractionArtifact),
		validations: make(map[uuid.UUID][]*entity.ValidationArtifact),
		traces:      make(map[uuid.UUID][]*entity.ValidationTrace),
	}
}

func (s *MemoryArtifactStore) StoreExtractionArtifact(_ context.Context, artifact *entity.ExtractionArtifact) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extractions[artifact.DocumentID] = append(s.extractions[artifact.DocumentID], artifact)
	return uuid.New(), nil
}

func (s *MemoryArtifactStore) StoreValidationArtifact(_ context.Context, artifact *entity.ValidationArtifact, trace *entity.ValidationTrace) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validations[artifact.DocumentID] = append(s.validations[artifact.DocumentID], artifact)
	if trace != nil {
		s.traces[artifact.DocumentID] = append(s.traces[artifact.DocumentID], trace)
	}
	return uuid.New(), nil
}

func (s *MemoryArtifactStore) GetValidatedFields(_ context.Context, documentID uuid.UUID) ([]entity.ValidatedField, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.validations[documentID]
	if len(stored) == 0 {
		return nil, common.NewAppError("NOT_FOUND",
			fmt.Sprintf("no validation artifact for document %s", documentID), common.ErrNotFound)
	}
	latest := stored[len(stored)-1]
	return append([]entity.ValidatedField(nil), latest.ValidatedFields...), nil
}

// Extractions returns every stored extraction artifact for a document,
// oldest first.
func (s *MemoryArtifactStore) Extractions(documentID uuid.UUID) []*entity.ExtractionArtifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*entity.ExtractionArtifact(nil), s.extractions[documentID]...)
}

// Validations returns every stored validation artifact for a document,
// oldest first.
func (s *MemoryArtifactStore) Validations(documentID uuid.UUID) []*entity.ValidationArtifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*entity.ValidationArtifact(nil), s.validations[documentID]...)
}

// MemoryReviewQueue keeps review revisions in process memory.
type MemoryReviewQueue struct {
	mu    sync.Mutex
	items map[uuid.UUID][]entity.ReviewItem
}

func NewMemoryReviewQueue() *MemoryReviewQueue {
	return &MemoryReviewQueue{items: make(map[uuid.UUID][]entity.ReviewItem)}
}

func (q *MemoryReviewQueue) Enqueue(_ context.Context, item entity.ReviewItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items[item.ID]) > 0 {
		return common.NewAppError("ALREADY_EXISTS",
			fmt.Sprintf("review item %s already enqueued", item.ID), common.ErrInvalidInput)
	}
	q.items[item.ID] = append(q.items[item.ID], item)
	return nil
}

func (q *MemoryReviewQueue) Transition(_ context.Context, itemID uuid.UUID, status constants.ReviewStatus, note string) (entity.ReviewItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	revisions := q.items[itemID]
	if len(revisions) == 0 {
		return entity.ReviewItem{}, common.NewAppError("NOT_FOUND",
			fmt.Sprintf("review item %s not found", itemID), common.ErrNotFound)
	}
	next, err := review.Transition(revisions[len(revisions)-1], status, note, time.Now().UTC())
	if err != nil {
		return entity.ReviewItem{}, common.NewAppError("INVALID_TRANSITION", err.Error(), common.ErrInvalidInput)
	}
	q.items[itemID] = append(revisions, next)
	return next, nil
}

func (q *MemoryReviewQueue) ListPending(_ context.Context, limit int) ([]entity.ReviewItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var pending []entity.ReviewItem
	for _, revisions := range q.items {
		latest := revisions[len(revisions)-1]
		if latest.Status == constants.ReviewPending {
			pending = append(pending, latest)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority < pending[j].Priority
		}
		if !pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].CreatedAt.Before(pending[j].CreatedAt)
		}
		return pending[i].ID.String() < pending[j].ID.String()
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// Revisions returns every stored revision of an item, oldest first.
func (q *MemoryReviewQueue) Revisions(itemID uuid.UUID) []entity.ReviewItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]entity.ReviewItem(nil), q.items[itemID]...)
}

// MemoryResultCache is a first-write-wins in-process cache.
type MemoryResultCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func NewMemoryResultCache() *MemoryResultCache {
	return &MemoryResultCache{entries: make(map[string][]byte)}
}

func (c *MemoryResultCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), payload...), true, nil
}

func (c *MemoryResultCache) Put(_ context.Context, key string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		return nil
	}
	c.entries[key] = append([]byte(nil), payload...)
	return nil
}

func (c *MemoryResultCache) Close() error { return nil }

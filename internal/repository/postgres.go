package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oakmoor/jobsheet-audit/constants"
	"github.com/oakmoor/jobsheet-audit/internal/common"
	"github.com/oakmoor/jobsheet-audit/internal/entity"
	"github.com/oakmoor/jobsheet-audit/internal/review"
)

// postgresArtifactStore persists artifacts as jsonb rows. Rows are only
// ever inserted; reads always take the newest row per document.
type postgresArtifactStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresArtifactStore(pool *pgxpool.Pool, logger *slog.Logger) ArtifactStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &postgresArtifactStore{pool: pool, logger: logger}
}

func (s *postgresArtifactStore) StoreExtractionArtifact(ctx context.Context, artifact *entity.ExtractionArtifact) (uuid.UUID, error) {
	payload, err := json.Marshal(artifact)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal extraction artifact: %w", err)
	}

	id := uuid.New()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO extraction_artifact
			(id, document_id, schema_version, engine_version, pack_id, pack_version, aggregate_confidence, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`,
		id, artifact.DocumentID, artifact.SchemaVersion, artifact.EngineVersion,
		artifact.PackID, artifact.PackVersion, artifact.AggregateConfidence, payload)
	if err != nil {
		s.logger.Error("artifacts.extraction.store_failed", "document_id", artifact.DocumentID, "err", err)
		return uuid.Nil, common.NewAppError("DATABASE_ERROR", "store extraction artifact", common.ErrDatabase)
	}
	s.logger.Info("artifacts.extraction.stored", "artifact_id", id, "document_id", artifact.DocumentID)
	return id, nil
}

func (s *postgresArtifactStore) StoreValidationArtifact(ctx context.Context, artifact *entity.ValidationArtifact, trace *entity.ValidationTrace) (uuid.UUID, error) {
	payload, err := json.Marshal(artifact)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal validation artifact: %w", err)
	}
	var tracePayload []byte
	if trace != nil {
		if tracePayload, err = json.Marshal(trace); err != nil {
			return uuid.Nil, fmt.Errorf("marshal validation trace: %w", err)
		}
	}

	id := uuid.New()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO validation_artifact
			(id, document_id, schema_version, engine_version, pack_id, pack_version, overall_passed, critical_failures, major_failures, payload, trace, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())`,
		id, artifact.DocumentID, artifact.SchemaVersion, artifact.EngineVersion,
		artifact.PackID, artifact.PackVersion, artifact.Summary.OverallPassed,
		artifact.Summary.CriticalFailures, artifact.Summary.MajorFailures, payload, tracePayload)
	if err != nil {
		s.logger.Error("artifacts.validation.store_failed", "document_id", artifact.DocumentID, "err", err)
		return uuid.Nil, common.NewAppError("DATABASE_ERROR", "store validation artifact", common.ErrDatabase)
	}
	s.logger.Info("artifacts.validation.stored",
		"artifact_id", id,
		"document_id", artifact.DocumentID,
		"overall_passed", artifact.Summary.OverallPassed)
	return id, nil
}

func (s *postgresArtifactStore) GetValidatedFields(ctx context.Context, documentID uuid.UUID) ([]entity.ValidatedField, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `
		SELECT payload FROM validation_artifact
		WHERE document_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, documentID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND",
			fmt.Sprintf("no validation artifact for document %s", documentID), common.ErrNotFound)
	}
	if err != nil {
		s.logger.Error("artifacts.validation.get_failed", "document_id", documentID, "err", err)
		return nil, common.NewAppError("DATABASE_ERROR", "get validated fields", common.ErrDatabase)
	}

	var artifact entity.ValidationArtifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return nil, fmt.Errorf("unmarshal validation artifact: %w", err)
	}
	return artifact.ValidatedFields, nil
}

// postgresReviewQueue persists queue entries append-only: one row per
// revision, newest revision wins.
type postgresReviewQueue struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresReviewQueue(pool *pgxpool.Pool, logger *slog.Logger) ReviewQueueStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &postgresReviewQueue{pool: pool, logger: logger}
}

func (q *postgresReviewQueue) Enqueue(ctx context.Context, item entity.ReviewItem) error {
	fields, err := json.Marshal(item.Fields)
	if err != nil {
		return fmt.Errorf("marshal review fields: %w", err)
	}
	_, err = q.pool.Exec(ctx, `
		INSERT INTO review_item
			(id, item_id, document_id, revision, reason, fields, priority, status, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.New(), item.ID, item.DocumentID, item.Revision, item.Reason, fields,
		item.Priority, string(item.Status), item.Note, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		q.logger.Error("review.enqueue_failed", "item_id", item.ID, "document_id", item.DocumentID, "err", err)
		return common.NewAppError("DATABASE_ERROR", "enqueue review item", common.ErrDatabase)
	}
	q.logger.Info("review.enqueued",
		"item_id", item.ID,
		"document_id", item.DocumentID,
		"reason", item.Reason,
		"priority", item.Priority)
	return nil
}

func (q *postgresReviewQueue) Transition(ctx context.Context, itemID uuid.UUID, status constants.ReviewStatus, note string) (entity.ReviewItem, error) {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return entity.ReviewItem{}, common.NewAppError("DATABASE_ERROR", "begin transition", common.ErrDatabase)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanItem(tx.QueryRow(ctx, `
		SELECT item_id, document_id, revision, reason, fields, priority, status, note, created_at, updated_at
		FROM review_item
		WHERE item_id = $1
		ORDER BY revision DESC
		LIMIT 1
		FOR UPDATE`, itemID))
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.ReviewItem{}, common.NewAppError("NOT_FOUND",
			fmt.Sprintf("review item %s not found", itemID), common.ErrNotFound)
	}
	if err != nil {
		return entity.ReviewItem{}, err
	}

	next, err := review.Transition(current, status, note, time.Now().UTC())
	if err != nil {
		return entity.ReviewItem{}, common.NewAppError("INVALID_TRANSITION", err.Error(), common.ErrInvalidInput)
	}

	fields, err := json.Marshal(next.Fields)
	if err != nil {
		return entity.ReviewItem{}, fmt.Errorf("marshal review fields: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO review_item
			(id, item_id, document_id, revision, reason, fields, priority, status, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.New(), next.ID, next.DocumentID, next.Revision, next.Reason, fields,
		next.Priority, string(next.Status), next.Note, next.CreatedAt, next.UpdatedAt)
	if err != nil {
		q.logger.Error("review.transition_failed", "item_id", itemID, "status", status, "err", err)
		return entity.ReviewItem{}, common.NewAppError("DATABASE_ERROR", "append review revision", common.ErrDatabase)
	}
	if err := tx.Commit(ctx); err != nil {
		return entity.ReviewItem{}, common.NewAppError("DATABASE_ERROR", "commit transition", common.ErrDatabase)
	}

	q.logger.Info("review.transitioned", "item_id", itemID, "status", status, "revision", next.Revision)
	return next, nil
}

func (q *postgresReviewQueue) ListPending(ctx context.Context, limit int) ([]entity.ReviewItem, error) {
	query := `
		SELECT item_id, document_id, revision, reason, fields, priority, status, note, created_at, updated_at
		FROM (
			SELECT DISTINCT ON (item_id)
				item_id, document_id, revision, reason, fields, priority, status, note, created_at, updated_at
			FROM review_item
			ORDER BY item_id, revision DESC
		) latest
		WHERE status = $1
		ORDER BY priority, created_at`
	args := []any{string(constants.ReviewPending)}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := q.pool.Query(ctx, query, args...)
	if err != nil {
		q.logger.Error("review.list_failed", "err", err)
		return nil, common.NewAppError("DATABASE_ERROR", "list pending review items", common.ErrDatabase)
	}
	defer rows.Close()

	var items []entity.ReviewItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanItem(row pgx.Row) (entity.ReviewItem, error) {
	var (
		item   entity.ReviewItem
		fields []byte
		status string
	)
	err := row.Scan(&item.ID, &item.DocumentID, &item.Revision, &item.Reason, &fields,
		&item.Priority, &status, &item.Note, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return entity.ReviewItem{}, err
	}
	item.Status = constants.ReviewStatus(status)
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &item.Fields); err != nil {
			return entity.ReviewItem{}, fmt.Errorf("unmarshal review fields: %w", err)
		}
	}
	return item, nil
}

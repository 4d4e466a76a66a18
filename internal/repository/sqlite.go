package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/oakmoor/jobsheet-audit/internal/common"
	"github.com/oakmoor/jobsheet-audit/internal/entity"
)

const localArtifactSchema = `
CREATE TABLE IF NOT EXISTS extraction_artifact (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	payload     BLOB NOT NULL,
	created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);
CREATE TABLE IF NOT EXISTS validation_artifact (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	payload     BLOB NOT NULL,
	trace       BLOB,
	created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_validation_artifact_document ON validation_artifact (document_id);`

// sqliteArtifactStore persists artifacts to a single local file, for batch
// runs that have no database configured. Same append-only contract as the
// Postgres store, so a run stays inspectable after the process exits.
type sqliteArtifactStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenLocalArtifactStore opens (creating if needed) the SQLite artifact
// store at path.
func OpenLocalArtifactStore(path string, logger *slog.Logger) (LocalArtifactStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create artifact store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("open artifact store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(localArtifactSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init artifact store schema: %w", err)
	}

	logger.Debug("artifacts.local.opened", "path", path)
	return &sqliteArtifactStore{db: db, logger: logger}, nil
}

func (s *sqliteArtifactStore) StoreExtractionArtifact(ctx context.Context, artifact *entity.ExtractionArtifact) (uuid.UUID, error) {
	payload, err := json.Marshal(artifact)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal extraction artifact: %w", err)
	}

	id := uuid.New()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO extraction_artifact (id, document_id, payload) VALUES (?, ?, ?)`,
		id, artifact.DocumentID, payload)
	if err != nil {
		s.logger.Error("artifacts.extraction.store_failed", "document_id", artifact.DocumentID, "err", err)
		return uuid.Nil, common.NewAppError("DATABASE_ERROR", "store extraction artifact", common.ErrDatabase)
	}
	s.logger.Info("artifacts.extraction.stored", "artifact_id", id, "document_id", artifact.DocumentID)
	return id, nil
}

func (s *sqliteArtifactStore) StoreValidationArtifact(ctx context.Context, artifact *entity.ValidationArtifact, trace *entity.ValidationTrace) (uuid.UUID, error) {
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
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO validation_artifact (id, document_id, payload, trace) VALUES (?, ?, ?, ?)`,
		id, artifact.DocumentID, payload, tracePayload)
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

func (s *sqliteArtifactStore) GetValidatedFields(ctx context.Context, documentID uuid.UUID) ([]entity.ValidatedField, error) {
	// rowid is insertion order on an append-only table; created_at can tie
	// within a burst of stores.
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM validation_artifact
		WHERE document_id = ?
		ORDER BY rowid DESC
		LIMIT 1`, documentID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
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

func (s *sqliteArtifactStore) Close() error {
	return s.db.Close()
}

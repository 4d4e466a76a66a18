package schema

import (
	"encoding/json"
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/google/uuid"
)

// ExtractionArtifact rows are append-only: one row per audit run, the full
// artifact in payload, with the columns queries filter on pulled out.
// Documents are owned by the ingest system, so document_id is a plain
// reference rather than a foreign key.
type ExtractionArtifact struct {
	ent.Schema
}

func (ExtractionArtifact) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "extraction_artifact"},
	}
}

func (ExtractionArtifact) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).
			Default(uuid.New).
			Immutable().
			StorageKey("id"),
		field.UUID("document_id", uuid.UUID{}).Immutable(),
		field.String("schema_version").NotEmpty(),
		field.String("engine_version").NotEmpty(),
		field.String("pack_id").NotEmpty(),
		field.String("pack_version").NotEmpty(),
		field.Float("aggregate_confidence").
			SchemaType(map[string]string{dialect.Postgres: "numeric(5,4)"}),
		field.JSON("payload", json.RawMessage{}),
		field.Time("created_at").Default(time.Now).Immutable(),
	}
}

func (ExtractionArtifact) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("document_id", "created_at"),
		index.Fields("pack_id", "pack_version"),
	}
}

package schema

import (
	"encoding/json"
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/google/uuid"
)

// ValidationArtifact rows are append-only. overall_passed and the failure
// counters mirror the payload summary so review dashboards can filter
// without unpacking JSON.
type ValidationArtifact struct {
	ent.Schema
}

func (ValidationArtifact) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "validation_artifact"},
	}
}

func (ValidationArtifact) Fields() []ent.Field {
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
		field.Bool("overall_passed"),
		field.Int("critical_failures").NonNegative(),
		field.Int("major_failures").NonNegative(),
		field.JSON("payload", json.RawMessage{}),
		field.JSON("trace", json.RawMessage{}).Optional(),
		field.Time("created_at").Default(time.Now).Immutable(),
	}
}

func (ValidationArtifact) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("document_id", "created_at"),
		index.Fields("overall_passed", "created_at"),
	}
}

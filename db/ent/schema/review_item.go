package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/oakmoor/jobsheet-audit/constants"
	"github.com/oakmoor/jobsheet-audit/db/ent/schema/utils"

	"github.com/google/uuid"
)

// ReviewItem is one revision of one queue entry. Transitions insert a new
// row with the same item_id and a bumped revision, so id is a synthetic row
// key and (item_id, revision) is the logical identity.
type ReviewItem struct {
	ent.Schema
}

func (ReviewItem) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "review_item"},
	}
}

func (ReviewItem) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).
			Default(uuid.New).
			Immutable().
			StorageKey("id"),
		field.UUID("item_id", uuid.UUID{}).Immutable(),
		field.UUID("document_id", uuid.UUID{}).Immutable(),
		field.Int("revision").Positive().Immutable(),
		field.String("reason").NotEmpty().
			Validate(utils.EnumValidator(constants.ReasonCodesAsStrings()...)),
		field.JSON("fields", []string{}).Optional(),
		field.Int("priority").Positive(),
		field.String("status").NotEmpty().
			Validate(utils.EnumValidator(constants.ReviewStatuses...)),
		field.String("note").Optional(),
		field.Time("created_at").Immutable(),
		field.Time("updated_at").Default(time.Now),
	}
}

func (ReviewItem) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("item_id", "revision").Unique(),
		index.Fields("status", "priority", "created_at"),
		index.Fields("document_id"),
	}
}

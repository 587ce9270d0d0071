package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/google/uuid"
)

// Participant lists the members of a conversation in display order.
type Participant struct {
	ent.Schema
}

func (Participant) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("conversation_id", uuid.UUID{}).
			Comment("FK → conversations.id, cascades"),

		field.UUID("user_id", uuid.UUID{}).
			Comment("FK → users.id"),

		field.Int("position"),
	}
}

func (Participant) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id"),
	}
}

func (Participant) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "conversation_participants"},
		field.ID("conversation_id", "user_id"),
	}
}

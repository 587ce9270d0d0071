package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/google/uuid"
)

// Conversation is a thread between a client and an agent, optionally about a
// vehicle. It caches the latest message and per-side unread counters.
type Conversation struct {
	ent.Schema
}

func (Conversation) Mixin() []ent.Mixin {
	return []ent.Mixin{
		UUIDV7Mixin{},
		TimeStampedMixin{},
	}
}

func (Conversation) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("client_id", uuid.UUID{}).
			Comment("FK → users.id"),

		field.UUID("agent_id", uuid.UUID{}).
			Comment("FK → users.id"),

		field.UUID("vehicle_id", uuid.UUID{}).
			Optional().
			Nillable().
			Comment("FK → vehicles.id"),

		field.Text("subject").
			Default(""),

		field.Bool("is_ai_negotiation").
			Default(false),

		field.Text("last_message").
			Optional().
			Nillable(),

		field.Time("last_message_at").
			Optional().
			Nillable(),

		field.Int("unread_agent").
			Default(0).
			NonNegative(),

		field.Int("unread_client").
			Default(0).
			NonNegative(),

		field.Enum("status").
			Values("active", "archived", "closed").
			Default("active"),

		field.Enum("negotiation_status").
			Values("accepted", "rejected").
			Optional().
			Nillable(),
	}
}

func (Conversation) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("client_id", "agent_id", "vehicle_id"),
		index.Fields("agent_id"),
		index.Fields("last_message_at"),
	}
}

func (Conversation) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "conversations"},
	}
}

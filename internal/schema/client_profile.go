package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/google/uuid"
)

// ClientProfile is an agency's CRM record of a client, linked to a user
// account once the client signs up.
type ClientProfile struct {
	ent.Schema
}

func (ClientProfile) Mixin() []ent.Mixin {
	return []ent.Mixin{
		UUIDV7Mixin{},
		CreatedAtMixin{},
	}
}

func (ClientProfile) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("user_id", uuid.UUID{}).
			Optional().
			Nillable().
			Comment("FK → users.id"),

		field.UUID("agency_id", uuid.UUID{}).
			Comment("FK → agencies.id"),

		field.String("name"),
		field.String("email"),

		field.Enum("status").
			Values("lead", "prospect", "customer").
			Default("lead"),
	}
}

func (ClientProfile) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "agency_id"),
	}
}

func (ClientProfile) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "client_profiles"},
	}
}

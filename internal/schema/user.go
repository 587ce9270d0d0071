package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/google/uuid"

	"github.com/autodealer/dealer_backend/pkg/constants"
)

type User struct {
	ent.Schema
}

func (User) Mixin() []ent.Mixin {
	return []ent.Mixin{
		UUIDV7Mixin{},
	}
}

func (User) Fields() []ent.Field {
	return []ent.Field{
		field.String("name"),

		field.String("email").
			Unique(),

		field.Enum("role").
			Values(constants.UserRoleClient, constants.UserRoleAgent, constants.UserRoleManager, constants.UserRoleAdmin).
			Default(constants.UserRoleClient),

		field.UUID("agency_id", uuid.UUID{}).
			Optional().
			Nillable().
			Comment("FK → agencies.id, staff only"),
	}
}

func (User) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("agency_id", "role"),
	}
}

func (User) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "users"},
	}
}

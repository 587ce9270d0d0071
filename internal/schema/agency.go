package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"

	"github.com/google/uuid"
)

// Agency is a dealership. Its manager answers conversations addressed to the
// agency as a whole.
type Agency struct {
	ent.Schema
}

func (Agency) Mixin() []ent.Mixin {
	return []ent.Mixin{
		UUIDV7Mixin{},
	}
}

func (Agency) Fields() []ent.Field {
	return []ent.Field{
		field.String("name"),

		field.UUID("manager_id", uuid.UUID{}).
			Optional().
			Nillable().
			Comment("FK → users.id"),
	}
}

func (Agency) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "agencies"},
	}
}

package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"

	"github.com/google/uuid"
)

// Vehicle is a listing the negotiator prices against.
type Vehicle struct {
	ent.Schema
}

func (Vehicle) Mixin() []ent.Mixin {
	return []ent.Mixin{
		UUIDV7Mixin{},
	}
}

func (Vehicle) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("agency_id", uuid.UUID{}).
			Comment("FK → agencies.id"),

		field.String("make"),
		field.String("model"),
		field.Int("year"),

		field.Float("price").
			Min(0),

		field.Int("mileage").
			Default(0).
			NonNegative(),

		field.String("condition").
			Optional().
			Nillable(),

		field.JSON("features", []string{}).
			Optional(),
	}
}

func (Vehicle) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "vehicles"},
	}
}

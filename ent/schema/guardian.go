package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// Guardian holds the schema definition for the Guardian entity (ERP side,
// authoritative). A guardian is the responsible party for one or more
// students and is identified by a normalized phone handle.
type Guardian struct {
	ent.Schema
}

// Fields of the Guardian.
func (Guardian) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("guardian_id").
			Unique().
			Immutable(),
		field.String("name"),
		field.String("phone").
			Unique().
			Comment("Normalized handle: leading '+', digits only otherwise"),
		field.String("email").
			Optional().
			Nillable(),
		field.Enum("relation").
			Values("father", "mother", "tutor"),
	}
}

// Edges of the Guardian.
func (Guardian) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("students", Student.Type).
			Through("guardian_students", GuardianStudent.Type),
	}
}

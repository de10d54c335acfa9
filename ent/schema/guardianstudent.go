package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// GuardianStudent is the join table between guardians and students.
// Neither side owns the other; rows are keyed by (guardian_id, student_id).
type GuardianStudent struct {
	ent.Schema
}

// Fields of the GuardianStudent.
func (GuardianStudent) Fields() []ent.Field {
	return []ent.Field{
		field.String("guardian_id"),
		field.String("student_id"),
	}
}

// Edges of the GuardianStudent.
func (GuardianStudent) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("guardian", Guardian.Type).
			Field("guardian_id").
			Unique().
			Required(),
		edge.To("student", Student.Type).
			Field("student_id").
			Unique().
			Required(),
	}
}

// Annotations of the GuardianStudent.
func (GuardianStudent) Annotations() []ent.Annotation {
	return []ent.Annotation{
		field.ID("guardian_id", "student_id"),
	}
}

package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// Student holds the schema definition for the Student entity (ERP side).
type Student struct {
	ent.Schema
}

// Fields of the Student.
func (Student) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("student_id").
			Unique().
			Immutable(),
		field.String("name"),
		field.String("grade"),
		field.Bool("active").
			Default(true),
		field.Time("birth_date").
			Optional().
			Nillable(),
	}
}

// Edges of the Student.
func (Student) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("guardians", Guardian.Type).
			Ref("students").
			Through("guardian_students", GuardianStudent.Type),
		edge.To("installments", Installment.Type),
	}
}

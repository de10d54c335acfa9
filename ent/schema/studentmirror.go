package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
)

// StudentMirror is the orchestrator-side replica of an ERP student.
type StudentMirror struct {
	ent.Schema
}

// Fields of the StudentMirror.
func (StudentMirror) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("student_id").
			Unique().
			Immutable(),
		field.String("name"),
		field.String("grade"),
		field.Bool("active").
			Default(true),
		field.Time("last_sync").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

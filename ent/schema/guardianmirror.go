package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
)

// GuardianMirror is the orchestrator-side replica of an ERP guardian,
// keyed by the ERP stable id. Rows are written only by webhook receipt or
// batch resync, never by the agent.
type GuardianMirror struct {
	ent.Schema
}

// Fields of the GuardianMirror.
func (GuardianMirror) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("guardian_id").
			Unique().
			Immutable(),
		field.String("name"),
		field.String("phone").
			Unique(),
		field.String("email").
			Optional().
			Nillable(),
		field.String("relation").
			Default("tutor"),
		field.JSON("students", []string{}).
			StorageKey("student_ids").
			Optional(),
		field.Time("last_sync").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

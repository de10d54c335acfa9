package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Ticket holds the schema definition for escalation records.
// Transitions: pending → in_progress → resolved; resolving sets
// resolved_at and admin_reply.
type Ticket struct {
	ent.Schema
}

// Fields of the Ticket.
func (Ticket) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("ticket_id").
			Unique().
			Immutable(),
		field.String("student_id"),
		field.String("guardian_id").
			Optional().
			Nillable(),
		field.Enum("category").
			Values("plan_request", "complaint", "withdrawal", "generic", "authority_info").
			Default("generic"),
		field.Text("reason"),
		field.Text("context").
			Optional().
			Comment("Snapshot of the conversation that triggered escalation"),
		field.Enum("state").
			Values("pending", "in_progress", "resolved").
			Default("pending"),
		field.Enum("priority").
			Values("low", "medium", "high").
			Default("medium"),
		field.Text("admin_reply").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("resolved_at").
			Optional().
			Nillable(),
	}
}

// Indexes of the Ticket.
func (Ticket) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("state", "created_at"),
		index.Fields("guardian_id"),
	}
}

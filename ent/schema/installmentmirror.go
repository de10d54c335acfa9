package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// InstallmentMirror is the orchestrator-side replica of an ERP installment.
type InstallmentMirror struct {
	ent.Schema
}

// Fields of the InstallmentMirror.
func (InstallmentMirror) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("installment_id").
			Unique().
			Immutable(),
		field.String("student_id"),
		field.Int("sequence").
			Default(0),
		field.Float("amount").
			SchemaType(map[string]string{"postgres": "numeric(10,2)"}),
		field.Time("due_date"),
		field.String("state").
			Default("pending"),
		field.String("pay_link").
			Optional().
			Nillable(),
		field.Time("paid_at").
			Optional().
			Nillable(),
		field.Time("last_sync").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Indexes of the InstallmentMirror.
func (InstallmentMirror) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("student_id"),
		index.Fields("state", "due_date"),
	}
}

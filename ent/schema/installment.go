package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Installment holds the schema definition for the Installment entity.
// State machine: pending → paid (on payment), pending → overdue (batch by
// due date). paid is terminal; paid_at is non-null iff state is paid.
type Installment struct {
	ent.Schema
}

// Fields of the Installment.
func (Installment) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("installment_id").
			Unique().
			Immutable(),
		field.String("student_id").
			Immutable(),
		field.String("plan_id").
			Immutable(),
		field.Int("sequence"),
		field.Float("amount").
			SchemaType(map[string]string{"postgres": "numeric(10,2)"}),
		field.Time("due_date"),
		field.Enum("state").
			Values("pending", "paid", "overdue").
			Default("pending"),
		field.String("pay_link").
			Optional().
			Nillable(),
		field.Time("paid_at").
			Optional().
			Nillable(),
	}
}

// Edges of the Installment.
func (Installment) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("student", Student.Type).
			Ref("installments").
			Field("student_id").
			Unique().
			Required().
			Immutable(),
		edge.From("plan", PaymentPlan.Type).
			Ref("installments").
			Field("plan_id").
			Unique().
			Required().
			Immutable(),
		edge.To("payments", Payment.Type),
	}
}

// Indexes of the Installment.
func (Installment) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("student_id", "state"),
		index.Fields("state", "due_date"),
	}
}

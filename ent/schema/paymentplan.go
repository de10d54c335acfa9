package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// PaymentPlan holds the schema definition for the PaymentPlan entity.
type PaymentPlan struct {
	ent.Schema
}

// Fields of the PaymentPlan.
func (PaymentPlan) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("plan_id").
			Unique().
			Immutable(),
		field.String("label"),
		field.Int("installment_count"),
		field.Float("installment_amount").
			SchemaType(map[string]string{"postgres": "numeric(10,2)"}),
		field.Int("year"),
	}
}

// Edges of the PaymentPlan.
func (PaymentPlan) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("installments", Installment.Type),
	}
}

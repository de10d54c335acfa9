package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Payment holds the schema definition for the Payment entity.
// An installment may carry at most one successful payment; the unique
// index on installment_id enforces it at the store level.
type Payment struct {
	ent.Schema
}

// Fields of the Payment.
func (Payment) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("payment_id").
			Unique().
			Immutable().
			Comment("PAY-<8 uppercase hex>"),
		field.String("installment_id").
			Immutable(),
		field.Float("amount").
			SchemaType(map[string]string{"postgres": "numeric(10,2)"}),
		field.Time("paid_at").
			Default(time.Now).
			Immutable(),
		field.String("method").
			Default("transfer"),
		field.String("reference").
			Optional().
			Nillable(),
	}
}

// Edges of the Payment.
func (Payment) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("installment", Installment.Type).
			Ref("payments").
			Field("installment_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the Payment.
func (Payment) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("installment_id").
			Unique(),
	}
}

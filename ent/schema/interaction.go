package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Interaction is the append-only log of inbound and outbound messages.
type Interaction struct {
	ent.Schema
}

// Fields of the Interaction.
func (Interaction) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("interaction_id").
			Unique().
			Immutable(),
		field.String("phone").
			Immutable(),
		field.String("installment_id").
			Optional().
			Nillable().
			Immutable(),
		field.Enum("kind").
			Values("inbound", "bot_reply", "payment_claim", "admin_reply").
			Immutable(),
		field.Text("text").
			Immutable(),
		field.String("agent").
			Optional().
			Nillable().
			Immutable().
			Comment("Which runtime produced the reply"),
		field.JSON("extras", map[string]interface{}{}).
			Optional(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the Interaction.
func (Interaction) Indexes() []ent.Index {
	return []ent.Index{
		// Conversation history per handle, chronologically
		index.Fields("phone", "created_at"),
	}
}

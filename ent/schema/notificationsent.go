package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// NotificationSent records an outbound notification for deduplication.
// The unique (installment_id, kind) index guarantees at-most-one send of
// each kind per installment.
type NotificationSent struct {
	ent.Schema
}

// Fields of the NotificationSent.
func (NotificationSent) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("notification_id").
			Unique().
			Immutable(),
		field.String("installment_id").
			Immutable(),
		field.String("phone").
			Immutable(),
		field.Enum("kind").
			Values("reminder_d7", "reminder_d3", "reminder_d1", "payment_confirmation").
			Immutable(),
		field.Time("sent_at").
			Default(time.Now).
			Immutable(),
		field.Bool("read").
			Default(false),
	}
}

// Indexes of the NotificationSent.
func (NotificationSent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("installment_id", "kind").
			Unique(),
	}
}

package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// TokenUsage is the per-query aggregate of LLM token consumption.
type TokenUsage struct {
	ent.Schema
}

// Fields of the TokenUsage.
func (TokenUsage) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("query_id").
			Unique().
			Immutable(),
		field.String("phone").
			Immutable(),
		field.Text("question").
			Immutable(),
		field.String("provider"),
		field.String("model"),
		field.Int("prompt_tokens").
			Default(0),
		field.Int("completion_tokens").
			Default(0),
		field.Int("total_tokens").
			Default(0),
		field.Int("llm_calls").
			Default(0),
		field.JSON("records", []map[string]interface{}{}).
			Optional().
			Comment("Per-inference breakdown"),
		field.Time("started_at").
			Immutable(),
		field.Time("finished_at").
			Optional().
			Nillable(),
	}
}

// Indexes of the TokenUsage.
func (TokenUsage) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("phone", "started_at"),
	}
}

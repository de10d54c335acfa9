package llm

import (
	"context"

	"github.com/colegio-digital/gestor/pkg/tokentrack"
)

// Tracked wraps a Client so every invocation is accounted against the
// token session bound to the request context. When the provider returns no
// usage metadata, the completion is counted with the fallback tokenizer and
// zero is attributed to the prompt side.
type Tracked struct {
	Client
}

// NewTracked wraps the given client.
func NewTracked(client Client) *Tracked {
	return &Tracked{Client: client}
}

// Complete invokes the underlying model and records an InferenceRecord on
// the active session. node and kind label the record for the per-query
// breakdown.
func (t *Tracked) Complete(ctx context.Context, node, kind string, messages []Message) (*Response, error) {
	resp, err := t.Client.Complete(ctx, messages)
	if err != nil {
		return nil, err
	}

	session := tokentrack.FromContext(ctx)
	if session != nil {
		prompt, completion := resp.PromptTokens, resp.CompletionTokens
		meta := map[string]interface{}{"model": t.Model()}
		if !resp.HasUsage {
			prompt = 0
			completion = tokentrack.CountTokens(resp.Content)
			meta["estimated"] = true
		}
		session.Record(node, kind, prompt, completion, meta)
	}

	return resp, nil
}

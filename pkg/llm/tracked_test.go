package llm

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colegio-digital/gestor/pkg/tokentrack"
)

// stubClient returns canned responses in order.
type stubClient struct {
	responses []*Response
	calls     int
}

func (s *stubClient) Complete(ctx context.Context, messages []Message) (*Response, error) {
	resp := s.responses[s.calls%len(s.responses)]
	s.calls++
	return resp, nil
}

func (s *stubClient) Provider() string { return "openai" }
func (s *stubClient) Model() string    { return "stub-model" }

func TestTrackedRecordsUsage(t *testing.T) {
	stub := &stubClient{responses: []*Response{
		{Content: "plan", PromptTokens: 100, CompletionTokens: 40, HasUsage: true},
	}}
	tracked := NewTracked(stub)

	session := tokentrack.NewSession("q-1", "+549", "hola", "openai", "stub-model")
	ctx := tokentrack.WithSession(context.Background(), session)

	resp, err := tracked.Complete(ctx, "manager", "plan", []Message{{Role: RoleUser, Content: "hola"}})
	require.NoError(t, err)
	assert.Equal(t, "plan", resp.Content)

	prompt, completion, total, calls := session.Totals()
	assert.Equal(t, 100, prompt)
	assert.Equal(t, 40, completion)
	assert.Equal(t, 140, total)
	assert.Equal(t, 1, calls)
}

func TestTrackedFallbackAttributesZeroPrompt(t *testing.T) {
	stub := &stubClient{responses: []*Response{
		{Content: "una respuesta sin metadata de uso del proveedor"},
	}}
	tracked := NewTracked(stub)

	session := tokentrack.NewSession("q-2", "+549", "hola", "openai", "stub-model")
	ctx := tokentrack.WithSession(context.Background(), session)

	_, err := tracked.Complete(ctx, "synthesize", "final", []Message{{Role: RoleUser, Content: "hola"}})
	require.NoError(t, err)

	summary := session.Finalize(slog.Default())
	require.Len(t, summary.Records, 1)
	assert.Zero(t, summary.Records[0].PromptTokens)
	assert.Positive(t, summary.Records[0].CompletionTokens)
	assert.Equal(t, true, summary.Records[0].Metadata["estimated"])
}

func TestTrackedWithoutSessionIsNoop(t *testing.T) {
	stub := &stubClient{responses: []*Response{{Content: "ok", HasUsage: true}}}
	tracked := NewTracked(stub)

	resp, err := tracked.Complete(context.Background(), "manager", "plan",
		[]Message{{Role: RoleUser, Content: "hola"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
}

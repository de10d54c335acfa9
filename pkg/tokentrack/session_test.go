package tokentrack

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTotalsMatchRecords(t *testing.T) {
	s := NewSession("q-1", "+5491112345001", "Cuanto debo?", "openai", "gpt-4o-mini")

	s.Record("manager", "plan", 120, 45, nil)
	s.Record("specialist_financial", "subplan", 80, 30, nil)
	s.Record("synthesize", "final", 200, 60, nil)

	prompt, completion, total, calls := s.Totals()
	assert.Equal(t, 400, prompt)
	assert.Equal(t, 135, completion)
	assert.Equal(t, 535, total)
	assert.Equal(t, 3, calls)

	summary := s.Finalize(slog.Default())
	assert.Equal(t, prompt, summary.PromptTokens)
	assert.Equal(t, completion, summary.CompletionTokens)
	assert.Equal(t, total, summary.TotalTokens)
	assert.Len(t, summary.Records, 3)

	// Per-record sums must equal the session totals
	var p, c, tot int
	for _, rec := range summary.Records {
		p += rec.PromptTokens
		c += rec.CompletionTokens
		tot += rec.TotalTokens
	}
	assert.Equal(t, summary.PromptTokens, p)
	assert.Equal(t, summary.CompletionTokens, c)
	assert.Equal(t, summary.TotalTokens, tot)
}

func TestFinalizeEmitsTokenUsageLine(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := NewSession("q-2", "+5491112345001", "hola", "openai", "gpt-4o-mini")
	s.Record("manager", "plan", 10, 5, nil)
	s.Finalize(logger)

	out := buf.String()
	assert.Contains(t, out, "[TOKEN_USAGE]")
	assert.Contains(t, out, `\"query_id\":\"q-2\"`)
	assert.Contains(t, out, "TOKEN USAGE")
}

func TestNilSessionIsSafe(t *testing.T) {
	var s *Session
	s.Record("manager", "plan", 10, 5, nil)
	prompt, completion, total, calls := s.Totals()
	assert.Zero(t, prompt)
	assert.Zero(t, completion)
	assert.Zero(t, total)
	assert.Zero(t, calls)
	assert.Equal(t, Summary{}, s.Finalize(nil))
}

func TestContextBindingIsRequestScoped(t *testing.T) {
	base := context.Background()
	assert.Nil(t, FromContext(base))

	s1 := NewSession("q-a", "+111", "a", "openai", "m")
	s2 := NewSession("q-b", "+222", "b", "openai", "m")

	ctx1 := WithSession(base, s1)
	ctx2 := WithSession(base, s2)

	require.Same(t, s1, FromContext(ctx1))
	require.Same(t, s2, FromContext(ctx2))

	// Concurrent recording against distinct bindings must not cross over.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			FromContext(ctx1).Record("node", "kind", 1, 1, nil)
		}()
	}
	wg.Wait()

	_, _, total1, calls1 := s1.Totals()
	_, _, total2, calls2 := s2.Totals()
	assert.Equal(t, 100, total1)
	assert.Equal(t, 50, calls1)
	assert.Zero(t, total2)
	assert.Zero(t, calls2)
}

func TestCountTokensFallback(t *testing.T) {
	assert.Zero(t, CountTokens(""))
	assert.Positive(t, CountTokens("hola, quiero saber cuanto debo"))
}

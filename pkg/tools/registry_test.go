package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, mock bool) *Registry {
	t.Helper()
	r := NewRegistry(mock)
	require.NoError(t, r.Register(&Tool{
		Name:        "echo",
		Description: "echoes its message",
		Category:    CategoryAdmin,
		Params: []ParamSpec{
			{Name: "message", Type: "string"},
			{Name: "repeat", Type: "integer", Default: 1},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return args, nil
		},
	}))
	return r
}

func TestCallUnknownToolNeverRaises(t *testing.T) {
	r := newTestRegistry(t, false)

	result := r.Call(context.Background(), "no_such_tool", nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage(), "not found")
	assert.Nil(t, result.Data)
}

func TestSchemaDerivation(t *testing.T) {
	r := newTestRegistry(t, false)
	tool, ok := r.Get("echo")
	require.True(t, ok)

	doc := tool.SchemaDoc()
	assert.Equal(t, "object", doc["type"])

	props, ok := doc["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "message")
	assert.Contains(t, props, "repeat")

	// Parameters without defaults are required.
	assert.Equal(t, []string{"message"}, doc["required"])
}

func TestCallValidatesArguments(t *testing.T) {
	r := newTestRegistry(t, false)

	result := r.Call(context.Background(), "echo", map[string]interface{}{"repeat": 2})
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage(), "invalid arguments")

	result = r.Call(context.Background(), "echo", map[string]interface{}{"message": 42})
	assert.False(t, result.Success)
}

func TestCallAppliesDefaults(t *testing.T) {
	r := newTestRegistry(t, false)

	result := r.Call(context.Background(), "echo", map[string]interface{}{"message": "hola"})
	require.True(t, result.Success)

	data, ok := result.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "hola", data["message"])
	assert.Equal(t, 1, data["repeat"])
}

func TestHandlerErrorBecomesFailure(t *testing.T) {
	r := NewRegistry(false)
	require.NoError(t, r.Register(&Tool{
		Name:     "broken",
		Category: CategoryERP,
		Params:   []ParamSpec{},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return nil, errors.New("upstream unavailable")
		},
	}))

	result := r.Call(context.Background(), "broken", nil)
	assert.False(t, result.Success)
	assert.Equal(t, "upstream unavailable", result.ErrorMessage())
	assert.Nil(t, result.Data)
}

func TestHandlerPanicBecomesFailure(t *testing.T) {
	r := NewRegistry(false)
	require.NoError(t, r.Register(&Tool{
		Name:     "panicky",
		Category: CategoryERP,
		Params:   []ParamSpec{},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			panic("boom")
		},
	}))

	result := r.Call(context.Background(), "panicky", nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage(), "internal error")
}

func TestMockModeReturnsMockResponseVerbatim(t *testing.T) {
	canned := map[string]interface{}{"perfil_pagador": "punctual"}

	r := NewRegistry(true)
	require.NoError(t, r.Register(&Tool{
		Name:         "patrones",
		Category:     CategoryKG,
		MockResponse: canned,
		Params: []ParamSpec{
			{Name: "responsable_id", Type: "string"},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			t.Fatal("handler must not run in mock mode")
			return nil, nil
		},
	}))

	// Even invalid arguments short-circuit before validation.
	result := r.Call(context.Background(), "patrones", nil)
	require.True(t, result.Success)
	assert.Equal(t, canned, result.Data)
}

func TestMockModeWithoutMockResponseCallsHandler(t *testing.T) {
	r := NewRegistry(true)
	called := false
	require.NoError(t, r.Register(&Tool{
		Name:     "live",
		Category: CategoryERP,
		Params:   []ParamSpec{},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			called = true
			return "synthetic", nil
		},
	}))

	result := r.Call(context.Background(), "live", nil)
	require.True(t, result.Success)
	assert.True(t, called)
	assert.Equal(t, "synthetic", result.Data)
}

func TestDuplicateRegistrationFails(t *testing.T) {
	r := newTestRegistry(t, false)
	err := r.Register(&Tool{
		Name:     "echo",
		Category: CategoryAdmin,
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return nil, nil
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestListFiltersByCategory(t *testing.T) {
	r := NewRegistry(true)
	store := NewTicketStore()
	RegisterAdminTools(r, store)
	RegisterInstitutionalTools(r)

	admin := r.List(CategoryAdmin)
	require.Len(t, admin, 4)
	for _, tool := range admin {
		assert.Equal(t, CategoryAdmin, tool.Category)
	}

	all := r.List("")
	assert.Len(t, all, 9)
}

func TestClassifyPriority(t *testing.T) {
	assert.Equal(t, "high", ClassifyPriority("esto es URGENTE, voy a hablar con mi abogado"))
	assert.Equal(t, "medium", ClassifyPriority("quiero un plan de pagos"))
	assert.Equal(t, "low", ClassifyPriority("consulta por el acto de fin de año"))
}

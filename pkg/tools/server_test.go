package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := NewRegistry(true)
	RegisterAdminTools(r, NewTicketStore())
	RegisterInstitutionalTools(r)
	srv := httptest.NewServer(NewServer(r).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func rpcCall(t *testing.T, srv *httptest.Server, method string, params map[string]interface{}) map[string]interface{} {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      1,
	})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/mcp", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestRPCPing(t *testing.T) {
	srv := newTestServer(t)
	out := rpcCall(t, srv, "ping", nil)
	assert.Equal(t, "pong", out["result"])
}

func TestRPCMethodNotFound(t *testing.T) {
	srv := newTestServer(t)
	out := rpcCall(t, srv, "tools/destroy", nil)

	rpcErr, ok := out["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(-32601), rpcErr["code"])
}

func TestRPCToolsListAndSchema(t *testing.T) {
	srv := newTestServer(t)

	out := rpcCall(t, srv, "tools/list", map[string]interface{}{"category": "admin"})
	result, ok := out["result"].(map[string]interface{})
	require.True(t, ok)
	listed, ok := result["tools"].([]interface{})
	require.True(t, ok)
	assert.Len(t, listed, 4)

	out = rpcCall(t, srv, "tools/schema", map[string]interface{}{"name": "crear_ticket"})
	schema, ok := out["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "object", schema["type"])
}

func TestRPCToolsCall(t *testing.T) {
	srv := newTestServer(t)

	out := rpcCall(t, srv, "tools/call", map[string]interface{}{
		"name": "crear_ticket",
		"arguments": map[string]interface{}{
			"motivo": "quiero un plan de pagos",
		},
	})
	result, ok := out["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, result["success"])

	data, ok := result["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, data["prefijo"], 8)
	assert.Equal(t, "medium", data["prioridad"])
}

func TestRPCToolsCallUnknown(t *testing.T) {
	srv := newTestServer(t)
	out := rpcCall(t, srv, "tools/call", map[string]interface{}{
		"name":      "no_such_tool",
		"arguments": map[string]interface{}{},
	})
	result, ok := out["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, result["success"])
}

func TestRESTToolEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/tools?category=institutional")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var listing struct {
		Tools []toolDescriptor `json:"tools"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	assert.Len(t, listing.Tools, 5)

	resp, err = http.Get(srv.URL + "/tools/unknown")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := bytes.NewReader([]byte(`{"arguments": {}}`))
	resp, err = http.Post(srv.URL+"/tools/buscar_horarios/call", "application/json", body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var result Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Success)
}

func TestInstitutionalInfoGeneral(t *testing.T) {
	r := NewRegistry(false)
	RegisterInstitutionalTools(r)

	result := r.Call(context.Background(), "buscar_info_general",
		map[string]interface{}{"tema": "uniforme"})
	require.True(t, result.Success)

	data, ok := result.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, data["respuesta"], "obligatorio")

	result = r.Call(context.Background(), "buscar_info_general",
		map[string]interface{}{"tema": "piscina"})
	assert.False(t, result.Success)
}

// Package toolclient is the orchestrator-side client for the tool server,
// speaking its JSON-RPC transport. Construct once at service start and
// share by reference.
package toolclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/colegio-digital/gestor/pkg/tools"
)

const requestTimeout = 30 * time.Second

// ToolInfo describes one remote tool.
type ToolInfo struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Category    string                 `json:"category"`
	Schema      map[string]interface{} `json:"schema"`
}

// Client calls the tool server.
type Client struct {
	baseURL string
	http    *http.Client
	nextID  atomic.Int64
}

// NewClient creates a tool client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

type rpcEnvelope struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      int64       `json:"id"`
}

type rpcResult struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ListTools fetches the remote tool descriptors, optionally by category.
func (c *Client) ListTools(ctx context.Context, category string) ([]ToolInfo, error) {
	params := map[string]interface{}{}
	if category != "" {
		params["category"] = category
	}
	raw, err := c.rpc(ctx, "tools/list", params)
	if err != nil {
		return nil, err
	}
	var out struct {
		Tools []ToolInfo `json:"tools"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode tools/list result: %w", err)
	}
	return out.Tools, nil
}

// CallTool invokes a remote tool. Transport failures are returned as
// errors; tool-level failures arrive inside the Result contract.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (tools.Result, error) {
	raw, err := c.rpc(ctx, "tools/call", map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return tools.Result{}, err
	}
	var result tools.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return tools.Result{}, fmt.Errorf("decode tools/call result: %w", err)
	}
	return result, nil
}

// Ping checks tool server liveness.
func (c *Client) Ping(ctx context.Context) error {
	raw, err := c.rpc(ctx, "ping", nil)
	if err != nil {
		return err
	}
	var pong string
	if err := json.Unmarshal(raw, &pong); err != nil || pong != "pong" {
		return fmt.Errorf("unexpected ping result: %s", raw)
	}
	return nil
}

func (c *Client) rpc(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(rpcEnvelope{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mcp", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("rpc %s: unexpected status %d: %s", method, resp.StatusCode, payload)
	}

	var envelope rpcResult
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode rpc response: %w", err)
	}
	if envelope.Error != nil {
		return nil, fmt.Errorf("rpc %s: %d %s", method, envelope.Error.Code, envelope.Error.Message)
	}
	return envelope.Result, nil
}

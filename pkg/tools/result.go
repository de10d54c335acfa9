// Package tools implements the central tool registry: typed tool
// definitions with JSON-schema parameters, mock/live dual mode, and the
// invocation contract shared by the REST and JSON-RPC transports.
package tools

// Result is the uniform outcome of a tool invocation. Error is null on
// success; Data is null on failure.
type Result struct {
	Success bool        `json:"success"`
	Error   *string     `json:"error"`
	Data    interface{} `json:"data"`
}

// OK wraps a successful handler result.
func OK(data interface{}) Result {
	return Result{Success: true, Data: data}
}

// Fail wraps a failure message. Never panics, never raises.
func Fail(msg string) Result {
	return Result{Success: false, Error: &msg}
}

// ErrorMessage returns the failure message, or "" on success.
func (r Result) ErrorMessage() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

package codeplanner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/colegio-digital/gestor/pkg/agent"
)

// ExecutionError captures where and why a program run failed. Its message
// is fed back to the planner for self-correction.
type ExecutionError struct {
	StepID string
	Msg    string
}

func (e *ExecutionError) Error() string {
	if e.StepID == "" {
		return e.Msg
	}
	return fmt.Sprintf("step %s: %s", e.StepID, e.Msg)
}

// Outcome is the result of one program execution: the resolved result map
// plus every step's raw output for the responder.
type Outcome struct {
	Result  map[string]interface{}
	Outputs map[string]interface{}
}

// Executor interprets programs sequentially under a wall-clock deadline.
type Executor struct {
	calls   agent.ToolCaller
	timeout time.Duration
}

// NewExecutor builds an executor with the given per-run deadline.
func NewExecutor(calls agent.ToolCaller, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{calls: calls, timeout: timeout}
}

// Run executes the program. phone and text back the $phone and $text
// builtins. Any tool failure, unknown reference, or deadline expiry is an
// *ExecutionError.
func (e *Executor) Run(ctx context.Context, program *Program, phone, text string) (*Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	outputs := map[string]interface{}{
		"phone": phone,
		"text":  text,
	}

	for _, step := range program.Steps {
		if err := ctx.Err(); err != nil {
			return nil, &ExecutionError{StepID: step.ID, Msg: fmt.Sprintf("deadline exceeded: %v", err)}
		}

		args, err := resolveMap(step.Args, outputs)
		if err != nil {
			return nil, &ExecutionError{StepID: step.ID, Msg: err.Error()}
		}

		result, err := e.calls.CallTool(ctx, step.Tool, args)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &ExecutionError{StepID: step.ID, Msg: fmt.Sprintf("deadline exceeded: %v", ctx.Err())}
			}
			return nil, &ExecutionError{StepID: step.ID, Msg: fmt.Sprintf("tool transport: %v", err)}
		}
		if !result.Success {
			return nil, &ExecutionError{StepID: step.ID,
				Msg: fmt.Sprintf("tool %s failed: %s", step.Tool, result.ErrorMessage())}
		}

		outputs[step.name()] = map[string]interface{}{
			"success": true,
			"data":    result.Data,
		}
	}

	resolved, err := resolveMap(program.Result, outputs)
	if err != nil {
		return nil, &ExecutionError{Msg: err.Error()}
	}
	return &Outcome{Result: resolved, Outputs: outputs}, nil
}

// resolveMap substitutes $references in every value of the map.
func resolveMap(in map[string]interface{}, outputs map[string]interface{}) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	for k, v := range in {
		resolved, err := resolveValue(v, outputs)
		if err != nil {
			return nil, err
		}
		out[k] = resolved
	}
	return out, nil
}

func resolveValue(v interface{}, outputs map[string]interface{}) (interface{}, error) {
	switch val := v.(type) {
	case string:
		if strings.HasPrefix(val, "$") {
			return resolveRef(val, outputs)
		}
		return val, nil
	case map[string]interface{}:
		return resolveMap(val, outputs)
	case []interface{}:
		resolved := make([]interface{}, len(val))
		for i, item := range val {
			r, err := resolveValue(item, outputs)
			if err != nil {
				return nil, err
			}
			resolved[i] = r
		}
		return resolved, nil
	default:
		return v, nil
	}
}

// resolveRef follows "$name.path.to.field" into the saved outputs.
func resolveRef(ref string, outputs map[string]interface{}) (interface{}, error) {
	path := strings.Split(strings.TrimPrefix(ref, "$"), ".")
	current, ok := outputs[path[0]]
	if !ok {
		return nil, fmt.Errorf("unknown reference %s", ref)
	}
	for _, field := range path[1:] {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("reference %s traverses a non-object at %q", ref, field)
		}
		current, ok = node[field]
		if !ok {
			return nil, fmt.Errorf("reference %s has no field %q", ref, field)
		}
	}
	return current, nil
}

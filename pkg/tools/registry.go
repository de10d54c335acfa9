package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Category groups tools by the upstream they reach.
type Category string

const (
	CategoryERP           Category = "erp"
	CategoryAdmin         Category = "admin"
	CategoryKG            Category = "kg"
	CategoryNotif         Category = "notif"
	CategoryInstitutional Category = "institutional"
)

// Handler executes a tool. Arguments have already been validated against
// the tool's parameter schema.
type Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Tool is one registered tool.
type Tool struct {
	Name         string
	Description  string
	Category     Category
	Params       []ParamSpec
	Handler      Handler
	MockResponse interface{}

	schemaDoc map[string]interface{}
	compiled  compiledSchema
}

type compiledSchema interface {
	Validate(v any) error
}

// SchemaDoc returns the derived JSON-schema object for the parameters.
func (t *Tool) SchemaDoc() map[string]interface{} {
	return t.schemaDoc
}

// Registry is the process-wide tool map. It is written once at startup and
// read-only thereafter; Call never mutates registry state.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]*Tool
	mockMode bool
	logger   *slog.Logger
}

// NewRegistry creates an empty registry. mockMode short-circuits tools that
// carry a MockResponse.
func NewRegistry(mockMode bool) *Registry {
	return &Registry{
		tools:    make(map[string]*Tool),
		mockMode: mockMode,
		logger:   slog.Default().With("component", "tool-registry"),
	}
}

// MockMode reports whether the registry short-circuits mock responses.
func (r *Registry) MockMode() bool {
	return r.mockMode
}

// Register adds a tool, deriving and compiling its parameter schema.
func (r *Registry) Register(tool *Tool) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if tool.Handler == nil {
		return fmt.Errorf("tool %q has no handler", tool.Name)
	}

	doc, err := buildSchemaDoc(tool.Params)
	if err != nil {
		return fmt.Errorf("tool %q: %w", tool.Name, err)
	}
	compiled, err := compileSchema(doc)
	if err != nil {
		return fmt.Errorf("tool %q: %w", tool.Name, err)
	}
	tool.schemaDoc = doc
	tool.compiled = compiled

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool %q already registered", tool.Name)
	}
	r.tools[tool.Name] = tool
	return nil
}

// MustRegister registers a tool and panics on definition errors. Intended
// for startup-time registration only.
func (r *Registry) MustRegister(tool *Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all tools, optionally filtered by category, name-sorted.
func (r *Registry) List(category Category) []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		if category != "" && tool.Category != category {
			continue
		}
		out = append(out, tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call invokes a tool by name. It never panics and never returns a Go
// error: every failure mode is folded into the Result contract.
func (r *Registry) Call(ctx context.Context, name string, args map[string]interface{}) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Tool handler panicked", "tool", name, "panic", rec)
			result = Fail(fmt.Sprintf("tool %s: internal error", name))
		}
	}()

	tool, ok := r.Get(name)
	if !ok {
		return Fail(fmt.Sprintf("tool not found: %s", name))
	}

	if r.mockMode && tool.MockResponse != nil {
		return OK(tool.MockResponse)
	}

	normalized, err := normalizeArgs(args)
	if err != nil {
		return Fail(err.Error())
	}
	if err := tool.compiled.Validate(normalized); err != nil {
		return Fail(fmt.Sprintf("invalid arguments for %s: %v", name, err))
	}

	// Fill declared defaults for omitted optional parameters.
	merged := make(map[string]interface{}, len(args)+len(tool.Params))
	for _, p := range tool.Params {
		if p.Default != nil {
			merged[p.Name] = p.Default
		}
	}
	for k, v := range args {
		merged[k] = v
	}

	data, err := tool.Handler(ctx, merged)
	if err != nil {
		r.logger.Warn("Tool handler failed", "tool", name, "error", err)
		return Fail(err.Error())
	}
	return OK(data)
}

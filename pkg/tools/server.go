package tools

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// JSON-RPC error codes.
const (
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
	codeParseError     = -32700
)

// rpcRequest is the JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string                 `json:"jsonrpc"`
	Method  string                 `json:"method"`
	Params  map[string]interface{} `json:"params"`
	ID      interface{}            `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

// toolDescriptor is the wire representation of a registered tool.
type toolDescriptor struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Category    Category               `json:"category"`
	Schema      map[string]interface{} `json:"schema"`
}

// Server exposes the registry over REST and JSON-RPC.
type Server struct {
	registry *Registry
	engine   *gin.Engine
}

// NewServer builds the HTTP surface for a registry.
func NewServer(registry *Registry) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())

	s := &Server{registry: registry, engine: engine}

	engine.GET("/health", s.handleHealth)
	engine.GET("/tools", s.handleListTools)
	engine.GET("/tools/:name", s.handleGetTool)
	engine.POST("/tools/:name/call", s.handleCallTool)
	engine.POST("/mcp", s.handleRPC)

	return s
}

// Handler returns the http.Handler for mounting or testing.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"tools":     len(s.registry.List("")),
		"mock_mode": s.registry.MockMode(),
	})
}

func (s *Server) handleListTools(c *gin.Context) {
	category := Category(c.Query("category"))
	listed := s.registry.List(category)
	out := make([]toolDescriptor, 0, len(listed))
	for _, tool := range listed {
		out = append(out, describe(tool))
	}
	c.JSON(http.StatusOK, gin.H{"tools": out})
}

func (s *Server) handleGetTool(c *gin.Context) {
	tool, ok := s.registry.Get(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "tool not found"})
		return
	}
	c.JSON(http.StatusOK, describe(tool))
}

func (s *Server) handleCallTool(c *gin.Context) {
	var body struct {
		Arguments map[string]interface{} `json:"arguments"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid request body"})
		return
	}
	result := s.registry.Call(c.Request.Context(), c.Param("name"), body.Arguments)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleRPC(c *gin.Context) {
	var req rpcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: codeParseError, Message: "parse error"},
		})
		return
	}

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	defer func() {
		if rec := recover(); rec != nil {
			c.JSON(http.StatusOK, rpcResponse{
				JSONRPC: "2.0",
				ID:      req.ID,
				Error:   &rpcError{Code: codeInternalError, Message: "internal error"},
			})
		}
	}()

	switch req.Method {
	case "ping":
		resp.Result = "pong"

	case "tools/list":
		category, _ := req.Params["category"].(string)
		listed := s.registry.List(Category(category))
		out := make([]toolDescriptor, 0, len(listed))
		for _, tool := range listed {
			out = append(out, describe(tool))
		}
		resp.Result = gin.H{"tools": out}

	case "tools/schema":
		name, _ := req.Params["name"].(string)
		tool, ok := s.registry.Get(name)
		if !ok {
			resp.Error = &rpcError{Code: codeInvalidParams, Message: "tool not found: " + name}
			break
		}
		resp.Result = tool.SchemaDoc()

	case "tools/call":
		name, ok := req.Params["name"].(string)
		if !ok || name == "" {
			resp.Error = &rpcError{Code: codeInvalidParams, Message: "name is required"}
			break
		}
		args, _ := req.Params["arguments"].(map[string]interface{})
		result := s.registry.Call(c.Request.Context(), name, args)
		resp.Result = result

	default:
		resp.Error = &rpcError{Code: codeMethodNotFound, Message: "method not found: " + req.Method}
	}

	c.JSON(http.StatusOK, resp)
}

func describe(tool *Tool) toolDescriptor {
	return toolDescriptor{
		Name:        tool.Name,
		Description: tool.Description,
		Category:    tool.Category,
		Schema:      tool.SchemaDoc(),
	}
}

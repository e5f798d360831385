package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ericksa/contractlens/internal/audit"
	"github.com/ericksa/contractlens/internal/logger"
	"github.com/ericksa/contractlens/internal/workers"
)

const (
	serverName    = "ContractLens"
	serverVersion = "1.0.0"
)

// ToolInfo describes one registered tool.
type ToolInfo struct {
	Name        string `json:"name"`
	Worker      string `json:"worker"`
	Description string `json:"description"`
}

type Handler struct {
	audit   *audit.Auditor
	log     *logger.Logger
	workers map[string]workers.Worker
	server  *mcp.Server
	stream  http.Handler
}

// NewHandler registers every worker tool as <worker>_<tool> on one MCP server.
func NewHandler(ws map[string]workers.Worker, auditor *audit.Auditor, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	h := &Handler{
		audit:   auditor,
		log:     log.With("service", "MCP"),
		workers: ws,
	}
	h.initMCPServer()
	h.stream = mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return h.server }, nil)
	return h
}

func (h *Handler) initMCPServer() {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)

	for _, t := range h.Tools() {
		mcp.AddTool(server, &mcp.Tool{
			Name:        t.Name,
			Description: t.Description,
		}, h.wrapTool(t.Worker, strings.TrimPrefix(t.Name, t.Worker+"_")))
	}
	h.server = server
}

// Server returns the underlying MCP server, e.g. for a stdio transport.
func (h *Handler) Server() *mcp.Server {
	return h.server
}

// Tools lists the registered tools sorted by name.
func (h *Handler) Tools() []ToolInfo {
	var out []ToolInfo
	for name, w := range h.workers {
		for _, t := range w.GetTools() {
			out = append(out, ToolInfo{Name: name + "_" + t.Name, Worker: name, Description: t.Description})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (h *Handler) wrapTool(worker, tool string) func(ctx context.Context, req *mcp.CallToolRequest, input any) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input any) (*mcp.CallToolResult, any, error) {
		inputBytes, err := json.Marshal(input)
		if err != nil {
			return nil, nil, err
		}
		result, err := h.Execute(ctx, worker, tool, inputBytes)
		if err != nil {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{
					&mcp.TextContent{Text: err.Error()},
				},
			}, nil, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: string(result)},
			},
		}, nil, nil
	}
}

// ServeHTTP serves the MCP streamable HTTP transport.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.stream.ServeHTTP(w, r)
}

// Execute runs one tool of one worker and records it in the audit log.
func (h *Handler) Execute(ctx context.Context, worker, tool string, args json.RawMessage) ([]byte, error) {
	w, ok := h.workers[worker]
	if !ok {
		return nil, fmt.Errorf("%w: worker %s", workers.ErrUnknownTool, worker)
	}
	start := time.Now()
	result, err := w.Execute(ctx, tool, args)
	took := time.Since(start)
	h.audit.Log(worker+"_"+tool, args, result, took, err)
	if err != nil {
		h.log.Warn("tool call failed", "worker", worker, "tool", tool, "error", err)
	} else {
		h.log.Debug("tool call", "worker", worker, "tool", tool, "duration", took.String())
	}
	return result, err
}

// ExecuteTool runs a tool by its full <worker>_<tool> name.
func (h *Handler) ExecuteTool(ctx context.Context, toolName string, args json.RawMessage) ([]byte, error) {
	for name := range h.workers {
		prefix := name + "_"
		if len(toolName) > len(prefix) && strings.HasPrefix(toolName, prefix) {
			return h.Execute(ctx, name, toolName[len(prefix):], args)
		}
	}
	return nil, fmt.Errorf("%w: %s", workers.ErrUnknownTool, toolName)
}

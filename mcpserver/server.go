package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/codelab/config"
	"github.com/isdmx/codelab/explain"
	"github.com/isdmx/codelab/sandbox"
)

// Tool names
const (
	ToolExecuteCode  = "execute_code"
	ToolExplainError = "explain_error"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	executor  sandbox.Executor
	explainer explain.Explainer
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, executor sandbox.Executor, explainer explain.Explainer) (*MCPServer, error) {
	if executor == nil || explainer == nil {
		return nil, errors.New("mcpserver requires an executor and an explainer")
	}

	s := &MCPServer{
		config:    cfg,
		logger:    logger.Named("mcp"),
		executor:  executor,
		explainer: explainer,
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", cfg.Server.Transport),
		zap.Int("server.http_port", cfg.Server.HTTPPort),
		zap.Int("sandbox.timeout_sec", cfg.Sandbox.TimeoutSec),
		zap.Int("sandbox.max_concurrent", cfg.Sandbox.MaxConcurrent),
		zap.String("languages.python.command", cfg.Languages.Python.Command),
		zap.String("languages.java.compiler", cfg.Languages.Java.Compiler),
		zap.String("languages.java.runtime", cfg.Languages.Java.Runtime),
		zap.Bool("explain.enabled", cfg.Explain.Enabled),
		zap.String("explain.model", cfg.Explain.Model),
	)

	s.mcpServer = server.NewMCPServer("codelab-runner", "1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.registerExecuteCodeTool()
	s.registerExplainErrorTool()

	return s, nil
}

func (s *MCPServer) registerExecuteCodeTool() {
	tool := mcp.NewTool(ToolExecuteCode,
		mcp.WithDescription("Run a Python or Java snippet and return its output, error and execution time"),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("Source code. Java code must declare a public class Main"),
		),
		mcp.WithString("language",
			mcp.Required(),
			mcp.Description("Runtime language"),
			mcp.Enum(sandbox.SupportedLanguages...),
		),
	)

	s.mcpServer.AddTool(tool, s.handleExecuteCode)
}

func (s *MCPServer) registerExplainErrorTool() {
	tool := mcp.NewTool(ToolExplainError,
		mcp.WithDescription("Explain an execution error in beginner-friendly terms"),
		mcp.WithString("code", mcp.Required(), mcp.Description("The code that failed")),
		mcp.WithString("language",
			mcp.Required(),
			mcp.Description("Runtime language"),
			mcp.Enum(sandbox.SupportedLanguages...),
		),
		mcp.WithString("error", mcp.Required(), mcp.Description("The error text reported by the run")),
	)

	s.mcpServer.AddTool(tool, s.handleExplainError)
}

// handleExecuteCode handles the execute_code tool
func (s *MCPServer) handleExecuteCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil || code == "" {
		return mcp.NewToolResultError("code must be a non-empty string"), nil
	}

	language, err := request.RequireString("language")
	if err != nil || language == "" {
		return mcp.NewToolResultError("language must be a non-empty string"), nil
	}

	s.logger.Info("code execution requested", zap.String("language", language))

	result, err := s.executor.Execute(context.WithoutCancel(ctx), sandbox.ExecuteRequest{
		Language: language,
		Code:     code,
	})
	if err != nil {
		s.logger.Error("sandbox execution failed",
			zap.Error(err),
			zap.String("language", language))
		return mcp.NewToolResultError(fmt.Sprintf("Execution failed: %v", err)), nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	toolResult := mcp.NewToolResultText(string(payload))
	toolResult.IsError = result.Failed()
	return toolResult, nil
}

// handleExplainError handles the explain_error tool
func (s *MCPServer) handleExplainError(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code := request.GetString("code", "")
	language := request.GetString("language", "")
	errorText := request.GetString("error", "")
	if code == "" || errorText == "" || !sandbox.IsSupported(language) {
		return mcp.NewToolResultError("Invalid request data provided."), nil
	}

	explanation := s.explainer.Explain(ctx, explain.Request{
		Code:     code,
		Language: language,
		Error:    errorText,
	})

	return mcp.NewToolResultText(explanation), nil
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// HTTPHandler returns a streamable HTTP transport for mounting into the API server
func (s *MCPServer) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer, server.WithEndpointPath("/mcp"))
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

package main

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/codelab/config"
	"github.com/isdmx/codelab/explain"
	"github.com/isdmx/codelab/httpserver"
	"github.com/isdmx/codelab/logger"
	"github.com/isdmx/codelab/mcpserver"
	"github.com/isdmx/codelab/sandbox"
)

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Sandbox executor based on config
			sandbox.NewExecutor,

			// Error explanation with canned fallbacks
			fx.Annotate(explain.New, fx.As(new(explain.Explainer))),

			// MCP Server
			mcpserver.New,

			// HTTP API with the MCP transport mounted at /mcp
			newHTTPServer,
		),

		// Start the appropriate transport based on config
		fx.Invoke(run),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	// Start the application
	app.Run()
}

func newHTTPServer(cfg *config.Config, log *zap.Logger, executor sandbox.Executor, explainer explain.Explainer, mcp *mcpserver.MCPServer) *httpserver.Server {
	return httpserver.New(cfg, log, executor, explainer, httpserver.WithMCPHandler(mcp.HTTPHandler()))
}

func run(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, log *zap.Logger, mcp *mcpserver.MCPServer, api *httpserver.Server) {
	switch cfg.Server.Transport {
	case "stdio":
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					if err := mcp.ServeStdio(); err != nil {
						log.Error("stdio transport stopped", zap.Error(err))
					}
					_ = shutdowner.Shutdown()
				}()
				return nil
			},
		})
	case "http":
		lc.Append(fx.Hook{
			OnStart: api.Start,
			OnStop:  api.Stop,
		})
	default:
		panic("unsupported transport: " + cfg.Server.Transport)
	}
}

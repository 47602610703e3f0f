// Package logger provides structured logging capabilities.
//
// The logger package builds the zap logger shared by the HTTP API, the MCP
// tools, the sandbox executor and the explainer. Production mode writes JSON
// with ISO8601 timestamps; development mode writes colored console output.
//
// Usage:
//
//	log, err := logger.New("production", "info")
//	if err != nil {
//	    panic(err)
//	}
//	log.Info("server started", zap.Int("port", 5000))
package logger

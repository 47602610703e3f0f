// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes the code runner to MCP clients through the
// mark3labs/mcp-go library. It registers two tools backed by the same
// executor and explainer as the HTTP API:
//
//   - execute_code runs a Python or Java snippet
//   - explain_error explains an execution error
//
// The server is served on stdio, or mounted into the HTTP API at /mcp.
//
// Usage:
//
//	server, err := mcpserver.New(config, logger, executor, explainer)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio()
package mcpserver

// Package main is the entry point for the codelab runner.
//
// The runner backs a coding-education site: it executes Python and Java
// snippets as host child processes under a wall-clock timeout and explains
// execution errors with a chat model, falling back to canned explanations.
// It serves a JSON HTTP API (with the MCP tools mounted at /mcp) or, when
// server.transport is "stdio", the MCP tools alone.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
package main

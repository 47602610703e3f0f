// Package httpserver exposes the code runner as a JSON HTTP API.
//
// Routes:
//
//	POST /api/execute  run a Python or Java snippet
//	POST /api/explain  explain an execution error
//	GET  /healthz      liveness probe
//	ANY  /mcp          MCP tools over streamable HTTP (when mounted)
//
// Execution-level failures are reported with HTTP 200 and an error field;
// only malformed requests (400), a saturated executor (503) and unexpected
// failures (500) change the status code.
package httpserver

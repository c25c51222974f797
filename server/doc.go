// Package server provides the voiced HTTP server: a Gin engine behind a
// root ServeMux, served over HTTP/1.1 and h2c.
//
// # Middleware
//
// Middleware (server/middleware) wraps the whole handler so it also covers
// the bridge websocket:
//
//   - Recovery: panic recovery with structured logging
//   - RequestID: request id generation and propagation
//   - Tracing: request spans and request metrics
//   - CORS: cross-origin access for pages loading /bridge.js
//   - BodySizeLimit: request body size limits
//   - RequestLogger: request logging with duration tracking
//
// # Routes
//
//   - GET  /health, GET /version (server/endpoint)
//   - GET  /v1/providers
//   - POST /v1/speak, POST /v1/speak/stop
//   - POST /v1/listen/start, POST /v1/listen/stop
//   - GET  /v1/transcripts
//   - GET  /v1/transcripts/stream (server-sent events)
//   - GET  /bridge (websocket), GET /bridge.js
package server

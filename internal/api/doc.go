// Package api implements the HTTP REST API and WebSocket server for pinforge.
//
// This package provides:
//   - REST endpoints for the component catalog, projects and allocation runs
//   - Ad-hoc allocation of an unsaved spec
//   - CSV, JSON and zip exports of a project's latest allocation
//   - WebSocket hub broadcasting allocation.completed events
//   - Prometheus scrape endpoint and a JSON system metrics summary
//   - Audit trail of project changes, written asynchronously
//   - Middleware stack (request ID, logging, recovery, CORS, body limit, JWT auth)
//
// # Security
//
// When security.auth_enabled is set every route except /health and /metrics
// requires an HS256 bearer token minted by the auth package. Read routes
// need a viewer role, mutating routes editor, system routes admin.
// WebSocket clients pass the token as the "token" query parameter since
// browsers cannot set headers on the upgrade request.
//
// # Graceful Degradation
//
// MQTT, InfluxDB and Prometheus are optional. Without them the server still
// allocates, stores and exports; only the corresponding sinks are missing.
package api

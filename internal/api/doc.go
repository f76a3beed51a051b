// Package api hosts the HTTP server, middleware, and REST handlers. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /analyze-jobs runs one analysis, rate limited per client.
//   - GET /history and /stats read scan history; both require X-Admin-Key
//     when an admin key is configured.
package api

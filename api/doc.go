// Package api provides the wire-level DTOs for the DemoForge HTTP API.
//
// # API Overview
//
// DemoForge exposes a RESTful API for:
//   - Document upload and extraction status
//   - Interactive demo generation per concept
//   - Blob retrieval (original uploads and rendered outputs)
//   - WebSocket status feed and health monitoring
//
// # Authentication
//
// Endpoints under /api/v1 require a Bearer JWT when auth is enabled:
//
//	Authorization: Bearer <token>
//
// With auth disabled every request resolves to the configured development
// subject, so the full surface stays usable on a laptop.
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
//
// # Conventions
//
// All responses use the unified envelope from api/handlers (success + data +
// error + timestamp). Entity payloads mirror the domain records in types/ but
// carry resolved blob URLs instead of raw blob IDs where retrieval matters.
package api

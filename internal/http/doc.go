// Package http exposes the session coordinator over JSON/HTTP.
//
// The router serves:
//   - GET /sessions, POST /sessions: the upcoming view (filters: skill,
//     location, joinable, q) and session creation. Creating seats the caller.
//   - GET /sessions/{id}, PUT /sessions/{id}, DELETE /sessions/{id}: read,
//     owner edit and owner delete.
//   - POST /sessions/{id}/participants, DELETE /sessions/{id}/participants:
//     join and withdraw for the calling viewer.
//   - PUT /sessions/{id}/guests: replace the host-managed guest list.
//   - GET /me/joined, GET /me/hosted, GET /history, GET /stats, GET /locations.
//   - GET /healthz.
//
// Viewers are identified by gateway headers (X-Viewer-Id and friends) carrying
// a keyed BLAKE2b signature; see Identify. Transitions answer with a
// transitionResponse whose outcome is applied, no_change or rejected. Only
// errors map to non-2xx statuses.
package http

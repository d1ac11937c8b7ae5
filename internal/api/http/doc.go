// Package http provides the REST command surface for terminal sessions.
//
// Routes:
//   - POST   /sessions             spawn (201, id generated when omitted)
//   - GET    /sessions             list live sessions
//   - GET    /sessions/:id         one session
//   - POST   /sessions/:id/input   write {"data": "..."}
//   - POST   /sessions/:id/resize  resize {"cols": n, "rows": n}
//   - DELETE /sessions/:id         kill
//   - GET    /sessions/:id/usage   persisted usage records
//   - GET    /settings/shell       shell resolution config
//   - PUT    /settings/shell       replace shell resolution config
//   - GET    /health               liveness, session count, metrics snapshot
//
// Errors are returned as {"error": "..."}: invalid input 400, unknown
// session 404, duplicate id 409, spawn failure 500, pty i/o 502, shut down
// 503.
package http

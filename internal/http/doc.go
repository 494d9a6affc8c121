// Package http exposes the to-do API over HTTP.
//
// The router serves these endpoints:
//   - POST /sessions: issues a session token. Body: {"email","password"}.
//     The token is also returned in the X-Session-Token header and a
//     session_token cookie.
//   - POST /sessions/refresh: rotates the current token.
//   - DELETE /sessions/current: revokes the current token and clears the cookie.
//   - GET /auth/whoami: returns the authenticated principal.
//   - POST /users: registers an account. GET /users and DELETE /users/{id} are
//     for administrators; GET /users/{id} for the user or an administrator.
//   - /lists and /items: generic CRUD resources served by CrudHandler. POST
//     creates, GET ?ids= reads, PUT replaces, PATCH ?id= applies a JSON Patch
//     and DELETE ?id= removes. GET {resource}/mine lists the caller's entities
//     where the resource supports ownership.
//
// CRUD responses are always the APIResult envelope. Other endpoints exchange
// the DTOs declared next to their handlers.
package http

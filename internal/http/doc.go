// Package http provides HTTP handlers and middleware for the library API.
//
// The router exposes the following endpoints:
//   - POST /sessions: issues a session token. Body: {"email","password"}.
//     Response: {"token","expires_at","member"} with the token also surfaced
//     via the `X-Session-Token` header and a `session_token` cookie.
//   - DELETE /sessions/current: revokes the session token extracted from the
//     Authorization header or session cookie. Returns 204 and clears the cookie.
//   - DELETE /sessions/{token}: administrator-only revocation of an arbitrary
//     session token.
//   - GET /books, POST /books, GET/PUT/DELETE /books/{id}: catalog endpoints
//     exchanging the `bookDTO` payload defined in book_handler.go. Listing
//     accepts search, category, department, status, publish_year, sort and
//     order (asc/desc) query parameters. Mutations require administrator privileges.
//   - POST /books/{id}/download: records a download of a digital resource and
//     returns the entry with its refreshed download count.
//   - PUT /books/{id}/status: administrator override of a book's status.
//   - GET /members, POST /members, GET/PUT/DELETE /members/{id}: member
//     directory endpoints exchanging the `memberDTO` payload defined in
//     member_handler.go.
//   - POST /members/{id}/card, PUT /members/{id}/card: issue a library card
//     and toggle it between ACTIVE and SUSPENDED.
//   - GET /members/{id}/loans, GET /members/{id}/reservations: lending
//     history for a member, visible to the member themselves and to
//     administrators.
//   - GET /loans, POST /loans: list the caller's open loans and borrow a
//     book. POST /loans/return: return one, optionally on behalf of another
//     member when the caller is an administrator.
//   - GET /reservations, POST /reservations, DELETE /reservations/{id}: list,
//     place and withdraw holds on borrowed books.
//   - POST /assistant/queries, POST /assistant/recommendations: research
//     assistant endpoints backed by the generative model client.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http

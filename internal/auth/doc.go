// Package auth provides authentication for the lexgate API.
//
// Two kinds of principal exist: clients (the firm's customers) and admin
// users (firm staff). Both authenticate with email-or-username plus
// password; passwords are verified against bcrypt hashes and successful
// logins are issued an HS256 JWT carrying "sub" (principal id) and "role"
// ("client" or "admin") claims.
//
// HTTPAuthMiddleware verifies the bearer token on each request and attaches
// an Identity to the request context; handlers read it back with
// FromContext. RequireAdminHTTP layers on top for staff-only endpoints.
package auth

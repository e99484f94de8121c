// Package auth implements the authentication core of the admissions
// portal: the signed token codec, password verification, and the
// authentication service behind the login endpoints.
//
// # Token codec
//
// Codec issues and validates HS256-signed JWTs carrying issuer, subject,
// issued-at, and expiry. Validation is a pure function of the token, the
// signing key, the configured issuer, and the clock: signature mismatch,
// issuer mismatch, expiry, and malformed input all collapse into an
// invalid-token result without panicking. Expiry is strict; a token is
// valid only while now < exp, so a zero-TTL token is never valid.
//
// # Authentication service
//
// Service validates submitted credentials against the account store and
// issues tokens. Two protocols converge on the same issuance step:
// password login (bcrypt comparison against the stored hash) and
// third-party identity login (Google ID token verification with
// auto-provisioning of first-time student accounts).
//
// Failures carry a Kind so the HTTP boundary can map each to a status
// code without string matching. The public error message for unknown
// identifiers and wrong passwords is identical to prevent account
// enumeration.
//
// # Security context
//
// AuthContext is the per-request authenticated principal, attached to the
// request context by the authentication filter and consumed by the access
// policy and handlers. It is never persisted or shared across requests.
package auth

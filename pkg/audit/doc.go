// Package audit records security-relevant events such as logins, denied
// requests, and account lifecycle changes to a durable trail.
package audit

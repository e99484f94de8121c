// Package api assembles the portal's HTTP surface: routing, the
// middleware chain, and the handlers for login, account administration,
// and the audit trail.
package api

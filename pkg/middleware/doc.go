// Package middleware provides the request authentication filter, the
// table-driven access control policy, and login rate limiting.
//
// The filter and the policy split responsibilities deliberately: the
// filter only resolves identity (it never rejects a request), and the
// policy only decides authorization (401 for missing identity, 403 for
// insufficient role). Handlers behind the chain can assume the policy
// has already run.
package middleware

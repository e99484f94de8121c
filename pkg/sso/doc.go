// Package sso integrates the portal with Google as a third-party
// identity provider.
//
// GoogleVerifier checks raw ID tokens (issuer allow-list, expiry, and an
// any-of audience match against the registered client IDs) and extracts
// the external email and display name. GoogleProvider additionally
// implements the browser redirect flow: it sends the user to Google's
// authorization endpoint and exchanges the returned code for an ID token,
// which then funnels through the same verifier.
package sso
